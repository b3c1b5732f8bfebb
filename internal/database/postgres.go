package database

import (
	"context"
	"database/sql"
)

type PgSupportChatRepository struct {
	conn *sql.DB
}

func NewPgSupportChatRepository(dsn string) (*PgSupportChatRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PgSupportChatRepository{conn: db}, nil
}

func (db *PgSupportChatRepository) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *PgSupportChatRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
