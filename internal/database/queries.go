package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const (
	userColumns = "id, username, role, password_hash, created_at"

	// messageColumns selects a message row aliased as m joined with its sender as s.
	messageColumns = "m.id, m.sender_id, s.username, m.receiver_id, m.room_id, m.message_type, " +
		"m.content, m.created_at, m.is_edited, m.is_deleted, m.is_read, m.version"

	returningMessage = "RETURNING id, sender_id, receiver_id, room_id, message_type, content, " +
		"created_at, is_edited, is_deleted, is_read, version"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var u User
	err := row.Scan(
		&u.Id,
		&u.Username,
		&u.Role,
		&u.PasswordHash,
		&u.CreatedAt,
	)

	return u, err
}

func scanMessage(row rowScanner) (Message, error) {
	var msg Message
	err := row.Scan(
		&msg.Id,
		&msg.SenderId,
		&msg.SenderUsername,
		&msg.ReceiverId,
		&msg.RoomId,
		&msg.MessageType,
		&msg.Content,
		&msg.CreatedAt,
		&msg.IsEdited,
		&msg.IsDeleted,
		&msg.IsRead,
		&msg.Version,
	)

	return msg, err
}

// withSender wraps a data-modifying statement returning a message row so the
// result is joined with the sender's username.
func withSender(stmt string) string {
	return "WITH m AS (" + stmt + " " + returningMessage + ") " +
		"SELECT " + messageColumns + " FROM m JOIN users s ON s.id = m.sender_id"
}

func (db *PgSupportChatRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO users (username, role, password_hash, created_at) "+
			"VALUES ($1, $2, $3, now()) RETURNING "+userColumns,
		params.Username,
		params.Role,
		params.PasswordHash,
	)

	return scanUser(row)
}

func (db *PgSupportChatRepository) GetUserById(ctx context.Context, id int) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1 LIMIT 1",
		id,
	)

	return scanUser(row)
}

func (db *PgSupportChatRepository) GetUserByUsername(ctx context.Context, username string) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = $1 LIMIT 1",
		username,
	)

	return scanUser(row)
}

func (db *PgSupportChatRepository) GetAdmin(ctx context.Context) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE role = $1 LIMIT 1",
		RoleAdmin,
	)

	return scanUser(row)
}

// EnsureAdmin returns the system admin, creating it when none exists. A
// non-empty password hash replaces the stored one.
func (db *PgSupportChatRepository) EnsureAdmin(ctx context.Context, params CreateUserParams) (User, error) {
	admin, err := db.GetAdmin(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		params.Role = RoleAdmin
		return db.CreateUser(ctx, params)
	}
	if err != nil {
		return User{}, err
	}

	if params.PasswordHash == "" || params.PasswordHash == admin.PasswordHash {
		return admin, nil
	}

	row := db.conn.QueryRowContext(ctx,
		"UPDATE users SET password_hash = $2 WHERE id = $1 RETURNING "+userColumns,
		admin.Id,
		params.PasswordHash,
	)

	return scanUser(row)
}

func (db *PgSupportChatRepository) DeleteCustomer(ctx context.Context, id int) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, "DELETE FROM messages WHERE sender_id = $1 OR receiver_id = $1", id)
	if err != nil {
		return err
	}

	var res sql.Result
	res, err = tx.ExecContext(ctx, "DELETE FROM users WHERE id = $1 AND role = $2", id, RoleCustomer)
	if err != nil {
		return err
	}

	var n int64
	n, err = res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		err = sql.ErrNoRows
		return err
	}

	return tx.Commit()
}

func (db *PgSupportChatRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	row := db.conn.QueryRowContext(ctx,
		withSender("INSERT INTO messages (sender_id, receiver_id, room_id, message_type, content, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6)"),
		params.SenderId,
		params.ReceiverId,
		params.RoomId,
		params.MessageType,
		params.Content,
		params.CreatedAt,
	)

	return scanMessage(row)
}

func (db *PgSupportChatRepository) GetMessageById(ctx context.Context, id int) (Message, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+messageColumns+" FROM messages m JOIN users s ON s.id = m.sender_id "+
			"WHERE m.id = $1 LIMIT 1",
		id,
	)

	return scanMessage(row)
}

// GetMessagesByRoom returns the non-deleted messages of a room, oldest first.
func (db *PgSupportChatRepository) GetMessagesByRoom(ctx context.Context, roomId string) ([]Message, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+messageColumns+" FROM messages m JOIN users s ON s.id = m.sender_id "+
			"WHERE m.room_id = $1 AND NOT m.is_deleted ORDER BY m.created_at ASC, m.id ASC",
		roomId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return messages, nil
}

func (db *PgSupportChatRepository) UpdateMessageContent(ctx context.Context, id, version int, content string) (Message, error) {
	row := db.conn.QueryRowContext(ctx,
		withSender("UPDATE messages SET content = $3, is_edited = TRUE, version = version + 1 "+
			"WHERE id = $1 AND version = $2"),
		id,
		version,
		content,
	)

	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Message{}, ErrVersionConflict
	}

	return msg, err
}

// SoftDeleteMessage flags a message as deleted. The update only applies to an
// unread message still at the given version.
func (db *PgSupportChatRepository) SoftDeleteMessage(ctx context.Context, id, version int) (Message, error) {
	row := db.conn.QueryRowContext(ctx,
		withSender("UPDATE messages SET is_deleted = TRUE, version = version + 1 "+
			"WHERE id = $1 AND version = $2 AND NOT is_read"),
		id,
		version,
	)

	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Message{}, ErrVersionConflict
	}

	return msg, err
}

// MarkRoomRead flags every unread message in the room addressed to readerId
// as read in a single statement and returns the number of messages changed.
func (db *PgSupportChatRepository) MarkRoomRead(ctx context.Context, roomId string, readerId int) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE messages SET is_read = TRUE, version = version + 1 "+
			"WHERE room_id = $1 AND receiver_id = $2 AND NOT is_read",
		roomId,
		readerId,
	)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// ListCustomerSummaries returns every customer with their latest visible
// message and the number of their messages the admin has not read yet, most
// recently active first.
func (db *PgSupportChatRepository) ListCustomerSummaries(ctx context.Context, adminId int) ([]CustomerSummary, error) {
	query := `
		SELECT
				u.id,
				u.username,
				u.role,
				u.created_at,
				lm.id,
				lm.sender_id,
				lm.sender_username,
				lm.receiver_id,
				lm.room_id,
				lm.message_type,
				lm.content,
				lm.created_at,
				lm.is_edited,
				lm.is_deleted,
				lm.is_read,
				lm.version,
				COALESCE(uc.unread, 0)
		FROM users u
		LEFT JOIN LATERAL (
				SELECT m.*, s.username AS sender_username
				FROM messages m
				JOIN users s ON s.id = m.sender_id
				WHERE (m.sender_id = u.id OR m.receiver_id = u.id) AND NOT m.is_deleted
				ORDER BY m.created_at DESC
				LIMIT 1
		) lm ON TRUE
		LEFT JOIN LATERAL (
				SELECT COUNT(*) AS unread
				FROM messages m
				WHERE m.sender_id = u.id AND m.receiver_id = $2
					AND NOT m.is_read AND NOT m.is_deleted
		) uc ON TRUE
		WHERE u.role = $1
		ORDER BY lm.created_at DESC NULLS LAST, u.created_at DESC;
`

	rows, err := db.conn.QueryContext(ctx, query, RoleCustomer, adminId)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch customer summaries: %w", err)
	}
	defer rows.Close()

	summaries := make([]CustomerSummary, 0)
	for rows.Next() {
		var (
			s              CustomerSummary
			msgId          sql.NullInt64
			senderId       sql.NullInt64
			senderUsername sql.NullString
			receiverId     sql.NullInt64
			roomId         sql.NullString
			messageType    sql.NullString
			content        sql.NullString
			createdAt      sql.NullTime
			isEdited       sql.NullBool
			isDeleted      sql.NullBool
			isRead         sql.NullBool
			version        sql.NullInt64
		)

		err := rows.Scan(
			&s.Customer.Id,
			&s.Customer.Username,
			&s.Customer.Role,
			&s.Customer.CreatedAt,
			&msgId,
			&senderId,
			&senderUsername,
			&receiverId,
			&roomId,
			&messageType,
			&content,
			&createdAt,
			&isEdited,
			&isDeleted,
			&isRead,
			&version,
			&s.UnreadCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		if msgId.Valid {
			s.LastMessage = &Message{
				Id:             int(msgId.Int64),
				SenderId:       int(senderId.Int64),
				SenderUsername: senderUsername.String,
				ReceiverId:     int(receiverId.Int64),
				RoomId:         roomId.String,
				MessageType:    messageType.String,
				Content:        content.String,
				CreatedAt:      createdAt.Time,
				IsEdited:       isEdited.Bool,
				IsDeleted:      isDeleted.Bool,
				IsRead:         isRead.Bool,
				Version:        int(version.Int64),
			}
		}

		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return summaries, nil
}
