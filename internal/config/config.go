package config

import (
	"encoding/base64"
	"fmt"
)

const defaultUploadDir = "uploads"

type Config struct {
	DatabaseDSN    string
	ServerAddr     string
	SigningKey     []byte
	AllowedOrigins []string
	AdminUsername  string
	AdminPassword  string
	UploadDir      string
	// LockDeletedEdits rejects edits to soft-deleted messages.
	LockDeletedEdits bool
	// Migrate applies pending schema migrations at startup.
	Migrate bool
}

type Option func(*Config)

func WithAdmin(username, password string) Option {
	return func(c *Config) {
		c.AdminUsername = username
		c.AdminPassword = password
	}
}

func WithUploadDir(dir string) Option {
	return func(c *Config) {
		if dir != "" {
			c.UploadDir = dir
		}
	}
}

func WithLockDeletedEdits(lock bool) Option {
	return func(c *Config) {
		c.LockDeletedEdits = lock
	}
}

func WithMigrate(migrate bool) Option {
	return func(c *Config) {
		c.Migrate = migrate
	}
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(serverAddr, databaseDSN, base64Secret string, allowedOrigins []string, opts ...Option) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	cfg := &Config{
		DatabaseDSN:    databaseDSN,
		ServerAddr:     serverAddr,
		SigningKey:     signingKey,
		AllowedOrigins: allowedOrigins,
		UploadDir:      defaultUploadDir,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.AdminUsername == "" {
		return nil, fmt.Errorf("admin username cannot be empty")
	}
	if cfg.AdminPassword == "" {
		return nil, fmt.Errorf("admin password cannot be empty")
	}

	return cfg, nil
}
