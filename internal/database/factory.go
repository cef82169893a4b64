package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"draftmark/internal/config"
	"draftmark/internal/review"
)

// NewDatabaseFromConfig creates a Database implementation based on the database config type.
func NewDatabaseFromConfig(ctx context.Context, cfg config.DatabaseConfig) (review.Database, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data_dir: %w", err)
		}
		db, err := NewSQLiteDatabase(filepath.Join(cfg.DataDir, "draftmark.db"))
		if err != nil {
			return nil, err
		}
		return db, nil
	case "postgres":
		if cfg.URL == "" {
			return nil, fmt.Errorf("url required for postgres database")
		}
		db, err := NewPostgresDatabase(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "memory":
		return NewMemoryDatabase(), nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
