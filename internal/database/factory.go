package database

import (
	"fmt"
	"os"
	"path/filepath"

	"dirzip/internal/config"
)

// JournalFileName is the journal database file under the data directory.
const JournalFileName = "journal.db"

// NewDatabaseFromConfig creates the transfer journal described by cfg.
// It returns nil and no error for type "none".
func NewDatabaseFromConfig(cfg config.DatabaseConfig) (*SQLiteDatabase, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return NewSQLiteDatabase(filepath.Join(cfg.DataDir, JournalFileName))
	case "memory":
		return NewSQLiteDatabase(":memory:")
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
