package testutil

import (
	"testing"

	"dirzip/internal/config"
	"dirzip/internal/database"
	"dirzip/internal/model"
)

// NewTestDatabase returns an empty in-memory journal, closed on cleanup.
func NewTestDatabase(t *testing.T) *database.SQLiteDatabase {
	t.Helper()

	db, err := database.NewDatabaseFromConfig(config.DatabaseConfig{Type: "memory"})
	if err != nil {
		t.Fatalf("NewDatabaseFromConfig() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// SingleTransfer fails the test unless db holds exactly one transfer, and
// returns it.
func SingleTransfer(t *testing.T, db *database.SQLiteDatabase) *model.Transfer {
	t.Helper()

	records, err := db.RecentTransfers(10)
	if err != nil {
		t.Fatalf("RecentTransfers() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d journaled transfers, want 1", len(records))
	}
	return records[0]
}
