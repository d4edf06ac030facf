package database

import (
	"database/sql"
	"testing"
	"time"

	"dirzip/internal/model"
)

// newTestDB creates a new in-memory journal with schema applied.
func newTestDB(t *testing.T) *SQLiteDatabase {
	t.Helper()

	db, err := NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func newTransfer(id string, started time.Time) *model.Transfer {
	return &model.Transfer{
		ID:             id,
		Folder:         "docs",
		Mode:           "http",
		State:          "idle",
		DeclaredLength: -1,
		StartedAt:      started,
	}
}

func TestSQLiteDatabase_CreateTransfer(t *testing.T) {
	t.Run("round-trips a started transfer", func(t *testing.T) {
		db := newTestDB(t)
		started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

		if err := db.CreateTransfer(newTransfer("t-1", started)); err != nil {
			t.Fatalf("CreateTransfer() error = %v", err)
		}

		got, err := db.RecentTransfers(10)
		if err != nil {
			t.Fatalf("RecentTransfers() error = %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("got %d transfers, want 1", len(got))
		}
		tr := got[0]
		if tr.ID != "t-1" || tr.Folder != "docs" || tr.Mode != "http" || tr.State != "idle" {
			t.Errorf("transfer = %+v", tr)
		}
		if tr.DeclaredLength != -1 {
			t.Errorf("DeclaredLength = %d, want -1", tr.DeclaredLength)
		}
		if !tr.StartedAt.Equal(started) {
			t.Errorf("StartedAt = %v, want %v", tr.StartedAt, started)
		}
		if tr.FinishedAt.Valid {
			t.Error("FinishedAt should be null for an unfinished transfer")
		}
	})

	t.Run("rejects duplicate id", func(t *testing.T) {
		db := newTestDB(t)
		now := time.Now()
		if err := db.CreateTransfer(newTransfer("t-1", now)); err != nil {
			t.Fatalf("CreateTransfer() error = %v", err)
		}
		if err := db.CreateTransfer(newTransfer("t-1", now)); err == nil {
			t.Error("CreateTransfer() with duplicate id should fail")
		}
	})
}

func TestSQLiteDatabase_FinishTransfer(t *testing.T) {
	t.Run("records outcome and counters", func(t *testing.T) {
		db := newTestDB(t)
		started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		tr := newTransfer("t-1", started)
		if err := db.CreateTransfer(tr); err != nil {
			t.Fatalf("CreateTransfer() error = %v", err)
		}

		tr.State = "finalized"
		tr.DeclaredLength = 1234
		tr.BytesWritten = 1234
		tr.Files = 7
		tr.FinishedAt = sql.NullTime{Time: started.Add(3 * time.Second), Valid: true}
		if err := db.FinishTransfer(tr); err != nil {
			t.Fatalf("FinishTransfer() error = %v", err)
		}

		got, err := db.RecentTransfers(1)
		if err != nil {
			t.Fatalf("RecentTransfers() error = %v", err)
		}
		g := got[0]
		if g.State != "finalized" || g.DeclaredLength != 1234 || g.BytesWritten != 1234 || g.Files != 7 {
			t.Errorf("transfer = %+v", g)
		}
		if !g.FinishedAt.Valid || !g.FinishedAt.Time.Equal(tr.FinishedAt.Time) {
			t.Errorf("FinishedAt = %v, want %v", g.FinishedAt, tr.FinishedAt.Time)
		}
	})

	t.Run("records failure reason", func(t *testing.T) {
		db := newTestDB(t)
		tr := newTransfer("t-1", time.Now())
		if err := db.CreateTransfer(tr); err != nil {
			t.Fatalf("CreateTransfer() error = %v", err)
		}
		tr.State = "failed"
		tr.Reason = "too_slow_to_size"
		if err := db.FinishTransfer(tr); err != nil {
			t.Fatalf("FinishTransfer() error = %v", err)
		}

		got, _ := db.RecentTransfers(1)
		if got[0].Reason != "too_slow_to_size" {
			t.Errorf("Reason = %q, want too_slow_to_size", got[0].Reason)
		}
	})

	t.Run("unknown transfer is an error", func(t *testing.T) {
		db := newTestDB(t)
		if err := db.FinishTransfer(newTransfer("missing", time.Now())); err == nil {
			t.Error("FinishTransfer() on unknown id should fail")
		}
	})
}

func TestSQLiteDatabase_RecentTransfers(t *testing.T) {
	t.Run("returns newest first with limit", func(t *testing.T) {
		db := newTestDB(t)
		base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		for i, id := range []string{"t-1", "t-2", "t-3"} {
			if err := db.CreateTransfer(newTransfer(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
				t.Fatalf("CreateTransfer() error = %v", err)
			}
		}

		got, err := db.RecentTransfers(2)
		if err != nil {
			t.Fatalf("RecentTransfers() error = %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("got %d transfers, want 2", len(got))
		}
		if got[0].ID != "t-3" || got[1].ID != "t-2" {
			t.Errorf("order = %s, %s; want t-3, t-2", got[0].ID, got[1].ID)
		}
	})

	t.Run("empty journal returns no transfers", func(t *testing.T) {
		db := newTestDB(t)
		got, err := db.RecentTransfers(50)
		if err != nil {
			t.Fatalf("RecentTransfers() error = %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("got %d transfers, want 0", len(got))
		}
	})
}

func TestSQLiteDatabase_CheckMigrations(t *testing.T) {
	db := newTestDB(t)
	if err := db.CheckMigrations(); err != nil {
		t.Errorf("CheckMigrations() error = %v", err)
	}
}
