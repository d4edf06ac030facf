package database

import (
	"database/sql"
	"fmt"

	"dirzip/internal/database/migrations"
	"dirzip/internal/dirzip"
	"dirzip/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase is the transfer journal stored in SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase opens the journal at path and brings its schema up to
// date. path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := openConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return &SQLiteDatabase{db: db, path: path}, nil
}

// openConnection opens and configures a SQLite database connection.
// path can be a file path or ":memory:" for an in-memory database.
func openConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would see its own empty database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", p, err)
		}
	}
	return db, nil
}

// CreateTransfer inserts a transfer record.
func (s *SQLiteDatabase) CreateTransfer(t *model.Transfer) error {
	_, err := s.db.Exec(`
		INSERT INTO transfers (id, folder, mode, state, reason, declared_length, bytes_written, files, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Folder, t.Mode, t.State, t.Reason, t.DeclaredLength, t.BytesWritten, t.Files, t.StartedAt.UTC(), nullTime(t.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("creating transfer: %w", err)
	}
	return nil
}

// FinishTransfer records the outcome of a transfer created earlier.
func (s *SQLiteDatabase) FinishTransfer(t *model.Transfer) error {
	res, err := s.db.Exec(`
		UPDATE transfers
		SET state = ?, reason = ?, declared_length = ?, bytes_written = ?, files = ?, finished_at = ?
		WHERE id = ?`,
		t.State, t.Reason, t.DeclaredLength, t.BytesWritten, t.Files, nullTime(t.FinishedAt), t.ID,
	)
	if err != nil {
		return fmt.Errorf("finishing transfer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing transfer: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finishing transfer: no transfer with id %s", t.ID)
	}
	return nil
}

// RecentTransfers returns up to limit transfers, newest first.
func (s *SQLiteDatabase) RecentTransfers(limit int) ([]*model.Transfer, error) {
	rows, err := s.db.Query(`
		SELECT id, folder, mode, state, reason, declared_length, bytes_written, files, started_at, finished_at
		FROM transfers
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing transfers: %w", err)
	}
	defer rows.Close()

	var out []*model.Transfer
	for rows.Next() {
		t := &model.Transfer{}
		if err := rows.Scan(&t.ID, &t.Folder, &t.Mode, &t.State, &t.Reason, &t.DeclaredLength,
			&t.BytesWritten, &t.Files, &t.StartedAt, &t.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning transfer: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing transfers: %w", err)
	}
	return out, nil
}

// Path returns the path the journal was opened with.
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func nullTime(t sql.NullTime) any {
	if !t.Valid {
		return nil
	}
	return t.Time.UTC()
}

// Compile-time check that SQLiteDatabase implements dirzip.TransferLog
var _ dirzip.TransferLog = (*SQLiteDatabase)(nil)
