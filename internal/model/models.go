package model

import (
	"database/sql"
	"time"
)

// Transfer is the journal record of one archive transfer.
type Transfer struct {
	ID             string // UUID
	Folder         string // requested folder name or path
	Mode           string // "http" or "pack"
	State          string // final lifecycle state, see dirzip.State
	Reason         string // "", "cancelled", "too_slow_to_size" or "processing"
	DeclaredLength int64  // -1 when no length was declared
	BytesWritten   int64
	Files          int
	StartedAt      time.Time
	FinishedAt     sql.NullTime
}
