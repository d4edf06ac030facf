package app

import "time"

// Operation tracks one CLI command. Its ID tags every log line the
// command produces; its status is logged when the app closes.
type Operation struct {
	ID      string
	Command string
	Args    string
	Started time.Time
	Status  string // "success" or "error"
}

// NewOperation creates an operation for command started at now.
func NewOperation(command, args string, now time.Time) *Operation {
	return &Operation{
		ID:      now.UTC().Format("20060102T150405Z"),
		Command: command,
		Args:    args,
		Started: now,
		Status:  "success",
	}
}

// Record marks the operation failed when err is non-nil and returns err.
func (op *Operation) Record(err error) error {
	if err != nil {
		op.Status = "error"
	}
	return err
}

// Failed reports whether any recorded step failed.
func (op *Operation) Failed() bool {
	return op.Status == "error"
}
