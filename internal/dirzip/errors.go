package dirzip

import (
	"errors"
	"fmt"
)

// Transfer outcome reasons. A failed or cancelled transfer returns a
// *TransferError that matches exactly one of these with errors.Is.
var (
	// ErrCancelled means the caller went away or a deadline elapsed. It is
	// not reported as content; the destination is simply abandoned.
	ErrCancelled = errors.New("transfer cancelled")

	// ErrTooSlowToSize means length precomputation hit its sub-deadline.
	ErrTooSlowToSize = errors.New("archive too large or slow to size")

	// ErrProcessing covers I/O, encoding and enumeration failures.
	ErrProcessing = errors.New("archive processing failed")
)

// State is a transfer's position in its lifecycle.
type State string

const (
	StateIdle         State = "idle"
	StatePrecomputing State = "precomputing"
	StateStreaming    State = "streaming"
	StateFinalized    State = "finalized"
	StateCancelled    State = "cancelled"
	StateFailed       State = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateFinalized || s == StateCancelled || s == StateFailed
}

// TransferError is the classified failure of a transfer.
type TransferError struct {
	// State is StateCancelled or StateFailed.
	State State
	// From is the state the transfer was in when it stopped.
	From State
	// Reason is ErrCancelled, ErrTooSlowToSize or ErrProcessing.
	Reason error
	// Err is the underlying cause. It may carry internal paths and must
	// not be shown to remote callers.
	Err error
}

func (e *TransferError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s while %s", e.Reason, e.From)
	}
	return fmt.Sprintf("%s while %s: %v", e.Reason, e.From, e.Err)
}

func (e *TransferError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Err}
}
