package dirzip

import (
	"errors"

	"dirzip/internal/model"
)

// TransferLog journals transfers. It is outside the archive path: a journal
// failure is logged and never changes a transfer's outcome.
type TransferLog interface {
	// CreateTransfer records a transfer that has just started.
	CreateTransfer(t *model.Transfer) error

	// FinishTransfer records the final state, counters and finish time of
	// a transfer created earlier.
	FinishTransfer(t *model.Transfer) error

	// RecentTransfers returns up to limit transfers, newest first.
	RecentTransfers(limit int) ([]*model.Transfer, error)
}

// reasonCode maps a transfer error to its journal reason.
func reasonCode(err error) string {
	var te *TransferError
	if !errors.As(err, &te) {
		return ""
	}
	switch te.Reason {
	case ErrCancelled:
		return "cancelled"
	case ErrTooSlowToSize:
		return "too_slow_to_size"
	default:
		return "processing"
	}
}
