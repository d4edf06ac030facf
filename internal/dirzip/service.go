package dirzip

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dirzip/internal/model"
)

// Transfer defaults.
const (
	DefaultTimeout     = time.Hour
	DefaultSizeTimeout = 20 * time.Second
	DefaultChunkSize   = 64 << 10
)

// Options tunes an ArchiveService. Zero values take the defaults above.
type Options struct {
	// Timeout bounds a whole transfer, sizing included.
	Timeout time.Duration
	// SizeTimeout bounds length precomputation.
	SizeTimeout time.Duration
	// ChunkSize is the read size per source file; cancellation takes
	// effect within one chunk.
	ChunkSize int
	// StreamOnSlowSize streams without a declared length when sizing
	// times out, instead of failing with ErrTooSlowToSize.
	StreamOnSlowSize bool
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.SizeTimeout <= 0 {
		o.SizeTimeout = DefaultSizeTimeout
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	return o
}

// Request asks for the archive of one directory.
type Request struct {
	Root            string // resolved, access-checked directory
	Name            string // folder name as the caller knows it
	Mode            string // journal label, e.g. "http" or "pack"
	CalculateLength bool
	Timeout         time.Duration // overrides Options.Timeout when positive
}

// Destination is the real sink of a transfer. Declare is called exactly
// once, before the first archive byte, with the exact archive length or -1
// when the length is not known.
type Destination interface {
	Sink
	Declare(length int64) error
}

// Result describes a transfer, successful or not.
type Result struct {
	ID     string
	State  State
	Length int64 // declared length, -1 if none
	Stats  Stats
}

// ArchiveService composes enumeration, encoding, flow control and resource
// monitoring into transfers.
type ArchiveService struct {
	trees   TreeSource
	policy  FlowPolicy
	monitor *ResourceMonitor
	journal TransferLog
	logger  Logger
	clock   Clock
	idgen   IDGenerator
	opts    Options
}

// NewArchiveService creates an ArchiveService. monitor and journal may be
// nil.
func NewArchiveService(trees TreeSource, policy FlowPolicy, monitor *ResourceMonitor, journal TransferLog, logger Logger, clock Clock, idgen IDGenerator, opts Options) *ArchiveService {
	return &ArchiveService{
		trees:   trees,
		policy:  policy.WithDefaults(),
		monitor: monitor,
		journal: journal,
		logger:  logger,
		clock:   clock,
		idgen:   idgen,
		opts:    opts.withDefaults(),
	}
}

// Measure returns the exact length of root's archive by encoding it into a
// CountingSink under the sizing sub-deadline. It returns ErrTooSlowToSize
// when the sub-deadline fires first.
func (s *ArchiveService) Measure(ctx context.Context, root string) (int64, error) {
	tree, err := s.trees.OpenTree(root)
	if err != nil {
		return 0, fmt.Errorf("opening tree: %w", err)
	}
	return s.measure(ctx, tree)
}

func (s *ArchiveService) measure(ctx context.Context, tree Enumerator) (int64, error) {
	sizeCtx, cancel := context.WithTimeout(ctx, s.opts.SizeTimeout)
	defer cancel()

	counter := &CountingSink{}
	if _, err := s.encode(sizeCtx, tree, counter); err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("measuring archive: %w", ctx.Err())
		}
		if sizeCtx.Err() != nil {
			return 0, fmt.Errorf("%w: not done after %s", ErrTooSlowToSize, s.opts.SizeTimeout)
		}
		return 0, fmt.Errorf("measuring archive: %w", err)
	}
	return counter.Len(), nil
}

// Stream encodes root's archive into sink without sizing or journaling.
func (s *ArchiveService) Stream(ctx context.Context, root string, sink Sink) (*Stats, error) {
	tree, err := s.trees.OpenTree(root)
	if err != nil {
		return nil, fmt.Errorf("opening tree: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	return s.encode(ctx, tree, sink)
}

// Transfer runs a full transfer of req.Root into dst: optional sizing, then
// the streaming pass. The returned Result is never nil. A non-nil error is
// always a *TransferError; bytes already handed to dst are not retracted.
func (s *ArchiveService) Transfer(ctx context.Context, req Request, dst Destination) (res *Result, err error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = s.opts.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := s.clock.Now()
	res = &Result{ID: s.idgen.New(), State: StateIdle, Length: -1}
	record := s.journalStart(res, req, started)
	defer func() {
		s.journalFinish(record, res, err)
		s.logOutcome(req, res, err, s.clock.Now().Sub(started))
	}()

	tree, err := s.trees.OpenTree(req.Root)
	if err != nil {
		return res, s.fail(ctx, res, fmt.Errorf("opening tree: %w", err))
	}

	if req.CalculateLength {
		res.State = StatePrecomputing
		n, err := s.measure(ctx, tree)
		switch {
		case err == nil:
			res.Length = n
		case ctx.Err() == nil && errors.Is(err, ErrTooSlowToSize) && s.opts.StreamOnSlowSize:
			s.logger.Warn("sizing timed out, streaming without length", "transfer", res.ID, "folder", req.Name)
		default:
			return res, s.fail(ctx, res, err)
		}
	}

	if err := dst.Declare(res.Length); err != nil {
		return res, s.fail(ctx, res, fmt.Errorf("declaring length: %w", err))
	}

	res.State = StateStreaming
	stats, err := s.encode(ctx, tree, dst)
	res.Stats = *stats
	if err != nil {
		return res, s.fail(ctx, res, err)
	}
	if res.Length >= 0 && stats.BytesWritten != res.Length {
		return res, s.fail(ctx, res, fmt.Errorf("tree changed between passes: streamed %d bytes, declared %d", stats.BytesWritten, res.Length))
	}

	res.State = StateFinalized
	return res, nil
}

// fail classifies err, moves res to its terminal state and returns the
// classified error.
func (s *ArchiveService) fail(ctx context.Context, res *Result, err error) error {
	te := &TransferError{From: res.State, Err: err}
	switch {
	case ctx.Err() != nil:
		te.State, te.Reason = StateCancelled, ErrCancelled
	case errors.Is(err, ErrTooSlowToSize):
		te.State, te.Reason = StateFailed, ErrTooSlowToSize
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		te.State, te.Reason = StateCancelled, ErrCancelled
	default:
		te.State, te.Reason = StateFailed, ErrProcessing
	}
	res.State = te.State
	return te
}

func (s *ArchiveService) logOutcome(req Request, res *Result, err error, elapsed time.Duration) {
	args := []any{
		"transfer", res.ID,
		"folder", req.Name,
		"state", string(res.State),
		"files", res.Stats.Files,
		"bytes", res.Stats.BytesWritten,
		"duration", elapsed.Truncate(time.Millisecond).String(),
	}
	switch {
	case err == nil:
		s.logger.Info("transfer finalized", args...)
	case res.State == StateCancelled:
		s.logger.Info("transfer cancelled", append(args, "error", err)...)
	default:
		s.logger.Error("transfer failed", append(args, "error", err)...)
	}
}

func (s *ArchiveService) journalStart(res *Result, req Request, started time.Time) *model.Transfer {
	if s.journal == nil {
		return nil
	}
	t := &model.Transfer{
		ID:             res.ID,
		Folder:         req.Name,
		Mode:           req.Mode,
		State:          string(res.State),
		DeclaredLength: -1,
		StartedAt:      started,
	}
	if err := s.journal.CreateTransfer(t); err != nil {
		s.logger.Warn("journaling transfer start", "transfer", res.ID, "error", err)
		return nil
	}
	return t
}

func (s *ArchiveService) journalFinish(t *model.Transfer, res *Result, err error) {
	if t == nil {
		return
	}
	t.State = string(res.State)
	t.Reason = reasonCode(err)
	t.DeclaredLength = res.Length
	t.BytesWritten = res.Stats.BytesWritten
	t.Files = res.Stats.Files
	t.FinishedAt.Time = s.clock.Now()
	t.FinishedAt.Valid = true
	if err := s.journal.FinishTransfer(t); err != nil {
		s.logger.Warn("journaling transfer finish", "transfer", res.ID, "error", err)
	}
}
