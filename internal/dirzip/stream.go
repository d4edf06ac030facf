package dirzip

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// streamer runs one encode pass of a tree into a sink. It is created per
// pass and owns the pass's counters.
type streamer struct {
	enc      *Encoder
	sink     Sink
	policy   FlowPolicy
	monitor  *ResourceMonitor
	clock    Clock
	buf      []byte
	progress Progress
	stats    Stats
}

// encode is the single encode path shared by the counting and the real
// pass. Both passes make identical encoder calls for an unchanged tree, so
// the counted length equals the streamed length.
func (s *ArchiveService) encode(ctx context.Context, tree Enumerator, sink Sink) (*Stats, error) {
	st := &streamer{
		enc:     NewEncoder(sink),
		sink:    sink,
		policy:  s.policy,
		monitor: s.monitor,
		clock:   s.clock,
		buf:     make([]byte, s.opts.ChunkSize),
	}
	st.progress.LastResourceCheck = s.clock.Now()

	for entry, err := range tree.Files(ctx) {
		if err != nil {
			return st.result(), fmt.Errorf("enumerating files: %w", err)
		}
		if err := st.copyEntry(ctx, entry); err != nil {
			return st.result(), err
		}
	}

	if err := st.enc.Finalize(ctx); err != nil {
		return st.result(), fmt.Errorf("finalizing archive: %w", err)
	}
	if err := st.flushSink(ctx, false); err != nil {
		return st.result(), err
	}
	return st.result(), nil
}

func (st *streamer) result() *Stats {
	stats := st.stats
	stats.BytesWritten = st.enc.Written()
	return &stats
}

// copyEntry encodes one file. The source handle is released on every
// return path.
func (st *streamer) copyEntry(ctx context.Context, entry FileEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("opening %q: %w", entry.Name, err)
	}
	defer src.Close()

	w, err := st.enc.Begin(ctx, EntryHeader{
		Name:     entry.Name,
		Method:   Deflate,
		Modified: entry.ModTime,
		Mode:     entry.Mode,
	})
	if err != nil {
		return err
	}

	st.progress.SinceEntryFlush = 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, rerr := io.ReadFull(src, st.buf)
		if n > 0 {
			if _, err := w.Write(ctx, st.buf[:n]); err != nil {
				return err
			}
			st.progress.add(int64(n))
			st.stats.BytesRead += int64(n)

			if st.policy.ShouldFlushEntry(st.progress.SinceEntryFlush, entry.Size) {
				if err := st.flushEntry(ctx, w); err != nil {
					return err
				}
				if st.policy.ShouldFlushSink(st.progress.SinceSinkFlush) {
					if err := st.flushSink(ctx, true); err != nil {
						return err
					}
				}
			}
			st.observe()
		}
		if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
			break
		}
		if rerr != nil {
			return fmt.Errorf("reading %q: %w", entry.Name, rerr)
		}
	}

	if err := st.flushEntry(ctx, w); err != nil {
		return err
	}
	if err := w.Close(ctx); err != nil {
		return err
	}

	st.progress.FilesProcessed++
	st.stats.Files++
	if st.policy.ShouldFlushSinkAfterFile(st.progress.FilesProcessed) {
		return st.flushSink(ctx, false)
	}
	return nil
}

func (st *streamer) flushEntry(ctx context.Context, w *EntryWriter) error {
	if err := w.Flush(ctx); err != nil {
		return err
	}
	st.progress.SinceEntryFlush = 0
	st.stats.EntryFlushes++
	return nil
}

// flushSink flushes the sink and, when yield is set, pauses so the
// destination can drain.
func (st *streamer) flushSink(ctx context.Context, yield bool) error {
	if err := st.sink.Flush(ctx); err != nil {
		return fmt.Errorf("flushing sink: %w", err)
	}
	st.progress.SinceSinkFlush = 0
	st.stats.SinkFlushes++
	if yield && st.policy.Yield > 0 {
		return st.clock.Sleep(ctx, st.policy.Yield)
	}
	return nil
}

func (st *streamer) observe() {
	sampled, reclaimed := st.monitor.Observe(&st.progress)
	if sampled {
		st.stats.ResourceChecks++
	}
	if reclaimed {
		st.stats.Reclaims++
	}
}
