// Package memory provides the process memory sampler and reclamation hint
// used by the archive resource monitor.
package memory

import (
	"runtime/debug"
	"sync/atomic"

	"dirzip/internal/dirzip"
)

// Sampler reports the memory the process currently holds. On Linux it is
// the resident set size; elsewhere it is what the Go runtime has mapped
// and not yet returned to the OS.
type Sampler struct{}

var _ dirzip.MemorySampler = Sampler{}

// NewSampler creates a Sampler for the current platform.
func NewSampler() Sampler { return Sampler{} }

// GCReclaimer returns freed heap memory to the OS in the background. At
// most one reclamation runs at a time; hints arriving while one is running
// are dropped.
type GCReclaimer struct {
	running atomic.Bool
	free    func()
	done    func()
}

var _ dirzip.Reclaimer = (*GCReclaimer)(nil)

// NewGCReclaimer creates a reclaimer backed by debug.FreeOSMemory.
func NewGCReclaimer() *GCReclaimer {
	return &GCReclaimer{free: debug.FreeOSMemory}
}

// Reclaim starts a reclamation unless one is already in flight. It never
// blocks.
func (r *GCReclaimer) Reclaim() {
	if !r.running.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer r.running.Store(false)
		if r.done != nil {
			defer r.done()
		}
		r.free()
	}()
}

// Running reports whether a reclamation is in flight.
func (r *GCReclaimer) Running() bool {
	return r.running.Load()
}
