package testutil

import (
	"sync"

	"dirzip/internal/dirzip"
)

// FakeSampler reports a fixed memory footprint and counts samples.
type FakeSampler struct {
	mu    sync.Mutex
	InUse uint64
	Err   error
	calls int
}

var _ dirzip.MemorySampler = (*FakeSampler)(nil)

func (s *FakeSampler) MemoryInUse() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.InUse, s.Err
}

// Calls returns how many samples were taken.
func (s *FakeSampler) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// CountingReclaimer counts reclamation hints.
type CountingReclaimer struct {
	mu    sync.Mutex
	calls int
}

var _ dirzip.Reclaimer = (*CountingReclaimer)(nil)

func (r *CountingReclaimer) Reclaim() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
}

// Calls returns how many hints were issued.
func (r *CountingReclaimer) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}
