package memory

import (
	"testing"
	"time"
)

func TestSampler_MemoryInUse(t *testing.T) {
	n, err := NewSampler().MemoryInUse()
	if err != nil {
		t.Fatalf("MemoryInUse() error = %v", err)
	}
	if n == 0 {
		t.Error("MemoryInUse() = 0, want a positive footprint")
	}
}

func TestGCReclaimer_Reclaim(t *testing.T) {
	t.Run("runs the free function in the background", func(t *testing.T) {
		finished := make(chan struct{})
		r := &GCReclaimer{
			free: func() {},
			done: func() { close(finished) },
		}
		r.Reclaim()
		select {
		case <-finished:
		case <-time.After(5 * time.Second):
			t.Fatal("reclamation never ran")
		}
	})

	t.Run("drops hints while one is in flight", func(t *testing.T) {
		release := make(chan struct{})
		started := make(chan struct{}, 10)
		r := &GCReclaimer{free: func() {
			started <- struct{}{}
			<-release
		}}

		r.Reclaim()
		<-started
		r.Reclaim()
		r.Reclaim()
		if !r.Running() {
			t.Error("Running() = false while free is blocked")
		}
		close(release)

		if len(started) != 0 {
			t.Errorf("extra reclamations started: %d", len(started))
		}
	})

	t.Run("does not block the caller", func(t *testing.T) {
		block := make(chan struct{})
		defer close(block)
		r := &GCReclaimer{free: func() { <-block }}

		done := make(chan struct{})
		go func() {
			r.Reclaim()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("Reclaim() blocked")
		}
	})
}
