package dirzip

import "time"

// Resource monitor defaults.
const (
	DefaultCheckFloor     int64  = 100 << 20
	DefaultCheckInterval         = 5 * time.Second
	DefaultMemoryCeiling  uint64 = 200_000_000
)

// MemorySampler reads the process's current memory footprint. It is the
// only process-wide state a transfer looks at.
type MemorySampler interface {
	MemoryInUse() (uint64, error)
}

// Reclaimer asks the runtime to give memory back. Reclaim must return
// immediately; whether anything is reclaimed is up to the implementation.
type Reclaimer interface {
	Reclaim()
}

// ResourceMonitor samples memory at most once per Interval, and only after
// CheckFloor bytes have been processed since the previous sample. When the
// sample exceeds Ceiling it issues a reclamation hint. It never fails a
// transfer.
type ResourceMonitor struct {
	sampler   MemorySampler
	reclaimer Reclaimer
	clock     Clock
	logger    Logger

	CheckFloor int64
	Interval   time.Duration
	Ceiling    uint64
}

// NewResourceMonitor creates a monitor with the default thresholds.
func NewResourceMonitor(sampler MemorySampler, reclaimer Reclaimer, clock Clock, logger Logger) *ResourceMonitor {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &ResourceMonitor{
		sampler:    sampler,
		reclaimer:  reclaimer,
		clock:      clock,
		logger:     logger,
		CheckFloor: DefaultCheckFloor,
		Interval:   DefaultCheckInterval,
		Ceiling:    DefaultMemoryCeiling,
	}
}

// Observe checks p against the sampling window and samples when due.
// It reports whether a sample was taken and whether reclamation was
// requested. A nil monitor never samples.
func (m *ResourceMonitor) Observe(p *Progress) (sampled, reclaimed bool) {
	if m == nil || m.sampler == nil {
		return false, false
	}
	if p.SinceResourceCheck <= m.CheckFloor {
		return false, false
	}
	now := m.clock.Now()
	if now.Sub(p.LastResourceCheck) <= m.Interval {
		return false, false
	}

	p.SinceResourceCheck = 0
	p.LastResourceCheck = now

	inUse, err := m.sampler.MemoryInUse()
	if err != nil {
		m.logger.Debug("memory sample failed", "error", err)
		return true, false
	}
	if inUse <= m.Ceiling || m.reclaimer == nil {
		return true, false
	}
	m.logger.Debug("requesting memory reclamation", "in_use", inUse, "ceiling", m.Ceiling)
	m.reclaimer.Reclaim()
	return true, true
}
