//go:build !linux

package memory

import (
	"errors"
	"runtime/metrics"
)

const (
	metricTotal    = "/memory/classes/total:bytes"
	metricReleased = "/memory/classes/heap/released:bytes"
)

// MemoryInUse returns memory mapped by the Go runtime minus heap memory
// already released to the OS.
func (Sampler) MemoryInUse() (uint64, error) {
	samples := []metrics.Sample{{Name: metricTotal}, {Name: metricReleased}}
	metrics.Read(samples)
	for _, s := range samples {
		if s.Value.Kind() != metrics.KindUint64 {
			return 0, errors.New("runtime memory metrics unavailable")
		}
	}
	total, released := samples[0].Value.Uint64(), samples[1].Value.Uint64()
	if released > total {
		return 0, nil
	}
	return total - released, nil
}
