package system

import (
	"context"
	"runtime"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Resources is a snapshot of the host capacity.
type Resources struct {
	LogicalCPUs     int
	TotalMemory     uint64
	AvailableMemory uint64
}

// DetectResources queries the host, falling back to runtime.NumCPU when
// the CPU count is unavailable.
func DetectResources(ctx context.Context) Resources {
	r := Resources{LogicalCPUs: runtime.NumCPU()}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil && n > 0 {
		r.LogicalCPUs = n
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		r.TotalMemory = vm.Total
		r.AvailableMemory = vm.Available
	}
	log.Debug().
		Int("cpus", r.LogicalCPUs).
		Uint64("mem_total_mb", r.TotalMemory>>20).
		Uint64("mem_available_mb", r.AvailableMemory>>20).
		Msg("host resources")
	return r
}

// EncoderThreads leaves one core for the rest of the process, capped at 16.
func (r Resources) EncoderThreads() int {
	n := r.LogicalCPUs - 1
	if n < 1 {
		n = 1
	}
	if n > 16 {
		n = 16
	}
	return n
}
