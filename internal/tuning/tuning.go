// Package tuning derives performance defaults (worker count, channel
// depth, accumulator capacity) from the host's CPU topology and memory,
// the way eutils.SetTunings does — but as an explicit value passed into
// the controller rather than a process-wide mutable slot.
package tuning

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
	"github.com/pbnjay/memory"
)

// Profile holds the derived performance knobs for one build run.
type Profile struct {
	Workers      int
	ChanDepth    int
	TreeCapacity int
}

// Default constructs a Profile from host CPU topology and available
// memory, mirroring eutils' "best performance measurement" reality
// checks: prefer physical-core counts over raw hyperthread counts when
// the topology supports it.
func Default() Profile {
	nCPU := runtime.NumCPU()
	if nCPU < 1 {
		nCPU = 1
	}

	workers := nCPU
	if cpuid.CPU.ThreadsPerCore > 1 {
		cores := nCPU / cpuid.CPU.ThreadsPerCore
		if cores > 0 {
			workers = cores
		}
	}
	if workers < 1 {
		workers = 1
	}

	chanDepth := workers * 4
	if chanDepth < 8 {
		chanDepth = 8
	}

	capacity := defaultTreeCapacity(workers)

	return Profile{
		Workers:      workers,
		ChanDepth:    chanDepth,
		TreeCapacity: capacity,
	}
}

// defaultTreeCapacity sizes a per-worker accumulator so that W workers
// together stay within a conservative fraction of total host memory,
// assuming a rough average posting-entry footprint.
func defaultTreeCapacity(workers int) int {
	const avgTermFootprint = 256 // bytes, rough IndexedTerm + one Posting
	const memoryFraction = 4     // use at most 1/4 of total RAM across all workers

	total := memory.TotalMemory()
	if total == 0 {
		return 1 << 16
	}

	budget := total / memoryFraction
	perWorker := budget / uint64(workers)
	capacity := perWorker / avgTermFootprint

	const floor = 1 << 12
	const ceiling = 1 << 22
	if capacity < floor {
		return floor
	}
	if capacity > ceiling {
		return ceiling
	}
	return int(capacity)
}

// Override returns a copy of the receiver with each positive argument
// replacing the matching field, so a caller can selectively replace only
// the knobs it cares about while inheriting sane defaults for the rest.
func (p Profile) Override(workers, chanDepth, treeCapacity int) Profile {
	out := p
	if workers > 0 {
		out.Workers = workers
	}
	if chanDepth > 0 {
		out.ChanDepth = chanDepth
	}
	if treeCapacity > 0 {
		out.TreeCapacity = treeCapacity
	}
	return out
}
