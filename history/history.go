// Copyright (c) 2026, The Compartmental Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package history implements HistoryRing, a bounded per-probe voltage
// buffer fed by the host driver once per tick and digested by package
// analysis every analysis_interval ticks. It is single-writer
// (the host driver) and single-reader (the analyzer); no internal
// locking is needed as long as the driver sequences the two, which is
// package driver's job to uphold.
package history

import (
	"fmt"

	"github.com/emer/emergent/v2/ringidx"
)

// DefaultCapacity is the per-probe ring capacity used when New is
// passed a non-positive one.
const DefaultCapacity = 10000

// MinAnalysisSamples is the shortest trace package analysis will
// accept before falling back to the degenerate Noise/NaN result.
const MinAnalysisSamples = 2000

// Ring holds one bounded circular buffer per configured probe
// compartment, each indexed with an emergent ringidx.Idx so wraparound
// overwrite of the oldest sample needs no copying.
type Ring struct {
	probes   []int32
	buf      [][]float32
	idx      []ringidx.Idx
	capacity int
}

// New allocates a Ring for the given probe global-compartment indices,
// each with room for capacity samples. capacity <= 0 uses
// DefaultCapacity.
func New(probes []int, capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	r := &Ring{
		probes:   make([]int32, len(probes)),
		buf:      make([][]float32, len(probes)),
		idx:      make([]ringidx.Idx, len(probes)),
		capacity: capacity,
	}
	for i, p := range probes {
		r.probes[i] = int32(p)
		r.buf[i] = make([]float32, capacity)
		r.idx[i] = ringidx.Idx{Max: capacity}
	}
	return r
}

// NumProbes returns the configured probe count.
func (r *Ring) NumProbes() int { return len(r.probes) }

// Probe returns the global compartment index sampled by probe i.
func (r *Ring) Probe(i int) int { return int(r.probes[i]) }

// Len returns the number of samples currently buffered for probe i
// (capped at capacity).
func (r *Ring) Len(i int) int { return r.idx[i].Len }

// Reset clears every probe's ring back to empty, without reallocating
// the underlying buffers. Called by HostDriver.Initialize.
func (r *Ring) Reset() {
	for i := range r.idx {
		r.idx[i].Reset()
	}
}

// Sample appends one voltage sample to every probe's ring, calling
// voltageAt once per probe with that probe's global compartment index.
// Must be called exactly once per tick, after the kernel has committed
// the tick's new voltages and before the controller writes the next
// tick's parameters.
func (r *Ring) Sample(voltageAt func(globalIdx int) float32) {
	for p := range r.probes {
		ri := &r.idx[p]
		ri.Add(1)
		r.buf[p][ri.LastIdx()] = voltageAt(int(r.probes[p]))
	}
}

// Read returns a dense copy of probe i's buffered trace, ordered
// oldest to newest. Reads of a configured probe never fail (only an
// out-of-range probe index is an error); the returned slice may be
// shorter than capacity while the ring is still warming up.
func (r *Ring) Read(i int) ([]float32, error) {
	if i < 0 || i >= len(r.probes) {
		return nil, fmt.Errorf("history: probe index %d out of range [0,%d)", i, len(r.probes))
	}
	ri := r.idx[i]
	out := make([]float32, ri.Len)
	for j := 0; j < ri.Len; j++ {
		out[j] = r.buf[i][ri.Idx(j)]
	}
	return out, nil
}
