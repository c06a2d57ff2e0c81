// Copyright (c) 2026, The Compartmental Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compartment

import (
	"fmt"

	"github.com/emer/etable/v2/etensor"
)

// Store is the contiguous array of all compartments of all neurons
// in a simulation run. It is array-of-structs rather than
// struct-of-arrays: every Compartment is self-contained, which keeps
// the parent/child index arithmetic trivial and lets a device backend
// memcpy the whole slice as a single structured buffer.
//
// Contract: writes from the host and kernel invocations are
// serialized by the caller (package driver) -- Store itself does no
// locking; ensuring no two kernel launches overlap is the host
// driver's job to uphold, not the store's.
type Store struct {
	Comps       []Compartment
	ExtCurrent  []float32 // pA, parallel to Comps, host-writable, kernel-read-only
	Glutamate   []float32 // [0,1] instantaneous NMDA ligand drive, parallel to Comps, host-writable
	channelSet  ChannelSet
	neuronCount int
	compsPer    int
}

// New allocates a Store for numNeurons neurons of compsPerNeuron
// compartments each. The core ships exactly one template
// (CompsPerNeuron == 152, built by package morphology), so any other
// count is a configuration error the caller must fix.
func New(numNeurons, compsPerNeuron int, set ChannelSet) (*Store, error) {
	if compsPerNeuron != CompsPerNeuron {
		return nil, fmt.Errorf("compartment: unsupported compartments-per-neuron %d, only the %d-compartment pyramidal template is supported", compsPerNeuron, CompsPerNeuron)
	}
	if numNeurons < 0 {
		return nil, fmt.Errorf("compartment: negative neuron count %d", numNeurons)
	}
	total := numNeurons * compsPerNeuron
	s := &Store{
		Comps:       make([]Compartment, total),
		ExtCurrent:  make([]float32, total),
		Glutamate:   make([]float32, total),
		channelSet:  set,
		neuronCount: numNeurons,
		compsPer:    compsPerNeuron,
	}
	for i := range s.Comps {
		s.Comps[i].ParentIdx = NoParent
		for k := range s.Comps[i].Children {
			s.Comps[i].Children[k] = NoParent
		}
	}
	return s, nil
}

// TotalCount returns the total number of compartments across all
// neurons.
func (s *Store) TotalCount() int { return len(s.Comps) }

// NeuronCount returns the number of neurons.
func (s *Store) NeuronCount() int { return s.neuronCount }

// CompsPerNeuron returns the fixed compartment count per neuron.
func (s *Store) CompsPerNeuron() int { return s.compsPer }

// ChannelSet returns the channel set this store was constructed with.
func (s *Store) ChannelSet() ChannelSet { return s.channelSet }

// NeuronBase returns the global index of neuron idx's root (soma)
// compartment -- the start of its contiguous range.
func (s *Store) NeuronBase(neuronIdx int) int { return neuronIdx * s.compsPer }

// SetExternalCurrent writes the external current (pA) for a single
// global compartment index. Read-only during a kernel step.
func (s *Store) SetExternalCurrent(globalIdx int, pA float32) error {
	if globalIdx < 0 || globalIdx >= len(s.ExtCurrent) {
		return fmt.Errorf("compartment: index %d out of range [0,%d)", globalIdx, len(s.ExtCurrent))
	}
	s.ExtCurrent[globalIdx] = pA
	return nil
}

// SetGlutamate writes the instantaneous NMDA ligand drive ([0,1]) for
// a single global compartment index. With no caller ever writing this
// buffer it stays at its zero value, and NMDA contributes zero current
// regardless of voltage.
func (s *Store) SetGlutamate(globalIdx int, level float32) error {
	if globalIdx < 0 || globalIdx >= len(s.Glutamate) {
		return fmt.Errorf("compartment: index %d out of range [0,%d)", globalIdx, len(s.Glutamate))
	}
	s.Glutamate[globalIdx] = level
	return nil
}

// SnapshotVoltages returns a dense copy of every compartment's
// voltage, ordered by global index. The returned tensor is backed by
// github.com/emer/etable/v2/etensor.Float32 so a consumer can plug it
// directly into the wider emer table/logging ecosystem; .Values is
// the plain []float32 view most callers want.
func (s *Store) SnapshotVoltages() *etensor.Float32 {
	t := etensor.NewFloat32([]int{len(s.Comps)}, nil, []string{"Compartment"})
	for i := range s.Comps {
		t.Values[i] = s.Comps[i].Voltage
	}
	return t
}

// SnapshotNeuron returns a dense copy of one neuron's voltages, in
// intra-neuron ordinal order.
func (s *Store) SnapshotNeuron(neuronIdx int) (*etensor.Float32, error) {
	if neuronIdx < 0 || neuronIdx >= s.neuronCount {
		return nil, fmt.Errorf("compartment: neuron index %d out of range [0,%d)", neuronIdx, s.neuronCount)
	}
	base := s.NeuronBase(neuronIdx)
	t := etensor.NewFloat32([]int{s.compsPer}, nil, []string{"Compartment"})
	for i := 0; i < s.compsPer; i++ {
		t.Values[i] = s.Comps[base+i].Voltage
	}
	return t, nil
}

// CheckInvariants verifies the structural and geometric invariants:
// parent/child consistency, child-slot sentinels, and positive derived
// geometry. Voltage and gating range are checked per-tick by the
// kernel's clamp and are not re-verified here. Intended for tests, not
// the hot per-tick loop.
func (s *Store) CheckInvariants() error {
	for i := range s.Comps {
		c := &s.Comps[i]
		if c.IsRoot() != (c.Ordinal == 0) {
			return fmt.Errorf("compartment: root/ordinal mismatch at %d: IsRoot=%v Ordinal=%d", i, c.IsRoot(), c.Ordinal)
		}
		if c.NumChildren < 0 || c.NumChildren > ChildCapacity {
			return fmt.Errorf("compartment: child count out of range at %d: NumChildren=%d", i, c.NumChildren)
		}
		for k := int32(0); k < c.NumChildren; k++ {
			ci := c.Children[k]
			if ci < 0 || int(ci) >= len(s.Comps) {
				return fmt.Errorf("compartment: child slot out of range at %d: slot %d value %d", i, k, ci)
			}
			if s.Comps[ci].ParentIdx != int32(i) {
				return fmt.Errorf("compartment: child %d of %d does not point back as parent", ci, i)
			}
		}
		for k := c.NumChildren; k < ChildCapacity; k++ {
			if c.Children[k] != NoParent {
				return fmt.Errorf("compartment: unused child slot %d not sentinel at %d", k, i)
			}
		}
		if c.Capacitance <= 0 || c.AxialResistance <= 0 || c.Area <= 0 {
			return fmt.Errorf("compartment: non-positive derived geometry at %d: Capacitance=%g AxialResistance=%g Area=%g", i, c.Capacitance, c.AxialResistance, c.Area)
		}
		if c.CaSK < CaBaseline-1e-9 || c.CaSK > CaMax+1e-9 || c.CaBK < CaBaseline-1e-9 || c.CaBK > CaMax+1e-9 {
			return fmt.Errorf("compartment: calcium pool out of range at %d: CaSK=%g CaBK=%g", i, c.CaSK, c.CaBK)
		}
	}
	if s.neuronCount > 0 {
		for n := 0; n < s.neuronCount; n++ {
			base := s.NeuronBase(n)
			for i := 0; i < s.compsPer; i++ {
				if s.Comps[base+i].NeuronIdx != int32(n) {
					return fmt.Errorf("compartment: compartment %d claims neuron %d, expected %d", base+i, s.Comps[base+i].NeuronIdx, n)
				}
			}
		}
	}
	return nil
}

// ForEachNeuron calls fn once per neuron with that neuron's
// contiguous compartment slice.
func (s *Store) ForEachNeuron(fn func(neuronIdx int, comps []Compartment)) {
	for n := 0; n < s.neuronCount; n++ {
		base := s.NeuronBase(n)
		fn(n, s.Comps[base:base+s.compsPer])
	}
}
