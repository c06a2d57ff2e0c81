// Copyright (c) 2026, The Compartmental Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/emer/compartmental/v2/compartment"
	"github.com/emer/compartmental/v2/morphology"
)

func buildStore(t *testing.T, numNeurons int, set compartment.ChannelSet) *compartment.Store {
	t.Helper()
	s, err := compartment.New(numNeurons, compartment.CompsPerNeuron, set)
	if err != nil {
		t.Fatalf("compartment.New: %v", err)
	}
	if err := morphology.Build(s); err != nil {
		t.Fatalf("morphology.Build: %v", err)
	}
	return s
}

func stepAll(k *Kernel, s *compartment.Store) {
	for i := range s.Comps {
		k.StepCompartment(s, i)
	}
	k.Commit(s)
}

func TestNewRejectsNonPositiveDT(t *testing.T) {
	if _, err := New(0, 10); err == nil {
		t.Errorf("expected error for dt == 0")
	}
	if _, err := New(-0.01, 10); err == nil {
		t.Errorf("expected error for negative dt")
	}
}

func TestRestingNeuronStaysNearRest(t *testing.T) {
	s := buildStore(t, 1, compartment.Baseline)
	k, err := New(0.01, s.TotalCount())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for tick := 0; tick < 200; tick++ {
		stepAll(k, s)
	}
	for i, c := range s.Comps {
		if math32.Abs(c.Voltage+70) >= 5 {
			t.Errorf("comp %d: voltage %v drifted more than 5mV from rest with no input", i, c.Voltage)
		}
	}
}

func TestClampVoltage(t *testing.T) {
	if got := clampVoltage(1000); got != compartment.VoltageMax {
		t.Errorf("clampVoltage(1000) = %v, want %v", got, compartment.VoltageMax)
	}
	if got := clampVoltage(-1000); got != compartment.VoltageMin {
		t.Errorf("clampVoltage(-1000) = %v, want %v", got, compartment.VoltageMin)
	}
	if got := clampVoltage(-70); got != -70 {
		t.Errorf("clampVoltage(-70) = %v, want -70", got)
	}
}

// TestAxialCurrentSignConvention: a depolarized neighbor
// should source current into a more hyperpolarized compartment, never
// the reverse.
func TestAxialCurrentSignConvention(t *testing.T) {
	s := buildStore(t, 1, compartment.Baseline)
	root := 0
	childIdx := int(s.Comps[root].Children[0])
	s.Comps[childIdx].Voltage = -70
	s.Comps[root].Voltage = -40 // depolarized relative to its child

	iChild := axialCurrent(s, &s.Comps[childIdx], s.Comps[childIdx].Voltage)
	if iChild <= 0 {
		t.Errorf("expected positive (depolarizing) axial current into the hyperpolarized child, got %v", iChild)
	}
}

// TestAxialCurrentRootHasNoParentTerm exercises IsRoot's short-circuit
// in the axial accumulation.
func TestAxialCurrentRootHasNoParentTerm(t *testing.T) {
	s := buildStore(t, 1, compartment.Baseline)
	root := &s.Comps[0]
	if !root.IsRoot() {
		t.Fatalf("expected compartment 0 to be the soma root")
	}
	// Current at the root is entirely from children -- setting the
	// children to the root's own voltage should drive it to zero.
	for k := int32(0); k < root.NumChildren; k++ {
		s.Comps[root.Children[k]].Voltage = root.Voltage
	}
	if got := axialCurrent(s, root, root.Voltage); got != 0 {
		t.Errorf("expected zero axial current when every child matches the root's voltage, got %v", got)
	}
}

// TestAxialKirchhoffConservation checks the edge-attribution rule: the
// axial resistor between two adjacent compartments belongs to the
// child, so the current the parent sees from a child is exactly the
// negative of what the child sees from the parent -- charge moved
// across every edge is conserved.
func TestAxialKirchhoffConservation(t *testing.T) {
	s := buildStore(t, 1, compartment.Baseline)
	for i := range s.Comps {
		s.Comps[i].Voltage = -70 + float32(i%13) // arbitrary spread
	}
	for i := range s.Comps {
		p := &s.Comps[i]
		for k := int32(0); k < p.NumChildren; k++ {
			child := &s.Comps[p.Children[k]]
			intoParent := (child.Voltage - p.Voltage) / p.ChildRAxial[k]
			intoChild := (p.Voltage - child.Voltage) / child.AxialResistance
			if math32.Abs(intoParent+intoChild) > 1e-6*math32.Abs(intoChild) {
				t.Fatalf("edge %d->%d: currents do not cancel: %v vs %v", i, p.Children[k], intoParent, intoChild)
			}
		}
	}
}

// TestAxialExchangeConvergesToWeightedMean integrates two coupled
// compartments under axial current alone: they must relax toward their
// capacitance-weighted mean voltage, with total charge C_a*V_a +
// C_b*V_b conserved throughout.
func TestAxialExchangeConvergesToWeightedMean(t *testing.T) {
	s := buildStore(t, 1, compartment.Baseline)
	soma := &s.Comps[0]
	child := &s.Comps[soma.Children[0]]
	va, vb := float32(-60), float32(-80)
	ca, cb := soma.Capacitance, child.Capacitance
	charge0 := ca*va + cb*vb

	const dt = 0.01
	r := child.AxialResistance
	for tick := 0; tick < 200000; tick++ {
		i := (vb - va) / r // pA into the soma side
		va += dt * i / ca
		vb += dt * -i / cb
	}

	mean := charge0 / (ca + cb)
	if math32.Abs(va-mean) > 0.01 || math32.Abs(vb-mean) > 0.01 {
		t.Errorf("expected convergence to weighted mean %v, got va=%v vb=%v", mean, va, vb)
	}
	charge1 := ca*va + cb*vb
	if math32.Abs(charge1-charge0) > 1e-3*math32.Abs(charge0) {
		t.Errorf("charge not conserved: %v -> %v", charge0, charge1)
	}
}

// TestNMDAZeroGlutamateContributesNoCurrent: with the NMDA
// ligand-gate input held at zero, the gate must not open regardless of
// voltage, so the advanced channel set's NMDA term stays silent.
func TestNMDAZeroGlutamateContributesNoCurrent(t *testing.T) {
	s := buildStore(t, 1, compartment.Advanced)
	for i := range s.Glutamate {
		s.Glutamate[i] = 0
	}
	k, err := New(0.01, s.TotalCount())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for tick := 0; tick < 500; tick++ {
		stepAll(k, s)
	}
	for i, c := range s.Comps {
		if c.NMDAM >= 1e-6 {
			t.Errorf("comp %d: NMDAM gate %v should stay at zero with no glutamate drive", i, c.NMDAM)
		}
	}
}

// TestNMDAGlutamateOpensGate is the positive counterpart: sustained
// glutamate should drive the NMDA gate open over many ticks.
func TestNMDAGlutamateOpensGate(t *testing.T) {
	s := buildStore(t, 1, compartment.Advanced)
	for i := range s.Glutamate {
		s.Glutamate[i] = 1
	}
	k, err := New(0.01, s.TotalCount())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for tick := 0; tick < 5000; tick++ {
		stepAll(k, s)
	}
	for i, c := range s.Comps {
		if c.NMDAM <= 0.5 {
			t.Errorf("comp %d: NMDAM gate %v should have opened substantially under sustained glutamate", i, c.NMDAM)
		}
	}
}

// TestBaselineChannelSetNeverTouchesAdvancedGates confirms the gating
// update's early return: a Baseline-set compartment's advanced gating variables
// never move from their zero-value start.
func TestBaselineChannelSetNeverTouchesAdvancedGates(t *testing.T) {
	s := buildStore(t, 1, compartment.Baseline)
	if err := s.SetExternalCurrent(0, 200); err != nil {
		t.Fatalf("SetExternalCurrent: %v", err)
	}
	k, err := New(0.01, s.TotalCount())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for tick := 0; tick < 100; tick++ {
		stepAll(k, s)
	}
	for i, c := range s.Comps {
		if c.Nav16M != 0 || c.Kv11N != 0 || c.NMDAM != 0 {
			t.Errorf("comp %d: expected advanced gates to stay at zero under the Baseline channel set", i)
		}
	}
}

// TestResizeReallocatesOnCountChange checks Resize's defensive resize
// path used by HostDriver.Initialize after rebuilding the store.
func TestResizeReallocatesOnCountChange(t *testing.T) {
	k, err := New(0.01, 10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(k.newVoltage) != 10 {
		t.Fatalf("expected initial buffer of length 10, got %d", len(k.newVoltage))
	}
	k.Resize(20)
	if len(k.newVoltage) != 20 {
		t.Errorf("expected resized buffer of length 20, got %d", len(k.newVoltage))
	}
	k.Resize(20)
	if len(k.newVoltage) != 20 {
		t.Errorf("Resize with an unchanged count should be a no-op, got length %d", len(k.newVoltage))
	}
}

// TestSomaInjectionDepolarizesSoma is a coarse end-to-end sanity
// check: a sustained depolarizing current into the soma should
// raise its voltage compared to an unstimulated run.
func TestSomaInjectionDepolarizesSoma(t *testing.T) {
	quiet := buildStore(t, 1, compartment.Baseline)
	driven := buildStore(t, 1, compartment.Baseline)
	if err := driven.SetExternalCurrent(0, 50); err != nil {
		t.Fatalf("SetExternalCurrent: %v", err)
	}

	kq, _ := New(0.01, quiet.TotalCount())
	kd, _ := New(0.01, driven.TotalCount())
	for tick := 0; tick < 50; tick++ {
		stepAll(kq, quiet)
		stepAll(kd, driven)
	}
	if driven.Comps[0].Voltage <= quiet.Comps[0].Voltage {
		t.Errorf("expected the driven soma (%v) to be more depolarized than the quiet one (%v)",
			driven.Comps[0].Voltage, quiet.Comps[0].Voltage)
	}
}
