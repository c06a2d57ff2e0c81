// Copyright (c) 2026, The Compartmental Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package compartment holds the flat, GPU-friendly array of
// compartment state and topology indices that every other package in
// this module reads and writes. The layout is array-of-structs: one
// Compartment per tree-topology segment, indexed by a single global
// id so a kernel can address any compartment -- and its parent and
// children -- without an indirection table.
package compartment

// ChildCapacity is the fixed number of child slots carried by every
// compartment. Unused slots hold NoParent as a sentinel and are never
// dereferenced. Capacity 8 comfortably covers the branching factor of
// the pyramidal template (see package morphology) and any other tree
// a caller might build.
const ChildCapacity = 8

// NoParent marks a compartment with no parent (the soma/root) and an
// unused child slot.
const NoParent = -1

// CompsPerNeuron is the only compartment count the core ships: the
// standard pyramidal template built by package morphology. Other
// templates are out of scope for this core and are the province of
// higher-level modules.
const CompsPerNeuron = 152

// Physiological clamp bounds, enforced after every voltage update.
const (
	VoltageMin = -100.0 // mV
	VoltageMax = 60.0   // mV
)

// Calcium pool bounds, enforced after every calcium update.
const (
	CaBaseline = 100e-6 // mM (100 nM)
	CaMax      = 10e-3  // mM (10 uM)
)

// Fixed biophysical constants used by the derived-quantity formulas in
// package morphology.
const (
	SpecificCapacitance = 1.0   // uF/cm^2
	AxialResistivity    = 150.0 // Ohm*cm
)

// Kind classifies a compartment's role in the morphology. It never
// changes after construction.
type Kind uint8

const (
	Soma Kind = iota
	ApicalDendrite
	BasalDendrite
	AxonInitialSegment
)

func (k Kind) String() string {
	switch k {
	case Soma:
		return "Soma"
	case ApicalDendrite:
		return "ApicalDendrite"
	case BasalDendrite:
		return "BasalDendrite"
	case AxonInitialSegment:
		return "AxonInitialSegment"
	default:
		return "Unknown"
	}
}

// ChannelSet selects which channel families a simulator carries on
// every compartment. Advanced carries the full superset of channel
// families on every compartment, each at the shared maximum
// conductance published in package chans.
type ChannelSet uint8

const (
	// Baseline carries Na (m3h), K (n4), Ca (m), and leak only.
	Baseline ChannelSet = iota
	// Advanced carries Baseline plus Nav1.6, Kv1.1, Kv3.1, Kv4.2,
	// Kv7/M, Cav1.2/2.1/3.1, SK, BK, HCN, and NMDA.
	Advanced
)

// Gating holds the baseline gating variables present on every
// compartment regardless of channel set: sodium activation/
// inactivation, potassium activation, and calcium activation.
type Gating struct {
	M   float32 // sodium activation
	H   float32 // sodium inactivation
	N   float32 // potassium activation
	CaM float32 // calcium activation
}

// AdvancedGating holds the gating variables contributed by the
// advanced channel set. Every field is unused (and never evaluated by
// the kernel's rate-function branch) unless the owning Store was built
// with ChannelSet == Advanced.
type AdvancedGating struct {
	Nav16M, Nav16H float32
	Kv11N          float32
	Kv31N          float32
	Kv42M, Kv42H   float32
	Kv7M           float32
	Cav12M, Cav12H float32
	Cav21M, Cav21H float32
	Cav31M, Cav31H float32
	SKM            float32 // Ca-driven, no voltage dependence
	BKM            float32 // voltage- and Ca-driven
	HCNM           float32
	NMDAM          float32 // ligand-driven gate, see kernel package
}

// Calcium holds the two independent microdomain concentrations used
// by the SK and BK pools. Units are mM;
// CaBaseline/CaMax above are expressed in the same units.
type Calcium struct {
	CaSK float32
	CaBK float32
}

// Compartment is the atomic simulation unit. Every field is a plain
// numeric or small fixed-size array so the whole struct is safe to
// copy, memcpy to a device buffer, and index by a single global id.
type Compartment struct {
	// Electrical
	Voltage         float32 // mV
	Capacitance     float32 // pF
	AxialResistance float32 // MOhm, resistance between this compartment and its parent
	LeakConductance float32 // nS baseline
	LeakReversal    float32 // mV

	// Baseline conductances, held separately from the channel
	// descriptor's shared max conductance so FeedbackController can
	// apply a per-compartment offset without mutating shared state.
	GNaOffset   float32 // additive delta to shared Na gbar, nS
	GKOffset    float32 // additive delta to shared K gbar, nS
	GLeakOffset float32 // additive delta to LeakConductance, nS

	Gating
	AdvancedGating
	Calcium

	// Geometry
	Length   float32 // um
	Diameter float32 // um
	Area     float32 // um^2, pi*d*L

	Kind Kind

	// Topology
	ParentIdx   int32
	Children    [ChildCapacity]int32
	NumChildren int32
	ChildRAxial [ChildCapacity]float32 // axial resistance attributed to each child edge, MOhm
	NeuronIdx   int32
	Ordinal     int32 // index within the owning neuron, 0 == soma
}

// IsRoot reports whether this compartment is the soma/root of its
// neuron.
func (c *Compartment) IsRoot() bool {
	return c.ParentIdx == NoParent
}
