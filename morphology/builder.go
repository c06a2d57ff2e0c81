// Copyright (c) 2026, The Compartmental Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package morphology deterministically builds the standard pyramidal
// compartment template into a compartment.Store. The builder is the
// sole producer of topology, geometry, and initial electrical state;
// CableKernel and FeedbackController are the only other writers, and
// only after construction completes.
package morphology

import (
	"math"

	"github.com/emer/compartmental/v2/compartment"
)

// Resting initial state.
const (
	restVoltage = -70.0
	restLeakG   = 0.025
	restLeakE   = -70.0
	restM       = 0.05
	restH       = 0.6
	restN       = 0.32
	restCaM     = 0.01
)

// Template-specific local index layout.
const (
	localSoma      = 0
	apicalTrunk    = 1
	apicalSubtreeA = 2   // first apical subtree root, local indices [2,50]
	apicalSubtreeB = 51  // second apical subtree root, local indices [51,100]
	apicalEnd      = 100
	basalRoot      = 101 // basal dendrites, local indices [101,150]
	basalEnd       = 150
	ais            = 151
)

// Build constructs the pyramidal template for every neuron in s. s
// must have been created with compartment.CompsPerNeuron compartments
// per neuron (compartment.New already enforces this).
func Build(s *compartment.Store) error {
	s.ForEachNeuron(func(neuronIdx int, comps []compartment.Compartment) {
		buildOne(comps, neuronIdx)
	})
	return nil
}

func buildOne(comps []compartment.Compartment, neuronIdx int) {
	for i := range comps {
		comps[i].NeuronIdx = int32(neuronIdx)
		comps[i].Ordinal = int32(i)
		initElectrical(&comps[i])
	}

	// Soma: root, three children.
	soma := &comps[localSoma]
	soma.ParentIdx = compartment.NoParent
	soma.Kind = compartment.Soma
	setGeometry(soma, 20, 20)
	addChild(soma, apicalTrunk)
	addChild(soma, basalRoot)
	addChild(soma, ais)
	linkParent(comps, apicalTrunk, localSoma)
	linkParent(comps, basalRoot, localSoma)
	linkParent(comps, ais, localSoma)

	// Apical trunk: tapers from 3um immediately, 100um long, bifurcates
	// into the two subtrees.
	trunk := &comps[apicalTrunk]
	trunk.Kind = compartment.ApicalDendrite
	setGeometry(trunk, 3, 100)
	addChild(trunk, apicalSubtreeA)
	addChild(trunk, apicalSubtreeB)
	linkParent(comps, apicalSubtreeA, apicalTrunk)
	linkParent(comps, apicalSubtreeB, apicalTrunk)

	buildApicalSubtree(comps, apicalSubtreeA, apicalSubtreeB-apicalSubtreeA)
	buildApicalSubtree(comps, apicalSubtreeB, apicalEnd-apicalSubtreeB+1)

	buildBasal(comps, basalRoot, basalEnd-basalRoot+1)

	aisC := &comps[ais]
	aisC.Kind = compartment.AxonInitialSegment
	setGeometry(aisC, 1, 30)

	fillChildRAxial(comps)
}

// fillChildRAxial runs after every compartment's own AxialResistance
// has been derived from its geometry (setGeometry), and copies each
// child's resistance into its parent's ChildRAxial slot -- the axial
// resistor between two adjacent compartments is attributed to the
// child, so the parent needs the value without an indirection through
// the child's record at kernel time.
func fillChildRAxial(comps []compartment.Compartment) {
	for i := range comps {
		c := &comps[i]
		for k := int32(0); k < c.NumChildren; k++ {
			c.ChildRAxial[k] = comps[c.Children[k]].AxialResistance
		}
	}
}

// buildApicalSubtree grows a count-compartment subtree rooted at
// comps[rootLocal] (already parented to the trunk by the caller). The
// first half of the subtree in BFS order is treated as mid-apical
// (bifurcates every 5th compartment, 3um-to-~1.7um taper, 50um
// segments); the second half is distal tuft (bifurcates every 7th,
// ~1.7um-to-0.5um taper, 30um segments). This split is this
// implementation's documented resolution of where "apical" ends and
// "tuft" begins; the produced edge set is pinned by builder_test.go.
func buildApicalSubtree(comps []compartment.Compartment, rootLocal, count int) {
	comps[rootLocal].Kind = compartment.ApicalDendrite
	growChain(comps, rootLocal, count, func(idxInSubtree, total int) (diam, length float32, interval int) {
		frac := float32(idxInSubtree) / float32(total)
		if idxInSubtree*2 <= total {
			diam = 3 - 1.3*frac*2
			length = 50
			interval = 5
		} else {
			diam = 1.7 - 1.2*(frac-0.5)*2
			if diam < 0.5 {
				diam = 0.5
			}
			length = 30
			interval = 7
		}
		return diam, length, interval
	})
}

// buildBasal grows the count-compartment basal dendrite chain rooted
// at comps[rootLocal]: constant 1.5um x 50um geometry, bifurcating
// every 8th compartment.
func buildBasal(comps []compartment.Compartment, rootLocal, count int) {
	comps[rootLocal].Kind = compartment.BasalDendrite
	growChain(comps, rootLocal, count, func(idxInSubtree, total int) (diam, length float32, interval int) {
		return 1.5, 50, 8
	})
	for i := rootLocal; i < rootLocal+count; i++ {
		comps[i].Kind = compartment.BasalDendrite
	}
}

// growChain performs a breadth-first allocation of `count` compartment
// slots starting at rootLocal (root already allocated by the caller),
// assigning children and geometry as it goes. regionFn receives the
// 1-based index of the node being expanded within the subtree (root
// is 1) and the subtree's total compartment count, and returns that
// node's geometry and the bifurcation interval that applies to it.
func growChain(comps []compartment.Compartment, rootLocal, count int, regionFn func(idxInSubtree, total int) (diam, length float32, interval int)) {
	if count <= 1 {
		diam, length, _ := regionFn(1, count)
		setGeometry(&comps[rootLocal], diam, length)
		return
	}
	type queued struct {
		local int
		idx   int // 1-based position in BFS order
	}
	queue := []queued{{rootLocal, 1}}
	nextFree := rootLocal + 1
	end := rootLocal + count // exclusive
	for len(queue) > 0 && nextFree < end {
		cur := queue[0]
		queue = queue[1:]
		diam, length, interval := regionFn(cur.idx, count)
		setGeometry(&comps[cur.local], diam, length)

		want := 1
		if interval > 0 && cur.idx%interval == 0 {
			want = 2
		}
		for c := 0; c < want && nextFree < end; c++ {
			child := nextFree
			nextFree++
			addChild(&comps[cur.local], child)
			linkParent(comps, child, cur.local)
			queue = append(queue, queued{child, child - rootLocal + 1})
		}
	}
	// Any node still in the queue when the budget runs out is a leaf
	// that was never dequeued, so its geometry is set here.
	for _, q := range queue {
		diam, length, _ := regionFn(q.idx, count)
		setGeometry(&comps[q.local], diam, length)
	}
}

func addChild(c *compartment.Compartment, childLocal int) {
	c.Children[c.NumChildren] = int32(childLocal)
	c.NumChildren++
}

func linkParent(comps []compartment.Compartment, childLocal, parentLocal int) {
	comps[childLocal].ParentIdx = int32(parentLocal)
}

func setGeometry(c *compartment.Compartment, diam, length float32) {
	c.Diameter = diam
	c.Length = length
	c.Area = float32(math.Pi) * diam * length
	c.Capacitance = compartment.SpecificCapacitance * c.Area / 100
	c.AxialResistance = axialResistanceMOhm(diam, length)
}

// axialResistanceMOhm computes Ra = (rho*L) /
// (pi*(d/2)^2), with rho = 150 Ohm*cm, converting the um geometry to
// cm before applying cable-theory units and the result from Ohm to
// MOhm.
func axialResistanceMOhm(diamUm, lengthUm float32) float32 {
	rhoOhmCm := compartment.AxialResistivity
	lengthCm := float64(lengthUm) * 1e-4
	radiusCm := float64(diamUm) / 2 * 1e-4
	ohms := rhoOhmCm * lengthCm / (math.Pi * radiusCm * radiusCm)
	return float32(ohms / 1e6)
}

func initElectrical(c *compartment.Compartment) {
	c.Voltage = restVoltage
	c.LeakConductance = restLeakG
	c.LeakReversal = restLeakE
	c.Gating = compartment.Gating{M: restM, H: restH, N: restN, CaM: restCaM}
	c.Calcium = compartment.Calcium{CaSK: compartment.CaBaseline, CaBK: compartment.CaBaseline}
}
