// Copyright (c) 2026, The Compartmental Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package feedback implements FeedbackController: it turns the regime
// label package analysis reports into a smoothed per-neuron set of
// conductance and injected-current offsets, and writes those offsets
// back into a compartment.Store before the next kernel launch. The
// exponential smoothing (alpha = 0.9) and +/-30% bound are load-
// bearing: without them, regime transitions at the analyzer interval
// would apply conductance steps large enough to produce spurious
// spikes.
package feedback

import (
	"github.com/chewxy/math32"
	"github.com/emer/compartmental/v2/analysis"
	"github.com/emer/compartmental/v2/chans"
	"github.com/emer/compartmental/v2/compartment"
)

// SmoothingAlpha is the EMA smoothing factor applied to every offset
// update.
const SmoothingAlpha = float32(0.9)

// BoundFraction is the +/-30% clamp applied to every effective
// conductance after smoothing.
const BoundFraction = float32(0.30)

// desiredFraction scales how aggressively a single analyzer cycle's
// desired offset pushes excitability up or down, expressed as a
// fraction of the baseline conductance. Half of BoundFraction, so a
// single regime's desired target sits inside, not at, the eventual
// clamp.
const desiredFraction = float32(0.15)

// desiredInjectPA is the mild positive current target used to lift a
// quiescent (FixedPoint) neuron; ChaoticAttractor and the Hold regimes
// desire zero injected current.
const desiredInjectPA = float32(20)

// Offsets is one neuron's (or group's) set of homeostatic parameter
// deltas.
type Offsets struct {
	GNa, GK, GLeak, IInject float32
}

func desiredOffsets(regime analysis.Regime) Offsets {
	switch regime {
	case analysis.FixedPoint:
		return Offsets{
			GNa:     chans.GbarNa * desiredFraction,
			GLeak:   -chans.GbarLeak * desiredFraction,
			IInject: desiredInjectPA,
		}
	case analysis.ChaoticAttractor:
		return Offsets{
			GNa:   -chans.GbarNa * desiredFraction,
			GLeak: chans.GbarLeak * desiredFraction,
		}
	default: // LimitCycle, Noise: hold
		return Offsets{}
	}
}

// Controller maintains one smoothed Offsets accumulator per neuron
// group, private to the controller; it exports only the per-tick
// update Apply writes into a Store. Alpha and Bound default to
// SmoothingAlpha/BoundFraction but are instance fields, not consts, so
// a params.Sheet override (see the driver package's WithParams option)
// can retune them per run without touching package state.
type Controller struct {
	actual []Offsets // indexed by neuron idx

	Alpha float32
	Bound float32
}

// New allocates a Controller for numNeurons neurons, all offsets
// starting at zero (no excitability bias at rest), with Alpha/Bound at
// their published defaults.
func New(numNeurons int) *Controller {
	return &Controller{
		actual: make([]Offsets, numNeurons),
		Alpha:  SmoothingAlpha,
		Bound:  BoundFraction,
	}
}

// Reset clears every neuron's accumulated offset back to zero, without
// reallocating. Called by HostDriver.Initialize.
func (c *Controller) Reset() {
	for i := range c.actual {
		c.actual[i] = Offsets{}
	}
}

// OnRegime updates neuronIdx's smoothed offset toward the regime's
// desired target. NaN metrics (an analyzer still warming up) must
// never reach here -- package driver skips the call when
// analysis.Result's metrics are NaN, so a warming-up probe means no
// update this cycle.
func (c *Controller) OnRegime(neuronIdx int, regime analysis.Regime) {
	desired := desiredOffsets(regime)
	a := &c.actual[neuronIdx]
	a.GNa = c.smooth(a.GNa, desired.GNa)
	a.GK = c.smooth(a.GK, desired.GK)
	a.GLeak = c.smooth(a.GLeak, desired.GLeak)
	a.IInject = c.smooth(a.IInject, desired.IInject)
}

func (c *Controller) smooth(actual, desired float32) float32 {
	return c.Alpha*actual + (1-c.Alpha)*desired
}

// InjectOffset returns neuronIdx's current smoothed ΔI_inject, for the
// host driver to add to its own externally-injected current before
// composing the store's external-current buffer.
func (c *Controller) InjectOffset(neuronIdx int) float32 {
	return c.actual[neuronIdx].IInject
}

// Apply writes every neuron's smoothed conductance offsets into its
// compartments, clamped so the effective Na, K, and leak conductance
// on every compartment stays within +/-BoundFraction of its baseline.
// ΔI_inject is not written
// here -- see InjectOffset -- because the external-current buffer also
// carries the host's own injected current and composing the two is
// package driver's job.
func (c *Controller) Apply(store *compartment.Store) {
	store.ForEachNeuron(func(neuronIdx int, comps []compartment.Compartment) {
		off := c.actual[neuronIdx]
		for i := range comps {
			comp := &comps[i]
			comp.GNaOffset = c.clampOffset(off.GNa, chans.GbarNa)
			comp.GKOffset = c.clampOffset(off.GK, chans.GbarK)
			comp.GLeakOffset = c.clampOffset(off.GLeak, comp.LeakConductance)
		}
	})
}

func (c *Controller) clampOffset(offset, baseline float32) float32 {
	bound := baseline * c.Bound
	if offset > bound {
		return bound
	}
	if offset < -bound {
		return -bound
	}
	return offset
}

// EffectiveWithinBound reports whether baseline+offset stays within
// +/-BoundFraction of baseline; used by tests. It checks against the
// published
// default bound since it has no Controller instance to read an
// override from.
func EffectiveWithinBound(baseline, offset float32) bool {
	bound := baseline * BoundFraction
	return math32.Abs(offset) <= bound+1e-6
}
