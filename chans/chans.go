// Copyright (c) 2026, The Compartmental Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package chans defines the Hodgkin-Huxley-style channel families used
// by package kernel: gating rate functions (alpha/beta) or
// steady-state/tau pairs, maximum conductances, reversal potentials,
// and Q10 temperature scaling. The rate and current equations are
// literature-standard Hodgkin-Huxley forms (the same Ohmic current
// law, I = gbar*gating*(V-Erev), used by a point-neuron's channel
// model); this package carries the full multi-gate formulation a
// multi-compartmental cable model needs.
package chans

import "github.com/chewxy/math32"

// Canonical reversal potentials, mV.
const (
	ENa   = 50
	EK    = -90
	ECa   = 120
	ELeak = -70
	EH    = -30
	ENMDA = 0
)

// Reference temperatures for Q10 scaling.
const (
	TPhysiological = 37
	TReference     = 22
)

// Q10Factor returns q10^((T-Tref)/10), the multiplier applied to a
// rate function or 1/tau evaluated at TReference to bring it to
// TPhysiological.
func Q10Factor(q10 float32) float32 {
	return math32.Pow(q10, float32(TPhysiological-TReference)/10)
}

// Q10 values chosen for this implementation. The literature does not
// pin a single Q10 for Kv4.2, Kv7, or Cav3.1, so one value per channel
// is picked from the commonly cited range {2.3, 2.5, 3.0} and recorded
// here.
const (
	Q10Na    = 3.0
	Q10K     = 3.0
	Q10Ca    = 3.0
	Q10Nav16 = 3.0
	Q10Kv11  = 3.0
	Q10Kv31  = 3.0
	Q10Kv42  = 2.3
	Q10Kv7   = 2.5
	Q10Cav12 = 3.0
	Q10Cav21 = 3.0
	Q10Cav31 = 3.0
	Q10SK    = 1.0 // Ca-binding kinetics, weak temperature dependence
	Q10BK    = 3.0
	Q10HCN   = 3.0
	Q10NMDA  = 1.0 // voltage/ligand block, not a thermally activated rate
)

// Baseline maximum conductances (nS), Hodgkin-Huxley literature values
// adapted to this model's per-compartment nS scale.
const (
	GbarNa   = 120.0
	GbarK    = 36.0
	GbarCa   = 2.0
	GbarLeak = 0.025 // overridden per-compartment by morphology defaults
)

// rateWithLHopital evaluates the classic HH singular rate form
// num*(v-vHalf)/(1-exp(-(v-vHalf)/slope)), falling back to the
// analytic l'Hopital limit num*slope when v is within epsilon of
// vHalf, where the closed form is a 0/0 indeterminate.
func rateWithLHopital(v, vHalf, slope, num float32) float32 {
	x := v - vHalf
	const eps = 1e-4
	if math32.Abs(x) < eps {
		return num * slope
	}
	return num * x / (1 - math32.Exp(-x/slope))
}

// NaAlphaM is the sodium activation forward rate. At V == -40 mV this
// is the classic l'Hopital case: the closed form is 0/0, and the
// fallback value is num*slope = 0.1*10 = 1.0.
func NaAlphaM(v float32) float32 { return rateWithLHopital(v, -40, 10, 0.1) }

// NaBetaM is the sodium activation backward rate (no singularity).
func NaBetaM(v float32) float32 { return 4 * math32.Exp(-(v+65)/18) }

// NaAlphaH is the sodium inactivation forward rate.
func NaAlphaH(v float32) float32 { return 0.07 * math32.Exp(-(v+65)/20) }

// NaBetaH is the sodium inactivation backward rate.
func NaBetaH(v float32) float32 { return 1 / (1 + math32.Exp(-(v+35)/10)) }

// KAlphaN is the potassium activation forward rate; singular at
// V == -55 mV, falling back to num*slope = 0.01*10 = 0.1.
func KAlphaN(v float32) float32 { return rateWithLHopital(v, -55, 10, 0.01) }

// KBetaN is the potassium activation backward rate.
func KBetaN(v float32) float32 { return 0.125 * math32.Exp(-(v+65)/80) }

// CaMInf and CaMTau give the steady-state/tau formulation for the
// baseline calcium activation gate: an x-infinity/tau formulation,
// matching how the advanced Cav family below is specified.
func CaMInf(v float32) float32 { return 1 / (1 + math32.Exp(-(v+20)/9)) }
func CaMTau(v float32) float32 { return 1.0 }

// IntegrateAlphaBeta advances a gating variable one dt using explicit
// Euler on the alpha/beta forward/backward rates, after Q10 scaling.
func IntegrateAlphaBeta(x, alpha, beta, q10, dt float32) float32 {
	a := alpha * q10
	b := beta * q10
	nx := x + (a*(1-x)-b*x)*dt
	return Clip01(nx)
}

// IntegrateSteadyState advances a gating variable one dt toward xInf
// with time constant tau using the stable implicit-Euler-equivalent
// update x += (xInf-x)*(1-exp(-dt/(tau/q10))).
// Q10 shortens tau as temperature rises, so it divides tau here
// (equivalently it multiplies the 1/tau rate).
func IntegrateSteadyState(x, xInf, tau, q10, dt float32) float32 {
	effTau := tau / q10
	if effTau <= 0 {
		return Clip01(xInf)
	}
	nx := x + (xInf-x)*(1-math32.Exp(-dt/effTau))
	return Clip01(nx)
}

// Clip01 keeps every gating variable in [0,1].
func Clip01(x float32) float32 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
