// Copyright (c) 2026, The Compartmental Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package chans

import "github.com/chewxy/math32"

// boltzmann is the generic sigmoidal steady-state shape shared by the
// advanced voltage-gated channels below: 1/(1+exp(-(v-vHalf)/slope))
// for an activation gate, or with the sign of slope flipped for an
// inactivation gate (standard Boltzmann form; the half-activation
// voltage and slope chosen per channel below are this implementation's
// published choice among the plausible literature range).
func boltzmann(v, vHalf, slope float32) float32 {
	return 1 / (1 + math32.Exp(-(v-vHalf)/slope))
}

// Nav1.6: fast-inactivating sodium, activation threshold slightly
// hyperpolarized relative to the baseline Na channel.
func Nav16MInf(v float32) float32 { return boltzmann(v, -43, 6) }
func Nav16MTau(v float32) float32 { return 0.05 }
func Nav16HInf(v float32) float32 { return boltzmann(v, -60, -6) }
func Nav16HTau(v float32) float32 { return 1.0 }

// Kv1.1: slow-deactivating delayed rectifier, D-type.
func Kv11NInf(v float32) float32 { return boltzmann(v, -30, 10) }
func Kv11NTau(v float32) float32 { return 5.0 }

// Kv3.1: fast-activating, fast-deactivating, high threshold -- the
// classic fast-spiking interneuron potassium current.
func Kv31NInf(v float32) float32 { return boltzmann(v, -10, 10) }
func Kv31NTau(v float32) float32 { return 0.5 }

// Kv4.2: A-type transient potassium current (m,h).
func Kv42MInf(v float32) float32 { return boltzmann(v, -30, 15) }
func Kv42MTau(v float32) float32 { return 1.0 }
func Kv42HInf(v float32) float32 { return boltzmann(v, -70, -8) }
func Kv42HTau(v float32) float32 { return 15.0 }

// Kv7/M: slow non-inactivating muscarinic-sensitive potassium current.
func Kv7MInf(v float32) float32 { return boltzmann(v, -35, 10) }
func Kv7MTau(v float32) float32 { return 80.0 }

// Cav1.2 (L-type): high voltage-activated, slowly inactivating.
func Cav12MInf(v float32) float32 { return boltzmann(v, -10, 6) }
func Cav12MTau(v float32) float32 { return 0.5 }
func Cav12HInf(v float32) float32 { return boltzmann(v, -25, -8) }
func Cav12HTau(v float32) float32 { return 80.0 }

// Cav2.1 (P/Q-type): high voltage-activated.
func Cav21MInf(v float32) float32 { return boltzmann(v, -15, 7) }
func Cav21MTau(v float32) float32 { return 1.0 }
func Cav21HInf(v float32) float32 { return boltzmann(v, -30, -8) }
func Cav21HTau(v float32) float32 { return 75.0 }

// Cav3.1 (T-type): low voltage-activated, fast-inactivating.
func Cav31MInf(v float32) float32 { return boltzmann(v, -50, 7) }
func Cav31MTau(v float32) float32 { return 2.0 }
func Cav31HInf(v float32) float32 { return boltzmann(v, -78, -5) }
func Cav31HTau(v float32) float32 { return 20.0 }

// HCN: hyperpolarization-activated cation current (Ih), activates on
// hyperpolarization -- note the inverted slope relative to the
// depolarization-activated channels above.
func HCNMInf(v float32) float32 { return boltzmann(v, -90, -8) }
func HCNMTau(v float32) float32 { return 100.0 }

// SK: small-conductance calcium-activated potassium channel. Purely
// Ca-driven (no voltage dependence) -- a Hill function of the SK
// calcium microdomain concentration (mM).
const (
	skKd = 0.5e-3 // mM, half-activation Ca concentration
	skN  = 4.0    // Hill coefficient
)

func SKMInf(caSK float32) float32 {
	c := math32.Pow(caSK, skN)
	k := math32.Pow(skKd, skN)
	return c / (c + k)
}
func SKMTau() float32 { return 5.0 }

// BK: large-conductance calcium- and voltage-activated potassium
// channel. Combines a voltage Boltzmann term with a Ca Hill term.
const (
	bkKd = 5e-3 // mM
	bkN  = 2.0
)

func BKMInf(v, caBK float32) float32 {
	vTerm := boltzmann(v, -20, 15)
	c := math32.Pow(caBK, bkN)
	k := math32.Pow(bkKd, bkN)
	caTerm := c / (c + k)
	return vTerm * caTerm
}
func BKMTau() float32 { return 2.0 }

// NMDA: ligand-gated with voltage-dependent Mg2+ block. Gating rises
// with synaptic glutamate drive and
// decays with a fixed unbinding time constant; the channel's current
// contribution also passes through MgBlock(v) multiplicatively.
const nmdaTau = 50.0 // ms, glutamate unbinding

// NMDAGateStep advances the NMDA ligand-gated variable one dt given
// the instantaneous glutamate drive in [0,1]. With glutamate == 0 and
// an initial gate of 0, the gate stays at 0 and NMDA contributes zero
// current regardless of V (boundary behavior).
func NMDAGateStep(gate, glutamate, dt float32) float32 {
	ng := gate + (glutamate*(1-gate)-gate/nmdaTau)*dt
	return Clip01(ng)
}

// MgBlock returns the Mg2+ voltage block factor
// 1/(1+([Mg]/3.57)*exp(-0.062*V)) with [Mg] = 1 mM; 1/3.57 ==
// 0.28011..., matching the reference NMDA block formula in
// glong/nmda.go (GFmV), which uses the literature constant 0.28
// directly.
const mgOverKd = 1.0 / 3.57

func MgBlock(v float32) float32 {
	return 1 / (1 + mgOverKd*math32.Exp(-0.062*v))
}
