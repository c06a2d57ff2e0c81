// Copyright (c) 2026, The Compartmental Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package kernel implements CableKernel, the per-tick, per-compartment
// step function: channel gating, ionic current, axial current
// exchange with parent and children, voltage update and clamp, and
// calcium pool integration.
//
// StepCompartment is written to be dispatched through
// github.com/emer/compartmental/v2/device.Executor, one call per
// compartment per tick, with no ordering assumed between calls in the
// same tick -- the //gosl: pragma-delimited body below is the function
// axon/gosl.go's own generate-time translation pattern would turn into
// a GPU compute shader; this module does not run that translation
// step, but writes the body so it can be.
//
//go:generate gosl github.com/chewxy/math32 ../compartment ../chans kernel.go
package kernel

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/emer/compartmental/v2/chans"
	"github.com/emer/compartmental/v2/compartment"
)

// Kernel holds the per-tick scratch state shared across every
// compartment's StepCompartment call: the fixed integration timestep
// and a shadow voltage buffer. Only Voltage needs double-buffering --
// every other per-compartment field StepCompartment touches depends
// only on that compartment's own prior state, so writing it in place
// cannot race with a neighbor's read.
type Kernel struct {
	DT float32

	newVoltage []float32
}

// New validates dt and allocates a Kernel sized for totalCount
// compartments. dt <= 0 is rejected at construction.
func New(dt float32, totalCount int) (*Kernel, error) {
	if dt <= 0 {
		return nil, fmt.Errorf("kernel: dt must be positive, got %v", dt)
	}
	return &Kernel{DT: dt, newVoltage: make([]float32, totalCount)}, nil
}

// Resize grows the shadow voltage buffer if the store's compartment
// count changed (the core never resizes a live store, but HostDriver's
// re-initialize path reuses the same Kernel across Store rebuilds with
// the same total count, so this is a defensive no-op in the common
// case).
func (k *Kernel) Resize(totalCount int) {
	if len(k.newVoltage) != totalCount {
		k.newVoltage = make([]float32, totalCount)
	}
}

// StepCompartment advances compartment globalIdx by one tick of k.DT,
// reading every neighbor voltage from store's current (previous-tick)
// state and writing the new voltage into k's shadow buffer rather than
// back into store. Call Commit once every compartment in the store has
// been stepped to publish the new voltages.
//
//gosl:start
func (k *Kernel) StepCompartment(store *compartment.Store, globalIdx int) {
	c := &store.Comps[globalIdx]
	v := c.Voltage

	glutamate := store.Glutamate[globalIdx]
	advanceGating(c, v, store.ChannelSet(), glutamate, k.DT)

	iIon, iCa := ionicCurrent(c, v, store.ChannelSet())
	iAxial := axialCurrent(store, c, v)
	iExt := store.ExtCurrent[globalIdx]

	nv := v + k.DT*(-iIon+iAxial+iExt)/c.Capacitance
	k.newVoltage[globalIdx] = clampVoltage(nv)

	advanceCalcium(c, v, iCa, k.DT)
}

//gosl:end

// Commit publishes the shadow voltage buffer back into store. Call
// once per tick after every compartment has been stepped (i.e. after
// the device.Executor.Run dispatch that calls StepCompartment
// returns, and after its Barrier).
func (k *Kernel) Commit(store *compartment.Store) {
	for i := range store.Comps {
		store.Comps[i].Voltage = k.newVoltage[i]
	}
}

func clampVoltage(v float32) float32 {
	if v < compartment.VoltageMin {
		return compartment.VoltageMin
	}
	if v > compartment.VoltageMax {
		return compartment.VoltageMax
	}
	return v
}

// advanceGating evaluates, for each gating variable present on c, its
// rate functions or steady-state/tau pair at v, applies the channel's
// Q10 factor, and integrates one dt.
func advanceGating(c *compartment.Compartment, v float32, set compartment.ChannelSet, glutamate, dt float32) {
	q10Na := chans.Q10Factor(chans.Q10Na)
	q10K := chans.Q10Factor(chans.Q10K)
	q10Ca := chans.Q10Factor(chans.Q10Ca)

	c.M = chans.IntegrateAlphaBeta(c.M, chans.NaAlphaM(v), chans.NaBetaM(v), q10Na, dt)
	c.H = chans.IntegrateAlphaBeta(c.H, chans.NaAlphaH(v), chans.NaBetaH(v), q10Na, dt)
	c.N = chans.IntegrateAlphaBeta(c.N, chans.KAlphaN(v), chans.KBetaN(v), q10K, dt)
	c.CaM = chans.IntegrateSteadyState(c.CaM, chans.CaMInf(v), chans.CaMTau(v), q10Ca, dt)

	if set != compartment.Advanced {
		return
	}

	c.Nav16M = chans.IntegrateSteadyState(c.Nav16M, chans.Nav16MInf(v), chans.Nav16MTau(v), chans.Q10Factor(chans.Q10Nav16), dt)
	c.Nav16H = chans.IntegrateSteadyState(c.Nav16H, chans.Nav16HInf(v), chans.Nav16HTau(v), chans.Q10Factor(chans.Q10Nav16), dt)
	c.Kv11N = chans.IntegrateSteadyState(c.Kv11N, chans.Kv11NInf(v), chans.Kv11NTau(v), chans.Q10Factor(chans.Q10Kv11), dt)
	c.Kv31N = chans.IntegrateSteadyState(c.Kv31N, chans.Kv31NInf(v), chans.Kv31NTau(v), chans.Q10Factor(chans.Q10Kv31), dt)
	c.Kv42M = chans.IntegrateSteadyState(c.Kv42M, chans.Kv42MInf(v), chans.Kv42MTau(v), chans.Q10Factor(chans.Q10Kv42), dt)
	c.Kv42H = chans.IntegrateSteadyState(c.Kv42H, chans.Kv42HInf(v), chans.Kv42HTau(v), chans.Q10Factor(chans.Q10Kv42), dt)
	c.Kv7M = chans.IntegrateSteadyState(c.Kv7M, chans.Kv7MInf(v), chans.Kv7MTau(v), chans.Q10Factor(chans.Q10Kv7), dt)
	c.Cav12M = chans.IntegrateSteadyState(c.Cav12M, chans.Cav12MInf(v), chans.Cav12MTau(v), chans.Q10Factor(chans.Q10Cav12), dt)
	c.Cav12H = chans.IntegrateSteadyState(c.Cav12H, chans.Cav12HInf(v), chans.Cav12HTau(v), chans.Q10Factor(chans.Q10Cav12), dt)
	c.Cav21M = chans.IntegrateSteadyState(c.Cav21M, chans.Cav21MInf(v), chans.Cav21MTau(v), chans.Q10Factor(chans.Q10Cav21), dt)
	c.Cav21H = chans.IntegrateSteadyState(c.Cav21H, chans.Cav21HInf(v), chans.Cav21HTau(v), chans.Q10Factor(chans.Q10Cav21), dt)
	c.Cav31M = chans.IntegrateSteadyState(c.Cav31M, chans.Cav31MInf(v), chans.Cav31MTau(v), chans.Q10Factor(chans.Q10Cav31), dt)
	c.Cav31H = chans.IntegrateSteadyState(c.Cav31H, chans.Cav31HInf(v), chans.Cav31HTau(v), chans.Q10Factor(chans.Q10Cav31), dt)
	c.HCNM = chans.IntegrateSteadyState(c.HCNM, chans.HCNMInf(v), chans.HCNMTau(v), chans.Q10Factor(chans.Q10HCN), dt)
	c.SKM = chans.IntegrateSteadyState(c.SKM, chans.SKMInf(c.CaSK), chans.SKMTau(), chans.Q10Factor(chans.Q10SK), dt)
	c.BKM = chans.IntegrateSteadyState(c.BKM, chans.BKMInf(v, c.CaBK), chans.BKMTau(), chans.Q10Factor(chans.Q10BK), dt)
	c.NMDAM = chans.NMDAGateStep(c.NMDAM, glutamate, dt)
}

// ionicCurrent sums the present channel currents using
// I = gbar*gating*(V-Erev) with the conventional multi-gate powers,
// and separately reports the calcium-current magnitude (pA) consumed
// by the SK calcium pool.
func ionicCurrent(c *compartment.Compartment, v float32, set compartment.ChannelSet) (iTotal, iCaMagnitude float32) {
	gNa := chans.GbarNa + c.GNaOffset
	gK := chans.GbarK + c.GKOffset
	gLeak := c.LeakConductance + c.GLeakOffset

	iNa := gNa * c.M * c.M * c.M * c.H * (v - chans.ENa)
	iK := gK * c.N * c.N * c.N * c.N * (v - chans.EK)
	iCa := chans.GbarCa * c.CaM * (v - chans.ECa)
	iLeak := gLeak * (v - c.LeakReversal)

	iTotal = iNa + iK + iCa + iLeak
	iCaMagnitude = iCa

	if set != compartment.Advanced {
		return iTotal, iCaMagnitude
	}

	iNav16 := chans.GbarNav16 * c.Nav16M * c.Nav16M * c.Nav16M * c.Nav16H * (v - chans.ENa)
	iKv11 := chans.GbarKv11 * c.Kv11N * (v - chans.EK)
	iKv31 := chans.GbarKv31 * c.Kv31N * (v - chans.EK)
	iKv42 := chans.GbarKv42 * c.Kv42M * c.Kv42H * (v - chans.EK)
	iKv7 := chans.GbarKv7 * c.Kv7M * (v - chans.EK)
	iCav12 := chans.GbarCav12 * c.Cav12M * c.Cav12M * c.Cav12H * (v - chans.ECa)
	iCav21 := chans.GbarCav21 * c.Cav21M * c.Cav21M * c.Cav21H * (v - chans.ECa)
	iCav31 := chans.GbarCav31 * c.Cav31M * c.Cav31M * c.Cav31H * (v - chans.ECa)
	iSK := chans.GbarSK * c.SKM * (v - chans.EK)
	iBK := chans.GbarBK * c.BKM * (v - chans.EK)
	iHCN := chans.GbarHCN * c.HCNM * (v - chans.EH)
	iNMDA := chans.GbarNMDA * c.NMDAM * chans.MgBlock(v) * (v - chans.ENMDA)

	iTotal += iNav16 + iKv11 + iKv31 + iKv42 + iKv7 + iCav12 + iCav21 + iCav31 + iSK + iBK + iHCN + iNMDA
	iCaMagnitude += iCav12 + iCav21 + iCav31

	return iTotal, iCaMagnitude
}

// axialCurrent accumulates current from the parent (if any) and
// every present child, reading every neighbor's voltage from
// store's current (previous-tick) state -- store.Comps is never
// mutated by StepCompartment, only k.newVoltage is, so this read is
// always the prior tick's value regardless of dispatch order.
func axialCurrent(store *compartment.Store, c *compartment.Compartment, v float32) float32 {
	var iAxial float32
	if !c.IsRoot() {
		parentV := store.Comps[c.ParentIdx].Voltage
		iAxial += (parentV - v) / c.AxialResistance
	}
	for k := int32(0); k < c.NumChildren; k++ {
		childIdx := c.Children[k]
		childV := store.Comps[childIdx].Voltage
		rChild := c.ChildRAxial[k]
		iAxial += (childV - v) / rChild
	}
	return iAxial
}

// advanceCalcium integrates the two independent calcium microdomains,
// clamped to the physiological pool bounds.
func advanceCalcium(c *compartment.Compartment, v, iCaMagnitude, dt float32) {
	skInflux := math32.Abs(iCaMagnitude) * chans.CaSKInfluxPerPA
	nSK := c.CaSK + (skInflux-chans.CaDecayRate*c.CaSK)*dt
	c.CaSK = clampCalcium(nSK)

	var bkInflux float32
	if v > chans.CaBKGateVoltage {
		bkInflux = chans.CaBKInfluxFixed
	}
	if c.NMDAM > chans.CaNMDAGateThreshold {
		bkInflux += (c.NMDAM - chans.CaNMDAGateThreshold) * chans.CaNMDAInfluxScale
	}
	nBK := c.CaBK + (bkInflux-chans.CaDecayRate*c.CaBK)*dt
	c.CaBK = clampCalcium(nBK)
}

func clampCalcium(x float32) float32 {
	if x < compartment.CaBaseline {
		return compartment.CaBaseline
	}
	if x > compartment.CaMax {
		return compartment.CaMax
	}
	return x
}
