// Copyright (c) 2026, The Compartmental Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package chans

// Maximum conductances (nS) for the advanced channel set. The
// Hodgkin-Huxley literature pins the baseline values but not these
// families; the numbers below are this implementation's published
// choice, picked to keep each channel's contribution to a single
// compartment's total conductance budget comparable to the baseline
// values above.
const (
	GbarNav16 = 80.0
	GbarKv11  = 5.0
	GbarKv31  = 10.0
	GbarKv42  = 8.0
	GbarKv7   = 3.0
	GbarCav12 = 1.5
	GbarCav21 = 1.0
	GbarCav31 = 0.5
	GbarSK    = 2.0
	GbarBK    = 3.0
	GbarHCN   = 0.5
	GbarNMDA  = 1.0
)

// Calcium microdomain kinetics shared by the SK and BK pools. The
// kernel derives SK influx from the calcium-current magnitude; BK
// influx is a fixed value gated by voltage, plus an NMDA-driven term.
// The decay rate and per-pool influx scales below are this
// implementation's published choice.
const (
	CaDecayRate         = 0.01  // 1/ms
	CaSKInfluxPerPA     = 4e-7  // mM/ms per pA of Ca current magnitude
	CaBKInfluxFixed     = 5e-4  // mM/ms, gated by V > CaBKGateVoltage
	CaBKGateVoltage     = -20.0 // mV
	CaNMDAInfluxScale   = 2e-4  // mM/ms per unit NMDA gating above threshold
	CaNMDAGateThreshold = 0.05
)
