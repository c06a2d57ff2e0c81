// Copyright (c) 2026, The Compartmental Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package compartmental is the overall repository for the GPU-resident
multi-compartmental neuron simulator with adaptive dynamics-analysis
feedback. This top level has no functional code -- everything is
organized into the following sub-packages:

* compartment: the flat, GPU-friendly array of compartment state and
topology indices (CompartmentStore).

* morphology: deterministic construction of the standard pyramidal
dendritic tree template (MorphologyBuilder).

* chans: Hodgkin-Huxley-style channel families -- rate functions,
steady-state/tau formulations, Q10 scaling, reversal potentials.

* kernel: the per-tick cable-equation integrator (CableKernel) --
gating update, ionic current, axial exchange, voltage update, calcium
pools -- written so it can run unmodified on the CPU backend or be
translated to a compute shader by the device backend.

* device: the device abstraction consumed by the kernel -- buffer
allocation, dispatch, and asynchronous readback, with a CPU worker-pool
backend and a Vulkan compute backend.

* history: the per-probe voltage ring buffer feeding the analyzer.

* analysis: the attractor analyzer -- correlation dimension, largest
Lyapunov exponent, dominant frequency, and regime classification.

* feedback: the homeostatic controller that smooths and clamps
conductance/current offsets written back into the store.

* driver: the top-level orchestrator tying all of the above into the
step/advance/inject/snapshot operations exposed to callers.
*/
package compartmental
