// Copyright (c) 2026, The Compartmental Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package device is the device abstraction consumed by package kernel:
// allocate/write a buffer, dispatch compute work in fixed workgroups,
// and read results back asynchronously. Two
// backends are provided: CPUExecutor, a goroutine worker pool that
// runs the kernel's own Go step function (always available, used by
// package driver's default construction and by every test in this
// module); and GPUExecutor, a Vulkan compute backend built on
// github.com/goki/vgpu that dispatches the same step logic translated
// to a compute shader by the gosl tool ("GPU-resident
// multi-compartmental neuron simulator").
package device

import "errors"

// ErrNotReady is returned by an Executor that cannot currently accept
// dispatches (e.g. a GPUExecutor whose shaders have not been compiled
// and loaded).
var ErrNotReady = errors.New("device: not ready")

// StepFunc is one compartment's worth of kernel work, identified by
// its global index. CPUExecutor calls it directly; GPUExecutor's
// compute shader is the translated equivalent of the same function
// body (see package kernel's //gosl: pragma-delimited Step), so the
// signature exists purely so call sites are backend-agnostic.
type StepFunc func(globalIdx int)

// Executor is the narrow interface package kernel dispatches through.
// It intentionally does not expose raw buffer handles -- those are an
// implementation detail of GPUExecutor -- because package kernel's
// Step operates on a compartment.Store slice the CPU backend can
// already address directly; GPUExecutor hides its own buffer
// lifecycle behind the same Run/Barrier shape: GPUExecutor.Config
// allocates and writes the buffers, Run dispatches, and Barrier reads
// the results back.
type Executor interface {
	// Name identifies the backend for diagnostics and ResourceError
	// messages.
	Name() string

	// Run dispatches fn once per index in [0,total) across fixed-size
	// workgroups (recommended size 256), returning once every index has
	// run. No ordering is guaranteed between workgroups or between
	// indices within a workgroup -- package kernel's Step only ever
	// reads previous-tick neighbor voltages and writes its own, so none
	// is needed.
	Run(total int, fn StepFunc) error

	// Barrier blocks until all work submitted by prior Run calls has
	// completed and any device-side buffers are visible to the host.
	// Package driver calls this in every Step, after Run and before the
	// tick's voltages are committed and sampled.
	Barrier() error

	// HostStep reports whether Run executes fn on the host, so the
	// kernel's host-side shadow voltage buffer holds the tick's results
	// and the caller must Commit it. A device backend returns false: its
	// shader performs the whole step including the voltage publish, and
	// Barrier's readback delivers the already-committed values.
	HostStep() bool

	// Close releases any backend resources (GPU device/queue handles).
	Close() error
}

// DefaultWorkgroupSize is the recommended fixed workgroup size.
const DefaultWorkgroupSize = 256
