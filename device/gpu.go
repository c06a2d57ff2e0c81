// Copyright (c) 2026, The Compartmental Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package device

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/emer/compartmental/v2/compartment"
	"github.com/goki/vgpu/vgpu"
)

// DefaultShaderPath is where Config looks for the compiled Step
// compute shader when ShaderPath is not set.
const DefaultShaderPath = "shaders/step.spv"

// GPUExecutor dispatches compartment kernel work as a Vulkan compute
// shader via goki/vgpu, mirroring axon.GPU: one
// VarSet of storage buffers holding the compartment and ExtCurrent
// arrays, one compute pipeline per kernel shader, dispatched in fixed
// workgroups of size NThreads.
//
// The shader binary is produced offline by gosl from the //gosl:
// pragma-delimited source in package kernel -- the same two-step flow
// axon/gpu.go documents with its own go:generate gosl directive -- and
// compiled to SPIR-V for the target Vulkan driver. Config loads it
// from ShaderPath and fails with a descriptive error until that build
// step has been run.
type GPUExecutor struct {
	NThreads   int
	ShaderPath string
	GPU        *vgpu.GPU
	Sys        *vgpu.System
	Vars       *vgpu.VarSet
	Step       *vgpu.Pipeline

	store *compartment.Store
	ready bool
}

// NewGPUExecutor prepares (but does not yet configure) a GPU backend
// sized to the given warp/workgroup thread count, matching the
// axon.GPU.NThreads convention (64 there; this kernel defaults to
// DefaultWorkgroupSize).
func NewGPUExecutor(nThreads int) *GPUExecutor {
	if nThreads <= 0 {
		nThreads = DefaultWorkgroupSize
	}
	return &GPUExecutor{NThreads: nThreads, ShaderPath: DefaultShaderPath}
}

func (gp *GPUExecutor) Name() string { return "gpu" }

// Config configures the Vulkan compute system against store: one
// storage buffer for the compartment array, one for the external
// current array, and the Step compute pipeline loaded from ShaderPath.
// Call once after the store's topology is built and before the first
// Run.
func (gp *GPUExecutor) Config(store *compartment.Store) error {
	gp.store = store
	gp.GPU = vgpu.NewComputeGPU()
	gp.GPU.Config("compartmental")

	gp.Sys = gp.GPU.NewComputeSystem("compartmental")
	vars := gp.Sys.Vars()
	gp.Vars = vars.AddSet()

	gp.Vars.AddStruct("Comps", int(unsafe.Sizeof(compartment.Compartment{})), store.TotalCount(), vgpu.Storage, vgpu.ComputeShader)
	gp.Vars.Add("ExtCurrent", vgpu.Float32, len(store.ExtCurrent), vgpu.Storage, vgpu.ComputeShader)
	gp.Vars.ConfigVals(1)

	gp.Step = gp.Sys.NewPipeline("Step")
	code, err := os.ReadFile(gp.ShaderPath)
	if err != nil {
		return fmt.Errorf("device: GPU backend requires a compiled Step shader at %s (run gosl against package kernel and compile the result to SPIR-V first): %w", gp.ShaderPath, err)
	}
	gp.Step.AddShaderCode("Step", vgpu.ComputeShader, code)

	gp.Sys.Config()
	vars.BindDynValIdx(0, "Comps", 0)
	vars.BindDynValIdx(0, "ExtCurrent", 0)

	if err := gp.copyToGPU(); err != nil {
		return err
	}
	gp.ready = true
	return nil
}

func (gp *GPUExecutor) copyToGPU() error {
	_, compv, err := gp.Vars.ValByIdxTry("Comps", 0)
	if err != nil {
		return fmt.Errorf("device: %w", err)
	}
	compv.CopyFromBytes(unsafe.Pointer(&gp.store.Comps[0]))

	_, extv, err := gp.Vars.ValByIdxTry("ExtCurrent", 0)
	if err != nil {
		return fmt.Errorf("device: %w", err)
	}
	extv.CopyFromBytes(unsafe.Pointer(&gp.store.ExtCurrent[0]))
	gp.Sys.Mem.SyncToGPU()
	return nil
}

// nSub returns the number of NThreads-sized workgroups needed to cover
// n elements, matching axon.GPU.NSub's ceiling-division shape.
func nSub(n, nThreads int) int {
	if nThreads <= 0 {
		return n
	}
	return (n + nThreads - 1) / nThreads
}

// Run dispatches the Step compute shader over total elements. fn is
// accepted only to satisfy the Executor interface common with
// CPUExecutor; on real hardware the compiled shader (not fn) performs
// the work, since the whole point of this backend is running the
// kernel off the host CPU.
func (gp *GPUExecutor) Run(total int, fn StepFunc) error {
	if !gp.ready {
		return ErrNotReady
	}
	gp.Sys.ComputeResetBegin()
	gp.Step.ComputeCommand(nSub(total, gp.NThreads), 1, 1)
	gp.Sys.ComputeSubmitWait()
	return nil
}

// Barrier reads the compartment buffer back to the host-side store
// after a prior Run, the GPU-backend analogue of CPUExecutor's no-op
// (there, results are already in host memory because Run executed on
// the host).
func (gp *GPUExecutor) Barrier() error {
	if !gp.ready {
		return ErrNotReady
	}
	gp.Sys.Mem.SyncValIdxFmGPU(0, "Comps", 0)
	_, compv, err := gp.Vars.ValByIdxTry("Comps", 0)
	if err != nil {
		return fmt.Errorf("device: %w", err)
	}
	compv.CopyToBytes(unsafe.Pointer(&gp.store.Comps[0]))
	return nil
}

// HostStep is false: the Step shader performs the whole per-compartment
// update device-side, including the voltage publish, so the caller must
// not overwrite the readback with its host-side shadow buffer.
func (gp *GPUExecutor) HostStep() bool { return false }

// Close releases the Vulkan compute system and GPU device handles.
func (gp *GPUExecutor) Close() error {
	if gp.Sys != nil {
		gp.Sys.Destroy()
	}
	if gp.GPU != nil {
		gp.GPU.Destroy()
	}
	gp.ready = false
	return nil
}
