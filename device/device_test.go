// Copyright (c) 2026, The Compartmental Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package device

import (
	"sync/atomic"
	"testing"
)

func TestCPUExecutorRunsEveryIndexExactlyOnce(t *testing.T) {
	const total = 1000
	seen := make([]int32, total)
	exec := NewCPUExecutor(4)
	if err := exec.Run(total, func(i int) {
		atomic.AddInt32(&seen[i], 1)
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, v := range seen {
		if v != 1 {
			t.Fatalf("index %d ran %d times, want 1", i, v)
		}
	}
}

func TestCPUExecutorSingleThreadedFastPath(t *testing.T) {
	exec := NewCPUExecutor(1)
	sum := 0
	exec.Run(10, func(i int) { sum += i })
	if sum != 45 {
		t.Errorf("sum = %d, want 45", sum)
	}
}

func TestCPUExecutorZeroTotalIsNoop(t *testing.T) {
	exec := NewCPUExecutor(4)
	called := false
	if err := exec.Run(0, func(i int) { called = true }); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if called {
		t.Errorf("fn should not be called for total=0")
	}
}

func TestCPUExecutorFewerItemsThanThreads(t *testing.T) {
	exec := NewCPUExecutor(16)
	count := 0
	exec.Run(3, func(i int) { count++ })
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}

func TestCPUExecutorBarrierAndCloseAreNoops(t *testing.T) {
	exec := NewCPUExecutor(2)
	if err := exec.Barrier(); err != nil {
		t.Errorf("Barrier: %v", err)
	}
	if err := exec.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestNewCPUExecutorDefaultsThreadCount(t *testing.T) {
	exec := NewCPUExecutor(0)
	if exec.NThreads <= 0 {
		t.Errorf("expected a positive default thread count, got %d", exec.NThreads)
	}
}

func TestHostStepDistinguishesBackends(t *testing.T) {
	if !NewCPUExecutor(1).HostStep() {
		t.Errorf("CPU backend must report HostStep true: its Run leaves results in the kernel's shadow buffer")
	}
	if NewGPUExecutor(0).HostStep() {
		t.Errorf("GPU backend must report HostStep false: its shader commits voltages device-side")
	}
}

func TestGPUExecutorReportsNotReadyBeforeConfig(t *testing.T) {
	gp := NewGPUExecutor(0)
	if err := gp.Run(10, func(i int) {}); err != ErrNotReady {
		t.Errorf("Run before Config: got %v, want ErrNotReady", err)
	}
	if err := gp.Barrier(); err != ErrNotReady {
		t.Errorf("Barrier before Config: got %v, want ErrNotReady", err)
	}
}
