// Copyright (c) 2026, The Compartmental Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package device

import (
	"runtime"
	"sync"
)

// CPUExecutor runs dispatched work across a fixed pool of goroutines,
// one worker per thread, each claiming fixed-size chunks of the index
// range. NThreads mirrors the network-wide thread count
// leabra.NetworkStru carries (NThreads <= 1 runs the loop in-place on
// the calling goroutine, same as ThrLayFun's fast path).
type CPUExecutor struct {
	NThreads int
}

// NewCPUExecutor returns a CPUExecutor sized to nThreads worker
// goroutines. nThreads <= 0 defaults to runtime.GOMAXPROCS(0).
func NewCPUExecutor(nThreads int) *CPUExecutor {
	if nThreads <= 0 {
		nThreads = runtime.GOMAXPROCS(0)
	}
	return &CPUExecutor{NThreads: nThreads}
}

func (e *CPUExecutor) Name() string { return "cpu" }

// Run splits [0,total) into e.NThreads contiguous chunks and runs fn
// over each chunk on its own goroutine, blocking until all chunks
// finish.
func (e *CPUExecutor) Run(total int, fn StepFunc) error {
	if total <= 0 {
		return nil
	}
	nt := e.NThreads
	if nt <= 1 || total < nt {
		for i := 0; i < total; i++ {
			fn(i)
		}
		return nil
	}
	chunk := (total + nt - 1) / nt
	var wg sync.WaitGroup
	for th := 0; th < nt; th++ {
		start := th * chunk
		if start >= total {
			break
		}
		end := start + chunk
		if end > total {
			end = total
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				fn(i)
			}
		}(start, end)
	}
	wg.Wait()
	return nil
}

// Barrier is a no-op: Run already blocks until every goroutine it
// spawned has returned.
func (e *CPUExecutor) Barrier() error { return nil }

// HostStep is true: Run calls the kernel's Go step function directly,
// so the caller owns the shadow-buffer commit.
func (e *CPUExecutor) HostStep() bool { return true }

// Close is a no-op: CPUExecutor holds no resources beyond its thread
// count.
func (e *CPUExecutor) Close() error { return nil }
