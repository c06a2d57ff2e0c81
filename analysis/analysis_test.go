// Copyright (c) 2026, The Compartmental Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package analysis

import (
	"math"
	"testing"
)

func TestAnalyzeTooShortReturnsNoiseNaN(t *testing.T) {
	a := New(0.01)
	trace := make([]float32, 100)
	res := a.Analyze(trace)
	if res.Regime != Noise {
		t.Errorf("expected Noise for short trace, got %v", res.Regime)
	}
	if !math.IsNaN(res.D2) || !math.IsNaN(res.Lambda1) || !math.IsNaN(res.FDom) {
		t.Errorf("expected NaN metrics for a degenerate trace, got %+v", res)
	}
}

func TestAnalyzeConstantTraceIsFixedPoint(t *testing.T) {
	a := New(0.01)
	trace := make([]float32, 3000)
	for i := range trace {
		trace[i] = -70
	}
	res := a.Analyze(trace)
	if res.Regime != FixedPoint {
		t.Errorf("expected FixedPoint for a flat trace, got %v", res.Regime)
	}
}

func TestAnalyzeSineWaveProducesPlausibleDominantFrequency(t *testing.T) {
	a := New(1.0) // 1 ms per sample -> 1 kHz sample rate
	const n = 4096
	const freqHz = 40.0 // within the 5-200 Hz S4 scenario band
	trace := make([]float32, n)
	for i := 0; i < n; i++ {
		t := float64(i) // ms, since dt = 1
		trace[i] = float32(10*math.Sin(2*math.Pi*freqHz*t/1000) - 70)
	}
	res := a.Analyze(trace)
	if math.IsNaN(res.FDom) {
		t.Fatalf("expected a finite dominant frequency, got NaN")
	}
	if math.Abs(res.FDom-freqHz) > 2.0 {
		t.Errorf("FDom = %v, want close to %v", res.FDom, freqHz)
	}
}

func TestRegimeStringers(t *testing.T) {
	for _, r := range []Regime{FixedPoint, LimitCycle, ChaoticAttractor, Noise} {
		if r.String() == "" {
			t.Errorf("regime %d has empty string", r)
		}
	}
}

func TestClassifyThresholds(t *testing.T) {
	cfg := DefaultConfig()
	if classify(cfg, 1.0, 0.01) != LimitCycle {
		t.Errorf("expected LimitCycle for D2=1.0 lambda=0.01")
	}
	if classify(cfg, 2.0, 0.1) != ChaoticAttractor {
		t.Errorf("expected ChaoticAttractor for D2=2.0 lambda=0.1")
	}
	if classify(cfg, 3.0, 0.01) != Noise {
		t.Errorf("expected Noise for D2=3.0 lambda=0.01 (neither threshold met)")
	}
}
