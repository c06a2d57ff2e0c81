// Copyright (c) 2026, The Compartmental Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package history

import "testing"

func TestSampleAndReadOrdering(t *testing.T) {
	r := New([]int{5, 9}, 4)
	for tick := 0; tick < 3; tick++ {
		t32 := tick
		r.Sample(func(globalIdx int) float32 {
			if globalIdx == 5 {
				return float32(t32)
			}
			return float32(t32 * 10)
		})
	}
	got, err := r.Read(0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []float32{0, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, v := range want {
		if got[i] != v {
			t.Errorf("probe 0 sample %d = %v, want %v", i, got[i], v)
		}
	}
}

func TestWraparoundOverwritesOldest(t *testing.T) {
	r := New([]int{0}, 3)
	for tick := 0; tick < 5; tick++ {
		v := float32(tick)
		r.Sample(func(int) float32 { return v })
	}
	got, _ := r.Read(0)
	want := []float32{2, 3, 4}
	if len(got) != 3 {
		t.Fatalf("expected capacity-limited length 3, got %d", len(got))
	}
	for i, v := range want {
		if got[i] != v {
			t.Errorf("sample %d = %v, want %v", i, got[i], v)
		}
	}
}

func TestReadDuringWarmupReturnsFewerSamples(t *testing.T) {
	r := New([]int{0}, 100)
	r.Sample(func(int) float32 { return 1 })
	r.Sample(func(int) float32 { return 2 })
	got, err := r.Read(0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 samples during warmup, got %d", len(got))
	}
}

func TestReadOutOfRangeProbe(t *testing.T) {
	r := New([]int{0}, 10)
	if _, err := r.Read(1); err == nil {
		t.Errorf("expected error for out-of-range probe index")
	}
}

func TestResetClearsRing(t *testing.T) {
	r := New([]int{0}, 10)
	r.Sample(func(int) float32 { return 1 })
	r.Reset()
	if r.Len(0) != 0 {
		t.Errorf("expected ring length 0 after Reset, got %d", r.Len(0))
	}
	got, _ := r.Read(0)
	if len(got) != 0 {
		t.Errorf("expected empty read after Reset, got %d samples", len(got))
	}
}
