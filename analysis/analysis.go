// Copyright (c) 2026, The Compartmental Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package analysis implements AttractorAnalyzer: correlation dimension
// (Grassberger-Procaccia), the largest Lyapunov exponent (Rosenstein's
// method), the dominant frequency (FFT), and the qualitative regime
// label the rest of the core keys off of. It runs on a float64 copy of
// a probe's voltage trace -- unlike the float32 kernel hot path, this
// is offline statistical analysis of a batch of samples, the same role
// gonum plays for etable's table-stats and plotting code.
package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/emer/compartmental/v2/history"
)

// Regime is the qualitative label attached to a voltage trace.
type Regime uint8

const (
	FixedPoint Regime = iota
	LimitCycle
	ChaoticAttractor
	Noise
)

func (r Regime) String() string {
	switch r {
	case FixedPoint:
		return "FixedPoint"
	case LimitCycle:
		return "LimitCycle"
	case ChaoticAttractor:
		return "ChaoticAttractor"
	default:
		return "Noise"
	}
}

// Result is one analyzer invocation's output.
type Result struct {
	D2      float64
	Lambda1 float64
	FDom    float64 // Hz
	Regime  Regime
}

// Config carries the tunable pieces of the regime-classification
// thresholds. DefaultConfig publishes the standard values; a caller
// may override them at construction (directly or through the driver
// package's params.Sheet option).
type Config struct {
	EmbeddingDim     int
	MaxLyapunovSteps int
	FixedPointStdDev float64
	LimitCycleD2     float64
	LimitCycleLambda float64
	ChaosLambdaMin   float64
	ChaosD2Min       float64
	ChaosD2Max       float64
}

// DefaultConfig returns the published classification thresholds.
func DefaultConfig() Config {
	return Config{
		EmbeddingDim:     5,
		MaxLyapunovSteps: 50,
		FixedPointStdDev: 0.5,
		LimitCycleD2:     1.2,
		LimitCycleLambda: 0.02,
		ChaosLambdaMin:   0.05,
		ChaosD2Min:       1.5,
		ChaosD2Max:       4.0,
	}
}

// Analyzer runs AttractorAnalyzer over probe traces read from a
// history.Ring.
type Analyzer struct {
	Cfg Config
	// SampleIntervalMs is the host driver's dt, the time between
	// consecutive samples in the trace (probes are sampled once per
	// tick), used to convert the FFT's normalized frequency bins to Hz.
	SampleIntervalMs float32
}

// New returns an Analyzer with the default thresholds.
func New(sampleIntervalMs float32) *Analyzer {
	return &Analyzer{Cfg: DefaultConfig(), SampleIntervalMs: sampleIntervalMs}
}

// AnalyzeRing reads probe i's trace out of ring and analyzes it.
func (a *Analyzer) AnalyzeRing(ring *history.Ring, probeIdx int) (Result, error) {
	trace, err := ring.Read(probeIdx)
	if err != nil {
		return Result{}, err
	}
	return a.Analyze(trace), nil
}

// Analyze runs the full analysis pipeline on a voltage trace (mV).
// Traces shorter than history.MinAnalysisSamples return Noise with NaN
// metrics; package feedback treats NaN as "no update this cycle".
func (a *Analyzer) Analyze(traceF32 []float32) Result {
	if len(traceF32) < history.MinAnalysisSamples {
		return Result{D2: math.NaN(), Lambda1: math.NaN(), FDom: math.NaN(), Regime: Noise}
	}
	trace := make([]float64, len(traceF32))
	for i, v := range traceF32 {
		trace[i] = float64(v)
	}

	sd := stat.StdDev(trace, nil)
	if sd < a.Cfg.FixedPointStdDev {
		return Result{D2: 0, Lambda1: 0, FDom: 0, Regime: FixedPoint}
	}

	tau := autocorrelationDelay(trace)
	dim := a.Cfg.EmbeddingDim
	emb := embed(trace, dim, tau)
	fullLen := len(emb)
	emb = subsampleEmbedding(emb, maxEmbeddingPoints)
	excludeTau := tau
	if fullLen > len(emb) && len(emb) > 0 {
		excludeTau = tau * len(emb) / fullLen
		if excludeTau < 1 {
			excludeTau = 1
		}
	}

	d2 := correlationDimension(emb)
	lambda1 := rosensteinLambda(emb, excludeTau, a.Cfg.MaxLyapunovSteps)
	fdom := dominantFrequency(trace, a.SampleIntervalMs)

	regime := classify(a.Cfg, d2, lambda1)
	return Result{D2: d2, Lambda1: lambda1, FDom: fdom, Regime: regime}
}

func classify(cfg Config, d2, lambda1 float64) Regime {
	if d2 < cfg.LimitCycleD2 && lambda1 < cfg.LimitCycleLambda {
		return LimitCycle
	}
	if lambda1 > cfg.ChaosLambdaMin && d2 >= cfg.ChaosD2Min && d2 <= cfg.ChaosD2Max {
		return ChaoticAttractor
	}
	return Noise
}

// autocorrelationDelay returns the first lag at which the trace's
// normalized autocorrelation crosses zero, or the fixed 5-sample
// fallback when it never does within half the trace length.
const fallbackDelay = 5

func autocorrelationDelay(trace []float64) int {
	mean := stat.Mean(trace, nil)
	centered := make([]float64, len(trace))
	for i, v := range trace {
		centered[i] = v - mean
	}
	var0 := floats.Dot(centered, centered)
	if var0 == 0 {
		return fallbackDelay
	}
	maxLag := len(trace) / 2
	for lag := 1; lag < maxLag; lag++ {
		var c float64
		for i := 0; i < len(trace)-lag; i++ {
			c += centered[i] * centered[i+lag]
		}
		c /= var0
		if c <= 0 {
			return lag
		}
	}
	return fallbackDelay
}

// embed builds delay-coordinate vectors from trace with embedding
// dimension dim and delay tau.
func embed(trace []float64, dim, tau int) [][]float64 {
	n := len(trace) - (dim-1)*tau
	if n <= 0 {
		return nil
	}
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		v := make([]float64, dim)
		for d := 0; d < dim; d++ {
			v[d] = trace[i+d*tau]
		}
		out[i] = v
	}
	return out
}

// maxEmbeddingPoints bounds the correlation-sum and nearest-neighbor
// searches below to O(maxEmbeddingPoints^2): HistoryRing traces run up
// to 10000 samples, and an unbounded pairwise search over the full
// embedding would dominate analyzer wall-clock at the largest
// configured analysis_interval. Evenly subsampling preserves the
// attractor's geometry well enough for the D2/lambda1 estimates this
// package reports.
const maxEmbeddingPoints = 1500

func subsampleEmbedding(emb [][]float64, maxPoints int) [][]float64 {
	if len(emb) <= maxPoints {
		return emb
	}
	out := make([][]float64, maxPoints)
	step := float64(len(emb)) / float64(maxPoints)
	for i := 0; i < maxPoints; i++ {
		out[i] = emb[int(float64(i)*step)]
	}
	return out
}

func euclid(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return math.Sqrt(s)
}

// correlationDimension estimates D2 by Grassberger-Procaccia: the
// correlation sum C(r) is the fraction of embedded point pairs closer
// than r, and D2 is the slope of log C(r) against log r over the
// middle 60% of the available log-r range.
func correlationDimension(emb [][]float64) float64 {
	n := len(emb)
	if n < 2 {
		return math.NaN()
	}
	dists := pairwiseDistances(emb)
	if len(dists) == 0 {
		return math.NaN()
	}
	sort.Float64s(dists)
	rMin, rMax := dists[0], dists[len(dists)-1]
	if rMin <= 0 {
		rMin = dists[len(dists)-1] * 1e-6
	}
	if rMax <= rMin {
		return math.NaN()
	}

	const nBins = 24
	logMin, logMax := math.Log(rMin), math.Log(rMax)
	loR := logMin + 0.2*(logMax-logMin)
	hiR := logMin + 0.8*(logMax-logMin)

	var logRs, logCs []float64
	for b := 0; b < nBins; b++ {
		logR := logMin + (logMax-logMin)*float64(b)/float64(nBins-1)
		if logR < loR || logR > hiR {
			continue
		}
		r := math.Exp(logR)
		idx := sort.SearchFloat64s(dists, r)
		c := float64(idx) / float64(len(dists))
		if c <= 0 {
			continue
		}
		logRs = append(logRs, logR)
		logCs = append(logCs, math.Log(c))
	}
	if len(logRs) < 2 {
		return math.NaN()
	}
	_, slope := stat.LinearRegression(logRs, logCs, nil, false)
	return slope
}

// pairwiseDistances returns the upper-triangle Euclidean distances
// between every pair of embedded points.
func pairwiseDistances(emb [][]float64) []float64 {
	n := len(emb)
	out := make([]float64, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			out = append(out, euclid(emb[i], emb[j]))
		}
	}
	return out
}

// rosensteinLambda estimates the largest Lyapunov exponent by the
// Rosenstein method: for every embedded point, find its nearest
// neighbor excluding temporal neighbors within one autocorrelation
// time (tau), track the log divergence of the two trajectories for up
// to maxSteps, and regress the average log divergence against step
// index.
func rosensteinLambda(emb [][]float64, tau, maxSteps int) float64 {
	n := len(emb)
	if n < 10 {
		return math.NaN()
	}
	nn := make([]int, n)
	for i := range emb {
		best := -1
		bestD := math.Inf(1)
		for j := range emb {
			if j == i || abs(i-j) <= tau {
				continue
			}
			d := euclid(emb[i], emb[j])
			if d < bestD {
				bestD = d
				best = j
			}
		}
		nn[i] = best
	}

	sums := make([]float64, maxSteps+1)
	counts := make([]int, maxSteps+1)
	for i := range emb {
		j := nn[i]
		if j < 0 {
			continue
		}
		for k := 0; k <= maxSteps; k++ {
			if i+k >= n || j+k >= n {
				break
			}
			d := euclid(emb[i+k], emb[j+k])
			if d <= 0 {
				continue
			}
			sums[k] += math.Log(d)
			counts[k]++
		}
	}

	var xs, ys []float64
	for k := 0; k <= maxSteps; k++ {
		if counts[k] == 0 {
			continue
		}
		xs = append(xs, float64(k))
		ys = append(ys, sums[k]/float64(counts[k]))
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	_, slope := stat.LinearRegression(xs, ys, nil, false)
	return slope
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// dominantFrequency returns the frequency (Hz) of the largest-magnitude
// positive-frequency bin of trace's FFT, excluding DC, after
// mean-subtraction and a Hann window.
func dominantFrequency(trace []float64, dtMs float32) float64 {
	n := len(trace)
	windowed := make([]float64, n)
	mean := stat.Mean(trace, nil)
	for i, v := range trace {
		w := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
		windowed[i] = (v - mean) * w
	}

	fft := fourier.NewFFT(n)
	coef := fft.Coefficients(nil, windowed)

	sampleHz := 1000.0 / float64(dtMs)
	bestMag := -1.0
	bestBin := -1
	for i := 1; i < len(coef); i++ {
		mag := math.Hypot(real(coef[i]), imag(coef[i]))
		if mag > bestMag {
			bestMag = mag
			bestBin = i
		}
	}
	if bestBin < 0 {
		return math.NaN()
	}
	return fft.Freq(bestBin) * sampleHz
}
