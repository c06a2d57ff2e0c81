// Copyright (c) 2026, The Compartmental Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package driver implements HostDriver, the top-level orchestrator:
// it owns the compartment.Store, sequences kernel dispatches through a
// device.Executor, samples probes into a history.Ring, and runs
// package analysis and package feedback on the configured
// analysis_interval cadence. It is the sole place in this module that
// serializes store mutations and kernel launches; device errors are
// fatal for the instance, and analyzer/controller recoverable
// conditions (NaN metrics, a still-warming ring) never propagate to
// the caller.
package driver

import (
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/chewxy/math32"
	"github.com/emer/emergent/v2/params"

	"github.com/emer/compartmental/v2/analysis"
	"github.com/emer/compartmental/v2/compartment"
	"github.com/emer/compartmental/v2/device"
	"github.com/emer/compartmental/v2/feedback"
	"github.com/emer/compartmental/v2/history"
	"github.com/emer/compartmental/v2/kernel"
	"github.com/emer/compartmental/v2/morphology"
)

// WarnLog is the package-level logger warnings are written to:
// injected currents outside the physiological range are accepted but
// logged. Plain stdlib log, the same convention leabra's
// networkbase.go uses in its error paths.
var WarnLog = log.New(log.Writer(), "driver: ", log.LstdFlags)

// MaxPhysiologicalInjectPA is the threshold beyond which an injected
// current is still accepted but logged as a warning.
const MaxPhysiologicalInjectPA = 10000 // 10 nA

// DefaultAnalysisInterval is used when a caller passes a
// non-positive analysisInterval to New.
const DefaultAnalysisInterval = 1000

// DefaultWatchdog is how long Step waits for a kernel dispatch to
// complete before declaring the device hung. Override with
// WithWatchdog.
const DefaultWatchdog = 5 * time.Second

// HostDriver orchestrates one simulation run end to end.
type HostDriver struct {
	store      *compartment.Store
	kern       *kernel.Kernel
	exec       device.Executor
	ring       *history.Ring
	analyzer   *analysis.Analyzer
	controller *feedback.Controller

	dt               float32
	channelSet       compartment.ChannelSet
	analysisInterval int
	numNeurons       int

	somaIdx     []int32
	hostCurrent []float32
	watchdog    time.Duration

	lastResult []analysis.Result
	haveResult []bool

	tick  uint64
	fatal error
}

// Option configures a HostDriver at construction.
type Option func(*HostDriver) error

// WithExecutor overrides the default device.CPUExecutor, e.g. with a
// device.GPUExecutor a caller has already Config'd against the same
// topology. Passing an executor that was not configured against this
// driver's store is a caller bug; HostDriver does not attempt to
// validate it.
func WithExecutor(exec device.Executor) Option {
	return func(d *HostDriver) error {
		d.exec = exec
		return nil
	}
}

// WithGPU replaces the default CPU backend with a device.GPUExecutor
// configured against the driver's freshly built store, reporting any
// configuration failure as a ResourceError with the attempted buffer
// footprint.
func WithGPU(nThreads int) Option {
	return func(d *HostDriver) error {
		gp := device.NewGPUExecutor(nThreads)
		if err := gp.Config(d.store); err != nil {
			sz := datasize.ByteSize(d.store.TotalCount()) * datasize.ByteSize(compartmentByteSize)
			return &ResourceError{Err: fmt.Errorf("GPU backend configuration failed for a %v compartment buffer: %w", sz.HumanReadable(), err)}
		}
		d.exec = gp
		return nil
	}
}

// WithWatchdog overrides DefaultWatchdog, the maximum time Step waits
// for a kernel dispatch before reporting the device hung as a fatal
// DeviceError. d <= 0 disables the watchdog entirely.
func WithWatchdog(dur time.Duration) Option {
	return func(d *HostDriver) error {
		d.watchdog = dur
		return nil
	}
}

// WithParams applies a params.Sheet's Controller and Analyzer
// selectors to the controller's smoothing/bound and the analyzer's
// regime thresholds, the same Sel-scoped override mechanism leabra's
// ParamSets apply to Layer.Act.* fields. Unmatched
// selectors or parameter names are left at their published defaults.
// Unparsable Controller values are accumulated with errors.Join and
// reported together as a single ConfigurationError, so a sheet with
// several bad Controller values surfaces all of them at once; an
// unparsable Analyzer value is logged to WarnLog and ignored.
func WithParams(sheet *params.Sheet) Option {
	return func(d *HostDriver) error {
		if sheet == nil {
			return nil
		}
		var errs []error
		if v, err := sheet.ParamValue("Controller", "Alpha"); err == nil {
			if f, perr := strconv.ParseFloat(v, 32); perr != nil {
				errs = append(errs, fmt.Errorf("Controller.Alpha: %w", perr))
			} else {
				d.controller.Alpha = float32(f)
			}
		}
		if v, err := sheet.ParamValue("Controller", "Bound"); err == nil {
			if f, perr := strconv.ParseFloat(v, 32); perr != nil {
				errs = append(errs, fmt.Errorf("Controller.Bound: %w", perr))
			} else {
				d.controller.Bound = float32(f)
			}
		}
		applyAnalyzerFloat(sheet, "ChaosLambdaMin", &d.analyzer.Cfg.ChaosLambdaMin)
		applyAnalyzerFloat(sheet, "ChaosD2Min", &d.analyzer.Cfg.ChaosD2Min)
		applyAnalyzerFloat(sheet, "ChaosD2Max", &d.analyzer.Cfg.ChaosD2Max)
		applyAnalyzerFloat(sheet, "LimitCycleD2", &d.analyzer.Cfg.LimitCycleD2)
		applyAnalyzerFloat(sheet, "LimitCycleLambda", &d.analyzer.Cfg.LimitCycleLambda)
		applyAnalyzerFloat(sheet, "FixedPointStdDev", &d.analyzer.Cfg.FixedPointStdDev)
		if len(errs) > 0 {
			return &ConfigurationError{Err: errors.Join(errs...)}
		}
		return nil
	}
}

// applyAnalyzerFloat looks up param in the "Analyzer" selector and, if
// present and numeric, overwrites dst. An absent value is skipped
// silently; a malformed value is logged to WarnLog and skipped rather
// than failing.
func applyAnalyzerFloat(sheet *params.Sheet, param string, dst *float64) {
	v, err := sheet.ParamValue("Analyzer", param)
	if err != nil {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		WarnLog.Printf("params: Analyzer.%s = %q is not numeric, ignoring", param, v)
		return
	}
	*dst = f
}

// compartmentByteSize is a rough per-compartment footprint estimate
// (electrical + gating + topology fields) used only for diagnostics:
// the ResourceError message above and New's footprint log line; it
// does not need to be exact.
const compartmentByteSize = 256

// New allocates a HostDriver for numNeurons neurons of the standard
// 152-compartment pyramidal template, integrating at dt milliseconds
// per tick with the given channel set, running package analysis every
// analysisInterval ticks. analysisInterval <= 0 defaults to
// DefaultAnalysisInterval.
func New(numNeurons int, dt float32, channelSet compartment.ChannelSet, analysisInterval int, opts ...Option) (*HostDriver, error) {
	if dt <= 0 {
		return nil, &ConfigurationError{Err: fmt.Errorf("dt must be positive, got %v", dt)}
	}
	if analysisInterval <= 0 {
		analysisInterval = DefaultAnalysisInterval
	}

	store, err := compartment.New(numNeurons, compartment.CompsPerNeuron, channelSet)
	if err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	if err := morphology.Build(store); err != nil {
		return nil, &ConfigurationError{Err: err}
	}

	kern, err := kernel.New(dt, store.TotalCount())
	if err != nil {
		return nil, &ConfigurationError{Err: err}
	}

	soma := make([]int32, numNeurons)
	for n := 0; n < numNeurons; n++ {
		soma[n] = int32(store.NeuronBase(n))
	}
	somaInts := make([]int, numNeurons)
	for i, s := range soma {
		somaInts[i] = int(s)
	}

	d := &HostDriver{
		store:            store,
		kern:             kern,
		exec:             device.NewCPUExecutor(0),
		ring:             history.New(somaInts, history.DefaultCapacity),
		analyzer:         analysis.New(dt),
		controller:       feedback.New(numNeurons),
		dt:               dt,
		channelSet:       channelSet,
		analysisInterval: analysisInterval,
		numNeurons:       numNeurons,
		somaIdx:          soma,
		hostCurrent:      make([]float32, store.TotalCount()),
		watchdog:         DefaultWatchdog,
		lastResult:       make([]analysis.Result, numNeurons),
		haveResult:       make([]bool, numNeurons),
	}

	// Options are all applied before failing, accumulating their errors
	// the way Network.Build joins per-layer build failures, so a caller
	// sees every construction problem in one pass.
	var optErrs []error
	for _, opt := range opts {
		if err := opt(d); err != nil {
			optErrs = append(optErrs, err)
		}
	}
	if len(optErrs) > 0 {
		return nil, errors.Join(optErrs...)
	}

	footprint := datasize.ByteSize(store.TotalCount()) * datasize.ByteSize(compartmentByteSize+4+4)
	footprint += datasize.ByteSize(numNeurons * history.DefaultCapacity * 4)
	log.Printf("driver: allocated %v neurons (%v compartments, ~%v resident)", numNeurons, store.TotalCount(), footprint.HumanReadable())

	return d, nil
}

// TotalCount, NeuronCount, and CompsPerNeuron delegate to the store.
func (d *HostDriver) TotalCount() int     { return d.store.TotalCount() }
func (d *HostDriver) NeuronCount() int    { return d.store.NeuronCount() }
func (d *HostDriver) CompsPerNeuron() int { return d.store.CompsPerNeuron() }

// Initialize resets all compartments to resting state and clears the
// history ring and controller state. It is idempotent: two successive
// calls produce identical snapshots.
func (d *HostDriver) Initialize() error {
	fresh, err := compartment.New(d.numNeurons, compartment.CompsPerNeuron, d.channelSet)
	if err != nil {
		return &ConfigurationError{Err: err}
	}
	if err := morphology.Build(fresh); err != nil {
		return &ConfigurationError{Err: err}
	}
	d.store = fresh
	d.kern.Resize(fresh.TotalCount())
	d.ring.Reset()
	d.controller.Reset()
	for i := range d.hostCurrent {
		d.hostCurrent[i] = 0
	}
	for i := range d.haveResult {
		d.haveResult[i] = false
	}
	d.tick = 0
	d.fatal = nil
	return nil
}

// Inject writes the external current (pA) for a single global
// compartment index, storing it separately from the controller's own
// homeostatic ΔI_inject so the two compose additively rather than
// clobbering one another.
func (d *HostDriver) Inject(globalIdx int, pA float32) error {
	if globalIdx < 0 || globalIdx >= len(d.hostCurrent) {
		return &ConfigurationError{Err: fmt.Errorf("index %d out of range [0,%d)", globalIdx, len(d.hostCurrent))}
	}
	if math32.IsNaN(pA) || math32.IsInf(pA, 0) {
		return &ConfigurationError{Err: fmt.Errorf("non-finite injected current %v at compartment %d", pA, globalIdx)}
	}
	if math32.Abs(pA) > MaxPhysiologicalInjectPA {
		WarnLog.Printf("injected current %v pA at compartment %d exceeds physiological range +/-%v pA", pA, globalIdx, MaxPhysiologicalInjectPA)
	}
	d.hostCurrent[globalIdx] = pA
	return nil
}

// InjectNeuron writes pA into neuronIdx's soma compartment.
func (d *HostDriver) InjectNeuron(neuronIdx int, pA float32) error {
	if neuronIdx < 0 || neuronIdx >= d.numNeurons {
		return &ConfigurationError{Err: fmt.Errorf("neuron index %d out of range [0,%d)", neuronIdx, d.numNeurons)}
	}
	return d.Inject(int(d.somaIdx[neuronIdx]), pA)
}

// Step advances the simulation by one tick: applies the controller's
// smoothed offsets, launches the kernel, samples probes, and -- every
// analysisInterval ticks -- runs the analyzer and feeds its output
// back into the controller for the *next* tick's Apply.
//
// Device errors are fatal: once Step returns a *DeviceError, every
// subsequent call returns the same cached error immediately.
func (d *HostDriver) Step() error {
	if d.fatal != nil {
		return d.fatal
	}

	d.controller.Apply(d.store)
	d.composeExternalCurrent()

	total := d.store.TotalCount()
	if err := d.dispatch(total); err != nil {
		d.fatal = &DeviceError{Err: err}
		return d.fatal
	}
	if err := d.exec.Barrier(); err != nil {
		d.fatal = &DeviceError{Err: err}
		return d.fatal
	}
	if d.exec.HostStep() {
		d.kern.Commit(d.store)
	}

	if err := d.checkFinite(); err != nil {
		return err
	}

	d.ring.Sample(func(globalIdx int) float32 { return d.store.Comps[globalIdx].Voltage })
	d.tick++

	if d.analysisInterval > 0 && d.tick%uint64(d.analysisInterval) == 0 {
		d.runAnalysis()
	}
	return nil
}

// dispatch launches one tick's kernel work, bounding the wait with the
// configured watchdog: a dispatch that does not complete in time is
// reported as a hang. The abandoned dispatch goroutine
// is left to finish on its own -- the driver is fatally dead at that
// point, so nothing will observe its writes.
func (d *HostDriver) dispatch(total int) error {
	run := func() error {
		return d.exec.Run(total, func(i int) { d.kern.StepCompartment(d.store, i) })
	}
	if d.watchdog <= 0 {
		return run()
	}
	done := make(chan error, 1)
	go func() { done <- run() }()
	select {
	case err := <-done:
		return err
	case <-time.After(d.watchdog):
		return fmt.Errorf("%s backend did not complete a dispatch within %v", d.exec.Name(), d.watchdog)
	}
}

// composeExternalCurrent recomputes the store's external-current
// buffer as the host's own injected current plus, at each neuron's
// soma, the controller's smoothed ΔI_inject.
func (d *HostDriver) composeExternalCurrent() {
	copy(d.store.ExtCurrent, d.hostCurrent)
	for n := 0; n < d.numNeurons; n++ {
		soma := int(d.somaIdx[n])
		d.store.ExtCurrent[soma] += d.controller.InjectOffset(n)
	}
}

// checkFinite scans for a non-finite voltage after the kernel's clamp,
// which indicates a bug rather than a user error.
func (d *HostDriver) checkFinite() error {
	for i := range d.store.Comps {
		v := d.store.Comps[i].Voltage
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			return &NumericalError{Err: fmt.Errorf("non-finite voltage at compartment %d after clamp", i)}
		}
	}
	return nil
}

// runAnalysis runs the analyzer on every neuron's soma probe and, for
// any result with finite metrics, feeds the regime label into the
// controller. NaN metrics (the ring still warming up) never reach the
// controller.
func (d *HostDriver) runAnalysis() {
	for n := 0; n < d.numNeurons; n++ {
		res, err := d.analyzer.AnalyzeRing(d.ring, n)
		if err != nil {
			continue
		}
		if math.IsNaN(res.D2) || math.IsNaN(res.Lambda1) {
			// Ring still warming up: no result to report, no update for
			// the controller this cycle.
			continue
		}
		d.lastResult[n] = res
		d.haveResult[n] = true
		d.controller.OnRegime(n, res.Regime)
	}
}

// Advance runs Step n times, stopping at and returning the first
// error.
func (d *HostDriver) Advance(n int) error {
	for i := 0; i < n; i++ {
		if err := d.Step(); err != nil {
			return err
		}
	}
	return nil
}

// SnapshotVoltages returns a dense copy of every compartment's
// voltage.
func (d *HostDriver) SnapshotVoltages() []float32 {
	t := d.store.SnapshotVoltages()
	return t.Values
}

// SnapshotNeuron returns one neuron's voltages in ordinal order.
func (d *HostDriver) SnapshotNeuron(neuronIdx int) ([]float32, error) {
	t, err := d.store.SnapshotNeuron(neuronIdx)
	if err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	return t.Values, nil
}

// Regime returns neuronIdx's most recent analyzer output and whether
// the ring has warmed up enough to have produced one yet. A false ok
// means the caller should treat the simulator as still warming up.
func (d *HostDriver) Regime(neuronIdx int) (res analysis.Result, ok bool) {
	if neuronIdx < 0 || neuronIdx >= d.numNeurons {
		return analysis.Result{}, false
	}
	return d.lastResult[neuronIdx], d.haveResult[neuronIdx]
}

// Close releases the underlying device.Executor's resources.
func (d *HostDriver) Close() error {
	return d.exec.Close()
}
