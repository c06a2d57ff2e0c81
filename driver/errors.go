// Copyright (c) 2026, The Compartmental Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package driver

import "fmt"

// ConfigurationError wraps an invalid construction parameter: bad dt,
// an unsupported compartments-per-neuron count, or an inconsistent
// channel set.
type ConfigurationError struct{ Err error }

func (e *ConfigurationError) Error() string { return fmt.Sprintf("driver: configuration error: %v", e.Err) }
func (e *ConfigurationError) Unwrap() error { return e.Err }

// ResourceError wraps a device initialization or buffer allocation
// failure.
type ResourceError struct{ Err error }

func (e *ResourceError) Error() string { return fmt.Sprintf("driver: resource error: %v", e.Err) }
func (e *ResourceError) Unwrap() error { return e.Err }

// DeviceError wraps a dispatch failure, watchdog timeout, or readback
// failure during Step. Device errors during Step are fatal for the
// owning HostDriver instance.
type DeviceError struct{ Err error }

func (e *DeviceError) Error() string { return fmt.Sprintf("driver: device error: %v", e.Err) }
func (e *DeviceError) Unwrap() error { return e.Err }

// NumericalError wraps a non-finite voltage observed after the
// per-tick clamp. This indicates a bug in the kernel or its caller,
// not a user-input error, but it must still be surfaced rather than
// silently swallowed.
type NumericalError struct{ Err error }

func (e *NumericalError) Error() string { return fmt.Sprintf("driver: numerical error: %v", e.Err) }
func (e *NumericalError) Unwrap() error { return e.Err }
