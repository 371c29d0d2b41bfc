// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package common

import "errors"

// Sentinel errors shared by the drivers. Wrap them with fmt.Errorf("...: %w")
// to add the device and command context; test with errors.Is.
var (
	// ErrChecksum reports a received word whose trailing CRC byte does not
	// match the recomputed checksum.
	ErrChecksum = errors.New("checksum mismatch")

	// ErrTimeout reports a bounded ready-status poll that expired before
	// the sensor flagged data as available.
	ErrTimeout = errors.New("timeout waiting for data ready")

	// ErrOutOfRange reports a calibration or configuration value outside
	// the range documented for the register. No bus transaction is issued.
	ErrOutOfRange = errors.New("value out of range")

	// ErrConfig reports an invalid constructor argument. Raised before any
	// bus I/O takes place.
	ErrConfig = errors.New("invalid configuration")
)
