// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sensirion is a container for Sensirion environmental sensor
// drivers sharing one I2C command transaction layer.
//
// Each sensor family lives in its own package: sht2x, sht4x and sht85
// for humidity and temperature, scd30 and scd4x for CO2, and sgp30 for
// air quality. The common package holds the CRC-8 framing, the command
// transaction primitive and the unit conversions they share. The daq
// package manages bus sessions and cmd/sensirion-prom exports readings
// to Prometheus.
package sensirion
