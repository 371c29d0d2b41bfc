// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package scd4x interfaces with the Sensirion SCD40 and SCD41
// photoacoustic CO2, temperature and humidity sensors.
//
// Both sensors measure in periodic mode, publishing a conversion every
// 5 seconds, or every 30 seconds in low power periodic mode. The SCD41
// additionally supports on-demand single shot measurement and a power
// down mode for battery operation. Configuration commands are only
// accepted while the sensor is idle; the driver enforces this and stops
// reporting instead of silently interleaving commands.
//
// # Datasheet
//
// https://sensirion.com/media/documents/48C4B7FB/66E05452/CD_DS_SCD4x_Datasheet_D1.pdf
package scd4x
