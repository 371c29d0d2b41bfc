// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package common

import (
	"fmt"
	"math"

	"periph.io/x/conn/v3/physic"
)

// Magnus coefficients from the Sensirion humidity application note
// "Introduction to Relative Humidity". The saturation vapour pressure
// constant alpha (6.112 hPa) cancels out of the dew point formula and is
// not needed here.
type magnus struct {
	beta   float64
	lambda float64 // degrees Celsius
}

var (
	magnusWater = magnus{beta: 17.62, lambda: 243.12}
	magnusIce   = magnus{beta: 22.46, lambda: 272.62}
)

const countDivisor = float64(1<<16 - 1)

// Relative humidity is floored to a small positive value instead of 0%
// because the dew point computation takes its logarithm.
const rhFloor = 1e-3

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// TempFromCount converts a raw 16-bit temperature code to degrees Celsius
// using the family's documented scale, e.g. min -45, span 175 for the
// SHT85/SHT4x/SCD4x or min -46.85, span 175.72 for the SHT2x. The result
// is rounded to the 0.01 degree resolution of the sensors.
func TempFromCount(min, span float64, count uint16) float64 {
	return round2(min + span*float64(count)/countDivisor)
}

// RHFromCount converts a raw 16-bit humidity code to percent relative
// humidity above liquid water, rounded to 0.01 %RH and floored above zero.
func RHFromCount(min, span float64, count uint16) float64 {
	rh := round2(min + span*float64(count)/countDivisor)
	if rh < 0.01 {
		rh = rhFloor
	}
	return rh
}

// RHIce corrects water-calibrated relative humidity to an ice-referenced
// value for temperatures below freezing. Sensirion calibrates the sensors
// against the saturation point over liquid water even below 0 degrees, so
// readings in frost conditions need this re-referencing before use.
func RHIce(t, rhWater float64) float64 {
	rh := round2(rhWater * math.Exp(magnusWater.beta*t/magnusWater.lambda) /
		math.Exp(magnusIce.beta*t/magnusIce.lambda))
	if rh < 0.01 {
		rh = rhFloor
	}
	return rh
}

// DewPoint computes the dew point in degrees Celsius from temperature and
// relative humidity using the Magnus formula, selecting the water or ice
// coefficient table on the sign of t. rh must be strictly positive; the
// conversion floor guarantees that for decoded readings, but the guard
// remains for direct callers.
func DewPoint(t, rh float64) (float64, error) {
	if rh <= 0 {
		return 0, fmt.Errorf("dew point undefined for relative humidity %g%%: %w", rh, ErrOutOfRange)
	}
	mc := magnusWater
	if t < 0 {
		mc = magnusIce
	}
	c1 := mc.beta * t / (mc.lambda + t)
	c2 := math.Log(rh / 100.0)
	return round2(mc.lambda * (c2 + c1) / (mc.beta - c2 - c1)), nil
}

// Celsius converts a temperature in degrees Celsius to a physic.Temperature.
func Celsius(t float64) physic.Temperature {
	return physic.ZeroCelsius + physic.Temperature(t*float64(physic.Celsius))
}

// RelHumidity converts percent relative humidity to a
// physic.RelativeHumidity.
func RelHumidity(rh float64) physic.RelativeHumidity {
	return physic.RelativeHumidity(rh * float64(physic.PercentRH))
}
