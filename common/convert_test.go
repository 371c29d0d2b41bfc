// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package common

import (
	"errors"
	"math"
	"testing"

	"periph.io/x/conn/v3/physic"
)

func TestTempFromCount(t *testing.T) {
	tests := []struct {
		min, span float64
		count     uint16
		expected  float64
	}{
		// -45 + 175*26243/65535 over the SHT85 span.
		{min: -45, span: 175, count: 0x6683, expected: 25.08},
		// Datasheet example: 25 degrees.
		{min: -45, span: 175, count: 0x6667, expected: 25.0},
		{min: -45, span: 175, count: 0, expected: -45},
		{min: -45, span: 175, count: 0xffff, expected: 130},
		// SHT2x scale.
		{min: -46.85, span: 175.72, count: 0, expected: -46.85},
		{min: -46.85, span: 175.72, count: 0xffff, expected: 128.87},
	}
	for _, test := range tests {
		got := TempFromCount(test.min, test.span, test.count)
		if math.Abs(got-test.expected) > 0.005 {
			t.Errorf("TempFromCount(%g, %g, %#x)=%g expected %g", test.min, test.span, test.count, got, test.expected)
		}
	}
}

func TestTempFromCountMonotonic(t *testing.T) {
	prev := TempFromCount(-45, 175, 0)
	for count := 1; count <= 0xffff; count += 17 {
		cur := TempFromCount(-45, 175, uint16(count))
		if cur < prev {
			t.Fatalf("TempFromCount not monotonic at count %#x: %g < %g", count, cur, prev)
		}
		prev = cur
	}
}

// Humidity must never decode to exactly 0%: the dew point computation
// takes log(rh/100).
func TestRHFromCountFloor(t *testing.T) {
	for count := 0; count <= 0xffff; count += 13 {
		// SHT2x/SHT4x scale, which goes negative at the low end.
		if rh := RHFromCount(-6, 125, uint16(count)); rh <= 0 {
			t.Fatalf("RHFromCount(-6, 125, %#x)=%g, must be > 0", count, rh)
		}
		// SHT85 scale.
		if rh := RHFromCount(0, 100, uint16(count)); rh <= 0 {
			t.Fatalf("RHFromCount(0, 100, %#x)=%g, must be > 0", count, rh)
		}
	}
}

func TestRHIce(t *testing.T) {
	// The ice-referenced value is larger than the water-referenced one for
	// t < 0 and never 0.
	for _, temp := range []float64{-0.5, -10, -25, -40} {
		rhw := 30.0
		rhi := RHIce(temp, rhw)
		if rhi <= rhw {
			t.Errorf("RHIce(%g, %g)=%g, expected > %g", temp, rhw, rhi, rhw)
		}
	}
	if rhi := RHIce(-40, 0.001); rhi <= 0 {
		t.Errorf("RHIce floor failed: %g", rhi)
	}
}

func TestDewPointKnownValues(t *testing.T) {
	tests := []struct {
		t, rh    float64
		expected float64
	}{
		{t: 20, rh: 100, expected: 20},
		{t: 25, rh: 50, expected: 13.86},
		{t: 21.1, rh: 45.9, expected: 8.83},
		{t: -10, rh: 50, expected: -17.58},
	}
	for _, test := range tests {
		got, err := DewPoint(test.t, test.rh)
		if err != nil {
			t.Fatalf("DewPoint(%g, %g): %v", test.t, test.rh, err)
		}
		if math.Abs(got-test.expected) > 0.25 {
			t.Errorf("DewPoint(%g, %g)=%g expected about %g", test.t, test.rh, got, test.expected)
		}
	}
}

// The dew point can never exceed the air temperature.
func TestDewPointBelowTemperature(t *testing.T) {
	for temp := -40.0; temp <= 60.0; temp += 2.5 {
		for rh := 1.0; rh <= 100.0; rh += 4.5 {
			dp, err := DewPoint(temp, rh)
			if err != nil {
				t.Fatalf("DewPoint(%g, %g): %v", temp, rh, err)
			}
			// Allow for the 2-decimal rounding.
			if dp > temp+0.01 {
				t.Fatalf("DewPoint(%g, %g)=%g exceeds temperature", temp, rh, dp)
			}
		}
	}
}

func TestDewPointRejectsZeroRH(t *testing.T) {
	if _, err := DewPoint(20, 0); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("DewPoint(20, 0) err=%v, expected ErrOutOfRange", err)
	}
	if _, err := DewPoint(20, -1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("DewPoint(20, -1) err=%v, expected ErrOutOfRange", err)
	}
}

func TestPhysicConversions(t *testing.T) {
	if got := Celsius(25); got != physic.ZeroCelsius+25*physic.Celsius {
		t.Errorf("Celsius(25)=%s", got)
	}
	if got := RelHumidity(50); got != 50*physic.PercentRH {
		t.Errorf("RelHumidity(50)=%s", got)
	}
}
