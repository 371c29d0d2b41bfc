// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package daq

import (
	"context"
	"errors"
	"testing"

	"periph.io/x/conn/v3/i2c/i2ctest"
)

type fakeDevice struct {
	name   string
	halted *[]string
	err    error
}

func (f *fakeDevice) Halt() error {
	*f.halted = append(*f.halted, f.name)
	return f.err
}

func (f *fakeDevice) String() string {
	return f.name
}

func TestOpen_RejectsReservedBuses(t *testing.T) {
	for _, busNumber := range []int{0, 2} {
		if _, err := Open(busNumber); !errors.Is(err, ErrReservedBus) {
			t.Errorf("Open(%d) = %v, want ErrReservedBus", busNumber, err)
		}
	}
}

func TestClose_HaltsGuardedInReverseOrder(t *testing.T) {
	var halted []string
	s := &Session{bus: &i2ctest.Playback{DontPanic: true}}
	s.Guard(&fakeDevice{name: "first", halted: &halted})
	s.Guard(&fakeDevice{name: "second", halted: &halted})
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if len(halted) != 2 || halted[0] != "second" || halted[1] != "first" {
		t.Errorf("halt order = %v, want [second first]", halted)
	}
}

func TestClose_ContinuesPastHaltFailure(t *testing.T) {
	var halted []string
	s := &Session{bus: &i2ctest.Playback{DontPanic: true}}
	s.Guard(&fakeDevice{name: "first", halted: &halted})
	s.Guard(&fakeDevice{name: "broken", halted: &halted, err: errors.New("stuck")})
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if len(halted) != 2 {
		t.Errorf("halted %v, want both devices attempted", halted)
	}
}

func TestClose_Idempotent(t *testing.T) {
	var halted []string
	s := &Session{bus: &i2ctest.Playback{DontPanic: true}}
	s.Guard(&fakeDevice{name: "only", halted: &halted})
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if len(halted) != 1 {
		t.Errorf("device halted %d times, want once", len(halted))
	}
}

func TestRun_ReservedBusFailsFast(t *testing.T) {
	err := Run(context.Background(), 2, func(_ context.Context, _ *Session) error {
		t.Error("fn must not run for a reserved bus")
		return nil
	})
	if !errors.Is(err, ErrReservedBus) {
		t.Fatalf("Run = %v, want ErrReservedBus", err)
	}
}
