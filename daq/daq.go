// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package daq manages an I2C acquisition session: it initialises the
// host, opens a bus, keeps track of the sensors running on it and tears
// everything down in order when the session ends. Sensors left in
// periodic measurement mode keep measuring after the process exits, so
// the teardown halts every guarded device before releasing the bus.
package daq

import (
	"context"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// ErrBusUnavailable is returned by Open when the requested bus cannot be
// opened on this host.
var ErrBusUnavailable = errors.New("daq: i2c bus unavailable")

// ErrReservedBus is returned by Open for bus numbers that must not carry
// sensors. On the Raspberry Pi, bus 0 drives the HAT ID EEPROM and bus 2
// is routed to the display connector.
var ErrReservedBus = errors.New("daq: i2c bus is reserved")

var reservedBuses = map[int]struct{}{
	0: {},
	2: {},
}

// Session is an open I2C bus together with the devices guarded on it.
type Session struct {
	bus i2c.BusCloser

	mu      sync.Mutex
	guarded []conn.Resource
	closed  bool
}

// Open initialises the host drivers and opens the numbered I2C bus.
func Open(busNumber int) (*Session, error) {
	if _, reserved := reservedBuses[busNumber]; reserved {
		return nil, errors.Wrapf(ErrReservedBus, "daq: bus %d", busNumber)
	}
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "daq: host init")
	}
	bus, err := i2creg.Open(strconv.Itoa(busNumber))
	if err != nil {
		logrus.WithError(err).WithField("bus", busNumber).Error("daq: opening i2c bus failed")
		return nil, errors.Wrapf(ErrBusUnavailable, "daq: bus %d", busNumber)
	}
	return &Session{bus: bus}, nil
}

// Bus returns the underlying bus for constructing drivers on it.
func (s *Session) Bus() i2c.Bus {
	return s.bus
}

// Guard registers a device for teardown. Guarded devices are halted in
// reverse registration order when the session closes.
func (s *Session) Guard(r conn.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guarded = append(s.guarded, r)
}

// Close halts every guarded device and then closes the bus. Halting is
// best effort: a device that fails to halt is logged and teardown
// continues so the remaining devices still get stopped. Close is
// idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for i := len(s.guarded) - 1; i >= 0; i-- {
		r := s.guarded[i]
		if err := r.Halt(); err != nil {
			logrus.WithError(err).WithField("device", r.String()).Warn("daq: halting device failed")
		}
	}
	s.guarded = nil
	if err := s.bus.Close(); err != nil {
		return errors.Wrap(err, "daq: closing bus")
	}
	return nil
}

// Run opens a session on the numbered bus and invokes fn with it. The
// session is torn down when fn returns or when ctx is cancelled,
// whichever comes first; on cancellation the ctx error is returned after
// teardown completes.
func Run(ctx context.Context, busNumber int, fn func(context.Context, *Session) error) error {
	s, err := Open(busNumber)
	if err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		done <- fn(ctx, s)
	}()
	select {
	case err := <-done:
		if cerr := s.Close(); err == nil {
			err = cerr
		}
		return err
	case <-ctx.Done():
		if err := s.Close(); err != nil {
			logrus.WithError(err).Warn("daq: teardown after cancellation failed")
		}
		<-done
		return ctx.Err()
	}
}
