// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sht4x interfaces with the Sensirion SHT-40, SHT-41 and SHT-45
// temperature/humidity sensors.
//
// The SHT4x family keeps a minimal command set: every opcode is a single
// byte, there is no periodic mode, and the measurement repeatability is
// selected per single-shot command rather than through a register. The
// integrated heater can be pulsed at three power levels to remove
// condensation from the sensing element.
//
// # Datasheet
//
// https://sensirion.com/media/documents/33FD6951/67EB9032/HT_DS_Datasheet_SHT4x_5.pdf
package sht4x

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"

	"github.com/Giakou/sensirion-epics/common"
)

// Repeatability trades measurement noise against conversion time.
type Repeatability int

const (
	High Repeatability = iota
	Medium
	Low
)

func (r Repeatability) String() string {
	switch r {
	case High:
		return "high"
	case Medium:
		return "medium"
	case Low:
		return "low"
	}
	return fmt.Sprintf("Repeatability(%d)", int(r))
}

// ParseRepeatability converts a configuration string to a Repeatability.
func ParseRepeatability(s string) (Repeatability, error) {
	switch s {
	case "high":
		return High, nil
	case "medium":
		return Medium, nil
	case "low":
		return Low, nil
	}
	return 0, fmt.Errorf("sht4x: repeatability %q is not allowed, only high, medium or low: %w", s, common.ErrConfig)
}

// HeaterPower selects the heater element power.
type HeaterPower int

const (
	Power20mW HeaterPower = iota
	Power110mW
	Power200mW
)

// HeaterDuration is how long the heater stays on. Only the two documented
// pulse lengths are valid.
type HeaterDuration time.Duration

const (
	Duration100ms HeaterDuration = HeaterDuration(100 * time.Millisecond)
	Duration1s    HeaterDuration = HeaterDuration(time.Second)
)

// DefaultAddress is the address of the SHT4x-A variants. The -B and -C
// variants use 0x45 and 0x46.
const DefaultAddress i2c.Addr = 0x44

// Single-shot measurement opcodes and conversion times per repeatability.
var cmdMeasure = map[Repeatability]common.Command{
	High:   {Opcode: []byte{0xfd}, Wait: 8300 * time.Microsecond, ResponseLen: 6},
	Medium: {Opcode: []byte{0xf6}, Wait: 4500 * time.Microsecond, ResponseLen: 6},
	Low:    {Opcode: []byte{0xe0}, Wait: 1600 * time.Microsecond, ResponseLen: 6},
}

var (
	cmdSoftReset        = common.Command{Opcode: []byte{0x94}, Wait: time.Millisecond}
	cmdReadSerialNumber = common.Command{Opcode: []byte{0x89}, Wait: time.Millisecond, ResponseLen: 6}
)

// Heater opcodes indexed by duration then power.
var cmdHeater = map[HeaterDuration]map[HeaterPower]byte{
	Duration1s:    {Power200mW: 0x39, Power110mW: 0x2f, Power20mW: 0x1e},
	Duration100ms: {Power200mW: 0x32, Power110mW: 0x24, Power20mW: 0x15},
}

const minSampleDuration = 10 * time.Millisecond

// Opts holds the configuration of the device, validated at construction.
type Opts struct {
	// Repeatability of single-shot conversions, High by default.
	Repeatability Repeatability
	// DisableCRC skips checksum verification of received words.
	DisableCRC bool
}

// DefaultOpts is high repeatability with checksum verification enabled.
var DefaultOpts = Opts{Repeatability: High}

// Env is one decoded measurement.
type Env struct {
	physic.Env
	// DewPoint is derived from temperature and humidity with the Magnus
	// formula.
	DewPoint physic.Temperature
}

func (e *Env) String() string {
	return fmt.Sprintf("Temperature: %s Humidity: %s DewPoint: %s",
		e.Temperature.String(), e.Humidity.String(), e.DewPoint.String())
}

// Dev represents an SHT-4X series temperature/humidity sensor. The bus
// and address are fixed at construction.
type Dev struct {
	d     *i2c.Dev
	rep   Repeatability
	check bool

	mu       sync.Mutex
	shutdown chan struct{}
	last     Env
	haveLast bool
}

// New returns an SHT4x driver on the supplied bus. addr must be one of
// 0x44, 0x45 or 0x46 depending on the sensor variant. Passing nil opts
// uses DefaultOpts. Configuration is validated before any bus I/O.
func New(bus i2c.Bus, addr i2c.Addr, opts *Opts) (*Dev, error) {
	if addr != 0x44 && addr != 0x45 && addr != 0x46 {
		return nil, fmt.Errorf("sht4x: address %#x is not allowed, only 0x44, 0x45 or 0x46: %w", uint16(addr), common.ErrConfig)
	}
	if opts == nil {
		o := DefaultOpts
		opts = &o
	}
	if _, ok := cmdMeasure[opts.Repeatability]; !ok {
		return nil, fmt.Errorf("sht4x: repeatability %d is not allowed: %w", int(opts.Repeatability), common.ErrConfig)
	}
	return &Dev{
		d:     &i2c.Dev{Bus: bus, Addr: uint16(addr)},
		rep:   opts.Repeatability,
		check: !opts.DisableCRC,
	}, nil
}

func (dev *Dev) decode(words []uint16) (Env, error) {
	t := common.TempFromCount(-45, 175, words[0])
	rh := common.RHFromCount(-6, 125, words[1])
	if t < 0 {
		rh = common.RHIce(t, rh)
	}
	dp, err := common.DewPoint(t, rh)
	if err != nil {
		return Env{}, fmt.Errorf("sht4x: %w", err)
	}
	e := Env{DewPoint: common.Celsius(dp)}
	e.Temperature = common.Celsius(t)
	e.Humidity = common.RelHumidity(rh)
	return e, nil
}

// Sense performs a single-shot acquisition at the configured
// repeatability and fills e with the decoded measurement.
func (dev *Dev) Sense(e *Env) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	words, err := common.Tx(dev.d, cmdMeasure[dev.rep], nil, dev.check)
	if err != nil {
		return fmt.Errorf("sht4x: error reading device: %w", err)
	}
	env, err := dev.decode(words)
	if err != nil {
		return err
	}
	*e = env
	dev.last = env
	dev.haveLast = true
	return nil
}

// Last returns the most recent successful measurement. ok is false until
// the first successful read cycle.
func (dev *Dev) Last() (e Env, ok bool) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.last, dev.haveLast
}

// SenseContinuous reads the device on the requested interval and streams
// the measurements on the returned channel. Call Halt to terminate.
func (dev *Dev) SenseContinuous(interval time.Duration) (<-chan Env, error) {
	dev.mu.Lock()
	if dev.shutdown != nil {
		dev.mu.Unlock()
		return nil, errors.New("sht4x: SenseContinuous already running")
	}
	if interval < minSampleDuration {
		dev.mu.Unlock()
		return nil, fmt.Errorf("sht4x: sample interval is < device sample rate: %w", common.ErrConfig)
	}
	dev.shutdown = make(chan struct{})
	shutdown := dev.shutdown
	dev.mu.Unlock()

	ch := make(chan Env, 16)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		defer close(ch)
		for {
			select {
			case <-shutdown:
				return
			case <-ticker.C:
				env := Env{}
				if err := dev.Sense(&env); err == nil {
					select {
					case ch <- env:
					default:
					}
				}
			}
		}
	}()
	return ch, nil
}

// Halt terminates a SenseContinuous loop if one is running. The SHT4x has
// no acquisition mode of its own to stop, so Halt never fails and is safe
// to call from teardown paths. Implements conn.Resource.
func (dev *Dev) Halt() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.shutdown != nil {
		close(dev.shutdown)
		dev.shutdown = nil
	}
	return nil
}

// Reset issues a soft-reset to the device.
func (dev *Dev) Reset() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if _, err := common.Tx(dev.d, cmdSoftReset, nil, dev.check); err != nil {
		return fmt.Errorf("sht4x: error resetting: %w", err)
	}
	return nil
}

// SerialNumber returns the device serial number set at the factory.
func (dev *Dev) SerialNumber() (uint32, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	words, err := common.Tx(dev.d, cmdReadSerialNumber, nil, dev.check)
	if err != nil {
		return 0, fmt.Errorf("sht4x: serial number: %w", err)
	}
	return uint32(words[0])<<16 | uint32(words[1]), nil
}

// SetHeater pulses the sensor heater at the given power for the given
// duration and returns the measurement taken at the end of the pulse.
// Heating the element allows operation in condensing environments; refer
// to section 4.9 of the datasheet.
func (dev *Dev) SetHeater(power HeaterPower, duration HeaterDuration) (Env, error) {
	byDuration, ok := cmdHeater[duration]
	if !ok {
		return Env{}, fmt.Errorf("sht4x: invalid heater duration %s: %w", time.Duration(duration), common.ErrConfig)
	}
	opcode, ok := byDuration[power]
	if !ok {
		return Env{}, fmt.Errorf("sht4x: invalid heater power %d: %w", int(power), common.ErrConfig)
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()
	cmd := common.Command{
		Opcode:      []byte{opcode},
		Wait:        time.Duration(duration) + 10*time.Millisecond,
		ResponseLen: 6,
	}
	words, err := common.Tx(dev.d, cmd, nil, dev.check)
	if err != nil {
		return Env{}, fmt.Errorf("sht4x: error setting heater: %w", err)
	}
	env, err := dev.decode(words)
	if err != nil {
		return Env{}, err
	}
	dev.last = env
	dev.haveLast = true
	return env, nil
}

// Precision returns the smallest change in readings the device can
// produce.
func (dev *Dev) Precision(e *Env) {
	e.Temperature = physic.Kelvin / 100
	e.Humidity = physic.PercentRH / 100
	e.Pressure = 0
	e.DewPoint = physic.Kelvin / 100
}

// String returns a string representation of the device.
func (dev *Dev) String() string {
	return fmt.Sprintf("sht4x{%s, %s}", dev.d.String(), dev.rep)
}

var _ conn.Resource = &Dev{}
