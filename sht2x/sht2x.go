// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sht2x interfaces with the Sensirion SHT20, SHT21 and SHT25
// temperature/humidity sensors.
//
// Unlike the newer families, the SHT2x measures temperature and humidity
// with two separate commands whose conversion times differ, and exposes
// its configuration (measurement resolution, heater, OTP reload) through
// a single byte user register. Measurements can run in hold master mode,
// where the sensor stretches the clock until the conversion completes, or
// in no-hold mode where the master waits and polls.
//
// # Datasheet
//
// https://sensirion.com/media/documents/120BBE4C/63500094/Sensirion_Datasheet_Humidity_Sensor_SHT21.pdf
package sht2x

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"

	"github.com/Giakou/sensirion-epics/common"
)

// SensorAddress is the only I2C address the SHT2x responds to.
const SensorAddress uint16 = 0x40

// Mode selects between hold and no-hold master measurements.
type Mode int

const (
	// Hold stretches the I2C clock during the conversion.
	Hold Mode = iota
	// NoHold releases the bus during the conversion; the driver sleeps
	// the worst-case conversion time before reading.
	NoHold
)

func (m Mode) String() string {
	switch m {
	case Hold:
		return "hold"
	case NoHold:
		return "no_hold"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode converts a configuration string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "hold":
		return Hold, nil
	case "no_hold":
		return NoHold, nil
	}
	return 0, fmt.Errorf("sht2x: mode %q is not allowed, only hold or no_hold: %w", s, common.ErrConfig)
}

// Resolution selects the ADC resolution of both signals through user
// register bits 7 and 0.
type Resolution int

const (
	// RH12T14 is 12 bit humidity, 14 bit temperature (default).
	RH12T14 Resolution = iota
	RH8T12
	RH10T13
	RH11T11
)

// Worst-case conversion times at 14 bit temperature / 12 bit humidity
// resolution, from the datasheet.
const (
	waitTemp = 85 * time.Millisecond
	waitRH   = 29 * time.Millisecond
)

var cmdMeasureTemp = map[Mode]common.Command{
	Hold:   {Opcode: []byte{0xe3}, Wait: waitTemp, ResponseLen: 3},
	NoHold: {Opcode: []byte{0xf3}, Wait: waitTemp, ResponseLen: 3},
}

var cmdMeasureRH = map[Mode]common.Command{
	Hold:   {Opcode: []byte{0xe5}, Wait: waitRH, ResponseLen: 3},
	NoHold: {Opcode: []byte{0xf5}, Wait: waitRH, ResponseLen: 3},
}

var (
	cmdReadUserRegister  = common.Command{Opcode: []byte{0xe7}, Wait: 15 * time.Millisecond, ResponseLen: 1}
	cmdWriteUserRegister = common.Command{Opcode: []byte{0xe6}, Wait: 15 * time.Millisecond}
	cmdSoftReset         = common.Command{Opcode: []byte{0xfe}, Wait: 15 * time.Millisecond}
	cmdSerialNumber      = common.Command{Opcode: []byte{0xfa, 0x0f}, Wait: 3 * time.Millisecond, ResponseLen: 6}
)

// User register bits.
const (
	urHeater       = 1 << 2
	urOTPDisable   = 1 << 1
	urEndOfBattery = 1 << 6
	urResolutionHi = 1 << 7
	urResolutionLo = 1 << 0
)

// Opts holds the configuration of the device, validated at construction.
type Opts struct {
	// Mode selects hold or no-hold master measurements.
	Mode Mode
	// DisableCRC skips checksum verification of received words.
	DisableCRC bool
}

// DefaultOpts is hold master mode with checksum verification enabled.
var DefaultOpts = Opts{Mode: Hold}

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

// Dev represents an SHT2x sensor. The bus and address are fixed at
// construction.
type Dev struct {
	d     *i2c.Dev
	mode  Mode
	check bool

	mu       sync.Mutex
	last     Env
	haveLast bool
}

// New returns an SHT2x driver on the supplied bus. Passing nil opts uses
// DefaultOpts. Configuration is validated before any bus I/O.
func New(b i2c.Bus, opts *Opts) (*Dev, error) {
	if opts == nil {
		o := DefaultOpts
		opts = &o
	}
	if _, ok := cmdMeasureTemp[opts.Mode]; !ok {
		return nil, fmt.Errorf("sht2x: mode %d is not allowed: %w", int(opts.Mode), common.ErrConfig)
	}
	return &Dev{
		d:     &i2c.Dev{Bus: b, Addr: SensorAddress},
		mode:  opts.Mode,
		check: !opts.DisableCRC,
	}, nil
}

// senseRaw runs one measurement command and returns the 16-bit code with
// the two trailing status bits masked off.
func (d *Dev) senseRaw(cmd common.Command) (uint16, error) {
	words, err := common.Tx(d.d, cmd, nil, d.check)
	if err != nil {
		return 0, err
	}
	return words[0] &^ 0x0003, nil
}

// Sense measures temperature and then humidity as two sequential
// transactions, each with its own conversion time, and fills e with the
// decoded values.
func (d *Dev) Sense(e *Env) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	rawT, err := d.senseRaw(cmdMeasureTemp[d.mode])
	if err != nil {
		return fmt.Errorf("sht2x: temperature: %w", err)
	}
	rawRH, err := d.senseRaw(cmdMeasureRH[d.mode])
	if err != nil {
		return fmt.Errorf("sht2x: humidity: %w", err)
	}
	t := common.TempFromCount(-46.85, 175.72, rawT)
	rh := common.RHFromCount(-6, 125, rawRH)
	if t < 0 {
		rh = common.RHIce(t, rh)
	}
	dp, err := common.DewPoint(t, rh)
	if err != nil {
		return fmt.Errorf("sht2x: %w", err)
	}
	env := Env{DewPoint: common.Celsius(dp)}
	env.Temperature = common.Celsius(t)
	env.Humidity = common.RelHumidity(rh)
	*e = env
	d.last = env
	d.haveLast = true
	return nil
}

// Last returns the most recent successful measurement. ok is false until
// the first successful read cycle.
func (d *Dev) Last() (e Env, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last, d.haveLast
}

// SerialNumber returns the factory-programmed electronic identification
// code.
func (d *Dev) SerialNumber() (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	words, err := common.Tx(d.d, cmdSerialNumber, nil, d.check)
	if err != nil {
		return 0, fmt.Errorf("sht2x: serial number: %w", err)
	}
	return uint32(words[0])<<16 | uint32(words[1]), nil
}

// Reset issues a soft reset. The user register is restored to its default
// except for the heater bit.
func (d *Dev) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := common.Tx(d.d, cmdSoftReset, nil, d.check); err != nil {
		return fmt.Errorf("sht2x: soft reset: %w", err)
	}
	return nil
}

// Halt is a no-op: the SHT2x has no autonomous acquisition mode to stop.
// It exists so the device can be guarded by an acquisition session.
// Implements conn.Resource.
func (d *Dev) Halt() error {
	return nil
}

func (d *Dev) userRegister() (byte, error) {
	r, err := common.TxRaw(d.d, cmdReadUserRegister, nil)
	if err != nil {
		return 0, fmt.Errorf("sht2x: user register: %w", err)
	}
	return r[0], nil
}

func (d *Dev) writeUserRegister(value byte) error {
	if _, err := common.TxRaw(d.d, cmdWriteUserRegister, []byte{value}); err != nil {
		return fmt.Errorf("sht2x: user register: %w", err)
	}
	return nil
}

// Resolution reads the measurement resolution from the user register.
func (d *Dev) Resolution() (Resolution, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ur, err := d.userRegister()
	if err != nil {
		return 0, err
	}
	switch {
	case ur&urResolutionHi == 0 && ur&urResolutionLo == 0:
		return RH12T14, nil
	case ur&urResolutionHi == 0:
		return RH8T12, nil
	case ur&urResolutionLo == 0:
		return RH10T13, nil
	default:
		return RH11T11, nil
	}
}

// SetResolution writes the measurement resolution bits of the user
// register, preserving the reserved bits.
func (d *Dev) SetResolution(res Resolution) error {
	if res < RH12T14 || res > RH11T11 {
		return fmt.Errorf("sht2x: resolution %d is not allowed: %w", int(res), common.ErrOutOfRange)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	ur, err := d.userRegister()
	if err != nil {
		return err
	}
	ur &^= urResolutionHi | urResolutionLo
	if res == RH10T13 || res == RH11T11 {
		ur |= urResolutionHi
	}
	if res == RH8T12 || res == RH11T11 {
		ur |= urResolutionLo
	}
	return d.writeUserRegister(ur)
}

// Heater reports whether the on-chip heater is enabled.
func (d *Dev) Heater() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ur, err := d.userRegister()
	if err != nil {
		return false, err
	}
	return ur&urHeater != 0, nil
}

// SetHeater switches the on-chip heater through the user register.
func (d *Dev) SetHeater(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ur, err := d.userRegister()
	if err != nil {
		return err
	}
	if on {
		ur |= urHeater
	} else {
		ur &^= urHeater
	}
	return d.writeUserRegister(ur)
}

// OTPReload reports whether the OTP reload of default settings after each
// measurement is disabled. The datasheet recommends keeping it disabled.
func (d *Dev) OTPReload() (disabled bool, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ur, err := d.userRegister()
	if err != nil {
		return false, err
	}
	return ur&urOTPDisable != 0, nil
}

// EndOfBattery reports the supply voltage alert: true when VDD dropped
// below 2.25 V.
func (d *Dev) EndOfBattery() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ur, err := d.userRegister()
	if err != nil {
		return false, err
	}
	return ur&urEndOfBattery != 0, nil
}

// Precision returns the resolution of the measurements at the default
// 14/12 bit setting.
func (d *Dev) Precision(e *Env) {
	e.Temperature = 10 * physic.MilliKelvin
	e.Humidity = 4 * physic.PercentRH / 100
	e.Pressure = 0
	e.DewPoint = 10 * physic.MilliKelvin
}

func (d *Dev) String() string {
	return fmt.Sprintf("sht2x{%s, %s}", d.d.String(), d.mode)
}

var _ conn.Resource = &Dev{}
