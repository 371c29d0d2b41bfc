// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package scd30 interfaces with the Sensirion SCD30 NDIR CO2, temperature
// and humidity sensor module.
//
// The SCD30 only measures autonomously: continuous measurement is started
// once, optionally with an ambient pressure compensation value, and fresh
// conversions are collected by polling the data-ready status and reading
// the measurement block. Unlike the other Sensirion sensors, measurement
// values are transferred as big-endian IEEE-754 floats spread over two
// CRC-protected words each. Drift compensation is available through
// automatic self-calibration or a forced recalibration reference.
//
// # Datasheet
//
// https://sensirion.com/media/documents/4EAF6AF8/61652C3C/Sensirion_CO2_Sensors_SCD30_Interface_Description.pdf
package scd30

import (
	"fmt"
	"math"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"

	"github.com/Giakou/sensirion-epics/common"
)

// SensorAddress is the only I2C address the SCD30 responds to.
const SensorAddress uint16 = 0x61

// PPM is a CO2 concentration in parts per million.
type PPM float64

func (p PPM) String() string {
	return fmt.Sprintf("%.1f ppm", float64(p))
}

var (
	cmdStartContinuous = common.Command{Opcode: []byte{0x00, 0x10}, Wait: 5 * time.Millisecond}
	cmdStopContinuous  = common.Command{Opcode: []byte{0x01, 0x04}, Wait: 5 * time.Millisecond}
	cmdInterval        = common.Command{Opcode: []byte{0x46, 0x00}, Wait: 5 * time.Millisecond, ResponseLen: 3}
	cmdSetInterval     = common.Command{Opcode: []byte{0x46, 0x00}, Wait: 5 * time.Millisecond}
	cmdDataReady       = common.Command{Opcode: []byte{0x02, 0x02}, Wait: 3 * time.Millisecond, ResponseLen: 3}
	cmdReadMeasurement = common.Command{Opcode: []byte{0x03, 0x00}, Wait: 3 * time.Millisecond, ResponseLen: 18}
	cmdASC             = common.Command{Opcode: []byte{0x53, 0x06}, Wait: 5 * time.Millisecond, ResponseLen: 3}
	cmdSetASC          = common.Command{Opcode: []byte{0x53, 0x06}, Wait: 5 * time.Millisecond}
	cmdFRC             = common.Command{Opcode: []byte{0x52, 0x04}, Wait: 5 * time.Millisecond, ResponseLen: 3}
	cmdSetFRC          = common.Command{Opcode: []byte{0x52, 0x04}, Wait: 5 * time.Millisecond}
	cmdTempOffset      = common.Command{Opcode: []byte{0x54, 0x03}, Wait: 5 * time.Millisecond, ResponseLen: 3}
	cmdSetTempOffset   = common.Command{Opcode: []byte{0x54, 0x03}, Wait: 5 * time.Millisecond}
	cmdAltitude        = common.Command{Opcode: []byte{0x51, 0x02}, Wait: 5 * time.Millisecond, ResponseLen: 3}
	cmdSetAltitude     = common.Command{Opcode: []byte{0x51, 0x02}, Wait: 5 * time.Millisecond}
	cmdFirmwareVersion = common.Command{Opcode: []byte{0xd1, 0x00}, Wait: 3 * time.Millisecond, ResponseLen: 3}
	cmdSoftReset       = common.Command{Opcode: []byte{0xd3, 0x04}, Wait: 5 * time.Millisecond}
	cmdSerialNumber    = common.Command{Opcode: []byte{0xd0, 0x33}, Wait: 3 * time.Millisecond, ResponseLen: 6}
)

// Data-ready poll bounds. The poll gives up with common.ErrTimeout when
// the attempts run out without the ready flag coming up; package
// variables so the tests can tighten them.
var (
	maxReadyAttempts = 100
	readyBackoff     = 50 * time.Millisecond
)

// Opts holds the configuration of the device, validated at construction.
type Opts struct {
	// DisableCRC skips checksum verification of received words.
	DisableCRC bool
}

// Env is one decoded measurement.
type Env struct {
	physic.Env
	// CO2 concentration.
	CO2 PPM
	// DewPoint is derived from temperature and humidity with the Magnus
	// formula.
	DewPoint physic.Temperature
}

func (e *Env) String() string {
	return fmt.Sprintf("Temperature: %s Humidity: %s CO2: %s DewPoint: %s",
		e.Temperature.String(), e.Humidity.String(), e.CO2.String(), e.DewPoint.String())
}

// Dev represents an SCD30 module. The bus and address are fixed at
// construction.
type Dev struct {
	d     *i2c.Dev
	check bool

	mu         sync.Mutex
	continuous bool
	last       Env
	haveLast   bool
}

// New returns an SCD30 driver on the supplied bus. Passing nil opts keeps
// checksum verification enabled.
func New(b i2c.Bus, opts *Opts) (*Dev, error) {
	check := true
	if opts != nil {
		check = !opts.DisableCRC
	}
	return &Dev{
		d:     &i2c.Dev{Bus: b, Addr: SensorAddress},
		check: check,
	}, nil
}

// StartContinuous begins continuous measurement. ambientPressureMBar
// compensates the CO2 reading for ambient pressure; it must be 0 to
// disable compensation or within 700 to 1200 mbar. The mode persists in
// the sensor across power cycles until stopped.
func (d *Dev) StartContinuous(ambientPressureMBar int) error {
	if ambientPressureMBar != 0 && (ambientPressureMBar < 700 || ambientPressureMBar > 1200) {
		return fmt.Errorf("scd30: ambient pressure %d mbar outside 700..1200: %w", ambientPressureMBar, common.ErrOutOfRange)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := common.Tx(d.d, cmdStartContinuous, []uint16{uint16(ambientPressureMBar)}, d.check); err != nil {
		return fmt.Errorf("scd30: start continuous: %w", err)
	}
	d.continuous = true
	return nil
}

// Halt stops continuous measurement. It is idempotent and safe to call
// even when continuous mode was never started. Implements conn.Resource.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.continuous = false
	if _, err := common.Tx(d.d, cmdStopContinuous, nil, d.check); err != nil {
		return fmt.Errorf("scd30: stop: %w", err)
	}
	return nil
}

// dataReady reports whether a fresh conversion is waiting in the sensor
// buffer.
func (d *Dev) dataReady() (bool, error) {
	words, err := common.Tx(d.d, cmdDataReady, nil, d.check)
	if err != nil {
		return false, err
	}
	return words[0] != 0, nil
}

func float32FromWords(hi, lo uint16) float64 {
	return float64(math.Float32frombits(uint32(hi)<<16 | uint32(lo)))
}

// Fetch waits for the running continuous measurement to produce a fresh
// conversion and decodes it into e. StartContinuous must have been called
// first; the sensor keeps measuring across power cycles, so starting it
// again is harmless. The data-ready poll is bounded: if the ready flag
// never rises the error wraps common.ErrTimeout instead of spinning
// forever.
func (d *Dev) Fetch(e *Env) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.continuous {
		return fmt.Errorf("scd30: fetch without continuous measurement running: %w", common.ErrConfig)
	}
	ready := false
	for attempt := 0; attempt < maxReadyAttempts; attempt++ {
		r, err := d.dataReady()
		if err != nil {
			return fmt.Errorf("scd30: fetch: %w", err)
		}
		if r {
			ready = true
			break
		}
		time.Sleep(readyBackoff)
	}
	if !ready {
		return fmt.Errorf("scd30: fetch after %d ready polls: %w", maxReadyAttempts, common.ErrTimeout)
	}
	words, err := common.Tx(d.d, cmdReadMeasurement, nil, d.check)
	if err != nil {
		return fmt.Errorf("scd30: read measurement: %w", err)
	}
	co2 := float32FromWords(words[0], words[1])
	t := float32FromWords(words[2], words[3])
	rh := float32FromWords(words[4], words[5])
	if rh <= 0 {
		rh = 1e-3
	}
	if t < 0 {
		rh = common.RHIce(t, rh)
	}
	dp, err := common.DewPoint(t, rh)
	if err != nil {
		return fmt.Errorf("scd30: %w", err)
	}
	env := Env{CO2: PPM(co2), DewPoint: common.Celsius(dp)}
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

// MeasurementInterval returns the continuous measurement interval.
func (d *Dev) MeasurementInterval() (time.Duration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	words, err := common.Tx(d.d, cmdInterval, nil, d.check)
	if err != nil {
		return 0, fmt.Errorf("scd30: measurement interval: %w", err)
	}
	return time.Duration(words[0]) * time.Second, nil
}

// SetMeasurementInterval sets the continuous measurement interval, 2 s to
// 1800 s.
func (d *Dev) SetMeasurementInterval(interval time.Duration) error {
	secs := int(interval / time.Second)
	if secs < 2 || secs > 1800 {
		return fmt.Errorf("scd30: measurement interval %s outside 2s..1800s: %w", interval, common.ErrOutOfRange)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := common.Tx(d.d, cmdSetInterval, []uint16{uint16(secs)}, d.check); err != nil {
		return fmt.Errorf("scd30: set measurement interval: %w", err)
	}
	return nil
}

// ASCEnabled returns the state of the automatic self-calibration
// algorithm.
func (d *Dev) ASCEnabled() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	words, err := common.Tx(d.d, cmdASC, nil, d.check)
	if err != nil {
		return false, fmt.Errorf("scd30: asc: %w", err)
	}
	return words[0] != 0, nil
}

// SetASCEnabled switches automatic self-calibration. ASC needs the sensor
// powered in continuous mode with regular exposure to fresh air for at
// least seven days before its initial parameter set converges; the state
// is stored in non-volatile memory.
func (d *Dev) SetASCEnabled(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var state uint16
	if on {
		state = 1
	}
	if _, err := common.Tx(d.d, cmdSetASC, []uint16{state}, d.check); err != nil {
		return fmt.Errorf("scd30: set asc: %w", err)
	}
	return nil
}

// FRC returns the forced recalibration reference concentration.
func (d *Dev) FRC() (PPM, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	words, err := common.Tx(d.d, cmdFRC, nil, d.check)
	if err != nil {
		return 0, fmt.Errorf("scd30: frc: %w", err)
	}
	return PPM(words[0]), nil
}

// SetFRC performs a forced recalibration against a known reference CO2
// concentration in close proximity to the sensor. The reference must be
// within 400 to 2000 ppm; values outside that range fail before any bus
// transaction. Forced recalibration supersedes ASC corrections and
// vice-versa.
func (d *Dev) SetFRC(reference PPM) error {
	if reference < 400 || reference > 2000 {
		return fmt.Errorf("scd30: frc reference %s outside 400..2000 ppm: %w", reference, common.ErrOutOfRange)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := common.Tx(d.d, cmdSetFRC, []uint16{uint16(reference)}, d.check); err != nil {
		return fmt.Errorf("scd30: set frc: %w", err)
	}
	return nil
}

// TemperatureOffset returns the temperature offset subtracted from the
// measurement to compensate self-heating.
func (d *Dev) TemperatureOffset() (physic.Temperature, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	words, err := common.Tx(d.d, cmdTempOffset, nil, d.check)
	if err != nil {
		return 0, fmt.Errorf("scd30: temperature offset: %w", err)
	}
	// Transferred in hundredths of a degree.
	return physic.Temperature(words[0]) * 10 * physic.MilliKelvin, nil
}

// SetTemperatureOffset sets the self-heating compensation offset. The
// offset is a magnitude and cannot be negative.
func (d *Dev) SetTemperatureOffset(offset physic.Temperature) error {
	if offset < 0 {
		return fmt.Errorf("scd30: temperature offset %s is negative: %w", offset, common.ErrOutOfRange)
	}
	centi := uint16(offset / (10 * physic.MilliKelvin))
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := common.Tx(d.d, cmdSetTempOffset, []uint16{centi}, d.check); err != nil {
		return fmt.Errorf("scd30: set temperature offset: %w", err)
	}
	return nil
}

// Altitude returns the configured height over sea level used to
// compensate the CO2 measurement.
func (d *Dev) Altitude() (physic.Distance, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	words, err := common.Tx(d.d, cmdAltitude, nil, d.check)
	if err != nil {
		return 0, fmt.Errorf("scd30: altitude: %w", err)
	}
	return physic.Distance(words[0]) * physic.Metre, nil
}

// SetAltitude sets the height over sea level, in metres above 0, used to
// compensate the CO2 measurement. Altitude compensation is overridden by
// an ambient pressure argument to StartContinuous.
func (d *Dev) SetAltitude(altitude physic.Distance) error {
	metres := altitude / physic.Metre
	if metres < 0 || metres > 0xffff {
		return fmt.Errorf("scd30: altitude %s outside 0..65535 m: %w", altitude, common.ErrOutOfRange)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := common.Tx(d.d, cmdSetAltitude, []uint16{uint16(metres)}, d.check); err != nil {
		return fmt.Errorf("scd30: set altitude: %w", err)
	}
	return nil
}

// FirmwareVersion returns the sensor firmware version in major.minor
// format.
func (d *Dev) FirmwareVersion() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	words, err := common.Tx(d.d, cmdFirmwareVersion, nil, d.check)
	if err != nil {
		return "", fmt.Errorf("scd30: firmware version: %w", err)
	}
	return fmt.Sprintf("%d.%d", words[0]>>8, words[0]&0xff), nil
}

// SerialNumber returns the factory-programmed serial number.
func (d *Dev) SerialNumber() (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	words, err := common.Tx(d.d, cmdSerialNumber, nil, d.check)
	if err != nil {
		return 0, fmt.Errorf("scd30: serial number: %w", err)
	}
	return uint32(words[0])<<16 | uint32(words[1]), nil
}

// Reset applies a soft reset, forcing the sensor into the same state as
// after power up without the need to remove the power supply.
func (d *Dev) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.continuous = false
	if _, err := common.Tx(d.d, cmdSoftReset, nil, d.check); err != nil {
		return fmt.Errorf("scd30: soft reset: %w", err)
	}
	return nil
}

// Precision returns the resolution of the measurements.
func (d *Dev) Precision(e *Env) {
	e.Temperature = 10 * physic.MilliKelvin
	e.Humidity = physic.PercentRH / 100
	e.Pressure = 0
	e.CO2 = 1
	e.DewPoint = 10 * physic.MilliKelvin
}

func (d *Dev) String() string {
	return fmt.Sprintf("scd30{%s}", d.d.String())
}

var _ conn.Resource = &Dev{}
