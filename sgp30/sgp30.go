// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sgp30 interfaces with the Sensirion SGP30 indoor air quality
// gas sensor.
//
// The SGP30 reports a CO2 equivalent and a total volatile organic
// compound concentration. After initialisation the sensor expects a
// measurement request every second to keep its dynamic baseline
// compensation algorithm running; SenseContinuous takes care of that
// cadence. The baseline can be read out and restored across power
// cycles, and an absolute humidity value can be fed in for on-chip
// humidity compensation.
//
// # Datasheet
//
// https://sensirion.com/media/documents/984E0DD5/61644B8B/Sensirion_Gas_Sensors_Datasheet_SGP30.pdf
package sgp30

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"

	"github.com/Giakou/sensirion-epics/common"
)

// SensorAddress is the only I2C address the SGP30 responds to.
const SensorAddress uint16 = 0x58

// CO2 is a carbon dioxide equivalent concentration in ppm.
type CO2 uint16

func (c CO2) String() string {
	return fmt.Sprintf("%d ppm", uint16(c))
}

// TVOC is a total volatile organic compound concentration in ppb.
type TVOC uint16

func (t TVOC) String() string {
	return fmt.Sprintf("%d ppb", uint16(t))
}

var (
	cmdInitAirQuality    = common.Command{Opcode: []byte{0x20, 0x03}, Wait: 10 * time.Millisecond}
	cmdMeasureAirQuality = common.Command{Opcode: []byte{0x20, 0x08}, Wait: 12 * time.Millisecond, ResponseLen: 6}
	cmdIAQBaseline       = common.Command{Opcode: []byte{0x20, 0x15}, Wait: 10 * time.Millisecond, ResponseLen: 6}
	cmdSetIAQBaseline    = common.Command{Opcode: []byte{0x20, 0x1e}, Wait: 10 * time.Millisecond}
	cmdSetHumidity       = common.Command{Opcode: []byte{0x20, 0x61}, Wait: 10 * time.Millisecond}
	cmdMeasureTest       = common.Command{Opcode: []byte{0x20, 0x32}, Wait: 220 * time.Millisecond, ResponseLen: 3}
	cmdFeatureSetVersion = common.Command{Opcode: []byte{0x20, 0x2f}, Wait: 10 * time.Millisecond, ResponseLen: 3}
	cmdMeasureRawSignals = common.Command{Opcode: []byte{0x20, 0x50}, Wait: 25 * time.Millisecond, ResponseLen: 6}
	cmdSerialID          = common.Command{Opcode: []byte{0x36, 0x82}, Wait: time.Millisecond, ResponseLen: 9}
)

// measureTestOK is the fixed pattern a healthy sensor returns from the
// on-chip self test.
const measureTestOK uint16 = 0xd400

// Opts holds the configuration of the device.
type Opts struct {
	// DisableCRC skips checksum verification of received words.
	DisableCRC bool
}

// Env is one air quality measurement. During the first 15 s after
// initialisation the sensor returns the fixed values 400 ppm and 0 ppb
// while its baseline spins up.
type Env struct {
	CO2  CO2
	TVOC TVOC
}

func (e *Env) String() string {
	return fmt.Sprintf("CO2eq: %s TVOC: %s", e.CO2.String(), e.TVOC.String())
}

// Dev represents an SGP30 device.
type Dev struct {
	d     *i2c.Dev
	check bool

	mu       sync.Mutex
	started  bool
	chHalt   chan struct{}
	last     Env
	haveLast bool
}

// New returns an SGP30 driver on the supplied bus. Call InitAirQuality
// before measuring. Passing nil opts keeps checksum verification
// enabled.
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

// InitAirQuality starts the on-chip air quality measurement. The sensor
// then expects a Sense call every second; use SenseContinuous for that.
func (d *Dev) InitAirQuality() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := common.Tx(d.d, cmdInitAirQuality, nil, d.check); err != nil {
		return fmt.Errorf("sgp30: init air quality: %w", err)
	}
	d.started = true
	return nil
}

// Sense reads one air quality measurement into e. InitAirQuality must
// have been called first.
func (d *Dev) Sense(e *Env) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sense(e)
}

func (d *Dev) sense(e *Env) error {
	if !d.started {
		return fmt.Errorf("sgp30: sense before init air quality: %w", common.ErrConfig)
	}
	words, err := common.Tx(d.d, cmdMeasureAirQuality, nil, d.check)
	if err != nil {
		return fmt.Errorf("sgp30: measure air quality: %w", err)
	}
	env := Env{CO2: CO2(words[0]), TVOC: TVOC(words[1])}
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

// SenseContinuous initialises the sensor if necessary and measures every
// second, the cadence the baseline compensation algorithm requires,
// writing readings to the returned channel. To terminate, call Halt.
func (d *Dev) SenseContinuous() (<-chan Env, error) {
	d.mu.Lock()
	if d.chHalt != nil {
		d.mu.Unlock()
		return nil, fmt.Errorf("sgp30: SenseContinuous already running: %w", common.ErrConfig)
	}
	if !d.started {
		if _, err := common.Tx(d.d, cmdInitAirQuality, nil, d.check); err != nil {
			d.mu.Unlock()
			return nil, fmt.Errorf("sgp30: init air quality: %w", err)
		}
		d.started = true
	}
	halt := make(chan struct{})
	d.chHalt = halt
	d.mu.Unlock()

	channel := make(chan Env, 16)
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		defer close(channel)
		for {
			select {
			case <-halt:
				return
			case <-ticker.C:
				e := Env{}
				if err := d.Sense(&e); err != nil {
					logrus.WithError(err).Warn("sgp30: continuous measurement failed")
					continue
				}
				select {
				case channel <- e:
				default:
				}
			}
		}
	}()
	return channel, nil
}

// Halt stops a SenseContinuous loop. The sensor itself keeps its
// baseline state; read it with IAQBaseline before powering off.
// Implements conn.Resource.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.chHalt != nil {
		close(d.chHalt)
		d.chHalt = nil
	}
	return nil
}

// IAQBaseline returns the current baseline values of the compensation
// algorithm for persisting across power cycles.
func (d *Dev) IAQBaseline() (co2 uint16, tvoc uint16, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	words, err := common.Tx(d.d, cmdIAQBaseline, nil, d.check)
	if err != nil {
		return 0, 0, fmt.Errorf("sgp30: iaq baseline: %w", err)
	}
	return words[0], words[1], nil
}

// SetIAQBaseline restores previously saved baseline values. Apply it
// after InitAirQuality; a baseline older than a week should be
// discarded.
func (d *Dev) SetIAQBaseline(co2 uint16, tvoc uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := common.Tx(d.d, cmdSetIAQBaseline, []uint16{tvoc, co2}, d.check); err != nil {
		return fmt.Errorf("sgp30: set iaq baseline: %w", err)
	}
	return nil
}

// SetAbsoluteHumidity feeds an absolute humidity value, in g/m3, into
// the on-chip humidity compensation. 0 disables compensation. The wire
// format is unsigned 8.8 fixed point, so values must stay below 256.
func (d *Dev) SetAbsoluteHumidity(gPerCubicMetre float64) error {
	if gPerCubicMetre < 0 || gPerCubicMetre >= 256 {
		return fmt.Errorf("sgp30: absolute humidity %g g/m3 outside 0..256: %w", gPerCubicMetre, common.ErrOutOfRange)
	}
	fixed := uint16(gPerCubicMetre * 256)
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := common.Tx(d.d, cmdSetHumidity, []uint16{fixed}, d.check); err != nil {
		return fmt.Errorf("sgp30: set humidity: %w", err)
	}
	return nil
}

// MeasureTest runs the on-chip self test. A healthy sensor returns the
// fixed pattern 0xd400; anything else reports as an error. Do not run
// the test while a measurement loop is active.
func (d *Dev) MeasureTest() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	words, err := common.Tx(d.d, cmdMeasureTest, nil, d.check)
	if err != nil {
		return fmt.Errorf("sgp30: measure test: %w", err)
	}
	if words[0] != measureTestOK {
		return fmt.Errorf("sgp30: self test returned %#04x instead of %#04x", words[0], measureTestOK)
	}
	return nil
}

// MeasureRaw reads the raw H2 and ethanol signals.
func (d *Dev) MeasureRaw() (h2 uint16, ethanol uint16, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	words, err := common.Tx(d.d, cmdMeasureRawSignals, nil, d.check)
	if err != nil {
		return 0, 0, fmt.Errorf("sgp30: measure raw: %w", err)
	}
	return words[0], words[1], nil
}

// FeatureSetVersion returns the product type and version word.
func (d *Dev) FeatureSetVersion() (uint16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	words, err := common.Tx(d.d, cmdFeatureSetVersion, nil, d.check)
	if err != nil {
		return 0, fmt.Errorf("sgp30: feature set version: %w", err)
	}
	return words[0], nil
}

// SerialNumber returns the unique 48-bit serial number of the sensor.
func (d *Dev) SerialNumber() (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	words, err := common.Tx(d.d, cmdSerialID, nil, d.check)
	if err != nil {
		return 0, fmt.Errorf("sgp30: serial number: %w", err)
	}
	return uint64(words[0])<<32 | uint64(words[1])<<16 | uint64(words[2]), nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("sgp30{%s}", d.d.String())
}

var _ conn.Resource = &Dev{}
