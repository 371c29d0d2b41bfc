// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sht85 interfaces with the Sensirion SHT85 temperature and
// humidity sensor.
//
// The SHT85 is the pin-type variant of the SHT3x family and shares its
// command set: single shot acquisition with selectable repeatability, an
// autonomous periodic mode at 0.5 to 10 measurements per second, the
// Accelerated Response Time feature, an integrated heater and a status
// register with tracking alerts.
//
// # Datasheet
//
// https://sensirion.com/media/documents/4B40CEF3/640B2346/Sensirion_Humidity_Sensors_SHT85_Datasheet.pdf
package sht85

import (
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"

	"github.com/Giakou/sensirion-epics/common"
)

// SensorAddress is the only I2C address the SHT85 responds to.
const SensorAddress uint16 = 0x44

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
	return 0, fmt.Errorf("sht85: repeatability %q is not allowed, only high, medium or low: %w", s, common.ErrConfig)
}

// MPS is the measurement rate of the periodic data acquisition mode.
type MPS int

const (
	// MPSHalf is one measurement every two seconds.
	MPSHalf MPS = iota
	MPS1
	MPS2
	MPS4
	MPS10
)

func (m MPS) String() string {
	switch m {
	case MPSHalf:
		return "0.5mps"
	case MPS1:
		return "1mps"
	case MPS2:
		return "2mps"
	case MPS4:
		return "4mps"
	case MPS10:
		return "10mps"
	}
	return fmt.Sprintf("MPS(%d)", int(m))
}

// Period returns the time between two periodic-mode conversions.
func (m MPS) Period() time.Duration {
	switch m {
	case MPSHalf:
		return 2 * time.Second
	case MPS1:
		return time.Second
	case MPS2:
		return 500 * time.Millisecond
	case MPS4:
		return 250 * time.Millisecond
	}
	return 100 * time.Millisecond
}

// Conversion times per repeatability, from the datasheet.
var waitTimes = map[Repeatability]time.Duration{
	High:   15500 * time.Microsecond,
	Medium: 6500 * time.Microsecond,
	Low:    4500 * time.Microsecond,
}

var cmdSingleShot = map[Repeatability]common.Command{
	High:   {Opcode: []byte{0x24, 0x00}, Wait: waitTimes[High], ResponseLen: 6},
	Medium: {Opcode: []byte{0x24, 0x0b}, Wait: waitTimes[Medium], ResponseLen: 6},
	Low:    {Opcode: []byte{0x24, 0x16}, Wait: waitTimes[Low], ResponseLen: 6},
}

// Periodic mode start opcodes, indexed by rate then repeatability.
var cmdPeriodic = map[MPS]map[Repeatability][]byte{
	MPSHalf: {High: {0x20, 0x32}, Medium: {0x20, 0x24}, Low: {0x20, 0x2f}},
	MPS1:    {High: {0x21, 0x30}, Medium: {0x21, 0x26}, Low: {0x21, 0x2d}},
	MPS2:    {High: {0x22, 0x36}, Medium: {0x22, 0x20}, Low: {0x22, 0x2b}},
	MPS4:    {High: {0x23, 0x34}, Medium: {0x23, 0x22}, Low: {0x23, 0x29}},
	MPS10:   {High: {0x27, 0x37}, Medium: {0x27, 0x21}, Low: {0x27, 0x2a}},
}

var (
	cmdFetch         = common.Command{Opcode: []byte{0xe0, 0x00}, Wait: 3 * time.Millisecond, ResponseLen: 6}
	cmdART           = common.Command{Opcode: []byte{0x2b, 0x32}, Wait: 3 * time.Millisecond}
	cmdBreak         = common.Command{Opcode: []byte{0x30, 0x93}, Wait: time.Millisecond}
	cmdSoftReset     = common.Command{Opcode: []byte{0x30, 0xa2}, Wait: 1500 * time.Microsecond}
	cmdHeaterOn      = common.Command{Opcode: []byte{0x30, 0x6d}, Wait: 3 * time.Millisecond}
	cmdHeaterOff     = common.Command{Opcode: []byte{0x30, 0x66}, Wait: 3 * time.Millisecond}
	cmdClearStatus   = common.Command{Opcode: []byte{0x30, 0x41}, Wait: 3 * time.Millisecond}
	cmdReadStatus    = common.Command{Opcode: []byte{0xf3, 0x2d}, Wait: 3 * time.Millisecond, ResponseLen: 3}
	cmdSerialNumber  = common.Command{Opcode: []byte{0x36, 0x82}, Wait: 3 * time.Millisecond, ResponseLen: 6}
	maxFetchAttempts = 50
	fetchBackoff     = 50 * time.Millisecond
)

// Opts holds the configuration of the device, validated at construction.
type Opts struct {
	// Repeatability of the conversions, High by default.
	Repeatability Repeatability
	// MPS is the rate used by the periodic mode, one per second by
	// default (MPS1... note MPSHalf is the zero value).
	MPS MPS
	// DisableCRC skips checksum verification of received words.
	DisableCRC bool
}

// DefaultOpts is high repeatability at one measurement per second with
// checksum verification enabled.
var DefaultOpts = Opts{Repeatability: High, MPS: MPS1}

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

// Status is the decoded content of the status register.
type Status struct {
	// ChecksumFailed is set when the checksum of the last write transfer
	// did not match.
	ChecksumFailed bool
	// CommandFailed is set when the last command was invalid or failed
	// its integrated checksum.
	CommandFailed bool
	// ResetDetected is set when a reset occurred since the last clear.
	ResetDetected bool
	// TTrackingAlert and RHTrackingAlert report tracking alerts.
	TTrackingAlert  bool
	RHTrackingAlert bool
	// HeaterOn reports the heater state.
	HeaterOn bool
	// AlertPending is set while at least one alert is unserviced.
	AlertPending bool
}

// Any returns true when any non-default bit is set.
func (s Status) Any() bool {
	return s != Status{}
}

// Dev represents an SHT85 sensor. The address and bus are fixed at
// construction and never change.
type Dev struct {
	d     *i2c.Dev
	rep   Repeatability
	mps   MPS
	check bool

	mu       sync.Mutex
	periodic bool
	chHalt   chan struct{}
	last     Env
	haveLast bool
}

// New returns an SHT85 driver on the supplied bus. Passing nil opts uses
// DefaultOpts. Configuration is validated before any bus I/O.
func New(b i2c.Bus, opts *Opts) (*Dev, error) {
	if opts == nil {
		o := DefaultOpts
		opts = &o
	}
	if _, ok := waitTimes[opts.Repeatability]; !ok {
		return nil, fmt.Errorf("sht85: repeatability %d is not allowed: %w", int(opts.Repeatability), common.ErrConfig)
	}
	if _, ok := cmdPeriodic[opts.MPS]; !ok {
		return nil, fmt.Errorf("sht85: measurement rate %d is not allowed: %w", int(opts.MPS), common.ErrConfig)
	}
	return &Dev{
		d:     &i2c.Dev{Bus: b, Addr: SensorAddress},
		rep:   opts.Repeatability,
		mps:   opts.MPS,
		check: !opts.DisableCRC,
	}, nil
}

// SerialNumber returns the factory-programmed serial number.
func (d *Dev) SerialNumber() (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	words, err := common.Tx(d.d, cmdSerialNumber, nil, d.check)
	if err != nil {
		return 0, fmt.Errorf("sht85: serial number: %w", err)
	}
	return uint32(words[0])<<16 | uint32(words[1]), nil
}

func (d *Dev) decode(words []uint16) (Env, error) {
	t := common.TempFromCount(-45, 175, words[0])
	rh := common.RHFromCount(0, 100, words[1])
	if t < 0 {
		rh = common.RHIce(t, rh)
	}
	dp, err := common.DewPoint(t, rh)
	if err != nil {
		return Env{}, fmt.Errorf("sht85: %w", err)
	}
	e := Env{DewPoint: common.Celsius(dp)}
	e.Temperature = common.Celsius(t)
	e.Humidity = common.RelHumidity(rh)
	return e, nil
}

// Sense performs a single shot acquisition at the configured
// repeatability and fills e with the decoded measurement.
func (d *Dev) Sense(e *Env) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	words, err := common.Tx(d.d, cmdSingleShot[d.rep], nil, d.check)
	if err != nil {
		return fmt.Errorf("sht85: single shot: %w", err)
	}
	env, err := d.decode(words)
	if err != nil {
		return err
	}
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

// StartPeriodic switches the sensor to the autonomous periodic data
// acquisition mode at the configured rate and repeatability. Use Fetch to
// collect the conversions and Halt to return to idle.
func (d *Dev) StartPeriodic() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cmd := common.Command{Opcode: cmdPeriodic[d.mps][d.rep], Wait: waitTimes[d.rep]}
	if _, err := common.Tx(d.d, cmd, nil, d.check); err != nil {
		return fmt.Errorf("sht85: start periodic: %w", err)
	}
	d.periodic = true
	return nil
}

// ART starts the Accelerated Response Time feature. The sensor behaves
// like in periodic mode at 4 measurements per second.
func (d *Dev) ART() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := common.Tx(d.d, cmdART, nil, d.check); err != nil {
		return fmt.Errorf("sht85: art: %w", err)
	}
	d.periodic = true
	return nil
}

// Fetch reads the latest conversion of the running periodic mode. The
// sensor does not acknowledge the fetch opcode while no fresh data is
// available, so the command is retried with a short backoff until data
// arrives; if no conversion completes before the retries run out the
// error wraps common.ErrTimeout.
func (d *Dev) Fetch(e *Env) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.periodic {
		return fmt.Errorf("sht85: fetch: periodic mode not started: %w", common.ErrConfig)
	}
	var words []uint16
	var err error
	for attempt := 0; attempt < maxFetchAttempts; attempt++ {
		words, err = common.Tx(d.d, cmdFetch, nil, d.check)
		if err == nil {
			env, derr := d.decode(words)
			if derr != nil {
				return derr
			}
			*e = env
			d.last = env
			d.haveLast = true
			return nil
		}
		time.Sleep(fetchBackoff)
	}
	return fmt.Errorf("sht85: fetch after %d attempts (%v): %w", maxFetchAttempts, err, common.ErrTimeout)
}

// SenseContinuous starts periodic mode and streams measurements on the
// returned channel every interval until Halt is called.
func (d *Dev) SenseContinuous(interval time.Duration) (<-chan Env, error) {
	d.mu.Lock()
	if d.chHalt != nil {
		d.mu.Unlock()
		return nil, errors.New("sht85: SenseContinuous already running")
	}
	if interval < d.mps.Period() {
		d.mu.Unlock()
		return nil, fmt.Errorf("sht85: interval %s is shorter than the %s periodic rate: %w",
			interval, d.mps.Period(), common.ErrConfig)
	}
	d.chHalt = make(chan struct{})
	d.mu.Unlock()

	if err := d.StartPeriodic(); err != nil {
		d.mu.Lock()
		d.chHalt = nil
		d.mu.Unlock()
		return nil, err
	}
	ch := make(chan Env, 16)
	halt := d.chHalt
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		defer close(ch)
		for {
			select {
			case <-halt:
				return
			case <-ticker.C:
				e := Env{}
				if err := d.Fetch(&e); err != nil {
					log.WithError(err).Warn("sht85: dropped reading")
					continue
				}
				select {
				case ch <- e:
				default:
				}
			}
		}
	}()
	return ch, nil
}

// Halt sends the break command to stop periodic mode or ART and returns
// the sensor to idle. It is idempotent and safe to call even when no
// acquisition was ever started, which makes it suitable for teardown
// paths. Implements conn.Resource.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.chHalt != nil {
		close(d.chHalt)
		d.chHalt = nil
	}
	d.periodic = false
	if _, err := common.Tx(d.d, cmdBreak, nil, d.check); err != nil {
		return fmt.Errorf("sht85: break: %w", err)
	}
	return nil
}

// Reset stops any running acquisition and applies a soft reset.
func (d *Dev) Reset() error {
	if err := d.Halt(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := common.Tx(d.d, cmdSoftReset, nil, d.check); err != nil {
		return fmt.Errorf("sht85: soft reset: %w", err)
	}
	return nil
}

// Heater switches the integrated heater, used to verify the humidity
// sensing element in condensing environments.
func (d *Dev) Heater(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cmd := cmdHeaterOff
	if on {
		cmd = cmdHeaterOn
		log.Warn("sht85: enabling heater")
	}
	if _, err := common.Tx(d.d, cmd, nil, d.check); err != nil {
		return fmt.Errorf("sht85: heater: %w", err)
	}
	return nil
}

// Status reads and decodes the status register.
func (d *Dev) Status() (Status, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	words, err := common.Tx(d.d, cmdReadStatus, nil, d.check)
	if err != nil {
		return Status{}, fmt.Errorf("sht85: status: %w", err)
	}
	w := words[0]
	return Status{
		ChecksumFailed:  w&(1<<0) != 0,
		CommandFailed:   w&(1<<1) != 0,
		ResetDetected:   w&(1<<4) != 0,
		TTrackingAlert:  w&(1<<10) != 0,
		RHTrackingAlert: w&(1<<11) != 0,
		HeaterOn:        w&(1<<13) != 0,
		AlertPending:    w&(1<<15) != 0,
	}, nil
}

// CheckStatus reads the status register and logs a warning for every
// non-default bit. Diagnostic conditions are advisory and never abort an
// acquisition loop.
func (d *Dev) CheckStatus() (Status, error) {
	s, err := d.Status()
	if err != nil {
		return s, err
	}
	if s.ChecksumFailed {
		log.Warn("sht85: checksum of last write transfer failed")
	}
	if s.CommandFailed {
		log.Warn("sht85: last command not processed")
	}
	if s.ResetDetected {
		log.Warn("sht85: reset detected since last clear status")
	}
	if s.TTrackingAlert {
		log.Warn("sht85: temperature tracking alert")
	}
	if s.RHTrackingAlert {
		log.Warn("sht85: humidity tracking alert")
	}
	if s.HeaterOn {
		log.Warn("sht85: heater is on")
	}
	if s.AlertPending {
		log.Warn("sht85: at least one pending alert")
	}
	return s, nil
}

// ClearStatus clears the alert flags of the status register.
func (d *Dev) ClearStatus() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := common.Tx(d.d, cmdClearStatus, nil, d.check); err != nil {
		return fmt.Errorf("sht85: clear status: %w", err)
	}
	return nil
}

// Precision returns the resolution of the measurements. Implements part
// of the physic.SenseEnv contract for the Env type of this package.
func (d *Dev) Precision(e *Env) {
	e.Temperature = 10 * physic.MilliKelvin
	e.Humidity = physic.PercentRH / 100
	e.Pressure = 0
	e.DewPoint = 10 * physic.MilliKelvin
}

func (d *Dev) String() string {
	return fmt.Sprintf("sht85{%s, %s, %s}", d.d.String(), d.rep, d.mps)
}

var _ conn.Resource = &Dev{}
