// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package scd4x

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"

	"github.com/Giakou/sensirion-epics/common"
)

// SensorAddress is the only I2C address these devices respond to.
const SensorAddress uint16 = 0x62

// PPM is a CO2 concentration in parts per million.
type PPM int

func (p PPM) String() string {
	return fmt.Sprintf("%d ppm", int(p))
}

// Variant identifies the sensor model within the SCD4x family.
type Variant int

const (
	SCD40 Variant = iota
	SCD41
	VariantUnknown
)

func (v Variant) String() string {
	switch v {
	case SCD40:
		return "SCD40"
	case SCD41:
		return "SCD41"
	}
	return "unknown"
}

const (
	tempMin  = -45.0
	tempSpan = 175.0
	rhMin    = 0.0
	rhSpan   = 100.0
)

var (
	cmdStartPeriodic         = common.Command{Opcode: []byte{0x21, 0xb1}, Wait: time.Millisecond}
	cmdStartLowPowerPeriodic = common.Command{Opcode: []byte{0x21, 0xac}, Wait: time.Millisecond}
	cmdStopPeriodic          = common.Command{Opcode: []byte{0x3f, 0x86}, Wait: 500 * time.Millisecond}
	cmdDataReady             = common.Command{Opcode: []byte{0xe4, 0xb8}, Wait: time.Millisecond, ResponseLen: 3}
	cmdReadMeasurement       = common.Command{Opcode: []byte{0xec, 0x05}, Wait: time.Millisecond, ResponseLen: 9}
	cmdSingleShot            = common.Command{Opcode: []byte{0x21, 0x9d}, Wait: 5 * time.Second, ResponseLen: 0}
	cmdSingleShotRHTOnly     = common.Command{Opcode: []byte{0x21, 0x96}, Wait: 50 * time.Millisecond, ResponseLen: 0}
	cmdTempOffset            = common.Command{Opcode: []byte{0x23, 0x18}, Wait: time.Millisecond, ResponseLen: 3}
	cmdSetTempOffset         = common.Command{Opcode: []byte{0x24, 0x1d}, Wait: time.Millisecond}
	cmdAltitude              = common.Command{Opcode: []byte{0x23, 0x22}, Wait: time.Millisecond, ResponseLen: 3}
	cmdSetAltitude           = common.Command{Opcode: []byte{0x24, 0x27}, Wait: time.Millisecond}
	cmdAmbientPressure       = common.Command{Opcode: []byte{0xe0, 0x00}, Wait: time.Millisecond, ResponseLen: 3}
	cmdSetAmbientPressure    = common.Command{Opcode: []byte{0xe0, 0x00}, Wait: time.Millisecond}
	cmdASCEnabled            = common.Command{Opcode: []byte{0x23, 0x13}, Wait: time.Millisecond, ResponseLen: 3}
	cmdSetASCEnabled         = common.Command{Opcode: []byte{0x24, 0x16}, Wait: time.Millisecond}
	cmdASCTarget             = common.Command{Opcode: []byte{0x23, 0x3f}, Wait: time.Millisecond, ResponseLen: 3}
	cmdSetASCTarget          = common.Command{Opcode: []byte{0x24, 0x3a}, Wait: time.Millisecond}
	cmdASCInitialPeriod      = common.Command{Opcode: []byte{0x23, 0x40}, Wait: time.Millisecond, ResponseLen: 3}
	cmdSetASCInitialPeriod   = common.Command{Opcode: []byte{0x24, 0x45}, Wait: time.Millisecond}
	cmdASCStandardPeriod     = common.Command{Opcode: []byte{0x23, 0x4b}, Wait: time.Millisecond, ResponseLen: 3}
	cmdSetASCStandardPeriod  = common.Command{Opcode: []byte{0x24, 0x4e}, Wait: time.Millisecond}
	cmdFRC                   = common.Command{Opcode: []byte{0x36, 0x2f}, Wait: 400 * time.Millisecond, ResponseLen: 3}
	cmdPersistSettings       = common.Command{Opcode: []byte{0x36, 0x15}, Wait: 800 * time.Millisecond}
	cmdSerialNumber          = common.Command{Opcode: []byte{0x36, 0x82}, Wait: time.Millisecond, ResponseLen: 9}
	cmdSelfTest              = common.Command{Opcode: []byte{0x36, 0x39}, Wait: 10 * time.Second, ResponseLen: 3}
	cmdFactoryReset          = common.Command{Opcode: []byte{0x36, 0x32}, Wait: 1200 * time.Millisecond}
	cmdReinit                = common.Command{Opcode: []byte{0x36, 0x46}, Wait: 30 * time.Millisecond}
	cmdSensorVariant         = common.Command{Opcode: []byte{0x20, 0x2f}, Wait: time.Millisecond, ResponseLen: 3}
	cmdPowerDown             = common.Command{Opcode: []byte{0x36, 0xe0}, Wait: time.Millisecond}
	cmdWakeUp                = common.Command{Opcode: []byte{0x36, 0xf6}, Wait: 30 * time.Millisecond}
)

// Data-ready poll bounds, package variables so the tests can tighten
// them. Normal periodic mode produces a conversion every 5 s, low power
// mode every 30 s.
var (
	maxReadyAttempts = 70
	readyBackoff     = 500 * time.Millisecond
)

// Opts holds the configuration of the device.
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

// Dev represents an SCD40 or SCD41 device.
type Dev struct {
	d     *i2c.Dev
	check bool

	mu       sync.Mutex
	periodic bool
	chHalt   chan struct{}
	last     Env
	haveLast bool
}

// New returns an SCD4x driver on the supplied bus. The device starts in
// idle mode; call StartPeriodic, StartLowPowerPeriodic or, on an SCD41,
// MeasureSingleShot to take readings. Passing nil opts keeps checksum
// verification enabled.
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

// requireIdle rejects commands the sensor only accepts in idle mode.
func (d *Dev) requireIdle(op string) error {
	if d.periodic {
		return fmt.Errorf("scd4x: %s while periodic measurement is running: %w", op, common.ErrConfig)
	}
	return nil
}

// StartPeriodic begins periodic measurement with a 5 s signal update
// interval.
func (d *Dev) StartPeriodic() error {
	return d.startPeriodic(cmdStartPeriodic)
}

// StartLowPowerPeriodic begins low power periodic measurement with a 30 s
// signal update interval.
func (d *Dev) StartLowPowerPeriodic() error {
	return d.startPeriodic(cmdStartLowPowerPeriodic)
}

func (d *Dev) startPeriodic(cmd common.Command) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.periodic {
		return nil
	}
	if _, err := common.Tx(d.d, cmd, nil, d.check); err != nil {
		return fmt.Errorf("scd4x: start periodic: %w", err)
	}
	d.periodic = true
	return nil
}

// Halt stops periodic measurement and any SenseContinuous loop. It is
// idempotent. Implements conn.Resource.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.chHalt != nil {
		close(d.chHalt)
		d.chHalt = nil
	}
	if !d.periodic {
		return nil
	}
	d.periodic = false
	if _, err := common.Tx(d.d, cmdStopPeriodic, nil, d.check); err != nil {
		return fmt.Errorf("scd4x: stop periodic: %w", err)
	}
	return nil
}

// dataReady reports whether a fresh conversion is waiting. The lower 11
// bits of the status word are non-zero when data is ready.
func (d *Dev) dataReady() (bool, error) {
	words, err := common.Tx(d.d, cmdDataReady, nil, d.check)
	if err != nil {
		return false, err
	}
	return words[0]&0x7ff != 0, nil
}

func (d *Dev) readMeasurement(e *Env) error {
	words, err := common.Tx(d.d, cmdReadMeasurement, nil, d.check)
	if err != nil {
		return fmt.Errorf("scd4x: read measurement: %w", err)
	}
	t := common.TempFromCount(tempMin, tempSpan, words[1])
	rh := common.RHFromCount(rhMin, rhSpan, words[2])
	if t < 0 {
		rh = common.RHIce(t, rh)
	}
	dp, err := common.DewPoint(t, rh)
	if err != nil {
		return fmt.Errorf("scd4x: %w", err)
	}
	env := Env{CO2: PPM(words[0]), DewPoint: common.Celsius(dp)}
	env.Temperature = common.Celsius(t)
	env.Humidity = common.RelHumidity(rh)
	*e = env
	d.last = env
	d.haveLast = true
	return nil
}

// Fetch waits for the running periodic measurement to produce a fresh
// conversion and decodes it into e. The data-ready poll is bounded: if
// the ready flag never rises the error wraps common.ErrTimeout.
func (d *Dev) Fetch(e *Env) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.periodic {
		return fmt.Errorf("scd4x: fetch without periodic measurement running: %w", common.ErrConfig)
	}
	ready := false
	for attempt := 0; attempt < maxReadyAttempts; attempt++ {
		r, err := d.dataReady()
		if err != nil {
			return fmt.Errorf("scd4x: fetch: %w", err)
		}
		if r {
			ready = true
			break
		}
		time.Sleep(readyBackoff)
	}
	if !ready {
		return fmt.Errorf("scd4x: fetch after %d ready polls: %w", maxReadyAttempts, common.ErrTimeout)
	}
	return d.readMeasurement(e)
}

// MeasureSingleShot triggers an on-demand measurement and decodes the
// result into e. Single shot measurement is a feature of the SCD41; the
// sensor must be idle. The call blocks for the 5 s single shot
// conversion time.
func (d *Dev) MeasureSingleShot(e *Env) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireIdle("single shot"); err != nil {
		return err
	}
	if _, err := common.Tx(d.d, cmdSingleShot, nil, d.check); err != nil {
		return fmt.Errorf("scd4x: single shot: %w", err)
	}
	return d.readMeasurement(e)
}

// MeasureSingleShotRHTOnly triggers an on-demand humidity and
// temperature measurement with the CO2 channel disabled. SCD41 only; the
// CO2 field of e reads 0.
func (d *Dev) MeasureSingleShotRHTOnly(e *Env) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireIdle("single shot rht"); err != nil {
		return err
	}
	if _, err := common.Tx(d.d, cmdSingleShotRHTOnly, nil, d.check); err != nil {
		return fmt.Errorf("scd4x: single shot rht: %w", err)
	}
	return d.readMeasurement(e)
}

// Last returns the most recent successful measurement. ok is false until
// the first successful read cycle.
func (d *Dev) Last() (e Env, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last, d.haveLast
}

// SenseContinuous starts periodic measurement if necessary and reads the
// sensor on the specified interval, writing readings to the returned
// channel. The interval must not be shorter than the 5 s signal update
// interval. To terminate, call Halt.
func (d *Dev) SenseContinuous(interval time.Duration) (<-chan Env, error) {
	if interval < 5*time.Second {
		return nil, fmt.Errorf("scd4x: interval %s below the 5s signal update interval: %w", interval, common.ErrConfig)
	}
	d.mu.Lock()
	if d.chHalt != nil {
		d.mu.Unlock()
		return nil, fmt.Errorf("scd4x: SenseContinuous already running: %w", common.ErrConfig)
	}
	if !d.periodic {
		if _, err := common.Tx(d.d, cmdStartPeriodic, nil, d.check); err != nil {
			d.mu.Unlock()
			return nil, fmt.Errorf("scd4x: start periodic: %w", err)
		}
		d.periodic = true
	}
	halt := make(chan struct{})
	d.chHalt = halt
	d.mu.Unlock()

	channel := make(chan Env, 16)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		defer close(channel)
		for {
			select {
			case <-halt:
				return
			case <-ticker.C:
				e := Env{}
				if err := d.Fetch(&e); err != nil {
					logrus.WithError(err).Warn("scd4x: continuous fetch failed")
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

// TemperatureOffset returns the temperature offset subtracted from the
// measurement to compensate self-heating.
func (d *Dev) TemperatureOffset() (physic.Temperature, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireIdle("get temperature offset"); err != nil {
		return 0, err
	}
	words, err := common.Tx(d.d, cmdTempOffset, nil, d.check)
	if err != nil {
		return 0, fmt.Errorf("scd4x: temperature offset: %w", err)
	}
	offset := tempSpan * float64(words[0]) / 65535.0
	return physic.Temperature(offset * float64(physic.Kelvin)), nil
}

// SetTemperatureOffset sets the self-heating compensation offset. The
// offset is a magnitude and cannot be negative; values above 20 degrees
// are accepted but logged as suspicious.
func (d *Dev) SetTemperatureOffset(offset physic.Temperature) error {
	if offset < 0 {
		return fmt.Errorf("scd4x: temperature offset %s is negative: %w", offset, common.ErrOutOfRange)
	}
	degrees := float64(offset) / float64(physic.Kelvin)
	if degrees > 20 {
		logrus.WithField("offset", offset).Warn("scd4x: temperature offset above the recommended 0..20 degree range")
	}
	count := uint16(degrees * 65535.0 / tempSpan)
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireIdle("set temperature offset"); err != nil {
		return err
	}
	if _, err := common.Tx(d.d, cmdSetTempOffset, []uint16{count}, d.check); err != nil {
		return fmt.Errorf("scd4x: set temperature offset: %w", err)
	}
	return nil
}

// Altitude returns the configured height over sea level used to
// compensate the CO2 measurement.
func (d *Dev) Altitude() (physic.Distance, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireIdle("get altitude"); err != nil {
		return 0, err
	}
	words, err := common.Tx(d.d, cmdAltitude, nil, d.check)
	if err != nil {
		return 0, fmt.Errorf("scd4x: altitude: %w", err)
	}
	return physic.Distance(words[0]) * physic.Metre, nil
}

// SetAltitude sets the height over sea level, 0 to 3000 m, used to
// compensate the CO2 measurement.
func (d *Dev) SetAltitude(altitude physic.Distance) error {
	metres := altitude / physic.Metre
	if metres < 0 || metres > 3000 {
		return fmt.Errorf("scd4x: altitude %s outside 0..3000 m: %w", altitude, common.ErrOutOfRange)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireIdle("set altitude"); err != nil {
		return err
	}
	if _, err := common.Tx(d.d, cmdSetAltitude, []uint16{uint16(metres)}, d.check); err != nil {
		return fmt.Errorf("scd4x: set altitude: %w", err)
	}
	return nil
}

// AmbientPressure returns the ambient pressure compensation value.
func (d *Dev) AmbientPressure() (physic.Pressure, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	words, err := common.Tx(d.d, cmdAmbientPressure, nil, d.check)
	if err != nil {
		return 0, fmt.Errorf("scd4x: ambient pressure: %w", err)
	}
	return physic.Pressure(words[0]) * 100 * physic.Pascal, nil
}

// SetAmbientPressure sets the ambient pressure compensation value, 0 to
// fall back to altitude compensation or within 700 to 1200 hPa. This
// command is accepted during periodic measurement.
func (d *Dev) SetAmbientPressure(p physic.Pressure) error {
	hPa := int(p / (100 * physic.Pascal))
	if hPa != 0 && (hPa < 700 || hPa > 1200) {
		return fmt.Errorf("scd4x: ambient pressure %s outside 700..1200 hPa: %w", p, common.ErrOutOfRange)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := common.Tx(d.d, cmdSetAmbientPressure, []uint16{uint16(hPa)}, d.check); err != nil {
		return fmt.Errorf("scd4x: set ambient pressure: %w", err)
	}
	return nil
}

// ASCEnabled returns the state of the automatic self-calibration
// algorithm.
func (d *Dev) ASCEnabled() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireIdle("get asc"); err != nil {
		return false, err
	}
	words, err := common.Tx(d.d, cmdASCEnabled, nil, d.check)
	if err != nil {
		return false, fmt.Errorf("scd4x: asc: %w", err)
	}
	return words[0] != 0, nil
}

// SetASCEnabled switches automatic self-calibration.
func (d *Dev) SetASCEnabled(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireIdle("set asc"); err != nil {
		return err
	}
	var state uint16
	if on {
		state = 1
	}
	if _, err := common.Tx(d.d, cmdSetASCEnabled, []uint16{state}, d.check); err != nil {
		return fmt.Errorf("scd4x: set asc: %w", err)
	}
	return nil
}

// ASCTarget returns the target CO2 concentration the automatic
// self-calibration algorithm assumes as baseline.
func (d *Dev) ASCTarget() (PPM, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireIdle("get asc target"); err != nil {
		return 0, err
	}
	words, err := common.Tx(d.d, cmdASCTarget, nil, d.check)
	if err != nil {
		return 0, fmt.Errorf("scd4x: asc target: %w", err)
	}
	return PPM(words[0]), nil
}

// SetASCTarget sets the baseline CO2 concentration for automatic
// self-calibration.
func (d *Dev) SetASCTarget(target PPM) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireIdle("set asc target"); err != nil {
		return err
	}
	if _, err := common.Tx(d.d, cmdSetASCTarget, []uint16{uint16(target)}, d.check); err != nil {
		return fmt.Errorf("scd4x: set asc target: %w", err)
	}
	return nil
}

// ASCInitialPeriod returns the duration of the initial automatic
// self-calibration period.
func (d *Dev) ASCInitialPeriod() (time.Duration, error) {
	return d.ascPeriod(cmdASCInitialPeriod, "asc initial period")
}

// SetASCInitialPeriod sets the duration of the initial automatic
// self-calibration period. The period must be a multiple of 4 hours.
func (d *Dev) SetASCInitialPeriod(period time.Duration) error {
	return d.setASCPeriod(cmdSetASCInitialPeriod, "asc initial period", period)
}

// ASCStandardPeriod returns the duration of the standard automatic
// self-calibration period.
func (d *Dev) ASCStandardPeriod() (time.Duration, error) {
	return d.ascPeriod(cmdASCStandardPeriod, "asc standard period")
}

// SetASCStandardPeriod sets the duration of the standard automatic
// self-calibration period. The period must be a multiple of 4 hours.
func (d *Dev) SetASCStandardPeriod(period time.Duration) error {
	return d.setASCPeriod(cmdSetASCStandardPeriod, "asc standard period", period)
}

func (d *Dev) ascPeriod(cmd common.Command, op string) (time.Duration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireIdle("get " + op); err != nil {
		return 0, err
	}
	words, err := common.Tx(d.d, cmd, nil, d.check)
	if err != nil {
		return 0, fmt.Errorf("scd4x: %s: %w", op, err)
	}
	return time.Duration(words[0]) * time.Hour, nil
}

func (d *Dev) setASCPeriod(cmd common.Command, op string, period time.Duration) error {
	hours := period / time.Hour
	if hours < 0 || hours > 0xffff || hours%4 != 0 {
		return fmt.Errorf("scd4x: %s %s is not a multiple of 4 hours: %w", op, period, common.ErrOutOfRange)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireIdle("set " + op); err != nil {
		return err
	}
	if _, err := common.Tx(d.d, cmd, []uint16{uint16(hours)}, d.check); err != nil {
		return fmt.Errorf("scd4x: set %s: %w", op, err)
	}
	return nil
}

// ForcedRecalibration performs a forced recalibration against a known
// reference CO2 concentration, 400 to 2000 ppm, and returns the
// correction the sensor applied. The sensor must have run in periodic
// mode for at least 3 minutes and then been stopped before calling this.
// A response word of 0xffff means the recalibration failed.
func (d *Dev) ForcedRecalibration(reference PPM) (PPM, error) {
	if reference < 400 || reference > 2000 {
		return 0, fmt.Errorf("scd4x: frc reference %s outside 400..2000 ppm: %w", reference, common.ErrOutOfRange)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireIdle("frc"); err != nil {
		return 0, err
	}
	words, err := common.Tx(d.d, cmdFRC, []uint16{uint16(reference)}, d.check)
	if err != nil {
		return 0, fmt.Errorf("scd4x: frc: %w", err)
	}
	if words[0] == 0xffff {
		return 0, fmt.Errorf("scd4x: forced recalibration failed, no valid measurement before the command")
	}
	return PPM(int(words[0]) - 0x8000), nil
}

// SelfTest runs the sensor self test and returns the malfunction bitmask,
// 0 when the sensor is healthy. The test takes 10 seconds. A non-zero
// result is also logged as a warning.
func (d *Dev) SelfTest() (uint16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireIdle("self test"); err != nil {
		return 0, err
	}
	words, err := common.Tx(d.d, cmdSelfTest, nil, d.check)
	if err != nil {
		return 0, fmt.Errorf("scd4x: self test: %w", err)
	}
	if words[0] != 0 {
		logrus.WithField("malfunction", fmt.Sprintf("%#04x", words[0])).Warn("scd4x: self test detected a malfunction")
	}
	return words[0], nil
}

// PersistSettings writes volatile configuration, such as the temperature
// offset or the ASC state, to the sensor EEPROM so it survives power
// cycles. EEPROM endurance is limited; persist only when configuration
// actually changed.
func (d *Dev) PersistSettings() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireIdle("persist settings"); err != nil {
		return err
	}
	if _, err := common.Tx(d.d, cmdPersistSettings, nil, d.check); err != nil {
		return fmt.Errorf("scd4x: persist settings: %w", err)
	}
	return nil
}

// FactoryReset erases the EEPROM and reverts calibration history to the
// factory state.
func (d *Dev) FactoryReset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireIdle("factory reset"); err != nil {
		return err
	}
	if _, err := common.Tx(d.d, cmdFactoryReset, nil, d.check); err != nil {
		return fmt.Errorf("scd4x: factory reset: %w", err)
	}
	return nil
}

// Reinit reloads settings from EEPROM, equivalent to a power cycle.
func (d *Dev) Reinit() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireIdle("reinit"); err != nil {
		return err
	}
	if _, err := common.Tx(d.d, cmdReinit, nil, d.check); err != nil {
		return fmt.Errorf("scd4x: reinit: %w", err)
	}
	return nil
}

// PowerDown puts the sensor into sleep mode to minimise current
// consumption. SCD41 only. Use WakeUp to return to idle mode.
func (d *Dev) PowerDown() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireIdle("power down"); err != nil {
		return err
	}
	if _, err := common.Tx(d.d, cmdPowerDown, nil, d.check); err != nil {
		return fmt.Errorf("scd4x: power down: %w", err)
	}
	return nil
}

// WakeUp wakes the sensor from sleep mode into idle mode. The sensor
// does not acknowledge the wake-up command, so a bus error here is
// expected and ignored.
func (d *Dev) WakeUp() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, _ = common.Tx(d.d, cmdWakeUp, nil, d.check)
	return nil
}

// SerialNumber returns the unique 48-bit serial number of the sensor.
func (d *Dev) SerialNumber() (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireIdle("serial number"); err != nil {
		return 0, err
	}
	words, err := common.Tx(d.d, cmdSerialNumber, nil, d.check)
	if err != nil {
		return 0, fmt.Errorf("scd4x: serial number: %w", err)
	}
	return uint64(words[0])<<32 | uint64(words[1])<<16 | uint64(words[2]), nil
}

// SensorVariant reports whether the sensor is an SCD40 or SCD41.
func (d *Dev) SensorVariant() (Variant, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireIdle("sensor variant"); err != nil {
		return VariantUnknown, err
	}
	words, err := common.Tx(d.d, cmdSensorVariant, nil, d.check)
	if err != nil {
		return VariantUnknown, fmt.Errorf("scd4x: sensor variant: %w", err)
	}
	switch words[0] >> 12 {
	case 0:
		return SCD40, nil
	case 1:
		return SCD41, nil
	}
	return VariantUnknown, nil
}

// Precision returns the resolution of the measurements.
func (d *Dev) Precision(e *Env) {
	countIncrement := 1.0 / 65535.0
	e.Temperature = physic.Temperature(countIncrement * tempSpan * float64(physic.Kelvin))
	e.Humidity = physic.RelativeHumidity(countIncrement * rhSpan * float64(physic.PercentRH))
	e.Pressure = 0
	e.CO2 = 1
	e.DewPoint = 10 * physic.MilliKelvin
}

func (d *Dev) String() string {
	return fmt.Sprintf("scd4x{%s}", d.d.String())
}

var _ conn.Resource = &Dev{}
