// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package scd30

import (
	"errors"
	"math"
	"testing"
	"time"

	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"

	"github.com/Giakou/sensirion-epics/common"
)

func floatWords(f float32) []uint16 {
	bits := math.Float32bits(f)
	return []uint16{uint16(bits >> 16), uint16(bits)}
}

func measurementBytes(co2, t, rh float32) []byte {
	var words []uint16
	words = append(words, floatWords(co2)...)
	words = append(words, floatWords(t)...)
	words = append(words, floatWords(rh)...)
	return common.PutWords(words)
}

func TestStartContinuous_ValidatesPressure(t *testing.T) {
	b := &i2ctest.Playback{DontPanic: true}
	d, err := New(b, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, mbar := range []int{-1, 1, 699, 1201} {
		if err := d.StartContinuous(mbar); !errors.Is(err, common.ErrOutOfRange) {
			t.Errorf("StartContinuous(%d) = %v, want ErrOutOfRange", mbar, err)
		}
	}
}

func TestStartContinuous(t *testing.T) {
	b := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: SensorAddress, W: append([]byte{0x00, 0x10}, common.PutWords([]uint16{1000})...)},
		},
	}
	d, err := New(b, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.StartContinuous(1000); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestFetch(t *testing.T) {
	b := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: SensorAddress, W: append([]byte{0x00, 0x10}, common.PutWords([]uint16{0})...)},
			{Addr: SensorAddress, W: []byte{0x02, 0x02}},
			{Addr: SensorAddress, R: common.PutWords([]uint16{1})},
			{Addr: SensorAddress, W: []byte{0x03, 0x00}},
			{Addr: SensorAddress, R: measurementBytes(800, 21.5, 40.25)},
		},
	}
	d, err := New(b, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.StartContinuous(0); err != nil {
		t.Fatal(err)
	}
	e := Env{}
	if err := d.Fetch(&e); err != nil {
		t.Fatal(err)
	}
	if e.CO2 != 800 {
		t.Errorf("CO2 = %s, want 800 ppm", e.CO2)
	}
	if e.Temperature != common.Celsius(21.5) {
		t.Errorf("Temperature = %s, want 21.5 degrees", e.Temperature)
	}
	if e.Humidity != common.RelHumidity(40.25) {
		t.Errorf("Humidity = %s, want 40.25 %%RH", e.Humidity)
	}
	if e.DewPoint >= e.Temperature {
		t.Errorf("DewPoint = %s, want below temperature", e.DewPoint)
	}
	last, ok := d.Last()
	if !ok || last != e {
		t.Errorf("Last() = %v, %t, want %v, true", last, ok, e)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestFetch_RequiresContinuous(t *testing.T) {
	b := &i2ctest.Playback{DontPanic: true}
	d, err := New(b, nil)
	if err != nil {
		t.Fatal(err)
	}
	e := Env{}
	if err := d.Fetch(&e); !errors.Is(err, common.ErrConfig) {
		t.Fatalf("Fetch = %v, want ErrConfig", err)
	}
}

func TestFetch_Timeout(t *testing.T) {
	oldAttempts, oldBackoff := maxReadyAttempts, readyBackoff
	maxReadyAttempts, readyBackoff = 2, 0
	defer func() { maxReadyAttempts, readyBackoff = oldAttempts, oldBackoff }()

	b := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: SensorAddress, W: append([]byte{0x00, 0x10}, common.PutWords([]uint16{0})...)},
			{Addr: SensorAddress, W: []byte{0x02, 0x02}},
			{Addr: SensorAddress, R: common.PutWords([]uint16{0})},
			{Addr: SensorAddress, W: []byte{0x02, 0x02}},
			{Addr: SensorAddress, R: common.PutWords([]uint16{0})},
		},
	}
	d, err := New(b, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.StartContinuous(0); err != nil {
		t.Fatal(err)
	}
	e := Env{}
	if err := d.Fetch(&e); !errors.Is(err, common.ErrTimeout) {
		t.Fatalf("Fetch = %v, want ErrTimeout", err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestHalt(t *testing.T) {
	b := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: SensorAddress, W: []byte{0x01, 0x04}},
		},
	}
	d, err := New(b, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestMeasurementInterval(t *testing.T) {
	b := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: SensorAddress, W: append([]byte{0x46, 0x00}, common.PutWords([]uint16{30})...)},
			{Addr: SensorAddress, W: []byte{0x46, 0x00}},
			{Addr: SensorAddress, R: common.PutWords([]uint16{30})},
		},
	}
	d, err := New(b, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.SetMeasurementInterval(30 * time.Second); err != nil {
		t.Fatal(err)
	}
	got, err := d.MeasurementInterval()
	if err != nil {
		t.Fatal(err)
	}
	if got != 30*time.Second {
		t.Errorf("MeasurementInterval = %s, want 30s", got)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestSetMeasurementInterval_ValidatesRange(t *testing.T) {
	b := &i2ctest.Playback{DontPanic: true}
	d, err := New(b, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, interval := range []time.Duration{0, time.Second, 1801 * time.Second} {
		if err := d.SetMeasurementInterval(interval); !errors.Is(err, common.ErrOutOfRange) {
			t.Errorf("SetMeasurementInterval(%s) = %v, want ErrOutOfRange", interval, err)
		}
	}
}

func TestSetFRC_ValidatesReference(t *testing.T) {
	b := &i2ctest.Playback{DontPanic: true}
	d, err := New(b, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, ref := range []PPM{0, 399, 2001} {
		if err := d.SetFRC(ref); !errors.Is(err, common.ErrOutOfRange) {
			t.Errorf("SetFRC(%s) = %v, want ErrOutOfRange", ref, err)
		}
	}
}

func TestFRC(t *testing.T) {
	b := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: SensorAddress, W: append([]byte{0x52, 0x04}, common.PutWords([]uint16{420})...)},
			{Addr: SensorAddress, W: []byte{0x52, 0x04}},
			{Addr: SensorAddress, R: common.PutWords([]uint16{420})},
		},
	}
	d, err := New(b, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.SetFRC(420); err != nil {
		t.Fatal(err)
	}
	got, err := d.FRC()
	if err != nil {
		t.Fatal(err)
	}
	if got != 420 {
		t.Errorf("FRC = %s, want 420 ppm", got)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestASC(t *testing.T) {
	b := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: SensorAddress, W: append([]byte{0x53, 0x06}, common.PutWords([]uint16{1})...)},
			{Addr: SensorAddress, W: []byte{0x53, 0x06}},
			{Addr: SensorAddress, R: common.PutWords([]uint16{1})},
		},
	}
	d, err := New(b, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.SetASCEnabled(true); err != nil {
		t.Fatal(err)
	}
	on, err := d.ASCEnabled()
	if err != nil {
		t.Fatal(err)
	}
	if !on {
		t.Error("ASCEnabled = false, want true")
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestTemperatureOffset(t *testing.T) {
	b := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: SensorAddress, W: append([]byte{0x54, 0x03}, common.PutWords([]uint16{200})...)},
			{Addr: SensorAddress, W: []byte{0x54, 0x03}},
			{Addr: SensorAddress, R: common.PutWords([]uint16{200})},
		},
	}
	d, err := New(b, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.SetTemperatureOffset(2 * physic.Kelvin); err != nil {
		t.Fatal(err)
	}
	got, err := d.TemperatureOffset()
	if err != nil {
		t.Fatal(err)
	}
	if got != 2*physic.Kelvin {
		t.Errorf("TemperatureOffset = %s, want 2K", got)
	}
	if err := d.SetTemperatureOffset(-physic.Kelvin); !errors.Is(err, common.ErrOutOfRange) {
		t.Errorf("SetTemperatureOffset(-1K) = %v, want ErrOutOfRange", err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestAltitude(t *testing.T) {
	b := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: SensorAddress, W: append([]byte{0x51, 0x02}, common.PutWords([]uint16{520})...)},
			{Addr: SensorAddress, W: []byte{0x51, 0x02}},
			{Addr: SensorAddress, R: common.PutWords([]uint16{520})},
		},
	}
	d, err := New(b, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.SetAltitude(520 * physic.Metre); err != nil {
		t.Fatal(err)
	}
	got, err := d.Altitude()
	if err != nil {
		t.Fatal(err)
	}
	if got != 520*physic.Metre {
		t.Errorf("Altitude = %s, want 520m", got)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestFirmwareVersion(t *testing.T) {
	b := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: SensorAddress, W: []byte{0xd1, 0x00}},
			{Addr: SensorAddress, R: common.PutWords([]uint16{0x0342})},
		},
	}
	d, err := New(b, nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := d.FirmwareVersion()
	if err != nil {
		t.Fatal(err)
	}
	if got != "3.66" {
		t.Errorf("FirmwareVersion = %q, want \"3.66\"", got)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestSerialNumber(t *testing.T) {
	b := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: SensorAddress, W: []byte{0xd0, 0x33}},
			{Addr: SensorAddress, R: common.PutWords([]uint16{0xcafe, 0xf00d})},
		},
	}
	d, err := New(b, nil)
	if err != nil {
		t.Fatal(err)
	}
	serial, err := d.SerialNumber()
	if err != nil {
		t.Fatal(err)
	}
	if serial != 0xcafef00d {
		t.Errorf("SerialNumber = %#08x, want 0xcafef00d", serial)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestReset(t *testing.T) {
	b := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: SensorAddress, W: []byte{0xd3, 0x04}},
		},
	}
	d, err := New(b, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Reset(); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
}
