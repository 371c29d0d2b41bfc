// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sgp30

import (
	"errors"
	"testing"
	"time"

	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/Giakou/sensirion-epics/common"
)

func TestSense(t *testing.T) {
	b := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: SensorAddress, W: []byte{0x20, 0x03}},
			{Addr: SensorAddress, W: []byte{0x20, 0x08}},
			{Addr: SensorAddress, R: common.PutWords([]uint16{412, 19})},
		},
	}
	d, err := New(b, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.InitAirQuality(); err != nil {
		t.Fatal(err)
	}
	e := Env{}
	if err := d.Sense(&e); err != nil {
		t.Fatal(err)
	}
	if e.CO2 != 412 {
		t.Errorf("CO2 = %s, want 412 ppm", e.CO2)
	}
	if e.TVOC != 19 {
		t.Errorf("TVOC = %s, want 19 ppb", e.TVOC)
	}
	last, ok := d.Last()
	if !ok || last != e {
		t.Errorf("Last() = %v, %t, want %v, true", last, ok, e)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestSense_RequiresInit(t *testing.T) {
	b := &i2ctest.Playback{DontPanic: true}
	d, err := New(b, nil)
	if err != nil {
		t.Fatal(err)
	}
	e := Env{}
	if err := d.Sense(&e); !errors.Is(err, common.ErrConfig) {
		t.Fatalf("Sense = %v, want ErrConfig", err)
	}
}

func TestSenseContinuous(t *testing.T) {
	b := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: SensorAddress, W: []byte{0x20, 0x03}},
			{Addr: SensorAddress, W: []byte{0x20, 0x08}},
			{Addr: SensorAddress, R: common.PutWords([]uint16{400, 0})},
		},
		DontPanic: true,
	}
	d, err := New(b, nil)
	if err != nil {
		t.Fatal(err)
	}
	ch, err := d.SenseContinuous()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.SenseContinuous(); !errors.Is(err, common.ErrConfig) {
		t.Fatalf("second SenseContinuous = %v, want ErrConfig", err)
	}
	select {
	case e := <-ch:
		if e.CO2 != 400 || e.TVOC != 0 {
			t.Errorf("reading = %v, want 400 ppm, 0 ppb", e)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reading within 5s")
	}
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	if _, ok := <-ch; ok {
		// A reading may already be buffered; the channel must close after.
		if _, ok := <-ch; ok {
			t.Error("channel still open after Halt")
		}
	}
}

func TestIAQBaseline(t *testing.T) {
	b := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: SensorAddress, W: []byte{0x20, 0x15}},
			{Addr: SensorAddress, R: common.PutWords([]uint16{0x8a2f, 0x8e91})},
			// Restore sends the TVOC word first.
			{Addr: SensorAddress, W: append([]byte{0x20, 0x1e}, common.PutWords([]uint16{0x8e91, 0x8a2f})...)},
		},
	}
	d, err := New(b, nil)
	if err != nil {
		t.Fatal(err)
	}
	co2, tvoc, err := d.IAQBaseline()
	if err != nil {
		t.Fatal(err)
	}
	if co2 != 0x8a2f || tvoc != 0x8e91 {
		t.Errorf("IAQBaseline = %#04x, %#04x, want 0x8a2f, 0x8e91", co2, tvoc)
	}
	if err := d.SetIAQBaseline(co2, tvoc); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestSetAbsoluteHumidity(t *testing.T) {
	b := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			// 15.5 g/m3 -> 0x0f80 in 8.8 fixed point.
			{Addr: SensorAddress, W: append([]byte{0x20, 0x61}, common.PutWords([]uint16{0x0f80})...)},
		},
		DontPanic: true,
	}
	d, err := New(b, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.SetAbsoluteHumidity(15.5); err != nil {
		t.Fatal(err)
	}
	for _, ah := range []float64{-1, 256} {
		if err := d.SetAbsoluteHumidity(ah); !errors.Is(err, common.ErrOutOfRange) {
			t.Errorf("SetAbsoluteHumidity(%g) = %v, want ErrOutOfRange", ah, err)
		}
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestMeasureTest(t *testing.T) {
	b := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: SensorAddress, W: []byte{0x20, 0x32}},
			{Addr: SensorAddress, R: common.PutWords([]uint16{0xd400})},
			{Addr: SensorAddress, W: []byte{0x20, 0x32}},
			{Addr: SensorAddress, R: common.PutWords([]uint16{0xbeef})},
		},
	}
	d, err := New(b, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.MeasureTest(); err != nil {
		t.Fatal(err)
	}
	if err := d.MeasureTest(); err == nil {
		t.Error("MeasureTest with bad pattern: want error")
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestMeasureRaw(t *testing.T) {
	b := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: SensorAddress, W: []byte{0x20, 0x50}},
			{Addr: SensorAddress, R: common.PutWords([]uint16{13119, 18472})},
		},
	}
	d, err := New(b, nil)
	if err != nil {
		t.Fatal(err)
	}
	h2, ethanol, err := d.MeasureRaw()
	if err != nil {
		t.Fatal(err)
	}
	if h2 != 13119 || ethanol != 18472 {
		t.Errorf("MeasureRaw = %d, %d, want 13119, 18472", h2, ethanol)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestSerialNumber(t *testing.T) {
	b := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: SensorAddress, W: []byte{0x36, 0x82}},
			{Addr: SensorAddress, R: common.PutWords([]uint16{0x0000, 0x0172, 0x65a9})},
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
	if serial != 0x017265a9 {
		t.Errorf("SerialNumber = %#012x, want 0x00017265a9", serial)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
}
