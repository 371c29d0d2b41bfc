// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sht4x_test

import (
	"log"
	"time"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/Giakou/sensirion-epics/sht4x"
)

// Example shows creating an SHT-4X sensor and reading from it.
func Example() {
	if _, err := host.Init(); err != nil {
		log.Fatal("Error calling host.init()")
	}
	bus, err := i2creg.Open("")
	if err != nil {
		log.Fatal(err)
	}
	defer bus.Close()

	dev, err := sht4x.New(bus, sht4x.DefaultAddress, nil)
	if err != nil {
		log.Fatal(err)
	}

	env := &sht4x.Env{}

	for i := 0; i < 10; i++ {
		err = dev.Sense(env)
		if err != nil {
			log.Println(err)
		} else {
			log.Printf("Temperature: %s   Humidity: %s   Dew point: %s\n", env.Temperature, env.Humidity, env.DewPoint)
		}
		time.Sleep(time.Second)
	}
}
