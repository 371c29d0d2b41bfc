// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// sensirion-prom polls a Sensirion sensor on an I2C bus and exposes its
// readings as Prometheus gauges. Failed read cycles publish NaN so the
// scrape shows a gap instead of a stale value.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"

	"github.com/Giakou/sensirion-epics/daq"
	"github.com/Giakou/sensirion-epics/scd30"
	"github.com/Giakou/sensirion-epics/scd4x"
	"github.com/Giakou/sensirion-epics/sgp30"
	"github.com/Giakou/sensirion-epics/sht2x"
	"github.com/Giakou/sensirion-epics/sht4x"
	"github.com/Giakou/sensirion-epics/sht85"
)

// CLI args
var (
	listenAddr    = flag.String("listen-address", ":8080", "The address to listen on for HTTP requests.")
	busNumber     = flag.Int("bus", 1, "I2C bus number the sensor is wired to")
	model         = flag.String("model", "sht85", "sensor model: sht2x, sht4x, sht85, scd30, scd4x or sgp30")
	address       = flag.Uint("addr", 0, "I2C address override, 0 selects the model default")
	repeatability = flag.String("rep", "high", "measurement repeatability for sht4x/sht85: high, medium or low")
	readInterval  = flag.Duration("read-int", 30*time.Second, "time interval between sensor reads")
	disableCRC    = flag.Bool("disable-crc", false, "skip checksum verification of sensor responses")
)

// metrics to expose to Prometheus
var (
	gaugeTemperature = newGauge("sensor_temperature_celsius", "Air temperature (units: degrees Celsius)")
	gaugeHumidity    = newGauge("sensor_humidity_percent", "Relative humidity (units: %RH)")
	gaugeDewPoint    = newGauge("sensor_dewpoint_celsius", "Dew point (units: degrees Celsius)")
	gaugeCo2Level    = newGauge("sensor_co2_ppm", "Carbon dioxide concentration (units: ppm)")
)

func newGauge(name string, help string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: name,
			Help: help,
		},
		[]string{"serial_number"},
	)
}

func init() {
	prometheus.MustRegister(gaugeTemperature)
	prometheus.MustRegister(gaugeHumidity)
	prometheus.MustRegister(gaugeDewPoint)
	prometheus.MustRegister(gaugeCo2Level)
	prometheus.MustRegister(prometheus.NewBuildInfoCollector())

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})
}

// reading is one polled sample in plain units for the gauges.
type reading struct {
	temperature float64
	humidity    float64
	dewPoint    float64
	co2         float64
}

// sampler adapts one sensor model to the polling loop. Not every model
// produces every channel: the sgp30 has no RHT readings and the humidity
// sensors have no CO2 channel.
type sampler struct {
	serial string
	hasRHT bool
	hasCO2 bool
	sample func() (reading, error)
}

func newSampler(s *daq.Session) (*sampler, error) {
	switch *model {
	case "sht2x":
		return newSHT2xSampler(s)
	case "sht4x":
		return newSHT4xSampler(s)
	case "sht85":
		return newSHT85Sampler(s)
	case "scd30":
		return newSCD30Sampler(s)
	case "scd4x":
		return newSCD4xSampler(s)
	case "sgp30":
		return newSGP30Sampler(s)
	}
	return nil, fmt.Errorf("unknown sensor model %q", *model)
}

func newSHT2xSampler(s *daq.Session) (*sampler, error) {
	dev, err := sht2x.New(s.Bus(), &sht2x.Opts{DisableCRC: *disableCRC})
	if err != nil {
		return nil, err
	}
	s.Guard(dev)
	serial, err := dev.SerialNumber()
	if err != nil {
		return nil, err
	}
	return &sampler{
		serial: fmt.Sprintf("%08x", serial),
		hasRHT: true,
		sample: func() (reading, error) {
			e := sht2x.Env{}
			if err := dev.Sense(&e); err != nil {
				return reading{}, err
			}
			return reading{
				temperature: e.Temperature.Celsius(),
				humidity:    humidityPercent(e.Humidity),
				dewPoint:    e.DewPoint.Celsius(),
			}, nil
		},
	}, nil
}

func newSHT4xSampler(s *daq.Session) (*sampler, error) {
	rep, err := sht4x.ParseRepeatability(*repeatability)
	if err != nil {
		return nil, err
	}
	addr := sht4x.DefaultAddress
	if *address != 0 {
		addr = i2c.Addr(*address)
	}
	dev, err := sht4x.New(s.Bus(), addr, &sht4x.Opts{Repeatability: rep, DisableCRC: *disableCRC})
	if err != nil {
		return nil, err
	}
	s.Guard(dev)
	serial, err := dev.SerialNumber()
	if err != nil {
		return nil, err
	}
	return &sampler{
		serial: fmt.Sprintf("%08x", serial),
		hasRHT: true,
		sample: func() (reading, error) {
			e := sht4x.Env{}
			if err := dev.Sense(&e); err != nil {
				return reading{}, err
			}
			return reading{
				temperature: e.Temperature.Celsius(),
				humidity:    humidityPercent(e.Humidity),
				dewPoint:    e.DewPoint.Celsius(),
			}, nil
		},
	}, nil
}

func newSHT85Sampler(s *daq.Session) (*sampler, error) {
	rep, err := sht85.ParseRepeatability(*repeatability)
	if err != nil {
		return nil, err
	}
	dev, err := sht85.New(s.Bus(), &sht85.Opts{Repeatability: rep, DisableCRC: *disableCRC})
	if err != nil {
		return nil, err
	}
	s.Guard(dev)
	serial, err := dev.SerialNumber()
	if err != nil {
		return nil, err
	}
	return &sampler{
		serial: fmt.Sprintf("%08x", serial),
		hasRHT: true,
		sample: func() (reading, error) {
			e := sht85.Env{}
			if err := dev.Sense(&e); err != nil {
				return reading{}, err
			}
			return reading{
				temperature: e.Temperature.Celsius(),
				humidity:    humidityPercent(e.Humidity),
				dewPoint:    e.DewPoint.Celsius(),
			}, nil
		},
	}, nil
}

func newSCD30Sampler(s *daq.Session) (*sampler, error) {
	dev, err := scd30.New(s.Bus(), &scd30.Opts{DisableCRC: *disableCRC})
	if err != nil {
		return nil, err
	}
	s.Guard(dev)
	serial, err := dev.SerialNumber()
	if err != nil {
		return nil, err
	}
	if err := dev.StartContinuous(0); err != nil {
		return nil, err
	}
	return &sampler{
		serial: fmt.Sprintf("%08x", serial),
		hasRHT: true,
		hasCO2: true,
		sample: func() (reading, error) {
			e := scd30.Env{}
			if err := dev.Fetch(&e); err != nil {
				return reading{}, err
			}
			return reading{
				temperature: e.Temperature.Celsius(),
				humidity:    humidityPercent(e.Humidity),
				dewPoint:    e.DewPoint.Celsius(),
				co2:         float64(e.CO2),
			}, nil
		},
	}, nil
}

func newSCD4xSampler(s *daq.Session) (*sampler, error) {
	dev, err := scd4x.New(s.Bus(), &scd4x.Opts{DisableCRC: *disableCRC})
	if err != nil {
		return nil, err
	}
	s.Guard(dev)
	serial, err := dev.SerialNumber()
	if err != nil {
		return nil, err
	}
	if err := dev.StartPeriodic(); err != nil {
		return nil, err
	}
	return &sampler{
		serial: fmt.Sprintf("%012x", serial),
		hasRHT: true,
		hasCO2: true,
		sample: func() (reading, error) {
			e := scd4x.Env{}
			if err := dev.Fetch(&e); err != nil {
				return reading{}, err
			}
			return reading{
				temperature: e.Temperature.Celsius(),
				humidity:    humidityPercent(e.Humidity),
				dewPoint:    e.DewPoint.Celsius(),
				co2:         float64(e.CO2),
			}, nil
		},
	}, nil
}

func newSGP30Sampler(s *daq.Session) (*sampler, error) {
	dev, err := sgp30.New(s.Bus(), &sgp30.Opts{DisableCRC: *disableCRC})
	if err != nil {
		return nil, err
	}
	s.Guard(dev)
	serial, err := dev.SerialNumber()
	if err != nil {
		return nil, err
	}
	// The baseline algorithm needs a measurement every second; the
	// polling loop then reads the freshest value at its own pace.
	if _, err := dev.SenseContinuous(); err != nil {
		return nil, err
	}
	return &sampler{
		serial: fmt.Sprintf("%012x", serial),
		hasCO2: true,
		sample: func() (reading, error) {
			e, ok := dev.Last()
			if !ok {
				return reading{}, fmt.Errorf("no sgp30 reading yet")
			}
			return reading{co2: float64(e.CO2)}, nil
		},
	}, nil
}

func humidityPercent(rh physic.RelativeHumidity) float64 {
	return float64(rh) / float64(physic.PercentRH)
}

func publish(smp *sampler, r reading, ok bool) {
	if !ok {
		nan := math.NaN()
		r = reading{temperature: nan, humidity: nan, dewPoint: nan, co2: nan}
	}
	if smp.hasRHT {
		gaugeTemperature.WithLabelValues(smp.serial).Set(r.temperature)
		gaugeHumidity.WithLabelValues(smp.serial).Set(r.humidity)
		gaugeDewPoint.WithLabelValues(smp.serial).Set(r.dewPoint)
	}
	if smp.hasCO2 {
		gaugeCo2Level.WithLabelValues(smp.serial).Set(r.co2)
	}
}

func poll(ctx context.Context, s *daq.Session) error {
	smp, err := newSampler(s)
	if err != nil {
		return err
	}
	log.Infof("polling %s serial %s on bus %d every %s", *model, smp.serial, *busNumber, *readInterval)

	ticker := time.NewTicker(*readInterval)
	defer ticker.Stop()
	for {
		r, err := smp.sample()
		if err != nil {
			log.Errorf("failed to read from sensor (serial %s): %s", smp.serial, err)
			publish(smp, reading{}, false)
		} else {
			publish(smp, r, true)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		http.Handle("/metrics", promhttp.HandlerFor(
			prometheus.DefaultGatherer,
			promhttp.HandlerOpts{
				EnableOpenMetrics: true,
			},
		))
		log.Panic(http.ListenAndServe(*listenAddr, nil))
	}()

	if err := daq.Run(ctx, *busNumber, poll); err != nil && ctx.Err() == nil {
		log.Fatalf("acquisition failed: %s", err)
	}
	log.Info("shut down")
}
