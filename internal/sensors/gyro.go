// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"log"
	"math"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/scan_synchronizer/internal/config"
)

// HeadingRateSource reads the platform's rotation rate about the
// vertical axis, in rad/s.
type HeadingRateSource interface {
	NextHeadingRate() (float64, error)
}

type gyroSource struct {
	imu *mpu9250.MPU9250
	// rad/s per raw count, from the configured full-scale range
	scale float64
}

// NewGyroSource initializes the MPU9250 over SPI and returns a source
// that reads the Z-axis gyro as the platform heading rate.
func NewGyroSource() (HeadingRateSource, error) {
	cfg := config.Get()

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("gyro: periph host init: %w", err)
	}

	cs := gpioreg.ByName(cfg.IMUCSPin)
	if cs == nil {
		return nil, fmt.Errorf("gyro: CS pin %q not found", cfg.IMUCSPin)
	}

	tr, err := mpu9250.NewSpiTransport(cfg.IMUSPIDevice, cs)
	if err != nil {
		return nil, fmt.Errorf("gyro: SPI transport (%s): %w", cfg.IMUSPIDevice, err)
	}

	imu, err := mpu9250.New(tr)
	if err != nil {
		return nil, fmt.Errorf("gyro: device creation: %w", err)
	}

	if err := imu.Init(); err != nil {
		return nil, fmt.Errorf("gyro: initialization: %w", err)
	}

	if err := imu.SetGyroRange(cfg.IMUGyroRange); err != nil {
		return nil, fmt.Errorf("gyro: set gyro range: %w", err)
	}
	rangeDps := []float64{250, 500, 1000, 2000}[cfg.IMUGyroRange]
	log.Printf("gyro: gyroscope range set to %d (±%.0f°/s)", cfg.IMUGyroRange, rangeDps)

	if err := imu.Calibrate(); err != nil {
		log.Printf("Warning: gyro calibration failed: %v", err)
	} else {
		log.Println("gyro: calibration complete")
	}

	return &gyroSource{
		imu:   imu,
		scale: rangeDps / 32768.0 * math.Pi / 180.0,
	}, nil
}

// NextHeadingRate reads the Z-axis rotation rate.
func (s *gyroSource) NextHeadingRate() (float64, error) {
	gz, err := s.imu.GetRotationZ()
	if err != nil {
		return 0, fmt.Errorf("gyro Z: %w", err)
	}
	return float64(gz) * s.scale, nil
}
