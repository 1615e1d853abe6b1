// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/scan_synchronizer/internal/config"
	"github.com/relabs-tech/scan_synchronizer/internal/scan"
)

// RunScanProducer publishes synthetic planar scans on every configured
// input topic. It is the bench harness for the sync node: each stream
// lags the first by its configured offset, so timer re-arming and
// partial rounds can be exercised without hardware.
func RunScanProducer() error {
	cfg := config.Get()

	if len(cfg.InputStreams) == 0 {
		err := fmt.Errorf("INPUT_STREAMS must be set before continuing")
		log.Printf("scan producer: %v", err)
		return err
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDScanProducer)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("scan producer: connected to MQTT broker at %s", cfg.MQTTBroker)

	frames := make([]string, len(cfg.InputStreams))
	for i, topic := range cfg.InputStreams {
		if i < len(cfg.ScanFrames) {
			frames[i] = cfg.ScanFrames[i]
		} else {
			frames[i] = topic
		}
	}

	interval := time.Duration(cfg.ScanInterval) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("scan producer: publishing %d streams every %v", len(cfg.InputStreams), interval)

	for range ticker.C {
		for i, topic := range cfg.InputStreams {
			var lag time.Duration
			if i < len(cfg.InputOffsets) {
				lag = time.Duration(cfg.InputOffsets[i] * float64(time.Second))
			}
			stamp := time.Now().Add(-lag)

			cloud := syntheticScan(frames[i], stamp, cfg.ScanPointCount, cfg.ScanRangeM)
			payload, err := json.Marshal(cloud)
			if err != nil {
				log.Printf("scan producer: marshal error: %v", err)
				continue
			}
			if token := client.Publish(topic, 0, false, payload); token.Wait() && token.Error() != nil {
				log.Printf("scan producer: publish error on %s: %v", topic, token.Error())
			}
		}
	}

	return nil
}

// syntheticScan builds one full planar sweep: count returns spread
// around the circle at a gently varying range.
func syntheticScan(frameID string, stamp time.Time, count int, rangeM float64) *scan.Cloud {
	cloud := &scan.Cloud{
		FrameID: frameID,
		Stamp:   stamp,
		Points:  make([]scan.Point, count),
	}
	for i := 0; i < count; i++ {
		azimuth := 360.0 * float64(i) / float64(count)
		distance := rangeM * (1.0 + 0.1*math.Sin(4*azimuth*math.Pi/180.0))
		x, y, z := scan.SphericalToCartesian(distance, azimuth, 0)
		cloud.Points[i] = scan.Point{
			X:         float32(x),
			Y:         float32(y),
			Z:         float32(z),
			Intensity: 100,
		}
	}
	return cloud
}
