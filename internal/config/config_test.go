package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sync_config.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
# broker
MQTT_BROKER=tcp://localhost:1883

OUTPUT_FRAME=base
INPUT_STREAMS=lidar/front, lidar/left, lidar/right
INPUT_OFFSETS=0, 0.02, 0.04
TIMEOUT_SEC=0.2
STATIC_TRANSFORM_front=1.0, 0, 0.5, 1.5708
STATIC_TRANSFORM_base=0,0,0,0
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.MQTTBroker != "tcp://localhost:1883" {
		t.Errorf("broker = %q", cfg.MQTTBroker)
	}
	if cfg.OutputFrame != "base" {
		t.Errorf("output frame = %q", cfg.OutputFrame)
	}
	if len(cfg.InputStreams) != 3 || cfg.InputStreams[1] != "lidar/left" {
		t.Errorf("streams = %v", cfg.InputStreams)
	}
	if len(cfg.InputOffsets) != 3 || cfg.InputOffsets[2] != 0.04 {
		t.Errorf("offsets = %v", cfg.InputOffsets)
	}
	if cfg.TimeoutSec != 0.2 {
		t.Errorf("timeout = %v", cfg.TimeoutSec)
	}

	front, ok := cfg.StaticTransforms["front"]
	if !ok {
		t.Fatal("front transform missing")
	}
	if front.X != 1.0 || front.Z != 0.5 || math.Abs(front.Yaw-1.5708) > 1e-9 {
		t.Errorf("front pose = %+v", front)
	}
	if _, ok := cfg.StaticTransforms["base"]; !ok {
		t.Error("base transform missing")
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "MQTT_BROKER=tcp://localhost:1883\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.TimeoutSec != 0.1 {
		t.Errorf("default timeout = %v, want 0.1", cfg.TimeoutSec)
	}
	if cfg.MaxQueueSize != 5 {
		t.Errorf("default queue size = %d, want 5", cfg.MaxQueueSize)
	}
	if cfg.TopicVelocity != "vehicle/velocity_status" {
		t.Errorf("default velocity topic = %q", cfg.TopicVelocity)
	}
	if cfg.TopicDiagnostics != "sync/status" {
		t.Errorf("default diagnostics topic = %q", cfg.TopicDiagnostics)
	}
	if cfg.WebServerPort != 8080 {
		t.Errorf("default web port = %d", cfg.WebServerPort)
	}
	if cfg.ScanPointCount != 360 {
		t.Errorf("default point count = %d", cfg.ScanPointCount)
	}
}

func TestLoadRejectsBadInput(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing broker", "OUTPUT_FRAME=base\n"},
		{"unknown key", "MQTT_BROKER=b\nBOGUS_KEY=1\n"},
		{"malformed line", "MQTT_BROKER=b\nno equals sign here\n"},
		{"zero timeout", "MQTT_BROKER=b\nTIMEOUT_SEC=0\n"},
		{"queue below one", "MQTT_BROKER=b\nMAX_QUEUE_SIZE=0\n"},
		{"pose arity", "MQTT_BROKER=b\nSTATIC_TRANSFORM_front=1,2,3\n"},
		{"pose not a number", "MQTT_BROKER=b\nSTATIC_TRANSFORM_front=1,2,3,abc\n"},
		{"bad offset", "MQTT_BROKER=b\nINPUT_OFFSETS=0,oops\n"},
		{"gyro range out of bounds", "MQTT_BROKER=b\nIMU_GYRO_RANGE=4\n"},
	}
	for _, tc := range cases {
		if _, err := Load(writeConfig(t, tc.content)); err == nil {
			t.Errorf("%s: Load accepted invalid config", tc.name)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Error("Load must fail on a missing file")
	}
}
