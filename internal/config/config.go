package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/relabs-tech/scan_synchronizer/internal/frames"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker                      string
	MQTTClientIDSync                string
	MQTTClientIDConsole             string
	MQTTClientIDWeb                 string
	MQTTClientIDDisplay             string
	MQTTClientIDScanProducer        string
	MQTTClientIDVelocityProducer    string
	MQTTClientIDIMUVelocityProducer string

	// Synchronizer
	OutputFrame      string
	InputStreams     []string  // input topics, one per scanner
	InputOffsets     []float64 // seconds; when set, must match InputStreams
	TimeoutSec       float64
	MaxQueueSize     int
	TopicVelocity    string
	TopicDiagnostics string

	// Static sensor extrinsics: frame name -> mount pose in the base frame.
	StaticTransforms map[string]frames.Pose

	// Scan producer
	ScanFrames     []string // frame per input stream; defaults to the topic name
	ScanInterval   int      // milliseconds between scans
	ScanPointCount int
	ScanRangeM     float64

	// GPS velocity producer
	GPSSerialPort string
	GPSBaudRate   int

	// IMU velocity producer
	IMUSPIDevice string
	IMUCSPin     string
	// Gyroscope range: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	IMUGyroRange      byte
	IMUSampleInterval int // milliseconds

	// Web server
	WebServerPort int

	// Display
	DisplayI2CAddr        uint16
	DisplayUpdateInterval int // milliseconds
}

// Package-level unexported variables for the usual singleton pattern:
// InitGlobal sets the configuration once, Get reads it under a read
// lock so callers across goroutines never race initialization.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := defaults()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		MQTTClientIDSync:                "scan-sync",
		MQTTClientIDConsole:             "scan-sync-console",
		MQTTClientIDWeb:                 "scan-sync-web",
		MQTTClientIDDisplay:             "scan-sync-display",
		MQTTClientIDScanProducer:        "scan-sync-scan-producer",
		MQTTClientIDVelocityProducer:    "scan-sync-velocity-producer",
		MQTTClientIDIMUVelocityProducer: "scan-sync-imu-velocity-producer",

		TimeoutSec:       0.1,
		MaxQueueSize:     5,
		TopicVelocity:    "vehicle/velocity_status",
		TopicDiagnostics: "sync/status",

		StaticTransforms: make(map[string]frames.Pose),

		ScanInterval:   100,
		ScanPointCount: 360,
		ScanRangeM:     10.0,

		WebServerPort:         8080,
		DisplayUpdateInterval: 250,
	}
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	// Repeatable static transform entries: STATIC_TRANSFORM_<frame>=x,y,z,yaw
	if frame, ok := strings.CutPrefix(key, "STATIC_TRANSFORM_"); ok {
		pose, err := parsePose(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
		c.StaticTransforms[frame] = pose
		return nil
	}

	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_SYNC":
		c.MQTTClientIDSync = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value
	case "MQTT_CLIENT_ID_SCAN_PRODUCER":
		c.MQTTClientIDScanProducer = value
	case "MQTT_CLIENT_ID_VELOCITY_PRODUCER":
		c.MQTTClientIDVelocityProducer = value
	case "MQTT_CLIENT_ID_IMU_VELOCITY_PRODUCER":
		c.MQTTClientIDIMUVelocityProducer = value

	// Synchronizer
	case "OUTPUT_FRAME":
		c.OutputFrame = value
	case "INPUT_STREAMS":
		c.InputStreams = splitList(value)
	case "INPUT_OFFSETS":
		for _, field := range splitList(value) {
			off, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return fmt.Errorf("invalid INPUT_OFFSETS entry %q: %w", field, err)
			}
			c.InputOffsets = append(c.InputOffsets, off)
		}
	case "TIMEOUT_SEC":
		timeout, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid TIMEOUT_SEC %q: %w", value, err)
		}
		if timeout <= 0 {
			return fmt.Errorf("TIMEOUT_SEC must be positive, got %v", timeout)
		}
		c.TimeoutSec = timeout
	case "MAX_QUEUE_SIZE":
		size, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MAX_QUEUE_SIZE %q: %w", value, err)
		}
		if size < 1 {
			return fmt.Errorf("MAX_QUEUE_SIZE must be at least 1, got %d", size)
		}
		c.MaxQueueSize = size
	case "TOPIC_VELOCITY":
		c.TopicVelocity = value
	case "TOPIC_DIAGNOSTICS":
		c.TopicDiagnostics = value

	// Scan producer
	case "SCAN_FRAMES":
		c.ScanFrames = splitList(value)
	case "SCAN_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SCAN_INTERVAL %q: %w", value, err)
		}
		c.ScanInterval = interval
	case "SCAN_POINT_COUNT":
		count, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SCAN_POINT_COUNT %q: %w", value, err)
		}
		c.ScanPointCount = count
	case "SCAN_RANGE_M":
		rng, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid SCAN_RANGE_M %q: %w", value, err)
		}
		c.ScanRangeM = rng

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GPS_BAUD_RATE %q: %w", value, err)
		}
		c.GPSBaudRate = rate

	// IMU
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value
	case "IMU_GYRO_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_GYRO_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_GYRO_RANGE must be 0-3 (0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s), got %d", rangeVal)
		}
		c.IMUGyroRange = byte(rangeVal)
	case "IMU_SAMPLE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_SAMPLE_INTERVAL %q: %w", value, err)
		}
		c.IMUSampleInterval = interval

	// Web server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	// Display
	case "DISPLAY_I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_I2C_ADDR %q: %w", value, err)
		}
		c.DisplayI2CAddr = uint16(addr)
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all fields required by every binary are set.
// Per-node requirements (output frame, stream count, offsets) are
// checked by the node that needs them so producers can run from the
// same file.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, field := range strings.Split(value, ",") {
		field = strings.TrimSpace(field)
		if field != "" {
			out = append(out, field)
		}
	}
	return out
}

func parsePose(value string) (frames.Pose, error) {
	fields := splitList(value)
	if len(fields) != 4 {
		return frames.Pose{}, fmt.Errorf("want x,y,z,yaw (4 values), got %d", len(fields))
	}
	var nums [4]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return frames.Pose{}, err
		}
		nums[i] = v
	}
	return frames.Pose{X: nums[0], Y: nums[1], Z: nums[2], Yaw: nums[3]}, nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once so repeated calls are harmless.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
