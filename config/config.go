// Package config loads runtime settings from a key=value file with
// environment-variable overrides. Every field has a compiled-in default so
// the control plane runs with no file at all.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration values.
type Config struct {
	// Button gesture timing.
	ButtonPin      string
	ButtonInvert   bool
	DebounceMS     int
	LongPressMS    int
	DoublePressMS  int

	// Sampling.
	SamplingHz int

	// IMU hardware.
	SPIDevice string
	CSPin     string
	MockIMU   bool

	// Telemetry uplink.
	TelemetryEnabled bool
	MQTTBroker       string
	MQTTClientID     string
	MQTTTopicPrefix  string

	// Live monitor.
	MonitorEnabled bool
	MonitorAddr    string
}

// Default returns the compiled-in configuration.
func Default() *Config {
	return &Config{
		ButtonPin:     "GPIO17",
		ButtonInvert:  true, // pull-up wiring, pressed == low
		DebounceMS:    50,
		LongPressMS:   1000,
		DoublePressMS: 300,

		SamplingHz: 100,

		SPIDevice: "/dev/spidev0.0",
		CSPin:     "GPIO8",
		MockIMU:   false,

		TelemetryEnabled: false,
		MQTTBroker:       "tcp://localhost:1883",
		MQTTClientID:     "motionsense",
		MQTTTopicPrefix:  "motionsense",

		MonitorEnabled: false,
		MonitorAddr:    ":8080",
	}
}

// Load reads the configuration file over the defaults, then applies
// environment overrides. A missing file is not an error; a malformed line is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("config line %d: missing '=': %q", lineNum, line)
		}
		if err := c.set(strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}
	return scanner.Err()
}

func (c *Config) set(key, value string) error {
	switch key {
	case "button_pin":
		c.ButtonPin = value
	case "button_invert":
		return parseBool(value, &c.ButtonInvert)
	case "debounce_ms":
		return parseInt(value, &c.DebounceMS)
	case "long_press_ms":
		return parseInt(value, &c.LongPressMS)
	case "double_press_ms":
		return parseInt(value, &c.DoublePressMS)
	case "sampling_hz":
		return parseInt(value, &c.SamplingHz)
	case "spi_device":
		c.SPIDevice = value
	case "cs_pin":
		c.CSPin = value
	case "mock_imu":
		return parseBool(value, &c.MockIMU)
	case "telemetry_enabled":
		return parseBool(value, &c.TelemetryEnabled)
	case "mqtt_broker":
		c.MQTTBroker = value
	case "mqtt_client_id":
		c.MQTTClientID = value
	case "mqtt_topic_prefix":
		c.MQTTTopicPrefix = value
	case "monitor_enabled":
		return parseBool(value, &c.MonitorEnabled)
	case "monitor_addr":
		c.MonitorAddr = value
	default:
		return fmt.Errorf("unknown key %q", key)
	}
	return nil
}

// applyEnv overrides selected settings from the environment. These are the
// knobs typically flipped per deployment rather than per device.
func (c *Config) applyEnv() {
	if v := os.Getenv("MOTIONSENSE_MQTT_BROKER"); v != "" {
		c.MQTTBroker = v
	}
	if v := os.Getenv("MOTIONSENSE_MONITOR_ADDR"); v != "" {
		c.MonitorAddr = v
	}
	if v := os.Getenv("MOTIONSENSE_MOCK_IMU"); v != "" {
		c.MockIMU = v == "1" || strings.EqualFold(v, "true")
	}
}

func parseInt(s string, dst *int) error {
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid integer %q", s)
	}
	*dst = v
	return nil
}

func parseBool(s string, dst *bool) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("invalid boolean %q", s)
	}
	*dst = v
	return nil
}
