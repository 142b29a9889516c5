// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. SEISMO_MQTT_BROKER.
const EnvPrefix = "SEISMO"

// Config holds all application configuration values.
type Config struct {
	// Sampling
	SampleInterval time.Duration
	Sensor         string // "mpu9250" or "sim"

	// IMU hardware
	IMUSPIDevice string
	IMUCSPin     string
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange byte

	// Simulator
	SimSeed       uint64
	SimNoise      float64
	SimQuakeEvery int
	SimFailEvery  int

	// Calibration
	CalibrationSamples int
	CalibrationDelay   time.Duration
	VerifySamples      int
	CalibrateOnStart   bool
	CalibrationFile    string

	// Event log
	LogDebounceInterval time.Duration

	// Reset button
	ButtonPin      string
	ButtonDebounce time.Duration

	// Display
	DisplayEnabled        bool
	DisplayI2CBus         string
	DisplayUpdateInterval time.Duration

	// Web server (0 disables)
	WebServerPort int

	// MQTT (empty broker disables)
	MQTTBroker    string
	MQTTClientID  string
	TopicSnapshot string
	TopicEvents   string
	TopicCommand  string
	TopicStatus   string

	// Console: "stdin", "off" or a serial device
	Console     string
	ConsoleBaud int

	// Time source
	TimeSource    string // "system" or "gps"
	GPSSerialPort string
	GPSBaudRate   int

	// Telegram alerts
	TelegramBotToken    string
	TelegramChatID      int64
	TelegramMinMercalli int

	// Logging
	LogLevel  string
	LogFormat string
}

// TelegramEnabled reports whether alerting is configured.
func (c *Config) TelegramEnabled() bool { return c.TelegramBotToken != "" }

// MQTTEnabled reports whether the bridge should run.
func (c *Config) MQTTEnabled() bool { return c.MQTTBroker != "" }

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// defaults are also the set of known keys.
var defaults = map[string]any{
	"sample_interval_ms":         100,
	"sensor":                     "sim",
	"imu_spi_device":             "",
	"imu_cs_pin":                 "",
	"imu_accel_range":            1,
	"sim_seed":                   1,
	"sim_noise":                  0.02,
	"sim_quake_every":            0,
	"sim_fail_every":             0,
	"calibration_samples":        100,
	"calibration_delay_ms":       50,
	"verify_samples":             10,
	"calibrate_on_start":         true,
	"calibration_file":           "",
	"log_debounce_interval_ms":   10000,
	"button_pin":                 "",
	"button_debounce_ms":         50,
	"display_enabled":            false,
	"display_i2c_bus":            "",
	"display_update_interval_ms": 100,
	"web_server_port":            8080,
	"mqtt_broker":                "",
	"mqtt_client_id":             "seismometer",
	"topic_snapshot":             "seismo/snapshot",
	"topic_events":               "seismo/events",
	"topic_command":              "seismo/command",
	"topic_status":               "seismo/status",
	"console":                    "stdin",
	"console_baud":               115200,
	"time_source":                "system",
	"gps_serial_port":            "/dev/serial0",
	"gps_baud_rate":              9600,
	"telegram_bot_token":         "",
	"telegram_chat_id":           0,
	"telegram_min_mercalli":      5,
	"log_level":                  "info",
	"log_format":                 "console",
}

// Load reads a KEY=VALUE configuration file (empty path: defaults only).
// Every key may be overridden by SEISMO_<KEY> in the environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := checkKeys(v.AllKeys()); err != nil {
			return nil, fmt.Errorf("config %s: %w", configPath, err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func checkKeys(keys []string) error {
	var unknown []string
	for _, k := range keys {
		if _, ok := defaults[k]; !ok {
			unknown = append(unknown, strings.ToUpper(k))
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown config key: %s", strings.Join(unknown, ", "))
	}
	return nil
}

func ms(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetInt64(key)) * time.Millisecond
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		SampleInterval: ms(v, "sample_interval_ms"),
		Sensor:         strings.ToLower(v.GetString("sensor")),

		IMUSPIDevice:  v.GetString("imu_spi_device"),
		IMUCSPin:      v.GetString("imu_cs_pin"),
		IMUAccelRange: byte(v.GetUint("imu_accel_range")),

		SimSeed:       v.GetUint64("sim_seed"),
		SimNoise:      v.GetFloat64("sim_noise"),
		SimQuakeEvery: v.GetInt("sim_quake_every"),
		SimFailEvery:  v.GetInt("sim_fail_every"),

		CalibrationSamples: v.GetInt("calibration_samples"),
		CalibrationDelay:   ms(v, "calibration_delay_ms"),
		VerifySamples:      v.GetInt("verify_samples"),
		CalibrateOnStart:   v.GetBool("calibrate_on_start"),
		CalibrationFile:    v.GetString("calibration_file"),

		LogDebounceInterval: ms(v, "log_debounce_interval_ms"),

		ButtonPin:      v.GetString("button_pin"),
		ButtonDebounce: ms(v, "button_debounce_ms"),

		DisplayEnabled:        v.GetBool("display_enabled"),
		DisplayI2CBus:         v.GetString("display_i2c_bus"),
		DisplayUpdateInterval: ms(v, "display_update_interval_ms"),

		WebServerPort: v.GetInt("web_server_port"),

		MQTTBroker:    v.GetString("mqtt_broker"),
		MQTTClientID:  v.GetString("mqtt_client_id"),
		TopicSnapshot: v.GetString("topic_snapshot"),
		TopicEvents:   v.GetString("topic_events"),
		TopicCommand:  v.GetString("topic_command"),
		TopicStatus:   v.GetString("topic_status"),

		Console:     v.GetString("console"),
		ConsoleBaud: v.GetInt("console_baud"),

		TimeSource:    strings.ToLower(v.GetString("time_source")),
		GPSSerialPort: v.GetString("gps_serial_port"),
		GPSBaudRate:   v.GetInt("gps_baud_rate"),

		TelegramBotToken:    v.GetString("telegram_bot_token"),
		TelegramChatID:      v.GetInt64("telegram_chat_id"),
		TelegramMinMercalli: v.GetInt("telegram_min_mercalli"),

		LogLevel:  strings.ToLower(v.GetString("log_level")),
		LogFormat: strings.ToLower(v.GetString("log_format")),
	}
}

// validate checks ranges and required combinations.
func (c *Config) validate() error {
	if c.SampleInterval <= 0 {
		return fmt.Errorf("SAMPLE_INTERVAL_MS must be positive")
	}
	switch c.Sensor {
	case "sim":
	case "mpu9250":
		if c.IMUSPIDevice == "" {
			return fmt.Errorf("IMU_SPI_DEVICE is required for SENSOR=mpu9250")
		}
		if c.IMUCSPin == "" {
			return fmt.Errorf("IMU_CS_PIN is required for SENSOR=mpu9250")
		}
	default:
		return fmt.Errorf("SENSOR must be mpu9250 or sim, got %q", c.Sensor)
	}
	if c.IMUAccelRange > 3 {
		return fmt.Errorf("IMU_ACCEL_RANGE must be 0..3, got %d", c.IMUAccelRange)
	}
	if c.CalibrationSamples < 1 {
		return fmt.Errorf("CALIBRATION_SAMPLES must be at least 1")
	}
	if c.VerifySamples < 1 {
		return fmt.Errorf("VERIFY_SAMPLES must be at least 1")
	}
	if c.CalibrationDelay < 0 {
		return fmt.Errorf("CALIBRATION_DELAY_MS must not be negative")
	}
	if c.LogDebounceInterval <= 0 {
		return fmt.Errorf("LOG_DEBOUNCE_INTERVAL_MS must be positive")
	}
	if c.DisplayEnabled && c.DisplayUpdateInterval <= 0 {
		return fmt.Errorf("DISPLAY_UPDATE_INTERVAL_MS must be positive")
	}
	if c.WebServerPort < 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT out of range: %d", c.WebServerPort)
	}
	switch c.TimeSource {
	case "system":
	case "gps":
		if c.GPSSerialPort == "" {
			return fmt.Errorf("GPS_SERIAL_PORT is required for TIME_SOURCE=gps")
		}
		if c.GPSBaudRate <= 0 {
			return fmt.Errorf("GPS_BAUD_RATE is required for TIME_SOURCE=gps")
		}
	default:
		return fmt.Errorf("TIME_SOURCE must be system or gps, got %q", c.TimeSource)
	}
	if (c.TelegramBotToken == "") != (c.TelegramChatID == 0) {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together")
	}
	if c.TelegramMinMercalli < 1 || c.TelegramMinMercalli > 12 {
		return fmt.Errorf("TELEGRAM_MIN_MERCALLI must be 1..12, got %d", c.TelegramMinMercalli)
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.LogLevel) {
		return fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel)
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be console or json, got %q", c.LogFormat)
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Only the first call has any effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance, nil before InitGlobal.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
