package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/23skdu/longbow-rmsnorm/internal/device"
)

// Config is the rmsnorm configuration file. Zero values mean "use the default".
type Config struct {
	Device DeviceConfig `yaml:"device"`
	Stream StreamConfig `yaml:"stream"`
	Log    LogConfig    `yaml:"log"`
}

type DeviceConfig struct {
	// Workers is the number of goroutines blocks are spread over.
	Workers            int `yaml:"workers"`
	MaxThreadsPerBlock int `yaml:"max_threads_per_block"`
}

type StreamConfig struct {
	QueueDepth int `yaml:"queue_depth"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Stream: StreamConfig{QueueDepth: device.DefaultQueueDepth},
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults. A missing file is not an error when
// optional is true.
func Load(path string, optional bool) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values that can never be valid. Device limits are checked
// again by NewDevice against the warp size.
func (c Config) Validate() error {
	if c.Device.Workers < 0 {
		return fmt.Errorf("device.workers must not be negative, got %d", c.Device.Workers)
	}
	if c.Device.MaxThreadsPerBlock < 0 {
		return fmt.Errorf("device.max_threads_per_block must not be negative, got %d", c.Device.MaxThreadsPerBlock)
	}
	if c.Stream.QueueDepth < 0 {
		return fmt.Errorf("stream.queue_depth must not be negative, got %d", c.Stream.QueueDepth)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// LogLevel parses Log.Level, defaulting to info.
func (c Config) LogLevel() (zerolog.Level, error) {
	if c.Log.Level == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

// NewDevice builds the device described by the config.
func (c Config) NewDevice() (*device.Device, error) {
	return device.New(c.Device.Workers, c.Device.MaxThreadsPerBlock)
}

// NewStream builds a device and a stream on it.
func (c Config) NewStream() (*device.Stream, error) {
	dev, err := c.NewDevice()
	if err != nil {
		return nil, err
	}
	return device.NewStream(dev, c.Stream.QueueDepth), nil
}
