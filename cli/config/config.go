package config

import (
	"fmt"
	"time"

	"github.com/cubicap/Jaculus-tools-sub000/transport"
)

// DefaultFile is the config file looked up in the working directory when
// --config is not given.
const DefaultFile = "jac.yaml"

// Config represents a jac.yaml configuration file.
// All values are optional and act as defaults for jac flags.
// CLI flags always override config values.
type Config struct {
	Port     string         `yaml:"port"`
	BaudRate int            `yaml:"baudrate"`
	Socket   string         `yaml:"socket"`
	LogLevel string         `yaml:"log_level"`
	Trace    string         `yaml:"trace"`
	Timeouts TimeoutsConfig `yaml:"timeouts"`
}

// TimeoutsConfig holds protocol timing overrides.
type TimeoutsConfig struct {
	Control     Duration `yaml:"control"`
	Storage     Duration `yaml:"storage"`
	LockAttempt Duration `yaml:"lock_attempt"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "150ms").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "5s" or "1m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if parsed < 0 {
		return fmt.Errorf("invalid duration %q: must not be negative", s)
	}
	d.Duration = parsed
	return nil
}

// Validate reports settings that cannot be used together.
func (c *Config) Validate() error {
	if c.BaudRate < 0 {
		return fmt.Errorf("baudrate must be positive, got %d", c.BaudRate)
	}
	return nil
}

// TransportConfig returns the transport settings the file describes.
func (c *Config) TransportConfig() transport.Config {
	return transport.Config{
		Port:     c.Port,
		BaudRate: c.BaudRate,
		Socket:   c.Socket,
	}
}
