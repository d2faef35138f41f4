package logger

import (
	"fmt"
	"slices"
	"strings"
)

var (
	levels  = []string{"trace", "debug", "info", "warn", "error", "fatal", "disabled"}
	formats = []string{FormatJSON, FormatConsole, FormatPretty}
)

// Config selects level, encoding and destination of log output.
type Config struct {
	Level       string `yaml:"level" mapstructure:"level"`
	Format      string `yaml:"format" mapstructure:"format"`
	Output      string `yaml:"output" mapstructure:"output"`
	NoColor     bool   `yaml:"no_color" mapstructure:"no_color"`
	Timestamp   bool   `yaml:"timestamp" mapstructure:"timestamp"`
	Caller      bool   `yaml:"caller" mapstructure:"caller"`
	ServiceName string `yaml:"service_name" mapstructure:"service_name"`
}

// ApplyDefaults fills in info level, console format on stderr, with timestamps.
func (c *Config) ApplyDefaults() {
	c.Level = strings.ToLower(cmpOr(c.Level, "info"))
	c.Format = strings.ToLower(cmpOr(c.Format, FormatConsole))
	c.Output = cmpOr(c.Output, "stderr")
	c.Timestamp = true
}

// Validate rejects unknown levels and formats.
func (c *Config) Validate() error {
	if !slices.Contains(levels, c.Level) {
		return fmt.Errorf("level %q is not one of %s", c.Level, strings.Join(levels, ", "))
	}
	if !slices.Contains(formats, c.Format) {
		return fmt.Errorf("format %q is not one of %s", c.Format, strings.Join(formats, ", "))
	}
	return nil
}

func cmpOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
