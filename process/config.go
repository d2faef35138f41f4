package process

import (
	"time"

	"github.com/kbukum/execkit/validation"
)

// Config configures an Executor or Adapter.
type Config struct {
	// Name identifies this executor (used by provider.Provider interface).
	Name string `yaml:"name,omitempty" mapstructure:"name"`
	// GracePeriod is the default grace period for SIGTERM→SIGKILL.
	GracePeriod time.Duration `yaml:"grace_period,omitempty" mapstructure:"grace_period" validate:"gte=0"`
	// Timeout bounds Run and RunLines. Zero means no timeout.
	Timeout time.Duration `yaml:"timeout,omitempty" mapstructure:"timeout" validate:"gte=0"`
	// Encoding is the IANA charset used to decode output.
	Encoding string `yaml:"encoding,omitempty" mapstructure:"encoding"`
	// StopTimeout bounds Close while live processes are reaped.
	StopTimeout time.Duration `yaml:"stop_timeout,omitempty" mapstructure:"stop_timeout" validate:"gte=0"`
	// MaxConcurrent caps how many Run, RunPipeline and RunLines calls are in
	// flight at once. Zero means unlimited.
	MaxConcurrent int `yaml:"max_concurrent,omitempty" mapstructure:"max_concurrent" validate:"gte=0"`
	// QueueWait is how long a call waits for a slot before LIMIT_EXCEEDED.
	QueueWait time.Duration `yaml:"queue_wait,omitempty" mapstructure:"queue_wait" validate:"gte=0"`
}

// DefaultStopTimeout is the default bound on Executor.Close.
const DefaultStopTimeout = 10 * time.Second

// ApplyDefaults fills zero fields.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "process"
	}
	if c.GracePeriod == 0 {
		c.GracePeriod = DefaultGracePeriod
	}
	if c.Encoding == "" {
		c.Encoding = DefaultEncoding
	}
	if c.StopTimeout == 0 {
		c.StopTimeout = DefaultStopTimeout
	}
}

// Validate checks field ranges and that Encoding names a known charset.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	_, err := NewDecoder(c.Encoding)
	return err
}
