package config

import (
	"fmt"

	"github.com/kbukum/execkit/logger"
	"github.com/kbukum/execkit/validation"
)

// Config is what Load finalizes after decoding: defaults first, then validation.
type Config interface {
	ApplyDefaults()
	Validate() error
}

// ServiceConfig holds the settings shared by every execkit binary. Embed it
// with mapstructure's squash so its keys sit at the top level of the file:
//
//	type cliConfig struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Process process.Config `yaml:"process" mapstructure:"process"`
//	}
type ServiceConfig struct {
	Name        string        `yaml:"name" mapstructure:"name" validate:"required"`
	Environment string        `yaml:"environment" mapstructure:"environment" validate:"oneof=development staging production"`
	Version     string        `yaml:"version" mapstructure:"version"`
	Debug       bool          `yaml:"debug" mapstructure:"debug"`
	Logging     logger.Config `yaml:"logging" mapstructure:"logging" validate:"-"`
}

// ApplyDefaults sets the development environment and lets Debug lower the
// log level. Embedding types call it before their own defaults.
func (c *ServiceConfig) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Debug && c.Logging.Level == "" {
		c.Logging.Level = "debug"
	}
	if c.Logging.ServiceName == "" {
		c.Logging.ServiceName = c.Name
	}
	c.Logging.ApplyDefaults()
}

// Validate checks the tagged fields, then the logging block.
func (c *ServiceConfig) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}
