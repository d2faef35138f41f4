package main

import (
	"github.com/kbukum/execkit/config"
	"github.com/kbukum/execkit/observability"
	"github.com/kbukum/execkit/process"
	"github.com/kbukum/execkit/validation"
)

// cliConfig is the configuration read from execkit.yml, .env and EXECKIT_* variables.
type cliConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
	Process              process.Config  `yaml:"process" mapstructure:"process"`
	Telemetry            telemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`
}

// telemetryConfig enables OTLP export of spans and process metrics.
type telemetryConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint" validate:"required_if=Enabled true"`
	Insecure   bool    `yaml:"insecure" mapstructure:"insecure"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

func (c *cliConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "execkit"
	}
	c.ServiceConfig.ApplyDefaults()
	c.Process.ApplyDefaults()
	if c.Telemetry.Endpoint == "" {
		c.Telemetry.Endpoint = "localhost:4318"
	}
	if c.Telemetry.SampleRate == 0 {
		c.Telemetry.SampleRate = 1
	}
}

func (c *cliConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Process.Validate(); err != nil {
		return err
	}
	return validation.Validate(&c.Telemetry)
}

func (c *cliConfig) export(version string) observability.ExportConfig {
	return observability.ExportConfig{
		ServiceName:    c.Name,
		ServiceVersion: version,
		Environment:    c.Environment,
		Endpoint:       c.Telemetry.Endpoint,
		Insecure:       c.Telemetry.Insecure,
	}
}

func (c *cliConfig) tracerConfig(version string) observability.TracerConfig {
	return observability.TracerConfig{ExportConfig: c.export(version), SampleRate: c.Telemetry.SampleRate}
}

func (c *cliConfig) meterConfig(version string) observability.MeterConfig {
	mc := observability.DefaultMeterConfig(c.Name)
	mc.ExportConfig = c.export(version)
	return mc
}

func loadConfig(path string) (*cliConfig, error) {
	var opts []config.LoaderOption
	if path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}
	cfg := &cliConfig{}
	if err := config.Load("execkit", cfg, opts...); err != nil {
		return nil, err
	}
	return cfg, nil
}
