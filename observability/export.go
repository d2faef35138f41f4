package observability

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// ExportConfig is the part of TracerConfig and MeterConfig that identifies
// the service and the OTLP/HTTP collector.
type ExportConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	Environment    string `mapstructure:"environment"`
	// Endpoint is host:port of the collector, e.g. "localhost:4318".
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

func defaultExport(serviceName string) ExportConfig {
	return ExportConfig{
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
	}
}

// resource describes the service on top of the SDK defaults. The service
// attributes carry no schema URL so they merge with any SDK version.
func (c ExportConfig) resource() (*resource.Resource, error) {
	return resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(c.ServiceName),
		semconv.ServiceVersion(c.ServiceVersion),
		attribute.String("environment", c.Environment),
	))
}
