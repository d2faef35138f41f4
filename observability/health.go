package observability

import "context"

// HealthStatus is the state of a component or of a whole service.
type HealthStatus string

const (
	HealthStatusUp       HealthStatus = "up"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusDown     HealthStatus = "down"
)

// severity orders statuses so a service reports its worst component.
func (s HealthStatus) severity() int {
	switch s {
	case HealthStatusUp:
		return 0
	case HealthStatusDegraded:
		return 1
	default:
		return 2
	}
}

// Health reports one component, such as an executor or a program a
// pipeline depends on.
type Health struct {
	Name    string            `json:"name"`
	Status  HealthStatus      `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// HealthChecker is implemented by components that can report their health.
type HealthChecker interface {
	CheckHealth(ctx context.Context) Health
}

// ServiceHealth aggregates component reports. Status is the worst
// component status, up when there are none.
type ServiceHealth struct {
	Service    string       `json:"service"`
	Status     HealthStatus `json:"status"`
	Version    string       `json:"version,omitempty"`
	Components []Health     `json:"components,omitempty"`
}

// NewServiceHealth returns an empty report with status up.
func NewServiceHealth(service, version string) *ServiceHealth {
	return &ServiceHealth{Service: service, Version: version, Status: HealthStatusUp}
}

// AddComponent appends h and lowers Status when h is worse.
func (sh *ServiceHealth) AddComponent(h Health) {
	sh.Components = append(sh.Components, h)
	if h.Status.severity() > sh.Status.severity() {
		sh.Status = h.Status
	}
}

// Check asks every checker in turn and adds its report.
func (sh *ServiceHealth) Check(ctx context.Context, checkers ...HealthChecker) *ServiceHealth {
	for _, c := range checkers {
		sh.AddComponent(c.CheckHealth(ctx))
	}
	return sh
}

// IsUp reports whether every component is up.
func (sh *ServiceHealth) IsUp() bool { return sh.Status == HealthStatusUp }
