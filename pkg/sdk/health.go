package doseaudit

import (
	"context"

	healthuc "github.com/opencare-labs/doseaudit/internal/usecase/health"
)

// HealthStatus is the aggregate component status.
type HealthStatus string

const (
	// Healthy means the store and both model providers respond.
	Healthy HealthStatus = "ok"
	// Degraded means a provider is down; stored verdicts and corpus
	// reads still work.
	Degraded HealthStatus = "degraded"
	// Unhealthy means the store is down.
	Unhealthy HealthStatus = "error"
)

// Health reports component status.
func (c *Client) Health(ctx context.Context) (HealthStatus, map[string]string) {
	report := c.health.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for name, result := range report.Checks {
		checks[name] = string(result)
	}
	return statusFromDomain(report.Status), checks
}

func statusFromDomain(s healthuc.Status) HealthStatus {
	switch s {
	case healthuc.Healthy:
		return Healthy
	case healthuc.Degraded:
		return Degraded
	default:
		return Unhealthy
	}
}
