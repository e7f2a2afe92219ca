// Package types - component health definitions
package types

// HealthStatus represents the operational health of a component
type HealthStatus string

const (
	// HealthHealthy - component is reachable and running
	HealthHealthy HealthStatus = "healthy"

	// HealthUnhealthy - component did not answer within its probe timeout
	HealthUnhealthy HealthStatus = "unhealthy"

	// HealthStopped - scheduler is not emitting ticks
	HealthStopped HealthStatus = "stopped"
)

// ComponentHealth is the per-component breakdown returned by GET /health.
type ComponentHealth struct {
	Node      HealthStatus `json:"node"`
	Authority HealthStatus `json:"authority"`
	Heartbeat HealthStatus `json:"heartbeat"`
}

// DetermineStatus reports the overall status tag for a health snapshot.
// The node is only fully operational when the authority answers and the
// heartbeat is running.
func DetermineStatus(authorityUp bool, heartbeatRunning bool) (ComponentHealth, string) {
	h := ComponentHealth{
		Node:      HealthHealthy,
		Authority: HealthUnhealthy,
		Heartbeat: HealthStopped,
	}
	if authorityUp {
		h.Authority = HealthHealthy
	}
	if heartbeatRunning {
		h.Heartbeat = HealthHealthy
	}
	if authorityUp && heartbeatRunning {
		return h, StatusActive
	}
	return h, StatusIdle
}
