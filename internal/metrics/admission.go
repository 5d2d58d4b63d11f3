package metrics

import (
	"github.com/iplens/iplens/internal/observability"
)

const (
	AdmissionDecisionsTotal = "admission_decisions_total"
	AdmissionEvictionsTotal = "admission_sweep_evictions_total"
)

// RecordAdmission counts one rate-limit decision for an endpoint key.
func RecordAdmission(endpoint string, allowed bool) {
	decision := "allowed"
	if !allowed {
		decision = "denied"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			AdmissionDecisionsTotal,
			1,
			map[string]string{
				"endpoint": endpoint,
				"decision": decision,
			},
		)
	}
}

// RecordSweepEvictions counts window records evicted by a sweep.
func RecordSweepEvictions(endpoint string, n int) {
	if n <= 0 || observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(
		AdmissionEvictionsTotal,
		float64(n),
		map[string]string{"endpoint": endpoint},
	)
}
