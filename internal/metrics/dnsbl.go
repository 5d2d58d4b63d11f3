package metrics

import (
	"time"

	"github.com/iplens/iplens/internal/observability"
)

const (
	ProbesTotal        = "dnsbl_probes_total"
	ProbeDuration      = "dnsbl_probe_duration_ms"
	ChecksTotal        = "dnsbl_checks_total"
	ListedResultsTotal = "dnsbl_listed_results_total"
)

// RecordProbe records a single list probe and its outcome
// (listed, clean, error).
func RecordProbe(list string, outcome string, d time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}

	_ = observability.TelemetrySystem.Counter(
		ProbesTotal,
		1,
		map[string]string{
			"list":    list,
			"outcome": outcome,
		},
	)
	_ = observability.TelemetrySystem.Histogram(
		ProbeDuration,
		d,
		map[string]string{"list": list},
	)
}

// RecordCheck records an aggregated check across all lists.
func RecordCheck(listed, errored int) {
	if observability.TelemetrySystem == nil {
		return
	}

	status := "clean"
	switch {
	case listed > 0:
		status = "listed"
	case errored > 0:
		status = "partial"
	}

	_ = observability.TelemetrySystem.Counter(
		ChecksTotal,
		1,
		map[string]string{"status": status},
	)
	if listed > 0 {
		_ = observability.TelemetrySystem.Counter(ListedResultsTotal, float64(listed), nil)
	}
}
