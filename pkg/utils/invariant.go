// Invariants are conditions that must hold unless there is a bug in our own code. Think of what you'd
// `panic()` on, but without crashing a long-running sync process just because of one violation: raising an
// invariant records an error log and bumps a monitoring counter that can trigger an alert. It is still up to
// the caller to handle the erroneous case, e.g. with an early return.
//
// Do not raise invariants for conditions that depend on external factors; a failed store read is a plain
// error, not an invariant violation. A removal list built by our own partitioning code that carries an empty
// record key is one.

package utils

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	promclient "github.com/prometheus/client_model/go"
)

var invariantsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "invariants_total",
	Help: "The total number of invariant violations",
}, []string{
	"module", // The module in which this invariant occurred.
	"type",   // The type of the invariant that occurred.
})

func RaiseInvariant(module, invariantType, msg string, args ...any) {
	invariantsMetric.WithLabelValues(module, invariantType).Inc()
	slog.With("invariant", invariantType, "module", module).Error(msg, args...)
	if IsTestMode {
		panic("invariant violated: " + invariantType)
	}
}

// InvariantCount returns the number of violations recorded so far for the given module and invariant type.
func InvariantCount(module, invariantType string) int {
	var metric = &promclient.Metric{}
	if err := invariantsMetric.WithLabelValues(module, invariantType).Write(metric); err != nil {
		slog.Error(err.Error())
		return 0
	}
	return int(metric.Counter.GetValue())
}
