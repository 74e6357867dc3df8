package common

import (
	"fmt"
	"time"

	vmetrics "github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
)

// --------------------------------------------------------------------------
// Client metrics
// --------------------------------------------------------------------------

// Operation latencies go into a go-metrics registry (timers expose
// percentiles without a scrape endpoint); counters go into
// VictoriaMetrics so an embedding application can export them via
// metrics.WritePrometheus.

var timerRegistry = gometrics.NewRegistry()

// OpTimer returns the latency timer for the named operation.
func OpTimer(op string) gometrics.Timer {
	return gometrics.GetOrRegisterTimer("gofdfs.op."+op, timerRegistry)
}

// ObserveOp records one completed operation: its latency, its outcome
// and the number of payload bytes moved (0 for metadata operations).
func ObserveOp(op string, start time.Time, bytes int64, err error) {
	OpTimer(op).UpdateSince(start)

	vmetrics.GetOrCreateCounter(fmt.Sprintf(`gofdfs_ops_total{op=%q}`, op)).Inc()
	if err != nil {
		vmetrics.GetOrCreateCounter(fmt.Sprintf(`gofdfs_op_errors_total{op=%q}`, op)).Inc()
	}
	if bytes > 0 {
		vmetrics.GetOrCreateCounter(fmt.Sprintf(`gofdfs_op_bytes_total{op=%q}`, op)).Add(int(bytes))
	}
}

// PoolGauge registers a gauge reporting a live pool statistic, e.g.
// idle or in-use connection counts for one endpoint.
func PoolGauge(name, endpoint string, f func() float64) {
	vmetrics.GetOrCreateGauge(fmt.Sprintf(`gofdfs_pool_%s{endpoint=%q}`, name, endpoint), f)
}

// TimerSnapshot exposes the latency registry, mainly for tests and for
// applications that want to dump percentiles.
func TimerSnapshot() gometrics.Registry {
	return timerRegistry
}
