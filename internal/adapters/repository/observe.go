package repository

import (
	"time"

	"github.com/okian/elove/pkg/metrics"
)

// observe records the latency of a store operation started at start.
func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}
