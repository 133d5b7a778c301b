package oracle

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/lstar/internal/word"
)

var (
	membershipQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lstar",
		Subsystem: "oracle",
		Name:      "membership_queries_total",
		Help:      "Membership queries forwarded through a counting oracle",
	}, []string{"oracle"})

	membershipSymbolsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lstar",
		Subsystem: "oracle",
		Name:      "membership_symbols_total",
		Help:      "Total length of membership query words",
	}, []string{"oracle"})

	membershipBatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "lstar",
		Subsystem: "oracle",
		Name:      "membership_batch_duration_seconds",
		Help:      "Latency of one membership query batch",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
	}, []string{"oracle"})

	membershipErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lstar",
		Subsystem: "oracle",
		Name:      "membership_errors_total",
		Help:      "Membership query batches that failed",
	}, []string{"oracle"})
)

// Counter is a MembershipOracle decorator that counts traffic.
//
// Counts are kept locally (for tests and run statistics) and exported as
// Prometheus metrics labelled with the counter's name.
type Counter[I comparable, O any] struct {
	name     string
	delegate MembershipOracle[I, O]

	queries atomic.Int64
	symbols atomic.Int64
	batches atomic.Int64
}

// NewCounter wraps delegate. name labels the exported metrics.
func NewCounter[I comparable, O any](name string, delegate MembershipOracle[I, O]) *Counter[I, O] {
	return &Counter[I, O]{name: name, delegate: delegate}
}

// Answer forwards the batch and records it.
func (c *Counter[I, O]) Answer(ctx context.Context, queries []word.Word[I]) ([]O, error) {
	start := time.Now()
	out, err := c.delegate.Answer(ctx, queries)
	membershipBatchDuration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
	if err != nil {
		membershipErrorsTotal.WithLabelValues(c.name).Inc()
		return nil, err
	}

	var syms int
	for _, q := range queries {
		syms += q.Len()
	}
	c.queries.Add(int64(len(queries)))
	c.symbols.Add(int64(syms))
	c.batches.Add(1)
	membershipQueriesTotal.WithLabelValues(c.name).Add(float64(len(queries)))
	membershipSymbolsTotal.WithLabelValues(c.name).Add(float64(syms))
	return out, nil
}

// Queries returns the number of answered queries.
func (c *Counter[I, O]) Queries() int64 { return c.queries.Load() }

// Symbols returns the summed length of answered queries.
func (c *Counter[I, O]) Symbols() int64 { return c.symbols.Load() }

// Batches returns the number of answered batches.
func (c *Counter[I, O]) Batches() int64 { return c.batches.Load() }
