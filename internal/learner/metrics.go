package learner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lstar",
		Subsystem: "learner",
		Name:      "rounds_total",
		Help:      "Hypotheses built across all learners",
	})

	counterexamplesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lstar",
		Subsystem: "learner",
		Name:      "counterexamples_total",
		Help:      "Counterexamples passed to Refine and accepted for handling",
	})

	abortsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lstar",
		Subsystem: "learner",
		Name:      "aborts_total",
		Help:      "Learning runs that ended in the aborted phase",
	})

	hypothesisStates = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "lstar",
		Subsystem: "learner",
		Name:      "hypothesis_states",
		Help:      "State count of each hypothesis built",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})
)
