package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	updatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "incentives",
		Subsystem: "ledger",
		Name:      "updates_total",
		Help:      "Number of ledger transactions by role and result",
	}, []string{"role", "result"})

	updateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "incentives",
		Subsystem: "ledger",
		Name:      "update_duration_seconds",
		Help:      "Time spent inside ledger transactions",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
	}, []string{"role"})

	journalRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "incentives",
		Subsystem: "ledger",
		Name:      "journal_rows_total",
		Help:      "Number of journal rows appended",
	}, []string{"kind"})
)
