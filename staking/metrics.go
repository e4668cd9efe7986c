package staking

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kcnet/incentives/types"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "incentives",
		Subsystem: "staking",
		Name:      "operations_total",
		Help:      "Number of staking operations by operation and result",
	}, []string{"operation", "result"})

	claimsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "incentives",
		Subsystem: "staking",
		Name:      "claims_total",
		Help:      "Number of claimed delegator epochs",
	}, []string{"restaked"})
)

func observe(operation string, err error) {
	result := "ok"
	if err != nil {
		result = types.KindOf(err).String()
	}
	operationsTotal.WithLabelValues(operation, result).Inc()
}
