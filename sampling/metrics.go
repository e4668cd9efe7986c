package sampling

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kcnet/incentives/types"
)

var (
	challengesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "incentives",
		Subsystem: "sampling",
		Name:      "challenges_total",
		Help:      "Challenge creation attempts by result",
	}, []string{"result"})

	proofsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "incentives",
		Subsystem: "sampling",
		Name:      "proofs_total",
		Help:      "Proof submissions by result",
	}, []string{"result"})

	scoreAddedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "incentives",
		Subsystem: "sampling",
		Name:      "score_added_total",
		Help:      "Score credited to nodes, in whole units",
	})
)

func resultLabel(err error) string {
	return types.KindOf(err).String()
}
