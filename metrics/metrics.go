package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — счётчики живого движка. Регистрируются один раз при старте.
type Metrics struct {
	VotesAccepted        prometheus.Counter
	VotesRejected        *prometheus.CounterVec
	BroadcastTransitions *prometheus.CounterVec
}

func New(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		VotesAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "hacklive_votes_accepted_total",
			Help: "Total number of votes persisted to the ledger.",
		}),
		VotesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hacklive_votes_rejected_total",
			Help: "Total number of rejected vote submissions by reason.",
		}, []string{"reason"}),
		BroadcastTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hacklive_broadcast_transitions_total",
			Help: "Total number of broadcast commands by action and outcome.",
		}, []string{"action", "outcome"}),
	}
}
