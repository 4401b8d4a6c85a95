package rmsnorm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	launchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rmsnorm_launches_total",
		Help: "Total number of fused RMSNorm launches enqueued",
	}, []string{"dtype", "path"})

	rejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rmsnorm_rejected_total",
		Help: "Calls rejected before launch, by mismatched dimension",
	}, []string{"dim"})

	skippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rmsnorm_skipped_total",
		Help: "Calls with zero tokens or zero hidden units that issued no launch",
	})

	tokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rmsnorm_tokens_total",
		Help: "Total number of token rows enqueued for normalization",
	}, []string{"dtype"})
)
