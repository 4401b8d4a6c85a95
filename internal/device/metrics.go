package device

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	launchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rmsnorm_device_launches_total",
		Help: "Total number of kernel launches executed, by outcome",
	}, []string{"kernel", "outcome"})

	kernelDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rmsnorm_device_kernel_duration_seconds",
		Help:    "Wall time from dequeue to completion of a kernel launch",
		Buckets: []float64{0.00001, 0.000025, 0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.1},
	}, []string{"kernel"})

	queueWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rmsnorm_device_queue_wait_seconds",
		Help:    "Time a launch spent enqueued before execution started",
		Buckets: prometheus.DefBuckets,
	})

	inflightLaunches = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rmsnorm_device_inflight_launches",
		Help: "Launches enqueued on any stream and not yet completed",
	})

	scratchHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rmsnorm_device_scratch_pool_hits_total",
		Help: "Total number of scratch buffers served from the pool",
	})

	scratchMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rmsnorm_device_scratch_pool_misses_total",
		Help: "Total number of scratch buffer allocations",
	})
)
