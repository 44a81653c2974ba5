// internal/pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SeckillAdmissions 按结果统计秒杀准入: ok | sold_out | duplicate | not_started | ended | error
	SeckillAdmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flashdeal_seckill_admissions_total",
		Help: "Seckill admission decisions by result",
	}, []string{"result"})

	SeckillAdmissionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flashdeal_seckill_admission_duration_seconds",
		Help:    "Latency of the atomic admission round trip",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05, 0.1},
	})

	// OrderHandlerResults 按结果统计订单落库: persisted | duplicate | stock_exhausted | lock_busy | corrupt | failed
	OrderHandlerResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flashdeal_order_handler_results_total",
		Help: "Outcomes of the async order handler",
	}, []string{"result"})

	PendingRecoveries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flashdeal_order_pending_recoveries_total",
		Help: "Times the order consumer entered pending-list recovery",
	})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flashdeal_cache_lookups_total",
		Help: "Cache client lookups by strategy and result",
	}, []string{"strategy", "result"})

	CacheRebuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flashdeal_cache_rebuilds_total",
		Help: "Background logical-expiry rebuilds by result",
	}, []string{"result"})
)
