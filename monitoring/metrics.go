package monitoring

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	purchaseSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "purchase_sessions_active",
			Help: "Current number of live purchase sessions",
		},
	)

	purchaseSteps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchase_steps_total",
			Help: "Purchase hand-off steps by outcome",
		},
		[]string{"step", "status"},
	)

	boothDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booth_decisions_total",
			Help: "Booth request decisions",
		},
		[]string{"decision"},
	)

	providerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_provider_duration_seconds",
			Help:    "Latency of payment provider calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"provider", "operation"},
	)
)

type Monitor struct {
	redis *redis.Client
}

func NewMonitor(redisClient *redis.Client) *Monitor {
	monitor := &Monitor{redis: redisClient}

	go monitor.collectMetrics()

	return monitor
}

func (m *Monitor) collectMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		ctx := context.Background()

		keys, err := m.redis.Keys(ctx, "purchase:*").Result()
		if err != nil {
			continue
		}
		purchaseSessions.Set(float64(len(keys)))
	}
}

// TrackPurchaseStep records one hand-off step outcome
// (start/register/checkout/complete/cancel x success/failure).
func (m *Monitor) TrackPurchaseStep(step, status string) {
	purchaseSteps.WithLabelValues(step, status).Inc()
}

// TrackBoothDecision records an approve/reject decision.
func (m *Monitor) TrackBoothDecision(decision string) {
	boothDecisions.WithLabelValues(decision).Inc()
}

// TrackProviderCall records the duration of a payment provider round trip.
func (m *Monitor) TrackProviderCall(provider, operation string, duration time.Duration) {
	providerDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}
