// Package metrics exposes the service's prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Requests counts handled USSD requests by outcome: con, end, error.
	Requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ussd_requests_total",
		Help: "USSD requests handled, by outcome.",
	}, []string{"outcome"})

	// SessionTimeouts counts sessions evicted for idling past the timeout.
	SessionTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ussd_session_timeouts_total",
		Help: "Sessions terminated by idle timeout.",
	})

	// PINLockouts counts sessions terminated by PIN attempt exhaustion.
	PINLockouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ussd_pin_lockouts_total",
		Help: "Sessions terminated by PIN attempt exhaustion.",
	})

	// RateLimited counts requests rejected by the per-caller limiter.
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ussd_rate_limited_total",
		Help: "Requests rejected by the per-caller rate limiter.",
	})
)

// RegisterActiveSessions registers a gauge backed by the live session count.
func RegisterActiveSessions(count func() int) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "ussd_active_sessions",
		Help: "Sessions currently held in the store.",
	}, func() float64 {
		return float64(count())
	}))
}
