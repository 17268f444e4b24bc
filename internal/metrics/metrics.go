// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OTPIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blinddate_otp_issued_total",
		Help: "OTP issue attempts by outcome.",
	}, []string{"outcome"})

	OTPVerified = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blinddate_otp_verified_total",
		Help: "OTP verification attempts by outcome.",
	}, []string{"outcome"})

	SweepDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blinddate_otp_sweep_deleted_total",
		Help: "Expired OTP records removed by the sweep.",
	})

	SweepFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blinddate_otp_sweep_failed_total",
		Help: "Expired OTP records the sweep failed to remove.",
	})

	SMSSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blinddate_sms_sent_total",
		Help: "SMS dispatches by kind and outcome.",
	}, []string{"kind", "outcome"})

	PairingsGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blinddate_pairings_generated_total",
		Help: "Partnerings written by generation runs.",
	})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "blinddate_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Outcome labels shared by the counters.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Middleware records request latency labelled by the matched chi route.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}
