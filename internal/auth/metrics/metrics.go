// Package metrics holds the Prometheus collectors for the auth service.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "farmportal"

// Outcome labels.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeDisabled           = "disabled"
	OutcomeInvalidToken       = "invalid_token"
	OutcomeRevoked            = "revoked"
	OutcomeTypeMismatch       = "type_mismatch"
	OutcomeForbidden          = "forbidden"
	OutcomeMFAMissing         = "mfa_missing"
	OutcomeError              = "error"
)

type Metrics struct {
	LoginsTotal         *prometheus.CounterVec
	RefreshesTotal      *prometheus.CounterVec
	AuthorizeTotal      *prometheus.CounterVec
	MFAVerifyTotal      *prometheus.CounterVec
	RevocationsPurged   prometheus.Counter
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers every collector with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LoginsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "logins_total",
				Help:      "Password logins by outcome",
			},
			[]string{"outcome"},
		),
		RefreshesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "refreshes_total",
				Help:      "Refresh token exchanges by outcome",
			},
			[]string{"outcome"},
		),
		AuthorizeTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "authorize_total",
				Help:      "Guarded request decisions by result",
			},
			[]string{"result"},
		),
		MFAVerifyTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "mfa_verifications_total",
				Help:      "TOTP step-up attempts by outcome",
			},
			[]string{"outcome"},
		),
		RevocationsPurged: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "revocations_purged_total",
				Help:      "Expired revocation entries removed by housekeeping",
			},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency by route and status code",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "code"},
		),
	}
}

func (m *Metrics) Login(outcome string) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Refresh(outcome string) {
	if m == nil {
		return
	}
	m.RefreshesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Authorize(result string) {
	if m == nil {
		return
	}
	m.AuthorizeTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) MFAVerify(outcome string) {
	if m == nil {
		return
	}
	m.MFAVerifyTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Purged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.RevocationsPurged.Add(float64(n))
}

// Instrument times every request under the fixed route label. The label is
// the registered pattern, never the raw path, to keep cardinality bounded.
func (m *Metrics) Instrument(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(sw, r)
			m.HTTPRequestDuration.
				WithLabelValues(route, strconv.Itoa(sw.code)).
				Observe(time.Since(start).Seconds())
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	code  int
	wrote bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wrote {
		w.code = code
		w.wrote = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
