// Package metrics holds the Prometheus collectors of the auth service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aussiebroadwan/walletauth/pkg/httpx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "walletauth"

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	reg *prometheus.Registry

	TokensIssued     *prometheus.CounterVec
	TokenFailures    *prometheus.CounterVec
	UsersProvisioned *prometheus.CounterVec
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	SecretCacheRatio prometheus.Gauge
	SecretCacheHits  prometheus.Gauge
	KeyReloadsTotal  *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		TokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Token pairs issued",
		}, []string{"grant_type"}),
		TokenFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Rejected credentials",
		}, []string{"route", "code"}),
		UsersProvisioned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "users_provisioned_total",
			Help:      "Users created on first b2b login",
		}, []string{"outcome"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		SecretCacheRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "secret_cache_hit_ratio",
			Help:      "Client secret memo hit ratio",
		}),
		SecretCacheHits: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "secret_cache_hits",
			Help:      "Client secret memo hits since start",
		}),
		KeyReloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "key_reloads_total",
			Help:      "Key material reloads",
		}, []string{"result"}),
	}

	m.reg.MustRegister(
		m.TokensIssued,
		m.TokenFailures,
		m.UsersProvisioned,
		m.RequestsTotal,
		m.RequestDuration,
		m.SecretCacheRatio,
		m.SecretCacheHits,
		m.KeyReloadsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) TokenIssued(grantType string) {
	m.TokensIssued.WithLabelValues(grantType).Inc()
}

// UserProvisioned records a created user, or a lost insert race when raced.
func (m *Metrics) UserProvisioned(raced bool) {
	outcome := "created"
	if raced {
		outcome = "raced"
	}
	m.UsersProvisioned.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AuthFailure(route, code string) {
	m.TokenFailures.WithLabelValues(route, code).Inc()
}

func (m *Metrics) SecretCache(hits uint64, ratio float64) {
	m.SecretCacheHits.Set(float64(hits))
	m.SecretCacheRatio.Set(ratio)
}

func (m *Metrics) KeyReload(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.KeyReloadsTotal.WithLabelValues(result).Inc()
}

// Middleware records count and latency for route.
func (m *Metrics) Middleware(route string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			m.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
			m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.written {
		w.status = status
		w.written = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.written = true
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
