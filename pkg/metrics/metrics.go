package metrics

import (
	"net/http"
	"strconv"

	"github.com/fustanlabs/fustan-sync/internal/common/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the agent-side instrumentation. All recording methods are
// nil-receiver safe so components can run without metrics wired.
type Metrics struct {
	registry   *prometheus.Registry
	namespace  string
	httpReqCnt *prometheus.CounterVec
	wsReconn   prometheus.Counter
	wsEvents   *prometheus.CounterVec
	inval      *prometheus.CounterVec
	toasts     prometheus.Counter
}

// New builds a registry with standard process and Go collectors plus the
// synchronizer's own counters.
func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"})
	wsReconn := prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "realtime_reconnects_total"})
	wsEvents := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "realtime_events_total"}, []string{"event"})
	inval := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "cache_invalidations_total"}, []string{"key"})
	toasts := prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "toasts_total"})
	r.MustRegister(httpReqCnt, wsReconn, wsEvents, inval, toasts)

	return &Metrics{
		registry:   r,
		namespace:  ns,
		httpReqCnt: httpReqCnt,
		wsReconn:   wsReconn,
		wsEvents:   wsEvents,
		inval:      inval,
		toasts:     toasts,
	}
}

// HTTPRequest records one relayed REST request.
func (m *Metrics) HTTPRequest(method, route string, status int) {
	if m == nil {
		return
	}
	m.httpReqCnt.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// WSReconnect records one realtime reconnect attempt.
func (m *Metrics) WSReconnect() {
	if m == nil {
		return
	}
	m.wsReconn.Inc()
}

// WSEvent records one received realtime event.
func (m *Metrics) WSEvent(event string) {
	if m == nil {
		return
	}
	m.wsEvents.WithLabelValues(event).Inc()
}

// CacheInvalidation records one cache-key invalidation.
func (m *Metrics) CacheInvalidation(key string) {
	if m == nil {
		return
	}
	m.inval.WithLabelValues(key).Inc()
}

// Toast records one surfaced user-facing alert.
func (m *Metrics) Toast() {
	if m == nil {
		return
	}
	m.toasts.Inc()
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
