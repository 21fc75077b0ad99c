package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukerupert/carcert/internal/inbox"
	"github.com/dukerupert/carcert/internal/model"
)

const namespace = "carcert"

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	InboxMutations  *prometheus.CounterVec
	PersistFailures prometheus.Counter
	InboxSize       prometheus.Gauge
	InboxUnread     prometheus.Gauge
	LocalScheduled  *prometheus.CounterVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers all collectors, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		InboxMutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "inbox_mutations_total",
				Help:      "Inbox mutations by action",
			},
			[]string{"action"},
		),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbox_persist_failures_total",
			Help:      "Inbox writes to the persistent store that failed",
		}),
		InboxSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inbox_notifications",
			Help:      "Notifications currently in the inbox",
		}),
		InboxUnread: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inbox_unread",
			Help:      "Unread notifications currently in the inbox",
		}),
		LocalScheduled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "local_notifications_scheduled_total",
				Help:      "Local notification schedule attempts by type and result",
			},
			[]string{"type", "result"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"method", "route"},
		),
	}

	m.registry.MustRegister(
		m.InboxMutations,
		m.PersistFailures,
		m.InboxSize,
		m.InboxUnread,
		m.LocalScheduled,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// InboxChanged is an inbox.ChangeFunc that keeps the inbox gauges current.
func (m *Metrics) InboxChanged(action string, notifications []model.Notification) {
	if action == inbox.ActionPersistFail {
		m.PersistFailures.Inc()
		return
	}
	if action != inbox.ActionHydrated {
		m.InboxMutations.WithLabelValues(action).Inc()
	}
	unread := 0
	for _, n := range notifications {
		if !n.Read {
			unread++
		}
	}
	m.InboxSize.Set(float64(len(notifications)))
	m.InboxUnread.Set(float64(unread))
}

// ObserveSchedule records the outcome of a local schedule request.
func (m *Metrics) ObserveSchedule(typ model.NotificationType, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.LocalScheduled.WithLabelValues(string(typ), result).Inc()
}

// ObserveRequest records one served HTTP request. route is the mux
// pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
