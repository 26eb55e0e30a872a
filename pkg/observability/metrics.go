package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "maintenance"

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPInFlight        prometheus.Gauge

	AuthzDenialsTotal   *prometheus.CounterVec
	TransitionsTotal    *prometheus.CounterVec
	StockAdjustedTotal  *prometheus.CounterVec
	LowStockScansTotal  *prometheus.CounterVec
	NotificationsQueued prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewMetrics registers every collector with reg. Collectors that are already
// registered are reused, so building Metrics twice against one registry is safe.
func NewMetrics(reg *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{gatherer: reg}
	var err error

	if m.HTTPRequestsTotal, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests partitioned by method, route and status code.",
	}, []string{"method", "route", "status"})); err != nil {
		return nil, err
	}

	if m.HTTPRequestDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latencies in seconds partitioned by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})); err != nil {
		return nil, err
	}

	if m.HTTPInFlight, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "in_flight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})); err != nil {
		return nil, err
	}

	if m.AuthzDenialsTotal, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "authz",
		Name:      "denials_total",
		Help:      "Refused authorization decisions partitioned by resource, action and reason.",
	}, []string{"resource", "action", "reason"})); err != nil {
		return nil, err
	}

	if m.TransitionsTotal, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "workitem",
		Name:      "transitions_total",
		Help:      "Work item status changes partitioned by kind and status pair.",
	}, []string{"kind", "from", "to"})); err != nil {
		return nil, err
	}

	if m.StockAdjustedTotal, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "material",
		Name:      "stock_adjustments_total",
		Help:      "Stock adjustments partitioned by direction and outcome.",
	}, []string{"direction", "outcome"})); err != nil {
		return nil, err
	}

	if m.LowStockScansTotal, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "worker",
		Name:      "low_stock_scans_total",
		Help:      "Scheduled low stock scans partitioned by outcome.",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}

	if m.NotificationsQueued, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "notification",
		Name:      "queue_length",
		Help:      "Messages waiting in the notification outbox at the last poll.",
	})); err != nil {
		return nil, err
	}

	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return c, fmt.Errorf("register collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(C)
		if !ok {
			return c, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return existing, nil
	}
	return c, nil
}

func (m *Metrics) AuthzDenied(resource, action, reason string) {
	m.AuthzDenialsTotal.WithLabelValues(resource, action, reason).Inc()
}

func (m *Metrics) Transition(kind, from, to string) {
	m.TransitionsTotal.WithLabelValues(kind, from, to).Inc()
}

func (m *Metrics) StockAdjusted(direction, outcome string) {
	m.StockAdjustedTotal.WithLabelValues(direction, outcome).Inc()
}

func (m *Metrics) LowStockScan(outcome string) {
	m.LowStockScansTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) QueueLength(n int64) {
	m.NotificationsQueued.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
