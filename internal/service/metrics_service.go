package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/contravention-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic, the cache and the points ledger.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	ledgerTxn       *prometheus.HistogramVec
	pointEvents     *prometheus.CounterVec
	escalations     *prometheus.CounterVec
	recalculations  *prometheus.CounterVec
	fiscalResets    prometheus.Counter
	notifications   *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	ledgerTxn := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "points_ledger_transaction_seconds",
		Help:    "Duration of locked ledger transactions",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	pointEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "points_events_total",
		Help: "Point events appended to employee ledgers",
	}, []string{"kind"})

	escalations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "escalations_created_total",
		Help: "Escalation records opened",
	}, []string{"tier"})

	recalculations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "escalation_recalculation_employees_total",
		Help: "Employees processed by recalculate-all",
	}, []string{"outcome"})

	fiscalResets := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fiscal_reset_employees_total",
		Help: "Employee ledgers zeroed at a fiscal year boundary",
	})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "escalation_notifications_total",
		Help: "Escalation events handed to the notification channel",
	}, []string{"type", "outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHits, cacheMisses,
		ledgerTxn, pointEvents, escalations, recalculations, fiscalResets, notifications, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		ledgerTxn:       ledgerTxn,
		pointEvents:     pointEvents,
		escalations:     escalations,
		recalculations:  recalculations,
		fiscalResets:    fiscalResets,
		notifications:   notifications,
	}
}

// Registry exposes the underlying registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveLedgerTransaction records how long a locked ledger transaction took.
func (m *MetricsService) ObserveLedgerTransaction(err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "committed"
	if err != nil {
		outcome = "failed"
	}
	m.ledgerTxn.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordPointEvent counts an appended ledger entry.
func (m *MetricsService) RecordPointEvent(kind models.PointEventKind) {
	if m == nil {
		return
	}
	m.pointEvents.WithLabelValues(string(kind)).Inc()
}

// RecordEscalationCreated counts an opened escalation record.
func (m *MetricsService) RecordEscalationCreated(tier string) {
	if m == nil {
		return
	}
	m.escalations.WithLabelValues(tier).Inc()
}

// RecordRecalculation counts the per-employee outcome of a recalculate-all run.
func (m *MetricsService) RecordRecalculation(result *models.RecalculationResult) {
	if m == nil || result == nil {
		return
	}
	m.recalculations.WithLabelValues("updated").Add(float64(result.Updated))
	m.recalculations.WithLabelValues("unchanged").Add(float64(result.Employees - result.Updated - len(result.Errors)))
	m.recalculations.WithLabelValues("failed").Add(float64(len(result.Errors)))
}

// RecordFiscalReset counts ledgers zeroed by a reset invocation.
func (m *MetricsService) RecordFiscalReset(employees int) {
	if m == nil {
		return
	}
	m.fiscalResets.Add(float64(employees))
}

// RecordNotification counts a delivered or failed escalation event.
func (m *MetricsService) RecordNotification(eventType models.EscalationEventType, err error) {
	if m == nil {
		return
	}
	outcome := "published"
	if err != nil {
		outcome = "failed"
	}
	m.notifications.WithLabelValues(string(eventType), outcome).Inc()
}
