package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service instruments. A nil *Metrics is a no-op.
type Metrics struct {
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	invoicesCreated *prometheus.CounterVec
	importedLines   prometheus.Counter
	fbrCalls        *prometheus.CounterVec
	fbrDuration     *prometheus.HistogramVec
}

// New creates the instruments and registers them with registerer.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "einvoice_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "einvoice_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		invoicesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "einvoice_invoices_created_total",
			Help: "Invoices persisted, by creation source.",
		}, []string{"source"}),
		importedLines: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "einvoice_invoice_lines_imported_total",
			Help: "Invoice lines normalized by bulk imports.",
		}),
		fbrCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "einvoice_fbr_calls_total",
			Help: "Calls to the FBR gateway by operation and outcome.",
		}, []string{"operation", "outcome"}),
		fbrDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "einvoice_fbr_call_duration_seconds",
			Help:    "FBR gateway latency by operation.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),
	}

	registerer.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.invoicesCreated,
		m.importedLines,
		m.fbrCalls,
		m.fbrDuration,
	)
	return m
}

// GinMiddleware records request counts and latency per route.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// RecordInvoicesCreated counts invoices persisted from source ("single", "bulk" or "upload").
func (m *Metrics) RecordInvoicesCreated(source string, invoices, lines int) {
	if m == nil {
		return
	}
	m.invoicesCreated.WithLabelValues(source).Add(float64(invoices))
	m.importedLines.Add(float64(lines))
}

// ObserveFBRCall records one gateway call.
func (m *Metrics) ObserveFBRCall(operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.fbrCalls.WithLabelValues(operation, outcome).Inc()
	m.fbrDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// RegisterRoutes exposes /metrics.
func RegisterRoutes(r gin.IRouter) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
