package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "registry_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "registry_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics
	patientsRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "registry_patients_registered_total",
			Help: "Total number of patients registered",
		},
	)

	labelsRendered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_labels_rendered_total",
			Help: "Total number of label, barcode and QR images rendered",
		},
		[]string{"kind"},
	)

	labelRenderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "registry_label_render_duration_seconds",
			Help:    "Image rendering duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	renderFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_render_fallbacks_total",
			Help: "Total number of font or barcode substitutions while rendering",
		},
		[]string{"kind"},
	)

	// Database metrics
	dbOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "registry_db_operation_duration_seconds",
			Help:    "Duration of scoped database operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"outcome"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency labelled by the matched
// route template rather than the raw path.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				status = http.StatusInternalServerError
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			httpRequestsTotal.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// RecordPatientRegistered records a successful registration
func RecordPatientRegistered() {
	patientsRegistered.Inc()
}

// RecordLabelRendered records one rendered image of kind (label, barcode, qr).
func RecordLabelRendered(kind string, duration time.Duration) {
	labelsRendered.WithLabelValues(kind).Inc()
	labelRenderDuration.Observe(duration.Seconds())
}

// RecordFallback records a font or barcode substitution.
func RecordFallback(kind string) {
	renderFallbacks.WithLabelValues(kind).Inc()
}

// RecordDBOperation records one scoped database operation.
func RecordDBOperation(duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	dbOperationDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}
