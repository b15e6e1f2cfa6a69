package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the portal's Prometheus metrics.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Pipeline metrics
	Resolutions       prometheus.Counter
	DefaultSearches   prometheus.Counter
	AccessDenied      prometheus.Counter
	SessionRepairs    prometheus.Counter
	TemplateSyncs     prometheus.Counter
	GuestMerges       prometheus.Counter
	PipelineDuration  prometheus.Histogram
	VisibilityDenials *prometheus.CounterVec

	// Provisioning metrics
	ProvisionOperations *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers all portal metrics on the registry. A nil
// registry gets a fresh one.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		Resolutions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_layout_resolutions_total",
			Help: "Total number of completed layout resolutions",
		}),
		DefaultSearches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_default_layout_searches_total",
			Help: "Resolutions that fell back to the default layout search",
		}),
		AccessDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_access_denied_total",
			Help: "Explicitly addressed targets denied to the principal",
		}),
		SessionRepairs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_session_repairs_total",
			Help: "Sessions invalidated because their user no longer exists",
		}),
		TemplateSyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_template_syncs_total",
			Help: "Layouts rewritten from their site template",
		}),
		GuestMerges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_guest_merges_total",
			Help: "Navigation lists augmented with guest pages",
		}),
		PipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "portal_pipeline_duration_seconds",
			Help:    "End-to-end service-pre pipeline latency",
			Buckets: prometheus.DefBuckets,
		}),
		VisibilityDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_visibility_denials_total",
				Help: "Visibility evaluations denied, by deciding rule",
			},
			[]string{"rule"},
		),
		ProvisionOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_provision_operations_total",
				Help: "Default layout provisioning operations",
			},
			[]string{"kind", "operation"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.Resolutions,
		m.DefaultSearches,
		m.AccessDenied,
		m.SessionRepairs,
		m.TemplateSyncs,
		m.GuestMerges,
		m.PipelineDuration,
		m.VisibilityDenials,
		m.ProvisionOperations,
	)

	return m
}

// Handler returns the metrics scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps an HTTP handler with request counting and latency
// observation.
func (m *Metrics) InstrumentHandler(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
