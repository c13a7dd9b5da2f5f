package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application. Each
// collector owns its registry, so tests can create as many as they like.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Study metrics
	ReviewsProcessed *prometheus.CounterVec // by resulting learning state
	ReviewsRejected  *prometheus.CounterVec // by reason
	Lapses           prometheus.Counter
	Graduations      prometheus.Counter

	// Analytics
	AnalyticsDuration prometheus.Histogram

	// Deck import
	CardsImported  prometheus.Counter
	CardsSuspended prometheus.Counter
}

// NewCollector creates a collector with metrics under namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		ReviewsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reviews_processed_total",
				Help:      "Reviews applied to cards, by resulting learning state",
			},
			[]string{"state", "passed"},
		),
		ReviewsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reviews_rejected_total",
				Help:      "Reviews that were not applied",
			},
			[]string{"reason"},
		),
		Lapses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lapses_total",
			Help:      "Failed reviews of graduated cards",
		}),
		Graduations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graduations_total",
			Help:      "Cards that graduated",
		}),
		AnalyticsDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analytics_duration_seconds",
			Help:      "Time spent building performance reports",
			Buckets:   prometheus.DefBuckets,
		}),
		CardsImported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cards_imported_total",
			Help:      "Cards created from deck sources",
		}),
		CardsSuspended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cards_suspended_total",
			Help:      "Cards suspended because their item left the deck",
		}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.HTTPRequests,
		c.HTTPDuration,
		c.ReviewsProcessed,
		c.ReviewsRejected,
		c.Lapses,
		c.Graduations,
		c.AnalyticsDuration,
		c.CardsImported,
		c.CardsSuspended,
	)
	return c
}

// Registry exposes the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveHTTP records one finished request. route is the route pattern,
// not the raw path, to keep label cardinality bounded.
func (c *Collector) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveReview records an applied review.
func (c *Collector) ObserveReview(state string, passed, lapsed, graduated bool) {
	c.ReviewsProcessed.WithLabelValues(state, strconv.FormatBool(passed)).Inc()
	if lapsed {
		c.Lapses.Inc()
	}
	if graduated {
		c.Graduations.Inc()
	}
}

// RejectReview records a review that was not applied.
func (c *Collector) RejectReview(reason string) {
	c.ReviewsRejected.WithLabelValues(reason).Inc()
}

// ObserveAnalytics records how long a report took.
func (c *Collector) ObserveAnalytics(elapsed time.Duration) {
	c.AnalyticsDuration.Observe(elapsed.Seconds())
}

// ObserveSync records the outcome of a deck import.
func (c *Collector) ObserveSync(created, suspended int) {
	c.CardsImported.Add(float64(created))
	c.CardsSuspended.Add(float64(suspended))
}
