// Package metrics provides Prometheus metric collection and exposition.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the Prometheus collectors for the crawler and the panel.
type Collector struct {
	crawlSuccess    prometheus.Counter
	crawlFail       prometheus.Counter
	fetchRetries    prometheus.Counter
	httpStatus      *prometheus.CounterVec
	fetchLatency    prometheus.Histogram
	commentsStored  prometheus.Counter
	cookieSaves     prometheus.Counter
	cookieClears    prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics on the given
// registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		crawlSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bilipanel_crawl_success_total",
			Help: "Total successful video crawl passes.",
		}),
		crawlFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bilipanel_crawl_fail_total",
			Help: "Total failed video crawl passes.",
		}),
		fetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bilipanel_fetch_retries_total",
			Help: "Total comment page fetches that were retried.",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bilipanel_http_status_total",
			Help: "Panel HTTP responses by status code.",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bilipanel_fetch_latency_seconds",
			Help:    "Comment page fetch latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		commentsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bilipanel_comments_stored_total",
			Help: "Total comments upserted into the database.",
		}),
		cookieSaves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bilipanel_cookie_saves_total",
			Help: "Total cookie save operations.",
		}),
		cookieClears: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bilipanel_cookie_clears_total",
			Help: "Total cookie clear operations.",
		}),
	}

	reg.MustRegister(
		c.crawlSuccess,
		c.crawlFail,
		c.fetchRetries,
		c.httpStatus,
		c.fetchLatency,
		c.commentsStored,
		c.cookieSaves,
		c.cookieClears,
	)

	return c
}

// RecordCrawlSuccess records a completed crawl pass over one video.
func (c *Collector) RecordCrawlSuccess() { c.crawlSuccess.Inc() }

// RecordCrawlFailure records a crawl pass that gave up on a video.
func (c *Collector) RecordCrawlFailure() { c.crawlFail.Inc() }

// RecordFetchRetry records a retried comment page fetch.
func (c *Collector) RecordFetchRetry() { c.fetchRetries.Inc() }

// RecordHTTPStatus records a served panel response status code.
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchLatency records how long one comment page fetch took.
func (c *Collector) RecordFetchLatency(d time.Duration) {
	c.fetchLatency.Observe(d.Seconds())
}

// RecordCommentsStored records n comments written to the database.
func (c *Collector) RecordCommentsStored(n int) {
	c.commentsStored.Add(float64(n))
}

// RecordCookieSave records a cookie save.
func (c *Collector) RecordCookieSave() { c.cookieSaves.Inc() }

// RecordCookieClear records a cookie clear.
func (c *Collector) RecordCookieClear() { c.cookieClears.Inc() }

// Handler returns the /metrics HTTP handler for the given gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
