// Package metrics exposes Prometheus metrics for campaign runs and the HTTP API.
package metrics

import (
	"strconv"
	"time"

	"github.com/myrjola/flowcast/internal/campaign"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "flowcast"

// Collector implements [campaign.Observer]. It is safe for concurrent use.
type Collector struct {
	campaignRows        *prometheus.CounterVec
	recordsCreated      prometheus.Counter
	campaignRuns        *prometheus.CounterVec
	campaignRunDuration prometheus.Histogram

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var _ campaign.Observer = (*Collector)(nil)

// NewCollector registers the metrics with registerer. Tests pass a fresh [prometheus.NewRegistry] so that collectors
// do not clash.
func NewCollector(registerer prometheus.Registerer) *Collector {
	factory := promauto.With(registerer)
	return &Collector{
		campaignRows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "campaign_rows_total",
			Help:      "Campaign rows processed by outcome.",
		}, []string{"outcome"}),
		recordsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "campaign_records_created_total",
			Help:      "Recipient records created by campaign runs.",
		}),
		campaignRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "campaign_runs_total",
			Help:      "Finished campaign runs.",
		}, []string{"cancelled"}),
		campaignRunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "campaign_run_duration_seconds",
			Help:      "Campaign run duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (c *Collector) RowProcessed(outcome campaign.Outcome, created bool) {
	c.campaignRows.WithLabelValues(string(outcome)).Inc()
	if created {
		c.recordsCreated.Inc()
	}
}

func (c *Collector) RunFinished(report campaign.Report, elapsed time.Duration) {
	c.campaignRuns.WithLabelValues(strconv.FormatBool(report.Cancelled)).Inc()
	c.campaignRunDuration.Observe(elapsed.Seconds())
}

// RecordHTTPRequest records a served request. route is the matched pattern, not the raw path, to bound cardinality.
func (c *Collector) RecordHTTPRequest(method, route string, status int, elapsed time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
