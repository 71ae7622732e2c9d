package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	apiRequestsTotal  *prometheus.CounterVec
	apiLatencySeconds *prometheus.HistogramVec
	apiErrorsTotal    *prometheus.CounterVec

	reviewRunsTotal       *prometheus.CounterVec
	reviewDurationSeconds prometheus.Histogram
	reviewChunksTotal     prometheus.Counter
	reviewMarkersTotal    *prometheus.CounterVec
	reviewWritesTotal     *prometheus.CounterVec
	reviewsInFlight       prometheus.Gauge
	reviewFeedClients     prometheus.Gauge
	reviewEventsTotal     *prometheus.CounterVec

	attachmentFetchTotal *prometheus.CounterVec
	attachmentBytes      prometheus.Histogram

	uploadLatencySeconds prometheus.Histogram
	uploadRejectedTotal  *prometheus.CounterVec
	uploadRequestsTotal  *prometheus.CounterVec

	cacheLookupsTotal *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monquest_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "monquest_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 15.0, 60.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monquest_http_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		reviewRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monquest_review_runs_total",
			Help: "Review runs by final state.",
		}, []string{"state"})

		reviewDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "monquest_review_duration_seconds",
			Help:    "Wall time of review runs from load to apply.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
		})

		reviewChunksTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monquest_review_chunks_total",
			Help: "Model output chunks forwarded to review callers.",
		})

		reviewMarkersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monquest_review_markers_total",
			Help: "Error markers appended to review streams.",
		}, []string{"kind"})

		reviewWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monquest_review_writes_total",
			Help: "Selection writes issued by the review applier.",
		}, []string{"outcome"})

		reviewsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "monquest_reviews_in_flight",
			Help: "Review runs currently executing.",
		})

		reviewFeedClients = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "monquest_review_feed_clients",
			Help: "Websocket clients subscribed to review events.",
		})

		reviewEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monquest_review_events_total",
			Help: "Review events delivered to the local feed by origin.",
		}, []string{"origin"})

		attachmentFetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monquest_attachment_fetch_total",
			Help: "Attachment fetches by outcome.",
		}, []string{"outcome"})

		attachmentBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "monquest_attachment_bytes",
			Help:    "Size of accepted attachments.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		})

		uploadLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "monquest_upload_latency_seconds",
			Help:    "Latency of media uploads.",
			Buckets: prometheus.DefBuckets,
		})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monquest_upload_rejected_total",
			Help: "Rejected media uploads by reason.",
		}, []string{"reason"})

		uploadRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monquest_upload_requests_total",
			Help: "Stored media uploads by mime type.",
		}, []string{"mime"})

		cacheLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monquest_cache_lookups_total",
			Help: "Cache lookups by cache and result.",
		}, []string{"cache", "result"})

		prometheus.MustRegister(
			apiRequestsTotal, apiLatencySeconds, apiErrorsTotal,
			reviewRunsTotal, reviewDurationSeconds, reviewChunksTotal, reviewMarkersTotal, reviewWritesTotal, reviewsInFlight,
			reviewFeedClients, reviewEventsTotal,
			attachmentFetchTotal, attachmentBytes,
			uploadLatencySeconds, uploadRejectedTotal, uploadRequestsTotal,
			cacheLookupsTotal,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// ReviewRuns counts finished review runs by state.
func ReviewRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return reviewRunsTotal
}

// ReviewDuration observes review run wall time.
func ReviewDuration() prometheus.Histogram {
	RegisterMetrics()
	return reviewDurationSeconds
}

// ReviewChunks counts forwarded model chunks.
func ReviewChunks() prometheus.Counter {
	RegisterMetrics()
	return reviewChunksTotal
}

// ReviewMarkers counts error markers by kind.
func ReviewMarkers() *prometheus.CounterVec {
	RegisterMetrics()
	return reviewMarkersTotal
}

// ReviewWrites counts selection writes by outcome.
func ReviewWrites() *prometheus.CounterVec {
	RegisterMetrics()
	return reviewWritesTotal
}

// ReviewsInFlight tracks running reviews.
func ReviewsInFlight() prometheus.Gauge {
	RegisterMetrics()
	return reviewsInFlight
}

// ReviewFeedClients tracks connected review feed clients.
func ReviewFeedClients() prometheus.Gauge {
	RegisterMetrics()
	return reviewFeedClients
}

// ReviewEvents counts review events reaching the local feed.
func ReviewEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return reviewEventsTotal
}

// AttachmentFetches counts attachment fetches by outcome.
func AttachmentFetches() *prometheus.CounterVec {
	RegisterMetrics()
	return attachmentFetchTotal
}

// AttachmentBytes observes accepted attachment sizes.
func AttachmentBytes() prometheus.Histogram {
	RegisterMetrics()
	return attachmentBytes
}

// UploadLatency observes media upload latency.
func UploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return uploadLatencySeconds
}

// UploadRejected counts rejected uploads.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}

// UploadRequests counts stored uploads.
func UploadRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRequestsTotal
}

// CacheLookups counts cache hits and misses.
func CacheLookups() *prometheus.CounterVec {
	RegisterMetrics()
	return cacheLookupsTotal
}
