package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var itemsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "docingest",
	Name:      "queue_items_processed_total",
	Help:      "Queue items processed by the worker, labelled by outcome.",
}, []string{"outcome"})

var processingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "docingest",
	Name:      "processing_duration_seconds",
	Help:      "Time spent processing one queue item.",
	Buckets:   []float64{.5, 1, 2, 5, 10, 30, 60, 120, 300},
}, []string{"outcome"})

var stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "docingest",
	Name:      "stage_duration_seconds",
	Help:      "Latency of each pipeline stage.",
	Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2, 5, 10, 30},
}, []string{"stage"})

var chunksCreated = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "docingest",
	Name:      "chunks_created_total",
	Help:      "Chunks written to the metadata store.",
})

var vectorsInserted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "docingest",
	Name:      "vectors_inserted_total",
	Help:      "Vector entries written to the vector store.",
})

var embeddingTokens = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "docingest",
	Name:      "embedding_tokens_total",
	Help:      "Tokens sent to the embedding provider.",
}, []string{"model"})

var queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "docingest",
	Name:      "queue_depth",
	Help:      "Queued items seen at the last poll.",
})

var httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "docingest",
	Name:      "http_requests_total",
	Help:      "Admin API requests labelled by route and status.",
}, []string{"route", "status"})

var webhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "docingest",
	Name:      "webhook_deliveries_total",
	Help:      "Outcome webhook deliveries labelled by result.",
}, []string{"result"})

func CaptureItem(outcome string, elapsed time.Duration) {
	itemsProcessed.WithLabelValues(outcome).Inc()
	processingDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func CaptureStage(stage string, elapsed time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func AddChunks(n int) {
	chunksCreated.Add(float64(n))
}

func AddVectors(n int) {
	vectorsInserted.Add(float64(n))
}

func AddEmbeddingTokens(model string, n int) {
	embeddingTokens.WithLabelValues(model).Add(float64(n))
}

func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

func CaptureWebhook(result string) {
	webhookDeliveries.WithLabelValues(result).Inc()
}

// StatusRecorder captures the status code written by a handler.
type StatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *StatusRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}

func CaptureHTTP(route string, status int) {
	httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
