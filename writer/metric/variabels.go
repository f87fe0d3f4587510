package metric

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JsonParseErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "json_parse_errors_count",
		Help: "The total number of JSON parse errors",
	})
	ConnectionResetByPeer = promauto.NewCounter(prometheus.CounterOpts{
		Name: "connection_reset_by_peer_count",
		Help: "The total number of connections reset by peer",
	})
	SpansReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "otel_spans_received_total",
		Help: "The total number of spans received",
	})
	LogsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "otel_logs_received_total",
		Help: "The total number of log records received",
	})
	ForeignSpans = promauto.NewCounter(prometheus.CounterOpts{
		Name: "otel_foreign_spans_total",
		Help: "Spans using neither PostHog nor GenAI attribute conventions",
	})
	MergeOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "otel_merge_outcomes_total",
		Help: "Merge attempts by arrival side and result",
	}, []string{"direction", "result"})
	ExpiredMerges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "otel_merge_expired_total",
		Help: "Cached merge halves that expired before their partner arrived",
	}, []string{"kind"})
	EventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ai_events_emitted_total",
		Help: "The total number of emitted AI events",
	}, []string{"event"})
	SinkErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ai_events_sink_errors_total",
		Help: "Event batches the sink failed to capture after retries",
	})
	StoreLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "otel_merge_store_latency_ms",
		Help:    "Merge store transaction time in milliseconds",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 1000},
	})
)
