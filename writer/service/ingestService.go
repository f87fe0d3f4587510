package service

import (
	"context"
	"time"

	retry "github.com/avast/retry-go"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/metrico/qryn-ai/writer/conventions"
	"github.com/metrico/qryn-ai/writer/metric"
	"github.com/metrico/qryn-ai/writer/model"
	"github.com/metrico/qryn-ai/writer/providers"
	"github.com/metrico/qryn-ai/writer/transform"
	"github.com/metrico/qryn-ai/writer/utils/logger"
)

type IIngestService interface {
	IngestSpans(ctx context.Context, batches []model.ParsedSpanBatch) (int, error)
	IngestLogs(ctx context.Context, batches []model.ParsedLogBatch) (int, error)
}

type IngestServiceOpts struct {
	Merger         transform.Merger
	Registry       *providers.Registry
	Sink           Sink
	Workers        int
	SinkRetries    uint
	SinkRetryDelay time.Duration
}

type IngestService struct {
	spans          *transform.SpanTransformer
	logs           *transform.LogTransformer
	sink           Sink
	workers        int
	sinkRetries    uint
	sinkRetryDelay time.Duration
}

func NewIngestService(opts IngestServiceOpts) *IngestService {
	if opts.Registry == nil {
		opts.Registry = providers.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.SinkRetries == 0 {
		opts.SinkRetries = 1
	}
	return &IngestService{
		spans:          transform.NewSpanTransformer(opts.Merger, opts.Registry),
		logs:           transform.NewLogTransformer(opts.Merger, opts.Registry),
		sink:           opts.Sink,
		workers:        opts.Workers,
		sinkRetries:    opts.SinkRetries,
		sinkRetryDelay: opts.SinkRetryDelay,
	}
}

// IngestSpans transforms the spans of all batches concurrently and captures
// the events that are ready, in span order.
func (s *IngestService) IngestSpans(ctx context.Context, batches []model.ParsedSpanBatch) (int, error) {
	var slots [][]*model.AIEvent
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for b := range batches {
		batch := &batches[b]
		events := make([]*model.AIEvent, len(batch.Spans))
		slots = append(slots, events)
		for i := range batch.Spans {
			span := &batch.Spans[i]
			metric.SpansReceived.Inc()
			if !conventions.UsesKnownConventions(span.Attributes) {
				metric.ForeignSpans.Inc()
			}
			g.Go(func() error {
				events[i] = s.spans.Transform(gCtx, span, batch.Resource, batch.Scope, batch.Baggage)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	var ready []model.AIEvent
	for _, events := range slots {
		for _, ev := range events {
			if ev != nil {
				ready = append(ready, *ev)
			}
		}
	}
	return s.capture(ctx, ready)
}

// IngestLogs keeps record order, message history depends on it.
func (s *IngestService) IngestLogs(ctx context.Context, batches []model.ParsedLogBatch) (int, error) {
	var ready []model.AIEvent
	for b := range batches {
		metric.LogsReceived.Add(float64(len(batches[b].Logs)))
		for _, ev := range s.logs.TransformBatch(ctx, &batches[b]) {
			ready = append(ready, *ev)
		}
	}
	return s.capture(ctx, ready)
}

func (s *IngestService) capture(ctx context.Context, events []model.AIEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	err := retry.Do(
		func() error {
			return s.sink.Capture(ctx, events)
		},
		retry.Attempts(s.sinkRetries),
		retry.Delay(s.sinkRetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.Error("capture attempt ", n+1, " failed: ", err)
		}),
	)
	if err != nil {
		metric.SinkErrors.Inc()
		return 0, errors.Wrap(err, "capture events")
	}
	for _, ev := range events {
		metric.EventsEmitted.WithLabelValues(ev.Event).Inc()
	}
	return len(events), nil
}
