package service

import (
	"context"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/metrico/qryn-ai/writer/model"
)

// Sink hands finished events to the downstream capture pipeline.
type Sink interface {
	Capture(ctx context.Context, events []model.AIEvent) error
}

// LogSink writes every event as one JSON line.
type LogSink struct {
	log *logrus.Logger
}

func NewLogSink(w io.Writer) *LogSink {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.JSONFormatter{DisableTimestamp: true})
	return &LogSink{log: l}
}

func (s *LogSink) Capture(ctx context.Context, events []model.AIEvent) error {
	for _, ev := range events {
		s.log.WithFields(logrus.Fields{
			"event":       ev.Event,
			"distinct_id": ev.DistinctID,
			"timestamp":   ev.Timestamp,
			"uuid":        ev.UUID,
			"properties":  ev.Properties,
		}).Info("ai_event")
	}
	return nil
}

// MemorySink keeps captured events in memory.
type MemorySink struct {
	mtx    sync.Mutex
	events []model.AIEvent
}

func (s *MemorySink) Capture(ctx context.Context, events []model.AIEvent) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.events = append(s.events, events...)
	return nil
}

func (s *MemorySink) Events() []model.AIEvent {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return append([]model.AIEvent{}, s.events...)
}
