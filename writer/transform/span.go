package transform

import (
	"context"
	"time"

	"github.com/metrico/qryn-ai/writer/conventions"
	"github.com/metrico/qryn-ai/writer/model"
	"github.com/metrico/qryn-ai/writer/providers"
)

type SpanTransformer struct {
	merger        Merger
	registry      *providers.Registry
	contentScopes map[string]bool
	now           func() time.Time
}

func NewSpanTransformer(merger Merger, registry *providers.Registry) *SpanTransformer {
	return &SpanTransformer{
		merger:        merger,
		registry:      registry,
		contentScopes: registry.ContentScopes(),
		now:           time.Now,
	}
}

// Transform turns one span into an event. It returns nil while the span
// waits in the merge store for its log records.
func (t *SpanTransformer) Transform(ctx context.Context, span *model.Span, resource model.Attributes,
	scope model.Scope, baggage map[string]string) *model.AIEvent {
	attrs := conventions.Merge(
		conventions.ExtractGenAI(span.Attributes, scope, t.registry),
		conventions.ExtractPostHog(span.Attributes),
	)
	props := t.Properties(span, attrs, scope)

	selfContained := !conventions.IsEmpty(attrs[conventions.KeyPrompt]) ||
		!conventions.IsEmpty(attrs[conventions.KeyCompletion]) ||
		t.contentScopes[scope.Name]
	if !selfContained {
		merged, ok := t.merger.Merge(ctx, span.TraceID, span.SpanID, props, true)
		if !ok {
			return nil
		}
		props = merged
	}

	return assemble(props, eventContext{
		traceID:    span.TraceID,
		spanID:     span.SpanID,
		scopeName:  scope.Name,
		timestamp:  timestamp(span.StartTimeUnixNano, t.now),
		distinctID: DistinctID(resource, baggage),
	}, t.contentScopes)
}

// Properties builds the span side property map out of the extracted attrs.
func (t *SpanTransformer) Properties(span *model.Span, attrs map[string]any, scope model.Scope) model.Properties {
	props := model.Properties{
		model.PropTraceID:  span.TraceID,
		model.PropSpanID:   span.SpanID,
		model.PropSpanName: span.Name,
	}
	if span.ParentSpanID != "" {
		props[model.PropParentID] = span.ParentSpanID
	}
	mapProperties(attrs, props)

	if span.EndTimeUnixNano > 0 && span.EndTimeUnixNano >= span.StartTimeUnixNano {
		props[model.PropLatency] = float64(span.EndTimeUnixNano-span.StartTimeUnixNano) / 1e9
	}

	isError, _ := attrs[conventions.KeyIsError].(bool)
	if span.Status.Code == model.StatusCodeError {
		isError = true
		if _, ok := props[model.PropError]; !ok && span.Status.Message != "" {
			props[model.PropError] = span.Status.Message
		}
	}
	props[model.PropIsError] = isError

	providerHandled := t.registry.Find(span.Attributes, scope) != nil
	for k, v := range conventions.Passthrough(span.Attributes, providerHandled) {
		props[k] = v
	}
	return props
}
