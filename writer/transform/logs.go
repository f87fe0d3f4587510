package transform

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/metrico/qryn-ai/writer/conventions"
	"github.com/metrico/qryn-ai/writer/model"
	"github.com/metrico/qryn-ai/writer/providers"
)

const eventNameAttr = "event.name"

type LogTransformer struct {
	merger        Merger
	registry      *providers.Registry
	contentScopes map[string]bool
	now           func() time.Time
}

func NewLogTransformer(merger Merger, registry *providers.Registry) *LogTransformer {
	return &LogTransformer{
		merger:        merger,
		registry:      registry,
		contentScopes: registry.ContentScopes(),
		now:           time.Now,
	}
}

// Transform offers a single log record to the merger.
func (t *LogTransformer) Transform(ctx context.Context, rec *model.LogRecord, resource model.Attributes,
	scope model.Scope, baggage map[string]string) *model.AIEvent {
	props := t.Properties(rec, scope)
	merged, ok := t.merger.Merge(ctx, rec.TraceID, rec.SpanID, props, false)
	if !ok {
		return nil
	}
	return assemble(merged, t.eventContext(rec, resource, scope, baggage), t.contentScopes)
}

type logGroup struct {
	first *model.LogRecord
	props model.Properties
}

// TransformBatch accumulates the records of every (trace, span) in the
// batch in record order and offers each group to the merger once.
func (t *LogTransformer) TransformBatch(ctx context.Context, batch *model.ParsedLogBatch) []*model.AIEvent {
	var order []string
	groups := map[string]*logGroup{}
	for i := range batch.Logs {
		rec := &batch.Logs[i]
		key := rec.TraceID + ":" + rec.SpanID
		if rec.TraceID == "" || rec.SpanID == "" {
			// nothing to correlate, keep the record on its own
			key = "#" + strconv.Itoa(i)
		}
		props := t.Properties(rec, batch.Scope)
		g, ok := groups[key]
		if !ok {
			groups[key] = &logGroup{first: rec, props: props}
			order = append(order, key)
			continue
		}
		g.props = g.props.Accumulate(props)
	}

	var res []*model.AIEvent
	for _, key := range order {
		g := groups[key]
		merged, ok := t.merger.Merge(ctx, g.first.TraceID, g.first.SpanID, g.props, false)
		if !ok {
			continue
		}
		res = append(res, assemble(merged, t.eventContext(g.first, batch.Resource, batch.Scope, batch.Baggage),
			t.contentScopes))
	}
	return res
}

func (t *LogTransformer) eventContext(rec *model.LogRecord, resource model.Attributes, scope model.Scope,
	baggage map[string]string) eventContext {
	ts := rec.TimeUnixNano
	if ts == 0 {
		ts = rec.ObservedTimeUnixNano
	}
	return eventContext{
		traceID:    rec.TraceID,
		spanID:     rec.SpanID,
		scopeName:  scope.Name,
		timestamp:  timestamp(ts, t.now),
		distinctID: DistinctID(resource, baggage),
	}
}

// Properties builds the partial property map contributed by one record.
func (t *LogTransformer) Properties(rec *model.LogRecord, scope model.Scope) model.Properties {
	props := model.Properties{}
	if rec.TraceID != "" {
		props[model.PropTraceID] = rec.TraceID
	}
	if rec.SpanID != "" {
		props[model.PropSpanID] = rec.SpanID
	}

	attrs := conventions.Merge(
		conventions.ExtractGenAI(rec.Attributes, scope, t.registry),
		conventions.ExtractPostHog(rec.Attributes),
	)
	if t.roleMessage(rec, props) {
		delete(attrs, conventions.KeyPrompt)
		delete(attrs, conventions.KeyCompletion)
	}
	mapProperties(attrs, props)
	return props
}

func (t *LogTransformer) eventName(rec *model.LogRecord) string {
	name := rec.EventName
	if name == "" {
		name, _ = rec.Attributes.Str(eventNameAttr)
	}
	return strings.ToLower(name)
}

// roleMessage adds the message carried by a role specific record to props
// and reports whether the record was one.
func (t *LogTransformer) roleMessage(rec *model.LogRecord, props model.Properties) bool {
	name := t.eventName(rec)
	body := bodyMap(rec.Body)
	switch {
	case strings.Contains(name, "system.message"):
		props[model.PropInput] = []any{contentMessage("system", rec.Body, body)}
	case strings.Contains(name, "user.message"):
		props[model.PropInput] = []any{contentMessage("user", rec.Body, body)}
	case strings.Contains(name, "assistant.message"):
		msg := contentMessage("assistant", rec.Body, body)
		if calls, ok := body["tool_calls"]; ok {
			msg["tool_calls"] = calls
		}
		props[model.PropInput] = []any{msg}
	case strings.Contains(name, "tool.message"):
		msg := contentMessage("tool", rec.Body, body)
		if id, ok := body["id"]; ok {
			msg["tool_call_id"] = id
		}
		props[model.PropInput] = []any{msg}
	case strings.Contains(name, "choice"):
		msg := map[string]any{"role": "assistant"}
		if m, ok := body["message"].(map[string]any); ok {
			for k, v := range m {
				msg[k] = v
			}
			if role, _ := msg["role"].(string); role == "" {
				msg["role"] = "assistant"
			}
		} else if content, ok := body["content"]; ok {
			msg["content"] = content
		}
		if fr, ok := body["finish_reason"]; ok && !conventions.IsEmpty(fr) {
			props[model.PropFinishReasons] = []any{fr}
		}
		props[model.PropOutputChoices] = []any{msg}
	default:
		return false
	}
	return true
}

func contentMessage(role string, raw model.Value, body map[string]any) map[string]any {
	msg := map[string]any{"role": role}
	if body != nil {
		if c, ok := body["content"]; ok {
			msg["content"] = c
		}
		return msg
	}
	if s, ok := raw.Str(); ok {
		msg["content"] = s
	}
	return msg
}

// bodyMap returns the body as an object, decoding JSON text bodies.
func bodyMap(body model.Value) map[string]any {
	if m, ok := body.Map(); ok {
		return m
	}
	s, ok := body.Str()
	if !ok || !strings.HasPrefix(strings.TrimSpace(s), "{") {
		return nil
	}
	var v model.Value
	if err := v.UnmarshalJSON([]byte(s)); err != nil {
		return nil
	}
	m, _ := v.Map()
	return m
}
