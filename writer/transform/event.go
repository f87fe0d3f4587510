package transform

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/metrico/qryn-ai/writer/conventions"
	"github.com/metrico/qryn-ai/writer/model"
)

const anonymousDistinctID = "anonymous"

// Merger joins span and log halves, see merger.Merger.
type Merger interface {
	Merge(ctx context.Context, traceID, spanID string, props model.Properties, isTrace bool) (model.Properties, bool)
}

// normalized extractor key -> event property
var propertyMap = []struct{ from, to string }{
	{conventions.KeyModel, model.PropModel},
	{conventions.KeyProvider, model.PropProvider},
	{conventions.KeyOperationName, model.PropOperationName},
	{conventions.KeyTraceID, model.PropTraceID},
	{conventions.KeySpanID, model.PropSpanID},
	{conventions.KeyParentID, model.PropParentID},
	{conventions.KeySessionID, model.PropSessionID},
	{conventions.KeyGenerationID, model.PropGenerationID},
	{conventions.KeyPrompt, model.PropInput},
	{conventions.KeyCompletion, model.PropOutputChoices},
	{conventions.KeyInputTokens, model.PropInputTokens},
	{conventions.KeyOutputTokens, model.PropOutputTokens},
	{conventions.KeyCacheReadInputTokens, model.PropCacheReadInputTokens},
	{conventions.KeyCacheCreationInputTokens, model.PropCacheCreationInputTokens},
	{conventions.KeyInputCostUSD, model.PropInputCostUSD},
	{conventions.KeyOutputCostUSD, model.PropOutputCostUSD},
	{conventions.KeyTotalCostUSD, model.PropTotalCostUSD},
	{conventions.KeyLatency, model.PropLatency},
	{conventions.KeyIsError, model.PropIsError},
	{conventions.KeyErrorMessage, model.PropError},
	{conventions.KeyHTTPStatus, model.PropHTTPStatus},
	{conventions.KeyBaseURL, model.PropBaseURL},
	{conventions.KeyTemperature, model.PropTemperature},
	{conventions.KeyMaxTokens, model.PropMaxTokens},
	{conventions.KeyTopP, model.PropTopP},
	{conventions.KeyFrequencyPenalty, model.PropFrequencyPenalty},
	{conventions.KeyPresencePenalty, model.PropPresencePenalty},
	{conventions.KeyStream, model.PropStream},
	{conventions.KeyTools, model.PropTools},
	{conventions.KeyResponseID, model.PropResponseID},
	{conventions.KeyFinishReasons, model.PropFinishReasons},
}

func mapProperties(attrs map[string]any, props model.Properties) {
	for _, m := range propertyMap {
		v, ok := attrs[m.from]
		if !ok || conventions.IsEmpty(v) {
			continue
		}
		if m.to == model.PropInput || m.to == model.PropOutputChoices {
			v = asList(v)
		}
		props[m.to] = v
	}
}

// asList widens typed message slices to []any so they concatenate.
func asList(v any) any {
	switch l := v.(type) {
	case []map[string]any:
		res := make([]any, len(l))
		for i, m := range l {
			res[i] = m
		}
		return res
	}
	return v
}

// EventType classifies a finished property map.
func EventType(props model.Properties, scopeName string, contentScopes map[string]bool) string {
	switch strings.ToLower(props.Str(model.PropOperationName)) {
	case "chat", "completion":
		return model.EventGeneration
	case "embedding", "embeddings":
		return model.EventEmbedding
	}
	_, hasTokens := props[model.PropInputTokens]
	if props.Str(model.PropProvider) != "" && props.Str(model.PropModel) != "" &&
		(hasTokens || !conventions.IsEmpty(props[model.PropInput])) {
		return model.EventGeneration
	}
	if props.Str(model.PropParentID) == "" {
		if contentScopes[scopeName] {
			return model.EventSpan
		}
		return model.EventTrace
	}
	return model.EventSpan
}

// EventUUID is the same for every event built for one (trace, span), so the
// downstream dedup drops a second emission.
func EventUUID(traceID, spanID string) string {
	if traceID == "" || spanID == "" {
		return ""
	}
	return uuid.NewSHA1(uuid.Nil, []byte(traceID+":"+spanID)).String()
}

var (
	resourceDistinctKeys = []string{"user.id", "enduser.id", "posthog.distinct_id"}
	baggageDistinctKeys  = []string{"posthog.distinct_id", "user.id"}
)

func DistinctID(resource model.Attributes, baggage map[string]string) string {
	for _, k := range resourceDistinctKeys {
		v, ok := resource[k]
		if !ok {
			continue
		}
		if s, ok := v.Str(); ok && s != "" {
			return s
		}
		if i, ok := v.Int(); ok {
			return strconv.FormatInt(i, 10)
		}
	}
	for _, k := range baggageDistinctKeys {
		if v := baggage[k]; v != "" {
			return v
		}
	}
	return anonymousDistinctID
}

// timestamp falls back to now for unset or out of range times.
func timestamp(unixNano uint64, now func() time.Time) string {
	if unixNano == 0 || unixNano > math.MaxInt64 {
		return now().UTC().Format(time.RFC3339Nano)
	}
	return time.Unix(0, int64(unixNano)).UTC().Format(time.RFC3339Nano)
}

type eventContext struct {
	traceID    string
	spanID     string
	scopeName  string
	timestamp  string
	distinctID string
}

func assemble(props model.Properties, ec eventContext, contentScopes map[string]bool) *model.AIEvent {
	return &model.AIEvent{
		Event:      EventType(props, ec.scopeName, contentScopes),
		DistinctID: ec.distinctID,
		Timestamp:  ec.timestamp,
		Properties: props,
		UUID:       EventUUID(ec.traceID, ec.spanID),
	}
}
