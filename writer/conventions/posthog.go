package conventions

import (
	"strings"

	"github.com/metrico/qryn-ai/writer/model"
)

const PostHogPrefix = "posthog.ai."

type postHogField struct {
	key  string
	kind valueKind
}

var postHogFields = map[string]postHogField{
	"model":                       {KeyModel, kindString},
	"provider":                    {KeyProvider, kindString},
	"operation_name":              {KeyOperationName, kindString},
	"trace_id":                    {KeyTraceID, kindString},
	"span_id":                     {KeySpanID, kindString},
	"parent_id":                   {KeyParentID, kindString},
	"session_id":                  {KeySessionID, kindString},
	"generation_id":               {KeyGenerationID, kindString},
	"input":                       {KeyPrompt, kindJSON},
	"output":                      {KeyCompletion, kindJSON},
	"input_tokens":                {KeyInputTokens, kindInt},
	"output_tokens":               {KeyOutputTokens, kindInt},
	"cache_read_input_tokens":     {KeyCacheReadInputTokens, kindInt},
	"cache_creation_input_tokens": {KeyCacheCreationInputTokens, kindInt},
	"input_cost_usd":              {KeyInputCostUSD, kindFloat},
	"output_cost_usd":             {KeyOutputCostUSD, kindFloat},
	"total_cost_usd":              {KeyTotalCostUSD, kindFloat},
	"latency":                     {KeyLatency, kindFloat},
	"is_error":                    {KeyIsError, kindBool},
	"error":                       {KeyErrorMessage, kindString},
	"http_status":                 {KeyHTTPStatus, kindInt},
	"base_url":                    {KeyBaseURL, kindString},
	"temperature":                 {KeyTemperature, kindFloat},
	"max_tokens":                  {KeyMaxTokens, kindInt},
	"top_p":                       {KeyTopP, kindFloat},
	"frequency_penalty":           {KeyFrequencyPenalty, kindFloat},
	"presence_penalty":            {KeyPresencePenalty, kindFloat},
	"stream":                      {KeyStream, kindBool},
	"tools":                       {KeyTools, kindJSON},
	"response_id":                 {KeyResponseID, kindString},
	"finish_reasons":              {KeyFinishReasons, kindJSON},
}

// ExtractPostHog reads the posthog.ai.* attributes. Unknown sub-keys and
// values of an unexpected type are skipped.
func ExtractPostHog(attrs model.Attributes) map[string]any {
	res := map[string]any{}
	for k, v := range attrs {
		if !strings.HasPrefix(k, PostHogPrefix) {
			continue
		}
		f, ok := postHogFields[k[len(PostHogPrefix):]]
		if !ok {
			continue
		}
		if val, ok := convert(v, f.kind); ok {
			res[f.key] = val
		}
	}
	return res
}

func convert(v model.Value, kind valueKind) (any, bool) {
	switch kind {
	case kindString:
		return v.Str()
	case kindInt:
		return v.Int()
	case kindFloat:
		return v.Float()
	case kindBool:
		return v.Bool()
	case kindJSON:
		if s, ok := v.Str(); ok {
			return parseJSONOrRaw(s), true
		}
		if v.IsEmpty() {
			return nil, false
		}
		return v.Any(), true
	}
	return nil, false
}
