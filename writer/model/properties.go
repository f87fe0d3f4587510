package model

const (
	PropTraceID                  = "$ai_trace_id"
	PropSpanID                   = "$ai_span_id"
	PropParentID                 = "$ai_parent_id"
	PropSpanName                 = "$ai_span_name"
	PropSessionID                = "$ai_session_id"
	PropGenerationID             = "$ai_generation_id"
	PropModel                    = "$ai_model"
	PropProvider                 = "$ai_provider"
	PropOperationName            = "$ai_operation_name"
	PropInput                    = "$ai_input"
	PropOutputChoices            = "$ai_output_choices"
	PropInputTokens              = "$ai_input_tokens"
	PropOutputTokens             = "$ai_output_tokens"
	PropCacheReadInputTokens     = "$ai_cache_read_input_tokens"
	PropCacheCreationInputTokens = "$ai_cache_creation_input_tokens"
	PropInputCostUSD             = "$ai_input_cost_usd"
	PropOutputCostUSD            = "$ai_output_cost_usd"
	PropTotalCostUSD             = "$ai_total_cost_usd"
	PropLatency                  = "$ai_latency"
	PropIsError                  = "$ai_is_error"
	PropError                    = "$ai_error"
	PropHTTPStatus               = "$ai_http_status"
	PropBaseURL                  = "$ai_base_url"
	PropTemperature              = "$ai_temperature"
	PropMaxTokens                = "$ai_max_tokens"
	PropTopP                     = "$ai_top_p"
	PropFrequencyPenalty         = "$ai_frequency_penalty"
	PropPresencePenalty          = "$ai_presence_penalty"
	PropStream                   = "$ai_stream"
	PropTools                    = "$ai_tools"
	PropResponseID               = "$ai_response_id"
	PropFinishReasons            = "$ai_finish_reasons"

	PassthroughPrefix = "otel."
)

// Properties is the flat property map of an analytics event.
type Properties map[string]any

// Clone returns a shallow copy.
func (p Properties) Clone() Properties {
	res := make(Properties, len(p))
	for k, v := range p {
		res[k] = v
	}
	return res
}

// message arrays that accumulate across log records instead of being replaced
var concatKeys = map[string]bool{
	PropInput:         true,
	PropOutputChoices: true,
}

// Accumulate returns {...p, ...next} with the message arrays of next
// appended to the ones of p. p is left untouched.
func (p Properties) Accumulate(next Properties) Properties {
	res := p.Clone()
	for k, v := range next {
		if concatKeys[k] {
			prev, prevOk := res[k].([]any)
			cur, curOk := v.([]any)
			if prevOk && curOk {
				res[k] = append(append(make([]any, 0, len(prev)+len(cur)), prev...), cur...)
				continue
			}
		}
		res[k] = v
	}
	return res
}

// Str returns the string stored under key.
func (p Properties) Str(key string) string {
	s, _ := p[key].(string)
	return s
}

// EncodeProperties is the wire format of cached merge state.
func EncodeProperties(p Properties) ([]byte, error) {
	return numberJson.Marshal(p)
}

// DecodeProperties reverses EncodeProperties. Integral numbers come back as
// int64, others as float64.
func DecodeProperties(data []byte) (Properties, error) {
	var raw map[string]any
	if err := numberJson.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	normalizeNumbers(raw)
	return Properties(raw), nil
}
