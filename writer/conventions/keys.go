package conventions

// Normalized keys produced by the extractors.
const (
	KeyModel                    = "model"
	KeyProvider                 = "provider"
	KeyOperationName            = "operation_name"
	KeyTraceID                  = "trace_id"
	KeySpanID                   = "span_id"
	KeyParentID                 = "parent_id"
	KeySessionID                = "session_id"
	KeyGenerationID             = "generation_id"
	KeyPrompt                   = "prompt"
	KeyCompletion               = "completion"
	KeyInputTokens              = "input_tokens"
	KeyOutputTokens             = "output_tokens"
	KeyCacheReadInputTokens     = "cache_read_input_tokens"
	KeyCacheCreationInputTokens = "cache_creation_input_tokens"
	KeyInputCostUSD             = "input_cost_usd"
	KeyOutputCostUSD            = "output_cost_usd"
	KeyTotalCostUSD             = "total_cost_usd"
	KeyLatency                  = "latency"
	KeyIsError                  = "is_error"
	KeyErrorMessage             = "error_message"
	KeyHTTPStatus               = "http_status"
	KeyBaseURL                  = "base_url"
	KeyTemperature              = "temperature"
	KeyMaxTokens                = "max_tokens"
	KeyTopP                     = "top_p"
	KeyFrequencyPenalty         = "frequency_penalty"
	KeyPresencePenalty          = "presence_penalty"
	KeyStream                   = "stream"
	KeyTools                    = "tools"
	KeyResponseID               = "response_id"
	KeyFinishReasons            = "finish_reasons"
)

type valueKind uint8

const (
	kindString valueKind = iota
	kindInt
	kindFloat
	kindBool
	kindJSON
)
