package model

const (
	StatusCodeUnset = 0
	StatusCodeOk    = 1
	StatusCodeError = 2
)

type Status struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

type Span struct {
	TraceID           string     `json:"trace_id"`
	SpanID            string     `json:"span_id"`
	ParentSpanID      string     `json:"parent_span_id,omitempty"`
	Name              string     `json:"name"`
	Kind              int        `json:"kind"`
	StartTimeUnixNano uint64     `json:"start_time_unix_nano"`
	EndTimeUnixNano   uint64     `json:"end_time_unix_nano,omitempty"`
	Attributes        Attributes `json:"attributes"`
	Status            Status     `json:"status"`
}

// Scope is the instrumentation scope shared by every record of a batch.
type Scope struct {
	Name       string     `json:"name"`
	Version    string     `json:"version,omitempty"`
	Attributes Attributes `json:"attributes,omitempty"`
}

type ParsedSpanBatch struct {
	Resource Attributes        `json:"resource"`
	Scope    Scope             `json:"scope"`
	Spans    []Span            `json:"spans"`
	Baggage  map[string]string `json:"-"`
}
