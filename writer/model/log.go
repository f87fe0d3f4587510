package model

type LogRecord struct {
	TraceID              string     `json:"trace_id"`
	SpanID               string     `json:"span_id"`
	EventName            string     `json:"event_name,omitempty"`
	Attributes           Attributes `json:"attributes"`
	Body                 Value      `json:"body"`
	TimeUnixNano         uint64     `json:"time_unix_nano"`
	ObservedTimeUnixNano uint64     `json:"observed_time_unix_nano,omitempty"`
}

type ParsedLogBatch struct {
	Resource Attributes        `json:"resource"`
	Scope    Scope             `json:"scope"`
	Logs     []LogRecord       `json:"logs"`
	Baggage  map[string]string `json:"-"`
}
