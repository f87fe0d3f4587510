package model

const (
	EventGeneration = "$ai_generation"
	EventEmbedding  = "$ai_embedding"
	EventSpan       = "$ai_span"
	EventTrace      = "$ai_trace"
)

type AIEvent struct {
	Event      string     `json:"event"`
	DistinctID string     `json:"distinct_id"`
	Timestamp  string     `json:"timestamp"`
	Properties Properties `json:"properties"`
	UUID       string     `json:"uuid,omitempty"`
}
