package model

type ParserResponse struct {
	Error       error
	SpanBatches []ParsedSpanBatch
	LogBatches  []ParsedLogBatch
}

// Size is the number of spans and log records carried by the response.
func (p *ParserResponse) Size() int {
	res := 0
	for _, b := range p.SpanBatches {
		res += len(b.Spans)
	}
	for _, b := range p.LogBatches {
		res += len(b.Logs)
	}
	return res
}
