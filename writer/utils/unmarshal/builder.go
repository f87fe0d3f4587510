package unmarshal

import (
	"context"
	"fmt"
	"io"
	"runtime/debug"

	"github.com/metrico/qryn-ai/writer/model"
	"github.com/metrico/qryn-ai/writer/utils/logger"
)

// records per ParserResponse before the doer flushes
const maxRecordsPerResponse = 1000

type ParsingFunction func(ctx context.Context, body io.Reader) chan *model.ParserResponse

type ParserCtx struct {
	bodyReader io.Reader
	bodyBuffer []byte
	ctx        context.Context
	baggage    map[string]string
}

type parserFn func(ctx *ParserCtx) error

type onSpanBatchHandler func(batch model.ParsedSpanBatch) error
type onLogBatchHandler func(batch model.ParsedLogBatch) error

type iSpansParser interface {
	Decode() error
	SetOnBatch(h onSpanBatchHandler)
}

type iLogsParser interface {
	Decode() error
	SetOnBatch(h onLogBatchHandler)
}

type parserBuilder struct {
	PreParse    []parserFn
	SpansParser func(ctx *ParserCtx) iSpansParser
	LogsParser  func(ctx *ParserCtx) iLogsParser
}

type parserDoer struct {
	PreParse    []parserFn
	SpansParser iSpansParser
	LogsParser  iLogsParser
	ctx         *ParserCtx

	res         chan *model.ParserResponse
	pending     *model.ParserResponse
	pendingSize int
}

func (p *parserDoer) Do() chan *model.ParserResponse {
	p.res = make(chan *model.ParserResponse)
	for _, fn := range p.PreParse {
		err := fn(p.ctx)
		if err != nil {
			go func() { p.res <- &model.ParserResponse{Error: err}; close(p.res) }()
			return p.res
		}
	}
	p.pending = &model.ParserResponse{}

	var decode func() error
	if p.SpansParser != nil {
		p.SpansParser.SetOnBatch(p.onSpanBatch)
		decode = p.SpansParser.Decode
	} else if p.LogsParser != nil {
		p.LogsParser.SetOnBatch(p.onLogBatch)
		decode = p.LogsParser.Decode
	} else {
		go func() { close(p.res) }()
		return p.res
	}

	go func() {
		defer p.tamePanic()
		err := decode()
		if err != nil {
			p.res <- &model.ParserResponse{Error: err}
			close(p.res)
			return
		}
		p.flush()
		close(p.res)
	}()
	return p.res
}

func (p *parserDoer) tamePanic() {
	if err := recover(); err != nil {
		logger.Error(err, " stack:", string(debug.Stack()))
		p.res <- &model.ParserResponse{Error: fmt.Errorf("panic: %v", err)}
		close(p.res)
	}
}

func (p *parserDoer) onSpanBatch(batch model.ParsedSpanBatch) error {
	batch.Baggage = p.ctx.baggage
	p.pending.SpanBatches = append(p.pending.SpanBatches, batch)
	p.maybeFlush(len(batch.Spans))
	return nil
}

func (p *parserDoer) onLogBatch(batch model.ParsedLogBatch) error {
	batch.Baggage = p.ctx.baggage
	p.pending.LogBatches = append(p.pending.LogBatches, batch)
	p.maybeFlush(len(batch.Logs))
	return nil
}

func (p *parserDoer) maybeFlush(added int) {
	p.pendingSize += added
	if p.pendingSize >= maxRecordsPerResponse {
		p.flush()
	}
}

func (p *parserDoer) flush() {
	if len(p.pending.SpanBatches) == 0 && len(p.pending.LogBatches) == 0 {
		return
	}
	p.res <- p.pending
	p.pending = &model.ParserResponse{}
	p.pendingSize = 0
}

type buildOption func(builder *parserBuilder) *parserBuilder

func Build(options ...buildOption) ParsingFunction {
	builder := &parserBuilder{}
	for _, o := range options {
		builder = o(builder)
	}
	return func(ctx context.Context, body io.Reader) chan *model.ParserResponse {
		doer := &parserDoer{
			ctx: &ParserCtx{
				bodyReader: body,
				ctx:        ctx,
			},
			PreParse: builder.PreParse,
		}
		if builder.SpansParser != nil {
			doer.SpansParser = builder.SpansParser(doer.ctx)
		} else if builder.LogsParser != nil {
			doer.LogsParser = builder.LogsParser(doer.ctx)
		}
		return doer.Do()
	}
}

func withSpansParser(fn func(ctx *ParserCtx) iSpansParser) buildOption {
	return func(builder *parserBuilder) *parserBuilder {
		builder.SpansParser = fn
		return builder
	}
}

func withLogsParser(fn func(ctx *ParserCtx) iLogsParser) buildOption {
	return func(builder *parserBuilder) *parserBuilder {
		builder.LogsParser = fn
		return builder
	}
}

// withBaggageFromCtx picks up the decoded W3C baggage header.
func withBaggageFromCtx(key string) buildOption {
	return func(builder *parserBuilder) *parserBuilder {
		builder.PreParse = append(builder.PreParse, func(ctx *ParserCtx) error {
			if res, ok := ctx.ctx.Value(key).(map[string]string); ok {
				ctx.baggage = res
			}
			return nil
		})
		return builder
	}
}

var withBufferedBody buildOption = func(builder *parserBuilder) *parserBuilder {
	builder.PreParse = append(builder.PreParse, func(ctx *ParserCtx) error {
		var err error
		ctx.bodyBuffer, err = io.ReadAll(ctx.bodyReader)
		if err != nil {
			return wrapReadError(err)
		}
		ctx.bodyReader = nil
		return nil
	})
	return builder
}

func withPreParse(fn parserFn) buildOption {
	return func(builder *parserBuilder) *parserBuilder {
		builder.PreParse = append(builder.PreParse, fn)
		return builder
	}
}
