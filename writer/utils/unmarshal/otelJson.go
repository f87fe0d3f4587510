package unmarshal

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/metrico/qryn-ai/writer/model"
	customErrors "github.com/metrico/qryn-ai/writer/utils/errors"
)

// BaggageCtxKey is the request context key of the decoded baggage header.
const BaggageCtxKey = "baggage"

const batchesField = "batches"

var jsonApi = jsoniter.ConfigCompatibleWithStandardLibrary

// otelJsonDec streams {"batches":[...]} and hands every batch over as soon as
// it is decoded.
type otelJsonDec[T any] struct {
	ctx      *ParserCtx
	onBatch  func(batch T) error
	validate func(batch *T) error
}

// errRecordingReader keeps the first read failure, the iterator reports it
// only as text inside its own decode errors.
type errRecordingReader struct {
	io.Reader
	err error
}

func (r *errRecordingReader) Read(p []byte) (int, error) {
	n, err := r.Reader.Read(p)
	if err != nil && err != io.EOF && r.err == nil {
		r.err = err
	}
	return n, err
}

func (d *otelJsonDec[T]) Decode() error {
	var iter *jsoniter.Iterator
	var body *errRecordingReader
	if d.ctx.bodyBuffer != nil {
		iter = jsoniter.ParseBytes(jsonApi, d.ctx.bodyBuffer)
	} else {
		body = &errRecordingReader{Reader: d.ctx.bodyReader}
		iter = jsoniter.Parse(jsonApi, body, 4096)
	}
	seen := false
	for field := iter.ReadObject(); field != ""; field = iter.ReadObject() {
		if field != batchesField {
			iter.Skip()
			continue
		}
		seen = true
		for iter.ReadArray() {
			var batch T
			iter.ReadVal(&batch)
			if iter.Error != nil {
				break
			}
			if err := d.validate(&batch); err != nil {
				return customErrors.NewUnmarshalError(err)
			}
			if err := d.onBatch(batch); err != nil {
				return err
			}
		}
		if iter.Error != nil {
			break
		}
	}
	if iter.Error != nil {
		if body != nil && body.err != nil {
			if err := wrapReadError(body.err); err != body.err {
				return err
			}
		}
		return customErrors.NewUnmarshalError(iter.Error)
	}
	if !seen {
		return customErrors.New400Error(`"batches" field is required`)
	}
	return nil
}

type otelSpansJsonDec struct {
	otelJsonDec[model.ParsedSpanBatch]
}

func (d *otelSpansJsonDec) SetOnBatch(h onSpanBatchHandler) {
	d.onBatch = h
}

type otelLogsJsonDec struct {
	otelJsonDec[model.ParsedLogBatch]
}

func (d *otelLogsJsonDec) SetOnBatch(h onLogBatchHandler) {
	d.onBatch = h
}

func validateSpanBatch(batch *model.ParsedSpanBatch) error {
	for i := range batch.Spans {
		s := &batch.Spans[i]
		var err error
		if s.TraceID, err = normalizeID(s.TraceID, "trace_id", 16, 32); err != nil {
			return err
		}
		if s.SpanID, err = normalizeID(s.SpanID, "span_id", 8, 16); err != nil {
			return err
		}
		if s.ParentSpanID, err = normalizeID(s.ParentSpanID, "parent_span_id", 8, 16); err != nil {
			return err
		}
	}
	return nil
}

func validateLogBatch(batch *model.ParsedLogBatch) error {
	for i := range batch.Logs {
		l := &batch.Logs[i]
		var err error
		if l.TraceID, err = normalizeID(l.TraceID, "trace_id", 16, 32); err != nil {
			return err
		}
		if l.SpanID, err = normalizeID(l.SpanID, "span_id", 8, 16); err != nil {
			return err
		}
	}
	return nil
}

// normalizeID lower-cases a hex id. Empty ids are allowed.
func normalizeID(id, name string, lengths ...int) (string, error) {
	if id == "" {
		return id, nil
	}
	id = strings.ToLower(id)
	okLen := false
	for _, l := range lengths {
		okLen = okLen || len(id) == l
	}
	if _, err := hex.DecodeString(id); err != nil || !okLen {
		return "", fmt.Errorf("invalid %s %q", name, id)
	}
	return id, nil
}

// wrapReadError maps a body size overflow to 413 and returns other errors
// unchanged.
func wrapReadError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return customErrors.ErrBodyTooLarge
	}
	return err
}

var UnmarshalOTelSpansJSON = Build(
	withBaggageFromCtx(BaggageCtxKey),
	withSpansParser(func(ctx *ParserCtx) iSpansParser {
		return &otelSpansJsonDec{otelJsonDec[model.ParsedSpanBatch]{ctx: ctx, validate: validateSpanBatch}}
	}))

var UnmarshalOTelLogsJSON = Build(
	withBaggageFromCtx(BaggageCtxKey),
	withLogsParser(func(ctx *ParserCtx) iLogsParser {
		return &otelLogsJsonDec{otelJsonDec[model.ParsedLogBatch]{ctx: ctx, validate: validateLogBatch}}
	}))
