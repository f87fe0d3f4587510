package unmarshal

import (
	customErrors "github.com/metrico/qryn-ai/writer/utils/errors"
)

// OTLP protobuf payloads are accepted on the same routes but not decoded.
var notImplemented parserFn = func(ctx *ParserCtx) error {
	return customErrors.ErrNotImplemented
}

var UnmarshalOTLPSpansProto = Build(
	withBufferedBody,
	withPreParse(notImplemented))

var UnmarshalOTLPLogsProto = Build(
	withBufferedBody,
	withPreParse(notImplemented))
