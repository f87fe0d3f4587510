package controllerv1

import (
	"net/http"

	"github.com/metrico/qryn-ai/writer/utils/unmarshal"
)

// OTelTracesV1 accepts span batches and answers with the number of spans
// accepted and the events emitted for them.
func OTelTracesV1(cfg MiddlewareConfig) func(w http.ResponseWriter, r *http.Request) {
	return Build(
		append(cfg.ExtraMiddleware,
			withIngestService,
			withSimpleParser("application/json", unmarshal.UnmarshalOTelSpansJSON),
			withSimpleParser("application/x-protobuf", unmarshal.UnmarshalOTLPSpansProto),
			withIngestResponse(http.StatusOK))...)
}

func OTelLogsV1(cfg MiddlewareConfig) func(w http.ResponseWriter, r *http.Request) {
	return Build(
		append(cfg.ExtraMiddleware,
			withIngestService,
			withSimpleParser("application/json", unmarshal.UnmarshalOTelLogsJSON),
			withSimpleParser("application/x-protobuf", unmarshal.UnmarshalOTLPLogsProto),
			withIngestResponse(http.StatusOK))...)
}

var WithExtraMiddlewareDefault = []BuildOption{
	WithOverallContextMiddleware,
}
