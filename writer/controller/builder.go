package controllerv1

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/metrico/qryn-ai/writer/metric"
	"github.com/metrico/qryn-ai/writer/service"
	customErrors "github.com/metrico/qryn-ai/writer/utils/errors"
	"github.com/metrico/qryn-ai/writer/utils/logger"
	"github.com/metrico/qryn-ai/writer/utils/unmarshal"
)

const (
	ingestServiceCtxKey = "ingestService"
	ingestResultCtxKey  = "ingestResult"
)

type MiddlewareConfig struct {
	ExtraMiddleware []BuildOption
}

// NewMiddlewareConfig generates a MiddlewareConfig from given middleware constructors.
func NewMiddlewareConfig(middlewares ...BuildOption) MiddlewareConfig {
	return MiddlewareConfig{
		ExtraMiddleware: append([]BuildOption{}, middlewares...),
	}
}

type Requester func(w http.ResponseWriter, r *http.Request) error
type Parser = unmarshal.ParsingFunction

type BuildOption func(ctx *PusherCtx) *PusherCtx

type PusherCtx struct {
	PreRequest  []Requester
	PostRequest []Requester
	Parser      map[string]Requester
}

// IngestResult is the response body of the ingestion endpoints.
type IngestResult struct {
	Accepted int `json:"accepted"`
	Emitted  int `json:"emitted"`
}

func (pusherCtx *PusherCtx) Do(w http.ResponseWriter, r *http.Request) error {
	var err error
	for _, p := range pusherCtx.PreRequest {
		err = p(w, r)
		if err != nil {
			return err
		}
	}

	err = pusherCtx.DoParse(r, w)
	if err != nil {
		return err
	}

	for _, p := range pusherCtx.PostRequest {
		err = p(w, r)
		if err != nil {
			return err
		}
	}
	return nil
}

func ErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	if e, ok := customErrors.Unwrap[*customErrors.UnMarshalError](err); ok {
		metric.JsonParseErrors.Inc()
		writeErrorResponse(w, e.GetCode(), e.Error())
		return
	}
	if e, ok := customErrors.Unwrap[customErrors.IQrynError](err); ok {
		writeErrorResponse(w, e.GetCode(), e.Error())
		return
	}
	if strings.Contains(err.Error(), "connection reset by peer") {
		metric.ConnectionResetByPeer.Inc()
		return
	}
	logger.Error(err)
	writeErrorResponse(w, http.StatusInternalServerError, "internal server error")
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"message": message,
	})
}

func (pusherCtx *PusherCtx) DoParse(r *http.Request, w http.ResponseWriter) error {
	if len(pusherCtx.Parser) == 0 {
		return nil
	}
	contentType := r.Header.Get("Content-Type")

	var parser Requester
	for k, p := range pusherCtx.Parser {
		if strings.HasPrefix(contentType, k) {
			parser = p
			break
		}
	}
	if p, ok := pusherCtx.Parser["*"]; parser == nil && ok {
		parser = p
	}

	if parser == nil {
		return customErrors.New400Error("Content-Type not supported")
	}
	return parser(w, r)
}

func Build(options ...BuildOption) func(w http.ResponseWriter, r *http.Request) {
	pusherCtx := &PusherCtx{
		Parser: map[string]Requester{},
	}
	for _, o := range options {
		pusherCtx = o(pusherCtx)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		err := pusherCtx.Do(w, r)
		if err != nil {
			ErrorHandler(w, r, err)
		}
	}
}

func getService(r *http.Request) service.IIngestService {
	svc, _ := r.Context().Value(ingestServiceCtxKey).(service.IIngestService)
	return svc
}

func getResult(r *http.Request) *IngestResult {
	res, _ := r.Context().Value(ingestResultCtxKey).(*IngestResult)
	if res == nil {
		res = &IngestResult{}
		*r = *r.WithContext(context.WithValue(r.Context(), ingestResultCtxKey, res))
	}
	return res
}

// doParse hands every parsed chunk to the ingest service as soon as it
// arrives. Events already emitted for earlier chunks stay emitted when a
// later chunk fails.
func doParse(r *http.Request, parser Parser) error {
	svc := getService(r)
	if svc == nil {
		return fmt.Errorf("ingest service is not initialized")
	}
	result := getResult(r)
	res := parser(r.Context(), r.Body)
	defer func() {
		go func() {
			for range res {
			}
		}()
	}()
	for response := range res {
		if response.Error != nil {
			return response.Error
		}
		result.Accepted += response.Size()
		if len(response.SpanBatches) > 0 {
			n, err := svc.IngestSpans(r.Context(), response.SpanBatches)
			result.Emitted += n
			if err != nil {
				return err
			}
		}
		if len(response.LogBatches) > 0 {
			n, err := svc.IngestLogs(r.Context(), response.LogBatches)
			result.Emitted += n
			if err != nil {
				return err
			}
		}
	}
	return nil
}
