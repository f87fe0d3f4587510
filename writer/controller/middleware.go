package controllerv1

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/golang/snappy"
	jsoniter "github.com/json-iterator/go"

	"github.com/metrico/qryn-ai/writer/config"
	custom_errors "github.com/metrico/qryn-ai/writer/utils/errors"
	"github.com/metrico/qryn-ai/writer/utils/unmarshal"
)

func WithPreRequest(preRequest Requester) BuildOption {
	return func(ctx *PusherCtx) *PusherCtx {
		ctx.PreRequest = append(ctx.PreRequest, preRequest)
		return ctx
	}
}

func withPostRequest(postRequest Requester) BuildOption {
	return func(ctx *PusherCtx) *PusherCtx {
		ctx.PostRequest = append(ctx.PostRequest, postRequest)
		return ctx
	}
}

func withSimpleParser(contentType string, parser Parser) BuildOption {
	return func(ctx *PusherCtx) *PusherCtx {
		ctx.Parser[contentType] = func(w http.ResponseWriter, r *http.Request) error {
			return doParse(r, parser)
		}
		return ctx
	}
}

// withIngestResponse writes the accepted and emitted counters of the request.
func withIngestResponse(status int) BuildOption {
	return withPostRequest(func(w http.ResponseWriter, r *http.Request) error {
		respBody, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(getResult(r))
		if err != nil {
			return err
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write(respBody)
		return nil
	})
}

type readColser struct {
	io.Reader
}

func (rc readColser) Close() error { return nil }

// WithOverallContextMiddleware limits the body size before and after
// decompression, unwraps the Content-Encoding and decodes the baggage header.
var WithOverallContextMiddleware = WithPreRequest(func(w http.ResponseWriter, r *http.Request) error {
	limit := int64(config.Setting.HTTP.MaxBodySize.Bytes())
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	switch r.Header.Get("Content-Encoding") {
	case "", "identity":
		// No encoding, do nothing
	case "gzip":
		reader, err := gzip.NewReader(r.Body)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return custom_errors.ErrBodyTooLarge
			}
			return custom_errors.New400Error("invalid gzip body")
		}
		r.Body = http.MaxBytesReader(w, readColser{reader}, limit)
	case "snappy":
		r.Body = http.MaxBytesReader(w, readColser{snappy.NewReader(r.Body)}, limit)
	default:
		return custom_errors.New400Error(fmt.Sprintf("%s encoding not supported", r.Header.Get("Content-Encoding")))
	}

	ctx := context.WithValue(r.Context(), unmarshal.BaggageCtxKey, parseBaggage(r.Header.Values("baggage")))
	*r = *r.WithContext(ctx)
	return nil
})

var withIngestService = WithPreRequest(func(w http.ResponseWriter, r *http.Request) error {
	ctx := context.WithValue(r.Context(), ingestServiceCtxKey, IngestService)
	ctx = context.WithValue(ctx, ingestResultCtxKey, &IngestResult{})
	*r = *r.WithContext(ctx)
	return nil
})

// parseBaggage decodes W3C baggage headers into a flat map. Member
// properties are dropped, malformed members skipped.
func parseBaggage(headers []string) map[string]string {
	var res map[string]string
	for _, h := range headers {
		for _, member := range strings.Split(h, ",") {
			kv, _, _ := strings.Cut(member, ";")
			k, v, ok := strings.Cut(kv, "=")
			k = strings.TrimSpace(k)
			if !ok || k == "" {
				continue
			}
			v = strings.TrimSpace(v)
			if dec, err := url.PathUnescape(v); err == nil {
				v = dec
			}
			if res == nil {
				res = map[string]string{}
			}
			res[k] = v
		}
	}
	return res
}
