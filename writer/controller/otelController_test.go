package controllerv1

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/golang/snappy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metrico/qryn-ai/writer/config"
	"github.com/metrico/qryn-ai/writer/model"
)

type stubService struct {
	mtx     sync.Mutex
	spans   []model.ParsedSpanBatch
	logs    []model.ParsedLogBatch
	err     error
	emitted int
}

func (s *stubService) IngestSpans(ctx context.Context, batches []model.ParsedSpanBatch) (int, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.spans = append(s.spans, batches...)
	return s.emitted, s.err
}

func (s *stubService) IngestLogs(ctx context.Context, batches []model.ParsedLogBatch) (int, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.logs = append(s.logs, batches...)
	return s.emitted, s.err
}

const tracesBody = `{"batches":[{"scope":{"name":"test"},"spans":[
  {"trace_id":"0af7651916cd43dd8448eb211c80319c","span_id":"b7ad6b7169203331","name":"a"},
  {"trace_id":"0af7651916cd43dd8448eb211c80319c","span_id":"b7ad6b7169203332","name":"b"}
]}]}`

func withStub(t *testing.T, svc *stubService) {
	prev := IngestService
	IngestService = svc
	t.Cleanup(func() { IngestService = prev })
}

func post(handler http.HandlerFunc, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/traces", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func tracesHandler() http.HandlerFunc {
	return OTelTracesV1(NewMiddlewareConfig(WithExtraMiddlewareDefault...))
}

func TestTracesAccepted(t *testing.T) {
	svc := &stubService{emitted: 1}
	withStub(t, svc)
	rec := post(tracesHandler(), []byte(tracesBody), map[string]string{
		"baggage": "posthog.distinct_id=user%201;prop=1, other = x",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"accepted":2,"emitted":1}`, rec.Body.String())
	require.Len(t, svc.spans, 1)
	assert.Equal(t, map[string]string{"posthog.distinct_id": "user 1", "other": "x"}, svc.spans[0].Baggage)
}

func TestLogsAccepted(t *testing.T) {
	svc := &stubService{}
	withStub(t, svc)
	handler := OTelLogsV1(NewMiddlewareConfig(WithExtraMiddlewareDefault...))
	rec := post(handler, []byte(`{"batches":[{"logs":[{"body":"a"},{"body":"b"},{"body":"c"}]}]}`), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"accepted":3,"emitted":0}`, rec.Body.String())
	require.Len(t, svc.logs, 1)
}

func TestContentEncodings(t *testing.T) {
	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	gw.Write([]byte(tracesBody))
	gw.Close()

	var sn bytes.Buffer
	sw := snappy.NewBufferedWriter(&sn)
	sw.Write([]byte(tracesBody))
	sw.Close()

	for enc, body := range map[string][]byte{"gzip": gz.Bytes(), "snappy": sn.Bytes()} {
		t.Run(enc, func(t *testing.T) {
			withStub(t, &stubService{})
			rec := post(tracesHandler(), body, map[string]string{"Content-Encoding": enc})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.JSONEq(t, `{"accepted":2,"emitted":0}`, rec.Body.String())
		})
	}
}

func TestErrors(t *testing.T) {
	for name, tc := range map[string]struct {
		body    string
		headers map[string]string
		svcErr  error
		code    int
	}{
		"bad json":        {body: `{"batches":[`, code: http.StatusBadRequest},
		"bad id":          {body: `{"batches":[{"spans":[{"trace_id":"zz"}]}]}`, code: http.StatusBadRequest},
		"encoding":        {body: tracesBody, headers: map[string]string{"Content-Encoding": "br"}, code: http.StatusBadRequest},
		"bad gzip":        {body: tracesBody, headers: map[string]string{"Content-Encoding": "gzip"}, code: http.StatusBadRequest},
		"content type":    {body: tracesBody, headers: map[string]string{"Content-Type": "text/plain"}, code: http.StatusBadRequest},
		"protobuf":        {body: "\x0a\x00", headers: map[string]string{"Content-Type": "application/x-protobuf"}, code: http.StatusNotImplemented},
		"service failure": {body: tracesBody, svcErr: assert.AnError, code: http.StatusInternalServerError},
	} {
		t.Run(name, func(t *testing.T) {
			withStub(t, &stubService{err: tc.svcErr})
			rec := post(tracesHandler(), []byte(tc.body), tc.headers)
			assert.Equal(t, tc.code, rec.Code)
			assert.Contains(t, rec.Body.String(), `"success":false`)
		})
	}
}

func TestBodyTooLarge(t *testing.T) {
	prev := config.Setting.HTTP.MaxBodySize
	config.Setting.HTTP.MaxBodySize = 64
	t.Cleanup(func() { config.Setting.HTTP.MaxBodySize = prev })
	withStub(t, &stubService{})
	rec := post(tracesHandler(), []byte(tracesBody), nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestParseBaggage(t *testing.T) {
	assert.Nil(t, parseBaggage(nil))
	assert.Nil(t, parseBaggage([]string{"", "novalue", "=x"}))
	assert.Equal(t, map[string]string{"a": "1", "b": "two words", "c": "3"},
		parseBaggage([]string{"a=1,b=two%20words;p", " c = 3 "}))
	assert.Equal(t, map[string]string{"k": "%zz"}, parseBaggage([]string{"k=%zz"}))
}

func TestContentTypeWithCharset(t *testing.T) {
	withStub(t, &stubService{})
	rec := post(tracesHandler(), []byte(strings.TrimSpace(tracesBody)),
		map[string]string{"Content-Type": "application/json; charset=utf-8"})
	assert.Equal(t, http.StatusOK, rec.Code)
}
