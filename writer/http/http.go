package apihttp

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/metrico/qryn-ai/writer/utils/logger"
)

var _ mux.MiddlewareFunc = LogStatusMiddleware

// LogStatusMiddleware is a middleware function to capture and log the status code
func LogStatusMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		statusWriter := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(statusWriter, r)
		duration := time.Since(start)

		logInFO := logger.LogInfo{
			"[code]":   statusWriter.Status(),
			"method":   r.Method,
			"path":     r.URL.Path,
			"query":    r.URL.RawQuery,
			"duration": duration,
		}
		headers := make(map[string]string)
		for key, values := range w.Header() {
			headers[key] = strings.Join(values, ", ")
		}
		logInFO["response_headers"] = headers

		if statusWriter.Status() >= http.StatusInternalServerError {
			logger.WithFields(logInFO).Error("HTTP request")
			return
		}
		logger.WithFields(logInFO).Info("HTTP request")
	})
}

// statusResponseWriter is a custom ResponseWriter to capture the status code
type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code
func (w *statusResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// Status returns the captured status code
func (w *statusResponseWriter) Status() int {
	return w.statusCode
}
