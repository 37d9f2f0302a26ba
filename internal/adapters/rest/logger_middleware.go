package rest

import (
	"net/http"
	"time"

	"property-sync-service/internal/contextkeys"
	"property-sync-service/internal/core/port"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const headerTraceID = "X-Trace-ID"

// LoggerMiddleware кладет в контекст запроса trace_id и логгер с ним.
// Чужой trace_id принимается только в виде UUID, иначе генерируется новый.
func LoggerMiddleware(logger port.LoggerPort) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := r.Header.Get(headerTraceID)
			if _, err := uuid.Parse(traceID); err != nil {
				traceID = uuid.New().String()
			}

			// use case и адаптеры получают логгер без http-полей
			ctx, tracedLogger := contextkeys.WithTrace(r.Context(), logger, traceID)
			httpLogger := tracedLogger.WithFields(port.Fields{
				"http_method": r.Method,
				"http_path":   r.URL.Path,
				"remote_addr": r.RemoteAddr,
			})

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Header().Set(headerTraceID, traceID)
			started := time.Now()

			httpLogger.Debug("Request started", nil)
			next.ServeHTTP(ww, r.WithContext(ctx))

			fields := port.Fields{
				"status_code":   ww.Status(),
				"bytes_written": ww.BytesWritten(),
				"duration_ms":   time.Since(started).Milliseconds(),
			}
			if ww.Status() >= http.StatusInternalServerError {
				httpLogger.Warn("Request failed", fields)
				return
			}
			httpLogger.Info("Request finished", fields)
		})
	}
}
