package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SlowRequestThreshold is the duration above which a request is logged as slow
const SlowRequestThreshold = time.Second

type requestIDKey struct{}

// RequestIDFromContext returns the id TracingMiddleware gave the request
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// TracingMiddleware tags every request with an id, echoes it in the
// X-Request-ID header and logs server errors and slow requests
func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		startTime := time.Now()
		requestID := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)

		wrappedWriter := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}
		next.ServeHTTP(wrappedWriter, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, requestID)))

		totalDuration := time.Since(startTime)
		switch {
		case wrappedWriter.statusCode >= http.StatusInternalServerError:
			zap.S().Errorw("Request failed",
				"requestId", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"duration", totalDuration,
				"status", wrappedWriter.statusCode,
			)
		case totalDuration > SlowRequestThreshold:
			zap.S().Warnw("Slow request detected",
				"requestId", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"duration", totalDuration,
				"status", wrappedWriter.statusCode,
			)
		}
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
