package api

import (
	"net/http"
	"time"
)

// Handler wraps the router with the middleware every request passes through
func Handler(router http.Handler, requestTimeout time.Duration) http.Handler {
	return TracingMiddleware(TimeoutMiddleware(requestTimeout)(router))
}
