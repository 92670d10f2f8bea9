package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/notifyd/notifyd/internal/observability"
)

// RequestID header key
const RequestIDHeader = "X-Request-ID"

// RequestID middleware adds a unique request ID to each request.
// It works alongside chi's built-in RequestID middleware.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())
		if requestID == "" {
			requestID = r.Header.Get(RequestIDHeader)
		}
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set(RequestIDHeader, requestID)

		ctx := observability.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from context, falling back to chi's key.
func GetRequestID(ctx context.Context) string {
	if requestID := observability.RequestIDFromContext(ctx); requestID != "" {
		return requestID
	}
	if ctx == nil {
		return ""
	}
	return middleware.GetReqID(ctx)
}
