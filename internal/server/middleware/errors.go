package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	apperrors "github.com/notifyd/notifyd/internal/errors"
	"github.com/notifyd/notifyd/internal/metrics"
	"github.com/notifyd/notifyd/internal/observability"
)

// Recovery middleware recovers from panics and responds with a 500 envelope.
// The stack trace is logged, never returned to the caller.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				if observability.ServerLogger != nil {
					observability.ServerLogger.Error("Recovered from panic",
						zap.Any("panic", rec),
						zap.String("path", r.URL.Path),
						zap.String("request_id", GetRequestID(r.Context())),
						zap.String("stack_trace", string(debug.Stack())))
				}

				envelope := apperrors.WrapInternal(r.Context(), fmt.Errorf("panic: %v", rec), "internal server error")
				envelope, _ = envelope.WithSeverity(gferrors.SeverityCritical)

				metrics.RecordPanic()
				apperrors.RespondWithEnvelope(w, r, envelope)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
