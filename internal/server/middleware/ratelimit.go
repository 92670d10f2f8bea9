package middleware

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/notifyd/notifyd/internal/errors"
	"github.com/notifyd/notifyd/internal/ratelimit"
)

// Limiter decides whether a client may proceed.
type Limiter interface {
	Check(ctx context.Context, clientKey string) ratelimit.Decision
}

// DefaultExemptPrefixes are never rate limited so probes and scrapes keep working.
var DefaultExemptPrefixes = []string{"/health", "/metrics", "/version"}

// RateLimitResponse is the 429 body.
type RateLimitResponse = apperrors.RateLimitResponse

// RateLimit rejects requests the limiter denies with 429 and a Retry-After
// header. A nil limiter passes everything through.
func RateLimit(limiter Limiter, exemptPrefixes ...string) func(http.Handler) http.Handler {
	if len(exemptPrefixes) == 0 {
		exemptPrefixes = DefaultExemptPrefixes
	}

	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isExempt(r.URL.Path, exemptPrefixes) {
				next.ServeHTTP(w, r)
				return
			}

			decision := limiter.Check(r.Context(), ratelimit.ClientKey(r))
			if decision.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			apperrors.RespondRateLimited(w, r, decision.RetryAfter)
		})
	}
}

func isExempt(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if path == prefix || strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")+"/") {
			return true
		}
	}
	return false
}
