package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
)

const maxRequestIDLength = 64

// RequestID reuses an inbound X-Request-ID when it is safe to log, and
// generates one otherwise. The ID is echoed on the response so callers can
// correlate the job they created with the service's log lines.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := sanitizeRequestID(r.Header.Get("X-Request-ID"))
		if rid == "" {
			rid = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey, rid)
		w.Header().Set("X-Request-ID", rid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sanitizeRequestID rejects inbound IDs that would pollute structured logs:
// overlong values and anything outside printable ASCII without spaces.
func sanitizeRequestID(rid string) string {
	if rid == "" || len(rid) > maxRequestIDLength {
		return ""
	}
	for _, c := range rid {
		if c <= ' ' || c > '~' {
			return ""
		}
	}
	return rid
}

func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}
