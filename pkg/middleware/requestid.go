package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/clinsight/ade-signal-pipeline/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestID ensures every request carries a request ID, generating one when
// the client did not supply it, and stores it in the request context for
// log correlation.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = newRequestID()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := logger.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(buf)
}
