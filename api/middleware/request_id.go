package middleware

import (
	"context"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/stmary/giftshop-backend/pkg/logger"
)

const (
	requestIDHeader = "X-Request-Id"
	minRequestIDLen = 8
	maxRequestIDLen = 64
)

// RequestID keeps a well-formed inbound X-Request-Id or mints a new one,
// echoes it on the response and stores it where chi's GetReqID finds it.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if !plausibleRequestID(id) {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)

			ctx := context.WithValue(r.Context(), chimw.RequestIDKey, id)
			if logg != nil {
				ctx = logg.WithRequestID(ctx, id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequestIDFromContext(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}

// plausibleRequestID accepts proxy-assigned ids made of [A-Za-z0-9._-].
func plausibleRequestID(id string) bool {
	if len(id) < minRequestIDLen || len(id) > maxRequestIDLen {
		return false
	}
	return strings.IndexFunc(id, func(c rune) bool {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			return false
		case c == '.' || c == '_' || c == '-':
			return false
		}
		return true
	}) < 0
}
