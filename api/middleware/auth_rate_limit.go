package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/stmary/giftshop-backend/api/responses"
	pkgerrors "github.com/stmary/giftshop-backend/pkg/errors"
	"github.com/stmary/giftshop-backend/pkg/logger"
)

const maxThrottledBody = 64 << 10

// RateLimiterStore is satisfied by the redis client.
type RateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimit caps attempts against one auth endpoint within Window. PerIP
// counts by client address and PerEmail by the hashed "email" field of the
// JSON body. Zero disables a dimension.
type RateLimit struct {
	Name     string
	Window   time.Duration
	PerIP    int
	PerEmail int
}

func (l RateLimit) active() bool {
	return l.Window > 0 && (l.PerIP > 0 || l.PerEmail > 0)
}

type rateBucket struct {
	dimension string
	value     string
	limit     int
}

// Throttle rejects requests over the limit with 429 and a Retry-After
// header. Run it after chi's RealIP so RemoteAddr holds the client address.
func Throttle(limit RateLimit, store RateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	name := strings.ToLower(strings.TrimSpace(limit.Name))
	if name == "" {
		name = "auth"
	}
	return func(next http.Handler) http.Handler {
		if store == nil || !limit.active() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			buckets, err := bucketsFor(r, limit)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body"))
				return
			}

			for _, b := range buckets {
				scope := "auth:" + name + ":" + b.dimension + ":" + b.value
				allowed, attempts, err := store.FixedWindowAllow(ctx, scope, int64(b.limit), limit.Window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if allowed {
					continue
				}
				if logg != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{
						"limit":     name,
						"dimension": b.dimension,
						"attempts":  attempts,
					}), "auth attempt throttled")
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Max(1, math.Ceil(limit.Window.Seconds())))))
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bucketsFor lists the counters a request falls into. Reading the email
// consumes the body, so it is restored for the handler.
func bucketsFor(r *http.Request, limit RateLimit) ([]rateBucket, error) {
	var buckets []rateBucket
	if limit.PerIP > 0 {
		if ip := remoteIP(r.RemoteAddr); ip != "" {
			buckets = append(buckets, rateBucket{dimension: "ip", value: ip, limit: limit.PerIP})
		}
	}
	if limit.PerEmail == 0 || r.Body == nil {
		return buckets, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxThrottledBody+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxThrottledBody {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request body too large")
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	var payload struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if email := strings.ToLower(strings.TrimSpace(payload.Email)); email != "" {
			sum := sha256.Sum256([]byte(email))
			buckets = append(buckets, rateBucket{dimension: "email", value: hex.EncodeToString(sum[:]), limit: limit.PerEmail})
		}
	}
	return buckets, nil
}

func remoteIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.TrimSpace(addr)
}
