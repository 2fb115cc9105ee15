package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/stmary/giftshop-backend/api/responses"
	pkgAuth "github.com/stmary/giftshop-backend/pkg/auth"
	"github.com/stmary/giftshop-backend/pkg/auth/session"
	"github.com/stmary/giftshop-backend/pkg/config"
	pkgerrors "github.com/stmary/giftshop-backend/pkg/errors"
	"github.com/stmary/giftshop-backend/pkg/logger"
)

const bearerScheme = "bearer"

// ErrorWriter renders a rejected request.
type ErrorWriter func(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error)

// Auth admits requests carrying a valid access token whose session is still
// open in redis. A nil checker skips the session lookup.
func Auth(cfg config.JWTConfig, sessions session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return AuthWith(cfg, sessions, logg, responses.WriteError)
}

// AuthWith is Auth with rejections rendered by writeErr, for routes whose
// error body differs from the standard envelope.
func AuthWith(cfg config.JWTConfig, sessions session.AccessSessionChecker, logg *logger.Logger, writeErr ErrorWriter) func(http.Handler) http.Handler {
	if writeErr == nil {
		writeErr = responses.WriteError
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, err := authenticate(r.Context(), cfg, sessions, r.Header.Get("Authorization"))
			if err != nil {
				writeErr(r.Context(), logg, w, err)
				return
			}

			ctx := withIdentity(r.Context(), caller)
			if logg != nil {
				ctx = logg.WithFields(logg.WithUserID(ctx, caller.UserID.String()), map[string]any{
					"actor_role": string(caller.Role),
				})
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(ctx context.Context, cfg config.JWTConfig, sessions session.AccessSessionChecker, header string) (Identity, error) {
	raw, ok := bearerToken(header)
	if !ok {
		return Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	claims, err := pkgAuth.ParseAccessToken(cfg, raw)
	if err != nil {
		return Identity{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	if sessions != nil {
		open, err := sessions.HasSession(ctx, claims.ID)
		if err != nil {
			return Identity{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session")
		}
		if !open {
			return Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable")
		}
	}
	return Identity{UserID: claims.UserID, Role: claims.Role, AccessID: claims.ID}, nil
}

// bearerToken extracts the credentials of an "Authorization: Bearer" header.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
