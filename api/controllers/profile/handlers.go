// Package profile serves the account edit forms, which answer with a flat
// {"success":true} or {"error":"..."} body instead of the API envelope.
package profile

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/stmary/giftshop-backend/api/middleware"
	"github.com/stmary/giftshop-backend/api/responses"
	"github.com/stmary/giftshop-backend/internal/users"
	pkgerrors "github.com/stmary/giftshop-backend/pkg/errors"
	"github.com/stmary/giftshop-backend/pkg/logger"
)

const maxFormBytes = 16 << 10

func UpdateEmail(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := caller(w, r, logg)
		if !ok {
			return
		}
		var body users.UpdateEmailRequest
		if err := decode(r, &body); err != nil {
			responses.WriteProfileError(r.Context(), logg, w, err)
			return
		}
		if err := svc.UpdateEmail(r.Context(), userID, body); err != nil {
			responses.WriteProfileError(r.Context(), logg, w, err)
			return
		}
		responses.WriteProfileSuccess(w)
	}
}

func UpdateName(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := caller(w, r, logg)
		if !ok {
			return
		}
		var body users.UpdateNameRequest
		if err := decode(r, &body); err != nil {
			responses.WriteProfileError(r.Context(), logg, w, err)
			return
		}
		if err := svc.UpdateFullName(r.Context(), userID, body); err != nil {
			responses.WriteProfileError(r.Context(), logg, w, err)
			return
		}
		responses.WriteProfileSuccess(w)
	}
}

func caller(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (uuid.UUID, bool) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == uuid.Nil {
		responses.WriteProfileError(r.Context(), logg, w, pkgerrors.Unauthorized())
		return uuid.Nil, false
	}
	return userID, true
}

// decode leaves field validation to the service, which reports the first
// violation in the form's own wording.
func decode(r *http.Request, dest any) error {
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxFormBytes)).Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body")
	}
	return nil
}
