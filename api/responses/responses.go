package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	zlog "github.com/rs/zerolog/log"

	pkgerrors "github.com/stmary/giftshop-backend/pkg/errors"
	"github.com/stmary/giftshop-backend/pkg/logger"
	"github.com/stmary/giftshop-backend/pkg/types"
)

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WriteError renders err with the public message for its code and logs the
// full chain, including postgres details when present.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	typed, status := classify(err)
	logFailure(ctx, logg, err, status)
	writeJSON(w, status, types.ErrorEnvelope{
		Error: types.Problem{
			Code:    string(typed.Code()),
			Message: typed.PublicMessage(),
			Details: typed.PublicDetails(),
		},
	})
}

// WriteProfileSuccess renders the {"success":true} shape used by the
// profile forms.
func WriteProfileSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, types.ProfileResult{Success: true})
}

// WriteProfileError renders {"error":"..."}; conflicts surface as 400.
func WriteProfileError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	typed, status := classify(err)
	if typed.Code() == pkgerrors.CodeConflict {
		status = http.StatusBadRequest
	}
	logFailure(ctx, logg, err, status)
	writeJSON(w, status, types.ProfileResult{Error: typed.PublicMessage()})
}

func classify(err error) (*pkgerrors.Error, int) {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	return typed, typed.Code().HTTPStatus()
}

func logFailure(ctx context.Context, logg *logger.Logger, err error, status int) {
	if logg == nil {
		return
	}
	ctx = logg.WithFields(ctx, pkgerrors.LogFields(err))
	if status >= http.StatusInternalServerError {
		logg.Error(ctx, "request failed", err)
		return
	}
	logg.Warn(ctx, "request rejected")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// Headers are gone by now; the client sees a truncated body.
		zlog.Error().Err(err).Int("status", status).Msg("encode response")
	}
}
