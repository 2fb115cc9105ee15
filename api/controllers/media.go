package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/stmary/giftshop-backend/api/responses"
	"github.com/stmary/giftshop-backend/internal/media"
	"github.com/stmary/giftshop-backend/pkg/enums"
	pkgerrors "github.com/stmary/giftshop-backend/pkg/errors"
	"github.com/stmary/giftshop-backend/pkg/logger"
)

// AdminMediaUpload stores a catalog or hero image and returns its public URL.
// Payment proofs only arrive through checkout.
func AdminMediaUpload(svc media.Service, maxImageBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+multipartFormBudget)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "image is too large"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid upload form"))
			return
		}
		defer func() {
			_ = r.MultipartForm.RemoveAll()
		}()

		kind := enums.MediaKind(strings.TrimSpace(r.FormValue("kind")))
		if !kind.IsValid() || kind == enums.MediaKindPaymentProof {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "kind must be one of category, product, hero"))
			return
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "file is required"))
			return
		}
		defer file.Close()

		upload, err := svc.Upload(r.Context(), media.UploadInput{Kind: kind, OwnerID: userID, Body: file})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, upload)
	}
}
