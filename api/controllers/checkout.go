package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/stmary/giftshop-backend/api/responses"
	checkoutsvc "github.com/stmary/giftshop-backend/internal/checkout"
	pkgcheckout "github.com/stmary/giftshop-backend/pkg/checkout"
	pkgerrors "github.com/stmary/giftshop-backend/pkg/errors"
	"github.com/stmary/giftshop-backend/pkg/logger"
)

const (
	proofField          = "payment_proof"
	multipartMemory     = 1 << 20
	multipartFormBudget = 1 << 20
)

// Checkout accepts either a JSON body or a multipart form carrying the
// checkout fields plus the payment_proof file.
func Checkout(svc checkoutsvc.Service, maxProofBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input checkoutsvc.PlaceOrderInput
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			r.Body = http.MaxBytesReader(w, r.Body, maxProofBytes+multipartFormBudget)
			if err := r.ParseMultipartForm(multipartMemory); err != nil {
				responses.WriteError(r.Context(), logg, w, multipartError(err, maxProofBytes))
				return
			}
			defer func() {
				_ = r.MultipartForm.RemoveAll()
			}()

			input.Form = formFromMultipart(r.MultipartForm)
			proof, err := proofFile(r)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if proof != nil {
				defer proof.Close()
				input.Proof = proof
			}
		} else {
			// JSON checkout covers cash orders; proofs need multipart.
			if err := decodeCheckoutJSON(r, &input.Form); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		result, err := svc.PlaceOrder(r.Context(), userID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func formFromMultipart(form *multipart.Form) pkgcheckout.Input {
	value := func(key string) string {
		if vals := form.Value[key]; len(vals) > 0 {
			return vals[0]
		}
		return ""
	}
	return pkgcheckout.Input{
		DeliveryType:  value("delivery_type"),
		PaymentMethod: value("payment_method"),
		Address:       value("address"),
		Phone:         value("phone"),
		Notes:         value("notes"),
	}
}

// proofFile returns nil when no file was attached; the service decides
// whether the chosen payment method needs one.
func proofFile(r *http.Request) (multipart.File, error) {
	file, header, err := r.FormFile(proofField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment proof upload")
	}
	if header.Size == 0 {
		_ = file.Close()
		return nil, nil
	}
	return file, nil
}

func multipartError(err error, maxProofBytes int64) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("payment proof must be at most %d MB", maxProofBytes>>20))
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid checkout form")
}

// decodeCheckoutJSON skips validation here; PlaceOrder validates the form
// with its conditional rules.
func decodeCheckoutJSON(r *http.Request, dest *pkgcheckout.Input) error {
	body := http.MaxBytesReader(nil, r.Body, multipartFormBudget)
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return pkgerrors.New(pkgerrors.CodeValidation, "request body is required")
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body")
	}
	return nil
}

