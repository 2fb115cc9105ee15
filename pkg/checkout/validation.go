package checkout

import (
	"fmt"
	"strings"

	pkgerrors "github.com/stmary/giftshop-backend/pkg/errors"
	"github.com/stmary/giftshop-backend/pkg/enums"
	"github.com/stmary/giftshop-backend/pkg/validate"
)

// Input is the raw checkout form as submitted by the storefront.
type Input struct {
	DeliveryType  string `json:"delivery_type" validate:"required,oneof=delivery pickup"`
	PaymentMethod string `json:"payment_method" validate:"required,oneof=cash instapay"`
	Address       string `json:"address" validate:"required_if=DeliveryType delivery,omitempty,runes_between=10 500"`
	Phone         string `json:"phone" validate:"required_if=DeliveryType delivery,omitempty,eg_phone"`
	Notes         string `json:"notes" validate:"max=1000"`
}

// Details is a validated checkout form. Address and Phone are nil for pickup.
type Details struct {
	DeliveryType  enums.DeliveryType
	PaymentMethod enums.PaymentMethod
	Address       *string
	Phone         *string
	Notes         *string
}

// ProofRule bounds an uploaded proof of payment.
type ProofRule struct {
	MaxBytes     int64
	AllowedTypes []string
}

// DefaultProofRule accepts common photo formats up to 10 MB.
var DefaultProofRule = ProofRule{
	MaxBytes:     10 << 20,
	AllowedTypes: []string{"image/jpeg", "image/png", "image/webp"},
}

// ValidateInput checks the checkout form and returns only the first violation.
func ValidateInput(in Input) (Details, error) {
	in.DeliveryType = strings.TrimSpace(in.DeliveryType)
	in.PaymentMethod = strings.TrimSpace(in.PaymentMethod)
	in.Address = strings.TrimSpace(in.Address)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Notes = strings.TrimSpace(in.Notes)

	if err := validate.Struct(in); err != nil {
		return Details{}, err
	}

	out := Details{
		DeliveryType:  enums.DeliveryType(in.DeliveryType),
		PaymentMethod: enums.PaymentMethod(in.PaymentMethod),
	}
	if out.DeliveryType == enums.DeliveryTypeDelivery {
		out.Address = &in.Address
		out.Phone = &in.Phone
	}
	if in.Notes != "" {
		out.Notes = &in.Notes
	}
	return out, nil
}

// ValidateProof enforces presence, size and sniffed type of a payment proof.
func (r ProofRule) ValidateProof(size int64, sniffedType string) error {
	if size <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment proof is required for InstaPay")
	}
	if r.MaxBytes > 0 && size > r.MaxBytes {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("payment proof must be at most %d MB", r.MaxBytes>>20))
	}
	for _, allowed := range r.AllowedTypes {
		if strings.EqualFold(allowed, sniffedType) {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "payment proof must be a JPEG, PNG or WebP image")
}
