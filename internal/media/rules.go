package media

import (
	"fmt"
	"strings"

	"github.com/stmary/giftshop-backend/pkg/checkout"
	"github.com/stmary/giftshop-backend/pkg/enums"
	pkgerrors "github.com/stmary/giftshop-backend/pkg/errors"
)

var imageTypes = []string{"image/jpeg", "image/png", "image/webp"}

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

var prefixes = map[enums.MediaKind]string{
	enums.MediaKindPaymentProof: "payment-proofs",
	enums.MediaKindCategory:     "categories",
	enums.MediaKindProduct:      "products",
	enums.MediaKindHero:         "hero",
}

// Limits caps upload sizes per kind family.
type Limits struct {
	MaxProofBytes int64
	MaxImageBytes int64
}

func (l Limits) maxBytes(kind enums.MediaKind) int64 {
	if kind == enums.MediaKindPaymentProof {
		return l.MaxProofBytes
	}
	return l.MaxImageBytes
}

// check validates size and sniffed type for kind.
func (l Limits) check(kind enums.MediaKind, size int64, sniffed string) error {
	if kind == enums.MediaKindPaymentProof {
		rule := checkout.ProofRule{MaxBytes: l.MaxProofBytes, AllowedTypes: imageTypes}
		return rule.ValidateProof(size, sniffed)
	}
	if size <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "file is required")
	}
	if limit := l.maxBytes(kind); limit > 0 && size > limit {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("image must be at most %d MB", limit>>20))
	}
	if !allowed(sniffed) {
		return pkgerrors.New(pkgerrors.CodeValidation, "image must be a JPEG, PNG or WebP image")
	}
	return nil
}

func allowed(sniffed string) bool {
	for _, t := range imageTypes {
		if strings.EqualFold(t, sniffed) {
			return true
		}
	}
	return false
}
