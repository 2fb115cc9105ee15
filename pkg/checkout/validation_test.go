package checkout

import (
	"testing"

	pkgerrors "github.com/stmary/giftshop-backend/pkg/errors"
	"github.com/stmary/giftshop-backend/pkg/enums"
)

func TestValidateInputPickupDropsAddress(t *testing.T) {
	details, err := ValidateInput(Input{
		DeliveryType:  "pickup",
		PaymentMethod: "cash",
		Address:       "ignored for pickup",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if details.DeliveryType != enums.DeliveryTypePickup || details.PaymentMethod != enums.PaymentMethodCash {
		t.Fatalf("unexpected details %+v", details)
	}
	if details.Address != nil || details.Phone != nil {
		t.Fatalf("pickup should not carry address or phone")
	}
}

func TestValidateInputDeliveryRequiresAddressFirst(t *testing.T) {
	_, err := ValidateInput(Input{DeliveryType: "delivery", PaymentMethod: "cash"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if typed.Message() != "address is required for delivery" {
		t.Fatalf("unexpected message %q", typed.Message())
	}
}

func TestValidateInputDeliveryPhoneFormat(t *testing.T) {
	_, err := ValidateInput(Input{
		DeliveryType:  "delivery",
		PaymentMethod: "instapay",
		Address:       "5 El Nozha St, Heliopolis, Cairo",
		Phone:         "0123",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Message() != "phone must be a valid Egyptian mobile number" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestValidateInputRejectsUnknownPaymentMethod(t *testing.T) {
	_, err := ValidateInput(Input{DeliveryType: "pickup", PaymentMethod: "card"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidateInputDeliveryOK(t *testing.T) {
	details, err := ValidateInput(Input{
		DeliveryType:  "delivery",
		PaymentMethod: "instapay",
		Address:       "  5 El Nozha St, Heliopolis, Cairo ",
		Phone:         "01112345678",
		Notes:         "gift wrap please",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if details.Address == nil || *details.Address != "5 El Nozha St, Heliopolis, Cairo" {
		t.Fatalf("expected trimmed address, got %v", details.Address)
	}
	if details.Notes == nil || *details.Notes != "gift wrap please" {
		t.Fatalf("expected notes")
	}
}

func TestValidateProof(t *testing.T) {
	rule := DefaultProofRule
	if err := rule.ValidateProof(0, "image/png"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected missing proof error, got %v", err)
	}
	if err := rule.ValidateProof(11<<20, "image/png"); err == nil {
		t.Fatalf("expected size error")
	}
	if err := rule.ValidateProof(1024, "application/pdf"); err == nil {
		t.Fatalf("expected type error")
	}
	if err := rule.ValidateProof(1024, "image/webp"); err != nil {
		t.Fatalf("expected webp accepted, got %v", err)
	}
}
