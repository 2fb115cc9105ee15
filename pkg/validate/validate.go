// Package validate wraps go-playground/validator with the storefront's
// custom tags and its single-message error style.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/stmary/giftshop-backend/pkg/errors"
)

var (
	egyptianMobileRe = regexp.MustCompile(`^01[0125][0-9]{8}$`)
	instance         = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	_ = v.RegisterValidation("eg_phone", func(fl validator.FieldLevel) bool {
		return IsEgyptianMobile(fl.Field().String())
	})
	_ = v.RegisterValidation("runes_between", runesBetween)
	return v
}

// IsEgyptianMobile accepts 11-digit local mobile numbers (010, 011, 012, 015).
func IsEgyptianMobile(value string) bool {
	return egyptianMobileRe.MatchString(strings.TrimSpace(value))
}

// runesBetween checks trimmed character length, e.g. `runes_between=2 50`.
// Unlike min/max it counts runes so Arabic text is measured correctly.
func runesBetween(fl validator.FieldLevel) bool {
	var lo, hi int
	if _, err := fmt.Sscanf(fl.Param(), "%d %d", &lo, &hi); err != nil {
		return false
	}
	n := utf8.RuneCountInString(strings.TrimSpace(fl.Field().String()))
	return n >= lo && n <= hi
}

// Struct validates v and returns the first violation as a VALIDATION_ERROR whose
// message is safe to show verbatim.
func Struct(v any) error {
	err := instance.Struct(v)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if errors.As(err, &errs) && len(errs) > 0 {
		first := errs[0]
		return pkgerrors.New(pkgerrors.CodeValidation, Message(first)).
			WithDetails(map[string]string{"field": first.Field()})
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
}

// Message renders a field error as a sentence.
func Message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "required_if":
		parts := strings.Fields(fe.Param())
		if len(parts) == 2 {
			return fmt.Sprintf("%s is required for %s", field, parts[1])
		}
		return field + " is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "runes_between":
		var lo, hi int
		if _, err := fmt.Sscanf(fe.Param(), "%d %d", &lo, &hi); err == nil {
			return fmt.Sprintf("%s must be between %d and %d characters", field, lo, hi)
		}
	case "email":
		return field + " must be a valid email"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "eg_phone":
		return field + " must be a valid Egyptian mobile number"
	case "uuid", "uuid4":
		return field + " must be a valid id"
	case "datetime":
		if fe.Param() == "2006-01-02" {
			return field + " must be a date (YYYY-MM-DD)"
		}
		return field + " must be a valid date"
	case "url", "http_url":
		return field + " must be a valid URL"
	}
	return field + " is invalid"
}
