// Package enums holds the string-backed enumerations stored in Postgres and
// exchanged over the API.
package enums

import (
	"fmt"
	"slices"
)

func oneOf[T ~string](v T, set []T) bool {
	return slices.Contains(set, v)
}

func parseOneOf[T ~string](raw string, set []T, kind string) (T, error) {
	if v := T(raw); oneOf(v, set) {
		return v, nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, raw)
}
