// Package enums holds the string-backed domain enumerations persisted in
// postgres enum columns and carried over the API.
package enums

import (
	"fmt"
	"slices"
)

func known[T ~string](set []T, v T) bool {
	return slices.Contains(set, v)
}

func parse[T ~string](set []T, label, value string) (T, error) {
	if candidate := T(value); known(set, candidate) {
		return candidate, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", label, value)
}
