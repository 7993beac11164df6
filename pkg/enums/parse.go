package enums

import "fmt"

// parse matches value against set exactly; kind names the enum in the error.
func parse[T ~string](set []T, kind, value string) (T, error) {
	for _, candidate := range set {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, value)
}
