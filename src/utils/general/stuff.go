package general

import (
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// NewTradeID returns a random (v4) id. The archive keys trades by it, so it
// only has to be unique.
func NewTradeID() string {
	return uuid.NewString()
}

func ItemInSlice[T comparable](slice []T, item T) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func NoDuplicateItemsInSlice[T comparable](slice []T) bool {
	seen := make(map[T]bool)
	for _, item := range slice {
		if seen[item] {
			return false
		}
		seen[item] = true
	}
	return true
}

func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// ConvertMixedValue turns csv or json scalars into float64, bool or string,
// in that order of preference.
func ConvertMixedValue(raw string) any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}
