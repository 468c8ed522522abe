package scraper

import (
	"strconv"
	"strings"
)

// coercePrice converts a raw parsed price string to fixed-point cents
// (scale 2). Returns nil on any parse failure — price coercion never
// produces an error outcome (SPEC_FULL.md §4.3).
func coercePrice(raw string) *int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	raw = strings.ReplaceAll(raw, ",", "")

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	cents := int64(f*100 + sign(f)*0.5)
	return &cents
}

func sign(f float64) float64 {
	if f < 0 {
		return -1
	}
	return 1
}

// coerceInt converts a raw numeric string to an integer. Returns nil on any
// parse failure.
func coerceInt(raw string) *int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	raw = strings.ReplaceAll(raw, ",", "")

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
