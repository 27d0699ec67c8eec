package importcsv

import (
	"math"
	"strconv"
	"strings"
)

// ParseFloat parses an optional numeric cell. Empty cells are valid and
// yield nil. Decimal commas are accepted ("72,5" == "72.5").
func ParseFloat(raw string) (*float64, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ""
	}
	raw = strings.ReplaceAll(raw, ",", ".")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, "valor numerico invalido"
	}
	return &v, ""
}

// ParseInt parses an optional integer cell. A numeric value with a
// fractional part is rejected ("3.5" is not an integer literal), as is
// anything non-numeric ("3-4", "3x10").
func ParseInt(raw string) (*int, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ""
	}
	raw = strings.ReplaceAll(raw, ",", ".")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, "valor entero invalido"
	}
	if v != math.Trunc(v) {
		return nil, "debe ser entero"
	}
	n := int(v)
	return &n, ""
}

// YNOrEmpty normalizes a yes/no cell to "Y" or "N"; anything else maps
// to the empty string.
func YNOrEmpty(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "Y" || s == "N" {
		return s
	}
	return ""
}
