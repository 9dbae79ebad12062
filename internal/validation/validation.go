// Package validation collects field-level input violations.
package validation

import "strings"

// Violations maps a field name to a short machine-readable problem code.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Add records a violation for a field, keeping the first one reported.
func (v Violations) Add(field, code string) {
	if _, ok := v[field]; !ok {
		v[field] = code
	}
}

// Basic validators

func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "required")
	}
}

func PositiveFloat(field string, val float64, v Violations) {
	if val <= 0 {
		v.Add(field, "must_be_positive")
	}
}

func NonNegativeFloat(field string, val float64, v Violations) {
	if val < 0 {
		v.Add(field, "must_not_be_negative")
	}
}

func RangeFloat(field string, val, minVal, maxVal float64, v Violations) {
	if val < minVal || val > maxVal {
		v.Add(field, "out_of_range")
	}
}

// CurrencyCode checks for a 3-letter code. Case is the caller's problem;
// codes are uppercased at the model boundary, not validated against ISO.
func CurrencyCode(field, value string, v Violations) {
	if len(value) != 3 {
		v.Add(field, "invalid_currency")
		return
	}
	for _, r := range value {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			v.Add(field, "invalid_currency")
			return
		}
	}
}
