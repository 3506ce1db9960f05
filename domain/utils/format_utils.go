package utils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatShortNotation formats a number using short notation (e.g., 50k instead of 50000)
func FormatShortNotation(value int64) string {
	absValue := value
	sign := ""
	if value < 0 {
		absValue = -value
		sign = "-"
	}

	switch {
	case absValue >= 1_000_000_000:
		return fmt.Sprintf("%s%.2fB", sign, float64(absValue)/1_000_000_000)
	case absValue >= 1_000_000:
		return fmt.Sprintf("%s%.2fM", sign, float64(absValue)/1_000_000)
	case absValue >= 10_000:
		return fmt.Sprintf("%s%dk", sign, absValue/1_000)
	case absValue >= 1_000:
		return fmt.Sprintf("%s%.1fk", sign, float64(absValue)/1_000)
	default:
		return fmt.Sprintf("%s%d", sign, absValue)
	}
}

var shortSuffixes = map[byte]int64{
	'k': 1_000,
	'm': 1_000_000,
	'b': 1_000_000_000,
}

// ParseShortNotation parses "1500", "1.5k" or "2m" into a whole amount.
// Fractional results are truncated.
func ParseShortNotation(s string) (int64, error) {
	s = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, ",", "")))
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	multiplier := int64(1)
	if m, ok := shortSuffixes[s[len(s)-1]]; ok {
		multiplier = m
		s = s[:len(s)-1]
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	d = d.Mul(decimal.NewFromInt(multiplier)).Floor()
	if !d.IsInteger() || d.Cmp(decimal.NewFromInt(1<<62)) > 0 {
		return 0, fmt.Errorf("amount out of range")
	}
	return d.IntPart(), nil
}
