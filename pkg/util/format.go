package util

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Missing is rendered in place of an absent number.
const Missing = "--"

// FormatNumber renders v with exactly decimals fraction digits, optionally with
// comma thousands separators. nil, NaN and Inf render as Missing.
func FormatNumber(v *float64, decimals int, grouping bool) string {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return Missing
	}
	if decimals < 0 {
		decimals = 0
	}
	s := decimal.NewFromFloat(*v).StringFixed(int32(decimals))
	if !grouping {
		return s
	}
	return group(s)
}

func group(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	if len(intPart) <= 3 {
		return sign + intPart + frac
	}

	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	return sign + b.String() + frac
}

// FormatPercent renders a 0..1 ratio as a whole percentage, e.g. 0.87 -> "87%".
func FormatPercent(ratio float64) string {
	return decimal.NewFromFloat(ratio).Mul(decimal.NewFromInt(100)).StringFixed(0) + "%"
}
