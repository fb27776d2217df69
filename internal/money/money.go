// Package money parses and formats monetary amounts under a locale's
// thousands/decimal separator convention.
package money

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrMalformedAmount is returned when a numeral cannot be parsed under a locale.
var ErrMalformedAmount = errors.New("malformed amount")

// Locale pairs the thousands separator with the decimal separator.
type Locale struct {
	Thousands rune
	Decimal   rune
}

var (
	// Dot is the dot-decimal convention: 1,234,567.89
	Dot = Locale{Thousands: ',', Decimal: '.'}
	// Comma is the comma-decimal convention used in printed French statements: 1.234.567,89
	Comma = Locale{Thousands: '.', Decimal: ','}
	// Output is the convention of the bank's own CSV export: 1 234 567,89
	Output = Locale{Thousands: ' ', Decimal: ','}
)

var canonicalNumeral = regexp.MustCompile(`^[+-]?\d+(\.\d{1,2})?$`)

// currency and decoration that may surround a numeral in extracted text
var numeralReplacer = strings.NewReplacer(
	"€", "", "EUR", "", "£", "", "$", "", "¥", "",
	"\u00a0", " ", "\u202f", " ",
)

// Parse converts s to an exact decimal under locale l.
// The thousands separator is removed entirely and the decimal separator is
// replaced by '.'; at most two fraction digits are accepted.
func Parse(s string, l Locale) (decimal.Decimal, error) {
	raw := s
	s = numeralReplacer.Replace(strings.TrimSpace(s))
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "*"))
	s = strings.ReplaceAll(s, string(l.Thousands), "")
	if l.Thousands != ' ' {
		s = strings.ReplaceAll(s, " ", "")
	}
	s = strings.ReplaceAll(s, string(l.Decimal), ".")

	if !canonicalNumeral.MatchString(s) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformedAmount, raw)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q: %v", ErrMalformedAmount, raw, err)
	}
	return d, nil
}

// Format renders d with two fraction digits under locale l, grouping the
// integer part by thousands. Negative values get a leading '-'.
func Format(d decimal.Decimal, l Locale) string {
	fixed := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if d.IsNegative() && !d.Round(2).IsZero() {
		b.WriteByte('-')
	}
	lead := len(intPart) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(intPart[:lead])
	for i := lead; i < len(intPart); i += 3 {
		b.WriteRune(l.Thousands)
		b.WriteString(intPart[i : i+3])
	}
	b.WriteRune(l.Decimal)
	b.WriteString(frac)
	return b.String()
}

// Infer guesses the locale of a numeral: the last '.' or ',' followed by
// exactly two digits is the decimal separator. Numerals without such a
// separator are treated as dot-decimal.
func Infer(s string) Locale {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "*"))
	i := strings.LastIndexAny(s, ".,")
	if i < 0 || len(s)-i-1 != 2 {
		if strings.Contains(s, ".") && !strings.Contains(s, ",") && i >= 0 {
			// "1.234" style: dots only as thousands
			return Comma
		}
		return Dot
	}
	if s[i] == ',' {
		if strings.Contains(s[:i], " ") {
			return Output
		}
		return Comma
	}
	return Dot
}

// ParseInferred parses s using the locale returned by Infer.
func ParseInferred(s string) (decimal.Decimal, error) {
	return Parse(s, Infer(s))
}
