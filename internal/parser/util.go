package parser

import (
	"io"
	"regexp"
	"strings"
	"unicode"

	"github.com/charmbracelet/log"
)

// Numeral shapes shared by the comma-decimal layouts: 1.234,56 or 1234,56.
const commaNumeral = `(?:\d{1,3}(?:\.\d{3})+|\d+),\d{2}`

var spaceRun = regexp.MustCompile(`\s+`)

// cleanText drops non-printable characters and collapses whitespace runs.
func cleanText(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		if !unicode.IsPrint(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

// upperFold upper-cases s and strips diacritics so keyword tables can be
// written without accents.
func upperFold(s string) string {
	return strings.ToUpper(foldAccents(s))
}

func containsAny(text string, needles []string) bool {
	for _, needle := range needles {
		if needle != "" && strings.Contains(text, needle) {
			return true
		}
	}
	return false
}

func containsIgnoreCase(text, substr string) bool {
	return substr != "" && strings.Contains(strings.ToLower(text), strings.ToLower(substr))
}

// isDebitDescription guesses direction from wording when a numeral carries no sign.
func isDebitDescription(desc string) bool {
	lower := strings.ToLower(desc)
	debitKeywords := []string{
		"card payment", "direct debit", "debit", "payment", "withdrawal",
		"transfer out", "standing order", "dd ", "pos ", "atm ",
		"purchase", "fee", "charge",
	}
	for _, kw := range debitKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func firstLines(lines []string, n int) []string {
	if len(lines) < n {
		return lines
	}
	return lines[:n]
}

func discardLogger() *log.Logger {
	return log.New(io.Discard)
}
