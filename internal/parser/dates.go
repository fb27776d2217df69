package parser

import (
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrMalformedDate is reported when a candidate date fails every layout.
var ErrMalformedDate = errors.New("malformed date")

// Layout tables. Order is significant: the first layout that parses wins, so
// 01/02/2025 is 1 February under day-first tables.
var (
	sgDateLayouts = []string{"02/01/2006"}

	genericDateLayouts = []string{
		"2/1/2006", "1/2/2006", "2006/1/2",
		"2-1-2006", "1-2-2006", "2006-1-2",
		"2.1.2006", "1.2.2006", "2006.1.2",
		"2 Jan 2006", "Jan 2, 2006", "Jan 2 2006",
		"2/1/06", "2-1-06", "2.1.06",
	}

	frenchDateLayouts = []string{
		"2/1/2006", "2-1-2006", "2.1.2006",
		"2/1/06", "2-1-06", "2.1.06",
		"2 Jan 2006", "2 Jan 06",
	}
)

// monthTokens maps folded month words (English and French, full or
// abbreviated) to the token Go layouts expect.
var monthTokens = map[string]string{
	"jan": "Jan", "janv": "Jan", "january": "Jan", "janvier": "Jan",
	"feb": "Feb", "fev": "Feb", "fevr": "Feb", "february": "Feb", "fevrier": "Feb",
	"mar": "Mar", "mars": "Mar", "march": "Mar",
	"apr": "Apr", "avr": "Apr", "april": "Apr", "avril": "Apr",
	"may": "May", "mai": "May",
	"jun": "Jun", "june": "Jun", "juin": "Jun",
	"jul": "Jul", "july": "Jul", "juil": "Jul", "juillet": "Jul",
	"aug": "Aug", "august": "Aug", "aou": "Aug", "aout": "Aug",
	"sep": "Sep", "sept": "Sep", "september": "Sep", "septembre": "Sep",
	"oct": "Oct", "october": "Oct", "octobre": "Oct",
	"nov": "Nov", "november": "Nov", "novembre": "Nov",
	"dec": "Dec", "december": "Dec", "decembre": "Dec",
}

var wordPattern = regexp.MustCompile(`\p{L}+\.?`)

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// normalizeMonths rewrites month words to their canonical English token.
func normalizeMonths(s string) string {
	return wordPattern.ReplaceAllStringFunc(s, func(w string) string {
		key := strings.ToLower(foldAccents(strings.TrimSuffix(w, ".")))
		if tok, ok := monthTokens[key]; ok {
			return tok
		}
		return w
	})
}

// ParseDate returns the date parsed by the first layout that matches the
// whole string.
func ParseDate(s string, layouts []string) (time.Time, bool) {
	s = strings.TrimSpace(spaceRun.ReplaceAllString(normalizeMonths(s), " "))
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
