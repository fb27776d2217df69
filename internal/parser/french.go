package parser

import (
	"regexp"

	"github.com/insightdelivered/statement2csv/internal/models"
	"github.com/insightdelivered/statement2csv/internal/money"
)

// frenchBankPatterns recognise French retail banks by name.
var frenchBankPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(Crédit\s+(?:Agricole|Mutuel|du\s+Nord|Lyonnais))`),
	regexp.MustCompile(`(?i)\b(Banque\s+(?:Populaire|Postale|de\s+France))\b`),
	regexp.MustCompile(`(?i)\b(BNP\s*Paribas|Société\s+Générale|LCL)\b`),
	regexp.MustCompile(`(?i)\b(Caisse\s+d['’]\s*Épargne)`),
}

// French numerals are followed (or preceded) by the euro sign and may group
// thousands with a space or a dot: 1 234,56 € or 1.234,56 EUR. A numeral
// never starts inside a word or another number.
const frenchNumeral = `(?:\d{1,3}(?:[ .\x{a0}]\d{3})+|\d+)(?:,\d{2})?`

var frenchProfile = lineProfile{
	variant:     models.VariantFrench,
	defaultBank: "Banque Française",

	bankPatterns: frenchBankPatterns,
	accountPatterns: []*regexp.Regexp{
		regexp.MustCompile(`(?i)compte\s*(?:n°|numéro)?\s*:?\s*(\d+(?:[\s-]\d+)*)`),
		regexp.MustCompile(`(?i)n°\s*(?:de\s+)?compte\s*:?\s*(\d+(?:[\s-]\d+)*)`),
		regexp.MustCompile(`\b(\d{5,}\s*\d{3,})\b`),
	},
	compactAccount: true,
	headerWindow:   15,
	periodWindow:   25,

	datePattern: regexp.MustCompile(`(?i)\b(\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4}|\d{1,2}\s+(?:janv|févr|fevr|mars|avr|mai|juin|juil|août|aout|sept|oct|nov|déc|dec)\p{L}*\.?\s+\d{2,4})\b`),
	dateAtStart: true,
	dateLayouts: frenchDateLayouts,

	amountPattern: regexp.MustCompile(`(?:^|[^\w.,])([+-]?)(` + frenchNumeral + `)\s*(?:€|EUR\b)|(?:^|[^\w.,])€\s*([+-]?)(` + frenchNumeral + `)\b`),
	locale:        func(string) money.Locale { return money.Comma },

	minLineLength:      10,
	defaultDescription: "Opération",
	classifier:         Classifier{Rules: frenchCategoryRules},
	creditKeywords:     frenchCreditKeywords,
}
