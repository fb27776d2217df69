package parser

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement2csv/internal/models"
	"github.com/insightdelivered/statement2csv/internal/money"
)

// lineProfile describes a one-line-per-transaction layout: every line that
// carries a date is a transaction, amounts are read from the same line.
type lineProfile struct {
	variant     models.Variant
	defaultBank string

	bankPatterns    []*regexp.Regexp
	accountPatterns []*regexp.Regexp
	codePattern     *regexp.Regexp
	compactAccount  bool
	headerWindow    int
	periodWindow    int

	datePattern *regexp.Regexp
	// dateAtStart requires the transaction date to open the line.
	dateAtStart bool
	dateLayouts []string

	amountPattern *regexp.Regexp
	locale        func(numeral string) money.Locale
	// balanceLast takes the last amount as the running balance and the one
	// before it as the transaction amount. Otherwise the first amount is used.
	balanceLast bool

	minLineLength      int
	defaultDescription string
	classifier         Classifier
	// creditKeywords decide direction for unsigned amounts. When empty the
	// description wording is used instead.
	creditKeywords []string
}

var genericProfile = lineProfile{
	variant:     models.VariantGeneric,
	defaultBank: "Unknown Bank",

	bankPatterns: []*regexp.Regexp{
		regexp.MustCompile(`\b([A-Z][a-z]+\s+(?:Bank|Credit\s+Union|Financial))\b`),
		regexp.MustCompile(`\b(Bank\s+of\s+[A-Z][a-z]+)\b`),
		regexp.MustCompile(`\b([A-Z]{2,}\s+Bank)\b`),
	},
	accountPatterns: []*regexp.Regexp{
		regexp.MustCompile(`(?i:account)\s*(?i:number|no\.?|#)?\s*:?\s*([A-Z0-9]*\d[A-Z0-9]*(?:[ -][A-Z0-9]{2,})*)\b`),
	},
	codePattern:  regexp.MustCompile(`(?i:sort\s+code|routing(?:\s+number)?|swift|bic|iban)\s*:?\s*([A-Z0-9]{2,}(?:[ -][A-Z0-9]{2,})*)\b`),
	headerWindow: 10,
	periodWindow: 20,

	datePattern: regexp.MustCompile(`\b(\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4}|\d{4}[/.-]\d{1,2}[/.-]\d{1,2}|\d{1,2}\s+[A-Za-z]{3,9}\.?\s+\d{2,4}|[A-Za-z]{3,9}\.?\s+\d{1,2},?\s+\d{2,4})\b`),
	dateLayouts: genericDateLayouts,

	amountPattern: regexp.MustCompile(`(?:^|[^\w.,])([+-]?)[$€£¥]?\s?((?:\d{1,3}(?:[,.]\d{3})+|\d+)[.,]\d{2})\b`),
	locale:        money.Infer,
	balanceLast:   true,

	minLineLength:      1,
	defaultDescription: "Transaction",
	classifier:         Classifier{Rules: genericCategoryRules},
}

var currencyToken = regexp.MustCompile(`(?:^|\s)(?:EUR|[€$£¥])(?:\s|$)`)

// lineParser implements Parser for layouts described by a lineProfile.
type lineParser struct {
	profile lineProfile
	filter  *Filter
	logger  *log.Logger
}

func newLineParser(profile lineProfile, o options) *lineParser {
	return &lineParser{
		profile: profile,
		filter:  newStatementFilter(),
		logger:  o.logger,
	}
}

func (p *lineParser) BankName() string {
	return p.profile.defaultBank
}

func (p *lineParser) Parse(lines []string) (*models.Statement, error) {
	st := &models.Statement{
		Bank:         p.profile.variant,
		Transactions: []models.Transaction{},
	}
	p.extractHeader(st, lines)
	p.extractPeriod(st, lines)

	for i, raw := range p.filter.Apply(lines) {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		result := "skipped"
		if txn, ok := p.parseLine(i+1, line); ok {
			st.Add(txn)
			result = "anchor"
		}
		st.DebugLines = append(st.DebugLines, models.DebugLine{
			LineNum: i + 1,
			Text:    truncate(line, 120),
			State:   StateIdle.String(),
			Result:  result,
		})
	}

	if len(st.Transactions) == 0 {
		p.logger.Warn("no transactions found", "variant", p.profile.variant, "lines", len(lines))
	}
	return st, nil
}

// extractHeader looks for bank name, account number and bank code in the
// first lines. The first match of each wins.
func (p *lineParser) extractHeader(st *models.Statement, lines []string) {
	for _, line := range firstLines(lines, p.profile.headerWindow) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if st.BankName == "" {
			st.BankName = firstSubmatch(p.profile.bankPatterns, line)
		}
		if st.AccountNumber == "" {
			st.AccountNumber = firstSubmatch(p.profile.accountPatterns, line)
			if p.profile.compactAccount {
				st.AccountNumber = strings.Join(strings.Fields(st.AccountNumber), "")
			}
		}
		if st.BankCode == "" && p.profile.codePattern != nil {
			if m := p.profile.codePattern.FindStringSubmatch(line); m != nil {
				st.BankCode = strings.TrimSpace(m[1])
			}
		}
	}
	if st.BankName == "" {
		st.BankName = p.profile.defaultBank
	}
}

// extractPeriod takes the earliest and latest dates found near the top.
func (p *lineParser) extractPeriod(st *models.Statement, lines []string) {
	var dates []time.Time
	for _, line := range firstLines(lines, p.profile.periodWindow) {
		for _, m := range p.profile.datePattern.FindAllStringSubmatch(line, -1) {
			if d, ok := ParseDate(m[1], p.profile.dateLayouts); ok {
				dates = append(dates, d)
			}
		}
	}
	if len(dates) == 0 {
		return
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	st.PeriodStart = &dates[0]
	st.PeriodEnd = &dates[len(dates)-1]
}

func (p *lineParser) parseLine(lineNum int, line string) (models.Transaction, bool) {
	var txn models.Transaction
	if len([]rune(line)) < p.profile.minLineLength {
		return txn, false
	}

	date, ok := p.findDate(line)
	if !ok {
		return txn, false
	}
	txn.OperationDate = &date

	rest := p.removeDates(line)
	amounts := p.findAmounts(lineNum, rest)
	switch {
	case len(amounts) >= 2 && p.profile.balanceLast:
		p.assign(&txn, amounts[len(amounts)-2], rest)
		txn.Balance = decimal.NewNullDecimal(amounts[len(amounts)-1].value)
	case len(amounts) >= 2:
		p.assign(&txn, amounts[0], rest)
		txn.Balance = decimal.NewNullDecimal(amounts[len(amounts)-1].value)
	case len(amounts) == 1:
		p.assign(&txn, amounts[0], rest)
	}

	desc := p.profile.amountPattern.ReplaceAllString(rest, " ")
	desc = cleanText(currencyToken.ReplaceAllString(desc, " "))
	if desc == "" {
		desc = p.profile.defaultDescription
	}
	txn.Description = desc
	txn.OperationType = desc
	txn.Category = p.profile.classifier.Classify(desc)
	return txn, true
}

// removeDates blanks out the date candidates on line that actually parse.
func (p *lineParser) removeDates(line string) string {
	return p.profile.datePattern.ReplaceAllStringFunc(line, func(s string) string {
		if _, ok := ParseDate(s, p.profile.dateLayouts); ok {
			return " "
		}
		return s
	})
}

func (p *lineParser) findDate(line string) (time.Time, bool) {
	for _, loc := range p.profile.datePattern.FindAllStringSubmatchIndex(line, -1) {
		if p.profile.dateAtStart && loc[2] != 0 {
			return time.Time{}, false
		}
		if d, ok := ParseDate(line[loc[2]:loc[3]], p.profile.dateLayouts); ok {
			return d, true
		}
		if p.profile.dateAtStart {
			return time.Time{}, false
		}
	}
	return time.Time{}, false
}

type lineAmount struct {
	value decimal.Decimal
	sign  string
}

// findAmounts returns the signed amounts found on line, in order.
func (p *lineParser) findAmounts(lineNum int, line string) []lineAmount {
	var out []lineAmount
	for _, m := range p.profile.amountPattern.FindAllStringSubmatch(line, -1) {
		sign, numeral := m[1], m[2]
		if numeral == "" && len(m) > 4 {
			sign, numeral = m[3], m[4]
		}
		if numeral == "" {
			continue
		}
		v, err := money.Parse(numeral, p.profile.locale(numeral))
		if err != nil {
			p.logger.Warn("dropping amount", "line", lineNum, "err", err)
			continue
		}
		if sign == "-" {
			v = v.Neg()
		}
		out = append(out, lineAmount{value: v, sign: sign})
	}
	return out
}

func (p *lineParser) assign(txn *models.Transaction, a lineAmount, text string) {
	var credit bool
	switch {
	case a.sign == "-":
		credit = false
	case a.sign == "+":
		credit = true
	case len(p.profile.creditKeywords) > 0:
		credit = isCreditLabel(text, p.profile.creditKeywords)
	default:
		credit = !isDebitDescription(text)
	}
	txn.SetAmount(a.value, credit)
}

func firstSubmatch(patterns []*regexp.Regexp, line string) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(line); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}
