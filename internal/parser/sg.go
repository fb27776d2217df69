package parser

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement2csv/internal/models"
	"github.com/insightdelivered/statement2csv/internal/money"
)

// SocieteGeneraleParser handles Société Générale statements as produced by
// pdftotext in reading order.
//
// Each transaction starts with an operation date and a value date, followed
// by the label. The amount is either printed at the end of that line or on a
// line of its own, and further label lines follow:
//
//	01/07/2025 01/07/2025 VIR INST RE 123456
//	DE: DUPONT JEAN
//	150,00
type SocieteGeneraleParser struct {
	filter *Filter
	rules  ScanRules
	logger *log.Logger
}

func newSocieteGeneraleParser(o options) *SocieteGeneraleParser {
	return &SocieteGeneraleParser{
		filter: newStatementFilter(),
		rules:  sgScanRules,
		logger: o.logger,
	}
}

func (p *SocieteGeneraleParser) BankName() string {
	return "Société Générale"
}

var (
	sgAccountPattern = regexp.MustCompile(`n°\s*(\d{5})\s+(\d{5})\s+(\w{11})\s+(\d{2})`)
	sgPeriodPattern  = regexp.MustCompile(`du\s+(\d{2}/\d{2}/\d{4})\s+au\s+(\d{2}/\d{2}/\d{4})`)
	sgClosingPattern = regexp.MustCompile(`NOUVEAU SOLDE AU\s+(\d{2}/\d{2}/\d{4})\s+([+-])?\s*(` + commaNumeral + `)`)
	sgOpeningPattern = regexp.MustCompile(`SOLDE PR[ÉE]C[ÉE]DENT AU\s+(\d{2}/\d{2}/\d{4})\s+([+-])?\s*(` + commaNumeral + `)`)
	sgPostcodeLine   = regexp.MustCompile(`^\d{5}\s+[\p{Lu}][\p{Lu}\s'’-]+$`)
	sgAccountLabel   = regexp.MustCompile(`(?m)^\s*(COMPTE [^\n]+?)\s+-\s+en euros`)
)

// sgAccountTypes shortens account labels the way the bank's CSV export does.
var sgAccountTypes = []struct {
	label string
	short string
}{
	{"COMPTE D'ADMINISTRATION", "CAV ADMI"},
	{"COMPTE D’ADMINISTRATION", "CAV ADMI"},
	{"COMPTE COURANT", "CAV"},
}

func (p *SocieteGeneraleParser) Parse(lines []string) (*models.Statement, error) {
	st := &models.Statement{
		Bank:     models.VariantSG,
		BankName: p.BankName(),
	}

	raw := strings.Join(lines, "\n")
	p.extractAccount(st, raw)
	p.extractPeriod(st, raw)
	p.extractBalances(st, raw)
	st.AccountHolder, st.HolderAddress = extractHolderBlock(lines)
	st.AccountType = extractAccountType(raw)

	body, found := StartAfter(p.filter.Apply(lines), sgStartSentinel)
	if !found {
		p.logger.Warn("start sentinel not found, scanning the whole document", "sentinel", sgStartSentinel)
	}

	sc := NewScanner(p.rules, body, p.logger)
	st.Transactions = sc.Run()
	st.DebugLines = sc.DebugLines()

	if len(st.Transactions) == 0 {
		p.logger.Warn("no transactions found", "lines", len(lines))
	}
	return st, nil
}

func (p *SocieteGeneraleParser) extractAccount(st *models.Statement, raw string) {
	m := sgAccountPattern.FindStringSubmatch(raw)
	if m == nil {
		p.logger.Debug("account number not found")
		return
	}
	st.BankCode = m[1]
	iban, err := frenchIBAN(m[1], m[2], m[3], m[4])
	if err != nil {
		p.logger.Warn("cannot build IBAN", "err", err)
		st.AccountNumber = strings.Join(m[1:], " ")
		return
	}
	st.AccountNumber = iban
}

func (p *SocieteGeneraleParser) extractPeriod(st *models.Statement, raw string) {
	m := sgPeriodPattern.FindStringSubmatch(raw)
	if m == nil {
		return
	}
	if start, ok := ParseDate(m[1], sgDateLayouts); ok {
		st.PeriodStart = &start
	}
	if end, ok := ParseDate(m[2], sgDateLayouts); ok {
		st.PeriodEnd = &end
	}
}

func (p *SocieteGeneraleParser) extractBalances(st *models.Statement, raw string) {
	if date, bal, ok := p.balanceLine(sgClosingPattern, raw); ok {
		st.ClosingBalance = decimal.NewNullDecimal(bal)
		st.BalanceDate = &date
	}
	if _, bal, ok := p.balanceLine(sgOpeningPattern, raw); ok {
		st.OpeningBalance = decimal.NewNullDecimal(bal)
	}
}

func (p *SocieteGeneraleParser) balanceLine(re *regexp.Regexp, raw string) (time.Time, decimal.Decimal, bool) {
	m := re.FindStringSubmatch(raw)
	if m == nil {
		return time.Time{}, decimal.Zero, false
	}
	date, ok := ParseDate(m[1], sgDateLayouts)
	if !ok {
		p.logger.Warn("balance date rejected", "date", m[1], "err", ErrMalformedDate)
		return time.Time{}, decimal.Zero, false
	}
	bal, err := money.Parse(m[3], money.Comma)
	if err != nil {
		p.logger.Warn("balance amount rejected", "err", err)
		return time.Time{}, decimal.Zero, false
	}
	if m[2] == "-" {
		bal = bal.Neg()
	}
	return date, bal, true
}

// extractHolderBlock finds the upper-case address block that ends with a
// "NNNNN TOWN" line and returns its first line and the remaining lines.
func extractHolderBlock(lines []string) (holder, address string) {
	for i, line := range lines {
		if !sgPostcodeLine.MatchString(strings.TrimSpace(line)) {
			continue
		}
		var block []string
		for j := i; j >= 0 && len(block) < 6; j-- {
			l := cleanText(lines[j])
			if l == "" || l != strings.ToUpper(l) {
				break
			}
			block = append([]string{l}, block...)
		}
		if len(block) < 2 {
			continue
		}
		return block[0], strings.Join(block[1:], " ")
	}
	return "", ""
}

func extractAccountType(raw string) string {
	m := sgAccountLabel.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	label := cleanText(m[1])
	for _, t := range sgAccountTypes {
		if strings.EqualFold(label, t.label) {
			return t.short
		}
	}
	return label
}

// frenchIBAN builds the IBAN of a French RIB (bank, branch, account, key)
// with ISO 7064 mod 97-10 check digits, grouped by four.
func frenchIBAN(bank, branch, account, key string) (string, error) {
	bban := strings.ToUpper(bank + branch + account + key)
	if len(bban) != 23 {
		return "", fmt.Errorf("RIB has %d characters, want 23", len(bban))
	}

	var digits strings.Builder
	for _, r := range bban + "FR00" {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			fmt.Fprintf(&digits, "%d", r-'A'+10)
		default:
			return "", fmt.Errorf("invalid RIB character %q", r)
		}
	}
	n, ok := new(big.Int).SetString(digits.String(), 10)
	if !ok {
		return "", fmt.Errorf("invalid RIB %q", bban)
	}
	check := 98 - new(big.Int).Mod(n, big.NewInt(97)).Int64()

	iban := fmt.Sprintf("FR%02d%s", check, bban)
	var grouped []string
	for i := 0; i < len(iban); i += 4 {
		end := min(i+4, len(iban))
		grouped = append(grouped, iban[i:end])
	}
	return strings.Join(grouped, " "), nil
}
