package parser

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement2csv/internal/models"
	"github.com/insightdelivered/statement2csv/internal/money"
)

// State is the scanner's position in the transaction grammar.
type State int

const (
	// StateIdle is scanning for the next anchor line.
	StateIdle State = iota
	// StateInTransaction is accumulating lines for an open transaction.
	StateInTransaction
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInTransaction:
		return "in-transaction"
	}
	return "unknown"
}

// ScanRules holds the patterns and tables a layout is scanned with.
type ScanRules struct {
	// Anchor captures operation date, value date and the remaining text.
	Anchor *regexp.Regexp
	// InlineAmount captures a trailing numeral on the anchor's remaining text.
	InlineAmount *regexp.Regexp
	// BareAmount matches a line holding nothing but a numeral.
	BareAmount   *regexp.Regexp
	ChequeNumber *regexp.Regexp
	Reference    *regexp.Regexp

	DateLayouts    []string
	Locale         money.Locale
	CreditKeywords []string
	Classifier     Classifier
}

var sgScanRules = ScanRules{
	Anchor:       regexp.MustCompile(`^(\d{2}/\d{2}/\d{4})\s+(\d{2}/\d{2}/\d{4})\s+(.+)$`),
	InlineAmount: regexp.MustCompile(`(?:^|\s)(` + commaNumeral + `)\s*\*?\s*$`),
	BareAmount:   regexp.MustCompile(`^(` + commaNumeral + `)\s*\*?$`),
	ChequeNumber: regexp.MustCompile(`^\d+$`),
	Reference:    regexp.MustCompile(`(?i)^REF(?:\.?\s*CLIENT)?\s*[:.]\s*(\S.*)$`),

	DateLayouts:    sgDateLayouts,
	Locale:         money.Comma,
	CreditKeywords: sgCreditKeywords,
	Classifier:     Classifier{Rules: sgCategoryRules},
}

// pending is the transaction currently being accumulated.
type pending struct {
	txn     models.Transaction
	amounts []decimal.Decimal
	cheque  string
	inline  bool
}

// Scanner walks an immutable line slice with a single cursor. Each Step
// consumes one line; a new anchor or the end of input flushes the open
// transaction.
type Scanner struct {
	rules  ScanRules
	lines  []string
	pos    int
	state  State
	open   *pending
	txns   []models.Transaction
	debug  []models.DebugLine
	logger *log.Logger
}

// NewScanner prepares a scan of lines. logger may be nil.
func NewScanner(rules ScanRules, lines []string, logger *log.Logger) *Scanner {
	if logger == nil {
		logger = discardLogger()
	}
	return &Scanner{
		rules:  rules,
		lines:  lines,
		txns:   []models.Transaction{},
		logger: logger,
	}
}

// State returns the current state.
func (s *Scanner) State() State { return s.state }

// Pos returns the index of the next line to consume.
func (s *Scanner) Pos() int { return s.pos }

// Transactions returns the transactions flushed so far.
func (s *Scanner) Transactions() []models.Transaction { return s.txns }

// DebugLines returns one entry per non-empty line consumed.
func (s *Scanner) DebugLines() []models.DebugLine { return s.debug }

// Step consumes the next line. At end of input it flushes any open
// transaction and returns false.
func (s *Scanner) Step() bool {
	if s.pos >= len(s.lines) {
		s.flush()
		return false
	}
	s.pos++
	s.consume(s.pos, s.lines[s.pos-1])
	return true
}

// Run steps until the input is exhausted and returns the transactions.
func (s *Scanner) Run() []models.Transaction {
	for s.Step() {
	}
	return s.txns
}

func (s *Scanner) consume(lineNum int, raw string) {
	line := strings.TrimSpace(raw)
	if line == "" {
		return
	}
	stateBefore := s.state
	record := func(result string) {
		s.debug = append(s.debug, models.DebugLine{
			LineNum: lineNum,
			Text:    truncate(line, 120),
			State:   stateBefore.String(),
			Result:  result,
		})
	}

	next, rejected := s.matchAnchor(lineNum, line)
	if next != nil {
		s.flush()
		s.open = next
		s.state = StateInTransaction
		record("anchor")
		return
	}

	if s.state == StateIdle {
		if rejected {
			record("rejected-anchor")
		} else {
			record("skipped")
		}
		return
	}

	if m := s.rules.BareAmount.FindStringSubmatch(line); m != nil {
		amt, err := money.Parse(m[1], s.rules.Locale)
		if err != nil {
			s.logger.Warn("dropping amount line", "line", lineNum, "err", err)
			record("skipped")
			return
		}
		s.open.amounts = append(s.open.amounts, amt)
		record("amount")
		return
	}

	if s.rules.ChequeNumber != nil && s.rules.ChequeNumber.MatchString(line) && isChequeLabel(s.open.txn.OperationType) {
		s.open.cheque = line
		record("cheque")
		return
	}

	detail := cleanText(line)
	s.open.txn.DetailLines = append(s.open.txn.DetailLines, detail)
	if s.rules.Reference != nil && s.open.txn.Reference == "" {
		if m := s.rules.Reference.FindStringSubmatch(detail); m != nil {
			s.open.txn.Reference = strings.TrimSpace(m[1])
		}
	}
	if rejected {
		record("rejected-anchor")
	} else {
		record("detail")
	}
}

// matchAnchor returns a new pending transaction when line is a valid anchor.
// rejected is true when the line has the anchor shape but a date fails to parse.
func (s *Scanner) matchAnchor(lineNum int, line string) (p *pending, rejected bool) {
	m := s.rules.Anchor.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	opDate, ok := ParseDate(m[1], s.rules.DateLayouts)
	if !ok {
		s.logger.Warn("anchor rejected", "line", lineNum, "date", m[1], "err", ErrMalformedDate)
		return nil, true
	}
	valueDate, ok := ParseDate(m[2], s.rules.DateLayouts)
	if !ok {
		s.logger.Warn("anchor rejected", "line", lineNum, "date", m[2], "err", ErrMalformedDate)
		return nil, true
	}

	p = &pending{}
	p.txn.OperationDate = &opDate
	p.txn.ValueDate = &valueDate

	opText := m[3]
	if loc := s.rules.InlineAmount.FindStringSubmatchIndex(opText); loc != nil {
		numeral := opText[loc[2]:loc[3]]
		amt, err := money.Parse(numeral, s.rules.Locale)
		if err != nil {
			s.logger.Warn("dropping inline amount", "line", lineNum, "err", err)
		} else {
			opText = opText[:loc[0]]
			p.inline = true
			p.txn.SetAmount(amt, isCreditLabel(opText, s.rules.CreditKeywords))
		}
	}
	p.txn.OperationType = cleanText(opText)
	return p, false
}

func (s *Scanner) flush() {
	if s.open == nil {
		return
	}
	p := s.open
	txn := p.txn

	switch {
	case p.inline:
		if len(p.amounts) > 0 {
			s.logger.Debug("ignoring amount lines after inline amount",
				"operation", txn.OperationType, "count", len(p.amounts))
		}
	case len(p.amounts) == 1:
		txn.SetAmount(p.amounts[0], isCreditLabel(txn.OperationType, s.rules.CreditKeywords))
	case len(p.amounts) > 1:
		// The larger value is assumed to be a running balance printed under the amount.
		smallest := decimal.Min(p.amounts[0], p.amounts[1:]...)
		s.logger.Debug("several amount lines, keeping the smallest",
			"operation", txn.OperationType, "amounts", p.amounts, "kept", smallest)
		txn.SetAmount(smallest, isCreditLabel(txn.OperationType, s.rules.CreditKeywords))
	}

	if p.cheque != "" {
		txn.OperationType = "CHEQUE " + p.cheque
	}
	txn.Category = s.rules.Classifier.Classify(txn.OperationType)
	txn.Description = strings.TrimSpace(strings.Join(append([]string{txn.OperationType}, txn.DetailLines...), " "))

	s.txns = append(s.txns, txn)
	s.open = nil
	s.state = StateIdle
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
