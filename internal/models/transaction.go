package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction represents a single bank statement transaction.
type Transaction struct {
	OperationDate *time.Time          `json:"operationDate,omitempty"`
	ValueDate     *time.Time          `json:"valueDate,omitempty"`
	Description   string              `json:"description"`
	OperationType string              `json:"operationType"`
	Debit         decimal.NullDecimal `json:"debit"`
	Credit        decimal.NullDecimal `json:"credit"`
	Balance       decimal.NullDecimal `json:"balance"` // generic variants only
	Reference     string              `json:"reference,omitempty"`
	Category      string              `json:"category"`
	DetailLines   []string            `json:"detailLines,omitempty"`
}

// SetAmount records amount on the debit or credit side and clears the other,
// so a transaction never carries both. Negative values are stored as their
// absolute value; direction is given by credit.
func (t *Transaction) SetAmount(amount decimal.Decimal, credit bool) {
	amount = amount.Abs()
	if credit {
		t.Credit = decimal.NewNullDecimal(amount)
		t.Debit = decimal.NullDecimal{}
		return
	}
	t.Debit = decimal.NewNullDecimal(amount)
	t.Credit = decimal.NullDecimal{}
}

// HasAmount reports whether either side is set.
func (t Transaction) HasAmount() bool {
	return t.Debit.Valid || t.Credit.Valid
}

// SignedAmount returns credit minus debit, or false when no amount was assigned.
func (t Transaction) SignedAmount() (decimal.Decimal, bool) {
	switch {
	case t.Credit.Valid:
		return t.Credit.Decimal, true
	case t.Debit.Valid:
		return t.Debit.Decimal.Neg(), true
	}
	return decimal.Zero, false
}

// Variant identifies which parser produced a statement.
type Variant string

const (
	VariantSG      Variant = "sg"
	VariantGeneric Variant = "generic"
	VariantFrench  Variant = "french"
)

// DebugLine captures what the parser did with each input line.
type DebugLine struct {
	LineNum int    `json:"lineNum"`
	Text    string `json:"text"`
	State   string `json:"state"`
	Result  string `json:"result"` // "anchor", "amount", "cheque", "detail", "skipped", "rejected-anchor"
}

// Statement holds metadata and transactions extracted from one document.
type Statement struct {
	Bank           Variant             `json:"bank"`
	BankName       string              `json:"bankName"`
	BankCode       string              `json:"bankCode,omitempty"`
	AccountNumber  string              `json:"accountNumber,omitempty"`
	AccountHolder  string              `json:"accountHolder,omitempty"`
	HolderAddress  string              `json:"holderAddress,omitempty"`
	AccountType    string              `json:"accountType,omitempty"`
	PeriodStart    *time.Time          `json:"periodStart,omitempty"`
	PeriodEnd      *time.Time          `json:"periodEnd,omitempty"`
	OpeningBalance decimal.NullDecimal `json:"openingBalance"`
	ClosingBalance decimal.NullDecimal `json:"closingBalance"`
	BalanceDate    *time.Time          `json:"balanceDate,omitempty"`
	Transactions   []Transaction       `json:"transactions"`
	DebugLines     []DebugLine         `json:"-"`
}

// Add appends a transaction, preserving document order.
func (s *Statement) Add(t Transaction) {
	s.Transactions = append(s.Transactions, t)
}

// Totals sums the debit and credit columns.
func (s *Statement) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, t := range s.Transactions {
		if t.Debit.Valid {
			debit = debit.Add(t.Debit.Decimal)
		}
		if t.Credit.Valid {
			credit = credit.Add(t.Credit.Decimal)
		}
	}
	return debit, credit
}

// Period formats the statement period as "DD/MM/YYYY to DD/MM/YYYY", or "" when unknown.
func (s *Statement) Period() string {
	if s.PeriodStart == nil || s.PeriodEnd == nil {
		return ""
	}
	return s.PeriodStart.Format("02/01/2006") + " to " + s.PeriodEnd.Format("02/01/2006")
}
