package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/insightdelivered/statement2csv/internal/models"
	"github.com/insightdelivered/statement2csv/internal/money"
)

// Writer renders a statement as CSV.
type Writer interface {
	Write(out io.Writer, st *models.Statement) error
	WriteToFile(path string, st *models.Statement) error
}

// Profile carries the export header values that cannot be read from the
// statement itself. Empty fields fall back to what the parser found.
type Profile struct {
	BankLabel   string
	AccountCode string
	AccountType string
	Currency    string
}

// Options configures the writer returned by ForVariant.
type Options struct {
	Profile       Profile
	IncludeHeader bool
	// Comma is the field delimiter; zero means ','.
	Comma rune
}

// ForVariant returns the writer for the layout a variant is exported in:
// the bank's own 7-column layout for sg, the 6-column layout otherwise.
// IncludeHeader only applies to the bank layout.
func ForVariant(v models.Variant, o Options) Writer {
	if v == models.VariantSG {
		return &BankCSVWriter{Profile: o.Profile, IncludeHeader: o.IncludeHeader, Comma: o.Comma}
	}
	return &GenericCSVWriter{Comma: o.Comma}
}

// BankColumns is the column header of the bank's CSV export.
var BankColumns = []string{
	"Date", "Nature de l'opération", "Débit", "Crédit", "Devise", "Date de valeur", "Libellé interbancaire",
}

// BankCSVWriter writes the layout of Société Générale's own CSV export: six
// header rows, the column header, then one row per transaction followed by
// one row per detail line.
type BankCSVWriter struct {
	Profile       Profile
	IncludeHeader bool
	Comma         rune
}

// WriteToFile writes the statement to a CSV file at the given path.
func (w *BankCSVWriter) WriteToFile(path string, st *models.Statement) error {
	return writeFile(path, st, w.Write)
}

// Write writes the statement in CSV format to the given writer.
func (w *BankCSVWriter) Write(out io.Writer, st *models.Statement) error {
	writer := newCSV(out, w.Comma)

	if w.IncludeHeader {
		for _, row := range w.headerRows(st) {
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("failed to write CSV header: %w", err)
			}
		}
	}

	if err := writer.Write(BankColumns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	currency := w.currency()
	for _, txn := range st.Transactions {
		var debit, credit string
		if txn.Debit.Valid {
			debit = "-" + money.Format(txn.Debit.Decimal, money.Output)
		}
		if txn.Credit.Valid {
			credit = money.Format(txn.Credit.Decimal, money.Output)
		}
		row := []string{
			formatDate(txn.OperationDate, "02/01/2006"),
			txn.OperationType,
			debit,
			credit,
			currency,
			formatDate(txn.ValueDate, "02/01/2006"),
			txn.Category,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
		for _, detail := range txn.DetailLines {
			if err := writer.Write([]string{"", detail, "", "", "", "", ""}); err != nil {
				return fmt.Errorf("failed to write CSV row: %w", err)
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

func (w *BankCSVWriter) headerRows(st *models.Statement) [][]string {
	label := firstNonEmpty(w.Profile.BankLabel, st.BankName)
	code := firstNonEmpty(w.Profile.AccountCode, st.BankCode)
	accountType := firstNonEmpty(st.AccountType, w.Profile.AccountType)

	balanceDate := st.BalanceDate
	if balanceDate == nil {
		balanceDate = st.PeriodEnd
	}
	var balance string
	if st.ClosingBalance.Valid {
		balance = money.Format(st.ClosingBalance.Decimal, money.Output)
	}

	return [][]string{
		{label},
		{st.AccountNumber, code},
		{accountType},
		{"Solde au", formatDate(balanceDate, "02/01/2006")},
		{"Solde", balance, w.currency()},
		{},
	}
}

func (w *BankCSVWriter) currency() string {
	return firstNonEmpty(w.Profile.Currency, "EUR")
}

// GenericColumns is the column header of the generic layout.
var GenericColumns = []string{"Date", "Description", "Amount", "Balance", "Reference", "Category"}

// GenericCSVWriter writes one row per transaction with ISO dates and a
// signed dot-decimal amount. The column header is always the first row so
// that exports of several statements can be concatenated.
type GenericCSVWriter struct {
	Comma rune
}

// WriteToFile writes the statement to a CSV file at the given path.
func (w *GenericCSVWriter) WriteToFile(path string, st *models.Statement) error {
	return writeFile(path, st, w.Write)
}

// Write writes the statement in CSV format to the given writer.
func (w *GenericCSVWriter) Write(out io.Writer, st *models.Statement) error {
	writer := newCSV(out, w.Comma)

	if err := writer.Write(GenericColumns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, txn := range st.Transactions {
		var amount, balance string
		if signed, ok := txn.SignedAmount(); ok {
			amount = signed.StringFixed(2)
		}
		if txn.Balance.Valid {
			balance = txn.Balance.Decimal.StringFixed(2)
		}
		row := []string{
			formatDate(txn.OperationDate, "2006-01-02"),
			txn.Description,
			amount,
			balance,
			txn.Reference,
			txn.Category,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func newCSV(out io.Writer, comma rune) *csv.Writer {
	writer := csv.NewWriter(out)
	if comma != 0 {
		writer.Comma = comma
	}
	return writer
}

func writeFile(path string, st *models.Statement, write func(io.Writer, *models.Statement) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	if err := write(f, st); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close output file %q: %w", path, err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func formatDate(t *time.Time, layout string) string {
	if t == nil {
		return ""
	}
	return t.Format(layout)
}
