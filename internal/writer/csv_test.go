package writer

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement2csv/internal/models"
)

func day(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func amount(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func sgStatement() *models.Statement {
	st := &models.Statement{
		Bank:           models.VariantSG,
		BankName:       "Société Générale",
		BankCode:       "30003",
		AccountNumber:  "FR76 3000 3028 4600 0500 3463 154",
		AccountType:    "CAV ADMI",
		PeriodEnd:      day("2025-07-31"),
		ClosingBalance: amount("117767.32"),
		BalanceDate:    day("2025-09-02"),
	}
	fee := models.Transaction{OperationDate: day("2025-07-01"), ValueDate: day("2025-07-01"),
		OperationType: "FACTURATION COTISATION", Category: "COMMISSIONS ET FRAIS DIVERS"}
	fee.SetAmount(decimal.RequireFromString("1234.5"), false)
	st.Add(fee)

	transfer := models.Transaction{OperationDate: day("2025-07-02"), ValueDate: day("2025-07-03"),
		OperationType: "VIR INST RE 552211", DetailLines: []string{"DE: DUPONT JEAN", "REF: FACT-0725"}}
	transfer.SetAmount(decimal.RequireFromString("150"), true)
	st.Add(transfer)
	return st
}

func TestBankCSVWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	w := &BankCSVWriter{
		Profile:       Profile{BankLabel: "SG ABBEVILLE LEJEUNE    ", AccountCode: "CM"},
		IncludeHeader: true,
	}
	if err := w.Write(&buf, sgStatement()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := strings.Join([]string{
		"SG ABBEVILLE LEJEUNE    ",
		"FR76 3000 3028 4600 0500 3463 154,CM",
		"CAV ADMI",
		"Solde au,02/09/2025",
		"Solde,\"117 767,32\",EUR",
		"",
		"Date,Nature de l'opération,Débit,Crédit,Devise,Date de valeur,Libellé interbancaire",
		"01/07/2025,FACTURATION COTISATION,\"-1 234,50\",,EUR,01/07/2025,COMMISSIONS ET FRAIS DIVERS",
		"02/07/2025,VIR INST RE 552211,,\"150,00\",EUR,03/07/2025,",
		",DE: DUPONT JEAN,,,,,",
		",REF: FACT-0725,,,,,",
	}, "\n") + "\n"

	if got := buf.String(); got != want {
		t.Errorf("output mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestBankCSVWriter_RoundTripsThroughCSVReader(t *testing.T) {
	var buf bytes.Buffer
	w := &BankCSVWriter{IncludeHeader: true, Comma: ';'}
	if err := w.Write(&buf, sgStatement()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := csv.NewReader(&buf)
	r.Comma = ';'
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("reading back: %v", err)
	}
	// The empty sixth row is skipped by the reader.
	if len(records) != 10 {
		t.Fatalf("got %d records, want 10: %q", len(records), records)
	}
	if records[0][0] != "Société Générale" {
		t.Errorf("bank label fallback: got %q", records[0][0])
	}
	if records[1][1] != "30003" {
		t.Errorf("account code fallback: got %q", records[1][1])
	}
	if records[6][2] != "-1 234,50" {
		t.Errorf("debit cell: got %q", records[6][2])
	}
	for i, rec := range records[5:] {
		if len(rec) != len(BankColumns) {
			t.Errorf("row %d has %d columns, want %d", i+5, len(rec), len(BankColumns))
		}
	}
}

func TestBankCSVWriter_WriteNoHeader(t *testing.T) {
	var buf bytes.Buffer
	w := &BankCSVWriter{IncludeHeader: false}
	if err := w.Write(&buf, &models.Statement{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Date,Nature de l'opération,Débit,Crédit,Devise,Date de valeur,Libellé interbancaire\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestBankCSVWriter_BalanceFallsBackToPeriodEnd(t *testing.T) {
	st := &models.Statement{PeriodEnd: day("2025-07-31")}
	rows := (&BankCSVWriter{Profile: Profile{AccountType: "CAV", Currency: "USD"}}).headerRows(st)
	if rows[3][1] != "31/07/2025" {
		t.Errorf("balance date: got %q", rows[3][1])
	}
	if rows[4][1] != "" || rows[4][2] != "USD" {
		t.Errorf("balance row: got %q", rows[4])
	}
	if rows[2][0] != "CAV" {
		t.Errorf("account type: got %q", rows[2][0])
	}
}

func TestGenericCSVWriter_Write(t *testing.T) {
	st := &models.Statement{
		Bank:          models.VariantGeneric,
		BankName:      "Acme Bank",
		AccountNumber: "12345678",
		PeriodStart:   day("2024-01-15"),
		PeriodEnd:     day("2024-01-31"),
	}
	card := models.Transaction{OperationDate: day("2024-01-15"), Description: "CARD PAYMENT TESCO",
		Balance: amount("1234.56"), Category: "CARD PAYMENTS"}
	card.SetAmount(decimal.RequireFromString("25.99"), false)
	st.Add(card)
	salary := models.Transaction{OperationDate: day("2024-01-16"), Description: "SALARY, ACME", Reference: "PAY-01"}
	salary.SetAmount(decimal.RequireFromString("2500"), true)
	st.Add(salary)
	st.Add(models.Transaction{Description: "NOTE"})

	var buf bytes.Buffer
	w := &GenericCSVWriter{}
	if err := w.Write(&buf, st); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := strings.Join([]string{
		"Date,Description,Amount,Balance,Reference,Category",
		"2024-01-15,CARD PAYMENT TESCO,-25.99,1234.56,,CARD PAYMENTS",
		"2024-01-16,\"SALARY, ACME\",2500.00,,PAY-01,",
		",NOTE,,,,",
	}, "\n") + "\n"
	if got := buf.String(); got != want {
		t.Errorf("output mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestGenericCSVWriter_ColumnHeaderFirst(t *testing.T) {
	st := &models.Statement{
		Bank:          models.VariantGeneric,
		BankName:      "Unknown Bank",
		AccountNumber: "12345678",
		BankCode:      "12-34-56",
	}
	txn := models.Transaction{OperationDate: day("2024-01-15"), Description: "ATM WITHDRAWAL"}
	txn.SetAmount(decimal.RequireFromString("50"), false)
	st.Add(txn)

	for _, header := range []bool{true, false} {
		var buf bytes.Buffer
		w := ForVariant(models.VariantGeneric, Options{IncludeHeader: header, Comma: ';'})
		if err := w.Write(&buf, st); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		r := csv.NewReader(&buf)
		r.Comma = ';'
		records, err := r.ReadAll()
		if err != nil {
			t.Fatalf("output is not valid CSV: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("header=%v: got %d records, want 2", header, len(records))
		}
		if !reflect.DeepEqual(records[0], GenericColumns) {
			t.Errorf("header=%v: row 0 = %q, want %q", header, records[0], GenericColumns)
		}
		for i, rec := range records {
			if len(rec) != len(GenericColumns) {
				t.Errorf("header=%v: row %d has %d columns", header, i, len(rec))
			}
		}
	}
}

func TestForVariant(t *testing.T) {
	tests := []struct {
		variant models.Variant
		bank    bool
	}{
		{models.VariantSG, true},
		{models.VariantGeneric, false},
		{models.VariantFrench, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.variant), func(t *testing.T) {
			w := ForVariant(tt.variant, Options{IncludeHeader: true})
			_, isBank := w.(*BankCSVWriter)
			if isBank != tt.bank {
				t.Errorf("got %T", w)
			}
		})
	}
}

func TestWriteToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w := ForVariant(models.VariantSG, Options{IncludeHeader: true})
	if err := w.WriteToFile(path, sgStatement()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "VIR INST RE 552211") {
		t.Errorf("file content: %s", data)
	}

	if err := w.WriteToFile(filepath.Join(t.TempDir(), "missing", "out.csv"), sgStatement()); err == nil {
		t.Error("expected error for missing directory")
	}
}
