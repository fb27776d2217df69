package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/insightdelivered/statement2csv/internal/api"
	"github.com/insightdelivered/statement2csv/internal/config"
	"github.com/insightdelivered/statement2csv/internal/extractor"
	"github.com/insightdelivered/statement2csv/internal/logger"
	"github.com/insightdelivered/statement2csv/internal/models"
	"github.com/insightdelivered/statement2csv/internal/money"
	"github.com/insightdelivered/statement2csv/internal/parser"
	"github.com/insightdelivered/statement2csv/internal/writer"
)

const version = "2.0.0"

type runOptions struct {
	bank     models.Variant
	output   string
	header   bool
	keepText bool
}

func main() {
	// CLI flags
	bankFlag := flag.String("bank", "", "Statement variant: sg, generic, french (auto-detected if omitted)")
	outputFlag := flag.String("output", "", "Output CSV file path (defaults to input filename with .csv extension; single input only)")
	headerFlag := flag.Bool("header", true, "Include account header rows in the bank (sg) CSV layout")
	configFlag := flag.String("config", "", "Path to a YAML config file (defaults to ./statement2csv.yaml when present)")
	keepTextFlag := flag.Bool("keep-text", false, "Save the text extracted from each PDF next to it as .txt")
	serveFlag := flag.Bool("serve", false, "Run the HTTP API instead of converting files")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	helpFlag := flag.Bool("help", false, "Show usage help")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Bank Statement to CSV Converter
by Insight Delivered

Converts bank statement PDFs or their extracted text into normalized
transactions and a CSV file that keeps the bank's number format.

Usage:
  statement2csv [flags] <input.pdf|input.txt> [input2 ...]
  statement2csv --serve

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Auto-detect bank and convert
  statement2csv releve_07_2025.pdf

  # Specify the variant explicitly
  statement2csv --bank=sg releve_07_2025.txt

  # Custom output path
  statement2csv --bank=generic --output=transactions.csv statement.pdf

  # Convert a year of statements, keeping the extracted text
  statement2csv --keep-text releves/*.pdf

  # Serve the upload API on the configured address
  statement2csv --serve

Supported variants:
  sg       - Société Générale (two-date operation lines, 7-column bank CSV)
  french   - Other French banks (DD/MM/YYYY or DD mon, comma decimals)
  generic  - Any other statement (one date and amount per line)

Environment:
  STATEMENT2CSV_* variables and a .env file override the config file,
  e.g. STATEMENT2CSV_CSV_COMMA=";" or STATEMENT2CSV_LOG_LEVEL=debug.
`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("statement2csv v%s\n", version)
		os.Exit(0)
	}

	if *helpFlag || (flag.NArg() == 0 && !*serveFlag) {
		flag.Usage()
		os.Exit(0)
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fatalf("Config error: %v\n", err)
	}

	// Flags given on the command line win over the config file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "bank":
			cfg.Bank = *bankFlag
		case "header":
			cfg.CSV.Header = *headerFlag
		}
	})

	lg, err := logger.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fatalf("Config error: %v\n", err)
	}

	if *serveFlag {
		if err := serve(cfg, lg); err != nil {
			fatalf("Server error: %v\n", err)
		}
		return
	}

	inputFiles := flag.Args()
	if *outputFlag != "" && len(inputFiles) > 1 {
		fatalf("--output can only be used with a single input file\n")
	}

	// Validate bank if provided
	opts := runOptions{
		output:   *outputFlag,
		header:   cfg.CSV.Header,
		keepText: *keepTextFlag,
	}
	if cfg.Bank != "" {
		opts.bank, err = parser.ParseVariant(cfg.Bank)
		if err != nil {
			fatalf("%v\n", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// One bad statement must not stop the batch.
	failed := 0
	for _, inputPath := range inputFiles {
		if err := processFile(ctx, cfg, lg, inputPath, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error processing %s: %v\n", inputPath, err)
			failed++
			if ctx.Err() != nil {
				break
			}
		}
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d file(s) failed\n", failed, len(inputFiles))
		os.Exit(1)
	}
}

func processFile(ctx context.Context, cfg *config.Config, lg *log.Logger, inputPath string, opts runOptions) error {
	// Validate input file
	if _, err := os.Stat(inputPath); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("input file not found: %s", inputPath)
	}

	fmt.Printf("Processing: %s\n", inputPath)

	loader := &extractor.Loader{
		Pdftotext: cfg.Pdftotext,
		KeepText:  opts.keepText,
		Logger:    lg,
	}
	lines, err := loader.LoadLines(ctx, inputPath)
	if err != nil {
		return fmt.Errorf("text extraction failed: %w", err)
	}

	fmt.Printf("  Read %d line(s)\n", len(lines))

	// Auto-detect bank if not specified
	variant := opts.bank
	if variant == "" {
		variant = parser.AutoDetect(lines)
		fmt.Printf("  Auto-detected variant: %s\n", variant)
	}

	p, err := parser.New(variant, parser.WithLogger(lg.With("file", filepath.Base(inputPath))))
	if err != nil {
		return err
	}

	fmt.Printf("  Using %s parser\n", p.BankName())

	st, err := p.Parse(lines)
	if err != nil {
		return fmt.Errorf("parsing failed: %w", err)
	}

	fmt.Printf("  Found %d transaction(s)\n", len(st.Transactions))

	if len(st.Transactions) == 0 {
		fmt.Println("  Warning: No transactions found. The text may not match the expected layout.")
		fmt.Println("  Try specifying the variant explicitly with --bank if auto-detection was used.")
	}

	outPath := opts.output
	if outPath == "" {
		outPath = strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".csv"
	}

	w := writer.ForVariant(variant, writer.Options{
		Profile: writer.Profile{
			BankLabel:   cfg.Export.BankLabel,
			AccountCode: cfg.Export.AccountCode,
			AccountType: cfg.Export.AccountType,
			Currency:    cfg.Export.Currency,
		},
		IncludeHeader: opts.header,
		Comma:         cfg.CSV.Comma,
	})
	if err := w.WriteToFile(outPath, st); err != nil {
		return fmt.Errorf("CSV write failed: %w", err)
	}

	fmt.Printf("  Output: %s\n", outPath)

	// Print summary
	if st.AccountHolder != "" {
		fmt.Printf("  Account holder: %s\n", st.AccountHolder)
	}
	if st.AccountNumber != "" {
		fmt.Printf("  Account number: %s\n", st.AccountNumber)
	}
	if st.BankCode != "" {
		fmt.Printf("  Bank code: %s\n", st.BankCode)
	}
	if period := st.Period(); period != "" {
		fmt.Printf("  Period: %s\n", period)
	}
	if st.ClosingBalance.Valid {
		fmt.Printf("  Closing balance: %s\n", money.Format(st.ClosingBalance.Decimal, money.Output))
	}
	debit, credit := st.Totals()
	fmt.Printf("  Total debit: %s  Total credit: %s\n", money.Format(debit, money.Output), money.Format(credit, money.Output))

	fmt.Println("  Done.")
	return nil
}

func serve(cfg *config.Config, lg *log.Logger) error {
	app := api.NewApp(api.NewHandler(cfg, lg, version))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		lg.Info("shutting down")
		if err := app.Shutdown(); err != nil {
			lg.Error("shutdown failed", "err", err)
		}
	}()

	lg.Info("listening", "addr", cfg.HTTP.Addr, "version", version)
	return app.Listen(cfg.HTTP.Addr)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(1)
}
