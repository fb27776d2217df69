package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/ledongthuc/pdf"
)

// ErrSourceUnreadable is returned when no usable text can be obtained from
// an input file.
var ErrSourceUnreadable = errors.New("source unreadable")

// Loader turns statement files into text lines. Text files are read as is;
// PDFs go through pdftotext in reading order first, then the pure-Go PDF
// library as a fallback.
type Loader struct {
	// Pdftotext is the pdftotext binary; empty means "pdftotext" from PATH.
	Pdftotext string
	// KeepText writes the extracted text next to the PDF as <name>.txt.
	KeepText bool
	Logger   *log.Logger
}

func (l *Loader) logger() *log.Logger {
	if l.Logger == nil {
		return log.New(io.Discard)
	}
	return l.Logger
}

// LoadLines returns the text lines of the statement at path.
func (l *Loader) LoadLines(ctx context.Context, path string) ([]string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".txt", ".text":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
		}
		return SplitLines(string(data)), nil
	case ".pdf":
		return l.loadPDF(ctx, path)
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", ErrSourceUnreadable, ext)
	}
}

// LoadBytes is LoadLines for uploaded content; name only selects the format.
func (l *Loader) LoadBytes(ctx context.Context, name string, data []byte) ([]string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".pdf" {
		if ext != ".txt" && ext != ".text" {
			return nil, fmt.Errorf("%w: unsupported file type %q", ErrSourceUnreadable, ext)
		}
		return SplitLines(string(data)), nil
	}

	tmp, err := os.CreateTemp("", "statement-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}

	uploaded := *l
	uploaded.KeepText = false
	return uploaded.loadPDF(ctx, tmp.Name())
}

// SplitLines splits extracted text into lines, treating form feeds (page
// breaks in pdftotext output) and carriage returns as line breaks.
func SplitLines(text string) []string {
	text = strings.NewReplacer("\r\n", "\n", "\r", "\n", "\f", "\n").Replace(text)
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return []string{}
	}
	return strings.Split(text, "\n")
}

func (l *Loader) loadPDF(ctx context.Context, path string) ([]string, error) {
	logger := l.logger().With("file", filepath.Base(path))

	text, cliErr := l.extractWithPdftotext(ctx, path)
	if cliErr == nil && !isReadableText([]string{text}) {
		cliErr = errors.New("pdftotext output is not readable text")
	}
	if cliErr != nil {
		logger.Debug("pdftotext unavailable, using PDF library", "err", cliErr)
		pages, libErr := extractWithLibrary(path)
		if libErr != nil || !isReadableText(pages) {
			if libErr == nil {
				libErr = errors.New("no readable text layer (the PDF may be scanned)")
			}
			return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnreadable, filepath.Base(path), libErr)
		}
		text = strings.Join(pages, "\n")
	}

	lines := SplitLines(text)
	if l.KeepText {
		if err := writeSidecar(path, lines); err != nil {
			logger.Warn("cannot keep extracted text", "err", err)
		} else {
			logger.Info("kept extracted text", "path", sidecarPath(path))
		}
	}
	return lines, nil
}

func sidecarPath(pdfPath string) string {
	return strings.TrimSuffix(pdfPath, filepath.Ext(pdfPath)) + ".txt"
}

func writeSidecar(pdfPath string, lines []string) error {
	return os.WriteFile(sidecarPath(pdfPath), []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}

// extractWithPdftotext runs pdftotext without -layout so that each text
// block comes out in reading order, one field per line.
func (l *Loader) extractWithPdftotext(ctx context.Context, path string) (string, error) {
	bin := l.Pdftotext
	if bin == "" {
		bin = "pdftotext"
	}
	if _, err := exec.LookPath(bin); err != nil {
		return "", fmt.Errorf("pdftotext not available: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "-enc", "UTF-8", path, "-")
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return string(out), nil
}

// textQuality returns the ratio of readable characters (ASCII letters and
// digits, French accented letters, whitespace, common punctuation) to
// total characters. Returns 0.0-1.0.
func textQuality(pages []string) float64 {
	total := 0
	readable := 0
	for _, page := range pages {
		for _, r := range page {
			total++
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
				(r >= '0' && r <= '9') || unicode.IsSpace(r) ||
				strings.ContainsRune(".,-/:;()'\"£$€%&@#!?+=*°’", r) ||
				strings.ContainsRune("éèêëàâäçôöûùüîïÉÈÊÀÂÇÔÛÎ", r) {
				readable++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(readable) / float64(total)
}

// commonWords that appear in virtually all bank statements, English or French.
var commonWords = []string{
	"bank", "account", "balance", "date", "payment", "statement",
	"total", "amount", "credit", "debit", "transaction", "sort code",
	"banque", "compte", "solde", "relevé", "crédit", "débit", "virement",
	"opération", "montant", "page", "period", "période",
}

func containsCommonWords(pages []string) bool {
	combined := strings.ToLower(strings.Join(pages, " "))
	for _, word := range commonWords {
		if strings.Contains(combined, word) {
			return true
		}
	}
	return false
}

// isReadableText requires >50 chars, >60% readable characters and at least
// one common statement word.
func isReadableText(pages []string) bool {
	if totalTextLen(pages) <= 50 {
		return false
	}
	if textQuality(pages) <= 0.6 {
		return false
	}
	return containsCommonWords(pages)
}

// extractWithLibrary uses the ledongthuc/pdf library with multiple methods.
func extractWithLibrary(filePath string) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("PDF library crashed: %v", r)
		}
	}()

	f, r, openErr := pdf.Open(filePath)
	if openErr != nil {
		return nil, openErr
	}
	defer f.Close()

	numPages := r.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}

	pages = extractByRow(r, numPages)
	if isReadableText(pages) {
		return pages, nil
	}

	pages = extractByContent(r, numPages)
	if isReadableText(pages) {
		return pages, nil
	}

	plainText := extractByReaderPlainText(r)
	if isReadableText([]string{plainText}) {
		return []string{plainText}, nil
	}

	return pages, nil
}

// extractByRow emits one line per text row and page.
func extractByRow(r *pdf.Reader, numPages int) []string {
	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		var lines []string
		for _, row := range rows {
			var parts []string
			for _, word := range row.Content {
				parts = append(parts, word.S)
			}
			line := strings.TrimSpace(strings.Join(parts, " "))
			if line != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return pages
}

// extractByContent groups text pieces by Y coordinate to rebuild rows, then
// sorts each row by X.
func extractByContent(r *pdf.Reader, numPages int) []string {
	type textItem struct {
		x float64
		s string
	}

	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()
		if len(content.Text) == 0 {
			continue
		}

		rowMap := make(map[int][]textItem)
		for _, t := range content.Text {
			if strings.TrimSpace(t.S) == "" {
				continue
			}
			yKey := int(math.Round(t.Y))
			rowMap[yKey] = append(rowMap[yKey], textItem{x: t.X, s: t.S})
		}

		// PDF Y grows upwards
		yKeys := make([]int, 0, len(rowMap))
		for y := range rowMap {
			yKeys = append(yKeys, y)
		}
		sort.Sort(sort.Reverse(sort.IntSlice(yKeys)))

		var lines []string
		for _, y := range yKeys {
			items := rowMap[y]
			sort.Slice(items, func(a, b int) bool {
				return items[a].x < items[b].x
			})

			var b strings.Builder
			var prevX float64
			for j, item := range items {
				if j > 0 && item.x-prevX > 15 {
					b.WriteString("  ")
				}
				b.WriteString(item.s)
				prevX = item.x
			}
			if line := strings.TrimSpace(b.String()); line != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return pages
}

func extractByReaderPlainText(r *pdf.Reader) string {
	reader, err := r.GetPlainText()
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func totalTextLen(pages []string) int {
	n := 0
	for _, p := range pages {
		n += len(strings.TrimSpace(p))
	}
	return n
}
