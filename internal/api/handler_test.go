package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement2csv/internal/config"
	"github.com/insightdelivered/statement2csv/internal/models"
)

const sampleStatement = `Acme Bank
Statement of Account
Account Number: 12345678
Sort Code: 12-34-56
15/01/2024 CARD PAYMENT TESCO STORES 25.99 1,234.56
16/01/2024 SALARY ACME LTD 2,000.00 3,234.56`

func testConfig() *config.Config {
	return &config.Config{
		Log:    config.LogConfig{Level: "info", Format: "text"},
		CSV:    config.CSVConfig{Comma: ',', Header: true},
		Export: config.ExportConfig{Currency: "EUR"},
		HTTP:   config.HTTPConfig{Addr: ":0", BodyLimit: 1 << 20},
		Cache:  config.CacheConfig{TTL: time.Minute},
	}
}

func setupTestApp(cfg *config.Config) *fiber.App {
	return NewApp(NewHandler(cfg, nil, "test"))
}

// multipartRequest builds a POST /api/convert request. A non-empty fileName
// attaches content as the "file" part.
func multipartRequest(t *testing.T, fileName, content string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if fileName != "" {
		part, err := mw.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(part, content); err != nil {
			t.Fatal(err)
		}
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("POST", "/api/convert", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func doConvert(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, ConvertResponse) {
	t.Helper()
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	var result ConvertResponse
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("failed to decode response %q: %v", body, err)
	}
	return resp, result
}

func TestHealthEndpoint(t *testing.T) {
	app := setupTestApp(testConfig())

	req := httptest.NewRequest("GET", "/api/health", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var result map[string]string
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if result["status"] != "ok" {
		t.Errorf("expected status=ok, got %q", result["status"])
	}
	if result["engine"] != "fiber" {
		t.Errorf("expected engine=fiber, got %q", result["engine"])
	}
	if result["version"] != "test" {
		t.Errorf("expected version=test, got %q", result["version"])
	}
}

func TestConvertEndpointRequiresFile(t *testing.T) {
	app := setupTestApp(testConfig())

	req := httptest.NewRequest("POST", "/api/convert", nil)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=----test")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("expected 400 for missing file, got %d", resp.StatusCode)
	}
}

func TestConvertText(t *testing.T) {
	app := setupTestApp(testConfig())

	resp, result := doConvert(t, app, multipartRequest(t, "", "", map[string]string{"text": sampleStatement}))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, result.Error)
	}
	if !result.Success {
		t.Error("expected success")
	}
	if result.RequestID == "" || resp.Header.Get(RequestIDHeader) != result.RequestID {
		t.Errorf("request id: body %q, header %q", result.RequestID, resp.Header.Get(RequestIDHeader))
	}
	if result.Bank != models.VariantGeneric {
		t.Errorf("bank: got %q", result.Bank)
	}
	if result.Count != 2 || len(result.Transactions) != 2 {
		t.Fatalf("count: got %d (%d transactions)", result.Count, len(result.Transactions))
	}
	if !result.TotalDebit.Equal(decimal.RequireFromString("25.99")) {
		t.Errorf("total debit: got %s", result.TotalDebit)
	}
	if !result.TotalCredit.Equal(decimal.RequireFromString("2000")) {
		t.Errorf("total credit: got %s", result.TotalCredit)
	}
	if result.AccountInfo == nil || result.AccountInfo.Number != "12345678" || result.AccountInfo.BankCode != "12-34-56" {
		t.Errorf("account info: got %+v", result.AccountInfo)
	}
	if !strings.Contains(result.CSV, "Date,Description,Amount,Balance,Reference,Category") {
		t.Errorf("csv missing generic header: %q", result.CSV)
	}
	if len(result.DebugLines) == 0 {
		t.Error("expected debug lines")
	}
}

func TestConvertFileUpload(t *testing.T) {
	app := setupTestApp(testConfig())

	req := multipartRequest(t, "statement.txt", sampleStatement, map[string]string{
		"bank":   "generic",
		"header": "false",
	})
	resp, result := doConvert(t, app, req)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, result.Error)
	}
	if result.Count != 2 {
		t.Errorf("count: got %d", result.Count)
	}
	if strings.HasPrefix(result.CSV, "#") {
		t.Errorf("header rows written with header=false: %q", result.CSV)
	}
	if !strings.HasPrefix(result.CSV, "Date,Description") {
		t.Errorf("csv: got %q", result.CSV)
	}
}

func TestConvertRejects(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		fields   map[string]string
		want     int
	}{
		{"unsupported extension", "statement.xlsx", nil, fiber.StatusBadRequest},
		{"unknown bank", "statement.txt", map[string]string{"bank": "martian"}, fiber.StatusBadRequest},
		{"unreadable pdf", "statement.pdf", nil, fiber.StatusUnprocessableEntity},
	}

	cfg := testConfig()
	cfg.Pdftotext = "/nonexistent/pdftotext"
	app := setupTestApp(cfg)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, result := doConvert(t, app, multipartRequest(t, tt.fileName, "not really a statement", tt.fields))
			if resp.StatusCode != tt.want {
				t.Errorf("status: got %d, want %d", resp.StatusCode, tt.want)
			}
			if result.Success || result.Error == "" {
				t.Errorf("expected error response, got %+v", result)
			}
		})
	}
}

func TestConvertCachesResults(t *testing.T) {
	app := setupTestApp(testConfig())

	_, first := doConvert(t, app, multipartRequest(t, "", "", map[string]string{"text": sampleStatement}))
	_, second := doConvert(t, app, multipartRequest(t, "", "", map[string]string{"text": sampleStatement}))

	if first.Cached {
		t.Error("first response should not be cached")
	}
	if !second.Cached {
		t.Error("second response should come from the cache")
	}
	if first.RequestID == second.RequestID {
		t.Error("cached response reused the request id")
	}
	if first.CSV != second.CSV {
		t.Error("cached csv differs")
	}

	_, other := doConvert(t, app, multipartRequest(t, "", "", map[string]string{"text": sampleStatement, "header": "false"}))
	if other.Cached {
		t.Error("different header option must not hit the cache")
	}
}

func TestConvertCacheDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.TTL = 0
	app := setupTestApp(cfg)

	for i := 0; i < 2; i++ {
		resp, result := doConvert(t, app, multipartRequest(t, "", "", map[string]string{"text": sampleStatement}))
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("expected 200, got %d: %s", resp.StatusCode, result.Error)
		}
		if result.Cached {
			t.Errorf("request %d served from a disabled cache", i+1)
		}
	}
}

func TestReadUploadErrors(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		want     string
	}{
		{"nothing uploaded", "", "Invalid upload: no statement uploaded"},
		{"wrong extension", "statement.xlsx", `Invalid upload: unsupported file type ".xlsx"`},
	}

	app := setupTestApp(testConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, result := doConvert(t, app, multipartRequest(t, tt.fileName, "x", nil))
			if resp.StatusCode != fiber.StatusBadRequest {
				t.Errorf("status: got %d", resp.StatusCode)
			}
			if !strings.HasPrefix(result.Error, tt.want) {
				t.Errorf("error: got %q, want prefix %q", result.Error, tt.want)
			}
		})
	}
}

func TestConvertBodyLimit(t *testing.T) {
	cfg := testConfig()
	cfg.HTTP.BodyLimit = 64
	app := setupTestApp(cfg)

	req := multipartRequest(t, "statement.txt", strings.Repeat(sampleStatement, 4), nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", resp.StatusCode)
	}
}

func TestCacheKey(t *testing.T) {
	a := cacheKey([]byte("x"), "SG", true)
	if a != cacheKey([]byte("x"), "sg", true) {
		t.Error("bank name case should not change the key")
	}
	if a == cacheKey([]byte("x"), "sg", false) || a == cacheKey([]byte("y"), "sg", true) {
		t.Error("distinct inputs share a key")
	}
}
