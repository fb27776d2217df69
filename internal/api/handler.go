package api

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement2csv/internal/config"
	"github.com/insightdelivered/statement2csv/internal/extractor"
	"github.com/insightdelivered/statement2csv/internal/models"
	"github.com/insightdelivered/statement2csv/internal/parser"
	"github.com/insightdelivered/statement2csv/internal/writer"
)

// RequestIDHeader carries the id echoed in every convert response.
const RequestIDHeader = "X-Request-ID"

var errNoUpload = errors.New("no statement uploaded, use form field 'file' or 'text'")

// ConvertResponse is the JSON response from the /api/convert endpoint.
type ConvertResponse struct {
	Success      bool                 `json:"success"`
	Error        string               `json:"error,omitempty"`
	RequestID    string               `json:"requestId,omitempty"`
	Bank         models.Variant       `json:"bank,omitempty"`
	BankName     string               `json:"bankName,omitempty"`
	AccountInfo  *AccountInfo         `json:"accountInfo,omitempty"`
	Transactions []models.Transaction `json:"transactions"`
	CSV          string               `json:"csv,omitempty"`
	TotalDebit   decimal.Decimal      `json:"totalDebit"`
	TotalCredit  decimal.Decimal      `json:"totalCredit"`
	Count        int                  `json:"count"`
	Cached       bool                 `json:"cached,omitempty"`
	DebugLines   []models.DebugLine   `json:"debugLines,omitempty"`
}

// AccountInfo holds account metadata for the JSON response.
type AccountInfo struct {
	Holder         string              `json:"holder,omitempty"`
	Address        string              `json:"address,omitempty"`
	Number         string              `json:"number,omitempty"`
	BankCode       string              `json:"bankCode,omitempty"`
	AccountType    string              `json:"accountType,omitempty"`
	Period         string              `json:"period,omitempty"`
	ClosingBalance decimal.NullDecimal `json:"closingBalance"`
}

// Handler holds the HTTP handlers for the API. Each request builds its own
// parser; the result cache is the only state shared between requests.
type Handler struct {
	cfg     *config.Config
	logger  *log.Logger
	loader  *extractor.Loader
	results *cache.Cache
	version string
}

// NewHandler returns a handler configured from cfg. A nil logger discards output.
func NewHandler(cfg *config.Config, logger *log.Logger, version string) *Handler {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	h := &Handler{
		cfg:    cfg,
		logger: logger,
		loader: &extractor.Loader{
			Pdftotext: cfg.Pdftotext,
			Logger:    logger,
		},
		version: version,
	}
	// A zero TTL turns the result cache off.
	if cfg.Cache.TTL > 0 {
		h.results = cache.New(cfg.Cache.TTL, 2*cfg.Cache.TTL)
	}
	return h
}

func (h *Handler) cached(key string) (*ConvertResponse, bool) {
	if h.results == nil {
		return nil, false
	}
	v, ok := h.results.Get(key)
	if !ok {
		return nil, false
	}
	return v.(*ConvertResponse), true
}

// NewApp builds the fiber application serving the API.
func NewApp(h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "statement2csv " + h.version,
		BodyLimit:             h.cfg.HTTP.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	h.RegisterRoutes(app)
	return app
}

// RegisterRoutes sets up the HTTP routes.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Get("/api/health", h.HandleHealth)
	app.Post("/api/convert", h.HandleConvert)
}

func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"engine":  "fiber",
		"version": h.version,
	})
}

// HandleConvert accepts a multipart "file" (.pdf or .txt) or a plain "text"
// field, plus optional "bank" and "header" fields, and returns the parsed
// statement with its CSV rendering.
func (h *Handler) HandleConvert(c *fiber.Ctx) error {
	requestID := uuid.NewString()
	c.Set(RequestIDHeader, requestID)
	logger := h.logger.With("request_id", requestID)

	name, data, err := readUpload(c)
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, requestID, fmt.Sprintf("Invalid upload: %v", err))
	}

	bankParam := strings.TrimSpace(c.FormValue("bank"))
	if bankParam == "" {
		bankParam = h.cfg.Bank
	}
	includeHeader := h.cfg.CSV.Header
	if v := c.FormValue("header"); v != "" {
		includeHeader = v != "false"
	}

	key := cacheKey(data, bankParam, includeHeader)
	if cached, ok := h.cached(key); ok {
		resp := *cached
		resp.RequestID = requestID
		resp.Cached = true
		logger.Debug("serving cached conversion", "file", name)
		return c.JSON(resp)
	}

	lines, err := h.loader.LoadBytes(c.UserContext(), name, data)
	if err != nil {
		logger.Warn("extraction failed", "file", name, "err", err)
		return writeError(c, fiber.StatusUnprocessableEntity, requestID, fmt.Sprintf("Text extraction failed: %v", err))
	}

	var variant models.Variant
	if bankParam != "" {
		variant, err = parser.ParseVariant(bankParam)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, requestID, err.Error())
		}
	} else {
		variant = parser.AutoDetect(lines)
	}

	p, err := parser.New(variant, parser.WithLogger(logger))
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, requestID, err.Error())
	}
	st, err := p.Parse(lines)
	if err != nil {
		return writeError(c, fiber.StatusUnprocessableEntity, requestID, fmt.Sprintf("Parsing failed: %v", err))
	}

	var csvBuf bytes.Buffer
	w := writer.ForVariant(variant, writer.Options{
		Profile:       profileFromConfig(h.cfg.Export),
		IncludeHeader: includeHeader,
		Comma:         h.cfg.CSV.Comma,
	})
	if err := w.Write(&csvBuf, st); err != nil {
		return writeError(c, fiber.StatusInternalServerError, requestID, fmt.Sprintf("CSV generation failed: %v", err))
	}

	resp := buildResponse(st, variant, csvBuf.String())
	if h.results != nil {
		h.results.SetDefault(key, resp)
	}
	logger.Info("converted statement", "file", name, "bank", variant, "transactions", resp.Count)

	out := *resp
	out.RequestID = requestID
	return c.JSON(out)
}

// readUpload returns the uploaded file, or the "text" field as a .txt upload.
func readUpload(c *fiber.Ctx) (string, []byte, error) {
	if fh, err := c.FormFile("file"); err == nil {
		ext := strings.ToLower(filepath.Ext(fh.Filename))
		if ext != ".pdf" && ext != ".txt" {
			return "", nil, fmt.Errorf("unsupported file type %q, want .pdf or .txt", ext)
		}
		f, err := fh.Open()
		if err != nil {
			return "", nil, fmt.Errorf("failed to open uploaded file: %w", err)
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return "", nil, fmt.Errorf("failed to read uploaded file: %w", err)
		}
		return fh.Filename, data, nil
	}

	if text := c.FormValue("text"); text != "" {
		return "pasted.txt", []byte(text), nil
	}
	return "", nil, errNoUpload
}

func buildResponse(st *models.Statement, variant models.Variant, csv string) *ConvertResponse {
	// nil marshals to JSON null, not []
	txns := st.Transactions
	if txns == nil {
		txns = []models.Transaction{}
	}
	debit, credit := st.Totals()

	resp := &ConvertResponse{
		Success:      true,
		Bank:         variant,
		BankName:     st.BankName,
		Transactions: txns,
		CSV:          csv,
		TotalDebit:   debit,
		TotalCredit:  credit,
		Count:        len(txns),
		DebugLines:   st.DebugLines,
	}
	if st.AccountHolder != "" || st.AccountNumber != "" || st.BankCode != "" || st.Period() != "" || st.ClosingBalance.Valid {
		resp.AccountInfo = &AccountInfo{
			Holder:         st.AccountHolder,
			Address:        st.HolderAddress,
			Number:         st.AccountNumber,
			BankCode:       st.BankCode,
			AccountType:    st.AccountType,
			Period:         st.Period(),
			ClosingBalance: st.ClosingBalance,
		}
	}
	return resp
}

func profileFromConfig(e config.ExportConfig) writer.Profile {
	return writer.Profile{
		BankLabel:   e.BankLabel,
		AccountCode: e.AccountCode,
		AccountType: e.AccountType,
		Currency:    e.Currency,
	}
}

func cacheKey(data []byte, bank string, header bool) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s|%s|%t", hex.EncodeToString(sum[:]), strings.ToLower(bank), header)
}

func writeError(c *fiber.Ctx, status int, requestID, msg string) error {
	return c.Status(status).JSON(ConvertResponse{
		Success:   false,
		Error:     msg,
		RequestID: requestID,
	})
}

func errorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	}
	return c.Status(status).JSON(ConvertResponse{
		Success: false,
		Error:   err.Error(),
	})
}
