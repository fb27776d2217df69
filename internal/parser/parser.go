package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/insightdelivered/statement2csv/internal/models"
)

// ErrUnknownVariant is returned for a bank name no parser handles.
var ErrUnknownVariant = errors.New("unknown statement variant")

// Parser defines the interface for statement parsers.
type Parser interface {
	// Parse takes the text lines of one statement and returns structured data.
	Parse(lines []string) (*models.Statement, error)
	// BankName returns the human-readable bank name.
	BankName() string
}

// Option configures a parser.
type Option func(*options)

type options struct {
	logger *log.Logger
}

// WithLogger routes parse anomalies to logger.
func WithLogger(logger *log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: discardLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New returns the parser for the given variant.
func New(variant models.Variant, opts ...Option) (Parser, error) {
	o := buildOptions(opts)
	switch variant {
	case models.VariantSG:
		return newSocieteGeneraleParser(o), nil
	case models.VariantGeneric:
		return newLineParser(genericProfile, o), nil
	case models.VariantFrench:
		return newLineParser(frenchProfile, o), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
	}
}

// ParseVariant maps a user-supplied bank name to a variant.
func ParseVariant(name string) (models.Variant, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sg", "societegenerale", "societe-generale", "socgen":
		return models.VariantSG, nil
	case "generic":
		return models.VariantGeneric, nil
	case "french", "fr":
		return models.VariantFrench, nil
	default:
		return "", fmt.Errorf("%w: %q (supported: sg, generic, french)", ErrUnknownVariant, name)
	}
}

// AutoDetect picks a variant from the statement text. Statements that name
// no known bank fall back to the generic parser.
func AutoDetect(lines []string) models.Variant {
	combined := strings.Join(lines, "\n")

	if containsAnyIgnoreCase(combined, []string{"Société Générale", "SOCIETE GENERALE", "socgen.com", "entreprises.sg.fr"}) {
		return models.VariantSG
	}
	for _, re := range frenchBankPatterns {
		if re.MatchString(combined) {
			return models.VariantFrench
		}
	}
	if containsAnyIgnoreCase(combined, []string{"Relevé de compte", "Solde créditeur", "Solde débiteur"}) {
		return models.VariantFrench
	}
	return models.VariantGeneric
}

func containsAnyIgnoreCase(text string, needles []string) bool {
	for _, needle := range needles {
		if containsIgnoreCase(text, needle) {
			return true
		}
	}
	return false
}
