// Package config loads settings from defaults, an optional YAML file, a .env
// file and STATEMENT2CSV_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. STATEMENT2CSV_LOG_LEVEL.
const EnvPrefix = "STATEMENT2CSV"

type Config struct {
	Log       LogConfig
	Bank      string
	CSV       CSVConfig
	Export    ExportConfig
	HTTP      HTTPConfig
	Cache     CacheConfig
	Pdftotext string
}

type LogConfig struct {
	Level  string
	Format string
}

type CSVConfig struct {
	Comma  rune
	Header bool
}

// ExportConfig holds the values printed in the header rows of the bank's
// CSV layout that the statement text does not carry.
type ExportConfig struct {
	BankLabel   string
	AccountCode string
	AccountType string
	Currency    string
}

type HTTPConfig struct {
	Addr      string
	BodyLimit int
}

// CacheConfig controls the API result cache. A zero TTL disables it.
type CacheConfig struct {
	TTL time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("bank", "")
	v.SetDefault("csv.comma", ",")
	v.SetDefault("csv.header", true)
	v.SetDefault("export.bank_label", "")
	v.SetDefault("export.account_code", "")
	v.SetDefault("export.account_type", "")
	v.SetDefault("export.currency", "EUR")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.body_limit", 20*1024*1024)
	v.SetDefault("cache.ttl", 10*time.Minute)
	v.SetDefault("pdftotext.path", "pdftotext")
}

// Load reads the configuration. path names a YAML file and may be empty, in
// which case ./statement2csv.yaml is used when present.
func Load(path string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("statement2csv")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	comma, err := parseComma(v.GetString("csv.comma"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
		Bank: v.GetString("bank"),
		CSV: CSVConfig{
			Comma:  comma,
			Header: v.GetBool("csv.header"),
		},
		Export: ExportConfig{
			BankLabel:   v.GetString("export.bank_label"),
			AccountCode: v.GetString("export.account_code"),
			AccountType: v.GetString("export.account_type"),
			Currency:    v.GetString("export.currency"),
		},
		HTTP: HTTPConfig{
			Addr:      v.GetString("http.addr"),
			BodyLimit: v.GetInt("http.body_limit"),
		},
		Cache: CacheConfig{
			TTL: v.GetDuration("cache.ttl"),
		},
		Pdftotext: v.GetString("pdftotext.path"),
	}

	if cfg.HTTP.BodyLimit <= 0 {
		return nil, fmt.Errorf("http.body_limit must be positive, got %d", cfg.HTTP.BodyLimit)
	}
	if cfg.Cache.TTL < 0 {
		return nil, fmt.Errorf("cache.ttl must not be negative, got %s", cfg.Cache.TTL)
	}
	switch cfg.Log.Format {
	case "text", "json", "logfmt":
	default:
		return nil, fmt.Errorf("log.format must be text, json or logfmt, got %q", cfg.Log.Format)
	}
	return cfg, nil
}

// parseComma accepts a single character, or "tab"/"\t" for tab.
func parseComma(s string) (rune, error) {
	switch s {
	case "tab", `\t`, "\t":
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || size != len(s) || r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return 0, fmt.Errorf("csv.comma must be a single character, got %q", s)
	}
	return r, nil
}
