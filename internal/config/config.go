// Package config builds the typed run configuration from viper settings.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/viper"
	"golang.org/x/text/language"

	"github.com/pavelanni/qanalyzer/internal/i18n"
	"github.com/pavelanni/qanalyzer/internal/llm"
	"github.com/pavelanni/qanalyzer/internal/report"
)

// Defaults for every setting.
const (
	DefaultLLMURL       = "http://localhost:11434/v1"
	DefaultLLMKey       = "ollama"
	DefaultLLMModel     = "llama3.1:8b"
	DefaultLLMTimeout   = 120 * time.Second
	DefaultMaxRetries   = 3
	DefaultRetryDelay   = 2 * time.Second
	DefaultInputDir     = "input"
	DefaultInputPattern = "*.txt"
	DefaultOutputDir    = "output"
	DefaultOutputFile   = "analysis_results.xlsx"
	DefaultSheetName    = "Question Analysis"
	DefaultLang         = "en"
	DefaultAddr         = ":5000"
	DefaultSessionTTL   = 24 * time.Hour
	DefaultMaxSessions  = 32

	maxSheetNameLen = 31
)

// Config is the validated runtime configuration.
type Config struct {
	LLMURL     string
	LLMKey     string
	LLMModel   string
	LLMTimeout time.Duration
	MaxRetries int
	RetryDelay time.Duration
	PromptFile string

	InputDir     string
	InputPattern string
	OutputDir    string
	OutputFile   string
	SheetName    string

	Lang      string
	NoDisplay bool

	Addr        string
	SessionTTL  time.Duration
	MaxSessions int
}

// SetDefaults registers the default value of every key on v, so settings
// that have no flag on a given command still resolve.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("llm-url", DefaultLLMURL)
	v.SetDefault("llm-key", DefaultLLMKey)
	v.SetDefault("llm-model", DefaultLLMModel)
	v.SetDefault("llm-timeout", DefaultLLMTimeout)
	v.SetDefault("max-retries", DefaultMaxRetries)
	v.SetDefault("retry-delay", DefaultRetryDelay)
	v.SetDefault("prompt-file", "")
	v.SetDefault("input-dir", DefaultInputDir)
	v.SetDefault("input-pattern", DefaultInputPattern)
	v.SetDefault("output-dir", DefaultOutputDir)
	v.SetDefault("output-file", DefaultOutputFile)
	v.SetDefault("sheet-name", DefaultSheetName)
	v.SetDefault("lang", DefaultLang)
	v.SetDefault("no-display", false)
	v.SetDefault("addr", DefaultAddr)
	v.SetDefault("session-ttl", DefaultSessionTTL)
	v.SetDefault("max-sessions", DefaultMaxSessions)
}

// FromViper reads and validates the configuration.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		LLMURL:       strings.TrimSpace(v.GetString("llm-url")),
		LLMKey:       v.GetString("llm-key"),
		LLMModel:     strings.TrimSpace(v.GetString("llm-model")),
		LLMTimeout:   v.GetDuration("llm-timeout"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryDelay:   v.GetDuration("retry-delay"),
		PromptFile:   strings.TrimSpace(v.GetString("prompt-file")),
		InputDir:     v.GetString("input-dir"),
		InputPattern: v.GetString("input-pattern"),
		OutputDir:    v.GetString("output-dir"),
		OutputFile:   v.GetString("output-file"),
		SheetName:    v.GetString("sheet-name"),
		Lang:         strings.ToLower(strings.TrimSpace(v.GetString("lang"))),
		NoDisplay:    v.GetBool("no-display"),
		Addr:         v.GetString("addr"),
		SessionTTL:   v.GetDuration("session-ttl"),
		MaxSessions:  v.GetInt("max-sessions"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.LLMURL == "" {
		errs = append(errs, errors.New("llm-url is required"))
	}
	if c.LLMModel == "" {
		errs = append(errs, errors.New("llm-model is required"))
	}
	if c.LLMTimeout <= 0 {
		errs = append(errs, fmt.Errorf("llm-timeout must be positive, got %s", c.LLMTimeout))
	}
	if c.MaxRetries <= 0 {
		errs = append(errs, fmt.Errorf("max-retries must be positive, got %d", c.MaxRetries))
	}
	if c.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("retry-delay must not be negative, got %s", c.RetryDelay))
	}
	if _, err := filepath.Match(c.InputPattern, "probe.txt"); err != nil || c.InputPattern == "" {
		errs = append(errs, fmt.Errorf("input-pattern %q is not a valid glob", c.InputPattern))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output-dir is required"))
	}
	if err := validateFilename(c.OutputFile); err != nil {
		errs = append(errs, err)
	}
	if err := ValidateSheetName(c.SheetName); err != nil {
		errs = append(errs, err)
	}
	if err := validateLang(c.Lang); err != nil {
		errs = append(errs, err)
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("session-ttl must be positive, got %s", c.SessionTTL))
	}
	if c.MaxSessions <= 0 {
		errs = append(errs, fmt.Errorf("max-sessions must be positive, got %d", c.MaxSessions))
	}
	return errors.Join(errs...)
}

// validateLang accepts a language tag whose base language has an embedded
// locale.
func validateLang(lang string) error {
	tag, err := language.Parse(lang)
	if err != nil {
		return fmt.Errorf("lang %q: %w", lang, err)
	}
	base, _ := tag.Base()
	supported := i18n.Supported()
	if !slices.Contains(supported, base.String()) {
		return fmt.Errorf("lang %q is not supported (available: %s)", lang, strings.Join(supported, ", "))
	}
	return nil
}

func validateFilename(name string) error {
	if name == "" {
		return errors.New("output-file is required")
	}
	if filepath.Base(name) != name {
		return fmt.Errorf("output-file %q must be a bare file name", name)
	}
	if !strings.EqualFold(filepath.Ext(name), ".xlsx") {
		return fmt.Errorf("output-file %q must have the .xlsx extension", name)
	}
	return nil
}

// ValidateSheetName applies the spreadsheet naming rules.
func ValidateSheetName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return errors.New("sheet-name is required")
	case utf8.RuneCountInString(name) > maxSheetNameLen:
		return fmt.Errorf("sheet-name %q exceeds %d characters", name, maxSheetNameLen)
	case strings.ContainsAny(name, `[]:*?/\`):
		return fmt.Errorf("sheet-name %q contains one of []:*?/\\", name)
	case strings.HasPrefix(name, "'") || strings.HasSuffix(name, "'"):
		return fmt.Errorf("sheet-name %q must not start or end with an apostrophe", name)
	}
	return nil
}

// LLM returns the backend client settings.
func (c Config) LLM() llm.Config {
	return llm.Config{
		BaseURL:    c.LLMURL,
		APIKey:     c.LLMKey,
		Model:      c.LLMModel,
		Timeout:    c.LLMTimeout,
		MaxRetries: c.MaxRetries,
		RetryDelay: c.RetryDelay,
		PromptFile: c.PromptFile,
	}
}

// Report returns the workbook settings for the given file name. An empty name
// selects the configured output file.
func (c Config) Report(filename string) report.Config {
	if filename == "" {
		filename = c.OutputFile
	}
	return report.Config{
		Folder:    c.OutputDir,
		Filename:  filename,
		SheetName: c.SheetName,
	}
}

// ReportFilename names the workbook for one input file. A single input uses
// the configured name; several inputs get the input's stem as a prefix.
func (c Config) ReportFilename(input string, inputs int) string {
	if inputs <= 1 {
		return c.OutputFile
	}
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return stem + "_" + c.OutputFile
}
