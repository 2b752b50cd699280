package app

import (
	"fmt"
	"time"
)

// Config holds runtime configuration for the application.
type Config struct {
	// Extraction
	DisableOCR   bool
	OCRLanguage  string
	MinTextChars int

	// Jurisprudence search
	Sites         []string
	Driver        string
	ChromePath    string
	Headful       bool
	Parallel      bool
	MaxResults    int
	ActionTimeout time.Duration
	Settle        time.Duration
	SiteInterval  time.Duration
	UserAgent     string

	// LLM
	LLMBaseURL    string
	LLMModel      string
	LLMAPIKey     string
	LLMCacheOnly  bool
	SummaryPrompt string

	// Output
	OutputPath    string
	OutputPDFPath string
	ReportsDir    string

	// Cache
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheMaxBytes    int64
	CacheMaxEntries  int
	CacheClear       bool
	CacheStrictPerms bool
	HTTPCacheOnly    bool

	Verbose bool
}

const (
	DriverChrome = "chrome"
	DriverHTTP   = "http"
)

// Flag defaults. ApplyFileConfig treats a field still holding its default as
// unset so the file can override it.
const (
	defaultOCRLanguage   = "por"
	defaultDriver        = DriverChrome
	defaultMaxResults    = 5
	defaultActionTimeout = 30 * time.Second
	defaultSettle        = 3 * time.Second
	defaultSiteInterval  = time.Second
	defaultCacheDir      = ".melkor-cache"
	defaultReportsDir    = "reports"
)

// DefaultConfig returns the configuration every flag set starts from.
func DefaultConfig() Config {
	return Config{
		OCRLanguage:   defaultOCRLanguage,
		Driver:        defaultDriver,
		MaxResults:    defaultMaxResults,
		ActionTimeout: defaultActionTimeout,
		Settle:        defaultSettle,
		SiteInterval:  defaultSiteInterval,
		CacheDir:      defaultCacheDir,
		ReportsDir:    defaultReportsDir,
	}
}

// Resolve layers configuration with precedence flags > env > file > defaults.
// configPath may be empty. applyFlags should only touch fields whose flags
// were set explicitly on the command line.
func Resolve(configPath string, applyFlags func(*Config)) (Config, error) {
	cfg := DefaultConfig()
	if configPath != "" {
		fc, err := LoadConfigFile(configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config %s: %w", configPath, err)
		}
		ApplyFileConfig(&cfg, fc)
	}
	ApplyEnvOverrides(&cfg)
	if applyFlags != nil {
		applyFlags(&cfg)
	}
	return cfg, ValidateConfig(cfg)
}
