package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig is the single-file configuration schema.
type FileConfig struct {
	Output    string `yaml:"output" json:"output"`
	OutputPDF string `yaml:"outputPDF" json:"outputPDF"`
	Reports   string `yaml:"reports" json:"reports"`

	Extract struct {
		OCR         *bool  `yaml:"ocr" json:"ocr"`
		OCRLanguage string `yaml:"ocrLanguage" json:"ocrLanguage"`
		MinChars    int    `yaml:"minChars" json:"minChars"`
	} `yaml:"extract" json:"extract"`

	Search struct {
		Sites         []string      `yaml:"sites" json:"sites"`
		Driver        string        `yaml:"driver" json:"driver"`
		ChromePath    string        `yaml:"chromePath" json:"chromePath"`
		Headful       bool          `yaml:"headful" json:"headful"`
		Parallel      bool          `yaml:"parallel" json:"parallel"`
		MaxResults    int           `yaml:"maxResults" json:"maxResults"`
		ActionTimeout time.Duration `yaml:"actionTimeout" json:"actionTimeout"`
		Settle        time.Duration `yaml:"settle" json:"settle"`
		SiteInterval  time.Duration `yaml:"siteInterval" json:"siteInterval"`
		UserAgent     string        `yaml:"userAgent" json:"userAgent"`
	} `yaml:"search" json:"search"`

	LLM struct {
		BaseURL       string `yaml:"base" json:"base"`
		Model         string `yaml:"model" json:"model"`
		APIKey        string `yaml:"key" json:"key"`
		CacheOnly     bool   `yaml:"cacheOnly" json:"cacheOnly"`
		SummaryPrompt string `yaml:"summaryPrompt" json:"summaryPrompt"`
	} `yaml:"llm" json:"llm"`

	Cache struct {
		Dir         string        `yaml:"dir" json:"dir"`
		MaxAge      time.Duration `yaml:"maxAge" json:"maxAge"`
		MaxBytes    int64         `yaml:"maxBytes" json:"maxBytes"`
		MaxEntries  int           `yaml:"maxEntries" json:"maxEntries"`
		Clear       bool          `yaml:"clear" json:"clear"`
		StrictPerms bool          `yaml:"strictPerms" json:"strictPerms"`
		HTTPOnly    bool          `yaml:"httpCacheOnly" json:"httpCacheOnly"`
	} `yaml:"cache" json:"cache"`

	Verbose bool `yaml:"verbose" json:"verbose"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays values from fc onto fields of cfg that are unset
// or still hold their flag default, so explicit flags keep precedence.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	if cfg.OutputPath == "" && fc.Output != "" {
		cfg.OutputPath = fc.Output
	}
	if cfg.OutputPDFPath == "" && fc.OutputPDF != "" {
		cfg.OutputPDFPath = fc.OutputPDF
	}
	if (cfg.ReportsDir == "" || cfg.ReportsDir == defaultReportsDir) && fc.Reports != "" {
		cfg.ReportsDir = fc.Reports
	}

	if fc.Extract.OCR != nil && !*fc.Extract.OCR {
		cfg.DisableOCR = true
	}
	if (cfg.OCRLanguage == "" || cfg.OCRLanguage == defaultOCRLanguage) && fc.Extract.OCRLanguage != "" {
		cfg.OCRLanguage = fc.Extract.OCRLanguage
	}
	if cfg.MinTextChars == 0 && fc.Extract.MinChars > 0 {
		cfg.MinTextChars = fc.Extract.MinChars
	}

	if len(cfg.Sites) == 0 && len(fc.Search.Sites) > 0 {
		cfg.Sites = append([]string{}, fc.Search.Sites...)
	}
	if (cfg.Driver == "" || cfg.Driver == defaultDriver) && fc.Search.Driver != "" {
		cfg.Driver = fc.Search.Driver
	}
	if cfg.ChromePath == "" && fc.Search.ChromePath != "" {
		cfg.ChromePath = fc.Search.ChromePath
	}
	if !cfg.Headful && fc.Search.Headful {
		cfg.Headful = true
	}
	if !cfg.Parallel && fc.Search.Parallel {
		cfg.Parallel = true
	}
	if (cfg.MaxResults == 0 || cfg.MaxResults == defaultMaxResults) && fc.Search.MaxResults > 0 {
		cfg.MaxResults = fc.Search.MaxResults
	}
	if (cfg.ActionTimeout == 0 || cfg.ActionTimeout == defaultActionTimeout) && fc.Search.ActionTimeout > 0 {
		cfg.ActionTimeout = fc.Search.ActionTimeout
	}
	if (cfg.Settle == 0 || cfg.Settle == defaultSettle) && fc.Search.Settle > 0 {
		cfg.Settle = fc.Search.Settle
	}
	if (cfg.SiteInterval == 0 || cfg.SiteInterval == defaultSiteInterval) && fc.Search.SiteInterval > 0 {
		cfg.SiteInterval = fc.Search.SiteInterval
	}
	if cfg.UserAgent == "" && fc.Search.UserAgent != "" {
		cfg.UserAgent = fc.Search.UserAgent
	}

	if cfg.LLMBaseURL == "" && fc.LLM.BaseURL != "" {
		cfg.LLMBaseURL = fc.LLM.BaseURL
	}
	if cfg.LLMModel == "" && fc.LLM.Model != "" {
		cfg.LLMModel = fc.LLM.Model
	}
	if cfg.LLMAPIKey == "" && fc.LLM.APIKey != "" {
		cfg.LLMAPIKey = fc.LLM.APIKey
	}
	if !cfg.LLMCacheOnly && fc.LLM.CacheOnly {
		cfg.LLMCacheOnly = true
	}
	if cfg.SummaryPrompt == "" && fc.LLM.SummaryPrompt != "" {
		cfg.SummaryPrompt = fc.LLM.SummaryPrompt
	}

	if (cfg.CacheDir == "" || cfg.CacheDir == defaultCacheDir) && fc.Cache.Dir != "" {
		cfg.CacheDir = fc.Cache.Dir
	}
	if cfg.CacheMaxAge == 0 && fc.Cache.MaxAge > 0 {
		cfg.CacheMaxAge = fc.Cache.MaxAge
	}
	if cfg.CacheMaxBytes == 0 && fc.Cache.MaxBytes > 0 {
		cfg.CacheMaxBytes = fc.Cache.MaxBytes
	}
	if cfg.CacheMaxEntries == 0 && fc.Cache.MaxEntries > 0 {
		cfg.CacheMaxEntries = fc.Cache.MaxEntries
	}
	if !cfg.CacheClear && fc.Cache.Clear {
		cfg.CacheClear = true
	}
	if !cfg.CacheStrictPerms && fc.Cache.StrictPerms {
		cfg.CacheStrictPerms = true
	}
	if !cfg.HTTPCacheOnly && fc.Cache.HTTPOnly {
		cfg.HTTPCacheOnly = true
	}
	if !cfg.Verbose && fc.Verbose {
		cfg.Verbose = true
	}
}

// ValidateConfig checks the settings every command relies on.
func ValidateConfig(cfg Config) error {
	switch strings.TrimSpace(cfg.Driver) {
	case "", DriverChrome, DriverHTTP:
	default:
		return fmt.Errorf("config: unknown driver %q (want %s or %s)", cfg.Driver, DriverChrome, DriverHTTP)
	}
	if cfg.MaxResults < 0 || cfg.MinTextChars < 0 || cfg.CacheMaxBytes < 0 || cfg.CacheMaxEntries < 0 {
		return errors.New("config: negative limits are not allowed")
	}
	if cfg.ActionTimeout < 0 || cfg.Settle < 0 || cfg.SiteInterval < 0 || cfg.CacheMaxAge < 0 {
		return errors.New("config: negative durations are not allowed")
	}
	if cfg.LLMCacheOnly && strings.TrimSpace(cfg.LLMModel) == "" {
		return errors.New("config: llm.cacheOnly needs llm.model (or set LLM_MODEL)")
	}
	return nil
}
