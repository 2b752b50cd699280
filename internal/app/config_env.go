package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvToConfig populates unset fields of cfg from environment variables.
// Explicit cfg values take precedence over env.
func ApplyEnvToConfig(cfg *Config) {
	if cfg == nil {
		return
	}
	setString := func(dst *string, keys ...string) {
		if *dst != "" {
			return
		}
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}
	setString(&cfg.LLMBaseURL, "LLM_BASE_URL")
	setString(&cfg.LLMModel, "LLM_MODEL")
	setString(&cfg.LLMAPIKey, "LLM_API_KEY", "OPENAI_API_KEY")
	setString(&cfg.CacheDir, "MELKOR_CACHE_DIR", "CACHE_DIR")
	setString(&cfg.Driver, "MELKOR_DRIVER")
	setString(&cfg.ChromePath, "MELKOR_CHROME_PATH", "CHROME_PATH")
	setString(&cfg.OCRLanguage, "MELKOR_OCR_LANG")
	setString(&cfg.UserAgent, "MELKOR_USER_AGENT")
	setString(&cfg.ReportsDir, "MELKOR_REPORTS_DIR")

	if len(cfg.Sites) == 0 {
		cfg.Sites = splitList(os.Getenv("MELKOR_SITES"))
	}
	if cfg.MaxResults == 0 {
		if n, ok := envInt("MELKOR_MAX_RESULTS"); ok {
			cfg.MaxResults = n
		}
	}
	if cfg.CacheMaxAge == 0 {
		if d, ok := envDuration("CACHE_MAX_AGE"); ok {
			cfg.CacheMaxAge = d
		}
	}
	if cfg.ActionTimeout == 0 {
		if d, ok := envDuration("MELKOR_TIMEOUT"); ok {
			cfg.ActionTimeout = d
		}
	}

	setBool := func(dst *bool, envKey string) {
		if *dst {
			return
		}
		if s := strings.ToLower(strings.TrimSpace(os.Getenv(envKey))); s != "" {
			if s == "1" || s == "true" || s == "yes" || s == "on" {
				*dst = true
			}
		}
	}
	setBool(&cfg.Verbose, "VERBOSE")
	setBool(&cfg.Parallel, "MELKOR_PARALLEL")
	setBool(&cfg.Headful, "MELKOR_HEADFUL")
	setBool(&cfg.DisableOCR, "MELKOR_NO_OCR")
	setBool(&cfg.CacheClear, "CACHE_CLEAR")
	setBool(&cfg.CacheStrictPerms, "CACHE_STRICT_PERMS")
	setBool(&cfg.HTTPCacheOnly, "HTTP_CACHE_ONLY")
	setBool(&cfg.LLMCacheOnly, "LLM_CACHE_ONLY")
}

// ApplyEnvOverrides overrides cfg fields with any environment variables that
// are set. It runs after the config file so env beats file while flags, applied
// last, stay highest.
func ApplyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}
	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				*dst = v
			}
		}
	}
	setString(&cfg.LLMBaseURL, "LLM_BASE_URL")
	setString(&cfg.LLMModel, "LLM_MODEL")
	setString(&cfg.LLMAPIKey, "OPENAI_API_KEY", "LLM_API_KEY")
	setString(&cfg.CacheDir, "CACHE_DIR", "MELKOR_CACHE_DIR")
	setString(&cfg.Driver, "MELKOR_DRIVER")
	setString(&cfg.ChromePath, "CHROME_PATH", "MELKOR_CHROME_PATH")
	setString(&cfg.OCRLanguage, "MELKOR_OCR_LANG")
	setString(&cfg.UserAgent, "MELKOR_USER_AGENT")
	setString(&cfg.ReportsDir, "MELKOR_REPORTS_DIR")

	if sites := splitList(os.Getenv("MELKOR_SITES")); len(sites) > 0 {
		cfg.Sites = sites
	}
	if n, ok := envInt("MELKOR_MAX_RESULTS"); ok {
		cfg.MaxResults = n
	}
	if d, ok := envDuration("CACHE_MAX_AGE"); ok {
		cfg.CacheMaxAge = d
	}
	if d, ok := envDuration("MELKOR_TIMEOUT"); ok {
		cfg.ActionTimeout = d
	}

	setBool := func(dst *bool, envKey string) {
		if s := strings.ToLower(strings.TrimSpace(os.Getenv(envKey))); s != "" {
			switch s {
			case "1", "true", "yes", "on":
				*dst = true
			case "0", "false", "no", "off":
				*dst = false
			}
		}
	}
	setBool(&cfg.Verbose, "VERBOSE")
	setBool(&cfg.Parallel, "MELKOR_PARALLEL")
	setBool(&cfg.Headful, "MELKOR_HEADFUL")
	setBool(&cfg.DisableOCR, "MELKOR_NO_OCR")
	setBool(&cfg.CacheClear, "CACHE_CLEAR")
	setBool(&cfg.CacheStrictPerms, "CACHE_STRICT_PERMS")
	setBool(&cfg.HTTPCacheOnly, "HTTP_CACHE_ONLY")
	setBool(&cfg.LLMCacheOnly, "LLM_CACHE_ONLY")
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envInt(key string) (int, bool) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func envDuration(key string) (time.Duration, bool) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return 0, false
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}
