package service

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// RuntimeSettings holds tuning values of the analysis pipeline.
type RuntimeSettings struct {
	PageMaxWorkers        int     `yaml:"page_max_workers"`
	PageTimeoutSec        int     `yaml:"page_timeout_sec"`
	DocumentMinTimeoutSec int     `yaml:"document_min_timeout_sec"`
	AnalysisTimeoutSec    int     `yaml:"analysis_timeout_sec"`
	ContextWindowPages    int     `yaml:"context_window_pages"`
	MaxContextChars       int     `yaml:"max_context_chars"`
	DefaultPriceMaxScore  float64 `yaml:"default_price_max_score"`
	TextCacheTtlMin       int     `yaml:"text_cache_ttl_min"`
	TaskRestartLimit      int     `yaml:"task_restart_limit"`
}

func DefaultRuntimeSettings() RuntimeSettings {
	return RuntimeSettings{
		PageMaxWorkers:        4,
		PageTimeoutSec:        20,
		DocumentMinTimeoutSec: 60,
		AnalysisTimeoutSec:    1800,
		ContextWindowPages:    2,
		MaxContextChars:       8000,
		DefaultPriceMaxScore:  40,
		TextCacheTtlMin:       60,
		TaskRestartLimit:      2,
	}
}

// LoadRuntimeSettings reads the yaml file on top of the defaults. A missing file is not an error.
func LoadRuntimeSettings(filename string) (RuntimeSettings, error) {
	settings := DefaultRuntimeSettings()
	if filename == "" {
		return settings, nil
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Infof("Runtime settings file %s not found, defaults are used", filename)
			return settings, nil
		}
		return settings, fmt.Errorf("failed to read runtime settings %s: %w", filename, err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("failed to parse runtime settings: %w", err)
	}
	if err := validateRuntimeSettings(settings); err != nil {
		return settings, fmt.Errorf("invalid runtime settings: %w", err)
	}
	return settings, nil
}

func validateRuntimeSettings(s RuntimeSettings) error {
	if s.PageMaxWorkers <= 0 {
		return fmt.Errorf("page_max_workers must be greater than 0")
	}
	if s.PageTimeoutSec <= 0 {
		return fmt.Errorf("page_timeout_sec must be greater than 0")
	}
	if s.DocumentMinTimeoutSec < s.PageTimeoutSec {
		return fmt.Errorf("document_min_timeout_sec (%d) must not be less than page_timeout_sec (%d)", s.DocumentMinTimeoutSec, s.PageTimeoutSec)
	}
	if s.AnalysisTimeoutSec <= 0 {
		return fmt.Errorf("analysis_timeout_sec must be greater than 0")
	}
	if s.ContextWindowPages < 0 {
		return fmt.Errorf("context_window_pages can not be negative")
	}
	if s.MaxContextChars < 500 {
		return fmt.Errorf("max_context_chars must be at least 500")
	}
	if s.DefaultPriceMaxScore <= 0 || s.DefaultPriceMaxScore > 100 {
		return fmt.Errorf("default_price_max_score must be in (0, 100]")
	}
	if s.TextCacheTtlMin < 0 {
		return fmt.Errorf("text_cache_ttl_min can not be negative")
	}
	if s.TaskRestartLimit < 0 {
		return fmt.Errorf("task_restart_limit can not be negative")
	}
	return nil
}

func (s RuntimeSettings) PageTimeout() time.Duration {
	return time.Duration(s.PageTimeoutSec) * time.Second
}

// DocumentTimeout scales with the page count but never goes below the configured minimum.
func (s RuntimeSettings) DocumentTimeout(pages int) time.Duration {
	perPage := pages * s.PageTimeoutSec / s.PageMaxWorkers
	if perPage < s.DocumentMinTimeoutSec {
		perPage = s.DocumentMinTimeoutSec
	}
	return time.Duration(perPage) * time.Second
}

func (s RuntimeSettings) AnalysisTimeout() time.Duration {
	return time.Duration(s.AnalysisTimeoutSec) * time.Second
}

func (s RuntimeSettings) TextCacheTtl() time.Duration {
	return time.Duration(s.TextCacheTtlMin) * time.Minute
}
