package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateKeywords(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.api_bind %q: %w", c.Paths.APIBind, err)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.Workers > 64 {
		return fmt.Errorf("workflow.workers must be at most 64, got %d", c.Workflow.Workers)
	}
	if c.Transcription.MaxConcurrent > c.Workflow.Workers {
		return fmt.Errorf("transcription.max_concurrent (%d) cannot exceed workflow.workers (%d)", c.Transcription.MaxConcurrent, c.Workflow.Workers)
	}
	return nil
}

func (c *Config) validateLLM() error {
	parsed, err := url.Parse(c.LLM.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("llm.base_url %q must be an absolute URL", c.LLM.BaseURL)
	}
	return nil
}

func (c *Config) validateKeywords() error {
	if c.Keywords.TopN > 50 {
		return fmt.Errorf("keywords.top_n must be at most 50, got %d", c.Keywords.TopN)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	levels := map[string]struct{}{"debug": {}, "info": {}, "warn": {}, "warning": {}, "error": {}}
	if _, ok := levels[c.Logging.Level]; !ok {
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	for stage, level := range c.Logging.StageOverrides {
		if _, ok := levels[level]; !ok {
			return fmt.Errorf("logging.stage_overrides.%s: level %q is not recognized", stage, strings.TrimSpace(level))
		}
	}
	return nil
}

// LLMConfigured reports whether the chat completion client has credentials.
func (c *Config) LLMConfigured() bool {
	return strings.TrimSpace(c.LLM.APIKey) != ""
}
