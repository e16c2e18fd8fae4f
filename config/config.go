// Package config handles persistent settings for the assistant: provider
// credentials and model selection in config.yaml, plus the investor profile
// in profile.yaml. Files live under the per-user config directory.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied when neither the config file nor the environment
// provides a value.
const (
	DefaultProvider = "deepseek"
	DefaultBaseURL  = "https://api.deepseek.com"
	DefaultModel    = "deepseek-chat"
)

// Config holds provider and credential settings.
type Config struct {
	Provider     string `yaml:"provider"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	TushareToken string `yaml:"tushare_token"`
	Stream       bool   `yaml:"stream"`
	ShowThinking bool   `yaml:"show_thinking"`
}

// Dir returns the directory holding all persistent state, creating it if
// necessary.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}

	dir := filepath.Join(base, "fin-agent")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}

	return dir, nil
}

func configPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config file and overlays environment variables on top.
// A missing file is not an error; defaults and the environment apply.
func Load() (*Config, error) {
	cfg := &Config{
		Provider: DefaultProvider,
		BaseURL:  DefaultBaseURL,
		Model:    DefaultModel,
		Stream:   true,
	}

	path, err := configPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// First run, nothing saved yet.
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyEnv()

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("FIN_AGENT_PROVIDER"); v != "" {
		c.Provider = v
	}

	if v := os.Getenv("FIN_AGENT_MODEL"); v != "" {
		c.Model = v
	}

	if v := os.Getenv("DEEPSEEK_API_KEY"); v != "" {
		c.APIKey = v
	}

	if v := os.Getenv("DEEPSEEK_BASE_URL"); v != "" {
		c.BaseURL = v
	}

	if v := os.Getenv("TUSHARE_TOKEN"); v != "" {
		c.TushareToken = v
	}
}

// Save writes the config to disk with restrictive permissions, since it
// carries API credentials.
func (c *Config) Save() error {
	path, err := configPath()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

// Clear removes the saved config file. Missing files are ignored.
func Clear() error {
	path, err := configPath()
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}

	return nil
}

// Validate reports the settings still missing before the assistant can run.
func (c *Config) Validate() error {
	var missing []string

	if c.APIKey == "" {
		missing = append(missing, "api_key (or DEEPSEEK_API_KEY)")
	}

	if c.TushareToken == "" {
		missing = append(missing, "tushare_token (or TUSHARE_TOKEN)")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}

	return nil
}
