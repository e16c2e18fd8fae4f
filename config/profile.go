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

// Profile captures the investor preferences the assistant folds into its
// system prompt.
type Profile struct {
	RiskTolerance string   `yaml:"risk_tolerance"`
	Horizon       string   `yaml:"horizon"`
	Watchlist     []string `yaml:"watchlist"`
	Notes         string   `yaml:"notes"`
}

func profilePath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, "profile.yaml"), nil
}

// LoadProfile reads the saved profile. A missing file yields an empty
// profile.
func LoadProfile() (*Profile, error) {
	path, err := profilePath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Profile{}, nil
		}

		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	p := &Profile{}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return p, nil
}

// Save writes the profile to disk.
func (p *Profile) Save() error {
	path, err := profilePath()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

// Merge overlays non-empty fields from other onto the profile. An empty
// watchlist in other leaves the existing watchlist in place.
func (p *Profile) Merge(other Profile) {
	if other.RiskTolerance != "" {
		p.RiskTolerance = other.RiskTolerance
	}

	if other.Horizon != "" {
		p.Horizon = other.Horizon
	}

	if len(other.Watchlist) > 0 {
		p.Watchlist = other.Watchlist
	}

	if other.Notes != "" {
		p.Notes = other.Notes
	}
}

// Summary renders the profile as prompt-ready prose. Empty profiles yield
// an empty string.
func (p *Profile) Summary() string {
	var parts []string

	if p.RiskTolerance != "" {
		parts = append(parts, "Risk tolerance: "+p.RiskTolerance)
	}

	if p.Horizon != "" {
		parts = append(parts, "Investment horizon: "+p.Horizon)
	}

	if len(p.Watchlist) > 0 {
		parts = append(parts, "Watchlist: "+strings.Join(p.Watchlist, ", "))
	}

	if p.Notes != "" {
		parts = append(parts, "Notes: "+p.Notes)
	}

	if len(parts) == 0 {
		return ""
	}

	return "Investor profile:\n" + strings.Join(parts, "\n")
}
