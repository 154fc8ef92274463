// Manages the wiki configuration stored in config.json.

package wiki

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/maruel/wikimark/internal/render"
	"github.com/maruel/wikimark/internal/storage/git"
)

// configFile is the name of the configuration file in the data directory.
const configFile = "config.json"

// Config stores the wiki configuration.
// Loaded from config.json, created with defaults if missing.
type Config struct {
	// Branch is the branch pages are read from and committed to.
	Branch string `json:"branch"`

	// EmailDomain is appended to author names in commit signatures.
	EmailDomain string `json:"email_domain"`

	// Theme is the chroma style used to highlight code blocks.
	Theme string `json:"theme"`

	// WriteRatePerMin limits saves and deletes per identity.
	// 0 means unlimited.
	WriteRatePerMin int `json:"write_rate_per_min"`

	// HistoryLimit is the default number of entries returned by the log.
	HistoryLimit int `json:"history_limit"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Branch:          git.DefaultBranch,
		EmailDomain:     "localhost",
		Theme:           render.DefaultTheme,
		WriteRatePerMin: 60,
		HistoryLimit:    100,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Branch == "" || strings.ContainsAny(c.Branch, " :~^?*[\\") || strings.Contains(c.Branch, "..") {
		return fmt.Errorf("invalid branch %q", c.Branch)
	}
	if c.EmailDomain == "" || strings.ContainsAny(c.EmailDomain, "<>@ \n") {
		return fmt.Errorf("invalid email_domain %q", c.EmailDomain)
	}
	if !render.ValidTheme(c.Theme) {
		return fmt.Errorf("unknown theme %q", c.Theme)
	}
	if c.WriteRatePerMin < 0 {
		return errors.New("write_rate_per_min must be non-negative")
	}
	if c.HistoryLimit <= 0 || c.HistoryLimit > 1000 {
		return errors.New("history_limit must be between 1 and 1000")
	}
	return nil
}

// LoadConfig loads configuration from dataDir/config.json.
// Creates the file with defaults if it doesn't exist.
func LoadConfig(dataDir string) (*Config, error) {
	path := filepath.Join(dataDir, configFile)
	cfg := DefaultConfig()
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is constructed from dataDir, not user input
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read %s: %w", configFile, err)
		}
		if err := cfg.Save(dataDir); err != nil {
			return nil, err
		}
	} else if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", configFile, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", configFile, err)
	}
	return &cfg, nil
}

// Save saves configuration to dataDir/config.json.
func (c *Config) Save(dataDir string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(filepath.Join(dataDir, configFile), data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", configFile, err)
	}
	return nil
}
