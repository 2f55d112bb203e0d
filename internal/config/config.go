// Package config loads the monitoring configuration: scan roots,
// exclusion rules and the locations of the baseline store and findings
// log.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/intact-sh/intact/internal/rules"
)

// Config represents the complete intact configuration.
type Config struct {
	Scan     ScanConfig     `yaml:"scan"`
	Store    StoreConfig    `yaml:"store"`
	Findings FindingsConfig `yaml:"findings"`
}

// ScanConfig selects what gets monitored.
type ScanConfig struct {
	// Roots are the monitored directory roots. Inclusion is expressed by
	// listing roots; Exclude carves paths back out.
	Roots []string `yaml:"roots"`
	// Exclude holds shell-style patterns; matching paths (and everything
	// below matching directories) are skipped. The set must stay stable
	// between baseline and verify runs, or carved-out paths are falsely
	// reported deleted.
	Exclude []string `yaml:"exclude"`
	// Workers bounds parallel hashing. Zero means the engine default.
	Workers int `yaml:"workers"`
}

// StoreConfig locates the baseline database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// FindingsConfig locates the findings log.
type FindingsConfig struct {
	Path string `yaml:"path"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.expandEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// expandEnv expands environment variables in all string fields
func (c *Config) expandEnv() {
	for i, root := range c.Scan.Roots {
		c.Scan.Roots[i] = os.ExpandEnv(root)
	}
	c.Store.Path = os.ExpandEnv(c.Store.Path)
	c.Findings.Path = os.ExpandEnv(c.Findings.Path)
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Store.Path == "" {
		c.Store.Path = "/var/lib/intact/baseline.db"
	}
	if c.Findings.Path == "" {
		c.Findings.Path = "/var/log/intact/findings.log"
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if len(c.Scan.Roots) == 0 {
		return fmt.Errorf("scan.roots is required")
	}
	for _, root := range c.Scan.Roots {
		if !filepath.IsAbs(root) {
			return fmt.Errorf("scan.roots entries must be absolute paths: %s", root)
		}
	}

	if !filepath.IsAbs(c.Store.Path) {
		return fmt.Errorf("store.path must be an absolute path: %s", c.Store.Path)
	}
	if !filepath.IsAbs(c.Findings.Path) {
		return fmt.Errorf("findings.path must be an absolute path: %s", c.Findings.Path)
	}

	if c.Scan.Workers < 0 {
		return fmt.Errorf("scan.workers must not be negative: %d", c.Scan.Workers)
	}

	// Surface bad patterns at load time rather than mid-cycle.
	if _, err := rules.Compile(c.Scan.Exclude); err != nil {
		return fmt.Errorf("scan.exclude: %w", err)
	}

	return nil
}

// Matcher compiles the exclusion rules. The returned matcher is immutable
// and serves a whole cycle.
func (c *Config) Matcher() (*rules.Matcher, error) {
	return rules.Compile(c.Scan.Exclude)
}

// CanonicalRoots returns the scan roots cleaned for use as store keys.
func (c *Config) CanonicalRoots() []string {
	roots := make([]string, len(c.Scan.Roots))
	for i, root := range c.Scan.Roots {
		roots[i] = filepath.Clean(root)
	}
	return roots
}
