package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lu-zhengda/venvkiller/internal/scanner"
	"github.com/lu-zhengda/venvkiller/internal/trash"
	"github.com/lu-zhengda/venvkiller/internal/utils"
)

// Config holds all venvkiller configuration.
type Config struct {
	Root       string       `yaml:"root"`
	RecentDays int          `yaml:"recent_days"`
	OldDays    int          `yaml:"old_days"`
	Exclude    []string     `yaml:"exclude"`
	Scan       ScanConfig   `yaml:"scan"`
	Delete     DeleteConfig `yaml:"delete"`
}

// ScanConfig controls the directory walk.
type ScanConfig struct {
	MaxDepth int      `yaml:"max_depth"`
	Workers  int      `yaml:"workers"`
	Skip     []string `yaml:"skip"`
}

// DeleteConfig controls how marked environments are removed.
type DeleteConfig struct {
	Method  string `yaml:"method"`
	Confirm bool   `yaml:"confirm"`
	// MinSizeStr is the default --min-size for the clean command.
	MinSize    int64  `yaml:"-"`
	MinSizeStr string `yaml:"min_size"`
}

// Default returns a Config with all default values populated.
func Default() *Config {
	th := scanner.DefaultThresholds()
	return &Config{
		Root:       "~",
		RecentDays: th.RecentDays,
		OldDays:    th.OldDays,
		Exclude:    []string{},
		Scan: ScanConfig{
			MaxDepth: 0,
			Workers:  4,
			Skip:     append([]string(nil), scanner.DefaultSkipDirs...),
		},
		Delete: DeleteConfig{
			Method:     string(trash.Permanent),
			Confirm:    true,
			MinSizeStr: "0",
		},
	}
}

// DefaultPath is ~/.config/venvkiller/config.yaml.
func DefaultPath() string {
	return filepath.Join(utils.ConfigDir(), "config.yaml")
}

// Load loads config from the given path. If path is empty, it uses
// DefaultPath. If the file does not exist, it creates it with default values.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		if err := cfg.Save(path); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	return LoadFrom(path)
}

// LoadFrom loads and parses config from the given path. Missing fields
// keep their default values.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Delete.MinSizeStr != "" {
		size, err := ParseSize(cfg.Delete.MinSizeStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse delete.min_size %q: %w", cfg.Delete.MinSizeStr, err)
		}
		cfg.Delete.MinSize = size
	}

	return cfg, nil
}

// Save marshals the config to YAML and writes it to the given path,
// creating parent directories as needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Thresholds returns the configured age bucket boundaries.
func (c *Config) Thresholds() scanner.Thresholds {
	return scanner.Thresholds{RecentDays: c.RecentDays, OldDays: c.OldDays}
}

// RootPath returns Root with "~" expanded.
func (c *Config) RootPath() string {
	return utils.ExpandHome(c.Root)
}

type sizeSuffix struct {
	suffix string
	mult   int64
}

var sizeSuffixes = []sizeSuffix{
	{"TB", 1024 * 1024 * 1024 * 1024},
	{"GB", 1024 * 1024 * 1024},
	{"MB", 1024 * 1024},
	{"KB", 1024},
}

// ParseSize parses a human-readable size string like "100MB", "1GB",
// "500KB", "2TB", or a plain number (bytes) into int64 bytes.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}
	upper := strings.ToUpper(s)

	mult := int64(1)
	for _, ss := range sizeSuffixes {
		if strings.HasSuffix(upper, ss.suffix) {
			upper = strings.TrimSuffix(upper, ss.suffix)
			mult = ss.mult
			break
		}
	}
	if upper == "" {
		return 0, fmt.Errorf("missing numeric value in %q", s)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(upper), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative size %q", s)
	}
	return n * mult, nil
}

// IsExcluded checks if the given path matches any of the configured
// exclude glob patterns. Matching is done against the full path and
// against the base name. Patterns ending in "/**" are treated as
// directory prefix matches.
func (c *Config) IsExcluded(path string) bool {
	for _, pattern := range c.Exclude {
		pattern = utils.ExpandHome(pattern)
		if strings.HasSuffix(pattern, "/**") {
			prefix := strings.TrimSuffix(pattern, "/**")
			if strings.HasPrefix(path, prefix+"/") || path == prefix {
				return true
			}
			continue
		}

		if matched, _ := filepath.Match(pattern, path); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, filepath.Base(path)); matched {
			return true
		}
	}
	return false
}
