package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/lu-zhengda/venvkiller/internal/trash"
	"github.com/lu-zhengda/venvkiller/internal/utils"
)

// Warning is a non-fatal problem found in a config file.
type Warning struct {
	Field      string
	Message    string
	Suggestion string
}

func (w Warning) String() string {
	if w.Suggestion == "" {
		return fmt.Sprintf("%s: %s", w.Field, w.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", w.Field, w.Message, w.Suggestion)
}

// LoadAndValidate parses data and reports every suspicious value. A parse
// failure is an error; everything else is a warning.
func LoadAndValidate(data []byte) (*Config, []Warning, error) {
	cfg, err := parse(data)
	if err != nil {
		return nil, nil, err
	}
	return cfg, cfg.Validate(), nil
}

// Validate returns warnings for values that will be rejected or ignored
// at scan time.
func (c *Config) Validate() []Warning {
	var ws []Warning

	if c.RecentDays <= 0 {
		ws = append(ws, Warning{
			Field:      "recent_days",
			Message:    fmt.Sprintf("must be positive, got %d", c.RecentDays),
			Suggestion: "the default is 14",
		})
	}
	if c.OldDays <= c.RecentDays {
		ws = append(ws, Warning{
			Field:      "old_days",
			Message:    fmt.Sprintf("must be greater than recent_days (%d), got %d", c.RecentDays, c.OldDays),
			Suggestion: "the default is 90",
		})
	}

	if c.Root == "" {
		ws = append(ws, Warning{Field: "root", Message: "empty", Suggestion: `use "~" to scan the home directory`})
	} else if !utils.DirExists(c.RootPath()) {
		ws = append(ws, Warning{Field: "root", Message: fmt.Sprintf("%s is not a directory", c.Root)})
	}

	if c.Scan.Workers < 0 || c.Scan.Workers > 64 {
		ws = append(ws, Warning{
			Field:      "scan.workers",
			Message:    fmt.Sprintf("%d is out of range", c.Scan.Workers),
			Suggestion: "use a value between 1 and 64",
		})
	}
	if c.Scan.MaxDepth < 0 {
		ws = append(ws, Warning{Field: "scan.max_depth", Message: "negative depth", Suggestion: "use 0 for unlimited"})
	}

	for _, p := range c.Exclude {
		if strings.HasSuffix(p, "/**") {
			continue
		}
		if _, err := filepath.Match(p, ""); err != nil {
			ws = append(ws, Warning{Field: "exclude", Message: fmt.Sprintf("bad pattern %q", p)})
		}
	}

	if _, err := trash.ParseMethod(c.Delete.Method); err != nil {
		ws = append(ws, Warning{Field: "delete.method", Message: err.Error(), Suggestion: `use "permanent" or "trash"`})
	}

	return ws
}
