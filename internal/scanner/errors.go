package scanner

import "fmt"

// ConfigError reports an unusable scan configuration. It is returned before
// any traversal starts and is always fatal for the scan.
type ConfigError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Warning is a non-fatal problem met while scanning, such as an unreadable
// directory or a partially measured environment.
type Warning struct {
	Path string
	Err  error
}

func (w Warning) Error() string {
	return fmt.Sprintf("%s: %v", w.Path, w.Err)
}

func (w Warning) Unwrap() error { return w.Err }
