package scanner

import "time"

// Environment is one discovered virtual environment. Path is absolute and
// unique within a scan.
type Environment struct {
	Path         string    `json:"path"`
	SizeBytes    int64     `json:"size_bytes"`
	LastModified time.Time `json:"last_modified"`
	Bucket       AgeBucket `json:"age_bucket"`
	HasManifest  bool      `json:"has_manifest"`
	Marked       bool      `json:"marked"`
	Kind         Kind      `json:"kind"`
	// Partial means part of the tree was unreadable and SizeBytes is a lower bound.
	Partial   bool     `json:"partial,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
	LastError string   `json:"last_error,omitempty"`
	Info      Info     `json:"info"`
}

// ProjectDir is the directory that owns the environment.
func (e Environment) ProjectDir() string {
	return projectDir(e.Path)
}
