package scanner

import "path/filepath"

// ManifestFiles are the dependency manifests whose presence next to an
// environment means it can be recreated.
var ManifestFiles = []string{
	"requirements.txt",
	"pyproject.toml",
	"poetry.lock",
	"Pipfile",
}

// Manifests returns the manifest names found directly inside dir.
// Subdirectories are never searched.
func Manifests(dir string) []string {
	var found []string
	for _, name := range ManifestFiles {
		if isFile(filepath.Join(dir, name)) {
			found = append(found, name)
		}
	}
	return found
}

// projectDir is the directory inspected for manifests of the environment at path.
func projectDir(path string) string {
	parent := filepath.Dir(path)
	if parent == path {
		return ""
	}
	return parent
}
