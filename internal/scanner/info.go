package scanner

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Info is display-only metadata about an environment. Any field may be
// empty when it cannot be determined.
type Info struct {
	PythonVersion string   `json:"python_version,omitempty"`
	Packages      int      `json:"packages"`
	Manifests     []string `json:"manifests,omitempty"`
}

// ReadInfo gathers Info for the environment at path. It never fails;
// unreadable pieces are left empty.
func ReadInfo(path string) Info {
	info := Info{
		PythonVersion: pythonVersion(filepath.Join(path, "pyvenv.cfg")),
		Packages:      countPackages(path),
	}
	if dir := projectDir(path); dir != "" {
		info.Manifests = Manifests(dir)
	}
	return info
}

func pythonVersion(cfgPath string) string {
	f, err := os.Open(cfgPath)
	if err != nil {
		return ""
	}
	defer f.Close()

	var version, versionInfo string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "version":
			version = strings.TrimSpace(value)
		case "version_info":
			versionInfo = strings.TrimSpace(value)
		}
	}
	if version != "" {
		return version
	}
	// virtualenv writes e.g. "3.11.4.final.0"
	if parts := strings.Split(versionInfo, "."); len(parts) >= 3 {
		return strings.Join(parts[:3], ".")
	}
	return versionInfo
}

func countPackages(path string) int {
	dirs, _ := filepath.Glob(filepath.Join(path, "lib", "python*", "site-packages"))
	if len(dirs) == 0 {
		dirs = []string{filepath.Join(path, "Lib", "site-packages")}
	}

	n := 0
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() && (strings.HasSuffix(name, ".dist-info") || strings.HasSuffix(name, ".egg-info")) {
				n++
			}
		}
	}
	return n
}
