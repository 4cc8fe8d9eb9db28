package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// loadVarsFiles reads prompt variable files in order and deep merges them,
// later files winning. Entries may be doublestar globs; their matches load
// in lexical order.
func loadVarsFiles(configDir string, entries []string) (map[string]any, error) {
	merged := make(map[string]any)

	for _, entry := range entries {
		files, err := expandVarsEntry(configDir, entry)
		if err != nil {
			return nil, err
		}

		for _, file := range files {
			data, err := os.ReadFile(file)
			if err != nil {
				return nil, fmt.Errorf("read vars file %q: %w", file, err)
			}

			var vars map[string]any
			if err := yaml.Unmarshal(data, &vars); err != nil {
				return nil, fmt.Errorf("parse vars file %q: %w", file, err)
			}
			mergeMaps(merged, vars)
		}
	}

	return merged, nil
}

// expandVarsEntry resolves one vars_files entry to file paths. A plain path
// is returned as is; a glob must match at least one file.
func expandVarsEntry(configDir, entry string) ([]string, error) {
	path := resolvePath(configDir, entry)
	if !strings.ContainsAny(entry, "*?[{") {
		return []string{path}, nil
	}

	matches, err := doublestar.FilepathGlob(path, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("vars glob %q: %w", entry, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("vars glob %q matched no files", entry)
	}
	slices.Sort(matches)
	return matches, nil
}

// resolvePath expands a leading ~/ and anchors relative paths at dir.
func resolvePath(dir, path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// mergeMaps deep merges src into dst. Nested maps merge key by key; any other
// value in src replaces the one in dst.
func mergeMaps(dst, src map[string]any) {
	for key, v := range src {
		nested, ok := v.(map[string]any)
		if !ok {
			dst[key] = v
			continue
		}
		if existing, ok := dst[key].(map[string]any); ok {
			mergeMaps(existing, nested)
			continue
		}
		dst[key] = nested
	}
}
