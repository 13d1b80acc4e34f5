package mcpl

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RealFilename finds the file MCPL_output actually wrote for path. The
// component silently renames its output, so path itself, then
// <stem>.mcpl, then <stem>.mcpl.gz are tried.
func RealFilename(path string) (string, error) {
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	for _, candidate := range []string{path, stem + ".mcpl", stem + ".mcpl.gz"} {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no MCPL file for %s: %w", path, os.ErrNotExist)
}
