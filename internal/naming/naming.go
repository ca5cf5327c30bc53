// Package naming derives output paths for compressed files.
package naming

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Suffix marks a compressed copy next to its source.
const Suffix = " (compressed)"

// DefaultOutput is the output path for a source when the caller gives none:
// the source's stem plus the compressed marker, always .mp4.
func DefaultOutput(sourcePath string) string {
	dir := filepath.Dir(sourcePath)
	stem := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	return filepath.Join(dir, stem+Suffix+".mp4")
}

// Unique returns path if nothing exists there, otherwise the first -1, -2,
// ... suffixed variant that is free. Never overwrites an existing file.
func Unique(path string) string {
	if !exists(path) {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", stem, i, ext)
		if !exists(candidate) {
			return candidate
		}
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
