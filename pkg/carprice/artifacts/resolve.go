// Package artifacts locates the trained artifacts a deployment ships with.
package artifacts

import (
	"os"
	"path/filepath"

	"github.com/nekruzvatanshoev/carprice/pkg/carprice/errors"
)

// Resolve returns primary if it exists, otherwise the file of the same name in
// the parent of primary's directory. Artifacts produced by offline training
// scripts often land one level above the service root.
func Resolve(artifact, primary string) (string, error) {
	candidates := Candidates(primary)
	for _, p := range candidates {
		info, err := os.Stat(p)
		if err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", errors.NewModelNotFoundError(artifact, candidates...)
}

// Candidates lists the paths Resolve tries, in order.
func Candidates(primary string) []string {
	clean := filepath.Clean(primary)
	parent := filepath.Join(filepath.Dir(clean), "..", filepath.Base(clean))
	return []string{clean, parent}
}

// Join builds an artifact path relative to dir unless name is already absolute.
func Join(dir, name string) string {
	if name == "" || filepath.IsAbs(name) || dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}
