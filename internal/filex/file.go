// Package filex has small filesystem helpers.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureParentDir creates the directory that will hold path, owner-only, and
// returns it. A path without a directory part needs nothing and yields ".".
func EnsureParentDir(path string) (string, error) {
	dir := filepath.Dir(path)
	if dir == "." {
		return dir, nil
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}
