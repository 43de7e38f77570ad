package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateArtifactName validates a single file name taken from a URL
// path segment before it is joined to a session directory. Separators
// and relative components are rejected outright.
func ValidateArtifactName(name string) error {
	if name == "" {
		return fmt.Errorf("file name cannot be empty")
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("file name contains path separator: %s", name)
	}
	if name == "." || name == ".." {
		return fmt.Errorf("file name is a relative component: %s", name)
	}
	if strings.ContainsRune(name, '\x00') {
		return fmt.Errorf("file name contains NUL byte")
	}
	return nil
}

// ValidateWithinDir ensures that joining name to baseDir cannot resolve
// to a path outside baseDir.
func ValidateWithinDir(baseDir, name string) error {
	if err := ValidateArtifactName(name); err != nil {
		return err
	}

	cleanBase := filepath.Clean(baseDir)
	cleanPath := filepath.Clean(filepath.Join(cleanBase, name))

	if cleanPath != cleanBase && !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) {
		return fmt.Errorf("path escapes base directory: %s", name)
	}
	return nil
}
