// Package pathutil keeps user-supplied names and paths inside the
// directories they are meant to address.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutside is returned when a path resolves outside its allowed directory.
var ErrOutside = errors.New("path is outside the allowed directory")

// ErrBadName is returned for names that cannot be used as a single file name.
var ErrBadName = errors.New("invalid name")

// RedactPath reduces a full path to .../<parent>/<basename> for error messages.
// For example, "/home/user/config/scenarios/x.yaml" becomes ".../scenarios/x.yaml".
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(cleaned))
	if parent == "." || parent == string(filepath.Separator) {
		return filepath.Base(cleaned)
	}
	return ".../" + parent + "/" + filepath.Base(cleaned)
}

// ValidateName checks that name can be used as one path component, such as
// a scenario name: no separators, no NUL, and not "." or "..".
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrBadName)
	case strings.ContainsRune(name, '\x00'):
		return fmt.Errorf("%w: contains null byte", ErrBadName)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrBadName, name)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrBadName, name)
	}
	return nil
}

// Within returns nil if path lies inside dir. Both are cleaned and made
// absolute, and symlinks are resolved on their deepest existing ancestors,
// so neither the file nor dir needs to exist yet.
func Within(path, dir string) error {
	if strings.ContainsRune(path, '\x00') {
		return fmt.Errorf("%w: path contains null byte", ErrOutside)
	}

	resolvedPath, err := resolve(path)
	if err != nil {
		return err
	}
	resolvedDir, err := resolve(dir)
	if err != nil {
		return err
	}
	if !isSubpath(resolvedPath, resolvedDir) {
		return fmt.Errorf("%w: %s", ErrOutside, RedactPath(resolvedPath))
	}
	return nil
}

func resolve(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("cannot resolve absolute path: %w", err)
	}
	return resolveExistingParent(abs)
}

// resolveExistingParent resolves symlinks on the deepest existing ancestor
// of dir and re-appends the missing tail.
func resolveExistingParent(dir string) (string, error) {
	resolved, err := filepath.EvalSymlinks(dir)
	if err == nil {
		return resolved, nil
	}

	parent := filepath.Dir(dir)
	if parent == dir {
		return "", fmt.Errorf("cannot resolve path: %s", RedactPath(dir))
	}
	resolvedParent, err := resolveExistingParent(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, filepath.Base(dir)), nil
}

// isSubpath checks whether path is equal to or below base.
func isSubpath(path, base string) bool {
	if path == base {
		return true
	}
	// "/tmp/foo" must not match "/tmp/foobar".
	return strings.HasPrefix(path, base+string(os.PathSeparator))
}
