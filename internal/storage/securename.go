package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mozillazg/go-unidecode"
)

// ErrInvalidPath is returned when a name would resolve outside its root.
var ErrInvalidPath = errors.New("invalid path")

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SanitizeFilename reduces a user supplied name to a flat ASCII filename.
// The result never contains a path separator and may be empty.
func SanitizeFilename(raw string) string {
	name := unidecode.Unidecode(raw)
	name = strings.NewReplacer("/", " ", "\\", " ").Replace(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}

// Root is a directory that resolved names are confined to.
type Root struct {
	dir string
}

// NewRoot resolves dir to an absolute, symlink-free path. The directory must exist.
func NewRoot(dir string) (*Root, error) {
	if dir == "" {
		return nil, errors.New("storage root is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", dir, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", dir, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("stat root %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage root %s is not a directory", dir)
	}
	return &Root{dir: resolved}, nil
}

// EnsureRoot creates dir when missing and returns it as a Root.
func EnsureRoot(dir string) (*Root, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create root %s: %w", dir, err)
	}
	return NewRoot(dir)
}

// Dir returns the resolved directory.
func (r *Root) Dir() string {
	return r.dir
}

// Resolve sanitizes raw and returns the sanitized name with its absolute path inside the root.
// Traversal sequences, absolute paths and symlinks pointing outside the root fail with ErrInvalidPath.
func (r *Root) Resolve(raw string) (string, string, error) {
	if hasTraversal(raw) {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, raw)
	}
	name := SanitizeFilename(raw)
	if name == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, raw)
	}

	candidate := filepath.Join(r.dir, name)
	resolved, err := filepath.EvalSymlinks(candidate)
	switch {
	case err == nil:
		candidate = resolved
	case errors.Is(err, fs.ErrNotExist):
		// an existing entry here is a symlink whose target is gone; writing through it could leave the root
		if _, lerr := os.Lstat(candidate); lerr == nil {
			return "", "", fmt.Errorf("%w: %q is a dangling link", ErrInvalidPath, raw)
		}
	default:
		return "", "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}

	if !r.contains(candidate) {
		return "", "", fmt.Errorf("%w: %q escapes root", ErrInvalidPath, raw)
	}
	return name, candidate, nil
}

// Open resolves raw and opens the file for reading.
func (r *Root) Open(raw string) (*os.File, error) {
	_, path, err := r.Resolve(raw)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

func (r *Root) contains(path string) bool {
	rel, err := filepath.Rel(r.dir, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

func hasTraversal(raw string) bool {
	normalised := strings.ReplaceAll(raw, "\\", "/")
	if strings.HasPrefix(normalised, "/") || filepath.IsAbs(raw) || filepath.VolumeName(raw) != "" {
		return true
	}
	if len(normalised) >= 2 && normalised[1] == ':' {
		return true
	}
	for _, part := range strings.Split(normalised, "/") {
		if part == ".." {
			return true
		}
	}
	return false
}
