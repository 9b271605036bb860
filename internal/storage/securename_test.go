package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestRoot(t *testing.T) *Root {
	t.Helper()
	root, err := NewRoot(t.TempDir())
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}
	return root
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"data.csv":            "data.csv",
		"my data file.csv":    "my_data_file.csv",
		"Ünïcödé résumé.csv":  "Unicode_resume.csv",
		"sub/dir/file.csv":    "sub_dir_file.csv",
		"..hidden.csv":        "hidden.csv",
		"weird$%&chars!.csv":  "weirdchars.csv",
		"   ":                 "",
		"back\\slash\\x.csv":  "back_slash_x.csv",
	}
	for input, want := range cases {
		if got := SanitizeFilename(input); got != want {
			t.Fatalf("SanitizeFilename(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestResolveRejectsTraversal(t *testing.T) {
	root := newTestRoot(t)
	for _, raw := range []string{
		"../secret.csv",
		"../../etc/passwd",
		"a/../../b.csv",
		"..\\windows\\system.ini",
		"/etc/passwd",
		"\\\\server\\share.csv",
		"C:\\boot.ini",
		"",
		"???",
	} {
		if _, _, err := root.Resolve(raw); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("Resolve(%q) expected ErrInvalidPath, got %v", raw, err)
		}
	}
}

func TestResolveConfinesToRoot(t *testing.T) {
	root := newTestRoot(t)
	name, path, err := root.Resolve("report 2024.csv")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if name != "report_2024.csv" {
		t.Fatalf("unexpected sanitized name %q", name)
	}
	if filepath.Dir(path) != root.Dir() {
		t.Fatalf("path %s not directly under %s", path, root.Dir())
	}
}

func TestResolveRejectsSymlinkEscape(t *testing.T) {
	root := newTestRoot(t)
	outside := filepath.Join(t.TempDir(), "outside.csv")
	if err := os.WriteFile(outside, []byte("a\n1\n"), 0o644); err != nil {
		t.Fatalf("write outside: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(root.Dir(), "link.csv")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	if _, _, err := root.Resolve("link.csv"); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("expected symlink escape to be rejected, got %v", err)
	}
}

func TestResolveRejectsDanglingSymlink(t *testing.T) {
	root := newTestRoot(t)
	target := filepath.Join(t.TempDir(), "not-yet.png")
	if err := os.Symlink(target, filepath.Join(root.Dir(), "plot.png")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	if _, _, err := root.Resolve("plot.png"); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("expected dangling link to be rejected, got %v", err)
	}
	if _, err := os.Lstat(target); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("target must stay untouched, got %v", err)
	}
	if _, _, err := root.Resolve("fresh.png"); err != nil {
		t.Fatalf("absent names still resolve: %v", err)
	}
}

func TestRootsAreIndependent(t *testing.T) {
	uploads := newTestRoot(t)
	examples := newTestRoot(t)
	if err := os.WriteFile(filepath.Join(examples.Dir(), "sample.csv"), []byte("v\n1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, path, err := uploads.Resolve("sample.csv")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !strings.HasPrefix(path, uploads.Dir()) {
		t.Fatalf("upload root resolved into another root: %s", path)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("example file must not be visible through the upload root")
	}
}

func TestNewRootRequiresDirectory(t *testing.T) {
	if _, err := NewRoot(""); err == nil {
		t.Fatalf("expected error for empty root")
	}
	file := filepath.Join(t.TempDir(), "plain")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewRoot(file); err == nil {
		t.Fatalf("expected error for file root")
	}
	if _, err := EnsureRoot(filepath.Join(t.TempDir(), "nested", "dir")); err != nil {
		t.Fatalf("EnsureRoot: %v", err)
	}
}
