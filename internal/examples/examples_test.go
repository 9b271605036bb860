package examples

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/miradorstack/benford-lab/internal/storage"
)

func newRoot(t *testing.T, files map[string]string) *storage.Root {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	root, err := storage.NewRoot(dir)
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}
	return root
}

func TestLoadManifest(t *testing.T) {
	root := newRoot(t, map[string]string{
		ManifestName: `
datasets:
  - id: pops
    filename: pops.csv
    column: population
    expectation: conform
  - id: draws
    name: Lottery
    filename: draws.csv
    column: number
    expectation: nonconform
`,
		"pops.csv": "population\n100\n",
	})

	catalog, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	list := catalog.List()
	if len(list) != 2 || list[0].ID != "pops" || list[1].Name != "Lottery" {
		t.Fatalf("unexpected datasets %+v", list)
	}
	if list[0].Name != "pops" {
		t.Fatalf("name should default to id, got %q", list[0].Name)
	}

	d, err := catalog.Get("pops")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	path, err := catalog.Path(d)
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	if !strings.HasSuffix(path, "pops.csv") {
		t.Fatalf("unexpected path %s", path)
	}

	if _, err := catalog.Get("missing"); !errors.Is(err, ErrUnknownExample) {
		t.Fatalf("expected ErrUnknownExample, got %v", err)
	}
}

func TestLoadWithoutManifest(t *testing.T) {
	catalog, err := Load(newRoot(t, nil))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(catalog.List()) != 0 {
		t.Fatalf("expected empty catalog")
	}
}

func TestLoadRejectsInvalidEntries(t *testing.T) {
	cases := map[string]string{
		"missing column":  "datasets:\n  - id: a\n    filename: a.csv\n",
		"bad expectation": "datasets:\n  - id: a\n    filename: a.csv\n    column: v\n    expectation: maybe\n",
		"duplicate":       "datasets:\n  - id: a\n    filename: a.csv\n    column: v\n  - id: a\n    filename: b.csv\n    column: v\n",
	}
	for name, manifest := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(newRoot(t, map[string]string{ManifestName: manifest})); err == nil {
				t.Fatalf("expected manifest error")
			}
		})
	}
}

func TestPathRejectsTraversal(t *testing.T) {
	catalog, err := Load(newRoot(t, nil))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := catalog.Path(Dataset{Filename: "../secret.csv"}); !errors.Is(err, storage.ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
}

func TestShippedManifestLoads(t *testing.T) {
	root, err := storage.NewRoot(filepath.Join("..", "..", "examples"))
	if err != nil {
		t.Skipf("examples directory unavailable: %v", err)
	}
	catalog, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, d := range catalog.List() {
		path, err := catalog.Path(d)
		if err != nil {
			t.Fatalf("Path(%s): %v", d.ID, err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("example %s data missing: %v", d.ID, err)
		}
	}
}
