// Package examples loads the curated example datasets described by manifest.yaml.
package examples

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/benford-lab/internal/interpret"
	"github.com/miradorstack/benford-lab/internal/storage"
)

// ManifestName is the manifest file inside the examples root.
const ManifestName = "manifest.yaml"

// ErrUnknownExample is returned for ids missing from the manifest.
var ErrUnknownExample = errors.New("unknown example dataset")

// Dataset is one curated example.
type Dataset struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Filename    string `yaml:"filename" json:"filename"`
	Column      string `yaml:"column" json:"column"`
	Expectation string `yaml:"expectation" json:"expectation"`
	Description string `yaml:"description" json:"description"`
}

type manifest struct {
	Datasets []Dataset `yaml:"datasets"`
}

// Catalog is the immutable set of examples loaded at startup.
type Catalog struct {
	root     *storage.Root
	datasets []Dataset
	byID     map[string]int
}

// Load reads the manifest under root. A missing manifest yields an empty catalog.
func Load(root *storage.Root) (*Catalog, error) {
	c := &Catalog{root: root, byID: map[string]int{}}
	f, err := root.Open(ManifestName)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open example manifest: %w", err)
	}
	defer f.Close()
	return c, c.decode(f)
}

func (c *Catalog) decode(r io.Reader) error {
	var m manifest
	if err := yaml.NewDecoder(r).Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse example manifest: %w", err)
	}
	for i, d := range m.Datasets {
		switch {
		case d.ID == "" || d.Filename == "" || d.Column == "":
			return fmt.Errorf("example %d: id, filename and column are required", i)
		case d.Expectation != "" && d.Expectation != interpret.ExpectConform && d.Expectation != interpret.ExpectNonconform:
			return fmt.Errorf("example %q: unknown expectation %q", d.ID, d.Expectation)
		}
		if _, dup := c.byID[d.ID]; dup {
			return fmt.Errorf("example %q listed twice", d.ID)
		}
		if d.Name == "" {
			d.Name = d.ID
		}
		c.byID[d.ID] = len(c.datasets)
		c.datasets = append(c.datasets, d)
	}
	return nil
}

// List returns the examples in manifest order.
func (c *Catalog) List() []Dataset {
	return append([]Dataset(nil), c.datasets...)
}

// Get returns the example with id.
func (c *Catalog) Get(id string) (Dataset, error) {
	i, ok := c.byID[id]
	if !ok {
		return Dataset{}, fmt.Errorf("%w: %q", ErrUnknownExample, id)
	}
	return c.datasets[i], nil
}

// Path resolves the data file of d inside the examples root.
func (c *Catalog) Path(d Dataset) (string, error) {
	_, p, err := c.root.Resolve(d.Filename)
	return p, err
}
