// Package manifest declares the assets the worker needs on disk.
//
// Assets come in four categories that are provisioned in a fixed order:
// binaries (hash tracked), fake payloads, host/ip lists and WinDivert
// filter fragments (existence checked only).
package manifest

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrEmptyName   = errors.New("asset name is empty")
	ErrInvalidName = errors.New("asset name must be a plain file name")
	ErrInvalidURL  = errors.New("asset url must be absolute http(s)")
	ErrDuplicate   = errors.New("duplicate asset name in category")
)

// WorkerExecutable is the image name of the supervised worker.
const WorkerExecutable = "winws.exe"

// Category groups assets by destination directory and provisioning phase.
type Category string

const (
	CategoryBinaries Category = "binaries"
	CategoryFake     Category = "fake"
	CategoryLists    Category = "lists"
	CategoryFilters  Category = "filters"
)

// Categories in provisioning order.
var Categories = []Category{CategoryBinaries, CategoryFake, CategoryLists, CategoryFilters}

// Subdir returns the directory below the asset root, binaries live in the root itself.
func (c Category) Subdir() string {
	if c == CategoryBinaries {
		return ""
	}
	return string(c)
}

// Asset is one file the worker needs.
type Asset struct {
	Name      string
	SourceURL string
	Category  Category
	// TrackHash marks assets whose content is checked against the ledger.
	TrackHash bool
}

// Manifest lists the required assets per category.
type Manifest struct {
	Binaries []Asset
	Fake     []Asset
	Lists    []Asset
	Filters  []Asset
}

// Assets returns every asset in provisioning order.
func (m Manifest) Assets() []Asset {
	all := make([]Asset, 0, len(m.Binaries)+len(m.Fake)+len(m.Lists)+len(m.Filters))
	all = append(all, m.Binaries...)
	all = append(all, m.Fake...)
	all = append(all, m.Lists...)
	all = append(all, m.Filters...)
	return all
}

// Len is the total number of assets.
func (m Manifest) Len() int {
	return len(m.Binaries) + len(m.Fake) + len(m.Lists) + len(m.Filters)
}

// Validate checks names and urls of every asset.
func (m Manifest) Validate() error {
	for _, c := range Categories {
		seen := make(map[string]struct{})
		for _, a := range m.byCategory(c) {
			if err := ValidateName(a.Name); err != nil {
				return fmt.Errorf("%s: %w", c, err)
			}
			if _, ok := seen[a.Name]; ok {
				return fmt.Errorf("%w: %s/%s", ErrDuplicate, c, a.Name)
			}
			seen[a.Name] = struct{}{}

			u, err := url.Parse(a.SourceURL)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return fmt.Errorf("%w: %s/%s %q", ErrInvalidURL, c, a.Name, a.SourceURL)
			}
		}
	}
	return nil
}

func (m Manifest) byCategory(c Category) []Asset {
	switch c {
	case CategoryBinaries:
		return m.Binaries
	case CategoryFake:
		return m.Fake
	case CategoryLists:
		return m.Lists
	case CategoryFilters:
		return m.Filters
	}
	return nil
}

// ValidateName rejects names that would escape the category directory.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\:`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// fileSet is the yaml shape of a base url plus file names.
type fileSet struct {
	BaseURL string   `yaml:"base_url"`
	Files   []string `yaml:"files"`
}

type binaryEntry struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

type document struct {
	Binaries []binaryEntry `yaml:"binaries"`
	Fake     *fileSet      `yaml:"fake"`
	Lists    *fileSet      `yaml:"lists"`
	Filters  *fileSet      `yaml:"filters"`
}

// Load reads a yaml manifest. Sections that are missing fall back to the defaults.
func Load(filePath string) (Manifest, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data)
}

// Parse decodes a yaml manifest, see Load.
func Parse(data []byte) (Manifest, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}

	m := Default()
	if len(doc.Binaries) > 0 {
		m.Binaries = m.Binaries[:0:0]
		for _, b := range doc.Binaries {
			m.Binaries = append(m.Binaries, Asset{
				Name:      b.Name,
				SourceURL: b.URL,
				Category:  CategoryBinaries,
				TrackHash: true,
			})
		}
	}
	if doc.Fake != nil {
		m.Fake = fromBase(CategoryFake, doc.Fake.BaseURL, doc.Fake.Files)
	}
	if doc.Lists != nil {
		m.Lists = fromBase(CategoryLists, doc.Lists.BaseURL, doc.Lists.Files)
	}
	if doc.Filters != nil {
		m.Filters = fromBase(CategoryFilters, doc.Filters.BaseURL, doc.Filters.Files)
	}

	if err := m.Validate(); err != nil {
		return Manifest{}, fmt.Errorf("invalid manifest: %w", err)
	}
	return m, nil
}

func fromBase(c Category, baseURL string, names []string) []Asset {
	assets := make([]Asset, 0, len(names))
	for _, name := range names {
		assets = append(assets, Asset{
			Name:      name,
			SourceURL: joinURL(baseURL, name),
			Category:  c,
		})
	}
	return assets
}

func joinURL(base, name string) string {
	u, err := url.Parse(base)
	if err != nil {
		return strings.TrimRight(base, "/") + "/" + name
	}
	u.Path = path.Join(u.Path, name)
	return u.String()
}
