// Package canvascatalog holds the read-only lookup tables the canvas consults: services,
// boundary zones, categories and diagram templates. Catalogs are YAML, with a default
// embedded in the binary that a user file can extend.
package canvascatalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

type Category struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Color string `yaml:"color,omitempty"`
}

type Service struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Category    string `yaml:"category"`
	Description string `yaml:"description,omitempty"`
	// Compatible lists services this one is known to connect to.
	Compatible []string `yaml:"compatible,omitempty"`
	// Incompatible lists services a connection to should warn about.
	Incompatible []string `yaml:"incompatible,omitempty"`
}

type Zone struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type Position struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

type Size struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// TemplateNode is either a service (Service set) or a zone (Zone set). Ref names it
// within the template; instantiated nodes get fresh ids.
type TemplateNode struct {
	Ref      string   `yaml:"ref"`
	Service  string   `yaml:"service,omitempty"`
	Zone     string   `yaml:"zone,omitempty"`
	Label    string   `yaml:"label,omitempty"`
	Parent   string   `yaml:"parent,omitempty"`
	Position Position `yaml:"position"`
	Size     *Size    `yaml:"size,omitempty"`
}

type TemplateEdge struct {
	From       string `yaml:"from"`
	To         string `yaml:"to"`
	Label      string `yaml:"label,omitempty"`
	Type       string `yaml:"type,omitempty"`
	SourceSide string `yaml:"source_side,omitempty"`
	TargetSide string `yaml:"target_side,omitempty"`
	Animated   bool   `yaml:"animated,omitempty"`
}

type Template struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Nodes       []TemplateNode `yaml:"nodes"`
	Edges       []TemplateEdge `yaml:"edges,omitempty"`
}

type Catalog struct {
	Version    string     `yaml:"version"`
	Categories []Category `yaml:"categories,omitempty"`
	Services   []Service  `yaml:"services,omitempty"`
	Zones      []Zone     `yaml:"zones,omitempty"`
	Templates  []Template `yaml:"templates,omitempty"`
}

// UnknownServiceError is a reference to a service the catalog does not have.
type UnknownServiceError struct {
	TemplateID string
	ServiceID  string
}

func (e *UnknownServiceError) Error() string {
	if e.TemplateID == "" {
		return fmt.Sprintf("unknown service %q", e.ServiceID)
	}
	return fmt.Sprintf("template %q references unknown service %q", e.TemplateID, e.ServiceID)
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultYAML)
}

// Load reads a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks ids are unique and set, and every template resolves.
func (c *Catalog) Validate() error {
	seen := make(map[string]struct{})
	check := func(kind, id string) error {
		if id == "" {
			return fmt.Errorf("invalid catalog: %s with empty id", kind)
		}
		key := kind + "/" + id
		if _, ok := seen[key]; ok {
			return fmt.Errorf("invalid catalog: duplicate %s %q", kind, id)
		}
		seen[key] = struct{}{}
		return nil
	}
	for _, cat := range c.Categories {
		if err := check("category", cat.ID); err != nil {
			return err
		}
	}
	for _, s := range c.Services {
		if err := check("service", s.ID); err != nil {
			return err
		}
	}
	for _, z := range c.Zones {
		if err := check("zone", z.ID); err != nil {
			return err
		}
	}
	for _, t := range c.Templates {
		if err := check("template", t.ID); err != nil {
			return err
		}
		if err := c.checkTemplate(t); err != nil {
			return fmt.Errorf("invalid catalog: %w", err)
		}
	}
	return nil
}

// Merge returns a catalog with the entries of other added to c. Entries of other replace
// entries of c with the same id.
func (c *Catalog) Merge(other *Catalog) (*Catalog, error) {
	out := &Catalog{Version: c.Version}
	if other.Version != "" {
		out.Version = other.Version
	}
	out.Categories = mergeByID(c.Categories, other.Categories, func(v Category) string { return v.ID })
	out.Services = mergeByID(c.Services, other.Services, func(v Service) string { return v.ID })
	out.Zones = mergeByID(c.Zones, other.Zones, func(v Zone) string { return v.ID })
	out.Templates = mergeByID(c.Templates, other.Templates, func(v Template) string { return v.ID })
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

func mergeByID[T any](base, over []T, id func(T) string) []T {
	out := append([]T(nil), base...)
	index := make(map[string]int, len(out))
	for i, v := range out {
		index[id(v)] = i
	}
	for _, v := range over {
		if i, ok := index[id(v)]; ok {
			out[i] = v
			continue
		}
		index[id(v)] = len(out)
		out = append(out, v)
	}
	return out
}

func (c *Catalog) Service(id string) (Service, bool) {
	for _, s := range c.Services {
		if s.ID == id {
			return s, true
		}
	}
	return Service{}, false
}

func (c *Catalog) Zone(id string) (Zone, bool) {
	for _, z := range c.Zones {
		if z.ID == id {
			return z, true
		}
	}
	return Zone{}, false
}

func (c *Catalog) Category(id string) (Category, bool) {
	for _, cat := range c.Categories {
		if cat.ID == id {
			return cat, true
		}
	}
	return Category{}, false
}

func (c *Catalog) Template(id string) (Template, bool) {
	for _, t := range c.Templates {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

// TemplateIDs returns the template ids in sorted order.
func (c *Catalog) TemplateIDs() []string {
	ids := make([]string, 0, len(c.Templates))
	for _, t := range c.Templates {
		ids = append(ids, t.ID)
	}
	sort.Strings(ids)
	return ids
}

// ServicesIn returns the services of category in catalog order.
func (c *Catalog) ServicesIn(category string) []Service {
	var out []Service
	for _, s := range c.Services {
		if s.Category == category {
			out = append(out, s)
		}
	}
	return out
}
