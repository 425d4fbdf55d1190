// Package canvasconfig loads the engine configuration: alignment, routing and layout
// defaults plus an optional user catalog. Files are TOML and any key left out keeps its
// default.
package canvasconfig

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"oss.terrastruct.com/d2canvas/canvasalign"
	"oss.terrastruct.com/d2canvas/canvascatalog"
	"oss.terrastruct.com/d2canvas/canvaslayouts"
	"oss.terrastruct.com/d2canvas/canvasroute"
)

type Config struct {
	Align  canvasalign.Opts   `toml:"align"`
	Route  canvasroute.Opts   `toml:"route"`
	Layout canvaslayouts.Opts `toml:"layout"`
	// Catalog is a YAML catalog merged over the embedded one. Relative paths resolve
	// against the directory of the config file.
	Catalog string `toml:"catalog,omitempty"`
}

func Default() *Config {
	return &Config{
		Align:  canvasalign.DefaultOpts,
		Route:  canvasroute.DefaultOpts,
		Layout: canvaslayouts.DefaultOpts,
	}
}

// Load reads the config file at path. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if c.Catalog != "" && !filepath.IsAbs(c.Catalog) {
		c.Catalog = filepath.Join(filepath.Dir(path), c.Catalog)
	}
	return c, nil
}

// Parse decodes data over the defaults. Unknown keys are an error so typos do not go
// unnoticed.
func Parse(data []byte) (*Config, error) {
	c := Default()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("failed to parse config: unknown keys %s", strings.Join(keys, ", "))
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if c.Align.Threshold <= 0 {
		return fmt.Errorf("invalid config: align.threshold must be positive, got %v", c.Align.Threshold)
	}
	if c.Align.GuidePadding < 0 {
		return fmt.Errorf("invalid config: align.guide_padding must not be negative, got %v", c.Align.GuidePadding)
	}
	if c.Align.GridSize < 0 {
		return fmt.Errorf("invalid config: align.grid_size must not be negative, got %v", c.Align.GridSize)
	}
	if c.Route.LaneSpacing <= 0 {
		return fmt.Errorf("invalid config: route.lane_spacing must be positive, got %v", c.Route.LaneSpacing)
	}
	if c.Route.MinStep <= 0 {
		return fmt.Errorf("invalid config: route.min_step must be positive, got %v", c.Route.MinStep)
	}
	if c.Route.LabelT < 0 || c.Route.LabelT > 1 {
		return fmt.Errorf("invalid config: route.label_t must be within [0, 1], got %v", c.Route.LabelT)
	}
	if c.Route.Samples <= 0 {
		return fmt.Errorf("invalid config: route.samples must be positive, got %v", c.Route.Samples)
	}
	if err := c.Layout.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadCatalog returns the embedded catalog merged with c.Catalog if set.
func (c *Config) LoadCatalog() (*canvascatalog.Catalog, error) {
	base, err := canvascatalog.Default()
	if err != nil {
		return nil, err
	}
	if c.Catalog == "" {
		return base, nil
	}
	user, err := canvascatalog.Load(c.Catalog)
	if err != nil {
		return nil, err
	}
	return base.Merge(user)
}

// Encode writes c as TOML.
func (c *Config) Encode(w io.Writer) error {
	enc := toml.NewEncoder(w)
	enc.Indent = ""
	return enc.Encode(c)
}
