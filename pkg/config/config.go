// Package config reads the tile renderer's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

const (
	DefaultTileSize     = 256
	DefaultMetatile     = 8
	DefaultPathTemplate = "/tiles/1.0.0/{STYLE}/{LANG}/{Z}/{X}/{Y}.{FORMAT}"
)

// ErrInvalid is returned for a configuration that fails validation
var ErrInvalid = errors.New("invalid config")

// Config structure for YAML configuration
type Config struct {
	Logging Logging          `yaml:"logging"`
	PostGIS PostGIS          `yaml:"postgis"`
	Tiles   Tiles            `yaml:"tiles"`
	Styles  map[string]Style `yaml:"styles"`
}

type Logging struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// PostGIS holds the connection defaults for postgis layer datasources
type PostGIS struct {
	Host              string `yaml:"host"`
	Port              int    `yaml:"port"`
	User              string `yaml:"user"`
	Password          string `yaml:"password"`
	Database          string `yaml:"database"`
	MaxConnections    int    `yaml:"max_connections"`
	ConnectionTimeout int    `yaml:"connection_timeout"`
}

type Tiles struct {
	Size         int    `yaml:"size"`
	Metatile     int    `yaml:"metatile"`
	PathTemplate string `yaml:"path_template"`
}

// Style is one served style: a default style, an optional mask style and the
// regions composited over the default.
type Style struct {
	DefaultStyle string   `yaml:"default_style"`
	MaskStyle    string   `yaml:"mask_style"`
	Regions      []Region `yaml:"regions"`
}

type Region struct {
	Name  string `yaml:"name"`
	Style string `yaml:"style"`
	Mask  string `yaml:"mask"`
}

// Load reads and validates a config file. Relative style and mask paths are
// resolved against the config file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.resolve(filepath.Dir(path))
	return cfg, nil
}

// Parse decodes YAML, applies defaults and validates
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.PostGIS.Port == 0 {
		c.PostGIS.Port = 5432
	}
	if c.Tiles.Size == 0 {
		c.Tiles.Size = DefaultTileSize
	}
	if c.Tiles.Metatile == 0 {
		c.Tiles.Metatile = DefaultMetatile
	}
	if c.Tiles.PathTemplate == "" {
		c.Tiles.PathTemplate = DefaultPathTemplate
	}
}

// Validate checks the config is usable. Regions without a mask style are not
// an error here; the renderer skips them with a warning.
func (c *Config) Validate() error {
	if c.Tiles.Size <= 0 {
		return fmt.Errorf("%w: tile size %d", ErrInvalid, c.Tiles.Size)
	}
	if c.Tiles.Metatile <= 0 {
		return fmt.Errorf("%w: metatile %d", ErrInvalid, c.Tiles.Metatile)
	}
	if len(c.Styles) == 0 {
		return fmt.Errorf("%w: no styles", ErrInvalid)
	}
	for name, s := range c.Styles {
		if s.DefaultStyle == "" {
			return fmt.Errorf("%w: style %q has no default_style", ErrInvalid, name)
		}
		for i, r := range s.Regions {
			if r.Name == "" || r.Style == "" || r.Mask == "" {
				return fmt.Errorf("%w: style %q region %d needs name, style and mask", ErrInvalid, name, i)
			}
		}
	}
	return nil
}

func (c *Config) resolve(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	for name, s := range c.Styles {
		s.DefaultStyle = abs(s.DefaultStyle)
		s.MaskStyle = abs(s.MaskStyle)
		for i := range s.Regions {
			s.Regions[i].Style = abs(s.Regions[i].Style)
			s.Regions[i].Mask = abs(s.Regions[i].Mask)
		}
		c.Styles[name] = s
	}
}

// StyleNames returns the configured style names, sorted
func (c *Config) StyleNames() []string {
	names := make([]string, 0, len(c.Styles))
	for name := range c.Styles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DatasourceDefaults returns the params merged into postgis layer datasources
func (c *Config) DatasourceDefaults() map[string]map[string]string {
	pg := map[string]string{
		"host":     c.PostGIS.Host,
		"port":     fmt.Sprint(c.PostGIS.Port),
		"user":     c.PostGIS.User,
		"password": c.PostGIS.Password,
		"dbname":   c.PostGIS.Database,
	}
	if c.PostGIS.MaxConnections > 0 {
		pg["max_connections"] = fmt.Sprint(c.PostGIS.MaxConnections)
	}
	if c.PostGIS.ConnectionTimeout > 0 {
		pg["connect_timeout"] = fmt.Sprint(c.PostGIS.ConnectionTimeout)
	}
	return map[string]map[string]string{"postgis": pg}
}
