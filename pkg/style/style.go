// Package style loads map styles and holds the mutable rendering context a
// render pass works against: viewport size, extent and layer datasources.
package style

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/1F47E/geo-region-tiles/pkg/datasource"
	"github.com/1F47E/geo-region-tiles/pkg/labels"
	"github.com/1F47E/geo-region-tiles/pkg/models"
	"gopkg.in/yaml.v3"
)

// ErrStyleLoad is returned when a style definition cannot be loaded
var ErrStyleLoad = errors.New("style load failed")

// ErrNoLayer is returned for a layer name the style does not have
var ErrNoLayer = errors.New("no such layer")

// Context is the capability surface a render pass needs from a style.
// A Context is not safe for concurrent renders.
type Context interface {
	labels.LayerSet
	Resize(width, height int)
	ZoomToBox(bbox models.BoundingBox)
}

// Defaults are datasource params merged into every layer of the matching
// datasource type, e.g. database credentials for "postgis".
type Defaults map[string]datasource.Params

// Layer is one drawable layer of a style
type Layer struct {
	Name       string
	Params     datasource.Params
	Source     datasource.Datasource
	Symbolizer Symbolizer
	MetaWriter string
}

// Map is a loaded style. It implements Context.
type Map struct {
	Name       string
	srs        string
	background color.NRGBA
	layers     []*Layer

	width, height int
	extent        models.BoundingBox

	// features recorded by a metawriter during the last render
	recorded *models.FeatureCollection
}

type styleFile struct {
	SRS        string      `yaml:"srs"`
	Background string      `yaml:"background"`
	Layers     []layerFile `yaml:"layers"`
}

type layerFile struct {
	Name        string            `yaml:"name"`
	Datasource  map[string]string `yaml:"datasource"`
	Fill        string            `yaml:"fill"`
	Stroke      string            `yaml:"stroke"`
	StrokeWidth float64           `yaml:"stroke_width"`
	Opacity     *float64          `yaml:"opacity"`
	Point       *struct {
		Radius float64 `yaml:"radius"`
		Color  string  `yaml:"color"`
	} `yaml:"point"`
	Text *struct {
		Color string `yaml:"color"`
	} `yaml:"text"`
	MetaWriter string `yaml:"metawriter"`
}

// Load reads a YAML style definition. Relative "file" datasource params are
// resolved against the style's directory.
func Load(path string, defaults Defaults) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStyleLoad, err)
	}
	m, err := Parse(data, filepath.Dir(path), defaults)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrStyleLoad, path, err)
	}
	m.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return m, nil
}

// Parse builds a style from YAML. dir is used to resolve relative file params.
func Parse(data []byte, dir string, defaults Defaults) (*Map, error) {
	var sf styleFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("failed to parse style: %w", err)
	}

	m := &Map{srs: sf.SRS}
	if m.srs == "" {
		m.srs = datasource.SRSMercator
	}
	if m.srs != datasource.SRSMercator && m.srs != datasource.SRSWGS84 {
		return nil, fmt.Errorf("unsupported srs %q", m.srs)
	}
	if sf.Background != "" {
		bg, err := ParseColor(sf.Background, 1)
		if err != nil {
			return nil, fmt.Errorf("background: %w", err)
		}
		m.background = bg
	}

	seen := make(map[string]bool)
	for i, lf := range sf.Layers {
		if lf.Name == "" {
			lf.Name = fmt.Sprintf("layer%d", i)
		}
		if seen[lf.Name] {
			return nil, fmt.Errorf("duplicate layer %q", lf.Name)
		}
		seen[lf.Name] = true

		layer, err := buildLayer(lf, dir, defaults)
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", lf.Name, err)
		}
		m.layers = append(m.layers, layer)
	}
	return m, nil
}

func buildLayer(lf layerFile, dir string, defaults Defaults) (*Layer, error) {
	params := datasource.Clone(lf.Datasource)
	for k, v := range defaults[params[datasource.ParamType]] {
		if _, ok := params[k]; !ok {
			params[k] = v
		}
	}
	if f := params["file"]; f != "" && !filepath.IsAbs(f) && dir != "" {
		params["file"] = filepath.Join(dir, f)
	}

	src, err := datasource.New(params)
	if err != nil {
		return nil, err
	}

	sym, err := newSymbolizer(lf)
	if err != nil {
		return nil, err
	}
	return &Layer{
		Name:       lf.Name,
		Params:     params,
		Source:     src,
		Symbolizer: sym,
		MetaWriter: lf.MetaWriter,
	}, nil
}

func (m *Map) layer(name string) (*Layer, error) {
	for _, l := range m.layers {
		if l.Name == name {
			return l, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNoLayer, name)
}

// Layers returns layer names in draw order
func (m *Map) Layers() []string {
	names := make([]string, len(m.layers))
	for i, l := range m.layers {
		names[i] = l.Name
	}
	return names
}

// LayerDatasourceParams returns a copy of the layer's datasource params
func (m *Map) LayerDatasourceParams(name string) (map[string]string, error) {
	l, err := m.layer(name)
	if err != nil {
		return nil, err
	}
	return datasource.Clone(l.Params), nil
}

// SetLayerDatasource rebuilds the layer's datasource from params. The layer is
// left unchanged if the new datasource cannot be built.
func (m *Map) SetLayerDatasource(name string, params map[string]string) error {
	l, err := m.layer(name)
	if err != nil {
		return err
	}
	src, err := datasource.New(params)
	if err != nil {
		return err
	}
	l.Params = datasource.Clone(params)
	l.Source = src
	return nil
}

func (m *Map) Resize(width, height int) {
	m.width, m.height = width, height
}

func (m *Map) ZoomToBox(bbox models.BoundingBox) {
	m.extent = bbox
}

// SRS is the projection the style's data is in
func (m *Map) SRS() string { return m.srs }

func (m *Map) Width() int                 { return m.width }
func (m *Map) Height() int                { return m.height }
func (m *Map) Extent() models.BoundingBox { return m.extent }

// HasMetaWriter reports whether any layer records features
func (m *Map) HasMetaWriter() bool {
	for _, l := range m.layers {
		if l.MetaWriter != "" {
			return true
		}
	}
	return false
}
