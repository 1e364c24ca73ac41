// Package datasource provides the feature sources behind style layers.
//
// A datasource is built from a flat string parameter map, the same map the
// label rewriter edits, so a layer can always be rebuilt from its params.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/1F47E/geo-region-tiles/pkg/labels"
	"github.com/1F47E/geo-region-tiles/pkg/models"
	"github.com/paulmach/orb"
)

// Params describes a datasource. The "type" key selects the driver.
type Params = map[string]string

const (
	ParamType = "type"
	ParamSRS  = "srs"

	SRSMercator = "EPSG:3857"
	SRSWGS84    = "EPSG:4326"
)

// ErrUnknownType is returned for an unregistered datasource type
var ErrUnknownType = errors.New("unknown datasource type")

// Feature is a single geometry in map coordinates with its attributes
type Feature struct {
	ID         string
	Geometry   orb.Geometry
	Attributes map[string]string
	Label      string
}

// Datasource returns the features intersecting a box
type Datasource interface {
	Features(ctx context.Context, bbox models.BoundingBox) ([]Feature, error)
}

// Factory builds a datasource from its params
type Factory func(params Params) (Datasource, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{
		"postgis": NewPostGIS,
		"geojson": NewGeoJSON,
		"wkt":     NewWKT,
	}
)

// Register installs a factory for a datasource type, replacing any existing one
func Register(typ string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[typ] = f
}

// Types lists the registered datasource types
func Types() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	types := make([]string, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// New builds a datasource from params
func New(params Params) (Datasource, error) {
	typ := params[ParamType]

	factoriesMu.RLock()
	f, ok := factories[typ]
	factoriesMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
	ds, err := f(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s datasource: %w", typ, err)
	}
	return ds, nil
}

// Clone copies a params map
func Clone(params Params) Params {
	out := make(Params, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

// labelFor evaluates the label for in-memory features: the language fallback
// chain when the layer was rewritten, otherwise the plain name attribute.
func labelFor(params Params, attrs map[string]string) string {
	spec := params[labels.ParamLanguages]
	hint := params[labels.ParamHint]
	if spec != "" && hint != "" {
		if expr, ok := labels.Build(spec, hint); ok {
			return expr.Eval(attrs)
		}
	}
	return attrs["name"]
}

func intersects(g orb.Geometry, bbox models.BoundingBox) bool {
	if g == nil {
		return false
	}
	b := g.Bound()
	return bbox.Intersects(models.BoundingBox{MinX: b.Min[0], MinY: b.Min[1], MaxX: b.Max[0], MaxY: b.Max[1]})
}
