package datasource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/1F47E/geo-region-tiles/pkg/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
)

type cachedFile struct {
	modTime  time.Time
	srs      string
	features []*geojson.Feature
}

// parsed GeoJSON files, keyed by path. Layers are rebuilt on every render pass
// when labels are rewritten, so files are not re-read unless they change.
var fileCache = struct {
	sync.Mutex
	m map[string]cachedFile
}{m: make(map[string]cachedFile)}

// GeoJSON serves features from a GeoJSON FeatureCollection
type GeoJSON struct {
	params   Params
	features []*geojson.Feature
}

// NewGeoJSON reads the "file" param or the "inline" param. With srs=EPSG:4326
// coordinates are projected to web mercator on load.
func NewGeoJSON(params Params) (Datasource, error) {
	srs := params[ParamSRS]
	if srs == "" {
		srs = SRSMercator
	}
	if srs != SRSMercator && srs != SRSWGS84 {
		return nil, fmt.Errorf("unsupported srs %q", srs)
	}

	var (
		features []*geojson.Feature
		err      error
	)
	switch {
	case params["inline"] != "":
		features, err = parseGeoJSON([]byte(params["inline"]), srs)
	case params["file"] != "":
		features, err = loadGeoJSONFile(params["file"], srs)
	default:
		return nil, errors.New("geojson datasource needs a file or inline param")
	}
	if err != nil {
		return nil, err
	}
	return &GeoJSON{params: params, features: features}, nil
}

func loadGeoJSONFile(path, srs string) ([]*geojson.Feature, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat geojson file: %w", err)
	}

	fileCache.Lock()
	defer fileCache.Unlock()

	if c, ok := fileCache.m[path]; ok && c.modTime.Equal(info.ModTime()) && c.srs == srs {
		return c.features, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read geojson file: %w", err)
	}
	features, err := parseGeoJSON(data, srs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	fileCache.m[path] = cachedFile{modTime: info.ModTime(), srs: srs, features: features}
	return features, nil
}

func parseGeoJSON(data []byte, srs string) ([]*geojson.Feature, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode geojson: %w", err)
	}
	if srs == SRSWGS84 {
		for _, f := range fc.Features {
			if f.Geometry != nil {
				f.Geometry = project.Geometry(orb.Clone(f.Geometry), project.WGS84.ToMercator)
			}
		}
	}
	return fc.Features, nil
}

// Features returns the features whose extent intersects bbox, in file order
func (g *GeoJSON) Features(ctx context.Context, bbox models.BoundingBox) ([]Feature, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []Feature
	for i, f := range g.features {
		if !intersects(f.Geometry, bbox) {
			continue
		}
		attrs := make(map[string]string, len(f.Properties))
		for k, v := range f.Properties {
			attrs[k] = fmt.Sprint(v)
		}
		out = append(out, Feature{
			ID:         featureID(f, i),
			Geometry:   f.Geometry,
			Attributes: attrs,
			Label:      labelFor(g.params, attrs),
		})
	}
	return out, nil
}

func featureID(f *geojson.Feature, i int) string {
	if f.ID != nil {
		switch v := f.ID.(type) {
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		default:
			return fmt.Sprint(v)
		}
	}
	if id, ok := f.Properties["id"]; ok {
		return fmt.Sprint(id)
	}
	return strconv.Itoa(i)
}
