package datasource

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/1F47E/geo-region-tiles/pkg/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

// attrPrefix marks params that become feature attributes, e.g. "attr.name:de"
const attrPrefix = "attr."

// WKT serves a single geometry given inline as well-known text
type WKT struct {
	feature Feature
}

// NewWKT builds a one-feature datasource from the "geometry" param. "name",
// "id" and any "attr.<key>" params become attributes.
func NewWKT(params Params) (Datasource, error) {
	text := params["geometry"]
	if text == "" {
		return nil, errors.New("wkt datasource needs a geometry param")
	}
	g, err := wkt.Unmarshal(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse geometry: %w", err)
	}

	attrs := make(map[string]string)
	for k, v := range params {
		if strings.HasPrefix(k, attrPrefix) {
			attrs[strings.TrimPrefix(k, attrPrefix)] = v
		}
	}
	if name, ok := params["name"]; ok {
		attrs["name"] = name
	}

	id := params["id"]
	if id == "" {
		id = "1"
	}
	return &WKT{feature: Feature{
		ID:         id,
		Geometry:   orb.Clone(g),
		Attributes: attrs,
		Label:      labelFor(params, attrs),
	}}, nil
}

func (w *WKT) Features(ctx context.Context, bbox models.BoundingBox) ([]Feature, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !intersects(w.feature.Geometry, bbox) {
		return nil, nil
	}
	return []Feature{w.feature}, nil
}
