package models

import "image"

// Location represents a geographic location with latitude and longitude
type Location struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// BoundingBox is an axis-aligned box in projected map units
type BoundingBox struct {
	MinX float64 `json:"minx"`
	MinY float64 `json:"miny"`
	MaxX float64 `json:"maxx"`
	MaxY float64 `json:"maxy"`
}

// NewBoundingBox builds a box from two arbitrary corners, normalising min and max.
func NewBoundingBox(x0, y0, x1, y1 float64) BoundingBox {
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	return BoundingBox{MinX: x0, MinY: y0, MaxX: x1, MaxY: y1}
}

func (b BoundingBox) Width() float64  { return b.MaxX - b.MinX }
func (b BoundingBox) Height() float64 { return b.MaxY - b.MinY }

// Center returns the midpoint of the box
func (b BoundingBox) Center() (float64, float64) {
	return (b.MinX + b.MaxX) / 2, (b.MinY + b.MaxY) / 2
}

// Intersects reports whether two closed boxes share at least one point
func (b BoundingBox) Intersects(o BoundingBox) bool {
	return b.MinX <= o.MaxX && o.MinX <= b.MaxX &&
		b.MinY <= o.MaxY && o.MinY <= b.MaxY
}

// Size is a raster size in pixels
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// TileRequest describes a single tile to render. BBox holds two geographic corners.
type TileRequest struct {
	BBox       [2]Location `json:"bbox"`
	Size       Size        `json:"size"`
	Language   string      `json:"language,omitempty"`
	Dimensions []string    `json:"dimensions,omitempty"`
}

// Feature is a point of interest recorded while rendering. Box is in pixel space.
type Feature struct {
	ID         string            `json:"id"`
	Box        image.Rectangle   `json:"box"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// FeatureCollection is an ordered list of extracted features
type FeatureCollection struct {
	Features []Feature `json:"features"`
}

// Len is nil-safe
func (fc *FeatureCollection) Len() int {
	if fc == nil {
		return 0
	}
	return len(fc.Features)
}

// MergeFeatures concatenates collections preserving order. Nil inputs are skipped;
// the result is nil only when every input is nil.
func MergeFeatures(collections ...*FeatureCollection) *FeatureCollection {
	var merged *FeatureCollection
	for _, fc := range collections {
		if fc == nil {
			continue
		}
		if merged == nil {
			merged = &FeatureCollection{Features: make([]Feature, 0, len(fc.Features))}
		}
		merged.Features = append(merged.Features, fc.Features...)
	}
	return merged
}

// RenderResult is the output of a single tile render
type RenderResult struct {
	Tile     TileRequest        `json:"tile"`
	Image    *image.NRGBA       `json:"-"`
	Features *FeatureCollection `json:"features,omitempty"`
}
