// Package region classifies tile bounding boxes against named polygon masks.
//
// A Mask is a prepared polygon: its boundary edges are loaded once into an
// R-Tree so that repeated intersects/contains queries against tile boxes only
// look at the edges near the box.
package region

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/1F47E/geo-region-tiles/pkg/models"
	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/planar"
)

const (
	tolerance   = 1e-6
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
)

// ErrInvalidGeometry is returned when a mask definition is not a valid polygon
var ErrInvalidGeometry = errors.New("invalid geometry")

// edge is one boundary segment of the mask, indexed by its bounds
type edge struct {
	a, b orb.Point
	rect rtreego.Rect
}

func (e *edge) Bounds() rtreego.Rect {
	return e.rect
}

// Mask is an immutable prepared polygon. It is safe for concurrent use.
type Mask struct {
	geom  orb.MultiPolygon
	bound orb.Bound
	edges *rtreego.Rtree
}

// LoadMask reads a WKT mask definition from a file
func LoadMask(filename string) (*Mask, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read mask file: %w", err)
	}
	m, err := NewMask(string(data))
	if err != nil {
		return nil, fmt.Errorf("mask %s: %w", filename, err)
	}
	return m, nil
}

// NewMask parses a POLYGON or MULTIPOLYGON WKT string into a prepared mask.
// Unclosed rings are closed. EMPTY geometries yield a mask that never matches.
func NewMask(text string) (*Mask, error) {
	g, err := wkt.Unmarshal(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}

	var mp orb.MultiPolygon
	switch v := g.(type) {
	case orb.Polygon:
		if len(v) > 0 {
			mp = orb.MultiPolygon{v}
		}
	case orb.MultiPolygon:
		mp = v
	default:
		return nil, fmt.Errorf("%w: expected POLYGON or MULTIPOLYGON, got %s", ErrInvalidGeometry, g.GeoJSONType())
	}

	var edges []rtreego.Spatial
	for pi, poly := range mp {
		if len(poly) == 0 {
			return nil, fmt.Errorf("%w: polygon %d has no rings", ErrInvalidGeometry, pi)
		}
		for ri, ring := range poly {
			closed := len(ring) > 1 && ring[0] == ring[len(ring)-1]
			if n := len(ring); n < 3 || (closed && n < 4) {
				return nil, fmt.Errorf("%w: ring %d of polygon %d has %d points", ErrInvalidGeometry, ri, pi, n)
			}
			if !closed {
				ring = append(ring, ring[0])
				poly[ri] = ring
			}
			if planar.Area(ring) == 0 {
				return nil, fmt.Errorf("%w: ring %d of polygon %d has no area", ErrInvalidGeometry, ri, pi)
			}
			for i := 0; i < len(ring)-1; i++ {
				a, b := ring[i], ring[i+1]
				if !finite(a) || !finite(b) {
					return nil, fmt.Errorf("%w: non-finite coordinate in polygon %d", ErrInvalidGeometry, pi)
				}
				rect, err := rtreego.NewRectFromPoints(
					rtreego.Point{math.Min(a[0], b[0]) - tolerance, math.Min(a[1], b[1]) - tolerance},
					rtreego.Point{math.Max(a[0], b[0]) + tolerance, math.Max(a[1], b[1]) + tolerance},
				)
				if err != nil {
					return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
				}
				edges = append(edges, &edge{a: a, b: b, rect: rect})
			}
		}
	}

	m := &Mask{
		geom:  mp,
		edges: rtreego.NewTree(dimensions, minChildren, maxChildren, edges...),
	}
	if len(mp) > 0 {
		m.bound = mp.Bound()
	}
	return m, nil
}

// Empty reports whether the mask has no area at all
func (m *Mask) Empty() bool {
	return len(m.geom) == 0
}

// Bound returns the mask extent. ok is false for an empty mask.
func (m *Mask) Bound() (b models.BoundingBox, ok bool) {
	if m.Empty() {
		return models.BoundingBox{}, false
	}
	return models.BoundingBox{
		MinX: m.bound.Min[0], MinY: m.bound.Min[1],
		MaxX: m.bound.Max[0], MaxY: m.bound.Max[1],
	}, true
}

// Relate tests the closed rectangle b against the mask.
// contains implies intersects.
func (m *Mask) Relate(b models.BoundingBox) (intersects, contains bool) {
	if m.Empty() {
		return false, false
	}
	mb, _ := m.Bound()
	if !mb.Intersects(b) {
		return false, false
	}

	touches := false
	for _, s := range m.edges.SearchIntersect(queryRect(b)) {
		e := s.(*edge)
		t, interior := clipSegment(e.a, e.b, b)
		if interior {
			// the boundary passes through the box, so it is partly outside
			return true, false
		}
		touches = touches || t
	}

	// No edge enters the interior of b: the interior is either wholly inside
	// or wholly outside the mask and its centre decides which.
	cx, cy := b.Center()
	if planar.MultiPolygonContains(m.geom, orb.Point{cx, cy}) {
		return true, true
	}
	return touches, false
}

func queryRect(b models.BoundingBox) rtreego.Rect {
	r, _ := rtreego.NewRectFromPoints(
		rtreego.Point{b.MinX - tolerance, b.MinY - tolerance},
		rtreego.Point{b.MaxX + tolerance, b.MaxY + tolerance},
	)
	return r
}

// clipSegment clips segment a-b to the closed box r (Liang-Barsky). touches is
// true when any part of the segment lies in r; interior is true when part of
// it lies strictly inside r.
func clipSegment(a, b orb.Point, r models.BoundingBox) (touches, interior bool) {
	t0, t1 := 0.0, 1.0
	dx, dy := b[0]-a[0], b[1]-a[1]
	p := [4]float64{-dx, dx, -dy, dy}
	q := [4]float64{a[0] - r.MinX, r.MaxX - a[0], a[1] - r.MinY, r.MaxY - a[1]}

	for i := 0; i < 4; i++ {
		if p[i] == 0 {
			if q[i] < 0 {
				return false, false
			}
			continue
		}
		t := q[i] / p[i]
		if p[i] < 0 {
			if t > t1 {
				return false, false
			}
			if t > t0 {
				t0 = t
			}
		} else {
			if t < t0 {
				return false, false
			}
			if t < t1 {
				t1 = t
			}
		}
	}

	// the midpoint of the clipped chord is interior iff any point of it is
	tm := (t0 + t1) / 2
	mx, my := a[0]+tm*dx, a[1]+tm*dy
	return true, mx > r.MinX && mx < r.MaxX && my > r.MinY && my < r.MaxY
}

func finite(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsNaN(p[1]) && !math.IsInf(p[0], 0) && !math.IsInf(p[1], 0)
}
