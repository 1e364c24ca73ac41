package style

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/1F47E/geo-region-tiles/pkg/datasource"
	"github.com/1F47E/geo-region-tiles/pkg/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// ErrNoViewport is returned when drawing a map that was never zoomed to a box
var ErrNoViewport = errors.New("map has no viewport")

const circleSegments = 16

// Engine rasterises loaded styles. It keeps no per-render state; everything a
// render changes lives on the Map.
type Engine struct {
	Face font.Face
}

// NewEngine creates an engine drawing labels with the 7x13 bitmap face
func NewEngine() *Engine {
	return &Engine{Face: basicfont.Face7x13}
}

// viewport maps projected coordinates into dst pixels
type viewport struct {
	ext    models.BoundingBox
	sx, sy float64
	origin image.Point
}

func newViewport(ext models.BoundingBox, w, h int, origin image.Point) viewport {
	return viewport{
		ext:    ext,
		sx:     float64(w) / ext.Width(),
		sy:     float64(h) / ext.Height(),
		origin: origin,
	}
}

func (v viewport) px(p orb.Point) (float64, float64) {
	return float64(v.origin.X) + (p[0]-v.ext.MinX)*v.sx,
		float64(v.origin.Y) + (v.ext.MaxY-p[1])*v.sy
}

// clipBound is the extent padded by margin pixels
func (v viewport) clipBound(margin float64) orb.Bound {
	mx, my := margin/v.sx, margin/v.sy
	return orb.Bound{
		Min: orb.Point{v.ext.MinX - mx, v.ext.MinY - my},
		Max: orb.Point{v.ext.MaxX + mx, v.ext.MaxY + my},
	}
}

// Draw renders every layer of sc into dst. sc must be a *Map.
func (e *Engine) Draw(ctx context.Context, sc Context, dst *image.RGBA) error {
	m, ok := sc.(*Map)
	if !ok {
		return fmt.Errorf("unsupported style context %T", sc)
	}
	if m.extent.Width() <= 0 || m.extent.Height() <= 0 {
		return ErrNoViewport
	}

	bounds := dst.Bounds()
	w, h := m.width, m.height
	if w <= 0 || h <= 0 {
		w, h = bounds.Dx(), bounds.Dy()
	}
	vp := newViewport(m.extent, w, h, bounds.Min)

	if m.HasMetaWriter() {
		m.recorded = &models.FeatureCollection{}
	} else {
		m.recorded = nil
	}

	if m.background.A > 0 {
		draw.Draw(dst, bounds, image.NewUniform(m.background), image.Point{}, draw.Src)
	}

	for _, l := range m.layers {
		if err := ctx.Err(); err != nil {
			return err
		}
		features, err := l.Source.Features(ctx, m.extent)
		if err != nil {
			return fmt.Errorf("layer %q: %w", l.Name, err)
		}
		e.drawLayer(dst, vp, l, features)
		if l.MetaWriter != "" {
			record(m.recorded, vp, l, features, bounds)
		}
	}
	return nil
}

// Extract returns the features recorded during the last Draw of sc, or nil
// when the style has no metawriter.
func (e *Engine) Extract(sc Context) *models.FeatureCollection {
	m, ok := sc.(*Map)
	if !ok {
		return nil
	}
	return m.recorded
}

func (e *Engine) drawLayer(dst *image.RGBA, vp viewport, l *Layer, features []datasource.Feature) {
	sym := l.Symbolizer
	size := dst.Bounds().Size()

	fill := vector.NewRasterizer(size.X, size.Y)
	stroke := vector.NewRasterizer(size.X, size.Y)
	points := vector.NewRasterizer(size.X, size.Y)
	var filled, stroked, pointed bool

	margin := sym.StrokeWidth + sym.PointRadius + 1
	cb := vp.clipBound(margin)

	for _, f := range features {
		if f.Geometry == nil {
			continue
		}
		g := clip.Geometry(cb, orb.Clone(f.Geometry))
		if g == nil {
			continue
		}
		forEachPart(g, func(part orb.Geometry) {
			switch p := part.(type) {
			case orb.Point:
				if sym.PointColor.A > 0 {
					x, y := vp.px(p)
					addCircle(points, vp.origin, x, y, sym.PointRadius)
					pointed = true
				}
			case orb.LineString:
				if sym.Stroke.A > 0 {
					addStroke(stroke, vp, p, sym.StrokeWidth)
					stroked = true
				}
			case orb.Polygon:
				if sym.Fill.A > 0 {
					addPolygon(fill, vp, p)
					filled = true
				}
				if sym.Stroke.A > 0 {
					for _, ring := range p {
						addStroke(stroke, vp, orb.LineString(ring), sym.StrokeWidth)
					}
					stroked = true
				}
			}
		})
	}

	if filled {
		fill.Draw(dst, dst.Bounds(), image.NewUniform(sym.Fill), image.Point{})
	}
	if stroked {
		stroke.Draw(dst, dst.Bounds(), image.NewUniform(sym.Stroke), image.Point{})
	}
	if pointed {
		points.Draw(dst, dst.Bounds(), image.NewUniform(sym.PointColor), image.Point{})
	}
	if sym.TextColor.A > 0 {
		for _, f := range features {
			if f.Label == "" || f.Geometry == nil {
				continue
			}
			x, y := labelAnchor(vp, f.Geometry, sym.PointRadius)
			e.drawText(dst, f.Label, x, y, sym.TextColor)
		}
	}
}

// forEachPart calls fn with every point, line and polygon in g
func forEachPart(g orb.Geometry, fn func(orb.Geometry)) {
	switch g := g.(type) {
	case orb.Point, orb.LineString, orb.Polygon:
		fn(g)
	case orb.MultiPoint:
		for _, p := range g {
			fn(p)
		}
	case orb.MultiLineString:
		for _, ls := range g {
			fn(ls)
		}
	case orb.Ring:
		fn(orb.Polygon{g})
	case orb.MultiPolygon:
		for _, p := range g {
			fn(p)
		}
	case orb.Collection:
		for _, c := range g {
			forEachPart(c, fn)
		}
	}
}

type pxPoint struct{ x, y float64 }

// addPath adds a closed path. Outer shapes are added with positive area and
// holes with negative area so the rasteriser's winding cancels them out.
func addPath(z *vector.Rasterizer, origin image.Point, pts []pxPoint, hole bool) {
	if len(pts) < 3 {
		return
	}
	var area float64
	for i := range pts {
		j := (i + 1) % len(pts)
		area += pts[i].x*pts[j].y - pts[j].x*pts[i].y
	}
	if (area < 0) != hole {
		for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
			pts[i], pts[j] = pts[j], pts[i]
		}
	}
	ox, oy := float64(origin.X), float64(origin.Y)
	z.MoveTo(float32(pts[0].x-ox), float32(pts[0].y-oy))
	for _, p := range pts[1:] {
		z.LineTo(float32(p.x-ox), float32(p.y-oy))
	}
	z.ClosePath()
}

func addPolygon(z *vector.Rasterizer, vp viewport, p orb.Polygon) {
	for i, ring := range p {
		pts := make([]pxPoint, 0, len(ring))
		for _, pt := range ring {
			x, y := vp.px(pt)
			pts = append(pts, pxPoint{x, y})
		}
		addPath(z, vp.origin, pts, i > 0)
	}
}

// addStroke adds one quad per segment plus round joins
func addStroke(z *vector.Rasterizer, vp viewport, ls orb.LineString, width float64) {
	half := width / 2
	for i := 0; i+1 < len(ls); i++ {
		x0, y0 := vp.px(ls[i])
		x1, y1 := vp.px(ls[i+1])
		dx, dy := x1-x0, y1-y0
		n := math.Hypot(dx, dy)
		if n == 0 {
			continue
		}
		nx, ny := -dy/n*half, dx/n*half
		addPath(z, vp.origin, []pxPoint{
			{x0 + nx, y0 + ny}, {x1 + nx, y1 + ny},
			{x1 - nx, y1 - ny}, {x0 - nx, y0 - ny},
		}, false)
		if width > 2 && i > 0 {
			addCircle(z, vp.origin, x0, y0, half)
		}
	}
}

func addCircle(z *vector.Rasterizer, origin image.Point, cx, cy, r float64) {
	pts := make([]pxPoint, circleSegments)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / circleSegments
		pts[i] = pxPoint{cx + r*math.Cos(a), cy + r*math.Sin(a)}
	}
	addPath(z, origin, pts, false)
}

// labelAnchor places point labels above the point and everything else at the
// centre of its extent
func labelAnchor(vp viewport, g orb.Geometry, radius float64) (float64, float64) {
	if p, ok := g.(orb.Point); ok {
		x, y := vp.px(p)
		return x, y - radius - 2
	}
	return vp.px(g.Bound().Center())
}

func (e *Engine) drawText(dst *image.RGBA, s string, x, y float64, c color.NRGBA) {
	d := font.Drawer{Dst: dst, Src: image.NewUniform(c), Face: e.Face}
	adv := d.MeasureString(s)
	m := e.Face.Metrics()
	d.Dot = fixed.Point26_6{
		X: fixed.Int26_6(x*64) - adv/2,
		Y: fixed.Int26_6(y*64) + (m.Ascent-m.Descent)/2,
	}
	d.DrawString(s)
}

// record adds the pixel extent of every visible feature of a layer
func record(fc *models.FeatureCollection, vp viewport, l *Layer, features []datasource.Feature, bounds image.Rectangle) {
	for _, f := range features {
		if f.Geometry == nil {
			continue
		}
		b := f.Geometry.Bound()
		x0, y0 := vp.px(orb.Point{b.Min[0], b.Max[1]})
		x1, y1 := vp.px(orb.Point{b.Max[0], b.Min[1]})
		if _, ok := f.Geometry.(orb.Point); ok {
			r := max(l.Symbolizer.PointRadius, 1)
			x0, y0, x1, y1 = x0-r, y0-r, x1+r, y1+r
		}
		box := image.Rect(
			int(math.Floor(x0)), int(math.Floor(y0)),
			int(math.Ceil(x1)), int(math.Ceil(y1)),
		).Intersect(bounds)
		if box.Empty() {
			continue
		}

		attrs := make(map[string]string, len(f.Attributes)+1)
		for k, v := range f.Attributes {
			attrs[k] = v
		}
		if f.Label != "" {
			attrs["label"] = f.Label
		}
		fc.Features = append(fc.Features, models.Feature{
			ID:         f.ID,
			Box:        box,
			Attributes: attrs,
		})
	}
}
