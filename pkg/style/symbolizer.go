package style

import (
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

const defaultPointRadius = 3

// Symbolizer says how a layer's features are drawn. A zero alpha colour
// disables that part.
type Symbolizer struct {
	Fill        color.NRGBA
	Stroke      color.NRGBA
	StrokeWidth float64
	PointColor  color.NRGBA
	PointRadius float64
	TextColor   color.NRGBA
}

func newSymbolizer(lf layerFile) (Symbolizer, error) {
	opacity := 1.0
	if lf.Opacity != nil {
		opacity = *lf.Opacity
		if opacity < 0 || opacity > 1 {
			return Symbolizer{}, fmt.Errorf("opacity %v out of range", opacity)
		}
	}

	var (
		s   Symbolizer
		err error
	)
	if s.Fill, err = ParseColor(lf.Fill, opacity); err != nil {
		return s, fmt.Errorf("fill: %w", err)
	}
	if s.Stroke, err = ParseColor(lf.Stroke, opacity); err != nil {
		return s, fmt.Errorf("stroke: %w", err)
	}
	s.StrokeWidth = lf.StrokeWidth
	if s.StrokeWidth == 0 && s.Stroke.A > 0 {
		s.StrokeWidth = 1
	}
	if lf.Point != nil {
		if s.PointColor, err = ParseColor(lf.Point.Color, opacity); err != nil {
			return s, fmt.Errorf("point: %w", err)
		}
		s.PointRadius = lf.Point.Radius
		if s.PointRadius <= 0 {
			s.PointRadius = defaultPointRadius
		}
	}
	if lf.Text != nil {
		if s.TextColor, err = ParseColor(lf.Text.Color, opacity); err != nil {
			return s, fmt.Errorf("text: %w", err)
		}
	}
	return s, nil
}

// ParseColor parses "#rgb", "#rrggbb" or "transparent". An empty string is
// transparent.
func ParseColor(s string, opacity float64) (color.NRGBA, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "transparent") || strings.EqualFold(s, "none") {
		return color.NRGBA{}, nil
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: uint8(math.Round(opacity * 255))}, nil
}
