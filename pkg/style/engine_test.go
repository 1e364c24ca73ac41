package style

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/1F47E/geo-region-tiles/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	white = color.RGBA{255, 255, 255, 255}
	green = color.RGBA{0, 255, 0, 255}
	blue  = color.RGBA{0, 0, 255, 255}
	red   = color.RGBA{255, 0, 0, 255}
)

// renders parkStyle over a 100x100 world into a 100x100 image, so world
// (x, y) is pixel (x, 100-y)
func drawPark(t *testing.T) (*Map, *image.RGBA) {
	t.Helper()
	m, err := Parse([]byte(parkStyle), "", nil)
	require.NoError(t, err)
	m.Resize(100, 100)
	m.ZoomToBox(models.NewBoundingBox(0, 0, 100, 100))

	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	require.NoError(t, NewEngine().Draw(context.Background(), m, img))
	return m, img
}

func TestDraw(t *testing.T) {
	_, img := drawPark(t)

	tests := []struct {
		name string
		x, y int
		want color.RGBA
	}{
		{"background", 5, 5, white},
		{"polygon", 20, 20, green},
		{"polygon lower half", 80, 70, green},
		{"hole", 50, 45, white},
		{"road over hole", 50, 49, blue},
		{"road over fill", 20, 50, blue},
		{"point", 25, 75, red},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertNear(t, tt.want, img.RGBAAt(tt.x, tt.y))
		})
	}
}

// assertNear allows for rounding in the rasteriser's coverage
func assertNear(t *testing.T, want, got color.RGBA) {
	t.Helper()
	diff := func(a, b uint8) int {
		if a > b {
			return int(a - b)
		}
		return int(b - a)
	}
	ok := diff(want.R, got.R) <= 2 && diff(want.G, got.G) <= 2 &&
		diff(want.B, got.B) <= 2 && diff(want.A, got.A) <= 2
	assert.True(t, ok, "want %v, got %v", want, got)
}

func TestDrawOffsetBounds(t *testing.T) {
	m, err := Parse([]byte(parkStyle), "", nil)
	require.NoError(t, err)
	m.Resize(100, 100)
	m.ZoomToBox(models.NewBoundingBox(0, 0, 100, 100))

	// drawing into a sub-image keeps the map anchored at its bounds
	parent := image.NewRGBA(image.Rect(0, 0, 200, 200))
	sub := parent.SubImage(image.Rect(100, 100, 200, 200)).(*image.RGBA)
	require.NoError(t, NewEngine().Draw(context.Background(), m, sub))

	assertNear(t, green, parent.RGBAAt(120, 120))
	assertNear(t, white, parent.RGBAAt(150, 145))
	assert.Equal(t, color.RGBA{}, parent.RGBAAt(50, 50))
}

func TestExtract(t *testing.T) {
	m, _ := drawPark(t)
	e := NewEngine()

	fc := e.Extract(m)
	require.NotNil(t, fc)
	require.Len(t, fc.Features, 1)

	f := fc.Features[0]
	assert.Equal(t, "1", f.ID)
	assert.Equal(t, image.Rect(10, 10, 90, 90), f.Box)
	assert.Equal(t, "Park", f.Attributes["name"])
	assert.Equal(t, "Park", f.Attributes["label"])
}

func TestExtractWithoutMetaWriter(t *testing.T) {
	m, err := Parse([]byte(`
layers:
  - {name: a, datasource: {type: wkt, geometry: "POINT(1 1)"}, point: {}}`), "", nil)
	require.NoError(t, err)
	m.ZoomToBox(models.NewBoundingBox(0, 0, 10, 10))

	e := NewEngine()
	require.NoError(t, e.Draw(context.Background(), m, image.NewRGBA(image.Rect(0, 0, 16, 16))))
	assert.Nil(t, e.Extract(m))
}

func TestExtractPointPadding(t *testing.T) {
	m, err := Parse([]byte(`
layers:
  - name: poi
    datasource: {type: wkt, geometry: "POINT(50 50)", name: Cafe}
    point: {radius: 4, color: "#000000"}
    metawriter: poi`), "", nil)
	require.NoError(t, err)
	m.ZoomToBox(models.NewBoundingBox(0, 0, 100, 100))

	e := NewEngine()
	require.NoError(t, e.Draw(context.Background(), m, image.NewRGBA(image.Rect(0, 0, 100, 100))))

	fc := e.Extract(m)
	require.Equal(t, 1, fc.Len())
	assert.Equal(t, image.Rect(46, 46, 54, 54), fc.Features[0].Box)
}

func TestDrawLabels(t *testing.T) {
	m, err := Parse([]byte(`
background: "#ffffff"
layers:
  - name: names
    datasource: {type: wkt, geometry: "POINT(50 50)", name: Wien}
    text: {color: "#000000"}`), "", nil)
	require.NoError(t, err)
	m.ZoomToBox(models.NewBoundingBox(0, 0, 100, 100))

	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	require.NoError(t, NewEngine().Draw(context.Background(), m, img))

	dark := 0
	for y := 30; y < 60; y++ {
		for x := 30; x < 70; x++ {
			if img.RGBAAt(x, y).R < 128 {
				dark++
			}
		}
	}
	assert.Greater(t, dark, 0, "label glyphs drawn")
}

func TestDrawErrors(t *testing.T) {
	m, err := Parse([]byte(parkStyle), "", nil)
	require.NoError(t, err)
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	e := NewEngine()

	assert.ErrorIs(t, e.Draw(context.Background(), m, img), ErrNoViewport)

	m.ZoomToBox(models.NewBoundingBox(0, 0, 100, 100))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.Draw(ctx, m, img), context.Canceled)

	assert.Error(t, e.Draw(context.Background(), otherContext{}, img))
	assert.Nil(t, e.Extract(otherContext{}))
}

type otherContext struct{}

func (otherContext) Layers() []string                                        { return nil }
func (otherContext) LayerDatasourceParams(string) (map[string]string, error) { return nil, nil }
func (otherContext) SetLayerDatasource(string, map[string]string) error      { return nil }
func (otherContext) Resize(int, int)                                         {}
func (otherContext) ZoomToBox(models.BoundingBox)                            {}
