package main

import (
	"image"
	"math/rand"
	"testing"

	"github.com/1F47E/geo-region-tiles/pkg/config"
	"github.com/1F47E/geo-region-tiles/pkg/models"
	"github.com/1F47E/geo-region-tiles/pkg/tilepath"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBBox(t *testing.T) {
	b, err := parseBBox("16.2, 48.1,16.5,48.3")
	require.NoError(t, err)
	assert.Equal(t, orb.Bound{Min: orb.Point{16.2, 48.1}, Max: orb.Point{16.5, 48.3}}, b)

	for _, s := range []string{"", "1,2,3", "a,b,c,d", "10,0,0,10"} {
		_, err := parseBBox(s)
		assert.Error(t, err, s)
	}
}

func TestParseZoom(t *testing.T) {
	lo, hi, err := parseZoom("12")
	require.NoError(t, err)
	assert.Equal(t, [2]int{12, 12}, [2]int{lo, hi})

	lo, hi, err = parseZoom("3-14")
	require.NoError(t, err)
	assert.Equal(t, [2]int{3, 14}, [2]int{lo, hi})

	for _, s := range []string{"", "x", "5-2", "0-30", "-1"} {
		_, _, err := parseZoom(s)
		assert.Error(t, err, s)
	}
}

func TestMetatiles(t *testing.T) {
	world := orb.Bound{Min: orb.Point{-180, -85}, Max: orb.Point{180, 85}}

	// a single metatile covers zoom 0 to 3 at n=8
	mts := metatiles(world, 0, 3, 8)
	require.Len(t, mts, 4)
	for z, mt := range mts {
		assert.Equal(t, tilepath.Metatile{Z: z, N: min(8, 1<<z)}, mt)
	}

	// zoom 4 is 16x16 tiles, four metatiles
	assert.Len(t, metatiles(world, 4, 4, 8), 4)

	// a small box stays in one metatile
	vienna := orb.Bound{Min: orb.Point{16.3, 48.15}, Max: orb.Point{16.4, 48.25}}
	assert.Len(t, metatiles(vienna, 12, 12, 8), 1)
}

func TestCropFeatures(t *testing.T) {
	fc := &models.FeatureCollection{Features: []models.Feature{
		{ID: "a", Box: image.Rect(10, 10, 20, 20)},
		{ID: "b", Box: image.Rect(250, 250, 260, 260)},
		{ID: "c", Box: image.Rect(300, 10, 310, 20)},
	}}

	first := cropFeatures(fc, image.Point{}, 256)
	require.Len(t, first.Features, 2)
	assert.Equal(t, image.Rect(10, 10, 20, 20), first.Features[0].Box)
	assert.Equal(t, image.Rect(250, 250, 256, 256), first.Features[1].Box)

	second := cropFeatures(fc, image.Pt(256, 0), 256)
	require.Len(t, second.Features, 2)
	assert.Equal(t, "b", second.Features[0].ID)
	assert.Equal(t, image.Rect(0, 250, 4, 256), second.Features[0].Box)
	assert.Equal(t, image.Rect(44, 10, 54, 20), second.Features[1].Box)

	// the input is left alone
	assert.Equal(t, image.Rect(250, 250, 260, 260), fc.Features[1].Box)

	assert.Nil(t, cropFeatures(nil, image.Point{}, 256))
}

func TestRandomTiles(t *testing.T) {
	b := orb.Bound{Min: orb.Point{16.2, 48.1}, Max: orb.Point{16.5, 48.3}}
	reqs, err := randomTiles(rand.New(rand.NewSource(7)), b, 10, 14, 50, 256)
	require.NoError(t, err)
	require.Len(t, reqs, 50)
	for _, req := range reqs {
		assert.Equal(t, 256, req.Size.Width)
		assert.LessOrEqual(t, req.BBox[0].Lon, 16.5)
		assert.GreaterOrEqual(t, req.BBox[1].Lon, 16.2)
	}
}

func TestParseTile(t *testing.T) {
	a := &app{
		cfg:   &config.Config{Tiles: config.Tiles{PathTemplate: config.DefaultPathTemplate}},
		style: "osm",
	}

	m, err := a.parseTile("12/2200/1343")
	require.NoError(t, err)
	assert.Equal(t, tilepath.Match{Style: "osm", Z: 12, X: 2200, Y: 1343, Format: "png"}, m)

	m, err = a.parseTile("/tiles/1.0.0/german/de/12/2200/1343.json")
	require.NoError(t, err)
	assert.Equal(t, "german", m.Style)
	assert.Equal(t, "de", m.Params["lang"])
	assert.Equal(t, "json", m.Format)

	_, err = a.parseTile("12/x/1343")
	assert.ErrorIs(t, err, tilepath.ErrNoMatch)
}
