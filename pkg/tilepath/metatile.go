package tilepath

import (
	"fmt"

	"github.com/1F47E/geo-region-tiles/pkg/models"
	"github.com/paulmach/orb/maptile"
)

// Metatile is a block of up to N x N tiles rendered as one image
type Metatile struct {
	Z, X, Y int // top-left tile
	N       int // tiles per side, clipped at the edge of the world
}

// MetatileFor returns the metatile of size n containing tile z/x/y
func MetatileFor(z, x, y, n int) Metatile {
	mt := Metatile{Z: z, X: x - x%n, Y: y - y%n, N: n}
	if world := 1 << z; world < n {
		mt.N = world
	}
	return mt
}

// Tiles lists the tiles covered, column by column
func (mt Metatile) Tiles() []maptile.Tile {
	tiles := make([]maptile.Tile, 0, mt.N*mt.N)
	for dx := 0; dx < mt.N; dx++ {
		for dy := 0; dy < mt.N; dy++ {
			tiles = append(tiles, maptile.New(uint32(mt.X+dx), uint32(mt.Y+dy), maptile.Zoom(mt.Z)))
		}
	}
	return tiles
}

// TileRequest covers the whole metatile at tileSize pixels per tile
func (mt Metatile) TileRequest(tileSize int, language string) (models.TileRequest, error) {
	tl := maptile.New(uint32(mt.X), uint32(mt.Y), maptile.Zoom(mt.Z))
	br := maptile.New(uint32(mt.X+mt.N-1), uint32(mt.Y+mt.N-1), maptile.Zoom(mt.Z))
	if mt.N <= 0 || !tl.Valid() || !br.Valid() {
		return models.TileRequest{}, fmt.Errorf("%w: metatile %d/%d/%d", ErrInvalidTile, mt.Z, mt.X, mt.Y)
	}
	b := tl.Bound().Union(br.Bound())
	return models.TileRequest{
		BBox: [2]models.Location{
			{Lat: b.Min.Lat(), Lon: b.Min.Lon()},
			{Lat: b.Max.Lat(), Lon: b.Max.Lon()},
		},
		Size:       models.Size{Width: mt.N * tileSize, Height: mt.N * tileSize},
		Language:   language,
		Dimensions: []string{DimensionFeatures},
	}, nil
}
