// Package raster holds the alpha compositing primitives used to combine
// render passes, plus metatile cutting.
package raster

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// New returns a fully transparent w x h image
func New(w, h int) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

// CompositeDstOut keeps dst only where src is transparent: every dst pixel is
// scaled by (1 - src alpha). src is aligned with dst's origin.
func CompositeDstOut(dst *image.RGBA, src image.Image) {
	db, sb := dst.Bounds(), src.Bounds()
	w, h := min(db.Dx(), sb.Dx()), min(db.Dy(), sb.Dy())
	for y := 0; y < h; y++ {
		i := dst.PixOffset(db.Min.X, db.Min.Y+y)
		for x := 0; x < w; x++ {
			_, _, _, a := src.At(sb.Min.X+x, sb.Min.Y+y).RGBA()
			if a != 0 {
				// premultiplied, so all four channels scale together
				k := 0xffff - a
				for c := i; c < i+4; c++ {
					dst.Pix[c] = uint8((uint32(dst.Pix[c])*k + 0x7fff) / 0xffff)
				}
			}
			i += 4
		}
	}
}

// Blend paints src over dst at offset (x, y) from dst's origin, with src
// alpha scaled by opacity in [0, 1].
func Blend(dst *image.RGBA, src image.Image, opacity float64, x, y int) {
	if opacity <= 0 {
		return
	}
	sb := src.Bounds()
	r := sb.Sub(sb.Min).Add(dst.Bounds().Min.Add(image.Pt(x, y)))
	if opacity >= 1 {
		draw.Draw(dst, r, src, sb.Min, draw.Over)
		return
	}
	mask := image.NewUniform(color.Alpha16{A: uint16(math.Round(opacity * 0xffff))})
	draw.DrawMask(dst, r, src, sb.Min, mask, image.Point{}, draw.Over)
}

// SetAlpha scales the opacity of every pixel by a in [0, 1]. SetAlpha(img, 0)
// leaves a transparent canvas.
func SetAlpha(img *image.RGBA, a float64) {
	a = math.Max(0, math.Min(1, a))
	if a == 1 {
		return
	}
	if a == 0 {
		clear(img.Pix)
		return
	}
	// premultiplied, so all four channels scale together
	for i, v := range img.Pix {
		img.Pix[i] = uint8(math.Round(float64(v) * a))
	}
}

// ToNRGBA converts a premultiplied image into the non-premultiplied buffer
// handed to callers and encoders.
func ToNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// Cut splits a metatile into size x size tiles. The result is indexed
// [column][row], with row 0 at the top.
func Cut(img image.Image, size int) ([][]*image.NRGBA, error) {
	b := img.Bounds()
	if size <= 0 || b.Dx()%size != 0 || b.Dy()%size != 0 {
		return nil, fmt.Errorf("cannot cut %dx%d image into %d px tiles", b.Dx(), b.Dy(), size)
	}
	cols, rows := b.Dx()/size, b.Dy()/size
	tiles := make([][]*image.NRGBA, cols)
	for c := 0; c < cols; c++ {
		tiles[c] = make([]*image.NRGBA, rows)
		for r := 0; r < rows; r++ {
			tile := image.NewNRGBA(image.Rect(0, 0, size, size))
			sp := b.Min.Add(image.Pt(c*size, r*size))
			draw.Draw(tile, tile.Bounds(), img, sp, draw.Src)
			tiles[c][r] = tile
		}
	}
	return tiles, nil
}
