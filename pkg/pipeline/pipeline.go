// Package pipeline runs the render plan chosen by region classification and
// combines the passes into a single tile.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/1F47E/geo-region-tiles/pkg/labels"
	"github.com/1F47E/geo-region-tiles/pkg/models"
	"github.com/1F47E/geo-region-tiles/pkg/raster"
	"github.com/1F47E/geo-region-tiles/pkg/region"
	"github.com/1F47E/geo-region-tiles/pkg/style"
	"go.uber.org/zap"
)

// ErrRender marks a failed tile. No partial raster accompanies it.
var ErrRender = errors.New("render failed")

// Drawer renders a style context, already sized and zoomed, into dst
type Drawer interface {
	Draw(ctx context.Context, sc style.Context, dst *image.RGBA) error
}

// FeatureExtractor returns the features recorded during the last Draw of sc,
// or nil when nothing was recording
type FeatureExtractor interface {
	Extract(sc style.Context) *models.FeatureCollection
}

// Pass names used in errors and logs
const (
	PassDefault = "default"
	PassMask    = "mask"
	PassRegion  = "region"
)

// Job is everything one tile render needs
type Job struct {
	Classification region.Classification
	BBox           models.BoundingBox
	Size           models.Size
	Language       string

	Default style.Context
	// Mask is nil for renderers built without masking
	Mask style.Context
}

// Compositor executes render plans. It holds no per-tile state, but the style
// contexts in a Job are mutated, so callers serialise jobs sharing contexts.
type Compositor struct {
	drawer    Drawer
	extractor FeatureExtractor
	rewriter  *labels.Rewriter
	log       *zap.Logger
}

// New creates a compositor. A nil logger discards output.
func New(d Drawer, fx FeatureExtractor, log *zap.Logger) *Compositor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Compositor{
		drawer:    d,
		extractor: fx,
		rewriter:  labels.NewRewriter(log),
		log:       log,
	}
}

// Execute runs the plan for job.Classification and returns the composited
// raster with the merged features of every pass that extracted any.
func (c *Compositor) Execute(ctx context.Context, job Job) (*image.RGBA, *models.FeatureCollection, error) {
	if job.Size.Width <= 0 || job.Size.Height <= 0 {
		return nil, nil, fmt.Errorf("%w: invalid tile size %dx%d", ErrRender, job.Size.Width, job.Size.Height)
	}

	switch job.Classification.Kind {
	case region.FullMatch:
		return c.single(ctx, job, PassRegion, job.Classification.Region.Style)
	case region.PartialMatch:
		return c.composite(ctx, job)
	default:
		return c.single(ctx, job, PassDefault, job.Default)
	}
}

func (c *Compositor) single(ctx context.Context, job Job, name string, sc style.Context) (*image.RGBA, *models.FeatureCollection, error) {
	img := raster.New(job.Size.Width, job.Size.Height)
	if err := c.pass(ctx, job, name, sc, img); err != nil {
		return nil, nil, err
	}
	return img, c.extractor.Extract(sc), nil
}

// composite renders the default style everywhere outside the region's mask
// and the region's style inside it.
func (c *Compositor) composite(ctx context.Context, job Job) (*image.RGBA, *models.FeatureCollection, error) {
	reg := job.Classification.Region
	if job.Mask == nil {
		return nil, nil, fmt.Errorf("%w: region %q matched without a mask style", ErrRender, reg.Name)
	}
	c.log.Info("composite map", zap.String("region", reg.Name))

	w, h := job.Size.Width, job.Size.Height

	// the mask render is a stencil, never visible
	img := raster.New(w, h)
	if err := c.pass(ctx, job, PassMask, job.Mask, img); err != nil {
		return nil, nil, err
	}

	def := raster.New(w, h)
	if err := c.pass(ctx, job, PassDefault, job.Default, def); err != nil {
		return nil, nil, err
	}
	features := c.extractor.Extract(job.Default)

	raster.CompositeDstOut(def, img)

	// reuse the stencil as a transparent canvas for the region
	raster.SetAlpha(img, 0)
	if err := c.pass(ctx, job, PassRegion, reg.Style, img); err != nil {
		return nil, nil, err
	}
	features = models.MergeFeatures(features, c.extractor.Extract(reg.Style))

	raster.Blend(img, def, 1.0, 0, 0)
	return img, features, nil
}

// pass sizes sc to the tile, applies the label languages and draws it
func (c *Compositor) pass(ctx context.Context, job Job, name string, sc style.Context, dst *image.RGBA) error {
	if sc == nil {
		return fmt.Errorf("%w: %s pass: no style", ErrRender, name)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s pass: %w", ErrRender, name, err)
	}

	sc.Resize(job.Size.Width, job.Size.Height)
	sc.ZoomToBox(job.BBox)
	if err := c.rewriter.Rewrite(sc, job.Language); err != nil {
		return fmt.Errorf("%w: %s pass: %w", ErrRender, name, err)
	}
	if err := c.drawer.Draw(ctx, sc, dst); err != nil {
		return fmt.Errorf("%w: %s pass: %w", ErrRender, name, err)
	}
	return nil
}
