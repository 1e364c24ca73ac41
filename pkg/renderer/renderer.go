// Package renderer is the tile rendering entry point: it projects a request,
// classifies it against the registered regions and runs the matching plan.
package renderer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/1F47E/geo-region-tiles/pkg/models"
	"github.com/1F47E/geo-region-tiles/pkg/pipeline"
	"github.com/1F47E/geo-region-tiles/pkg/raster"
	"github.com/1F47E/geo-region-tiles/pkg/region"
	"github.com/1F47E/geo-region-tiles/pkg/style"
	"go.uber.org/zap"
)

// ErrInit is returned when a renderer cannot be constructed. No partially
// built renderer is ever returned alongside it.
var ErrInit = errors.New("renderer init failed")

// Engine draws style contexts and reports what they recorded
type Engine interface {
	pipeline.Drawer
	pipeline.FeatureExtractor
}

// Loader loads a style definition from a path
type Loader func(path string) (style.Context, error)

// Masking selects whether a renderer can composite regions. Regions need a
// mask style to cut their footprint out of the default style.
type Masking struct {
	mask style.Context
}

// WithMasking enables regions, using mask as the stencil style
func WithMasking(mask style.Context) Masking {
	return Masking{mask: mask}
}

// Unmasked renders the default style only
func Unmasked() Masking {
	return Masking{}
}

func (m Masking) Enabled() bool { return m.mask != nil }

// Options configure a Renderer. Engine is required.
type Options struct {
	Engine     Engine
	Loader     Loader
	Projection Projection
	Logger     *zap.Logger
}

// Renderer renders tiles against one set of style contexts. Render holds an
// exclusive lock for the whole call since every pass mutates the contexts.
type Renderer struct {
	mu sync.Mutex

	def        style.Context
	masking    Masking
	regions    *region.Registry
	compositor *pipeline.Compositor
	proj       Projection
	loader     Loader
	log        *zap.Logger
}

// New creates a renderer for the default style. Without a Projection the
// default is web mercator.
func New(def style.Context, masking Masking, opts Options) (*Renderer, error) {
	if def == nil {
		return nil, fmt.Errorf("%w: no default style", ErrInit)
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("%w: no render engine", ErrInit)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	proj := opts.Projection
	if proj == nil {
		proj = Mercator
	}

	r := &Renderer{
		def:        def,
		masking:    masking,
		compositor: pipeline.New(opts.Engine, opts.Engine, log),
		proj:       proj,
		loader:     opts.Loader,
		log:        log,
	}
	if masking.Enabled() {
		r.regions = region.NewRegistry()
	}
	return r, nil
}

// Masked reports whether regions can be added
func (r *Renderer) Masked() bool { return r.masking.Enabled() }

// AddRegion loads a region's style and WKT mask and registers it. Failures are
// logged and the region is skipped; the result reports whether it was added.
func (r *Renderer) AddRegion(name, stylePath, maskPath string) bool {
	if !r.masking.Enabled() {
		r.log.Warn("cannot add region because no mask style was configured", zap.String("region", name))
		return false
	}
	if r.loader == nil {
		r.log.Error("failed to add region", zap.String("region", name), zap.Error(errors.New("no style loader")))
		return false
	}

	sc, err := r.loader(stylePath)
	if err != nil {
		r.log.Error("failed to add region", zap.String("region", name), zap.Error(err))
		return false
	}
	mask, err := region.LoadMask(maskPath)
	if err != nil {
		r.log.Error("failed to add region", zap.String("region", name), zap.Error(err))
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.regions.Add(name, sc, mask)
	return true
}

// Register adds a region from an already loaded style and WKT mask text,
// with the same soft failure as AddRegion.
func (r *Renderer) Register(name string, sc style.Context, maskWKT string) bool {
	if !r.masking.Enabled() {
		r.log.Warn("cannot add region because no mask style was configured", zap.String("region", name))
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.regions.Register(name, sc, maskWKT); err != nil {
		r.log.Error("failed to add region", zap.String("region", name), zap.Error(err))
		return false
	}
	return true
}

// Regions returns the registered regions in registration order
func (r *Renderer) Regions() []*region.Region {
	if r.regions == nil {
		return nil
	}
	return r.regions.Regions()
}

// BBox projects the request's geographic corners into map units
func (r *Renderer) BBox(tile models.TileRequest) models.BoundingBox {
	p0 := r.proj(tile.BBox[0])
	p1 := r.proj(tile.BBox[1])
	return models.NewBoundingBox(p0[0], p0[1], p1[0], p1[1])
}

// Classify reports which plan a request would use
func (r *Renderer) Classify(tile models.TileRequest) region.Classification {
	if r.regions == nil {
		return region.Classification{Kind: region.NoMatch}
	}
	return r.regions.Classify(r.BBox(tile))
}

// Render draws one tile. Any failed pass fails the whole tile.
func (r *Renderer) Render(ctx context.Context, tile models.TileRequest) (*models.RenderResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bbox := r.BBox(tile)
	job := pipeline.Job{
		Classification: region.Classification{Kind: region.NoMatch},
		BBox:           bbox,
		Size:           tile.Size,
		Language:       tile.Language,
		Default:        r.def,
		Mask:           r.masking.mask,
	}
	if r.regions != nil {
		job.Classification = r.regions.Classify(bbox)
	}

	img, features, err := r.compositor.Execute(ctx, job)
	if err != nil {
		return nil, err
	}
	return &models.RenderResult{
		Tile:     tile,
		Image:    raster.ToNRGBA(img),
		Features: features,
	}, nil
}
