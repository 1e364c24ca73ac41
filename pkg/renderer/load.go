package renderer

import (
	"fmt"

	"github.com/1F47E/geo-region-tiles/pkg/config"
	"github.com/1F47E/geo-region-tiles/pkg/style"
	"go.uber.org/zap"
)

// StyleLoader loads YAML styles with the given datasource defaults
func StyleLoader(defaults style.Defaults) Loader {
	return func(path string) (style.Context, error) {
		m, err := style.Load(path, defaults)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

type srsReporter interface {
	SRS() string
}

// Load builds a renderer from a style config. Failing to load the default or
// mask style is fatal; regions that fail to load are logged and skipped.
func Load(cfg config.Style, loader Loader, engine Engine, log *zap.Logger) (*Renderer, error) {
	if log == nil {
		log = zap.NewNop()
	}

	def, err := loader(cfg.DefaultStyle)
	if err != nil {
		log.Error("failed to load default style", zap.String("path", cfg.DefaultStyle), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrInit, err)
	}

	masking := Unmasked()
	if cfg.MaskStyle != "" {
		mask, err := loader(cfg.MaskStyle)
		if err != nil {
			log.Error("failed to load mask style", zap.String("path", cfg.MaskStyle), zap.Error(err))
			return nil, fmt.Errorf("%w: %w", ErrInit, err)
		}
		masking = WithMasking(mask)
	}

	proj := Projection(Mercator)
	if s, ok := def.(srsReporter); ok {
		if proj, err = ProjectionFor(s.SRS()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInit, err)
		}
	}

	r, err := New(def, masking, Options{
		Engine:     engine,
		Loader:     loader,
		Projection: proj,
		Logger:     log,
	})
	if err != nil {
		return nil, err
	}
	for _, reg := range cfg.Regions {
		r.AddRegion(reg.Name, reg.Style, reg.Mask)
	}
	return r, nil
}
