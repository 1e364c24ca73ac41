package renderer

import (
	"context"
	"errors"
	"fmt"

	"github.com/1F47E/geo-region-tiles/pkg/models"
)

// Pool hands out independent renderers, one per concurrent render. Each
// renderer owns its own style contexts, so renders never share state.
type Pool struct {
	free chan *Renderer
	size int
}

// NewPool builds n renderers with build. Any failure fails the pool.
func NewPool(n int, build func() (*Renderer, error)) (*Pool, error) {
	if n <= 0 {
		return nil, errors.New("pool size must be positive")
	}
	p := &Pool{free: make(chan *Renderer, n), size: n}
	for i := 0; i < n; i++ {
		r, err := build()
		if err != nil {
			return nil, fmt.Errorf("failed to build renderer %d: %w", i, err)
		}
		p.free <- r
	}
	return p, nil
}

func (p *Pool) Size() int { return p.size }

// Acquire waits for a free renderer. It must be returned with Release.
func (p *Pool) Acquire(ctx context.Context) (*Renderer, error) {
	select {
	case r := <-p.free:
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pool) Release(r *Renderer) {
	p.free <- r
}

// Render borrows a renderer for one tile
func (p *Pool) Render(ctx context.Context, tile models.TileRequest) (*models.RenderResult, error) {
	r, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Release(r)
	return r.Render(ctx, tile)
}
