package region

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/1F47E/geo-region-tiles/pkg/models"
	"github.com/1F47E/geo-region-tiles/pkg/style"
	"github.com/dhconnelly/rtreego"
)

// Region pairs a named style with the mask selecting where it applies
type Region struct {
	Name  string
	Style style.Context
	Mask  *Mask
}

// Kind is the outcome of classifying a box against the registry
type Kind int

const (
	NoMatch Kind = iota
	FullMatch
	PartialMatch
)

func (k Kind) String() string {
	switch k {
	case FullMatch:
		return "full"
	case PartialMatch:
		return "partial"
	default:
		return "none"
	}
}

// Classification names the matched region, if any
type Classification struct {
	Kind   Kind
	Region *Region
}

// indexedRegion wraps a region's mask extent for R-Tree indexing
type indexedRegion struct {
	order int
	rect  rtreego.Rect
}

func (ir *indexedRegion) Bounds() rtreego.Rect {
	return ir.rect
}

// Registry is an append-only, ordered list of regions. Registration order is
// significant: Classify stops at the first region whose mask intersects.
type Registry struct {
	mu      sync.RWMutex
	regions []*Region
	index   *rtreego.Rtree
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		index: rtreego.NewTree(dimensions, minChildren, maxChildren),
	}
}

// Register parses maskWKT and appends a region. Duplicate names are allowed.
func (r *Registry) Register(name string, sc style.Context, maskWKT string) (*Region, error) {
	if sc == nil {
		return nil, errors.New("region style is nil")
	}
	m, err := NewMask(maskWKT)
	if err != nil {
		return nil, fmt.Errorf("failed to build mask for region %q: %w", name, err)
	}
	return r.Add(name, sc, m), nil
}

// Add appends a region with an already prepared mask
func (r *Registry) Add(name string, sc style.Context, m *Mask) *Region {
	reg := &Region{Name: name, Style: sc, Mask: m}

	r.mu.Lock()
	defer r.mu.Unlock()

	order := len(r.regions)
	r.regions = append(r.regions, reg)
	if b, ok := m.Bound(); ok {
		r.index.Insert(&indexedRegion{order: order, rect: queryRect(b)})
	}
	return reg
}

// Classify scans regions in registration order and returns FullMatch or
// PartialMatch for the first region whose mask intersects b, NoMatch otherwise.
// A later region that fully contains b is never considered once an earlier
// one intersects.
func (r *Registry) Classify(b models.BoundingBox) Classification {
	r.mu.RLock()
	defer r.mu.RUnlock()

	candidates := r.index.SearchIntersect(queryRect(b))
	order := make([]int, 0, len(candidates))
	for _, c := range candidates {
		order = append(order, c.(*indexedRegion).order)
	}
	sort.Ints(order)

	for _, i := range order {
		reg := r.regions[i]
		intersects, contains := reg.Mask.Relate(b)
		if !intersects {
			continue
		}
		if contains {
			return Classification{Kind: FullMatch, Region: reg}
		}
		return Classification{Kind: PartialMatch, Region: reg}
	}
	return Classification{Kind: NoMatch}
}

// Regions returns the registered regions in order
func (r *Registry) Regions() []*Region {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Region, len(r.regions))
	copy(out, r.regions)
	return out
}

// Len returns the number of registered regions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.regions)
}
