package region

import (
	"fmt"
	"sync"
	"testing"

	"github.com/1F47E/geo-region-tiles/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nopStyle satisfies style.Context for registry tests
type nopStyle struct{ name string }

func (nopStyle) Layers() []string { return nil }
func (nopStyle) LayerDatasourceParams(string) (map[string]string, error) {
	return nil, nil
}
func (nopStyle) SetLayerDatasource(string, map[string]string) error { return nil }
func (nopStyle) Resize(int, int)                                    {}
func (nopStyle) ZoomToBox(models.BoundingBox)                       {}

func TestClassifyEmptyRegistry(t *testing.T) {
	r := NewRegistry()
	c := r.Classify(box(0, 0, 1, 1))
	assert.Equal(t, NoMatch, c.Kind)
	assert.Nil(t, c.Region)
}

func TestClassify(t *testing.T) {
	r := NewRegistry()
	downtown, err := r.Register("downtown", nopStyle{"downtown"}, square)
	require.NoError(t, err)

	tests := []struct {
		name string
		b    models.BoundingBox
		kind Kind
	}{
		{"inside", box(2, 2, 4, 4), FullMatch},
		{"half inside", box(5, 2, 15, 4), PartialMatch},
		{"outside", box(20, 20, 30, 30), NoMatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := r.Classify(tt.b)
			assert.Equal(t, tt.kind, c.Kind)
			if tt.kind == NoMatch {
				assert.Nil(t, c.Region)
			} else {
				assert.Same(t, downtown, c.Region)
			}
		})
	}
}

// Regions are scanned in registration order and the first intersecting one
// wins, even when a later region would contain the box completely.
func TestClassifyFirstIntersectWins(t *testing.T) {
	r := NewRegistry()
	first, err := r.Register("first", nopStyle{"first"}, "POLYGON((0 0, 5 0, 5 5, 0 5, 0 0))")
	require.NoError(t, err)
	_, err = r.Register("second", nopStyle{"second"}, "POLYGON((-10 -10, 20 -10, 20 20, -10 20, -10 -10))")
	require.NoError(t, err)

	c := r.Classify(box(3, 3, 8, 8))
	assert.Equal(t, PartialMatch, c.Kind)
	assert.Same(t, first, c.Region)

	// outside the first region the second one is reached
	c = r.Classify(box(10, 10, 12, 12))
	assert.Equal(t, FullMatch, c.Kind)
	assert.Equal(t, "second", c.Region.Name)
}

func TestRegisterDuplicateNames(t *testing.T) {
	r := NewRegistry()
	a, err := r.Register("dup", nopStyle{"a"}, square)
	require.NoError(t, err)
	_, err = r.Register("dup", nopStyle{"b"}, square)
	require.NoError(t, err)

	assert.Equal(t, 2, r.Len())
	assert.Same(t, a, r.Classify(box(1, 1, 2, 2)).Region)
}

func TestRegisterInvalid(t *testing.T) {
	r := NewRegistry()

	_, err := r.Register("bad", nopStyle{}, "POLYGON((0 0, 1")
	assert.ErrorIs(t, err, ErrInvalidGeometry)

	_, err = r.Register("nostyle", nil, square)
	assert.Error(t, err)

	assert.Equal(t, 0, r.Len())
}

func TestRegisterEmptyMask(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register("nowhere", nopStyle{}, "POLYGON EMPTY")
	require.NoError(t, err)

	assert.Equal(t, 1, r.Len())
	assert.Equal(t, NoMatch, r.Classify(box(-100, -100, 100, 100)).Kind)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "none", NoMatch.String())
	assert.Equal(t, "full", FullMatch.String())
	assert.Equal(t, "partial", PartialMatch.String())
}

func TestClassifyConcurrent(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 10; i++ {
		x := float64(i * 20)
		wkt := fmt.Sprintf("POLYGON((%[1]v 0, %[2]v 0, %[2]v 10, %[1]v 10, %[1]v 0))", x, x+10)
		_, err := r.Register(fmt.Sprintf("r%d", i), nopStyle{}, wkt)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				x := float64(i*20) + 2
				c := r.Classify(box(x, 2, x+1, 3))
				assert.Equal(t, FullMatch, c.Kind)
				assert.Equal(t, fmt.Sprintf("r%d", i), c.Region.Name)
			}
		}()
	}
	wg.Wait()
}

func BenchmarkClassify(b *testing.B) {
	r := NewRegistry()
	for i := 0; i < 100; i++ {
		x := float64(i * 20)
		wkt := fmt.Sprintf("POLYGON((%[1]v 0, %[2]v 0, %[2]v 10, %[1]v 10, %[1]v 0))", x, x+10)
		if _, err := r.Register(fmt.Sprintf("r%d", i), nopStyle{}, wkt); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		x := float64((i % 100) * 20)
		r.Classify(box(x+5, 5, x+15, 6))
	}
}
