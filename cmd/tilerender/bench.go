package main

import (
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/1F47E/geo-region-tiles/pkg/models"
	"github.com/1F47E/geo-region-tiles/pkg/region"
	"github.com/1F47E/geo-region-tiles/pkg/renderer"
	"github.com/1F47E/geo-region-tiles/pkg/tilepath"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/spf13/cobra"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure render throughput",
	Long:  `Render random tiles inside an area with a pool of renderers and report throughput per plan.`,
	RunE:  runBench,
}

var (
	benchTiles   int
	benchWorkers int
	benchBBox    string
	benchZoom    string
	benchSeed    int64
)

func init() {
	benchCmd.Flags().IntVarP(&benchTiles, "tiles", "n", 200, "Number of tiles to render")
	benchCmd.Flags().IntVarP(&benchWorkers, "workers", "w", runtime.NumCPU(), "Number of renderers")
	benchCmd.Flags().StringVarP(&benchBBox, "bbox", "b", "-180,-85.0511,180,85.0511", "Area as minlon,minlat,maxlon,maxlat")
	benchCmd.Flags().StringVarP(&benchZoom, "zoom", "z", "10-14", "Zoom level or range")
	benchCmd.Flags().Int64Var(&benchSeed, "seed", time.Now().UnixNano(), "Random seed")
}

// randomTiles picks n tiles inside b within the zoom range
func randomTiles(r *rand.Rand, b orb.Bound, minZ, maxZ, n, size int) ([]models.TileRequest, error) {
	reqs := make([]models.TileRequest, 0, n)
	for i := 0; i < n; i++ {
		z := minZ + r.Intn(maxZ-minZ+1)
		p := orb.Point{
			b.Min[0] + r.Float64()*(b.Max[0]-b.Min[0]),
			b.Min[1] + r.Float64()*(b.Max[1]-b.Min[1]),
		}
		t := maptile.At(p, maptile.Zoom(z))
		last := uint32(1<<z) - 1
		m := tilepath.Match{Z: z, X: int(min(t.X, last)), Y: int(min(t.Y, last))}
		req, err := m.TileRequest(size)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

func runBench(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.log.Sync()

	bound, err := parseBBox(benchBBox)
	if err != nil {
		return err
	}
	minZ, maxZ, err := parseZoom(benchZoom)
	if err != nil {
		return err
	}
	if benchWorkers < 1 {
		benchWorkers = 1
	}

	reqs, err := randomTiles(rand.New(rand.NewSource(benchSeed)), bound, minZ, maxZ, benchTiles, a.cfg.Tiles.Size)
	if err != nil {
		return err
	}

	fmt.Printf("Loading %d renderers...\n", benchWorkers)
	pool, err := renderer.NewPool(benchWorkers, a.newRenderer)
	if err != nil {
		return err
	}

	// classification only reads the registry, any renderer will do
	probe, err := pool.Acquire(cmd.Context())
	if err != nil {
		return err
	}
	plans := make([]region.Kind, len(reqs))
	for i, req := range reqs {
		plans[i] = probe.Classify(req).Kind
	}
	pool.Release(probe)

	fmt.Printf("Rendering %d tiles using %d workers...\n", len(reqs), benchWorkers)

	var (
		rendered atomic.Int64
		failed   atomic.Int64
		features atomic.Int64
		mu       sync.Mutex
		byPlan   = map[region.Kind]time.Duration{}
		counts   = map[region.Kind]int{}
	)

	ctx := cmd.Context()
	start := time.Now()

	var wg sync.WaitGroup
	perWorker := len(reqs) / benchWorkers
	for w := 0; w < benchWorkers; w++ {
		wg.Add(1)
		startIdx := w * perWorker
		endIdx := startIdx + perWorker
		if w == benchWorkers-1 {
			endIdx = len(reqs)
		}

		go func(workerID, start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				t0 := time.Now()
				res, err := pool.Render(ctx, reqs[i])
				elapsed := time.Since(t0)
				if err != nil {
					failed.Add(1)
					if verbose {
						fmt.Printf("Worker %d: tile %d failed: %v\n", workerID, i, err)
					}
					if ctx.Err() != nil {
						return
					}
					continue
				}
				rendered.Add(1)
				features.Add(int64(res.Features.Len()))

				mu.Lock()
				byPlan[plans[i]] += elapsed
				counts[plans[i]]++
				mu.Unlock()
			}
		}(w, startIdx, endIdx)
	}
	wg.Wait()
	elapsed := time.Since(start)

	done := rendered.Load()
	fmt.Printf("\nBenchmark Results:\n")
	fmt.Printf("Total tiles: %d (%d failed)\n", done, failed.Load())
	fmt.Printf("Total time: %v\n", elapsed)
	if done == 0 {
		return nil
	}
	fmt.Printf("Tiles per second: %.1f\n", float64(done)/elapsed.Seconds())
	fmt.Printf("Features per tile: %.1f\n", float64(features.Load())/float64(done))
	for _, k := range []region.Kind{region.NoMatch, region.FullMatch, region.PartialMatch} {
		if counts[k] == 0 {
			continue
		}
		fmt.Printf("  %-8s %5d tiles, avg %v\n", k, counts[k], byPlan[k]/time.Duration(counts[k]))
	}
	return nil
}
