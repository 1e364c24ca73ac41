package main

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/1F47E/geo-region-tiles/pkg/models"
	"github.com/1F47E/geo-region-tiles/pkg/raster"
	"github.com/1F47E/geo-region-tiles/pkg/renderer"
	"github.com/1F47E/geo-region-tiles/pkg/tilepath"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Pre-render tiles for an area",
	Long: `Render every metatile covering a bounding box over a zoom range and cut
them into tiles, writing <out>/<z>/<x>/<y>.png and <y>.json with the features.`,
	RunE: runSeed,
}

var (
	seedBBox    string
	seedZoom    string
	seedOut     string
	seedWorkers int
	seedLang    string
)

func init() {
	seedCmd.Flags().StringVarP(&seedBBox, "bbox", "b", "-180,-85.0511,180,85.0511", "Area as minlon,minlat,maxlon,maxlat")
	seedCmd.Flags().StringVarP(&seedZoom, "zoom", "z", "0-4", "Zoom level or range, e.g. 12 or 10-14")
	seedCmd.Flags().StringVarP(&seedOut, "out", "o", "tiles", "Output directory")
	seedCmd.Flags().IntVarP(&seedWorkers, "workers", "w", runtime.NumCPU(), "Number of renderers")
	seedCmd.Flags().StringVarP(&seedLang, "lang", "l", "", "Label languages")
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF79C6")).
			Background(lipgloss.Color("#282A36")).
			Padding(0, 1).
			MarginBottom(1)

	statStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFB86C"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272A4"))
)

func parseBBox(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("bbox needs 4 values, got %q", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("invalid bbox value %q: %w", p, err)
		}
		v[i] = f
	}
	b := orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}
	if b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] {
		return orb.Bound{}, fmt.Errorf("bbox min is greater than max: %q", s)
	}
	return b, nil
}

func parseZoom(s string) (int, int, error) {
	lo, hi, found := strings.Cut(s, "-")
	if !found {
		hi = lo
	}
	minZ, err := strconv.Atoi(lo)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid zoom %q: %w", s, err)
	}
	maxZ, err := strconv.Atoi(hi)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid zoom %q: %w", s, err)
	}
	if minZ < 0 || maxZ > 29 || minZ > maxZ {
		return 0, 0, fmt.Errorf("invalid zoom range %q", s)
	}
	return minZ, maxZ, nil
}

// metatiles lists the metatiles of size n covering b at each zoom
func metatiles(b orb.Bound, minZ, maxZ, n int) []tilepath.Metatile {
	var out []tilepath.Metatile
	for z := minZ; z <= maxZ; z++ {
		tl := maptile.At(orb.Point{b.Min[0], b.Max[1]}, maptile.Zoom(z))
		br := maptile.At(orb.Point{b.Max[0], b.Min[1]}, maptile.Zoom(z))
		last := uint32(1<<z) - 1
		br.X, br.Y = min(br.X, last), min(br.Y, last)

		first := tilepath.MetatileFor(z, int(tl.X), int(tl.Y), n)
		for x := first.X; x <= int(br.X); x += n {
			for y := first.Y; y <= int(br.Y); y += n {
				out = append(out, tilepath.MetatileFor(z, x, y, n))
			}
		}
	}
	return out
}

type seedStats struct {
	metatiles atomic.Int64
	tiles     atomic.Int64
	failed    atomic.Int64
}

func runSeed(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.log.Sync()

	bound, err := parseBBox(seedBBox)
	if err != nil {
		return err
	}
	minZ, maxZ, err := parseZoom(seedZoom)
	if err != nil {
		return err
	}
	if seedWorkers < 1 {
		seedWorkers = 1
	}

	interactive := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	if interactive {
		// keep the progress UI clean
		a.log = zap.NewNop()
	}

	jobs := metatiles(bound, minZ, maxZ, a.cfg.Tiles.Metatile)
	pool, err := renderer.NewPool(seedWorkers, a.newRenderer)
	if err != nil {
		return err
	}

	if !interactive {
		var stats seedStats
		start := time.Now()
		seed(cmd.Context(), a, pool, jobs, &stats, func(done int) {
			a.log.Info("seed progress", zap.Int("done", done), zap.Int("total", len(jobs)))
		})
		fmt.Printf("Seeded %d tiles from %d metatiles in %v (%d failed)\n",
			stats.tiles.Load(), stats.metatiles.Load(), time.Since(start), stats.failed.Load())
		return seedErr(&stats)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	m := newSeedModel(len(jobs), cancel)
	p := tea.NewProgram(m)
	go func() {
		seed(ctx, a, pool, jobs, m.stats, func(done int) {
			p.Send(progressMsg(float64(done) / float64(max(len(jobs), 1))))
		})
		p.Send(seedDoneMsg{})
	}()
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run progress UI: %w", err)
	}
	return seedErr(m.stats)
}

func seedErr(stats *seedStats) error {
	if n := stats.failed.Load(); n > 0 {
		return fmt.Errorf("%d metatiles failed", n)
	}
	return nil
}

// seed renders jobs with one worker per pooled renderer
func seed(ctx context.Context, a *app, pool *renderer.Pool, jobs []tilepath.Metatile, stats *seedStats, onProgress func(done int)) {
	queue := make(chan tilepath.Metatile)
	var (
		wg   sync.WaitGroup
		done atomic.Int64
	)
	for w := 0; w < pool.Size(); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for mt := range queue {
				n, err := seedMetatile(ctx, a, pool, mt)
				if err != nil {
					stats.failed.Add(1)
					a.log.Error("failed to seed metatile",
						zap.Int("z", mt.Z), zap.Int("x", mt.X), zap.Int("y", mt.Y), zap.Error(err))
				} else {
					stats.metatiles.Add(1)
					stats.tiles.Add(int64(n))
				}
				onProgress(int(done.Add(1)))
			}
		}()
	}

	for _, mt := range jobs {
		select {
		case queue <- mt:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(queue)
	wg.Wait()
}

func seedMetatile(ctx context.Context, a *app, pool *renderer.Pool, mt tilepath.Metatile) (int, error) {
	size := a.cfg.Tiles.Size
	req, err := mt.TileRequest(size, seedLang)
	if err != nil {
		return 0, err
	}
	res, err := pool.Render(ctx, req)
	if err != nil {
		return 0, err
	}
	tiles, err := raster.Cut(res.Image, size)
	if err != nil {
		return 0, err
	}

	written := 0
	for dx, col := range tiles {
		for dy, img := range col {
			x, y := mt.X+dx, mt.Y+dy
			base := filepath.Join(seedOut, strconv.Itoa(mt.Z), strconv.Itoa(x), strconv.Itoa(y))
			if err := writePNG(base+".png", img); err != nil {
				return written, err
			}
			offset := image.Pt(dx*size, dy*size)
			if err := writeFeatures(base+".json", cropFeatures(res.Features, offset, size)); err != nil {
				return written, err
			}
			written++
		}
	}
	return written, nil
}

// cropFeatures keeps the features overlapping one tile of a metatile, in
// that tile's pixel space
func cropFeatures(fc *models.FeatureCollection, offset image.Point, size int) *models.FeatureCollection {
	if fc == nil {
		return nil
	}
	tile := image.Rect(0, 0, size, size)
	out := &models.FeatureCollection{Features: []models.Feature{}}
	for _, f := range fc.Features {
		box := f.Box.Sub(offset).Intersect(tile)
		if box.Empty() {
			continue
		}
		f.Box = box
		out.Features = append(out.Features, f)
	}
	return out
}

type progressMsg float64
type seedDoneMsg struct{}

type seedModel struct {
	spinner  spinner.Model
	progress progress.Model
	percent  float64
	total    int
	stats    *seedStats
	start    time.Time
	done     bool
	cancel   context.CancelFunc
}

func newSeedModel(total int, cancel context.CancelFunc) seedModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF79C6"))

	return seedModel{
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient()),
		total:    total,
		stats:    &seedStats{},
		start:    time.Now(),
		cancel:   cancel,
	}
}

func (m seedModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m seedModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.progress.Width = msg.Width - 10
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.cancel()
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd

	case progressMsg:
		m.percent = float64(msg)
		return m, m.progress.SetPercent(float64(msg))

	case seedDoneMsg:
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m seedModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Seeding tiles"))
	b.WriteString("\n")
	if m.done {
		b.WriteString(fmt.Sprintf("Done: %s tiles from %s metatiles in %s\n",
			statStyle.Render(strconv.FormatInt(m.stats.tiles.Load(), 10)),
			statStyle.Render(strconv.FormatInt(m.stats.metatiles.Load(), 10)),
			statStyle.Render(time.Since(m.start).Round(time.Millisecond).String())))
	} else {
		b.WriteString(fmt.Sprintf("%s Rendering %d metatiles...\n\n", m.spinner.View(), m.total))
		b.WriteString(m.progress.ViewAs(m.percent))
		b.WriteString("\n")
	}
	if n := m.stats.failed.Load(); n > 0 {
		b.WriteString(errorStyle.Render(fmt.Sprintf("%d metatiles failed", n)))
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render("Press 'q' to quit"))
	b.WriteString("\n")
	return b.String()
}
