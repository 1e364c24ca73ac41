package main

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/1F47E/geo-region-tiles/pkg/models"
	"github.com/1F47E/geo-region-tiles/pkg/tilepath"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var renderCmd = &cobra.Command{
	Use:   "render <z/x/y | tile path>",
	Short: "Render a single tile",
	Long: `Render one tile to PNG. The tile is given either as z/x/y or as a URL path
matching the configured path template, e.g. /tiles/1.0.0/osm/en/12/654/1583.png.`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

var (
	outFile      string
	featuresFile string
	language     string
	timeout      time.Duration
)

func init() {
	renderCmd.Flags().StringVarP(&outFile, "out", "o", "tile.png", "Output PNG file")
	renderCmd.Flags().StringVar(&featuresFile, "features", "", "Write extracted features as JSON to this file")
	renderCmd.Flags().StringVarP(&language, "lang", "l", "", "Label languages, e.g. \"en,_|de\"")
	renderCmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "Render timeout")
}

func runRender(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.log.Sync()

	m, err := a.parseTile(args[0])
	if err != nil {
		return err
	}
	req, err := m.TileRequest(a.cfg.Tiles.Size)
	if err != nil {
		return err
	}
	if language != "" {
		req.Language = language
	}

	r, err := a.newRenderer()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	start := time.Now()
	res, err := r.Render(ctx, req)
	if err != nil {
		return err
	}
	a.log.Info("rendered tile",
		zap.String("tile", fmt.Sprintf("%d/%d/%d", m.Z, m.X, m.Y)),
		zap.Stringer("plan", r.Classify(req).Kind),
		zap.Int("features", res.Features.Len()),
		zap.Duration("elapsed", time.Since(start)))

	if err := writePNG(outFile, res.Image); err != nil {
		return err
	}
	if featuresFile != "" {
		if err := writeFeatures(featuresFile, res.Features); err != nil {
			return err
		}
	}
	fmt.Printf("Tile written to %s\n", outFile)
	return nil
}

// parseTile accepts z/x/y or a path matching the configured template
func (a *app) parseTile(arg string) (tilepath.Match, error) {
	if parts := strings.Split(arg, "/"); len(parts) == 3 {
		var zxy [3]int
		ok := true
		for i, p := range parts {
			n, err := strconv.Atoi(p)
			if err != nil {
				ok = false
				break
			}
			zxy[i] = n
		}
		if ok {
			return tilepath.Match{Style: a.style, Z: zxy[0], X: zxy[1], Y: zxy[2], Format: "png"}, nil
		}
	}

	p, err := tilepath.New(a.cfg.Tiles.PathTemplate)
	if err != nil {
		return tilepath.Match{}, err
	}
	return p.Parse(arg)
}

func writePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}

func writeFeatures(path string, fc *models.FeatureCollection) error {
	if fc == nil {
		fc = &models.FeatureCollection{Features: []models.Feature{}}
	}
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode features: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
