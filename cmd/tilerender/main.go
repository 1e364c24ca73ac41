package main

import (
	"fmt"
	"os"

	"github.com/1F47E/geo-region-tiles/pkg/config"
	"github.com/1F47E/geo-region-tiles/pkg/logging"
	"github.com/1F47E/geo-region-tiles/pkg/renderer"
	"github.com/1F47E/geo-region-tiles/pkg/style"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configFile string
	styleName  string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "tilerender",
	Short: "Region-aware raster tile renderer",
	Long: `Render map tiles from YAML styles, compositing region styles over the
default style where a tile crosses a region boundary.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yaml", "Config file path")
	rootCmd.PersistentFlags().StringVarP(&styleName, "style", "s", "", "Style to use (default: first configured style)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(renderCmd, classifyCmd, seedCmd, benchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app is what every subcommand needs
type app struct {
	cfg   *config.Config
	log   *zap.Logger
	style string
}

func setup() (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	name := styleName
	if name == "" {
		name = cfg.StyleNames()[0]
	}
	if _, ok := cfg.Styles[name]; !ok {
		return nil, fmt.Errorf("style %q is not configured", name)
	}
	return &app{cfg: cfg, log: log.With(zap.String("style", name)), style: name}, nil
}

// newRenderer loads a fresh renderer with its own style contexts
func (a *app) newRenderer() (*renderer.Renderer, error) {
	defaults := style.Defaults(a.cfg.DatasourceDefaults())
	return renderer.Load(a.cfg.Styles[a.style], renderer.StyleLoader(defaults), style.NewEngine(), a.log)
}
