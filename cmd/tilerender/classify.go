package main

import (
	"fmt"

	"github.com/1F47E/geo-region-tiles/pkg/region"
	"github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <z/x/y | tile path>...",
	Short: "Show which render plan tiles would use",
	Long:  `Classify tiles against the configured regions without rendering them.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClassify,
}

func runClassify(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.log.Sync()

	r, err := a.newRenderer()
	if err != nil {
		return err
	}
	if !r.Masked() {
		fmt.Println("No mask style configured, every tile uses the default style")
	}
	if verbose {
		for i, reg := range r.Regions() {
			fmt.Printf("Region %d: %s\n", i, reg.Name)
		}
	}

	for _, arg := range args {
		m, err := a.parseTile(arg)
		if err != nil {
			return err
		}
		req, err := m.TileRequest(a.cfg.Tiles.Size)
		if err != nil {
			return err
		}

		c := r.Classify(req)
		bbox := r.BBox(req)
		name := "-"
		if c.Kind != region.NoMatch {
			name = c.Region.Name
		}
		fmt.Printf("%d/%d/%d\t%s\t%s\t[%.2f %.2f %.2f %.2f]\n",
			m.Z, m.X, m.Y, c.Kind, name, bbox.MinX, bbox.MinY, bbox.MaxX, bbox.MaxY)
	}
	return nil
}
