package renderer

import (
	"fmt"

	"github.com/1F47E/geo-region-tiles/pkg/datasource"
	"github.com/1F47E/geo-region-tiles/pkg/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// Projection maps a geographic location into map units. It must be pure.
type Projection func(models.Location) orb.Point

// Mercator projects into spherical web mercator metres (EPSG:3857)
func Mercator(l models.Location) orb.Point {
	return project.WGS84.ToMercator(orb.Point{l.Lon, l.Lat})
}

// Geographic keeps lon/lat degrees (EPSG:4326)
func Geographic(l models.Location) orb.Point {
	return orb.Point{l.Lon, l.Lat}
}

// ProjectionFor returns the projection for a style's srs
func ProjectionFor(srs string) (Projection, error) {
	switch srs {
	case "", datasource.SRSMercator, "EPSG:900913":
		return Mercator, nil
	case datasource.SRSWGS84:
		return Geographic, nil
	default:
		return nil, fmt.Errorf("unsupported srs %q", srs)
	}
}
