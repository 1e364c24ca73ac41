package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
logging:
  level: debug
postgis:
  host: db
  user: gis
  password: secret
  database: osm
  max_connections: 10
  connection_timeout: 5
tiles:
  size: 512
styles:
  osm:
    default_style: styles/default.yaml
    mask_style: styles/mask.yaml
    regions:
      - name: downtown
        style: styles/downtown.yaml
        mask: /srv/masks/downtown.wkt
  plain:
    default_style: /srv/styles/plain.yaml
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 5432, cfg.PostGIS.Port)
	assert.Equal(t, 512, cfg.Tiles.Size)
	assert.Equal(t, DefaultMetatile, cfg.Tiles.Metatile)
	assert.Equal(t, DefaultPathTemplate, cfg.Tiles.PathTemplate)
	assert.Equal(t, []string{"osm", "plain"}, cfg.StyleNames())

	osm := cfg.Styles["osm"]
	require.Len(t, osm.Regions, 1)
	assert.Equal(t, Region{Name: "downtown", Style: "styles/downtown.yaml", Mask: "/srv/masks/downtown.wkt"}, osm.Regions[0])
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("styles: {osm: {default_style: a.yaml}}"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)
	assert.Equal(t, DefaultTileSize, cfg.Tiles.Size)
	assert.Equal(t, DefaultMetatile, cfg.Tiles.Metatile)
	assert.Empty(t, cfg.Styles["osm"].MaskStyle)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yml  string
	}{
		{"no styles", "tiles: {size: 256}"},
		{"negative size", "tiles: {size: -1}\nstyles: {osm: {default_style: a.yaml}}"},
		{"negative metatile", "tiles: {metatile: -8}\nstyles: {osm: {default_style: a.yaml}}"},
		{"no default style", "styles: {osm: {mask_style: m.yaml}}"},
		{"region without mask", "styles: {osm: {default_style: a.yaml, regions: [{name: r, style: r.yaml}]}}"},
		{"region without name", "styles: {osm: {default_style: a.yaml, regions: [{style: r.yaml, mask: r.wkt}]}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yml))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestParseRegionsWithoutMaskStyle(t *testing.T) {
	// the renderer decides what to do with these
	_, err := Parse([]byte("styles: {osm: {default_style: a.yaml, regions: [{name: r, style: r.yaml, mask: r.wkt}]}}"))
	assert.NoError(t, err)
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("styles: ["))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalid)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	osm := cfg.Styles["osm"]
	assert.Equal(t, filepath.Join(dir, "styles/default.yaml"), osm.DefaultStyle)
	assert.Equal(t, filepath.Join(dir, "styles/mask.yaml"), osm.MaskStyle)
	assert.Equal(t, filepath.Join(dir, "styles/downtown.yaml"), osm.Regions[0].Style)
	assert.Equal(t, "/srv/masks/downtown.wkt", osm.Regions[0].Mask)
	assert.Equal(t, "/srv/styles/plain.yaml", cfg.Styles["plain"].DefaultStyle)
	assert.Empty(t, cfg.Styles["plain"].MaskStyle)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestDatasourceDefaults(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, map[string]map[string]string{
		"postgis": {
			"host":            "db",
			"port":            "5432",
			"user":            "gis",
			"password":        "secret",
			"dbname":          "osm",
			"max_connections": "10",
			"connect_timeout": "5",
		},
	}, cfg.DatasourceDefaults())

	cfg, err = Parse([]byte("styles: {osm: {default_style: a.yaml}}"))
	require.NoError(t, err)
	pg := cfg.DatasourceDefaults()["postgis"]
	assert.NotContains(t, pg, "max_connections")
	assert.NotContains(t, pg, "connect_timeout")
}
