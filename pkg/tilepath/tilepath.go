// Package tilepath matches tile URL paths against a template such as
// "/tiles/1.0.0/{STYLE}/{LANG}/{Z}/{X}/{Y}.{FORMAT}".
//
// STYLE, Z, X, Y and FORMAT are predefined. Any other {NAME} becomes an extra
// parameter, stored lower-cased. A trailing "/status" or "/dirty" command is
// always accepted and must not be part of the template.
package tilepath

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/1F47E/geo-region-tiles/pkg/models"
	"github.com/paulmach/orb/maptile"
)

var (
	// ErrNoMatch is returned for a path that does not fit the template
	ErrNoMatch = errors.New("path does not match template")
	// ErrInvalidTile is returned for coordinates outside the zoom level
	ErrInvalidTile = errors.New("invalid tile coordinates")
)

// Command is the action requested for a tile
type Command int

const (
	Render Command = iota
	Status
	Dirty
)

func (c Command) String() string {
	switch c {
	case Status:
		return "status"
	case Dirty:
		return "dirty"
	default:
		return "render"
	}
}

// DimensionFeatures asks for the extracted feature collection
const DimensionFeatures = "features"

var predefined = map[string]string{
	"style":  `(?P<style>[A-Za-z0-9_]+)`,
	"z":      `(?P<z>[12]?[0-9])`,
	"x":      `(?P<x>[0-9]{1,7})`,
	"y":      `(?P<y>[0-9]{1,7})`,
	"format": `(?P<format>png|jpg|jpeg|gif|json)`,
}

var paramRe = regexp.MustCompile(`\{\s*([A-Za-z0-9_]+)\s*\}`)

// Match is a parsed tile path
type Match struct {
	Style   string
	Z, X, Y int
	Format  string
	Command Command
	Params  map[string]string
}

// Parser matches paths against one template
type Parser struct {
	template string
	re       *regexp.Regexp
	extra    []string
}

// New compiles a template
func New(template string) (*Parser, error) {
	var (
		sb    strings.Builder
		extra []string
		seen  = make(map[string]bool)
		last  int
	)
	for _, loc := range paramRe.FindAllStringSubmatchIndex(template, -1) {
		sb.WriteString(regexp.QuoteMeta(template[last:loc[0]]))
		last = loc[1]

		name := strings.ToLower(template[loc[2]:loc[3]])
		if seen[name] {
			return nil, fmt.Errorf("parameter %q appears twice in template", name)
		}
		seen[name] = true

		if sub, ok := predefined[name]; ok {
			sb.WriteString(sub)
			continue
		}
		extra = append(extra, name)
		sb.WriteString(`(?P<` + name + `>[-A-Za-z0-9_,|]*)`)
	}
	sb.WriteString(regexp.QuoteMeta(template[last:]))

	for _, required := range []string{"z", "x", "y"} {
		if !seen[required] {
			return nil, fmt.Errorf("template has no {%s}", strings.ToUpper(required))
		}
	}

	re, err := regexp.Compile(`^` + sb.String() + `(?:/(?P<command>status|dirty))?$`)
	if err != nil {
		return nil, fmt.Errorf("failed to compile template: %w", err)
	}
	return &Parser{template: template, re: re, extra: extra}, nil
}

// Template returns the template the parser was built from
func (p *Parser) Template() string { return p.template }

// Parse matches a URL path
func (p *Parser) Parse(path string) (Match, error) {
	sub := p.re.FindStringSubmatch(path)
	if sub == nil {
		return Match{}, fmt.Errorf("%w: %q", ErrNoMatch, path)
	}
	group := func(name string) string {
		if i := p.re.SubexpIndex(name); i >= 0 {
			return sub[i]
		}
		return ""
	}

	var (
		m   Match
		err error
	)
	if m.Z, err = strconv.Atoi(group("z")); err != nil {
		return Match{}, fmt.Errorf("%w: %q", ErrNoMatch, path)
	}
	if m.X, err = strconv.Atoi(group("x")); err != nil {
		return Match{}, fmt.Errorf("%w: %q", ErrNoMatch, path)
	}
	if m.Y, err = strconv.Atoi(group("y")); err != nil {
		return Match{}, fmt.Errorf("%w: %q", ErrNoMatch, path)
	}
	m.Style = group("style")
	m.Format = group("format")
	if m.Format == "jpeg" {
		m.Format = "jpg"
	}
	switch group("command") {
	case "status":
		m.Command = Status
	case "dirty":
		m.Command = Dirty
	}

	m.Params = make(map[string]string, len(p.extra))
	for _, name := range p.extra {
		m.Params[name] = group(name)
	}
	return m, nil
}

// Format builds the path for m, the inverse of Parse. The command is not
// included.
func (p *Parser) Format(m Match) string {
	return paramRe.ReplaceAllStringFunc(p.template, func(s string) string {
		name := strings.ToLower(paramRe.FindStringSubmatch(s)[1])
		switch name {
		case "style":
			return m.Style
		case "z":
			return strconv.Itoa(m.Z)
		case "x":
			return strconv.Itoa(m.X)
		case "y":
			return strconv.Itoa(m.Y)
		case "format":
			return m.Format
		default:
			return m.Params[name]
		}
	})
}

// Tile returns the map tile addressed by m
func (m Match) Tile() maptile.Tile {
	return maptile.New(uint32(m.X), uint32(m.Y), maptile.Zoom(m.Z))
}

// TileRequest builds the render request for m: the tile's geographic bounds,
// the language from a {LANG} parameter and the features dimension for json.
func (m Match) TileRequest(size int) (models.TileRequest, error) {
	t := m.Tile()
	if m.X < 0 || m.Y < 0 || !t.Valid() {
		return models.TileRequest{}, fmt.Errorf("%w: %d/%d/%d", ErrInvalidTile, m.Z, m.X, m.Y)
	}
	b := t.Bound()
	req := models.TileRequest{
		BBox: [2]models.Location{
			{Lat: b.Min.Lat(), Lon: b.Min.Lon()},
			{Lat: b.Max.Lat(), Lon: b.Max.Lon()},
		},
		Size:     models.Size{Width: size, Height: size},
		Language: m.Params["lang"],
	}
	if m.Format == "json" {
		req.Dimensions = []string{DimensionFeatures}
	}
	return req, nil
}
