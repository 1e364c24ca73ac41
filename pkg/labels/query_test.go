package labels

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReplaceNameColumn(t *testing.T) {
	const expr = "coalesce(tags->'name:en','')"

	tests := []struct {
		name  string
		query string
		want  string
		n     int
	}{
		{
			name:  "bare name",
			query: "(select way, name as name from planet_osm_point) as t",
			want:  "(select way, (" + expr + ") as name from planet_osm_point) as t",
			n:     1,
		},
		{
			name:  "previous coalesce",
			query: "(select way, coalesce(tags->'name:de','') as name from roads) as t",
			want:  "(select way, (" + expr + ") as name from roads) as t",
			n:     1,
		},
		{
			name:  "previous rewrite",
			query: "(select way, (coalesce(tags->'name:de','') || ' ' || '[' || coalesce(name,'') || ']') as name from roads) as t",
			want:  "(select way, (" + expr + ") as name from roads) as t",
			n:     1,
		},
		{
			name:  "upper case keywords",
			query: "(SELECT way, name AS name FROM roads) AS t",
			want:  "(SELECT way, (" + expr + ") AS name FROM roads) AS t",
			n:     1,
		},
		{
			name:  "nested selects",
			query: "(select way, name as name from (select way, name as name from roads) as inner) as t",
			want:  "(select way, (" + expr + ") as name from (select way, (" + expr + ") as name from roads) as inner) as t",
			n:     2,
		},
		{
			name:  "other aliases untouched",
			query: "(select way, ref as name_ref, name from roads) as t",
			want:  "(select way, ref as name_ref, name from roads) as t",
			n:     0,
		},
		{
			name:  "string literal with keywords",
			query: "(select way, name as name from roads where highway = 'select x as name') as t",
			want:  "(select way, (" + expr + ") as name from roads where highway = 'select x as name') as t",
			n:     1,
		},
		{
			name:  "plain table",
			query: "planet_osm_line",
			want:  "planet_osm_line",
			n:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, n := ReplaceNameColumn(tt.query, expr)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.n, n)
		})
	}
}

func TestReplaceNameColumnIdempotent(t *testing.T) {
	expr, _ := Build("en|de", HintMultiline)
	q := "(select way, name as name from roads) as t"

	once, n := ReplaceNameColumn(q, expr.SQL())
	assert.Equal(t, 1, n)
	twice, n := ReplaceNameColumn(once, expr.SQL())
	assert.Equal(t, 1, n)
	assert.Equal(t, once, twice)
}
