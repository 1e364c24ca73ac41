package labels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSpec(t *testing.T) {
	tests := []struct {
		name string
		spec string
		want [][]Candidate
	}{
		{"empty", "", nil},
		{"blank", "   ", nil},
		{"single", "en", [][]Candidate{{{Lang: "en"}}}},
		{"untagged", "_", [][]Candidate{{{}}}},
		{"chain", "en,_", [][]Candidate{{{Lang: "en"}, {}}}},
		{"groups", "en|de,_", [][]Candidate{{{Lang: "en"}}, {{Lang: "de"}, {}}}},
		{"spaces", " en , fr ", [][]Candidate{{{Lang: "en"}, {Lang: "fr"}}}},
		{"invalid token dropped", "en,x'y", [][]Candidate{{{Lang: "en"}}}},
		{"malformed group degrades", "en|';drop|de", [][]Candidate{{{Lang: "en"}}, nil, {{Lang: "de"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSpec(tt.spec))
		})
	}
}

func TestBuildSingleGroup(t *testing.T) {
	expr, ok := Build("en", "replace")
	require.True(t, ok)
	require.Len(t, expr.Groups, 1)
	assert.Len(t, expr.Groups[0].Candidates, 1)
	assert.False(t, expr.Groups[0].Bracketed)
	assert.Equal(t, "coalesce(tags->'name:en','')", expr.SQL())
}

func TestBuildBrackets(t *testing.T) {
	expr, ok := Build("en|de", "replace")
	require.True(t, ok)
	require.Len(t, expr.Groups, 2)
	assert.False(t, expr.Groups[0].Bracketed)
	assert.True(t, expr.Groups[1].Bracketed)
	assert.Equal(t,
		"coalesce(tags->'name:en','') || ' ' || '[' || coalesce(tags->'name:de','') || ']'",
		expr.SQL())

	// only the second and third groups are decorated
	expr, ok = Build("a|b|c|d|e", "")
	require.True(t, ok)
	var bracketed []bool
	for _, g := range expr.Groups {
		bracketed = append(bracketed, g.Bracketed)
	}
	assert.Equal(t, []bool{false, true, true, false, false}, bracketed)
}

func TestBuildJoin(t *testing.T) {
	tests := []struct {
		hint    string
		join    JoinMode
		sqlSep  string
		evalSep string
	}{
		{HintMultiline, JoinNewline, " || E'\\n' || ", "\n"},
		{"replace", JoinSpace, " || ' ' || ", " "},
		{"anything", JoinSpace, " || ' ' || ", " "},
	}

	attrs := map[string]string{"name": "Wien", "name:en": "Vienna"}
	for _, tt := range tests {
		t.Run(tt.hint, func(t *testing.T) {
			expr, ok := Build("en|_", tt.hint)
			require.True(t, ok)
			assert.Equal(t, tt.join, expr.Join)
			assert.Equal(t, "coalesce(tags->'name:en','')"+tt.sqlSep+"'[' || coalesce(name,'') || ']'", expr.SQL())
			assert.Equal(t, "Vienna"+tt.evalSep+"[Wien]", expr.Eval(attrs))
		})
	}
}

func TestBuildEmpty(t *testing.T) {
	_, ok := Build("", "replace")
	assert.False(t, ok)
}

func TestEval(t *testing.T) {
	attrs := map[string]string{
		"name":    "München",
		"name:en": "Munich",
		"name:it": "",
	}

	tests := []struct {
		spec string
		want string
	}{
		{"en", "Munich"},
		{"fr,_", "München"},
		{"fr", ""},
		{"it,en", ""},
		{"en|_", "Munich [München]"},
		{"fr|fr", " []"},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			expr, ok := Build(tt.spec, "")
			require.True(t, ok)
			assert.Equal(t, tt.want, expr.Eval(attrs))
		})
	}
}

func TestCandidate(t *testing.T) {
	assert.Equal(t, "name", Candidate{}.Key())
	assert.Equal(t, "name", Candidate{}.SQL())
	assert.Equal(t, "name:de", Candidate{Lang: "de"}.Key())
	assert.Equal(t, "tags->'name:de'", Candidate{Lang: "de"}.SQL())
}
