// Package labels builds the language fallback expression used for map labels.
//
// A language spec looks like "en,_|de": groups separated by '|', each group a
// comma separated list of language codes tried left to right. The token "_"
// stands for the untagged name. The spec is kept as an expression tree and is
// only turned into SQL (or evaluated against feature tags) at the datasource.
package labels

import "strings"

const (
	// ParamHint is the datasource parameter that enables label rewriting
	ParamHint = "labelhint"
	// ParamTable holds the datasource query
	ParamTable = "table"
	// ParamLanguages carries the raw language spec to in-memory datasources
	ParamLanguages = "languages"

	// HintMultiline joins groups with a line break instead of a space
	HintMultiline = "replace-multiline"

	untagged = "_"
	// groups at these positions are wrapped in brackets
	firstBracketed = 1
	lastBracketed  = 2
)

// Candidate is one entry in a fallback chain. An empty Lang is the untagged name.
type Candidate struct {
	Lang string
}

// Key is the feature attribute the candidate reads
func (c Candidate) Key() string {
	if c.Lang == "" {
		return "name"
	}
	return "name:" + c.Lang
}

// SQL renders the candidate as a column expression against an hstore tags column
func (c Candidate) SQL() string {
	if c.Lang == "" {
		return "name"
	}
	return "tags->'name:" + c.Lang + "'"
}

// Group is a fallback chain, coalesce(candidates..., '')
type Group struct {
	Candidates []Candidate
	Bracketed  bool
}

func (g Group) SQL() string {
	parts := make([]string, 0, len(g.Candidates)+1)
	for _, c := range g.Candidates {
		parts = append(parts, c.SQL())
	}
	parts = append(parts, "''")
	s := "coalesce(" + strings.Join(parts, ",") + ")"
	if g.Bracketed {
		s = "'[' || " + s + " || ']'"
	}
	return s
}

// Eval picks the first candidate present in attrs. A present but empty value
// still wins, as with SQL coalesce.
func (g Group) Eval(attrs map[string]string) string {
	s := ""
	for _, c := range g.Candidates {
		if v, ok := attrs[c.Key()]; ok {
			s = v
			break
		}
	}
	if g.Bracketed {
		s = "[" + s + "]"
	}
	return s
}

// JoinMode selects the separator placed between groups
type JoinMode int

const (
	JoinSpace JoinMode = iota
	JoinNewline
)

// Expr is the full label expression
type Expr struct {
	Groups []Group
	Join   JoinMode
}

// SQL serialises the expression for a PostgreSQL query
func (e Expr) SQL() string {
	sep := " || ' ' || "
	if e.Join == JoinNewline {
		sep = " || E'\\n' || "
	}
	parts := make([]string, len(e.Groups))
	for i, g := range e.Groups {
		parts[i] = g.SQL()
	}
	return strings.Join(parts, sep)
}

// Eval evaluates the expression against feature attributes
func (e Expr) Eval(attrs map[string]string) string {
	sep := " "
	if e.Join == JoinNewline {
		sep = "\n"
	}
	parts := make([]string, len(e.Groups))
	for i, g := range e.Groups {
		parts[i] = g.Eval(attrs)
	}
	return strings.Join(parts, sep)
}

// ParseSpec splits a language spec into candidate groups. Invalid or empty
// tokens are dropped, so a malformed group degrades to an empty chain.
func ParseSpec(spec string) [][]Candidate {
	if strings.TrimSpace(spec) == "" {
		return nil
	}
	var groups [][]Candidate
	for _, line := range strings.Split(spec, "|") {
		var chain []Candidate
		for _, tok := range strings.Split(line, ",") {
			tok = strings.TrimSpace(tok)
			switch {
			case tok == untagged:
				chain = append(chain, Candidate{})
			case validLang(tok):
				chain = append(chain, Candidate{Lang: tok})
			}
		}
		groups = append(groups, chain)
	}
	return groups
}

// Build turns a language spec and a label hint into an expression.
// ok is false when the spec is empty.
func Build(spec, hint string) (expr Expr, ok bool) {
	chains := ParseSpec(spec)
	if len(chains) == 0 {
		return Expr{}, false
	}
	if hint == HintMultiline {
		expr.Join = JoinNewline
	}
	for i, chain := range chains {
		expr.Groups = append(expr.Groups, Group{
			Candidates: chain,
			Bracketed:  i >= firstBracketed && i <= lastBracketed,
		})
	}
	return expr, true
}

// validLang accepts tags like "en", "zh-Hans" or "sr_Latn". Anything else
// could break out of the quoted hstore key.
func validLang(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
