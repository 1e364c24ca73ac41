package labels

import (
	"sort"
	"strings"
)

type tokenKind int

const (
	tokWord tokenKind = iota
	tokString
	tokIdent
	tokOpen
	tokClose
	tokComma
	tokOther
)

type token struct {
	kind       tokenKind
	start, end int
	depth      int
	text       string
}

func (t token) is(word string) bool {
	return t.kind == tokWord && strings.EqualFold(t.text, word)
}

// tokenize splits a SQL query into coarse tokens, tracking parenthesis depth.
// It only needs to be good enough to find select lists.
func tokenize(q string) []token {
	var toks []token
	depth := 0
	for i := 0; i < len(q); {
		c := q[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '\'':
			j := i + 1
			for j < len(q) {
				if q[j] == '\'' {
					if j+1 < len(q) && q[j+1] == '\'' {
						j += 2
						continue
					}
					break
				}
				j++
			}
			end := min(j+1, len(q))
			toks = append(toks, token{kind: tokString, start: i, end: end, depth: depth, text: q[i:end]})
			i = end
		case c == '"':
			j := strings.IndexByte(q[i+1:], '"')
			end := len(q)
			if j >= 0 {
				end = i + 1 + j + 1
			}
			toks = append(toks, token{kind: tokIdent, start: i, end: end, depth: depth, text: q[i:end]})
			i = end
		case c == '(':
			toks = append(toks, token{kind: tokOpen, start: i, end: i + 1, depth: depth, text: "("})
			depth++
			i++
		case c == ')':
			depth--
			toks = append(toks, token{kind: tokClose, start: i, end: i + 1, depth: depth, text: ")"})
			i++
		case c == ',':
			toks = append(toks, token{kind: tokComma, start: i, end: i + 1, depth: depth, text: ","})
			i++
		case isWordByte(c):
			j := i
			for j < len(q) && isWordByte(q[j]) {
				j++
			}
			toks = append(toks, token{kind: tokWord, start: i, end: j, depth: depth, text: q[i:j]})
			i = j
		default:
			toks = append(toks, token{kind: tokOther, start: i, end: i + 1, depth: depth, text: q[i : i+1]})
			i++
		}
	}
	return toks
}

func isWordByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

type edit struct {
	start, end int
	text       string
}

// ReplaceNameColumn finds every select-list item aliased "as name" whose
// expression is the bare name column or a coalesce(...) call, and replaces the
// expression with (expr). It returns the new query and the number of items
// replaced.
func ReplaceNameColumn(query, expr string) (string, int) {
	toks := tokenize(query)
	var edits []edit

	for i, t := range toks {
		if !t.is("select") {
			continue
		}
		for _, item := range selectItems(toks, i) {
			if e, ok := nameItem(toks[item[0]:item[1]], expr); ok {
				edits = append(edits, e)
			}
		}
	}
	if len(edits) == 0 {
		return query, 0
	}

	sort.Slice(edits, func(a, b int) bool { return edits[a].start > edits[b].start })
	out := query
	for _, e := range edits {
		out = out[:e.start] + e.text + out[e.end:]
	}
	return out, len(edits)
}

// selectItems returns token ranges [from, to) of each item in the select list
// starting after toks[sel].
func selectItems(toks []token, sel int) [][2]int {
	depth := toks[sel].depth
	var items [][2]int
	start := sel + 1
	for j := sel + 1; j < len(toks); j++ {
		t := toks[j]
		if t.depth < depth || (t.depth == depth && t.is("from")) {
			items = append(items, [2]int{start, j})
			return items
		}
		if t.depth == depth && t.kind == tokComma {
			items = append(items, [2]int{start, j})
			start = j + 1
		}
	}
	return append(items, [2]int{start, len(toks)})
}

// nameItem matches `name as name`, `coalesce(...) as name` and
// `(coalesce(...) ...) as name`.
func nameItem(item []token, expr string) (edit, bool) {
	n := len(item)
	if n < 3 || !item[n-2].is("as") || !item[n-1].is("name") {
		return edit{}, false
	}
	body := item[:n-2]
	switch {
	case len(body) == 1 && body[0].is("name"):
	case body[0].is("coalesce"):
	case len(body) > 1 && body[0].kind == tokOpen && body[1].is("coalesce"):
	default:
		return edit{}, false
	}
	return edit{
		start: body[0].start,
		end:   body[len(body)-1].end,
		text:  "(" + expr + ")",
	}, true
}
