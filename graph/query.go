package graph

import (
	"fmt"
	"strings"
)

// Query is a restricted SPARQL ASK filter: PREFIX declarations followed by a
// basic graph pattern of triple patterns. It decides whether an entity's
// sub-artifacts should be materialized, evaluated against the triples the
// entity emitted.
type Query struct {
	patterns []pattern
}

type queryTerm struct {
	variable string // set for ?var terms
	iri      string // set for IRI terms
	literal  string // set for literal terms
	isLit    bool
}

type pattern struct {
	s, p, o queryTerm
}

// ParseQuery parses the ASK subset. Anything outside the subset is a
// configuration error.
func ParseQuery(src string) (*Query, error) {
	prefixes := map[string]string{}
	rest := strings.TrimSpace(src)
	for {
		if !strings.HasPrefix(strings.ToUpper(rest), "PREFIX") {
			break
		}
		line := rest[len("PREFIX"):]
		colon := strings.Index(line, ":")
		if colon < 0 {
			return nil, fmt.Errorf("graph: malformed PREFIX in query")
		}
		name := strings.TrimSpace(line[:colon])
		line = strings.TrimSpace(line[colon+1:])
		if !strings.HasPrefix(line, "<") {
			return nil, fmt.Errorf("graph: malformed PREFIX IRI in query")
		}
		end := strings.Index(line, ">")
		if end < 0 {
			return nil, fmt.Errorf("graph: unterminated PREFIX IRI in query")
		}
		prefixes[name] = line[1:end]
		rest = strings.TrimSpace(line[end+1:])
	}
	upper := strings.ToUpper(rest)
	if !strings.HasPrefix(upper, "ASK") {
		return nil, fmt.Errorf("graph: query must be an ASK form")
	}
	rest = strings.TrimSpace(rest[len("ASK"):])
	if !strings.HasPrefix(rest, "{") || !strings.HasSuffix(rest, "}") {
		return nil, fmt.Errorf("graph: ASK pattern must be braced")
	}
	body := rest[1 : len(rest)-1]

	tokens, err := tokenizePattern(body)
	if err != nil {
		return nil, err
	}
	q := &Query{}
	var stmt []string
	flush := func() error {
		if len(stmt) == 0 {
			return nil
		}
		if len(stmt) != 3 {
			return fmt.Errorf("graph: triple pattern needs 3 terms, got %d in %v", len(stmt), stmt)
		}
		var pt pattern
		for i, raw := range stmt {
			t, err := parseTerm(raw, prefixes)
			if err != nil {
				return err
			}
			switch i {
			case 0:
				pt.s = t
			case 1:
				pt.p = t
			case 2:
				pt.o = t
			}
		}
		q.patterns = append(q.patterns, pt)
		stmt = stmt[:0]
		return nil
	}
	for _, tok := range tokens {
		if tok == "." {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		stmt = append(stmt, tok)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if len(q.patterns) == 0 {
		return nil, fmt.Errorf("graph: empty ASK pattern")
	}
	return q, nil
}

func tokenizePattern(stmt string) ([]string, error) {
	var terms []string
	for stmt != "" {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			break
		}
		switch stmt[0] {
		case '<':
			end := strings.IndexByte(stmt, '>')
			if end < 0 {
				return nil, fmt.Errorf("graph: unterminated IRI in %q", stmt)
			}
			terms = append(terms, stmt[:end+1])
			stmt = stmt[end+1:]
		case '"':
			end := strings.IndexByte(stmt[1:], '"')
			if end < 0 {
				return nil, fmt.Errorf("graph: unterminated literal in %q", stmt)
			}
			terms = append(terms, stmt[:end+2])
			stmt = stmt[end+2:]
		default:
			end := strings.IndexAny(stmt, " \t\r\n")
			if end < 0 {
				end = len(stmt)
			}
			terms = append(terms, stmt[:end])
			stmt = stmt[end:]
		}
	}
	return terms, nil
}

func parseTerm(raw string, prefixes map[string]string) (queryTerm, error) {
	switch {
	case strings.HasPrefix(raw, "?"):
		return queryTerm{variable: raw[1:]}, nil
	case strings.HasPrefix(raw, "<") && strings.HasSuffix(raw, ">"):
		return queryTerm{iri: raw[1 : len(raw)-1]}, nil
	case strings.HasPrefix(raw, "\"") && strings.HasSuffix(raw, "\""):
		return queryTerm{literal: raw[1 : len(raw)-1], isLit: true}, nil
	case raw == "a":
		return queryTerm{iri: Type.URI()}, nil
	default:
		colon := strings.Index(raw, ":")
		if colon < 0 {
			return queryTerm{}, fmt.Errorf("graph: unsupported query term %q", raw)
		}
		ns, ok := prefixes[raw[:colon]]
		if !ok {
			return queryTerm{}, fmt.Errorf("graph: undeclared prefix in %q", raw)
		}
		return queryTerm{iri: ns + raw[colon+1:]}, nil
	}
}

// Ask evaluates the pattern conjunction against the triples with standard
// variable-binding joins.
func (q *Query) Ask(triples []Triple) bool {
	return q.solve(triples, 0, map[string]string{})
}

func (q *Query) solve(triples []Triple, idx int, bindings map[string]string) bool {
	if idx == len(q.patterns) {
		return true
	}
	pt := q.patterns[idx]
	for _, t := range triples {
		next, ok := match(pt, t, bindings)
		if !ok {
			continue
		}
		if q.solve(triples, idx+1, next) {
			return true
		}
	}
	return false
}

func match(pt pattern, t Triple, bindings map[string]string) (map[string]string, bool) {
	next := bindings
	grown := false
	bind := func(term queryTerm, value string, isLit bool) bool {
		if term.variable != "" {
			if bound, ok := next[term.variable]; ok {
				return bound == value
			}
			if !grown {
				copied := make(map[string]string, len(next)+1)
				for k, v := range next {
					copied[k] = v
				}
				next = copied
				grown = true
			}
			next[term.variable] = value
			return true
		}
		if term.isLit {
			return isLit && term.literal == value
		}
		return !isLit && term.iri == value
	}
	if !bind(pt.s, t.Subject, false) {
		return nil, false
	}
	if !bind(pt.p, t.Predicate, false) {
		return nil, false
	}
	var objValue string
	objLit := t.Object.IsLiteral
	if objLit {
		objValue = t.Object.Literal.Lexical()
	} else {
		objValue = t.Object.IRI
	}
	if !bind(pt.o, objValue, objLit) {
		return nil, false
	}
	return next, true
}
