// Package datalog compiles recursive path rules over labeled edge relations
// into a live incremental computation. A Query names relations and the
// productions that derive them; compiling it yields one handle per relation
// through which edges are inserted and removed and current contents are
// read. Derived contents are corrected continuously as inputs change,
// including through recursion.
package datalog

import (
	"fmt"
	"sort"
	"strings"
)

// Direction selects how a relation reference follows edges.
type Direction uint8

const (
	// Forward follows edges from source to destination.
	Forward Direction = iota
	// Reverse follows edges from destination back to source.
	Reverse
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Reverse:
		return "reverse"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// Ref is one step of a production's path: a relation name and the direction
// to traverse it.
type Ref struct {
	Name string
	Dir  Direction
}

func (r Ref) String() string {
	if r.Dir == Reverse {
		return "~" + r.Name
	}
	return r.Name
}

// Production derives edges for the relation named Head: every path that
// follows Refs in order from some origin node to some final node contributes
// the edge (origin, final). An empty Refs list derives nothing and merely
// declares Head as a relation.
type Production struct {
	Head string
	Refs []Ref
}

func (p Production) String() string {
	parts := make([]string, 0, len(p.Refs)+1)
	parts = append(parts, p.Head)
	for _, r := range p.Refs {
		parts = append(parts, r.String())
	}
	return strings.Join(parts, " ")
}

// Query is an ordered list of productions. The same head may appear in any
// number of productions; each contributes a union term. References may name
// relations that never appear as a head, and may name the head itself,
// which is what makes a relation recursive.
type Query struct {
	Productions []Production
}

func (q *Query) String() string {
	lines := make([]string, 0, len(q.Productions))
	for _, p := range q.Productions {
		lines = append(lines, p.String())
	}
	return strings.Join(lines, "\n")
}

// Names returns every relation name appearing anywhere in the query, heads
// and references alike, deduplicated and sorted. This is the canonical
// order all construction over relations must follow: workers correlate
// operators positionally, so any two compilations of the same query must
// enumerate names identically.
func (q *Query) Names() []string {
	seen := make(map[string]struct{})
	for _, p := range q.Productions {
		seen[p.Head] = struct{}{}
		for _, r := range p.Refs {
			seen[r.Name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every relation name is usable. Names must be
// non-empty, free of whitespace, and must not begin with the reverse marker.
func (q *Query) Validate() error {
	if len(q.Productions) == 0 {
		return fmt.Errorf("query has no productions")
	}
	for i, p := range q.Productions {
		if err := ValidateName(p.Head); err != nil {
			return fmt.Errorf("production %d: head: %w", i, err)
		}
		for j, r := range p.Refs {
			if err := ValidateName(r.Name); err != nil {
				return fmt.Errorf("production %d: reference %d: %w", i, j, err)
			}
		}
	}
	return nil
}

// ValidateName reports whether name is usable as a relation name.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty relation name")
	}
	if strings.HasPrefix(name, "~") {
		return fmt.Errorf("relation name %q starts with the reverse marker", name)
	}
	if strings.IndexFunc(name, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' }) >= 0 {
		return fmt.Errorf("relation name %q contains whitespace", name)
	}
	return nil
}
