// Package parser reads the two line-oriented text formats the engine
// consumes: rule files, which define a query, and edge files, which
// populate its input relations.
package parser

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/wbrown/delta-datalog/datalog"
)

// maxLine bounds a single input line. Edge files are often machine
// generated and the default bufio.Scanner limit is too small for long
// comment headers.
const maxLine = 1 << 20

// ParseRules parses a rule file: one production per line, written as a
// head relation followed by the references joined to derive it. A
// reference prefixed with ~ follows its relation's edges in reverse. A
// line holding only a head declares the relation without deriving
// anything. Blank lines and lines starting with # are skipped.
func ParseRules(r io.Reader) (*datalog.Query, error) {
	q := &datalog.Query{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		p := datalog.Production{Head: fields[0]}
		if err := datalog.ValidateName(p.Head); err != nil {
			return nil, fmt.Errorf("rules line %d: head: %w", line, err)
		}
		for _, f := range fields[1:] {
			ref := datalog.Ref{Name: f, Dir: datalog.Forward}
			if strings.HasPrefix(f, "~") {
				ref = datalog.Ref{Name: strings.TrimPrefix(f, "~"), Dir: datalog.Reverse}
			}
			if err := datalog.ValidateName(ref.Name); err != nil {
				return nil, fmt.Errorf("rules line %d: reference %q: %w", line, f, err)
			}
			p.Refs = append(p.Refs, ref)
		}
		q.Productions = append(q.Productions, p)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading rules: %w", err)
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}

// ParseEdges parses an edge file: one edge per line as `src dst label`,
// whitespace separated, with src and dst as signed decimal node
// identifiers. Blank lines and lines starting with # are skipped. The
// returned edges carry their source line so load errors can point back
// at the file.
func ParseEdges(r io.Reader) ([]datalog.LabeledEdge, error) {
	var edges []datalog.LabeledEdge
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if len(fields) != 3 {
			return nil, fmt.Errorf("edges line %d: want `src dst label`, got %d fields", line, len(fields))
		}
		src, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("edges line %d: source node: %w", line, err)
		}
		dst, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("edges line %d: destination node: %w", line, err)
		}
		edges = append(edges, datalog.LabeledEdge{
			Line:  line,
			Label: fields[2],
			Src:   src,
			Dst:   dst,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading edges: %w", err)
	}
	return edges, nil
}
