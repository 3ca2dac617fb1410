package datalog

import (
	"fmt"
	"time"

	"github.com/wbrown/delta-datalog/datalog/annotations"
)

// LabeledEdge is one line of an edge file: an edge plus the name of the
// relation it belongs to and the line it was read from.
type LabeledEdge struct {
	Line  int
	Label string
	Src   int64
	Dst   int64
}

// Load stages every edge as an insertion into its labeled relation. All
// labels are checked before anything is staged, so a failed load leaves
// the engine unchanged. Load does not advance the computation; call Sync
// to make the loaded edges visible.
func (e *Engine) Load(edges []LabeledEdge) error {
	start := time.Now()
	for _, le := range edges {
		if _, ok := e.rels[le.Label]; !ok {
			return fmt.Errorf("edges line %d: label %q is not a relation in this query", le.Line, le.Label)
		}
	}
	for _, le := range edges {
		e.rels[le.Label].Insert(Edge{Src: le.Src, Dst: le.Dst})
	}
	e.annots.AddTiming(annotations.EdgesLoaded, start, map[string]interface{}{
		"edges": len(edges),
	})
	return nil
}
