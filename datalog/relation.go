package datalog

import (
	"fmt"
	"sort"
	"time"

	"github.com/wbrown/delta-datalog/datalog/annotations"
	"github.com/wbrown/delta-datalog/datalog/dataflow"
)

// Edge is one directed edge between integer node identifiers.
type Edge struct {
	Src int64
	Dst int64
}

func (e Edge) String() string {
	return fmt.Sprintf("(%d, %d)", e.Src, e.Dst)
}

// Degree is a node's current degree in one orientation of a relation.
type Degree struct {
	Node  int64
	Count int64
}

// Relation is the live handle for one relation: a mutable base input and a
// readable view of the derived contents. Mutations stage until the next
// Sync; reads reflect the last completed epoch.
type Relation struct {
	eng  *Engine
	name string
}

// Name returns the relation's name.
func (r *Relation) Name() string { return r.name }

// Insert stages the addition of an edge to the relation's base input.
func (r *Relation) Insert(e Edge) {
	r.stage(e, 1)
}

// Remove stages the retraction of an edge from the relation's base input.
// Removing an edge that was never inserted stages a negative multiplicity;
// derived contents stay set-semantic regardless.
func (r *Relation) Remove(e Edge) {
	r.stage(e, -1)
}

func (r *Relation) stage(e Edge, diff int64) {
	p := dataflow.Pair{Key: e.Src, Val: e.Dst}
	w := dataflow.PartitionRecord(p, r.eng.opts.Workers)
	r.eng.workers[w].inputs[r.name].Stage(p, diff)
}

// Read returns the relation's current derived contents, merged across
// workers, sorted by source then destination. Valid between Sync calls.
func (r *Relation) Read() []Edge {
	start := time.Now()
	var ups []dataflow.Update
	for _, w := range r.eng.workers {
		ups = append(ups, w.reads[r.name].Trace().Read()...)
	}
	ups = dataflow.Consolidate(ups)
	// Sealed contents are deduplicated, so every multiplicity here is one.
	edges := make([]Edge, 0, len(ups))
	for _, u := range ups {
		edges = append(edges, Edge{Src: u.Pair.Key, Dst: u.Pair.Val})
	}
	r.eng.annots.AddTiming(annotations.RelationRead, start, map[string]interface{}{
		"relation": r.name,
		"edges":    len(edges),
	})
	return edges
}

// Degrees returns, per node, the number of distinct neighbors in the given
// orientation: destinations per source for Forward, sources per destination
// for Reverse. Nodes with no neighbors are absent. Requires the engine to
// have been built with Degrees enabled.
func (r *Relation) Degrees(dir Direction) ([]Degree, error) {
	start := time.Now()
	degs := r.eng.workers[0].degrees
	if degs == nil {
		return nil, fmt.Errorf("degrees not enabled for this engine")
	}
	if dir != Forward && dir != Reverse {
		return nil, fmt.Errorf("unknown direction %v", dir)
	}
	var ups []dataflow.Update
	for _, w := range r.eng.workers {
		ups = append(ups, w.degrees[dir][r.name].Trace().Read()...)
	}
	ups = dataflow.Consolidate(ups)
	out := make([]Degree, 0, len(ups))
	for _, u := range ups {
		out = append(out, Degree{Node: u.Pair.Key, Count: u.Pair.Val})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Node < out[j].Node })
	r.eng.annots.AddTiming(annotations.DegreesRead, start, map[string]interface{}{
		"relation":  r.name,
		"direction": dir.String(),
		"nodes":     len(out),
	})
	return out, nil
}
