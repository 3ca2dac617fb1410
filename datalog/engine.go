package datalog

import (
	"context"
	"fmt"
	"time"

	"github.com/wbrown/delta-datalog/datalog/annotations"
	"github.com/wbrown/delta-datalog/datalog/dataflow"
)

// EngineOptions configures a compiled engine.
type EngineOptions struct {
	// Workers is the number of parallel workers. Zero means one.
	Workers int
	// Degrees also maintains per-relation degree counts, readable through
	// Relation.Degrees.
	Degrees bool
	// Handler receives progress events. Nil disables event collection.
	Handler annotations.Handler
}

// Engine hosts a compiled query across a cluster of workers. Each worker
// holds a structurally identical copy of the dataflow over its hash
// partition of the data; the engine routes mutations to their owning
// worker, drives epochs, and merges worker shards on reads.
//
// CONCURRENCY: an Engine is driven from one goroutine. Stage mutations and
// read relations between Sync calls, never during one.
type Engine struct {
	query   *Query
	opts    EngineOptions
	cluster *dataflow.Cluster
	workers []*Compiled
	rels    map[string]*Relation
	annots  *annotations.Collector
}

// NewEngine compiles q and returns the live engine. Every worker compiles
// the same query in the same canonical order, which is what keeps their
// operator identities aligned.
func NewEngine(q *Query, opts EngineOptions) (*Engine, error) {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	start := time.Now()
	graphs := make([]*dataflow.Graph, opts.Workers)
	workers := make([]*Compiled, opts.Workers)
	for w := range graphs {
		g := dataflow.NewGraph(w, opts.Workers)
		comp, err := Compile(q, g, CompileOptions{Degrees: opts.Degrees})
		if err != nil {
			return nil, err
		}
		graphs[w] = g
		workers[w] = comp
	}
	e := &Engine{
		query:   q,
		opts:    opts,
		cluster: dataflow.NewCluster(graphs...),
		workers: workers,
		rels:    make(map[string]*Relation, len(workers[0].Names())),
		annots:  annotations.NewCollector(opts.Handler),
	}
	for _, name := range workers[0].Names() {
		e.rels[name] = &Relation{eng: e, name: name}
	}
	e.annots.AddTiming(annotations.CompileCompleted, start, map[string]interface{}{
		"relations": len(e.rels),
		"workers":   opts.Workers,
	})
	return e, nil
}

// Relations returns every relation name in canonical order.
func (e *Engine) Relations() []string {
	names := e.workers[0].Names()
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Relation returns the handle for a relation name.
func (e *Engine) Relation(name string) (*Relation, error) {
	r, ok := e.rels[name]
	if !ok {
		return nil, fmt.Errorf("unknown relation %q", name)
	}
	return r, nil
}

// Sync commits everything staged since the last Sync as one epoch and runs
// the computation until all relations are corrected through it. On return
// the frontier has advanced and reads reflect the new contents.
func (e *Engine) Sync(ctx context.Context) error {
	start := time.Now()
	stats, err := e.cluster.RunEpoch(ctx)
	if err != nil {
		return fmt.Errorf("epoch %d: %w", stats.Epoch, err)
	}
	e.annots.AddTiming(annotations.EpochCompleted, start, map[string]interface{}{
		"epoch":     uint64(stats.Epoch),
		"rounds":    stats.Rounds,
		"steps":     stats.Steps,
		"envelopes": stats.Envelopes,
	})
	return nil
}

// Frontier returns the time through which all relation contents are
// complete. It advances by one per Sync.
func (e *Engine) Frontier() dataflow.Time {
	return e.cluster.Frontier()
}

// Annotations returns the engine's event collector.
func (e *Engine) Annotations() *annotations.Collector {
	return e.annots
}
