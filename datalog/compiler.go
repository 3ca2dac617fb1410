package datalog

import (
	"fmt"

	"github.com/emirpasic/gods/maps/treemap"

	"github.com/wbrown/delta-datalog/datalog/dataflow"
)

// CompileOptions control optional structure built alongside the relations.
type CompileOptions struct {
	// Degrees also maintains, per relation, the number of distinct
	// destinations per source and sources per destination.
	Degrees bool
}

// Compiled holds one worker's handles to a compiled query: the mutable
// input and the readable arrangement for every relation name, in canonical
// order.
type Compiled struct {
	names   []string
	inputs  map[string]*dataflow.Input
	reads   map[string]*dataflow.Arranged
	degrees map[Direction]map[string]*dataflow.Arranged
}

// Names returns the relation names in the canonical compile order.
func (c *Compiled) Names() []string { return c.names }

// Compile builds the live computation for q on one worker's graph. Every
// worker of a cluster compiles the same query against its own graph; the
// clusters correlate operators by position, so construction iterates
// relation names in the canonical sorted order at every stage. Iterating
// any unordered container here would compile a graph that works on one
// worker and corrupts routing on two.
//
// Relation names are enumerated from heads and references together, so a
// name that only ever appears on the right-hand side still gets an input
// and a readable handle of its own.
func Compile(q *Query, g *dataflow.Graph, opts CompileOptions) (*Compiled, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	names := q.Names()
	c := &Compiled{
		names:  names,
		inputs: make(map[string]*dataflow.Input, len(names)),
		reads:  make(map[string]*dataflow.Arranged, len(names)),
	}
	bases := make(map[string]dataflow.Collection, len(names))
	for _, name := range names {
		in, coll := g.NewInput()
		c.inputs[name] = in
		bases[name] = coll
	}

	reg := dataflow.NewRegion(g)
	vars := treemap.NewWithStringComparator()
	outs := make(map[string]dataflow.Collection, len(names))
	for _, name := range names {
		v := NewVariable(reg, bases[name])
		vars.Put(name, v)
		out := v.Collection().Leave()
		outs[name] = out
		c.reads[name] = out.ArrangeByKey()
	}

	for i, p := range q.Productions {
		if len(p.Refs) == 0 {
			continue
		}
		head, err := lookupVar(vars, p.Head)
		if err != nil {
			return nil, fmt.Errorf("compile: production %d: %w", i, err)
		}
		path, err := wirePath(vars, p)
		if err != nil {
			return nil, fmt.Errorf("compile: production %d: %w", i, err)
		}
		head.AddProduction(path)
	}

	// Sealing walks the same sorted order as construction; the treemap keeps
	// that true by construction.
	vars.Each(func(_ interface{}, v interface{}) {
		v.(*Variable).Seal()
	})

	if opts.Degrees {
		c.degrees = map[Direction]map[string]*dataflow.Arranged{
			Forward: make(map[string]*dataflow.Arranged, len(names)),
			Reverse: make(map[string]*dataflow.Arranged, len(names)),
		}
		for _, name := range names {
			c.degrees[Forward][name] = c.reads[name].CountTotal().ArrangeByKey()
			c.degrees[Reverse][name] = outs[name].Swapped().ArrangeByKey().CountTotal().ArrangeByKey()
		}
	}
	return c, nil
}

// wirePath builds one production's join chain. The path is kept keyed by
// the endpoint reached so far with the origin as value; each reference
// joins on that endpoint and replaces it with the reference's far endpoint.
// The final collection is swapped back to (origin, destination) edges.
func wirePath(vars *treemap.Map, p Production) (dataflow.Collection, error) {
	first := p.Refs[0]
	v, err := lookupVar(vars, first.Name)
	if err != nil {
		return dataflow.Collection{}, err
	}
	var path dataflow.Collection
	if first.Dir == Forward {
		path = v.Collection().Swapped()
	} else {
		path = v.Collection()
	}
	for _, ref := range p.Refs[1:] {
		rv, err := lookupVar(vars, ref.Name)
		if err != nil {
			return dataflow.Collection{}, err
		}
		var idx *dataflow.Index
		if ref.Dir == Forward {
			idx = rv.Forward()
		} else {
			idx = rv.Reverse()
		}
		path = path.JoinIndexed(idx, extend)
	}
	return path.Swapped(), nil
}

// extend moves the path one hop: the joined key is discarded in favor of
// the far endpoint while the origin rides along.
func extend(_, origin, far int64) dataflow.Pair {
	return dataflow.Pair{Key: far, Val: origin}
}

func lookupVar(vars *treemap.Map, name string) (*Variable, error) {
	v, ok := vars.Get(name)
	if !ok {
		return nil, fmt.Errorf("reference to relation %q has no builder", name)
	}
	return v.(*Variable), nil
}
