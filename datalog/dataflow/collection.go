package dataflow

// Collection is a handle to one operator's output stream during graph
// construction. Collections are cheap values; all state lives in the graph.
// A collection may carry an iteration shift: subscribing to a shifted
// collection receives its records one iteration later, which is how feedback
// into a recursive definition is delayed.
type Collection struct {
	g     *Graph
	id    NodeID
	reg   *Region
	shift uint32
}

// Graph returns the graph the collection belongs to.
func (c Collection) Graph() *Graph { return c.g }

// inRegion reports whether the collection lives inside a recursive region.
func (c Collection) inRegion() bool { return c.reg != nil }

// Delayed returns the same stream shifted one iteration later. Only
// meaningful inside a region, where it feeds definitions back without
// racing the iteration that produced them.
func (c Collection) Delayed() Collection {
	if !c.inRegion() {
		panic("dataflow: delay is only meaningful inside a region")
	}
	c.shift++
	return c
}

// mapNode applies a record transform. Weight preserving and stateless, so
// timestamps pass straight through.
type mapNode struct {
	baseNode
	f func(Pair) Pair
}

func (n *mapNode) step(g *Graph, round uint32, ds []delivery) {
	ups := drain(ds)
	out := make([]Update, 0, len(ups))
	for _, u := range ups {
		out = append(out, Update{Pair: n.f(u.Pair), Diff: u.Diff})
	}
	g.emit(n.id, round, Consolidate(out))
}

// Map derives a collection by transforming every record, keeping its
// multiplicity.
func (c Collection) Map(f func(Pair) Pair) Collection {
	n := &mapNode{f: f}
	n.id = c.g.add(n)
	c.g.connect(c.id, n.id, 0, c.shift, exchNone)
	return Collection{g: c.g, id: n.id, reg: c.reg}
}

// Swapped derives the collection with key and value exchanged in every
// record.
func (c Collection) Swapped() Collection {
	return c.Map(Pair.Swap)
}

// concatNode merges input streams additively.
type concatNode struct {
	baseNode
}

func (n *concatNode) step(g *Graph, round uint32, ds []delivery) {
	g.emit(n.id, round, drain(ds))
}

// Concat returns the multiset union of the collection with the given
// others. All participants must belong to the same graph and region.
func (c Collection) Concat(others ...Collection) Collection {
	n := &concatNode{}
	n.id = c.g.add(n)
	c.g.connect(c.id, n.id, 0, c.shift, exchNone)
	for _, o := range others {
		if o.g != c.g {
			panic("dataflow: concat across graphs")
		}
		if o.reg != c.reg {
			panic("dataflow: concat across region boundary")
		}
		c.g.connect(o.id, n.id, 0, o.shift, exchNone)
	}
	return Collection{g: c.g, id: n.id, reg: c.reg}
}

// inspectNode invokes a callback on every batch it forwards.
type inspectNode struct {
	baseNode
	f func(epoch Time, round uint32, ups []Update)
}

func (n *inspectNode) step(g *Graph, round uint32, ds []delivery) {
	ups := drain(ds)
	if len(ups) > 0 {
		n.f(g.epoch, round, ups)
	}
	g.emit(n.id, round, ups)
}

// Inspect observes batches flowing past without disturbing them. Intended
// for tests and diagnostics.
func (c Collection) Inspect(f func(epoch Time, round uint32, ups []Update)) Collection {
	n := &inspectNode{f: f}
	n.id = c.g.add(n)
	c.g.connect(c.id, n.id, 0, c.shift, exchNone)
	return Collection{g: c.g, id: n.id, reg: c.reg}
}
