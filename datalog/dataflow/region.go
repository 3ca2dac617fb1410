package dataflow

// Region is a recursive subgraph. Collections entering a region iterate with
// it: records inside carry an iteration number alongside the epoch, and the
// region's operators run round by round until no round has work left.
// Regions do not nest.
type Region struct {
	g *Graph
}

// NewRegion creates a recursive region on the graph.
func NewRegion(g *Graph) *Region {
	return &Region{g: g}
}

// enterNode forwards an outer stream into a region. Outer records enter at
// iteration zero, which is already how they arrive, so entry is a plain
// forward with the region mark on the output.
type enterNode struct {
	baseNode
}

func (n *enterNode) step(g *Graph, round uint32, ds []delivery) {
	g.emit(n.id, round, drain(ds))
}

// Enter brings an outer collection into the region.
func (r *Region) Enter(c Collection) Collection {
	if c.inRegion() {
		panic("dataflow: collection is already inside a region")
	}
	n := &enterNode{}
	n.id = r.g.add(n)
	r.g.connect(c.id, n.id, 0, c.shift, exchNone)
	return Collection{g: r.g, id: n.id, reg: r}
}

// placeholderNode stands in for a recursive definition while the cycle is
// being built. Once the definition is set it forwards that stream.
type placeholderNode struct {
	baseNode
}

func (n *placeholderNode) step(g *Graph, round uint32, ds []delivery) {
	g.emit(n.id, round, drain(ds))
}

// Feedback is a forward reference to a collection defined later, closing a
// recursive cycle. Use Collection to consume it and Set exactly once to
// supply the definition.
type Feedback struct {
	reg *Region
	id  NodeID
	set bool
}

// NewFeedback creates an unresolved forward reference inside the region.
func (r *Region) NewFeedback() *Feedback {
	n := &placeholderNode{}
	n.id = r.g.add(n)
	return &Feedback{reg: r, id: n.id}
}

// Collection returns the stream the feedback will carry once defined.
func (f *Feedback) Collection() Collection {
	return Collection{g: f.reg.g, id: f.id, reg: f.reg}
}

// Set supplies the definition the feedback forwards.
func (f *Feedback) Set(def Collection) {
	if f.set {
		panic("dataflow: feedback defined twice")
	}
	if def.reg != f.reg {
		panic("dataflow: feedback definition from a different region")
	}
	f.set = true
	f.reg.g.connect(def.id, f.id, 0, def.shift, exchNone)
}

// leaveNode accumulates a region stream across iterations and releases the
// epoch's consolidated total once the region has stopped changing.
type leaveNode struct {
	baseNode
	acc []Update
}

func (n *leaveNode) step(g *Graph, round uint32, ds []delivery) {
	n.acc = append(n.acc, drain(ds)...)
}

func (n *leaveNode) beginFlush(g *Graph) {
	out := Consolidate(n.acc)
	n.acc = nil
	g.emit(n.id, flushRound, out)
}

// Leave exports the collection to the outer graph. The result observes, per
// epoch, the sum of everything the region produced, with iteration numbers
// stripped.
func (c Collection) Leave() Collection {
	if !c.inRegion() {
		panic("dataflow: leave outside a region")
	}
	n := &leaveNode{}
	n.id = c.g.add(n)
	c.g.connect(c.id, n.id, 0, c.shift, exchNone)
	c.g.flush = append(c.g.flush, n)
	return Collection{g: c.g, id: n.id}
}
