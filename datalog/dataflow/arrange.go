package dataflow

// Arranged is an arrangement of an outer collection: its history as a trace
// of per-epoch batches. Each epoch's consolidated changes are also broadcast
// to operators built over the arrangement before the batch is sealed, so
// they can consult the trace as strict history.
type Arranged struct {
	g    *Graph
	node *arrangeNode
}

type arrangeNode struct {
	baseNode
	trace Trace
	acc   []Update
}

func (n *arrangeNode) step(g *Graph, round uint32, ds []delivery) {
	ups := drain(ds)
	if len(ups) == 0 {
		return
	}
	n.acc = append(n.acc, ups...)
	g.emit(n.id, flushRound, ups)
}

// endEpoch seals the epoch's batch. Empty epochs still seal an empty batch
// so the trace's upper bound tracks the frontier.
func (n *arrangeNode) endEpoch(g *Graph) {
	ups := Consolidate(n.acc)
	n.acc = nil
	tups := make([]TimedUpdate, 0, len(ups))
	for _, u := range ups {
		tups = append(tups, TimedUpdate{Pair: u.Pair, Time: g.epoch, Diff: u.Diff})
	}
	n.trace.Append(Batch{Lower: g.epoch, Upper: g.epoch + 1, Ups: tups})
	n.trace.Compact()
}

// Trace exposes the arrangement's history.
func (a *Arranged) Trace() *Trace { return &a.node.trace }

// ArrangeByKey indexes an outer collection by key, maintaining its full
// history as a trace. Records are routed to their key's worker, so each
// worker's trace holds that worker's shard.
func (c Collection) ArrangeByKey() *Arranged {
	if c.inRegion() {
		panic("dataflow: ArrangeByKey inside a region, use IndexByKey")
	}
	n := &arrangeNode{}
	n.id = c.g.add(n)
	c.g.connect(c.id, n.id, 0, c.shift, exchByKey)
	return &Arranged{g: c.g, node: n}
}
