package dataflow

import "sort"

// distinctNode reduces its input to set semantics per iteration: a record is
// present (weight one) at iteration i exactly when its accumulated input
// weight through i is positive.
//
// Because iterations within an epoch run in order but a new epoch's deltas
// can change the record's standing at iterations that already ran in earlier
// epochs, the node keeps per-iteration histories of both its input and its
// own output. The first time a record is touched in an epoch, every later
// iteration where its history changes is queued for re-examination, and the
// scheduler is asked to run those rounds. Corrections are emitted as the
// difference between the presence the history now implies and what was
// emitted before.
type distinctNode struct {
	baseNode
	recs   map[Pair]*supportHist
	agenda map[uint32]map[Pair]struct{}
}

type supportHist struct {
	inPast, inCur   []iterWeight
	outPast, outCur []iterWeight
	touched         bool
}

// sumThrough accumulates weights at iterations up to and including iter.
func sumThrough(ws []iterWeight, iter uint32) int64 {
	var s int64
	for _, w := range ws {
		if w.iter > iter {
			break
		}
		s += w.diff
	}
	return s
}

func (n *distinctNode) step(g *Graph, round uint32, ds []delivery) {
	affected := make(map[Pair]struct{})
	for _, u := range drain(ds) {
		h := n.recs[u.Pair]
		if h == nil {
			h = &supportHist{}
			n.recs[u.Pair] = h
		}
		h.inCur = addIterWeight(h.inCur, round, u.Diff)
		affected[u.Pair] = struct{}{}
	}
	if ag := n.agenda[round]; len(ag) > 0 {
		for p := range ag {
			affected[p] = struct{}{}
		}
		delete(n.agenda, round)
	}
	ps := make([]Pair, 0, len(affected))
	for p := range affected {
		ps = append(ps, p)
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].Less(ps[j]) })
	var out []Update
	for _, p := range ps {
		h := n.recs[p]
		in := sumThrough(h.inPast, round) + sumThrough(h.inCur, round)
		var want int64
		if in > 0 {
			want = 1
		}
		have := sumThrough(h.outPast, round) + sumThrough(h.outCur, round)
		if d := want - have; d != 0 {
			out = append(out, Update{Pair: p, Diff: d})
			h.outCur = addIterWeight(h.outCur, round, d)
		}
		if !h.touched {
			h.touched = true
			n.revisit(g, p, h, round)
		}
	}
	g.emit(n.id, round, out)
}

// revisit queues the record at every later iteration where its consolidated
// history changes, since this epoch's delta shifts the running sums there.
func (n *distinctNode) revisit(g *Graph, p Pair, h *supportHist, round uint32) {
	for _, w := range h.inPast {
		if w.iter > round {
			n.enqueue(g, p, w.iter)
		}
	}
	for _, w := range h.outPast {
		if w.iter > round {
			n.enqueue(g, p, w.iter)
		}
	}
}

func (n *distinctNode) enqueue(g *Graph, p Pair, iter uint32) {
	ag := n.agenda[iter]
	if ag == nil {
		ag = make(map[Pair]struct{})
		n.agenda[iter] = ag
	}
	if _, ok := ag[p]; ok {
		return
	}
	ag[p] = struct{}{}
	g.wake(n.id, iter)
}

func (n *distinctNode) endEpoch(g *Graph) {
	for p, h := range n.recs {
		for _, w := range h.inCur {
			h.inPast = addIterWeight(h.inPast, w.iter, w.diff)
		}
		for _, w := range h.outCur {
			h.outPast = addIterWeight(h.outPast, w.iter, w.diff)
		}
		h.inCur, h.outCur = nil, nil
		h.touched = false
		if len(h.inPast) == 0 && len(h.outPast) == 0 {
			delete(n.recs, p)
		}
	}
	n.agenda = make(map[uint32]map[Pair]struct{})
}

// Distinct reduces the collection to set semantics: every record whose
// accumulated weight is positive appears with weight exactly one. Records are
// routed by their full contents, so each record's standing is decided on one
// worker.
func (c Collection) Distinct() Collection {
	n := &distinctNode{
		recs:   make(map[Pair]*supportHist),
		agenda: make(map[uint32]map[Pair]struct{}),
	}
	n.id = c.g.add(n)
	c.g.connect(c.id, n.id, 0, c.shift, exchByPair)
	return Collection{g: c.g, id: n.id, reg: c.reg}
}
