package dataflow

import "sort"

// iterWeight is a consolidated weight at one iteration of some past epoch's
// fixpoint, kept so later epochs can place corrections at the iteration that
// needs them.
type iterWeight struct {
	iter uint32
	diff int64
}

// iterCommit is a weight committed during the current epoch, numbered by the
// arrangement's commit counter.
type iterCommit struct {
	iter uint32
	seq  uint64
	diff int64
}

// hist tracks one record's weight across iterations: consolidated prior
// epochs plus the current epoch's commits in arrival order.
type hist struct {
	past []iterWeight
	cur  []iterCommit
}

func (h *hist) commit(iter uint32, seq uint64, diff int64) {
	h.cur = append(h.cur, iterCommit{iter: iter, seq: seq, diff: diff})
}

// each visits every weight in the history, current epoch included.
func (h *hist) each(f func(iter uint32, diff int64)) {
	for _, w := range h.past {
		f(w.iter, w.diff)
	}
	for _, c := range h.cur {
		f(c.iter, c.diff)
	}
}

// eachThrough visits all consolidated weights plus current-epoch commits with
// sequence at or below maxSeq.
func (h *hist) eachThrough(maxSeq uint64, f func(iter uint32, diff int64)) {
	for _, w := range h.past {
		f(w.iter, w.diff)
	}
	for _, c := range h.cur {
		if c.seq <= maxSeq {
			f(c.iter, c.diff)
		}
	}
}

// fold merges the epoch's commits into the consolidated history and reports
// whether the history is now empty.
func (h *hist) fold() bool {
	if len(h.cur) > 0 {
		for _, c := range h.cur {
			h.past = addIterWeight(h.past, c.iter, c.diff)
		}
		h.cur = nil
	}
	return len(h.past) == 0
}

// addIterWeight adds diff at the given iteration, keeping the list ordered by
// iteration and free of zero weights.
func addIterWeight(ws []iterWeight, iter uint32, diff int64) []iterWeight {
	i := sort.Search(len(ws), func(i int) bool { return ws[i].iter >= iter })
	if i < len(ws) && ws[i].iter == iter {
		ws[i].diff += diff
		if ws[i].diff == 0 {
			ws = append(ws[:i], ws[i+1:]...)
		}
		return ws
	}
	ws = append(ws, iterWeight{})
	copy(ws[i+1:], ws[i:])
	ws[i] = iterWeight{iter: iter, diff: diff}
	return ws
}

// Index is a keyed arrangement of a region collection, built once and shared
// by every join over the same orientation. Commits are numbered so a join can
// tell state it has already been notified of apart from state it has not.
type Index struct {
	g    *Graph
	node *indexNode
	reg  *Region
}

type indexNode struct {
	baseNode
	byKey map[int64]map[int64]*hist
	seq   uint64
}

func (n *indexNode) step(g *Graph, round uint32, ds []delivery) {
	ups := drain(ds)
	if len(ups) == 0 {
		return
	}
	n.seq++
	for _, u := range ups {
		vals := n.byKey[u.Pair.Key]
		if vals == nil {
			vals = make(map[int64]*hist)
			n.byKey[u.Pair.Key] = vals
		}
		h := vals[u.Pair.Val]
		if h == nil {
			h = &hist{}
			vals[u.Pair.Val] = h
		}
		h.commit(round, n.seq, u.Diff)
	}
	g.emitSeq(n.id, round, n.seq, ups)
}

func (n *indexNode) endEpoch(g *Graph) {
	for key, vals := range n.byKey {
		for val, h := range vals {
			if h.fold() {
				delete(vals, val)
			}
		}
		if len(vals) == 0 {
			delete(n.byKey, key)
		}
	}
}

// lookup visits every value under key whose commit is visible through maxSeq.
// Visit order is unspecified; callers consolidate per iteration.
func (n *indexNode) lookup(key int64, maxSeq uint64, f func(val int64, iter uint32, diff int64)) {
	for val, h := range n.byKey[key] {
		v := val
		h.eachThrough(maxSeq, func(iter uint32, diff int64) {
			f(v, iter, diff)
		})
	}
}

// IndexByKey arranges the collection by key for joining. Records are routed
// to their key's worker, so joins against the index must feed it inputs keyed
// the same way.
func (c Collection) IndexByKey() *Index {
	if !c.inRegion() {
		panic("dataflow: IndexByKey outside a region")
	}
	n := &indexNode{byKey: make(map[int64]map[int64]*hist)}
	n.id = c.g.add(n)
	c.g.connect(c.id, n.id, 0, c.shift, exchByKey)
	return &Index{g: c.g, node: n, reg: c.reg}
}
