package dataflow

import "sort"

// joinNode matches a delta stream (port 0) against a shared arrangement
// whose commits arrive as broadcasts (port 1). Both sides are routed by key
// to the same worker, so matching is local.
//
// Each matched pair of weights contributes at the later of the two
// iterations involved. Within one step, arrangement commits are joined
// against the left state as it stood before the step, then left deltas are
// joined against the arrangement through the newest commit seen; that order
// counts every (left, right) combination exactly once.
type joinNode struct {
	baseNode
	ix      *indexNode
	left    map[int64]map[int64]*hist
	seenSeq uint64
	f       func(key, lval, rval int64) Pair
}

func (n *joinNode) step(g *Graph, round uint32, ds []delivery) {
	outs := make(map[uint32][]Update)
	for _, d := range ds {
		if d.port != 1 {
			continue
		}
		for _, u := range d.ups {
			key, rval, rd := u.Pair.Key, u.Pair.Val, u.Diff
			for lval, h := range n.left[key] {
				lv := lval
				h.each(func(iter uint32, ld int64) {
					at := maxIter(round, iter)
					outs[at] = append(outs[at], Update{Pair: n.f(key, lv, rval), Diff: ld * rd})
				})
			}
		}
		if d.seq > n.seenSeq {
			n.seenSeq = d.seq
		}
	}
	var lups []Update
	for _, d := range ds {
		if d.port == 0 {
			lups = append(lups, d.ups...)
		}
	}
	for _, u := range Consolidate(lups) {
		key, lval, ld := u.Pair.Key, u.Pair.Val, u.Diff
		n.ix.lookup(key, n.seenSeq, func(rval int64, iter uint32, rd int64) {
			at := maxIter(round, iter)
			outs[at] = append(outs[at], Update{Pair: n.f(key, lval, rval), Diff: ld * rd})
		})
		vals := n.left[key]
		if vals == nil {
			vals = make(map[int64]*hist)
			n.left[key] = vals
		}
		h := vals[lval]
		if h == nil {
			h = &hist{}
			vals[lval] = h
		}
		h.commit(round, 0, ld)
	}
	for _, at := range sortedIters(outs) {
		g.emit(n.id, at, Consolidate(outs[at]))
	}
}

func (n *joinNode) endEpoch(g *Graph) {
	for key, vals := range n.left {
		for val, h := range vals {
			if h.fold() {
				delete(vals, val)
			}
		}
		if len(vals) == 0 {
			delete(n.left, key)
		}
	}
}

// JoinIndexed joins the collection against an arrangement of another
// collection keyed the same way. For every left record (k, l) and arranged
// record (k, r), f(k, l, r) is produced with the product of the weights.
func (c Collection) JoinIndexed(ix *Index, f func(key, lval, rval int64) Pair) Collection {
	if ix.reg != c.reg {
		panic("dataflow: join across region boundary")
	}
	if ix.g != c.g {
		panic("dataflow: join across graphs")
	}
	n := &joinNode{ix: ix.node, left: make(map[int64]map[int64]*hist), f: f}
	n.id = c.g.add(n)
	c.g.connect(c.id, n.id, 0, c.shift, exchByKey)
	c.g.connect(ix.node.id, n.id, 1, 0, exchNone)
	return Collection{g: c.g, id: n.id, reg: c.reg}
}

func maxIter(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

func sortedIters(m map[uint32][]Update) []uint32 {
	its := make([]uint32, 0, len(m))
	for it := range m {
		its = append(its, it)
	}
	sort.Slice(its, func(i, j int) bool { return its[i] < its[j] })
	return its
}
