package dataflow

// countNode maintains, per key, the total weight of values under the key in
// its source arrangement. The source delivers each epoch's batch before
// sealing it, so the trace read here is strictly the history below the
// batch: the prior count comes from a trace cursor, the new count from the
// batch, and the output is one retraction and one assertion per key whose
// count moved. A count of zero is never represented.
//
// After each batch the node advances the source trace's compaction to the
// batch's upper bound; it only ever needs totals, so old distinctions can
// be merged away.
//
// An epoch's changes can arrive as several sub-batches (one per producing
// worker), so the node tracks the delta accumulated so far per key and, on
// every sub-batch after the first, retracts what it emitted for the key
// earlier in the epoch before asserting the corrected pair. Downstream
// consolidation collapses this to one retraction and one assertion per key.
type countNode struct {
	baseNode
	src *arrangeNode
	cur map[int64]int64
}

func (n *countNode) step(g *Graph, round uint32, ds []delivery) {
	ups := drain(ds)
	if len(ups) == 0 {
		return
	}
	var out []Update
	c := n.src.trace.Cursor()
	for i := 0; i < len(ups); {
		key := ups[i].Pair.Key
		var delta int64
		for i < len(ups) && ups[i].Pair.Key == key {
			delta += ups[i].Diff
			i++
		}
		if delta == 0 {
			continue
		}
		var prior int64
		if c.Seek(key) {
			c.VisitVals(func(_ int64, _ Time, diff int64) { prior += diff })
		}
		was := n.cur[key]
		now := was + delta
		if now == 0 {
			delete(n.cur, key)
		} else {
			n.cur[key] = now
		}
		if was != 0 {
			if prior != 0 {
				out = append(out, Update{Pair: Pair{Key: key, Val: prior}, Diff: 1})
			}
			if prior+was != 0 {
				out = append(out, Update{Pair: Pair{Key: key, Val: prior + was}, Diff: -1})
			}
		}
		if now != 0 {
			if prior != 0 {
				out = append(out, Update{Pair: Pair{Key: key, Val: prior}, Diff: -1})
			}
			if prior+now != 0 {
				out = append(out, Update{Pair: Pair{Key: key, Val: prior + now}, Diff: 1})
			}
		}
	}
	g.emit(n.id, flushRound, Consolidate(out))
	n.src.trace.SetCompaction(g.epoch + 1)
}

func (n *countNode) endEpoch(*Graph) {
	if len(n.cur) > 0 {
		n.cur = make(map[int64]int64)
	}
}

// CountTotal derives the number of values under each key of the arrangement,
// as records (key, count) maintained incrementally. Keys with nothing under
// them have no record.
func (a *Arranged) CountTotal() Collection {
	n := &countNode{src: a.node, cur: make(map[int64]int64)}
	n.id = a.g.add(n)
	a.g.connect(a.node.id, n.id, 0, 0, exchNone)
	return Collection{g: a.g, id: n.id}
}
