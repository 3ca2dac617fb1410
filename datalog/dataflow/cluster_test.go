package dataflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tcGraph wires the transitive closure of a single edge input by hand:
// n = distinct(e + extend(n, e)), the extension joining n's endpoint
// against e's source and delayed by one iteration.
func tcGraph(worker, workers int) (*Graph, *Input, *Arranged) {
	g := NewGraph(worker, workers)
	in, edges := g.NewInput()

	reg := NewRegion(g)
	e := reg.Enter(edges)
	fb := reg.NewFeedback()
	n := fb.Collection()

	ext := n.Swapped().JoinIndexed(e.IndexByKey(), func(_, origin, far int64) Pair {
		return Pair{Key: far, Val: origin}
	}).Swapped()
	fb.Set(e.Concat(ext.Delayed()).Distinct())

	out := fb.Collection().Leave().ArrangeByKey()
	return g, in, out
}

type tcCluster struct {
	cluster *Cluster
	ins     []*Input
	outs    []*Arranged
	edges   map[Pair]int64
}

func newTCCluster(workers int) *tcCluster {
	tc := &tcCluster{edges: make(map[Pair]int64)}
	graphs := make([]*Graph, workers)
	for w := range graphs {
		g, in, out := tcGraph(w, workers)
		graphs[w] = g
		tc.ins = append(tc.ins, in)
		tc.outs = append(tc.outs, out)
	}
	tc.cluster = NewCluster(graphs...)
	return tc
}

func (tc *tcCluster) insert(src, dst int64) { tc.stage(Pair{Key: src, Val: dst}, 1) }
func (tc *tcCluster) remove(src, dst int64) { tc.stage(Pair{Key: src, Val: dst}, -1) }

func (tc *tcCluster) stage(p Pair, diff int64) {
	tc.edges[p] += diff
	if tc.edges[p] == 0 {
		delete(tc.edges, p)
	}
	tc.ins[PartitionRecord(p, len(tc.ins))].Stage(p, diff)
}

func (tc *tcCluster) sync(t testing.TB) EpochStats {
	t.Helper()
	stats, err := tc.cluster.RunEpoch(context.Background())
	require.NoError(t, err)
	return stats
}

// read merges the per-worker output shards.
func (tc *tcCluster) read() []Update {
	var ups []Update
	for _, out := range tc.outs {
		ups = append(ups, out.Trace().Read()...)
	}
	return Consolidate(ups)
}

// closureOf computes the expected closure of the currently staged edges by
// naive iteration, independent of the dataflow under test.
func closureOf(edges map[Pair]int64) []Update {
	set := make(map[Pair]struct{}, len(edges))
	for p := range edges {
		set[p] = struct{}{}
	}
	for {
		added := false
		for a := range set {
			for b := range set {
				if a.Val != b.Key {
					continue
				}
				c := Pair{Key: a.Key, Val: b.Val}
				if _, ok := set[c]; !ok {
					set[c] = struct{}{}
					added = true
				}
			}
		}
		if !added {
			break
		}
	}
	ups := make([]Update, 0, len(set))
	for p := range set {
		ups = append(ups, Update{Pair: p, Diff: 1})
	}
	return Consolidate(ups)
}

func TestClosureFixpoint(t *testing.T) {
	tc := newTCCluster(1)
	tc.insert(1, 2)
	tc.insert(2, 3)
	tc.insert(3, 4)
	tc.sync(t)

	assert.Equal(t, []Update{
		{Pair: Pair{Key: 1, Val: 2}, Diff: 1},
		{Pair: Pair{Key: 1, Val: 3}, Diff: 1},
		{Pair: Pair{Key: 1, Val: 4}, Diff: 1},
		{Pair: Pair{Key: 2, Val: 3}, Diff: 1},
		{Pair: Pair{Key: 2, Val: 4}, Diff: 1},
		{Pair: Pair{Key: 3, Val: 4}, Diff: 1},
	}, tc.read())
}

func TestClosureOnCycle(t *testing.T) {
	tc := newTCCluster(1)
	tc.insert(1, 2)
	tc.insert(2, 3)
	tc.insert(3, 1)
	tc.sync(t)

	// Every node reaches every node, including itself.
	got := tc.read()
	assert.Len(t, got, 9)
	assert.Equal(t, closureOf(tc.edges), got)
}

// Facts inside a cycle keep each other alive. Deleting an edge must retract
// exactly the paths that needed it, not the ones the cycle still supports,
// and deleting a cycle edge must take the mutually supporting facts with it.
func TestClosureRetraction(t *testing.T) {
	tc := newTCCluster(1)
	tc.insert(1, 2)
	tc.insert(2, 3)
	tc.insert(3, 2)
	tc.sync(t)
	require.Equal(t, closureOf(tc.edges), tc.read())

	t.Run("EdgeIntoCycle", func(t *testing.T) {
		tc.remove(1, 2)
		tc.sync(t)
		assert.Equal(t, []Update{
			{Pair: Pair{Key: 2, Val: 2}, Diff: 1},
			{Pair: Pair{Key: 2, Val: 3}, Diff: 1},
			{Pair: Pair{Key: 3, Val: 2}, Diff: 1},
			{Pair: Pair{Key: 3, Val: 3}, Diff: 1},
		}, tc.read())
	})

	t.Run("Reinsert", func(t *testing.T) {
		tc.insert(1, 2)
		tc.sync(t)
		assert.Equal(t, closureOf(tc.edges), tc.read())
	})

	t.Run("CycleEdge", func(t *testing.T) {
		tc.remove(2, 3)
		tc.sync(t)
		// (2,2), (3,3) and (2,3) supported only each other; all must go.
		assert.Equal(t, []Update{
			{Pair: Pair{Key: 1, Val: 2}, Diff: 1},
			{Pair: Pair{Key: 3, Val: 2}, Diff: 1},
		}, tc.read())
	})
}

func TestClosureSetSemantics(t *testing.T) {
	tc := newTCCluster(1)
	tc.insert(1, 2)
	tc.insert(1, 2)
	tc.insert(2, 3)
	tc.sync(t)

	want := []Update{
		{Pair: Pair{Key: 1, Val: 2}, Diff: 1},
		{Pair: Pair{Key: 1, Val: 3}, Diff: 1},
		{Pair: Pair{Key: 2, Val: 3}, Diff: 1},
	}
	assert.Equal(t, want, tc.read())

	// One copy of the doubled edge remains, so nothing changes.
	tc.remove(1, 2)
	tc.sync(t)
	assert.Equal(t, want, tc.read())

	tc.remove(1, 2)
	tc.sync(t)
	assert.Equal(t, []Update{{Pair: Pair{Key: 2, Val: 3}, Diff: 1}}, tc.read())
}

func TestEmptyEpoch(t *testing.T) {
	tc := newTCCluster(1)
	tc.insert(1, 2)
	tc.sync(t)

	stats := tc.sync(t)
	assert.Equal(t, Time(1), stats.Epoch)
	assert.Zero(t, stats.Rounds)
	assert.Equal(t, Time(2), tc.cluster.Frontier())
	assert.Equal(t, []Update{{Pair: Pair{Key: 1, Val: 2}, Diff: 1}}, tc.read())

	at1, err := tc.outs[0].Trace().ReadAt(1)
	require.NoError(t, err)
	assert.Equal(t, tc.read(), at1)
}

// The same mutation script must produce identical contents on one worker and
// on several, epoch by epoch.
func TestClosureWorkerInvariance(t *testing.T) {
	script := [][]Update{
		{{Pair{1, 2}, 1}, {Pair{2, 3}, 1}, {Pair{3, 4}, 1}, {Pair{4, 2}, 1}},
		{{Pair{5, 1}, 1}, {Pair{2, 3}, -1}},
		{{Pair{2, 3}, 1}, {Pair{1, 2}, -1}},
		{{Pair{4, 2}, -1}},
	}

	one := newTCCluster(1)
	three := newTCCluster(3)
	for _, changes := range script {
		for _, u := range changes {
			one.stage(u.Pair, u.Diff)
			three.stage(u.Pair, u.Diff)
		}
		one.sync(t)
		three.sync(t)

		want := closureOf(one.edges)
		assert.Equal(t, want, one.read())
		assert.Equal(t, want, three.read())
	}
}
