package dataflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Region wiring mistakes are programming errors and panic at graph
// construction, before any data moves.
func TestRegionConstructionPanics(t *testing.T) {
	t.Run("DelayOutsideRegion", func(t *testing.T) {
		g := NewGraph(0, 1)
		_, coll := g.NewInput()
		assert.PanicsWithValue(t, "dataflow: delay is only meaningful inside a region", func() {
			coll.Delayed()
		})
	})

	t.Run("ArrangeInsideRegion", func(t *testing.T) {
		g := NewGraph(0, 1)
		_, coll := g.NewInput()
		inner := NewRegion(g).Enter(coll)
		assert.PanicsWithValue(t, "dataflow: ArrangeByKey inside a region, use IndexByKey", func() {
			inner.ArrangeByKey()
		})
	})

	t.Run("IndexOutsideRegion", func(t *testing.T) {
		g := NewGraph(0, 1)
		_, coll := g.NewInput()
		assert.PanicsWithValue(t, "dataflow: IndexByKey outside a region", func() {
			coll.IndexByKey()
		})
	})

	t.Run("DoubleEnter", func(t *testing.T) {
		g := NewGraph(0, 1)
		_, coll := g.NewInput()
		reg := NewRegion(g)
		inner := reg.Enter(coll)
		assert.Panics(t, func() { reg.Enter(inner) })
	})

	t.Run("FeedbackSetTwice", func(t *testing.T) {
		g := NewGraph(0, 1)
		_, coll := g.NewInput()
		reg := NewRegion(g)
		inner := reg.Enter(coll)
		fb := reg.NewFeedback()
		fb.Set(inner)
		assert.PanicsWithValue(t, "dataflow: feedback defined twice", func() { fb.Set(inner) })
	})

	t.Run("FeedbackFromForeignRegion", func(t *testing.T) {
		g := NewGraph(0, 1)
		_, coll := g.NewInput()
		regA := NewRegion(g)
		regB := NewRegion(g)
		fb := regA.NewFeedback()
		assert.PanicsWithValue(t, "dataflow: feedback definition from a different region", func() {
			fb.Set(regB.Enter(coll))
		})
	})

	t.Run("LeaveOutsideRegion", func(t *testing.T) {
		g := NewGraph(0, 1)
		_, coll := g.NewInput()
		assert.PanicsWithValue(t, "dataflow: leave outside a region", func() { coll.Leave() })
	})

	t.Run("ConcatAcrossBoundary", func(t *testing.T) {
		g := NewGraph(0, 1)
		_, coll := g.NewInput()
		inner := NewRegion(g).Enter(coll)
		assert.PanicsWithValue(t, "dataflow: concat across region boundary", func() {
			coll.Concat(inner)
		})
	})

	t.Run("JoinAcrossBoundary", func(t *testing.T) {
		g := NewGraph(0, 1)
		_, coll := g.NewInput()
		reg := NewRegion(g)
		inner := reg.Enter(coll)
		idx := inner.IndexByKey()
		assert.PanicsWithValue(t, "dataflow: join across region boundary", func() {
			coll.JoinIndexed(idx, func(k, l, r int64) Pair { return Pair{Key: l, Val: r} })
		})
	})

	t.Run("ClusterWorkerMismatch", func(t *testing.T) {
		assert.Panics(t, func() { NewCluster(NewGraph(1, 2)) })
		assert.Panics(t, func() { NewGraph(3, 2) })
		assert.Panics(t, func() { NewCluster() })
	})
}
