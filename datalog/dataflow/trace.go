package dataflow

import (
	"fmt"
	"sort"
)

// Batch is one sealed span of an arrangement's history: every change whose
// time falls in [Lower, Upper), consolidated and ordered by record then time.
// A batch may be empty; it still advances the trace's upper bound.
type Batch struct {
	Lower Time
	Upper Time
	Ups   []TimedUpdate
}

// Trace is the append-only history of an arranged collection, a contiguous
// run of batches. Compaction gives up the ability to read below a bound in
// exchange for coalescing old batches into one.
type Trace struct {
	batches []Batch
	bound   Time
}

// Upper returns the time through which the trace is sealed.
func (t *Trace) Upper() Time {
	if len(t.batches) == 0 {
		return 0
	}
	return t.batches[len(t.batches)-1].Upper
}

// Append adds the next batch. Batches must be contiguous.
func (t *Trace) Append(b Batch) {
	if b.Lower != t.Upper() {
		panic(fmt.Sprintf("dataflow: batch lower %d does not meet trace upper %d", b.Lower, t.Upper()))
	}
	if b.Upper <= b.Lower {
		panic(fmt.Sprintf("dataflow: batch bounds [%d, %d) are empty", b.Lower, b.Upper))
	}
	t.batches = append(t.batches, b)
}

// SetCompaction raises the compaction bound. Reads strictly below the bound
// stop being answerable; the physical merge happens on the next Compact.
func (t *Trace) SetCompaction(bound Time) {
	if bound > t.bound {
		t.bound = bound
	}
}

// Compact merges every batch sealed at or below the compaction bound into a
// single batch whose tuple times are clamped to just below the bound. Net
// zero records vanish, so a long edit history collapses to its current state.
func (t *Trace) Compact() {
	if t.bound == 0 {
		return
	}
	n := 0
	for n < len(t.batches) && t.batches[n].Upper <= t.bound {
		n++
	}
	if n <= 1 {
		return
	}
	var merged []TimedUpdate
	for _, b := range t.batches[:n] {
		for _, u := range b.Ups {
			merged = append(merged, TimedUpdate{Pair: u.Pair, Time: t.bound - 1, Diff: u.Diff})
		}
	}
	nb := Batch{
		Lower: t.batches[0].Lower,
		Upper: t.batches[n-1].Upper,
		Ups:   consolidateTimed(merged),
	}
	t.batches = append([]Batch{nb}, t.batches[n:]...)
}

// Read returns the trace's consolidated current contents, times stripped.
func (t *Trace) Read() []Update {
	var ups []Update
	for _, b := range t.batches {
		for _, u := range b.Ups {
			ups = append(ups, Update{Pair: u.Pair, Diff: u.Diff})
		}
	}
	return Consolidate(ups)
}

// ReadAt returns the consolidated contents as of time at, including every
// change with time at or below it. Reading below the compaction bound is an
// error because those distinctions are gone.
func (t *Trace) ReadAt(at Time) ([]Update, error) {
	if at+1 < t.bound {
		return nil, fmt.Errorf("trace compacted through %d, cannot read at %d", t.bound, at)
	}
	var ups []Update
	for _, b := range t.batches {
		if b.Lower > at {
			break
		}
		for _, u := range b.Ups {
			if u.Time <= at {
				ups = append(ups, Update{Pair: u.Pair, Diff: u.Diff})
			}
		}
	}
	return Consolidate(ups), nil
}

// Cursor starts a walk over the trace's tuples in (key, val, time) order.
// The cursor snapshots the batches present at creation.
func (t *Trace) Cursor() *Cursor {
	total := 0
	for _, b := range t.batches {
		total += len(b.Ups)
	}
	ups := make([]TimedUpdate, 0, total)
	for _, b := range t.batches {
		ups = append(ups, b.Ups...)
	}
	sort.Slice(ups, func(i, j int) bool {
		if ups[i].Pair != ups[j].Pair {
			return ups[i].Pair.Less(ups[j].Pair)
		}
		return ups[i].Time < ups[j].Time
	})
	return &Cursor{ups: ups}
}

// Cursor walks a trace in record order. Seeking is forward only.
type Cursor struct {
	ups []TimedUpdate
	pos int
}

// Valid reports whether the cursor is positioned on a tuple.
func (c *Cursor) Valid() bool { return c.pos < len(c.ups) }

// Key returns the key under the cursor. Only meaningful while Valid.
func (c *Cursor) Key() int64 { return c.ups[c.pos].Pair.Key }

// Seek advances to the first tuple whose key is at least key and reports
// whether that exact key is present. Seeking backward does not move.
func (c *Cursor) Seek(key int64) bool {
	for c.pos < len(c.ups) && c.ups[c.pos].Pair.Key < key {
		c.pos++
	}
	return c.pos < len(c.ups) && c.ups[c.pos].Pair.Key == key
}

// VisitVals calls f for every (val, time, diff) tuple under the current key
// in value then time order, leaving the cursor on the following key.
func (c *Cursor) VisitVals(f func(val int64, at Time, diff int64)) {
	if !c.Valid() {
		return
	}
	key := c.ups[c.pos].Pair.Key
	for c.pos < len(c.ups) && c.ups[c.pos].Pair.Key == key {
		u := c.ups[c.pos]
		f(u.Pair.Val, u.Time, u.Diff)
		c.pos++
	}
}
