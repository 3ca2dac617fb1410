package dataflow

import (
	"fmt"
	"sort"
)

// Time is an epoch timestamp. Epochs are totally ordered and advance by one
// each time the cluster commits a round of input changes.
type Time uint64

// Pair is a record: two integer node identifiers. Which field acts as the
// index key depends on the arrangement orientation consuming it.
type Pair struct {
	Key int64
	Val int64
}

// String returns a compact (key, val) rendering.
func (p Pair) String() string {
	return fmt.Sprintf("(%d, %d)", p.Key, p.Val)
}

// Less orders pairs by key, then value.
func (p Pair) Less(o Pair) bool {
	if p.Key != o.Key {
		return p.Key < o.Key
	}
	return p.Val < o.Val
}

// Swap returns the pair with key and value exchanged.
func (p Pair) Swap() Pair {
	return Pair{Key: p.Val, Val: p.Key}
}

// Update is a record with a signed multiplicity change.
type Update struct {
	Pair Pair
	Diff int64
}

// TimedUpdate is an update stamped with the epoch it took effect. Traces
// store these; in-flight messages carry their time positionally instead.
type TimedUpdate struct {
	Pair Pair
	Time Time
	Diff int64
}

// Consolidate sorts updates by (key, val), sums multiplicities of equal
// records and drops zeros. Every operator consolidates before emitting so
// that downstream processing is independent of arrival interleaving.
func Consolidate(ups []Update) []Update {
	if len(ups) == 0 {
		return nil
	}
	sort.Slice(ups, func(i, j int) bool { return ups[i].Pair.Less(ups[j].Pair) })
	out := ups[:0]
	for _, u := range ups {
		if n := len(out); n > 0 && out[n-1].Pair == u.Pair {
			out[n-1].Diff += u.Diff
			continue
		}
		out = append(out, u)
	}
	// Strip records that cancelled out.
	kept := out[:0]
	for _, u := range out {
		if u.Diff != 0 {
			kept = append(kept, u)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}

// consolidateTimed sorts by (key, val, time) and merges equal entries.
func consolidateTimed(ups []TimedUpdate) []TimedUpdate {
	if len(ups) == 0 {
		return nil
	}
	sort.Slice(ups, func(i, j int) bool {
		a, b := ups[i], ups[j]
		if a.Pair != b.Pair {
			return a.Pair.Less(b.Pair)
		}
		return a.Time < b.Time
	})
	out := ups[:0]
	for _, u := range ups {
		if n := len(out); n > 0 && out[n-1].Pair == u.Pair && out[n-1].Time == u.Time {
			out[n-1].Diff += u.Diff
			continue
		}
		out = append(out, u)
	}
	kept := out[:0]
	for _, u := range out {
		if u.Diff != 0 {
			kept = append(kept, u)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}
