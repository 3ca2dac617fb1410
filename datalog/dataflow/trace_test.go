package dataflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrace(t *testing.T) {
	// Two epochs of history: (1,2) lives only in epoch 0, (2,3) persists,
	// (4,5) arrives in epoch 1.
	history := func() *Trace {
		var tr Trace
		tr.Append(Batch{Lower: 0, Upper: 1, Ups: []TimedUpdate{
			{Pair: Pair{Key: 1, Val: 2}, Time: 0, Diff: 1},
			{Pair: Pair{Key: 2, Val: 3}, Time: 0, Diff: 1},
		}})
		tr.Append(Batch{Lower: 1, Upper: 2, Ups: []TimedUpdate{
			{Pair: Pair{Key: 1, Val: 2}, Time: 1, Diff: -1},
			{Pair: Pair{Key: 4, Val: 5}, Time: 1, Diff: 1},
		}})
		return &tr
	}

	t.Run("AppendAndRead", func(t *testing.T) {
		tr := history()
		assert.Equal(t, Time(2), tr.Upper())
		assert.Equal(t, []Update{
			{Pair: Pair{Key: 2, Val: 3}, Diff: 1},
			{Pair: Pair{Key: 4, Val: 5}, Diff: 1},
		}, tr.Read())
	})

	t.Run("EmptyBatchAdvancesUpper", func(t *testing.T) {
		tr := history()
		tr.Append(Batch{Lower: 2, Upper: 3})
		assert.Equal(t, Time(3), tr.Upper())
		assert.Len(t, tr.Read(), 2)
	})

	t.Run("ReadAtEachEpoch", func(t *testing.T) {
		tr := history()
		at0, err := tr.ReadAt(0)
		require.NoError(t, err)
		assert.Equal(t, []Update{
			{Pair: Pair{Key: 1, Val: 2}, Diff: 1},
			{Pair: Pair{Key: 2, Val: 3}, Diff: 1},
		}, at0)

		at1, err := tr.ReadAt(1)
		require.NoError(t, err)
		assert.Equal(t, []Update{
			{Pair: Pair{Key: 2, Val: 3}, Diff: 1},
			{Pair: Pair{Key: 4, Val: 5}, Diff: 1},
		}, at1)
	})

	t.Run("AppendMustBeContiguous", func(t *testing.T) {
		tr := history()
		assert.Panics(t, func() { tr.Append(Batch{Lower: 5, Upper: 6}) })
		assert.Panics(t, func() { tr.Append(Batch{Lower: 2, Upper: 2}) })
	})

	t.Run("CompactionClampsAndCancels", func(t *testing.T) {
		tr := history()
		tr.Append(Batch{Lower: 2, Upper: 3, Ups: []TimedUpdate{
			{Pair: Pair{Key: 6, Val: 7}, Time: 2, Diff: 1},
		}})
		tr.SetCompaction(2)

		// The bound alone forbids reads below it, merged or not.
		_, err := tr.ReadAt(0)
		assert.EqualError(t, err, "trace compacted through 2, cannot read at 0")

		tr.Compact()

		// (1,2) was asserted in epoch 0 and retracted in epoch 1; clamping
		// both to the same time cancels it out of the merged batch.
		cur := tr.Cursor()
		require.True(t, cur.Valid())
		assert.False(t, cur.Seek(1))
		assert.EqualValues(t, 2, cur.Key())

		at1, err := tr.ReadAt(1)
		require.NoError(t, err)
		assert.Equal(t, []Update{
			{Pair: Pair{Key: 2, Val: 3}, Diff: 1},
			{Pair: Pair{Key: 4, Val: 5}, Diff: 1},
		}, at1)
		assert.Equal(t, []Update{
			{Pair: Pair{Key: 2, Val: 3}, Diff: 1},
			{Pair: Pair{Key: 4, Val: 5}, Diff: 1},
			{Pair: Pair{Key: 6, Val: 7}, Diff: 1},
		}, tr.Read())
		assert.Equal(t, Time(3), tr.Upper())
	})

	t.Run("CompactionIsMonotone", func(t *testing.T) {
		tr := history()
		tr.SetCompaction(2)
		tr.SetCompaction(1)
		_, err := tr.ReadAt(0)
		assert.Error(t, err)
	})
}

func TestCursor(t *testing.T) {
	var tr Trace
	tr.Append(Batch{Lower: 0, Upper: 1, Ups: []TimedUpdate{
		{Pair: Pair{Key: 1, Val: 5}, Time: 0, Diff: 1},
		{Pair: Pair{Key: 2, Val: 9}, Time: 0, Diff: 1},
	}})
	tr.Append(Batch{Lower: 1, Upper: 2, Ups: []TimedUpdate{
		{Pair: Pair{Key: 1, Val: 3}, Time: 1, Diff: 1},
		{Pair: Pair{Key: 2, Val: 9}, Time: 1, Diff: -1},
	}})

	t.Run("VisitValsInValueThenTimeOrder", func(t *testing.T) {
		cur := tr.Cursor()
		require.True(t, cur.Seek(1))

		type tup struct {
			val  int64
			at   Time
			diff int64
		}
		var got []tup
		cur.VisitVals(func(val int64, at Time, diff int64) {
			got = append(got, tup{val, at, diff})
		})
		assert.Equal(t, []tup{{3, 1, 1}, {5, 0, 1}}, got)

		// The cursor is left on the next key with its history intact.
		require.True(t, cur.Valid())
		assert.EqualValues(t, 2, cur.Key())
		got = got[:0]
		cur.VisitVals(func(val int64, at Time, diff int64) {
			got = append(got, tup{val, at, diff})
		})
		assert.Equal(t, []tup{{9, 0, 1}, {9, 1, -1}}, got)
		assert.False(t, cur.Valid())
	})

	t.Run("SeekIsForwardOnly", func(t *testing.T) {
		cur := tr.Cursor()
		require.True(t, cur.Seek(2))
		assert.False(t, cur.Seek(1))
		assert.EqualValues(t, 2, cur.Key())
	})

	t.Run("SeekPastEnd", func(t *testing.T) {
		cur := tr.Cursor()
		assert.False(t, cur.Seek(99))
		assert.False(t, cur.Valid())
		cur.VisitVals(func(int64, Time, int64) { t.Fatal("visit on exhausted cursor") })
	})
}
