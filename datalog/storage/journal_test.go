package storage

import (
	"fmt"
	"os"
	"reflect"
	"testing"
)

func openTestJournal(t *testing.T) (*Journal, string) {
	t.Helper()
	dir, err := os.MkdirTemp("", "journal-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	j, err := OpenJournal(dir)
	if err != nil {
		os.RemoveAll(dir)
		t.Fatalf("Failed to open journal: %v", err)
	}
	return j, dir
}

func replayAll(t *testing.T, j *Journal) []Entry {
	t.Helper()
	var got []Entry
	if err := j.Replay(func(e Entry) error {
		got = append(got, e)
		return nil
	}); err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	return got
}

func TestJournalRoundTrip(t *testing.T) {
	j, dir := openTestJournal(t)
	defer os.RemoveAll(dir)
	defer j.Close()

	entries := []Entry{
		{Op: OpInsert, Label: "e", Src: 1, Dst: 2},
		{Op: OpInsert, Label: "up", Src: -3, Dst: 40},
		{Op: OpRemove, Label: "e", Src: 1, Dst: 2},
	}
	if err := j.Append(entries); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if j.Len() != 3 {
		t.Errorf("Expected length 3, got %d", j.Len())
	}

	got := replayAll(t, j)
	if !reflect.DeepEqual(got, entries) {
		t.Errorf("Replay mismatch:\n  want %v\n  got  %v", entries, got)
	}
}

func TestJournalReopen(t *testing.T) {
	j, dir := openTestJournal(t)
	defer os.RemoveAll(dir)

	first := []Entry{
		{Op: OpInsert, Label: "e", Src: 1, Dst: 2},
		{Op: OpInsert, Label: "e", Src: 2, Dst: 3},
	}
	if err := j.Append(first); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	j, err := OpenJournal(dir)
	if err != nil {
		t.Fatalf("Failed to reopen journal: %v", err)
	}
	defer j.Close()

	if j.Len() != 2 {
		t.Fatalf("Expected length 2 after reopen, got %d", j.Len())
	}
	if err := j.Append([]Entry{{Op: OpRemove, Label: "e", Src: 1, Dst: 2}}); err != nil {
		t.Fatalf("Append after reopen failed: %v", err)
	}

	got := replayAll(t, j)
	if len(got) != 3 {
		t.Fatalf("Expected 3 entries after reopen, got %d", len(got))
	}
	if got[2].Op != OpRemove || got[2].Src != 1 || got[2].Dst != 2 {
		t.Errorf("Unexpected final entry: %v", got[2])
	}
}

func TestJournalEmptyAppend(t *testing.T) {
	j, dir := openTestJournal(t)
	defer os.RemoveAll(dir)
	defer j.Close()

	if err := j.Append(nil); err != nil {
		t.Fatalf("Empty append failed: %v", err)
	}
	if j.Len() != 0 {
		t.Errorf("Expected empty journal, got length %d", j.Len())
	}
	if got := replayAll(t, j); len(got) != 0 {
		t.Errorf("Expected no entries, got %d", len(got))
	}
}

func TestJournalReplayStopsOnError(t *testing.T) {
	j, dir := openTestJournal(t)
	defer os.RemoveAll(dir)
	defer j.Close()

	entries := []Entry{
		{Op: OpInsert, Label: "e", Src: 1, Dst: 2},
		{Op: OpInsert, Label: "e", Src: 2, Dst: 3},
		{Op: OpInsert, Label: "e", Src: 3, Dst: 4},
	}
	if err := j.Append(entries); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	visited := 0
	err := j.Replay(func(e Entry) error {
		visited++
		return fmt.Errorf("stop here")
	})
	if err == nil || err.Error() != "stop here" {
		t.Errorf("Expected replay to surface the callback error, got %v", err)
	}
	if visited != 1 {
		t.Errorf("Expected replay to stop after 1 entry, visited %d", visited)
	}
}

func TestJournalLargeAppend(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping large append in short mode")
	}
	j, dir := openTestJournal(t)
	defer os.RemoveAll(dir)
	defer j.Close()

	entries := make([]Entry, 50000)
	for i := range entries {
		entries[i] = Entry{Op: OpInsert, Label: "bulk", Src: int64(i), Dst: int64(i + 1)}
	}
	if err := j.Append(entries); err != nil {
		t.Fatalf("Large append failed: %v", err)
	}
	if j.Len() != 50000 {
		t.Fatalf("Expected 50000 entries, got %d", j.Len())
	}

	// Order must survive any internal transaction splitting.
	var i int64
	err := j.Replay(func(e Entry) error {
		if e.Src != i {
			return fmt.Errorf("entry %d out of order: %v", i, e)
		}
		i++
		return nil
	})
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
}

func TestEntryCoding(t *testing.T) {
	e := Entry{Op: OpRemove, Label: "edges_2", Src: -9, Dst: 1 << 40}
	got, err := entryFromBytes(e.bytes())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got != e {
		t.Errorf("Round trip mismatch: want %v, got %v", e, got)
	}

	if _, err := entryFromBytes(e.bytes()[:10]); err == nil {
		t.Error("Expected error for truncated entry")
	}
	bad := e.bytes()
	bad[0] = 99
	if _, err := entryFromBytes(bad); err == nil {
		t.Error("Expected error for unknown op")
	}
}

func TestOpString(t *testing.T) {
	if OpInsert.String() != "insert" || OpRemove.String() != "remove" {
		t.Errorf("Unexpected op names: %v, %v", OpInsert, OpRemove)
	}
	if Op(0).String() != "op(0)" {
		t.Errorf("Unexpected zero op name: %v", Op(0))
	}
}
