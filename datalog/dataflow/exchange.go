package dataflow

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Exchange routing. Records are hash-partitioned so that every update to a
// given key (or record, for deduplication state) lands on the same worker.
// The same functions route caller mutations into worker inputs, which keeps
// ingestion and internal exchange consistent with each other.

// PartitionKey returns the worker responsible for a key.
func PartitionKey(key int64, workers int) int {
	if workers == 1 {
		return 0
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(key))
	return int(xxhash.Sum64(buf[:]) % uint64(workers))
}

// PartitionRecord returns the worker responsible for a whole record.
func PartitionRecord(p Pair, workers int) int {
	if workers == 1 {
		return 0
	}
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(p.Key))
	binary.BigEndian.PutUint64(buf[8:], uint64(p.Val))
	return int(xxhash.Sum64(buf[:]) % uint64(workers))
}
