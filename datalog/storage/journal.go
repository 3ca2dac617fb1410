// Package storage persists engine inputs. The journal is an append-only
// log of edge mutations; replaying it rebuilds the input relations
// exactly, and no derived state is ever written.
package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Op says what a journal entry does to its relation.
type Op uint8

const (
	OpInsert Op = iota + 1
	OpRemove
)

func (o Op) String() string {
	switch o {
	case OpInsert:
		return "insert"
	case OpRemove:
		return "remove"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// Entry is one logged mutation: insert or remove the edge (Src, Dst) in
// the relation named Label.
type Entry struct {
	Op    Op
	Label string
	Src   int64
	Dst   int64
}

// Journal is an append-only mutation log backed by BadgerDB. Keys are
// dense big-endian sequence numbers, so iteration order is append order.
type Journal struct {
	db   *badger.DB
	next uint64
}

// OpenJournal opens or creates a journal at path.
func OpenJournal(path string) (*Journal, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // BadgerDB's default logger writes to stderr

	// The journal is small-value and write-mostly; trim the caches down
	// from Badger's read-heavy defaults.
	opts.MemTableSize = 16 << 20
	opts.BlockCacheSize = 32 << 20
	opts.IndexCacheSize = 16 << 20
	opts.DetectConflicts = false // single writer
	opts.ValueThreshold = 1 << 10

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	j := &Journal{db: db}
	err = db.View(func(txn *badger.Txn) error {
		iopts := badger.DefaultIteratorOptions
		iopts.Reverse = true
		iopts.PrefetchValues = false
		it := txn.NewIterator(iopts)
		defer it.Close()

		it.Seek([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff})
		if it.Valid() {
			j.next = binary.BigEndian.Uint64(it.Item().Key()) + 1
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read journal head: %w", err)
	}
	return j, nil
}

// Len returns the number of entries in the journal.
func (j *Journal) Len() uint64 {
	return j.next
}

// Append writes entries to the log in order. Batches larger than one
// Badger transaction are split at transaction capacity, so a crash can
// truncate the tail of a large append but never reorders it. After an
// append error the journal must be reopened before further appends.
func (j *Journal) Append(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	txn := j.db.NewTransaction(true)
	defer txn.Discard()

	for i, e := range entries {
		key := seqKey(j.next + uint64(i))
		err := txn.Set(key, e.bytes())
		if err == badger.ErrTxnTooBig {
			if err = txn.Commit(); err != nil {
				return fmt.Errorf("failed to commit journal batch: %w", err)
			}
			txn = j.db.NewTransaction(true)
			err = txn.Set(key, e.bytes())
		}
		if err != nil {
			return fmt.Errorf("failed to write journal entry: %w", err)
		}
	}
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("failed to commit journal batch: %w", err)
	}

	j.next += uint64(len(entries))
	return nil
}

// Replay calls f for every entry in append order, stopping at the first
// error from f.
func (j *Journal) Replay(f func(Entry) error) error {
	return j.db.View(func(txn *badger.Txn) error {
		iopts := badger.DefaultIteratorOptions
		iopts.PrefetchSize = 1000
		iopts.PrefetchValues = true
		it := txn.NewIterator(iopts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				e, err := entryFromBytes(val)
				if err != nil {
					return fmt.Errorf("journal entry %d: %w", binary.BigEndian.Uint64(item.Key()), err)
				}
				return f(e)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the underlying store.
func (j *Journal) Close() error {
	return j.db.Close()
}

func seqKey(n uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], n)
	return k[:]
}

// Value layout: op (1 byte), src and dst (8 bytes each, big endian),
// label (remainder).
func (e Entry) bytes() []byte {
	buf := make([]byte, 17+len(e.Label))
	buf[0] = byte(e.Op)
	binary.BigEndian.PutUint64(buf[1:9], uint64(e.Src))
	binary.BigEndian.PutUint64(buf[9:17], uint64(e.Dst))
	copy(buf[17:], e.Label)
	return buf
}

func entryFromBytes(b []byte) (Entry, error) {
	if len(b) < 17 {
		return Entry{}, fmt.Errorf("entry truncated at %d bytes", len(b))
	}
	op := Op(b[0])
	if op != OpInsert && op != OpRemove {
		return Entry{}, fmt.Errorf("unknown op %d", b[0])
	}
	return Entry{
		Op:    op,
		Label: string(b[17:]),
		Src:   int64(binary.BigEndian.Uint64(b[1:9])),
		Dst:   int64(binary.BigEndian.Uint64(b[9:17])),
	}, nil
}
