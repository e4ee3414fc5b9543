// Package strtab implements a deduplicated string interning table shared
// across a compilation: every distinct string is stored once and handed a
// stable 32-bit ID that downstream IR and bytecode can carry around instead
// of a string header.
package strtab

import (
	"fmt"

	"github.com/dchest/siphash"
	"golang.org/x/exp/maps"
)

// ID is a 1-based string identifier. The zero value is invalid.
type ID uint32

// Invalid is the reserved "not a string" ID.
const Invalid ID = 0

const hashK0, hashK1 = 0x9ae16a3b2f90404f, 0xc3a5c85c97cb3127

// entry is the id-keyed side of the table: a byte slice backed by the
// arena, plus the hash used for find().
type entry struct {
	data []byte
	hash uint64
}

// Table is a string interning table. The zero value is ready to use.
//
// insert is idempotent and lookup returns an optional id; strings are
// immutable once interned. Table is not safe for concurrent use — callers
// that need concurrent interning should synchronize externally, matching
// the rest of this VM's single-writer-per-Context model.
type Table struct {
	arena   []byte           // append-only backing storage for all entries
	entries []entry          // id-keyed: entries[id-1]
	byHash  map[uint64][]ID  // content hash -> candidate ids (view keyed)
}

// New returns an empty string table.
func New() *Table {
	return &Table{byHash: make(map[uint64][]ID)}
}

func contentHash(b []byte) uint64 {
	return siphash.Hash(hashK0, hashK1, b)
}

// Insert interns bytes, returning an existing id if one already matches the
// content, or allocating a new one otherwise.
//
// The two directional maps (byHash and entries) are kept in lockstep: we
// compute everything that can fail (hashing, arena growth) before mutating
// either side, so a panic partway through insertion can never leave the
// table's two views out of sync.
func (t *Table) Insert(s string) ID {
	if id, ok := t.find([]byte(s)); ok {
		return id
	}
	return t.insertNew(s)
}

// InsertBytes is Insert for a []byte argument.
func (t *Table) InsertBytes(b []byte) ID {
	if id, ok := t.find(b); ok {
		return id
	}
	return t.insertNew(string(b))
}

func (t *Table) insertNew(s string) ID {
	if len(t.entries) >= 1<<32-1 {
		panic("strtab: id space exhausted")
	}
	h := contentHash([]byte(s))

	// allocate from the arena first: if this were to fail (it can't, short
	// of OOM, but keep the ordering as documentation of the invariant) we
	// must not have touched byHash/entries yet.
	off := len(t.arena)
	t.arena = append(t.arena, s...)
	data := t.arena[off : off+len(s) : off+len(s)]

	t.entries = append(t.entries, entry{data: data, hash: h})
	id := ID(len(t.entries))
	if t.byHash == nil {
		t.byHash = make(map[uint64][]ID)
	}
	t.byHash[h] = append(t.byHash[h], id)
	return id
}

// Find returns the id of an already-interned string, or (0, false).
func (t *Table) Find(s string) (ID, bool) {
	return t.find([]byte(s))
}

func (t *Table) find(b []byte) (ID, bool) {
	h := contentHash(b)
	for _, id := range t.byHash[h] {
		if string(t.entries[id-1].data) == string(b) {
			return id, true
		}
	}
	return 0, false
}

// Value returns the bytes associated with id. Panics on an invalid id, since
// every id handed out by this table (or embedded in IR/bytecode built from
// it) is expected to remain valid for the table's lifetime.
func (t *Table) Value(id ID) string {
	if id == Invalid || int(id) > len(t.entries) {
		panic(fmt.Sprintf("strtab: invalid id %d", id))
	}
	return string(t.entries[id-1].data)
}

// Lookup is Value but returns ok=false instead of panicking.
func (t *Table) Lookup(id ID) (string, bool) {
	if id == Invalid || int(id) > len(t.entries) {
		return "", false
	}
	return string(t.entries[id-1].data), true
}

// Len returns the number of interned strings.
func (t *Table) Len() int {
	return len(t.entries)
}

// Reset drops every interned string, freeing the arena. Used between
// independent compilations sharing one process.
func (t *Table) Reset() {
	t.arena = nil
	t.entries = nil
	maps.Clear(t.byHash)
}
