// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package odict implements a compact hash map that preserves insertion
// order, and an ordered map built on top of it that supports O(1) amortized
// move-to-front and move-to-end. The design follows the "compact dict"
// layout described in
// https://mail.python.org/pipermail/python-dev/2012-December/123028.html.
//
// # Layout
//
// A map is split into two arrays. The dense entry store holds (hash, key,
// value) records in insertion order. The index table is a power-of-two sized
// open-addressed hash table whose slots hold positions in the dense entry
// store rather than the entries themselves:
//
//	index table (size 8, 1 byte per slot)
//	+----+----+----+----+----+----+----+----+
//	| -1 |  1 | -1 | -2 | -1 |  0 | -1 |  2 |
//	+----+----+----+----+----+----+----+----+
//	          |                   |         |
//	          |    +--------------+         |
//	          v    v                        v
//	dense entry store
//	+-------+-------+-------+-------+-------+
//	| a:1   | b:2   | c:3   |       |       |
//	+-------+-------+-------+-------+-------+
//	  0       1       2       count=3  usable=2
//
// Slots hold -1 (empty), -2 (dummy, the tombstone left behind by a delete)
// or a position. Because the index table only stores small integers, the
// width of each slot is chosen by the table size: 1 byte up to 128 slots, 2
// bytes up to 32K slots, and so on. The dense entry store is sized at 2/3 of
// the index table which bounds the load factor and guarantees that every
// probe sequence reaches an empty slot.
//
// Iterating over the dense entry store in position order yields entries in
// insertion order. Deleting an entry clears its record in place and never
// renumbers the survivors; the hole is reclaimed when the store is rebuilt.
//
// # Probing
//
// The probe sequence starts at hash&mask and then perturbs the position
// with successively higher bits of the hash (see probeSeq). Keys are
// compared first by their stored hash, then by identity (==), and only then
// with the Hasher's Equal. Equal is user code: it may fail, in which case
// the error is returned unchanged, or it may mutate the map being probed,
// in which case the probe is restarted from scratch. No probe state is
// retained across a call into user code.
//
// # Growth
//
// When the dense entry store has no usable positions left, the map is
// rebuilt into a new generation of storage sized to hold 2*used + size/2
// entries. A rebuild compacts the live entries (dropping every hole and
// dummy) and preserves their relative order. A rebuild can also reserve
// free positions in front of the first entry which is how OrderedMap
// provides O(1) amortized move-to-front.
package odict

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/rs/zerolog"
)

// compactSlack is the number of holes tolerated in the dense entry store
// on top of 2*used before a delete triggers a compacting rebuild.
const compactSlack = 16

// Entry holds the hash, key and value of one position in the dense entry
// store. A cleared entry is not live and holds zero values.
type Entry[K comparable, V any] struct {
	hash  uint64
	key   K
	value V
	live  bool
}

// table is one generation of a map's storage. A rebuild allocates a new
// table rather than modifying the current one, which allows iterators to
// detect a rebuild by comparing pointers.
type table[K comparable, V any] struct {
	indices indexTable
	// entries is the dense entry store. Its length is the capacity of the
	// store.
	entries []Entry[K, V]
	// count is the highest consumed position + 1. Positions >= count are
	// unused.
	count int
	// usable is the number of positions that can still be consumed at the
	// tail without a rebuild. Popping the last entry lowers count but does
	// not return the position to usable because the dummy it leaves behind
	// still occupies an index slot.
	usable int
}

func newEmptyTable[K comparable, V any]() *table[K, V] {
	// The empty table is never allocated through the Allocator. Since usable
	// is 0, the first insertion will immediately rebuild.
	return &table[K, V]{
		indices: makeIndexTable(make([]byte, minTableSize), minTableSize),
	}
}

// append stores a new entry at the next free position. The caller has
// verified that usable > 0 and that key is not present.
func (t *table[K, V]) append(hash uint64, key K, value V) int {
	pos := t.count
	t.entries[pos] = Entry[K, V]{hash: hash, key: key, value: value, live: true}
	t.indices.set(t.indices.findEmpty(hash), pos)
	t.count++
	t.usable--
	return pos
}

// lookupIdent returns the position of the entry whose key is identical (==)
// to key, or ixEmpty. It never calls into the Hasher and therefore cannot
// fail or observe a mutation. It is used to find an entry again after its
// presence was already established and the storage was rebuilt.
func (t *table[K, V]) lookupIdent(key K, hash uint64) int {
	for seq := makeProbeSeq(hash, t.indices.mask()); ; seq = seq.next() {
		ix := t.indices.get(seq.offset)
		if ix == ixEmpty {
			return ixEmpty
		}
		if ix >= 0 && t.entries[ix].key == key {
			return ix
		}
	}
}

// move relocates the entry at position from to position to, repointing its
// index slot. The entry at to must not be live.
func (t *table[K, V]) move(from, to int) {
	e := &t.entries[from]
	t.indices.set(t.indices.findPosition(e.hash, from), to)
	t.entries[to] = *e
	*e = Entry[K, V]{}
}

// Map is an unordered map from keys to values with Put, Get, Delete, and All
// operations. Entries are stored in a dense array in insertion order, so All
// visits entries in the order they were first inserted. By default, a
// Map[K,V] hashes keys with StringHasher (string keys) or ComparableHasher,
// though a different hasher can be specified using the WithHasher option.
//
// A Map is NOT goroutine-safe.
type Map[K comparable, V any] struct {
	hasher Hasher[K]
	// The allocator to use for the entries and indices slices.
	allocator Allocator[K, V]
	logger    zerolog.Logger
	// t is the current generation of storage.
	t *table[K, V]
	// The number of live entries.
	used int
	// offset is the position of the first live entry. Positions [0, offset)
	// are free and may be consumed by OrderedMap.MoveToEnd(key, false).
	offset int
	// version is incremented by every structural change. A lookup compares
	// it before and after calling the Hasher to detect reentrant mutation.
	version uint64
}

// New constructs a new Map with the specified initial capacity. If
// initialCapacity is 0 the map will start out with zero capacity and will
// grow on the first insert. The zero value for a Map is not usable.
func New[K comparable, V any](initialCapacity int, options ...option[K, V]) *Map[K, V] {
	m := &Map[K, V]{}
	m.init(initialCapacity, options...)
	return m
}

func (m *Map[K, V]) init(initialCapacity int, options ...option[K, V]) {
	*m = Map[K, V]{
		allocator: defaultAllocator[K, V]{},
		logger:    zerolog.Nop(),
		t:         newEmptyTable[K, V](),
	}
	for _, op := range options {
		op.apply(m)
	}
	if m.hasher == nil {
		m.hasher = defaultHasher[K]()
	}

	if initialCapacity > 0 {
		// An allocation failure leaves the map empty. The next insert will
		// try again.
		_ = m.resize(initialCapacity, 0)
	}
	m.checkInvariants()
}

// Close closes the map, releasing any memory back to its configured
// allocator. It is unnecessary to close a map using the default allocator. It
// is invalid to use a Map after it has been closed, though Close itself is
// idempotent.
func (m *Map[K, V]) Close() {
	if m.allocator != nil {
		m.freeTable(m.t)
	}
	m.t = newEmptyTable[K, V]()
	m.used = 0
	m.offset = 0
	m.version++
	m.allocator = nil
}

// Put inserts an entry into the map, overwriting the value of an existing
// entry with the same key. Overwriting does not change the position of the
// entry. A new entry is placed after all existing entries.
func (m *Map[K, V]) Put(key K, value V) error {
	hash, err := m.hasher.Hash(key)
	if err != nil {
		return err
	}
	ix, err := m.lookup(key, hash)
	if err != nil {
		return err
	}
	if ix >= 0 {
		m.t.entries[ix].value = value
		return nil
	}
	if m.t.usable <= 0 {
		if err := m.grow(); err != nil {
			return err
		}
	}
	m.t.append(hash, key, value)
	m.used++
	m.version++
	m.checkInvariants()
	return nil
}

// Get retrieves the value from the map for the specified key, returning
// ok=false if the key is not present.
func (m *Map[K, V]) Get(key K) (value V, ok bool, err error) {
	hash, err := m.hasher.Hash(key)
	if err != nil {
		return value, false, err
	}
	ix, err := m.lookup(key, hash)
	if err != nil || ix < 0 {
		return value, false, err
	}
	return m.t.entries[ix].value, true, nil
}

// Has returns true if the key is present in the map.
func (m *Map[K, V]) Has(key K) (bool, error) {
	_, ok, err := m.Get(key)
	return ok, err
}

// Delete deletes the entry corresponding to the specified key from the map.
// A *KeyError matching ErrNotFound is returned if the key is not present.
func (m *Map[K, V]) Delete(key K) error {
	_, ok, err := m.remove(key)
	if err != nil {
		return err
	}
	if !ok {
		return notFound(key)
	}
	return nil
}

// Pop removes the entry for key and returns its value. A *KeyError matching
// ErrNotFound is returned if the key is not present.
func (m *Map[K, V]) Pop(key K) (V, error) {
	value, ok, err := m.remove(key)
	if err == nil && !ok {
		err = notFound(key)
	}
	return value, err
}

// PopDefault removes the entry for key and returns its value, or returns def
// if the key is not present.
func (m *Map[K, V]) PopDefault(key K, def V) (V, error) {
	value, ok, err := m.remove(key)
	if err != nil {
		return value, err
	}
	if !ok {
		return def, nil
	}
	return value, nil
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	return m.used
}

// Clear removes all entries from the map. The capacity of the map is
// retained.
func (m *Map[K, V]) Clear() {
	old := m.t
	if len(old.entries) == 0 {
		m.t = newEmptyTable[K, V]()
	} else {
		clear(old.entries)
		// Clearing produces a new generation on top of the same memory so
		// that outstanding iterators notice.
		m.t = &table[K, V]{
			indices: makeIndexTable(old.indices.buf, old.indices.size),
			entries: old.entries,
			usable:  len(old.entries),
		}
	}
	m.used = 0
	m.offset = 0
	m.version++
	m.checkInvariants()
}

// All calls yield sequentially for each key and value present in the map, in
// insertion order. If yield returns false, iteration stops. The map can be
// mutated during iteration, though there is no guarantee that the mutations
// will be visible to the iteration. This only holds with the default
// allocator: a resize during iteration hands the storage being iterated over
// to Allocator.FreeEntries, so an allocator that reuses freed memory must not
// be combined with mutation inside yield. OrderedMap provides iterators that
// detect mutation.
//
// The signature of All conforms to the range-over-function protocol:
//
//	for k, v := range m.All {
//	  fmt.Printf("%v: %v\n", k, v)
//	}
func (m *Map[K, V]) All(yield func(key K, value V) bool) {
	// Snapshot the table and bounds so that iteration remains valid if the
	// map is rebuilt during iteration.
	t, start, end := m.t, m.offset, m.t.count
	for i := start; i < end; i++ {
		e := &t.entries[i]
		if e.live {
			if !yield(e.key, e.value) {
				return
			}
		}
	}
}

// Copy returns a new Map with the same entries in the same order, using the
// same hasher, allocator and logger. The maps do not share storage.
func (m *Map[K, V]) Copy() (*Map[K, V], error) {
	c := &Map[K, V]{
		hasher:    m.hasher,
		allocator: m.allocator,
		logger:    m.logger,
		t:         newEmptyTable[K, V](),
	}
	if err := m.copyInto(c); err != nil {
		return nil, err
	}
	return c, nil
}

// copyInto appends the entries of m to the empty map c. No user code is
// run since the stored hashes are reused and the keys are known to be
// distinct.
func (m *Map[K, V]) copyInto(c *Map[K, V]) error {
	if m.used == 0 {
		return nil
	}
	if err := c.resize(m.used, 0); err != nil {
		return err
	}
	t := m.t
	for i := m.offset; i < t.count; i++ {
		if e := &t.entries[i]; e.live {
			c.t.append(e.hash, e.key, e.value)
			c.used++
		}
	}
	c.version++
	c.checkInvariants()
	return nil
}

// Equal reports whether m and other contain the same keys mapped to equal
// values, irrespective of order. Keys of m are looked up in other using
// other's Hasher, and eq compares values. An error from the Hasher is
// returned unchanged.
func (m *Map[K, V]) Equal(other *Map[K, V], eq func(a, b V) bool) (bool, error) {
	if m == other {
		return true, nil
	}
	if m.used != other.used {
		return false, nil
	}
	// m.t is reloaded on every step since lookups in other may run user
	// code that mutates m.
	for i := m.offset; i < m.t.count; i++ {
		e := m.t.entries[i]
		if !e.live {
			continue
		}
		hash, err := other.hasher.Hash(e.key)
		if err != nil {
			return false, err
		}
		ix, err := other.lookup(e.key, hash)
		if err != nil {
			return false, err
		}
		if ix < 0 || !eq(e.value, other.t.entries[ix].value) {
			return false, nil
		}
	}
	return true, nil
}

// SizeOf returns the number of bytes of memory used by the map, including
// its storage.
func (m *Map[K, V]) SizeOf() uintptr {
	var e Entry[K, V]
	return unsafe.Sizeof(*m) + unsafe.Sizeof(*m.t) +
		uintptr(len(m.t.indices.buf)) + uintptr(len(m.t.entries))*unsafe.Sizeof(e)
}

// capacity returns the number of entries the dense entry store can hold.
func (m *Map[K, V]) capacity() int {
	return len(m.t.entries)
}

// lookup returns the position of the entry for key, or ixEmpty if the key is
// not present. An error returned by the Hasher's Equal is returned
// unchanged.
func (m *Map[K, V]) lookup(key K, hash uint64) (int, error) {
restart:
	t := m.t
	for seq := makeProbeSeq(hash, t.indices.mask()); ; seq = seq.next() {
		ix := t.indices.get(seq.offset)
		if ix == ixEmpty {
			return ixEmpty, nil
		}
		if ix < 0 {
			continue
		}
		e := &t.entries[ix]
		if e.key == key {
			return ix, nil
		}
		if e.hash != hash {
			continue
		}
		version := m.version
		eq, err := m.hasher.Equal(e.key, key)
		if err != nil {
			return ixEmpty, err
		}
		if version != m.version {
			// Equal mutated the map. The storage may have been rebuilt and
			// the entry we compared may be gone, so start over.
			goto restart
		}
		if eq {
			return ix, nil
		}
	}
}

// remove deletes the entry for key if present, returning its value.
func (m *Map[K, V]) remove(key K) (value V, ok bool, err error) {
	hash, err := m.hasher.Hash(key)
	if err != nil {
		return value, false, err
	}
	ix, err := m.lookup(key, hash)
	if err != nil || ix < 0 {
		return value, false, err
	}
	value = m.removeAt(ix)
	m.maybeCompact()
	return value, true, nil
}

// removeAt clears the entry at position pos and turns its index slot into a
// dummy. Survivors keep their positions.
func (m *Map[K, V]) removeAt(pos int) V {
	t := m.t
	e := &t.entries[pos]
	t.indices.set(t.indices.findPosition(e.hash, pos), ixDummy)
	value := e.value
	*e = Entry[K, V]{}
	m.used--
	m.version++
	m.trim()
	m.checkInvariants()
	return value
}

// trim advances offset past cleared leading positions and lowers count past
// cleared trailing positions. Afterwards the entries at offset and count-1
// are live whenever the map is non-empty.
func (m *Map[K, V]) trim() {
	t := m.t
	for m.offset < t.count && !t.entries[m.offset].live {
		m.offset++
	}
	for t.count > m.offset && !t.entries[t.count-1].live {
		t.count--
	}
}

// growthRate returns the number of entries a rebuild should make room for.
func (m *Map[K, V]) growthRate() int {
	return 2*m.used + int(m.t.indices.size>>1)
}

// grow rebuilds the storage when no usable positions remain. Up to used/2+2
// free leading positions are carried over so that a map alternating between
// inserts and moves to the front does not lose its reservation, without
// letting a queue-like workload grow the reservation without bound.
func (m *Map[K, V]) grow() error {
	return m.resize(m.growthRate(), min(m.offset, m.used/2+2))
}

// maybeCompact rebuilds the storage once holes left by deletes dominate the
// dense entry store, shrinking it to fit 2*used entries. The rebuild costs
// O(used + holes) and requires more than 2*used + compactSlack holes, each
// created by a delete, so the cost is amortized O(1) per delete. A failure
// to allocate is not an error for the delete that triggered the compaction.
func (m *Map[K, V]) maybeCompact() {
	holes := m.t.count - m.offset - m.used
	if holes <= 2*m.used+compactSlack {
		return
	}
	if m.resize(2*m.used, 0) == nil {
		m.logger.Debug().Int("holes", holes).Int("used", m.used).Msg("compacted")
	}
}

// resize rebuilds the storage into a new generation able to hold minUsed
// entries after lead free leading positions. Live entries are copied in
// order starting at position lead, which becomes the new offset. If the
// allocator fails, ErrAllocationFailed is returned before any entry is
// relocated and the map is unchanged.
func (m *Map[K, V]) resize(minUsed, lead int) error {
	need := max(minUsed, m.used+1) + lead
	size := uintptr(minTableSize)
	for usableFraction(size) < need {
		size <<= 1
	}
	n := usableFraction(size)

	entries := m.allocator.AllocEntries(n)
	if len(entries) < n {
		if entries != nil {
			m.allocator.FreeEntries(entries)
		}
		m.logger.Warn().Int("entries", n).Msg("failed to allocate entries")
		return ErrAllocationFailed
	}
	nbytes := int(size * indexWidth(size))
	buf := m.allocator.AllocIndices(nbytes)
	if len(buf) < nbytes {
		if buf != nil {
			m.allocator.FreeIndices(buf)
		}
		m.allocator.FreeEntries(entries)
		m.logger.Warn().Int("bytes", nbytes).Msg("failed to allocate indices")
		return ErrAllocationFailed
	}

	old := m.t
	nt := &table[K, V]{
		indices: makeIndexTable(buf[:nbytes], size),
		entries: entries[:n],
	}
	pos := lead
	for i := m.offset; i < old.count; i++ {
		e := &old.entries[i]
		if !e.live {
			continue
		}
		nt.entries[pos] = *e
		nt.indices.set(nt.indices.findEmpty(e.hash), pos)
		pos++
	}
	nt.count = pos
	nt.usable = n - pos

	if e := m.logger.Debug(); e.Enabled() {
		e.Uint64("from", uint64(old.indices.size)).
			Uint64("to", uint64(size)).
			Int("used", m.used).
			Int("lead", lead).
			Msg("resize")
	}

	m.freeTable(old)
	m.t = nt
	m.offset = lead
	m.version++
	m.checkInvariants()
	return nil
}

// freeTable releases a generation of storage to the allocator. The empty
// table was not obtained from the allocator and is skipped.
func (m *Map[K, V]) freeTable(t *table[K, V]) {
	if len(t.entries) == 0 {
		return
	}
	m.allocator.FreeEntries(t.entries)
	m.allocator.FreeIndices(t.indices.buf)
}

func (m *Map[K, V]) checkInvariants() {
	if invariants {
		t := m.t
		if t.count+t.usable > len(t.entries) {
			panic(fmt.Sprintf("invariant failed: count=%d + usable=%d > capacity=%d\n%s",
				t.count, t.usable, len(t.entries), m.debugString()))
		}
		if m.offset > t.count {
			panic(fmt.Sprintf("invariant failed: offset=%d > count=%d\n%s",
				m.offset, t.count, m.debugString()))
		}

		// Every live entry lies in [offset, count) and is reachable through
		// its own probe sequence.
		var used int
		for i := 0; i < t.count; i++ {
			e := &t.entries[i]
			if !e.live {
				continue
			}
			if i < m.offset {
				panic(fmt.Sprintf("invariant failed: live entry %d before offset %d\n%s",
					i, m.offset, m.debugString()))
			}
			if ix := t.indices.findPosition(e.hash, i); t.indices.get(ix) != i {
				panic(fmt.Sprintf("invariant failed: entry %d: %v not indexed\n%s",
					i, e.key, m.debugString()))
			}
			used++
		}
		if used != m.used {
			panic(fmt.Sprintf("invariant failed: found %d live entries, but used count is %d\n%s",
				used, m.used, m.debugString()))
		}
		if m.used > 0 && (!t.entries[m.offset].live || !t.entries[t.count-1].live) {
			panic(fmt.Sprintf("invariant failed: boundary entries not live\n%s", m.debugString()))
		}

		// Every non-empty slot was created by consuming a tail position, so
		// the table can never fill up.
		var nonEmpty int
		for i := uintptr(0); i < t.indices.size; i++ {
			ix := t.indices.get(i)
			if ix == ixEmpty {
				continue
			}
			nonEmpty++
			if ix >= 0 && (ix >= t.count || !t.entries[ix].live) {
				panic(fmt.Sprintf("invariant failed: slot %d points at dead position %d\n%s",
					i, ix, m.debugString()))
			}
		}
		if nonEmpty > len(t.entries)-t.usable {
			panic(fmt.Sprintf("invariant failed: %d non-empty slots, but only %d positions consumed\n%s",
				nonEmpty, len(t.entries)-t.usable, m.debugString()))
		}
	}
}

func (m *Map[K, V]) debugString() string {
	t := m.t
	var buf strings.Builder
	fmt.Fprintf(&buf, "size=%d width=%d capacity=%d used=%d offset=%d count=%d usable=%d\n",
		t.indices.size, t.indices.width, len(t.entries), m.used, m.offset, t.count, t.usable)
	for i := uintptr(0); i < t.indices.size; i++ {
		switch ix := t.indices.get(i); ix {
		case ixEmpty:
			fmt.Fprintf(&buf, "  slot %4d: empty\n", i)
		case ixDummy:
			fmt.Fprintf(&buf, "  slot %4d: dummy\n", i)
		default:
			fmt.Fprintf(&buf, "  slot %4d: -> %d\n", i, ix)
		}
	}
	for i := 0; i < t.count; i++ {
		e := &t.entries[i]
		if e.live {
			fmt.Fprintf(&buf, "  entry %4d: %v [hash=%016x]\n", i, e.key, e.hash)
		} else {
			fmt.Fprintf(&buf, "  entry %4d: cleared\n", i)
		}
	}
	return buf.String()
}
