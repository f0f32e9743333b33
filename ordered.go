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

package odict

import (
	"fmt"
	"maps"
	"strings"
	"unsafe"
)

// OrderedMap is a Map that additionally supports reordering entries. Entries
// are kept in insertion order and can be moved to either end in O(1)
// amortized time with MoveToEnd, or popped from either end with PopItem.
// Ordering is metadata over the same dense entry store that Map uses; no
// linked list is maintained alongside it.
//
// An OrderedMap tracks a state counter that is advanced by every operation
// that changes the relative order of its entries. Iterators obtained from
// the map or its views use the state counter, the live entry count and the
// storage generation to detect mutation.
//
// An OrderedMap is NOT goroutine-safe.
type OrderedMap[K comparable, V any] struct {
	m Map[K, V]
	// state is advanced by MoveToEnd and Clear.
	state uint64
	attrs map[string]any
	opts  []option[K, V]
}

// NewOrdered constructs a new OrderedMap with the specified initial capacity
// and options.
func NewOrdered[K comparable, V any](initialCapacity int, options ...option[K, V]) *OrderedMap[K, V] {
	o := &OrderedMap[K, V]{opts: options}
	o.m.init(initialCapacity, options...)
	return o
}

// FromItems constructs an OrderedMap holding items in the order given. A
// later item overwrites the value of an earlier item with the same key
// without moving it.
func FromItems[K comparable, V any](items []Item[K, V], options ...option[K, V]) (*OrderedMap[K, V], error) {
	o := NewOrdered[K, V](len(items), options...)
	if err := o.Update(items...); err != nil {
		return nil, err
	}
	return o, nil
}

// FromKeys constructs an OrderedMap mapping each of keys, in order, to value.
func FromKeys[K comparable, V any](keys []K, value V, options ...option[K, V]) (*OrderedMap[K, V], error) {
	o := NewOrdered[K, V](len(keys), options...)
	for _, k := range keys {
		if err := o.m.Put(k, value); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// FromMap constructs an OrderedMap holding the entries of src. Since Go maps
// are unordered, the order of the resulting entries is arbitrary.
func FromMap[K comparable, V any](src map[K]V, options ...option[K, V]) (*OrderedMap[K, V], error) {
	o := NewOrdered[K, V](len(src), options...)
	for k, v := range src {
		if err := o.m.Put(k, v); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// Close releases the storage of the map back to its allocator. See Map.Close.
func (o *OrderedMap[K, V]) Close() {
	o.m.Close()
	o.state++
}

// Put inserts an entry at the end of the map, or overwrites the value of an
// existing entry in place.
func (o *OrderedMap[K, V]) Put(key K, value V) error {
	return o.m.Put(key, value)
}

// Get retrieves the value for key, returning ok=false if the key is not
// present.
func (o *OrderedMap[K, V]) Get(key K) (value V, ok bool, err error) {
	return o.m.Get(key)
}

// Has returns true if the key is present in the map.
func (o *OrderedMap[K, V]) Has(key K) (bool, error) {
	return o.m.Has(key)
}

// Delete removes the entry for key. See Map.Delete.
func (o *OrderedMap[K, V]) Delete(key K) error {
	return o.m.Delete(key)
}

// Pop removes the entry for key and returns its value. See Map.Pop.
func (o *OrderedMap[K, V]) Pop(key K) (V, error) {
	return o.m.Pop(key)
}

// PopDefault removes the entry for key and returns its value, or def if the
// key is not present.
func (o *OrderedMap[K, V]) PopDefault(key K, def V) (V, error) {
	return o.m.PopDefault(key, def)
}

// Len returns the number of entries in the map.
func (o *OrderedMap[K, V]) Len() int {
	return o.m.used
}

// SetDefault returns the value for key if present. Otherwise it inserts key
// with value def at the end of the map and returns def.
func (o *OrderedMap[K, V]) SetDefault(key K, def V) (V, error) {
	v, ok, err := o.m.Get(key)
	if err != nil || ok {
		return v, err
	}
	if err := o.m.Put(key, def); err != nil {
		return v, err
	}
	return def, nil
}

// Update puts each of items in order.
func (o *OrderedMap[K, V]) Update(items ...Item[K, V]) error {
	for _, it := range items {
		if err := o.m.Put(it.Key, it.Value); err != nil {
			return err
		}
	}
	return nil
}

// Clear removes all entries from the map.
func (o *OrderedMap[K, V]) Clear() {
	o.m.Clear()
	o.state++
}

// MoveToEnd moves the entry for key to the end of the map if last is true,
// or to the front otherwise. A *KeyError matching ErrNotFound is returned if
// the key is not present. Moving an entry that is already at the requested
// end is a no-op.
func (o *OrderedMap[K, V]) MoveToEnd(key K, last bool) error {
	m := &o.m
	if m.used == 0 {
		return notFound(key)
	}
	hash, err := m.hasher.Hash(key)
	if err != nil {
		return err
	}
	pos, err := m.lookup(key, hash)
	if err != nil {
		return err
	}
	if pos < 0 {
		return notFound(key)
	}

	if last {
		if pos == m.t.count-1 {
			return nil
		}
		if m.t.usable <= 0 {
			if pos, err = o.regrow(pos, hash, m.grow); err != nil {
				return err
			}
		}
		t := m.t
		t.move(pos, t.count)
		t.count++
		t.usable--
	} else {
		if pos == m.offset {
			return nil
		}
		if m.offset == 0 {
			// Reserve free positions at the front. The reservation is only
			// made once a move to the front needs it.
			lead := m.used/2 + 2
			grow := func() error { return m.resize(m.growthRate(), lead) }
			if pos, err = o.regrow(pos, hash, grow); err != nil {
				return err
			}
		}
		m.offset--
		m.t.move(pos, m.offset)
	}
	m.trim()
	m.version++
	o.state++
	m.checkInvariants()
	return nil
}

// regrow rebuilds the storage with grow and returns the new position of the
// entry found at pos. The entry is found again by identity, without calling
// into the Hasher, since its presence was already established.
func (o *OrderedMap[K, V]) regrow(pos int, hash uint64, grow func() error) (int, error) {
	key := o.m.t.entries[pos].key
	if err := grow(); err != nil {
		return pos, err
	}
	pos = o.m.t.lookupIdent(key, hash)
	if pos < 0 {
		panic(fmt.Sprintf("entry %v lost during resize\n%s", key, o.m.debugString()))
	}
	return pos, nil
}

// PopItem removes and returns the last entry of the map if last is true, or
// the first entry otherwise. ErrEmpty is returned if the map is empty.
func (o *OrderedMap[K, V]) PopItem(last bool) (key K, value V, err error) {
	m := &o.m
	if m.used == 0 {
		return key, value, ErrEmpty
	}
	pos := m.offset
	if last {
		pos = m.t.count - 1
	}
	key = m.t.entries[pos].key
	value = m.removeAt(pos)
	return key, value, nil
}

// Copy returns a new OrderedMap with the same entries in the same order. The
// maps do not share storage. Instance attributes are not copied.
func (o *OrderedMap[K, V]) Copy() (*OrderedMap[K, V], error) {
	c := &OrderedMap[K, V]{
		m: Map[K, V]{
			hasher:    o.m.hasher,
			allocator: o.m.allocator,
			logger:    o.m.logger,
			t:         newEmptyTable[K, V](),
		},
		opts: o.opts,
	}
	if err := o.m.copyInto(&c.m); err != nil {
		return nil, err
	}
	return c, nil
}

// Equal reports whether o and other contain equal entries in the same order.
// Values are compared with eq and keys with the Hasher of o.
func (o *OrderedMap[K, V]) Equal(other *OrderedMap[K, V], eq func(a, b V) bool) (bool, error) {
	if ok, err := o.m.Equal(&other.m, eq); err != nil || !ok {
		return false, err
	}
	// Equal may have run user code that mutated either map. Comparing
	// snapshots of the key sequences keeps the walk below well defined.
	a, b := o.keys(), other.keys()
	if len(a) != len(b) {
		return false, nil
	}
	for i := range a {
		if a[i] == b[i] {
			continue
		}
		if ok, err := o.m.hasher.Equal(a[i], b[i]); err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// EqualMap reports whether o and other contain equal entries, irrespective
// of order.
func (o *OrderedMap[K, V]) EqualMap(other *Map[K, V], eq func(a, b V) bool) (bool, error) {
	return o.m.Equal(other, eq)
}

// Attrs returns the instance attributes of the map. They are carried
// through Reduce and Replay but otherwise ignored.
func (o *OrderedMap[K, V]) Attrs() map[string]any {
	if o.attrs == nil {
		o.attrs = make(map[string]any)
	}
	return o.attrs
}

// SizeOf returns the number of bytes of memory used by the map, including
// its storage and the attribute map header.
func (o *OrderedMap[K, V]) SizeOf() uintptr {
	return unsafe.Sizeof(*o) - unsafe.Sizeof(o.m) + o.m.SizeOf()
}

func (o *OrderedMap[K, V]) String() string {
	var buf strings.Builder
	buf.WriteString("OrderedMap[")
	t := o.m.t
	sep := ""
	for i := o.m.offset; i < t.count; i++ {
		if e := &t.entries[i]; e.live {
			fmt.Fprintf(&buf, "%s%v:%v", sep, e.key, e.value)
			sep = " "
		}
	}
	buf.WriteString("]")
	return buf.String()
}

// keys returns the keys of the map in order.
func (o *OrderedMap[K, V]) keys() []K {
	keys := make([]K, 0, o.m.used)
	t := o.m.t
	for i := o.m.offset; i < t.count; i++ {
		if e := &t.entries[i]; e.live {
			keys = append(keys, e.key)
		}
	}
	return keys
}

// items returns the entries of the map in order.
func (o *OrderedMap[K, V]) items() []Item[K, V] {
	items := make([]Item[K, V], 0, o.m.used)
	t := o.m.t
	for i := o.m.offset; i < t.count; i++ {
		if e := &t.entries[i]; e.live {
			items = append(items, Item[K, V]{Key: e.key, Value: e.value})
		}
	}
	return items
}

func cloneAttrs(attrs map[string]any) map[string]any {
	if len(attrs) == 0 {
		return nil
	}
	return maps.Clone(attrs)
}
