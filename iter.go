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

// Iterator walks the entries of an OrderedMap forward or in reverse. The
// iterator records the state counter, the live entry count and the storage
// generation of the map when it is created and checks them before each
// step. If the order of the map changed or its storage was rebuilt, Next
// fails with ErrMutatedDuringIteration. Otherwise, if the number of entries
// changed, Next fails with ErrSizeChangedDuringIteration. A failed iterator
// produces nothing further.
//
// Typical usage:
//
//	it := m.Iter()
//	for it.Next() {
//	  fmt.Println(it.Key(), it.Value())
//	}
//	if err := it.Err(); err != nil {
//	  ...
//	}
type Iterator[K comparable, V any] struct {
	o       *OrderedMap[K, V]
	t       *table[K, V]
	state   uint64
	size    int
	pos     int
	reverse bool
	done    bool
	key     K
	value   V
	err     error
}

func newIterator[K comparable, V any](o *OrderedMap[K, V], reverse bool) *Iterator[K, V] {
	it := &Iterator[K, V]{
		o:       o,
		t:       o.m.t,
		state:   o.state,
		size:    o.m.used,
		reverse: reverse,
	}
	switch {
	case o.m.used == 0:
		it.done = true
	case reverse:
		it.pos = o.m.t.count - 1
	default:
		it.pos = o.m.offset
	}
	return it
}

// Iter returns an iterator over the entries of the map in order.
func (o *OrderedMap[K, V]) Iter() *Iterator[K, V] {
	return newIterator(o, false)
}

// Reversed returns an iterator over the entries of the map in reverse order.
func (o *OrderedMap[K, V]) Reversed() *Iterator[K, V] {
	return newIterator(o, true)
}

// Next advances the iterator, returning false when the iterator is
// exhausted or has failed.
func (it *Iterator[K, V]) Next() bool {
	if it.done {
		return false
	}
	o := it.o
	if o.state != it.state || o.m.t != it.t {
		return it.fail(ErrMutatedDuringIteration)
	}
	if o.m.used != it.size {
		return it.fail(ErrSizeChangedDuringIteration)
	}

	t := it.t
	if it.reverse {
		for ; it.pos >= o.m.offset; it.pos-- {
			if e := &t.entries[it.pos]; e.live {
				it.key, it.value = e.key, e.value
				it.pos--
				return true
			}
		}
	} else {
		for ; it.pos < t.count; it.pos++ {
			if e := &t.entries[it.pos]; e.live {
				it.key, it.value = e.key, e.value
				it.pos++
				return true
			}
		}
	}
	return it.fail(nil)
}

func (it *Iterator[K, V]) fail(err error) bool {
	var k K
	var v V
	it.key, it.value = k, v
	it.err = err
	it.done = true
	// Drop the references to the map and its storage.
	it.o, it.t = nil, nil
	return false
}

// Key returns the key of the current entry.
func (it *Iterator[K, V]) Key() K {
	return it.key
}

// Value returns the value of the current entry.
func (it *Iterator[K, V]) Value() V {
	return it.value
}

// Item returns the current entry. Each call returns an independent copy.
func (it *Iterator[K, V]) Item() Item[K, V] {
	return Item[K, V]{Key: it.key, Value: it.value}
}

// Err returns the error that terminated the iteration, if any.
func (it *Iterator[K, V]) Err() error {
	return it.err
}

// All calls yield sequentially for each key and value present in the map, in
// order. If yield returns false, iteration stops. All panics with an error
// matching ErrConcurrentMutation if the map is mutated by yield in a way
// that the Iterator would report.
//
//	for k, v := range m.All {
//	  fmt.Printf("%v: %v\n", k, v)
//	}
func (o *OrderedMap[K, V]) All(yield func(key K, value V) bool) {
	drain(newIterator(o, false), func(it *Iterator[K, V]) bool {
		return yield(it.key, it.value)
	})
}

// Backward is like All but visits the entries in reverse order.
func (o *OrderedMap[K, V]) Backward(yield func(key K, value V) bool) {
	drain(newIterator(o, true), func(it *Iterator[K, V]) bool {
		return yield(it.key, it.value)
	})
}

// drain feeds every step of it to fn, stopping early if fn returns false.
func drain[K comparable, V any](it *Iterator[K, V], fn func(it *Iterator[K, V]) bool) {
	for it.Next() {
		if !fn(it) {
			return
		}
	}
	if err := it.Err(); err != nil {
		panic(err)
	}
}
