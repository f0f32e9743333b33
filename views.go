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

// Item is a key/value pair.
type Item[K comparable, V any] struct {
	Key   K
	Value V
}

// KeysView is a live view of the keys of an OrderedMap. Every iterator
// obtained from the view reflects the map at the time the iterator is
// created.
type KeysView[K comparable, V any] struct {
	o *OrderedMap[K, V]
}

// Keys returns a view of the keys of the map.
func (o *OrderedMap[K, V]) Keys() KeysView[K, V] {
	return KeysView[K, V]{o: o}
}

func (v KeysView[K, V]) Len() int { return v.o.Len() }

// Contains returns true if key is present in the map.
func (v KeysView[K, V]) Contains(key K) (bool, error) { return v.o.Has(key) }

// Iter returns an iterator over the keys in order. Use Iterator.Key.
func (v KeysView[K, V]) Iter() *Iterator[K, V] { return newIterator(v.o, false) }

// Reversed returns an iterator over the keys in reverse order.
func (v KeysView[K, V]) Reversed() *Iterator[K, V] { return newIterator(v.o, true) }

// All calls yield for each key in order. See OrderedMap.All.
func (v KeysView[K, V]) All(yield func(key K) bool) {
	drain(newIterator(v.o, false), func(it *Iterator[K, V]) bool {
		return yield(it.key)
	})
}

// ValuesView is a live view of the values of an OrderedMap.
type ValuesView[K comparable, V any] struct {
	o *OrderedMap[K, V]
}

// Values returns a view of the values of the map.
func (o *OrderedMap[K, V]) Values() ValuesView[K, V] {
	return ValuesView[K, V]{o: o}
}

func (v ValuesView[K, V]) Len() int { return v.o.Len() }

// Iter returns an iterator over the values in order. Use Iterator.Value.
func (v ValuesView[K, V]) Iter() *Iterator[K, V] { return newIterator(v.o, false) }

// Reversed returns an iterator over the values in reverse order.
func (v ValuesView[K, V]) Reversed() *Iterator[K, V] { return newIterator(v.o, true) }

// All calls yield for each value in order. See OrderedMap.All.
func (v ValuesView[K, V]) All(yield func(value V) bool) {
	drain(newIterator(v.o, false), func(it *Iterator[K, V]) bool {
		return yield(it.value)
	})
}

// ItemsView is a live view of the entries of an OrderedMap.
type ItemsView[K comparable, V any] struct {
	o *OrderedMap[K, V]
}

// Items returns a view of the entries of the map.
func (o *OrderedMap[K, V]) Items() ItemsView[K, V] {
	return ItemsView[K, V]{o: o}
}

func (v ItemsView[K, V]) Len() int { return v.o.Len() }

// Iter returns an iterator over the entries in order. Use Iterator.Item.
func (v ItemsView[K, V]) Iter() *Iterator[K, V] { return newIterator(v.o, false) }

// Reversed returns an iterator over the entries in reverse order.
func (v ItemsView[K, V]) Reversed() *Iterator[K, V] { return newIterator(v.o, true) }

// All calls yield for each entry in order. See OrderedMap.All.
func (v ItemsView[K, V]) All(yield func(item Item[K, V]) bool) {
	drain(newIterator(v.o, false), func(it *Iterator[K, V]) bool {
		return yield(it.Item())
	})
}
