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
	"hash/maphash"

	"github.com/cespare/xxhash/v2"
)

// Hasher defines the hash function and the equivalence relation used for
// keys of type K.
//
// Hash must return the same value for a key for as long as the key is
// stored in a map. Equal is only consulted for keys with equal hashes that
// are not identical (==). Both methods may run arbitrary code, including
// code that mutates the map being operated on; the map tolerates this. An
// error returned by either method aborts the operation in progress and is
// returned to the caller unchanged.
type Hasher[K any] interface {
	Hash(key K) (uint64, error)
	Equal(a, b K) (bool, error)
}

// ComparableHasher hashes keys with hash/maphash and compares them with ==.
// The zero value has no seed and must not be used; see NewComparableHasher.
type ComparableHasher[K comparable] struct {
	seed maphash.Seed
}

// NewComparableHasher returns a ComparableHasher with a random seed.
func NewComparableHasher[K comparable]() ComparableHasher[K] {
	return ComparableHasher[K]{seed: maphash.MakeSeed()}
}

// Hash implements Hasher.
func (h ComparableHasher[K]) Hash(key K) (uint64, error) {
	return maphash.Comparable(h.seed, key), nil
}

// Equal implements Hasher.
func (ComparableHasher[K]) Equal(a, b K) (bool, error) {
	return a == b, nil
}

// StringHasher hashes string keys with xxHash64.
type StringHasher struct{}

// Hash implements Hasher.
func (StringHasher) Hash(key string) (uint64, error) {
	return xxhash.Sum64String(key), nil
}

// Equal implements Hasher.
func (StringHasher) Equal(a, b string) (bool, error) {
	return a == b, nil
}

// HasherFuncs adapts a pair of functions to the Hasher interface. A nil
// EqualFn compares keys with ==.
type HasherFuncs[K comparable] struct {
	HashFn  func(key K) (uint64, error)
	EqualFn func(a, b K) (bool, error)
}

// Hash implements Hasher.
func (h HasherFuncs[K]) Hash(key K) (uint64, error) {
	return h.HashFn(key)
}

// Equal implements Hasher.
func (h HasherFuncs[K]) Equal(a, b K) (bool, error) {
	if h.EqualFn == nil {
		return a == b, nil
	}
	return h.EqualFn(a, b)
}

// defaultHasher returns the hasher used when WithHasher is not specified:
// StringHasher for string keys and a seeded ComparableHasher otherwise.
func defaultHasher[K comparable]() Hasher[K] {
	var k K
	if _, ok := any(k).(string); ok {
		return any(StringHasher{}).(Hasher[K])
	}
	return NewComparableHasher[K]()
}
