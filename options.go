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

import "github.com/rs/zerolog"

// option provide an interface to do work on Map while it is being created.
type option[K comparable, V any] interface {
	apply(m *Map[K, V])
}

type hasherOption[K comparable, V any] struct {
	hasher Hasher[K]
}

func (op hasherOption[K, V]) apply(m *Map[K, V]) {
	m.hasher = op.hasher
}

// WithHasher is an option to specify the Hasher to use for a Map[K,V] or
// OrderedMap[K,V].
func WithHasher[K comparable, V any](hasher Hasher[K]) option[K, V] {
	return hasherOption[K, V]{hasher}
}

// Allocator specifies an interface for allocating and releasing memory used
// by a Map. The default allocator utilizes Go's builtin make() and allows the
// GC to reclaim memory.
//
// If the allocator is manually managing memory and requires that entries and
// indices be freed then Map.Close must be called in order to ensure
// FreeEntries and FreeIndices are called for the final generation of
// storage. Storage replaced by a resize is freed as part of the resize.
type Allocator[K comparable, V any] interface {
	// AllocEntries should return a slice equivalent to
	// make([]Entry[K,V], n), or nil if the memory cannot be obtained.
	AllocEntries(n int) []Entry[K, V]

	// AllocIndices should return a slice equivalent to make([]byte, n), or
	// nil if the memory cannot be obtained. The slice must be 8-byte aligned.
	AllocIndices(n int) []byte

	// FreeEntries can optional release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocEntries.
	FreeEntries(v []Entry[K, V])

	// FreeIndices can optional release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocIndices.
	FreeIndices(v []byte)
}

type defaultAllocator[K comparable, V any] struct{}

func (defaultAllocator[K, V]) AllocEntries(n int) []Entry[K, V] {
	return make([]Entry[K, V], n)
}

func (defaultAllocator[K, V]) AllocIndices(n int) []byte {
	return make([]byte, n)
}

func (defaultAllocator[K, V]) FreeEntries(v []Entry[K, V]) {
}

func (defaultAllocator[K, V]) FreeIndices(v []byte) {
}

type allocatorOption[K comparable, V any] struct {
	allocator Allocator[K, V]
}

func (op allocatorOption[K, V]) apply(m *Map[K, V]) {
	m.allocator = op.allocator
}

// WithAllocator is an option for specify the Allocator to use for a Map[K,V].
func WithAllocator[K comparable, V any](allocator Allocator[K, V]) option[K, V] {
	return allocatorOption[K, V]{allocator}
}

type loggerOption[K comparable, V any] struct {
	logger zerolog.Logger
}

func (op loggerOption[K, V]) apply(m *Map[K, V]) {
	m.logger = op.logger
}

// WithLogger is an option to specify the logger that receives resize,
// compaction and allocation failure events. The default logger discards
// everything.
func WithLogger[K comparable, V any](logger zerolog.Logger) option[K, V] {
	return loggerOption[K, V]{logger}
}
