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
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a key required by an operation is not
	// present. Errors carrying the missing key are *KeyError values which
	// match ErrNotFound with errors.Is.
	ErrNotFound = errors.New("odict: key not found")

	// ErrEmpty is returned by PopItem on an empty map.
	ErrEmpty = errors.New("odict: map is empty")

	// ErrAllocationFailed is returned when the Allocator cannot provide the
	// storage required to grow the map. The map is left unchanged.
	ErrAllocationFailed = errors.New("odict: allocation failed")

	// ErrConcurrentMutation is the parent of the errors reported by an
	// Iterator that observes a change to its map.
	ErrConcurrentMutation = errors.New("odict: concurrent mutation")

	// ErrMutatedDuringIteration is reported when the order of the map was
	// changed or its storage was rebuilt after the iterator was created.
	ErrMutatedDuringIteration = fmt.Errorf("%w: mutated during iteration", ErrConcurrentMutation)

	// ErrSizeChangedDuringIteration is reported when the number of entries
	// changed after the iterator was created.
	ErrSizeChangedDuringIteration = fmt.Errorf("%w: changed size during iteration", ErrConcurrentMutation)
)

// KeyError reports a key that was expected to be present.
type KeyError struct {
	Key any
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("odict: key not found: %v", e.Key)
}

// Is reports whether target is ErrNotFound.
func (e *KeyError) Is(target error) bool {
	return target == ErrNotFound
}

func notFound[K any](key K) error {
	return &KeyError{Key: key}
}
