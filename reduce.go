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

// Reduction is the decomposition of an OrderedMap produced by Reduce. A
// serializer records Args, State and Items; Replay rebuilds the map.
type Reduction[K comparable, V any] struct {
	// New constructs an empty map configured like the reduced one.
	New func() *OrderedMap[K, V]
	// Args are the arguments for New. They are always empty.
	Args []any
	// State holds the instance attributes, or nil if there are none.
	State map[string]any
	// Items are the entries in order.
	Items []Item[K, V]
}

// Reduce decomposes the map into a Reduction. The Reduction does not share
// memory with the map.
func (o *OrderedMap[K, V]) Reduce() Reduction[K, V] {
	opts := o.opts
	return Reduction[K, V]{
		New: func() *OrderedMap[K, V] {
			return NewOrdered[K, V](0, opts...)
		},
		Args:  []any{},
		State: cloneAttrs(o.attrs),
		Items: o.items(),
	}
}

// Replay rebuilds a map from r: it constructs an empty map with New, puts
// every item in order, then applies State.
func (r Reduction[K, V]) Replay() (*OrderedMap[K, V], error) {
	o := r.New()
	if err := o.Update(r.Items...); err != nil {
		return nil, err
	}
	if r.State != nil {
		attrs := o.Attrs()
		for k, v := range r.State {
			attrs[k] = v
		}
	}
	return o, nil
}
