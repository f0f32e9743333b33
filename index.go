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
	"unsafe"
)

const (
	// ixEmpty marks an index slot that has never held an entry. A probe
	// sequence terminates at the first empty slot.
	ixEmpty = -1
	// ixDummy marks an index slot whose entry was deleted or popped. Probe
	// sequences continue past dummies and dummies are never reused, so the
	// number of non-empty slots is bounded by the positions consumed in the
	// dense entry store.
	ixDummy = -2

	minTableSize = 8
	perturbShift = 5
)

// usableFraction returns the number of dense entry positions available for
// an index table of the given size. Keeping the load at or below 2/3 keeps
// probe sequences short and guarantees that an empty slot always exists.
func usableFraction(size uintptr) int {
	return int((size << 1) / 3)
}

// indexWidth returns the number of bytes used to store each slot of an index
// table with the specified size. Since positions are always < size, the
// signed slot type only has to be able to hold size-1.
func indexWidth(size uintptr) uintptr {
	switch {
	case size <= 1<<7:
		return 1
	case size <= 1<<15:
		return 2
	case size <= 1<<31:
		return 4
	default:
		return 8
	}
}

// indexTable is the open-addressed array mapping hash buckets to positions
// in the dense entry store. Each slot holds ixEmpty, ixDummy or a position
// >= 0. The slot width depends on the size of the table in order to bound
// memory usage: a table of 64 slots uses 64 bytes while a table of 64K slots
// uses 256KB.
type indexTable struct {
	// buf holds size*width bytes. It must be 8-byte aligned which is always
	// true for memory obtained through make().
	buf   []byte
	size  uintptr
	width uintptr
}

func makeIndexTable(buf []byte, size uintptr) indexTable {
	t := indexTable{buf: buf, size: size, width: indexWidth(size)}
	// ixEmpty is -1 which is all one bits in every width.
	for i := range t.buf {
		t.buf[i] = 0xff
	}
	return t
}

func (t *indexTable) mask() uintptr {
	return t.size - 1
}

func (t *indexTable) get(i uintptr) int {
	p := unsafe.Pointer(unsafe.SliceData(t.buf))
	switch t.width {
	case 1:
		return int(*unsafeSlice[int8]{ptr: p}.At(i))
	case 2:
		return int(*unsafeSlice[int16]{ptr: p}.At(i))
	case 4:
		return int(*unsafeSlice[int32]{ptr: p}.At(i))
	default:
		return int(*unsafeSlice[int64]{ptr: p}.At(i))
	}
}

func (t *indexTable) set(i uintptr, ix int) {
	p := unsafe.Pointer(unsafe.SliceData(t.buf))
	switch t.width {
	case 1:
		*unsafeSlice[int8]{ptr: p}.At(i) = int8(ix)
	case 2:
		*unsafeSlice[int16]{ptr: p}.At(i) = int16(ix)
	case 4:
		*unsafeSlice[int32]{ptr: p}.At(i) = int32(ix)
	default:
		*unsafeSlice[int64]{ptr: p}.At(i) = int64(ix)
	}
}

// findEmpty returns the first ixEmpty slot in the probe sequence for hash.
// The caller guarantees one exists.
func (t *indexTable) findEmpty(hash uint64) uintptr {
	for seq := makeProbeSeq(hash, t.mask()); ; seq = seq.next() {
		if t.get(seq.offset) == ixEmpty {
			return seq.offset
		}
	}
}

// findPosition returns the slot in the probe sequence for hash that points
// at the dense entry store position pos. The caller guarantees that such a
// slot exists.
func (t *indexTable) findPosition(hash uint64, pos int) uintptr {
	for seq := makeProbeSeq(hash, t.mask()); ; seq = seq.next() {
		switch ix := t.get(seq.offset); ix {
		case pos:
			return seq.offset
		case ixEmpty:
			panic(fmt.Sprintf("index slot for position %d not found (hash=%016x %s)", pos, hash, seq))
		}
	}
}

// probeSeq maintains the state for a probe sequence. Starting at hash&mask,
// each step computes
//
//	perturb >>= 5
//	offset = mask & (offset*5 + perturb + 1)
//
// Folding in the high bits of the hash through perturb makes the sequence
// depend on all of the hash bits. Once perturb reaches zero the recurrence
// offset*5+1 (mod 2^k) is a full-period generator, so every slot of the
// table is eventually visited.
//
// A probeSeq is a value and is rebuilt for every lookup. Nothing about a
// probe survives a call into user code.
type probeSeq struct {
	mask    uintptr
	offset  uintptr
	perturb uint64
}

func makeProbeSeq(hash uint64, mask uintptr) probeSeq {
	return probeSeq{
		mask:    mask,
		offset:  uintptr(hash) & mask,
		perturb: hash,
	}
}

func (s probeSeq) next() probeSeq {
	s.perturb >>= perturbShift
	s.offset = s.mask & (s.offset*5 + uintptr(s.perturb) + 1)
	return s
}

func (s probeSeq) String() string {
	return fmt.Sprintf("mask=%d offset=%d perturb=%x", s.mask, s.offset, s.perturb)
}

// unsafeSlice provides semi-ergonomic limited slice-like functionality
// without bounds checking for fixed sized slices.
type unsafeSlice[T any] struct {
	ptr unsafe.Pointer
}

// At returns a pointer to the element at index i.
func (s unsafeSlice[T]) At(i uintptr) *T {
	var t T
	return (*T)(unsafe.Add(s.ptr, unsafe.Sizeof(t)*i))
}
