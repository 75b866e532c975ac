// Copyright (C) 2021 the compute-runtime authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package memory owns graphics allocations, the GPU virtual-address
// allocator, and the per-context residency bookkeeping consumed by the
// command-stream receiver at submission time.
package memory

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/hongbolv/compute-runtime/core/math/interval"
)

// Allocator is a GPU virtual-address range allocator.
type Allocator interface {
	// Alloc allocates count bytes at an offset that is a multiple of align.
	Alloc(count, align uint64) (uint64, error)

	// Free marks the block starting at the given offset as free.
	Free(base uint64) error

	// AllocList returns the ranges currently allocated from this allocator.
	AllocList() interval.U64RangeList

	// FreeList returns the free ranges this allocator can allocate from.
	FreeList() interval.U64RangeList
}

// basicAllocator is a simple range allocator based on a list of free ranges.
// Memory is allocated by finding the leftmost free block large enough to fit
// the required size with the specified alignment.
type basicAllocator struct {
	freeList    interval.U64RangeList
	allocations map[uint64]uint64
}

// NewBasicAllocator creates a new allocator which allocates from the given
// list of free ranges. The returned allocator is not thread-safe.
func NewBasicAllocator(freeList interval.U64RangeList) Allocator {
	return &basicAllocator{
		freeList:    freeList.Clone(),
		allocations: make(map[uint64]uint64),
	}
}

// Alloc implements Allocator.
func (c *basicAllocator) Alloc(count, align uint64) (uint64, error) {
	for _, chunk := range c.freeList {
		pad := align - chunk.First%align
		if pad == align {
			pad = 0
		}
		base := chunk.First + pad
		if base+count <= chunk.First+chunk.Count {
			interval.Remove(&c.freeList, interval.U64Span{Start: base, End: base + count})
			c.allocations[base] = count
			return base, nil
		}
	}
	return 0, errors.Errorf("not enough contiguous free space to allocate %d bytes", count)
}

// Free implements Allocator.
func (c *basicAllocator) Free(base uint64) error {
	size, ok := c.allocations[base]
	if !ok {
		return errors.Errorf("attempted to free with an unknown offset 0x%x", base)
	}
	delete(c.allocations, base)
	interval.Merge(&c.freeList, interval.U64Span{Start: base, End: base + size}, true)
	return nil
}

// AllocList implements Allocator.
func (c *basicAllocator) AllocList() interval.U64RangeList {
	res := make(interval.U64RangeList, 0, len(c.allocations))
	for base, count := range c.allocations {
		res = append(res, interval.U64Range{First: base, Count: count})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].First < res[j].First })
	return res
}

// FreeList implements Allocator.
func (c *basicAllocator) FreeList() interval.U64RangeList {
	return c.freeList.Clone()
}
