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

package memory

import "github.com/hongbolv/compute-runtime/driver/hwinfo"

// Heap is one of the four state heaps handed to flush-task (dynamic-state,
// indirect-object, surface-state, instruction). The receiver only reads heap
// identity (base and size) to decide whether state-base-address reprogramming
// is required.
type Heap struct {
	alloc *GraphicsAllocation
	base  uint64
	size  uint64
}

// NewHeap wraps an allocation as a heap. The heap spans the whole allocation.
func NewHeap(alloc *GraphicsAllocation) *Heap {
	return &Heap{alloc: alloc, base: alloc.GpuAddress(), size: alloc.Size()}
}

// Base returns the heap base address.
func (h *Heap) Base() uint64 { return h.base }

// Size returns the heap size in bytes.
func (h *Heap) Size() uint64 { return h.size }

// SizeInPages returns the heap size in whole pages, as programmed into buffer
// size fields.
func (h *Heap) SizeInPages() uint32 {
	return uint32(h.size / hwinfo.PageSize)
}

// GraphicsAllocation returns the backing allocation.
func (h *Heap) GraphicsAllocation() *GraphicsAllocation { return h.alloc }

// ReplaceBuffer repositions the heap onto a new base and size, changing its
// identity. The next flush-task observing the heap must reprogram state base
// addresses.
func (h *Heap) ReplaceBuffer(base, size uint64) {
	h.base = base
	h.size = size
}
