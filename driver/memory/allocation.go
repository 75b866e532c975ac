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

import (
	"fmt"
	"sync"
)

// AllocationType classifies what a graphics allocation backs.
type AllocationType int

const (
	TypeBuffer AllocationType = iota
	TypeCommandBuffer
	TypeLinearStream
	TypeHeap
	TypeInternalHeap
	TypeDebugArea
)

func (t AllocationType) String() string {
	switch t {
	case TypeBuffer:
		return "buffer"
	case TypeCommandBuffer:
		return "commandBuffer"
	case TypeLinearStream:
		return "linearStream"
	case TypeHeap:
		return "heap"
	case TypeInternalHeap:
		return "internalHeap"
	case TypeDebugArea:
		return "debugArea"
	default:
		return fmt.Sprintf("AllocationType(%d)", int(t))
	}
}

// usageInfo is the residency state of an allocation on one context. Residency
// is counted, not flagged: every pending command buffer that references the
// allocation holds one count, and the allocation stays resident until all of
// them are released.
type usageInfo struct {
	residentCount uint32
	taskCount     uint32
}

// GraphicsAllocation is a backing memory object addressable by the GPU.
// Residency state is kept per context id: an allocation shared across
// contexts carries independent residency on each, so no cross-context
// coordination is needed beyond the per-allocation lock.
type GraphicsAllocation struct {
	id         uint64
	gpuAddress uint64
	size       uint64
	kind       AllocationType
	localPool  bool

	mu    sync.Mutex
	usage map[uint32]usageInfo
}

// GpuAddress returns the allocation's GPU virtual address.
func (a *GraphicsAllocation) GpuAddress() uint64 { return a.gpuAddress }

// Size returns the allocation size in bytes.
func (a *GraphicsAllocation) Size() uint64 { return a.size }

// Type returns what the allocation backs.
func (a *GraphicsAllocation) Type() AllocationType { return a.kind }

// IsAllocatedInLocalMemoryPool reports whether the allocation was placed in
// device-local memory.
func (a *GraphicsAllocation) IsAllocatedInLocalMemoryPool() bool { return a.localPool }

// IsResident reports whether the allocation is resident on the given context.
func (a *GraphicsAllocation) IsResident(contextID uint32) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.usage[contextID].residentCount > 0
}

// ResidencyTaskCount returns the task count recorded when the allocation was
// last made resident on the given context.
func (a *GraphicsAllocation) ResidencyTaskCount(contextID uint32) uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.usage[contextID].taskCount
}

// isResidentAnywhere reports whether any context still holds the allocation
// resident.
func (a *GraphicsAllocation) isResidentAnywhere() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, u := range a.usage {
		if u.residentCount > 0 {
			return true
		}
	}
	return false
}

func (a *GraphicsAllocation) updateResidency(contextID uint32, resident bool, taskCount uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	u := a.usage[contextID]
	if resident {
		u.residentCount++
		u.taskCount = taskCount
	} else if u.residentCount > 0 {
		u.residentCount--
	}
	a.usage[contextID] = u
}

func (a *GraphicsAllocation) String() string {
	return fmt.Sprintf("GraphicsAllocation(%v, Address: 0x%x, Size: 0x%x)", a.kind, a.gpuAddress, a.size)
}
