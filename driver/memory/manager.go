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
	"sync"

	"github.com/pkg/errors"

	"github.com/hongbolv/compute-runtime/core/math/interval"
	"github.com/hongbolv/compute-runtime/driver/hwinfo"
)

// GPU virtual-address layout carved up by the manager. The internal heaps
// occupy fixed windows so their base addresses are stable across allocations.
const (
	systemPoolBase       = 0x0000_8000_0000
	systemPoolSize       = 0x0000_8000_0000
	localPoolBase        = 0x0001_0000_0000
	localPoolSize        = 0x0001_0000_0000
	internalHeapBaseSys  = 0x0000_4000_0000
	internalHeapBaseLoc  = 0x0000_6000_0000
)

// Manager is the memory-manager collaborator: it hands out graphics
// allocations from the GPU address space and owns residency marking.
type Manager struct {
	info *hwinfo.Info

	mu        sync.Mutex
	system    Allocator
	local     Allocator
	nextID    uint64
	allocated map[uint64]*GraphicsAllocation
	deferred  map[uint64]*GraphicsAllocation
}

// NewManager creates a memory manager for the given platform.
func NewManager(info *hwinfo.Info) *Manager {
	return &Manager{
		info: info,
		system: NewBasicAllocator(interval.U64RangeList{
			{First: systemPoolBase, Count: systemPoolSize},
		}),
		local: NewBasicAllocator(interval.U64RangeList{
			{First: localPoolBase, Count: localPoolSize},
		}),
		allocated: make(map[uint64]*GraphicsAllocation),
		deferred:  make(map[uint64]*GraphicsAllocation),
	}
}

// Allocate returns a new graphics allocation of at least size bytes, page
// aligned, placed in local memory when localPool is set.
func (m *Manager) Allocate(size uint64, kind AllocationType, localPool bool) (*GraphicsAllocation, error) {
	if size == 0 {
		return nil, errors.New("zero-sized allocation")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	al := m.system
	if localPool {
		al = m.local
	}
	addr, err := al.Alloc(size, hwinfo.PageSize)
	if err != nil {
		return nil, errors.Wrapf(err, "allocating %v of size 0x%x", kind, size)
	}
	m.nextID++
	a := &GraphicsAllocation{
		id:         m.nextID,
		gpuAddress: addr,
		size:       size,
		kind:       kind,
		localPool:  localPool,
		usage:      make(map[uint32]usageInfo),
	}
	m.allocated[addr] = a
	return a, nil
}

// Free releases the allocation back to its pool.
func (m *Manager) Free(a *GraphicsAllocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.freeLocked(a)
}

func (m *Manager) freeLocked(a *GraphicsAllocation) error {
	if _, ok := m.allocated[a.gpuAddress]; !ok {
		return errors.Errorf("freeing unknown allocation at 0x%x", a.gpuAddress)
	}
	delete(m.allocated, a.gpuAddress)
	delete(m.deferred, a.gpuAddress)
	al := m.system
	if a.localPool {
		al = m.local
	}
	return al.Free(a.gpuAddress)
}

// ReleaseWhenUnused frees the allocation once no context holds it resident.
// A still-resident allocation is parked instead of freed: its GPU address
// stays reserved until the last MakeNonResident, so pending command buffers
// that reference it keep a valid address.
func (m *Manager) ReleaseWhenUnused(a *GraphicsAllocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.allocated[a.gpuAddress]; !ok {
		return errors.Errorf("releasing unknown allocation at 0x%x", a.gpuAddress)
	}
	if a.isResidentAnywhere() {
		m.deferred[a.gpuAddress] = a
		return nil
	}
	return m.freeLocked(a)
}

// InternalHeapBaseAddress returns the base of the internal heap window for
// the pool the indirect-object heap lives in. Consumed by state-base-address
// programming for the instruction and general-state bases.
func (m *Manager) InternalHeapBaseAddress(localPool bool) uint64 {
	if localPool {
		return internalHeapBaseLoc
	}
	return internalHeapBaseSys
}

// MakeResident adds one residency reference for the given context and records
// the task count that requires the allocation.
func (m *Manager) MakeResident(contextID uint32, a *GraphicsAllocation, taskCount uint32) {
	a.updateResidency(contextID, true, taskCount)
}

// MakeNonResident drops one residency reference for the given context. The
// last task count is retained for completion tracking. An allocation parked by
// ReleaseWhenUnused is freed here once its last reference is dropped.
func (m *Manager) MakeNonResident(contextID uint32, a *GraphicsAllocation) {
	a.updateResidency(contextID, false, 0)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.deferred[a.gpuAddress]; ok && !a.isResidentAnywhere() {
		m.freeLocked(a)
	}
}
