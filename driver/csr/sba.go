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

package csr

import (
	"github.com/hongbolv/compute-runtime/driver/cmds"
	"github.com/hongbolv/compute-runtime/driver/hwinfo"
	"github.com/hongbolv/compute-runtime/driver/memory"
)

// MemoryCompressionState describes whether a compression mapping applies to
// stateless accesses for this submission.
type MemoryCompressionState int

const (
	MemoryCompressionNotApplicable MemoryCompressionState = iota
	MemoryCompressionDisabled
	MemoryCompressionEnabled
)

// StateBaseAddressParams are the inputs to state-base-address programming.
// A nil heap leaves the corresponding fields unprogrammed.
type StateBaseAddressParams struct {
	DSH *memory.Heap
	IOH *memory.Heap
	SSH *memory.Heap

	// GeneralStateBase is the general-state base programmed on 32-bit
	// targets; 64-bit targets program the decanonized InternalHeapBase
	// instead.
	GeneralStateBase    uint64
	SetGeneralStateBase bool

	InternalHeapBase uint64

	InstructionHeapBase     uint64
	SetInstructionStateBase bool

	BindlessSurfaceStateBase uint64
	BindlessSurfaceStateSize uint32
	UseBindlessHeaps         bool

	DisableCachingForHeaps bool
	CompressionState       MemoryCompressionState
}

// ProgramStateBaseAddress builds the state-base-address command from the
// current heap pointers and sizes. Pure: no side effects beyond the returned
// command.
func ProgramStateBaseAddress(p StateBaseAddressParams, info *hwinfo.Info) cmds.StateBaseAddress {
	var c cmds.StateBaseAddress

	heapMocs := info.MOCS(hwinfo.UsageStateHeapBuffer)
	statelessMocs := info.MOCS(hwinfo.UsageBufferConstant)
	if p.DisableCachingForHeaps {
		heapMocs = info.MOCS(hwinfo.UsageSystemBufferCachelineMisaligned)
		statelessMocs = info.MOCS(hwinfo.UsageSystemBufferCachelineMisaligned)
	}
	if p.CompressionState == MemoryCompressionEnabled {
		// Compressed stateless accesses bypass the L1 policy.
		statelessMocs = info.MOCS(hwinfo.UsageStateHeapBuffer)
	}

	if p.DSH != nil {
		c.DynamicStateBaseAddressModifyEnable = true
		c.DynamicStateBufferSizeModifyEnable = true
		c.DynamicStateBaseAddress = p.DSH.Base()
		c.DynamicStateBufferSize = p.DSH.SizeInPages()
	}

	if p.IOH != nil {
		c.IndirectObjectBaseAddressModifyEnable = true
		c.IndirectObjectBufferSizeModifyEnable = true
		c.IndirectObjectBaseAddress = p.IOH.Base()
		c.IndirectObjectBufferSize = p.IOH.SizeInPages()
	}

	if p.SSH != nil {
		c.SurfaceStateBaseAddressModifyEnable = true
		c.SurfaceStateBaseAddress = p.SSH.Base()
	}

	if p.SetInstructionStateBase {
		c.InstructionBaseAddressModifyEnable = true
		c.InstructionBufferSizeModifyEnable = true
		c.InstructionBaseAddress = p.InstructionHeapBase
		// The instruction mapping always spans the architectural maximum
		// region, not the heap's current allocation size.
		c.InstructionBufferSize = hwinfo.SizeOf4GBInPageEntities
		c.InstructionMemoryObjectControlState = heapMocs
	}

	if p.SetGeneralStateBase {
		c.GeneralStateBaseAddressModifyEnable = true
		c.GeneralStateBufferSizeModifyEnable = true
		if info.Is64Bit {
			c.GeneralStateBaseAddress = hwinfo.Decanonize(p.InternalHeapBase)
		} else {
			c.GeneralStateBaseAddress = p.GeneralStateBase
		}
		c.GeneralStateBufferSize = hwinfo.GeneralStateMaxBufferSize
	}

	c.StatelessDataPortAccessMemoryObjectControlState = statelessMocs

	if p.UseBindlessHeaps {
		c.BindlessSurfaceStateBaseAddressModifyEnable = true
		c.BindlessSurfaceStateBaseAddress = p.BindlessSurfaceStateBase
		c.BindlessSurfaceStateSize = p.BindlessSurfaceStateSize
	}

	return c
}
