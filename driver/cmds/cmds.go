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

// Package cmds defines the commands the command-stream receiver emits into a
// GPU command buffer, their per-family encoders, and a disassembler used to
// parse emitted streams back into commands.
package cmds

import (
	"fmt"
	"strings"
)

// Command is the interface of all encoded command types.
type Command interface {
	fmt.Stringer
	isCommand()
}

type op uint32

const (
	opNoop op = iota
	opPipeControl
	opBatchBufferStart
	opBatchBufferEnd
	opStateBaseAddress
	opBindingTablePoolAlloc
	opStoreDataImm
)

// ┏━━━━━━━━┳━━━━━━━━━━━━━━━━┳━━━━━━━━┓
// ┃ opcode ┃       0        ┃  body  ┃
// ┃ 31..24 ┃     23..8      ┃  7..0  ┃
// ┗━━━━━━━━┻━━━━━━━━━━━━━━━━┻━━━━━━━━┛
// Every command starts with a header dword carrying the opcode and the number
// of body dwords that follow it.
func packHeader(c op, body uint32) uint32 {
	if body > 0xff {
		panic(fmt.Errorf("body exceeds 8 bits (0x%x)", body))
	}
	return uint32(c)<<24 | body
}

func unpackOp(i uint32) op       { return op(i >> 24) }
func unpackBody(i uint32) uint32 { return i & 0xff }

func bit(bits uint32, idx uint) bool { return bits&(1<<idx) != 0 }

func setBit(bits uint32, idx uint, v bool) uint32 {
	if v {
		return bits | (1 << idx)
	}
	return bits &^ (1 << idx)
}

// Noop is the single-dword filler command used to pad a composed buffer up to
// the cache-line boundary.
type Noop struct{}

func (Noop) String() string { return "Noop" }

// PipeControl is the synchronization barrier command. Each field selects one
// cache flush/invalidate behavior; CompressionControlSurfaceCcsFlush exists
// only on XeHP and newer families.
type PipeControl struct {
	CommandStreamerStallEnable        bool
	DcFlushEnable                     bool
	RenderTargetCacheFlushEnable      bool
	InstructionCacheInvalidateEnable  bool
	TextureCacheInvalidationEnable    bool
	PipeControlFlushEnable            bool
	VfCacheInvalidationEnable         bool
	ConstantCacheInvalidationEnable   bool
	StateCacheInvalidationEnable      bool
	HdcPipelineFlush                  bool
	CompressionControlSurfaceCcsFlush bool
}

const (
	pcBitStall = iota
	pcBitDcFlush
	pcBitRenderTargetCacheFlush
	pcBitInstructionCacheInvalidate
	pcBitTextureCacheInvalidation
	pcBitPipeControlFlush
	pcBitVfCacheInvalidation
	pcBitConstantCacheInvalidation
	pcBitStateCacheInvalidation
	pcBitHdcPipelineFlush
)

// CCS flush lives in the XeHP+ extended dword.
const pcExtBitCcsFlush = 0

func (c PipeControl) bits() uint32 {
	var b uint32
	b = setBit(b, pcBitStall, c.CommandStreamerStallEnable)
	b = setBit(b, pcBitDcFlush, c.DcFlushEnable)
	b = setBit(b, pcBitRenderTargetCacheFlush, c.RenderTargetCacheFlushEnable)
	b = setBit(b, pcBitInstructionCacheInvalidate, c.InstructionCacheInvalidateEnable)
	b = setBit(b, pcBitTextureCacheInvalidation, c.TextureCacheInvalidationEnable)
	b = setBit(b, pcBitPipeControlFlush, c.PipeControlFlushEnable)
	b = setBit(b, pcBitVfCacheInvalidation, c.VfCacheInvalidationEnable)
	b = setBit(b, pcBitConstantCacheInvalidation, c.ConstantCacheInvalidationEnable)
	b = setBit(b, pcBitStateCacheInvalidation, c.StateCacheInvalidationEnable)
	b = setBit(b, pcBitHdcPipelineFlush, c.HdcPipelineFlush)
	return b
}

func pipeControlFromBits(bits, ext uint32) PipeControl {
	return PipeControl{
		CommandStreamerStallEnable:        bit(bits, pcBitStall),
		DcFlushEnable:                     bit(bits, pcBitDcFlush),
		RenderTargetCacheFlushEnable:      bit(bits, pcBitRenderTargetCacheFlush),
		InstructionCacheInvalidateEnable:  bit(bits, pcBitInstructionCacheInvalidate),
		TextureCacheInvalidationEnable:    bit(bits, pcBitTextureCacheInvalidation),
		PipeControlFlushEnable:            bit(bits, pcBitPipeControlFlush),
		VfCacheInvalidationEnable:         bit(bits, pcBitVfCacheInvalidation),
		ConstantCacheInvalidationEnable:   bit(bits, pcBitConstantCacheInvalidation),
		StateCacheInvalidationEnable:      bit(bits, pcBitStateCacheInvalidation),
		HdcPipelineFlush:                  bit(bits, pcBitHdcPipelineFlush),
		CompressionControlSurfaceCcsFlush: bit(ext, pcExtBitCcsFlush),
	}
}

func (c PipeControl) String() string {
	flags := []struct {
		name string
		set  bool
	}{
		{"Stall", c.CommandStreamerStallEnable},
		{"DcFlush", c.DcFlushEnable},
		{"RtCacheFlush", c.RenderTargetCacheFlushEnable},
		{"InstrCacheInv", c.InstructionCacheInvalidateEnable},
		{"TexCacheInv", c.TextureCacheInvalidationEnable},
		{"PipeFlush", c.PipeControlFlushEnable},
		{"VfCacheInv", c.VfCacheInvalidationEnable},
		{"ConstCacheInv", c.ConstantCacheInvalidationEnable},
		{"StateCacheInv", c.StateCacheInvalidationEnable},
		{"HdcPipelineFlush", c.HdcPipelineFlush},
		{"CcsFlush", c.CompressionControlSurfaceCcsFlush},
	}
	set := make([]string, 0, len(flags))
	for _, f := range flags {
		if f.set {
			set = append(set, f.name)
		}
	}
	return fmt.Sprintf("PipeControl(%s)", strings.Join(set, "|"))
}

// StateBaseAddress establishes the heap base pointers consulted by subsequent
// GPU-side state lookups. Each base/size pair is only honored by hardware when
// its modify-enable bit is set.
type StateBaseAddress struct {
	DynamicStateBaseAddressModifyEnable bool
	DynamicStateBufferSizeModifyEnable  bool
	DynamicStateBaseAddress             uint64
	DynamicStateBufferSize              uint32

	IndirectObjectBaseAddressModifyEnable bool
	IndirectObjectBufferSizeModifyEnable  bool
	IndirectObjectBaseAddress             uint64
	IndirectObjectBufferSize              uint32

	SurfaceStateBaseAddressModifyEnable bool
	SurfaceStateBaseAddress             uint64

	InstructionBaseAddressModifyEnable  bool
	InstructionBufferSizeModifyEnable   bool
	InstructionBaseAddress              uint64
	InstructionBufferSize               uint32
	InstructionMemoryObjectControlState uint32

	GeneralStateBaseAddressModifyEnable bool
	GeneralStateBufferSizeModifyEnable  bool
	GeneralStateBaseAddress             uint64
	GeneralStateBufferSize              uint32

	StatelessDataPortAccessMemoryObjectControlState uint32

	BindlessSurfaceStateBaseAddressModifyEnable bool
	BindlessSurfaceStateBaseAddress             uint64
	BindlessSurfaceStateSize                    uint32
}

const (
	sbaBitDynamicBase = iota
	sbaBitDynamicSize
	sbaBitIndirectBase
	sbaBitIndirectSize
	sbaBitSurfaceBase
	sbaBitInstructionBase
	sbaBitInstructionSize
	sbaBitGeneralBase
	sbaBitGeneralSize
	sbaBitBindlessBase
)

func (c StateBaseAddress) flags() uint32 {
	var b uint32
	b = setBit(b, sbaBitDynamicBase, c.DynamicStateBaseAddressModifyEnable)
	b = setBit(b, sbaBitDynamicSize, c.DynamicStateBufferSizeModifyEnable)
	b = setBit(b, sbaBitIndirectBase, c.IndirectObjectBaseAddressModifyEnable)
	b = setBit(b, sbaBitIndirectSize, c.IndirectObjectBufferSizeModifyEnable)
	b = setBit(b, sbaBitSurfaceBase, c.SurfaceStateBaseAddressModifyEnable)
	b = setBit(b, sbaBitInstructionBase, c.InstructionBaseAddressModifyEnable)
	b = setBit(b, sbaBitInstructionSize, c.InstructionBufferSizeModifyEnable)
	b = setBit(b, sbaBitGeneralBase, c.GeneralStateBaseAddressModifyEnable)
	b = setBit(b, sbaBitGeneralSize, c.GeneralStateBufferSizeModifyEnable)
	b = setBit(b, sbaBitBindlessBase, c.BindlessSurfaceStateBaseAddressModifyEnable)
	return b
}

func (c StateBaseAddress) String() string {
	return fmt.Sprintf("StateBaseAddress(Dynamic: 0x%x, Indirect: 0x%x, Surface: 0x%x, Instruction: 0x%x, General: 0x%x)",
		c.DynamicStateBaseAddress, c.IndirectObjectBaseAddress, c.SurfaceStateBaseAddress,
		c.InstructionBaseAddress, c.GeneralStateBaseAddress)
}

// BindingTablePoolAlloc programs the binding-table pool to track the
// surface-state heap. Emitted whenever the surface-state base is reprogrammed.
type BindingTablePoolAlloc struct {
	BindingTablePoolBaseAddress                uint64
	BindingTablePoolBufferSize                 uint32
	SurfaceObjectControlStateIndexToMocsTables uint32
}

func (c BindingTablePoolAlloc) String() string {
	return fmt.Sprintf("BindingTablePoolAlloc(Base: 0x%x, Size: %d, Mocs: %d)",
		c.BindingTablePoolBaseAddress, c.BindingTablePoolBufferSize,
		c.SurfaceObjectControlStateIndexToMocsTables)
}

// BatchBufferStart chains execution to another command buffer.
type BatchBufferStart struct {
	BatchBufferStartAddress uint64
}

func (c BatchBufferStart) String() string {
	return fmt.Sprintf("BatchBufferStart(Address: 0x%x)", c.BatchBufferStartAddress)
}

// BatchBufferEnd terminates a command buffer.
type BatchBufferEnd struct{}

func (BatchBufferEnd) String() string { return "BatchBufferEnd" }

// StoreDataImm writes an immediate qword to a GPU address. Used by the
// debugger's state-base-address tracking.
type StoreDataImm struct {
	Address uint64
	Value   uint64
}

func (c StoreDataImm) String() string {
	return fmt.Sprintf("StoreDataImm(Address: 0x%x, Value: 0x%x)", c.Address, c.Value)
}

func (Noop) isCommand()                  {}
func (PipeControl) isCommand()           {}
func (StateBaseAddress) isCommand()      {}
func (BindingTablePoolAlloc) isCommand() {}
func (BatchBufferStart) isCommand()      {}
func (BatchBufferEnd) isCommand()        {}
func (StoreDataImm) isCommand()          {}
