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

package cmds

import (
	"fmt"

	"github.com/hongbolv/compute-runtime/core/data/binary"
	"github.com/hongbolv/compute-runtime/driver/hwinfo"
)

// PipeControlEncoder encodes barrier commands.
type PipeControlEncoder interface {
	PipeControl(w binary.Writer, c PipeControl) error
	PipeControlSize() int
}

// StateBaseAddressEncoder encodes state-base-address commands.
type StateBaseAddressEncoder interface {
	StateBaseAddress(w binary.Writer, c StateBaseAddress) error
	StateBaseAddressSize() int
}

// BindingTablePoolEncoder encodes binding-table-pool-allocation commands.
type BindingTablePoolEncoder interface {
	BindingTablePoolAlloc(w binary.Writer, c BindingTablePoolAlloc) error
	BindingTablePoolAllocSize() int
}

// BatchBufferEncoder encodes buffer chaining, termination and padding.
type BatchBufferEncoder interface {
	BatchBufferStart(w binary.Writer, c BatchBufferStart) error
	BatchBufferStartSize() int
	BatchBufferEnd(w binary.Writer) error
	BatchBufferEndSize() int
	Noop(w binary.Writer) error
	NoopSize() int
}

// StoreDataEncoder encodes immediate data stores.
type StoreDataEncoder interface {
	StoreDataImm(w binary.Writer, c StoreDataImm) error
	StoreDataImmSize() int
}

// Encoders is the per-family command encoder set, selected once at device
// construction by the family tag.
type Encoders interface {
	PipeControlEncoder
	StateBaseAddressEncoder
	BindingTablePoolEncoder
	BatchBufferEncoder
	StoreDataEncoder
}

// For returns the encoder set for the given hardware family.
func For(f hwinfo.Family) Encoders {
	if f.AtLeastXeHP() {
		return xeEncoders{}
	}
	return gen12Encoders{}
}

// gen12Encoders is the baseline encoder set.
type gen12Encoders struct{}

func (gen12Encoders) PipeControl(w binary.Writer, c PipeControl) error {
	if c.CompressionControlSurfaceCcsFlush {
		panic(fmt.Errorf("compression control surface CCS flush is not encodable on Gen12LP"))
	}
	w.Uint32(packHeader(opPipeControl, 1))
	w.Uint32(c.bits())
	return w.Error()
}

func (gen12Encoders) PipeControlSize() int { return 8 }

func (gen12Encoders) StateBaseAddress(w binary.Writer, c StateBaseAddress) error {
	w.Uint32(packHeader(opStateBaseAddress, 20))
	w.Uint32(c.flags())
	w.Uint64(c.DynamicStateBaseAddress)
	w.Uint32(c.DynamicStateBufferSize)
	w.Uint64(c.IndirectObjectBaseAddress)
	w.Uint32(c.IndirectObjectBufferSize)
	w.Uint64(c.SurfaceStateBaseAddress)
	w.Uint64(c.InstructionBaseAddress)
	w.Uint32(c.InstructionBufferSize)
	w.Uint32(c.InstructionMemoryObjectControlState)
	w.Uint64(c.GeneralStateBaseAddress)
	w.Uint32(c.GeneralStateBufferSize)
	w.Uint32(c.StatelessDataPortAccessMemoryObjectControlState)
	w.Uint64(c.BindlessSurfaceStateBaseAddress)
	w.Uint32(c.BindlessSurfaceStateSize)
	return w.Error()
}

func (gen12Encoders) StateBaseAddressSize() int { return 4 * 21 }

func (gen12Encoders) BindingTablePoolAlloc(w binary.Writer, c BindingTablePoolAlloc) error {
	w.Uint32(packHeader(opBindingTablePoolAlloc, 4))
	w.Uint64(c.BindingTablePoolBaseAddress)
	w.Uint32(c.BindingTablePoolBufferSize)
	w.Uint32(c.SurfaceObjectControlStateIndexToMocsTables)
	return w.Error()
}

func (gen12Encoders) BindingTablePoolAllocSize() int { return 4 * 5 }

func (gen12Encoders) BatchBufferStart(w binary.Writer, c BatchBufferStart) error {
	w.Uint32(packHeader(opBatchBufferStart, 2))
	w.Uint64(c.BatchBufferStartAddress)
	return w.Error()
}

func (gen12Encoders) BatchBufferStartSize() int { return 12 }

func (gen12Encoders) BatchBufferEnd(w binary.Writer) error {
	w.Uint32(packHeader(opBatchBufferEnd, 0))
	return w.Error()
}

func (gen12Encoders) BatchBufferEndSize() int { return 4 }

func (gen12Encoders) Noop(w binary.Writer) error {
	w.Uint32(packHeader(opNoop, 0))
	return w.Error()
}

func (gen12Encoders) NoopSize() int { return 4 }

func (gen12Encoders) StoreDataImm(w binary.Writer, c StoreDataImm) error {
	w.Uint32(packHeader(opStoreDataImm, 4))
	w.Uint64(c.Address)
	w.Uint64(c.Value)
	return w.Error()
}

func (gen12Encoders) StoreDataImmSize() int { return 4 * 5 }

// xeEncoders extends the baseline set with the XeHP+ pipe-control fields.
type xeEncoders struct {
	gen12Encoders
}

func (xeEncoders) PipeControl(w binary.Writer, c PipeControl) error {
	w.Uint32(packHeader(opPipeControl, 2))
	w.Uint32(c.bits())
	w.Uint32(setBit(0, pcExtBitCcsFlush, c.CompressionControlSurfaceCcsFlush))
	return w.Error()
}

func (xeEncoders) PipeControlSize() int { return 12 }
