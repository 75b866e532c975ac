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
	"bytes"
	"io"

	"github.com/pkg/errors"

	"github.com/hongbolv/compute-runtime/core/data/binary"
	"github.com/hongbolv/compute-runtime/core/data/endian"
)

// Decode returns the next command decoded from r.
func Decode(r binary.Reader) (Command, error) {
	header := r.Uint32()
	if r.Error() != nil {
		return nil, r.Error()
	}
	code, body := unpackOp(header), unpackBody(header)
	switch code {
	case opNoop:
		return Noop{}, nil
	case opPipeControl:
		bits := r.Uint32()
		var ext uint32
		if body > 1 {
			ext = r.Uint32()
		}
		if r.Error() != nil {
			return nil, r.Error()
		}
		return pipeControlFromBits(bits, ext), nil
	case opBatchBufferStart:
		c := BatchBufferStart{BatchBufferStartAddress: r.Uint64()}
		return c, r.Error()
	case opBatchBufferEnd:
		return BatchBufferEnd{}, nil
	case opStateBaseAddress:
		flags := r.Uint32()
		c := StateBaseAddress{
			DynamicStateBaseAddressModifyEnable:         bit(flags, sbaBitDynamicBase),
			DynamicStateBufferSizeModifyEnable:          bit(flags, sbaBitDynamicSize),
			IndirectObjectBaseAddressModifyEnable:       bit(flags, sbaBitIndirectBase),
			IndirectObjectBufferSizeModifyEnable:        bit(flags, sbaBitIndirectSize),
			SurfaceStateBaseAddressModifyEnable:         bit(flags, sbaBitSurfaceBase),
			InstructionBaseAddressModifyEnable:          bit(flags, sbaBitInstructionBase),
			InstructionBufferSizeModifyEnable:           bit(flags, sbaBitInstructionSize),
			GeneralStateBaseAddressModifyEnable:         bit(flags, sbaBitGeneralBase),
			GeneralStateBufferSizeModifyEnable:          bit(flags, sbaBitGeneralSize),
			BindlessSurfaceStateBaseAddressModifyEnable: bit(flags, sbaBitBindlessBase),
		}
		c.DynamicStateBaseAddress = r.Uint64()
		c.DynamicStateBufferSize = r.Uint32()
		c.IndirectObjectBaseAddress = r.Uint64()
		c.IndirectObjectBufferSize = r.Uint32()
		c.SurfaceStateBaseAddress = r.Uint64()
		c.InstructionBaseAddress = r.Uint64()
		c.InstructionBufferSize = r.Uint32()
		c.InstructionMemoryObjectControlState = r.Uint32()
		c.GeneralStateBaseAddress = r.Uint64()
		c.GeneralStateBufferSize = r.Uint32()
		c.StatelessDataPortAccessMemoryObjectControlState = r.Uint32()
		c.BindlessSurfaceStateBaseAddress = r.Uint64()
		c.BindlessSurfaceStateSize = r.Uint32()
		return c, r.Error()
	case opBindingTablePoolAlloc:
		c := BindingTablePoolAlloc{
			BindingTablePoolBaseAddress:                r.Uint64(),
			BindingTablePoolBufferSize:                 r.Uint32(),
			SurfaceObjectControlStateIndexToMocsTables: r.Uint32(),
		}
		return c, r.Error()
	case opStoreDataImm:
		c := StoreDataImm{Address: r.Uint64(), Value: r.Uint64()}
		return c, r.Error()
	default:
		return nil, errors.Errorf("unknown command with opcode %d", int(code))
	}
}

// Disassemble parses the whole of data into the commands it encodes. The
// trailing noop padding of a composed buffer is returned as Noop commands.
func Disassemble(data []byte) ([]Command, error) {
	r := endian.Reader(bytes.NewReader(data), endian.Little)
	var out []Command
	for {
		c, err := Decode(r)
		switch {
		case errors.Cause(err) == io.EOF:
			return out, nil
		case err != nil:
			return nil, errors.Wrapf(err, "disassembling at command %d", len(out))
		}
		out = append(out, c)
	}
}
