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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongbolv/compute-runtime/core/data/endian"
	"github.com/hongbolv/compute-runtime/driver/hwinfo"
)

func TestForSelectsEncodersByFamily(t *testing.T) {
	assert.IsType(t, gen12Encoders{}, For(hwinfo.Gen12LP))
	assert.IsType(t, xeEncoders{}, For(hwinfo.XeHP))
	assert.IsType(t, xeEncoders{}, For(hwinfo.XeHPC))
}

func TestPipeControlEncodingPerFamily(t *testing.T) {
	pc := PipeControl{
		CommandStreamerStallEnable:     true,
		DcFlushEnable:                  true,
		TextureCacheInvalidationEnable: true,
		HdcPipelineFlush:               true,
	}

	for _, test := range []struct {
		name string
		enc  Encoders
		size int
	}{
		{"Gen12LP", For(hwinfo.Gen12LP), 8},
		{"XeHP", For(hwinfo.XeHP), 12},
	} {
		t.Run(test.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			w := endian.Writer(buf, endian.Little)
			require.NoError(t, test.enc.PipeControl(w, pc))
			assert.Equal(t, test.size, buf.Len())
			assert.Equal(t, test.size, test.enc.PipeControlSize())

			got, err := Decode(endian.Reader(buf, endian.Little))
			require.NoError(t, err)
			assert.Equal(t, pc, got)
		})
	}
}

func TestGen12RejectsCcsFlush(t *testing.T) {
	buf := &bytes.Buffer{}
	w := endian.Writer(buf, endian.Little)
	assert.Panics(t, func() {
		For(hwinfo.Gen12LP).PipeControl(w, PipeControl{CompressionControlSurfaceCcsFlush: true})
	})
}

func TestXeHPEncodesCcsFlush(t *testing.T) {
	buf := &bytes.Buffer{}
	w := endian.Writer(buf, endian.Little)
	pc := PipeControl{CommandStreamerStallEnable: true, CompressionControlSurfaceCcsFlush: true}
	require.NoError(t, For(hwinfo.XeHP).PipeControl(w, pc))

	got, err := Decode(endian.Reader(buf, endian.Little))
	require.NoError(t, err)
	assert.Equal(t, pc, got)
}

func TestStateBaseAddressRoundTrip(t *testing.T) {
	enc := For(hwinfo.XeHP)
	c := StateBaseAddress{
		DynamicStateBaseAddressModifyEnable:             true,
		DynamicStateBufferSizeModifyEnable:              true,
		DynamicStateBaseAddress:                         0x8000_1000,
		DynamicStateBufferSize:                          4,
		IndirectObjectBaseAddressModifyEnable:           true,
		IndirectObjectBaseAddress:                       0x8000_3000,
		IndirectObjectBufferSize:                        2,
		SurfaceStateBaseAddressModifyEnable:             true,
		SurfaceStateBaseAddress:                         0x8000_5000,
		InstructionBaseAddressModifyEnable:              true,
		InstructionBufferSizeModifyEnable:               true,
		InstructionBaseAddress:                          0x4000_0000,
		InstructionBufferSize:                           hwinfo.SizeOf4GBInPageEntities,
		InstructionMemoryObjectControlState:             4,
		GeneralStateBaseAddressModifyEnable:             true,
		GeneralStateBufferSizeModifyEnable:              true,
		GeneralStateBaseAddress:                         0x4000_0000,
		GeneralStateBufferSize:                          hwinfo.GeneralStateMaxBufferSize,
		StatelessDataPortAccessMemoryObjectControlState: 10,
		BindlessSurfaceStateBaseAddressModifyEnable:     true,
		BindlessSurfaceStateBaseAddress:                 0x8000_5000,
		BindlessSurfaceStateSize:                        64,
	}

	buf := &bytes.Buffer{}
	w := endian.Writer(buf, endian.Little)
	require.NoError(t, enc.StateBaseAddress(w, c))
	assert.Equal(t, enc.StateBaseAddressSize(), buf.Len())

	got, err := Decode(endian.Reader(buf, endian.Little))
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestDisassembleComposedBuffer(t *testing.T) {
	enc := For(hwinfo.XeHP)
	buf := &bytes.Buffer{}
	w := endian.Writer(buf, endian.Little)

	pc := PipeControl{CommandStreamerStallEnable: true}
	btp := BindingTablePoolAlloc{
		BindingTablePoolBaseAddress: 0x8000_0000,
		BindingTablePoolBufferSize:  16,
		SurfaceObjectControlStateIndexToMocsTables: 4,
	}
	start := BatchBufferStart{BatchBufferStartAddress: 0x8000_4000}
	sdi := StoreDataImm{Address: 0x4000_1000, Value: 0xdead_beef}

	require.NoError(t, enc.PipeControl(w, pc))
	require.NoError(t, enc.BindingTablePoolAlloc(w, btp))
	require.NoError(t, enc.StoreDataImm(w, sdi))
	require.NoError(t, enc.BatchBufferStart(w, start))
	require.NoError(t, enc.BatchBufferEnd(w))
	require.NoError(t, enc.Noop(w))
	require.NoError(t, enc.Noop(w))

	got, err := Disassemble(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []Command{pc, btp, sdi, start, BatchBufferEnd{}, Noop{}, Noop{}}, got)
}

func TestDisassembleUnknownOpcode(t *testing.T) {
	buf := &bytes.Buffer{}
	w := endian.Writer(buf, endian.Little)
	w.Uint32(0x7f << 24)
	require.NoError(t, w.Error())

	_, err := Disassemble(buf.Bytes())
	assert.Error(t, err)
}

func TestDisassembleTruncatedBody(t *testing.T) {
	enc := For(hwinfo.XeHP)
	buf := &bytes.Buffer{}
	w := endian.Writer(buf, endian.Little)
	require.NoError(t, enc.StoreDataImm(w, StoreDataImm{Address: 1, Value: 2}))

	_, err := Disassemble(buf.Bytes()[:buf.Len()-3])
	assert.Error(t, err)
}

func TestHeaderPacking(t *testing.T) {
	h := packHeader(opPipeControl, 2)
	assert.Equal(t, opPipeControl, unpackOp(h))
	assert.Equal(t, uint32(2), unpackBody(h))

	assert.Panics(t, func() { packHeader(opNoop, 0x100) })
}

func TestCommandStrings(t *testing.T) {
	assert.Equal(t, "Noop", Noop{}.String())
	assert.Equal(t, "BatchBufferEnd", BatchBufferEnd{}.String())
	assert.Contains(t, PipeControl{CommandStreamerStallEnable: true, DcFlushEnable: true}.String(), "Stall|DcFlush")
	assert.Contains(t, StoreDataImm{Address: 0x10, Value: 0x20}.String(), "0x10")
}
