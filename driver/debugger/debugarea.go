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

package debugger

import (
	"bytes"

	"github.com/hongbolv/compute-runtime/core/data/endian"
	"github.com/hongbolv/compute-runtime/driver/hwinfo"
)

// Module debug area header constants. The in-kernel debug routines identify
// the area by magic and version, so these values are part of the debugger ABI.
const (
	debugAreaMagic   = "dbgarea"
	debugAreaVersion = 1

	// debugAreaHeaderSize is the encoded header length in bytes.
	debugAreaHeaderSize = 32
)

// encodeDebugAreaHeader builds the header image written to the start of the
// module debug area. The scratch region spans the remainder of the 64KiB area.
//
// Layout, little-endian:
//
//	0x00  magic, 8 bytes, NUL padded
//	0x08  reserved
//	0x10  version (u8), page size in 64KiB units (u8), header size (u8), pad
//	0x14  scratch begin (u16), scratch end (u16)
//	0x18  shared flag (u64)
func encodeDebugAreaHeader(shared bool) []byte {
	buf := &bytes.Buffer{}
	w := endian.Writer(buf, endian.Little)

	magic := make([]byte, 8)
	copy(magic, debugAreaMagic)
	w.Data(magic)
	w.Uint64(0)
	w.Uint8(debugAreaVersion)
	w.Uint8(1)
	w.Uint8(debugAreaHeaderSize)
	w.Uint8(0)
	w.Uint16(debugAreaHeaderSize)
	w.Uint16(hwinfo.PageSize64K - debugAreaHeaderSize)
	var sharedBit uint64
	if shared {
		sharedBit = 1
	}
	w.Uint64(sharedBit)

	return buf.Bytes()
}
