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

// Package binary holds the sticky-error Writer and Reader interfaces used to
// encode and decode GPU command dwords.
package binary

// Writer provides methods for encoding values.
//
// If any write fails, all further writing becomes a no-op and the first error
// is retained.
type Writer interface {
	// Data writes the data bytes in their entirety.
	Data([]byte)
	// Uint8 encodes an unsigned, 8 bit integer value to the Writer.
	Uint8(uint8)
	// Uint16 encodes an unsigned, 16 bit integer value to the Writer.
	Uint16(uint16)
	// Uint32 encodes an unsigned, 32 bit integer value to the Writer.
	Uint32(uint32)
	// Uint64 encodes an unsigned, 64 bit integer value to the Writer.
	Uint64(uint64)
	// Error returns the error that stopped writing, or nil if writing has not
	// stopped.
	Error() error
	// SetError sets the error state and stops writing to the stream.
	SetError(error)
}

// Reader provides methods for decoding values.
//
// If any read fails, all further reading becomes a no-op and the first error
// is retained.
type Reader interface {
	// Data reads len(p) bytes in their entirety.
	Data(p []byte)
	// Uint8 decodes and returns an unsigned, 8 bit integer from the Reader.
	Uint8() uint8
	// Uint16 decodes and returns an unsigned, 16 bit integer from the Reader.
	Uint16() uint16
	// Uint32 decodes and returns an unsigned, 32 bit integer from the Reader.
	Uint32() uint32
	// Uint64 decodes and returns an unsigned, 64 bit integer from the Reader.
	Uint64() uint64
	// Error returns the error that stopped reading, or nil if reading has not
	// stopped.
	Error() error
	// SetError sets the error state and stops reading from the stream.
	SetError(error)
}

// WriteBytes writes the given v for count times to writer w.
func WriteBytes(w Writer, v uint8, count int) {
	for i := 0; i < count; i++ {
		w.Uint8(v)
	}
}
