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

// Package csr implements the command-stream receiver: dirty-state tracking,
// barrier synthesis, state-base-address programming, the flush-task composer
// and the batched-submission aggregator.
package csr

import (
	"github.com/pkg/errors"

	"github.com/hongbolv/compute-runtime/core/data/binary"
	"github.com/hongbolv/compute-runtime/core/data/endian"
	"github.com/hongbolv/compute-runtime/driver/memory"
)

// CommandStream is a growable buffer of encoded commands with a used-byte
// cursor, backed by a graphics allocation. A stream is owned exclusively by
// its creator; commands are appended, never mutated in place.
type CommandStream struct {
	alloc *memory.GraphicsAllocation
	buf   []byte
	used  int
}

// NewCommandStream wraps the allocation as an empty command stream spanning
// the whole allocation.
func NewCommandStream(alloc *memory.GraphicsAllocation) *CommandStream {
	return &CommandStream{alloc: alloc, buf: make([]byte, alloc.Size())}
}

// Used returns the number of encoded bytes.
func (s *CommandStream) Used() int { return s.used }

// Available returns the remaining capacity in bytes.
func (s *CommandStream) Available() int { return len(s.buf) - s.used }

// Data returns the encoded bytes written so far.
func (s *CommandStream) Data() []byte { return s.buf[:s.used] }

// DataFrom returns the encoded bytes starting at the given offset.
func (s *CommandStream) DataFrom(offset int) []byte { return s.buf[offset:s.used] }

// GraphicsAllocation returns the stream's backing allocation.
func (s *CommandStream) GraphicsAllocation() *memory.GraphicsAllocation { return s.alloc }

// GpuBase returns the GPU address of the start of the stream.
func (s *CommandStream) GpuBase() uint64 { return s.alloc.GpuAddress() }

// Write implements io.Writer, appending into the backing buffer. It fails
// rather than growing: callers must reserve space with EnsureSpace before
// emitting, so a composed command set never straddles a reallocation.
func (s *CommandStream) Write(p []byte) (int, error) {
	if len(p) > s.Available() {
		return 0, errors.Errorf("command stream overflow: need %d bytes, have %d", len(p), s.Available())
	}
	copy(s.buf[s.used:], p)
	s.used += len(p)
	return len(p), nil
}

// Writer returns a little-endian command writer appending to the stream.
func (s *CommandStream) Writer() binary.Writer {
	return endian.Writer(s, endian.Little)
}

// AllocateSpace reserves n raw bytes in the stream and returns them for the
// caller to fill.
func (s *CommandStream) AllocateSpace(n int) ([]byte, error) {
	if n > s.Available() {
		return nil, errors.Errorf("command stream overflow: need %d bytes, have %d", n, s.Available())
	}
	p := s.buf[s.used : s.used+n]
	s.used += n
	return p, nil
}

// EnsureSpace grows the stream's backing allocation so at least n more bytes
// can be written. Growth replaces the whole backing allocation before any
// emission; already-written bytes are carried over. The replaced allocation
// may still be referenced by a pending command buffer, so it is released
// through the manager's deferred path and its GPU address stays reserved
// until every context has dropped it.
func (s *CommandStream) EnsureSpace(n int, mm *memory.Manager) error {
	if n <= s.Available() {
		return nil
	}
	size := uint64(len(s.buf)) * 2
	for size < uint64(s.used+n) {
		size *= 2
	}
	alloc, err := mm.Allocate(size, s.alloc.Type(), s.alloc.IsAllocatedInLocalMemoryPool())
	if err != nil {
		return errors.Wrap(err, "growing command stream")
	}
	buf := make([]byte, size)
	copy(buf, s.buf[:s.used])
	if err := mm.ReleaseWhenUnused(s.alloc); err != nil {
		return err
	}
	s.alloc, s.buf = alloc, buf
	return nil
}
