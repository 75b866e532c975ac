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

// Package debugger implements the program-debugger support surface: the
// per-context state-base-address tracking buffers a debug agent reads, the
// module debug area shared with in-kernel debug routines, and the attention
// bitmask used to target thread-control operations.
package debugger

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/hongbolv/compute-runtime/core/log"
	"github.com/hongbolv/compute-runtime/driver/cmds"
	"github.com/hongbolv/compute-runtime/driver/csr"
	"github.com/hongbolv/compute-runtime/driver/hwinfo"
	"github.com/hongbolv/compute-runtime/driver/memory"
)

// SbaAddresses is one snapshot of the programmed state base addresses.
type SbaAddresses struct {
	GeneralStateBaseAddress         uint64
	SurfaceStateBaseAddress         uint64
	DynamicStateBaseAddress         uint64
	IndirectObjectBaseAddress       uint64
	InstructionBaseAddress          uint64
	BindlessSurfaceStateBaseAddress uint64
}

// Tracking buffer layout: an identification header followed by one qword per
// tracked base address. The debug agent locates fields by these offsets, so
// they are part of the debugger ABI and must not move.
const (
	sbaTrackingHeaderSize = 24

	offGeneralStateBase         = sbaTrackingHeaderSize + 0*8
	offSurfaceStateBase         = sbaTrackingHeaderSize + 1*8
	offDynamicStateBase         = sbaTrackingHeaderSize + 2*8
	offIndirectObjectBase       = sbaTrackingHeaderSize + 3*8
	offInstructionBase          = sbaTrackingHeaderSize + 4*8
	offBindlessSurfaceStateBase = sbaTrackingHeaderSize + 5*8
)

type contextState struct {
	alloc *memory.GraphicsAllocation
	last  SbaAddresses
}

// Debugger owns the debug-mode allocations for one device.
type Debugger struct {
	info *hwinfo.Info
	mm   *memory.Manager
	enc  cmds.Encoders

	mu         sync.Mutex
	perContext map[uint32]*contextState

	moduleDebugArea *memory.GraphicsAllocation
	debugAreaHeader []byte
}

// New creates a debugger and its module debug area.
func New(info *hwinfo.Info, mm *memory.Manager) (*Debugger, error) {
	area, err := mm.Allocate(hwinfo.PageSize64K, memory.TypeDebugArea, info.MultiTileCapable())
	if err != nil {
		return nil, errors.Wrap(err, "allocating module debug area")
	}
	d := &Debugger{
		info:            info,
		mm:              mm,
		enc:             cmds.For(info.Family),
		perContext:      map[uint32]*contextState{},
		moduleDebugArea: area,
		debugAreaHeader: encodeDebugAreaHeader(!info.MultiTileCapable()),
	}
	return d, nil
}

// ModuleDebugArea returns the shared debug area allocation and the header
// image that must be transferred to its start.
func (d *Debugger) ModuleDebugArea() (*memory.GraphicsAllocation, []byte) {
	return d.moduleDebugArea, d.debugAreaHeader
}

// RegisterContext allocates the state-base-address tracking buffer for one
// OS context. Registering a context twice is an error.
func (d *Debugger) RegisterContext(ctxID uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.perContext[ctxID]; ok {
		return errors.Errorf("context %d already registered", ctxID)
	}
	alloc, err := d.mm.Allocate(hwinfo.PageSize, memory.TypeDebugArea, false)
	if err != nil {
		return errors.Wrapf(err, "allocating tracking buffer for context %d", ctxID)
	}
	d.perContext[ctxID] = &contextState{alloc: alloc}
	return nil
}

// TrackingBuffer returns the tracking allocation for a registered context.
func (d *Debugger) TrackingBuffer(ctxID uint32) (*memory.GraphicsAllocation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.perContext[ctxID]
	if !ok {
		return nil, errors.Errorf("context %d not registered", ctxID)
	}
	return st.alloc, nil
}

// CaptureStateBaseAddress emits tracking writes into the stream for every base
// address that differs from the last captured snapshot. An unchanged snapshot
// emits nothing and does not grow the stream.
func (d *Debugger) CaptureStateBaseAddress(ctx context.Context, ctxID uint32,
	stream *csr.CommandStream, sba SbaAddresses) error {

	d.mu.Lock()
	defer d.mu.Unlock()

	st, ok := d.perContext[ctxID]
	if !ok {
		return errors.Errorf("context %d not registered", ctxID)
	}

	base := st.alloc.GpuAddress()
	var writes []cmds.StoreDataImm
	track := func(offset uint64, prev, next uint64) {
		if prev != next {
			writes = append(writes, cmds.StoreDataImm{Address: base + offset, Value: next})
		}
	}
	track(offGeneralStateBase, st.last.GeneralStateBaseAddress, sba.GeneralStateBaseAddress)
	track(offSurfaceStateBase, st.last.SurfaceStateBaseAddress, sba.SurfaceStateBaseAddress)
	track(offDynamicStateBase, st.last.DynamicStateBaseAddress, sba.DynamicStateBaseAddress)
	track(offIndirectObjectBase, st.last.IndirectObjectBaseAddress, sba.IndirectObjectBaseAddress)
	track(offInstructionBase, st.last.InstructionBaseAddress, sba.InstructionBaseAddress)
	track(offBindlessSurfaceStateBase, st.last.BindlessSurfaceStateBaseAddress, sba.BindlessSurfaceStateBaseAddress)

	if len(writes) == 0 {
		return nil
	}
	if err := stream.EnsureSpace(len(writes)*d.enc.StoreDataImmSize(), d.mm); err != nil {
		return err
	}
	w := stream.Writer()
	for _, sdi := range writes {
		if err := d.enc.StoreDataImm(w, sdi); err != nil {
			return errors.Wrap(err, "emitting tracking write")
		}
	}
	st.last = sba
	log.D(ctx, "captured state base addresses", "context", ctxID, "writes", len(writes))
	return nil
}

// Close frees every debug allocation.
func (d *Debugger) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, st := range d.perContext {
		d.mm.Free(st.alloc)
		delete(d.perContext, id)
	}
	if d.moduleDebugArea != nil {
		d.mm.Free(d.moduleDebugArea)
		d.moduleDebugArea = nil
	}
}
