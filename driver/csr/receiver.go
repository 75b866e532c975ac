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
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/hongbolv/compute-runtime/core/data/binary"
	"github.com/hongbolv/compute-runtime/core/log"
	"github.com/hongbolv/compute-runtime/driver/cmds"
	"github.com/hongbolv/compute-runtime/driver/hwinfo"
	"github.com/hongbolv/compute-runtime/driver/memory"
)

const defaultStreamSize = 64 * 1024

// heapSnapshot is the last-programmed identity of one heap.
type heapSnapshot struct {
	base  uint64
	size  uint64
	valid bool
}

func snapshotOf(h *memory.Heap) heapSnapshot {
	return heapSnapshot{base: h.Base(), size: h.Size(), valid: true}
}

// changedBy reports whether programming for the given heap is required. A nil
// heap never forces reprogramming.
func (s heapSnapshot) changedBy(h *memory.Heap) bool {
	if h == nil {
		return false
	}
	return !s.valid || s.base != h.Base() || s.size != h.Size()
}

// Options configures a Receiver at construction.
type Options struct {
	ContextID                   uint32
	Mode                        DispatchMode
	Overrides                   OverrideConfig
	TimestampPacketWriteEnabled bool
	MultiOsContextCapable       bool
	BindlessHeapsEnabled        bool
	StreamSize                  uint64
}

// Receiver is the command-stream receiver. It owns a command stream, the
// dirty-state snapshot that decides which housekeeping commands each
// flush-task must emit, and the aggregator used by batched dispatch.
//
// A single mutex serializes flush-task against housekeeping calls such as
// RegisterInstructionCacheFlush, which may arrive from other threads.
type Receiver struct {
	mu sync.Mutex

	info      *hwinfo.Info
	enc       cmds.Encoders
	mm        *memory.Manager
	submitter Submitter
	overrides OverrideConfig

	contextID                   uint32
	mode                        DispatchMode
	timestampPacketWriteEnabled bool
	multiOsContextCapable       bool
	bindlessEnabled             bool

	stream     *CommandStream
	aggregator *SubmissionsAggregator

	taskCount  uint32
	taskLevel  uint32
	flushStamp uint64

	lastDSH               heapSnapshot
	lastIOH               heapSnapshot
	lastSSH               heapSnapshot
	forceStateBaseAddress bool
	lastPreemptionMode    *PreemptionMode
	samplerCacheFlush     SamplerCacheFlushState

	requiresInstructionCacheFlush bool

	preemptionAllocation  *memory.GraphicsAllocation
	sipAllocation         *memory.GraphicsAllocation
	globalFenceAllocation *memory.GraphicsAllocation
	clearColorAllocation  *memory.GraphicsAllocation
}

// NewReceiver creates a receiver with its own command stream.
func NewReceiver(info *hwinfo.Info, mm *memory.Manager, submitter Submitter, opts Options) (*Receiver, error) {
	size := opts.StreamSize
	if size == 0 {
		size = defaultStreamSize
	}
	alloc, err := mm.Allocate(size, memory.TypeLinearStream, false)
	if err != nil {
		return nil, errors.Wrap(err, "allocating receiver command stream")
	}
	return &Receiver{
		info:                        info,
		enc:                         cmds.For(info.Family),
		mm:                          mm,
		submitter:                   submitter,
		overrides:                   opts.Overrides,
		contextID:                   opts.ContextID,
		mode:                        opts.Mode,
		timestampPacketWriteEnabled: opts.TimestampPacketWriteEnabled,
		multiOsContextCapable:       opts.MultiOsContextCapable,
		bindlessEnabled:             opts.BindlessHeapsEnabled,
		stream:                      NewCommandStream(alloc),
		aggregator:                  NewSubmissionsAggregator(),
		forceStateBaseAddress:       true,
	}, nil
}

// Stream returns the receiver's owned command stream.
func (r *Receiver) Stream() *CommandStream { return r.stream }

// Aggregator returns the batched-submission queue.
func (r *Receiver) Aggregator() *SubmissionsAggregator { return r.aggregator }

// ContextID returns the OS context this receiver submits on.
func (r *Receiver) ContextID() uint32 { return r.contextID }

// TaskCount returns the count of flush-task calls issued so far.
func (r *Receiver) TaskCount() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.taskCount
}

// TaskLevel returns the last-submitted task level.
func (r *Receiver) TaskLevel() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.taskLevel
}

// FlushStamp returns the stamp of the last hardware submission.
func (r *Receiver) FlushStamp() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushStamp
}

// SamplerCacheFlushState returns the pending sampler-cache-flush state.
func (r *Receiver) SamplerCacheFlushState() SamplerCacheFlushState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.samplerCacheFlush
}

// SetSamplerCacheFlushRequired records a pending sampler cache flush
// requirement for the next flush-task.
func (r *Receiver) SetSamplerCacheFlushRequired(s SamplerCacheFlushState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samplerCacheFlush = s
}

// RegisterInstructionCacheFlush requests an instruction-cache invalidation
// barrier on the next flush-task. Safe to call from any thread.
func (r *Receiver) RegisterInstructionCacheFlush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requiresInstructionCacheFlush = true
}

// RequiresInstructionCacheFlush reports whether an instruction-cache flush is
// pending.
func (r *Receiver) RequiresInstructionCacheFlush() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requiresInstructionCacheFlush
}

// InitProgrammingFlags resets the programming state so the next flush-task
// reprograms state base addresses and the binding table pool even when heap
// identities are unchanged.
func (r *Receiver) InitProgrammingFlags() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forceStateBaseAddress = true
}

// SetPreemptionAllocations registers the preemption scratch and SIP kernel
// allocations kept resident across mid-thread-preemptible submissions.
func (r *Receiver) SetPreemptionAllocations(preemption, sip *memory.GraphicsAllocation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.preemptionAllocation, r.sipAllocation = preemption, sip
}

// SetGlobalFenceAllocation registers the global fence allocation.
func (r *Receiver) SetGlobalFenceAllocation(a *memory.GraphicsAllocation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.globalFenceAllocation = a
}

// SetClearColorAllocation registers the clear-color allocation.
func (r *Receiver) SetClearColorAllocation(a *memory.GraphicsAllocation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearColorAllocation = a
}

// CmdSizeForEpilogue returns the stream space an epilogue reservation needs
// for the given dispatch flags.
func (r *Receiver) CmdSizeForEpilogue(flags DispatchFlags) int {
	if flags.EpilogueRequired {
		return hwinfo.CacheLineSize
	}
	return 0
}

func alignUp(v, align int) int {
	return (v + align - 1) / align * align
}

// emit is one pending admin command: its encoded size and its writer.
type emit struct {
	size  int
	write func(binary.Writer) error
}

// FlushTask composes the housekeeping commands required by the current dirty
// state ahead of the client's stream and dispatches the result.
//
// In immediate mode the composed buffer is submitted to hardware and the
// flush stamp advanced. In batched mode the buffer and its resident surfaces
// are recorded on the aggregator and nothing reaches hardware until
// FlushBatchedSubmissions. When nothing is dirty and no override forces
// emission, the receiver's stream does not grow and no submission happens.
func (r *Receiver) FlushTask(ctx context.Context, taskStream *CommandStream, startOffset int,
	dsh, ioh, ssh *memory.Heap, taskLevel uint32, flags DispatchFlags) (CompletionStamp, error) {

	r.mu.Lock()
	defer r.mu.Unlock()

	preemption := flags.PreemptionMode
	if r.overrides.ForcePreemptionMode != nil {
		preemption = *r.overrides.ForcePreemptionMode
	}

	r.taskCount++

	sbaDirty := r.forceStateBaseAddress ||
		r.lastDSH.changedBy(dsh) || r.lastIOH.changedBy(ioh) || r.lastSSH.changedBy(ssh)
	sshDirty := r.forceStateBaseAddress || r.lastSSH.changedBy(ssh)
	levelBarrier := taskLevel > r.taskLevel && !r.timestampPacketWriteEnabled
	preemptionChanged := r.lastPreemptionMode == nil || *r.lastPreemptionMode != preemption
	samplerFlush := r.samplerCacheFlush != SamplerCacheFlushNotRequired &&
		r.info.Workarounds.SamplerCacheFlushBetweenRedescribedSurfaceReads
	icacheFlush := r.requiresInstructionCacheFlush

	var admin []emit
	addPC := func(pc BarrierSpec) {
		admin = append(admin, emit{r.enc.PipeControlSize(), func(w binary.Writer) error {
			return r.enc.PipeControl(w, pc)
		}})
	}

	if r.overrides.ForcePipeControlPriorToDispatch {
		if r.overrides.FlushAllCaches {
			// Bare stall first, then the all-cache barrier.
			addPC(stallBarrier())
		}
		addPC(applyBarrierOverrides(stallBarrier(), r.overrides, r.info))
	}
	if levelBarrier || samplerFlush || preemptionChanged {
		pc := stallBarrier()
		if samplerFlush {
			pc = samplerBarrier()
		}
		addPC(applyBarrierOverrides(pc, r.overrides, r.info))
	}
	if sbaDirty {
		addPC(applyBarrierOverrides(preSBABarrier(r.info), r.overrides, r.info))

		iohLocal := ioh != nil && ioh.GraphicsAllocation().IsAllocatedInLocalMemoryPool()
		internalBase := r.mm.InternalHeapBaseAddress(iohLocal)
		params := StateBaseAddressParams{
			DSH: dsh, IOH: ioh, SSH: ssh,
			GeneralStateBase:        internalBase,
			SetGeneralStateBase:     true,
			InternalHeapBase:        internalBase,
			InstructionHeapBase:     internalBase,
			SetInstructionStateBase: true,
			DisableCachingForHeaps:  r.overrides.DisableCachingForHeaps,
			CompressionState:        flags.MemoryCompressionState,
		}
		if r.bindlessEnabled && ssh != nil {
			params.UseBindlessHeaps = true
			params.BindlessSurfaceStateBase = ssh.Base()
			params.BindlessSurfaceStateSize = uint32(ssh.Size())
		}
		sba := ProgramStateBaseAddress(params, r.info)
		admin = append(admin, emit{r.enc.StateBaseAddressSize(), func(w binary.Writer) error {
			return r.enc.StateBaseAddress(w, sba)
		}})

		if sshDirty && ssh != nil {
			mocs := r.info.MOCS(hwinfo.UsageStateHeapBuffer)
			if r.overrides.DisableCachingForHeaps {
				mocs = r.info.MOCS(hwinfo.UsageSystemBufferCachelineMisaligned)
			}
			btp := cmds.BindingTablePoolAlloc{
				BindingTablePoolBaseAddress:                ssh.Base(),
				BindingTablePoolBufferSize:                 ssh.SizeInPages(),
				SurfaceObjectControlStateIndexToMocsTables: mocs,
			}
			admin = append(admin, emit{r.enc.BindingTablePoolAllocSize(), func(w binary.Writer) error {
				return r.enc.BindingTablePoolAlloc(w, btp)
			}})
		}
	}
	if icacheFlush {
		addPC(applyBarrierOverrides(instructionCacheBarrier(), r.overrides, r.info))
	}

	adminStart := r.stream.Used()
	chained := len(admin) > 0 || r.multiOsContextCapable
	csrWritten := false
	if chained {
		total := r.enc.BatchBufferStartSize()
		for _, e := range admin {
			total += e.size
		}
		reserve := alignUp(adminStart+total, hwinfo.CacheLineSize) - adminStart
		if err := r.stream.EnsureSpace(reserve, r.mm); err != nil {
			return CompletionStamp{}, err
		}
		w := r.stream.Writer()
		for _, e := range admin {
			if err := e.write(w); err != nil {
				return CompletionStamp{}, errors.Wrap(err, "emitting housekeeping commands")
			}
		}
		start := cmds.BatchBufferStart{
			BatchBufferStartAddress: hwinfo.Canonize(taskStream.GpuBase() + uint64(startOffset)),
		}
		if err := r.enc.BatchBufferStart(w, start); err != nil {
			return CompletionStamp{}, err
		}
		for r.stream.Used()%hwinfo.CacheLineSize != 0 {
			if err := r.enc.Noop(w); err != nil {
				return CompletionStamp{}, err
			}
		}
		csrWritten = true
	}

	clientWritten := false
	if flags.Blocking || flags.GuardCommandBufferWithPipeControl {
		pc := applyBarrierOverrides(stallBarrier(), r.overrides, r.info)
		if err := taskStream.EnsureSpace(r.enc.PipeControlSize(), r.mm); err != nil {
			return CompletionStamp{}, err
		}
		w := taskStream.Writer()
		if err := r.enc.PipeControl(w, pc); err != nil {
			return CompletionStamp{}, errors.Wrap(err, "guarding client stream")
		}
		clientWritten = true
	}

	batched := r.mode == BatchedDispatch
	if batched && (csrWritten || clientWritten) {
		// The recorded buffer must be self-terminating; pad so a later
		// chaining batch-buffer-start can overwrite the terminator in place.
		used := taskStream.Used()
		reserve := alignUp(used+r.enc.BatchBufferEndSize(), hwinfo.CacheLineSize) - used
		if err := taskStream.EnsureSpace(reserve, r.mm); err != nil {
			return CompletionStamp{}, err
		}
		w := taskStream.Writer()
		if err := r.enc.BatchBufferEnd(w); err != nil {
			return CompletionStamp{}, err
		}
		for taskStream.Used()%hwinfo.CacheLineSize != 0 {
			if err := r.enc.Noop(w); err != nil {
				return CompletionStamp{}, err
			}
		}
		clientWritten = true
	}

	if flags.EpilogueRequired && !batched {
		if err := r.emitEpilogue(taskStream); err != nil {
			return CompletionStamp{}, err
		}
		clientWritten = true
		csrWritten = true
	}

	stamp := CompletionStamp{TaskCount: r.taskCount, TaskLevel: taskLevel, FlushStamp: r.flushStamp}

	if csrWritten || clientWritten {
		surfaces := r.residencySet(taskStream, dsh, ioh, ssh, preemption, csrWritten)
		for _, a := range surfaces {
			r.mm.MakeResident(r.contextID, a, r.taskCount)
		}
		bb := BatchBuffer{
			Allocation:        taskStream.GraphicsAllocation(),
			StartOffset:       startOffset,
			RequiresCoherency: flags.RequiresCoherency,
			LowPriority:       flags.LowPriority,
		}
		if chained {
			bb.Allocation = r.stream.GraphicsAllocation()
			bb.StartOffset = adminStart
		}
		if batched {
			r.aggregator.RecordCommandBuffer(&CommandBuffer{
				BatchBuffer: bb,
				Surfaces:    surfaces,
				TaskCount:   r.taskCount,
			})
			log.D(ctx, "recorded batched submission",
				"taskCount", r.taskCount, "surfaces", len(surfaces))
		} else {
			fs, err := r.submitter.SubmitBatchBuffer(ctx, bb, surfaces)
			if err != nil {
				return CompletionStamp{}, errors.Wrap(err, "hardware submission failed")
			}
			r.flushStamp = fs
			stamp.FlushStamp = fs
			for _, a := range surfaces {
				r.mm.MakeNonResident(r.contextID, a)
			}
			log.D(ctx, "flushed task", "taskCount", r.taskCount, "flushStamp", fs)
		}
	}

	// Commit the snapshot to the just-used values so an unchanged second
	// call is a no-op, whether or not anything was emitted this time.
	if dsh != nil {
		r.lastDSH = snapshotOf(dsh)
	}
	if ioh != nil {
		r.lastIOH = snapshotOf(ioh)
	}
	if ssh != nil {
		r.lastSSH = snapshotOf(ssh)
	}
	r.forceStateBaseAddress = false
	r.taskLevel = taskLevel
	p := preemption
	r.lastPreemptionMode = &p
	if icacheFlush {
		r.requiresInstructionCacheFlush = false
	}
	if samplerFlush {
		switch r.samplerCacheFlush {
		case SamplerCacheFlushBefore:
			r.samplerCacheFlush = SamplerCacheFlushAfterRedescribedSurfaceRead
		case SamplerCacheFlushAfterRedescribedSurfaceRead:
			r.samplerCacheFlush = SamplerCacheFlushNotRequired
		}
	}

	return stamp, nil
}

// emitEpilogue chains the client stream into the receiver's stream, which
// carries the terminator. Both streams are padded to the cache line.
func (r *Receiver) emitEpilogue(taskStream *CommandStream) error {
	epilogueStart := r.stream.Used()

	used := taskStream.Used()
	reserve := alignUp(used+r.enc.BatchBufferStartSize(), hwinfo.CacheLineSize) - used
	if err := taskStream.EnsureSpace(reserve, r.mm); err != nil {
		return err
	}
	w := taskStream.Writer()
	start := cmds.BatchBufferStart{
		BatchBufferStartAddress: hwinfo.Canonize(r.stream.GpuBase() + uint64(epilogueStart)),
	}
	if err := r.enc.BatchBufferStart(w, start); err != nil {
		return err
	}
	for taskStream.Used()%hwinfo.CacheLineSize != 0 {
		if err := r.enc.Noop(w); err != nil {
			return err
		}
	}

	reserve = alignUp(epilogueStart+r.enc.BatchBufferEndSize(), hwinfo.CacheLineSize) - epilogueStart
	if err := r.stream.EnsureSpace(reserve, r.mm); err != nil {
		return err
	}
	cw := r.stream.Writer()
	if err := r.enc.BatchBufferEnd(cw); err != nil {
		return err
	}
	for r.stream.Used()%hwinfo.CacheLineSize != 0 {
		if err := r.enc.Noop(cw); err != nil {
			return err
		}
	}
	return nil
}

// residencySet collects every allocation referenced by this submission, in a
// stable order: the four client surfaces first, then the receiver-owned ones.
func (r *Receiver) residencySet(taskStream *CommandStream, dsh, ioh, ssh *memory.Heap,
	preemption PreemptionMode, csrWritten bool) []*memory.GraphicsAllocation {

	var out []*memory.GraphicsAllocation
	add := func(a *memory.GraphicsAllocation) {
		if a != nil {
			out = append(out, a)
		}
	}
	if dsh != nil {
		add(dsh.GraphicsAllocation())
	}
	if ioh != nil {
		add(ioh.GraphicsAllocation())
	}
	if ssh != nil {
		add(ssh.GraphicsAllocation())
	}
	add(taskStream.GraphicsAllocation())
	if preemption == PreemptionMidThread {
		add(r.preemptionAllocation)
		add(r.sipAllocation)
	}
	add(r.globalFenceAllocation)
	add(r.clearColorAllocation)
	if csrWritten {
		add(r.stream.GraphicsAllocation())
	}
	return out
}

// FlushBatchedSubmissions drains the aggregator in FIFO order, submitting
// each recorded buffer exactly once and releasing its surfaces' residency
// after submission. A submission failure aborts the drain: the failed buffer
// and everything behind it stay queued and resident.
func (r *Receiver) FlushBatchedSubmissions(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		cb := r.aggregator.PeekHead()
		if cb == nil {
			return nil
		}
		fs, err := r.submitter.SubmitBatchBuffer(ctx, cb.BatchBuffer, cb.Surfaces)
		if err != nil {
			return errors.Wrapf(err, "flushing batched submission with task count %d", cb.TaskCount)
		}
		r.aggregator.popHead()
		r.flushStamp = fs
		for _, a := range cb.Surfaces {
			r.mm.MakeNonResident(r.contextID, a)
		}
		log.D(ctx, "submitted batched buffer", "taskCount", cb.TaskCount, "flushStamp", fs)
	}
}
