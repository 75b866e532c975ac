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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hongbolv/compute-runtime/core/log"
	"github.com/hongbolv/compute-runtime/driver/cmds"
	"github.com/hongbolv/compute-runtime/driver/hwinfo"
	"github.com/hongbolv/compute-runtime/driver/memory"
)

type recordedSubmission struct {
	bb       BatchBuffer
	surfaces []*memory.GraphicsAllocation
}

// fakeSubmitter records submissions and hands out increasing flush stamps.
type fakeSubmitter struct {
	mu          sync.Mutex
	submissions []recordedSubmission
	nextStamp   uint64
	err         error
}

func (s *fakeSubmitter) SubmitBatchBuffer(ctx context.Context, bb BatchBuffer,
	surfaces []*memory.GraphicsAllocation) (uint64, error) {

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.submissions = append(s.submissions, recordedSubmission{bb: bb, surfaces: surfaces})
	s.nextStamp++
	return s.nextStamp, nil
}

func (s *fakeSubmitter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.submissions)
}

func (s *fakeSubmitter) last(t *testing.T) recordedSubmission {
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.submissions)
	return s.submissions[len(s.submissions)-1]
}

type flushFixture struct {
	t    *testing.T
	ctx  context.Context
	info *hwinfo.Info
	mm   *memory.Manager
	sub  *fakeSubmitter
	csr  *Receiver

	dsh, ioh, ssh *memory.Heap
	taskStream    *CommandStream
}

func newFlushFixture(t *testing.T, family hwinfo.Family, opts Options) *flushFixture {
	ctx := log.Testing(t)
	info := hwinfo.New(family)
	mm := memory.NewManager(info)
	sub := &fakeSubmitter{nextStamp: 100}
	r, err := NewReceiver(info, mm, sub, opts)
	require.NoError(t, err)

	heap := func() *memory.Heap {
		a, err := mm.Allocate(hwinfo.PageSize, memory.TypeHeap, false)
		require.NoError(t, err)
		return memory.NewHeap(a)
	}
	streamAlloc, err := mm.Allocate(16*1024, memory.TypeCommandBuffer, false)
	require.NoError(t, err)

	return &flushFixture{
		t:    t,
		ctx:  ctx,
		info: info,
		mm:   mm,
		sub:  sub,
		csr:  r,
		dsh:  heap(), ioh: heap(), ssh: heap(),
		taskStream: NewCommandStream(streamAlloc),
	}
}

// makeNonDirty primes the receiver as if the current heaps and preemption mode
// had already been programmed, so a repeat flush has nothing to emit.
func (f *flushFixture) makeNonDirty() {
	f.csr.lastDSH = snapshotOf(f.dsh)
	f.csr.lastIOH = snapshotOf(f.ioh)
	f.csr.lastSSH = snapshotOf(f.ssh)
	f.csr.forceStateBaseAddress = false
	p := PreemptionDisabled
	f.csr.lastPreemptionMode = &p
}

func (f *flushFixture) flush(flags DispatchFlags) CompletionStamp {
	stamp, err := f.csr.FlushTask(f.ctx, f.taskStream, 0, f.dsh, f.ioh, f.ssh, f.csr.taskLevel, flags)
	require.NoError(f.t, err)
	return stamp
}

func (f *flushFixture) csrCommands() []cmds.Command {
	out, err := cmds.Disassemble(f.csr.stream.Data())
	require.NoError(f.t, err)
	return out
}

func (f *flushFixture) clientCommands() []cmds.Command {
	out, err := cmds.Disassemble(f.taskStream.Data())
	require.NoError(f.t, err)
	return out
}

func withoutNoops(in []cmds.Command) []cmds.Command {
	var out []cmds.Command
	for _, c := range in {
		if _, ok := c.(cmds.Noop); !ok {
			out = append(out, c)
		}
	}
	return out
}

func pipeControls(in []cmds.Command) []cmds.PipeControl {
	var out []cmds.PipeControl
	for _, c := range in {
		if pc, ok := c.(cmds.PipeControl); ok {
			out = append(out, pc)
		}
	}
	return out
}

func findSBA(t *testing.T, in []cmds.Command) cmds.StateBaseAddress {
	for _, c := range in {
		if sba, ok := c.(cmds.StateBaseAddress); ok {
			return sba
		}
	}
	t.Fatal("no StateBaseAddress command found")
	return cmds.StateBaseAddress{}
}

func TestFlushTaskFirstFlushProgramsStateBaseAddress(t *testing.T) {
	f := newFlushFixture(t, hwinfo.XeHP, Options{})

	stamp := f.flush(DispatchFlags{})

	assert.Equal(t, uint32(1), stamp.TaskCount)
	require.Equal(t, 1, f.sub.count())
	assert.Equal(t, stamp.FlushStamp, f.csr.FlushStamp())

	got := withoutNoops(f.csrCommands())
	require.Len(t, got, 5)

	// First flush also observes a preemption-mode change, so a bare stall
	// precedes the state-base-address barrier.
	stall, ok := got[0].(cmds.PipeControl)
	require.True(t, ok)
	assert.Equal(t, cmds.PipeControl{CommandStreamerStallEnable: true}, stall)

	pc, ok := got[1].(cmds.PipeControl)
	require.True(t, ok)
	assert.True(t, pc.CommandStreamerStallEnable)
	assert.True(t, pc.TextureCacheInvalidationEnable)
	assert.True(t, pc.HdcPipelineFlush)
	assert.Equal(t, f.info.DcFlushAllowed(), pc.DcFlushEnable)

	sba, ok := got[2].(cmds.StateBaseAddress)
	require.True(t, ok)
	assert.True(t, sba.DynamicStateBaseAddressModifyEnable)
	assert.True(t, sba.SurfaceStateBaseAddressModifyEnable)
	assert.Equal(t, f.dsh.Base(), sba.DynamicStateBaseAddress)
	assert.Equal(t, f.ssh.Base(), sba.SurfaceStateBaseAddress)
	assert.Equal(t, uint32(hwinfo.SizeOf4GBInPageEntities), sba.InstructionBufferSize)
	assert.Equal(t, uint32(hwinfo.GeneralStateMaxBufferSize), sba.GeneralStateBufferSize)
	assert.Equal(t, f.mm.InternalHeapBaseAddress(false), sba.GeneralStateBaseAddress)

	btp, ok := got[3].(cmds.BindingTablePoolAlloc)
	require.True(t, ok)
	assert.Equal(t, f.ssh.Base(), btp.BindingTablePoolBaseAddress)
	assert.Equal(t, f.ssh.SizeInPages(), btp.BindingTablePoolBufferSize)

	start, ok := got[4].(cmds.BatchBufferStart)
	require.True(t, ok)
	assert.Equal(t, hwinfo.Canonize(f.taskStream.GpuBase()), start.BatchBufferStartAddress)

	assert.Zero(t, f.csr.stream.Used()%hwinfo.CacheLineSize)

	sub := f.sub.last(t)
	assert.Same(t, f.csr.stream.GraphicsAllocation(), sub.bb.Allocation)
	assert.Zero(t, sub.bb.StartOffset)
}

func TestFlushTaskNonDirtyEmitsNothing(t *testing.T) {
	f := newFlushFixture(t, hwinfo.XeHP, Options{})
	f.makeNonDirty()

	stamp := f.flush(DispatchFlags{})

	assert.Zero(t, f.csr.stream.Used())
	assert.Zero(t, f.taskStream.Used())
	assert.Zero(t, f.sub.count())
	assert.Zero(t, stamp.FlushStamp)
	assert.Equal(t, uint32(1), stamp.TaskCount)
	assert.False(t, f.dsh.GraphicsAllocation().IsResident(f.csr.ContextID()))
}

func TestFlushTaskUnchangedSecondFlushEmitsNothing(t *testing.T) {
	f := newFlushFixture(t, hwinfo.Gen12LP, Options{})

	f.flush(DispatchFlags{})
	usedAfterFirst := f.csr.stream.Used()
	f.flush(DispatchFlags{})

	assert.Equal(t, usedAfterFirst, f.csr.stream.Used())
	assert.Equal(t, 1, f.sub.count())
}

func TestFlushTaskHigherTaskLevelEmitsStall(t *testing.T) {
	f := newFlushFixture(t, hwinfo.XeHP, Options{})
	f.makeNonDirty()

	stamp, err := f.csr.FlushTask(f.ctx, f.taskStream, 0, f.dsh, f.ioh, f.ssh, 1, DispatchFlags{})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), stamp.TaskLevel)
	assert.Equal(t, uint32(1), f.csr.TaskLevel())

	got := withoutNoops(f.csrCommands())
	require.Len(t, got, 2)
	pc, ok := got[0].(cmds.PipeControl)
	require.True(t, ok)
	assert.Equal(t, cmds.PipeControl{CommandStreamerStallEnable: true}, pc)
	_, ok = got[1].(cmds.BatchBufferStart)
	assert.True(t, ok)
}

func TestFlushTaskTimestampPacketSuppressesTaskLevelStall(t *testing.T) {
	f := newFlushFixture(t, hwinfo.XeHP, Options{TimestampPacketWriteEnabled: true})
	f.makeNonDirty()

	_, err := f.csr.FlushTask(f.ctx, f.taskStream, 0, f.dsh, f.ioh, f.ssh, 1, DispatchFlags{})
	require.NoError(t, err)

	assert.Zero(t, f.csr.stream.Used())
	assert.Zero(t, f.sub.count())
	assert.Equal(t, uint32(1), f.csr.TaskLevel())
}

func TestFlushTaskSurfaceStateHeapChangeReprogramsBindingTablePool(t *testing.T) {
	f := newFlushFixture(t, hwinfo.XeHP, Options{})
	f.makeNonDirty()

	f.ssh.ReplaceBuffer(f.ssh.Base()+0x10000, 2*hwinfo.PageSize)
	f.flush(DispatchFlags{})

	got := withoutNoops(f.csrCommands())
	sba := findSBA(t, got)
	assert.Equal(t, f.ssh.Base(), sba.SurfaceStateBaseAddress)

	var btp *cmds.BindingTablePoolAlloc
	for _, c := range got {
		if b, ok := c.(cmds.BindingTablePoolAlloc); ok {
			btp = &b
		}
	}
	require.NotNil(t, btp)
	assert.Equal(t, f.ssh.Base(), btp.BindingTablePoolBaseAddress)
	assert.Equal(t, uint32(2), btp.BindingTablePoolBufferSize)
}

func TestFlushTaskDynamicStateHeapChangeSkipsBindingTablePool(t *testing.T) {
	f := newFlushFixture(t, hwinfo.XeHP, Options{})
	f.makeNonDirty()

	f.dsh.ReplaceBuffer(f.dsh.Base()+0x10000, 2*hwinfo.PageSize)
	f.flush(DispatchFlags{})

	got := withoutNoops(f.csrCommands())
	findSBA(t, got)
	for _, c := range got {
		_, ok := c.(cmds.BindingTablePoolAlloc)
		assert.False(t, ok, "binding table pool must not be reprogrammed")
	}
}

func TestInitProgrammingFlagsForcesReprogramming(t *testing.T) {
	f := newFlushFixture(t, hwinfo.XeHP, Options{})
	f.makeNonDirty()
	f.csr.InitProgrammingFlags()

	f.flush(DispatchFlags{})

	got := withoutNoops(f.csrCommands())
	findSBA(t, got)
	var sawBTP bool
	for _, c := range got {
		if _, ok := c.(cmds.BindingTablePoolAlloc); ok {
			sawBTP = true
		}
	}
	assert.True(t, sawBTP)
}

func TestForcedBarrierWithFlushAllCachesEmitsStallThenFullBarrier(t *testing.T) {
	f := newFlushFixture(t, hwinfo.XeHP, Options{Overrides: OverrideConfig{
		ForcePipeControlPriorToDispatch: true,
		FlushAllCaches:                  true,
	}})
	f.makeNonDirty()

	f.flush(DispatchFlags{})

	pcs := pipeControls(f.csrCommands())
	require.Len(t, pcs, 2)
	assert.Equal(t, cmds.PipeControl{CommandStreamerStallEnable: true}, pcs[0])

	full := pcs[1]
	assert.True(t, full.CommandStreamerStallEnable)
	assert.True(t, full.DcFlushEnable)
	assert.True(t, full.RenderTargetCacheFlushEnable)
	assert.True(t, full.InstructionCacheInvalidateEnable)
	assert.True(t, full.TextureCacheInvalidationEnable)
	assert.True(t, full.PipeControlFlushEnable)
	assert.True(t, full.VfCacheInvalidationEnable)
	assert.True(t, full.ConstantCacheInvalidationEnable)
	assert.True(t, full.StateCacheInvalidationEnable)
	assert.True(t, full.HdcPipelineFlush)
	assert.True(t, full.CompressionControlSurfaceCcsFlush)
}

func TestFlushAllCachesExpandsTaskLevelBarrier(t *testing.T) {
	f := newFlushFixture(t, hwinfo.Gen12LP, Options{Overrides: OverrideConfig{FlushAllCaches: true}})
	f.makeNonDirty()

	_, err := f.csr.FlushTask(f.ctx, f.taskStream, 0, f.dsh, f.ioh, f.ssh, 1, DispatchFlags{})
	require.NoError(t, err)

	pcs := pipeControls(f.csrCommands())
	require.Len(t, pcs, 1)
	assert.True(t, pcs[0].StateCacheInvalidationEnable)
	assert.True(t, pcs[0].VfCacheInvalidationEnable)
	assert.False(t, pcs[0].CompressionControlSurfaceCcsFlush, "not encodable before XeHP")
}

func TestSamplerCacheFlushStateMachine(t *testing.T) {
	f := newFlushFixture(t, hwinfo.XeHP, Options{})
	f.makeNonDirty()
	f.csr.SetSamplerCacheFlushRequired(SamplerCacheFlushBefore)

	f.flush(DispatchFlags{})
	pcs := pipeControls(f.csrCommands())
	require.Len(t, pcs, 1)
	assert.True(t, pcs[0].TextureCacheInvalidationEnable)
	assert.Equal(t, SamplerCacheFlushAfterRedescribedSurfaceRead, f.csr.SamplerCacheFlushState())

	f.flush(DispatchFlags{})
	assert.Len(t, pipeControls(f.csrCommands()), 2)
	assert.Equal(t, SamplerCacheFlushNotRequired, f.csr.SamplerCacheFlushState())

	used := f.csr.stream.Used()
	f.flush(DispatchFlags{})
	assert.Equal(t, used, f.csr.stream.Used())
}

func TestSamplerCacheFlushDisabledByWorkaroundTable(t *testing.T) {
	f := newFlushFixture(t, hwinfo.XeHP, Options{})
	f.info.Workarounds.SamplerCacheFlushBetweenRedescribedSurfaceReads = false
	f.makeNonDirty()
	f.csr.SetSamplerCacheFlushRequired(SamplerCacheFlushBefore)

	f.flush(DispatchFlags{})

	assert.Zero(t, f.csr.stream.Used())
	assert.Equal(t, SamplerCacheFlushBefore, f.csr.SamplerCacheFlushState())
}

func TestRegisterInstructionCacheFlush(t *testing.T) {
	f := newFlushFixture(t, hwinfo.XeHP, Options{})
	f.makeNonDirty()
	f.csr.RegisterInstructionCacheFlush()
	require.True(t, f.csr.RequiresInstructionCacheFlush())

	f.flush(DispatchFlags{})

	pcs := pipeControls(f.csrCommands())
	require.Len(t, pcs, 1)
	assert.True(t, pcs[0].InstructionCacheInvalidateEnable)
	assert.False(t, f.csr.RequiresInstructionCacheFlush())

	used := f.csr.stream.Used()
	f.flush(DispatchFlags{})
	assert.Equal(t, used, f.csr.stream.Used())
}

func TestBlockingFlushGuardsClientStream(t *testing.T) {
	f := newFlushFixture(t, hwinfo.XeHP, Options{})
	f.makeNonDirty()

	f.flush(DispatchFlags{Blocking: true})

	assert.Zero(t, f.csr.stream.Used(), "receiver stream must stay untouched")
	pcs := pipeControls(f.clientCommands())
	require.Len(t, pcs, 1)
	assert.True(t, pcs[0].CommandStreamerStallEnable)

	require.Equal(t, 1, f.sub.count())
	sub := f.sub.last(t)
	assert.Same(t, f.taskStream.GraphicsAllocation(), sub.bb.Allocation)
}

func TestPreemptionModeChangeEmitsStall(t *testing.T) {
	f := newFlushFixture(t, hwinfo.XeHP, Options{})
	f.makeNonDirty()

	pre, err := f.mm.Allocate(hwinfo.PageSize, memory.TypeBuffer, false)
	require.NoError(t, err)
	sip, err := f.mm.Allocate(hwinfo.PageSize, memory.TypeBuffer, false)
	require.NoError(t, err)
	f.csr.SetPreemptionAllocations(pre, sip)

	f.flush(DispatchFlags{PreemptionMode: PreemptionMidThread})

	pcs := pipeControls(f.csrCommands())
	require.Len(t, pcs, 1)
	assert.Equal(t, cmds.PipeControl{CommandStreamerStallEnable: true}, pcs[0])

	sub := f.sub.last(t)
	assert.Contains(t, sub.surfaces, pre)
	assert.Contains(t, sub.surfaces, sip)

	used := f.csr.stream.Used()
	f.flush(DispatchFlags{PreemptionMode: PreemptionMidThread})
	assert.Equal(t, used, f.csr.stream.Used(), "unchanged preemption mode emits nothing")
}

func TestForcePreemptionModeOverride(t *testing.T) {
	forced := PreemptionThreadGroup
	f := newFlushFixture(t, hwinfo.XeHP, Options{Overrides: OverrideConfig{ForcePreemptionMode: &forced}})
	f.makeNonDirty()
	f.csr.lastPreemptionMode = &forced

	f.flush(DispatchFlags{PreemptionMode: PreemptionMidThread})

	assert.Zero(t, f.csr.stream.Used(), "forced mode matches the last programmed mode")
}

func TestMultiOsContextCapableNonDirtyUsesOwnStream(t *testing.T) {
	f := newFlushFixture(t, hwinfo.XeHPC, Options{MultiOsContextCapable: true})
	f.makeNonDirty()

	f.flush(DispatchFlags{})

	assert.Equal(t, hwinfo.CacheLineSize, f.csr.stream.Used())
	got := withoutNoops(f.csrCommands())
	require.Len(t, got, 1)
	start, ok := got[0].(cmds.BatchBufferStart)
	require.True(t, ok)
	assert.Equal(t, hwinfo.Canonize(f.taskStream.GpuBase()), start.BatchBufferStartAddress)

	sub := f.sub.last(t)
	assert.Same(t, f.csr.stream.GraphicsAllocation(), sub.bb.Allocation)
}

func TestEpilogueChainsClientIntoReceiverStream(t *testing.T) {
	f := newFlushFixture(t, hwinfo.XeHP, Options{})
	f.makeNonDirty()

	assert.Equal(t, hwinfo.CacheLineSize, f.csr.CmdSizeForEpilogue(DispatchFlags{EpilogueRequired: true}))
	assert.Zero(t, f.csr.CmdSizeForEpilogue(DispatchFlags{}))

	f.flush(DispatchFlags{EpilogueRequired: true})

	client := withoutNoops(f.clientCommands())
	require.Len(t, client, 1)
	start, ok := client[0].(cmds.BatchBufferStart)
	require.True(t, ok)
	assert.Equal(t, hwinfo.Canonize(f.csr.stream.GpuBase()), start.BatchBufferStartAddress)
	assert.Zero(t, f.taskStream.Used()%hwinfo.CacheLineSize)

	own := withoutNoops(f.csrCommands())
	require.Len(t, own, 1)
	_, ok = own[0].(cmds.BatchBufferEnd)
	assert.True(t, ok)
	assert.Equal(t, hwinfo.CacheLineSize, f.csr.stream.Used())

	sub := f.sub.last(t)
	assert.Same(t, f.taskStream.GraphicsAllocation(), sub.bb.Allocation)
	assert.Contains(t, sub.surfaces, f.csr.stream.GraphicsAllocation())
}

func TestImmediateDispatchReleasesResidencyAfterSubmission(t *testing.T) {
	f := newFlushFixture(t, hwinfo.XeHP, Options{ContextID: 7})

	f.flush(DispatchFlags{})

	require.Equal(t, 1, f.sub.count())
	sub := f.sub.last(t)
	assert.Contains(t, sub.surfaces, f.dsh.GraphicsAllocation())
	assert.Contains(t, sub.surfaces, f.taskStream.GraphicsAllocation())
	for _, a := range sub.surfaces {
		assert.False(t, a.IsResident(7))
		assert.Equal(t, uint32(1), a.ResidencyTaskCount(7))
	}
}

func TestCompletionStampAdvancesAcrossFlushes(t *testing.T) {
	f := newFlushFixture(t, hwinfo.Gen12LP, Options{})

	first := f.flush(DispatchFlags{Blocking: true})
	second := f.flush(DispatchFlags{Blocking: true})

	assert.Equal(t, uint32(1), first.TaskCount)
	assert.Equal(t, uint32(2), second.TaskCount)
	assert.Greater(t, second.FlushStamp, first.FlushStamp)
	assert.Equal(t, uint32(2), f.csr.TaskCount())
}

func TestFlushTaskCompressionStateSelectsStatelessPolicy(t *testing.T) {
	f := newFlushFixture(t, hwinfo.XeHP, Options{})

	_, err := f.csr.FlushTask(f.ctx, f.taskStream, 0, f.dsh, f.ioh, f.ssh, 0,
		DispatchFlags{MemoryCompressionState: MemoryCompressionEnabled})
	require.NoError(t, err)

	sba := findSBA(t, f.csrCommands())
	assert.Equal(t, f.info.MOCS(hwinfo.UsageStateHeapBuffer),
		sba.StatelessDataPortAccessMemoryObjectControlState)
}

func TestFlushTaskDisableCachingForHeapsOverride(t *testing.T) {
	f := newFlushFixture(t, hwinfo.XeHP, Options{Overrides: OverrideConfig{
		DisableCachingForHeaps: true,
	}})

	f.flush(DispatchFlags{})

	uncached := f.info.MOCS(hwinfo.UsageSystemBufferCachelineMisaligned)
	got := withoutNoops(f.csrCommands())
	sba := findSBA(t, got)
	assert.Equal(t, uncached, sba.InstructionMemoryObjectControlState)
	assert.Equal(t, uncached, sba.StatelessDataPortAccessMemoryObjectControlState)

	for _, c := range got {
		if btp, ok := c.(cmds.BindingTablePoolAlloc); ok {
			assert.Equal(t, uncached, btp.SurfaceObjectControlStateIndexToMocsTables)
			return
		}
	}
	t.Fatal("no BindingTablePoolAlloc command found")
}

func TestFlushTaskBindlessHeaps(t *testing.T) {
	f := newFlushFixture(t, hwinfo.XeHP, Options{BindlessHeapsEnabled: true})

	f.flush(DispatchFlags{})

	sba := findSBA(t, f.csrCommands())
	assert.True(t, sba.BindlessSurfaceStateBaseAddressModifyEnable)
	assert.Equal(t, f.ssh.Base(), sba.BindlessSurfaceStateBaseAddress)
	assert.Equal(t, uint32(f.ssh.Size()), sba.BindlessSurfaceStateSize)
}

// mockSubmitter asserts the exact submission interaction.
type mockSubmitter struct {
	mock.Mock
}

func (m *mockSubmitter) SubmitBatchBuffer(ctx context.Context, bb BatchBuffer,
	surfaces []*memory.GraphicsAllocation) (uint64, error) {

	args := m.Called(ctx, bb, surfaces)
	return args.Get(0).(uint64), args.Error(1)
}

func TestFlushTaskSubmissionFailure(t *testing.T) {
	ctx := log.Testing(t)
	info := hwinfo.New(hwinfo.XeHP)
	mm := memory.NewManager(info)
	sub := &mockSubmitter{}
	sub.On("SubmitBatchBuffer", mock.Anything, mock.Anything, mock.Anything).
		Return(uint64(0), assert.AnError)

	r, err := NewReceiver(info, mm, sub, Options{})
	require.NoError(t, err)
	alloc, err := mm.Allocate(16*1024, memory.TypeCommandBuffer, false)
	require.NoError(t, err)

	_, err = r.FlushTask(ctx, NewCommandStream(alloc), 0, nil, nil, nil, 0, DispatchFlags{})
	require.Error(t, err)
	assert.Zero(t, r.FlushStamp())
	sub.AssertExpectations(t)
}
