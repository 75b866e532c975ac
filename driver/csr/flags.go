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

	"github.com/hongbolv/compute-runtime/driver/memory"
)

// DispatchMode selects how flush-task hands composed buffers to hardware.
type DispatchMode int

const (
	// ImmediateDispatch submits every composed buffer directly.
	ImmediateDispatch DispatchMode = iota
	// BatchedDispatch defers submission: buffers are recorded on the
	// aggregator until FlushBatchedSubmissions runs.
	BatchedDispatch
)

// PreemptionMode is the preemption granularity requested for a dispatch.
type PreemptionMode int

const (
	PreemptionDisabled PreemptionMode = iota
	PreemptionMidBatch
	PreemptionThreadGroup
	PreemptionMidThread
)

// SamplerCacheFlushState tracks the pending sampler cache flush requirement
// across flush-task calls.
type SamplerCacheFlushState int

const (
	// SamplerCacheFlushNotRequired never emits anything and is a stable
	// fixed point.
	SamplerCacheFlushNotRequired SamplerCacheFlushState = iota
	// SamplerCacheFlushBefore requires a barrier before the next dispatch.
	SamplerCacheFlushBefore
	// SamplerCacheFlushAfterRedescribedSurfaceRead requires a trailing
	// barrier after a redescribed surface was read.
	SamplerCacheFlushAfterRedescribedSurfaceRead
)

// DispatchFlags carries the per-submission knobs handed to FlushTask.
type DispatchFlags struct {
	// Blocking forces a pipe control into the client's own stream,
	// regardless of dirty state.
	Blocking bool
	// GuardCommandBufferWithPipeControl appends a guarding pipe control to
	// the client stream before termination.
	GuardCommandBufferWithPipeControl bool
	// RequiresCoherency is carried through to the submission.
	RequiresCoherency bool
	// LowPriority is carried through to the submission.
	LowPriority bool
	// PreemptionMode requested for this dispatch.
	PreemptionMode PreemptionMode
	// MemoryCompressionState selects the stateless cache policy used when
	// state base addresses are reprogrammed for this dispatch.
	MemoryCompressionState MemoryCompressionState
	// EpilogueRequired chains the client stream back into the receiver's
	// stream for epilogue commands.
	EpilogueRequired bool
}

// OverrideConfig is the immutable debug-override set consulted by the
// composer and barrier synthesizer. Constructed once and threaded through;
// absent any override, default policy applies.
type OverrideConfig struct {
	// DisableCachingForHeaps downgrades heap and stateless cache policies to
	// the cacheline-misaligned (uncached) table entry.
	DisableCachingForHeaps bool
	// FlushAllCaches sets every cache-control bit on any emitted barrier.
	FlushAllCaches bool
	// ForcePipeControlPriorToDispatch emits a barrier ahead of every
	// dispatch; combined with FlushAllCaches it produces a bare stall
	// barrier followed by an all-cache barrier.
	ForcePipeControlPriorToDispatch bool
	// ForcePreemptionMode, when non-nil, overrides the dispatch-flag
	// preemption mode.
	ForcePreemptionMode *PreemptionMode
}

// BatchBuffer describes one finalized buffer handed to the hardware
// submission collaborator.
type BatchBuffer struct {
	Allocation        *memory.GraphicsAllocation
	StartOffset       int
	RequiresCoherency bool
	LowPriority       bool
}

// Submitter is the hardware-submission collaborator. It accepts a finalized
// batch buffer plus its resident surfaces and returns a flush stamp.
type Submitter interface {
	SubmitBatchBuffer(ctx context.Context, bb BatchBuffer, surfaces []*memory.GraphicsAllocation) (uint64, error)
}

// CompletionStamp is returned by FlushTask so the caller can wait for the
// submission.
type CompletionStamp struct {
	TaskCount  uint32
	TaskLevel  uint32
	FlushStamp uint64
}
