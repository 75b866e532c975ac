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
	"sync"

	"github.com/hongbolv/compute-runtime/driver/memory"
)

// CommandBuffer is one deferred submission recorded by batched dispatch:
// the finalized batch buffer, the allocations that must stay resident until
// it is submitted, and the task count it carries.
type CommandBuffer struct {
	BatchBuffer BatchBuffer
	Surfaces    []*memory.GraphicsAllocation
	TaskCount   uint32
}

// SubmissionsAggregator is the FIFO queue of command buffers pending
// hardware submission. Buffers are enqueued by flush-task in batched mode and
// drained, in enqueue order, by FlushBatchedSubmissions. Once enqueued a
// buffer is always eventually submitted; cancellation is not supported.
type SubmissionsAggregator struct {
	mu      sync.Mutex
	buffers []*CommandBuffer
}

// NewSubmissionsAggregator returns an empty aggregator.
func NewSubmissionsAggregator() *SubmissionsAggregator {
	return &SubmissionsAggregator{}
}

// RecordCommandBuffer enqueues a command buffer for later submission.
func (a *SubmissionsAggregator) RecordCommandBuffer(cb *CommandBuffer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.buffers = append(a.buffers, cb)
}

// PeekIsEmpty reports whether any buffers are pending, without mutation.
func (a *SubmissionsAggregator) PeekIsEmpty() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buffers) == 0
}

// PeekHead returns the oldest pending buffer without dequeuing it, or nil.
func (a *SubmissionsAggregator) PeekHead() *CommandBuffer {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.buffers) == 0 {
		return nil
	}
	return a.buffers[0]
}

// Len returns the number of pending buffers.
func (a *SubmissionsAggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buffers)
}

// popHead dequeues the oldest pending buffer, or returns nil.
func (a *SubmissionsAggregator) popHead() *CommandBuffer {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.buffers) == 0 {
		return nil
	}
	cb := a.buffers[0]
	a.buffers = a.buffers[1:]
	return cb
}
