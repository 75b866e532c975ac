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
	"github.com/hongbolv/compute-runtime/driver/cmds"
	"github.com/hongbolv/compute-runtime/driver/hwinfo"
)

// BarrierSpec is the set of cache-control bits carried by one emitted
// barrier.
type BarrierSpec = cmds.PipeControl

// stallBarrier is the minimal ordering barrier.
func stallBarrier() BarrierSpec {
	return BarrierSpec{CommandStreamerStallEnable: true}
}

// allCachesBarrier sets every cache-control bit the family can encode.
func allCachesBarrier(info *hwinfo.Info) BarrierSpec {
	return BarrierSpec{
		CommandStreamerStallEnable:        true,
		DcFlushEnable:                     true,
		RenderTargetCacheFlushEnable:      true,
		InstructionCacheInvalidateEnable:  true,
		TextureCacheInvalidationEnable:    true,
		PipeControlFlushEnable:            true,
		VfCacheInvalidationEnable:         true,
		ConstantCacheInvalidationEnable:   true,
		StateCacheInvalidationEnable:      true,
		HdcPipelineFlush:                  info.Family.AtLeastXeHP(),
		CompressionControlSurfaceCcsFlush: info.Family.AtLeastXeHP(),
	}
}

// preSBABarrier is the barrier required strictly before state-base-address
// reprogramming. It carries texture-cache invalidation, the family's
// pipeline-flush bit, and a data-cache flush where the platform policy allows
// one.
func preSBABarrier(info *hwinfo.Info) BarrierSpec {
	pc := stallBarrier()
	pc.TextureCacheInvalidationEnable = true
	pc.DcFlushEnable = info.DcFlushAllowed()
	if info.Family.AtLeastXeHP() {
		pc.HdcPipelineFlush = true
	} else {
		pc.PipeControlFlushEnable = true
	}
	return pc
}

// samplerBarrier flushes the sampler's view of redescribed surfaces.
func samplerBarrier() BarrierSpec {
	pc := stallBarrier()
	pc.TextureCacheInvalidationEnable = true
	return pc
}

// instructionCacheBarrier satisfies a registered instruction-cache flush
// request.
func instructionCacheBarrier() BarrierSpec {
	pc := stallBarrier()
	pc.InstructionCacheInvalidateEnable = true
	return pc
}

// applyBarrierOverrides expands the barrier per the override policy: with
// FlushAllCaches configured, every emitted barrier carries every cache bit.
func applyBarrierOverrides(pc BarrierSpec, overrides OverrideConfig, info *hwinfo.Info) BarrierSpec {
	if overrides.FlushAllCaches {
		return allCachesBarrier(info)
	}
	return pc
}
