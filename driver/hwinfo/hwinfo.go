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

// Package hwinfo describes the per-generation capabilities and constants the
// command-stream receiver depends on: cache geometry, addressing rules, the
// cache-policy (MOCS) tables and the workaround table.
package hwinfo

import "fmt"

// Family identifies a hardware command-streamer generation.
type Family int

const (
	Gen12LP Family = iota
	XeHP
	XeHPC
)

func (f Family) String() string {
	switch f {
	case Gen12LP:
		return "Gen12LP"
	case XeHP:
		return "XeHP"
	case XeHPC:
		return "XeHPC"
	default:
		return fmt.Sprintf("Family(%d)", int(f))
	}
}

// AtLeastXeHP reports whether the family carries the XeHP-and-newer command
// fields (HDC pipeline flush, compression-control-surface CCS flush).
func (f Family) AtLeastXeHP() bool { return f >= XeHP }

// Memory constants shared by every supported generation.
const (
	// CacheLineSize is the command-streamer fetch granularity. Composed
	// buffers are padded up to this boundary.
	CacheLineSize = 64

	// PageSize is the base page size used for heap sizing.
	PageSize = 4096

	// PageSize64K is the page-table entity granularity used by the
	// instruction heap mapping.
	PageSize64K = 64 * 1024

	// SizeOf4GBInPageEntities is the architectural maximum addressable
	// instruction region, expressed in 64K page entities. Programmed as the
	// instruction buffer size whenever the instruction base is enabled.
	SizeOf4GBInPageEntities = (4 * 1024 * 1024 * 1024) / PageSize64K

	// GeneralStateMaxBufferSize is the maximum encodable general-state
	// buffer size field.
	GeneralStateMaxBufferSize = 0xfffff

	// addressWidth is the canonical GPU virtual address width in bits.
	addressWidth = 48
)

// Canonize sign-extends a GPU address from the canonical address width to 64
// bits, as required when an address is written to a hardware register.
func Canonize(addr uint64) uint64 {
	shift := 64 - addressWidth
	return uint64(int64(addr<<shift) >> shift)
}

// Decanonize strips the sign-extension bits, leaving the raw canonical-width
// address.
func Decanonize(addr uint64) uint64 {
	return addr & ((1 << addressWidth) - 1)
}

// Usage selects a cache-policy table entry for a class of memory access.
type Usage int

const (
	// UsageStateHeapBuffer covers heap reads (surface, dynamic, instruction
	// state).
	UsageStateHeapBuffer Usage = iota
	// UsageBufferConstant covers stateless data-port reads with L1 caching
	// enabled.
	UsageBufferConstant
	// UsageSystemBufferCachelineMisaligned is the uncached policy used when
	// heap caching is disabled by override.
	UsageSystemBufferCachelineMisaligned
)

// WorkaroundTable carries the per-platform workaround gating flags.
type WorkaroundTable struct {
	// SamplerCacheFlushBetweenRedescribedSurfaceReads gates the sampler
	// cache flush requirement. When false the requirement is disabled
	// entirely and the pending state is left untouched.
	SamplerCacheFlushBetweenRedescribedSurfaceReads bool
}

// Info is the platform/capability collaborator consumed by the barrier
// synthesizer and the state-base-address programmer.
type Info struct {
	Family      Family
	Is64Bit     bool
	Workarounds WorkaroundTable

	mocs map[Usage]uint32
}

// mocsTables holds the per-family cache-policy index tables. Indices are
// pre-shifted the way the command fields expect them.
var mocsTables = map[Family]map[Usage]uint32{
	Gen12LP: {
		UsageStateHeapBuffer:                 2 << 1,
		UsageBufferConstant:                  3 << 1,
		UsageSystemBufferCachelineMisaligned: 0,
	},
	XeHP: {
		UsageStateHeapBuffer:                 2 << 1,
		UsageBufferConstant:                  5 << 1,
		UsageSystemBufferCachelineMisaligned: 0,
	},
	XeHPC: {
		UsageStateHeapBuffer:                 2 << 1,
		UsageBufferConstant:                  5 << 1,
		UsageSystemBufferCachelineMisaligned: 0,
	},
}

// New returns the capability description for the given family with default
// workaround settings.
func New(f Family) *Info {
	table, ok := mocsTables[f]
	if !ok {
		panic(fmt.Errorf("unknown hardware family %v", f))
	}
	return &Info{
		Family:  f,
		Is64Bit: true,
		Workarounds: WorkaroundTable{
			SamplerCacheFlushBetweenRedescribedSurfaceReads: true,
		},
		mocs: table,
	}
}

// MOCS returns the memory-object-control-state index for the given usage.
func (i *Info) MOCS(u Usage) uint32 {
	v, ok := i.mocs[u]
	if !ok {
		panic(fmt.Errorf("no MOCS entry for usage %d on %v", int(u), i.Family))
	}
	return v
}

// DcFlushAllowed reports whether a data-cache flush may be carried on the
// barrier preceding state-base-address programming.
func (i *Info) DcFlushAllowed() bool {
	return i.Family != XeHPC
}

// MultiTileCapable reports whether the platform exposes multiple tiles behind
// one device.
func (i *Info) MultiTileCapable() bool {
	return i.Family == XeHPC
}
