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
	"github.com/pkg/errors"
)

// Any selects every slice, subslice, EU or thread in a ThreadID coordinate.
const Any = ^uint32(0)

// ThreadID addresses hardware threads for an attention operation. Each
// coordinate is either a concrete index or Any.
type ThreadID struct {
	Slice    uint32
	Subslice uint32
	EU       uint32
	Thread   uint32
}

// Topology is the execution-unit layout the bitmask is computed against.
type Topology struct {
	Slices            uint32
	SubslicesPerSlice uint32
	EUsPerSubslice    uint32
	ThreadsPerEU      uint32
}

func (t Topology) bytesPerEU() uint32 {
	return (t.ThreadsPerEU + 7) / 8
}

// BitmaskSize returns the attention bitmask length in bytes for the topology.
func (t Topology) BitmaskSize() int {
	return int(t.Slices * t.SubslicesPerSlice * t.EUsPerSubslice * t.bytesPerEU())
}

// AttentionBitmask computes the per-EU thread mask selecting the given
// threads. A coordinate of Any spans that whole dimension. Hardware with
// seven threads per EU reserves the top bit of each EU byte, so the all-thread
// value is 0x7f there and 0xff otherwise.
func AttentionBitmask(id ThreadID, topo Topology) ([]byte, error) {
	if topo.ThreadsPerEU > 8 {
		return nil, errors.Errorf("unsupported threads per EU: %d", topo.ThreadsPerEU)
	}
	if id.Slice != Any && id.Slice >= topo.Slices {
		return nil, errors.Errorf("slice %d out of range", id.Slice)
	}
	if id.Subslice != Any && id.Subslice >= topo.SubslicesPerSlice {
		return nil, errors.Errorf("subslice %d out of range", id.Subslice)
	}
	if id.EU != Any && id.EU >= topo.EUsPerSubslice {
		return nil, errors.Errorf("eu %d out of range", id.EU)
	}
	if id.Thread != Any && id.Thread >= topo.ThreadsPerEU {
		return nil, errors.Errorf("thread %d out of range", id.Thread)
	}

	threadValue := byte(0xff)
	if topo.ThreadsPerEU == 7 {
		threadValue = 0x7f
	}

	bytesPerEU := topo.bytesPerEU()
	sliceStride := topo.SubslicesPerSlice * topo.EUsPerSubslice * bytesPerEU
	bitmask := make([]byte, topo.BitmaskSize())

	if id.Slice == Any && id.Subslice == Any && id.EU == Any && id.Thread == Any {
		for i := range bitmask {
			bitmask[i] = threadValue
		}
		return bitmask, nil
	}

	for sliceID := uint32(0); sliceID < topo.Slices; sliceID++ {
		if id.Slice != Any {
			sliceID = id.Slice
		}
		sliceOff := sliceStride * sliceID

		for subsliceID := uint32(0); subsliceID < topo.SubslicesPerSlice; subsliceID++ {
			if id.Subslice != Any {
				subsliceID = id.Subslice
			}
			subsliceOff := sliceOff + topo.EUsPerSubslice*bytesPerEU*subsliceID

			for euID := uint32(0); euID < topo.EUsPerSubslice; euID++ {
				if id.EU != Any {
					euID = id.EU
				}
				euOff := subsliceOff + bytesPerEU*euID

				if id.Thread == Any {
					bitmask[euOff] = threadValue
				} else {
					bitmask[euOff] = 1 << id.Thread
				}

				if id.EU != Any {
					break
				}
			}
			if id.Subslice != Any {
				break
			}
		}
		if id.Slice != Any {
			break
		}
	}
	return bitmask, nil
}
