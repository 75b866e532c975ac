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

// Package interval provides span and range lists over the 64-bit GPU virtual
// address space.
package interval

// U64Span is a half open interval that includes the lower bound, but not the
// upper.
type U64Span struct {
	Start uint64 // the value at which the interval begins
	End   uint64 // the next value not included in the interval.
}

// U64Range is an interval specified by a beginning and size.
type U64Range struct {
	First uint64 // the first value in the interval
	Count uint64 // the count of values in the interval
}

// U64RangeList is an ordered, non-overlapping list of U64Range intervals.
type U64RangeList []U64Range

// Range converts a U64Span to a U64Range.
func (s U64Span) Range() U64Range { return U64Range{First: s.Start, Count: s.End - s.Start} }

// Span converts a U64Range to a U64Span.
func (r U64Range) Span() U64Span { return U64Span{Start: r.First, End: r.First + r.Count} }

// Contains returns true if v lies inside the range.
func (r U64Range) Contains(v uint64) bool { return v >= r.First && v < r.First+r.Count }

// Clone returns a copy of the list.
func (l U64RangeList) Clone() U64RangeList {
	res := make(U64RangeList, len(l))
	copy(res, l)
	return res
}

// Merge adds the span to the list, unioning it with any intersecting ranges.
// When joinAdjacent is true, ranges that merely touch the span are merged as
// well. The list must be sorted by First, and remains so.
func Merge(l *U64RangeList, span U64Span, joinAdjacent bool) {
	out := make(U64RangeList, 0, len(*l)+1)
	touches := func(r U64Range) bool {
		s := r.Span()
		if joinAdjacent {
			return s.Start <= span.End && span.Start <= s.End
		}
		return s.Start < span.End && span.Start < s.End
	}
	inserted := false
	for _, r := range *l {
		switch {
		case touches(r):
			s := r.Span()
			if s.Start < span.Start {
				span.Start = s.Start
			}
			if s.End > span.End {
				span.End = s.End
			}
		case r.First >= span.End && !inserted:
			out = append(out, span.Range())
			inserted = true
			out = append(out, r)
		default:
			out = append(out, r)
		}
	}
	if !inserted {
		out = append(out, span.Range())
	}
	*l = out
}

// Remove cuts the span out of the list, truncating or splitting any range it
// intersects.
func Remove(l *U64RangeList, span U64Span) {
	out := make(U64RangeList, 0, len(*l)+1)
	for _, r := range *l {
		s := r.Span()
		if s.End <= span.Start || s.Start >= span.End {
			out = append(out, r)
			continue
		}
		if s.Start < span.Start {
			out = append(out, U64Span{Start: s.Start, End: span.Start}.Range())
		}
		if s.End > span.End {
			out = append(out, U64Span{Start: span.End, End: s.End}.Range())
		}
	}
	*l = out
}
