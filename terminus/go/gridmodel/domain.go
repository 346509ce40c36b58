// Copyright 2010-2024 Google LLC
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gridmodel

import (
	"fmt"
	"math"
)

// ClosedInterval stores the closed interval `[start,end]`. If the `Start` is greater
// than the `End`, the interval is considered empty. math.MinInt64 and math.MaxInt64
// stand for an unbounded side.
type ClosedInterval struct {
	Start int64
	End   int64
}

// Unbounded is the interval covering every int64.
var Unbounded = ClosedInterval{math.MinInt64, math.MaxInt64}

// AtLeast returns `[lb,+inf)`.
func AtLeast(lb int64) ClosedInterval {
	return ClosedInterval{lb, math.MaxInt64}
}

// AtMost returns `(-inf,ub]`.
func AtMost(ub int64) ClosedInterval {
	return ClosedInterval{math.MinInt64, ub}
}

// Singleton returns `[v,v]`.
func Singleton(v int64) ClosedInterval {
	return ClosedInterval{v, v}
}

// checkOverflowAndAdd first checks if adding `delta` to `i` will cause an integer overflow.
// It will return the value of the summation if there is no overflow. Otherwise, it will
// return MaxInt64 or MinInt64 depending on the direction of the overflow.
func checkOverflowAndAdd(i, delta int64) int64 {
	if i == math.MinInt64 || i == math.MaxInt64 {
		return i
	}

	s := i + delta
	if delta < 0 && s > i {
		return math.MinInt64
	}
	if delta > 0 && s < i {
		return math.MaxInt64
	}

	return s
}

// Offset adds an offset to both the `Start` and `End` of the ClosedInterval `c`. If the `Start`
// is equal to MinInt or if `End` is equal to MaxInt, the offset does not get added since those
// values represent an unbounded domain. Both `Start` and `End` are clamped at math.MinInt64 and
// Math.MaxInt64.
func (c ClosedInterval) Offset(delta int64) ClosedInterval {
	return ClosedInterval{checkOverflowAndAdd(c.Start, delta), checkOverflowAndAdd(c.End, delta)}
}

// IsEmpty reports whether the interval holds no value.
func (c ClosedInterval) IsEmpty() bool {
	return c.Start > c.End
}

// HasLowerBound reports whether Start is finite.
func (c ClosedInterval) HasLowerBound() bool {
	return c.Start != math.MinInt64
}

// HasUpperBound reports whether End is finite.
func (c ClosedInterval) HasUpperBound() bool {
	return c.End != math.MaxInt64
}

// IsFixed reports whether the interval holds exactly one value.
func (c ClosedInterval) IsFixed() bool {
	return c.Start == c.End
}

// Contains reports whether v lies in the interval.
func (c ClosedInterval) Contains(v int64) bool {
	return c.Start <= v && v <= c.End
}

// String formats the interval as `[a,b]`, writing unbounded sides as -inf and +inf.
func (c ClosedInterval) String() string {
	lo, hi := "-inf", "+inf"
	if c.HasLowerBound() {
		lo = fmt.Sprint(c.Start)
	}
	if c.HasUpperBound() {
		hi = fmt.Sprint(c.End)
	}
	return "[" + lo + "," + hi + "]"
}
