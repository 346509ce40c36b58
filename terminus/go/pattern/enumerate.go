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

package pattern

import "iter"

// Enumerator produces every non-constant pattern of a fixed length.
type Enumerator struct {
	n int
}

// NewEnumerator returns an Enumerator for patterns of length n.
func NewEnumerator(n int) (*Enumerator, error) {
	if err := CheckLength(n); err != nil {
		return nil, err
	}
	return &Enumerator{n: n}, nil
}

// Count returns the number of patterns All yields, 2^n - 2.
func (e *Enumerator) Count() int {
	return 1<<e.n - 2
}

// All returns the non-constant patterns of length n. Each call starts a new
// depth-first pass that fixes position 0 first, false before true, so the
// order is that of the bitstrings read as binary numbers. Every yielded
// Pattern is a fresh slice the caller may keep.
func (e *Enumerator) All() iter.Seq[Pattern] {
	return func(yield func(Pattern) bool) {
		buf := make(Pattern, e.n)
		e.walk(buf, 0, yield)
	}
}

// walk assigns buf[pos:] and reports whether the consumer wants more.
func (e *Enumerator) walk(buf Pattern, pos int, yield func(Pattern) bool) bool {
	if pos == len(buf) {
		if buf.IsConstant() {
			return true
		}
		return yield(buf.Clone())
	}
	for _, v := range [2]bool{false, true} {
		buf[pos] = v
		if !e.walk(buf, pos+1, yield) {
			return false
		}
	}
	return true
}
