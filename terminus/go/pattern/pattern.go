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

// Package pattern provides the boolean run-patterns that parameterize the
// monotone grid instances, together with their run decomposition and a lazy
// enumeration of every non-constant pattern of a given length.
package pattern

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// MinLength is the smallest supported pattern length.
	MinLength = 2
	// MaxLength is the largest supported pattern length. It keeps the 2^n
	// enumeration tractable.
	MaxLength = 16
)

var (
	// ErrLengthOutOfRange is returned when a length is outside [MinLength, MaxLength].
	ErrLengthOutOfRange = errors.New("pattern length out of range")
	// ErrMalformedPattern is returned when a pattern string holds a character other than '0' or '1'.
	ErrMalformedPattern = errors.New("malformed pattern")
	// ErrConstantPattern is returned for the all-false and all-true patterns, which
	// contradict the fixed-zero origin of the grid.
	ErrConstantPattern = errors.New("constant pattern")
)

// Pattern is an ordered sequence of booleans.
type Pattern []bool

// Run is a maximal contiguous block of equal values within a Pattern.
type Run struct {
	Value bool
	Start int
	Len   int
}

// End returns the index one past the last position of the run.
func (r Run) End() int {
	return r.Start + r.Len
}

// CheckLength returns an error wrapping ErrLengthOutOfRange if n is not a
// supported pattern length.
func CheckLength(n int) error {
	if n < MinLength || n > MaxLength {
		return fmt.Errorf("length %d not in [%d,%d]: %w", n, MinLength, MaxLength, ErrLengthOutOfRange)
	}
	return nil
}

// Parse reads a pattern written as a string of '0' and '1' characters, '1'
// being true. It only checks the characters; use Validate for the instance
// invariants.
func Parse(s string) (Pattern, error) {
	p := make(Pattern, len(s))
	for i, c := range s {
		switch c {
		case '0':
		case '1':
			p[i] = true
		default:
			return nil, fmt.Errorf("%q: character %q at %d: %w", s, c, i, ErrMalformedPattern)
		}
	}
	return p, nil
}

// Validate checks that p has a supported length and is not constant.
func Validate(p Pattern) error {
	if err := CheckLength(len(p)); err != nil {
		return err
	}
	if p.IsConstant() {
		return fmt.Errorf("%v: %w", p, ErrConstantPattern)
	}
	return nil
}

// IsConstant reports whether all values of p are equal. The empty pattern is
// constant.
func (p Pattern) IsConstant() bool {
	for i := 1; i < len(p); i++ {
		if p[i] != p[0] {
			return false
		}
	}
	return true
}

// Runs returns the ordered run decomposition of p. The run lengths sum to
// len(p).
func (p Pattern) Runs() []Run {
	var runs []Run
	low := 0
	for i := 1; i <= len(p); i++ {
		if i == len(p) || p[i] != p[i-1] {
			runs = append(runs, Run{Value: p[low], Start: low, Len: i - low})
			low = i
		}
	}
	return runs
}

// Clone returns a copy of p that shares no storage with it.
func (p Pattern) Clone() Pattern {
	if p == nil {
		return nil
	}
	c := make(Pattern, len(p))
	copy(c, p)
	return c
}

// String renders p as a bitstring, e.g. "0011".
func (p Pattern) String() string {
	var sb strings.Builder
	sb.Grow(len(p))
	for _, b := range p {
		if b {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}
