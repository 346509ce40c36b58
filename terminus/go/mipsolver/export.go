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

package mipsolver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gridopt/terminus/terminus/go/gridmodel"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ErrExport is returned when a model cannot be exported.
var ErrExport = errors.New("cannot export model")

const generalNamesPerLine = 10

func checkExportable(m *gridmodel.Model) error {
	if m == nil {
		return fmt.Errorf("nil model: %w", ErrExport)
	}
	n := gridmodel.VarIndex(len(m.Variables))
	check := func(vars []gridmodel.VarIndex, coeffs []int64, what string) error {
		if len(vars) != len(coeffs) {
			return fmt.Errorf("%s has %d variables and %d coefficients: %w", what, len(vars), len(coeffs), ErrExport)
		}
		for _, v := range vars {
			if v < 0 || v >= n {
				return fmt.Errorf("%s references variable %d of %d: %w", what, v, n, ErrExport)
			}
		}
		return nil
	}
	for i, ct := range m.Constraints {
		if err := check(ct.Vars, ct.Coeffs, fmt.Sprintf("constraint %d", i)); err != nil {
			return err
		}
	}
	if m.Objective != nil {
		return check(m.Objective.Vars, m.Objective.Coeffs, "objective")
	}
	return nil
}

func varName(m *gridmodel.Model, v gridmodel.VarIndex) string {
	if name := m.Variables[v].Name; name != "" {
		return name
	}
	return fmt.Sprintf("v%d", v)
}

func constraintName(ct gridmodel.LinearConstraint, i int) string {
	if ct.Name != "" {
		return ct.Name
	}
	return fmt.Sprintf("c%d", i)
}

// term is a merged variable coefficient.
type term struct {
	v     gridmodel.VarIndex
	coeff int64
}

// mergeTerms sums the coefficients of repeated variables, keeping the order
// of first appearance, and drops zero coefficients.
func mergeTerms(vars []gridmodel.VarIndex, coeffs []int64) []term {
	pos := make(map[gridmodel.VarIndex]int, len(vars))
	var terms []term
	for k, v := range vars {
		if p, ok := pos[v]; ok {
			terms[p].coeff += coeffs[k]
			continue
		}
		pos[v] = len(terms)
		terms = append(terms, term{v: v, coeff: coeffs[k]})
	}
	out := terms[:0]
	for _, t := range terms {
		if t.coeff != 0 {
			out = append(out, t)
		}
	}
	return out
}

func writeTerms(sb *strings.Builder, m *gridmodel.Model, terms []term) {
	if len(terms) == 0 {
		// LP format needs at least one term on the left-hand side.
		if len(m.Variables) > 0 {
			fmt.Fprintf(sb, " 0 %s", varName(m, 0))
		} else {
			sb.WriteString(" 0")
		}
		return
	}
	for k, t := range terms {
		switch {
		case t.coeff < 0:
			sb.WriteString(" -")
		case k > 0:
			sb.WriteString(" +")
		}
		c := t.coeff
		if c < 0 {
			c = -c
		}
		if c != 1 {
			fmt.Fprintf(sb, " %d", c)
		}
		fmt.Fprintf(sb, " %s", varName(m, t.v))
	}
}

// ExportModelAsLpFormat exports m in the CPLEX LP file format. All variables
// are declared general integers.
func ExportModelAsLpFormat(m *gridmodel.Model) (string, error) {
	if err := checkExportable(m); err != nil {
		return "", err
	}
	var sb strings.Builder
	if m.Name != "" {
		fmt.Fprintf(&sb, "\\Problem name: %s\n", m.Name)
	}

	sb.WriteString("Minimize\n obj:")
	if obj := m.Objective; obj != nil {
		writeTerms(&sb, m, mergeTerms(obj.Vars, obj.Coeffs))
		if obj.Offset > 0 {
			fmt.Fprintf(&sb, " + %d", obj.Offset)
		} else if obj.Offset < 0 {
			fmt.Fprintf(&sb, " - %d", -obj.Offset)
		}
	} else {
		writeTerms(&sb, m, nil)
	}
	sb.WriteString("\n")

	sb.WriteString("Subject To\n")
	for i, ct := range m.Constraints {
		name := constraintName(ct, i)
		terms := mergeTerms(ct.Vars, ct.Coeffs)
		d := ct.Domain
		switch {
		case d.IsFixed():
			fmt.Fprintf(&sb, " %s:", name)
			writeTerms(&sb, m, terms)
			fmt.Fprintf(&sb, " = %d\n", d.End)
		case d.HasLowerBound() && d.HasUpperBound():
			fmt.Fprintf(&sb, " %s_lo:", name)
			writeTerms(&sb, m, terms)
			fmt.Fprintf(&sb, " >= %d\n", d.Start)
			fmt.Fprintf(&sb, " %s_hi:", name)
			writeTerms(&sb, m, terms)
			fmt.Fprintf(&sb, " <= %d\n", d.End)
		case d.HasLowerBound():
			fmt.Fprintf(&sb, " %s:", name)
			writeTerms(&sb, m, terms)
			fmt.Fprintf(&sb, " >= %d\n", d.Start)
		case d.HasUpperBound():
			fmt.Fprintf(&sb, " %s:", name)
			writeTerms(&sb, m, terms)
			fmt.Fprintf(&sb, " <= %d\n", d.End)
		}
	}

	sb.WriteString("Bounds\n")
	for i, v := range m.Variables {
		name := varName(m, gridmodel.VarIndex(i))
		d := v.Domain
		switch {
		case d.IsFixed():
			fmt.Fprintf(&sb, " %s = %d\n", name, d.Start)
		case !d.HasLowerBound() && !d.HasUpperBound():
			fmt.Fprintf(&sb, " %s free\n", name)
		case d.Start == 0 && !d.HasUpperBound():
			// Default LP bounds.
		case !d.HasUpperBound():
			fmt.Fprintf(&sb, " %s >= %d\n", name, d.Start)
		case !d.HasLowerBound():
			fmt.Fprintf(&sb, " -inf <= %s <= %d\n", name, d.End)
		default:
			fmt.Fprintf(&sb, " %d <= %s <= %d\n", d.Start, name, d.End)
		}
	}

	if len(m.Variables) > 0 {
		sb.WriteString("General\n")
		for i := range m.Variables {
			if i > 0 && i%generalNamesPerLine == 0 {
				sb.WriteString("\n")
			}
			fmt.Fprintf(&sb, " %s", varName(m, gridmodel.VarIndex(i)))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("End\n")
	return sb.String(), nil
}

// boundValue returns a bound as a number, or nil for an unbounded side.
func boundValue(v int64, finite bool) any {
	if !finite {
		return nil
	}
	return v
}

func termList(m *gridmodel.Model, vars []gridmodel.VarIndex, coeffs []int64) []any {
	terms := make([]any, 0, len(vars))
	for k, v := range vars {
		terms = append(terms, map[string]any{"var": varName(m, v), "coeff": coeffs[k]})
	}
	return terms
}

// ModelSnapshot returns m as a protobuf Struct. Unbounded sides of domains
// are null. Terms are listed as built, without merging repeated variables.
func ModelSnapshot(m *gridmodel.Model) (*structpb.Struct, error) {
	if err := checkExportable(m); err != nil {
		return nil, err
	}
	vars := make([]any, 0, len(m.Variables))
	for i, v := range m.Variables {
		vars = append(vars, map[string]any{
			"name": varName(m, gridmodel.VarIndex(i)),
			"lb":   boundValue(v.Domain.Start, v.Domain.HasLowerBound()),
			"ub":   boundValue(v.Domain.End, v.Domain.HasUpperBound()),
		})
	}
	cts := make([]any, 0, len(m.Constraints))
	for i, ct := range m.Constraints {
		cts = append(cts, map[string]any{
			"name":  constraintName(ct, i),
			"terms": termList(m, ct.Vars, ct.Coeffs),
			"lb":    boundValue(ct.Domain.Start, ct.Domain.HasLowerBound()),
			"ub":    boundValue(ct.Domain.End, ct.Domain.HasUpperBound()),
		})
	}
	fields := map[string]any{
		"name":        m.Name,
		"variables":   vars,
		"constraints": cts,
	}
	if obj := m.Objective; obj != nil {
		fields["objective"] = map[string]any{
			"sense":  "minimize",
			"terms":  termList(m, obj.Vars, obj.Coeffs),
			"offset": obj.Offset,
		}
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrExport)
	}
	return s, nil
}

// ExportModelAsJSON exports the snapshot of m as indented JSON.
func ExportModelAsJSON(m *gridmodel.Model) (string, error) {
	s, err := ModelSnapshot(m)
	if err != nil {
		return "", err
	}
	b, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, ErrExport)
	}
	return string(b), nil
}
