/*************************************************************************
 * Copyright 2026 ClassicMiniDIY. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package formula

import (
	"math"
	"testing"

	"github.com/classicminidiy/ultralog/logmodel"
)

// fakeSource is a minimal Source for formula tests, independent of
// logmodel.Log's Builder invariants so tests can exercise out-of-range
// and absent-cell behavior directly.
type fakeSource struct {
	time    []float64
	columns map[string][]logmodel.Cell
	order   []string
}

func (f *fakeSource) Records() int        { return len(f.time) }
func (f *fakeSource) Time() []float64     { return f.time }
func (f *fakeSource) IndexOf(name string) (int, bool) {
	names := f.orderedNames()
	for i, n := range names {
		if n == name {
			return i, true
		}
	}
	return 0, false
}
func (f *fakeSource) Cell(channel, record int) logmodel.Cell {
	names := f.orderedNames()
	col := f.columns[names[channel]]
	if record < 0 || record >= len(col) {
		return logmodel.AbsentCell
	}
	return col[record]
}

func (f *fakeSource) orderedNames() []string { return f.order }

func newFakeSource(time []float64, cols map[string][]float64, order []string) *fakeSource {
	columns := make(map[string][]logmodel.Cell, len(cols))
	for name, vals := range cols {
		cells := make([]logmodel.Cell, len(vals))
		for i, v := range vals {
			cells[i] = logmodel.NewNumericCell(v)
		}
		columns[name] = cells
	}
	return &fakeSource{time: time, columns: columns, order: order}
}

func numeric(t *testing.T, c logmodel.Cell) float64 {
	t.Helper()
	v, ok := c.Numeric()
	if !ok {
		t.Fatalf("expected a present numeric cell")
	}
	return v
}

func TestSimpleArithmetic(t *testing.T) {
	src := newFakeSource([]float64{0, 1, 2}, map[string][]float64{"A": {1, 2, 3}, "B": {10, 20, 30}}, []string{"A", "B"})
	prog, err := Parse("A + B * 2")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cells, err := Evaluate(prog, src)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	want := []float64{21, 42, 63}
	for i, w := range want {
		if got := numeric(t, cells[i]); got != w {
			t.Fatalf("record %d: want %v, got %v", i, w, got)
		}
	}
}

func TestTimeOffsetFormula(t *testing.T) {
	// spec.md §8 scenario 4.
	time := []float64{0, 0.1, 0.2, 0.3, 0.4}
	boost := []float64{100, 110, 120, 130, 140}
	src := newFakeSource(time, map[string][]float64{"Boost": boost}, []string{"Boost"})

	prog, err := Parse(`Boost - Boost@-0.2s`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cells, err := Evaluate(prog, src)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if cells[0].Present() || cells[1].Present() {
		t.Fatalf("expected first two records absent, got %v, %v", cells[0], cells[1])
	}
	for i := 2; i < 5; i++ {
		if got := numeric(t, cells[i]); got != 20 {
			t.Fatalf("record %d: want 20, got %v", i, got)
		}
	}
}

func TestIndexOffsetOutOfBoundsIsAbsent(t *testing.T) {
	src := newFakeSource([]float64{0, 1, 2}, map[string][]float64{"A": {1, 2, 3}}, []string{"A"})
	prog, err := Parse("A[-1]")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cells, err := Evaluate(prog, src)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if cells[0].Present() {
		t.Fatal("expected record 0 with A[-1] to be absent (out of bounds)")
	}
	if got := numeric(t, cells[1]); got != 1 {
		t.Fatalf("record 1: want 1, got %v", got)
	}
}

func TestAbsencePropagates(t *testing.T) {
	src := &fakeSource{
		time: []float64{0, 1},
		columns: map[string][]logmodel.Cell{
			"A": {logmodel.NewNumericCell(5), logmodel.AbsentCell},
		},
		order: []string{"A"},
	}
	prog, err := Parse("A + 1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cells, err := Evaluate(prog, src)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !cells[0].Present() {
		t.Fatal("expected record 0 present")
	}
	if cells[1].Present() {
		t.Fatal("expected record 1 absent (A was absent)")
	}
}

func TestDivisionByZeroIsAbsentNotError(t *testing.T) {
	src := newFakeSource([]float64{0}, map[string][]float64{"A": {5}, "B": {0}}, []string{"A", "B"})
	prog, err := Parse("A / B")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cells, err := Evaluate(prog, src)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if cells[0].Present() {
		t.Fatal("expected division by zero to be absent")
	}
}

func TestSqrtOfNegativeIsAbsent(t *testing.T) {
	src := newFakeSource([]float64{0}, map[string][]float64{"A": {-4}}, []string{"A"})
	prog, err := Parse("sqrt(A)")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cells, err := Evaluate(prog, src)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if cells[0].Present() {
		t.Fatal("expected sqrt of a negative number to be absent")
	}
}

func TestFunctionCallAndPrecedence(t *testing.T) {
	src := newFakeSource([]float64{0}, map[string][]float64{"A": {4}}, []string{"A"})
	prog, err := Parse("sqrt(A) + 2 ^ 3")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cells, err := Evaluate(prog, src)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got := numeric(t, cells[0]); math.Abs(got-10) > 1e-9 {
		t.Fatalf("want 10, got %v", got)
	}
}

func TestQuotedIdentifier(t *testing.T) {
	src := newFakeSource([]float64{0}, map[string][]float64{"Manifold Pressure": {99}}, []string{"Manifold Pressure"})
	prog, err := Parse(`"Manifold Pressure" * 2`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cells, err := Evaluate(prog, src)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got := numeric(t, cells[0]); got != 198 {
		t.Fatalf("want 198, got %v", got)
	}
}

func TestValidateSelfReferenceIsCyclic(t *testing.T) {
	src := newFakeSource([]float64{0}, map[string][]float64{"A": {1}}, []string{"A"})
	result := Validate("A", "A + 1", src)
	if result.Verdict != VerdictCyclic {
		t.Fatalf("expected VerdictCyclic, got %v", result.Verdict)
	}
}

func TestValidateMissingReference(t *testing.T) {
	src := newFakeSource([]float64{0}, map[string][]float64{"A": {1}}, []string{"A"})
	result := Validate("Derived", "A + Ghost", src)
	if result.Verdict != VerdictMissingReference {
		t.Fatalf("expected VerdictMissingReference, got %v", result.Verdict)
	}
	if len(result.Missing) != 1 || result.Missing[0] != "Ghost" {
		t.Fatalf("expected Missing=[Ghost], got %v", result.Missing)
	}
}

func TestValidateParseError(t *testing.T) {
	src := newFakeSource([]float64{0}, map[string][]float64{"A": {1}}, []string{"A"})
	result := Validate("Derived", "A + * 2", src)
	if result.Verdict != VerdictParseError {
		t.Fatalf("expected VerdictParseError, got %v", result.Verdict)
	}
}

func TestParseRejectsUnknownFunction(t *testing.T) {
	_, err := Parse("frobnicate(A)")
	if err == nil {
		t.Fatal("expected an error for an unrecognized function-like call")
	}
}

func TestParseRejectsWrongArity(t *testing.T) {
	_, err := Parse("atan2(A)")
	if err == nil {
		t.Fatal("expected arity mismatch error for atan2 with one argument")
	}
}

func TestEvaluateUnknownReference(t *testing.T) {
	src := newFakeSource([]float64{0}, map[string][]float64{"A": {1}}, []string{"A"})
	prog, err := Parse("Ghost + 1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, err = Evaluate(prog, src)
	if err == nil {
		t.Fatal("expected an unresolved-reference error")
	}
}
