/*************************************************************************
 * Copyright 2026 ClassicMiniDIY. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package downsample

import (
	"math"
	"testing"

	"github.com/classicminidiy/ultralog/logmodel"
)

func sineWave(n int) ([]float64, []logmodel.Cell) {
	time := make([]float64, n)
	cells := make([]logmodel.Cell, n)
	for i := 0; i < n; i++ {
		time[i] = float64(i) * 0.01
		cells[i] = logmodel.NewNumericCell(math.Sin(float64(i) / 50.0))
	}
	return time, cells
}

func TestLTTBReducesPointCountAndPreservesEndpoints(t *testing.T) {
	// spec.md §8 scenario 3.
	time, cells := sineWave(10000)
	out := LTTB(time, cells, 100)
	if len(out) != 100 {
		t.Fatalf("want 100 points, got %d", len(out))
	}
	if out[0].T != time[0] {
		t.Fatalf("expected first point preserved, got %v", out[0])
	}
	if out[len(out)-1].T != time[len(time)-1] {
		t.Fatalf("expected last point preserved, got %v", out[len(out)-1])
	}
}

func TestLTTBPreservesTimeOrder(t *testing.T) {
	time, cells := sineWave(5000)
	out := LTTB(time, cells, 250)
	for i := 1; i < len(out); i++ {
		if out[i].T <= out[i-1].T {
			t.Fatalf("time order violated at %d: %v then %v", i, out[i-1], out[i])
		}
	}
}

func TestLTTBIsDeterministic(t *testing.T) {
	time, cells := sineWave(3000)
	a := LTTB(time, cells, 120)
	b := LTTB(time, cells, 120)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("record %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestLTTBReturnsVerbatimWhenUnderBudget(t *testing.T) {
	time, cells := sineWave(50)
	out := LTTB(time, cells, 2000)
	if len(out) != 50 {
		t.Fatalf("want 50 (verbatim), got %d", len(out))
	}
}

func TestLTTBSkipsAbsentPoints(t *testing.T) {
	time := []float64{0, 1, 2, 3, 4}
	cells := []logmodel.Cell{
		logmodel.NewNumericCell(1),
		logmodel.AbsentCell,
		logmodel.NewNumericCell(3),
		logmodel.AbsentCell,
		logmodel.NewNumericCell(5),
	}
	out := LTTB(time, cells, 2000)
	if len(out) != 3 {
		t.Fatalf("want 3 finite points, got %d: %v", len(out), out)
	}
}

func TestLTTBEmptySeriesReturnsNil(t *testing.T) {
	time := []float64{0, 1, 2}
	cells := []logmodel.Cell{logmodel.AbsentCell, logmodel.AbsentCell, logmodel.AbsentCell}
	out := LTTB(time, cells, 2000)
	if out != nil {
		t.Fatalf("expected nil for an all-absent series, got %v", out)
	}
}
