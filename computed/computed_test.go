/*************************************************************************
 * Copyright 2026 ClassicMiniDIY. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package computed

import (
	"path/filepath"
	"testing"

	"github.com/classicminidiy/ultralog/logmodel"
)

func buildLog(t *testing.T, time []float64, name string, values []float64) *logmodel.Log {
	t.Helper()
	b := logmodel.NewBuilder(time)
	cells := make([]logmodel.Cell, len(values))
	for i, v := range values {
		cells[i] = logmodel.NewNumericCell(v)
	}
	b.AddChannel(logmodel.Channel{RawName: name, CanonicalName: name, Kind: logmodel.KindNumeric}, cells, logmodel.ChannelMetadata{}, nil)
	log, err := b.Build("test-fp")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return log
}

func mustTemplate(t *testing.T, id, name, src, unit string) FormulaTemplate {
	t.Helper()
	tmpl, err := NewTemplate(id, name, src, unit, "")
	if err != nil {
		t.Fatalf("NewTemplate(%s): %v", name, err)
	}
	return tmpl
}

func TestApplyAllCompatibleRejectsCycle(t *testing.T) {
	log := buildLog(t, []float64{0, 1}, "Boost", []float64{1, 2})
	a := mustTemplate(t, "a", "A", "B + 1", "")
	b := mustTemplate(t, "b", "B", "A + 1", "")

	_, err := ApplyAllCompatible([]FormulaTemplate{a, b}, log)
	if err == nil {
		t.Fatal("expected a cyclic-reference error")
	}
	cyc, ok := err.(*CyclicReference)
	if !ok {
		t.Fatalf("expected *CyclicReference, got %T: %v", err, err)
	}
	if len(cyc.Path) < 2 {
		t.Fatalf("expected a non-trivial cycle path, got %v", cyc.Path)
	}
	// the reported cycle path must close back on itself.
	if cyc.Path[0] != cyc.Path[len(cyc.Path)-1] {
		t.Fatalf("expected a closed cycle path, got %v", cyc.Path)
	}
}

func TestApplyAllCompatibleChainsComputedChannels(t *testing.T) {
	log := buildLog(t, []float64{0, 1, 2}, "Boost", []float64{10, 20, 30})
	doubled := mustTemplate(t, "d", "Doubled", "Boost * 2", "psi")
	quadrupled := mustTemplate(t, "q", "Quadrupled", "Doubled * 2", "psi")

	channels, err := ApplyAllCompatible([]FormulaTemplate{quadrupled, doubled}, log)
	if err != nil {
		t.Fatalf("ApplyAllCompatible: %v", err)
	}
	if len(channels) != 2 {
		t.Fatalf("expected 2 instantiated channels, got %d", len(channels))
	}
	for _, cc := range channels {
		if cc.Template.Name == "Quadrupled" {
			vals, err := cc.Values()
			if err != nil {
				t.Fatalf("Values: %v", err)
			}
			want := []float64{40, 80, 120}
			for i, w := range want {
				v, ok := vals[i].Numeric()
				if !ok || v != w {
					t.Fatalf("record %d: want %v, got %v (present=%v)", i, w, v, ok)
				}
			}
		}
	}
}

func TestApplyAllCompatibleSkipsUnresolvable(t *testing.T) {
	log := buildLog(t, []float64{0, 1}, "Boost", []float64{1, 2})
	bad := mustTemplate(t, "x", "Derived", "Boost + Ghost", "")

	channels, err := ApplyAllCompatible([]FormulaTemplate{bad}, log)
	if err != nil {
		t.Fatalf("ApplyAllCompatible: %v", err)
	}
	if len(channels) != 0 {
		t.Fatalf("expected the unresolvable template to be skipped, got %d channels", len(channels))
	}
}

func TestInstantiateSelfReferenceIsCyclic(t *testing.T) {
	log := buildLog(t, []float64{0, 1}, "Boost", []float64{1, 2})
	selfRef := mustTemplate(t, "s", "Boost", "Boost + 1", "")

	_, err := Instantiate(selfRef, log)
	if _, ok := err.(*CyclicReference); !ok {
		t.Fatalf("expected *CyclicReference, got %T: %v", err, err)
	}
}

func TestLibraryPersistsAcrossOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "computed_channels.json")

	lib1, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	tmpl := mustTemplate(t, "", "Boost2x", "Boost * 2", "psi")
	id, err := lib1.Add(tmpl)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if id == "" {
		t.Fatal("expected a generated id")
	}

	lib2, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	list, err := lib2.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Name != "Boost2x" {
		t.Fatalf("expected the persisted template to survive a reopen, got %v", list)
	}
}

func TestLibraryRejectsDuplicateName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "computed_channels.json")
	lib, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t1 := mustTemplate(t, "", "Derived", "1 + 1", "")
	if _, err := lib.Add(t1); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := lib.Add(t1); err != ErrDuplicateName {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
}

func TestLibraryUpdateAndRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "computed_channels.json")
	lib, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id, err := lib.Add(mustTemplate(t, "", "Derived", "1 + 1", ""))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := lib.Update(id, mustTemplate(t, "", "Derived", "2 + 2", "")); err != nil {
		t.Fatalf("Update: %v", err)
	}
	list, err := lib.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Formula != "2 + 2" {
		t.Fatalf("expected the update to take effect, got %v", list)
	}
	if err := lib.Remove(id); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	list, err = lib.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected an empty library after Remove, got %v", list)
	}
}

func TestLibraryRemoveUnknownID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "computed_channels.json")
	lib, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := lib.Remove("nonexistent"); err != ErrTemplateNotFound {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
}
