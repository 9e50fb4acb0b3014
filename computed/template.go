/*************************************************************************
 * Copyright 2026 ClassicMiniDIY. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package computed implements the persistent computed-channel library
// described in spec.md §3 and §4.6: named formula templates kept in a
// process-wide document, instantiated against a bound log with
// cross-template cycle detection and lazy per-channel evaluation
// caching.
package computed

import (
	"github.com/classicminidiy/ultralog/formula"
)

// FormulaTemplate is a named formula with a declared output unit, per
// spec.md §3. Refs is derived once at construction from the parsed
// formula rather than recomputed on every instantiate.
type FormulaTemplate struct {
	ID          string
	Name        string
	Formula     string
	Unit        string
	Description string
	Refs        []formula.Reference
}

// NewTemplate parses src and returns a FormulaTemplate with its
// reference set populated, or the parse error formula.Parse produced.
func NewTemplate(id, name, src, unit, description string) (FormulaTemplate, error) {
	prog, err := formula.Parse(src)
	if err != nil {
		return FormulaTemplate{}, err
	}
	return FormulaTemplate{
		ID:          id,
		Name:        name,
		Formula:     src,
		Unit:        unit,
		Description: description,
		Refs:        prog.Refs,
	}, nil
}

// referencesByName reports whether t names target among its bound
// references.
func (t FormulaTemplate) referencesByName(target string) bool {
	for _, r := range t.Refs {
		if r.Name == target {
			return true
		}
	}
	return false
}
