/*************************************************************************
 * Copyright 2026 ClassicMiniDIY. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package logmodel implements the uniform in-memory log representation
// described in spec.md §3: a time base, a dense channel table, a
// column-major value table of tagged cells, and per-channel metadata.
package logmodel

import "math"

// CellKind tags the domain a Cell's payload should be interpreted in.
// Using an explicit tag (rather than a nullable float64 with NaN
// sentinels) lets a sparse per-channel-timestamped merge — as the AiM
// parser produces — represent "this channel has no sample at this
// record" exactly, distinct from "this channel's source value really
// was NaN," which is coerced to CellAbsent at parse time regardless
// (see NewNumericCell). Grounded on the teacher's
// ingest/entry.EnumeratedValue tagged-byte-plus-payload encoding.
type CellKind uint8

const (
	CellAbsent CellKind = iota
	CellNumeric
	CellCategorical
)

// Cell is one (row, channel) value. Value holds the finite numeric
// reading when Kind is CellNumeric, or the small integer enum index
// (stored as a float64 for a uniform column representation) when Kind
// is CellCategorical. Value is meaningless when Kind is CellAbsent.
type Cell struct {
	Kind  CellKind
	Value float64
}

// AbsentCell is the zero-cost shared "no data" value.
var AbsentCell = Cell{Kind: CellAbsent}

// NewNumericCell coerces NaN and Inf from the source into CellAbsent,
// per spec.md §3's invariant that every numeric cell is either absent
// or finite.
func NewNumericCell(v float64) Cell {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return AbsentCell
	}
	return Cell{Kind: CellNumeric, Value: v}
}

// NewCategoricalCell wraps an enum index discovered by a parser.
func NewCategoricalCell(idx int) Cell {
	return Cell{Kind: CellCategorical, Value: float64(idx)}
}

// Numeric returns the numeric value and whether the cell is present
// and numeric.
func (c Cell) Numeric() (float64, bool) {
	if c.Kind != CellNumeric {
		return 0, false
	}
	return c.Value, true
}

// Present reports whether the cell carries any value at all.
func (c Cell) Present() bool {
	return c.Kind != CellAbsent
}

// CategoricalIndex returns the enum index and whether the cell is a
// present categorical value.
func (c Cell) CategoricalIndex() (int, bool) {
	if c.Kind != CellCategorical {
		return 0, false
	}
	return int(c.Value), true
}

// ChannelKind identifies the value domain a channel's cells live in,
// per spec.md §3.
type ChannelKind uint8

const (
	KindNumeric ChannelKind = iota
	KindBoolean
	KindTextEnumerated
	KindMissingOnly
)

func (k ChannelKind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindBoolean:
		return "boolean"
	case KindTextEnumerated:
		return "text-enumerated"
	case KindMissingOnly:
		return "missing-only"
	default:
		return "unknown"
	}
}
