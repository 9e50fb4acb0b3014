/*************************************************************************
 * Copyright 2026 ClassicMiniDIY. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package formula

// OffsetKind distinguishes a reference's record-relative addressing
// mode, per spec.md §4.5's ref_offset production.
type OffsetKind int

const (
	OffsetNone OffsetKind = iota
	OffsetIndex
	OffsetTime
)

// Node is any formula AST node.
type Node interface {
	node()
}

// NumberNode is a numeric literal.
type NumberNode struct {
	Value float64
}

// RefNode is a channel reference, optionally with an index or time
// offset (never both — the grammar allows either suffix, not both,
// per ref_offset's two independent optional groups being mutually
// exclusive in practice: a formula needs only one kind of alignment
// per reference).
type RefNode struct {
	Name           string
	Offset         OffsetKind
	IndexOffset    int     // valid when Offset == OffsetIndex
	TimeOffsetSecs float64 // valid when Offset == OffsetTime
}

// UnaryNode is a prefix +/- applied to X.
type UnaryNode struct {
	Op byte // '+' or '-'
	X  Node
}

// BinaryNode is a two-operand arithmetic expression.
type BinaryNode struct {
	Op   byte // '+', '-', '*', '/', '%', '^'
	L, R Node
}

// CallNode is a function application from the fixed function set.
type CallNode struct {
	Func string
	Args []Node
}

func (NumberNode) node() {}
func (RefNode) node()    {}
func (UnaryNode) node()  {}
func (BinaryNode) node() {}
func (CallNode) node()   {}

// Reference is one channel dependency a parsed formula names, derived
// for FormulaTemplate's "derived set of referenced canonical names
// with their offset kind and magnitude" (spec.md §3).
type Reference struct {
	Name   string
	Offset OffsetKind
	// Magnitude is IndexOffset (as a float64) when Offset ==
	// OffsetIndex, or TimeOffsetSecs when Offset == OffsetTime; zero
	// and meaningless when Offset == OffsetNone.
	Magnitude float64
}

// Program is a parsed formula: its root expression and every
// reference it names, in first-encountered order (duplicates kept —
// a formula can reference the same channel twice with different
// offsets).
type Program struct {
	Root Node
	Refs []Reference
}

func collectRefs(n Node, out *[]Reference) {
	switch v := n.(type) {
	case RefNode:
		m := 0.0
		switch v.Offset {
		case OffsetIndex:
			m = float64(v.IndexOffset)
		case OffsetTime:
			m = v.TimeOffsetSecs
		}
		*out = append(*out, Reference{Name: v.Name, Offset: v.Offset, Magnitude: m})
	case UnaryNode:
		collectRefs(v.X, out)
	case BinaryNode:
		collectRefs(v.L, out)
		collectRefs(v.R, out)
	case CallNode:
		for _, a := range v.Args {
			collectRefs(a, out)
		}
	}
}
