/*************************************************************************
 * Copyright 2026 ClassicMiniDIY. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package formula

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/classicminidiy/ultralog/logmodel"
)

// ErrUnknownReference is returned by Evaluate (and by Validate) when a
// formula names a channel the bound log does not resolve.
var ErrUnknownReference = errors.New("formula references an unknown channel")

// UnresolvedReference names the specific reference that failed to
// resolve, wrapping ErrUnknownReference.
type UnresolvedReference struct {
	Name string
}

func (e *UnresolvedReference) Error() string {
	return fmt.Sprintf("unknown channel reference %q", e.Name)
}

func (e *UnresolvedReference) Unwrap() error { return ErrUnknownReference }

// Source is the read surface Evaluate needs from a bound log. A
// *logmodel.Log satisfies this directly.
type Source interface {
	Records() int
	Time() []float64
	IndexOf(canonicalName string) (int, bool)
	Cell(channel, record int) logmodel.Cell
}

type compiled interface {
	eval(ctx *evalCtx, row int) (float64, bool)
}

type evalCtx struct {
	src  Source
	time []float64
}

type cNumber struct{ v float64 }

func (n cNumber) eval(*evalCtx, int) (float64, bool) { return n.v, true }

type cRef struct {
	channel        int
	offset         OffsetKind
	indexOffset    int
	timeOffsetSecs float64
}

func (n cRef) eval(ctx *evalCtx, row int) (float64, bool) {
	record := row
	switch n.offset {
	case OffsetIndex:
		record = row + n.indexOffset
	case OffsetTime:
		target := ctx.time[row] + n.timeOffsetSecs
		idx := searchTimeFloor(ctx.time, target)
		if idx < 0 {
			return 0, false
		}
		record = idx
	}
	if record < 0 || record >= len(ctx.time) {
		return 0, false
	}
	return ctx.src.Cell(n.channel, record).Numeric()
}

// searchTimeFloor returns the greatest index i such that time[i] <=
// target, or -1 if no such index exists, via binary search per
// spec.md §4.5's "binary search on the time column" requirement. A
// timestamp within a relative 1e-9 of target counts as equal, so a
// target computed in floating point (0.3 + -0.2 is 0.09999999999999998)
// still lands on the record stamped 0.1.
func searchTimeFloor(time []float64, target float64) int {
	tol := 1e-9 * math.Max(1, math.Abs(target))
	i := sort.Search(len(time), func(i int) bool { return time[i] > target+tol })
	return i - 1
}

type cUnary struct {
	op byte
	x  compiled
}

func (n cUnary) eval(ctx *evalCtx, row int) (float64, bool) {
	x, ok := n.x.eval(ctx, row)
	if !ok {
		return 0, false
	}
	if n.op == '-' {
		return -x, true
	}
	return x, true
}

type cBinary struct {
	op   byte
	l, r compiled
}

func (n cBinary) eval(ctx *evalCtx, row int) (float64, bool) {
	l, ok := n.l.eval(ctx, row)
	if !ok {
		return 0, false
	}
	r, ok := n.r.eval(ctx, row)
	if !ok {
		return 0, false
	}
	switch n.op {
	case '+':
		return finite(l + r)
	case '-':
		return finite(l - r)
	case '*':
		return finite(l * r)
	case '/':
		if r == 0 {
			return 0, false
		}
		return finite(l / r)
	case '%':
		if r == 0 {
			return 0, false
		}
		return finite(math.Mod(l, r))
	case '^':
		return finite(math.Pow(l, r))
	}
	return 0, false
}

type cCall struct {
	fn   string
	args []compiled
}

func (n cCall) eval(ctx *evalCtx, row int) (float64, bool) {
	vals := make([]float64, len(n.args))
	for i, a := range n.args {
		v, ok := a.eval(ctx, row)
		if !ok {
			return 0, false
		}
		vals[i] = v
	}
	switch n.fn {
	case "sin":
		return finite(math.Sin(vals[0]))
	case "cos":
		return finite(math.Cos(vals[0]))
	case "tan":
		return finite(math.Tan(vals[0]))
	case "asin":
		return finite(math.Asin(vals[0]))
	case "acos":
		return finite(math.Acos(vals[0]))
	case "atan":
		return finite(math.Atan(vals[0]))
	case "atan2":
		return finite(math.Atan2(vals[0], vals[1]))
	case "sqrt":
		return finite(math.Sqrt(vals[0]))
	case "abs":
		return finite(math.Abs(vals[0]))
	case "exp":
		return finite(math.Exp(vals[0]))
	case "ln":
		return finite(math.Log(vals[0]))
	case "log":
		return finite(math.Log10(vals[0]))
	case "floor":
		return finite(math.Floor(vals[0]))
	case "ceil":
		return finite(math.Ceil(vals[0]))
	case "round":
		return finite(math.Round(vals[0]))
	case "pow":
		return finite(math.Pow(vals[0], vals[1]))
	case "min":
		m := vals[0]
		for _, v := range vals[1:] {
			if v < m {
				m = v
			}
		}
		return finite(m)
	case "max":
		m := vals[0]
		for _, v := range vals[1:] {
			if v > m {
				m = v
			}
		}
		return finite(m)
	}
	return 0, false
}

// finite turns a NaN or infinite math result into absent, per spec.md
// §4.5's "division by zero and ln/sqrt of negative arguments produce
// absent, not a failure" rule generalized to every function and
// operator in the grammar.
func finite(v float64) (float64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func compile(n Node, src Source) (compiled, error) {
	switch v := n.(type) {
	case NumberNode:
		return cNumber{v: v.Value}, nil
	case RefNode:
		idx, ok := src.IndexOf(v.Name)
		if !ok {
			return nil, &UnresolvedReference{Name: v.Name}
		}
		return cRef{channel: idx, offset: v.Offset, indexOffset: v.IndexOffset, timeOffsetSecs: v.TimeOffsetSecs}, nil
	case UnaryNode:
		x, err := compile(v.X, src)
		if err != nil {
			return nil, err
		}
		return cUnary{op: v.Op, x: x}, nil
	case BinaryNode:
		l, err := compile(v.L, src)
		if err != nil {
			return nil, err
		}
		r, err := compile(v.R, src)
		if err != nil {
			return nil, err
		}
		return cBinary{op: v.Op, l: l, r: r}, nil
	case CallNode:
		args := make([]compiled, len(v.Args))
		for i, a := range v.Args {
			c, err := compile(a, src)
			if err != nil {
				return nil, err
			}
			args[i] = c
		}
		return cCall{fn: v.Func, args: args}, nil
	}
	return nil, fmt.Errorf("formula: unknown node type %T", n)
}

// Evaluate runs prog once per record of src, propagating absence
// through every operator and function per spec.md §4.5, and returns
// one Cell per record. It resolves every reference against src once
// up front (returning *UnresolvedReference on the first miss) rather
// than re-resolving per row.
func Evaluate(prog *Program, src Source) ([]logmodel.Cell, error) {
	root, err := compile(prog.Root, src)
	if err != nil {
		return nil, err
	}
	ctx := &evalCtx{src: src, time: src.Time()}
	out := make([]logmodel.Cell, src.Records())
	for i := range out {
		v, ok := root.eval(ctx, i)
		if !ok {
			out[i] = logmodel.AbsentCell
			continue
		}
		out[i] = logmodel.NewNumericCell(v)
	}
	return out, nil
}
