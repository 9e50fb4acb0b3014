/*************************************************************************
 * Copyright 2026 ClassicMiniDIY. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package computed

import (
	"fmt"
	"strings"
	"sync"

	"github.com/classicminidiy/ultralog/formula"
	"github.com/classicminidiy/ultralog/logmodel"
)

// ValidationError reports why a single instantiate call could not bind
// a template to a log: either the formula itself doesn't parse, or a
// named reference doesn't resolve. Self- and cross-template cycles are
// reported as *CyclicReference instead.
type ValidationError struct {
	Verdict formula.Verdict
	Missing []string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Verdict == formula.VerdictParseError {
		return fmt.Sprintf("formula does not parse: %v", e.Err)
	}
	return fmt.Sprintf("unresolved references: %s", strings.Join(e.Missing, ", "))
}

// CyclicReference reports a self- or cross-template reference cycle
// found during instantiation, per spec.md §4.5/§4.6.
type CyclicReference struct {
	Path []string
}

func (e *CyclicReference) Error() string {
	return fmt.Sprintf("cyclic computed-channel reference: %s", strings.Join(e.Path, " -> "))
}

// ComputedChannel is a template bound to a specific log: its resolved
// reference table is implicit in src (a boundSource for
// apply_all_compatible, or the log itself for a single instantiate),
// and its evaluated series is computed at most once and cached.
type ComputedChannel struct {
	Template FormulaTemplate

	mu    sync.Mutex
	cache []logmodel.Cell
	done  bool
	src   formula.Source
}

// Values returns the evaluated series, computing it on first access
// and caching it for subsequent calls, per spec.md §3's "lazy cache of
// the evaluated value sequence."
func (c *ComputedChannel) Values() ([]logmodel.Cell, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return c.cache, nil
	}
	prog, err := formula.Parse(c.Template.Formula)
	if err != nil {
		return nil, err
	}
	cells, err := formula.Evaluate(prog, c.src)
	if err != nil {
		return nil, err
	}
	c.cache = cells
	c.done = true
	return cells, nil
}

// Instantiate binds a single template to log, per spec.md §4.6's
// `instantiate(id, log) -> ComputedChannel | ValidationError`.
func Instantiate(t FormulaTemplate, log *logmodel.Log) (*ComputedChannel, error) {
	result := formula.Validate(t.Name, t.Formula, log)
	switch result.Verdict {
	case formula.VerdictParseError:
		return nil, &ValidationError{Verdict: result.Verdict, Err: result.Err}
	case formula.VerdictCyclic:
		return nil, &CyclicReference{Path: []string{t.Name, t.Name}}
	case formula.VerdictMissingReference:
		return nil, &ValidationError{Verdict: result.Verdict, Missing: result.Missing}
	}
	return &ComputedChannel{Template: t, src: log}, nil
}

// boundSource layers a growing set of already-instantiated computed
// channels on top of a log's raw channels, so a later template in the
// same apply_all_compatible pass can reference an earlier one, per
// spec.md §4.5's "computed channels may reference other computed
// channels that are themselves already instantiated on the same log,
// in dependency order."
type boundSource struct {
	log      *logmodel.Log
	order    []string
	computed map[string]*ComputedChannel
}

func newBoundSource(log *logmodel.Log) *boundSource {
	return &boundSource{log: log, computed: map[string]*ComputedChannel{}}
}

func (s *boundSource) Records() int    { return s.log.Records() }
func (s *boundSource) Time() []float64 { return s.log.Time() }

func (s *boundSource) IndexOf(name string) (int, bool) {
	if i, ok := s.log.IndexOf(name); ok {
		return i, true
	}
	for i, n := range s.order {
		if n == name {
			return s.log.NumChannels() + i, true
		}
	}
	return 0, false
}

func (s *boundSource) Cell(channel, record int) logmodel.Cell {
	n := s.log.NumChannels()
	if channel < n {
		return s.log.Cell(channel, record)
	}
	idx := channel - n
	if idx < 0 || idx >= len(s.order) {
		return logmodel.AbsentCell
	}
	cc := s.computed[s.order[idx]]
	cells, err := cc.Values()
	if err != nil || record < 0 || record >= len(cells) {
		return logmodel.AbsentCell
	}
	return cells[record]
}

func (s *boundSource) add(cc *ComputedChannel) {
	s.order = append(s.order, cc.Template.Name)
	s.computed[cc.Template.Name] = cc
}

// ApplyAllCompatible instantiates every template in templates against
// log in dependency order, per spec.md §4.6's `apply_all_compatible`.
// A cross-template (or self-) reference cycle anywhere in templates
// aborts the whole call with *CyclicReference and no channels
// instantiated; a template whose references cannot resolve is skipped
// silently, and anything depending on it then fails to resolve in
// turn and is skipped too.
func ApplyAllCompatible(templates []FormulaTemplate, log *logmodel.Log) ([]*ComputedChannel, error) {
	byName := make(map[string]FormulaTemplate, len(templates))
	names := make([]string, 0, len(templates))
	for _, t := range templates {
		byName[t.Name] = t
		names = append(names, t.Name)
	}

	edges := make(map[string][]string, len(templates))
	for _, t := range templates {
		for _, r := range t.Refs {
			if _, ok := byName[r.Name]; ok {
				edges[t.Name] = append(edges[t.Name], r.Name)
			}
		}
	}

	if cyc := detectCycle(names, edges); cyc != nil {
		return nil, &CyclicReference{Path: cyc}
	}

	order := topoOrder(names, edges)

	src := newBoundSource(log)
	out := make([]*ComputedChannel, 0, len(templates))
	for _, name := range order {
		t := byName[name]
		result := formula.Validate(t.Name, t.Formula, src)
		if result.Verdict != formula.VerdictOK {
			continue
		}
		cc := &ComputedChannel{Template: t, src: src}
		src.add(cc)
		out = append(out, cc)
	}
	return out, nil
}

// detectCycle runs a DFS over the template-reference graph and returns
// the first cycle it finds (as a closed path, first and last entries
// equal), or nil if the graph is acyclic. The reported cycle is the
// first one the DFS visitation order encounters, not necessarily the
// globally shortest one.
func detectCycle(names []string, edges map[string][]string) []string {
	const white, gray, black = 0, 1, 2
	color := make(map[string]int, len(names))
	var path []string
	var found []string

	var visit func(n string)
	visit = func(n string) {
		if found != nil {
			return
		}
		color[n] = gray
		path = append(path, n)
		for _, dep := range edges[n] {
			if found != nil {
				return
			}
			if color[dep] == gray {
				start := 0
				for i, p := range path {
					if p == dep {
						start = i
						break
					}
				}
				cyc := append([]string{}, path[start:]...)
				found = append(cyc, dep)
				return
			}
			if color[dep] == white {
				visit(dep)
			}
		}
		if found == nil {
			color[n] = black
			path = path[:len(path)-1]
		}
	}

	for _, n := range names {
		if color[n] == white {
			visit(n)
			if found != nil {
				return found
			}
		}
	}
	return nil
}

// topoOrder returns names in dependency-first order (a template
// appears only after every template it references). The caller must
// have already confirmed the graph is acyclic.
func topoOrder(names []string, edges map[string][]string) []string {
	const white, black = 0, 1
	color := make(map[string]int, len(names))
	var out []string

	var visit func(n string)
	visit = func(n string) {
		color[n] = black
		for _, dep := range edges[n] {
			if color[dep] == white {
				visit(dep)
			}
		}
		out = append(out, n)
	}

	for _, n := range names {
		if color[n] == white {
			visit(n)
		}
	}
	return out
}
