/*************************************************************************
 * Copyright 2026 ClassicMiniDIY. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package parsers

import (
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/classicminidiy/ultralog/logmodel"
)

// rawColumn accumulates the string cells a text parser read for one
// channel, one row at a time, using a missing sentinel for blank or
// absent cells. append already grows the backing array
// geometrically, satisfying spec.md §4.4's "grown geometrically"
// buffer-sizing guidance without hand-rolled doubling logic.
type rawColumn struct {
	name   string
	values []string // "" means missing for this row
}

// classify decides a column's ChannelKind from its accumulated string
// values and builds the corresponding Cell slice: every present value
// parses as a float -> numeric; any present value that does not parse
// -> text-enumerated, with no cap on the number of distinct tokens;
// every value missing -> missing-only.
func classify(values []string) (logmodel.ChannelKind, []logmodel.Cell, logmodel.EnumTable) {
	cells := make([]logmodel.Cell, len(values))
	allNumeric := true
	anyPresent := false
	for _, v := range values {
		if v == "" {
			continue
		}
		anyPresent = true
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			allNumeric = false
		}
	}
	if !anyPresent {
		return logmodel.KindMissingOnly, cells, nil
	}
	if allNumeric {
		for i, v := range values {
			if v == "" {
				cells[i] = logmodel.AbsentCell
				continue
			}
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				cells[i] = logmodel.AbsentCell
				continue
			}
			cells[i] = logmodel.NewNumericCell(f)
		}
		return logmodel.KindNumeric, cells, nil
	}
	// text-enumerated: assign dense indices in first-seen order
	index := map[string]int{}
	var enum logmodel.EnumTable
	for i, v := range values {
		if v == "" {
			cells[i] = logmodel.AbsentCell
			continue
		}
		idx, ok := index[v]
		if !ok {
			idx = len(enum)
			index[v] = idx
			enum = append(enum, v)
		}
		cells[i] = logmodel.NewCategoricalCell(idx)
	}
	return logmodel.KindTextEnumerated, cells, enum
}

// classifiedColumn is one channel's fully classified output, filled
// in place by classifyColumns so result order matches the input
// column order regardless of which goroutine finishes first.
type classifiedColumn struct {
	kind  logmodel.ChannelKind
	cells []logmodel.Cell
	enum  logmodel.EnumTable
}

// classifyColumns runs classify over every text column concurrently.
// Each column's string values were already fully read into memory by
// the calling scanner loop, so classification has no shared state and
// is an easy fit for errgroup's fan-out/fan-in, unlike the row-by-row
// scan itself which must stay sequential to preserve line numbers for
// malformed-row warnings.
func classifyColumns(cols [][]string) []classifiedColumn {
	out := make([]classifiedColumn, len(cols))
	var g errgroup.Group
	for i := range cols {
		i := i
		g.Go(func() error {
			kind, cells, enum := classify(cols[i])
			out[i] = classifiedColumn{kind: kind, cells: cells, enum: enum}
			return nil
		})
	}
	_ = g.Wait() // classify never returns an error
	return out
}

// splitTrim splits s on sep and trims surrounding whitespace from
// each field, the common case for all three text formats' header and
// data rows.
func splitTrim(s string, sep byte) []string {
	parts := strings.Split(s, string(sep))
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
