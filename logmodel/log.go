/*************************************************************************
 * Copyright 2026 ClassicMiniDIY. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package logmodel

import (
	"errors"
)

var (
	ErrNonMonotonicTime  = errors.New("log time column is not non-decreasing")
	ErrFirstTimeNotZero  = errors.New("log first timestamp is not zero")
	ErrChannelRowMismatch = errors.New("channel value column length does not match record count")
	ErrUnknownChannel     = errors.New("unknown channel")
)

// Channel is one column's identity: the name as the source file wrote
// it, the canonical name resolved by the normalizer at parse time, and
// its value-domain kind.
type Channel struct {
	RawName       string
	CanonicalName string
	Kind          ChannelKind
}

// ChannelMetadata is the optional per-channel display-time attributes
// a parser discovered directly in the source file (distinct from the
// registry-sourced ChannelSpec, which supplies category/display
// bounds from the embedded vendor specs rather than the file itself).
type ChannelMetadata struct {
	SourceUnit    string
	HasSourceMin  bool
	SourceMin     float64
	HasSourceMax  bool
	SourceMax     float64
	HasPrecision  bool
	Precision     int
	VendorTag     string
}

// ChannelRange is the summary statistics pass Build runs once over
// every channel's column (min/max over numeric cells), supplementing
// spec.md's channels(handle) operation with payload the distilled
// spec names but does not shape (see SPEC_FULL.md "Supplemented
// features").
type ChannelRange struct {
	HasMin       bool
	Min          float64
	HasMax       bool
	Max          float64
	AbsentCount  int
	FirstPresent int // record index of first present value, -1 if none
	LastPresent  int // record index of last present value, -1 if none
}

// EnumTable maps a text-enumerated channel's small integer indices
// back to their original string tags, in discovery order.
type EnumTable []string

// Warning is one malformed-row or corrupt-structure note a parser
// recorded while still being able to keep going, per spec.md §7's
// "per-row parse failures are counted and logged ... but do not abort
// a load" policy.
type Warning struct {
	RowOrOffset int64
	Detail      string
}

// Log is the uniform, immutable-after-parse artifact spec.md §3
// describes. Construct one with NewBuilder from a parser, never by
// hand — the invariants (dense channel indices, non-decreasing time,
// first timestamp zero) are enforced at Build time. Finite-or-absent
// numeric cells come from NewNumericCell; Build does not re-check the
// cells.
type Log struct {
	time     []float64
	channels []Channel
	values   [][]Cell // values[channel][record]
	metadata []ChannelMetadata
	ranges   []ChannelRange
	enums    []EnumTable
	fingerprint string
	warnings []Warning

	index map[string]int // canonical name -> channel index
}

// Records returns the number of rows (R) in the log.
func (l *Log) Records() int { return len(l.time) }

// NumChannels returns the number of channels (C) in the log.
func (l *Log) NumChannels() int { return len(l.channels) }

// Time returns the shared, read-only time column.
func (l *Log) Time() []float64 { return l.time }

// Channel returns the identity of channel i.
func (l *Log) Channel(i int) Channel { return l.channels[i] }

// Metadata returns the source-declared metadata of channel i.
func (l *Log) Metadata(i int) ChannelMetadata { return l.metadata[i] }

// Range returns the cached summary statistics of channel i.
func (l *Log) Range(i int) ChannelRange { return l.ranges[i] }

// EnumTable returns the discovered string tags of a text-enumerated
// channel, or nil if the channel is not text-enumerated.
func (l *Log) EnumTable(i int) EnumTable { return l.enums[i] }

// Fingerprint is the stable content hash computed over the source
// bytes (see fingerprint.go), used by the ingestion orchestrator for
// dedup.
func (l *Log) Fingerprint() string { return l.fingerprint }

// Warnings returns the warnings recorded through Builder.AddWarning.
// The parsers in package parsers report malformed rows only through
// their logger and do not call AddWarning, so for a parsed Log the
// list is empty.
func (l *Log) Warnings() []Warning { return l.warnings }

// IndexOf resolves a canonical channel name to its dense index.
func (l *Log) IndexOf(canonicalName string) (int, bool) {
	i, ok := l.index[canonicalName]
	return i, ok
}

// Cell returns the value at (channel, record). It panics on an
// out-of-range channel index (a programmer error — callers resolve
// channel indices via IndexOf first) but returns AbsentCell for an
// out-of-range record, matching the formula engine's "out of bounds
// is absent" semantics so the same accessor serves both callers.
func (l *Log) Cell(channel, record int) Cell {
	col := l.values[channel]
	if record < 0 || record >= len(col) {
		return AbsentCell
	}
	return col[record]
}

// Column returns the raw, read-only value column of a channel.
func (l *Log) Column(channel int) []Cell { return l.values[channel] }

// Builder accumulates a Log from a parser's streaming output one
// channel at a time, then validates and freezes the invariants at
// Build. Parsers grow each channel's buffer geometrically as they
// stream rows (spec.md §4.4); Builder just takes the finished columns.
type Builder struct {
	time     []float64
	channels []Channel
	values   [][]Cell
	metadata []ChannelMetadata
	enums    []EnumTable
	warnings []Warning
}

func NewBuilder(time []float64) *Builder {
	return &Builder{time: time}
}

// AddChannel appends a fully-populated column. len(values) must equal
// len(time); Build returns ErrChannelRowMismatch otherwise.
func (b *Builder) AddChannel(ch Channel, values []Cell, meta ChannelMetadata, enum EnumTable) {
	b.channels = append(b.channels, ch)
	b.values = append(b.values, values)
	b.metadata = append(b.metadata, meta)
	b.enums = append(b.enums, enum)
}

func (b *Builder) AddWarning(rowOrOffset int64, detail string) {
	b.warnings = append(b.warnings, Warning{RowOrOffset: rowOrOffset, Detail: detail})
}

// Build validates the accumulated state against spec.md §3's
// invariants and returns an immutable Log.
func (b *Builder) Build(fingerprint string) (*Log, error) {
	if err := validateTime(b.time); err != nil {
		return nil, err
	}
	for _, col := range b.values {
		if len(col) != len(b.time) {
			return nil, ErrChannelRowMismatch
		}
	}
	l := &Log{
		time:        b.time,
		channels:    b.channels,
		values:      b.values,
		metadata:    b.metadata,
		enums:       b.enums,
		fingerprint: fingerprint,
		warnings:    b.warnings,
		index:       make(map[string]int, len(b.channels)),
	}
	l.ranges = make([]ChannelRange, len(l.channels))
	for i, ch := range l.channels {
		l.index[ch.CanonicalName] = i
		l.ranges[i] = summarize(l.values[i])
	}
	return l, nil
}

func validateTime(t []float64) error {
	if len(t) == 0 {
		return nil
	}
	if t[0] != 0 {
		return ErrFirstTimeNotZero
	}
	for i := 1; i < len(t); i++ {
		if t[i] < t[i-1] {
			return ErrNonMonotonicTime
		}
	}
	return nil
}

func summarize(col []Cell) ChannelRange {
	r := ChannelRange{FirstPresent: -1, LastPresent: -1}
	for i, c := range col {
		if !c.Present() {
			r.AbsentCount++
			continue
		}
		if r.FirstPresent == -1 {
			r.FirstPresent = i
		}
		r.LastPresent = i
		if c.Kind != CellNumeric {
			continue
		}
		if !r.HasMin || c.Value < r.Min {
			r.Min, r.HasMin = c.Value, true
		}
		if !r.HasMax || c.Value > r.Max {
			r.Max, r.HasMax = c.Value, true
		}
	}
	return r
}

// ChannelSummary is the host-facing payload of the channels(handle)
// operation (spec.md §6), bundling identity, unit, and range.
type ChannelSummary struct {
	RawName       string
	CanonicalName string
	Kind          ChannelKind
	SourceUnit    string
	Range         ChannelRange
}

// Summaries returns the host-facing channel list for this log.
func (l *Log) Summaries() []ChannelSummary {
	out := make([]ChannelSummary, len(l.channels))
	for i, ch := range l.channels {
		out[i] = ChannelSummary{
			RawName:       ch.RawName,
			CanonicalName: ch.CanonicalName,
			Kind:          ch.Kind,
			SourceUnit:    l.metadata[i].SourceUnit,
			Range:         l.ranges[i],
		}
	}
	return out
}
