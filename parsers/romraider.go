/*************************************************************************
 * Copyright 2026 ClassicMiniDIY. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package parsers

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/classicminidiy/ultralog/logmodel"
)

func romRaiderTimeIndex(fields []string) int {
	for i, f := range fields {
		if strings.EqualFold(strings.TrimSpace(f), "time (msec)") {
			return i
		}
	}
	return -1
}

// splitRomRaiderUnit splits a RomRaider header's trailing parenthesized
// unit, e.g. "Engine Speed (rpm)" -> ("Engine Speed", "rpm"). A header
// with no such suffix is returned unchanged with an empty unit.
func splitRomRaiderUnit(name string) (base string, unit string) {
	name = strings.TrimSpace(name)
	if !strings.HasSuffix(name, ")") {
		return name, ""
	}
	open := strings.LastIndex(name, "(")
	if open < 0 {
		return name, ""
	}
	unit = strings.TrimSpace(name[open+1 : len(name)-1])
	base = strings.TrimSpace(name[:open])
	if base == "" || unit == "" {
		return name, ""
	}
	return base, unit
}

func detectRomRaider(head []byte) bool {
	line := firstLine(head)
	if !strings.Contains(line, ",") {
		return false
	}
	return romRaiderTimeIndex(splitTrim(line, ',')) >= 0
}

// ParseRomRaider reads a RomRaider-style logger CSV: a single
// comma-delimited header row containing a "Time (msec)" column,
// followed by comma-delimited data rows. Per the open question on
// RomRaider's millisecond clock (DESIGN.md), the time column is
// converted to seconds and then rebased relative to the log's own
// first record, not to any wall-clock origin.
func ParseRomRaider(ctx context.Context, r io.Reader, opts ParseOptions) (*logmodel.Log, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	if !sc.Scan() {
		return nil, &CorruptFormat{Detail: "RomRaider log has no header row"}
	}
	rawNames := splitTrim(sc.Text(), ',')
	timeIdx := romRaiderTimeIndex(rawNames)
	if timeIdx < 0 {
		return nil, &CorruptFormat{Detail: "RomRaider header is missing Time (msec)"}
	}

	n := len(rawNames)
	cols := make([][]string, n)
	var rowCount int64

	for sc.Scan() {
		if rowCount%cancelCheckInterval == 0 && checkCancel(ctx) {
			return nil, ErrCancelled
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := splitTrim(line, ',')
		if len(fields) != n {
			opts.logger().Warn("skipping malformed RomRaider row", "row", rowCount, "expected", n, "got", len(fields))
			continue
		}
		for i, f := range fields {
			cols[i] = append(cols[i], f)
		}
		rowCount++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("parsers: reading RomRaider stream: %w", err)
	}
	if rowCount == 0 {
		return nil, &CorruptFormat{Detail: "RomRaider log contains no data rows"}
	}

	msVals := cols[timeIdx]
	times := make([]float64, len(msVals))
	for i, v := range msVals {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, &CorruptFormat{Offset: int64(i), Detail: "non-numeric Time (msec) value"}
		}
		times[i] = f / 1000.0
	}
	base := times[0]
	for i := range times {
		times[i] -= base
	}

	dataCols := make([][]string, 0, n-1)
	dataIdx := make([]int, 0, n-1)
	for i := 0; i < n; i++ {
		if i == timeIdx {
			continue
		}
		dataCols = append(dataCols, cols[i])
		dataIdx = append(dataIdx, i)
	}
	classified := classifyColumns(dataCols)

	b := logmodel.NewBuilder(times)
	for k, i := range dataIdx {
		chName, unit := splitRomRaiderUnit(rawNames[i])
		canonical := opts.canonicalize(chName)
		cc := classified[k]
		ch := logmodel.Channel{RawName: rawNames[i], CanonicalName: canonical, Kind: cc.kind}
		meta := logmodel.ChannelMetadata{}
		if unit != "" {
			meta.SourceUnit = unit
		}
		b.AddChannel(ch, cc.cells, meta, cc.enum)
	}

	return b.Build(opts.Fingerprint)
}
