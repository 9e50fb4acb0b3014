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

// emuDelim picks the EMU format's delimiter: a semicolon-delimited
// header wins over tab, since the vendor's own export tool defaults to
// semicolons and only falls back to tabs for locales where ';' is a
// decimal separator.
func emuDelim(headerLine string) (byte, bool) {
	if strings.Count(headerLine, ";") >= 1 {
		return ';', true
	}
	if strings.Count(headerLine, "\t") >= 1 {
		return '\t', true
	}
	return 0, false
}

func emuTimeIndex(fields []string) int {
	for i, f := range fields {
		if strings.EqualFold(strings.TrimSpace(f), "time") {
			return i
		}
	}
	return -1
}

func detectEMU(head []byte) bool {
	line := firstLine(head)
	delim, ok := emuDelim(line)
	if !ok {
		return false
	}
	return emuTimeIndex(splitTrim(line, delim)) >= 0
}

func firstLine(head []byte) string {
	s := string(head)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}

// ParseEMU reads an EMU-style export: a names header row, a units row,
// then delimited data rows, using whichever of ';' or tab the header
// row used. The required TIME column may appear at any position and is
// rebased so the log's first sample lands at t=0.
func ParseEMU(ctx context.Context, r io.Reader, opts ParseOptions) (*logmodel.Log, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	if !sc.Scan() {
		return nil, &CorruptFormat{Detail: "EMU log has no header row"}
	}
	headerLine := sc.Text()
	delim, ok := emuDelim(headerLine)
	if !ok {
		return nil, &CorruptFormat{Detail: "EMU header has no recognized delimiter"}
	}
	rawNames := splitTrim(headerLine, delim)
	timeIdx := emuTimeIndex(rawNames)
	if timeIdx < 0 {
		return nil, &CorruptFormat{Detail: "EMU header is missing the required TIME column"}
	}

	if !sc.Scan() {
		return nil, &CorruptFormat{Detail: "EMU log has no units row"}
	}
	units := splitTrim(sc.Text(), delim)

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
		fields := splitTrim(line, delim)
		if len(fields) != n {
			opts.logger().Warn("skipping malformed EMU row", "row", rowCount, "expected", n, "got", len(fields))
			continue
		}
		for i, f := range fields {
			cols[i] = append(cols[i], f)
		}
		rowCount++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("parsers: reading EMU stream: %w", err)
	}
	if rowCount == 0 {
		return nil, &CorruptFormat{Detail: "EMU log contains no data rows"}
	}

	timeVals := cols[timeIdx]
	times := make([]float64, len(timeVals))
	for i, v := range timeVals {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, &CorruptFormat{Offset: int64(i), Detail: "non-numeric TIME value"}
		}
		times[i] = f
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
		canonical := opts.canonicalize(rawNames[i])
		cc := classified[k]
		ch := logmodel.Channel{RawName: rawNames[i], CanonicalName: canonical, Kind: cc.kind}
		meta := logmodel.ChannelMetadata{}
		if i < len(units) && units[i] != "" {
			meta.SourceUnit = units[i]
		}
		b.AddChannel(ch, cc.cells, meta, cc.enum)
	}

	return b.Build(opts.Fingerprint)
}
