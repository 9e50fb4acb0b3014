/*************************************************************************
 * Copyright 2026 ClassicMiniDIY. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package parsers

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/classicminidiy/ultralog/logmodel"
)

// nspSentinel is the vendor banner line that opens every NSP export,
// used as the format's content signature per spec.md §6. It is never
// matched by extension alone.
const nspSentinel = "%DataLog%"

func detectNSP(head []byte) bool {
	return bytes.Contains(head, []byte(nspSentinel))
}

// ParseNSP reads an NSP-style CSV log: a %DataLog% banner line, a
// single comma-delimited header row naming each channel (the first
// column is always the elapsed-time column, regardless of its
// header text), followed by comma-delimited data rows. Time is
// rebased relative to the first data row so the log's first sample
// always lands at t=0, per logmodel's Builder invariant.
func ParseNSP(ctx context.Context, r io.Reader, opts ParseOptions) (*logmodel.Log, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var headerLine string
	sawSentinel := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !sawSentinel {
			if strings.Contains(line, nspSentinel) {
				sawSentinel = true
			}
			continue
		}
		headerLine = line
		break
	}
	if !sawSentinel || headerLine == "" {
		return nil, &CorruptFormat{Detail: "missing NSP header after %DataLog% banner"}
	}

	rawNames := splitTrim(headerLine, ',')
	if len(rawNames) < 2 {
		return nil, &CorruptFormat{Detail: "NSP header has no data channels"}
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
			opts.logger().Warn("skipping malformed NSP row", "row", rowCount, "expected", n, "got", len(fields))
			continue
		}
		for i, f := range fields {
			cols[i] = append(cols[i], f)
		}
		rowCount++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("parsers: reading NSP stream: %w", err)
	}
	if rowCount == 0 {
		return nil, &CorruptFormat{Detail: "NSP log contains no data rows"}
	}

	timeVals := cols[0]
	times := make([]float64, len(timeVals))
	for i, v := range timeVals {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, &CorruptFormat{Offset: int64(i), Detail: "non-numeric time value"}
		}
		times[i] = f
	}
	base := times[0]
	for i := range times {
		times[i] -= base
	}

	classified := classifyColumns(cols[1:])
	b := logmodel.NewBuilder(times)
	for i := 1; i < n; i++ {
		canonical := opts.canonicalize(rawNames[i])
		cc := classified[i-1]
		ch := logmodel.Channel{RawName: rawNames[i], CanonicalName: canonical, Kind: cc.kind}
		b.AddChannel(ch, cc.cells, logmodel.ChannelMetadata{}, cc.enum)
	}

	return b.Build(opts.Fingerprint)
}
