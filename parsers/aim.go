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
	"encoding/binary"
	"io"
	"sort"

	"github.com/classicminidiy/ultralog/logmodel"
)

var aimMagic = [4]byte{'A', 'I', 'M', 'X'}

func detectAiM(head []byte) bool {
	return len(head) >= len(aimMagic) && bytes.Equal(head[:len(aimMagic)], aimMagic[:])
}

type aimSample struct {
	t float64
	v float64
}

type aimChannel struct {
	name    string
	unit    string
	samples []aimSample
}

// ParseAiM reads the AiM XRK/DRK binary format: a 4-byte "AIMX"
// magic, a channel count, then per channel a name, a unit, a sample
// count and that many (timestamp, value) pairs recorded on the
// channel's own independent clock. AiM channels are rarely sampled on
// a shared clock, so every channel's samples are merged onto the
// union of all distinct timestamps seen across every channel; a
// channel with no sample at a given timestamp is left absent there
// rather than interpolated, per spec.md §4.4's merge rule.
func ParseAiM(ctx context.Context, r io.Reader, opts ParseOptions) (*logmodel.Log, error) {
	br := bufio.NewReaderSize(r, 64*1024)

	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, &CorruptFormat{Detail: "truncated AiM magic"}
	}
	if magic != aimMagic {
		return nil, &CorruptFormat{Detail: "bad AiM magic"}
	}

	var channelCount uint16
	if err := binary.Read(br, binary.LittleEndian, &channelCount); err != nil {
		return nil, &CorruptFormat{Detail: "truncated AiM channel count"}
	}
	if channelCount == 0 {
		return nil, &CorruptFormat{Detail: "AiM log declares zero channels"}
	}

	channels := make([]aimChannel, channelCount)
	var sampleTotal uint64
	for ci := range channels {
		name, err := readPascalString(br)
		if err != nil {
			return nil, &CorruptFormat{Detail: "truncated AiM channel name"}
		}
		unit, err := readPascalString(br)
		if err != nil {
			return nil, &CorruptFormat{Detail: "truncated AiM channel unit"}
		}
		var sampleCount uint32
		if err := binary.Read(br, binary.LittleEndian, &sampleCount); err != nil {
			return nil, &CorruptFormat{Detail: "truncated AiM sample count"}
		}
		samples := make([]aimSample, sampleCount)
		for si := range samples {
			sampleTotal++
			if sampleTotal%cancelCheckInterval == 0 && checkCancel(ctx) {
				return nil, ErrCancelled
			}
			var t, v float64
			if err := binary.Read(br, binary.LittleEndian, &t); err != nil {
				return nil, &CorruptFormat{Detail: "truncated AiM sample timestamp"}
			}
			if err := binary.Read(br, binary.LittleEndian, &v); err != nil {
				return nil, &CorruptFormat{Detail: "truncated AiM sample value"}
			}
			samples[si] = aimSample{t: t, v: v}
		}
		channels[ci] = aimChannel{name: name, unit: unit, samples: samples}
	}

	union := map[float64]bool{}
	for _, ch := range channels {
		for _, s := range ch.samples {
			union[s.t] = true
		}
	}
	if len(union) == 0 {
		return nil, &CorruptFormat{Detail: "AiM log contains no samples on any channel"}
	}
	times := make([]float64, 0, len(union))
	for t := range union {
		times = append(times, t)
	}
	sort.Float64s(times)
	base := times[0]
	for i := range times {
		times[i] -= base
	}

	b := logmodel.NewBuilder(times)
	for _, ch := range channels {
		cells := make([]logmodel.Cell, len(times))
		idx := make(map[float64]float64, len(ch.samples))
		for _, s := range ch.samples {
			idx[s.t] = s.v
		}
		for i, t := range times {
			if v, ok := idx[t+base]; ok {
				cells[i] = logmodel.NewNumericCell(v)
			} else {
				cells[i] = logmodel.AbsentCell
			}
		}
		channel := logmodel.Channel{RawName: ch.name, CanonicalName: opts.canonicalize(ch.name), Kind: logmodel.KindNumeric}
		meta := logmodel.ChannelMetadata{SourceUnit: ch.unit}
		b.AddChannel(channel, cells, meta, nil)
	}
	return b.Build(opts.Fingerprint)
}
