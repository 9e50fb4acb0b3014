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
	"math"

	"github.com/classicminidiy/ultralog/logmodel"
)

var linkMagic = [4]byte{'L', 'L', 'G', '1'}

func detectLink(head []byte) bool {
	return len(head) >= len(linkMagic) && bytes.Equal(head[:len(linkMagic)], linkMagic[:])
}

type linkFieldType uint8

const (
	linkFloat32     linkFieldType = 0
	linkFloat64     linkFieldType = 1
	linkCategorical linkFieldType = 2
)

func linkFieldWidth(t linkFieldType) int {
	switch t {
	case linkFloat32:
		return 4
	case linkFloat64:
		return 8
	case linkCategorical:
		return 2
	default:
		return 0
	}
}

type linkChannel struct {
	name   string
	kind   linkFieldType
	offset uint32
	unit   string
	enum   []string
}

// ParseLink reads the Link LLG binary format: a 4-byte "LLG1" magic,
// a fixed record stride, a channel count, then a header table giving
// each channel's type and byte offset within that stride (time itself
// occupies the first 4 bytes of every record as a float32), followed
// by a record count and that many fixed-stride raw records decoded by
// offset rather than read sequentially, unlike MLG's sequential
// layout.
func ParseLink(ctx context.Context, r io.Reader, opts ParseOptions) (*logmodel.Log, error) {
	br := bufio.NewReaderSize(r, 64*1024)

	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, &CorruptFormat{Detail: "truncated Link magic"}
	}
	if magic != linkMagic {
		return nil, &CorruptFormat{Detail: "bad Link magic"}
	}

	var recordStride uint32
	if err := binary.Read(br, binary.LittleEndian, &recordStride); err != nil {
		return nil, &CorruptFormat{Detail: "truncated Link record stride"}
	}
	var channelCount uint16
	if err := binary.Read(br, binary.LittleEndian, &channelCount); err != nil {
		return nil, &CorruptFormat{Detail: "truncated Link channel count"}
	}

	channels := make([]linkChannel, channelCount)
	for ci := range channels {
		name, err := readPascalString(br)
		if err != nil {
			return nil, &CorruptFormat{Detail: "truncated Link channel name"}
		}
		var typeCode uint8
		if err := binary.Read(br, binary.LittleEndian, &typeCode); err != nil {
			return nil, &CorruptFormat{Detail: "truncated Link channel type"}
		}
		var byteOffset uint32
		if err := binary.Read(br, binary.LittleEndian, &byteOffset); err != nil {
			return nil, &CorruptFormat{Detail: "truncated Link channel offset"}
		}
		unit, err := readPascalString(br)
		if err != nil {
			return nil, &CorruptFormat{Detail: "truncated Link channel unit"}
		}
		ch := linkChannel{name: name, kind: linkFieldType(typeCode), offset: byteOffset, unit: unit}
		if ch.kind == linkCategorical {
			var enumCount uint16
			if err := binary.Read(br, binary.LittleEndian, &enumCount); err != nil {
				return nil, &CorruptFormat{Detail: "truncated Link enum count"}
			}
			for i := uint16(0); i < enumCount; i++ {
				s, err := readPascalString(br)
				if err != nil {
					return nil, &CorruptFormat{Detail: "truncated Link enum value"}
				}
				ch.enum = append(ch.enum, s)
			}
		}
		width := linkFieldWidth(ch.kind)
		if width == 0 || uint32(width)+ch.offset > recordStride {
			return nil, &CorruptFormat{Detail: "Link channel offset exceeds record stride"}
		}
		channels[ci] = ch
	}

	var recordCount uint32
	if err := binary.Read(br, binary.LittleEndian, &recordCount); err != nil {
		return nil, &CorruptFormat{Detail: "truncated Link record count"}
	}
	if recordCount == 0 || recordStride < 4 {
		return nil, &CorruptFormat{Detail: "Link log contains no usable records"}
	}

	times := make([]float64, recordCount)
	cells := make([][]logmodel.Cell, channelCount)
	for i := range cells {
		cells[i] = make([]logmodel.Cell, recordCount)
	}

	raw := make([]byte, recordStride)
	for row := uint32(0); row < recordCount; row++ {
		if uint64(row)%cancelCheckInterval == 0 && checkCancel(ctx) {
			return nil, ErrCancelled
		}
		if _, err := io.ReadFull(br, raw); err != nil {
			return nil, &CorruptFormat{Detail: "truncated Link record"}
		}
		times[row] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[0:4])))
		for ci, ch := range channels {
			off := ch.offset
			switch ch.kind {
			case linkFloat32:
				bits := binary.LittleEndian.Uint32(raw[off : off+4])
				cells[ci][row] = logmodel.NewNumericCell(float64(math.Float32frombits(bits)))
			case linkFloat64:
				bits := binary.LittleEndian.Uint64(raw[off : off+8])
				cells[ci][row] = logmodel.NewNumericCell(math.Float64frombits(bits))
			case linkCategorical:
				idx := binary.LittleEndian.Uint16(raw[off : off+2])
				if int(idx) >= len(ch.enum) {
					cells[ci][row] = logmodel.AbsentCell
				} else {
					cells[ci][row] = logmodel.NewCategoricalCell(int(idx))
				}
			}
		}
	}

	base := times[0]
	for i := range times {
		times[i] -= base
	}

	b := logmodel.NewBuilder(times)
	for ci, ch := range channels {
		kind := logmodel.KindNumeric
		var enum logmodel.EnumTable
		if ch.kind == linkCategorical {
			kind = logmodel.KindTextEnumerated
			enum = logmodel.EnumTable(ch.enum)
		}
		channel := logmodel.Channel{RawName: ch.name, CanonicalName: opts.canonicalize(ch.name), Kind: kind}
		meta := logmodel.ChannelMetadata{SourceUnit: ch.unit}
		b.AddChannel(channel, cells[ci], meta, enum)
	}
	return b.Build(opts.Fingerprint)
}
