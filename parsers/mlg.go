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
	"fmt"
	"io"

	"github.com/classicminidiy/ultralog/logmodel"
)

var mlgMagic = [5]byte{'M', 'L', 'V', 'L', 'G'}

func detectMLG(head []byte) bool {
	return len(head) >= len(mlgMagic) && bytes.Equal(head[:len(mlgMagic)], mlgMagic[:])
}

type mlgFieldType uint8

// MLG's declared channel types, per spec.md §4.4 parser D: signed and
// unsigned 8/16/32/64-bit integers, 32-bit float, plus the 64-bit
// float and categorical extensions this layout adds for a full
// round-trip. Every integer type is descaled the same way a float
// sample is (raw*scale+bias) — scale/offset exists precisely so a
// compact integer sample can carry a fractional engineering value.
const (
	mlgFloat32     mlgFieldType = 0
	mlgFloat64     mlgFieldType = 1
	mlgCategorical mlgFieldType = 2
	mlgInt8        mlgFieldType = 3
	mlgUint8       mlgFieldType = 4
	mlgInt16       mlgFieldType = 5
	mlgUint16      mlgFieldType = 6
	mlgInt32       mlgFieldType = 7
	mlgUint32      mlgFieldType = 8
	mlgInt64       mlgFieldType = 9
	mlgUint64      mlgFieldType = 10
)

type mlgChannelHeader struct {
	name        string
	kind        mlgFieldType
	scale, bias float64
	unit        string
	enum        []string
}

func wrapMLG(offset int64, err error) error {
	return &CorruptFormat{Offset: offset, Detail: fmt.Sprintf("truncated MLG header: %v", err)}
}

func readMLGChannelHeader(br *bufio.Reader, offset int64) (mlgChannelHeader, error) {
	var nameLen uint16
	if err := binary.Read(br, binary.LittleEndian, &nameLen); err != nil {
		return mlgChannelHeader{}, wrapMLG(offset, err)
	}
	nameBytes := make([]byte, nameLen)
	if _, err := io.ReadFull(br, nameBytes); err != nil {
		return mlgChannelHeader{}, wrapMLG(offset, err)
	}
	var typeCode uint8
	if err := binary.Read(br, binary.LittleEndian, &typeCode); err != nil {
		return mlgChannelHeader{}, wrapMLG(offset, err)
	}
	var scale, bias float64
	if err := binary.Read(br, binary.LittleEndian, &scale); err != nil {
		return mlgChannelHeader{}, wrapMLG(offset, err)
	}
	if err := binary.Read(br, binary.LittleEndian, &bias); err != nil {
		return mlgChannelHeader{}, wrapMLG(offset, err)
	}
	var unitLen uint16
	if err := binary.Read(br, binary.LittleEndian, &unitLen); err != nil {
		return mlgChannelHeader{}, wrapMLG(offset, err)
	}
	unitBytes := make([]byte, unitLen)
	if _, err := io.ReadFull(br, unitBytes); err != nil {
		return mlgChannelHeader{}, wrapMLG(offset, err)
	}

	h := mlgChannelHeader{name: string(nameBytes), kind: mlgFieldType(typeCode), scale: scale, bias: bias, unit: string(unitBytes)}
	if h.kind == mlgCategorical {
		var enumCount uint16
		if err := binary.Read(br, binary.LittleEndian, &enumCount); err != nil {
			return mlgChannelHeader{}, wrapMLG(offset, err)
		}
		for i := uint16(0); i < enumCount; i++ {
			var sLen uint16
			if err := binary.Read(br, binary.LittleEndian, &sLen); err != nil {
				return mlgChannelHeader{}, wrapMLG(offset, err)
			}
			sBytes := make([]byte, sLen)
			if _, err := io.ReadFull(br, sBytes); err != nil {
				return mlgChannelHeader{}, wrapMLG(offset, err)
			}
			h.enum = append(h.enum, string(sBytes))
		}
	}
	return h, nil
}

// ParseMLG reads the MLG binary format: a 5-byte "MLVLG" magic, a
// version and channel count, one typed/scaled channel header per
// channel (with an inline enum table for categorical channels), a
// record count, and finally that many fixed-width records. Each
// record is a float32 elapsed-time field followed by each channel's
// raw sample in header order; numeric samples are descaled as
// raw*scale+bias.
func ParseMLG(ctx context.Context, r io.Reader, opts ParseOptions) (*logmodel.Log, error) {
	br := bufio.NewReaderSize(r, 64*1024)

	var magic [5]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, &CorruptFormat{Detail: "truncated MLG magic"}
	}
	if magic != mlgMagic {
		return nil, &CorruptFormat{Detail: "bad MLG magic"}
	}

	var version, channelCount uint16
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return nil, wrapMLG(5, err)
	}
	if err := binary.Read(br, binary.LittleEndian, &channelCount); err != nil {
		return nil, wrapMLG(7, err)
	}

	headers := make([]mlgChannelHeader, channelCount)
	for i := range headers {
		h, err := readMLGChannelHeader(br, 9)
		if err != nil {
			return nil, err
		}
		headers[i] = h
	}

	var recordCount uint32
	if err := binary.Read(br, binary.LittleEndian, &recordCount); err != nil {
		return nil, wrapMLG(0, err)
	}
	if recordCount == 0 {
		return nil, &CorruptFormat{Detail: "MLG log contains no records"}
	}

	times := make([]float64, recordCount)
	cells := make([][]logmodel.Cell, channelCount)
	for i := range cells {
		cells[i] = make([]logmodel.Cell, recordCount)
	}

	for row := uint32(0); row < recordCount; row++ {
		if uint64(row)%cancelCheckInterval == 0 && checkCancel(ctx) {
			return nil, ErrCancelled
		}
		var t float32
		if err := binary.Read(br, binary.LittleEndian, &t); err != nil {
			return nil, &CorruptFormat{Detail: "truncated MLG record timestamp"}
		}
		times[row] = float64(t)
		for ci, h := range headers {
			switch h.kind {
			case mlgFloat32:
				var v float32
				if err := binary.Read(br, binary.LittleEndian, &v); err != nil {
					return nil, &CorruptFormat{Detail: "truncated MLG sample"}
				}
				cells[ci][row] = logmodel.NewNumericCell(float64(v)*h.scale + h.bias)
			case mlgFloat64:
				var v float64
				if err := binary.Read(br, binary.LittleEndian, &v); err != nil {
					return nil, &CorruptFormat{Detail: "truncated MLG sample"}
				}
				cells[ci][row] = logmodel.NewNumericCell(v*h.scale + h.bias)
			case mlgInt8:
				var v int8
				if err := binary.Read(br, binary.LittleEndian, &v); err != nil {
					return nil, &CorruptFormat{Detail: "truncated MLG sample"}
				}
				cells[ci][row] = logmodel.NewNumericCell(float64(v)*h.scale + h.bias)
			case mlgUint8:
				var v uint8
				if err := binary.Read(br, binary.LittleEndian, &v); err != nil {
					return nil, &CorruptFormat{Detail: "truncated MLG sample"}
				}
				cells[ci][row] = logmodel.NewNumericCell(float64(v)*h.scale + h.bias)
			case mlgInt16:
				var v int16
				if err := binary.Read(br, binary.LittleEndian, &v); err != nil {
					return nil, &CorruptFormat{Detail: "truncated MLG sample"}
				}
				cells[ci][row] = logmodel.NewNumericCell(float64(v)*h.scale + h.bias)
			case mlgUint16:
				var v uint16
				if err := binary.Read(br, binary.LittleEndian, &v); err != nil {
					return nil, &CorruptFormat{Detail: "truncated MLG sample"}
				}
				cells[ci][row] = logmodel.NewNumericCell(float64(v)*h.scale + h.bias)
			case mlgInt32:
				var v int32
				if err := binary.Read(br, binary.LittleEndian, &v); err != nil {
					return nil, &CorruptFormat{Detail: "truncated MLG sample"}
				}
				cells[ci][row] = logmodel.NewNumericCell(float64(v)*h.scale + h.bias)
			case mlgUint32:
				var v uint32
				if err := binary.Read(br, binary.LittleEndian, &v); err != nil {
					return nil, &CorruptFormat{Detail: "truncated MLG sample"}
				}
				cells[ci][row] = logmodel.NewNumericCell(float64(v)*h.scale + h.bias)
			case mlgInt64:
				var v int64
				if err := binary.Read(br, binary.LittleEndian, &v); err != nil {
					return nil, &CorruptFormat{Detail: "truncated MLG sample"}
				}
				cells[ci][row] = logmodel.NewNumericCell(float64(v)*h.scale + h.bias)
			case mlgUint64:
				var v uint64
				if err := binary.Read(br, binary.LittleEndian, &v); err != nil {
					return nil, &CorruptFormat{Detail: "truncated MLG sample"}
				}
				cells[ci][row] = logmodel.NewNumericCell(float64(v)*h.scale + h.bias)
			case mlgCategorical:
				var idx uint16
				if err := binary.Read(br, binary.LittleEndian, &idx); err != nil {
					return nil, &CorruptFormat{Detail: "truncated MLG sample"}
				}
				if int(idx) >= len(h.enum) {
					cells[ci][row] = logmodel.AbsentCell
				} else {
					cells[ci][row] = logmodel.NewCategoricalCell(int(idx))
				}
			default:
				return nil, &CorruptFormat{Detail: "unknown MLG channel type"}
			}
		}
	}

	base := times[0]
	for i := range times {
		times[i] -= base
	}

	b := logmodel.NewBuilder(times)
	for ci, h := range headers {
		kind := logmodel.KindNumeric
		var enum logmodel.EnumTable
		if h.kind == mlgCategorical {
			kind = logmodel.KindTextEnumerated
			enum = logmodel.EnumTable(h.enum)
		}
		ch := logmodel.Channel{RawName: h.name, CanonicalName: opts.canonicalize(h.name), Kind: kind}
		meta := logmodel.ChannelMetadata{SourceUnit: h.unit}
		b.AddChannel(ch, cells[ci], meta, enum)
	}
	return b.Build(opts.Fingerprint)
}
