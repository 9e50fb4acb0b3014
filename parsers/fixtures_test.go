/*************************************************************************
 * Copyright 2026 ClassicMiniDIY. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package parsers

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"io"
	"testing"
)

func newGzipWriter(w io.Writer) *gzip.Writer {
	return gzip.NewWriter(w)
}

// buildMLGFixture hand-assembles a minimal valid MLG stream: one
// numeric channel ("RPM", scale 1, bias 0) plus one scaled channel
// ("Boost", scale 2.0, bias 0) is overkill for the tests that use it,
// so this builds just a single scaled float32 channel across two
// records.
func buildMLGFixture(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("MLVLG")
	binary.Write(&buf, binary.LittleEndian, uint16(1))  // version
	binary.Write(&buf, binary.LittleEndian, uint16(1))  // channelCount

	name := "Boost"
	binary.Write(&buf, binary.LittleEndian, uint16(len(name)))
	buf.WriteString(name)
	binary.Write(&buf, binary.LittleEndian, uint8(0)) // mlgFloat32
	binary.Write(&buf, binary.LittleEndian, float64(2.0)) // scale
	binary.Write(&buf, binary.LittleEndian, float64(0.0)) // bias
	unit := "psi"
	binary.Write(&buf, binary.LittleEndian, uint16(len(unit)))
	buf.WriteString(unit)

	binary.Write(&buf, binary.LittleEndian, uint32(2)) // recordCount

	binary.Write(&buf, binary.LittleEndian, float32(0.0))
	binary.Write(&buf, binary.LittleEndian, float32(5.0)) // raw*2 = 10

	binary.Write(&buf, binary.LittleEndian, float32(0.1))
	binary.Write(&buf, binary.LittleEndian, float32(10.0)) // raw*2 = 20

	return buf.Bytes()
}

// buildMLGIntFixture hand-assembles an MLG stream with one int16
// channel ("CLT", scale 0.1, bias -40), the classic compact-integer
// descaling case spec.md §4.4 parser D calls for: a raw sample of 900
// descales to 900*0.1-40 = 50.
func buildMLGIntFixture(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("MLVLG")
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // version
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // channelCount

	name := "CLT"
	binary.Write(&buf, binary.LittleEndian, uint16(len(name)))
	buf.WriteString(name)
	binary.Write(&buf, binary.LittleEndian, uint8(5))       // mlgInt16
	binary.Write(&buf, binary.LittleEndian, float64(0.1))   // scale
	binary.Write(&buf, binary.LittleEndian, float64(-40.0)) // bias
	unit := "C"
	binary.Write(&buf, binary.LittleEndian, uint16(len(unit)))
	buf.WriteString(unit)

	binary.Write(&buf, binary.LittleEndian, uint32(2)) // recordCount

	binary.Write(&buf, binary.LittleEndian, float32(0.0))
	binary.Write(&buf, binary.LittleEndian, int16(900)) // 900*0.1-40 = 50

	binary.Write(&buf, binary.LittleEndian, float32(0.1))
	binary.Write(&buf, binary.LittleEndian, int16(-150)) // -150*0.1-40 = -55

	return buf.Bytes()
}
