/*************************************************************************
 * Copyright 2026 ClassicMiniDIY. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package logmodel

import (
	"encoding/binary"
	"encoding/hex"
	"io"

	"github.com/minio/highwayhash"
)

// fingerprintPrefixSize bounds how much of a (possibly very large)
// source file the orchestrator reads to compute a content fingerprint,
// per spec.md §4.8: "a fast streaming hash over a bounded prefix plus
// length."
const fingerprintPrefixSize = 4 * 1024 * 1024

// fingerprintKey is a fixed module-wide key for highwayhash.Sum128.
// highwayhash.Sum128 requires a 32-byte key; since this fingerprint
// is a local dedup signature, not a security boundary, a constant key
// baked into the binary is adequate, matching the teacher's own
// ingest/processors/jsonfilter.go use of a single process-lifetime
// key for its highwayhash-backed field dedup sets.
var fingerprintKey = [32]byte{
	0x75, 0x6c, 0x74, 0x72, 0x61, 0x6c, 0x6f, 0x67,
	0x2d, 0x66, 0x69, 0x6e, 0x67, 0x65, 0x72, 0x70,
	0x72, 0x69, 0x6e, 0x74, 0x2d, 0x6b, 0x65, 0x79,
	0x2d, 0x76, 0x31, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// Fingerprint computes the dedup signature spec.md §4.8/§8 calls for:
// a HighwayHash-128 digest over the first fingerprintPrefixSize bytes
// of r, folded together with the total byte length so that two files
// sharing a common prefix but differing only past the bound (or in
// length) still produce distinct fingerprints.
func Fingerprint(r io.Reader) (string, error) {
	h, err := highwayhash.New128(fingerprintKey[:])
	if err != nil {
		return "", err
	}
	limited := io.LimitReader(r, fingerprintPrefixSize)
	n, err := io.Copy(h, limited)
	if err != nil {
		return "", err
	}
	// Drain and count the remainder so the fingerprint reflects total
	// length without hashing gigabytes of tail data.
	var total int64 = n
	var discard [64 * 1024]byte
	for {
		m, rerr := r.Read(discard[:])
		total += int64(m)
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return "", rerr
		}
		if m == 0 {
			break
		}
	}
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(total))
	sum := h.Sum(nil)
	sum = append(sum, lenBuf[:]...)
	final, err := highwayhash.New128(fingerprintKey[:])
	if err != nil {
		return "", err
	}
	if _, err := final.Write(sum); err != nil {
		return "", err
	}
	return hex.EncodeToString(final.Sum(nil)), nil
}
