/*************************************************************************
 * Copyright 2026 ClassicMiniDIY. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package parsers implements the six log-format parsers behind one
// loading contract, and content-signature format detection, per
// spec.md §4.4 and §6. Three text formats (NSP, EMU, RomRaider) and
// three binary formats (MLG, AiM, Link) are recognized by signature,
// never by extension; the extension is only used to reorder the
// signature checks as a hint.
package parsers

import (
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/h2non/filetype"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/classicminidiy/ultralog/corelog"
	"github.com/classicminidiy/ultralog/logmodel"
	"github.com/classicminidiy/ultralog/normalize"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrCancelled         = errors.New("load cancelled")
)

// CorruptFormat reports a binary structural violation at a byte
// offset, per spec.md §7.
type CorruptFormat struct {
	Offset int64
	Detail string
}

func (e *CorruptFormat) Error() string {
	return fmt.Sprintf("corrupt format at offset %d: %s", e.Offset, e.Detail)
}

// cancelCheckInterval is how often (in rows/records) parsers must
// check the cancellation signal, per spec.md §4.4/§5.
const cancelCheckInterval = 4096

// sniffPrefixSize bounds how many bytes of the stream format
// detection inspects, per spec.md §6 ("within first 4 KB").
const sniffPrefixSize = 4096

// ParseOptions carries the inputs every parser needs beyond the byte
// stream itself: the host's user-name overrides and spec registry for
// the name normalizer (spec.md §4.4 "the parser runs it through the
// name normalizer with the host-provided user overrides"), and a
// logger for the per-row warning sink spec.md §7 requires.
type ParseOptions struct {
	UserOverrides map[string]string
	Registry      normalize.SpecResolver
	Logger        *corelog.Logger
	// Fingerprint is the content fingerprint the host already computed
	// over the raw stream (logmodel.Fingerprint), before format
	// detection consumed it. Parsers stamp it onto the built Log
	// rather than recomputing it, since by the time a format-specific
	// parser runs the original bytes have already been read past.
	Fingerprint string
}

func (o ParseOptions) logger() *corelog.Logger {
	if o.Logger == nil {
		return corelog.Discard
	}
	return o.Logger
}

func (o ParseOptions) canonicalize(raw string) string {
	return normalize.Canonicalize(raw, o.UserOverrides, o.Registry)
}

// Format describes one of the six parsers behind the detection table.
type Format struct {
	Name       string
	Extensions []string
	// Text marks the three delimited-text formats, which are eligible
	// for the legacy-encoding transcoding DetectAndParse applies ahead
	// of Parse; the three binary formats are never transcoded.
	Text bool
	// Detect inspects up to sniffPrefixSize bytes from the head of
	// the (possibly gzip-unwrapped) stream and reports a signature
	// match.
	Detect func(head []byte) bool
	// Parse consumes the full stream (head has already been peeked,
	// not consumed, so Parse always sees the complete stream from
	// byte zero).
	Parse func(ctx context.Context, r io.Reader, opts ParseOptions) (*logmodel.Log, error)
}

var registry = []Format{
	{Name: "nsp", Extensions: []string{".csv"}, Text: true, Detect: detectNSP, Parse: ParseNSP},
	{Name: "emu", Extensions: []string{".csv"}, Text: true, Detect: detectEMU, Parse: ParseEMU},
	{Name: "romraider", Extensions: []string{".csv"}, Text: true, Detect: detectRomRaider, Parse: ParseRomRaider},
	{Name: "mlg", Extensions: []string{".mlg"}, Detect: detectMLG, Parse: ParseMLG},
	{Name: "aim", Extensions: []string{".xrk", ".drk"}, Detect: detectAiM, Parse: ParseAiM},
	{Name: "link", Extensions: []string{".llg"}, Detect: detectLink, Parse: ParseLink},
}

// transcodeIfLegacy wraps r in a Windows-1252 decoder when head is not
// valid UTF-8, the common case for older vendor tools that exported
// degree signs and other Latin-1 punctuation in channel names and
// units. Binary formats never go through this path.
func transcodeIfLegacy(head []byte, r io.Reader) io.Reader {
	if utf8.Valid(head) {
		return r
	}
	return transform.NewReader(r, charmap.Windows1252.NewDecoder())
}

// unwrapGzip transparently decompresses a gzip-wrapped log, per
// SPEC_FULL.md §4.4. Detection is delegated to h2non/filetype, the
// same way the teacher's utils/extract.go decides whether to wrap a
// reader in compress/gzip before handing it to a format-specific
// decoder.
func unwrapGzip(head []byte, r io.Reader) (io.Reader, []byte, error) {
	tp, err := filetype.Match(head)
	if err != nil || tp.MIME.Subtype != "gzip" {
		return r, head, nil
	}
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, nil, err
	}
	br := bufio.NewReaderSize(gz, sniffPrefixSize)
	newHead, _ := br.Peek(sniffPrefixSize)
	return br, newHead, nil
}

// DetectAndParse sniffs the format signature at the head of r (per
// spec.md §6's detection table) and dispatches to the matching
// parser. extHint reorders the signature checks only; it never
// substitutes for a signature match. Unrecognized input returns
// ErrUnsupportedFormat.
//
// DetectAndParse does not compute opts.Fingerprint itself, since by
// the time a signature has been identified the stream may already be
// gzip-unwrapped and partially consumed. Callers that need dedup
// (ingestctl) fingerprint the raw file (logmodel.Fingerprint) on a
// fresh reader before opening the stream passed here.
func DetectAndParse(ctx context.Context, r io.Reader, extHint string, opts ParseOptions) (*logmodel.Log, error) {
	br := bufio.NewReaderSize(r, sniffPrefixSize)
	head, _ := br.Peek(sniffPrefixSize)

	var stream io.Reader = br
	var err error
	stream, head, err = unwrapGzip(head, br)
	if err != nil {
		return nil, err
	}

	for _, f := range orderedByHint(extHint) {
		if f.Detect(head) {
			opts.logger().Info("format detected", "format", f.Name)
			if f.Text {
				stream = transcodeIfLegacy(head, stream)
			}
			return f.Parse(ctx, stream, opts)
		}
	}
	return nil, ErrUnsupportedFormat
}

func orderedByHint(extHint string) []Format {
	if extHint == "" {
		return registry
	}
	ext := strings.ToLower(extHint)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	out := make([]Format, 0, len(registry))
	var rest []Format
	for _, f := range registry {
		matched := false
		for _, e := range f.Extensions {
			if e == ext {
				matched = true
				break
			}
		}
		if matched {
			out = append(out, f)
		} else {
			rest = append(rest, f)
		}
	}
	return append(out, rest...)
}

// checkCancel reports whether ctx has been cancelled, used at row/
// record boundaries per spec.md §4.4/§5. Observing cancellation is
// non-blocking.
func checkCancel(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
