/*************************************************************************
 * Copyright 2026 ClassicMiniDIY. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package specreg

import (
	"errors"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/classicminidiy/ultralog/corelog"
)

var ErrSpecRefresh = errors.New("spec refresh failed")

// aliasClaim records one vendor's claim on a lowercased alias, used to
// resolve spec.md §4.1's documented tie-break: the vendor matching the
// currently-loading log wins; otherwise the lexicographically first
// canonical name wins.
type aliasClaim struct {
	vendor    string
	canonical string
}

// snapshot is the registry's immutable, fully-indexed table. Readers
// only ever see a complete snapshot (never a partially-built one),
// published via atomic.Pointer so steady-state reads take no lock, per
// spec.md §4.1's "readers are lock-free on the steady path" design
// note and the teacher's ingest/config snapshot-swap idiom.
type snapshot struct {
	vendors   []VendorSpec
	aliases   map[string][]aliasClaim // lowercased alias -> claims
	metadata  map[string]ChannelSpec  // canonical id -> spec
	extPatterns []extBinding
}

type extBinding struct {
	pattern string
	vendor  int
}

func buildSnapshot(b Bundle) (*snapshot, error) {
	if len(b.Vendors) == 0 {
		return nil, ErrEmptyBundle
	}
	seen := map[string]bool{}
	s := &snapshot{
		vendors:  append([]VendorSpec(nil), b.Vendors...),
		aliases:  make(map[string][]aliasClaim),
		metadata: make(map[string]ChannelSpec),
	}
	for vi, v := range b.Vendors {
		if seen[v.Name] {
			return nil, ErrDuplicateVendor
		}
		seen[v.Name] = true
		for _, pat := range v.Format.Extensions {
			s.extPatterns = append(s.extPatterns, extBinding{pattern: pat, vendor: vi})
		}
		for _, ch := range v.Channels {
			if _, ok := s.metadata[ch.CanonicalID]; !ok {
				s.metadata[ch.CanonicalID] = ch
			}
			for _, alias := range ch.Aliases {
				key := strings.ToLower(strings.TrimSpace(alias))
				s.aliases[key] = append(s.aliases[key], aliasClaim{vendor: v.Name, canonical: ch.CanonicalID})
			}
		}
	}
	return s, nil
}

func (s *snapshot) resolve(rawName, vendorHint string) (string, bool) {
	claims, ok := s.aliases[strings.ToLower(strings.TrimSpace(rawName))]
	if !ok || len(claims) == 0 {
		return "", false
	}
	if vendorHint != "" {
		for _, c := range claims {
			if c.vendor == vendorHint {
				return c.canonical, true
			}
		}
	}
	best := claims[0].canonical
	for _, c := range claims[1:] {
		if c.canonical < best {
			best = c.canonical
		}
	}
	return best, true
}

func (s *snapshot) metadataFor(canonical string) (ChannelSpec, bool) {
	cs, ok := s.metadata[canonical]
	return cs, ok
}

func (s *snapshot) adaptersForExtension(ext string) []VendorSpec {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	probe := "sample." + ext
	seen := map[int]bool{}
	var out []VendorSpec
	for _, b := range s.extPatterns {
		matched, _ := doublestar.Match(strings.ToLower(b.pattern), probe)
		if matched && !seen[b.vendor] {
			seen[b.vendor] = true
			out = append(out, s.vendors[b.vendor])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Registry is the process-wide, read-mostly spec index described in
// spec.md §4.1. The zero value is not usable; construct one with New
// or NewFromEmbedded.
type Registry struct {
	snap atomic.Pointer[snapshot]
	lg   *corelog.Logger
}

// New builds a Registry from an already-assembled Bundle (e.g. one
// fetched and parsed by the host, or produced by LoadEmbeddedBundle).
func New(b Bundle, lg *corelog.Logger) (*Registry, error) {
	if lg == nil {
		lg = corelog.Discard
	}
	s, err := buildSnapshot(b)
	if err != nil {
		return nil, err
	}
	r := &Registry{lg: lg}
	r.snap.Store(s)
	return r, nil
}

// NewFromEmbedded builds a Registry from the bundle compiled into the
// binary under specreg/bundled.
func NewFromEmbedded(lg *corelog.Logger) (*Registry, error) {
	b, err := LoadEmbeddedBundle()
	if err != nil {
		return nil, err
	}
	return New(b, lg)
}

// ResolveCanonical implements normalize.SpecResolver: a raw channel
// name resolves against the alias pool with the documented
// lexicographic tie-break (no vendor hint).
func (r *Registry) ResolveCanonical(rawName string) (string, bool) {
	return r.snap.Load().resolve(rawName, "")
}

// ResolveCanonicalForVendor resolves with a vendor hint: if a vendor
// named vendorHint has claimed rawName as an alias, its canonical name
// wins regardless of lexicographic order, per spec.md §4.1's "the
// vendor that matches the currently-loading log wins" rule. Parsers
// that know which vendor spec they are parsing against should call
// this instead of ResolveCanonical.
func (r *Registry) ResolveCanonicalForVendor(rawName, vendorHint string) (string, bool) {
	return r.snap.Load().resolve(rawName, vendorHint)
}

// Metadata returns the ChannelSpec for a canonical name.
func (r *Registry) Metadata(canonicalName string) (ChannelSpec, bool) {
	return r.snap.Load().metadataFor(canonicalName)
}

// AdaptersForExtension returns every VendorSpec whose format
// descriptor's extension set matches ext, used as a detection hint
// per spec.md §4.1/§4.4.
func (r *Registry) AdaptersForExtension(ext string) []VendorSpec {
	return r.snap.Load().adaptersForExtension(ext)
}

// Vendors returns every vendor spec currently published.
func (r *Registry) Vendors() []VendorSpec {
	return append([]VendorSpec(nil), r.snap.Load().vendors...)
}

// Refresh atomically swaps in a new spec bundle, per spec.md §4.1's
// background refresh contract: readers see either the complete old
// table or the complete new one, never a mixture. If building the new
// snapshot fails (duplicate vendor, empty bundle), the
// prior snapshot is retained and ErrSpecRefresh is returned alongside
// the underlying cause.
func (r *Registry) Refresh(b Bundle) error {
	s, err := buildSnapshot(b)
	if err != nil {
		r.lg.Warn("spec refresh failed, retaining prior snapshot", "error", err)
		return errors.Join(ErrSpecRefresh, err)
	}
	r.snap.Store(s)
	r.lg.Info("spec registry refreshed", "vendors", len(s.vendors))
	return nil
}
