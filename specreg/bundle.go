/*************************************************************************
 * Copyright 2026 ClassicMiniDIY. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package specreg implements the spec registry described in spec.md
// §4.1: an embedded bundle of vendor specifications, indexed for
// case-insensitive alias resolution and O(1) metadata lookup, with a
// lock-free atomic-swap refresh contract for hosts that distribute
// updated specs at runtime.
package specreg

import (
	"embed"
	"errors"

	"gopkg.in/yaml.v3"
)

var (
	ErrEmptyBundle      = errors.New("spec bundle contains no vendors")
	ErrDuplicateVendor   = errors.New("spec bundle contains a duplicate vendor name")
	ErrInvalidChannelSpec = errors.New("channel spec is missing a canonical id")
)

//go:embed bundled/*.yaml
var embeddedFS embed.FS

// ChannelSpec is the per-channel display metadata from spec.md §3:
// canonical id, display name, semantic category, canonical unit,
// optional bounds and precision, and the alias pool used to resolve
// vendor-specific source names to this canonical id.
type ChannelSpec struct {
	CanonicalID   string
	DisplayName   string
	Category      string
	CanonicalUnit string
	HasMin        bool
	Min           float64
	HasMax        bool
	Max           float64
	HasPrecision  bool
	Precision     int
	Aliases       []string
}

// rawChannelSpec exists purely so yaml.v3 can tell us whether min/max/
// precision were present in the document at all (as opposed to
// present-but-zero), which unmarshaling directly into ChannelSpec's
// non-pointer fields cannot distinguish.
type rawChannelSpec struct {
	ID           string   `yaml:"id"`
	DisplayName  string   `yaml:"display_name"`
	Category     string   `yaml:"category"`
	Unit         string   `yaml:"unit"`
	Aliases      []string `yaml:"aliases"`
	MinPtr       *float64 `yaml:"min"`
	MaxPtr       *float64 `yaml:"max"`
	PrecisionPtr *int     `yaml:"precision"`
}

// FormatDescriptor is a vendor's file-format hint set (spec.md §3):
// delimiter, header signature, and the glob-matched extension set
// used by adapters_for_extension.
type FormatDescriptor struct {
	Delimiter       string   `yaml:"delimiter"`
	HeaderSignature string   `yaml:"header_signature"`
	Extensions      []string `yaml:"extensions"`
}

// VendorSpec bundles a vendor's channel specs with its format
// descriptor, per spec.md §3.
type VendorSpec struct {
	Name     string           `yaml:"name"`
	Format   FormatDescriptor `yaml:"format"`
	Channels []ChannelSpec    `yaml:"channels"`
}

type rawVendorSpec struct {
	Name     string           `yaml:"name"`
	Format   FormatDescriptor `yaml:"format"`
	Channels []rawChannelSpec `yaml:"channels"`
}

// Bundle is the top-level document shape refresh_specs accepts. The
// embedded files are one vendor document each; LoadEmbeddedBundle
// collects them into a Bundle.
type Bundle struct {
	Vendors []VendorSpec
}

// ParseYAMLVendor decodes one vendor document. The embedded bundle is
// one YAML file per vendor (bundled/*.yaml); each is decoded with this
// function.
func ParseYAMLVendor(data []byte) (VendorSpec, error) {
	var raw rawVendorSpec
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return VendorSpec{}, err
	}
	vs := VendorSpec{Name: raw.Name, Format: raw.Format}
	for _, rc := range raw.Channels {
		if rc.ID == "" {
			return VendorSpec{}, ErrInvalidChannelSpec
		}
		cs := ChannelSpec{
			CanonicalID:   rc.ID,
			DisplayName:   rc.DisplayName,
			Category:      rc.Category,
			CanonicalUnit: rc.Unit,
			Aliases:       rc.Aliases,
			HasMin:        rc.MinPtr != nil,
			HasMax:        rc.MaxPtr != nil,
			HasPrecision:  rc.PrecisionPtr != nil,
		}
		if cs.HasMin {
			cs.Min = *rc.MinPtr
		}
		if cs.HasMax {
			cs.Max = *rc.MaxPtr
		}
		if cs.HasPrecision {
			cs.Precision = *rc.PrecisionPtr
		}
		vs.Channels = append(vs.Channels, cs)
	}
	return vs, nil
}

// LoadEmbeddedBundle parses every bundled/*.yaml file into a Bundle.
// This is the registry's default, build-time-fixed set of vendor
// specs; refresh_specs (spec.md §4.1) lets a host replace it with a
// freshly distributed one at runtime without a rebuild.
func LoadEmbeddedBundle() (Bundle, error) {
	entries, err := embeddedFS.ReadDir("bundled")
	if err != nil {
		return Bundle{}, err
	}
	var b Bundle
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := embeddedFS.ReadFile("bundled/" + e.Name())
		if err != nil {
			return Bundle{}, err
		}
		vs, err := ParseYAMLVendor(data)
		if err != nil {
			return Bundle{}, err
		}
		b.Vendors = append(b.Vendors, vs)
	}
	if len(b.Vendors) == 0 {
		return Bundle{}, ErrEmptyBundle
	}
	return b, nil
}
