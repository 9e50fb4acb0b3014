/*************************************************************************
 * Copyright 2026 ClassicMiniDIY. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package normalize implements the channel-name canonicalization rule
// from spec.md §4.2: a pure, deterministic, idempotent function over
// (raw_name, user_overrides) that tries, in order, the host-supplied
// override table, a small built-in alias table, and finally the spec
// registry, falling back to the trimmed raw name.
package normalize

import "strings"

// SpecResolver is the subset of specreg.Registry this package needs.
// Defined here (consumer side) rather than imported from specreg, so
// normalize has no dependency on the registry's embedding/refresh
// machinery — only on the one query it actually uses.
type SpecResolver interface {
	ResolveCanonical(rawName string) (string, bool)
}

// builtin holds the small, hand-curated set of very common ECU
// channel aliases that ship with the core regardless of which vendor
// specs are embedded. Keys are matched case-insensitively.
var builtin = map[string]string{
	"rpm":        "RPM",
	"enginespeed": "RPM",
	"engine speed": "RPM",
	"map":        "MAP",
	"manifold pressure": "MAP",
	"tps":        "TPS",
	"throttle":   "TPS",
	"afr":        "AFR",
	"a/f ratio":  "AFR",
	"act_afr":    "AFR",
	"clt":        "CLT",
	"coolant temp": "CLT",
	"iat":        "IAT",
	"intake air temp": "IAT",
	"battv":      "BatteryVoltage",
	"battery voltage": "BatteryVoltage",
	"vss":        "VehicleSpeed",
	"boost":      "Boost",
}

func lookupCaseInsensitive(table map[string]string, key string) (string, bool) {
	if len(table) == 0 {
		return "", false
	}
	norm := strings.ToLower(strings.TrimSpace(key))
	if v, ok := table[norm]; ok {
		return v, true
	}
	for k, v := range table {
		if strings.ToLower(strings.TrimSpace(k)) == norm {
			return v, true
		}
	}
	return "", false
}

// Canonicalize applies the priority chain documented in spec.md §4.2:
//  1. user_overrides (case-insensitive)
//  2. built-in table
//  3. spec registry, if provided
//  4. trimmed raw name
//
// registry may be nil, in which case step 3 is skipped.
func Canonicalize(rawName string, userOverrides map[string]string, registry SpecResolver) string {
	if v, ok := lookupCaseInsensitive(userOverrides, rawName); ok {
		return v
	}
	if v, ok := lookupCaseInsensitive(builtin, rawName); ok {
		return v
	}
	if registry != nil {
		if v, ok := registry.ResolveCanonical(rawName); ok {
			return v
		}
	}
	return strings.TrimSpace(rawName)
}
