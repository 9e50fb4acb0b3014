/*************************************************************************
 * Copyright 2026 ClassicMiniDIY. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package formula

// Verdict is validate's top-level outcome, per spec.md §4.5's
// "ok / missing-reference / cyclic / parse-error".
type Verdict int

const (
	VerdictOK Verdict = iota
	VerdictMissingReference
	VerdictCyclic
	VerdictParseError
)

// ValidationResult is validate(template, log)'s return value: the
// resolved reference set plus the verdict, and whichever of Missing/
// Err is relevant to that verdict.
type ValidationResult struct {
	Verdict Verdict
	Refs    []Reference
	Missing []string
	Err     error
}

// Validate parses source and checks it against src: self-reference
// (templateName appears among its own bound references) is reported
// as VerdictCyclic directly, since that needs no cross-template
// context; a reference src cannot resolve is VerdictMissingReference.
// Cross-template cycles among already-instantiated computed channels
// are a computed-channel-library concern (spec.md §4.6), not this
// function's.
func Validate(templateName, source string, src Source) ValidationResult {
	prog, err := Parse(source)
	if err != nil {
		return ValidationResult{Verdict: VerdictParseError, Err: err}
	}

	for _, r := range prog.Refs {
		if r.Name == templateName {
			return ValidationResult{Verdict: VerdictCyclic, Refs: prog.Refs}
		}
	}

	var missing []string
	for _, r := range prog.Refs {
		if _, ok := src.IndexOf(r.Name); !ok {
			missing = append(missing, r.Name)
		}
	}
	if len(missing) > 0 {
		return ValidationResult{Verdict: VerdictMissingReference, Refs: prog.Refs, Missing: missing}
	}
	return ValidationResult{Verdict: VerdictOK, Refs: prog.Refs}
}
