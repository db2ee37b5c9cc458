// Package limits implements the input-size and emptiness checks that
// guard JSON and GRL parsing, per SUPPLEMENTED FEATURES item 4: these
// run before the real parsers so INPUT_TOO_LARGE and the two EMPTY_*
// cases are detected without fully materializing an oversize payload
// into a parse tree.
//
// Grounded on original_source/src/validation/limits.rs and input.rs.
// The teacher has no equivalent pre-parse guard (core/json.go parses
// straight through whatever it's handed), so this package's shape —
// two small named checks composed by two call-site-specific
// validators — follows the original Rust module's structure rather
// than a teacher file, kept in the teacher's terse, no-rationale
// comment style.
package limits

import "github.com/grl-engine/grlrules/internal/errors"

// MaxInputSize is the cap applied to both facts JSON and rules GRL
// source, in bytes.
const MaxInputSize = 1_000_000

// CheckSize rejects input larger than MaxInputSize.
func CheckSize(input []byte) error {
	if len(input) > MaxInputSize {
		return errors.New(errors.InputTooLarge, "input too large: %d bytes (max %d bytes)", len(input), MaxInputSize)
	}
	return nil
}

// ValidateFacts runs the facts-input checks named in §6/§7:
// EMPTY_FACTS then INPUT_TOO_LARGE.
func ValidateFacts(json []byte) error {
	if len(json) == 0 {
		return errors.New(errors.EmptyFacts, "facts JSON cannot be empty")
	}
	return CheckSize(json)
}

// ValidateRules runs the rules-input checks: EMPTY_RULES then
// INPUT_TOO_LARGE.
func ValidateRules(grl []byte) error {
	if len(grl) == 0 {
		return errors.New(errors.EmptyRules, "rules GRL cannot be empty")
	}
	return CheckSize(grl)
}
