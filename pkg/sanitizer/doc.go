// Package sanitizer normalizes free-text input before validation and storage.
//
// All functions are idempotent - applying them twice yields the same result -
// and handle invalid input by returning empty strings rather than errors.
//
// Normalization includes:
//   - Notes: collapse internal whitespace, trim, strip control characters
//   - Labels (payout methods): lowercase, letters only, underscores between words
//   - References (payout/bank references): keep letters, digits and dashes
package sanitizer
