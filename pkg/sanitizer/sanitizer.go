package sanitizer

import (
	"regexp"
	"strings"
	"unicode"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var (
	reKeepLettersOnly     = regexp.MustCompile(`[^\p{L}]+`)
	reKeepReferenceRunes  = regexp.MustCompile(`[^0-9A-Za-z\-]+`)
	reCollapseUnderscores = regexp.MustCompile(`_+`)
	reCollapseDashes      = regexp.MustCompile(`-+`)
)

func trimAndLower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func collapseUnderscores(s string) string {
	s = reCollapseUnderscores.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// NormalizeLabel reduces a payout-method style label to lowercase letters
// joined by underscores: "Bank Transfer" becomes "bank_transfer".
func NormalizeLabel(input string) string {
	p := Pipeline{
		trimAndLower,
		func(s string) string { return reKeepLettersOnly.ReplaceAllString(s, "_") },
		collapseUnderscores,
	}
	return p.Apply(input)
}

// NormalizeReference keeps only letters, digits and dashes, for external
// payout or bank references.
func NormalizeReference(input string) string {
	s := strings.TrimSpace(input)
	s = reKeepReferenceRunes.ReplaceAllString(s, "-")
	s = reCollapseDashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// TrimAndNormalize collapses runs of whitespace into single spaces and trims
// the ends. Control characters are dropped.
func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		case unicode.IsControl(r):
			// dropped
		default:
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return strings.TrimSpace(result.String())
}

// NormalizeNotes normalizes patient-entered consultation notes and caps their
// length at maxLen runes.
func NormalizeNotes(notes string, maxLen int) string {
	s := TrimAndNormalize(notes)
	if maxLen > 0 {
		runes := []rune(s)
		if len(runes) > maxLen {
			s = strings.TrimSpace(string(runes[:maxLen]))
		}
	}
	return s
}
