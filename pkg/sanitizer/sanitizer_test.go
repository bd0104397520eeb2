package sanitizer

import (
	"strings"
	"testing"
)

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple", "bank_transfer", "bank_transfer"},
		{"spaces", "Bank Transfer", "bank_transfer"},
		{"mixed punctuation", "  Wire--Transfer!! ", "wire_transfer"},
		{"digits stripped", "paypal2", "paypal"},
		{"empty", "", ""},
		{"only punctuation", "---", ""},
		{"unicode letters kept", "העברה בנקאית", "העברה_בנקאית"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeLabel(tt.input); got != tt.expected {
				t.Errorf("NormalizeLabel(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeLabel_Idempotent(t *testing.T) {
	input := "  Bank  Transfer  "
	once := NormalizeLabel(input)
	twice := NormalizeLabel(once)
	if once != twice {
		t.Errorf("NormalizeLabel not idempotent: %q vs %q", once, twice)
	}
}

func TestNormalizeReference(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"clean", "PAY-2024-0001", "PAY-2024-0001"},
		{"spaces to dashes", "PAY 2024 0001", "PAY-2024-0001"},
		{"strip symbols", "PAY#2024@0001", "PAY-2024-0001"},
		{"collapse dashes", "PAY--2024---0001", "PAY-2024-0001"},
		{"trim dashes", "-PAY-2024-", "PAY-2024"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeReference(tt.input); got != tt.expected {
				t.Errorf("NormalizeReference(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "knee pain after running", "knee pain after running"},
		{"collapse whitespace", "knee   pain\n\tafter running", "knee pain after running"},
		{"trim", "   follow-up visit   ", "follow-up visit"},
		{"control chars dropped", "knee\x00pain", "kneepain"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TrimAndNormalize(tt.input); got != tt.expected {
				t.Errorf("TrimAndNormalize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeNotes_LengthCap(t *testing.T) {
	long := strings.Repeat("a", 600)
	got := NormalizeNotes(long, 500)
	if len([]rune(got)) != 500 {
		t.Errorf("expected notes capped at 500 runes, got %d", len([]rune(got)))
	}

	if got := NormalizeNotes("short note", 500); got != "short note" {
		t.Errorf("unexpected change to short note: %q", got)
	}

	// Zero cap means unlimited.
	if got := NormalizeNotes(long, 0); len(got) != 600 {
		t.Errorf("expected uncapped notes, got %d runes", len(got))
	}
}
