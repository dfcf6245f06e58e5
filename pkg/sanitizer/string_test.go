package sanitizer

import "testing"

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "trim spaces", input: "  Weekly sync  ", want: "Weekly sync"},
		{name: "multiple spaces between words", input: "Weekly    sync", want: "Weekly sync"},
		{name: "tabs and newlines", input: "Weekly\t\nsync", want: "Weekly sync"},
		{name: "empty string", input: "", want: ""},
		{name: "only whitespace", input: "   \t\n  ", want: ""},
		{name: "preserve special characters", input: " Rapat Koordinasi & Evaluasi™ ", want: "Rapat Koordinasi & Evaluasi™"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TrimAndNormalize(tt.input); got != tt.want {
				t.Errorf("TrimAndNormalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "keeps line breaks", input: "Agenda:\n- budget\n- hiring", want: "Agenda:\n- budget\n- hiring"},
		{name: "crlf", input: "a\r\nb", want: "a\nb"},
		{name: "trailing spaces per line", input: "a   \nb\t", want: "a\nb"},
		{name: "collapses blank runs", input: "a\n\n\n\nb", want: "a\n\nb"},
		{name: "empty", input: "  \n ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeText(tt.input); got != tt.want {
				t.Errorf("NormalizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeText_Idempotent(t *testing.T) {
	inputs := []string{"  a \n\n\n b  ", "x\r\ny", ""}
	for _, in := range inputs {
		once := NormalizeText(in)
		if twice := NormalizeText(once); twice != once {
			t.Errorf("NormalizeText not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Ana@Example.COM "); got != "ana@example.com" {
		t.Errorf("NormalizeEmail() = %q", got)
	}
}
