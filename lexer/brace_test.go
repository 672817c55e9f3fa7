package lexer

import "testing"

func TestExpandBraces(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"echo {a,b,c}", "echo a b c"},
		{"echo pre{a,b}post", "echo preapost prebpost"},
		{"echo {1..5}", "echo 1 2 3 4 5"},
		{"echo {5..1}", "echo 5 4 3 2 1"},
		{"echo {1..9..2}", "echo 1 3 5 7 9"},
		{"echo {a..e}", "echo a b c d e"},
		{"echo x{a,b}y z", "echo xay xby z"},
		{"echo {a,b}{c,d}", "echo ac ad bc bd"},
	}
	for _, tt := range tests {
		if got := ExpandBraces(tt.input); got != tt.want {
			t.Errorf("ExpandBraces(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestExpandBracesFallback(t *testing.T) {
	// Malformed expressions keep the original text; brace expansion never
	// fails the line.
	tests := []string{
		"echo {abc}",
		"echo {a..}",
		"echo {unmatched",
		"echo {}",
	}
	for _, input := range tests {
		if got := ExpandBraces(input); got != input {
			t.Errorf("ExpandBraces(%q) = %q, want unchanged", input, got)
		}
	}
}

func TestExpandBracesQuoted(t *testing.T) {
	tests := []string{
		`echo '{a,b}'`,
		`echo "{a,b}"`,
		`echo \{a,b\}`,
	}
	for _, input := range tests {
		if got := ExpandBraces(input); got != input {
			t.Errorf("ExpandBraces(%q) = %q, want unchanged (quoted)", input, got)
		}
	}
}

func TestExpandBracesParamExpansionUntouched(t *testing.T) {
	input := "echo ${x,,}"
	if got := ExpandBraces(input); got != input {
		t.Errorf("ExpandBraces(%q) = %q, want unchanged", input, got)
	}
}
