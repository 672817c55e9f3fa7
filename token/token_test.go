package token

import "testing"

func TestReconstructParts(t *testing.T) {
	tok := Token{
		Type:    STRING,
		Literal: "Hello world!",
		Parts: []Part{
			{Kind: PartLiteral, Text: "Hello ", Quote: '"', QuoteChar: '"'},
			{Kind: PartLiteral, Text: "world", Quote: 0},
			{Kind: PartLiteral, Text: "!", Quote: '\'', QuoteChar: '\''},
		},
	}
	if got := tok.ReconstructParts(); got != tok.Literal {
		t.Errorf("parts do not reconstruct literal: got %q, want %q", got, tok.Literal)
	}
}

func TestReconstructPartsNoParts(t *testing.T) {
	tok := Token{Type: WORD, Literal: "plain"}
	if got := tok.ReconstructParts(); got != "plain" {
		t.Errorf("got %q, want %q", got, "plain")
	}
}

func TestIsRedirect(t *testing.T) {
	redirects := []Type{LT, GT, DGT, DLT, DLT_DASH, TLT, LT_AND, GT_AND, GT_PIPE, AND_GT, AND_DGT, LT_GT}
	for _, tt := range redirects {
		if !tt.IsRedirect() {
			t.Errorf("%s should be a redirect", tt)
		}
	}
	for _, tt := range []Type{WORD, PIPE, AND_IF, LPAREN} {
		if tt.IsRedirect() {
			t.Errorf("%s should not be a redirect", tt)
		}
	}
}

func TestEndsCommand(t *testing.T) {
	for _, tt := range []Type{PIPE, AND_IF, OR_IF, SEMI, NEWLINE, EOF, AMP} {
		if !tt.EndsCommand() {
			t.Errorf("%s should end a command", tt)
		}
	}
	if WORD.EndsCommand() {
		t.Error("WORD should not end a command")
	}
}

func TestKeywordTable(t *testing.T) {
	tests := []struct {
		word string
		want Type
	}{
		{"if", IF},
		{"then", THEN},
		{"fi", FI},
		{"while", WHILE},
		{"done", DONE},
		{"case", CASE},
		{"esac", ESAC},
		{"in", IN},
	}
	for _, tt := range tests {
		got, ok := Keywords[tt.word]
		if !ok || got != tt.want {
			t.Errorf("Keywords[%q] = %v, want %v", tt.word, got, tt.want)
		}
	}
}
