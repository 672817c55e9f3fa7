package ast

import "testing"

func litWord(s string) *Word {
	return &Word{Parts: []WordPart{&LiteralPart{Text: s}}}
}

func TestSimpleCommandString(t *testing.T) {
	sc := &SimpleCommand{
		Words: []*Word{litWord("echo"), litWord("hello")},
	}
	if got := sc.String(); got != "echo hello" {
		t.Errorf("String() = %q, want %q", got, "echo hello")
	}
}

func TestPipelineString(t *testing.T) {
	pl := &Pipeline{
		Commands: []Command{
			&SimpleCommand{Words: []*Word{litWord("ls")}},
			&SimpleCommand{Words: []*Word{litWord("wc"), litWord("-l")}},
		},
	}
	if got := pl.String(); got != "ls | wc -l" {
		t.Errorf("String() = %q", got)
	}
	pl.Negated = true
	if got := pl.String(); got != "! ls | wc -l" {
		t.Errorf("negated String() = %q", got)
	}
}

func TestAndOrListString(t *testing.T) {
	list := &AndOrList{
		Pipelines: []*Pipeline{
			{Commands: []Command{&SimpleCommand{Words: []*Word{litWord("true")}}}},
			{Commands: []Command{&SimpleCommand{Words: []*Word{litWord("echo"), litWord("yes")}}}},
		},
		Operators: []string{"&&"},
	}
	if got := list.String(); got != "true && echo yes" {
		t.Errorf("String() = %q", got)
	}
}

func TestWordLit(t *testing.T) {
	w := litWord("plain")
	if s, ok := w.Lit(); !ok || s != "plain" {
		t.Errorf("Lit() = %q, %v", s, ok)
	}
	quoted := &Word{Parts: []WordPart{&LiteralPart{Text: "q", Quoted: true, QuoteChar: '\''}}}
	if _, ok := quoted.Lit(); ok {
		t.Error("quoted word should not be a plain literal")
	}
	multi := &Word{Parts: []WordPart{
		&LiteralPart{Text: "a"},
		&ExpansionPart{Expansion: &VariableExpansion{Name: "x"}},
	}}
	if _, ok := multi.Lit(); ok {
		t.Error("composite word should not be a plain literal")
	}
}

func TestFullyQuoted(t *testing.T) {
	w := &Word{Parts: []WordPart{
		&LiteralPart{Text: "a", Quoted: true, QuoteChar: '"'},
		&ExpansionPart{Expansion: &VariableExpansion{Name: "x"}, Quoted: true},
	}}
	if !w.FullyQuoted() {
		t.Error("all parts quoted, FullyQuoted should be true")
	}
	w.Parts = append(w.Parts, &LiteralPart{Text: "z"})
	if w.FullyQuoted() {
		t.Error("unquoted tail part, FullyQuoted should be false")
	}
}

func TestExpansionStrings(t *testing.T) {
	tests := []struct {
		node Node
		want string
	}{
		{&VariableExpansion{Name: "HOME"}, "$HOME"},
		{&CommandSubstitution{CommandText: "date"}, "$(date)"},
		{&CommandSubstitution{CommandText: "date", Backquoted: true}, "`date`"},
		{&ArithmeticExpansion{ExprText: "1+2"}, "$((1+2))"},
		{&ProcessSubstitution{CommandText: "sort f"}, "<(sort f)"},
		{&ProcessSubstitution{CommandText: "tee f", Output: true}, ">(tee f)"},
	}
	for _, tt := range tests {
		if got := tt.node.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestParameterExpansionString(t *testing.T) {
	pe := &ParameterExpansion{Name: "x", Operator: ":-", Operand: litWord("default")}
	if got := pe.String(); got != "${x:-default}" {
		t.Errorf("String() = %q", got)
	}
	length := &ParameterExpansion{Name: "x", Operator: "#len"}
	if got := length.String(); got != "${#x}" {
		t.Errorf("String() = %q", got)
	}
}

func TestRedirectString(t *testing.T) {
	tests := []struct {
		r    *Redirect
		want string
	}{
		{&Redirect{Type: RedirOut, SourceFd: -1, TargetFd: -1, Target: litWord("f")}, ">f"},
		{&Redirect{Type: RedirAppend, SourceFd: 2, TargetFd: -1, Target: litWord("log")}, "2>>log"},
		{&Redirect{Type: RedirDupOut, SourceFd: 2, TargetFd: 1}, "2>&1"},
		{&Redirect{Type: RedirDupOut, SourceFd: 1, TargetFd: -1, CloseFd: true}, "1>&-"},
	}
	for _, tt := range tests {
		if got := tt.r.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestDefaultSourceFd(t *testing.T) {
	in := &Redirect{Type: RedirIn}
	if in.DefaultSourceFd() != 0 {
		t.Error("< defaults to fd 0")
	}
	out := &Redirect{Type: RedirOut}
	if out.DefaultSourceFd() != 1 {
		t.Error("> defaults to fd 1")
	}
	heredoc := &Redirect{Type: RedirHeredoc}
	if heredoc.DefaultSourceFd() != 0 {
		t.Error("<< defaults to fd 0")
	}
}

func TestControlStructureStrings(t *testing.T) {
	ic := &IfClause{
		Condition:   []Statement{cmdStmt("true")},
		Consequence: []Statement{cmdStmt("echo", "y")},
	}
	if got := ic.String(); got != "if true; then echo y; fi" {
		t.Errorf("if String() = %q", got)
	}

	fl := &ForLoop{
		Variable: "i",
		HasIn:    true,
		Words:    []*Word{litWord("1"), litWord("2")},
		Body:     []Statement{cmdStmt("echo")},
	}
	if got := fl.String(); got != "for i in 1 2; do echo; done" {
		t.Errorf("for String() = %q", got)
	}
}

func cmdStmt(words ...string) Statement {
	var ws []*Word
	for _, w := range words {
		ws = append(ws, litWord(w))
	}
	return &AndOrList{Pipelines: []*Pipeline{
		{Commands: []Command{&SimpleCommand{Words: ws}}},
	}}
}
