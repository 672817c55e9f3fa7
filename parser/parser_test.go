package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"psh/ast"
)

func parse(t *testing.T, input string) *ast.Program {
	t.Helper()
	prog, err := Parse(input, Strict)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", input, err)
	}
	return prog
}

func firstPipeline(t *testing.T, prog *ast.Program) *ast.Pipeline {
	t.Helper()
	if len(prog.Statements) == 0 {
		t.Fatal("program has no statements")
	}
	list, ok := prog.Statements[0].(*ast.AndOrList)
	if !ok {
		t.Fatalf("statement is %T, want *ast.AndOrList", prog.Statements[0])
	}
	return list.Pipelines[0]
}

func firstSimple(t *testing.T, prog *ast.Program) *ast.SimpleCommand {
	t.Helper()
	pl := firstPipeline(t, prog)
	sc, ok := pl.Commands[0].(*ast.SimpleCommand)
	if !ok {
		t.Fatalf("command is %T, want *ast.SimpleCommand", pl.Commands[0])
	}
	return sc
}

func wordText(t *testing.T, w *ast.Word) string {
	t.Helper()
	s, ok := w.Lit()
	if !ok {
		return w.String()
	}
	return s
}

func TestSimpleCommand(t *testing.T) {
	sc := firstSimple(t, parse(t, "echo hello world"))
	if len(sc.Words) != 3 {
		t.Fatalf("want 3 words, got %d", len(sc.Words))
	}
	for i, want := range []string{"echo", "hello", "world"} {
		if got := wordText(t, sc.Words[i]); got != want {
			t.Errorf("word %d = %q, want %q", i, got, want)
		}
	}
}

func TestLeadingAssignments(t *testing.T) {
	sc := firstSimple(t, parse(t, "FOO=bar BAZ=qux cmd arg"))
	if len(sc.Assignments) != 2 {
		t.Fatalf("want 2 assignments, got %d", len(sc.Assignments))
	}
	if sc.Assignments[0].Name != "FOO" || sc.Assignments[1].Name != "BAZ" {
		t.Errorf("wrong names: %v", sc.Assignments)
	}
	if v, _ := sc.Assignments[0].Value.Lit(); v != "bar" {
		t.Errorf("FOO value = %q", v)
	}
	if len(sc.Words) != 2 {
		t.Errorf("want 2 words, got %d", len(sc.Words))
	}
}

func TestAssignmentOnly(t *testing.T) {
	sc := firstSimple(t, parse(t, "x=1"))
	if len(sc.Assignments) != 1 || len(sc.Words) != 0 {
		t.Fatalf("want pure assignment: %+v", sc)
	}
}

func TestPipelineChain(t *testing.T) {
	pl := firstPipeline(t, parse(t, "a | b | c"))
	if len(pl.Commands) != 3 {
		t.Fatalf("want 3 commands, got %d", len(pl.Commands))
	}
}

func TestNegatedPipeline(t *testing.T) {
	pl := firstPipeline(t, parse(t, "! grep x f"))
	if !pl.Negated {
		t.Error("pipeline should be negated")
	}
}

func TestBackground(t *testing.T) {
	pl := firstPipeline(t, parse(t, "sleep 10 &"))
	if !pl.Background {
		t.Error("pipeline should be background")
	}
}

func TestAndOrList(t *testing.T) {
	prog := parse(t, "true && echo yes || echo no")
	list := prog.Statements[0].(*ast.AndOrList)
	if len(list.Pipelines) != 3 {
		t.Fatalf("want 3 pipelines, got %d", len(list.Pipelines))
	}
	if list.Operators[0] != "&&" || list.Operators[1] != "||" {
		t.Errorf("operators = %v", list.Operators)
	}
}

func TestRedirections(t *testing.T) {
	sc := firstSimple(t, parse(t, "cmd < in.txt > out.txt 2>&1"))
	if len(sc.Redirects) != 3 {
		t.Fatalf("want 3 redirects, got %d", len(sc.Redirects))
	}
	if sc.Redirects[0].Type != ast.RedirIn {
		t.Errorf("redirect 0 type = %s", sc.Redirects[0].Type)
	}
	if sc.Redirects[1].Type != ast.RedirOut {
		t.Errorf("redirect 1 type = %s", sc.Redirects[1].Type)
	}
	dup := sc.Redirects[2]
	if dup.Type != ast.RedirDupOut || dup.SourceFd != 2 || dup.TargetFd != 1 {
		t.Errorf("redirect 2 = %+v", dup)
	}
}

func TestFdClose(t *testing.T) {
	sc := firstSimple(t, parse(t, "cmd 2>&-"))
	if len(sc.Redirects) != 1 || !sc.Redirects[0].CloseFd {
		t.Fatalf("want close-fd redirect: %+v", sc.Redirects)
	}
}

func TestHeredoc(t *testing.T) {
	sc := firstSimple(t, parse(t, "cat <<EOF\nhello $USER\nEOF\n"))
	if len(sc.Redirects) != 1 {
		t.Fatalf("want 1 redirect, got %d", len(sc.Redirects))
	}
	r := sc.Redirects[0]
	if r.Type != ast.RedirHeredoc {
		t.Errorf("type = %s", r.Type)
	}
	if r.HeredocContent != "hello $USER\n" {
		t.Errorf("content = %q", r.HeredocContent)
	}
	if r.HeredocQuoted {
		t.Error("unquoted delimiter must allow expansion")
	}
}

func TestHeredocQuoted(t *testing.T) {
	sc := firstSimple(t, parse(t, "cat <<'EOF'\nhello $USER\nEOF\n"))
	if !sc.Redirects[0].HeredocQuoted {
		t.Error("quoted delimiter must suppress expansion")
	}
}

func TestWordWithExpansionParts(t *testing.T) {
	sc := firstSimple(t, parse(t, `echo "Hello $USER"`))
	w := sc.Words[1]
	if len(w.Parts) != 2 {
		t.Fatalf("want 2 parts, got %d: %v", len(w.Parts), w)
	}
	lit, ok := w.Parts[0].(*ast.LiteralPart)
	if !ok || lit.Text != "Hello " || !lit.Quoted {
		t.Errorf("part 0 = %+v", w.Parts[0])
	}
	exp, ok := w.Parts[1].(*ast.ExpansionPart)
	if !ok || !exp.Quoted {
		t.Fatalf("part 1 = %+v", w.Parts[1])
	}
	ve, ok := exp.Expansion.(*ast.VariableExpansion)
	if !ok || ve.Name != "USER" {
		t.Errorf("expansion = %+v", exp.Expansion)
	}
}

func TestParameterExpansionDecomposition(t *testing.T) {
	tests := []struct {
		input    string
		name     string
		operator string
		operand  string
	}{
		{"echo ${x:-default}", "x", ":-", "default"},
		{"echo ${x:=default}", "x", ":=", "default"},
		{"echo ${x:+alt}", "x", ":+", "alt"},
		{"echo ${x:?msg}", "x", ":?", "msg"},
		{"echo ${#x}", "x", "#len", ""},
		{"echo ${x#pre}", "x", "#", "pre"},
		{"echo ${x##pre}", "x", "##", "pre"},
		{"echo ${x%suf}", "x", "%", "suf"},
		{"echo ${x%%suf}", "x", "%%", "suf"},
		{"echo ${x^^}", "x", "^^", ""},
		{"echo ${x,,}", "x", ",,", ""},
		{"echo ${x:1:2}", "x", ":", "1:2"},
	}
	for _, tt := range tests {
		sc := firstSimple(t, parse(t, tt.input))
		ep, ok := sc.Words[1].Parts[0].(*ast.ExpansionPart)
		if !ok {
			t.Fatalf("%s: not an expansion part", tt.input)
		}
		pe, ok := ep.Expansion.(*ast.ParameterExpansion)
		if !ok {
			t.Fatalf("%s: expansion is %T", tt.input, ep.Expansion)
		}
		if pe.Name != tt.name || pe.Operator != tt.operator {
			t.Errorf("%s: got (%q, %q), want (%q, %q)", tt.input, pe.Name, pe.Operator, tt.name, tt.operator)
		}
		if tt.operand != "" {
			if pe.Operand == nil {
				t.Errorf("%s: missing operand", tt.input)
			} else if got := pe.Operand.String(); got != tt.operand {
				t.Errorf("%s: operand = %q, want %q", tt.input, got, tt.operand)
			}
		}
	}
}

func TestReplaceOperator(t *testing.T) {
	sc := firstSimple(t, parse(t, "echo ${x/old/new}"))
	pe := sc.Words[1].Parts[0].(*ast.ExpansionPart).Expansion.(*ast.ParameterExpansion)
	if pe.Operator != "/" {
		t.Errorf("operator = %q", pe.Operator)
	}
	if pe.Operand.String() != "old" || pe.Replacement.String() != "new" {
		t.Errorf("operand/replacement = %q/%q", pe.Operand.String(), pe.Replacement.String())
	}
}

func TestIfStatement(t *testing.T) {
	prog := parse(t, "if true; then echo yes; elif false; then echo mid; else echo no; fi")
	ic, ok := prog.Statements[0].(*ast.IfClause)
	if !ok {
		// if used as a full statement may be wrapped in a pipeline
		ic = firstPipeline(t, prog).Commands[0].(*ast.IfClause)
	}
	if len(ic.Condition) != 1 || len(ic.Consequence) != 1 {
		t.Fatalf("bad if: %+v", ic)
	}
	if len(ic.ElifClauses) != 1 {
		t.Fatalf("want 1 elif, got %d", len(ic.ElifClauses))
	}
	if len(ic.Else) != 1 {
		t.Fatalf("want else body")
	}
}

func TestWhileLoop(t *testing.T) {
	prog := parse(t, "while true; do echo hi; done")
	wl := firstPipeline(t, prog).Commands[0].(*ast.WhileLoop)
	if len(wl.Condition) != 1 || len(wl.Body) != 1 {
		t.Fatalf("bad while: %+v", wl)
	}
}

func TestUntilLoop(t *testing.T) {
	prog := parse(t, "until false; do echo hi; done")
	ul := firstPipeline(t, prog).Commands[0].(*ast.UntilLoop)
	if len(ul.Body) != 1 {
		t.Fatalf("bad until: %+v", ul)
	}
}

func TestForLoop(t *testing.T) {
	prog := parse(t, "for i in 1 2 3; do echo $i; done")
	fl := firstPipeline(t, prog).Commands[0].(*ast.ForLoop)
	if fl.Variable != "i" || !fl.HasIn || len(fl.Words) != 3 {
		t.Fatalf("bad for: %+v", fl)
	}
}

func TestForWithoutIn(t *testing.T) {
	prog := parse(t, "for x; do echo $x; done")
	fl := firstPipeline(t, prog).Commands[0].(*ast.ForLoop)
	if fl.HasIn {
		t.Error("for without in iterates positional parameters")
	}
}

func TestCStyleFor(t *testing.T) {
	prog := parse(t, "for ((i=0; i<3; i++)); do echo $i; done")
	cf := firstPipeline(t, prog).Commands[0].(*ast.CStyleForLoop)
	if cf.Init != "i=0" || cf.Cond != "i<3" || cf.Update != "i++" {
		t.Fatalf("bad c-style for: %+v", cf)
	}
}

func TestCase(t *testing.T) {
	prog := parse(t, "case $x in a) echo one;; b|c) echo two;& *) echo rest;;& esac")
	cc := firstPipeline(t, prog).Commands[0].(*ast.CaseConditional)
	if len(cc.Items) != 3 {
		t.Fatalf("want 3 items, got %d", len(cc.Items))
	}
	if cc.Items[0].Terminator != ast.CaseBreak {
		t.Errorf("item 0 terminator = %q", cc.Items[0].Terminator)
	}
	if len(cc.Items[1].Patterns) != 2 || cc.Items[1].Terminator != ast.CaseFallthrough {
		t.Errorf("item 1 = %+v", cc.Items[1])
	}
	if cc.Items[2].Terminator != ast.CaseContinue {
		t.Errorf("item 2 terminator = %q", cc.Items[2].Terminator)
	}
}

func TestSelect(t *testing.T) {
	prog := parse(t, "select x in a b; do echo $x; done")
	sl := firstPipeline(t, prog).Commands[0].(*ast.SelectLoop)
	if sl.Variable != "x" || len(sl.Words) != 2 {
		t.Fatalf("bad select: %+v", sl)
	}
}

func TestSubshellAndBraceGroup(t *testing.T) {
	prog := parse(t, "(cd /tmp; pwd)")
	if _, ok := firstPipeline(t, prog).Commands[0].(*ast.SubshellGroup); !ok {
		t.Error("want subshell group")
	}
	prog = parse(t, "{ echo a; echo b; }")
	if _, ok := firstPipeline(t, prog).Commands[0].(*ast.BraceGroup); !ok {
		t.Error("want brace group")
	}
}

func TestFunctionDefinition(t *testing.T) {
	prog := parse(t, "greet() { echo hi; }")
	fd, ok := prog.Statements[0].(*ast.FunctionDef)
	if !ok {
		t.Fatalf("statement is %T", prog.Statements[0])
	}
	if fd.Name != "greet" {
		t.Errorf("name = %q", fd.Name)
	}
	if _, ok := fd.Body.(*ast.BraceGroup); !ok {
		t.Errorf("body is %T", fd.Body)
	}
}

func TestFunctionKeywordForm(t *testing.T) {
	prog := parse(t, "function greet { echo hi; }")
	fd, ok := prog.Statements[0].(*ast.FunctionDef)
	if !ok || fd.Name != "greet" {
		t.Fatalf("bad function def: %+v", prog.Statements[0])
	}
}

func TestTestCommand(t *testing.T) {
	prog := parse(t, `[[ -f /etc/passwd && $x == a* ]]`)
	tc := firstPipeline(t, prog).Commands[0].(*ast.TestCommand)
	ct, ok := tc.Expr.(*ast.CompoundTest)
	if !ok || ct.Op != "&&" {
		t.Fatalf("expr = %+v", tc.Expr)
	}
	if _, ok := ct.Left.(*ast.UnaryTest); !ok {
		t.Errorf("left = %T", ct.Left)
	}
	if bt, ok := ct.Right.(*ast.BinaryTest); !ok || bt.Op != "==" {
		t.Errorf("right = %+v", ct.Right)
	}
}

func TestArithmeticCommand(t *testing.T) {
	prog := parse(t, "((x > 3))")
	ac := firstPipeline(t, prog).Commands[0].(*ast.ArithmeticCommand)
	if ac.ExprText != "x > 3" {
		t.Errorf("expr = %q", ac.ExprText)
	}
}

func TestArrayAssignment(t *testing.T) {
	prog := parse(t, "arr=(a b c)")
	aa := firstPipeline(t, prog).Commands[0].(*ast.ArrayAssignment)
	if aa.Name != "arr" || len(aa.Elements) != 3 {
		t.Fatalf("bad array assignment: %+v", aa)
	}
}

func TestArrayElementAssignment(t *testing.T) {
	sc := firstSimple(t, parse(t, "arr[2]=v"))
	if len(sc.Assignments) != 1 {
		t.Fatalf("want 1 assignment, got %+v", sc)
	}
	a := sc.Assignments[0]
	if a.Name != "arr" || a.Index == nil {
		t.Fatalf("bad element assignment: %+v", a)
	}
	if a.Index.String() != "2" {
		t.Errorf("index = %q", a.Index.String())
	}
}

func TestControlStructureInPipeline(t *testing.T) {
	prog := parse(t, "echo hi | while read x; do echo $x; done")
	pl := firstPipeline(t, prog)
	if len(pl.Commands) != 2 {
		t.Fatalf("want 2 commands, got %d", len(pl.Commands))
	}
	wl, ok := pl.Commands[1].(*ast.WhileLoop)
	if !ok {
		t.Fatalf("command 1 is %T", pl.Commands[1])
	}
	if wl.Context != ast.ContextPipeline {
		t.Error("control structure inside a pipeline must carry pipeline context")
	}
}

func TestParseDeterminism(t *testing.T) {
	input := "for i in 1 2; do echo ${i:-x} | cat > /tmp/out; done"
	first := parse(t, input)
	second := parse(t, input)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("parsing twice differs (-first +second):\n%s", diff)
	}
}

func TestParserConsumesAllOrErrors(t *testing.T) {
	bad := []string{
		"if true then echo fi",
		"while true; do echo",
		"case x in a) echo",
		"(echo hi",
	}
	for _, input := range bad {
		if _, err := Parse(input, Strict); err == nil {
			t.Errorf("Parse(%q) should fail", input)
		}
	}
}

func TestErrorSuggestions(t *testing.T) {
	_, err := Parse("if true; then echo hi", Strict)
	if err == nil {
		t.Fatal("expected error")
	}
	pe, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("error is %T", err)
	}
	if pe.Suggestion == "" {
		t.Error("missing fi should carry a suggestion")
	}
}

func TestCollectMode(t *testing.T) {
	_, err := Parse("echo )\necho (", Collect)
	if err == nil {
		t.Fatal("expected collected errors")
	}
}
