package expander

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psh/arith"
	"psh/ast"
	"psh/lexer"
	"psh/parser"
	"psh/state"
)

// testExpander builds an expander over fresh state with arithmetic wired.
func testExpander(t *testing.T) (*Expander, *state.Shell) {
	t.Helper()
	st := state.New()
	e := New(st)
	e.Arith = func(expr string) (int64, error) { return arith.Eval(expr, st) }
	return e, st
}

// wordOf parses source text into the first word of a simple command.
func wordOf(t *testing.T, src string) *ast.Word {
	t.Helper()
	prog, err := parser.Parse("x "+src, parser.Strict)
	require.NoError(t, err)
	list := prog.Statements[0].(*ast.AndOrList)
	sc := list.Pipelines[0].Commands[0].(*ast.SimpleCommand)
	require.Len(t, sc.Words, 2, "source %q should be one word", src)
	return sc.Words[1]
}

func expand(t *testing.T, e *Expander, src string) []string {
	t.Helper()
	fields, err := e.ExpandWord(wordOf(t, src))
	require.NoError(t, err)
	return fields
}

func TestLiteralExpansion(t *testing.T) {
	e, _ := testExpander(t)
	assert.Equal(t, []string{"hello"}, expand(t, e, "hello"))
}

func TestFullyQuotedConstantIsItself(t *testing.T) {
	e, _ := testExpander(t)
	assert.Equal(t, []string{"foo"}, expand(t, e, `"foo"`))
	assert.Equal(t, []string{"foo bar"}, expand(t, e, `'foo bar'`))
}

func TestVariableExpansion(t *testing.T) {
	e, st := testExpander(t)
	require.NoError(t, st.Set("greeting", "hi"))
	assert.Equal(t, []string{"hi"}, expand(t, e, "$greeting"))
	assert.Equal(t, []string{"hi"}, expand(t, e, `"$greeting"`))
}

func TestUnquotedExpansionSplits(t *testing.T) {
	e, st := testExpander(t)
	require.NoError(t, st.Set("x", "a b  c"))
	assert.Equal(t, []string{"a", "b", "c"}, expand(t, e, "$x"))
	// quoted: no splitting
	assert.Equal(t, []string{"a b  c"}, expand(t, e, `"$x"`))
}

func TestIFSNonWhitespace(t *testing.T) {
	e, st := testExpander(t)
	require.NoError(t, st.Set("IFS", ":"))
	require.NoError(t, st.Set("path", "a::b:"))
	assert.Equal(t, []string{"a", "", "b"}, expand(t, e, "$path"))
}

func TestIFSEmptyDisablesSplitting(t *testing.T) {
	e, st := testExpander(t)
	require.NoError(t, st.Set("IFS", ""))
	require.NoError(t, st.Set("x", "a b c"))
	assert.Equal(t, []string{"a b c"}, expand(t, e, "$x"))
}

func TestTildeExpansion(t *testing.T) {
	e, st := testExpander(t)
	require.NoError(t, st.Set("HOME", "/home/tester"))
	assert.Equal(t, []string{"/home/tester"}, expand(t, e, "~"))
	assert.Equal(t, []string{"/home/tester/docs"}, expand(t, e, "~/docs"))
	// quoted tilde is literal
	assert.Equal(t, []string{"~"}, expand(t, e, `"~"`))
}

func TestPositionalAt(t *testing.T) {
	e, st := testExpander(t)
	st.Positional = []string{"a", "b c", "d"}
	assert.Equal(t, []string{"a", "b c", "d"}, expand(t, e, `"$@"`))
	// unquoted $@ splits on IFS
	assert.Equal(t, []string{"a", "b", "c", "d"}, expand(t, e, "$@"))
}

func TestQuotedAtWithZeroParamsDisappears(t *testing.T) {
	e, st := testExpander(t)
	st.Positional = nil
	fields, err := e.ExpandWord(wordOf(t, `"$@"`))
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestQuotedAtGluesPrefixSuffix(t *testing.T) {
	e, st := testExpander(t)
	st.Positional = []string{"1", "2", "3"}
	assert.Equal(t, []string{"x1", "2", "3y"}, expand(t, e, `"x$@y"`))
}

func TestQuotedStarJoinsWithIFS(t *testing.T) {
	e, st := testExpander(t)
	st.Positional = []string{"a", "b", "c"}
	require.NoError(t, st.Set("IFS", "-"))
	assert.Equal(t, []string{"a-b-c"}, expand(t, e, `"$*"`))
}

func TestParamDefault(t *testing.T) {
	e, st := testExpander(t)
	assert.Equal(t, []string{"fallback"}, expand(t, e, "${missing:-fallback}"))
	assert.False(t, st.IsSet("missing"), "use-default must not set the variable")

	require.NoError(t, st.Set("x", ""))
	assert.Equal(t, []string{"fb"}, expand(t, e, "${x:-fb}"), ":- triggers on null")
	fields, err := e.ExpandWord(wordOf(t, "${x-fb}"))
	require.NoError(t, err)
	assert.Empty(t, fields, "- without colon ignores null (empty result drops the field)")
}

func TestParamAssignDefault(t *testing.T) {
	e, st := testExpander(t)
	assert.Equal(t, []string{"v"}, expand(t, e, "${missing:=v}"))
	assert.Equal(t, "v", st.Get("missing"), ":= must assign")
}

func TestParamAlternate(t *testing.T) {
	e, st := testExpander(t)
	require.NoError(t, st.Set("x", "set"))
	assert.Equal(t, []string{"alt"}, expand(t, e, "${x:+alt}"))
	fields, err := e.ExpandWord(wordOf(t, "${missing:+alt}"))
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestParamErrorIfUnset(t *testing.T) {
	e, _ := testExpander(t)
	_, err := e.ExpandWord(wordOf(t, "${missing:?no such}"))
	require.Error(t, err)
	xe, ok := err.(*Error)
	require.True(t, ok, "want *expander.Error, got %T", err)
	assert.Equal(t, 1, xe.Code)
}

func TestParamLength(t *testing.T) {
	e, st := testExpander(t)
	require.NoError(t, st.Set("x", "hello"))
	assert.Equal(t, []string{"5"}, expand(t, e, "${#x}"))
	st.Positional = []string{"a", "b"}
	assert.Equal(t, []string{"2"}, expand(t, e, "${#@}"))
}

func TestParamTrim(t *testing.T) {
	e, st := testExpander(t)
	require.NoError(t, st.Set("path", "a/b/c.txt"))
	assert.Equal(t, []string{"b/c.txt"}, expand(t, e, "${path#*/}"))
	assert.Equal(t, []string{"c.txt"}, expand(t, e, "${path##*/}"))
	assert.Equal(t, []string{"a/b/c"}, expand(t, e, "${path%.txt}"))
	assert.Equal(t, []string{"a"}, expand(t, e, "${path%%/*}"))
}

func TestParamReplace(t *testing.T) {
	e, st := testExpander(t)
	require.NoError(t, st.Set("x", "aa-bb-aa"))
	assert.Equal(t, []string{"XX-bb-aa"}, expand(t, e, "${x/aa/XX}"))
	assert.Equal(t, []string{"XX-bb-XX"}, expand(t, e, "${x//aa/XX}"))
	assert.Equal(t, []string{"XX-bb-aa"}, expand(t, e, "${x/#aa/XX}"))
	assert.Equal(t, []string{"aa-bb-XX"}, expand(t, e, "${x/%aa/XX}"))
}

func TestParamCaseModification(t *testing.T) {
	e, st := testExpander(t)
	require.NoError(t, st.Set("x", "hello"))
	assert.Equal(t, []string{"Hello"}, expand(t, e, "${x^}"))
	assert.Equal(t, []string{"HELLO"}, expand(t, e, "${x^^}"))
	require.NoError(t, st.Set("y", "WORLD"))
	assert.Equal(t, []string{"wORLD"}, expand(t, e, "${y,}"))
	assert.Equal(t, []string{"world"}, expand(t, e, "${y,,}"))
}

func TestParamSubstring(t *testing.T) {
	e, st := testExpander(t)
	require.NoError(t, st.Set("x", "abcdef"))
	assert.Equal(t, []string{"cdef"}, expand(t, e, "${x:2}"))
	assert.Equal(t, []string{"cd"}, expand(t, e, "${x:2:2}"))
	assert.Equal(t, []string{"ef"}, expand(t, e, "${x:4:10}"))
}

func TestNamesMatchingPrefix(t *testing.T) {
	e, st := testExpander(t)
	require.NoError(t, st.Set("prefix_one", "1"))
	require.NoError(t, st.Set("prefix_two", "2"))
	fields := expand(t, e, `"${!prefix_*}"`)
	require.Len(t, fields, 1)
	assert.Contains(t, fields[0], "prefix_one")
	assert.Contains(t, fields[0], "prefix_two")
}

func TestNounset(t *testing.T) {
	e, st := testExpander(t)
	st.Options.Set("nounset", true)
	_, err := e.ExpandWord(wordOf(t, "$missing"))
	require.Error(t, err)
}

func TestArithmeticExpansion(t *testing.T) {
	e, st := testExpander(t)
	require.NoError(t, st.Set("n", "4"))
	assert.Equal(t, []string{"7"}, expand(t, e, "$((n + 3))"))
	assert.Equal(t, []string{"7"}, expand(t, e, "$(($n + 3))"))
}

func TestCommandSubstitutionStripsTrailingNewlines(t *testing.T) {
	e, _ := testExpander(t)
	e.CmdSub = func(text string) (string, error) {
		return "output\n\n\n", nil
	}
	assert.Equal(t, []string{"output"}, expand(t, e, "$(anything)"))
}

func TestGlobbing(t *testing.T) {
	e, st := testExpander(t)
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt", "c.log", ".hidden.txt"} {
		require.NoError(t, os.WriteFile(dir+"/"+name, nil, 0o644))
	}
	old, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(old)

	assert.Equal(t, []string{"a.txt", "b.txt"}, expand(t, e, "*.txt"))

	// hidden files need dotglob
	st.Options.Set("dotglob", true)
	assert.Equal(t, []string{".hidden.txt", "a.txt", "b.txt"}, expand(t, e, "*.txt"))
	st.Options.Set("dotglob", false)

	// no match: pattern stays literal by default
	assert.Equal(t, []string{"*.nope"}, expand(t, e, "*.nope"))

	// nullglob: no match expands to nothing
	st.Options.Set("nullglob", true)
	fields, err := e.ExpandWord(wordOf(t, "*.nope"))
	require.NoError(t, err)
	assert.Empty(t, fields)
	st.Options.Set("nullglob", false)

	// noglob suppresses expansion entirely
	st.Options.Set("noglob", true)
	assert.Equal(t, []string{"*.txt"}, expand(t, e, "*.txt"))
}

func TestQuotedGlobCharsAreLiteral(t *testing.T) {
	e, _ := testExpander(t)
	assert.Equal(t, []string{"*"}, expand(t, e, `"*"`))
	assert.Equal(t, []string{"?"}, expand(t, e, `'?'`))
}

func TestArrayExpansion(t *testing.T) {
	e, st := testExpander(t)
	v := &state.Variable{Name: "arr", Attrs: state.AttrIndexedArray, Indexed: map[int]string{
		0: "one", 1: "two three", 2: "four",
	}}
	require.NoError(t, st.SetVar(v))
	assert.Equal(t, []string{"one", "two three", "four"}, expand(t, e, `"${arr[@]}"`))
	assert.Equal(t, []string{"two three"}, expand(t, e, `"${arr[1]}"`))
	assert.Equal(t, []string{"3"}, expand(t, e, `"${#arr[@]}"`))
	assert.Equal(t, []string{"one"}, expand(t, e, "$arr"))
}

func TestHeredocExpansion(t *testing.T) {
	e, st := testExpander(t)
	require.NoError(t, st.Set("USER", "alice"))
	out, err := e.ExpandHeredoc("hello $USER\nquotes are 'literal'\n")
	require.NoError(t, err)
	assert.Equal(t, "hello alice\nquotes are 'literal'\n", out)

	out, err = e.ExpandHeredoc("escaped \\$USER\n")
	require.NoError(t, err)
	assert.Equal(t, "escaped $USER\n", out)
}

func TestExpandWordNoSplit(t *testing.T) {
	e, st := testExpander(t)
	require.NoError(t, st.Set("x", "a b c"))
	out, err := e.ExpandWordNoSplit(wordOf(t, "$x"))
	require.NoError(t, err)
	assert.Equal(t, "a b c", out)
}

func TestAnsiCQuotedWord(t *testing.T) {
	e, _ := testExpander(t)
	assert.Equal(t, []string{"a\tb"}, expand(t, e, `$'a\tb'`))
}

func TestLexScanPartsRoundTrip(t *testing.T) {
	// ScanParts used by operand parsing keeps spaces intact.
	parts := lexer.ScanParts("hello world $x")
	var total string
	for _, p := range parts {
		total += p.Text
	}
	assert.Equal(t, "hello world $x", total)
}
