package interp_test

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psh/builtins"
	"psh/interp"
	"psh/proc"
	"psh/state"
)

// runShell executes src with stdout captured, returning output and the final
// exit code. Everything runs in-process: the scripts below use builtins and
// shell constructs only.
func runShell(t *testing.T, src string) (string, int) {
	t.Helper()
	st := state.New()
	launcher := proc.NewLauncher(false)
	r := interp.New(st, launcher)
	builtins.Install(r)

	pr, pw, err := os.Pipe()
	require.NoError(t, err)
	r.Fds.Set(1, pw, false)

	done := make(chan string, 1)
	go func() {
		out, _ := io.ReadAll(pr)
		done <- string(out)
	}()

	code, runErr := r.RunSource(src, "test")
	if runErr != nil {
		if exit, ok := runErr.(*interp.ExitError); ok {
			code = exit.Code
		} else {
			t.Fatalf("RunSource(%q) error: %v", src, runErr)
		}
	}
	pw.Close()
	out := <-done
	pr.Close()
	return out, code
}

func TestEchoPipelineThroughBraceGroup(t *testing.T) {
	out, code := runShell(t, `echo hello | { read x; echo "[$x]"; }`)
	assert.Equal(t, "[hello]\n", out)
	assert.Equal(t, 0, code)
}

func TestForLoopIterates(t *testing.T) {
	out, code := runShell(t, "for i in 1 2 3; do echo $i; done")
	assert.Equal(t, "1\n2\n3\n", out)
	assert.Equal(t, 0, code)
}

func TestSubshellIsolation(t *testing.T) {
	out, _ := runShell(t, "x=1; (x=2; echo $x); echo $x")
	assert.Equal(t, "2\n1\n", out, "subshell sees its own value; parent unchanged")
}

func TestBraceGroupLeaks(t *testing.T) {
	out, _ := runShell(t, "v=1; { v=2; }; echo $v")
	assert.Equal(t, "2\n", out, "brace group runs in the current process")
}

func TestDynamicScoping(t *testing.T) {
	out, _ := runShell(t, "f() { local x=1; g; }; g() { echo $x; }; x=0; f")
	assert.Equal(t, "1\n", out, "inner function sees the caller's local")
}

func TestErrexit(t *testing.T) {
	out, code := runShell(t, "set -e\nfalse\necho reached")
	assert.NotContains(t, out, "reached")
	assert.Equal(t, 1, code)
}

func TestErrexitSparesConditions(t *testing.T) {
	out, code := runShell(t, "set -e\nif false; then echo no; fi\necho ok")
	assert.Equal(t, "ok\n", out)
	assert.Equal(t, 0, code)
}

func TestParamDefaultDoesNotAssign(t *testing.T) {
	out, _ := runShell(t, "echo ${x:-default}; echo ${x:-still}")
	assert.Equal(t, "default\nstill\n", out)
}

func TestParamAssignDefault(t *testing.T) {
	out, _ := runShell(t, "echo ${x:=default}; echo $x")
	assert.Equal(t, "default\ndefault\n", out)
}

func TestQuotedAtPreservesBoundaries(t *testing.T) {
	out, _ := runShell(t, `set -- a 'b c' d; for x in "$@"; do echo "[$x]"; done`)
	assert.Equal(t, "[a]\n[b c]\n[d]\n", out)
}

func TestBraceGroupRedirect(t *testing.T) {
	tmp := t.TempDir() + "/out"
	out, _ := runShell(t, "{ echo a; echo b; } > "+tmp+"\necho after")
	assert.Equal(t, "after\n", out, "group output must go to the file")
	data, err := os.ReadFile(tmp)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", string(data))
}

func TestAndOrList(t *testing.T) {
	out, _ := runShell(t, "true && echo yes || echo no")
	assert.Equal(t, "yes\n", out)
	out, _ = runShell(t, "false && echo yes || echo no")
	assert.Equal(t, "no\n", out)
}

func TestExitCodeTracking(t *testing.T) {
	out, _ := runShell(t, "false; echo $?; true; echo $?")
	assert.Equal(t, "1\n0\n", out)
}

func TestCaseMatching(t *testing.T) {
	out, _ := runShell(t, `x=hello; case $x in he*) echo glob;; *) echo other;; esac`)
	assert.Equal(t, "glob\n", out)
}

func TestCaseFallthrough(t *testing.T) {
	out, _ := runShell(t, "case a in a) echo one;& b) echo two;; c) echo three;; esac")
	assert.Equal(t, "one\ntwo\n", out, ";& runs the next body unconditionally")
}

func TestCaseContinueMatching(t *testing.T) {
	out, _ := runShell(t, "case ab in a*) echo first;;& *b) echo second;; esac")
	assert.Equal(t, "first\nsecond\n", out, ";;& keeps testing later patterns")
}

func TestWhileLoopWithBreak(t *testing.T) {
	out, _ := runShell(t, "i=0; while true; do i=$((i+1)); if [ $i -ge 3 ]; then break; fi; echo $i; done")
	assert.Equal(t, "1\n2\n", out)
}

func TestContinue(t *testing.T) {
	out, _ := runShell(t, "for i in 1 2 3; do if [ $i = 2 ]; then continue; fi; echo $i; done")
	assert.Equal(t, "1\n3\n", out)
}

func TestNestedBreakWithLevel(t *testing.T) {
	out, _ := runShell(t, "for i in 1 2; do for j in a b; do echo $i$j; break 2; done; done; echo done")
	assert.Equal(t, "1a\ndone\n", out)
}

func TestFunctionReturnCode(t *testing.T) {
	out, code := runShell(t, "f() { return 3; }; f; echo $?")
	assert.Equal(t, "3\n", out)
	assert.Equal(t, 0, code)
}

func TestFunctionScopeRestoration(t *testing.T) {
	out, _ := runShell(t, "f() { local x=inner; return 1; }; x=outer; f; echo $x")
	assert.Equal(t, "outer\n", out, "scope must pop on every exit path")
}

func TestFunctionPositionalRestoration(t *testing.T) {
	out, _ := runShell(t, `set -- a b; f() { echo $1; }; f z; echo $1`)
	assert.Equal(t, "z\na\n", out)
}

func TestCStyleForLoop(t *testing.T) {
	out, _ := runShell(t, "for ((i=0; i<3; i++)); do echo $i; done")
	assert.Equal(t, "0\n1\n2\n", out)
}

func TestArithmeticCommand(t *testing.T) {
	_, code := runShell(t, "((1 + 1))")
	assert.Equal(t, 0, code, "non-zero value exits 0")
	_, code = runShell(t, "((0))")
	assert.Equal(t, 1, code, "zero value exits 1")
}

func TestTestCommand(t *testing.T) {
	_, code := runShell(t, `[[ abc == a* ]]`)
	assert.Equal(t, 0, code)
	_, code = runShell(t, `[[ abc == "a*" ]]`)
	assert.Equal(t, 1, code, "quoted pattern compares literally")
	_, code = runShell(t, `[[ 10 -gt 9 ]]`)
	assert.Equal(t, 0, code)
	_, code = runShell(t, `[[ -z "" && -n x ]]`)
	assert.Equal(t, 0, code)
}

func TestHeredocExpanded(t *testing.T) {
	out, _ := runShell(t, "USER_T=alice\nwhile read line; do echo got:$line; done <<EOF\nhello $USER_T\nEOF")
	assert.Equal(t, "got:hello alice\n", out)
}

func TestHeredocQuotedDelimiter(t *testing.T) {
	out, _ := runShell(t, "while read -r line; do echo got:$line; done <<'EOF'\nhello $USER\nEOF")
	assert.Equal(t, "got:hello $USER\n", out)
}

func TestHerestring(t *testing.T) {
	out, _ := runShell(t, "read x <<< hello; echo $x")
	assert.Equal(t, "hello\n", out)
}

func TestCommandSubstitution(t *testing.T) {
	out, _ := runShell(t, "x=$(echo inner); echo got:$x")
	assert.Equal(t, "got:inner\n", out)
}

func TestCommandSubstitutionExitCode(t *testing.T) {
	out, _ := runShell(t, "x=$(false); echo $?")
	assert.Equal(t, "1\n", out)
}

func TestPipefail(t *testing.T) {
	src := "set -o pipefail\nfalse | true\necho $?"
	out, _ := runShell(t, src)
	assert.Equal(t, "1\n", out, "pipefail picks the failing member")

	out, _ = runShell(t, "false | true\necho $?")
	assert.Equal(t, "0\n", out, "without pipefail the last member wins")
}

func TestNegation(t *testing.T) {
	_, code := runShell(t, "! false")
	assert.Equal(t, 0, code)
	_, code = runShell(t, "! true")
	assert.Equal(t, 1, code)
}

func TestExitBuiltin(t *testing.T) {
	out, code := runShell(t, "echo before\nexit 7\necho after")
	assert.Equal(t, "before\n", out)
	assert.Equal(t, 7, code)
}

func TestShift(t *testing.T) {
	out, _ := runShell(t, "set -- a b c; shift; echo $1 $#")
	assert.Equal(t, "b 2\n", out)
}

func TestTemporaryAssignment(t *testing.T) {
	out, _ := runShell(t, "f() { echo $v; }; v=outer; v=temp f; echo $v")
	assert.Equal(t, "temp\nouter\n", out, "assignment prefix is restored after the command")
}

func TestSpecialBuiltinAssignmentPersists(t *testing.T) {
	out, _ := runShell(t, "v=persisted :; echo $v")
	assert.Equal(t, "persisted\n", out)
}

func TestReadonlyViolation(t *testing.T) {
	out, code := runShell(t, "readonly ro=1\nro=2\necho code:$?")
	assert.NotContains(t, out, "code:0")
	_ = code
}

func TestUnsetVariable(t *testing.T) {
	out, _ := runShell(t, "x=1; unset x; echo [${x:-gone}]")
	assert.Equal(t, "[gone]\n", out)
}

func TestArrays(t *testing.T) {
	out, _ := runShell(t, `arr=(one "two three" four); echo ${#arr[@]}; echo "${arr[1]}"`)
	assert.Equal(t, "3\ntwo three\n", out)
}

func TestArrayElementAssignment(t *testing.T) {
	out, _ := runShell(t, `arr=(a b); arr[5]=f; echo ${#arr[@]} ${arr[5]}`)
	assert.Equal(t, "3 f\n", out)
}

func TestAlias(t *testing.T) {
	out, _ := runShell(t, "alias greet='echo hi'\ngreet there")
	assert.Equal(t, "hi there\n", out)
}

func TestExitTrap(t *testing.T) {
	st := state.New()
	launcher := proc.NewLauncher(false)
	r := interp.New(st, launcher)
	builtins.Install(r)

	pr, pw, err := os.Pipe()
	require.NoError(t, err)
	r.Fds.Set(1, pw, false)
	done := make(chan string, 1)
	go func() {
		out, _ := io.ReadAll(pr)
		done <- string(out)
	}()

	_, _ = r.RunSource("trap 'echo cleanup' EXIT\necho body", "test")
	r.RunExitTrap()
	pw.Close()
	out := <-done
	assert.Equal(t, "body\ncleanup\n", out)
}

func TestSourcedReturn(t *testing.T) {
	dir := t.TempDir()
	script := dir + "/lib.sh"
	require.NoError(t, os.WriteFile(script, []byte("echo first\nreturn 0\necho second\n"), 0o644))
	out, _ := runShell(t, "source "+script+"\necho after")
	assert.Equal(t, "first\nafter\n", out, "return stops the sourced script only")
}

func TestNounsetFailure(t *testing.T) {
	out, code := runShell(t, "set -u\necho $definitely_not_set\necho reached")
	assert.NotContains(t, out, "reached")
	assert.NotEqual(t, 0, code)
}

func TestIfElifElse(t *testing.T) {
	src := func(v string) string {
		return "x=" + v + "\nif [ $x = a ]; then echo A; elif [ $x = b ]; then echo B; else echo C; fi"
	}
	out, _ := runShell(t, src("a"))
	assert.Equal(t, "A\n", out)
	out, _ = runShell(t, src("b"))
	assert.Equal(t, "B\n", out)
	out, _ = runShell(t, src("z"))
	assert.Equal(t, "C\n", out)
}

func TestUntilLoop(t *testing.T) {
	out, _ := runShell(t, "i=0; until [ $i -ge 2 ]; do echo $i; i=$((i+1)); done")
	assert.Equal(t, "0\n1\n", out)
}

func TestLongPipelineOfBuiltins(t *testing.T) {
	out, _ := runShell(t, `echo start | { read a; echo "$a-mid"; } | { read b; echo "$b-end"; }`)
	assert.Equal(t, "start-mid-end\n", out)
}

func TestEvalBuiltin(t *testing.T) {
	out, _ := runShell(t, `cmd='echo evaled'; eval $cmd`)
	assert.Equal(t, "evaled\n", out)
}

func TestXtraceWritesToStderr(t *testing.T) {
	// stderr untouched here; just make sure -x does not corrupt stdout
	out, _ := runShell(t, "set -x\necho visible")
	assert.True(t, strings.HasSuffix(out, "visible\n"), "stdout = %q", out)
}
