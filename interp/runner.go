package interp

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"

	"psh/arith"
	"psh/ast"
	"psh/expander"
	"psh/iomgr"
	"psh/lexer"
	"psh/parser"
	"psh/proc"
	"psh/state"
	"psh/trace"
)

// BuiltinFunc is the dispatch contract for builtin commands: argv[0] is the
// builtin name. The int is the exit status; the error carries control flow
// (break, continue, return, exit) or a hard failure.
type BuiltinFunc func(r *Runner, argv []string) (int, error)

// specialBuiltins is the closed POSIX set: they win over functions in
// lookup, and assignment prefixes applied to them persist.
var specialBuiltins = map[string]bool{
	":": true, "break": true, "continue": true, "eval": true, "exec": true,
	"exit": true, "export": true, "readonly": true, "return": true,
	"set": true, "shift": true, "trap": true, "unset": true,
}

// IsSpecialBuiltin reports whether name is a POSIX special builtin.
func IsSpecialBuiltin(name string) bool { return specialBuiltins[name] }

// Runner executes ASTs against shell state. It is the visitor at the top of
// the executor: each node kind dispatches to its sub-executor.
type Runner struct {
	St  *state.Shell
	Exp *expander.Expander
	IO  *iomgr.Manager
	Fds *iomgr.Table

	Launcher *proc.Launcher
	Ctx      ExecContext

	builtins map[string]BuiltinFunc

	// inTrap suppresses recursive trap invocation.
	inTrap bool
	// keepRedirects is the exec builtin's request to keep the wrapping
	// redirections after it returns.
	keepRedirects bool
	// cmdSubRan marks that a command substitution ran while expanding the
	// current command; an assignment-only command then reports its status.
	cmdSubRan bool
}

// New builds a runner over fresh stdio.
func New(st *state.Shell, launcher *proc.Launcher) *Runner {
	r := &Runner{
		St:       st,
		Fds:      iomgr.NewTable(os.Stdin, os.Stdout, os.Stderr),
		Launcher: launcher,
		builtins: make(map[string]BuiltinFunc),
	}
	r.bind()
	return r
}

// bind wires the expander and I/O manager callbacks to this runner's state
// and process machinery.
func (r *Runner) bind() {
	r.Exp = expander.New(r.St)
	r.Exp.CmdSub = r.commandSubstitution
	r.Exp.Arith = func(expr string) (int64, error) { return arith.Eval(expr, r.St) }
	r.IO = iomgr.NewManager(iomgr.Callbacks{
		ExpandTarget:  r.expandRedirectTarget,
		ExpandHeredoc: r.Exp.ExpandHeredoc,
		Noclobber:     func() bool { return r.St.Options.Get("noclobber") },
		StartProcSub:  r.startProcSub,
	})
	r.Exp.ProcSub = r.IO.ProcSubPath
}

// RegisterBuiltin installs a builtin implementation; the builtins package
// calls this at startup.
func (r *Runner) RegisterBuiltin(name string, fn BuiltinFunc) {
	r.builtins[name] = fn
}

// Builtin looks up a registered builtin.
func (r *Runner) Builtin(name string) (BuiltinFunc, bool) {
	fn, ok := r.builtins[name]
	return fn, ok
}

// Stdin, Stdout and Stderr give builtins their redirected stdio.
func (r *Runner) Stdin() *os.File  { return r.Fds.Stdin() }
func (r *Runner) Stdout() *os.File { return r.Fds.Stdout() }
func (r *Runner) Stderr() *os.File { return r.Fds.Stderr() }

// Errorf writes a diagnostic in the shell's standard format.
func (r *Runner) Errorf(component, format string, args ...interface{}) {
	fmt.Fprintf(r.Stderr(), "psh: %s: %s\n", component, fmt.Sprintf(format, args...))
}

// fork derives a child runner over its own state snapshot and fd table.
// Everything that must not leak back to the parent lives behind this copy.
func (r *Runner) fork(st *state.Shell, fds *iomgr.Table, ctx ExecContext) *Runner {
	child := &Runner{
		St:       st,
		Fds:      fds,
		Launcher: r.Launcher,
		Ctx:      ctx,
		builtins: r.builtins,
	}
	child.bind()
	return child
}

// Run executes a whole program and returns the final exit code. ExitError
// unwinds here; other errors have already been reported.
func (r *Runner) Run(prog *ast.Program) (int, error) {
	code, err := r.runStatements(prog.Statements, r.Ctx)
	if err != nil {
		var exit *ExitError
		if errors.As(err, &exit) {
			return exit.Code, nil
		}
		return code, err
	}
	return code, nil
}

// runStatements executes a statement list, applying the errexit check after
// every command, before advancing to the next statement.
func (r *Runner) runStatements(stmts []ast.Statement, ctx ExecContext) (int, error) {
	code := r.St.LastExitCode
	for _, stmt := range stmts {
		var err error
		code, err = r.runStatement(stmt, ctx)
		r.St.LastExitCode = code
		if err != nil {
			return code, err
		}
		if code != 0 && !ctx.conditional {
			r.runErrTrap()
			if r.St.Options.Get("errexit") {
				return code, &ExitError{Code: code}
			}
		}
	}
	return code, nil
}

// runStatement dispatches one statement.
func (r *Runner) runStatement(stmt ast.Statement, ctx ExecContext) (int, error) {
	r.runDebugTrap()
	switch s := stmt.(type) {
	case *ast.AndOrList:
		return r.runAndOrList(s, ctx)
	case *ast.FunctionDef:
		r.St.Functions[s.Name] = s
		return 0, nil
	case ast.Command:
		return r.runCommand(s, ctx)
	}
	return 0, errors.Errorf("unknown statement type %T", stmt)
}

// runAndOrList evaluates pipelines joined by && and || left to right. Every
// pipeline except the last runs in condition context for errexit purposes.
func (r *Runner) runAndOrList(list *ast.AndOrList, ctx ExecContext) (int, error) {
	code := 0
	for i, pl := range list.Pipelines {
		if i > 0 {
			op := list.Operators[i-1]
			if (op == "&&" && code != 0) || (op == "||" && code == 0) {
				continue
			}
		}
		pctx := ctx
		if i < len(list.Pipelines)-1 {
			pctx = ctx.EnterCondition()
		}
		var err error
		code, err = r.runPipeline(pl, pctx)
		r.St.LastExitCode = code
		if err != nil {
			return code, err
		}
	}
	return code, nil
}

// expandRedirectTarget expands a redirection target word: tilde, parameter,
// command and arithmetic expansion, never splitting or globbing. Quoted parts carry
// their own suppression, so one path serves both spellings.
func (r *Runner) expandRedirectTarget(w *ast.Word, quoteChar byte) (string, error) {
	return r.Exp.ExpandWordNoSplit(w)
}

// --- traps ---

// RunExitTrap runs the EXIT trap; main calls it exactly once at shutdown.
func (r *Runner) RunExitTrap() {
	r.runTrap("EXIT")
}

func (r *Runner) runDebugTrap() {
	r.runTrap("DEBUG")
}

func (r *Runner) runErrTrap() {
	r.runTrap("ERR")
}

// runTrap executes a trap command string. The trap's own exit code is
// discarded: it never replaces the code of the command that triggered it.
func (r *Runner) runTrap(name string) {
	cmd, ok := r.St.Traps[name]
	if !ok || cmd == "" || r.inTrap {
		return
	}
	r.inTrap = true
	defer func() { r.inTrap = false }()

	saved := r.St.LastExitCode
	prog, err := parser.Parse(cmd, parser.Strict)
	if err != nil {
		r.Errorf("trap", "%s", err)
		return
	}
	_, _ = r.runStatements(prog.Statements, r.Ctx)
	r.St.LastExitCode = saved
}

// RunSource lexes, parses and executes src in the current shell, used by
// eval, source and the RC loader.
func (r *Runner) RunSource(src, name string) (int, error) {
	l := lexer.New(src, lexer.Strict)
	toks, err := l.Tokenize()
	if err != nil {
		r.Errorf(name, "%s", err)
		return 2, nil
	}
	for _, tok := range toks {
		trace.TokensLog().Debugw("token", "type", string(tok.Type), "lit", tok.Literal, "line", tok.Line)
	}
	p := parser.NewFromTokens(toks, l.Heredocs(), parser.Strict)
	prog, err := p.ParseProgram()
	if err != nil {
		r.Errorf(name, "%s", err)
		return 2, nil
	}
	trace.ASTLog().Debugw("program", "ast", prog.String())
	return r.runStatements(prog.Statements, r.Ctx)
}

// xtrace writes the expanded command to stderr prefixed by PS4.
func (r *Runner) xtrace(argv []string) {
	if !r.St.Options.Get("xtrace") {
		return
	}
	ps4 := r.St.Get("PS4")
	if ps4 == "" {
		ps4 = "+ "
	}
	fmt.Fprintf(r.Stderr(), "%s%s\n", ps4, strings.Join(argv, " "))
	trace.ExecLog().Debugw("xtrace", "argv", argv)
}
