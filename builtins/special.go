package builtins

import (
	"fmt"
	"strconv"
	"strings"

	"psh/interp"
	"psh/state"
)

// The POSIX special builtins. Their assignment prefixes persist and they
// outrank functions in the lookup chain; both rules live in the executor.

func colon(r *interp.Runner, argv []string) (int, error) {
	return 0, nil
}

func breakBuiltin(r *interp.Runner, argv []string) (int, error) {
	level, code := levelArg(r, argv)
	if code != 0 {
		return code, nil
	}
	return 0, interp.NewBreak(level)
}

func continueBuiltin(r *interp.Runner, argv []string) (int, error) {
	level, code := levelArg(r, argv)
	if code != 0 {
		return code, nil
	}
	return 0, interp.NewContinue(level)
}

func levelArg(r *interp.Runner, argv []string) (int, int) {
	if len(argv) < 2 {
		return 1, 0
	}
	n, err := strconv.Atoi(argv[1])
	if err != nil || n < 1 {
		r.Errorf(argv[0], "%s: loop count out of range", argv[1])
		return 0, 2
	}
	return n, 0
}

func eval(r *interp.Runner, argv []string) (int, error) {
	if len(argv) < 2 {
		return 0, nil
	}
	return r.RunSource(strings.Join(argv[1:], " "), "eval")
}

// execBuiltin with a command replaces the shell; with only redirections it
// makes them permanent on the enclosing shell.
func execBuiltin(r *interp.Runner, argv []string) (int, error) {
	if len(argv) == 1 {
		// The wrapping Builtin-mode redirections were already applied; the
		// exec builtin's job is making them stick, which the runner does by
		// consuming the saved-fd record.
		r.MakeRedirectionsPermanent()
		return 0, nil
	}
	return r.ExecReplace(argv[1:])
}

func exit(r *interp.Runner, argv []string) (int, error) {
	code := r.St.LastExitCode
	if len(argv) > 1 {
		n, err := strconv.Atoi(argv[1])
		if err != nil {
			r.Errorf("exit", "%s: numeric argument required", argv[1])
			return 2, interp.NewExit(2)
		}
		code = n & 0xff
	}
	return code, interp.NewExit(code)
}

func export(r *interp.Runner, argv []string) (int, error) {
	if len(argv) == 1 {
		for _, kv := range r.St.Environ() {
			fmt.Fprintf(r.Stdout(), "declare -x %s\n", kv)
		}
		return 0, nil
	}
	code := 0
	for _, arg := range argv[1:] {
		name, value, hasValue := strings.Cut(arg, "=")
		if hasValue {
			if err := r.St.Set(name, value); err != nil {
				r.Errorf("export", "%s", err)
				code = 1
				continue
			}
		}
		r.St.MarkAttr(name, state.AttrExported)
	}
	return code, nil
}

func readonly(r *interp.Runner, argv []string) (int, error) {
	code := 0
	for _, arg := range argv[1:] {
		name, value, hasValue := strings.Cut(arg, "=")
		if hasValue {
			if err := r.St.Set(name, value); err != nil {
				r.Errorf("readonly", "%s", err)
				code = 1
				continue
			}
		}
		r.St.MarkAttr(name, state.AttrReadonly)
	}
	return code, nil
}

func returnBuiltin(r *interp.Runner, argv []string) (int, error) {
	code := r.St.LastExitCode
	if len(argv) > 1 {
		n, err := strconv.Atoi(argv[1])
		if err != nil {
			r.Errorf("return", "%s: numeric argument required", argv[1])
			return 2, nil
		}
		code = n & 0xff
	}
	return code, interp.NewReturn(code)
}

func set(r *interp.Runner, argv []string) (int, error) {
	if len(argv) == 1 {
		for _, name := range r.St.AllNames() {
			fmt.Fprintf(r.Stdout(), "%s=%s\n", name, r.St.Get(name))
		}
		return 0, nil
	}
	args := argv[1:]
	for len(args) > 0 {
		arg := args[0]
		switch {
		case arg == "--":
			r.St.Positional = append([]string(nil), args[1:]...)
			return 0, nil
		case arg == "-o" || arg == "+o":
			if len(args) < 2 {
				printOptions(r, arg == "-o")
				args = args[1:]
				continue
			}
			if !r.St.Options.Set(args[1], arg == "-o") {
				r.Errorf("set", "%s: invalid option name", args[1])
				return 2, nil
			}
			args = args[2:]
		case len(arg) >= 2 && (arg[0] == '-' || arg[0] == '+'):
			enable := arg[0] == '-'
			for i := 1; i < len(arg); i++ {
				if !r.St.Options.SetShort(arg[i], enable) {
					r.Errorf("set", "-%c: invalid option", arg[i])
					return 2, nil
				}
			}
			args = args[1:]
		default:
			r.St.Positional = append([]string(nil), args...)
			return 0, nil
		}
	}
	return 0, nil
}

func printOptions(r *interp.Runner, setSyntax bool) {
	for _, name := range r.St.Options.Names() {
		state := "off"
		if r.St.Options.Get(name) {
			state = "on"
		}
		if setSyntax {
			fmt.Fprintf(r.Stdout(), "%-20s %s\n", name, state)
		} else {
			flag := "+o"
			if r.St.Options.Get(name) {
				flag = "-o"
			}
			fmt.Fprintf(r.Stdout(), "set %s %s\n", flag, name)
		}
	}
}

func shift(r *interp.Runner, argv []string) (int, error) {
	n := 1
	if len(argv) > 1 {
		v, err := strconv.Atoi(argv[1])
		if err != nil || v < 0 {
			r.Errorf("shift", "%s: shift count out of range", argv[1])
			return 1, nil
		}
		n = v
	}
	if n > len(r.St.Positional) {
		return 1, nil
	}
	r.St.Positional = r.St.Positional[n:]
	return 0, nil
}

func trap(r *interp.Runner, argv []string) (int, error) {
	if len(argv) == 1 {
		for sig, cmd := range r.St.Traps {
			fmt.Fprintf(r.Stdout(), "trap -- %q %s\n", cmd, sig)
		}
		return 0, nil
	}
	action := argv[1]
	sigs := argv[2:]
	if len(sigs) == 0 {
		// trap SIGSPEC resets it
		sigs = []string{action}
		action = "-"
	}
	for _, sig := range sigs {
		name := normalizeSignal(sig)
		if action == "-" {
			delete(r.St.Traps, name)
		} else {
			r.St.Traps[name] = action
		}
	}
	return 0, nil
}

func normalizeSignal(sig string) string {
	up := strings.ToUpper(sig)
	up = strings.TrimPrefix(up, "SIG")
	switch up {
	case "0":
		return "EXIT"
	}
	return up
}

func unset(r *interp.Runner, argv []string) (int, error) {
	code := 0
	args := argv[1:]
	unsetFunc := false
	if len(args) > 0 && (args[0] == "-f" || args[0] == "-v") {
		unsetFunc = args[0] == "-f"
		args = args[1:]
	}
	for _, name := range args {
		if unsetFunc {
			delete(r.St.Functions, name)
			continue
		}
		if err := r.St.Unset(name); err != nil {
			r.Errorf("unset", "%s", err)
			code = 1
		}
	}
	return code, nil
}
