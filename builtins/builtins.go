// Package builtins implements the shell's builtin commands and installs
// them into a runner. The dispatch contract is interp.BuiltinFunc: argv in,
// exit status out, control flow as sentinel errors.
package builtins

import (
	"psh/interp"
)

// Install registers every builtin on r.
func Install(r *interp.Runner) {
	// POSIX special builtins
	r.RegisterBuiltin(":", colon)
	r.RegisterBuiltin("break", breakBuiltin)
	r.RegisterBuiltin("continue", continueBuiltin)
	r.RegisterBuiltin("eval", eval)
	r.RegisterBuiltin("exec", execBuiltin)
	r.RegisterBuiltin("exit", exit)
	r.RegisterBuiltin("export", export)
	r.RegisterBuiltin("readonly", readonly)
	r.RegisterBuiltin("return", returnBuiltin)
	r.RegisterBuiltin("set", set)
	r.RegisterBuiltin("shift", shift)
	r.RegisterBuiltin("trap", trap)
	r.RegisterBuiltin("unset", unset)

	// regular builtins
	r.RegisterBuiltin("alias", alias)
	r.RegisterBuiltin("unalias", unalias)
	r.RegisterBuiltin("cd", cd)
	r.RegisterBuiltin("pwd", pwd)
	r.RegisterBuiltin("echo", echo)
	r.RegisterBuiltin("printf", printfBuiltin)
	r.RegisterBuiltin("true", trueBuiltin)
	r.RegisterBuiltin("false", falseBuiltin)
	r.RegisterBuiltin("test", test)
	r.RegisterBuiltin("[", test)
	r.RegisterBuiltin("read", read)
	r.RegisterBuiltin("local", local)
	r.RegisterBuiltin("declare", declare)
	r.RegisterBuiltin("source", source)
	r.RegisterBuiltin(".", source)
	r.RegisterBuiltin("command", command)
	r.RegisterBuiltin("type", typeBuiltin)
	r.RegisterBuiltin("wait", wait)
	r.RegisterBuiltin("jobs", jobs)
	r.RegisterBuiltin("shopt", shopt)
}
