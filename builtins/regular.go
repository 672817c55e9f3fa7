package builtins

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"psh/interp"
	"psh/state"
)

func trueBuiltin(r *interp.Runner, argv []string) (int, error)  { return 0, nil }
func falseBuiltin(r *interp.Runner, argv []string) (int, error) { return 1, nil }

func echo(r *interp.Runner, argv []string) (int, error) {
	args := argv[1:]
	newline := true
	escapes := false
	for len(args) > 0 {
		switch args[0] {
		case "-n":
			newline = false
		case "-e":
			escapes = true
		case "-E":
			escapes = false
		default:
			goto body
		}
		args = args[1:]
	}
body:
	out := strings.Join(args, " ")
	if escapes {
		out = decodeEchoEscapes(out)
	}
	if newline {
		out += "\n"
	}
	fmt.Fprint(r.Stdout(), out)
	return 0, nil
}

func decodeEchoEscapes(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'a':
			b.WriteByte('\a')
		case '\\':
			b.WriteByte('\\')
		case 'c':
			return b.String() // \c stops output
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func printfBuiltin(r *interp.Runner, argv []string) (int, error) {
	if len(argv) < 2 {
		r.Errorf("printf", "usage: printf format [arguments]")
		return 2, nil
	}
	format := decodeEchoEscapes(argv[1])
	args := argv[2:]
	// A simplistic repeat-until-consumed loop matching shell printf.
	for {
		var vals []interface{}
		consumed := 0
		for i := 0; i < len(format)-1; i++ {
			if format[i] == '%' && format[i+1] != '%' {
				if consumed < len(args) {
					vals = append(vals, convPrintfArg(format[i+1], args[consumed]))
					consumed++
				} else {
					vals = append(vals, "")
				}
				i++
			}
		}
		fmt.Fprintf(r.Stdout(), format, vals...)
		if consumed >= len(args) || consumed == 0 {
			break
		}
		args = args[consumed:]
	}
	return 0, nil
}

func convPrintfArg(verb byte, arg string) interface{} {
	switch verb {
	case 'd', 'i', 'x', 'X', 'o':
		n, _ := strconv.ParseInt(arg, 0, 64)
		return n
	case 'f', 'e', 'g':
		f, _ := strconv.ParseFloat(arg, 64)
		return f
	}
	return arg
}

func cd(r *interp.Runner, argv []string) (int, error) {
	var target string
	switch {
	case len(argv) == 1:
		target = r.St.Get("HOME")
		if target == "" {
			r.Errorf("cd", "HOME not set")
			return 1, nil
		}
	case argv[1] == "-":
		target = r.St.Get("OLDPWD")
		if target == "" {
			r.Errorf("cd", "OLDPWD not set")
			return 1, nil
		}
		fmt.Fprintln(r.Stdout(), target)
	default:
		target = argv[1]
	}

	// CDPATH search for relative targets
	if !strings.HasPrefix(target, "/") && !strings.HasPrefix(target, ".") {
		for _, dir := range filepath.SplitList(r.St.Get("CDPATH")) {
			if dir == "" {
				continue
			}
			candidate := filepath.Join(dir, target)
			if info, err := os.Stat(candidate); err == nil && info.IsDir() {
				fmt.Fprintln(r.Stdout(), candidate)
				target = candidate
				break
			}
		}
	}

	oldpwd, _ := os.Getwd()
	if err := os.Chdir(target); err != nil {
		r.Errorf("cd", "%s: %s", target, pathErrMsg(err))
		return 1, nil
	}
	pwd, _ := os.Getwd()
	_ = r.St.Set("OLDPWD", oldpwd)
	_ = r.St.Set("PWD", pwd)
	return 0, nil
}

func pathErrMsg(err error) string {
	if pe, ok := err.(*os.PathError); ok {
		return pe.Err.Error()
	}
	return err.Error()
}

func pwd(r *interp.Runner, argv []string) (int, error) {
	dir, err := os.Getwd()
	if err != nil {
		r.Errorf("pwd", "%s", err)
		return 1, nil
	}
	fmt.Fprintln(r.Stdout(), dir)
	return 0, nil
}

// read implements read [-r] [-t timeout] [-p prompt] [name...].
func read(r *interp.Runner, argv []string) (int, error) {
	raw := false
	var timeout time.Duration
	prompt := ""
	args := argv[1:]
	for len(args) > 0 && strings.HasPrefix(args[0], "-") {
		switch {
		case args[0] == "-r":
			raw = true
			args = args[1:]
		case args[0] == "-t" && len(args) > 1:
			secs, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				r.Errorf("read", "%s: invalid timeout specification", args[1])
				return 2, nil
			}
			timeout = time.Duration(secs * float64(time.Second))
			args = args[2:]
		case args[0] == "-p" && len(args) > 1:
			prompt = args[1]
			args = args[2:]
		case args[0] == "--":
			args = args[1:]
			goto names
		default:
			r.Errorf("read", "%s: invalid option", args[0])
			return 2, nil
		}
	}
names:
	if prompt != "" {
		fmt.Fprint(r.Stderr(), prompt)
	}

	if timeout > 0 {
		// Backed by select(2) on the underlying descriptor.
		if !waitReadable(r.Stdin(), timeout) {
			return 142, nil // 128+SIGALRM, the timeout convention
		}
	}

	line, err := readLine(r.Stdin())
	if err != nil && line == "" {
		return 1, nil // EOF
	}
	if !raw {
		line = strings.ReplaceAll(line, "\\\n", "")
		line = decodeReadEscapes(line)
	}

	if len(args) == 0 {
		args = []string{"REPLY"}
	}
	fields := splitReadFields(line, r.St.Get("IFS"), len(args))
	code := 0
	for i, name := range args {
		v := ""
		if i < len(fields) {
			v = fields[i]
		}
		if err := r.St.Set(name, v); err != nil {
			r.Errorf("read", "%s", err)
			code = 1
		}
	}
	return code, nil
}

func waitReadable(f *os.File, timeout time.Duration) bool {
	fd := int(f.Fd())
	var readfds unix.FdSet
	readfds.Set(fd)
	tv := unix.NsecToTimeval(timeout.Nanoseconds())
	n, err := unix.Select(fd+1, &readfds, nil, nil, &tv)
	return err == nil && n > 0
}

func readLine(f *os.File) (string, error) {
	var out []byte
	buf := make([]byte, 1)
	for {
		n, err := f.Read(buf)
		if n == 0 || err != nil {
			return string(out), err
		}
		if buf[0] == '\n' {
			return string(out), nil
		}
		out = append(out, buf[0])
	}
}

func decodeReadEscapes(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// splitReadFields splits a read line on IFS, with the last name absorbing
// the remainder.
func splitReadFields(line, ifs string, n int) []string {
	if ifs == "" {
		ifs = " \t\n"
	}
	trim := strings.Trim(line, ifs)
	if n <= 1 {
		return []string{trim}
	}
	var fields []string
	cur := trim
	for i := 0; i < n-1; i++ {
		idx := strings.IndexAny(cur, ifs)
		if idx < 0 {
			break
		}
		fields = append(fields, cur[:idx])
		cur = strings.TrimLeft(cur[idx:], ifs)
	}
	fields = append(fields, cur)
	return fields
}

func local(r *interp.Runner, argv []string) (int, error) {
	if r.St.ScopeDepth() == 1 {
		r.Errorf("local", "can only be used in a function")
		return 1, nil
	}
	code := 0
	for _, arg := range argv[1:] {
		name, value, hasValue := strings.Cut(arg, "=")
		if !hasValue {
			value = ""
		}
		if err := r.St.SetLocal(name, value); err != nil {
			r.Errorf("local", "%s", err)
			code = 1
		}
	}
	return code, nil
}

func declare(r *interp.Runner, argv []string) (int, error) {
	attrs := state.Attr(0)
	args := argv[1:]
	local := r.St.ScopeDepth() > 1
	for len(args) > 0 && strings.HasPrefix(args[0], "-") && args[0] != "--" {
		for _, c := range args[0][1:] {
			switch c {
			case 'a':
				attrs |= state.AttrIndexedArray
			case 'A':
				attrs |= state.AttrAssocArray
			case 'i':
				attrs |= state.AttrInteger
			case 'l':
				attrs |= state.AttrLowercase
			case 'u':
				attrs |= state.AttrUppercase
			case 'r':
				attrs |= state.AttrReadonly
			case 'x':
				attrs |= state.AttrExported
			case 'n':
				attrs |= state.AttrNameref
			case 'g':
				local = false
			default:
				r.Errorf("declare", "-%c: invalid option", c)
				return 2, nil
			}
		}
		args = args[1:]
	}
	code := 0
	for _, arg := range args {
		name, value, hasValue := strings.Cut(arg, "=")
		if hasValue {
			var err error
			if local {
				err = r.St.SetLocal(name, value)
			} else {
				err = r.St.Set(name, value)
			}
			if err != nil {
				r.Errorf("declare", "%s", err)
				code = 1
				continue
			}
		}
		if attrs != 0 {
			r.St.MarkAttr(name, attrs)
		}
	}
	return code, nil
}

func source(r *interp.Runner, argv []string) (int, error) {
	if len(argv) < 2 {
		r.Errorf("source", "filename argument required")
		return 2, nil
	}
	path := argv[1]
	if !strings.ContainsRune(path, '/') {
		for _, dir := range filepath.SplitList(r.St.Get("PATH")) {
			candidate := filepath.Join(dir, path)
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	return r.Source(path, argv[2:])
}

// command runs its argument with function lookup suppressed.
func command(r *interp.Runner, argv []string) (int, error) {
	args := argv[1:]
	for len(args) > 0 && (args[0] == "-v" || args[0] == "-V" || args[0] == "-p") {
		if args[0] == "-v" || args[0] == "-V" {
			return typeBuiltin(r, append([]string{"type"}, args[1:]...))
		}
		args = args[1:]
	}
	if len(args) == 0 {
		return 0, nil
	}
	return r.RunCommandSuppressed(args)
}

func typeBuiltin(r *interp.Runner, argv []string) (int, error) {
	code := 0
	for _, name := range argv[1:] {
		switch {
		case interp.IsSpecialBuiltin(name):
			fmt.Fprintf(r.Stdout(), "%s is a shell builtin\n", name)
		case func() bool { _, ok := r.St.Functions[name]; return ok }():
			fmt.Fprintf(r.Stdout(), "%s is a function\n", name)
		case func() bool { _, ok := r.Builtin(name); return ok }():
			fmt.Fprintf(r.Stdout(), "%s is a shell builtin\n", name)
		default:
			if path, found := lookPathEnv(r, name); found {
				fmt.Fprintf(r.Stdout(), "%s is %s\n", name, path)
			} else {
				r.Errorf("type", "%s: not found", name)
				code = 1
			}
		}
	}
	return code, nil
}

func lookPathEnv(r *interp.Runner, name string) (string, bool) {
	if strings.ContainsRune(name, '/') {
		if _, err := os.Stat(name); err == nil {
			return name, true
		}
		return "", false
	}
	for _, dir := range filepath.SplitList(r.St.Get("PATH")) {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() && info.Mode()&0o111 != 0 {
			return p, true
		}
	}
	return "", false
}

func wait(r *interp.Runner, argv []string) (int, error) {
	if len(argv) == 1 {
		code := 0
		for _, j := range r.Launcher.Jobs.All() {
			code = j.Wait()
		}
		return code, nil
	}
	pid, err := strconv.Atoi(strings.TrimPrefix(argv[1], "%"))
	if err != nil {
		r.Errorf("wait", "%s: not a pid or valid job spec", argv[1])
		return 2, nil
	}
	if j := r.Launcher.Jobs.ByPid(pid); j != nil {
		return j.Wait(), nil
	}
	return 127, nil
}

func jobs(r *interp.Runner, argv []string) (int, error) {
	for _, j := range r.Launcher.Jobs.All() {
		fmt.Fprintf(r.Stdout(), "[%d]  %-8s  %s\n", j.ID, j.Status, j.Command)
	}
	return 0, nil
}

func alias(r *interp.Runner, argv []string) (int, error) {
	if len(argv) == 1 {
		for name, val := range r.St.Aliases {
			fmt.Fprintf(r.Stdout(), "alias %s=%q\n", name, val)
		}
		return 0, nil
	}
	code := 0
	for _, arg := range argv[1:] {
		name, value, hasValue := strings.Cut(arg, "=")
		if hasValue {
			r.St.Aliases[name] = value
		} else if val, ok := r.St.Aliases[name]; ok {
			fmt.Fprintf(r.Stdout(), "alias %s=%q\n", name, val)
		} else {
			r.Errorf("alias", "%s: not found", name)
			code = 1
		}
	}
	return code, nil
}

func unalias(r *interp.Runner, argv []string) (int, error) {
	code := 0
	for _, arg := range argv[1:] {
		if arg == "-a" {
			r.St.Aliases = map[string]string{}
			continue
		}
		if _, ok := r.St.Aliases[arg]; !ok {
			r.Errorf("unalias", "%s: not found", arg)
			code = 1
			continue
		}
		delete(r.St.Aliases, arg)
	}
	return code, nil
}

func shopt(r *interp.Runner, argv []string) (int, error) {
	args := argv[1:]
	enable := true
	switch {
	case len(args) > 0 && args[0] == "-s":
		args = args[1:]
	case len(args) > 0 && args[0] == "-u":
		enable = false
		args = args[1:]
	}
	if len(args) == 0 {
		for _, name := range r.St.Options.Names() {
			stateWord := "off"
			if r.St.Options.Get(name) {
				stateWord = "on"
			}
			fmt.Fprintf(r.Stdout(), "%-20s %s\n", name, stateWord)
		}
		return 0, nil
	}
	code := 0
	for _, name := range args {
		if !r.St.Options.Set(name, enable) {
			r.Errorf("shopt", "%s: invalid shell option name", name)
			code = 1
		}
	}
	return code, nil
}

// test implements the [ and test builtins over the same word logic the
// [[ ]] evaluator uses, minus pattern matching (POSIX test compares
// strings literally).
func test(r *interp.Runner, argv []string) (int, error) {
	args := argv[1:]
	if argv[0] == "[" {
		if len(args) == 0 || args[len(args)-1] != "]" {
			r.Errorf("[", "missing `]'")
			return 2, nil
		}
		args = args[:len(args)-1]
	}
	ok, err := evalTestArgs(r, args)
	if err != nil {
		r.Errorf("test", "%s", err)
		return 2, nil
	}
	if ok {
		return 0, nil
	}
	return 1, nil
}

func evalTestArgs(r *interp.Runner, args []string) (bool, error) {
	switch len(args) {
	case 0:
		return false, nil
	case 1:
		return args[0] != "", nil
	case 2:
		if args[0] == "!" {
			ok, err := evalTestArgs(r, args[1:])
			return !ok, err
		}
		return r.EvalUnaryTest(args[0], args[1])
	case 3:
		if args[0] == "!" {
			ok, err := evalTestArgs(r, args[1:])
			return !ok, err
		}
		return r.EvalBinaryTest(args[0], args[1], args[2])
	default:
		if args[0] == "!" {
			ok, err := evalTestArgs(r, args[1:])
			return !ok, err
		}
		// left-associative -a / -o chains
		for i := 1; i < len(args)-1; i++ {
			if args[i] == "-a" || args[i] == "-o" {
				left, err := evalTestArgs(r, args[:i])
				if err != nil {
					return false, err
				}
				right, err := evalTestArgs(r, args[i+1:])
				if err != nil {
					return false, err
				}
				if args[i] == "-a" {
					return left && right, nil
				}
				return left || right, nil
			}
		}
		return false, fmt.Errorf("too many arguments")
	}
}
