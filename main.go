package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/term"

	"psh/builtins"
	"psh/interp"
	"psh/lexer"
	"psh/parser"
	"psh/proc"
	"psh/readline"
	"psh/state"
	"psh/trace"
)

type cliConfig struct {
	command     string // -c
	scriptPath  string
	scriptArgs  []string
	interactive bool
	login       bool
	norc        bool
	rcfile      string
	validate    bool
	parserName  string
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg, setFlags, err := parseArgs(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "psh: %s\n", err)
		return 2
	}

	if cfg.parserName != "" && cfg.parserName != "recursive-descent" {
		fmt.Fprintf(os.Stderr, "psh: --parser: unknown parser %q\n", cfg.parserName)
		return 2
	}

	st := state.New()
	interactive := cfg.interactive ||
		(cfg.command == "" && cfg.scriptPath == "" && term.IsTerminal(int(os.Stdin.Fd())))

	var sigs *proc.Signals
	if interactive {
		sigs = proc.InstallInteractive()
	} else {
		sigs = proc.InstallScript()
	}
	defer sigs.Stop()

	launcher := proc.NewLauncher(interactive)
	r := interp.New(st, launcher)
	builtins.Install(r)

	// Apply -e/-u/... and -o flags from the command line.
	for _, f := range setFlags {
		applySetFlag(st, f)
	}

	st.ScriptName = os.Args[0]
	if cfg.scriptPath != "" {
		st.ScriptName = cfg.scriptPath
	}
	st.Positional = cfg.scriptArgs

	exitCode := 0
	switch {
	case cfg.validate:
		exitCode = validateOnly(cfg)
	case cfg.command != "":
		exitCode = runSource(r, cfg.command, "-c")
	case cfg.scriptPath != "":
		exitCode = runScript(r, cfg.scriptPath)
	default:
		if interactive {
			if cfg.login {
				loadProfile(r)
			}
			loadRC(r, cfg)
			exitCode = repl(r, st, sigs)
		} else {
			exitCode = runStdin(r)
		}
	}

	r.RunExitTrap()
	return exitCode
}

// parseArgs handles the argv surface; anything after the script path belongs
// to the script.
func parseArgs(args []string) (*cliConfig, []string, error) {
	cfg := &cliConfig{}
	var setFlags []string
	i := 1
	for ; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-c":
			if i+1 >= len(args) {
				return nil, nil, fmt.Errorf("-c: option requires an argument")
			}
			cfg.command = args[i+1]
			i++
		case arg == "-i":
			cfg.interactive = true
		case arg == "-l" || arg == "--login":
			cfg.login = true
		case arg == "--norc":
			cfg.norc = true
		case arg == "--rcfile":
			if i+1 >= len(args) {
				return nil, nil, fmt.Errorf("--rcfile: option requires an argument")
			}
			cfg.rcfile = args[i+1]
			i++
		case arg == "--validate":
			cfg.validate = true
		case arg == "--parser":
			if i+1 >= len(args) {
				return nil, nil, fmt.Errorf("--parser: option requires an argument")
			}
			cfg.parserName = args[i+1]
			i++
		case arg == "--debug-ast":
			trace.Enable(trace.AST)
		case arg == "--debug-tokens":
			trace.Enable(trace.Tokens)
		case arg == "--debug-expansion":
			trace.Enable(trace.Expansion)
		case arg == "--debug-exec":
			trace.Enable(trace.Exec)
		case arg == "-o" || arg == "+o":
			if i+1 >= len(args) {
				return nil, nil, fmt.Errorf("%s: option requires an argument", arg)
			}
			setFlags = append(setFlags, arg+" "+args[i+1])
			i++
		case len(arg) >= 2 && (arg[0] == '-' || arg[0] == '+') && !strings.HasPrefix(arg, "--"):
			setFlags = append(setFlags, arg)
		default:
			cfg.scriptPath = arg
			cfg.scriptArgs = args[i+1:]
			return cfg, setFlags, nil
		}
	}
	// With -c, remaining operands bind to $0, $1, ...
	if cfg.command != "" && i < len(args) {
		cfg.scriptArgs = args[i:]
	}
	return cfg, setFlags, nil
}

func applySetFlag(st *state.Shell, flag string) {
	if strings.HasPrefix(flag, "-o ") || strings.HasPrefix(flag, "+o ") {
		st.Options.Set(flag[3:], flag[0] == '-')
		return
	}
	enable := flag[0] == '-'
	for j := 1; j < len(flag); j++ {
		st.Options.SetShort(flag[j], enable)
	}
}

func validateOnly(cfg *cliConfig) int {
	src := cfg.command
	if cfg.scriptPath != "" {
		data, err := os.ReadFile(cfg.scriptPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "psh: %s: %s\n", cfg.scriptPath, err)
			return 1
		}
		src = string(data)
	}
	if _, err := parser.Parse(src, parser.Collect); err != nil {
		if pe, ok := err.(*parser.ParseError); ok {
			fmt.Fprintln(os.Stderr, "psh: "+pe.Display())
		} else {
			fmt.Fprintf(os.Stderr, "psh: %s\n", err)
		}
		return 2
	}
	return 0
}

func runScript(r *interp.Runner, path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "psh: %s: %s\n", path, err)
		return 127
	}
	return runSource(r, string(data), path)
}

func runStdin(r *interp.Runner) int {
	data, err := os.ReadFile("/dev/stdin")
	if err != nil {
		return 0
	}
	return runSource(r, string(data), "psh")
}

func runSource(r *interp.Runner, src, name string) int {
	code, err := r.RunSource(src, name)
	if err != nil {
		if exit, ok := err.(*interp.ExitError); ok {
			return exit.Code
		}
		fmt.Fprintf(os.Stderr, "psh: %s\n", err)
		if code == 0 {
			code = 1
		}
	}
	return code
}

// loadProfile sources ~/.profile for login shells.
func loadProfile(r *interp.Runner) {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	path := filepath.Join(home, ".profile")
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	_ = runSource(r, string(data), path)
}

// loadRC sources the user's RC file for interactive sessions, skipping
// world-writable or foreign-owned files with a warning.
func loadRC(r *interp.Runner, cfg *cliConfig) {
	if cfg.norc {
		return
	}
	path := cfg.rcfile
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}
		path = filepath.Join(home, ".pshrc")
	}
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if !rcFileTrusted(info) {
		fmt.Fprintf(os.Stderr, "psh: %s: not sourced (insecure ownership or permissions)\n", path)
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	_ = runSource(r, string(data), path)
}

func rcFileTrusted(info os.FileInfo) bool {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return true
	}
	if info.Mode().Perm()&0o002 != 0 {
		return false // world-writable
	}
	return stat.Uid == uint32(os.Getuid()) || stat.Uid == 0
}

// repl is the interactive loop: read a line, extend it while the lexer
// reports incomplete input, parse, execute, show job notices.
func repl(r *interp.Runner, st *state.Shell, sigs *proc.Signals) int {
	rl := readline.New(prompt(st, false))

	updateWindowSize(st)
	sigs.WinchFunc = func() { updateWindowSize(st) }

	historyPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyPath = filepath.Join(home, ".psh_history")
		rl.LoadHistory(historyPath)
	}
	defer func() {
		if historyPath != "" {
			rl.SaveHistory(historyPath)
		}
	}()

	for {
		sigs.Drain()
		for _, line := range r.Launcher.Jobs.Reap() {
			fmt.Fprintln(os.Stderr, line)
		}
		sigs.Interrupted = false

		rl.SetPrompt(prompt(st, false))
		input, err := rl.ReadLine()
		if err != nil {
			fmt.Println("exit")
			return st.LastExitCode
		}
		if strings.TrimSpace(input) == "" {
			continue
		}

		// Multi-line input: keep reading while the lexer wants more.
		src := input
		for {
			l := lexer.New(src, lexer.Interactive)
			_, lexErr := l.Tokenize()
			if lexErr == nil || !lexer.IsIncomplete(lexErr) {
				break
			}
			rl.SetPrompt(prompt(st, true))
			more, err := rl.ReadLine()
			if err != nil {
				break
			}
			src += "\n" + more
		}

		st.LastExitCode = runSource(r, src, "psh")
	}
}

func updateWindowSize(st *state.Shell) {
	w, h, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return
	}
	_ = st.Set("COLUMNS", fmt.Sprintf("%d", w))
	_ = st.Set("LINES", fmt.Sprintf("%d", h))
}

func prompt(st *state.Shell, continuation bool) string {
	if continuation {
		if ps2 := st.Get("PS2"); ps2 != "" {
			return ps2
		}
		return "> "
	}
	if ps1 := st.Get("PS1"); ps1 != "" {
		return ps1
	}
	return "psh$ "
}
