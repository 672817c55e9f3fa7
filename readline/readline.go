// Package readline implements the interactive line editor: emacs-style
// editing, history with a file backing, and tab completion for command
// names and paths.
package readline

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/term"
)

// key is a decoded keypress. Printable runes map to themselves; editing
// actions get negative values so they can never collide with text.
type key rune

const (
	keyNone key = -iota - 1
	keySubmit
	keyInterrupt
	keyEOF
	keyBackspace
	keyDelete
	keyLeft
	keyRight
	keyHome
	keyEnd
	keyUp
	keyDown
	keyKillToEnd
	keyKillToStart
	keyKillWord
	keyClearScreen
	keyComplete
)

// ctrlKeys maps control bytes onto editing actions.
var ctrlKeys = map[byte]key{
	0x01: keyHome,        // ^A
	0x03: keyInterrupt,   // ^C
	0x04: keyEOF,         // ^D (EOF / delete-char handled by caller)
	0x05: keyEnd,         // ^E
	0x09: keyComplete,    // Tab
	0x0b: keyKillToEnd,   // ^K
	0x0c: keyClearScreen, // ^L
	0x0d: keySubmit,      // Enter
	0x15: keyKillToStart, // ^U
	0x17: keyKillWord,    // ^W
	0x7f: keyBackspace,
}

// csiKeys maps the final byte of an ESC [ sequence.
var csiKeys = map[byte]key{
	'A': keyUp,
	'B': keyDown,
	'C': keyRight,
	'D': keyLeft,
	'H': keyHome,
	'F': keyEnd,
}

// lineBuffer holds the line under edit and the cursor.
type lineBuffer struct {
	runes []rune
	pos   int
}

func (b *lineBuffer) String() string { return string(b.runes) }

func (b *lineBuffer) set(s string) {
	b.runes = []rune(s)
	b.pos = len(b.runes)
}

func (b *lineBuffer) insert(r rune) {
	b.runes = append(b.runes, 0)
	copy(b.runes[b.pos+1:], b.runes[b.pos:])
	b.runes[b.pos] = r
	b.pos++
}

func (b *lineBuffer) insertString(s string) {
	for _, r := range s {
		b.insert(r)
	}
}

func (b *lineBuffer) backspace() {
	if b.pos == 0 {
		return
	}
	b.runes = append(b.runes[:b.pos-1], b.runes[b.pos:]...)
	b.pos--
}

func (b *lineBuffer) deleteChar() {
	if b.pos >= len(b.runes) {
		return
	}
	b.runes = append(b.runes[:b.pos], b.runes[b.pos+1:]...)
}

func (b *lineBuffer) move(delta int) {
	b.pos += delta
	if b.pos < 0 {
		b.pos = 0
	}
	if b.pos > len(b.runes) {
		b.pos = len(b.runes)
	}
}

func (b *lineBuffer) killToEnd()   { b.runes = b.runes[:b.pos] }
func (b *lineBuffer) killToStart() {
	b.runes = append([]rune(nil), b.runes[b.pos:]...)
	b.pos = 0
}

// killWord removes the word left of the cursor plus the spaces after it.
func (b *lineBuffer) killWord() {
	start := b.pos
	for start > 0 && b.runes[start-1] == ' ' {
		start--
	}
	for start > 0 && b.runes[start-1] != ' ' {
		start--
	}
	b.runes = append(b.runes[:start], b.runes[b.pos:]...)
	b.pos = start
}

// currentWord returns the word being typed at the cursor and the rune index
// where it starts.
func (b *lineBuffer) currentWord() (string, int) {
	start := b.pos
	for start > 0 && b.runes[start-1] != ' ' {
		start--
	}
	return string(b.runes[start:b.pos]), start
}

// replaceWord swaps the word starting at wordStart (ending at the cursor)
// for text and leaves the cursor after it.
func (b *lineBuffer) replaceWord(wordStart int, text string) {
	tail := append([]rune(nil), b.runes[b.pos:]...)
	b.runes = append(b.runes[:wordStart], []rune(text)...)
	b.pos = len(b.runes)
	b.runes = append(b.runes, tail...)
}

// history is the command ring plus the stash for the line abandoned while
// browsing.
type history struct {
	entries []string
	cursor  int
	stash   string
}

func (h *history) add(line string) {
	if line == "" {
		return
	}
	if n := len(h.entries); n > 0 && h.entries[n-1] == line {
		return
	}
	h.entries = append(h.entries, line)
}

func (h *history) startBrowse(current string) {
	h.cursor = len(h.entries)
	h.stash = current
}

// up and down return the line to display and whether anything changed.
func (h *history) up() (string, bool) {
	if h.cursor == 0 {
		return "", false
	}
	h.cursor--
	return h.entries[h.cursor], true
}

func (h *history) down() (string, bool) {
	if h.cursor >= len(h.entries) {
		return "", false
	}
	h.cursor++
	if h.cursor == len(h.entries) {
		return h.stash, true
	}
	return h.entries[h.cursor], true
}

// Completer produces candidates for the word under the cursor.
type Completer func(line string, pos int) []string

// Readline reads and edits input lines on a raw-mode terminal.
type Readline struct {
	prompt    string
	hist      history
	completer Completer
	cwd       func() string

	// commands seeds completion at the start of a line.
	commands []string
}

// New creates an editor with the given prompt.
func New(prompt string) *Readline {
	return &Readline{
		prompt: prompt,
		commands: []string{
			"alias", "cd", "echo", "exec", "exit", "export", "false",
			"jobs", "local", "printf", "pwd", "read", "readonly", "return",
			"set", "shift", "shopt", "source", "test", "trap", "true",
			"type", "unalias", "unset", "wait",
			"if", "then", "else", "elif", "fi", "for", "while", "until",
			"do", "done", "case", "esac", "select", "function",
		},
	}
}

// SetPrompt changes the prompt shown before the next ReadLine.
func (r *Readline) SetPrompt(prompt string) { r.prompt = prompt }

// SetCompleter overrides the default command/path completion.
func (r *Readline) SetCompleter(c Completer) { r.completer = c }

// SetCwdFunc supplies the directory relative paths complete against.
func (r *Readline) SetCwdFunc(f func() string) { r.cwd = f }

// AddHistory records a line in the history ring.
func (r *Readline) AddHistory(line string) { r.hist.add(line) }

// LoadHistory reads the history file: one command per line, leading
// # lines are timestamp comments.
func (r *Readline) LoadHistory(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		r.hist.entries = append(r.hist.entries, line)
	}
}

// SaveHistory writes the ring back with a timestamp comment per entry.
func (r *Readline) SaveHistory(path string) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	defer w.Flush()
	now := time.Now().Unix()
	for _, line := range r.hist.entries {
		fmt.Fprintf(w, "#%d\n%s\n", now, line)
	}
}

// ReadLine reads one edited line. It returns an error on EOF (^D on an
// empty line) so the caller can exit the loop.
func (r *Readline) ReadLine() (string, error) {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		// Not a terminal: degrade to plain buffered reading.
		return r.readPlain()
	}
	defer term.Restore(fd, oldState)

	var buf lineBuffer
	r.hist.startBrowse("")
	fmt.Print(r.prompt)

	for {
		k, err := r.readKey()
		if err != nil {
			fmt.Print("\r\n")
			return "", err
		}
		switch k {
		case keySubmit:
			fmt.Print("\r\n")
			line := buf.String()
			r.hist.add(line)
			return line, nil

		case keyInterrupt:
			fmt.Print("^C\r\n")
			return "", nil

		case keyEOF:
			if len(buf.runes) == 0 {
				fmt.Print("\r\n")
				return "", fmt.Errorf("EOF")
			}
			buf.deleteChar()

		case keyBackspace:
			buf.backspace()
		case keyDelete:
			buf.deleteChar()
		case keyLeft:
			buf.move(-1)
		case keyRight:
			buf.move(1)
		case keyHome:
			buf.pos = 0
		case keyEnd:
			buf.pos = len(buf.runes)
		case keyKillToEnd:
			buf.killToEnd()
		case keyKillToStart:
			buf.killToStart()
		case keyKillWord:
			buf.killWord()

		case keyClearScreen:
			fmt.Print("\x1b[2J\x1b[H")

		case keyUp:
			if line, ok := r.hist.up(); ok {
				if r.hist.cursor == len(r.hist.entries)-1 {
					r.hist.stash = buf.String()
				}
				buf.set(line)
			}
		case keyDown:
			if line, ok := r.hist.down(); ok {
				buf.set(line)
			}

		case keyComplete:
			r.completeAt(&buf)

		case keyNone:
			// swallowed escape sequence

		default:
			if k >= 0x20 {
				buf.insert(rune(k))
			}
		}
		r.render(&buf)
	}
}

// readPlain is the non-terminal fallback (piped stdin).
func (r *Readline) readPlain() (string, error) {
	sc := bufio.NewReader(os.Stdin)
	line, err := sc.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\n"), nil
}

// readKey reads and decodes one keypress, folding escape sequences into
// single key values.
func (r *Readline) readKey() (key, error) {
	var b [1]byte
	if _, err := os.Stdin.Read(b[:]); err != nil {
		return keyNone, err
	}
	if k, ok := ctrlKeys[b[0]]; ok {
		return k, nil
	}
	if b[0] != 0x1b {
		return key(b[0]), nil
	}

	// ESC sequence: expect '[' then the selector.
	var seq [2]byte
	if n, _ := os.Stdin.Read(seq[:]); n < 2 || seq[0] != '[' {
		return keyNone, nil
	}
	if k, ok := csiKeys[seq[1]]; ok {
		return k, nil
	}
	// Numbered selectors end with ~: 1~/4~ home/end, 3~ delete.
	if seq[1] >= '0' && seq[1] <= '9' {
		os.Stdin.Read(b[:]) // trailing ~
		switch seq[1] {
		case '1':
			return keyHome, nil
		case '3':
			return keyDelete, nil
		case '4':
			return keyEnd, nil
		}
	}
	return keyNone, nil
}

// render repaints the prompt and buffer and positions the cursor.
func (r *Readline) render(buf *lineBuffer) {
	fmt.Print("\r\x1b[K", r.prompt, buf.String())
	if back := len(buf.runes) - buf.pos; back > 0 {
		fmt.Printf("\x1b[%dD", back)
	}
}

// completeAt applies tab completion to the word at the cursor: a unique
// candidate is inserted, otherwise the longest common prefix is filled in
// and the candidates are listed.
func (r *Readline) completeAt(buf *lineBuffer) {
	word, wordStart := buf.currentWord()

	var candidates []string
	if r.completer != nil {
		candidates = r.completer(buf.String(), buf.pos)
	} else if wordStart == 0 {
		candidates = append(r.matchCommands(word), r.matchPaths(word)...)
	} else {
		candidates = r.matchPaths(word)
	}
	sort.Strings(candidates)

	switch len(candidates) {
	case 0:
		return
	case 1:
		text := candidates[0]
		if !strings.HasSuffix(text, "/") {
			text += " "
		}
		buf.replaceWord(wordStart, text)
	default:
		if common := commonPrefix(candidates); len(common) > len(word) {
			buf.replaceWord(wordStart, common)
		}
		fmt.Print("\r\n" + strings.Join(candidates, "  ") + "\r\n")
		fmt.Print(r.prompt)
	}
}

func (r *Readline) matchCommands(prefix string) []string {
	var out []string
	for _, name := range r.commands {
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	return out
}

// matchPaths completes file and directory names; directories get a trailing
// slash so completion can continue into them.
func (r *Readline) matchPaths(word string) []string {
	dir, base := splitPathWord(word, r.workingDir())
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	keep := word[:len(word)-len(base)]
	var out []string
	for _, ent := range entries {
		name := ent.Name()
		if !strings.HasPrefix(name, base) {
			continue
		}
		if base == "" && strings.HasPrefix(name, ".") {
			continue
		}
		c := keep + name
		if ent.IsDir() {
			c += "/"
		}
		out = append(out, c)
	}
	return out
}

func (r *Readline) workingDir() string {
	if r.cwd != nil {
		return r.cwd()
	}
	return "."
}

// splitPathWord resolves the directory to scan and the basename prefix to
// match for a partially-typed path.
func splitPathWord(word, cwd string) (dir, base string) {
	slash := strings.LastIndexByte(word, '/')
	if slash < 0 {
		return cwd, word
	}
	dir = word[:slash+1]
	base = word[slash+1:]
	if strings.HasPrefix(dir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, dir[2:]) + "/"
		}
	}
	if !strings.HasPrefix(dir, "/") && !strings.HasPrefix(dir, "~") {
		dir = filepath.Join(cwd, dir)
	}
	return dir, base
}

// commonPrefix returns the longest prefix shared by all candidates.
func commonPrefix(items []string) string {
	prefix := items[0]
	for _, item := range items[1:] {
		for !strings.HasPrefix(item, prefix) {
			prefix = prefix[:len(prefix)-1]
			if prefix == "" {
				return ""
			}
		}
	}
	return prefix
}
