package expander

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Pathname expansion. During earlier stages, glob-special characters from
// quoted text are backslash-escaped so that only genuinely unquoted pattern
// characters trigger globbing; the escapes double as quote removal when a
// field turns out to be literal.

const globSpecials = `*?[]\()|!@+`

// escapeFrag protects a fragment's text for the pattern stage: quoted text
// has every glob-special escaped, unquoted text only literal backslashes.
func escapeFrag(f fragment) string {
	var b strings.Builder
	for i := 0; i < len(f.text); i++ {
		c := f.text[i]
		if c == '\\' || (f.quoted && strings.IndexByte(globSpecials, c) >= 0) {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	return b.String()
}

// unescapeField removes the protection escapes; this is quote removal for
// the glob stage.
func unescapeField(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// hasGlobChars reports whether s contains an unescaped pattern character.
func hasGlobChars(s string, extglob bool) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '*', '?', '[':
			return true
		default:
			if extglob && i+1 < len(s) && s[i+1] == '(' &&
				strings.IndexByte("?*+@!", s[i]) >= 0 {
				return true
			}
		}
	}
	return false
}

// globFields applies pathname expansion to each field.
func (e *Expander) globFields(fields []string) ([]string, error) {
	noglob := e.st.Options.Get("noglob")
	nullglob := e.st.Options.Get("nullglob")
	extglob := e.extglob()

	var out []string
	for _, f := range fields {
		if noglob || !hasGlobChars(f, extglob) {
			out = append(out, unescapeField(f))
			continue
		}
		matches := e.glob(f, extglob)
		switch {
		case len(matches) > 0:
			sort.Strings(matches)
			out = append(out, matches...)
		case nullglob:
			// no match expands to nothing
		default:
			out = append(out, unescapeField(f))
		}
	}
	return out, nil
}

// glob matches one pattern against the filesystem, segment by segment.
func (e *Expander) glob(pat string, extglob bool) []string {
	dotglob := e.st.Options.Get("dotglob")

	var roots []string
	if strings.HasPrefix(pat, "/") {
		roots = []string{"/"}
		pat = strings.TrimLeft(pat, "/")
	} else {
		roots = []string{"."}
	}
	segments := strings.Split(pat, "/")

	for si, seg := range segments {
		last := si == len(segments)-1
		var next []string
		for _, root := range roots {
			if seg == "" {
				continue
			}
			if !hasGlobChars(seg, extglob) {
				p := joinGlob(root, unescapeField(seg))
				if _, err := os.Lstat(p); err == nil {
					next = append(next, p)
				}
				continue
			}
			entries, err := os.ReadDir(resolveDir(root))
			if err != nil {
				continue
			}
			hidden := strings.HasPrefix(unescapeField(seg), ".")
			for _, ent := range entries {
				name := ent.Name()
				if strings.HasPrefix(name, ".") && !hidden && !dotglob {
					continue
				}
				if !last && !ent.IsDir() {
					continue
				}
				if ok, err := matchPattern(seg, name, extglob); err == nil && ok {
					next = append(next, joinGlob(root, name))
				}
			}
		}
		roots = next
		if len(roots) == 0 {
			return nil
		}
	}
	return roots
}

func joinGlob(root, name string) string {
	if root == "." {
		return name
	}
	if root == "/" {
		return "/" + name
	}
	return root + "/" + name
}

func resolveDir(root string) string {
	if root == "." || root == "/" {
		return root
	}
	return filepath.Clean(root)
}
