package expander

import (
	"strings"
)

// ExpandHeredoc expands a here-document body: only $-expansions, backquote
// substitution and the \$ \` \\ escapes apply. Quote characters are ordinary
// text inside a heredoc.
func (e *Expander) ExpandHeredoc(body string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(body); {
		c := body[i]
		switch c {
		case '\\':
			if i+1 < len(body) {
				switch body[i+1] {
				case '$', '`', '\\':
					b.WriteByte(body[i+1])
					i += 2
					continue
				case '\n':
					i += 2 // line continuation
					continue
				}
			}
			b.WriteByte(c)
			i++
		case '$':
			src, n, ok := scanDollar(body, i)
			if !ok {
				b.WriteByte(c)
				i++
				continue
			}
			val, err := e.ExpandWordNoSplit(wordForExpansionSource(src))
			if err != nil {
				return "", err
			}
			b.WriteString(val)
			i += n
		case '`':
			src, n, ok := scanBackquoteText(body, i)
			if !ok {
				b.WriteByte(c)
				i++
				continue
			}
			val, err := e.ExpandWordNoSplit(wordForExpansionSource(src))
			if err != nil {
				return "", err
			}
			b.WriteString(val)
			i += n
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), nil
}

func scanBackquoteText(text string, pos int) (string, int, bool) {
	for i := pos + 1; i < len(text); i++ {
		switch text[i] {
		case '\\':
			i++
		case '`':
			return text[pos : i+1], i + 1 - pos, true
		}
	}
	return "", 0, false
}
