package lexer

import "strings"

// Heredoc is a here-document collected during tokenisation. The parser
// attaches entries to Redirect nodes in encounter order.
type Heredoc struct {
	Delimiter string
	Quoted    bool // delimiter was quoted: suppress expansion of the body
	StripTabs bool // <<- form: leading tabs removed from body and delimiter
	Content   string
	complete  bool
}

// heredocCollector tracks pending here-documents between the redirection
// operator and the newline after which their bodies begin.
type heredocCollector struct {
	pending []*Heredoc
	all     []*Heredoc
}

func (hc *heredocCollector) register(delim string, quoted, stripTabs bool) *Heredoc {
	h := &Heredoc{Delimiter: delim, Quoted: quoted, StripTabs: stripTabs}
	hc.pending = append(hc.pending, h)
	hc.all = append(hc.all, h)
	return h
}

// collect consumes heredoc bodies from input starting at pos (just past a
// newline). It returns the new position and whether every pending body was
// terminated by its delimiter.
func (hc *heredocCollector) collect(input string, pos int) (int, bool) {
	for _, h := range hc.pending {
		var body strings.Builder
		closed := false
		for pos <= len(input) {
			nl := strings.IndexByte(input[pos:], '\n')
			var line string
			if nl < 0 {
				line = input[pos:]
				pos = len(input) + 1
			} else {
				line = input[pos : pos+nl]
				pos += nl + 1
			}
			check := line
			if h.StripTabs {
				check = strings.TrimLeft(line, "\t")
			}
			if check == h.Delimiter {
				closed = true
				break
			}
			if h.StripTabs {
				line = strings.TrimLeft(line, "\t")
			}
			if pos > len(input) && line == "" {
				break
			}
			body.WriteString(line)
			body.WriteString("\n")
		}
		h.Content = body.String()
		h.complete = closed
		if !closed {
			hc.pending = nil
			return pos, false
		}
	}
	hc.pending = nil
	if pos > len(input) {
		pos = len(input)
	}
	return pos, true
}
