package expander

import "strings"

// defaultIFS applies when IFS is unset.
const defaultIFS = " \t\n"

// splitPieces applies IFS word splitting. Quoted fragments never split;
// unquoted fragments split on IFS characters. Whitespace IFS characters trim
// and collapse; non-whitespace IFS characters delimit one field each,
// preserving empty fields. Boundaries between pieces (from "$@") are always
// hard field breaks.
func (e *Expander) splitPieces(pieces [][]fragment) []string {
	ifs := defaultIFS
	if v, ok := e.st.Lookup("IFS"); ok {
		ifs = v.Scalar()
	}

	var fields []string
	for _, piece := range pieces {
		fields = append(fields, e.splitPiece(piece, ifs)...)
	}
	return fields
}

func (e *Expander) splitPiece(piece []fragment, ifs string) []string {
	if len(piece) == 0 {
		return nil
	}

	// IFS="" disables splitting entirely.
	if ifs == "" {
		var b strings.Builder
		quoted := false
		for _, f := range piece {
			b.WriteString(f.text)
			if f.quoted {
				quoted = true
			}
		}
		if b.Len() == 0 && !quoted {
			return nil
		}
		return []string{b.String()}
	}

	isIFS := func(c byte) bool { return strings.IndexByte(ifs, c) >= 0 }
	isIFSWhite := func(c byte) bool {
		return isIFS(c) && (c == ' ' || c == '\t' || c == '\n')
	}

	var fields []string
	var cur strings.Builder
	// started marks that the current field exists even if empty (from quoted
	// text).
	started := false

	flush := func() {
		if started || cur.Len() > 0 {
			fields = append(fields, cur.String())
		}
		cur.Reset()
		started = false
	}

	for _, f := range piece {
		if f.quoted {
			cur.WriteString(f.text)
			started = true
			continue
		}
		for i := 0; i < len(f.text); i++ {
			c := f.text[i]
			switch {
			case isIFSWhite(c):
				flush()
				// Collapse the whitespace run; a run may also absorb one
				// adjacent non-whitespace separator and its surrounding
				// whitespace ("a : b" is two fields).
				for i+1 < len(f.text) && isIFSWhite(f.text[i+1]) {
					i++
				}
				if i+1 < len(f.text) && isIFS(f.text[i+1]) && !isIFSWhite(f.text[i+1]) {
					i++
					for i+1 < len(f.text) && isIFSWhite(f.text[i+1]) {
						i++
					}
				}
			case isIFS(c):
				// non-whitespace separator: ends the current field even if
				// empty
				if !started && cur.Len() == 0 {
					fields = append(fields, "")
				} else {
					flush()
				}
				started = false
			default:
				cur.WriteByte(c)
				started = true
			}
		}
	}
	flush()
	return fields
}
