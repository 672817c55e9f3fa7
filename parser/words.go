package parser

import (
	"strings"

	"psh/ast"
	"psh/lexer"
	"psh/token"
)

// The word builder converts STRING/WORD tokens into Word AST nodes.
// Parameter expansions are decomposed into (name, operator, operand) here,
// at parse time, so nothing downstream re-parses strings.

func buildWord(tok token.Token) *ast.Word {
	switch tok.Type {
	case token.WORD, token.NUMBER:
		return &ast.Word{Parts: []ast.WordPart{
			&ast.LiteralPart{Text: tok.Literal},
		}}
	case token.PROC_SUB_IN, token.PROC_SUB_OUT:
		return &ast.Word{Parts: []ast.WordPart{
			&ast.ExpansionPart{Expansion: &ast.ProcessSubstitution{
				CommandText: tok.Literal,
				Output:      tok.Type == token.PROC_SUB_OUT,
			}},
		}}
	}
	w := &ast.Word{Quote: tok.Quote}
	for _, part := range tok.Parts {
		w.Parts = append(w.Parts, buildWordPart(part))
	}
	if len(w.Parts) == 0 {
		w.Parts = append(w.Parts, &ast.LiteralPart{Text: tok.Literal})
	}
	return w
}

func buildWordPart(part token.Part) ast.WordPart {
	if part.Kind == token.PartLiteral {
		return &ast.LiteralPart{
			Text:      part.Text,
			Quoted:    part.Quote != 0,
			QuoteChar: part.QuoteChar,
		}
	}
	return &ast.ExpansionPart{
		Expansion: buildExpansion(part.Text),
		Quoted:    part.Quote == '"',
	}
}

// buildExpansion parses the raw source of one $-construct (or backquoted
// substitution) into its AST node.
func buildExpansion(src string) ast.Expansion {
	switch {
	case strings.HasPrefix(src, "$((") && strings.HasSuffix(src, "))"):
		return &ast.ArithmeticExpansion{ExprText: src[3 : len(src)-2]}
	case strings.HasPrefix(src, "$(") && strings.HasSuffix(src, ")"):
		return &ast.CommandSubstitution{CommandText: src[2 : len(src)-1]}
	case strings.HasPrefix(src, "`") && strings.HasSuffix(src, "`"):
		body := src[1 : len(src)-1]
		body = strings.ReplaceAll(body, "\\`", "`")
		return &ast.CommandSubstitution{CommandText: body, Backquoted: true}
	case strings.HasPrefix(src, "${") && strings.HasSuffix(src, "}"):
		return buildParameterExpansion(src[2 : len(src)-1])
	case strings.HasPrefix(src, "$"):
		return &ast.VariableExpansion{Name: src[1:]}
	}
	return &ast.VariableExpansion{Name: src}
}

// paramOperators is checked longest-first so ## wins over #.
var paramOperators = []string{
	":-", ":=", ":+", ":?", "##", "%%", "//", "/#", "/%", "^^", ",,",
	"-", "=", "+", "?", "#", "%", "/", "^", ",", ":",
}

// buildParameterExpansion decomposes the body of ${...}.
func buildParameterExpansion(body string) ast.Expansion {
	if body == "" {
		return &ast.ParameterExpansion{Name: ""}
	}

	// ${#name} is length; ${#} alone is the positional count.
	if body[0] == '#' && len(body) > 1 {
		rest := body[1:]
		if isParamName(rest) {
			return &ast.ParameterExpansion{Name: rest, Operator: "#len"}
		}
	}

	// ${!prefix*} and ${!prefix@} list matching names; ${!name} is an
	// indirect reference.
	if body[0] == '!' && len(body) > 1 {
		rest := body[1:]
		if strings.HasSuffix(rest, "*") || strings.HasSuffix(rest, "@") {
			return &ast.ParameterExpansion{
				Name:     rest[:len(rest)-1],
				Operator: "!" + rest[len(rest)-1:],
			}
		}
		return &ast.ParameterExpansion{Name: rest, Operator: "!"}
	}

	name, rest := splitParamName(body)
	if rest == "" {
		return &ast.ParameterExpansion{Name: name}
	}

	for _, op := range paramOperators {
		if !strings.HasPrefix(rest, op) {
			continue
		}
		operand := rest[len(op):]
		pe := &ast.ParameterExpansion{Name: name, Operator: op}
		switch op {
		case "/", "//", "/#", "/%":
			pat, repl := splitReplacement(operand)
			pe.Operand = wordFromText(pat)
			if repl != nil {
				pe.Replacement = wordFromText(*repl)
			}
		case ":":
			// substring: keep off[:len] as the operand text; the expander
			// arithmetic-evaluates both pieces.
			pe.Operand = wordFromText(operand)
		default:
			pe.Operand = wordFromText(operand)
		}
		return pe
	}

	// No recognised operator; treat the whole body as a name so the expander
	// can report a bad substitution.
	return &ast.ParameterExpansion{Name: body}
}

// splitParamName splits the leading parameter name (including an array
// subscript) from the rest of a ${...} body.
func splitParamName(body string) (string, string) {
	if body[0] >= '0' && body[0] <= '9' {
		i := 0
		for i < len(body) && body[i] >= '0' && body[i] <= '9' {
			i++
		}
		return body[:i], body[i:]
	}
	if isSpecialChar(body[0]) {
		return body[:1], body[1:]
	}
	i := 0
	for i < len(body) && isNameByte(body[i]) {
		i++
	}
	if i == 0 {
		return body[:1], body[1:]
	}
	// optional [subscript]
	if i < len(body) && body[i] == '[' {
		depth := 0
		j := i
		for ; j < len(body); j++ {
			switch body[j] {
			case '[':
				depth++
			case ']':
				depth--
				if depth == 0 {
					return body[:j+1], body[j+1:]
				}
			}
		}
	}
	return body[:i], body[i:]
}

// splitReplacement splits pattern/replacement at the first unescaped slash.
func splitReplacement(s string) (string, *string) {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '/':
			repl := s[i+1:]
			return s[:i], &repl
		}
	}
	return s, nil
}

// wordFromText parses operand text into a Word; the text may itself contain
// quotes and expansions but no word-splitting metacharacters apply.
func wordFromText(text string) *ast.Word {
	return WordFromParts(lexer.ScanParts(text))
}

// WordFromParts converts scanned token parts into a Word node. The expander
// reuses it for heredoc bodies and parameter-expansion operands.
func WordFromParts(parts []token.Part) *ast.Word {
	w := &ast.Word{}
	for _, part := range parts {
		w.Parts = append(w.Parts, buildWordPart(part))
	}
	if len(w.Parts) == 0 {
		w.Parts = append(w.Parts, &ast.LiteralPart{Text: ""})
	}
	return w
}

func isParamName(s string) bool {
	if s == "" {
		return false
	}
	if len(s) == 1 && isSpecialChar(s[0]) {
		return true
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !isNameByte(c) && c != '[' && c != ']' && c != '@' && c != '*' {
			return false
		}
	}
	return true
}

func isSpecialChar(c byte) bool {
	switch c {
	case '?', '$', '!', '#', '@', '*', '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return true
	}
	return false
}

func isNameByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
