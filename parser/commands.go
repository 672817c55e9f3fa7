package parser

import (
	"strings"

	"psh/ast"
	"psh/token"
)

// parseSimpleCommand parses leading assignments, a command word, argument
// words and redirections, in any interleaving bash accepts.
func (p *Parser) parseSimpleCommand() ast.Command {
	sc := &ast.SimpleCommand{}

	// Leading variable assignments.
	for p.isAssignmentWord() {
		sc.Assignments = append(sc.Assignments, p.parseAssignment())
	}

	for {
		switch {
		case p.cur().Type.IsRedirect() || p.isFdRedirect():
			r := p.parseRedirect()
			if r == nil {
				return sc
			}
			sc.Redirects = append(sc.Redirects, r)
		case p.cur().Type.IsWordLike() || p.curIs(token.PROC_SUB_IN) || p.curIs(token.PROC_SUB_OUT):
			sc.Words = append(sc.Words, buildWord(p.advance()))
		case p.keywordAsWord():
			// Reserved words lose their special meaning outside command
			// position: echo if, for x in for.
			tok := p.advance()
			sc.Words = append(sc.Words, &ast.Word{Parts: []ast.WordPart{
				&ast.LiteralPart{Text: tok.Literal},
			}})
		default:
			if len(sc.Words) == 0 && len(sc.Assignments) == 0 && len(sc.Redirects) == 0 {
				return nil
			}
			return sc
		}
	}
}

// keywordAsWord reports whether the current keyword token should demote to an
// ordinary word (it is not at command position from the parser's view).
func (p *Parser) keywordAsWord() bool {
	return p.cur().Type.IsKeyword()
}

// isFdRedirect detects the NUMBER></ NUMBER< forms: a digit run glued to a
// redirection operator.
func (p *Parser) isFdRedirect() bool {
	return p.curIs(token.NUMBER) && p.peek().Type.IsRedirect() && p.peek().AdjacentToPrevious
}

// isAssignmentWord reports whether the current token is a NAME=... or
// NAME[idx]=... word.
func (p *Parser) isAssignmentWord() bool {
	tok := p.cur()
	if tok.Type != token.WORD && tok.Type != token.STRING {
		return false
	}
	name, _, ok := splitAssignment(assignmentPrefix(tok))
	return ok && name != ""
}

// assignmentPrefix returns the leading unquoted-literal text of a token, the
// only place an assignment's NAME= can live.
func assignmentPrefix(tok token.Token) string {
	if tok.Type == token.WORD {
		return tok.Literal
	}
	if len(tok.Parts) > 0 && tok.Parts[0].Kind == token.PartLiteral && tok.Parts[0].Quote == 0 {
		return tok.Parts[0].Text
	}
	return ""
}

// splitAssignment splits "name=..." / "name[idx]=..." / "name+=...". It
// returns ok=false when the text is not an assignment.
func splitAssignment(text string) (name string, rest string, ok bool) {
	eq := -1
	depth := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '[':
			depth++
		case c == ']':
			depth--
		case c == '=' && depth == 0:
			eq = i
		}
		if eq >= 0 {
			break
		}
	}
	if eq <= 0 {
		return "", "", false
	}
	name = text[:eq]
	if strings.HasSuffix(name, "+") {
		name = name[:len(name)-1]
	}
	base := name
	if i := strings.IndexByte(base, '['); i >= 0 {
		if !strings.HasSuffix(base, "]") {
			return "", "", false
		}
		base = base[:i]
	}
	if base == "" || !isNameStartByte(base[0]) {
		return "", "", false
	}
	for i := 1; i < len(base); i++ {
		if !isNameByte(base[i]) {
			return "", "", false
		}
	}
	return name, text[eq+1:], true
}

func isNameStartByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// parseAssignment consumes one assignment word.
func (p *Parser) parseAssignment() *ast.Assignment {
	tok := p.advance()
	prefix := assignmentPrefix(tok)
	name, _, _ := splitAssignment(prefix)
	eq := strings.Index(prefix, "=")
	appendOp := eq > 0 && prefix[eq-1] == '+'

	a := &ast.Assignment{Name: name, Append: appendOp}
	if i := strings.IndexByte(name, '['); i >= 0 {
		a.Name = name[:i]
		a.Index = wordFromText(name[i+1 : len(name)-1])
	}

	// Rebuild the value word: the remainder of the first literal plus every
	// following part.
	value := &ast.Word{}
	switch tok.Type {
	case token.WORD:
		rest := tok.Literal[eq+1:]
		if rest != "" {
			value.Parts = append(value.Parts, &ast.LiteralPart{Text: rest})
		}
	default:
		rest := tok.Parts[0].Text[eq+1:]
		if rest != "" {
			value.Parts = append(value.Parts, buildWordPart(token.Part{
				Kind: token.PartLiteral, Text: rest,
			}))
		}
		for _, part := range tok.Parts[1:] {
			value.Parts = append(value.Parts, buildWordPart(part))
		}
	}
	if len(value.Parts) > 0 {
		a.Value = value
	}
	return a
}

// isArrayAssignment detects NAME=( with the paren glued to the word.
func (p *Parser) isArrayAssignment() bool {
	tok := p.cur()
	if tok.Type != token.WORD || !p.peekIs(token.LPAREN) || !p.peek().AdjacentToPrevious {
		return false
	}
	if !strings.HasSuffix(tok.Literal, "=") {
		return false
	}
	_, _, ok := splitAssignment(tok.Literal)
	return ok
}

// parseArrayAssignment parses NAME=(elem...) and NAME+=(elem...).
func (p *Parser) parseArrayAssignment() ast.Command {
	tok := p.advance()
	name, _, _ := splitAssignment(tok.Literal)
	appendOp := strings.HasSuffix(strings.TrimSuffix(tok.Literal, "="), "+")
	p.advance() // (
	aa := &ast.ArrayAssignment{Name: name, Append: appendOp}
	for !p.curIs(token.RPAREN) && !p.curIs(token.EOF) {
		p.skipNewlines()
		if p.curIs(token.RPAREN) {
			break
		}
		if !p.cur().Type.IsWordLike() {
			p.errorf("unexpected token `%s' in array assignment", p.cur().Literal)
			return aa
		}
		aa.Elements = append(aa.Elements, buildWord(p.advance()))
	}
	p.expect(token.RPAREN)
	return aa
}
