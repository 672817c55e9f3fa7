package parser

import (
	"strconv"

	"psh/ast"
	"psh/token"
)

// parseRedirects consumes every redirection at the cursor.
func (p *Parser) parseRedirects() []*ast.Redirect {
	var rs []*ast.Redirect
	for p.cur().Type.IsRedirect() || p.isFdRedirect() {
		r := p.parseRedirect()
		if r == nil {
			return rs
		}
		rs = append(rs, r)
	}
	return rs
}

var redirectTypeFor = map[token.Type]ast.RedirectType{
	token.LT:       ast.RedirIn,
	token.GT:       ast.RedirOut,
	token.DGT:      ast.RedirAppend,
	token.DLT:      ast.RedirHeredoc,
	token.DLT_DASH: ast.RedirHeredocTab,
	token.TLT:      ast.RedirHerestring,
	token.LT_AND:   ast.RedirDupIn,
	token.GT_AND:   ast.RedirDupOut,
	token.GT_PIPE:  ast.RedirClobber,
	token.AND_GT:   ast.RedirAllOut,
	token.AND_DGT:  ast.RedirAllAppend,
	token.LT_GT:    ast.RedirReadWrite,
}

// parseRedirect parses one redirection, including an optional leading fd
// number glued to the operator.
func (p *Parser) parseRedirect() *ast.Redirect {
	sourceFd := -1
	if p.isFdRedirect() {
		n, _ := strconv.Atoi(p.advance().Literal)
		sourceFd = n
	}
	opTok := p.advance()
	rt, ok := redirectTypeFor[opTok.Type]
	if !ok {
		p.errorf("unexpected redirection operator `%s'", opTok.Literal)
		return nil
	}
	r := &ast.Redirect{Type: rt, SourceFd: sourceFd, TargetFd: -1}

	switch rt {
	case ast.RedirHeredoc, ast.RedirHeredocTab:
		// The delimiter word was consumed by the lexer's collector; the body
		// is already gathered. Consume the delimiter token and attach.
		if !p.cur().Type.IsWordLike() {
			p.errorExpected(token.WORD)
			return nil
		}
		p.advance()
		h := p.nextHeredoc()
		if h == nil {
			p.errorf("missing here-document body")
			return nil
		}
		r.HeredocContent = h.Content
		r.HeredocQuoted = h.Quoted
		return r

	case ast.RedirDupIn, ast.RedirDupOut:
		// >&N, <&N, >&-, <&-, or >&file (redirect stdout and stderr).
		tok := p.cur()
		switch {
		case tok.Type == token.WORD && tok.Literal == "-":
			p.advance()
			r.CloseFd = true
			return r
		case (tok.Type == token.WORD || tok.Type == token.NUMBER) && isAllDigitsStr(tok.Literal):
			p.advance()
			r.TargetFd, _ = strconv.Atoi(tok.Literal)
			return r
		case rt == ast.RedirDupOut && tok.Type.IsWordLike():
			// >& file is the legacy spelling of &> file.
			r.Type = ast.RedirAllOut
			r.Target = buildWord(p.advance())
			r.QuoteChar = tok.Quote
			return r
		default:
			p.errorf("expected file descriptor after `%s'", opTok.Literal)
			return nil
		}
	}

	// Everything else takes a single word target; process substitutions are
	// legal targets for < and >.
	tok := p.cur()
	if !tok.Type.IsWordLike() && tok.Type != token.PROC_SUB_IN && tok.Type != token.PROC_SUB_OUT {
		p.errorExpected(token.WORD)
		return nil
	}
	p.advance()
	r.Target = buildWord(tok)
	r.QuoteChar = tok.Quote
	return r
}

func isAllDigitsStr(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
