package parser

import (
	"strconv"
	"strings"

	"psh/ast"
	"psh/token"
)

// Control-structure grammar. Each structure consumes its canonical syntax
// and attaches trailing redirections.

// parseIf parses if cond; then body [elif cond; then body]... [else body] fi.
func (p *Parser) parseIf() ast.Command {
	p.conditionalDepth++
	defer func() { p.conditionalDepth-- }()
	p.advance() // if

	ic := &ast.IfClause{}
	ic.Condition = p.parseStatementList(token.THEN)
	if _, ok := p.expect(token.THEN); !ok {
		return nil
	}
	ic.Consequence = p.parseStatementList(token.ELIF, token.ELSE, token.FI)

	for p.curIs(token.ELIF) {
		p.advance()
		ec := &ast.ElifClause{}
		ec.Condition = p.parseStatementList(token.THEN)
		if _, ok := p.expect(token.THEN); !ok {
			return nil
		}
		ec.Consequence = p.parseStatementList(token.ELIF, token.ELSE, token.FI)
		ic.ElifClauses = append(ic.ElifClauses, ec)
	}
	if p.curIs(token.ELSE) {
		p.advance()
		ic.Else = p.parseStatementList(token.FI)
	}
	if _, ok := p.expect(token.FI); !ok {
		return nil
	}
	ic.Redirects = p.parseRedirects()
	return ic
}

// parseWhile parses while cond; do body; done.
func (p *Parser) parseWhile() ast.Command {
	p.advance() // while
	wl := &ast.WhileLoop{}
	wl.Condition = p.parseStatementList(token.DO)
	wl.Body = p.parseLoopBody()
	if wl.Body == nil {
		return nil
	}
	wl.Redirects = p.parseRedirects()
	return wl
}

// parseUntil parses until cond; do body; done.
func (p *Parser) parseUntil() ast.Command {
	p.advance() // until
	ul := &ast.UntilLoop{}
	ul.Condition = p.parseStatementList(token.DO)
	ul.Body = p.parseLoopBody()
	if ul.Body == nil {
		return nil
	}
	ul.Redirects = p.parseRedirects()
	return ul
}

// parseLoopBody consumes do body done and tracks loop depth for
// break/continue validation.
func (p *Parser) parseLoopBody() []ast.Statement {
	if _, ok := p.expect(token.DO); !ok {
		return nil
	}
	p.loopDepth++
	body := p.parseStatementList(token.DONE)
	p.loopDepth--
	if _, ok := p.expect(token.DONE); !ok {
		return nil
	}
	if body == nil {
		body = []ast.Statement{}
	}
	return body
}

// parseFor dispatches between for name [in words] and for ((;;)).
func (p *Parser) parseFor() ast.Command {
	p.advance() // for

	if p.curIs(token.DLPAREN) {
		return p.parseCStyleFor()
	}

	if !p.curIs(token.WORD) {
		p.errorExpected(token.WORD)
		return nil
	}
	fl := &ast.ForLoop{Variable: p.advance().Literal}

	p.skipNewlines()
	if p.curIs(token.IN) {
		p.advance()
		fl.HasIn = true
		fl.Words = []*ast.Word{}
		for p.cur().Type.IsWordLike() || p.cur().Type.IsKeyword() ||
			p.curIs(token.PROC_SUB_IN) || p.curIs(token.PROC_SUB_OUT) {
			fl.Words = append(fl.Words, buildWord(p.advance()))
		}
	}
	if p.curIs(token.SEMI) || p.curIs(token.NEWLINE) {
		p.skipSeparators()
	}
	fl.Body = p.parseLoopBody()
	if fl.Body == nil {
		return nil
	}
	fl.Redirects = p.parseRedirects()
	return fl
}

// parseCStyleFor parses for ((init; cond; update)); do body; done. The
// lexer delivered the whole (( )) body as one token.
func (p *Parser) parseCStyleFor() ast.Command {
	exprTok := p.advance()
	fields := strings.SplitN(exprTok.Literal, ";", 3)
	if len(fields) != 3 {
		p.errorf("expected ((init; cond; update)) in for loop")
		return nil
	}
	cf := &ast.CStyleForLoop{
		Init:   strings.TrimSpace(fields[0]),
		Cond:   strings.TrimSpace(fields[1]),
		Update: strings.TrimSpace(fields[2]),
	}
	p.skipSeparators()
	cf.Body = p.parseLoopBody()
	if cf.Body == nil {
		return nil
	}
	cf.Redirects = p.parseRedirects()
	return cf
}

// parseCase parses case word in pattern) body ;; ... esac.
func (p *Parser) parseCase() ast.Command {
	p.advance() // case
	if !p.cur().Type.IsWordLike() {
		p.errorExpected(token.WORD)
		return nil
	}
	cc := &ast.CaseConditional{Word: buildWord(p.advance())}
	p.skipNewlines()
	if _, ok := p.expect(token.IN); !ok {
		return nil
	}
	p.skipSeparators()

	for !p.curIs(token.ESAC) && !p.curIs(token.EOF) {
		item := p.parseCaseItem()
		if item == nil {
			return cc
		}
		cc.Items = append(cc.Items, item)
		p.skipSeparators()
	}
	if _, ok := p.expect(token.ESAC); !ok {
		return nil
	}
	cc.Redirects = p.parseRedirects()
	return cc
}

// parseCaseItem parses [(] pattern [| pattern]... ) body terminator.
func (p *Parser) parseCaseItem() *ast.CaseItem {
	p.inCasePattern = true
	if p.curIs(token.LPAREN) {
		p.advance()
	}
	item := &ast.CaseItem{Terminator: ast.CaseBreak}
	for {
		if !p.cur().Type.IsWordLike() && !p.cur().Type.IsKeyword() {
			p.inCasePattern = false
			p.errorf("expected pattern in case item, got `%s'", p.cur().Literal)
			return nil
		}
		item.Patterns = append(item.Patterns, buildWord(p.advance()))
		if p.curIs(token.PIPE) {
			p.advance()
			continue
		}
		break
	}
	p.inCasePattern = false
	if _, ok := p.expect(token.RPAREN); !ok {
		return nil
	}
	item.Body = p.parseStatementList(token.DSEMI, token.SEMI_AMP, token.DSEMI_AMP, token.ESAC)
	switch p.cur().Type {
	case token.DSEMI:
		p.advance()
	case token.SEMI_AMP:
		p.advance()
		item.Terminator = ast.CaseFallthrough
	case token.DSEMI_AMP:
		p.advance()
		item.Terminator = ast.CaseContinue
	case token.ESAC:
		// last item may omit its terminator
	}
	return item
}

// parseSelect parses select name [in words]; do body; done.
func (p *Parser) parseSelect() ast.Command {
	p.advance() // select
	if !p.curIs(token.WORD) {
		p.errorExpected(token.WORD)
		return nil
	}
	sl := &ast.SelectLoop{Variable: p.advance().Literal}
	p.skipNewlines()
	if p.curIs(token.IN) {
		p.advance()
		sl.HasIn = true
		for p.cur().Type.IsWordLike() {
			sl.Words = append(sl.Words, buildWord(p.advance()))
		}
	}
	p.skipSeparators()
	sl.Body = p.parseLoopBody()
	if sl.Body == nil {
		return nil
	}
	return sl
}

// parseBreakContinue parses break [N] / continue [N].
func (p *Parser) parseBreakContinue() ast.Command {
	tok := p.advance()
	level := 1
	if p.curIs(token.WORD) || p.curIs(token.NUMBER) {
		if n, err := strconv.Atoi(p.cur().Literal); err == nil {
			if n < 1 {
				p.errorf("%s: loop count out of range", tok.Literal)
				return nil
			}
			level = n
			p.advance()
		}
	}
	if tok.Type == token.BREAK {
		return &ast.BreakStatement{Level: level}
	}
	return &ast.ContinueStatement{Level: level}
}

// parseArithmeticCommand wraps a (( )) token.
func (p *Parser) parseArithmeticCommand() ast.Command {
	tok := p.advance()
	ac := &ast.ArithmeticCommand{ExprText: strings.TrimSpace(tok.Literal)}
	ac.Redirects = p.parseRedirects()
	return ac
}
