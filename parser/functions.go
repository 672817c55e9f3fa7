package parser

import (
	"psh/ast"
	"psh/token"
)

// Function definitions come in two spellings:
//
//	name () compound-command
//	function name [()] compound-command
//
// Detection needs lookahead past the parens to a compound command so that
// `foo ()` followed by garbage still errors usefully.

func (p *Parser) isFunctionDef() bool {
	if p.curIs(token.FUNCTION) {
		return true
	}
	if !p.curIs(token.WORD) {
		return false
	}
	if !p.peekIs(token.LPAREN) || p.peekAt(2).Type != token.RPAREN {
		return false
	}
	// Lookahead past () to something that can open a function body.
	mark := p.save()
	p.advance() // name
	p.advance() // (
	p.advance() // )
	p.skipNewlines()
	ok := p.startsCompoundCommand()
	p.restore(mark)
	return ok
}

func (p *Parser) startsCompoundCommand() bool {
	switch p.cur().Type {
	case token.LBRACE, token.LPAREN, token.IF, token.WHILE, token.UNTIL,
		token.FOR, token.CASE, token.SELECT, token.DLPAREN, token.DLBRACKET:
		return true
	}
	return false
}

// parseFunctionDef parses either spelling and records the body.
func (p *Parser) parseFunctionDef() ast.Statement {
	var name string
	if p.curIs(token.FUNCTION) {
		p.advance()
		if !p.curIs(token.WORD) {
			p.errorExpected(token.WORD)
			return nil
		}
		name = p.advance().Literal
		if p.curIs(token.LPAREN) && p.peekIs(token.RPAREN) {
			p.advance()
			p.advance()
		}
	} else {
		name = p.advance().Literal
		p.advance() // (
		p.advance() // )
	}
	p.skipNewlines()

	if !p.startsCompoundCommand() {
		p.errorf("expected function body after `%s()'", name)
		return nil
	}

	wasIn := p.inFunctionBody
	p.inFunctionBody = true
	body := p.parsePipelineComponent()
	p.inFunctionBody = wasIn

	if body == nil {
		return nil
	}
	return &ast.FunctionDef{Name: name, Body: body}
}
