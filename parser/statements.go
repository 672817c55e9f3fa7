package parser

import (
	"psh/ast"
	"psh/token"
)

// parseStatement parses one top-level item: a function definition, a control
// structure, or an and-or list of pipelines.
func (p *Parser) parseStatement() ast.Statement {
	if p.isFunctionDef() {
		return p.parseFunctionDef()
	}
	return p.parseAndOrList()
}

// parseStatementList parses statements until one of the terminator types is
// current. The terminators are not consumed.
func (p *Parser) parseStatementList(terminators ...token.Type) []ast.Statement {
	var stmts []ast.Statement
	for {
		p.skipSeparators()
		if p.curIs(token.EOF) || p.curIsAny(terminators...) {
			return stmts
		}
		stmt := p.parseStatement()
		if stmt != nil {
			stmts = append(stmts, stmt)
		}
		if p.failed() {
			return stmts
		}
	}
}

func (p *Parser) curIsAny(types ...token.Type) bool {
	for _, t := range types {
		if p.curIs(t) {
			return true
		}
	}
	return false
}

// parseAndOrList parses pipeline (&& pipeline | "||" pipeline)*.
func (p *Parser) parseAndOrList() ast.Statement {
	first := p.parsePipeline()
	if first == nil {
		return nil
	}
	list := &ast.AndOrList{Pipelines: []*ast.Pipeline{first}}
	for p.curIs(token.AND_IF) || p.curIs(token.OR_IF) {
		op := p.advance().Literal
		p.skipNewlines() // && and || allow a line break before the next pipeline
		next := p.parsePipeline()
		if next == nil {
			p.errorf("expected command after `%s'", op)
			return list
		}
		list.Operators = append(list.Operators, op)
		list.Pipelines = append(list.Pipelines, next)
	}
	p.consumeListTerminator(list)
	return list
}

// consumeListTerminator eats a trailing ; or & and applies the background
// flag to the final pipeline.
func (p *Parser) consumeListTerminator(list *ast.AndOrList) {
	switch p.cur().Type {
	case token.AMP:
		p.advance()
		last := list.Pipelines[len(list.Pipelines)-1]
		last.Background = true
	case token.SEMI:
		p.advance()
	}
}

// parsePipeline parses [!] command (| command)*.
func (p *Parser) parsePipeline() *ast.Pipeline {
	pl := &ast.Pipeline{}
	for p.curIs(token.BANG) {
		p.advance()
		pl.Negated = !pl.Negated
	}
	cmd := p.parsePipelineComponent()
	if cmd == nil {
		if pl.Negated {
			p.errorf("expected command after `!'")
		}
		return nil
	}
	pl.Commands = append(pl.Commands, cmd)
	for p.curIs(token.PIPE) || p.curIs(token.PIPE_BOTH) {
		both := p.curIs(token.PIPE_BOTH)
		p.advance()
		p.skipNewlines()
		next := p.parsePipelineComponent()
		if next == nil {
			p.errorf("expected command after `|'")
			return pl
		}
		if both {
			// cmd |& cmd is shorthand for cmd 2>&1 | cmd
			addStderrDup(cmd)
		}
		pl.Commands = append(pl.Commands, next)
		cmd = next
	}
	if len(pl.Commands) > 1 {
		for _, c := range pl.Commands {
			tagPipelineContext(c)
		}
	}
	return pl
}

// tagPipelineContext marks control structures that sit inside a multi-member
// pipeline, so the executor forks them instead of running in-process.
func tagPipelineContext(cmd ast.Command) {
	switch c := cmd.(type) {
	case *ast.IfClause:
		c.Context = ast.ContextPipeline
	case *ast.WhileLoop:
		c.Context = ast.ContextPipeline
	case *ast.UntilLoop:
		c.Context = ast.ContextPipeline
	case *ast.ForLoop:
		c.Context = ast.ContextPipeline
	case *ast.CStyleForLoop:
		c.Context = ast.ContextPipeline
	case *ast.CaseConditional:
		c.Context = ast.ContextPipeline
	case *ast.SelectLoop:
		c.Context = ast.ContextPipeline
	case *ast.ArithmeticCommand:
		c.Context = ast.ContextPipeline
	case *ast.TestCommand:
		c.Context = ast.ContextPipeline
	}
}

func addStderrDup(cmd ast.Command) {
	r := &ast.Redirect{Type: ast.RedirDupOut, SourceFd: 2, TargetFd: 1}
	switch c := cmd.(type) {
	case *ast.SimpleCommand:
		c.Redirects = append(c.Redirects, r)
	case *ast.SubshellGroup:
		c.Redirects = append(c.Redirects, r)
	case *ast.BraceGroup:
		c.Redirects = append(c.Redirects, r)
	}
}

// parsePipelineComponent parses one command of a pipeline: a control
// structure, a compound command or a simple command.
func (p *Parser) parsePipelineComponent() ast.Command {
	switch p.cur().Type {
	case token.IF:
		return p.parseIf()
	case token.WHILE:
		return p.parseWhile()
	case token.UNTIL:
		return p.parseUntil()
	case token.FOR:
		return p.parseFor()
	case token.CASE:
		return p.parseCase()
	case token.SELECT:
		return p.parseSelect()
	case token.BREAK, token.CONTINUE:
		return p.parseBreakContinue()
	case token.DLPAREN:
		return p.parseArithmeticCommand()
	case token.DLBRACKET:
		return p.parseTestCommand()
	case token.LPAREN:
		return p.parseSubshell()
	case token.LBRACE:
		return p.parseBraceGroup()
	}
	if p.isArrayAssignment() {
		return p.parseArrayAssignment()
	}
	return p.parseSimpleCommand()
}

// parseSubshell parses ( list ).
func (p *Parser) parseSubshell() ast.Command {
	p.nesting++
	defer func() { p.nesting-- }()
	p.advance() // (
	body := p.parseStatementList(token.RPAREN)
	if _, ok := p.expect(token.RPAREN); !ok {
		return nil
	}
	sg := &ast.SubshellGroup{Body: body}
	sg.Redirects = p.parseRedirects()
	return sg
}

// parseBraceGroup parses { list; }.
func (p *Parser) parseBraceGroup() ast.Command {
	p.nesting++
	defer func() { p.nesting-- }()
	p.advance() // {
	body := p.parseStatementList(token.RBRACE)
	if _, ok := p.expect(token.RBRACE); !ok {
		return nil
	}
	bg := &ast.BraceGroup{Body: body}
	bg.Redirects = p.parseRedirects()
	return bg
}
