package interp

import (
	"bufio"
	"fmt"
	"strconv"

	"github.com/pkg/errors"

	"psh/ast"
	"psh/iomgr"
)

// Control-flow sub-executor: if/while/until/for/case/select and the
// arithmetic command. Every structure applies its redirections temporarily
// around the whole construct.

func (r *Runner) withRedirects(redirects []*ast.Redirect, body func() (int, error)) (int, error) {
	if len(redirects) == 0 {
		return body()
	}
	saved, err := r.IO.Apply(redirects, r.Fds, iomgr.Temporary)
	if err != nil {
		r.Errorf("redirect", "%s", err)
		return 1, nil
	}
	defer r.IO.CleanupProcSubs()
	defer saved.Restore()
	return body()
}

func (r *Runner) runIf(ic *ast.IfClause, ctx ExecContext) (int, error) {
	return r.withRedirects(ic.Redirects, func() (int, error) {
		condCode, err := r.runStatements(ic.Condition, ctx.EnterCondition())
		if err != nil {
			return condCode, err
		}
		if condCode == 0 {
			return r.runStatements(ic.Consequence, ctx)
		}
		for _, ec := range ic.ElifClauses {
			condCode, err = r.runStatements(ec.Condition, ctx.EnterCondition())
			if err != nil {
				return condCode, err
			}
			if condCode == 0 {
				return r.runStatements(ec.Consequence, ctx)
			}
		}
		if len(ic.Else) > 0 {
			return r.runStatements(ic.Else, ctx)
		}
		return 0, nil
	})
}

// runLoopBody runs one loop body and folds break/continue into the loop
// protocol: consumed at level 1, re-raised one level shallower otherwise.
type loopSignal int

const (
	loopNext loopSignal = iota
	loopBreak
)

func (r *Runner) runLoopBody(body []ast.Statement, ctx ExecContext) (int, loopSignal, error) {
	code, err := r.runStatements(body, ctx)
	if err == nil {
		return code, loopNext, nil
	}
	var br *breakErr
	if errors.As(err, &br) {
		if br.level > 1 {
			return code, loopBreak, NewBreak(br.level - 1)
		}
		return code, loopBreak, nil
	}
	var cont *continueErr
	if errors.As(err, &cont) {
		if cont.level > 1 {
			return code, loopBreak, NewContinue(cont.level - 1)
		}
		return code, loopNext, nil
	}
	return code, loopBreak, err
}

func (r *Runner) runWhile(wl *ast.WhileLoop, ctx ExecContext) (int, error) {
	return r.withRedirects(wl.Redirects, func() (int, error) {
		loopCtx := ctx.EnterLoop()
		code := 0
		for {
			condCode, err := r.runStatements(wl.Condition, ctx.EnterCondition())
			if err != nil {
				return condCode, err
			}
			if condCode != 0 {
				return code, nil
			}
			var sig loopSignal
			code, sig, err = r.runLoopBody(wl.Body, loopCtx)
			if err != nil || sig == loopBreak {
				return code, err
			}
		}
	})
}

func (r *Runner) runUntil(ul *ast.UntilLoop, ctx ExecContext) (int, error) {
	return r.withRedirects(ul.Redirects, func() (int, error) {
		loopCtx := ctx.EnterLoop()
		code := 0
		for {
			condCode, err := r.runStatements(ul.Condition, ctx.EnterCondition())
			if err != nil {
				return condCode, err
			}
			if condCode == 0 {
				return code, nil
			}
			var sig loopSignal
			code, sig, err = r.runLoopBody(ul.Body, loopCtx)
			if err != nil || sig == loopBreak {
				return code, err
			}
		}
	})
}

func (r *Runner) runFor(fl *ast.ForLoop, ctx ExecContext) (int, error) {
	return r.withRedirects(fl.Redirects, func() (int, error) {
		var items []string
		if fl.HasIn {
			for _, w := range fl.Words {
				fields, err := r.Exp.ExpandWord(w)
				if err != nil {
					return r.expansionFailure(err)
				}
				items = append(items, fields...)
			}
		} else {
			// for x without in iterates the positional parameters
			items = append(items, r.St.Positional...)
		}

		loopCtx := ctx.EnterLoop()
		code := 0
		for _, item := range items {
			if err := r.St.Set(fl.Variable, item); err != nil {
				r.Errorf(fl.Variable, "%s", err)
				return 1, nil
			}
			var sig loopSignal
			var err error
			code, sig, err = r.runLoopBody(fl.Body, loopCtx)
			if err != nil {
				return code, err
			}
			if sig == loopBreak {
				break
			}
		}
		return code, nil
	})
}

func (r *Runner) runCStyleFor(cf *ast.CStyleForLoop, ctx ExecContext) (int, error) {
	return r.withRedirects(cf.Redirects, func() (int, error) {
		if cf.Init != "" {
			if _, err := r.arith(cf.Init); err != nil {
				return r.arithFailure(err)
			}
		}
		loopCtx := ctx.EnterLoop()
		code := 0
		for {
			if cf.Cond != "" {
				v, err := r.arith(cf.Cond)
				if err != nil {
					return r.arithFailure(err)
				}
				if v == 0 {
					return code, nil
				}
			}
			var sig loopSignal
			var err error
			code, sig, err = r.runLoopBody(cf.Body, loopCtx)
			if err != nil || sig == loopBreak {
				return code, err
			}
			if cf.Update != "" {
				if _, err := r.arith(cf.Update); err != nil {
					return r.arithFailure(err)
				}
			}
		}
	})
}

func (r *Runner) runCase(cc *ast.CaseConditional, ctx ExecContext) (int, error) {
	return r.withRedirects(cc.Redirects, func() (int, error) {
		subject, err := r.Exp.ExpandWordNoSplit(cc.Word)
		if err != nil {
			return r.expansionFailure(err)
		}
		code := 0
		matched := false
		for i := 0; i < len(cc.Items); i++ {
			item := cc.Items[i]
			if !matched {
				hit := false
				for _, pw := range item.Patterns {
					pat, err := r.Exp.ExpandWordNoSplit(pw)
					if err != nil {
						return r.expansionFailure(err)
					}
					if r.caseMatch(pat, subject) {
						hit = true
						break
					}
				}
				if !hit {
					continue
				}
			}
			matched = false
			code, err = r.runStatements(item.Body, ctx)
			if err != nil {
				return code, err
			}
			switch item.Terminator {
			case ast.CaseBreak:
				return code, nil
			case ast.CaseFallthrough:
				// run the next body unconditionally
				matched = true
			case ast.CaseContinue:
				// keep testing later patterns
			}
		}
		return code, nil
	})
}

// runSelect shows the numbered menu on stderr and loops reading selections
// until EOF or break.
func (r *Runner) runSelect(sl *ast.SelectLoop, ctx ExecContext) (int, error) {
	var items []string
	if sl.HasIn {
		for _, w := range sl.Words {
			fields, err := r.Exp.ExpandWord(w)
			if err != nil {
				return r.expansionFailure(err)
			}
			items = append(items, fields...)
		}
	} else {
		items = append(items, r.St.Positional...)
	}
	if len(items) == 0 {
		return 0, nil
	}

	reader := bufio.NewReader(r.Stdin())
	loopCtx := ctx.EnterLoop()
	code := 0
	for {
		for i, item := range items {
			fmt.Fprintf(r.Stderr(), "%d) %s\n", i+1, item)
		}
		ps3 := r.St.Get("PS3")
		if ps3 == "" {
			ps3 = "#? "
		}
		fmt.Fprint(r.Stderr(), ps3)

		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return code, nil // EOF ends the loop
		}
		line = trimNewline(line)
		if line == "" {
			continue // empty input redisplays the menu
		}
		choice := ""
		if n, convErr := strconv.Atoi(line); convErr == nil && n >= 1 && n <= len(items) {
			choice = items[n-1]
		}
		if err := r.St.Set(sl.Variable, choice); err != nil {
			return 1, nil
		}
		_ = r.St.Set("REPLY", line)

		var sig loopSignal
		var bodyErr error
		code, sig, bodyErr = r.runLoopBody(sl.Body, loopCtx)
		if bodyErr != nil || sig == loopBreak {
			return code, bodyErr
		}
	}
}

// runArithmeticCommand evaluates (( expr )): exit 0 when non-zero.
func (r *Runner) runArithmeticCommand(ac *ast.ArithmeticCommand, ctx ExecContext) (int, error) {
	return r.withRedirects(ac.Redirects, func() (int, error) {
		v, err := r.arith(ac.ExprText)
		if err != nil {
			return r.arithFailure(err)
		}
		if v != 0 {
			return 0, nil
		}
		return 1, nil
	})
}

// arith evaluates arithmetic text with its embedded expansions.
func (r *Runner) arith(expr string) (int64, error) {
	return r.Exp.EvalArith(expr)
}

func (r *Runner) arithFailure(err error) (int, error) {
	r.Errorf("arithmetic", "%s", err)
	if r.Ctx.InSubshell {
		return 1, &ExitError{Code: 1}
	}
	return 1, nil
}

// caseMatch matches a case pattern, honouring extglob and nocasematch.
func (r *Runner) caseMatch(pat, subject string) bool {
	ok, err := r.Exp.MatchPattern(pat, subject)
	return err == nil && ok
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
