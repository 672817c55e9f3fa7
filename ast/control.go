package ast

import (
	"bytes"
	"strconv"
	"strings"
)

// Control structures are both statements and pipeline components; each
// carries its redirections, a background flag and an execution-context tag
// telling the executor which fork strategy applies.

// IfClause is if/elif/else/fi. The parser keeps each elif branch, in source
// order, in ElifClauses and the else body in Else (nil when there is none).
type IfClause struct {
	Condition   []Statement
	Consequence []Statement
	// ElifClauses run in order before the final Else.
	ElifClauses []*ElifClause
	Else        []Statement

	Redirects  []*Redirect
	Background bool
	Context    ExecutionContext
}

type ElifClause struct {
	Condition   []Statement
	Consequence []Statement
}

func (ic *IfClause) commandNode()   {}
func (ic *IfClause) statementNode() {}
func (ic *IfClause) String() string {
	var out bytes.Buffer
	out.WriteString("if " + statementsString(ic.Condition) + "; then " + statementsString(ic.Consequence))
	for _, e := range ic.ElifClauses {
		out.WriteString("; elif " + statementsString(e.Condition) + "; then " + statementsString(e.Consequence))
	}
	if len(ic.Else) > 0 {
		out.WriteString("; else " + statementsString(ic.Else))
	}
	out.WriteString("; fi")
	out.WriteString(redirectsString(ic.Redirects))
	return out.String()
}

// WhileLoop is while cond; do body; done.
type WhileLoop struct {
	Condition []Statement
	Body      []Statement

	Redirects  []*Redirect
	Background bool
	Context    ExecutionContext
}

func (wl *WhileLoop) commandNode()   {}
func (wl *WhileLoop) statementNode() {}
func (wl *WhileLoop) String() string {
	return "while " + statementsString(wl.Condition) + "; do " +
		statementsString(wl.Body) + "; done" + redirectsString(wl.Redirects)
}

// UntilLoop is until cond; do body; done.
type UntilLoop struct {
	Condition []Statement
	Body      []Statement

	Redirects  []*Redirect
	Background bool
	Context    ExecutionContext
}

func (ul *UntilLoop) commandNode()   {}
func (ul *UntilLoop) statementNode() {}
func (ul *UntilLoop) String() string {
	return "until " + statementsString(ul.Condition) + "; do " +
		statementsString(ul.Body) + "; done" + redirectsString(ul.Redirects)
}

// ForLoop is for name [in words]; do body; done. Without "in", the loop
// iterates over the positional parameters.
type ForLoop struct {
	Variable string
	// Words is nil when "in" was omitted; an empty non-nil slice means an
	// explicit empty list (for x in;) and iterates zero times.
	Words   []*Word
	HasIn   bool
	Body    []Statement

	Redirects  []*Redirect
	Background bool
	Context    ExecutionContext
}

func (fl *ForLoop) commandNode()   {}
func (fl *ForLoop) statementNode() {}
func (fl *ForLoop) String() string {
	var out bytes.Buffer
	out.WriteString("for " + fl.Variable)
	if fl.HasIn {
		out.WriteString(" in")
		for _, w := range fl.Words {
			out.WriteString(" " + w.String())
		}
	}
	out.WriteString("; do " + statementsString(fl.Body) + "; done")
	out.WriteString(redirectsString(fl.Redirects))
	return out.String()
}

// CStyleForLoop is for ((init; cond; update)); do body; done. The three
// expressions stay as arithmetic source text.
type CStyleForLoop struct {
	Init   string
	Cond   string
	Update string
	Body   []Statement

	Redirects  []*Redirect
	Background bool
	Context    ExecutionContext
}

func (cf *CStyleForLoop) commandNode()   {}
func (cf *CStyleForLoop) statementNode() {}
func (cf *CStyleForLoop) String() string {
	return "for ((" + cf.Init + "; " + cf.Cond + "; " + cf.Update + ")); do " +
		statementsString(cf.Body) + "; done" + redirectsString(cf.Redirects)
}

// CaseTerminator tags how a case item ends.
type CaseTerminator string

const (
	CaseBreak       CaseTerminator = ";;"  // stop matching
	CaseFallthrough CaseTerminator = ";&"  // run next body unconditionally
	CaseContinue    CaseTerminator = ";;&" // keep testing later patterns
)

// CaseItem is one pattern list with its body and terminator.
type CaseItem struct {
	Patterns   []*Word
	Body       []Statement
	Terminator CaseTerminator
}

// CaseConditional is case word in ... esac.
type CaseConditional struct {
	Word  *Word
	Items []*CaseItem

	Redirects  []*Redirect
	Background bool
	Context    ExecutionContext
}

func (cc *CaseConditional) commandNode()   {}
func (cc *CaseConditional) statementNode() {}
func (cc *CaseConditional) String() string {
	var out bytes.Buffer
	out.WriteString("case " + cc.Word.String() + " in")
	for _, item := range cc.Items {
		pats := make([]string, len(item.Patterns))
		for i, p := range item.Patterns {
			pats[i] = p.String()
		}
		out.WriteString(" " + strings.Join(pats, "|") + ") ")
		out.WriteString(statementsString(item.Body))
		out.WriteString(string(item.Terminator))
	}
	out.WriteString(" esac")
	out.WriteString(redirectsString(cc.Redirects))
	return out.String()
}

// SelectLoop is select name in words; do body; done: an interactive menu.
type SelectLoop struct {
	Variable string
	Words    []*Word
	HasIn    bool
	Body     []Statement

	Redirects  []*Redirect
	Background bool
	Context    ExecutionContext
}

func (sl *SelectLoop) commandNode()   {}
func (sl *SelectLoop) statementNode() {}
func (sl *SelectLoop) String() string {
	var out bytes.Buffer
	out.WriteString("select " + sl.Variable)
	if sl.HasIn {
		out.WriteString(" in")
		for _, w := range sl.Words {
			out.WriteString(" " + w.String())
		}
	}
	out.WriteString("; do " + statementsString(sl.Body) + "; done")
	return out.String()
}

// ArithmeticCommand is (( expr )) used as a command; exit status is 0 when
// the expression is non-zero.
type ArithmeticCommand struct {
	ExprText string

	Redirects  []*Redirect
	Background bool
	Context    ExecutionContext
}

func (ac *ArithmeticCommand) commandNode()   {}
func (ac *ArithmeticCommand) statementNode() {}
func (ac *ArithmeticCommand) String() string {
	return "((" + ac.ExprText + "))" + redirectsString(ac.Redirects)
}

// BreakStatement is break [N].
type BreakStatement struct {
	Level int
}

func (bs *BreakStatement) commandNode()   {}
func (bs *BreakStatement) statementNode() {}
func (bs *BreakStatement) String() string {
	if bs.Level > 1 {
		return "break " + strconv.Itoa(bs.Level)
	}
	return "break"
}

// ContinueStatement is continue [N].
type ContinueStatement struct {
	Level int
}

func (cs *ContinueStatement) commandNode()   {}
func (cs *ContinueStatement) statementNode() {}
func (cs *ContinueStatement) String() string {
	if cs.Level > 1 {
		return "continue " + strconv.Itoa(cs.Level)
	}
	return "continue"
}

// TestCommand is [[ expression ]].
type TestCommand struct {
	Expr TestExpression

	Redirects  []*Redirect
	Background bool
	Context    ExecutionContext
}

func (tc *TestCommand) commandNode()   {}
func (tc *TestCommand) statementNode() {}
func (tc *TestCommand) String() string {
	return "[[ " + tc.Expr.String() + " ]]"
}

// TestExpression is the closed family of [[ ]] expressions.
type TestExpression interface {
	Node
	testExprNode()
}

// UnaryTest is -f file, -z string and friends.
type UnaryTest struct {
	Op      string
	Operand *Word
}

func (ut *UnaryTest) testExprNode() {}
func (ut *UnaryTest) String() string {
	return ut.Op + " " + ut.Operand.String()
}

// BinaryTest is left op right: ==, !=, =~, <, >, -eq, -lt, -nt, ...
type BinaryTest struct {
	Op    string
	Left  *Word
	Right *Word
}

func (bt *BinaryTest) testExprNode() {}
func (bt *BinaryTest) String() string {
	return bt.Left.String() + " " + bt.Op + " " + bt.Right.String()
}

// CompoundTest joins two test expressions with && or ||.
type CompoundTest struct {
	Op    string // "&&" or "||"
	Left  TestExpression
	Right TestExpression
}

func (ct *CompoundTest) testExprNode() {}
func (ct *CompoundTest) String() string {
	return ct.Left.String() + " " + ct.Op + " " + ct.Right.String()
}

// NegatedTest is ! expr.
type NegatedTest struct {
	Expr TestExpression
}

func (nt *NegatedTest) testExprNode() {}
func (nt *NegatedTest) String() string { return "! " + nt.Expr.String() }

// WordTest is a bare word inside [[ ]]; true when the word is non-empty.
type WordTest struct {
	Word *Word
}

func (wt *WordTest) testExprNode() {}
func (wt *WordTest) String() string { return wt.Word.String() }
