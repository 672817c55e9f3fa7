package interp

// ExecContext is an immutable record describing where in the program the
// executor currently is. Scope changes produce derived copies; the record is
// never mutated in place, so state cannot leak across nested scopes.
type ExecContext struct {
	InPipeline             bool
	InSubshell             bool
	InForkedChild          bool
	LoopDepth              int
	FunctionName           string
	Background             bool
	SuppressFunctionLookup bool
	ExecMode               bool // exec builtin: replace, don't fork

	// conditional marks positions where errexit is suspended: if/while
	// conditions, && and || operands other than the last.
	conditional bool
}

// EnterLoop returns a context one loop deeper.
func (c ExecContext) EnterLoop() ExecContext {
	c.LoopDepth++
	return c
}

// EnterFunction returns a context inside the named function.
func (c ExecContext) EnterFunction(name string) ExecContext {
	c.FunctionName = name
	c.LoopDepth = 0
	return c
}

// EnterPipeline marks pipeline membership.
func (c ExecContext) EnterPipeline() ExecContext {
	c.InPipeline = true
	return c
}

// ForkToSubshell marks the context of an in-process subshell child.
func (c ExecContext) ForkToSubshell() ExecContext {
	c.InSubshell = true
	c.InForkedChild = true
	return c
}

// EnterCondition suspends errexit for a condition slot.
func (c ExecContext) EnterCondition() ExecContext {
	c.conditional = true
	return c
}

// InLoop reports whether break/continue are legal here.
func (c ExecContext) InLoop() bool { return c.LoopDepth > 0 }
