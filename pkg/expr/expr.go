package expr

import "fmt"

// Evaluator evaluates a declarative expression against a context and returns
// its value. Implementations may call out to remote services; the engine
// tolerates latency and isolates failures per expression.
type Evaluator interface {
	Evaluate(expression string, ctx *Context) (any, error)
}

// EvaluatorFunc adapts a function into an Evaluator.
type EvaluatorFunc func(expression string, ctx *Context) (any, error)

// Evaluate delegates to the underlying function.
func (fn EvaluatorFunc) Evaluate(expression string, ctx *Context) (any, error) {
	return fn(expression, ctx)
}

// RefExtractor is an optional interface evaluators can implement to expose
// static reference extraction. When absent, the engine falls back to ScanRefs.
type RefExtractor interface {
	Refs(expression string) []string
}

// EvalError records a single expression failure. Evaluation errors are
// localized: one bad expression never aborts the surrounding pass.
type EvalError struct {
	Expression string
	Cause      error
}

func (e *EvalError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("expr: evaluation of %q failed", e.Expression)
	}
	return fmt.Sprintf("expr: evaluation of %q failed: %v", e.Expression, e.Cause)
}

func (e *EvalError) Unwrap() error { return e.Cause }

// CycleError marks an expression that participates in a dependency cycle.
// Every member of the cycle carries the same error; none of them evaluate.
type CycleError struct {
	Members []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("expr: dependency cycle among %v", e.Members)
}
