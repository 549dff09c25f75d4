// Package engine evaluates a definition tree's expressions against a response
// tree and exposes the result as immutable snapshots. It resolves expression
// dependencies into a deterministic order, isolates per-expression failures,
// and serializes mutations through sessions.
package engine

import (
	"errors"

	"github.com/goliatone/go-formstate/pkg/expr"
	"github.com/goliatone/go-formstate/pkg/expr/simple"
	"github.com/goliatone/go-formstate/pkg/item"
	"github.com/goliatone/go-formstate/pkg/response"
)

// Engine binds a validated definition tree to an evaluator and its resolved
// dependency graph. Engines are immutable after New and safe for concurrent
// use; per-conversation state lives in a Session.
type Engine struct {
	def      *item.Tree
	graph    *graph
	eval     expr.Evaluator
	sync     *response.Synchronizer
	external map[string]any
}

// Option configures an Engine.
type Option func(*Engine)

// WithEvaluator replaces the default expression evaluator.
func WithEvaluator(eval expr.Evaluator) Option {
	return func(e *Engine) {
		if eval != nil {
			e.eval = eval
		}
	}
}

// WithExternalVariables binds launch-context values visible to every
// expression, under the names given.
func WithExternalVariables(vars map[string]any) Option {
	return func(e *Engine) {
		for name, value := range vars {
			e.external[name] = value
		}
	}
}

// New validates the definition tree, resolves its dependency graph, and
// returns an engine ready to open sessions.
func New(def *item.Tree, opts ...Option) (*Engine, error) {
	if def == nil {
		return nil, errors.New("engine: nil definition tree")
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		def:      def,
		eval:     simple.New(),
		sync:     response.NewSynchronizer(def),
		external: make(map[string]any),
	}
	for _, opt := range opts {
		opt(e)
	}

	refs := expr.ScanRefs
	if extractor, ok := e.eval.(expr.RefExtractor); ok {
		refs = extractor.Refs
	}
	e.graph = buildGraph(def, refs)
	return e, nil
}

// Definition returns the definition tree the engine was built for. Callers
// must treat it as read only.
func (e *Engine) Definition() *item.Tree { return e.def }

// CycleIssues returns the dependency-cycle errors found at build time, keyed
// by definition path. Cyclic expressions never evaluate; everything outside
// the cycle still does.
func (e *Engine) CycleIssues() map[string]error {
	out := make(map[string]error, len(e.graph.cycleErrs))
	for n, err := range e.graph.cycleErrs {
		out[n.defPath] = err
	}
	return out
}

// DependsOn reports whether any expression reads the given question's answer,
// directly or transitively. Sessions skip evaluation entirely for answers
// nothing depends on.
func (e *Engine) DependsOn(linkID string) bool {
	return len(e.graph.byAnswer[linkID]) > 0
}
