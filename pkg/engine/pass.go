package engine

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/goliatone/go-formstate/pkg/expr"
	"github.com/goliatone/go-formstate/pkg/item"
	"github.com/goliatone/go-formstate/pkg/response"
)

// state is the output of one evaluation pass. Paths are concrete response
// paths, with repeat indices where the definition repeats.
type state struct {
	// enabled holds the own enablement result of every item that declares
	// enablement logic. Absent paths are enabled; effective enablement also
	// requires every ancestor to be enabled.
	enabled map[string]bool

	// options holds dynamically produced or filtered answer option sets.
	options map[string][]any

	// issues collects per-path expression failures. A failed expression keeps
	// its previous output; it never aborts the pass.
	issues map[string][]error

	// variables holds the evaluated variable bindings per declaring scope.
	variables map[string]map[string]any

	// values memoizes every expression evaluation of the pass so the next
	// pass can replay results for expressions outside its dirty closure.
	values map[string]cachedEval
}

// cachedEval is one memoized evaluator outcome at one instance path.
type cachedEval struct {
	value any
	err   error
}

func newState() *state {
	return &state{
		enabled:   make(map[string]bool),
		options:   make(map[string][]any),
		issues:    make(map[string][]error),
		variables: make(map[string]map[string]any),
		values:    make(map[string]cachedEval),
	}
}

// effectiveEnabled reports whether path and every ancestor scope is enabled.
func (st *state) effectiveEnabled(path string) bool {
	segs := strings.Split(path, ".")
	prefix := ""
	for _, seg := range segs {
		if prefix == "" {
			prefix = seg
		} else {
			prefix = prefix + "." + seg
		}
		if on, ok := st.enabled[prefix]; ok && !on {
			return false
		}
	}
	return true
}

func (st *state) addIssue(path string, err error) {
	st.issues[path] = append(st.issues[path], err)
}

// scopeRef ties a concrete response path to its node while descending.
type scopeRef struct {
	path string
	node *response.Node
}

// instance is one live occurrence of a definition item in the response tree.
type instance struct {
	path  string
	node  *response.Node
	chain []scopeRef // ancestors ending with the instance itself
}

// pass evaluates the graph's topological order once against a response tree.
// The tree is mutated in place (calculated and initial answers); callers hand
// in a clone and adopt it afterwards.
type pass struct {
	engine *Engine
	resp   *response.Tree
	st     *state

	// seeded holds instance ids whose initial expressions already ran in an
	// earlier pass; they never run twice for the same instance.
	seeded map[string]struct{}

	// scope limits evaluator calls to the dirty transitive closure; nil
	// means everything evaluates. Nodes outside the scope replay the prev
	// pass's memoized results instead of calling the evaluator.
	scope map[*exprNode]struct{}
	prev  map[string]cachedEval

	root    *expr.Context
	ctxs    map[string]*expr.Context
	changed []string
	touched map[string]struct{} // link ids whose answers this pass wrote
	newSeed []string            // instance ids seeded by this pass
}

// runPass evaluates the topological order once. When dirty names the question
// link ids mutated since prev was produced, expressions outside their
// transitive closure reuse prev's memoized results; a nil dirty set (or no
// prior state, as on the first pass and after structural changes) evaluates
// everything.
func (e *Engine) runPass(resp *response.Tree, seeded map[string]struct{}, prev *state, dirty map[string]struct{}) (*state, []string, []string) {
	p := &pass{
		engine:  e,
		resp:    resp,
		st:      newState(),
		seeded:  seeded,
		ctxs:    make(map[string]*expr.Context),
		touched: make(map[string]struct{}),
	}
	if dirty != nil && prev != nil {
		p.scope = e.graph.affected(dirty)
		p.prev = prev.values
	}

	p.root = expr.NewContext(nil).WithAnswers(func(linkID string) (any, bool) {
		for _, n := range resp.Items {
			if m := findNode(n, linkID); m != nil {
				return answerValue(m), true
			}
		}
		return nil, false
	})
	for name, value := range e.external {
		p.root.SetVariable(name, value)
	}

	for _, n := range e.graph.order {
		p.evalNode(n)
	}
	for n, err := range e.graph.cycleErrs {
		for _, inst := range p.enumerate(n.defPath) {
			p.st.addIssue(inst.path, err)
		}
	}
	return p.st, p.changed, p.newSeed
}

func (p *pass) evalNode(n *exprNode) {
	for _, inst := range p.enumerate(n.defPath) {
		ctx := p.ctxFor(inst.chain)
		switch n.kind {
		case kindVariable:
			p.evalVariable(n, inst, ctx)
		case kindInitial:
			p.evalInitial(n, inst, ctx)
		case kindEnableWhen:
			p.evalEnableWhen(n, inst, ctx)
		case kindCalculated:
			p.evalCalculated(n, inst, ctx)
		case kindCandidate:
			p.evalCandidate(n, inst, ctx)
		case kindToggle:
			p.evalToggle(n, inst, ctx)
		}
	}
}

func (p *pass) evalVariable(n *exprNode, inst instance, ctx *expr.Context) {
	value, err := p.eval(n, inst, n.source, ctx)
	if err != nil {
		p.st.addIssue(inst.path, err)
		return
	}
	ctx.SetVariable(n.name, value)
	scope := p.st.variables[inst.path]
	if scope == nil {
		scope = make(map[string]any)
		p.st.variables[inst.path] = scope
	}
	scope[n.name] = value
}

func (p *pass) evalInitial(n *exprNode, inst instance, ctx *expr.Context) {
	if _, done := p.seeded[inst.node.InstanceID]; done {
		return
	}
	p.newSeed = append(p.newSeed, inst.node.InstanceID)
	if inst.node.Answered() {
		return
	}
	value, err := p.eval(n, inst, n.source, ctx)
	if err != nil {
		p.st.addIssue(inst.path, err)
		return
	}
	if value == nil {
		return
	}
	p.write(inst, n, value)
}

func (p *pass) evalEnableWhen(n *exprNode, inst instance, ctx *expr.Context) {
	all := n.it.EnableBehavior == item.EnableAll
	var results []bool

	for _, cond := range n.it.EnableWhen {
		actual, _ := ctx.Answer(cond.Question)
		results = append(results, evalCondition(cond, actual))
	}
	if n.source != "" {
		value, err := p.eval(n, inst, n.source, ctx)
		if err != nil {
			p.st.addIssue(inst.path, err)
			// Failed enablement keeps the item visible rather than hiding
			// answered content behind a broken expression.
			return
		}
		results = append(results, truthy(value))
	}
	if len(results) == 0 {
		return
	}

	on := all
	for _, r := range results {
		if all {
			on = on && r
		} else if r {
			on = true
		}
	}
	p.st.enabled[inst.path] = on
}

func (p *pass) evalCalculated(n *exprNode, inst instance, ctx *expr.Context) {
	for _, a := range inst.node.Answers {
		if a != nil && a.UserEdited {
			return
		}
	}
	value, err := p.eval(n, inst, n.source, ctx)
	if err != nil {
		p.st.addIssue(inst.path, err)
		return
	}
	current := answerValue(inst.node)
	if reflect.DeepEqual(current, value) {
		return
	}
	p.write(inst, n, value)
}

func (p *pass) evalCandidate(n *exprNode, inst instance, ctx *expr.Context) {
	value, err := p.eval(n, inst, n.source, ctx)
	if err != nil {
		p.st.addIssue(inst.path, err)
		return
	}
	switch v := value.(type) {
	case nil:
		p.st.options[inst.path] = []any{}
	case []any:
		p.st.options[inst.path] = v
	default:
		p.st.options[inst.path] = []any{v}
	}
}

func (p *pass) evalToggle(n *exprNode, inst instance, ctx *expr.Context) {
	allowed, ok := p.st.options[inst.path]
	if !ok {
		allowed = n.it.Options()
	}

	for _, toggle := range n.it.OptionToggles {
		value, err := p.eval(n, inst, toggle.Expression, ctx)
		if err != nil {
			p.st.addIssue(inst.path, err)
			continue
		}
		if truthy(value) {
			continue
		}
		allowed = removeOptions(allowed, toggle.Options)
	}
	p.st.options[inst.path] = allowed

	// Drop answers the filtered set no longer permits.
	var kept []any
	removed := false
	for _, a := range inst.node.Answers {
		if a == nil || a.Value == nil {
			continue
		}
		if valueInSet(a.Value, allowed) {
			kept = append(kept, a.Value)
		} else {
			removed = true
		}
	}
	if !removed {
		return
	}
	var next any
	switch {
	case len(kept) == 0:
		next = nil
	case n.it.Repeats:
		next = kept
	default:
		next = kept[0]
	}
	p.write(inst, n, next)
}

// write sets an answer through the synchronizer so nested templates stay in
// step, and records the change for dependents and event emission.
func (p *pass) write(inst instance, n *exprNode, value any) {
	if _, err := p.engine.sync.SetAnswer(p.resp, inst.path, value, false); err != nil {
		p.st.addIssue(inst.path, &expr.EvalError{Expression: n.source, Cause: err})
		return
	}
	if _, dup := p.touched[inst.path]; !dup {
		p.touched[inst.path] = struct{}{}
		p.changed = append(p.changed, inst.path)
	}
}

// eval runs one expression for one instance, replaying the previous pass's
// memoized result when the node sits outside the dirty closure. Either way the
// outcome lands in st.values for the pass after this one.
func (p *pass) eval(n *exprNode, inst instance, source string, ctx *expr.Context) (any, error) {
	key := n.id + "@" + inst.path + "|" + source
	if p.scope != nil {
		if _, dirty := p.scope[n]; !dirty {
			if c, ok := p.prev[key]; ok {
				p.st.values[key] = c
				return c.value, c.err
			}
		}
	}
	value, err := p.engine.eval.Evaluate(source, ctx)
	if err != nil {
		if _, ok := err.(*expr.EvalError); !ok {
			err = &expr.EvalError{Expression: source, Cause: err}
		}
		value = nil
	}
	p.st.values[key] = cachedEval{value: value, err: err}
	return value, err
}

// ctxFor returns the evaluation context of the innermost scope in chain,
// creating and caching ancestors as needed. Each scope resolves answers in its
// own subtree first, then delegates outwards.
func (p *pass) ctxFor(chain []scopeRef) *expr.Context {
	if len(chain) == 0 {
		return p.root
	}
	last := chain[len(chain)-1]
	if ctx, ok := p.ctxs[last.path]; ok {
		return ctx
	}
	parent := p.ctxFor(chain[:len(chain)-1])
	node := last.node
	ctx := expr.NewContext(parent).WithAnswers(func(linkID string) (any, bool) {
		if m := findNode(node, linkID); m != nil {
			return answerValue(m), true
		}
		return parent.Answer(linkID)
	})
	p.ctxs[last.path] = ctx
	return ctx
}

// enumerate resolves a definition path to its live response instances,
// expanding repeating levels into one entry per index.
func (p *pass) enumerate(defPath string) []instance {
	segs := strings.Split(defPath, ".")
	var out []instance

	var rec func(container []*response.Node, defs []*item.Item, idx int, base string, chain []scopeRef)
	rec = func(container []*response.Node, defs []*item.Item, idx int, base string, chain []scopeRef) {
		linkID := segs[idx]
		def := childDef(defs, linkID)
		if def == nil {
			return
		}

		var matches []*response.Node
		for _, n := range container {
			if n != nil && n.LinkID == linkID {
				matches = append(matches, n)
			}
		}

		descend := func(n *response.Node, path string) {
			next := append(append([]scopeRef(nil), chain...), scopeRef{path: path, node: n})
			if idx == len(segs)-1 {
				out = append(out, instance{path: path, node: n, chain: next})
				return
			}
			if def.Type == item.TypeGroup {
				rec(n.Items, def.Children, idx+1, path, next)
				return
			}
			for ai, a := range n.Answers {
				childBase := path
				if def.Repeats {
					childBase = indexed(path, ai)
				}
				rec(a.Items, def.Children, idx+1, childBase, next)
			}
		}

		if def.Repeats && def.Type == item.TypeGroup {
			for i, n := range matches {
				descend(n, indexed(join(base, linkID), i))
			}
			return
		}
		if len(matches) > 0 {
			descend(matches[0], join(base, linkID))
		}
	}
	rec(p.resp.Items, p.engine.def.Items, 0, "", nil)
	return out
}

func childDef(defs []*item.Item, linkID string) *item.Item {
	for _, d := range defs {
		if d.LinkID == linkID {
			return d
		}
	}
	return nil
}

func join(base, seg string) string {
	if base == "" {
		return seg
	}
	return base + "." + seg
}

func indexed(base string, i int) string {
	return join(base, strconv.Itoa(i))
}

// findNode searches the subtree rooted at n for the first node with linkID,
// in document order, including n itself.
func findNode(n *response.Node, linkID string) *response.Node {
	if n == nil {
		return nil
	}
	if n.LinkID == linkID {
		return n
	}
	for _, a := range n.Answers {
		for _, child := range a.Items {
			if m := findNode(child, linkID); m != nil {
				return m
			}
		}
	}
	for _, child := range n.Items {
		if m := findNode(child, linkID); m != nil {
			return m
		}
	}
	return nil
}

// answerValue flattens a node's answers: repeating questions with several
// answers yield a slice, everything else the single value (nil when empty).
func answerValue(n *response.Node) any {
	if n == nil {
		return nil
	}
	if len(n.Answers) > 1 {
		return n.Values()
	}
	return n.Value()
}

func removeOptions(allowed []any, drop []any) []any {
	out := make([]any, 0, len(allowed))
	for _, opt := range allowed {
		if !valueInSet(opt, drop) {
			out = append(out, opt)
		}
	}
	return out
}
