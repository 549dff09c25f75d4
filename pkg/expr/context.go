package expr

// AnswerLookup resolves a question's current answer by link id, relative to
// the scope the expression evaluates in. The second return reports whether an
// answered question was found at all.
type AnswerLookup func(linkID string) (any, bool)

// Context carries the inputs an expression can read: variables declared on the
// evaluating item or any ancestor, and question answers resolved through the
// response tree. Contexts form a chain mirroring item nesting; sibling scopes
// never see each other's variables.
type Context struct {
	parent  *Context
	vars    map[string]any
	answers AnswerLookup
}

// NewContext creates a scope chained to parent. A nil parent starts a root
// scope.
func NewContext(parent *Context) *Context {
	return &Context{parent: parent}
}

// WithAnswers sets the answer resolver for this scope and returns the context.
func (c *Context) WithAnswers(lookup AnswerLookup) *Context {
	c.answers = lookup
	return c
}

// SetVariable binds a variable in this scope, shadowing any ancestor binding
// of the same name.
func (c *Context) SetVariable(name string, value any) {
	if c.vars == nil {
		c.vars = make(map[string]any)
	}
	c.vars[name] = value
}

// Variable resolves a variable by walking the scope chain outwards.
func (c *Context) Variable(name string) (any, bool) {
	for scope := c; scope != nil; scope = scope.parent {
		if scope.vars != nil {
			if v, ok := scope.vars[name]; ok {
				return v, true
			}
		}
	}
	return nil, false
}

// HasVariable reports whether name is bound anywhere in the scope chain.
func (c *Context) HasVariable(name string) bool {
	_, ok := c.Variable(name)
	return ok
}

// Answer resolves a question answer by link id using the nearest scope that
// has an answer resolver installed.
func (c *Context) Answer(linkID string) (any, bool) {
	for scope := c; scope != nil; scope = scope.parent {
		if scope.answers != nil {
			return scope.answers(linkID)
		}
	}
	return nil, false
}

// Lookup resolves an identifier: variables shadow question answers.
func (c *Context) Lookup(name string) (any, bool) {
	if v, ok := c.Variable(name); ok {
		return v, true
	}
	return c.Answer(name)
}
