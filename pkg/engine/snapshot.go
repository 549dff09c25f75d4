package engine

import (
	"strings"

	"github.com/goliatone/go-formstate/pkg/expr"
	"github.com/goliatone/go-formstate/pkg/item"
	"github.com/goliatone/go-formstate/pkg/response"
	"github.com/goliatone/go-formstate/pkg/validation"
)

// Snapshot is an immutable view of a session after one evaluation pass.
// Readers may hold a snapshot indefinitely; later mutations produce new
// snapshots and never touch old ones.
type Snapshot struct {
	gen  int64
	def  *item.Tree
	resp *response.Tree
	st   *state

	results    map[string][]validation.Result
	syncIssues []response.Issue

	mode  Mode
	page  int
	pages []string
}

// Generation is the monotonically increasing mutation counter the snapshot
// was produced at.
func (s *Snapshot) Generation() int64 { return s.gen }

// Definition returns the definition tree the snapshot was evaluated against.
// Callers must treat it as read only.
func (s *Snapshot) Definition() *item.Tree { return s.def }

// Mode returns the display mode at snapshot time.
func (s *Snapshot) Mode() Mode { return s.mode }

// Page returns the current page index; zero when the form is not paginated.
func (s *Snapshot) Page() int { return s.page }

// Pages returns the link ids of the page groups, in order. Empty when the
// definition declares no pages.
func (s *Snapshot) Pages() []string {
	return append([]string(nil), s.pages...)
}

// Response returns a deep copy of the response tree. Mutating it never
// affects the session.
func (s *Snapshot) Response() *response.Tree { return s.resp.Clone() }

// Value resolves the current answer at a response path, nil when unanswered
// or unresolvable.
func (s *Snapshot) Value(path string) any {
	n, err := s.resp.Resolve(path)
	if err != nil {
		return nil
	}
	return answerValue(n)
}

// Enabled reports the effective enablement of a response path: the item and
// all its ancestors must be enabled.
func (s *Snapshot) Enabled(path string) bool {
	return s.st.effectiveEnabled(path)
}

// Options returns the dynamically produced or filtered option set for a path.
// The second return is false when only the static definition options apply.
func (s *Snapshot) Options(path string) ([]any, bool) {
	opts, ok := s.st.options[path]
	if !ok {
		return nil, false
	}
	return append([]any(nil), opts...), true
}

// Issues returns the expression failures of the pass, keyed by response path.
// Cyclic expressions report their cycle error here on every pass.
func (s *Snapshot) Issues() map[string][]error {
	out := make(map[string][]error, len(s.st.issues))
	for path, errs := range s.st.issues {
		out[path] = append([]error(nil), errs...)
	}
	return out
}

// Variables returns the evaluated variable bindings of the scope at path.
func (s *Snapshot) Variables(path string) map[string]any {
	scope := s.st.variables[path]
	if scope == nil {
		return nil
	}
	out := make(map[string]any, len(scope))
	for name, value := range scope {
		out[name] = value
	}
	return out
}

// SyncIssues returns the structural divergences recovered while reconciling
// the response tree, cumulative since the session opened. Each recovery
// discarded the offending subtree.
func (s *Snapshot) SyncIssues() []response.Issue {
	return append([]response.Issue(nil), s.syncIssues...)
}

// Validation returns the validation results keyed by response path.
func (s *Snapshot) Validation() map[string][]validation.Result {
	out := make(map[string][]validation.Result, len(s.results))
	for path, rs := range s.results {
		out[path] = append([]validation.Result(nil), rs...)
	}
	return out
}

// Blocking reports whether any validation result blocks submission.
func (s *Snapshot) Blocking() bool { return validation.Blocking(s.results) }

// ContextFor rebuilds the expression context of the scope at path, layering
// ancestor variables and subtree-scoped answer resolution. Intended for
// ad-hoc expression evaluation against a settled snapshot.
func (s *Snapshot) ContextFor(path string, external map[string]any) *expr.Context {
	resp := s.resp
	ctx := expr.NewContext(nil).WithAnswers(func(linkID string) (any, bool) {
		for _, n := range resp.Items {
			if m := findNode(n, linkID); m != nil {
				return answerValue(m), true
			}
		}
		return nil, false
	})
	for name, value := range external {
		ctx.SetVariable(name, value)
	}
	if path == "" {
		return ctx
	}

	segs := strings.Split(path, ".")
	prefix := ""
	for i, seg := range segs {
		prefix = join(prefix, seg)
		if i+1 < len(segs) {
			// A trailing index completes this scope; wait for it.
			if _, isIdx := atoiOK(segs[i+1]); isIdx {
				continue
			}
		}
		node, err := resp.Resolve(prefix)
		if err != nil {
			break
		}
		parent := ctx
		ctx = expr.NewContext(parent).WithAnswers(func(linkID string) (any, bool) {
			if m := findNode(node, linkID); m != nil {
				return answerValue(m), true
			}
			return parent.Answer(linkID)
		})
		for name, value := range s.st.variables[prefix] {
			ctx.SetVariable(name, value)
		}
	}
	return ctx
}

// ExportResponse returns a deep copy of the response tree with every disabled
// subtree removed. This is the shape handed to downstream consumers on
// submission.
func (s *Snapshot) ExportResponse() *response.Tree {
	out := s.resp.Clone()
	out.Items = s.pruneDisabled(s.def.Items, out.Items, "")
	return out
}

func (s *Snapshot) pruneDisabled(defs []*item.Item, nodes []*response.Node, base string) []*response.Node {
	var kept []*response.Node
	counts := make(map[string]int)
	for _, n := range nodes {
		if n == nil {
			continue
		}
		def := childDef(defs, n.LinkID)
		if def == nil {
			continue
		}
		path := join(base, n.LinkID)
		if def.Repeats && def.Type == item.TypeGroup {
			path = indexed(path, counts[n.LinkID])
			counts[n.LinkID]++
		}
		if on, ok := s.st.enabled[path]; ok && !on {
			continue
		}
		if def.Type == item.TypeGroup {
			n.Items = s.pruneDisabled(def.Children, n.Items, path)
		} else {
			for ai, a := range n.Answers {
				childBase := path
				if def.Repeats {
					childBase = indexed(path, ai)
				}
				a.Items = s.pruneDisabled(def.Children, a.Items, childBase)
			}
		}
		kept = append(kept, n)
	}
	return kept
}

func atoiOK(seg string) (int, bool) {
	if seg == "" {
		return 0, false
	}
	n := 0
	for _, r := range seg {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}
