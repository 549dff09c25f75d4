package engine

import (
	"sort"

	"github.com/goliatone/go-formstate/pkg/expr"
	"github.com/goliatone/go-formstate/pkg/item"
)

// exprKind orders the expression kinds attached to one item. The numeric order
// doubles as the evaluation priority within a single item: variables first,
// then initial values, enablement, calculations, and option filtering last.
type exprKind int

const (
	kindVariable exprKind = iota
	kindInitial
	kindEnableWhen
	kindCalculated
	kindCandidate
	kindToggle
)

func (k exprKind) String() string {
	switch k {
	case kindVariable:
		return "variable"
	case kindInitial:
		return "initial"
	case kindEnableWhen:
		return "enableWhen"
	case kindCalculated:
		return "calculated"
	case kindCandidate:
		return "candidate"
	case kindToggle:
		return "optionsToggle"
	default:
		return "unknown"
	}
}

// exprNode is one (item, expression-kind) vertex of the dependency graph.
type exprNode struct {
	id      string
	defPath string
	it      *item.Item
	kind    exprKind
	name    string // variable name for kindVariable
	source  string // expression text (empty for condition-based enableWhen)
	seq     int    // document order with kind priority baked in
	refs    []string
}

// graph holds the resolved dependency structure of a definition tree. It is
// computed once per form load; the definition tree never changes afterwards.
type graph struct {
	nodes []*exprNode

	// order is the deterministic topological evaluation order. Cyclic nodes
	// and their dependents are excluded.
	order []*exprNode

	// cycleErrs maps excluded nodes to the error surfaced for them.
	cycleErrs map[*exprNode]error

	// consumers is the producer→consumer adjacency.
	consumers map[*exprNode][]*exprNode

	// byAnswer maps a question link id to the nodes reading its answer.
	byAnswer map[string][]*exprNode
}

// refsFunc extracts the identifiers an expression reads.
type refsFunc func(expression string) []string

// buildGraph scans every expression in the definition tree, resolves its
// references against visible variables and question link ids, and produces a
// deterministic topological order with cycles marked.
func buildGraph(def *item.Tree, refs refsFunc) *graph {
	g := &graph{
		cycleErrs: make(map[*exprNode]error),
		consumers: make(map[*exprNode][]*exprNode),
		byAnswer:  make(map[string][]*exprNode),
	}

	// Variable scopes nest with the item tree; name → declaring node.
	var scopes []map[string]*exprNode
	rootScope := make(map[string]*exprNode)
	scopes = append(scopes, rootScope)

	seq := 0
	// producerByLink maps a link id to the nodes that write its answer
	// (calculated, initial, toggle pruning).
	producerByLink := make(map[string][]*exprNode)

	var walk func(items []*item.Item, base string)
	walk = func(items []*item.Item, base string) {
		for _, it := range items {
			defPath := base
			if defPath == "" {
				defPath = it.LinkID
			} else {
				defPath = base + "." + it.LinkID
			}

			scope := make(map[string]*exprNode)
			scopes = append(scopes, scope)

			add := func(kind exprKind, name, source string) *exprNode {
				n := &exprNode{
					id:      defPath + "#" + kind.String() + nameSuffix(name),
					defPath: defPath,
					it:      it,
					kind:    kind,
					name:    name,
					source:  source,
					seq:     seq,
				}
				seq++
				if source != "" {
					n.refs = refs(source)
				}
				g.nodes = append(g.nodes, n)
				return n
			}

			for _, v := range it.Variables {
				n := add(kindVariable, v.Name, v.Expression)
				scope[v.Name] = n
			}
			if it.InitialExpression != "" {
				n := add(kindInitial, "", it.InitialExpression)
				producerByLink[it.LinkID] = append(producerByLink[it.LinkID], n)
			}
			if it.EnableWhenExpression != "" || len(it.EnableWhen) > 0 {
				n := add(kindEnableWhen, "", it.EnableWhenExpression)
				for _, cond := range it.EnableWhen {
					n.refs = append(n.refs, cond.Question)
				}
			}
			if it.CalculatedExpression != "" {
				n := add(kindCalculated, "", it.CalculatedExpression)
				producerByLink[it.LinkID] = append(producerByLink[it.LinkID], n)
			}
			if it.CandidateExpression != "" {
				add(kindCandidate, "", it.CandidateExpression)
			}
			if len(it.OptionToggles) > 0 {
				n := add(kindToggle, "", "")
				for _, toggle := range it.OptionToggles {
					n.refs = append(n.refs, refs(toggle.Expression)...)
				}
				// Filtering can remove a selected answer.
				producerByLink[it.LinkID] = append(producerByLink[it.LinkID], n)
			}

			// Resolve references for the nodes just added: a name visible as a
			// variable binds to its declaring node, anything else reads a
			// question answer.
			for _, n := range g.nodes[len(g.nodes)-countExprs(it):] {
				for _, ref := range n.refs {
					if vn := lookupVar(scopes, ref, n); vn != nil {
						g.consumers[vn] = append(g.consumers[vn], n)
						continue
					}
					g.byAnswer[ref] = append(g.byAnswer[ref], n)
				}
			}

			walk(it.Children, defPath)
			scopes = scopes[:len(scopes)-1]
		}
	}
	walk(def.Items, "")

	// Producer edges: a node writing an answer feeds every node reading it.
	for linkID, producers := range producerByLink {
		for _, p := range producers {
			for _, c := range g.byAnswer[linkID] {
				if c != p {
					g.consumers[p] = append(g.consumers[p], c)
				}
			}
		}
	}

	g.sortOrder()
	return g
}

func nameSuffix(name string) string {
	if name == "" {
		return ""
	}
	return ":" + name
}

func countExprs(it *item.Item) int {
	n := len(it.Variables)
	if it.InitialExpression != "" {
		n++
	}
	if it.EnableWhenExpression != "" || len(it.EnableWhen) > 0 {
		n++
	}
	if it.CalculatedExpression != "" {
		n++
	}
	if it.CandidateExpression != "" {
		n++
	}
	if len(it.OptionToggles) > 0 {
		n++
	}
	return n
}

// lookupVar resolves ref against the variable scopes from innermost out. A
// variable expression may reference variables declared earlier on the same
// item or on any ancestor; it never sees later siblings.
func lookupVar(scopes []map[string]*exprNode, ref string, reader *exprNode) *exprNode {
	for i := len(scopes) - 1; i >= 0; i-- {
		if n, ok := scopes[i][ref]; ok {
			if n == reader {
				continue
			}
			return n
		}
	}
	return nil
}

// sortOrder runs Kahn's algorithm over the consumer adjacency, breaking ties
// by document order so evaluation is deterministic. Nodes left with positive
// in-degree participate in (or depend on) a cycle: they are excluded from the
// order and tagged with an error instead of looping.
func (g *graph) sortOrder() {
	indeg := make(map[*exprNode]int, len(g.nodes))
	for _, n := range g.nodes {
		indeg[n] = 0
	}
	for _, consumers := range g.consumers {
		for _, c := range consumers {
			indeg[c]++
		}
	}

	ready := make([]*exprNode, 0, len(g.nodes))
	for _, n := range g.nodes {
		if indeg[n] == 0 {
			ready = append(ready, n)
		}
	}
	sortBySeq(ready)

	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		g.order = append(g.order, n)

		var released []*exprNode
		for _, c := range g.consumers[n] {
			indeg[c]--
			if indeg[c] == 0 {
				released = append(released, c)
			}
		}
		if len(released) > 0 {
			ready = append(ready, released...)
			sortBySeq(ready)
		}
	}

	if len(g.order) == len(g.nodes) {
		return
	}

	remaining := make([]*exprNode, 0)
	for _, n := range g.nodes {
		if indeg[n] > 0 {
			remaining = append(remaining, n)
		}
	}
	members := make([]string, 0, len(remaining))
	for _, n := range remaining {
		members = append(members, n.id)
	}
	sort.Strings(members)
	err := &expr.CycleError{Members: members}
	for _, n := range remaining {
		g.cycleErrs[n] = err
	}
}

func sortBySeq(nodes []*exprNode) {
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].seq < nodes[j].seq })
}

// affected returns the transitive closure of nodes that must re-evaluate after
// the given question answers changed.
func (g *graph) affected(changedLinkIDs map[string]struct{}) map[*exprNode]struct{} {
	dirty := make(map[*exprNode]struct{})
	var queue []*exprNode
	for linkID := range changedLinkIDs {
		for _, n := range g.byAnswer[linkID] {
			if _, seen := dirty[n]; !seen {
				dirty[n] = struct{}{}
				queue = append(queue, n)
			}
		}
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, c := range g.consumers[n] {
			if _, seen := dirty[c]; !seen {
				dirty[c] = struct{}{}
				queue = append(queue, c)
			}
		}
	}
	return dirty
}
