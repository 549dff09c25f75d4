package response

import (
	"fmt"

	"github.com/goliatone/go-formstate/pkg/item"
)

// Issue records a recovered structural divergence between the definition and
// response trees. The offending subtree is discarded; syncing always produces
// a conformant tree.
type Issue struct {
	Path   string
	Reason string
}

func (i Issue) String() string {
	return fmt.Sprintf("response: sync at %q: %s", i.Path, i.Reason)
}

// Synchronizer keeps a response tree in structural correspondence with one
// definition tree: exactly one node per non-repeating item, one node per live
// instance of a repeating group, and nested items cloned under each answer of
// a question that declares children.
type Synchronizer struct {
	def *item.Tree
}

// NewSynchronizer binds a synchronizer to a definition tree.
func NewSynchronizer(def *item.Tree) *Synchronizer {
	return &Synchronizer{def: def}
}

// Sync reconciles the whole response tree in place and reports recovered
// divergences. Sync is idempotent: syncing an already-conformant tree changes
// nothing and reports no issues.
func (s *Synchronizer) Sync(t *Tree) []Issue {
	var issues []Issue
	t.Items = syncLevel(s.def.Items, t.Items, "", &issues)
	return issues
}

func syncLevel(defs []*item.Item, nodes []*Node, base string, issues *[]Issue) []*Node {
	known := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		known[def.LinkID] = struct{}{}
	}
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if _, ok := known[n.LinkID]; !ok {
			*issues = append(*issues, Issue{
				Path:   joinPath(base, n.LinkID),
				Reason: "orphaned link id; discarding subtree",
			})
		}
	}

	var out []*Node
	for _, def := range defs {
		matching := filterByLinkID(nodes, def.LinkID)

		if def.Repeats && def.Type == item.TypeGroup {
			// One node per live instance; instances are created and removed
			// only through AddInstance/RemoveInstance.
			for idx, inst := range matching {
				syncNode(def, inst, indexedPath(base, def.LinkID, idx), issues)
				out = append(out, inst)
			}
			continue
		}

		var node *Node
		if len(matching) == 0 {
			node = NewNode(def.LinkID)
		} else {
			node = matching[0]
			for i := 1; i < len(matching); i++ {
				*issues = append(*issues, Issue{
					Path:   indexedPath(base, def.LinkID, i),
					Reason: "duplicate response node for non-repeating item; discarding",
				})
			}
		}
		syncNode(def, node, joinPath(base, def.LinkID), issues)
		out = append(out, node)
	}
	return out
}

func syncNode(def *item.Item, n *Node, path string, issues *[]Issue) {
	if n.InstanceID == "" {
		n.InstanceID = NewNode(def.LinkID).InstanceID
	}

	if def.Type == item.TypeGroup {
		if len(n.Answers) > 0 {
			*issues = append(*issues, Issue{Path: path, Reason: "group node carried answers; discarding"})
			n.Answers = nil
		}
		n.Items = syncLevel(def.Children, n.Items, path, issues)
		return
	}

	if !def.Repeats && len(n.Answers) > 1 {
		*issues = append(*issues, Issue{Path: path, Reason: "multiple answers on non-repeating item; keeping first"})
		n.Answers = n.Answers[:1]
	}

	// Questions with nested items clone the child template under each answer
	// once the answer exists.
	if len(def.Children) > 0 {
		for _, a := range n.Answers {
			a.Items = syncLevel(def.Children, a.Items, path, issues)
		}
	}
	if len(n.Items) > 0 {
		*issues = append(*issues, Issue{Path: path, Reason: "question node nested items outside answers; discarding"})
		n.Items = nil
	}
}

// Seed applies static initial values to unanswered questions: declared
// Initial values first, then initialSelected answer options. Expression-based
// initials are the evaluation engine's job.
func (s *Synchronizer) Seed(t *Tree) {
	seedLevel(s.def.Items, t.Items)
}

func seedLevel(defs []*item.Item, nodes []*Node) {
	for _, def := range defs {
		for _, n := range filterByLinkID(nodes, def.LinkID) {
			if def.Type == item.TypeGroup {
				seedLevel(def.Children, n.Items)
				continue
			}
			if len(n.Answers) == 0 {
				for _, v := range def.Initial {
					n.Answers = append(n.Answers, NewAnswer(v))
				}
				if len(def.Initial) == 0 {
					for _, opt := range def.AnswerOptions {
						if opt.InitialSelected {
							n.Answers = append(n.Answers, NewAnswer(opt.Value))
						}
					}
				}
			}
			for _, a := range n.Answers {
				seedLevel(def.Children, a.Items)
			}
		}
	}
}

// AddInstance appends a fresh instance of the repeating group addressed by
// path, its children seeded from the definition with no answers.
func (s *Synchronizer) AddInstance(t *Tree, path string) (*Node, error) {
	def, err := s.defItemAt(path)
	if err != nil {
		return nil, err
	}
	if !def.Repeats || def.Type != item.TypeGroup {
		return nil, fmt.Errorf("response: %q is not a repeating group", path)
	}

	container, err := s.containerFor(t, path)
	if err != nil {
		return nil, err
	}

	existing := len(filterByLinkID(*container, def.LinkID))
	if def.MaxOccurs > 0 && existing >= def.MaxOccurs {
		return nil, fmt.Errorf("response: %q already has the maximum of %d instances", path, def.MaxOccurs)
	}

	inst := NewNode(def.LinkID)
	var issues []Issue
	inst.Items = syncLevel(def.Children, nil, path, &issues)
	seedLevel(def.Children, inst.Items)

	*container = insertInstance(*container, def.LinkID, inst)
	return inst, nil
}

// RemoveInstance discards instance index of the repeating group addressed by
// path along with all of its nested state.
func (s *Synchronizer) RemoveInstance(t *Tree, path string, index int) error {
	def, err := s.defItemAt(path)
	if err != nil {
		return err
	}
	if !def.Repeats || def.Type != item.TypeGroup {
		return fmt.Errorf("response: %q is not a repeating group", path)
	}

	container, err := s.containerFor(t, path)
	if err != nil {
		return err
	}

	seen := -1
	for i, n := range *container {
		if n.LinkID != def.LinkID {
			continue
		}
		seen++
		if seen == index {
			*container = append((*container)[:i], (*container)[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("response: %q has no instance %d", path, index)
}

// insertInstance places inst after the last sibling instance, or at the end of
// the container when it is the first instance.
func insertInstance(container []*Node, linkID string, inst *Node) []*Node {
	last := -1
	for i, n := range container {
		if n.LinkID == linkID {
			last = i
		}
	}
	if last < 0 {
		return append(container, inst)
	}
	out := make([]*Node, 0, len(container)+1)
	out = append(out, container[:last+1]...)
	out = append(out, inst)
	out = append(out, container[last+1:]...)
	return out
}

// defItemAt resolves the definition item addressed by a response path,
// skipping numeric instance segments.
func (s *Synchronizer) defItemAt(path string) (*item.Item, error) {
	segs := splitPath(path)
	if len(segs) == 0 {
		return nil, fmt.Errorf("response: empty path")
	}
	items := s.def.Items
	var current *item.Item
	for _, seg := range segs {
		if _, ok := isIndex(seg); ok {
			continue
		}
		current = nil
		for _, def := range items {
			if def.LinkID == seg {
				current = def
				break
			}
		}
		if current == nil {
			return nil, fmt.Errorf("response: no definition item %q in path %q", seg, path)
		}
		items = current.Children
	}
	return current, nil
}

// containerFor locates the mutable sibling slice holding instances of the item
// addressed by path.
func (s *Synchronizer) containerFor(t *Tree, path string) (*[]*Node, error) {
	segs := splitPath(path)
	if len(segs) == 0 {
		return nil, fmt.Errorf("response: empty path")
	}
	// Strip the final link id segment; what remains addresses the parent.
	parentSegs := segs[:len(segs)-1]
	if len(parentSegs) == 0 {
		return &t.Items, nil
	}
	parent, answerIdx, err := resolveSegments(t.Items, parentSegs, path)
	if err != nil {
		return nil, err
	}
	if answerIdx >= 0 && answerIdx < len(parent.Answers) {
		return &parent.Answers[answerIdx].Items, nil
	}
	if len(parent.Answers) > 0 && len(parent.Items) == 0 {
		return &parent.Answers[0].Items, nil
	}
	return &parent.Items, nil
}
