package response

import (
	"github.com/google/uuid"
)

// Answer holds one value of a response node. Repeating questions carry one
// Answer per value; answers own nested response nodes when the question
// declares nested items.
type Answer struct {
	// ID is a stable identity for the answer instance, kept across syncs so
	// evaluation state can follow an answer as siblings are added or removed.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	Value any `json:"value,omitempty" yaml:"value,omitempty"`

	// UserEdited marks answers the user typed directly. Calculated expressions
	// never overwrite a user-edited answer until the flag is cleared.
	UserEdited bool `json:"userEdited,omitempty" yaml:"userEdited,omitempty"`

	Items []*Node `json:"items,omitempty" yaml:"items,omitempty"`
}

// Node mirrors one item instance of the definition tree. Repeating groups
// appear as multiple sibling nodes sharing a link id, one per instance.
type Node struct {
	LinkID string `json:"linkId" yaml:"linkId"`

	// InstanceID identifies one instance of a repeating item across syncs.
	InstanceID string `json:"instanceId,omitempty" yaml:"instanceId,omitempty"`

	Answers []*Answer `json:"answers,omitempty" yaml:"answers,omitempty"`
	Items   []*Node   `json:"items,omitempty" yaml:"items,omitempty"`
}

// Tree is the response forest paired with one definition tree.
type Tree struct {
	Items []*Node `json:"items" yaml:"items"`
}

// NewNode creates an empty response node for linkID with a fresh instance id.
func NewNode(linkID string) *Node {
	return &Node{LinkID: linkID, InstanceID: uuid.NewString()}
}

// NewAnswer wraps a value in an answer with a fresh id.
func NewAnswer(value any) *Answer {
	return &Answer{ID: uuid.NewString(), Value: value}
}

// Value returns the first answer value, or nil when unanswered.
func (n *Node) Value() any {
	if n == nil || len(n.Answers) == 0 {
		return nil
	}
	return n.Answers[0].Value
}

// Values returns every answer value in order.
func (n *Node) Values() []any {
	if n == nil || len(n.Answers) == 0 {
		return nil
	}
	out := make([]any, 0, len(n.Answers))
	for _, a := range n.Answers {
		out = append(out, a.Value)
	}
	return out
}

// Answered reports whether the node carries at least one non-nil answer value.
func (n *Node) Answered() bool {
	if n == nil {
		return false
	}
	for _, a := range n.Answers {
		if a != nil && a.Value != nil {
			return true
		}
	}
	return false
}

// Clone deep-copies the tree. Snapshots hand clones to readers so an
// in-progress mutation can never leak through.
func (t *Tree) Clone() *Tree {
	if t == nil {
		return nil
	}
	return &Tree{Items: cloneNodes(t.Items)}
}

// Clone deep-copies the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{
		LinkID:     n.LinkID,
		InstanceID: n.InstanceID,
		Items:      cloneNodes(n.Items),
	}
	if len(n.Answers) > 0 {
		out.Answers = make([]*Answer, 0, len(n.Answers))
		for _, a := range n.Answers {
			out.Answers = append(out.Answers, a.Clone())
		}
	}
	return out
}

// Clone deep-copies the answer.
func (a *Answer) Clone() *Answer {
	if a == nil {
		return nil
	}
	return &Answer{
		ID:         a.ID,
		Value:      deepCopyValue(a.Value),
		UserEdited: a.UserEdited,
		Items:      cloneNodes(a.Items),
	}
}

func cloneNodes(nodes []*Node) []*Node {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Clone())
	}
	return out
}

func deepCopyValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		clone := make(map[string]any, len(typed))
		for k, v := range typed {
			clone[k] = deepCopyValue(v)
		}
		return clone
	case []any:
		clone := make([]any, len(typed))
		for i, v := range typed {
			clone[i] = deepCopyValue(v)
		}
		return clone
	default:
		return typed
	}
}
