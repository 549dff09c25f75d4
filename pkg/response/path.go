package response

import (
	"fmt"
	"strconv"
	"strings"
)

// Paths address response nodes with dotted segments of link ids, e.g.
// "demographics.name". A numeric segment selects one instance of a repeating
// item ("family.1.name") or one answer of a repeating question ("tags.2").
// Non-repeating items omit the index.

func splitPath(path string) []string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, ".")
}

func joinPath(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}

func indexedPath(parent, linkID string, idx int) string {
	return joinPath(parent, linkID) + "." + strconv.Itoa(idx)
}

func isIndex(seg string) (int, bool) {
	n, err := strconv.Atoi(seg)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Resolve walks the tree to the node addressed by path.
func (t *Tree) Resolve(path string) (*Node, error) {
	segs := splitPath(path)
	if len(segs) == 0 {
		return nil, fmt.Errorf("response: empty path")
	}
	node, _, err := resolveSegments(t.Items, segs, path)
	return node, err
}

// resolveSegments returns the addressed node and the answer index selected by
// a trailing numeric segment (-1 when none).
func resolveSegments(nodes []*Node, segs []string, full string) (*Node, int, error) {
	var current *Node
	answerIdx := -1

	for len(segs) > 0 {
		seg := segs[0]
		segs = segs[1:]

		matching := filterByLinkID(nodes, seg)
		if len(matching) == 0 {
			return nil, -1, fmt.Errorf("response: no node %q in path %q", seg, full)
		}

		idx := 0
		answerIdx = -1
		if len(segs) > 0 {
			if n, ok := isIndex(segs[0]); ok {
				segs = segs[1:]
				if len(matching) > 1 || len(matching[0].Answers) == 0 {
					if n >= len(matching) {
						return nil, -1, fmt.Errorf("response: instance index %d out of range for %q in path %q", n, seg, full)
					}
					idx = n
				} else {
					if n >= len(matching[0].Answers) {
						return nil, -1, fmt.Errorf("response: answer index %d out of range for %q in path %q", n, seg, full)
					}
					answerIdx = n
				}
			}
		}

		current = matching[idx]
		if len(segs) == 0 {
			return current, answerIdx, nil
		}
		nodes = childContainer(current, answerIdx)
	}
	return current, answerIdx, nil
}

// childContainer picks where a node's children live: groups nest directly,
// questions nest under an answer.
func childContainer(n *Node, answerIdx int) []*Node {
	if n == nil {
		return nil
	}
	if answerIdx >= 0 && answerIdx < len(n.Answers) {
		return n.Answers[answerIdx].Items
	}
	if len(n.Items) > 0 {
		return n.Items
	}
	if len(n.Answers) > 0 {
		return n.Answers[0].Items
	}
	return nil
}

func filterByLinkID(nodes []*Node, linkID string) []*Node {
	var out []*Node
	for _, n := range nodes {
		if n != nil && n.LinkID == linkID {
			out = append(out, n)
		}
	}
	return out
}
