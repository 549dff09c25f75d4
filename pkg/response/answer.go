package response

import "fmt"

// SetAnswer writes an answer at path. A nil value clears the answer slot. A
// []any value on a repeating question produces one answer per element; on a
// non-repeating question it is rejected. Existing answer identities and nested
// items are preserved positionally so evaluation state follows the answer.
func (s *Synchronizer) SetAnswer(t *Tree, path string, value any, userEdited bool) (*Node, error) {
	def, err := s.defItemAt(path)
	if err != nil {
		return nil, err
	}
	if !def.Type.IsQuestion() {
		return nil, fmt.Errorf("response: %q is a %s item and cannot hold answers", path, def.Type)
	}

	node, err := t.Resolve(path)
	if err != nil {
		return nil, err
	}

	switch typed := value.(type) {
	case nil:
		node.Answers = nil
	case []any:
		if !def.Repeats {
			return nil, fmt.Errorf("response: %q does not repeat; cannot set %d answers", path, len(typed))
		}
		node.Answers = reuseAnswers(node.Answers, typed, userEdited)
	default:
		node.Answers = reuseAnswers(node.Answers, []any{value}, userEdited)
	}

	if len(def.Children) > 0 {
		var issues []Issue
		for _, a := range node.Answers {
			a.Items = syncLevel(def.Children, a.Items, path, &issues)
		}
	}
	return node, nil
}

// ClearUserEdited resets the user-edited flags at path so a calculated
// expression may overwrite the answer on the next evaluation pass.
func (s *Synchronizer) ClearUserEdited(t *Tree, path string) error {
	node, err := t.Resolve(path)
	if err != nil {
		return err
	}
	for _, a := range node.Answers {
		a.UserEdited = false
	}
	return nil
}

func reuseAnswers(existing []*Answer, values []any, userEdited bool) []*Answer {
	out := make([]*Answer, 0, len(values))
	for i, v := range values {
		if i < len(existing) && existing[i] != nil {
			a := existing[i]
			a.Value = v
			a.UserEdited = userEdited
			out = append(out, a)
			continue
		}
		a := NewAnswer(v)
		a.UserEdited = userEdited
		out = append(out, a)
	}
	return out
}
