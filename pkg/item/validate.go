package item

import (
	"fmt"
	"strings"
)

// DefinitionError reports a malformed item tree. Definition errors are fatal:
// a tree that fails Validate must not be handed to a session.
type DefinitionError struct {
	LinkID string
	Reason string
}

func (e *DefinitionError) Error() string {
	if e.LinkID == "" {
		return fmt.Sprintf("item: invalid definition: %s", e.Reason)
	}
	return fmt.Sprintf("item: invalid definition at %q: %s", e.LinkID, e.Reason)
}

// Validate checks structural invariants of the definition tree and returns the
// first DefinitionError found in document order.
func (t *Tree) Validate() error {
	if t == nil {
		return &DefinitionError{Reason: "tree is nil"}
	}
	if err := validateSiblings(t.Items); err != nil {
		return err
	}
	var firstErr error
	t.Walk(func(it *Item, _ []*Item) bool {
		if firstErr != nil {
			return false
		}
		if err := validateItem(it); err != nil {
			firstErr = err
			return false
		}
		if err := validateSiblings(it.Children); err != nil {
			firstErr = err
			return false
		}
		return true
	})
	return firstErr
}

func validateSiblings(items []*Item) error {
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it == nil {
			return &DefinitionError{Reason: "nil item in tree"}
		}
		id := strings.TrimSpace(it.LinkID)
		if id == "" {
			return &DefinitionError{Reason: "item is missing a linkId"}
		}
		if _, dup := seen[id]; dup {
			return &DefinitionError{LinkID: id, Reason: "duplicate linkId among siblings"}
		}
		seen[id] = struct{}{}
	}
	return nil
}

func validateItem(it *Item) error {
	switch it.Type {
	case "":
		return &DefinitionError{LinkID: it.LinkID, Reason: "item is missing a type"}
	case TypeGroup:
		if len(it.Initial) > 0 || it.InitialExpression != "" {
			return &DefinitionError{LinkID: it.LinkID, Reason: "groups cannot declare initial values"}
		}
		if it.CalculatedExpression != "" {
			return &DefinitionError{LinkID: it.LinkID, Reason: "groups cannot declare a calculated expression"}
		}
	case TypeDisplay:
		if it.Required {
			return &DefinitionError{LinkID: it.LinkID, Reason: "display items cannot be required"}
		}
		if len(it.Initial) > 0 || it.InitialExpression != "" || it.CalculatedExpression != "" {
			return &DefinitionError{LinkID: it.LinkID, Reason: "display items cannot declare values"}
		}
		if len(it.Children) > 0 {
			return &DefinitionError{LinkID: it.LinkID, Reason: "display items cannot have children"}
		}
	}

	if len(it.Initial) > 0 && it.InitialExpression != "" {
		return &DefinitionError{LinkID: it.LinkID, Reason: "initial values and initialExpression are mutually exclusive"}
	}
	if len(it.Initial) > 0 && hasInitialSelected(it.AnswerOptions) {
		return &DefinitionError{LinkID: it.LinkID, Reason: "initial values and initialSelected answer options are mutually exclusive"}
	}
	if it.InitialExpression != "" && hasInitialSelected(it.AnswerOptions) {
		return &DefinitionError{LinkID: it.LinkID, Reason: "initialExpression and initialSelected answer options are mutually exclusive"}
	}
	if len(it.Initial) > 1 && !it.Repeats {
		return &DefinitionError{LinkID: it.LinkID, Reason: "multiple initial values require repeats"}
	}
	if it.MaxOccurs > 0 && it.MaxOccurs < it.MinOccurs {
		return &DefinitionError{LinkID: it.LinkID, Reason: "maxOccurs is smaller than minOccurs"}
	}
	if (it.MinOccurs > 1 || it.MaxOccurs > 1) && !it.Repeats {
		return &DefinitionError{LinkID: it.LinkID, Reason: "occurrence bounds above one require repeats"}
	}

	for _, v := range it.Variables {
		if strings.TrimSpace(v.Name) == "" {
			return &DefinitionError{LinkID: it.LinkID, Reason: "variable is missing a name"}
		}
		if strings.TrimSpace(v.Expression) == "" {
			return &DefinitionError{LinkID: it.LinkID, Reason: fmt.Sprintf("variable %q is missing an expression", v.Name)}
		}
	}
	for _, c := range it.Constraints {
		if strings.TrimSpace(c.Key) == "" {
			return &DefinitionError{LinkID: it.LinkID, Reason: "constraint is missing a key"}
		}
		if strings.TrimSpace(c.Expression) == "" {
			return &DefinitionError{LinkID: it.LinkID, Reason: fmt.Sprintf("constraint %q is missing an expression", c.Key)}
		}
		switch c.Severity {
		case "", SeverityError, SeverityWarning:
		default:
			return &DefinitionError{LinkID: it.LinkID, Reason: fmt.Sprintf("constraint %q has unknown severity %q", c.Key, c.Severity)}
		}
	}
	for _, cond := range it.EnableWhen {
		if strings.TrimSpace(cond.Question) == "" {
			return &DefinitionError{LinkID: it.LinkID, Reason: "enableWhen condition is missing a question"}
		}
		switch cond.Operator {
		case "exists", "=", "!=", ">", "<", ">=", "<=":
		default:
			return &DefinitionError{LinkID: it.LinkID, Reason: fmt.Sprintf("enableWhen has unknown operator %q", cond.Operator)}
		}
	}
	switch it.EnableBehavior {
	case "", EnableAny, EnableAll:
	default:
		return &DefinitionError{LinkID: it.LinkID, Reason: fmt.Sprintf("unknown enableBehavior %q", it.EnableBehavior)}
	}
	return nil
}

func hasInitialSelected(opts []AnswerOption) bool {
	for _, opt := range opts {
		if opt.InitialSelected {
			return true
		}
	}
	return false
}
