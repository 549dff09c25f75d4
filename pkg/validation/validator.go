// Package validation applies structural and expression-based constraints to a
// response tree, producing per-node results. Hidden items are skipped and
// treated as vacuously valid; validation is idempotent and never mutates its
// inputs.
package validation

import (
	"fmt"

	"github.com/goliatone/go-formstate/pkg/expr"
	"github.com/goliatone/go-formstate/pkg/item"
	"github.com/goliatone/go-formstate/pkg/response"
)

// Input wires the validator to its collaborators. Enabled, ContextFor, and
// OptionsFor may be nil; everything is then treated as enabled, constraint
// expressions evaluate in an empty scope, and static answer options apply.
type Input struct {
	Def      *item.Tree
	Response *response.Tree

	// Enabled reports whether the node at a response path is visible.
	Enabled func(path string) bool

	// Evaluator runs constraint expressions. Nil disables constraint checks.
	Evaluator expr.Evaluator

	// ContextFor supplies the evaluation scope for a response path.
	ContextFor func(path string) *expr.Context

	// OptionsFor returns the filtered answer option set for a response path,
	// when dynamic filtering narrowed the static set.
	OptionsFor func(path string) ([]any, bool)

	// ReportSkipped records a StatusNotValidated result for each hidden
	// subtree root instead of omitting it from the output.
	ReportSkipped bool
}

// Validate walks the visible response tree and returns results keyed by
// response path. Running it twice on unchanged state yields identical results.
func Validate(in Input) map[string][]Result {
	out := make(map[string][]Result)
	if in.Def == nil || in.Response == nil {
		return out
	}
	v := &validator{in: in, out: out}
	v.level(in.Def.Items, in.Response.Items, "")
	return out
}

type validator struct {
	in  Input
	out map[string][]Result
}

func (v *validator) enabled(path string) bool {
	if v.in.Enabled == nil {
		return true
	}
	return v.in.Enabled(path)
}

// skip handles a hidden node: true means the caller must not validate it.
func (v *validator) skip(path string) bool {
	if v.enabled(path) {
		return false
	}
	if v.in.ReportSkipped {
		v.out[path] = []Result{NotValidated()}
	}
	return true
}

func (v *validator) level(defs []*item.Item, nodes []*response.Node, base string) {
	for _, def := range defs {
		matching := nodesByLinkID(nodes, def.LinkID)
		path := joinPath(base, def.LinkID)

		if def.Repeats && def.Type == item.TypeGroup {
			v.repeatingGroup(def, matching, path)
			continue
		}

		var node *response.Node
		if len(matching) > 0 {
			node = matching[0]
		}

		switch def.Type {
		case item.TypeDisplay:
			// Display items carry no state to validate.
		case item.TypeGroup:
			if v.skip(path) {
				continue
			}
			if node != nil {
				v.level(def.Children, node.Items, path)
			}
		default:
			v.question(def, node, path)
		}
	}
}

func (v *validator) repeatingGroup(def *item.Item, instances []*response.Node, path string) {
	if v.skip(path) {
		return
	}

	var results []Result
	min := def.MinOccurs
	if def.Required && min == 0 {
		min = 1
	}
	if len(instances) < min {
		results = append(results, Invalid("minOccurs",
			fmt.Sprintf("requires at least %d instance(s), has %d", min, len(instances))))
	}
	if def.MaxOccurs > 0 && len(instances) > def.MaxOccurs {
		results = append(results, Invalid("maxOccurs",
			fmt.Sprintf("allows at most %d instance(s), has %d", def.MaxOccurs, len(instances))))
	}
	if len(results) == 0 {
		results = []Result{Valid()}
	}
	v.out[path] = results

	for idx, inst := range instances {
		ipath := fmt.Sprintf("%s.%d", path, idx)
		if v.skip(ipath) {
			continue
		}
		v.level(def.Children, inst.Items, ipath)
	}
}

func (v *validator) question(def *item.Item, node *response.Node, path string) {
	if v.skip(path) {
		return
	}

	var results []Result

	answered := node.Answered()
	if def.Required && !answered {
		results = append(results, Invalid("required", "required item has no answer"))
	}

	if def.Repeats && node != nil {
		count := len(node.Answers)
		if def.MinOccurs > 0 && count < def.MinOccurs {
			results = append(results, Invalid("minOccurs",
				fmt.Sprintf("requires at least %d answer(s), has %d", def.MinOccurs, count)))
		}
		if def.MaxOccurs > 0 && count > def.MaxOccurs {
			results = append(results, Invalid("maxOccurs",
				fmt.Sprintf("allows at most %d answer(s), has %d", def.MaxOccurs, count)))
		}
	}

	options := v.optionSet(def, path)
	if node != nil {
		for _, a := range node.Answers {
			if a == nil || a.Value == nil {
				continue
			}
			if msg, ok := conforms(def.Type, a.Value); !ok {
				results = append(results, Invalid("type", msg))
			}
			if len(options) > 0 && !valueInSet(a.Value, options) {
				results = append(results, Invalid("option",
					fmt.Sprintf("answer %v is not in the allowed option set", a.Value)))
			}
		}
	}

	results = append(results, v.constraints(def, path)...)

	if len(results) == 0 {
		results = []Result{Valid()}
	}
	v.out[path] = results

	if node == nil || len(def.Children) == 0 {
		return
	}
	for idx, a := range node.Answers {
		childBase := path
		if def.Repeats {
			childBase = fmt.Sprintf("%s.%d", path, idx)
		}
		v.level(def.Children, a.Items, childBase)
	}
}

func (v *validator) optionSet(def *item.Item, path string) []any {
	if v.in.OptionsFor != nil {
		if opts, ok := v.in.OptionsFor(path); ok {
			return opts
		}
	}
	return def.Options()
}

func (v *validator) constraints(def *item.Item, path string) []Result {
	if len(def.Constraints) == 0 || v.in.Evaluator == nil {
		return nil
	}
	var ctx *expr.Context
	if v.in.ContextFor != nil {
		ctx = v.in.ContextFor(path)
	}

	var results []Result
	for _, c := range def.Constraints {
		value, err := v.in.Evaluator.Evaluate(c.Expression, ctx)
		if err == nil && truthy(value) {
			continue
		}
		msg := c.Human
		if msg == "" {
			msg = fmt.Sprintf("constraint %q failed", c.Key)
		}
		if c.Severity == item.SeverityWarning {
			results = append(results, Warning(c.Key, msg))
		} else {
			results = append(results, Invalid(c.Key, msg))
		}
	}
	return results
}

func nodesByLinkID(nodes []*response.Node, linkID string) []*response.Node {
	var out []*response.Node
	for _, n := range nodes {
		if n != nil && n.LinkID == linkID {
			out = append(out, n)
		}
	}
	return out
}

func joinPath(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}
