package item

// Type is the simplified enum for form item kinds.
type Type string

const (
	TypeGroup      Type = "group"
	TypeDisplay    Type = "display"
	TypeBoolean    Type = "boolean"
	TypeChoice     Type = "choice"
	TypeString     Type = "string"
	TypeText       Type = "text"
	TypeInteger    Type = "integer"
	TypeDecimal    Type = "decimal"
	TypeDate       Type = "date"
	TypeDateTime   Type = "dateTime"
	TypeQuantity   Type = "quantity"
	TypeAttachment Type = "attachment"
)

// IsQuestion reports whether the type carries an answer. Groups structure the
// tree and displays are read-only text; everything else expects a value.
func (t Type) IsQuestion() bool {
	switch t {
	case TypeGroup, TypeDisplay:
		return false
	default:
		return true
	}
}

// Severity classifies constraint outcomes.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// EnableBehavior controls how multiple EnableWhen conditions combine.
type EnableBehavior string

const (
	// EnableAny enables the item when any condition holds. Default.
	EnableAny EnableBehavior = "any"
	// EnableAll enables the item only when every condition holds.
	EnableAll EnableBehavior = "all"
)

// Variable is a named expression whose value is visible to the declaring item
// and its descendants.
type Variable struct {
	Name       string `json:"name" yaml:"name"`
	Expression string `json:"expression" yaml:"expression"`
}

// Condition is a single enableWhen clause comparing another question's answer
// against a literal.
type Condition struct {
	Question string `json:"question" yaml:"question"`
	Operator string `json:"operator" yaml:"operator"` // exists, =, !=, >, <, >=, <=
	Value    any    `json:"value,omitempty" yaml:"value,omitempty"`
}

// Constraint is an expression-based validation rule attached to an item.
type Constraint struct {
	Key        string   `json:"key" yaml:"key"`
	Severity   Severity `json:"severity,omitempty" yaml:"severity,omitempty"`
	Expression string   `json:"expression" yaml:"expression"`
	Human      string   `json:"human,omitempty" yaml:"human,omitempty"`
}

// AnswerOption is one allowed value for a choice question.
type AnswerOption struct {
	Value           any  `json:"value" yaml:"value"`
	InitialSelected bool `json:"initialSelected,omitempty" yaml:"initialSelected,omitempty"`
}

// OptionToggle pairs an expression with the option values it governs. When the
// expression evaluates false the listed options are removed from the answer
// option set for that pass.
type OptionToggle struct {
	Expression string `json:"expression" yaml:"expression"`
	Options    []any  `json:"options" yaml:"options"`
}

// Quantity is a decimal value with a unit.
type Quantity struct {
	Value float64 `json:"value" yaml:"value"`
	Unit  string  `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// Item is one node of the form definition tree. The tree is immutable after
// load; all editing state lives in the response tree.
type Item struct {
	LinkID   string `json:"linkId" yaml:"linkId"`
	Type     Type   `json:"type" yaml:"type"`
	Text     string `json:"text,omitempty" yaml:"text,omitempty"`
	Repeats  bool   `json:"repeats,omitempty" yaml:"repeats,omitempty"`
	Required bool   `json:"required,omitempty" yaml:"required,omitempty"`
	ReadOnly bool   `json:"readOnly,omitempty" yaml:"readOnly,omitempty"`

	// MinOccurs/MaxOccurs bound repeating instances. Zero means unset.
	MinOccurs int `json:"minOccurs,omitempty" yaml:"minOccurs,omitempty"`
	MaxOccurs int `json:"maxOccurs,omitempty" yaml:"maxOccurs,omitempty"`

	// Page marks a top-level group as a page boundary for paginated sessions.
	Page bool `json:"page,omitempty" yaml:"page,omitempty"`

	// Control is an optional rendering hint consumed by the control registry.
	Control string `json:"control,omitempty" yaml:"control,omitempty"`

	Initial       []any          `json:"initial,omitempty" yaml:"initial,omitempty"`
	AnswerOptions []AnswerOption `json:"answerOptions,omitempty" yaml:"answerOptions,omitempty"`

	Variables            []Variable     `json:"variables,omitempty" yaml:"variables,omitempty"`
	EnableWhen           []Condition    `json:"enableWhen,omitempty" yaml:"enableWhen,omitempty"`
	EnableBehavior       EnableBehavior `json:"enableBehavior,omitempty" yaml:"enableBehavior,omitempty"`
	EnableWhenExpression string         `json:"enableWhenExpression,omitempty" yaml:"enableWhenExpression,omitempty"`
	CalculatedExpression string         `json:"calculatedExpression,omitempty" yaml:"calculatedExpression,omitempty"`
	CandidateExpression  string         `json:"candidateExpression,omitempty" yaml:"candidateExpression,omitempty"`
	InitialExpression    string         `json:"initialExpression,omitempty" yaml:"initialExpression,omitempty"`
	OptionToggles        []OptionToggle `json:"optionToggles,omitempty" yaml:"optionToggles,omitempty"`
	Constraints          []Constraint   `json:"constraints,omitempty" yaml:"constraints,omitempty"`

	Children []*Item `json:"items,omitempty" yaml:"items,omitempty"`
}

// Tree is a loaded form definition.
type Tree struct {
	ID    string  `json:"id,omitempty" yaml:"id,omitempty"`
	Title string  `json:"title,omitempty" yaml:"title,omitempty"`
	Items []*Item `json:"items" yaml:"items"`
}

// HasExpressions reports whether any expression is attached to the item.
func (it *Item) HasExpressions() bool {
	return len(it.Variables) > 0 ||
		len(it.EnableWhen) > 0 ||
		it.EnableWhenExpression != "" ||
		it.CalculatedExpression != "" ||
		it.CandidateExpression != "" ||
		it.InitialExpression != "" ||
		len(it.OptionToggles) > 0 ||
		len(it.Constraints) > 0
}

// Walk visits every item in pre-order (document order). Returning false from
// fn prunes the subtree.
func (t *Tree) Walk(fn func(it *Item, parents []*Item) bool) {
	var rec func(items []*Item, parents []*Item)
	rec = func(items []*Item, parents []*Item) {
		for _, it := range items {
			if !fn(it, parents) {
				continue
			}
			rec(it.Children, append(parents, it))
		}
	}
	rec(t.Items, nil)
}

// Find returns the first item in document order whose LinkID matches. Link ids
// are only unique among siblings, so Find is a best-effort global lookup.
func (t *Tree) Find(linkID string) *Item {
	var found *Item
	t.Walk(func(it *Item, _ []*Item) bool {
		if found != nil {
			return false
		}
		if it.LinkID == linkID {
			found = it
			return false
		}
		return true
	})
	return found
}

// Options returns the static answer option values for the item.
func (it *Item) Options() []any {
	if len(it.AnswerOptions) == 0 {
		return nil
	}
	out := make([]any, 0, len(it.AnswerOptions))
	for _, opt := range it.AnswerOptions {
		out = append(out, opt.Value)
	}
	return out
}
