package item

import (
	"errors"
	"testing"
)

func TestValidate_AcceptsWellFormedTree(t *testing.T) {
	tree := &Tree{
		Items: []*Item{
			{
				LinkID: "demographics",
				Type:   TypeGroup,
				Children: []*Item{
					{LinkID: "name", Type: TypeString, Required: true},
					{LinkID: "age", Type: TypeInteger},
				},
			},
			{LinkID: "note", Type: TypeDisplay, Text: "All data stays local."},
		},
	}
	if err := tree.Validate(); err != nil {
		t.Fatalf("expected valid tree, got %v", err)
	}
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name string
		tree *Tree
	}{
		{
			name: "duplicate sibling linkId",
			tree: &Tree{Items: []*Item{
				{LinkID: "a", Type: TypeString},
				{LinkID: "a", Type: TypeInteger},
			}},
		},
		{
			name: "missing linkId",
			tree: &Tree{Items: []*Item{{Type: TypeString}}},
		},
		{
			name: "group with initial",
			tree: &Tree{Items: []*Item{
				{LinkID: "g", Type: TypeGroup, Initial: []any{"x"}},
			}},
		},
		{
			name: "required display",
			tree: &Tree{Items: []*Item{
				{LinkID: "d", Type: TypeDisplay, Required: true},
			}},
		},
		{
			name: "initial and initialExpression",
			tree: &Tree{Items: []*Item{
				{LinkID: "q", Type: TypeString, Initial: []any{"a"}, InitialExpression: "'b'"},
			}},
		},
		{
			name: "initial and initialSelected option",
			tree: &Tree{Items: []*Item{
				{
					LinkID:        "q",
					Type:          TypeChoice,
					Initial:       []any{"a"},
					AnswerOptions: []AnswerOption{{Value: "a", InitialSelected: true}},
				},
			}},
		},
		{
			name: "multiple initials without repeats",
			tree: &Tree{Items: []*Item{
				{LinkID: "q", Type: TypeString, Initial: []any{"a", "b"}},
			}},
		},
		{
			name: "maxOccurs below minOccurs",
			tree: &Tree{Items: []*Item{
				{LinkID: "q", Type: TypeString, Repeats: true, MinOccurs: 3, MaxOccurs: 2},
			}},
		},
		{
			name: "unknown enableWhen operator",
			tree: &Tree{Items: []*Item{
				{LinkID: "q", Type: TypeString, EnableWhen: []Condition{{Question: "p", Operator: "~"}}},
			}},
		},
		{
			name: "constraint without key",
			tree: &Tree{Items: []*Item{
				{LinkID: "q", Type: TypeString, Constraints: []Constraint{{Expression: "true"}}},
			}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.tree.Validate()
			if err == nil {
				t.Fatalf("expected DefinitionError")
			}
			var defErr *DefinitionError
			if !errors.As(err, &defErr) {
				t.Fatalf("expected *DefinitionError, got %T: %v", err, err)
			}
		})
	}
}

func TestFind_DocumentOrder(t *testing.T) {
	tree := &Tree{Items: []*Item{
		{
			LinkID: "outer",
			Type:   TypeGroup,
			Children: []*Item{
				{LinkID: "inner", Type: TypeString},
			},
		},
		{
			LinkID: "later",
			Type:   TypeGroup,
			Children: []*Item{
				{LinkID: "inner", Type: TypeInteger},
			},
		},
	}}

	got := tree.Find("inner")
	if got == nil || got.Type != TypeString {
		t.Fatalf("expected first inner item in document order, got %+v", got)
	}
	if tree.Find("missing") != nil {
		t.Fatal("expected nil for unknown linkId")
	}
}

func TestHasExpressions(t *testing.T) {
	plain := &Item{LinkID: "q", Type: TypeString}
	if plain.HasExpressions() {
		t.Fatal("plain item should report no expressions")
	}
	calc := &Item{LinkID: "q", Type: TypeDecimal, CalculatedExpression: "a * 2"}
	if !calc.HasExpressions() {
		t.Fatal("calculated item should report expressions")
	}
}
