package controls

import (
	"testing"

	"github.com/goliatone/go-formstate/pkg/item"
)

func TestResolve_ExplicitControlWins(t *testing.T) {
	reg := NewRegistry()
	it := &item.Item{Type: item.TypeBoolean, Control: "custom-toggle"}

	if got, ok := reg.Resolve(it); !ok || got != "custom-toggle" {
		t.Fatalf("expected explicit control to win, got %q (ok=%v)", got, ok)
	}
}

func TestResolve_Builtins(t *testing.T) {
	reg := NewRegistry()

	cases := []struct {
		name   string
		it     *item.Item
		expect string
	}{
		{
			name:   "display static",
			it:     &item.Item{Type: item.TypeDisplay},
			expect: ControlStatic,
		},
		{
			name:   "group fieldset",
			it:     &item.Item{Type: item.TypeGroup},
			expect: ControlFieldset,
		},
		{
			name:   "boolean toggle",
			it:     &item.Item{Type: item.TypeBoolean},
			expect: ControlToggle,
		},
		{
			name: "repeating choice chips",
			it: &item.Item{
				Type: item.TypeChoice, Repeats: true,
				AnswerOptions: []item.AnswerOption{{Value: "a"}, {Value: "b"}},
			},
			expect: ControlChips,
		},
		{
			name: "small choice radio",
			it: &item.Item{
				Type:          item.TypeChoice,
				AnswerOptions: []item.AnswerOption{{Value: "a"}, {Value: "b"}},
			},
			expect: ControlRadio,
		},
		{
			name: "large choice select",
			it: &item.Item{
				Type: item.TypeChoice,
				AnswerOptions: []item.AnswerOption{
					{Value: 1}, {Value: 2}, {Value: 3}, {Value: 4}, {Value: 5},
				},
			},
			expect: ControlSelect,
		},
		{
			name:   "date picker",
			it:     &item.Item{Type: item.TypeDate},
			expect: ControlDate,
		},
		{
			name:   "decimal number",
			it:     &item.Item{Type: item.TypeDecimal},
			expect: ControlNumber,
		},
		{
			name:   "long text textarea",
			it:     &item.Item{Type: item.TypeText},
			expect: ControlTextarea,
		},
		{
			name:   "string falls back to text",
			it:     &item.Item{Type: item.TypeString},
			expect: ControlText,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := reg.Resolve(tc.it)
			if !ok {
				t.Fatalf("expected a control for %s", tc.name)
			}
			if got != tc.expect {
				t.Fatalf("control = %q, want %q", got, tc.expect)
			}
		})
	}
}

func TestResolve_CustomRulePriority(t *testing.T) {
	reg := NewRegistry()
	reg.Register("signature-pad", 100, func(it *item.Item) bool {
		return it.Type == item.TypeAttachment
	})

	got, ok := reg.Resolve(&item.Item{Type: item.TypeAttachment})
	if !ok || got != "signature-pad" {
		t.Fatalf("high priority custom rule should win, got %q", got)
	}
}

func TestResolve_NilItem(t *testing.T) {
	reg := NewRegistry()
	if _, ok := reg.Resolve(nil); ok {
		t.Fatal("nil item must not resolve")
	}
}
