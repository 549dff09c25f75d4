package validation

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formstate/pkg/expr"
	"github.com/goliatone/go-formstate/pkg/item"
	"github.com/goliatone/go-formstate/pkg/response"
)

func buildTree(t *testing.T, def *item.Tree) (*response.Synchronizer, *response.Tree) {
	t.Helper()
	sync := response.NewSynchronizer(def)
	tree := &response.Tree{}
	sync.Sync(tree)
	return sync, tree
}

func TestValidate_RequiredItem(t *testing.T) {
	def := &item.Tree{Items: []*item.Item{
		{LinkID: "name", Type: item.TypeString, Required: true},
	}}
	sync, tree := buildTree(t, def)

	got := Validate(Input{Def: def, Response: tree})
	if len(got["name"]) != 1 || got["name"][0].Status != StatusInvalid || got["name"][0].Key != "required" {
		t.Fatalf("expected required failure, got %+v", got["name"])
	}

	if _, err := sync.SetAnswer(tree, "name", "Ada", true); err != nil {
		t.Fatalf("set answer: %v", err)
	}
	got = Validate(Input{Def: def, Response: tree})
	want := []Result{Valid()}
	if diff := cmp.Diff(want, got["name"]); diff != "" {
		t.Fatalf("expected valid after answering (-want +got):\n%s", diff)
	}
}

func TestValidate_SkipsDisabled(t *testing.T) {
	def := &item.Tree{Items: []*item.Item{
		{LinkID: "address", Type: item.TypeGroup, Children: []*item.Item{
			{LinkID: "city", Type: item.TypeString, Required: true},
		}},
	}}
	_, tree := buildTree(t, def)

	disabled := func(path string) bool { return path != "address" && path != "address.city" }
	got := Validate(Input{Def: def, Response: tree, Enabled: disabled})
	if len(got) != 0 {
		t.Fatalf("disabled subtree must be skipped, got %+v", got)
	}

	got = Validate(Input{Def: def, Response: tree})
	if len(got["address.city"]) == 0 || got["address.city"][0].Status != StatusInvalid {
		t.Fatalf("enabled required child should fail, got %+v", got["address.city"])
	}
}

func TestValidate_RepeatingGroupOccurrence(t *testing.T) {
	def := &item.Tree{Items: []*item.Item{
		{
			LinkID:   "contacts",
			Type:     item.TypeGroup,
			Repeats:  true,
			Required: true,
			Children: []*item.Item{
				{LinkID: "phone", Type: item.TypeString, Required: true},
			},
		},
	}}
	sync, tree := buildTree(t, def)

	got := Validate(Input{Def: def, Response: tree})
	if len(got["contacts"]) != 1 || got["contacts"][0].Key != "minOccurs" {
		t.Fatalf("zero instances of a required group must fail, got %+v", got["contacts"])
	}

	if _, err := sync.AddInstance(tree, "contacts"); err != nil {
		t.Fatalf("add instance: %v", err)
	}
	if _, err := sync.SetAnswer(tree, "contacts.0.phone", "555-0001", true); err != nil {
		t.Fatalf("set answer: %v", err)
	}

	got = Validate(Input{Def: def, Response: tree})
	if got["contacts"][0].Status != StatusValid {
		t.Fatalf("group should be valid, got %+v", got["contacts"])
	}
	if got["contacts.0.phone"][0].Status != StatusValid {
		t.Fatalf("instance child should be valid, got %+v", got["contacts.0.phone"])
	}
}

func TestValidate_TypeConformance(t *testing.T) {
	def := &item.Tree{Items: []*item.Item{
		{LinkID: "age", Type: item.TypeInteger},
		{LinkID: "height", Type: item.TypeDecimal},
		{LinkID: "dob", Type: item.TypeDate},
		{LinkID: "ok", Type: item.TypeBoolean},
	}}
	sync, tree := buildTree(t, def)

	answers := map[string]any{
		"age":    "not a number",
		"height": 1.85,
		"dob":    "2001-02-03",
		"ok":     "yes",
	}
	for path, v := range answers {
		if _, err := sync.SetAnswer(tree, path, v, true); err != nil {
			t.Fatalf("set %s: %v", path, err)
		}
	}

	got := Validate(Input{Def: def, Response: tree})
	if got["age"][0].Key != "type" {
		t.Fatalf("string for integer should fail, got %+v", got["age"])
	}
	if got["height"][0].Status != StatusValid {
		t.Fatalf("decimal should pass, got %+v", got["height"])
	}
	if got["dob"][0].Status != StatusValid {
		t.Fatalf("parseable date should pass, got %+v", got["dob"])
	}
	if got["ok"][0].Key != "type" {
		t.Fatalf("string for boolean should fail, got %+v", got["ok"])
	}
}

func TestValidate_OptionSet(t *testing.T) {
	def := &item.Tree{Items: []*item.Item{
		{
			LinkID: "color",
			Type:   item.TypeChoice,
			AnswerOptions: []item.AnswerOption{
				{Value: "red"}, {Value: "blue"},
			},
		},
	}}
	sync, tree := buildTree(t, def)
	if _, err := sync.SetAnswer(tree, "color", "green", true); err != nil {
		t.Fatalf("set answer: %v", err)
	}

	got := Validate(Input{Def: def, Response: tree})
	if got["color"][0].Key != "option" {
		t.Fatalf("expected option failure, got %+v", got["color"])
	}

	// A dynamically filtered option set overrides the static one.
	got = Validate(Input{Def: def, Response: tree, OptionsFor: func(string) ([]any, bool) {
		return []any{"green"}, true
	}})
	if got["color"][0].Status != StatusValid {
		t.Fatalf("filtered set should accept green, got %+v", got["color"])
	}
}

func TestValidate_Constraints(t *testing.T) {
	def := &item.Tree{Items: []*item.Item{
		{
			LinkID: "age",
			Type:   item.TypeInteger,
			Constraints: []item.Constraint{
				{Key: "max-age", Severity: item.SeverityError, Expression: "pass", Human: "age is out of range"},
				{Key: "soft", Severity: item.SeverityWarning, Expression: "fail", Human: "double-check this"},
			},
		},
	}}
	_, tree := buildTree(t, def)

	eval := expr.EvaluatorFunc(func(expression string, _ *expr.Context) (any, error) {
		return expression == "pass", nil
	})
	got := Validate(Input{Def: def, Response: tree, Evaluator: eval})

	results := got["age"]
	if len(results) != 1 {
		t.Fatalf("expected one constraint failure, got %+v", results)
	}
	if results[0].Severity != item.SeverityWarning || results[0].Key != "soft" {
		t.Fatalf("expected warning for soft constraint, got %+v", results[0])
	}
	if Blocking(got) {
		t.Fatal("warnings must not block")
	}
}

func TestValidate_Idempotent(t *testing.T) {
	def := &item.Tree{Items: []*item.Item{
		{LinkID: "name", Type: item.TypeString, Required: true},
		{LinkID: "age", Type: item.TypeInteger},
	}}
	_, tree := buildTree(t, def)

	first := Validate(Input{Def: def, Response: tree})
	second := Validate(Input{Def: def, Response: tree})
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("validation not idempotent (-first +second):\n%s", diff)
	}
}

func TestBlockingAndMessages(t *testing.T) {
	results := map[string][]Result{
		"a": {Invalid("required", "required item has no answer")},
		"b": {Warning("soft", "check me")},
	}
	if !Blocking(results) {
		t.Fatal("error severity should block")
	}
	msgs := Messages(results["a"])
	if len(msgs) != 1 || msgs[0] != "required item has no answer" {
		t.Fatalf("unexpected messages %v", msgs)
	}
}

func TestValidate_ReportSkipped(t *testing.T) {
	def := &item.Tree{Items: []*item.Item{
		{LinkID: "name", Type: item.TypeString},
		{LinkID: "address", Type: item.TypeGroup, Children: []*item.Item{
			{LinkID: "city", Type: item.TypeString, Required: true},
		}},
	}}
	_, tree := buildTree(t, def)

	disabled := func(path string) bool { return path != "address" }
	got := Validate(Input{Def: def, Response: tree, Enabled: disabled, ReportSkipped: true})

	want := []Result{NotValidated()}
	if diff := cmp.Diff(want, got["address"]); diff != "" {
		t.Fatalf("hidden subtree root (-want +got):\n%s", diff)
	}
	if _, ok := got["address.city"]; ok {
		t.Fatalf("descendants of a skipped subtree must stay unreported, got %+v", got["address.city"])
	}
	if Blocking(got) {
		t.Fatal("not-validated results must never block")
	}
}
