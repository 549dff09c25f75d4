package response

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/goliatone/go-formstate/pkg/item"
)

func testDef() *item.Tree {
	return &item.Tree{Items: []*item.Item{
		{
			LinkID: "demographics",
			Type:   item.TypeGroup,
			Children: []*item.Item{
				{LinkID: "name", Type: item.TypeString, Required: true},
				{LinkID: "age", Type: item.TypeInteger},
			},
		},
		{
			LinkID:  "contacts",
			Type:    item.TypeGroup,
			Repeats: true,
			Children: []*item.Item{
				{LinkID: "phone", Type: item.TypeString},
			},
		},
		{
			LinkID: "hasPet",
			Type:   item.TypeBoolean,
			Children: []*item.Item{
				{LinkID: "petName", Type: item.TypeString},
			},
		},
	}}
}

// ignoreIdentity lets structural comparisons skip the generated uuids.
var ignoreIdentity = cmpopts.IgnoreFields(Node{}, "InstanceID")

var ignoreAnswerIdentity = cmpopts.IgnoreFields(Answer{}, "ID")

func TestSync_CreatesStructure(t *testing.T) {
	sync := NewSynchronizer(testDef())
	tree := &Tree{}

	issues := sync.Sync(tree)
	if len(issues) != 0 {
		t.Fatalf("unexpected issues: %v", issues)
	}

	want := &Tree{Items: []*Node{
		{LinkID: "demographics", Items: []*Node{
			{LinkID: "name"},
			{LinkID: "age"},
		}},
		// Repeating group starts with zero instances.
		{LinkID: "hasPet"},
	}}
	if diff := cmp.Diff(want, tree, ignoreIdentity, ignoreAnswerIdentity); diff != "" {
		t.Fatalf("tree mismatch (-want +got):\n%s", diff)
	}
}

func TestSync_Idempotent(t *testing.T) {
	sync := NewSynchronizer(testDef())
	tree := &Tree{}
	sync.Sync(tree)
	if _, err := sync.AddInstance(tree, "contacts"); err != nil {
		t.Fatalf("add instance: %v", err)
	}

	before := tree.Clone()
	issues := sync.Sync(tree)
	if len(issues) != 0 {
		t.Fatalf("second sync reported issues: %v", issues)
	}
	if diff := cmp.Diff(before, tree); diff != "" {
		t.Fatalf("sync was not idempotent (-before +after):\n%s", diff)
	}
}

func TestSync_DiscardsOrphans(t *testing.T) {
	sync := NewSynchronizer(testDef())
	tree := &Tree{Items: []*Node{
		NewNode("demographics"),
		NewNode("ghost"),
	}}

	issues := sync.Sync(tree)
	if len(issues) != 1 {
		t.Fatalf("expected one issue, got %v", issues)
	}
	if issues[0].Path != "ghost" {
		t.Fatalf("unexpected issue path %q", issues[0].Path)
	}
	for _, n := range tree.Items {
		if n.LinkID == "ghost" {
			t.Fatal("orphan survived sync")
		}
	}
}

func TestSync_CollapsesDuplicateNonRepeating(t *testing.T) {
	sync := NewSynchronizer(testDef())
	tree := &Tree{Items: []*Node{
		NewNode("demographics"),
		NewNode("demographics"),
	}}

	issues := sync.Sync(tree)
	if len(issues) != 1 {
		t.Fatalf("expected one issue, got %v", issues)
	}
	count := 0
	for _, n := range tree.Items {
		if n.LinkID == "demographics" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one demographics node, got %d", count)
	}
}

func TestAddRemoveInstance_RestoresPriorTree(t *testing.T) {
	sync := NewSynchronizer(testDef())
	tree := &Tree{}
	sync.Sync(tree)

	first, err := sync.AddInstance(tree, "contacts")
	if err != nil {
		t.Fatalf("add first instance: %v", err)
	}
	if _, err := sync.SetAnswer(tree, "contacts.0.phone", "555-0001", true); err != nil {
		t.Fatalf("set answer: %v", err)
	}

	before := tree.Clone()

	if _, err := sync.AddInstance(tree, "contacts"); err != nil {
		t.Fatalf("add second instance: %v", err)
	}
	if _, err := sync.SetAnswer(tree, "contacts.1.phone", "555-0002", true); err != nil {
		t.Fatalf("answer second instance: %v", err)
	}
	if err := sync.RemoveInstance(tree, "contacts", 1); err != nil {
		t.Fatalf("remove instance: %v", err)
	}

	if diff := cmp.Diff(before, tree); diff != "" {
		t.Fatalf("tree not restored (-before +after):\n%s", diff)
	}
	got, err := tree.Resolve("contacts.0.phone")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Value() != "555-0001" {
		t.Fatalf("first instance answer lost: %v", got.Value())
	}
	if first.InstanceID == "" {
		t.Fatal("instance id missing")
	}
}

func TestAddInstance_MaxOccurs(t *testing.T) {
	def := &item.Tree{Items: []*item.Item{{
		LinkID:    "g",
		Type:      item.TypeGroup,
		Repeats:   true,
		MaxOccurs: 1,
		Children:  []*item.Item{{LinkID: "q", Type: item.TypeString}},
	}}}
	sync := NewSynchronizer(def)
	tree := &Tree{}
	sync.Sync(tree)

	if _, err := sync.AddInstance(tree, "g"); err != nil {
		t.Fatalf("first instance: %v", err)
	}
	if _, err := sync.AddInstance(tree, "g"); err == nil {
		t.Fatal("expected maxOccurs rejection")
	}
}

func TestSetAnswer_ClonesNestedTemplate(t *testing.T) {
	sync := NewSynchronizer(testDef())
	tree := &Tree{}
	sync.Sync(tree)

	node, err := sync.SetAnswer(tree, "hasPet", true, true)
	if err != nil {
		t.Fatalf("set answer: %v", err)
	}
	if len(node.Answers) != 1 {
		t.Fatalf("expected one answer, got %d", len(node.Answers))
	}
	nested := node.Answers[0].Items
	if len(nested) != 1 || nested[0].LinkID != "petName" {
		t.Fatalf("nested template not cloned: %+v", nested)
	}

	if _, err := sync.SetAnswer(tree, "hasPet.petName", "Rex", true); err != nil {
		t.Fatalf("answer nested item: %v", err)
	}
	got, err := tree.Resolve("hasPet.petName")
	if err != nil {
		t.Fatalf("resolve nested: %v", err)
	}
	if got.Value() != "Rex" {
		t.Fatalf("nested answer mismatch: %v", got.Value())
	}
}

func TestSetAnswer_Rejections(t *testing.T) {
	sync := NewSynchronizer(testDef())
	tree := &Tree{}
	sync.Sync(tree)

	if _, err := sync.SetAnswer(tree, "demographics", "x", true); err == nil {
		t.Fatal("groups cannot hold answers")
	}
	if _, err := sync.SetAnswer(tree, "demographics.name", []any{"a", "b"}, true); err == nil {
		t.Fatal("non-repeating items reject answer lists")
	}
	if _, err := sync.SetAnswer(tree, "nope", "x", true); err == nil {
		t.Fatal("unknown path must fail")
	}
}

func TestSeed_InitialValues(t *testing.T) {
	def := &item.Tree{Items: []*item.Item{
		{LinkID: "country", Type: item.TypeString, Initial: []any{"GB"}},
		{
			LinkID: "color",
			Type:   item.TypeChoice,
			AnswerOptions: []item.AnswerOption{
				{Value: "red"},
				{Value: "blue", InitialSelected: true},
			},
		},
	}}
	sync := NewSynchronizer(def)
	tree := &Tree{}
	sync.Sync(tree)
	sync.Seed(tree)

	country, _ := tree.Resolve("country")
	if country.Value() != "GB" {
		t.Fatalf("initial value not seeded: %v", country.Value())
	}
	color, _ := tree.Resolve("color")
	if color.Value() != "blue" {
		t.Fatalf("initialSelected option not seeded: %v", color.Value())
	}

	// Seeding twice must not duplicate answers.
	sync.Seed(tree)
	if len(country.Answers) != 1 {
		t.Fatalf("seed is not idempotent: %d answers", len(country.Answers))
	}
}
