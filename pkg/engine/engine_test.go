package engine

import (
	"errors"
	"testing"

	"github.com/goliatone/go-formstate/pkg/expr"
	"github.com/goliatone/go-formstate/pkg/expr/simple"
	"github.com/goliatone/go-formstate/pkg/item"
	"github.com/goliatone/go-formstate/pkg/response"
)

func open(t *testing.T, def *item.Tree, opts ...SessionOption) *Session {
	t.Helper()
	e, err := New(def)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	s, err := e.OpenSession(opts...)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	return s
}

func mustSet(t *testing.T, s *Session, path string, value any) *Snapshot {
	t.Helper()
	snap, err := s.SetAnswer(path, value)
	if err != nil {
		t.Fatalf("set %s=%v: %v", path, value, err)
	}
	return snap
}

func TestSession_CalculatedFollowsInputs(t *testing.T) {
	def := &item.Tree{Items: []*item.Item{
		{LinkID: "height", Type: item.TypeDecimal},
		{LinkID: "weight", Type: item.TypeDecimal},
		{LinkID: "dose", Type: item.TypeDecimal, CalculatedExpression: "weight / height"},
	}}
	s := open(t, def)

	mustSet(t, s, "height", 2)
	snap := mustSet(t, s, "weight", 80)
	if got := snap.Value("dose"); got != float64(40) {
		t.Fatalf("dose = %v, want 40", got)
	}

	snap = mustSet(t, s, "weight", 100)
	if got := snap.Value("dose"); got != float64(50) {
		t.Fatalf("dose after change = %v, want 50", got)
	}
}

func TestSession_UserEditShieldsCalculated(t *testing.T) {
	def := &item.Tree{Items: []*item.Item{
		{LinkID: "a", Type: item.TypeDecimal},
		{LinkID: "total", Type: item.TypeDecimal, CalculatedExpression: "a * 2"},
	}}
	s := open(t, def)

	mustSet(t, s, "a", 3)
	snap := mustSet(t, s, "total", 99)
	if got := snap.Value("total"); got != 99 {
		t.Fatalf("override = %v, want 99", got)
	}

	// The calculation must not reclaim a user-edited answer.
	snap = mustSet(t, s, "a", 10)
	if got := snap.Value("total"); got != 99 {
		t.Fatalf("after input change = %v, want preserved 99", got)
	}

	snap, err := s.ClearUserEdited("total")
	if err != nil {
		t.Fatalf("clear user edited: %v", err)
	}
	if got := snap.Value("total"); got != float64(20) {
		t.Fatalf("after release = %v, want 20", got)
	}
}

func TestSession_EnableWhenGatesValidation(t *testing.T) {
	def := &item.Tree{Items: []*item.Item{
		{LinkID: "hasAddress", Type: item.TypeBoolean},
		{
			LinkID: "address", Type: item.TypeGroup,
			EnableWhen: []item.Condition{{Question: "hasAddress", Operator: "=", Value: true}},
			Children: []*item.Item{
				{LinkID: "city", Type: item.TypeString, Required: true},
			},
		},
	}}
	s := open(t, def)

	snap := s.Snapshot()
	if snap.Enabled("address") {
		t.Fatal("address should start disabled")
	}
	if snap.Blocking() {
		t.Fatal("hidden required item must not block")
	}

	snap = mustSet(t, s, "hasAddress", true)
	if !snap.Enabled("address") || !snap.Enabled("address.city") {
		t.Fatal("address subtree should be enabled")
	}
	if !snap.Blocking() {
		t.Fatal("visible required city must block")
	}

	snap = mustSet(t, s, "hasAddress", false)
	if snap.Blocking() {
		t.Fatal("re-hidden subtree must stop blocking")
	}
}

func TestSession_CycleIsolated(t *testing.T) {
	def := &item.Tree{Items: []*item.Item{
		{LinkID: "a", Type: item.TypeDecimal, CalculatedExpression: "b"},
		{LinkID: "b", Type: item.TypeDecimal, CalculatedExpression: "a"},
		{LinkID: "x", Type: item.TypeDecimal},
		{LinkID: "c", Type: item.TypeDecimal, CalculatedExpression: "x + 1"},
	}}
	e, err := New(def)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	cycles := e.CycleIssues()
	if _, ok := cycles["a"]; !ok {
		t.Fatalf("expected cycle issue for a, got %v", cycles)
	}
	if _, ok := cycles["b"]; !ok {
		t.Fatalf("expected cycle issue for b, got %v", cycles)
	}
	if _, ok := cycles["c"]; ok {
		t.Fatal("c is outside the cycle")
	}

	s, err := e.OpenSession()
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	snap := mustSet(t, s, "x", 4)
	if got := snap.Value("c"); got != float64(5) {
		t.Fatalf("expression outside the cycle must evaluate, got %v", got)
	}
	var cerr *expr.CycleError
	issues := snap.Issues()
	if len(issues["a"]) == 0 || !errors.As(issues["a"][0], &cerr) {
		t.Fatalf("expected cycle error on a, got %v", issues["a"])
	}
}

func TestSession_EvaluationErrorIsolated(t *testing.T) {
	def := &item.Tree{Items: []*item.Item{
		{LinkID: "bad", Type: item.TypeDecimal, CalculatedExpression: "1 +"},
		{LinkID: "good", Type: item.TypeDecimal, CalculatedExpression: "2"},
	}}
	s := open(t, def)

	snap := s.Snapshot()
	if got := snap.Value("good"); got != float64(2) {
		t.Fatalf("good must evaluate despite bad sibling, got %v", got)
	}
	var eerr *expr.EvalError
	issues := snap.Issues()
	if len(issues["bad"]) == 0 || !errors.As(issues["bad"][0], &eerr) {
		t.Fatalf("expected eval error on bad, got %v", issues["bad"])
	}
}

func TestSession_InitialExpressionSeedsOnce(t *testing.T) {
	def := &item.Tree{Items: []*item.Item{
		{LinkID: "n", Type: item.TypeInteger, InitialExpression: "10"},
	}}
	s := open(t, def)

	if got := s.Snapshot().Value("n"); got != float64(10) {
		t.Fatalf("initial = %v, want 10", got)
	}

	snap, err := s.ClearAnswer("n")
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got := snap.Value("n"); got != nil {
		t.Fatalf("cleared value must stay cleared, got %v", got)
	}
}

func TestSession_VariableScopes(t *testing.T) {
	def := &item.Tree{Items: []*item.Item{
		{LinkID: "x", Type: item.TypeDecimal},
		{
			LinkID: "g", Type: item.TypeGroup,
			Variables: []item.Variable{{Name: "v", Expression: "x * 2"}},
			Children: []*item.Item{
				{LinkID: "y", Type: item.TypeDecimal, CalculatedExpression: "v + 1"},
			},
		},
	}}
	s := open(t, def)

	snap := mustSet(t, s, "x", 3)
	if got := snap.Value("g.y"); got != float64(7) {
		t.Fatalf("y = %v, want 7", got)
	}
	vars := snap.Variables("g")
	if vars["v"] != float64(6) {
		t.Fatalf("variable v = %v, want 6", vars["v"])
	}
}

func TestSession_OptionToggleRemovesAnswer(t *testing.T) {
	def := &item.Tree{Items: []*item.Item{
		{LinkID: "allowGreen", Type: item.TypeBoolean},
		{
			LinkID: "color", Type: item.TypeChoice,
			AnswerOptions: []item.AnswerOption{
				{Value: "red"}, {Value: "blue"}, {Value: "green"},
			},
			OptionToggles: []item.OptionToggle{
				{Expression: "allowGreen", Options: []any{"green"}},
			},
		},
	}}
	s := open(t, def)

	mustSet(t, s, "allowGreen", true)
	snap := mustSet(t, s, "color", "green")
	if got := snap.Value("color"); got != "green" {
		t.Fatalf("color = %v, want green", got)
	}

	snap = mustSet(t, s, "allowGreen", false)
	opts, ok := snap.Options("color")
	if !ok || len(opts) != 2 {
		t.Fatalf("filtered options = %v, want [red blue]", opts)
	}
	if got := snap.Value("color"); got != nil {
		t.Fatalf("disallowed answer must be removed, got %v", got)
	}
}

func TestSession_PaginationLinear(t *testing.T) {
	def := &item.Tree{Items: []*item.Item{
		{
			LinkID: "p1", Type: item.TypeGroup, Page: true,
			Children: []*item.Item{{LinkID: "name", Type: item.TypeString, Required: true}},
		},
		{
			LinkID: "p2", Type: item.TypeGroup, Page: true,
			Children: []*item.Item{{LinkID: "age", Type: item.TypeInteger}},
		},
	}}
	s := open(t, def)

	if _, err := s.NextPage(); !errors.Is(err, ErrBlocked) {
		t.Fatalf("advancing past an invalid page should block, got %v", err)
	}

	mustSet(t, s, "p1.name", "Ada")
	snap, err := s.NextPage()
	if err != nil {
		t.Fatalf("next page: %v", err)
	}
	if snap.Page() != 1 || s.Page() != 1 {
		t.Fatalf("page = %d, want 1", snap.Page())
	}

	if _, err := s.PrevPage(); err != nil {
		t.Fatalf("prev page: %v", err)
	}
}

func TestSession_ReviewAndSubmit(t *testing.T) {
	def := &item.Tree{Items: []*item.Item{
		{LinkID: "name", Type: item.TypeString, Required: true},
		{LinkID: "hasAddress", Type: item.TypeBoolean},
		{
			LinkID: "address", Type: item.TypeGroup,
			EnableWhen: []item.Condition{{Question: "hasAddress", Operator: "=", Value: true}},
			Children:   []*item.Item{{LinkID: "city", Type: item.TypeString, Required: true}},
		},
	}}
	s := open(t, def)

	// Reviewing is an explicit request; outstanding invalid results only
	// block submission, never the read-only review itself.
	snap, err := s.Review()
	if err != nil {
		t.Fatalf("review with invalid items: %v", err)
	}
	if snap.Mode() != ModeReview {
		t.Fatalf("mode = %s, want review", snap.Mode())
	}
	if !snap.Blocking() {
		t.Fatal("review snapshot should still carry the blocking results")
	}
	if _, err := s.Submit(); !errors.Is(err, ErrBlocked) {
		t.Fatalf("submit with blocking errors must fail, got %v", err)
	}
	s.Edit()

	mustSet(t, s, "name", "Ada")
	snap, err = s.Review()
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if snap.Mode() != ModeReview {
		t.Fatalf("mode = %s, want review", snap.Mode())
	}

	if _, err := s.SetAnswer("name", "Eve"); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("mutation in review mode must fail, got %v", err)
	}

	out, err := s.Submit()
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := out.Resolve("address"); err == nil {
		t.Fatal("disabled subtree must be pruned from the export")
	}
	if n, err := out.Resolve("name"); err != nil || n.Value() != "Ada" {
		t.Fatalf("export should keep name=Ada, got %v (%v)", n, err)
	}

	if s.Edit().Mode() != ModeEdit {
		t.Fatal("session should return to edit mode")
	}
}

func TestSession_EventsOnEvaluation(t *testing.T) {
	def := &item.Tree{Items: []*item.Item{
		{LinkID: "a", Type: item.TypeDecimal},
		{LinkID: "b", Type: item.TypeDecimal, CalculatedExpression: "a + 1"},
	}}
	s := open(t, def)

	drain := func() {
		for {
			select {
			case <-s.Events():
			default:
				return
			}
		}
	}
	drain()

	mustSet(t, s, "a", 1)
	select {
	case ev := <-s.Events():
		if ev.Type != EventEvaluated {
			t.Fatalf("event type = %s, want evaluated", ev.Type)
		}
		if len(ev.Paths) != 1 || ev.Paths[0] != "b" {
			t.Fatalf("changed paths = %v, want [b]", ev.Paths)
		}
	default:
		t.Fatal("expected an evaluation event")
	}
}

func TestGraph_DeterministicOrder(t *testing.T) {
	def := &item.Tree{Items: []*item.Item{
		{LinkID: "c", Type: item.TypeDecimal, CalculatedExpression: "b + 1"},
		{LinkID: "b", Type: item.TypeDecimal, CalculatedExpression: "a + 1"},
		{LinkID: "a", Type: item.TypeDecimal, InitialExpression: "1"},
	}}
	g := buildGraph(def, expr.ScanRefs)

	want := []string{"a#initial", "b#calculated", "c#calculated"}
	if len(g.order) != len(want) {
		t.Fatalf("order length = %d, want %d", len(g.order), len(want))
	}
	for i, id := range want {
		if g.order[i].id != id {
			t.Fatalf("order[%d] = %s, want %s", i, g.order[i].id, id)
		}
	}
	if len(g.cycleErrs) != 0 {
		t.Fatalf("unexpected cycles %v", g.cycleErrs)
	}
}

func TestSession_DependsOn(t *testing.T) {
	def := &item.Tree{Items: []*item.Item{
		{LinkID: "a", Type: item.TypeDecimal},
		{LinkID: "b", Type: item.TypeDecimal, CalculatedExpression: "a * 2"},
		{LinkID: "free", Type: item.TypeString},
	}}
	e, err := New(def)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if !e.DependsOn("a") {
		t.Fatal("a feeds a calculation")
	}
	if e.DependsOn("free") {
		t.Fatal("nothing reads free")
	}
}

func TestSession_ResumeRecoversOrphans(t *testing.T) {
	def := &item.Tree{Items: []*item.Item{
		{LinkID: "name", Type: item.TypeString},
	}}

	resumed := &response.Tree{Items: []*response.Node{
		func() *response.Node {
			n := response.NewNode("name")
			n.Answers = append(n.Answers, response.NewAnswer("Ada"))
			return n
		}(),
		response.NewNode("ghost"),
	}}

	s := open(t, def, WithResponse(resumed))
	snap := s.Snapshot()

	if got := snap.Value("name"); got != "Ada" {
		t.Fatalf("name = %v, want Ada", got)
	}
	issues := snap.SyncIssues()
	if len(issues) != 1 || issues[0].Path != "ghost" {
		t.Fatalf("sync issues = %v, want one at ghost", issues)
	}
	if _, err := snap.Response().Resolve("ghost"); err == nil {
		t.Fatal("orphan subtree should be discarded")
	}
}

func TestSession_ReviewDisabled(t *testing.T) {
	def := &item.Tree{Items: []*item.Item{
		{LinkID: "name", Type: item.TypeString},
	}}
	s := open(t, def, WithReview(false))

	if _, err := s.Review(); !errors.Is(err, ErrReviewDisabled) {
		t.Fatalf("review on a disabled session = %v, want ErrReviewDisabled", err)
	}

	// Submission stays available without the review step.
	mustSet(t, s, "name", "Ada")
	if _, err := s.Submit(); err != nil {
		t.Fatalf("submit: %v", err)
	}
}

func TestSession_ReviewFirst(t *testing.T) {
	def := &item.Tree{Items: []*item.Item{
		{LinkID: "name", Type: item.TypeString},
	}}
	s := open(t, def, WithReviewFirst())

	if got := s.Snapshot().Mode(); got != ModeReview {
		t.Fatalf("mode = %s, want review", got)
	}
	if _, err := s.SetAnswer("name", "Ada"); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("mutation while reviewing = %v, want ErrReadOnly", err)
	}

	if s.Edit().Mode() != ModeEdit {
		t.Fatal("session should move to edit mode on request")
	}
	mustSet(t, s, "name", "Ada")
}

func TestSession_IncrementalEvaluation(t *testing.T) {
	def := &item.Tree{Items: []*item.Item{
		{LinkID: "a", Type: item.TypeDecimal},
		{LinkID: "b", Type: item.TypeDecimal, CalculatedExpression: "a * 2"},
		{LinkID: "c", Type: item.TypeDecimal},
		{LinkID: "d", Type: item.TypeDecimal, CalculatedExpression: "c * 3"},
	}}

	counts := make(map[string]int)
	base := simple.New()
	counting := expr.EvaluatorFunc(func(source string, ctx *expr.Context) (any, error) {
		counts[source]++
		return base.Evaluate(source, ctx)
	})

	e, err := New(def, WithEvaluator(counting))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	s, err := e.OpenSession()
	if err != nil {
		t.Fatalf("open session: %v", err)
	}

	mustSet(t, s, "c", 1.0)
	baselineB, baselineD := counts["a * 2"], counts["c * 3"]

	// Changing a must not re-run the expression that only reads c.
	snap := mustSet(t, s, "a", 2.0)
	if counts["a * 2"] != baselineB+1 {
		t.Fatalf("a * 2 evaluated %d times after change, want %d", counts["a * 2"], baselineB+1)
	}
	if counts["c * 3"] != baselineD {
		t.Fatalf("c * 3 evaluated %d times, want unchanged %d", counts["c * 3"], baselineD)
	}

	// Replayed results still surface in the snapshot.
	if got := snap.Value("b"); got != 4.0 {
		t.Fatalf("b = %v, want 4", got)
	}
	if got := snap.Value("d"); got != 3.0 {
		t.Fatalf("d = %v, want 3", got)
	}
}
