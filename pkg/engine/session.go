package engine

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/goliatone/go-formstate/pkg/expr"
	"github.com/goliatone/go-formstate/pkg/response"
	"github.com/goliatone/go-formstate/pkg/validation"
)

var (
	// ErrReadOnly rejects mutations outside edit mode.
	ErrReadOnly = errors.New("engine: session is not in edit mode")

	// ErrBlocked rejects submission while blocking validation results remain.
	ErrBlocked = errors.New("engine: submission blocked by validation errors")

	// ErrReviewDisabled rejects review requests on sessions opened without
	// review.
	ErrReviewDisabled = errors.New("engine: review is not enabled for this session")
)

// Session owns one response tree and serializes every mutation against it.
// Mutations apply under the session lock; evaluation then runs on a clone
// with the lock released, so a slow evaluator never blocks further input.
// A pass whose generation was overtaken adopts nothing; the overtaking pass
// sees both mutations.
type Session struct {
	engine      *Engine
	nav         Navigation
	events      chan Event
	reviewOff   bool
	reviewFirst bool

	mu         sync.Mutex
	resp       *response.Tree
	seeded     map[string]struct{}
	gen        atomic.Int64
	mode       Mode
	page       int
	pages      []string
	syncIssues []response.Issue

	// pendingDirty accumulates the question link ids mutated since the last
	// adopted pass; pendingFull forces the next pass to evaluate everything
	// (first pass, structural changes).
	pendingDirty map[string]struct{}
	pendingFull  bool

	snap atomic.Pointer[Snapshot]
}

// SessionOption configures a session.
type SessionOption func(*Session)

// WithResponse resumes a session from an existing response tree. The tree is
// cloned and reconciled against the definition; user-edited flags survive.
func WithResponse(resp *response.Tree) SessionOption {
	return func(s *Session) {
		if resp != nil {
			s.resp = resp.Clone()
		}
	}
}

// WithNavigation selects the pagination policy.
func WithNavigation(nav Navigation) SessionOption {
	return func(s *Session) { s.nav = nav }
}

// WithEventBuffer sizes the event channel. Events are dropped, never blocked
// on, when the buffer is full.
func WithEventBuffer(size int) SessionOption {
	return func(s *Session) {
		if size > 0 {
			s.events = make(chan Event, size)
		}
	}
}

// WithReview switches the review step on or off. Review is enabled by
// default; a disabled session moves straight from editing to submission.
func WithReview(enabled bool) SessionOption {
	return func(s *Session) { s.reviewOff = !enabled }
}

// WithReviewFirst opens the session in review mode, presenting the prefilled
// form read-only before any editing.
func WithReviewFirst() SessionOption {
	return func(s *Session) { s.reviewFirst = true }
}

// OpenSession reconciles the response tree, runs the first evaluation pass,
// and returns the session in edit mode.
func (e *Engine) OpenSession(opts ...SessionOption) (*Session, error) {
	s := &Session{
		engine: e,
		resp:   &response.Tree{},
		seeded: make(map[string]struct{}),
		mode:   ModeInit,
		pages:  pageLinkIDs(e.def.Items),
		events: make(chan Event, 16),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.syncIssues = e.sync.Sync(s.resp)
	e.sync.Seed(s.resp)

	snap, err := s.apply(func(*response.Tree) error { return nil }, nil)
	if err != nil {
		return nil, err
	}

	mode := ModeEdit
	if s.reviewFirst && !s.reviewOff {
		mode = ModeReview
	}
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()

	snap = s.reSnapshot()
	s.emit(Event{Type: EventModeChanged, Snapshot: snap})
	return s, nil
}

// Snapshot returns the latest adopted snapshot.
func (s *Session) Snapshot() *Snapshot { return s.snap.Load() }

// Events returns the session's notification channel.
func (s *Session) Events() <-chan Event { return s.events }

// SetAnswer records a user answer at a response path and re-evaluates. The
// answer is flagged user-edited, shielding it from calculated expressions
// until ClearUserEdited.
func (s *Session) SetAnswer(path string, value any) (*Snapshot, error) {
	return s.mutate(dirtyLinks(path), func(t *response.Tree) error {
		_, err := s.engine.sync.SetAnswer(t, path, value, true)
		return err
	})
}

// ClearAnswer removes the answer at a response path.
func (s *Session) ClearAnswer(path string) (*Snapshot, error) {
	return s.mutate(dirtyLinks(path), func(t *response.Tree) error {
		_, err := s.engine.sync.SetAnswer(t, path, nil, true)
		return err
	})
}

// ClearUserEdited drops the user-edited flag so calculated expressions may
// take the item over again.
func (s *Session) ClearUserEdited(path string) (*Snapshot, error) {
	return s.mutate(dirtyLinks(path), func(t *response.Tree) error {
		return s.engine.sync.ClearUserEdited(t, path)
	})
}

// AddInstance appends an instance of the repeating group at path.
func (s *Session) AddInstance(path string) (*Snapshot, error) {
	return s.mutate(nil, func(t *response.Tree) error {
		_, err := s.engine.sync.AddInstance(t, path)
		return err
	})
}

// RemoveInstance removes instance index of the repeating group at path.
func (s *Session) RemoveInstance(path string, index int) (*Snapshot, error) {
	return s.mutate(nil, func(t *response.Tree) error {
		return s.engine.sync.RemoveInstance(t, path, index)
	})
}

// Validate re-runs validation against current state without mutating.
func (s *Session) Validate() map[string][]validation.Result {
	snap := s.snap.Load()
	if snap == nil {
		return nil
	}
	return snap.Validation()
}

// Review switches to read-only review mode. Reviewing is an explicit request
// and is never validation-gated; only moving onwards to submission is. The
// review snapshot carries the outstanding validation results for display.
func (s *Session) Review() (*Snapshot, error) {
	snap := s.snap.Load()
	if s.reviewOff {
		return snap, ErrReviewDisabled
	}
	s.mu.Lock()
	if s.mode != ModeEdit {
		s.mu.Unlock()
		return snap, fmt.Errorf("engine: cannot review from %s mode", s.mode)
	}
	s.mode = ModeReview
	s.mu.Unlock()

	snap = s.reSnapshot()
	s.emit(Event{Type: EventModeChanged, Snapshot: snap})
	return snap, nil
}

// Edit returns a reviewing session to edit mode.
func (s *Session) Edit() *Snapshot {
	s.mu.Lock()
	s.mode = ModeEdit
	s.mu.Unlock()

	snap := s.reSnapshot()
	s.emit(Event{Type: EventModeChanged, Snapshot: snap})
	return snap
}

// Submit validates everything and, when nothing blocks, returns the exported
// response tree with disabled subtrees pruned.
func (s *Session) Submit() (*response.Tree, error) {
	snap := s.snap.Load()
	if snap.Blocking() {
		return nil, ErrBlocked
	}
	out := snap.ExportResponse()
	s.emit(Event{Type: EventSubmitted, Snapshot: snap})
	return out, nil
}

// Cancel notifies listeners that the caller abandoned the session. The
// terminal states live outside the session; Cancel only emits the event and
// the caller tears down.
func (s *Session) Cancel() {
	s.emit(Event{Type: EventCancelled, Snapshot: s.snap.Load()})
}

// Page returns the current page index.
func (s *Session) Page() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// GoToPage moves to page index. Under linear navigation, moving forward
// requires every page up to the target to be free of blocking results.
func (s *Session) GoToPage(index int) (*Snapshot, error) {
	s.mu.Lock()
	pages := s.pages
	current := s.page
	s.mu.Unlock()

	if len(pages) == 0 {
		return s.snap.Load(), errors.New("engine: definition declares no pages")
	}
	if index < 0 || index >= len(pages) {
		return s.snap.Load(), fmt.Errorf("engine: page index %d out of range [0,%d)", index, len(pages))
	}

	snap := s.snap.Load()
	if s.nav == NavigationLinear && index > current {
		for i := current; i < index; i++ {
			if pageBlocking(snap, pages[i]) {
				return snap, fmt.Errorf("engine: page %q has blocking validation errors: %w", pages[i], ErrBlocked)
			}
		}
	}

	s.mu.Lock()
	s.page = index
	s.mu.Unlock()

	snap = s.reSnapshot()
	s.emit(Event{Type: EventPageChanged, Snapshot: snap})
	return snap, nil
}

// NextPage advances one page.
func (s *Session) NextPage() (*Snapshot, error) { return s.GoToPage(s.Page() + 1) }

// PrevPage goes back one page.
func (s *Session) PrevPage() (*Snapshot, error) { return s.GoToPage(s.Page() - 1) }

// mutate runs one guarded mutation followed by an evaluation pass. The mode
// check happens under the session lock, together with the mutation itself.
// dirty names the question link ids the mutation touches; nil forces a full
// re-evaluation.
func (s *Session) mutate(dirty map[string]struct{}, fn func(*response.Tree) error) (*Snapshot, error) {
	return s.apply(func(t *response.Tree) error {
		if s.mode != ModeEdit {
			return ErrReadOnly
		}
		return fn(t)
	}, dirty)
}

// apply serializes the mutation, evaluates on a clone off-lock, and adopts
// the result unless a later mutation superseded this pass. Dirty link ids
// accumulate across superseded passes so the overtaking pass covers every
// mutation since the last adopted one.
func (s *Session) apply(fn func(*response.Tree) error, dirty map[string]struct{}) (*Snapshot, error) {
	s.mu.Lock()
	if err := fn(s.resp); err != nil {
		s.mu.Unlock()
		return s.snap.Load(), err
	}
	if issues := s.engine.sync.Sync(s.resp); len(issues) > 0 {
		s.syncIssues = append(s.syncIssues, issues...)
	}
	if dirty == nil {
		s.pendingFull = true
	} else if !s.pendingFull {
		if s.pendingDirty == nil {
			s.pendingDirty = make(map[string]struct{})
		}
		for linkID := range dirty {
			s.pendingDirty[linkID] = struct{}{}
		}
	}
	var passDirty map[string]struct{}
	var prev *state
	if !s.pendingFull {
		passDirty = make(map[string]struct{}, len(s.pendingDirty))
		for linkID := range s.pendingDirty {
			passDirty[linkID] = struct{}{}
		}
		if last := s.snap.Load(); last != nil {
			prev = last.st
		}
	}
	gen := s.gen.Add(1)
	clone := s.resp.Clone()
	seeded := make(map[string]struct{}, len(s.seeded))
	for id := range s.seeded {
		seeded[id] = struct{}{}
	}
	mode, page, pages := s.mode, s.page, s.pages
	issues := append([]response.Issue(nil), s.syncIssues...)
	s.mu.Unlock()

	st, changed, newSeed := s.engine.runPass(clone, seeded, prev, passDirty)
	snap := s.buildSnapshot(gen, clone, st, mode, page, pages)
	snap.syncIssues = issues

	s.mu.Lock()
	if s.gen.Load() != gen {
		// Superseded: a newer mutation is already evaluating over this one.
		s.mu.Unlock()
		return s.snap.Load(), nil
	}
	s.resp = clone
	for _, id := range newSeed {
		s.seeded[id] = struct{}{}
	}
	s.pendingDirty = nil
	s.pendingFull = false
	s.snap.Store(snap)
	s.mu.Unlock()

	s.emit(Event{Type: EventEvaluated, Paths: changed, Snapshot: snap})
	return snap, nil
}

// dirtyLinks maps a mutated response path to the question link id whose
// answer changed.
func dirtyLinks(path string) map[string]struct{} {
	segs := strings.Split(path, ".")
	for i := len(segs) - 1; i >= 0; i-- {
		if _, isIdx := atoiOK(segs[i]); !isIdx {
			return map[string]struct{}{segs[i]: {}}
		}
	}
	return nil
}

// reSnapshot republishes the latest evaluation under the current mode and
// page without re-running expressions.
func (s *Session) reSnapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.snap.Load()
	if prev == nil {
		return nil
	}
	next := &Snapshot{
		gen:        prev.gen,
		def:        prev.def,
		resp:       prev.resp,
		st:         prev.st,
		results:    prev.results,
		syncIssues: prev.syncIssues,
		mode:       s.mode,
		page:       s.page,
		pages:      s.pages,
	}
	s.snap.Store(next)
	return next
}

func (s *Session) buildSnapshot(gen int64, resp *response.Tree, st *state, mode Mode, page int, pages []string) *Snapshot {
	snap := &Snapshot{
		gen:   gen,
		def:   s.engine.def,
		resp:  resp,
		st:    st,
		mode:  mode,
		page:  page,
		pages: pages,
	}
	snap.results = validation.Validate(validation.Input{
		Def:       s.engine.def,
		Response:  resp,
		Enabled:   st.effectiveEnabled,
		Evaluator: s.engine.eval,
		ContextFor: func(path string) *expr.Context {
			return snap.ContextFor(path, s.engine.external)
		},
		OptionsFor: func(path string) ([]any, bool) {
			opts, ok := st.options[path]
			return opts, ok
		},
	})
	return snap
}

// emit never blocks: when the buffer is full the event is dropped.
func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
	}
}
