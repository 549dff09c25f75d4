package engine

import (
	"strings"

	"github.com/goliatone/go-formstate/pkg/item"
	"github.com/goliatone/go-formstate/pkg/validation"
)

// Mode is the display mode a session is in. Mutations are accepted in edit
// mode only; review mode is a read-only confirmation step before submission.
type Mode string

const (
	// ModeInit covers the window between opening a session and the first
	// completed evaluation pass.
	ModeInit Mode = "init"
	ModeEdit Mode = "edit"
	// ModeReview presents the settled form read-only ahead of submission.
	ModeReview Mode = "review"
)

// Navigation selects how paginated sessions move between pages.
type Navigation int

const (
	// NavigationLinear only moves forward when the current page has no
	// blocking validation results. Default.
	NavigationLinear Navigation = iota
	// NavigationFree jumps to any page regardless of validation state.
	NavigationFree
)

// EventType tags session events.
type EventType string

const (
	// EventEvaluated fires whenever a new snapshot is adopted.
	EventEvaluated   EventType = "evaluated"
	EventModeChanged EventType = "mode-changed"
	EventPageChanged EventType = "page-changed"
	EventSubmitted   EventType = "submitted"
	EventCancelled   EventType = "cancelled"
)

// Event is one session notification. Paths lists the response paths whose
// answers the evaluation pass rewrote (calculated, initial, option pruning).
type Event struct {
	Type     EventType
	Paths    []string
	Snapshot *Snapshot
}

// pageLinkIDs collects the link ids of top-level groups flagged as pages.
func pageLinkIDs(items []*item.Item) []string {
	var out []string
	for _, it := range items {
		if it.Page && it.Type == item.TypeGroup {
			out = append(out, it.LinkID)
		}
	}
	return out
}

// pageBlocking reports whether any blocking validation result sits under the
// given page group.
func pageBlocking(snap *Snapshot, pageLinkID string) bool {
	for path, rs := range snap.results {
		if path != pageLinkID && !strings.HasPrefix(path, pageLinkID+".") {
			continue
		}
		for _, r := range rs {
			if r.Status == validation.StatusInvalid && r.Severity == item.SeverityError {
				return true
			}
		}
	}
	return false
}
