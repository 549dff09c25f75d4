// Package controls maps definition items to rendering controls. Renderers
// consult the registry to pick an input control per item; explicit control
// hints on an item always win over matchers.
package controls

import (
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-formstate/pkg/item"
)

// Built-in control identifiers exposed by the registry.
const (
	ControlToggle    = "toggle"
	ControlSelect    = "select"
	ControlRadio     = "radio"
	ControlChips     = "chips"
	ControlTextarea  = "textarea"
	ControlDate      = "date-picker"
	ControlNumber    = "number"
	ControlText      = "text"
	ControlStatic    = "static"
	ControlFieldset  = "fieldset"
	ControlFileInput = "file"
)

// Matcher decides whether a control should handle the supplied item.
type Matcher func(it *item.Item) bool

type rule struct {
	name     string
	priority int
	match    Matcher
	order    int
}

// Registry selects controls for items based on explicit hints or registered
// matchers. Higher priority wins; ties fall back to registration order.
type Registry struct {
	mu    sync.RWMutex
	rules []rule
}

// NewRegistry constructs a registry with the built-in matchers registered.
func NewRegistry() *Registry {
	reg := &Registry{}
	reg.registerBuiltins()
	return reg
}

// Register adds a control matcher with the provided name and priority. Higher
// priority values take precedence.
func (r *Registry) Register(name string, priority int, matcher Matcher) {
	if r == nil || matcher == nil {
		return
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rules = append(r.rules, rule{
		name:     trimmed,
		priority: priority,
		match:    matcher,
		order:    len(r.rules),
	})
}

// Resolve returns the control name for an item. An explicit Control hint on
// the item is honoured before matcher evaluation.
func (r *Registry) Resolve(it *item.Item) (string, bool) {
	if it == nil {
		return "", false
	}
	if explicit := strings.TrimSpace(it.Control); explicit != "" {
		return explicit, true
	}
	if r == nil {
		return "", false
	}

	r.mu.RLock()
	rules := append([]rule(nil), r.rules...)
	r.mu.RUnlock()
	if len(rules) == 0 {
		return "", false
	}

	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].priority == rules[j].priority {
			return rules[i].order < rules[j].order
		}
		return rules[i].priority > rules[j].priority
	})
	for _, entry := range rules {
		if entry.match(it) {
			return entry.name, true
		}
	}
	return "", false
}

func (r *Registry) registerBuiltins() {
	r.Register(ControlStatic, 95, func(it *item.Item) bool {
		return it.Type == item.TypeDisplay
	})

	r.Register(ControlFieldset, 90, func(it *item.Item) bool {
		return it.Type == item.TypeGroup
	})

	r.Register(ControlToggle, 85, func(it *item.Item) bool {
		return it.Type == item.TypeBoolean
	})

	r.Register(ControlChips, 80, func(it *item.Item) bool {
		return it.Type == item.TypeChoice && it.Repeats
	})

	r.Register(ControlRadio, 75, func(it *item.Item) bool {
		return it.Type == item.TypeChoice && len(it.AnswerOptions) > 0 && len(it.AnswerOptions) <= 4
	})

	r.Register(ControlSelect, 70, func(it *item.Item) bool {
		return it.Type == item.TypeChoice
	})

	r.Register(ControlDate, 65, func(it *item.Item) bool {
		return it.Type == item.TypeDate || it.Type == item.TypeDateTime
	})

	r.Register(ControlNumber, 60, func(it *item.Item) bool {
		return it.Type == item.TypeInteger || it.Type == item.TypeDecimal || it.Type == item.TypeQuantity
	})

	r.Register(ControlTextarea, 55, func(it *item.Item) bool {
		return it.Type == item.TypeText
	})

	r.Register(ControlFileInput, 50, func(it *item.Item) bool {
		return it.Type == item.TypeAttachment
	})

	r.Register(ControlText, 10, func(it *item.Item) bool {
		return it.Type.IsQuestion()
	})
}
