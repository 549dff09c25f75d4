// Package tui drives an interactive terminal session over a form. It walks
// the definition in document order, prompts only for enabled items, and feeds
// answers back through the session so enablement, calculations, and option
// filtering react between prompts.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-formstate/pkg/controls"
	"github.com/goliatone/go-formstate/pkg/engine"
	"github.com/goliatone/go-formstate/pkg/item"
	"github.com/goliatone/go-formstate/pkg/response"
	"github.com/goliatone/go-formstate/pkg/validation"
)

// maxAttempts bounds re-prompting after invalid input.
const maxAttempts = 3

// Filler runs a prompt flow over an engine session.
type Filler struct {
	driver   PromptDriver
	registry *controls.Registry
}

// Option configures a Filler.
type Option func(*Filler)

// WithDriver replaces the default survey-backed prompt driver.
func WithDriver(driver PromptDriver) Option {
	return func(f *Filler) {
		if driver != nil {
			f.driver = driver
		}
	}
}

// WithControls replaces the default control registry.
func WithControls(reg *controls.Registry) Option {
	return func(f *Filler) {
		if reg != nil {
			f.registry = reg
		}
	}
}

// New constructs a Filler with defaults (survey driver, built-in controls).
func New(options ...Option) *Filler {
	f := &Filler{
		driver:   newSurveyDriver(),
		registry: controls.NewRegistry(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Fill walks the whole form, prompting item by item, and submits when no
// blocking validation results remain. The returned tree is the pruned export.
func (f *Filler) Fill(ctx context.Context, session *engine.Session) (*response.Tree, error) {
	snap := session.Snapshot()
	if snap == nil {
		return nil, fmt.Errorf("tui: session has no snapshot")
	}

	if err := f.walk(ctx, session, snap.Definition().Items, ""); err != nil {
		return nil, err
	}

	snap = session.Snapshot()
	if snap.Blocking() {
		f.reportFailures(ctx, snap)
		return nil, fmt.Errorf("tui: form has blocking validation errors")
	}
	return session.Submit()
}

func (f *Filler) walk(ctx context.Context, session *engine.Session, items []*item.Item, base string) error {
	for _, it := range items {
		path := joinPath(base, it.LinkID)
		if !session.Snapshot().Enabled(path) {
			continue
		}
		if err := f.prompt(ctx, session, it, path); err != nil {
			return err
		}
	}
	return nil
}

func (f *Filler) prompt(ctx context.Context, session *engine.Session, it *item.Item, path string) error {
	control, _ := f.registry.Resolve(it)

	switch {
	case control == controls.ControlStatic:
		return f.driver.Info(ctx, it.Text)
	case it.Type == item.TypeGroup && it.Repeats:
		return f.promptRepeatingGroup(ctx, session, it, path)
	case it.Type == item.TypeGroup:
		if it.Text != "" {
			if err := f.driver.Info(ctx, "-- "+it.Text); err != nil {
				return err
			}
		}
		return f.walk(ctx, session, it.Children, path)
	case it.ReadOnly || it.CalculatedExpression != "":
		return f.showComputed(ctx, session, it, path)
	default:
		return f.promptQuestion(ctx, session, it, path, control)
	}
}

func (f *Filler) promptRepeatingGroup(ctx context.Context, session *engine.Session, it *item.Item, path string) error {
	label := firstNonEmpty(it.Text, it.LinkID)
	// Prefilled responses may already carry instances; new ones append
	// after them.
	count := instanceCount(session.Snapshot(), path)
	for {
		want := count < it.MinOccurs || (count == 0 && it.Required)
		if !want {
			more, err := f.driver.Confirm(ctx, ConfirmConfig{
				Message: fmt.Sprintf("Add %s?", label),
				Default: false,
			})
			if err != nil {
				return err
			}
			if !more {
				return nil
			}
		}
		if _, err := session.AddInstance(path); err != nil {
			return f.driver.Info(ctx, fmt.Sprintf("Cannot add %s: %v", label, err))
		}
		instPath := fmt.Sprintf("%s.%d", path, count)
		if err := f.walk(ctx, session, it.Children, instPath); err != nil {
			return err
		}
		count++
		if it.MaxOccurs > 0 && count >= it.MaxOccurs {
			return nil
		}
	}
}

func (f *Filler) showComputed(ctx context.Context, session *engine.Session, it *item.Item, path string) error {
	value := session.Snapshot().Value(path)
	if value == nil {
		return nil
	}
	return f.driver.Info(ctx, fmt.Sprintf("%s: %v", firstNonEmpty(it.Text, it.LinkID), value))
}

func (f *Filler) promptQuestion(ctx context.Context, session *engine.Session, it *item.Item, path, control string) error {
	label := firstNonEmpty(it.Text, it.LinkID)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		value, err := f.collect(ctx, session, it, path, control, label)
		if err != nil {
			return err
		}

		snap, err := session.SetAnswer(path, value)
		if err != nil {
			if infoErr := f.driver.Info(ctx, fmt.Sprintf("Invalid %s: %v", path, err)); infoErr != nil {
				return infoErr
			}
			continue
		}

		msgs := validation.Messages(snap.Validation()[path])
		if len(msgs) == 0 {
			return nil
		}
		if err := f.driver.Info(ctx, fmt.Sprintf("Invalid %s: %s", path, strings.Join(msgs, "; "))); err != nil {
			return err
		}
	}
	return nil
}

func (f *Filler) collect(ctx context.Context, session *engine.Session, it *item.Item, path, control, label string) (any, error) {
	snap := session.Snapshot()
	options := optionSet(snap, it, path)

	switch control {
	case controls.ControlToggle:
		current, _ := snap.Value(path).(bool)
		return f.driver.Confirm(ctx, ConfirmConfig{Message: label, Default: current})

	case controls.ControlChips:
		labels := stringifyOptions(options)
		indices, err := f.driver.MultiSelect(ctx, SelectConfig{Message: label, Options: labels})
		if err != nil {
			return nil, err
		}
		var values []any
		for _, idx := range indices {
			if idx >= 0 && idx < len(options) {
				values = append(values, options[idx])
			}
		}
		if len(values) == 0 {
			return nil, nil
		}
		return values, nil

	case controls.ControlRadio, controls.ControlSelect:
		labels := stringifyOptions(options)
		defaultIdx := -1
		if current := snap.Value(path); current != nil {
			defaultIdx = indexOf(labels, fmt.Sprint(current))
		}
		idx, err := f.driver.Select(ctx, SelectConfig{
			Message:      label,
			Options:      labels,
			DefaultIndex: defaultIdx,
		})
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= len(options) {
			return nil, nil
		}
		return options[idx], nil

	case controls.ControlTextarea:
		current, _ := snap.Value(path).(string)
		return f.driver.TextArea(ctx, TextAreaConfig{Message: label, Default: current})

	default:
		defaultStr := ""
		if current := snap.Value(path); current != nil {
			defaultStr = fmt.Sprint(current)
		}
		raw, err := f.driver.Input(ctx, InputConfig{Message: label, Default: defaultStr})
		if err != nil {
			return nil, err
		}
		return convertInput(it.Type, raw)
	}
}

// convertInput turns raw terminal input into a typed answer value. Empty
// input clears the answer.
func convertInput(t item.Type, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	switch t {
	case item.TypeInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return raw, nil // let validation report the type mismatch
		}
		return int(n), nil
	case item.TypeDecimal, item.TypeQuantity:
		fl, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return raw, nil
		}
		return fl, nil
	case item.TypeBoolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return raw, nil
		}
		return b, nil
	default:
		return raw, nil
	}
}

func (f *Filler) reportFailures(ctx context.Context, snap *engine.Snapshot) {
	for path, results := range snap.Validation() {
		for _, msg := range validation.Messages(results) {
			_ = f.driver.Info(ctx, fmt.Sprintf("%s: %s", path, msg))
		}
	}
}

// instanceCount reports how many live instances the repeating group at path
// already has, so new instances append after them.
func instanceCount(snap *engine.Snapshot, path string) int {
	resp := snap.Response()
	n := 0
	for {
		if _, err := resp.Resolve(fmt.Sprintf("%s.%d", path, n)); err != nil {
			return n
		}
		n++
	}
}

func optionSet(snap *engine.Snapshot, it *item.Item, path string) []any {
	if opts, ok := snap.Options(path); ok {
		return opts
	}
	return it.Options()
}

func stringifyOptions(options []any) []string {
	out := make([]string, 0, len(options))
	for _, v := range options {
		out = append(out, fmt.Sprint(v))
	}
	return out
}

func joinPath(base, linkID string) string {
	if base == "" {
		return linkID
	}
	return base + "." + linkID
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
