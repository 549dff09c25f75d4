// Package summary renders a read-only HTML digest of a form session: the
// enabled items with their current answers, outstanding validation messages,
// and theme styling. It is the review-mode counterpart to the interactive
// terminal flow.
package summary

import (
	"bytes"
	"fmt"
	"strings"

	theme "github.com/goliatone/go-theme"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/goliatone/go-formstate/pkg/engine"
	"github.com/goliatone/go-formstate/pkg/item"
	"github.com/goliatone/go-formstate/pkg/response"
	"github.com/goliatone/go-formstate/pkg/validation"
)

// Row is one rendered line of the summary. Section rows introduce a group,
// value rows carry the formatted answer.
type Row struct {
	Path     string
	Label    string
	Value    string
	Depth    int
	Section  bool
	Messages []string
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithEngine replaces the default template engine.
func WithEngine(eng *Engine) Option {
	return func(r *Renderer) {
		if eng != nil {
			r.engine = eng
		}
	}
}

// WithTemplate sets the template: a file path resolved by the engine's
// loaders, or inline template content.
func WithTemplate(tmpl string) Option {
	return func(r *Renderer) {
		if strings.TrimSpace(tmpl) != "" {
			r.template = tmpl
		}
	}
}

// WithTheme applies a theme configuration to the rendered page.
func WithTheme(cfg *theme.RendererConfig) Option {
	return func(r *Renderer) {
		r.theme = cfg
	}
}

// WithTitle overrides the page title; defaults to the definition title.
func WithTitle(title string) Option {
	return func(r *Renderer) {
		r.title = strings.TrimSpace(title)
	}
}

// Renderer turns a session snapshot into an HTML summary. Item text is
// treated as markdown and sanitized before it reaches the template.
type Renderer struct {
	engine   *Engine
	template string
	theme    *theme.RendererConfig
	title    string

	markdown goldmark.Markdown
	policy   *bluemonday.Policy
}

// New constructs a Renderer with the default inline template.
func New(options ...Option) (*Renderer, error) {
	eng, err := NewEngine()
	if err != nil {
		return nil, err
	}
	r := &Renderer{
		engine:   eng,
		template: defaultTemplate,
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy:   bluemonday.UGCPolicy(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Render produces the HTML summary for a snapshot.
func (r *Renderer) Render(snap *engine.Snapshot) (string, error) {
	if snap == nil {
		return "", fmt.Errorf("summary: snapshot is nil")
	}

	def := snap.Definition()
	resp := snap.Response()

	title := r.title
	if title == "" {
		title = def.Title
	}

	rows := r.collectRows(snap, resp, def.Items, "", 0)

	data := map[string]any{
		"title": title,
		"mode":  string(snap.Mode()),
		"rows":  rows,
		"theme": buildThemeContext(r.theme),
	}
	return r.engine.Render(r.template, data)
}

func (r *Renderer) collectRows(snap *engine.Snapshot, resp *response.Tree, items []*item.Item, base string, depth int) []Row {
	var rows []Row
	for _, it := range items {
		path := joinPath(base, it.LinkID)
		if !snap.Enabled(path) {
			continue
		}
		switch {
		case it.Type == item.TypeDisplay:
			rows = append(rows, Row{
				Path:    path,
				Label:   r.renderText(it.Text),
				Depth:   depth,
				Section: true,
			})
		case it.Type == item.TypeGroup && it.Repeats:
			for idx := 0; ; idx++ {
				instPath := fmt.Sprintf("%s.%d", path, idx)
				if _, err := resp.Resolve(instPath); err != nil {
					break
				}
				if !snap.Enabled(instPath) {
					continue
				}
				rows = append(rows, Row{
					Path:    instPath,
					Label:   r.renderText(fmt.Sprintf("%s %d", labelFor(it), idx+1)),
					Depth:   depth,
					Section: true,
				})
				rows = append(rows, r.collectRows(snap, resp, it.Children, instPath, depth+1)...)
			}
		case it.Type == item.TypeGroup:
			rows = append(rows, Row{
				Path:    path,
				Label:   r.renderText(labelFor(it)),
				Depth:   depth,
				Section: true,
			})
			rows = append(rows, r.collectRows(snap, resp, it.Children, path, depth+1)...)
		default:
			rows = append(rows, Row{
				Path:     path,
				Label:    r.renderText(labelFor(it)),
				Value:    formatValue(snap.Value(path)),
				Depth:    depth,
				Messages: validation.Messages(snap.Validation()[path]),
			})
		}
	}
	return rows
}

// renderText converts markdown item text to sanitized inline HTML.
func (r *Renderer) renderText(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(text), &buf); err != nil {
		return r.policy.Sanitize(text)
	}
	out := r.policy.Sanitize(buf.String())
	out = strings.TrimSpace(out)
	// single-paragraph text renders inline
	if strings.HasPrefix(out, "<p>") && strings.HasSuffix(out, "</p>") && strings.Count(out, "<p>") == 1 {
		out = strings.TrimSuffix(strings.TrimPrefix(out, "<p>"), "</p>")
	}
	return out
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case []any:
		parts := make([]string, 0, len(v))
		for _, entry := range v {
			parts = append(parts, fmt.Sprint(entry))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(v)
	}
}

func labelFor(it *item.Item) string {
	if strings.TrimSpace(it.Text) != "" {
		return it.Text
	}
	return it.LinkID
}

func joinPath(base, linkID string) string {
	if base == "" {
		return linkID
	}
	return base + "." + linkID
}
