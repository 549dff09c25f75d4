// Package formstate exposes the module's primary entry points from the root:
// loading a form definition, opening an evaluated session over it, and
// rendering the session state. The heavy lifting lives in the pkg
// subpackages; this package only re-exports the common path.
package formstate

import (
	"context"

	"github.com/goliatone/go-formstate/pkg/engine"
	"github.com/goliatone/go-formstate/pkg/item"
	"github.com/goliatone/go-formstate/pkg/loader"
	pkgopenapi "github.com/goliatone/go-formstate/pkg/openapi"
	"github.com/goliatone/go-formstate/pkg/renderers/summary"
	"github.com/goliatone/go-formstate/pkg/response"
)

// Definition is the item definition tree of a form.
type Definition = item.Tree

// Response is the hierarchical answer tree of a session.
type Response = response.Tree

// Session is a live, evaluated form session.
type Session = engine.Session

// Snapshot is an immutable view of a session after an evaluation pass.
type Snapshot = engine.Snapshot

// Source locates a definition or response document.
type Source = loader.Source

// SourceFromFile locates a document on the local filesystem.
func SourceFromFile(path string) Source { return loader.SourceFromFile(path) }

// SourceFromURL locates a document over HTTP(S); loading it requires
// loader.WithHTTPFallback.
func SourceFromURL(raw string) Source { return loader.SourceFromURL(raw) }

// New builds an evaluation engine for a definition.
func New(def *Definition, options ...engine.Option) (*engine.Engine, error) {
	return engine.New(def, options...)
}

// Open loads a definition from src and opens a session over it. It is the
// simplest entry point for callers that want a live form.
func Open(ctx context.Context, src Source, options ...engine.SessionOption) (*Session, error) {
	def, err := loader.New().LoadDefinition(ctx, src)
	if err != nil {
		return nil, err
	}
	eng, err := engine.New(def)
	if err != nil {
		return nil, err
	}
	return eng.OpenSession(options...)
}

// OpenFromOpenAPI imports a definition from an OpenAPI document's request
// schema and opens a session over it.
func OpenFromOpenAPI(ctx context.Context, src Source, operationID string, options ...engine.SessionOption) (*Session, error) {
	doc, err := loader.New().Load(ctx, src)
	if err != nil {
		return nil, err
	}
	def, err := pkgopenapi.New().Import(ctx, doc.Raw(), operationID)
	if err != nil {
		return nil, err
	}
	eng, err := engine.New(def)
	if err != nil {
		return nil, err
	}
	return eng.OpenSession(options...)
}

// RenderSummary renders the default HTML summary of a snapshot.
func RenderSummary(snap *Snapshot, options ...summary.Option) (string, error) {
	renderer, err := summary.New(options...)
	if err != nil {
		return "", err
	}
	return renderer.Render(snap)
}
