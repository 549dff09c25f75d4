// Package openapi imports form definitions from OpenAPI documents. The request
// body schema of an operation maps onto a definition tree: objects become
// groups, arrays repeat, enums become choices.
package openapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formstate/pkg/item"
)

// Options configures schema import.
type Options struct {
	// ContentType selects the request body media type. Defaults to
	// application/json.
	ContentType string

	// Validate runs full document validation before extraction.
	Validate bool

	// ResolveReferences allows following external $ref targets.
	ResolveReferences bool
}

// Option mutates Options prior to construction.
type Option func(*Options)

// WithContentType selects the request body media type to import.
func WithContentType(ct string) Option {
	return func(opts *Options) { opts.ContentType = ct }
}

// WithValidation enables document validation before extraction.
func WithValidation() Option {
	return func(opts *Options) { opts.Validate = true }
}

// WithExternalRefs allows resolving references outside the document.
func WithExternalRefs() Option {
	return func(opts *Options) { opts.ResolveReferences = true }
}

// Importer converts OpenAPI operations into definition trees.
type Importer struct {
	options Options
}

// New constructs an Importer.
func New(options ...Option) *Importer {
	cfg := Options{ContentType: "application/json"}
	for _, opt := range options {
		opt(&cfg)
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "application/json"
	}
	return &Importer{options: cfg}
}

// Import extracts the request body schema of the operation identified by
// operationId and converts it into a validated definition tree.
func (i *Importer) Import(ctx context.Context, raw []byte, operationID string) (*item.Tree, error) {
	if len(raw) == 0 {
		return nil, errors.New("openapi: document payload is empty")
	}
	loader := &openapi3.Loader{
		Context:               ctx,
		IsExternalRefsAllowed: i.options.ResolveReferences,
	}
	spec, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("openapi: load document: %w", err)
	}
	if i.options.Validate {
		if err := spec.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
			return nil, fmt.Errorf("openapi: validate: %w", err)
		}
	}

	op, err := findOperation(spec, operationID)
	if err != nil {
		return nil, err
	}
	schema, err := i.requestSchema(op)
	if err != nil {
		return nil, fmt.Errorf("openapi: operation %s: %w", operationID, err)
	}

	tree := &item.Tree{
		ID:    operationID,
		Title: firstNonEmpty(op.Summary, operationID),
		Items: i.convertObject(schema),
	}
	if err := tree.Validate(); err != nil {
		return nil, err
	}
	return tree, nil
}

func findOperation(spec *openapi3.T, operationID string) (*openapi3.Operation, error) {
	if spec.Paths == nil {
		return nil, errors.New("openapi: document does not contain any paths")
	}
	for _, pathItem := range spec.Paths.Map() {
		if pathItem == nil {
			continue
		}
		for _, op := range pathItem.Operations() {
			if op != nil && op.OperationID == operationID {
				return op, nil
			}
		}
	}
	return nil, fmt.Errorf("openapi: operation %q not found", operationID)
}

func (i *Importer) requestSchema(op *openapi3.Operation) (*openapi3.Schema, error) {
	if op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil, errors.New("no request body")
	}
	media := op.RequestBody.Value.Content.Get(i.options.ContentType)
	if media == nil || media.Schema == nil || media.Schema.Value == nil {
		return nil, fmt.Errorf("no %s schema", i.options.ContentType)
	}
	schema := media.Schema.Value
	if !schema.Type.Is(openapi3.TypeObject) {
		return nil, errors.New("request body is not an object")
	}
	return schema, nil
}

// convertObject maps object properties to sibling items, required properties
// flagged. Property order in OpenAPI maps is undefined, so output is sorted
// by name for determinism.
func (i *Importer) convertObject(schema *openapi3.Schema) []*item.Item {
	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []*item.Item
	for _, name := range names {
		ref := schema.Properties[name]
		if ref == nil || ref.Value == nil {
			continue
		}
		if it := i.convertProperty(name, ref.Value, required[name]); it != nil {
			out = append(out, it)
		}
	}
	return out
}

func (i *Importer) convertProperty(name string, schema *openapi3.Schema, required bool) *item.Item {
	it := &item.Item{
		LinkID:   name,
		Text:     firstNonEmpty(schema.Title, schema.Description, name),
		Required: required,
		ReadOnly: schema.ReadOnly,
	}

	switch {
	case schema.Type.Is(openapi3.TypeObject):
		it.Type = item.TypeGroup
		it.Children = i.convertObject(schema)
	case schema.Type.Is(openapi3.TypeArray):
		if schema.Items == nil || schema.Items.Value == nil {
			return nil
		}
		inner := i.convertProperty(name, schema.Items.Value, false)
		if inner == nil {
			return nil
		}
		inner.Repeats = true
		inner.Required = required
		if schema.MinItems > 0 {
			inner.MinOccurs = int(schema.MinItems)
		}
		if schema.MaxItems != nil {
			inner.MaxOccurs = int(*schema.MaxItems)
		}
		return inner
	case len(schema.Enum) > 0:
		it.Type = item.TypeChoice
		for _, v := range schema.Enum {
			it.AnswerOptions = append(it.AnswerOptions, item.AnswerOption{Value: v})
		}
	case schema.Type.Is(openapi3.TypeBoolean):
		it.Type = item.TypeBoolean
	case schema.Type.Is(openapi3.TypeInteger):
		it.Type = item.TypeInteger
	case schema.Type.Is(openapi3.TypeNumber):
		it.Type = item.TypeDecimal
	case schema.Type.Is(openapi3.TypeString):
		it.Type = stringType(schema.Format)
	default:
		it.Type = item.TypeString
	}

	if schema.Default != nil {
		it.Initial = []any{schema.Default}
	}
	return it
}

func stringType(format string) item.Type {
	switch format {
	case "date":
		return item.TypeDate
	case "date-time":
		return item.TypeDateTime
	case "binary", "byte":
		return item.TypeAttachment
	default:
		return item.TypeString
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
