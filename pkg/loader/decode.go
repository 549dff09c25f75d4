package loader

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formstate/pkg/item"
	"github.com/goliatone/go-formstate/pkg/response"
)

// ParseDefinition decodes a definition tree and validates it. YAML being a
// superset of JSON, one decoder covers both payload formats.
func ParseDefinition(doc Document) (*item.Tree, error) {
	var tree item.Tree
	if err := yaml.Unmarshal(doc.Raw(), &tree); err != nil {
		return nil, fmt.Errorf("loader: decode definition %s: %w", doc.Location(), err)
	}
	if err := tree.Validate(); err != nil {
		return nil, err
	}
	return &tree, nil
}

// ParseResponse decodes a saved response document. The result still needs a
// synchronizer pass against its definition before use.
func ParseResponse(doc Document) (*response.Tree, error) {
	var tree response.Tree
	if err := yaml.Unmarshal(doc.Raw(), &tree); err != nil {
		return nil, fmt.Errorf("loader: decode response %s: %w", doc.Location(), err)
	}
	return &tree, nil
}

// LoadDefinition is the one-call path: fetch and decode a definition.
func (l *Loader) LoadDefinition(ctx context.Context, src Source) (*item.Tree, error) {
	doc, err := l.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	return ParseDefinition(doc)
}

// LoadResponse fetches and decodes a saved response document.
func (l *Loader) LoadResponse(ctx context.Context, src Source) (*response.Tree, error) {
	doc, err := l.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	return ParseResponse(doc)
}
