package render

import (
	"fmt"

	"winsync/internal/annotate"
	"winsync/internal/ports"
	"winsync/internal/types"
)

// Renderer pairs a client-side template with the properties the template binds to.
// The engine only ever sees its Annotator.
type Renderer struct {
	template string
	props    *annotate.Properties
	extra    []annotate.Annotator
	table    *SideTable
}

func New(template string) *Renderer {
	return &Renderer{template: template, props: annotate.NewProperties()}
}

// Text is the default renderer: a single "label" property shown by "[[item.label]]".
// A nil fn labels items with their default string form.
func Text(fn func(types.Item) string) *Renderer {
	vp := annotate.Label
	if fn != nil {
		vp = func(item types.Item) (any, error) { return fn(item), nil }
	}
	return New("[[item.label]]").WithProperty("label", vp)
}

func (r *Renderer) WithProperty(name string, fn annotate.ValueProvider) *Renderer {
	r.props.With(name, fn)
	return r
}

// WithExpression binds name to a JMESPath expression evaluated against each item.
func (r *Renderer) WithExpression(name, expression string) (*Renderer, error) {
	fn, err := annotate.Expression(expression)
	if err != nil {
		return nil, err
	}
	return r.WithProperty(name, fn), nil
}

func (r *Renderer) Template() string { return r.template }

func (r *Renderer) Properties() []string { return r.props.Names() }

// Annotator returns the single annotator that writes every property of this renderer.
func (r *Renderer) Annotator() annotate.Annotator {
	if len(r.extra) == 0 {
		return r.props
	}
	return chain(append([]annotate.Annotator{r.props}, r.extra...))
}

// Component makes rows externally rendered: each representation additionally carries the
// artifact for its key under field, resolved through table.
func (r *Renderer) Component(field string, table ports.ArtifactTable) *Renderer {
	r.extra = append(r.extra, annotate.NewRefAnnotator(field, table, nil))
	if st, ok := table.(*SideTable); ok {
		r.table = st
	}
	return r
}

// SideTable is the table hosts bind external ids into, or nil for a plain template renderer.
func (r *Renderer) SideTable() *SideTable { return r.table }

// FromConfig builds a template renderer from config. An empty config yields Text(nil).
// A component block adds a side table and the ref artifact field.
func FromConfig(cfg types.RendererConfig) (*Renderer, error) {
	var r *Renderer
	if len(cfg.Properties) == 0 {
		r = Text(nil)
		if cfg.Template != "" {
			r.template = cfg.Template
		}
	} else {
		r = New(cfg.Template)
		for _, p := range cfg.Properties {
			if _, err := r.WithExpression(p.Name, p.Expr); err != nil {
				return nil, fmt.Errorf("renderer property %s: %w", p.Name, err)
			}
		}
	}
	if cfg.Component != nil {
		table, err := NewSideTable(cfg.Component.TableSize)
		if err != nil {
			return nil, fmt.Errorf("renderer component: %w", err)
		}
		r.Component(cfg.Component.Field, table)
	}
	return r, nil
}

// ItemTemplate wraps the renderer template with the placeholder branch the client shows
// while a row is cleared.
func ItemTemplate(placeholder string, r *Renderer) string {
	return fmt.Sprintf(
		"<span>"+
			"<template is='dom-if' if='[[item.%[1]s]]'>%[2]s</template>"+
			"<template is='dom-if' if='[[!item.%[1]s]]'>%[3]s</template>"+
			"</span>",
		types.PlaceholderField, placeholder, r.Template())
}

type chain []annotate.Annotator

func (c chain) Annotate(item types.Item, rep types.Representation) error {
	for _, a := range c {
		if err := a.Annotate(item, rep); err != nil {
			return err
		}
	}
	return nil
}

func (c chain) Destroy(key string, item types.Item) {
	for _, a := range c {
		if d, ok := a.(annotate.Destroyer); ok {
			d.Destroy(key, item)
		}
	}
}
