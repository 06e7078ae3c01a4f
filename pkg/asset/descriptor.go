// Package asset holds the descriptors enumerated from the directory service.
// A Descriptor is an immutable snapshot; the engine replaces descriptors on
// refresh and never edits them.
package asset

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrMissingAttribute is returned when an asset has no attribute of the requested name.
	ErrMissingAttribute = errors.New("missing attribute")
	// ErrNoCatalog is returned by CreateChild on a descriptor built without a catalog.
	ErrNoCatalog = errors.New("descriptor is not attached to a catalog")
)

// AttributeRef addresses one attribute of one element in the directory
// service. Collectors resolve it; the engine only carries it.
type AttributeRef struct {
	ElementID string `json:"element_id"`
	Attribute string `json:"attribute"`
}

func (r AttributeRef) String() string { return r.ElementID + "|" + r.Attribute }

// ChildCreator is the catalog side channel used by CreateChild.
type ChildCreator interface {
	CreateChild(ctx context.Context, parent *Descriptor, name, template string) (*Descriptor, error)
}

type Descriptor struct {
	id       string
	name     string
	path     string
	template string
	attrs    map[string]Value
	creator  ChildCreator
}

// Option customises a Descriptor at construction.
type Option func(*Descriptor)

func WithPath(path string) Option       { return func(d *Descriptor) { d.path = path } }
func WithCreator(c ChildCreator) Option { return func(d *Descriptor) { d.creator = c } }
func WithAttribute(name string, v Value) Option {
	return func(d *Descriptor) { d.attrs[name] = v }
}

// New copies attrs so later changes by the caller are not observed.
func New(id, name, template string, attrs map[string]Value, opts ...Option) *Descriptor {
	d := &Descriptor{
		id:       id,
		name:     name,
		path:     name,
		template: template,
		attrs:    make(map[string]Value, len(attrs)),
	}
	for k, v := range attrs {
		d.attrs[k] = v
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Descriptor) ID() string       { return d.id }
func (d *Descriptor) Name() string     { return d.name }
func (d *Descriptor) Path() string     { return d.path }
func (d *Descriptor) Template() string { return d.template }

func (d *Descriptor) String() string { return fmt.Sprintf("%s(%s)", d.path, d.id) }

// Attribute returns the named attribute or an error wrapping ErrMissingAttribute.
func (d *Descriptor) Attribute(name string) (Value, error) {
	v, ok := d.attrs[name]
	if !ok {
		return Value{}, fmt.Errorf("asset %s: %w %q", d.path, ErrMissingAttribute, name)
	}
	return v, nil
}

// AttributeOr returns the attribute or def when it is missing.
func (d *Descriptor) AttributeOr(name string, def Value) Value {
	if v, ok := d.attrs[name]; ok {
		return v
	}
	return def
}

// Attributes returns a copy of the attribute bag.
func (d *Descriptor) Attributes() map[string]Value {
	out := make(map[string]Value, len(d.attrs))
	for k, v := range d.attrs {
		out[k] = v
	}
	return out
}

// AttributeNames returns the attribute names in sorted order.
func (d *Descriptor) AttributeNames() []string {
	names := make([]string, 0, len(d.attrs))
	for k := range d.attrs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Ref builds a reference to an attribute of this element. The attribute does
// not need to exist yet: the write-back stage creates value slots on demand.
func (d *Descriptor) Ref(attribute string) AttributeRef {
	return AttributeRef{ElementID: d.id, Attribute: attribute}
}

// CreateChild asks the owning catalog for a child element. An existing child
// of the same name is returned as-is.
func (d *Descriptor) CreateChild(ctx context.Context, name, template string) (*Descriptor, error) {
	if d.creator == nil {
		return nil, ErrNoCatalog
	}
	return d.creator.CreateChild(ctx, d, name, template)
}
