// Package catalog defines the boundary to the directory service that holds
// asset descriptors organised by template.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/asset"
)

var (
	// ErrConnection wraps every failure to reach the directory service.
	ErrConnection = errors.New("catalog connection failed")
	// ErrDatabaseNotFound is returned by Connect for an unknown database name.
	ErrDatabaseNotFound = errors.New("catalog database not found")
	// ErrTemplateNotFound is returned when the configured template does not exist.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrClosed is returned by a Catalog used after Close.
	ErrClosed = errors.New("catalog closed")
)

// Client opens catalogs. Implementations must be safe for concurrent use.
type Client interface {
	Connect(ctx context.Context, serverName, databaseName string) (Catalog, error)
}

// Catalog is one connected database of the directory service.
type Catalog interface {
	HasTemplate(ctx context.Context, name string) (bool, error)
	// EnumerateByTemplate returns every element derived from the template.
	// Order is unspecified.
	EnumerateByTemplate(ctx context.Context, name string) ([]*asset.Descriptor, error)
	asset.ChildCreator
	Close() error
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, serverName, databaseName string) (Catalog, error)

func (f ClientFunc) Connect(ctx context.Context, serverName, databaseName string) (Catalog, error) {
	return f(ctx, serverName, databaseName)
}

// TemplateNotFound builds the error returned for a missing template.
func TemplateNotFound(name string) error {
	return fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
}
