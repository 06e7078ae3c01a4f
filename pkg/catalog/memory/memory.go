// Package memory is an in-process directory service. It backs tests and
// dry runs; state lives as long as the Server value.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/asset"
	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/catalog"
)

type element struct {
	id       string
	parentID string
	name     string
	path     string
	template string
	attrs    map[string]asset.Value
}

type database struct {
	templates map[string]struct{}
	elements  []*element
}

// Server holds any number of named databases.
type Server struct {
	name string

	mu     sync.RWMutex
	dbs    map[string]*database
	nextID int

	// ConnectErr, when set, is returned by every Connect call.
	ConnectErr error
}

func NewServer(name string) *Server {
	return &Server{name: name, dbs: map[string]*database{}}
}

// Client returns a catalog.Client that connects to this server only.
func (s *Server) Client() catalog.Client {
	return catalog.ClientFunc(func(ctx context.Context, serverName, databaseName string) (catalog.Catalog, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if s.ConnectErr != nil {
			return nil, fmt.Errorf("%w: %v", catalog.ErrConnection, s.ConnectErr)
		}
		if serverName != s.name {
			return nil, fmt.Errorf("%w: unknown server %q", catalog.ErrConnection, serverName)
		}
		if _, ok := s.dbs[databaseName]; !ok {
			return nil, fmt.Errorf("%w: %q", catalog.ErrDatabaseNotFound, databaseName)
		}
		return &conn{server: s, db: databaseName}, nil
	})
}

func (s *Server) AddDatabase(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dbs[name]; !ok {
		s.dbs[name] = &database{templates: map[string]struct{}{}}
	}
}

func (s *Server) AddTemplate(db, template string) {
	s.AddDatabase(db)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dbs[db].templates[template] = struct{}{}
}

// AddElement adds a root element and returns its id.
func (s *Server) AddElement(db, name, template string, attrs map[string]asset.Value) string {
	s.AddTemplate(db, template)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(db, "", name, name, template, attrs).id
}

// RemoveElements drops every element derived from template in db.
func (s *Server) RemoveElements(db, template string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.dbs[db]
	if !ok {
		return
	}
	kept := d.elements[:0]
	for _, e := range d.elements {
		if e.template != template {
			kept = append(kept, e)
		}
	}
	d.elements = kept
}

// Children lists child element names of the element with parentID.
func (s *Server) Children(db, parentID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dbs[db]
	if !ok {
		return nil
	}
	var out []string
	for _, e := range d.elements {
		if e.parentID == parentID {
			out = append(out, e.name)
		}
	}
	return out
}

func (s *Server) addLocked(db, parentID, name, path, template string, attrs map[string]asset.Value) *element {
	s.nextID++
	e := &element{
		id:       strconv.Itoa(s.nextID),
		parentID: parentID,
		name:     name,
		path:     path,
		template: template,
		attrs:    attrs,
	}
	s.dbs[db].elements = append(s.dbs[db].elements, e)
	return e
}

type conn struct {
	server *Server
	db     string

	mu     sync.Mutex
	closed bool
}

func (c *conn) check() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return catalog.ErrClosed
	}
	return nil
}

func (c *conn) HasTemplate(ctx context.Context, name string) (bool, error) {
	if err := c.check(); err != nil {
		return false, err
	}
	c.server.mu.RLock()
	defer c.server.mu.RUnlock()
	_, ok := c.server.dbs[c.db].templates[name]
	return ok, nil
}

func (c *conn) EnumerateByTemplate(ctx context.Context, name string) ([]*asset.Descriptor, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	c.server.mu.RLock()
	defer c.server.mu.RUnlock()
	var out []*asset.Descriptor
	for _, e := range c.server.dbs[c.db].elements {
		if e.template == name {
			out = append(out, c.descriptor(e))
		}
	}
	return out, nil
}

func (c *conn) CreateChild(ctx context.Context, parent *asset.Descriptor, name, template string) (*asset.Descriptor, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	return c.creator().CreateChild(ctx, parent, name, template)
}

func (c *conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *conn) creator() *creator { return &creator{server: c.server, db: c.db} }

func (c *conn) descriptor(e *element) *asset.Descriptor { return c.creator().descriptor(e) }

// creator outlives the connection handle so descriptors from a closed
// handle can still materialise children.
type creator struct {
	server *Server
	db     string
}

func (cr *creator) CreateChild(ctx context.Context, parent *asset.Descriptor, name, template string) (*asset.Descriptor, error) {
	cr.server.mu.Lock()
	defer cr.server.mu.Unlock()
	d := cr.server.dbs[cr.db]
	for _, e := range d.elements {
		if e.parentID == parent.ID() && e.name == name {
			return cr.descriptor(e), nil
		}
	}
	d.templates[template] = struct{}{}
	e := cr.server.addLocked(cr.db, parent.ID(), name, parent.Path()+`\`+name, template, nil)
	return cr.descriptor(e), nil
}

func (cr *creator) descriptor(e *element) *asset.Descriptor {
	return asset.New(e.id, e.name, e.template, e.attrs, asset.WithPath(e.path), asset.WithCreator(cr))
}
