package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/asset"
	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/catalog"
)

// Client implements catalog.Client. Stores are opened lazily per server path
// and kept until Close.
type Client struct {
	mu     sync.Mutex
	stores map[string]*Store
}

func NewClient() *Client {
	return &Client{stores: map[string]*Store{}}
}

func (c *Client) store(ctx context.Context, path string) (*Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.stores[path]; ok {
		return s, nil
	}
	s, err := Open(ctx, path)
	if err != nil {
		return nil, err
	}
	c.stores[path] = s
	return s, nil
}

// Connect opens the server file and resolves the database by name.
func (c *Client) Connect(ctx context.Context, serverName, databaseName string) (catalog.Catalog, error) {
	s, err := c.store(ctx, serverName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", catalog.ErrConnection, err)
	}
	id, err := s.databaseID(ctx, s.db, databaseName)
	if err != nil {
		return nil, err
	}
	s.log.Debug("catalog connected", zap.String("server", serverName), zap.String("database", databaseName))
	return &conn{store: s, databaseID: id}, nil
}

// Close closes every store opened by this client.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for path, s := range c.stores {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", path, err))
		}
		delete(c.stores, path)
	}
	return errors.Join(errs...)
}

type conn struct {
	store      *Store
	databaseID int64

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
	var n int
	err := c.store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM templates WHERE database_id = ? AND name = ?`, c.databaseID, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup template %q: %w", name, err)
	}
	return n > 0, nil
}

func (c *conn) EnumerateByTemplate(ctx context.Context, name string) ([]*asset.Descriptor, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	cr := c.creator()

	rows, err := c.store.db.QueryContext(ctx, `
SELECT e.id, e.name, e.path, a.name, a.kind, a.value
FROM elements e
JOIN templates t ON t.id = e.template_id
LEFT JOIN attributes a ON a.element_id = e.id
WHERE t.database_id = ? AND t.name = ?
ORDER BY e.id`, c.databaseID, name)
	if err != nil {
		return nil, fmt.Errorf("enumerate template %q: %w", name, err)
	}
	defer rows.Close()

	type pending struct {
		id, name, path string
		attrs          map[string]asset.Value
	}
	var order []*pending
	byID := map[int64]*pending{}
	for rows.Next() {
		var (
			id                   int64
			elName, path         string
			attr, kind, rawValue sql.NullString
		)
		if err := rows.Scan(&id, &elName, &path, &attr, &kind, &rawValue); err != nil {
			return nil, fmt.Errorf("scan element: %w", err)
		}
		p, ok := byID[id]
		if !ok {
			p = &pending{id: strconv.FormatInt(id, 10), name: elName, path: path, attrs: map[string]asset.Value{}}
			byID[id] = p
			order = append(order, p)
		}
		if !attr.Valid {
			continue
		}
		v, err := asset.Parse(asset.Kind(kind.String), rawValue.String)
		if err != nil {
			return nil, fmt.Errorf("element %s attribute %q: %w", path, attr.String, err)
		}
		p.attrs[attr.String] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("enumerate template %q: %w", name, err)
	}

	out := make([]*asset.Descriptor, 0, len(order))
	for _, p := range order {
		out = append(out, asset.New(p.id, p.name, name, p.attrs, asset.WithPath(p.path), asset.WithCreator(cr)))
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

func (c *conn) creator() *creator { return &creator{store: c.store, databaseID: c.databaseID} }

// creator is bound to the store rather than the handle so descriptors stay
// usable after the handle that produced them is closed.
type creator struct {
	store      *Store
	databaseID int64
}

func (cr *creator) CreateChild(ctx context.Context, parent *asset.Descriptor, name, template string) (*asset.Descriptor, error) {
	parentID, err := strconv.ParseInt(parent.ID(), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parent id %q: %w", parent.ID(), err)
	}
	tx, err := cr.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		id      int64
		path    string
		tplName string
	)
	err = tx.QueryRowContext(ctx, `
SELECT e.id, e.path, t.name FROM elements e JOIN templates t ON t.id = e.template_id
WHERE e.parent_id = ? AND e.name = ?`, parentID, name).Scan(&id, &path, &tplName)
	switch {
	case err == nil:
		return asset.New(strconv.FormatInt(id, 10), name, tplName, nil,
			asset.WithPath(path), asset.WithCreator(cr)), nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("lookup child %q of %s: %w", name, parent.Path(), err)
	}

	tplID, err := ensureTemplate(ctx, tx, cr.databaseID, template)
	if err != nil {
		return nil, err
	}
	path = parent.Path() + `\` + name
	res, err := tx.ExecContext(ctx,
		`INSERT INTO elements(database_id, parent_id, template_id, name, path) VALUES (?, ?, ?, ?, ?)`,
		cr.databaseID, parentID, tplID, name, path)
	if err != nil {
		return nil, fmt.Errorf("insert child %q of %s: %w", name, parent.Path(), err)
	}
	if id, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit child %q: %w", name, err)
	}
	cr.store.log.Info("created child element", zap.String("path", path), zap.String("template", template))
	return asset.New(strconv.FormatInt(id, 10), name, template, nil, asset.WithPath(path), asset.WithCreator(cr)), nil
}
