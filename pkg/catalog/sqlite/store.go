// Package sqlite implements the directory service on a SQLite file. The
// server name is the file path; databases, templates and elements are rows.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/asset"
	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/catalog"
	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS databases (
    id   INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS templates (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    database_id INTEGER NOT NULL REFERENCES databases(id) ON DELETE CASCADE,
    name        TEXT NOT NULL,
    UNIQUE(database_id, name)
);
CREATE TABLE IF NOT EXISTS elements (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    database_id INTEGER NOT NULL REFERENCES databases(id) ON DELETE CASCADE,
    parent_id   INTEGER REFERENCES elements(id) ON DELETE CASCADE,
    template_id INTEGER NOT NULL REFERENCES templates(id),
    name        TEXT NOT NULL,
    path        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_elements_template ON elements(template_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_elements_parent_name ON elements(database_id, IFNULL(parent_id, 0), name);
CREATE TABLE IF NOT EXISTS attributes (
    element_id INTEGER NOT NULL REFERENCES elements(id) ON DELETE CASCADE,
    name       TEXT NOT NULL,
    kind       TEXT NOT NULL,
    value      TEXT NOT NULL,
    PRIMARY KEY(element_id, name)
);
`

// Store is an open catalog file. It is shared by every connection handle
// the Client hands out for the same path.
type Store struct {
	path string
	db   *sql.DB
	log  *zap.Logger
}

// DSN returns the modernc.org/sqlite data source for path.
func DSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
}

// Open opens (or creates) the catalog file and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite catalog: %w", err)
	}
	// single writer; the driver serialises on the file anyway
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite catalog: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply catalog schema: %w", err)
	}
	s := &Store{path: path, db: db, log: logger.Named("catalog")}
	s.log.Debug("sqlite catalog opened", zap.String("path", path))
	return s, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// EnsureDatabase returns the id of the named database, creating it if needed.
func (s *Store) EnsureDatabase(ctx context.Context, name string) (int64, error) {
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO databases(name) VALUES (?)`, name); err != nil {
		return 0, fmt.Errorf("insert database %q: %w", name, err)
	}
	return s.databaseID(ctx, s.db, name)
}

// EnsureTemplate returns the id of the named template, creating it if needed.
func (s *Store) EnsureTemplate(ctx context.Context, databaseID int64, name string) (int64, error) {
	return ensureTemplate(ctx, s.db, databaseID, name)
}

// PutElement creates or updates a root element and replaces its attributes.
func (s *Store) PutElement(ctx context.Context, database, template, name string, attrs map[string]asset.Value) (string, error) {
	dbID, err := s.EnsureDatabase(ctx, database)
	if err != nil {
		return "", err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	tplID, err := ensureTemplate(ctx, tx, dbID, template)
	if err != nil {
		return "", err
	}

	var id int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM elements WHERE database_id = ? AND parent_id IS NULL AND name = ?`, dbID, name).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx,
			`INSERT INTO elements(database_id, parent_id, template_id, name, path) VALUES (?, NULL, ?, ?, ?)`,
			dbID, tplID, name, name)
		if err != nil {
			return "", fmt.Errorf("insert element %q: %w", name, err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return "", err
		}
	case err != nil:
		return "", fmt.Errorf("lookup element %q: %w", name, err)
	default:
		if _, err := tx.ExecContext(ctx, `UPDATE elements SET template_id = ? WHERE id = ?`, tplID, id); err != nil {
			return "", fmt.Errorf("update element %q: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM attributes WHERE element_id = ?`, id); err != nil {
			return "", fmt.Errorf("clear attributes of %q: %w", name, err)
		}
	}

	for k, v := range attrs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO attributes(element_id, name, kind, value) VALUES (?, ?, ?, ?)`,
			id, k, string(v.Kind()), v.Text()); err != nil {
			return "", fmt.Errorf("insert attribute %s.%s: %w", name, k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit element %q: %w", name, err)
	}
	return strconv.FormatInt(id, 10), nil
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) databaseID(ctx context.Context, q querier, name string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `SELECT id FROM databases WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %q", catalog.ErrDatabaseNotFound, name)
	}
	if err != nil {
		return 0, fmt.Errorf("lookup database %q: %w", name, err)
	}
	return id, nil
}

func ensureTemplate(ctx context.Context, q querier, databaseID int64, name string) (int64, error) {
	if _, err := q.ExecContext(ctx,
		`INSERT OR IGNORE INTO templates(database_id, name) VALUES (?, ?)`, databaseID, name); err != nil {
		return 0, fmt.Errorf("insert template %q: %w", name, err)
	}
	var id int64
	if err := q.QueryRowContext(ctx,
		`SELECT id FROM templates WHERE database_id = ? AND name = ?`, databaseID, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("lookup template %q: %w", name, err)
	}
	return id, nil
}
