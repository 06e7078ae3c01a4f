package writer

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/asset"
	catalogdb "github.com/pthivierge/web-service-reader-for-pi-system/pkg/catalog/sqlite"
	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/collector"
)

const samplesSchema = `
CREATE TABLE IF NOT EXISTS samples (
    element_id TEXT    NOT NULL,
    attribute  TEXT    NOT NULL,
    ts         INTEGER NOT NULL,
    kind       TEXT    NOT NULL,
    value      TEXT    NOT NULL,
    collector  TEXT    NOT NULL,
    written_at INTEGER NOT NULL,
    PRIMARY KEY (element_id, attribute, ts)
);
`

// Sample is one stored value.
type Sample struct {
	ElementID string
	Attribute string
	Timestamp time.Time
	Value     asset.Value
	Collector string
}

// SQLiteSink stores values keyed by (element, attribute, timestamp); a
// value written twice for the same key replaces the earlier one.
type SQLiteSink struct {
	db *sql.DB
}

func OpenSQLiteSink(ctx context.Context, path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", catalogdb.DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite sink: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite sink: %w", err)
	}
	if _, err := db.ExecContext(ctx, samplesSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create samples table: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// Write stores the whole batch in one transaction.
func (s *SQLiteSink) Write(ctx context.Context, b collector.Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO samples (element_id, attribute, ts, kind, value, collector, written_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (element_id, attribute, ts) DO UPDATE SET
    kind = excluded.kind, value = excluded.value,
    collector = excluded.collector, written_at = excluded.written_at`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixNano()
	for _, v := range b.Values {
		av, err := asset.FromAny(v.Value)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("value for %s: %w", v.Ref, err)
		}
		if _, err := stmt.ExecContext(ctx, v.Ref.ElementID, v.Ref.Attribute, v.Timestamp.UTC().UnixNano(),
			string(av.Kind()), av.Text(), b.Collector, now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert %s: %w", v.Ref, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Samples returns the stored history of one attribute, oldest first.
func (s *SQLiteSink) Samples(ctx context.Context, elementID, attribute string) ([]Sample, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT ts, kind, value, collector FROM samples
WHERE element_id = ? AND attribute = ? ORDER BY ts`, elementID, attribute)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var (
			ts              int64
			kind, text, col string
		)
		if err := rows.Scan(&ts, &kind, &text, &col); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		v, err := asset.Parse(asset.Kind(kind), text)
		if err != nil {
			return nil, err
		}
		out = append(out, Sample{
			ElementID: elementID,
			Attribute: attribute,
			Timestamp: time.Unix(0, ts).UTC(),
			Value:     v,
			Collector: col,
		})
	}
	return out, rows.Err()
}

func (s *SQLiteSink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
