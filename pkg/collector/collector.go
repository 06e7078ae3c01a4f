// Package collector defines the plugin contract the engine drives. A
// Collector turns one asset descriptor into one batch of time-series values.
package collector

import (
	"context"
	"time"

	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/asset"
)

// Collector 采集器核心接口（所有采集器必须实现）
type Collector interface {
	// Name identifies the collector in logs and metrics.
	Name() string
	// Fetch reads the asset's attributes and the external source and returns
	// the values to write back. A non-nil error means the batch is discarded
	// whole; an empty batch with a nil error means nothing to report.
	// Fetch must not modify a.
	Fetch(ctx context.Context, a *asset.Descriptor) (Batch, error)
	// GetSettings/SetSettings are called before the engine initializes; the
	// engine freezes a copy at Initialize.
	GetSettings() Settings
	SetSettings(Settings)
	// ConcurrencySafe reports whether Fetch may run for distinct assets at
	// the same time. When false the engine serialises calls.
	ConcurrencySafe() bool
}

// Value is one time-series sample addressed to a catalog attribute.
type Value struct {
	Ref       asset.AttributeRef `json:"ref"`
	Value     any                `json:"value"`
	Timestamp time.Time          `json:"timestamp"`
}

// Batch is everything one Fetch produced for one asset, in the order the
// collector considers meaningful.
type Batch struct {
	AssetID   string  `json:"asset_id"`
	AssetPath string  `json:"asset_path"`
	Collector string  `json:"collector"`
	Values    []Value `json:"values"`
}

// NewBatch starts an empty batch for a.
func NewBatch(collector string, a *asset.Descriptor) Batch {
	return Batch{AssetID: a.ID(), AssetPath: a.Path(), Collector: collector}
}

// Add appends a value for attribute of element at ts.
func (b *Batch) Add(ref asset.AttributeRef, v any, ts time.Time) {
	b.Values = append(b.Values, Value{Ref: ref, Value: v, Timestamp: ts})
}

func (b Batch) Len() int      { return len(b.Values) }
func (b Batch) IsEmpty() bool { return len(b.Values) == 0 }
