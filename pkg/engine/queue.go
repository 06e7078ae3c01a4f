package engine

import (
	"sync/atomic"

	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/asset"
)

// AssetQueue holds the current asset snapshot. Replace swaps the whole
// slice; a Snapshot taken before the swap keeps seeing the old one.
type AssetQueue struct {
	p atomic.Pointer[[]*asset.Descriptor]
}

// Snapshot returns the current asset set. Callers must not modify it.
func (q *AssetQueue) Snapshot() []*asset.Descriptor {
	if s := q.p.Load(); s != nil {
		return *s
	}
	return nil
}

// Replace installs a copy of assets as the new snapshot.
func (q *AssetQueue) Replace(assets []*asset.Descriptor) {
	s := make([]*asset.Descriptor, len(assets))
	copy(s, assets)
	q.p.Store(&s)
}

func (q *AssetQueue) Len() int { return len(q.Snapshot()) }
