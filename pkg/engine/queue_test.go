package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/asset"
)

func TestAssetQueueCopyOnReplace(t *testing.T) {
	var q AssetQueue
	assert.Nil(t, q.Snapshot())
	assert.Equal(t, 0, q.Len())

	in := []*asset.Descriptor{asset.New("1", "a", "T", nil), asset.New("2", "b", "T", nil)}
	q.Replace(in)
	old := q.Snapshot()

	in[0] = nil
	assert.NotNil(t, q.Snapshot()[0])

	q.Replace([]*asset.Descriptor{asset.New("3", "c", "T", nil)})
	assert.Len(t, old, 2)
	assert.Equal(t, "a", old[0].Name())
	assert.Equal(t, 1, q.Len())
}

func TestCheckSnapshot(t *testing.T) {
	assert.NoError(t, checkSnapshot(nil))
	assert.ErrorIs(t, checkSnapshot([]*asset.Descriptor{asset.New("1", "a", "T", nil), nil}), ErrQueueCorrupted)
}
