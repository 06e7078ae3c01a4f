package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/asset"
	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/catalog"
)

func seed(t *testing.T, path string) {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.PutElement(ctx, "default", "GitHub Repository", "cli", map[string]asset.Value{
		"Owner":      asset.String("spf13"),
		"Repository": asset.String("cobra"),
		"Threshold":  asset.Int(10),
	})
	require.NoError(t, err)
	_, err = s.PutElement(ctx, "default", "GitHub Repository", "bare", nil)
	require.NoError(t, err)
	_, err = s.PutElement(ctx, "default", "Host", "box", nil)
	require.NoError(t, err)
}

func TestEnumerateByTemplate(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")
	seed(t, path)

	client := NewClient()
	defer client.Close()

	cat, err := client.Connect(ctx, path, "default")
	require.NoError(t, err)
	defer cat.Close()

	ok, err := cat.HasTemplate(ctx, "GitHub Repository")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = cat.HasTemplate(ctx, "Nope")
	require.NoError(t, err)
	assert.False(t, ok)

	assets, err := cat.EnumerateByTemplate(ctx, "GitHub Repository")
	require.NoError(t, err)
	require.Len(t, assets, 2)

	byName := map[string]*asset.Descriptor{}
	for _, a := range assets {
		byName[a.Name()] = a
	}
	owner, err := byName["cli"].Attribute("Owner")
	require.NoError(t, err)
	assert.Equal(t, "spf13", owner.AsString())
	th, err := byName["cli"].Attribute("Threshold")
	require.NoError(t, err)
	assert.Equal(t, asset.KindInt, th.Kind())
	assert.Empty(t, byName["bare"].Attributes())
}

func TestPutElementReplacesAttributes(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")
	seed(t, path)

	s, err := Open(ctx, path)
	require.NoError(t, err)
	_, err = s.PutElement(ctx, "default", "GitHub Repository", "cli", map[string]asset.Value{
		"Owner": asset.String("other"),
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	client := NewClient()
	defer client.Close()
	cat, err := client.Connect(ctx, path, "default")
	require.NoError(t, err)
	assets, err := cat.EnumerateByTemplate(ctx, "GitHub Repository")
	require.NoError(t, err)
	require.Len(t, assets, 2)
	for _, a := range assets {
		if a.Name() == "cli" {
			assert.Equal(t, []string{"Owner"}, a.AttributeNames())
		}
	}
}

func TestConnectUnknownDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	seed(t, path)

	client := NewClient()
	defer client.Close()
	_, err := client.Connect(context.Background(), path, "missing")
	assert.ErrorIs(t, err, catalog.ErrDatabaseNotFound)
}

func TestConnectUnreachableServer(t *testing.T) {
	client := NewClient()
	defer client.Close()
	_, err := client.Connect(context.Background(), filepath.Join(t.TempDir(), "no", "such", "dir", "c.db"), "default")
	assert.ErrorIs(t, err, catalog.ErrConnection)
}

func TestCreateChildIsIdempotentAndOutlivesHandle(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")
	seed(t, path)

	client := NewClient()
	defer client.Close()
	cat, err := client.Connect(ctx, path, "default")
	require.NoError(t, err)
	assets, err := cat.EnumerateByTemplate(ctx, "Host")
	require.NoError(t, err)
	require.Len(t, assets, 1)
	require.NoError(t, cat.Close())

	_, err = cat.EnumerateByTemplate(ctx, "Host")
	assert.ErrorIs(t, err, catalog.ErrClosed)

	child, err := assets[0].CreateChild(ctx, "Traffic", "Traffic")
	require.NoError(t, err)
	assert.Equal(t, `box\Traffic`, child.Path())

	again, err := assets[0].CreateChild(ctx, "Traffic", "Traffic")
	require.NoError(t, err)
	assert.Equal(t, child.ID(), again.ID())
}
