package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedYAML = `
databases:
  - name: default
    templates: [GitHub Repository, Empty]
    elements:
      - name: cobra
        template: GitHub Repository
        attributes:
          Owner: spf13
          Repository: cobra
          Threshold: 10
          Ratio: 0.5
          Private: false
`

func TestSeed(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")
	s, err := Open(ctx, path)
	require.NoError(t, err)

	n, err := Seed(ctx, s, strings.NewReader(seedYAML))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, s.Close())

	client := NewClient()
	defer client.Close()
	cat, err := client.Connect(ctx, path, "default")
	require.NoError(t, err)
	defer cat.Close()

	ok, err := cat.HasTemplate(ctx, "Empty")
	require.NoError(t, err)
	assert.True(t, ok)

	assets, err := cat.EnumerateByTemplate(ctx, "GitHub Repository")
	require.NoError(t, err)
	require.Len(t, assets, 1)
	a := assets[0]
	owner, err := a.Attribute("Owner")
	require.NoError(t, err)
	assert.Equal(t, "spf13", owner.AsString())
	th, err := a.Attribute("Threshold")
	require.NoError(t, err)
	v, err := th.AsInt()
	require.NoError(t, err)
	assert.Equal(t, int64(10), v)
}

func TestSeedRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer s.Close()

	_, err = Seed(ctx, s, strings.NewReader("databases:\n  - name: x\n    bogus: 1\n"))
	assert.Error(t, err)

	_, err = Seed(ctx, s, strings.NewReader("databases:\n  - name: x\n    elements:\n      - name: e\n"))
	assert.ErrorContains(t, err, "needs name and template")

	_, err = Seed(ctx, s, strings.NewReader("databases:\n  - name: x\n    elements:\n      - name: e\n        template: T\n        attributes:\n          A: [1, 2]\n"))
	assert.ErrorContains(t, err, "attribute A")
}
