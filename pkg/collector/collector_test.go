package collector

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	cerrors "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/asset"
)

type nopCollector struct{ s Settings }

func (n *nopCollector) Name() string           { return "nop" }
func (n *nopCollector) GetSettings() Settings  { return n.s }
func (n *nopCollector) SetSettings(s Settings) { n.s = s }
func (n *nopCollector) ConcurrencySafe() bool  { return true }
func (n *nopCollector) Fetch(context.Context, *asset.Descriptor) (Batch, error) {
	return Batch{}, nil
}

func TestRegistry(t *testing.T) {
	Register("nop-test", func(s Settings) (Collector, error) { return &nopCollector{s: s}, nil })
	Register("broken-test", func(Settings) (Collector, error) { return nil, errors.New("boom") })

	c, err := New("nop-test", Settings{TemplateName: "T"})
	require.NoError(t, err)
	assert.Equal(t, "T", c.GetSettings().TemplateName)
	assert.Contains(t, Kinds(), "nop-test")

	_, err = New("broken-test", Settings{})
	assert.ErrorContains(t, err, "boom")

	_, err = New("missing", Settings{})
	assert.Error(t, err)

	assert.Panics(t, func() {
		Register("nop-test", func(Settings) (Collector, error) { return nil, nil })
	})
}

func TestSettingsOptions(t *testing.T) {
	s := Settings{Options: map[string]string{"Rate": "2.5", "burst": "3", "timeout": "2s", "bad": "x", "blank": ""}}

	f, err := s.Float("rate", 1)
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)

	i, err := s.Int("BURST", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, i)

	d, err := s.Duration("timeout", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)

	_, err = s.Int("bad", 0)
	assert.Error(t, err)

	assert.Equal(t, "def", s.String("blank", "def"))

	c := s.Clone()
	c.Options["rate"] = "9"
	assert.Equal(t, "2.5", s.Options["Rate"])
}

func TestErrorTaxonomy(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewError("gh", "7", "traffic", ErrNotConfigured))
	assert.True(t, IsNotConfigured(err))

	var ce *Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "7", ce.AssetID)
	assert.Contains(t, ce.Error(), "traffic")
	assert.False(t, IsNotConfigured(NewError("gh", "7", "get", ErrExternal)))

	marked := NewError("gh", "7", "get", cerrors.Mark(cerrors.New("HTTP 502"), ErrExternal))
	assert.True(t, IsExternal(marked))
	assert.False(t, IsRateLimited(marked))
	assert.Contains(t, marked.Error(), "HTTP 502")
}

func TestBatch(t *testing.T) {
	a := asset.New("1", "repo", "T", nil)
	b := NewBatch("gh", a)
	assert.True(t, b.IsEmpty())
	b.Add(a.Ref("Stars"), 3, time.Now())
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, "1", b.Values[0].Ref.ElementID)
}
