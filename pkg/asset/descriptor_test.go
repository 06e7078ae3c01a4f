package asset

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptorIsACopy(t *testing.T) {
	attrs := map[string]Value{"Owner": String("octo")}
	d := New("1", "repo", "GitHub Repository", attrs)
	attrs["Owner"] = String("changed")

	v, err := d.Attribute("Owner")
	require.NoError(t, err)
	assert.Equal(t, "octo", v.AsString())

	out := d.Attributes()
	out["Owner"] = String("also changed")
	v, _ = d.Attribute("Owner")
	assert.Equal(t, "octo", v.AsString())
}

func TestMissingAttribute(t *testing.T) {
	d := New("1", "repo", "t", nil)
	_, err := d.Attribute("Token")
	assert.ErrorIs(t, err, ErrMissingAttribute)
	assert.Contains(t, err.Error(), "Token")
	assert.Equal(t, "fallback", d.AttributeOr("Token", String("fallback")).AsString())
}

func TestCreateChildWithoutCatalog(t *testing.T) {
	d := New("1", "repo", "t", nil)
	_, err := d.CreateChild(context.Background(), "Traffic", "GitHub Traffic")
	assert.ErrorIs(t, err, ErrNoCatalog)
}

func TestParseRoundTrip(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for _, v := range []Value{String("x"), Int(42), Float(1.5), Bool(true), Time(now)} {
		got, err := Parse(v.Kind(), v.Text())
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
	_, err := Parse(KindInt, "nope")
	assert.Error(t, err)
	_, err = Parse("blob", "x")
	assert.Error(t, err)
}

func TestConversions(t *testing.T) {
	i, err := String("12").AsInt()
	require.NoError(t, err)
	assert.EqualValues(t, 12, i)

	f, err := Int(3).AsFloat()
	require.NoError(t, err)
	assert.Equal(t, 3.0, f)

	_, err = Bool(true).AsInt()
	assert.Error(t, err)

	v, err := FromAny(7)
	require.NoError(t, err)
	assert.Equal(t, KindInt, v.Kind())
	_, err = FromAny(struct{}{})
	assert.Error(t, err)
}
