package signal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestShutdownOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var deadline time.Time
	err := WaitForShutdown(ctx, zap.NewNop(), time.Second, func(sctx context.Context) error {
		require.NoError(t, sctx.Err())
		deadline, _ = sctx.Deadline()
		return nil
	})
	require.NoError(t, err)
	assert.False(t, deadline.IsZero())
}

func TestNilShutdownFunc(t *testing.T) {
	assert.Error(t, WaitForShutdown(context.Background(), zap.NewNop(), 0, nil))
}
