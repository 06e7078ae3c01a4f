package output

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/collector"
)

func TestFIFO(t *testing.T) {
	c := New(nil)
	for i := 0; i < 3; i++ {
		require.NoError(t, c.Publish(collector.Batch{AssetID: strconv.Itoa(i)}))
	}
	assert.Equal(t, 3, c.Len())
	for i := 0; i < 3; i++ {
		b, ok := c.TryReceive()
		require.True(t, ok)
		assert.Equal(t, strconv.Itoa(i), b.AssetID)
	}
	_, ok := c.TryReceive()
	assert.False(t, ok)
}

func TestReceiveBlocksUntilPublish(t *testing.T) {
	c := New(nil)
	got := make(chan collector.Batch, 1)
	go func() {
		b, err := c.Receive(context.Background())
		if err == nil {
			got <- b
		}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, c.Publish(collector.Batch{AssetID: "x"}))

	select {
	case b := <-got:
		assert.Equal(t, "x", b.AssetID)
	case <-time.After(time.Second):
		t.Fatal("receive did not wake up")
	}
}

func TestReceiveHonoursContext(t *testing.T) {
	c := New(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCloseDrainsThenFails(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.Publish(collector.Batch{AssetID: "last"}))
	c.Close()

	assert.ErrorIs(t, c.Publish(collector.Batch{}), ErrClosed)

	b, err := c.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "last", b.AssetID)

	_, err = c.Receive(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestConcurrentProducers(t *testing.T) {
	var (
		lenMu   sync.Mutex
		lastLen int
	)
	c := New(func(n int) {
		lenMu.Lock()
		lastLen = n
		lenMu.Unlock()
	})

	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = c.Publish(collector.Batch{})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 800, c.Len())

	lenMu.Lock()
	assert.Equal(t, 800, lastLen)
	lenMu.Unlock()
}
