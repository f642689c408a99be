package channel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingSource never produces a block; NextBlock waits for ctx cancellation.
// It exercises the Channel state machine without touching the codec package.
type blockingSource struct{}

func (blockingSource) NextBlock(ctx context.Context) (Block, error) {
	<-ctx.Done()
	return Block{}, ctx.Err()
}

func TestChannel_StartsWarmingOnFirstClient(t *testing.T) {
	ch := NewChannel(Descriptor{Kind: "test", Slug: "t1"}, blockingSource{}, nil, nil, nil, time.Millisecond*20)
	assert.Equal(t, StateIdle, ch.State())

	ch.AttachClient()
	defer ch.DetachClient()

	assert.Equal(t, int64(1), ch.ActiveClients())
	// The worker starts asynchronously but the state flips to Warming
	// synchronously inside AttachClient.
	assert.Equal(t, StateWarming, ch.State())
}

func TestChannel_CooloffReturnsToIdleAfterLastClientLeaves(t *testing.T) {
	ch := NewChannel(Descriptor{Kind: "test", Slug: "t2"}, blockingSource{}, nil, nil, nil, 20*time.Millisecond)

	ch.AttachClient()
	ch.DetachClient()

	require.Eventually(t, func() bool {
		return ch.State() == StateIdle
	}, time.Second, 5*time.Millisecond)
}

func TestChannel_CooloffCancelledByReattach(t *testing.T) {
	ch := NewChannel(Descriptor{Kind: "test", Slug: "t3"}, blockingSource{}, nil, nil, nil, 50*time.Millisecond)

	ch.AttachClient()
	ch.DetachClient()
	ch.AttachClient()
	defer ch.DetachClient()

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int64(1), ch.ActiveClients())
	assert.NotEqual(t, StateIdle, ch.State())
}
