package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackBroadcast_SubscribersReceiveSameEpoch(t *testing.T) {
	b := NewTrackBroadcast()
	epoch := b.BeginEpoch()

	sub := b.Subscribe()
	defer sub.Close()

	b.Write([]byte("hello"))

	data, gotEpoch, ok := sub.Next()
	require.True(t, ok)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, epoch, gotEpoch)
}

func TestTrackBroadcast_LaggedSignalsOnFullBuffer(t *testing.T) {
	b := NewTrackBroadcast()
	b.BeginEpoch()
	sub := b.Subscribe()
	defer sub.Close()

	// Overflow the subscriber's buffer without draining it.
	for i := 0; i < 600; i++ {
		b.Write([]byte{byte(i)})
	}

	select {
	case n := <-sub.Lagged():
		assert.Greater(t, n, 0)
	default:
		t.Fatal("expected a lagged signal after overflowing the subscriber buffer")
	}
}

func TestTrackBroadcast_CloseEndsSubscription(t *testing.T) {
	b := NewTrackBroadcast()
	sub := b.Subscribe()
	sub.Close()

	_, _, ok := sub.Next()
	assert.False(t, ok)
}
