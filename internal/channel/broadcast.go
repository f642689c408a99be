package channel

import (
	"context"
	"sync"
)

// packet is one epoch-tagged chunk of encoded bytes produced by a channel's
// worker. Epoch increments every time the worker starts a new track, so
// subscribers can detect a track boundary without inspecting the bytes.
type packet struct {
	epoch uint64
	data  []byte
}

// subscriber is a single listener's view of a TrackBroadcast: a buffered
// channel of packets plus the epoch that was current when it subscribed.
type subscriber struct {
	ch      chan packet
	lastEpoch uint64
	lagged  chan int
}

// TrackBroadcast fans epoch-tagged byte packets out to many subscribers,
// grounded on the teacher's Broadcaster.clients/broadcastWriter pair: one
// producer goroutine, many buffered per-client channels, drop-on-full rather
// than block. It additionally tags every packet with a monotonic epoch and
// surfaces drops as an explicit Lagged(n) signal instead of silently
// discarding them.
type TrackBroadcast struct {
	mu      sync.RWMutex
	subs    map[uint64]*subscriber
	nextID  uint64
	epoch   uint64
}

// NewTrackBroadcast creates an empty broadcast with epoch 0.
func NewTrackBroadcast() *TrackBroadcast {
	return &TrackBroadcast{subs: make(map[uint64]*subscriber)}
}

// BeginEpoch advances the current epoch, called by the worker when it starts
// streaming a new track.
func (b *TrackBroadcast) BeginEpoch() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.epoch++
	return b.epoch
}

// CurrentEpoch returns the epoch currently being produced.
func (b *TrackBroadcast) CurrentEpoch() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.epoch
}

// Write fans chunk out to every subscriber tagged with the current epoch.
// Subscribers whose buffer is full are counted as lagged rather than
// blocking the writer.
func (b *TrackBroadcast) Write(chunk []byte) {
	cp := make([]byte, len(chunk))
	copy(cp, chunk)

	b.mu.RLock()
	defer b.mu.RUnlock()

	p := packet{epoch: b.epoch, data: cp}
	for _, s := range b.subs {
		select {
		case s.ch <- p:
		default:
			// Fold any count the subscriber has not read yet into this one.
			n := 1
			select {
			case prev := <-s.lagged:
				n += prev
			default:
			}
			select {
			case s.lagged <- n:
			default:
			}
		}
	}
}

// Subscription is a listener's handle on a TrackBroadcast.
type Subscription struct {
	broadcast *TrackBroadcast
	id        uint64
	sub       *subscriber
}

// Subscribe joins the broadcast at its current epoch.
func (b *TrackBroadcast) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	s := &subscriber{ch: make(chan packet, 512), lastEpoch: b.epoch, lagged: make(chan int, 1)}
	b.subs[id] = s
	return &Subscription{broadcast: b, id: id, sub: s}
}

// Close unsubscribes, releasing the listener's buffered channel.
func (s *Subscription) Close() {
	s.broadcast.mu.Lock()
	defer s.broadcast.mu.Unlock()
	delete(s.broadcast.subs, s.id)
	close(s.sub.ch)
}

// Next blocks for the next packet and returns its data and epoch; ok is
// false once the subscription has been closed. Dropped packets are not
// reported here: callers should poll Lagged() between Next() calls, or
// select on both channels directly for lower latency.
func (s *Subscription) Next() ([]byte, uint64, bool) {
	p, ok := <-s.sub.ch
	if !ok {
		return nil, 0, false
	}
	return p.data, p.epoch, true
}

// Lagged returns a channel that receives the number of packets this
// subscriber dropped because its buffer was full; drops that happen before
// a pending count is read are added to that count.
func (s *Subscription) Lagged() <-chan int {
	return s.sub.lagged
}

// NextCtx is Next, but also returns early if ctx is cancelled.
func (s *Subscription) NextCtx(ctx context.Context) ([]byte, uint64, bool) {
	select {
	case p, ok := <-s.sub.ch:
		if !ok {
			return nil, 0, false
		}
		return p.data, p.epoch, true
	case <-ctx.Done():
		return nil, 0, false
	}
}
