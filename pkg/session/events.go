package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/nevern02/janusgate/pkg/protocol"
)

// DefaultSubscriptionBuffer is the event channel capacity used when a
// subscriber does not pick one.
const DefaultSubscriptionBuffer = 16

// ErrSubscriptionClosed is returned by waits on a subscription whose
// channel has been closed, normally by session teardown.
var ErrSubscriptionClosed = errors.New("subscription closed")

// Subscription is one observer of a session's event stream. Events are
// delivered in loop-arrival order; a subscriber that falls behind its
// buffer loses events rather than stalling the poll loop.
type Subscription struct {
	ch     chan *protocol.Event
	sender uint64 // 0 observes every handle
	set    *subscriberSet

	mu      sync.Mutex
	closed  bool
	dropped atomic.Uint64
}

// Events returns the delivery channel. It is closed when the subscription
// or the owning session is closed.
func (sub *Subscription) Events() <-chan *protocol.Event { return sub.ch }

// Dropped reports how many events were discarded because the subscriber's
// buffer was full.
func (sub *Subscription) Dropped() uint64 { return sub.dropped.Load() }

// Close unregisters the subscription and closes its channel. Safe to call
// more than once and concurrently with delivery.
func (sub *Subscription) Close() {
	sub.set.remove(sub)
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}

// WaitForAnswer consumes events until one carries an SDP answer, and
// returns its JSEP payload. Gateway error envelopes abort the wait.
func (sub *Subscription) WaitForAnswer(ctx context.Context) (*protocol.Jsep, error) {
	return sub.waitForJsep(ctx, "answer")
}

// WaitForOffer consumes events until one carries an SDP offer, as the
// streaming plugin produces in response to a watch request.
func (sub *Subscription) WaitForOffer(ctx context.Context) (*protocol.Jsep, error) {
	return sub.waitForJsep(ctx, "offer")
}

func (sub *Subscription) waitForJsep(ctx context.Context, sdpType string) (*protocol.Jsep, error) {
	for {
		select {
		case ev, ok := <-sub.ch:
			if !ok {
				return nil, ErrSubscriptionClosed
			}
			if err := ev.Err(); err != nil {
				return nil, err
			}
			if ev.Jsep != nil && ev.Jsep.Type == sdpType {
				return ev.Jsep, nil
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (sub *Subscription) deliver(ev *protocol.Event) {
	if sub.sender != 0 && ev.Sender != sub.sender {
		return
	}
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	select {
	case sub.ch <- ev:
	default:
		sub.dropped.Add(1)
	}
}

// subscriberSet is the one mutable structure shared between the poll loop
// and foreground callers. Registration is cheap; publish snapshots the
// list so a subscriber added mid-iteration sees the next event.
type subscriberSet struct {
	mu   sync.Mutex
	subs []*Subscription
	log  *slog.Logger
}

func (set *subscriberSet) add(sender uint64, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultSubscriptionBuffer
	}
	sub := &Subscription{
		ch:     make(chan *protocol.Event, buffer),
		sender: sender,
		set:    set,
	}
	set.mu.Lock()
	set.subs = append(set.subs, sub)
	set.mu.Unlock()
	return sub
}

func (set *subscriberSet) remove(sub *Subscription) {
	set.mu.Lock()
	defer set.mu.Unlock()
	for i, s := range set.subs {
		if s == sub {
			set.subs = append(set.subs[:i], set.subs[i+1:]...)
			return
		}
	}
}

func (set *subscriberSet) publish(ev *protocol.Event) {
	set.mu.Lock()
	snapshot := make([]*Subscription, len(set.subs))
	copy(snapshot, set.subs)
	set.mu.Unlock()

	for _, sub := range snapshot {
		before := sub.dropped.Load()
		sub.deliver(ev)
		if after := sub.dropped.Load(); after != before && set.log != nil {
			set.log.Warn("subscriber buffer full, event dropped",
				"sender", ev.Sender, "dropped", after)
		}
	}
}

func (set *subscriberSet) closeAll() {
	set.mu.Lock()
	snapshot := set.subs
	set.subs = nil
	set.mu.Unlock()

	for _, sub := range snapshot {
		sub.mu.Lock()
		if !sub.closed {
			sub.closed = true
			close(sub.ch)
		}
		sub.mu.Unlock()
	}
}
