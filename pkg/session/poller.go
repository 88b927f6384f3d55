package session

import (
	"context"
	"time"
)

// poll is the long-poll event loop, one goroutine per session. Each
// iteration issues a blocking GET for the session (events for every handle
// arrive on this single channel), filters keepalives, fans anything else
// out to subscribers, then sleeps the fixed interval to bound request
// rate. The loop never gives up on errors: it is the only channel through
// which later events, including ones needed to recover, can arrive. The
// only exit is the session's cancellation.
func (s *Session) poll(ctx context.Context) {
	defer close(s.done)

	for {
		ev, err := s.transport.Get(ctx, s.path())
		switch {
		case err != nil:
			if ctx.Err() != nil {
				// Clean shutdown, not a fault.
				return
			}
			s.log.Warn("poll failed", "session_id", s.id, "error", err)
		case ev == nil:
			// No event pending before the gateway's hold time elapsed.
		case ev.IsKeepalive():
			// Liveness only; never delivered.
		default:
			s.subs.publish(ev)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.pollInterval):
		}
	}
}
