package session

import (
	"context"
	"strconv"

	"github.com/nevern02/janusgate/pkg/protocol"
)

// Handle is a server-side plugin conversation scoped to one session. It is
// created by Session.Attach and invalidated by Detach or by destroying the
// owning session.
type Handle struct {
	id      uint64
	plugin  string
	session *Session
}

// ID returns the gateway-allocated handle identifier.
func (h *Handle) ID() uint64 { return h.id }

// Plugin returns the plugin type this handle is attached to.
func (h *Handle) Plugin() string { return h.plugin }

// Message sends a plugin-specific request body, with an optional JSEP
// payload, and returns the decoded response envelope as-is. Response
// shapes vary per plugin and per action; interpreting them is the
// caller's job. Actions that negotiate SDP only get an ack here; the
// answer arrives later on the session's event loop.
func (h *Handle) Message(ctx context.Context, body protocol.Body, jsep *protocol.Jsep) (*protocol.Event, error) {
	if err := h.session.alive(); err != nil {
		return nil, err
	}

	ev, err := h.session.transport.Post(ctx, h.path(), &protocol.Request{
		Janus:       protocol.OpMessage,
		Transaction: h.session.txn(),
		Body:        body,
		Jsep:        jsep,
	})
	if err != nil {
		return nil, err
	}
	if perr := ev.Err(); perr != nil {
		return nil, perr
	}
	return ev, nil
}

// Trickle forwards one local ICE candidate to the gateway.
func (h *Handle) Trickle(ctx context.Context, candidate protocol.Candidate) error {
	if err := h.session.alive(); err != nil {
		return err
	}

	ev, err := h.session.transport.Post(ctx, h.path(), &protocol.Request{
		Janus:       protocol.OpTrickle,
		Transaction: h.session.txn(),
		Candidate:   &candidate,
	})
	if err != nil {
		return err
	}
	return ev.Err()
}

// TrickleCompleted signals end-of-candidates.
func (h *Handle) TrickleCompleted(ctx context.Context) error {
	return h.Trickle(ctx, protocol.Candidate{Completed: true})
}

// Detach releases the handle. It is best-effort: failures are logged and
// swallowed, since the session teardown that usually follows reclaims the
// handle anyway.
func (h *Handle) Detach(ctx context.Context) {
	if err := h.session.alive(); err != nil {
		return
	}

	ev, err := h.session.transport.Post(ctx, h.path(), &protocol.Request{
		Janus:       protocol.OpMessage,
		Transaction: h.session.txn(),
		Body:        protocol.Body{"request": "detach"},
	})
	switch {
	case err != nil:
		h.session.log.Warn("detach failed", "handle_id", h.id, "error", err)
	case ev.Err() != nil:
		h.session.log.Warn("detach rejected", "handle_id", h.id, "error", ev.Err())
	default:
		h.session.log.Info("handle detached", "session_id", h.session.id, "handle_id", h.id)
	}
}

// Events subscribes to the session's event stream filtered to this
// handle's sender id. The filter is the only correlation the protocol
// offers: concurrent negotiations on the same handle cannot be told apart,
// because transaction ids are not echoed across the long-poll channel.
func (h *Handle) Events(buffer int) *Subscription {
	return h.session.subs.add(h.id, buffer)
}

func (h *Handle) path() string {
	return h.session.path() + "/" + strconv.FormatUint(h.id, 10)
}
