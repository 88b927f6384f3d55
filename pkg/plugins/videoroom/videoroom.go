// Package videoroom builds request bodies for the gateway's videoroom
// plugin: an SFU where publishers feed a room and subscribers watch feeds.
// All calls return the decoded response envelope as-is; response shapes are
// plugin-defined and not normalized here.
package videoroom

import (
	"context"

	"github.com/nevern02/janusgate/pkg/protocol"
	"github.com/nevern02/janusgate/pkg/session"
)

// PluginName is the videoroom plugin's package identifier on the gateway.
const PluginName = "janus.plugin.videoroom"

// Plugin error codes reported in {error_code, error} plugin data.
const (
	ErrNoMessage        = 421
	ErrInvalidJSON      = 422
	ErrInvalidRequest   = 423
	ErrJoinFirst        = 424
	ErrAlreadyJoined    = 425
	ErrNoSuchRoom       = 426
	ErrRoomExists       = 427
	ErrNoSuchFeed       = 428
	ErrMissingElement   = 429
	ErrInvalidElement   = 430
	ErrInvalidSDPType   = 431
	ErrPublishersFull   = 432
	ErrUnauthorized     = 433
	ErrAlreadyPublished = 434
	ErrNotPublished     = 435
	ErrIDExists         = 436
	ErrInvalidSDP       = 437
)

// Client drives one videoroom handle.
type Client struct {
	handle *session.Handle
}

// Attach creates a videoroom handle under the session.
func Attach(ctx context.Context, s *session.Session) (*Client, error) {
	h, err := s.Attach(ctx, PluginName)
	if err != nil {
		return nil, err
	}
	return &Client{handle: h}, nil
}

// Handle exposes the underlying handle, mainly for event subscriptions
// and trickle.
func (c *Client) Handle() *session.Handle { return c.handle }

// List enumerates the rooms the gateway will disclose.
func (c *Client) List(ctx context.Context) (*protocol.Event, error) {
	return c.handle.Message(ctx, protocol.Body{"request": "list"}, nil)
}

// ListParticipants enumerates the participants of one room.
func (c *Client) ListParticipants(ctx context.Context, room uint64) (*protocol.Event, error) {
	return c.handle.Message(ctx, protocol.Body{
		"request": "listparticipants",
		"room":    room,
	}, nil)
}

// CreateOptions configures a new room. Zero values are omitted from the
// request so the gateway's defaults apply.
type CreateOptions struct {
	Room        uint64
	Description string
	Secret      string
	Publishers  int
	Bitrate     int
	IsPrivate   bool
}

// Create allocates a room.
func (c *Client) Create(ctx context.Context, opts CreateOptions) (*protocol.Event, error) {
	body := protocol.Body{"request": "create"}
	if opts.Room != 0 {
		body["room"] = opts.Room
	}
	if opts.Description != "" {
		body["description"] = opts.Description
	}
	if opts.Secret != "" {
		body["secret"] = opts.Secret
	}
	if opts.Publishers != 0 {
		body["publishers"] = opts.Publishers
	}
	if opts.Bitrate != 0 {
		body["bitrate"] = opts.Bitrate
	}
	if opts.IsPrivate {
		body["is_private"] = true
	}
	return c.handle.Message(ctx, body, nil)
}

// Destroy removes a room. The secret must match the one the room was
// created with, if any.
func (c *Client) Destroy(ctx context.Context, room uint64, secret string) (*protocol.Event, error) {
	body := protocol.Body{"request": "destroy", "room": room}
	if secret != "" {
		body["secret"] = secret
	}
	return c.handle.Message(ctx, body, nil)
}

// JoinPublisher enters a room as a publisher. Publishing itself is a
// separate Publish call.
func (c *Client) JoinPublisher(ctx context.Context, room uint64, display string) (*protocol.Event, error) {
	body := protocol.Body{
		"request": "join",
		"ptype":   "publisher",
		"room":    room,
	}
	if display != "" {
		body["display"] = display
	}
	return c.handle.Message(ctx, body, nil)
}

// JoinSubscriber enters a room subscribed to one publisher's feed. The
// gateway responds with an SDP offer on the event channel.
func (c *Client) JoinSubscriber(ctx context.Context, room, feed uint64) (*protocol.Event, error) {
	return c.handle.Message(ctx, protocol.Body{
		"request": "join",
		"ptype":   "subscriber",
		"room":    room,
		"feed":    feed,
	}, nil)
}

// PublishOptions configures a publish request.
type PublishOptions struct {
	Audio   bool
	Video   bool
	Data    bool
	Bitrate int
	Display string
}

// Publish starts publishing with the given SDP offer. The synchronous
// response is only an ack; the SDP answer arrives on the event channel.
func (c *Client) Publish(ctx context.Context, offer *protocol.Jsep, opts PublishOptions) (*protocol.Event, error) {
	body := protocol.Body{
		"request": "publish",
		"audio":   opts.Audio,
		"video":   opts.Video,
	}
	if opts.Data {
		body["data"] = true
	}
	if opts.Bitrate != 0 {
		body["bitrate"] = opts.Bitrate
	}
	if opts.Display != "" {
		body["display"] = opts.Display
	}
	return c.handle.Message(ctx, body, offer)
}

// Unpublish stops publishing without leaving the room.
func (c *Client) Unpublish(ctx context.Context) (*protocol.Event, error) {
	return c.handle.Message(ctx, protocol.Body{"request": "unpublish"}, nil)
}

// Start completes a subscriber negotiation with the SDP answer to the
// gateway's offer.
func (c *Client) Start(ctx context.Context, answer *protocol.Jsep) (*protocol.Event, error) {
	return c.handle.Message(ctx, protocol.Body{"request": "start"}, answer)
}

// Leave exits the room.
func (c *Client) Leave(ctx context.Context) (*protocol.Event, error) {
	return c.handle.Message(ctx, protocol.Body{"request": "leave"}, nil)
}

// Detach releases the handle, best-effort.
func (c *Client) Detach(ctx context.Context) {
	c.handle.Detach(ctx)
}
