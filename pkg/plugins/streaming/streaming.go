// Package streaming builds request bodies for the gateway's streaming
// plugin, which relays pre-provisioned mountpoints to watchers.
package streaming

import (
	"context"

	"github.com/nevern02/janusgate/pkg/protocol"
	"github.com/nevern02/janusgate/pkg/session"
)

// PluginName is the streaming plugin's package identifier on the gateway.
const PluginName = "janus.plugin.streaming"

// Client drives one streaming handle.
type Client struct {
	handle *session.Handle
}

// Attach creates a streaming handle under the session.
func Attach(ctx context.Context, s *session.Session) (*Client, error) {
	h, err := s.Attach(ctx, PluginName)
	if err != nil {
		return nil, err
	}
	return &Client{handle: h}, nil
}

// Handle exposes the underlying handle.
func (c *Client) Handle() *session.Handle { return c.handle }

// List enumerates the mountpoints the gateway will disclose.
func (c *Client) List(ctx context.Context) (*protocol.Event, error) {
	return c.handle.Message(ctx, protocol.Body{"request": "list"}, nil)
}

// Watch asks to view a mountpoint. The synchronous response is only an
// ack; the gateway's SDP offer arrives on the event channel, to be
// answered with Start.
func (c *Client) Watch(ctx context.Context, id uint64) (*protocol.Event, error) {
	return c.handle.Message(ctx, protocol.Body{
		"request": "watch",
		"id":      id,
	}, nil)
}

// Start completes the negotiation with the SDP answer to the gateway's
// offer and begins the media flow.
func (c *Client) Start(ctx context.Context, answer *protocol.Jsep) (*protocol.Event, error) {
	return c.handle.Message(ctx, protocol.Body{"request": "start"}, answer)
}

// Stop halts the media flow for this watcher.
func (c *Client) Stop(ctx context.Context) (*protocol.Event, error) {
	return c.handle.Message(ctx, protocol.Body{"request": "stop"}, nil)
}

// Detach releases the handle, best-effort.
func (c *Client) Detach(ctx context.Context) {
	c.handle.Detach(ctx)
}
