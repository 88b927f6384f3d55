// Package echotest builds request bodies for the gateway's echo-test
// plugin, which loops media back to the sender. Useful as a connectivity
// check without any room or mountpoint setup.
package echotest

import (
	"context"

	"github.com/nevern02/janusgate/pkg/protocol"
	"github.com/nevern02/janusgate/pkg/session"
)

// PluginName is the echo-test plugin's package identifier on the gateway.
const PluginName = "janus.plugin.echotest"

// Client drives one echo-test handle.
type Client struct {
	handle *session.Handle
}

// Attach creates an echo-test handle under the session.
func Attach(ctx context.Context, s *session.Session) (*Client, error) {
	h, err := s.Attach(ctx, PluginName)
	if err != nil {
		return nil, err
	}
	return &Client{handle: h}, nil
}

// Handle exposes the underlying handle.
func (c *Client) Handle() *session.Handle { return c.handle }

// StartOptions selects which media the gateway should echo back.
type StartOptions struct {
	Audio   bool
	Video   bool
	Bitrate int
}

// Start begins the echo with the given SDP offer. The synchronous
// response is only an ack; the SDP answer arrives on the event channel.
func (c *Client) Start(ctx context.Context, offer *protocol.Jsep, opts StartOptions) (*protocol.Event, error) {
	body := protocol.Body{
		"audio": opts.Audio,
		"video": opts.Video,
	}
	if opts.Bitrate != 0 {
		body["bitrate"] = opts.Bitrate
	}
	return c.handle.Message(ctx, body, offer)
}

// Detach releases the handle, best-effort.
func (c *Client) Detach(ctx context.Context) {
	c.handle.Detach(ctx)
}
