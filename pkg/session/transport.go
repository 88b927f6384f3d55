package session

import (
	"context"
	"sync"

	"github.com/nevern02/janusgate/pkg/protocol"
)

// Transport performs single HTTP round-trips against the gateway. api.Client
// implements it; tests substitute fakes. Implementations must be safe for
// concurrent use by foreground calls and the long-poll loop; wrap anything
// that is not in a SerialTransport.
type Transport interface {
	// Post sends one request envelope and returns the decoded response.
	Post(ctx context.Context, path string, msg *protocol.Request) (*protocol.Event, error)
	// Get performs one long-poll iteration. Both return values are nil
	// when no event was pending.
	Get(ctx context.Context, path string) (*protocol.Event, error)
}

// SerialTransport serializes all calls through a transport that is not
// reentrant. The long-poll GET holds the lock for its full duration, so
// foreground calls will queue behind it; prefer a concurrency-safe
// transport where one exists.
type SerialTransport struct {
	mu   sync.Mutex
	next Transport
}

// NewSerialTransport wraps next so only one call is in flight at a time.
func NewSerialTransport(next Transport) *SerialTransport {
	return &SerialTransport{next: next}
}

func (t *SerialTransport) Post(ctx context.Context, path string, msg *protocol.Request) (*protocol.Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.next.Post(ctx, path, msg)
}

func (t *SerialTransport) Get(ctx context.Context, path string) (*protocol.Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.next.Get(ctx, path)
}
