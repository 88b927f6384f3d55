// Package session implements the stateful core of the signaling client:
// session lifecycle, plugin handle lifecycle, the long-poll event loop and
// the fan-out of asynchronous gateway events to subscribers.
//
// A Session owns exactly one long-poll loop, started by Create and stopped
// by Destroy. Plugin messages are addressed to (session, handle); their
// synchronous responses come back from Post, while SDP answers, trickle
// candidates and plugin events arrive later on the loop and are observed
// through subscriptions.
package session

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/nevern02/janusgate/pkg/protocol"
)

// DefaultPollInterval is the fixed delay between long-poll iterations. The
// 1s cadence doubles as session liveness: as long as the loop runs, the
// gateway sees the session as active.
const DefaultPollInterval = time.Second

// Session is a server-side signaling context, the root of all plugin
// handles attached through it.
type Session struct {
	id        uint64
	transport Transport
	log       *slog.Logger

	pollInterval time.Duration
	subs         subscriberSet
	nextTxn      atomic.Uint64

	cancel    context.CancelFunc
	done      chan struct{}
	destroyed atomic.Bool
}

// Option configures a Session before it is created on the gateway.
type Option func(*Session)

// WithLogger sets the diagnostic sink. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithPollInterval overrides the delay between long-poll iterations.
func WithPollInterval(d time.Duration) Option {
	return func(s *Session) { s.pollInterval = d }
}

// Create allocates a session on the gateway and starts its long-poll loop.
// The loop runs until Destroy is called; without it the gateway would
// expire the session for lack of keepalives.
func Create(ctx context.Context, t Transport, opts ...Option) (*Session, error) {
	s := &Session{
		transport:    t,
		log:          slog.Default(),
		pollInterval: DefaultPollInterval,
		done:         make(chan struct{}),
	}
	// Transaction ids only need to be unique within this client; a
	// monotonic counter seeded from the clock is enough.
	s.nextTxn.Store(uint64(time.Now().UnixNano()))
	for _, opt := range opts {
		opt(s)
	}
	s.subs.log = s.log

	ev, err := t.Post(ctx, "/", &protocol.Request{
		Janus:       protocol.OpCreate,
		Transaction: s.txn(),
	})
	if err != nil {
		return nil, err
	}
	if perr := ev.Err(); perr != nil {
		return nil, perr
	}
	if ev.Data == nil || ev.Data.ID == 0 {
		return nil, &protocol.LifecycleError{Reason: "gateway allocated no session id"}
	}
	s.id = ev.Data.ID

	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.poll(loopCtx)

	s.log.Info("session created", "session_id", s.id)
	return s, nil
}

// ID returns the gateway-allocated session identifier.
func (s *Session) ID() uint64 { return s.id }

// Destroy tears the session down: it stops the long-poll loop, waits for
// it to exit, sends the destroy request and closes all subscriptions. It
// is idempotent and best-effort; transport failures are logged, not
// returned, since the caller is already tearing down.
func (s *Session) Destroy(ctx context.Context) {
	if s == nil || s.id == 0 {
		return
	}
	if !s.destroyed.CompareAndSwap(false, true) {
		return
	}

	s.cancel()
	<-s.done

	ev, err := s.transport.Post(ctx, s.path(), &protocol.Request{
		Janus:       protocol.OpDestroy,
		Transaction: s.txn(),
	})
	switch {
	case err != nil:
		s.log.Warn("destroy request failed", "session_id", s.id, "error", err)
	case ev.Err() != nil:
		s.log.Warn("destroy rejected", "session_id", s.id, "error", ev.Err())
	default:
		s.log.Info("session destroyed", "session_id", s.id)
	}

	s.subs.closeAll()
}

// KeepAlive sends an explicit liveness ping. The long-poll loop already
// keeps the session alive; this exists for callers that pause polling.
func (s *Session) KeepAlive(ctx context.Context) error {
	if err := s.alive(); err != nil {
		return err
	}
	ev, err := s.transport.Post(ctx, s.path(), &protocol.Request{
		Janus:       protocol.OpKeepalive,
		Transaction: s.txn(),
	})
	if err != nil {
		return err
	}
	return ev.Err()
}

// Attach creates a plugin handle scoped to this session.
func (s *Session) Attach(ctx context.Context, plugin string) (*Handle, error) {
	if err := s.alive(); err != nil {
		return nil, err
	}

	ev, err := s.transport.Post(ctx, s.path(), &protocol.Request{
		Janus:       protocol.OpAttach,
		Transaction: s.txn(),
		Plugin:      plugin,
	})
	if err != nil {
		return nil, err
	}
	if perr := ev.Err(); perr != nil {
		return nil, perr
	}
	if ev.Data == nil || ev.Data.ID == 0 {
		return nil, &protocol.LifecycleError{Reason: "gateway allocated no handle id"}
	}

	h := &Handle{id: ev.Data.ID, plugin: plugin, session: s}
	s.log.Info("handle attached", "session_id", s.id, "handle_id", h.id, "plugin", plugin)
	return h, nil
}

// Subscribe registers an observer for every non-keepalive event the
// long-poll loop delivers for this session, across all handles. buffer <= 0
// selects a default. Close the subscription when done.
func (s *Session) Subscribe(buffer int) *Subscription {
	return s.subs.add(0, buffer)
}

func (s *Session) alive() error {
	if s == nil || s.id == 0 {
		return &protocol.LifecycleError{Reason: "session has not been created"}
	}
	if s.destroyed.Load() {
		return &protocol.LifecycleError{Reason: "session has been destroyed"}
	}
	return nil
}

func (s *Session) txn() string {
	return strconv.FormatUint(s.nextTxn.Add(1), 10)
}

func (s *Session) path() string {
	return "/" + strconv.FormatUint(s.id, 10)
}
