package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nevern02/janusgate/pkg/protocol"
)

type postCall struct {
	path string
	req  *protocol.Request
}

// fakeTransport records every POST and lets tests script responses.
type fakeTransport struct {
	mu     sync.Mutex
	posts  []postCall
	postFn func(path string, req *protocol.Request) (*protocol.Event, error)
	getFn  func(ctx context.Context, path string) (*protocol.Event, error)
}

func (f *fakeTransport) Post(ctx context.Context, path string, msg *protocol.Request) (*protocol.Event, error) {
	f.mu.Lock()
	f.posts = append(f.posts, postCall{path: path, req: msg})
	fn := f.postFn
	f.mu.Unlock()
	if fn != nil {
		return fn(path, msg)
	}
	return &protocol.Event{Janus: protocol.OpAck}, nil
}

func (f *fakeTransport) Get(ctx context.Context, path string) (*protocol.Event, error) {
	f.mu.Lock()
	fn := f.getFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, path)
	}
	return nil, nil
}

func (f *fakeTransport) postsByOp(op protocol.Opcode) []postCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []postCall
	for _, p := range f.posts {
		if p.req.Janus == op {
			out = append(out, p)
		}
	}
	return out
}

func successWithID(id uint64) *protocol.Event {
	return &protocol.Event{Janus: protocol.OpSuccess, Data: &protocol.IDData{ID: id}}
}

// lifecyclePostFn answers create with session 12345 and attach with handle
// 999, acking everything else.
func lifecyclePostFn(path string, req *protocol.Request) (*protocol.Event, error) {
	switch req.Janus {
	case protocol.OpCreate:
		return successWithID(12345), nil
	case protocol.OpAttach:
		return successWithID(999), nil
	default:
		return &protocol.Event{Janus: protocol.OpAck}, nil
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSession(t *testing.T, ft *fakeTransport) *Session {
	t.Helper()
	s, err := Create(context.Background(), ft,
		WithLogger(quietLogger()),
		WithPollInterval(2*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { s.Destroy(context.Background()) })
	return s
}

func TestCreateSession(t *testing.T) {
	ft := &fakeTransport{postFn: lifecyclePostFn}
	s := newTestSession(t, ft)

	assert.EqualValues(t, 12345, s.ID())

	creates := ft.postsByOp(protocol.OpCreate)
	require.Len(t, creates, 1)
	assert.Equal(t, "/", creates[0].path)
	assert.NotEmpty(t, creates[0].req.Transaction)
	assert.Nil(t, creates[0].req.Body)
}

func TestCreateSessionGatewayError(t *testing.T) {
	ft := &fakeTransport{postFn: func(path string, req *protocol.Request) (*protocol.Event, error) {
		return &protocol.Event{
			Janus: protocol.OpError,
			Error: &protocol.ErrorData{Code: 450, Reason: "no session"},
		}, nil
	}}

	_, err := Create(context.Background(), ft, WithLogger(quietLogger()))
	var perr *protocol.ProtocolError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 450, perr.Code)
	assert.Equal(t, "no session", perr.Reason)
}

func TestCreateSessionMissingID(t *testing.T) {
	ft := &fakeTransport{postFn: func(path string, req *protocol.Request) (*protocol.Event, error) {
		return &protocol.Event{Janus: protocol.OpSuccess}, nil
	}}

	_, err := Create(context.Background(), ft, WithLogger(quietLogger()))
	var lerr *protocol.LifecycleError
	require.True(t, errors.As(err, &lerr))
}

func TestCreateSessionTransportError(t *testing.T) {
	ft := &fakeTransport{postFn: func(path string, req *protocol.Request) (*protocol.Event, error) {
		return nil, &protocol.TransportError{Op: "post", Path: path, Err: errors.New("connection refused")}
	}}

	_, err := Create(context.Background(), ft, WithLogger(quietLogger()))
	var terr *protocol.TransportError
	require.True(t, errors.As(err, &terr))
}

func TestAttach(t *testing.T) {
	ft := &fakeTransport{postFn: lifecyclePostFn}
	s := newTestSession(t, ft)

	h, err := s.Attach(context.Background(), "janus.plugin.videoroom")
	require.NoError(t, err)
	assert.EqualValues(t, 999, h.ID())
	assert.Equal(t, "janus.plugin.videoroom", h.Plugin())

	attaches := ft.postsByOp(protocol.OpAttach)
	require.Len(t, attaches, 1)
	assert.Equal(t, "/12345", attaches[0].path)
	assert.Equal(t, "janus.plugin.videoroom", attaches[0].req.Plugin)
}

func TestAttachZeroHandleID(t *testing.T) {
	ft := &fakeTransport{postFn: func(path string, req *protocol.Request) (*protocol.Event, error) {
		if req.Janus == protocol.OpCreate {
			return successWithID(12345), nil
		}
		return successWithID(0), nil
	}}
	s := newTestSession(t, ft)

	_, err := s.Attach(context.Background(), "janus.plugin.echotest")
	var lerr *protocol.LifecycleError
	require.True(t, errors.As(err, &lerr))
}

func TestAttachAfterDestroyIsLifecycleError(t *testing.T) {
	ft := &fakeTransport{postFn: lifecyclePostFn}
	s := newTestSession(t, ft)
	s.Destroy(context.Background())

	before := len(ft.postsByOp(protocol.OpAttach))
	_, err := s.Attach(context.Background(), "janus.plugin.videoroom")

	var lerr *protocol.LifecycleError
	require.True(t, errors.As(err, &lerr))
	assert.Len(t, ft.postsByOp(protocol.OpAttach), before, "no network call after destroy")
}

func TestDestroyIdempotent(t *testing.T) {
	ft := &fakeTransport{postFn: lifecyclePostFn}
	s := newTestSession(t, ft)

	s.Destroy(context.Background())
	s.Destroy(context.Background())

	assert.Len(t, ft.postsByOp(protocol.OpDestroy), 1, "second destroy must not re-send")
}

func TestDestroyJoinsPollLoop(t *testing.T) {
	ft := &fakeTransport{postFn: lifecyclePostFn}
	s := newTestSession(t, ft)

	done := make(chan struct{})
	go func() {
		s.Destroy(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Destroy did not join the poll loop")
	}

	select {
	case <-s.done:
	default:
		t.Error("poll loop still running after Destroy")
	}
}

func TestDestroySwallowsTransportFailure(t *testing.T) {
	ft := &fakeTransport{postFn: func(path string, req *protocol.Request) (*protocol.Event, error) {
		switch req.Janus {
		case protocol.OpCreate:
			return successWithID(12345), nil
		case protocol.OpDestroy:
			return nil, &protocol.TransportError{Op: "post", Path: path, Err: errors.New("connection reset")}
		default:
			return &protocol.Event{Janus: protocol.OpAck}, nil
		}
	}}
	s := newTestSession(t, ft)

	// Must not panic or surface the failure.
	s.Destroy(context.Background())
}

func TestKeepAlive(t *testing.T) {
	ft := &fakeTransport{postFn: lifecyclePostFn}
	s := newTestSession(t, ft)

	require.NoError(t, s.KeepAlive(context.Background()))

	pings := ft.postsByOp(protocol.OpKeepalive)
	require.Len(t, pings, 1)
	assert.Equal(t, "/12345", pings[0].path)
}

func TestHandleMessage(t *testing.T) {
	ft := &fakeTransport{postFn: func(path string, req *protocol.Request) (*protocol.Event, error) {
		switch req.Janus {
		case protocol.OpCreate:
			return successWithID(12345), nil
		case protocol.OpAttach:
			return successWithID(999), nil
		case protocol.OpMessage:
			return &protocol.Event{
				Janus: protocol.OpSuccess,
				PluginData: &protocol.PluginData{
					Plugin: "janus.plugin.videoroom",
					Data:   protocol.Body{"videoroom": "success", "list": []any{}},
				},
			}, nil
		default:
			return &protocol.Event{Janus: protocol.OpAck}, nil
		}
	}}
	s := newTestSession(t, ft)
	h, err := s.Attach(context.Background(), "janus.plugin.videoroom")
	require.NoError(t, err)

	ev, err := h.Message(context.Background(), protocol.Body{"request": "list"}, nil)
	require.NoError(t, err)
	require.NotNil(t, ev.PluginData)
	assert.Equal(t, "success", ev.PluginData.Data["videoroom"])

	msgs := ft.postsByOp(protocol.OpMessage)
	require.Len(t, msgs, 1)
	assert.Equal(t, "/12345/999", msgs[0].path)
	assert.Equal(t, "list", msgs[0].req.Body["request"])
}

func TestHandleMessageProtocolError(t *testing.T) {
	ft := &fakeTransport{postFn: func(path string, req *protocol.Request) (*protocol.Event, error) {
		switch req.Janus {
		case protocol.OpCreate:
			return successWithID(12345), nil
		case protocol.OpAttach:
			return successWithID(999), nil
		default:
			return &protocol.Event{
				Janus: protocol.OpError,
				Error: &protocol.ErrorData{Code: 426, Reason: "No such room"},
			}, nil
		}
	}}
	s := newTestSession(t, ft)
	h, err := s.Attach(context.Background(), "janus.plugin.videoroom")
	require.NoError(t, err)

	_, err = h.Message(context.Background(), protocol.Body{"request": "join", "room": 1}, nil)
	var perr *protocol.ProtocolError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 426, perr.Code)
}

func TestHandleTrickle(t *testing.T) {
	ft := &fakeTransport{postFn: lifecyclePostFn}
	s := newTestSession(t, ft)
	h, err := s.Attach(context.Background(), "janus.plugin.echotest")
	require.NoError(t, err)

	require.NoError(t, h.Trickle(context.Background(), protocol.Candidate{
		Candidate: "candidate:1 1 udp 2113937151 192.0.2.1 54321 typ host",
		SDPMid:    "0",
	}))
	require.NoError(t, h.TrickleCompleted(context.Background()))

	trickles := ft.postsByOp(protocol.OpTrickle)
	require.Len(t, trickles, 2)
	assert.Equal(t, "/12345/999", trickles[0].path)
	assert.Equal(t, "0", trickles[0].req.Candidate.SDPMid)
	assert.True(t, trickles[1].req.Candidate.Completed)
}

func TestHandleDetachBestEffort(t *testing.T) {
	ft := &fakeTransport{postFn: lifecyclePostFn}
	s := newTestSession(t, ft)
	h, err := s.Attach(context.Background(), "janus.plugin.videoroom")
	require.NoError(t, err)

	h.Detach(context.Background())

	var detach *postCall
	for _, p := range ft.postsByOp(protocol.OpMessage) {
		if p.req.Body["request"] == "detach" {
			p := p
			detach = &p
		}
	}
	require.NotNil(t, detach, "detach is sent as a plugin message")
	assert.Equal(t, "/12345/999", detach.path)

	// A failing transport must not panic or propagate.
	ft.mu.Lock()
	ft.postFn = func(path string, req *protocol.Request) (*protocol.Event, error) {
		return nil, fmt.Errorf("gateway gone")
	}
	ft.mu.Unlock()
	h.Detach(context.Background())
}

func TestSerialTransportDelegates(t *testing.T) {
	ft := &fakeTransport{postFn: lifecyclePostFn}
	st := NewSerialTransport(ft)

	ev, err := st.Post(context.Background(), "/", &protocol.Request{Janus: protocol.OpCreate})
	require.NoError(t, err)
	assert.EqualValues(t, 12345, ev.Data.ID)

	ev, err = st.Get(context.Background(), "/12345")
	require.NoError(t, err)
	assert.Nil(t, ev)
}
