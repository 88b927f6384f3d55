package videoroom

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nevern02/janusgate/pkg/protocol"
	"github.com/nevern02/janusgate/pkg/session"
)

// recordingTransport answers lifecycle requests and captures every message
// body so tests can inspect what a builder produced.
type recordingTransport struct {
	mu     sync.Mutex
	bodies []protocol.Body
	jseps  []*protocol.Jsep
}

func (rt *recordingTransport) Post(ctx context.Context, path string, msg *protocol.Request) (*protocol.Event, error) {
	switch msg.Janus {
	case protocol.OpCreate:
		return &protocol.Event{Janus: protocol.OpSuccess, Data: &protocol.IDData{ID: 12345}}, nil
	case protocol.OpAttach:
		return &protocol.Event{Janus: protocol.OpSuccess, Data: &protocol.IDData{ID: 999}}, nil
	case protocol.OpMessage:
		rt.mu.Lock()
		rt.bodies = append(rt.bodies, msg.Body)
		rt.jseps = append(rt.jseps, msg.Jsep)
		rt.mu.Unlock()
		return &protocol.Event{Janus: protocol.OpAck}, nil
	default:
		return &protocol.Event{Janus: protocol.OpAck}, nil
	}
}

func (rt *recordingTransport) Get(ctx context.Context, path string) (*protocol.Event, error) {
	return nil, nil
}

func (rt *recordingTransport) lastBody() protocol.Body {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.bodies[len(rt.bodies)-1]
}

func newTestClient(t *testing.T) (*Client, *recordingTransport) {
	t.Helper()
	rt := &recordingTransport{}
	s, err := session.Create(context.Background(), rt,
		session.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		session.WithPollInterval(5*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { s.Destroy(context.Background()) })

	c, err := Attach(context.Background(), s)
	require.NoError(t, err)
	return c, rt
}

func TestAttachUsesPluginName(t *testing.T) {
	c, _ := newTestClient(t)
	assert.Equal(t, PluginName, c.Handle().Plugin())
	assert.EqualValues(t, 999, c.Handle().ID())
}

func TestCreateOmitsDefaults(t *testing.T) {
	c, rt := newTestClient(t)

	_, err := c.Create(context.Background(), CreateOptions{Description: "demo"})
	require.NoError(t, err)

	body := rt.lastBody()
	assert.Equal(t, "create", body["request"])
	assert.Equal(t, "demo", body["description"])
	assert.NotContains(t, body, "room")
	assert.NotContains(t, body, "bitrate")
	assert.NotContains(t, body, "is_private")
}

func TestJoinPublisher(t *testing.T) {
	c, rt := newTestClient(t)

	_, err := c.JoinPublisher(context.Background(), 1234, "alice")
	require.NoError(t, err)

	body := rt.lastBody()
	assert.Equal(t, "join", body["request"])
	assert.Equal(t, "publisher", body["ptype"])
	assert.EqualValues(t, 1234, body["room"])
	assert.Equal(t, "alice", body["display"])
}

func TestJoinSubscriber(t *testing.T) {
	c, rt := newTestClient(t)

	_, err := c.JoinSubscriber(context.Background(), 1234, 42)
	require.NoError(t, err)

	body := rt.lastBody()
	assert.Equal(t, "subscriber", body["ptype"])
	assert.EqualValues(t, 42, body["feed"])
}

func TestPublishCarriesOffer(t *testing.T) {
	c, rt := newTestClient(t)

	offer := &protocol.Jsep{Type: "offer", SDP: "v=0\r\n"}
	_, err := c.Publish(context.Background(), offer, PublishOptions{Audio: true, Video: true, Bitrate: 128000})
	require.NoError(t, err)

	body := rt.lastBody()
	assert.Equal(t, "publish", body["request"])
	assert.Equal(t, true, body["audio"])
	assert.Equal(t, true, body["video"])
	assert.EqualValues(t, 128000, body["bitrate"])

	rt.mu.Lock()
	jsep := rt.jseps[len(rt.jseps)-1]
	rt.mu.Unlock()
	require.NotNil(t, jsep)
	assert.Equal(t, "offer", jsep.Type)
}

func TestListParticipants(t *testing.T) {
	c, rt := newTestClient(t)

	_, err := c.ListParticipants(context.Background(), 1234)
	require.NoError(t, err)

	body := rt.lastBody()
	assert.Equal(t, "listparticipants", body["request"])
	assert.EqualValues(t, 1234, body["room"])
}

func TestLifecycleRequests(t *testing.T) {
	c, rt := newTestClient(t)
	ctx := context.Background()

	_, err := c.Unpublish(ctx)
	require.NoError(t, err)
	assert.Equal(t, "unpublish", rt.lastBody()["request"])

	_, err = c.Start(ctx, &protocol.Jsep{Type: "answer", SDP: "v=0\r\n"})
	require.NoError(t, err)
	assert.Equal(t, "start", rt.lastBody()["request"])

	_, err = c.Leave(ctx)
	require.NoError(t, err)
	assert.Equal(t, "leave", rt.lastBody()["request"])

	_, err = c.Destroy(ctx, 1234, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "destroy", rt.lastBody()["request"])
	assert.Equal(t, "s3cret", rt.lastBody()["secret"])

	c.Detach(ctx)
	assert.Equal(t, "detach", rt.lastBody()["request"])
}
