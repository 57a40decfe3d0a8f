package signal

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/dkeye/pqvoice/internal/app"
	"github.com/dkeye/pqvoice/internal/app/orch"
	"github.com/dkeye/pqvoice/internal/core"
	"github.com/dkeye/pqvoice/internal/domain"
	"github.com/dkeye/pqvoice/internal/pqc"
	"github.com/dkeye/pqvoice/internal/proto"
	"github.com/dkeye/pqvoice/internal/relay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ioTimeout = 2 * time.Second

func newTestController(t *testing.T, mutate func(*Options)) *Controller {
	t.Helper()
	o := &orch.Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    core.NewRoomManager(),
		Policy:   app.KickPolicy{},
	}
	opts := DefaultOptions()
	opts.ReadTimeout = 0
	if mutate != nil {
		mutate(&opts)
	}
	return NewController(o, pqc.DefaultScheme(), NewRoomRateLimiter(100, time.Minute), opts)
}

type testClient struct {
	t    *testing.T
	conn net.Conn
	done chan struct{}
}

func dial(t *testing.T, ctl *Controller) *testClient {
	t.Helper()
	server, client := net.Pipe()
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer close(done)
		ctl.ServeStream(ctx, server)
	}()
	tc := &testClient{t: t, conn: client, done: done}
	t.Cleanup(func() {
		_ = client.Close()
		cancel()
		<-done
	})
	return tc
}

func (c *testClient) send(m proto.Message) {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetWriteDeadline(time.Now().Add(ioTimeout)))
	require.NoError(c.t, proto.WriteMessage(c.conn, m))
}

func (c *testClient) sendRaw(frame []byte) {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetWriteDeadline(time.Now().Add(ioTimeout)))
	_, err := c.conn.Write(frame)
	require.NoError(c.t, err)
}

func (c *testClient) recv() proto.Message {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(ioTimeout)))
	m, err := proto.ReadMessage(c.conn, proto.MaxFrameSize)
	require.NoError(c.t, err)
	return m
}

func (c *testClient) expectClosed() {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(ioTimeout)))
	_, err := proto.ReadMessage(c.conn, proto.MaxFrameSize)
	assert.ErrorIs(c.t, err, io.EOF)
	select {
	case <-c.done:
	case <-time.After(ioTimeout):
		c.t.Fatal("server side did not finish")
	}
}

func expect[T proto.Message](t *testing.T, c *testClient) T {
	t.Helper()
	m := c.recv()
	got, ok := m.(T)
	require.Truef(t, ok, "unexpected %T (%s)", m, m.Type())
	return got
}

func (c *testClient) login(name string) string {
	c.t.Helper()
	c.send(&proto.Login{Username: name})
	resp := expect[*proto.LoginResponse](c.t, c)
	require.True(c.t, resp.Success)
	require.NotNil(c.t, resp.ParticipantID)
	return *resp.ParticipantID
}

func TestInvalidKeyExchangeKeepsConnection(t *testing.T) {
	ctl := newTestController(t, nil)
	c := dial(t, ctl)

	c.send(&proto.KeyExchangeInit{PublicKey: proto.Bytes{1, 2, 3}})
	errMsg := expect[*proto.Error](t, c)
	assert.Contains(t, errMsg.Message, "Key exchange failed")

	pid := c.login("alice")
	assert.NotEmpty(t, pid)
}

func TestKeyExchangeAgreesWithClient(t *testing.T) {
	ctl := newTestController(t, nil)
	c := dial(t, ctl)

	kp, err := ctl.Scheme.GenerateKeyPair()
	require.NoError(t, err)
	c.send(&proto.KeyExchangeInit{PublicKey: kp.PublicKeyBytes()})
	resp := expect[*proto.KeyExchangeResponse](t, c)
	assert.Len(t, resp.Ciphertext, ctl.Scheme.CiphertextSize())

	secret, err := kp.Decapsulate(resp.Ciphertext)
	require.NoError(t, err)
	assert.Len(t, secret, ctl.Scheme.SharedSecretSize())

	pid := c.login("alice")
	want, err := pqc.DeriveKey(secret, pqc.LabelAudio, relay.KeySize)
	require.NoError(t, err)
	got, ok := ctl.Orch.AudioKey(domain.ParticipantID(pid))
	require.True(t, ok)
	assert.Equal(t, want, got)

	// a second exchange is accepted and replaces the secret
	c.send(&proto.KeyExchangeInit{PublicKey: kp.PublicKeyBytes()})
	expect[*proto.KeyExchangeResponse](t, c)
}

func TestLoginPolicy(t *testing.T) {
	t.Run("key exchange optional", func(t *testing.T) {
		c := dial(t, newTestController(t, nil))
		c.login("alice")
	})

	t.Run("key exchange required", func(t *testing.T) {
		ctl := newTestController(t, func(o *Options) { o.RequireKeyExchange = true })
		c := dial(t, ctl)

		c.send(&proto.Login{Username: "alice"})
		resp := expect[*proto.LoginResponse](t, c)
		assert.False(t, resp.Success)
		require.NotNil(t, resp.Error)
		assert.Equal(t, msgKeyExchangeRequired, *resp.Error)
		assert.Nil(t, resp.ParticipantID)

		kp, err := ctl.Scheme.GenerateKeyPair()
		require.NoError(t, err)
		c.send(&proto.KeyExchangeInit{PublicKey: kp.PublicKeyBytes()})
		expect[*proto.KeyExchangeResponse](t, c)

		c.login("alice")
	})
}

func TestInvalidUsername(t *testing.T) {
	c := dial(t, newTestController(t, nil))
	c.send(&proto.Login{Username: ""})
	resp := expect[*proto.LoginResponse](t, c)
	assert.False(t, resp.Success)
	assert.NotNil(t, resp.Error)
}

func TestMalformedFrameClosesConnection(t *testing.T) {
	c := dial(t, newTestController(t, nil))

	body := []byte("not json")
	frame := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[4:], body)
	c.sendRaw(frame)

	errMsg := expect[*proto.Error](t, c)
	assert.Equal(t, msgInvalidFormat, errMsg.Message)
	c.expectClosed()
}

func TestUnknownTagClosesConnection(t *testing.T) {
	c := dial(t, newTestController(t, nil))

	body := []byte(`{"type":"teleport"}`)
	frame := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[4:], body)
	c.sendRaw(frame)

	expect[*proto.Error](t, c)
	c.expectClosed()
}

func TestMissingFieldClosesConnection(t *testing.T) {
	c := dial(t, newTestController(t, nil))

	body := []byte(`{"type":"login"}`)
	frame := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[4:], body)
	c.sendRaw(frame)

	errMsg := expect[*proto.Error](t, c)
	assert.Equal(t, msgInvalidFormat, errMsg.Message)
	c.expectClosed()
}

func TestOversizedFrameClosesConnection(t *testing.T) {
	c := dial(t, newTestController(t, nil))

	hdr := make([]byte, 4)
	binary.BigEndian.PutUint32(hdr, proto.MaxFrameSize+1)
	c.sendRaw(hdr)

	errMsg := expect[*proto.Error](t, c)
	assert.Equal(t, msgTooLarge, errMsg.Message)
	c.expectClosed()
}

func TestUnsupportedMessageKeepsConnection(t *testing.T) {
	c := dial(t, newTestController(t, nil))

	c.send(&proto.MediaOffer{TargetID: "x", SDP: "v=0"})
	assert.Equal(t, msgUnsupported, expect[*proto.Error](t, c).Message)

	c.send(&proto.RoomList{})
	assert.Equal(t, msgUnsupported, expect[*proto.Error](t, c).Message)

	c.login("alice")
}

func TestRequestsNeedState(t *testing.T) {
	c := dial(t, newTestController(t, nil))

	c.send(&proto.CreateRoom{Name: "R"})
	created := expect[*proto.RoomCreated](t, c)
	assert.False(t, created.Success)

	c.send(&proto.JoinRoom{RoomID: "r", Username: "alice"})
	joined := expect[*proto.RoomJoined](t, c)
	assert.False(t, joined.Success)
	assert.Equal(t, msgNotLoggedIn, *joined.Error)

	c.login("alice")

	c.send(&proto.ToggleAudio{Enabled: false})
	assert.Equal(t, msgNotInRoom, expect[*proto.Error](t, c).Message)
	c.send(&proto.SendMessage{Content: "hi"})
	assert.Equal(t, msgNotInRoom, expect[*proto.Error](t, c).Message)
	c.send(&proto.AudioData{Data: proto.Bytes{1}})
	assert.Equal(t, msgNotInRoom, expect[*proto.Error](t, c).Message)

	c.send(&proto.LeaveRoom{})
	left := expect[*proto.RoomLeft](t, c)
	assert.False(t, left.Success)

	c.send(&proto.JoinRoom{RoomID: "missing", Username: "alice"})
	joined = expect[*proto.RoomJoined](t, c)
	assert.False(t, joined.Success)
	assert.Equal(t, core.ErrRoomNotFound.Error(), *joined.Error)
}

func TestRoomConversation(t *testing.T) {
	ctl := newTestController(t, nil)
	a := dial(t, ctl)
	b := dial(t, ctl)

	aID := a.login("alice")
	a.send(&proto.CreateRoom{Name: "Test"})
	created := expect[*proto.RoomCreated](t, a)
	require.True(t, created.Success)
	roomID := *created.RoomID

	a.send(&proto.JoinRoom{RoomID: roomID, Username: "alice"})
	joined := expect[*proto.RoomJoined](t, a)
	require.True(t, joined.Success)
	require.Len(t, *joined.Participants, 1)

	bID := b.login("bob")
	b.send(&proto.JoinRoom{RoomID: roomID, Username: "bob"})
	joined = expect[*proto.RoomJoined](t, b)
	require.True(t, joined.Success)
	assert.Len(t, *joined.Participants, 2)

	pj := expect[*proto.ParticipantJoined](t, a)
	assert.Equal(t, bID, pj.ParticipantID)
	assert.Equal(t, "bob", pj.Username)

	a.send(&proto.SendMessage{Content: "hi"})
	for _, c := range []*testClient{a, b} {
		got := expect[*proto.MessageReceived](t, c)
		assert.Equal(t, "hi", got.Content)
		assert.Equal(t, aID, got.SenderID)
		assert.Equal(t, "alice", got.SenderUsername)
	}

	b.send(&proto.AudioData{Data: proto.Bytes{7, 7, 7}})
	audio := expect[*proto.AudioDataReceived](t, a)
	assert.Equal(t, bID, audio.SenderID)
	assert.Equal(t, proto.Bytes{7, 7, 7}, audio.Data)

	// the sender hears nothing: its next message is the list reply
	b.send(&proto.ListRooms{})
	list := expect[*proto.RoomList](t, b)
	require.Len(t, list.Rooms, 1)
	assert.Equal(t, uint32(2), list.Rooms[0].Participants)

	b.send(&proto.ToggleAudio{Enabled: false})
	assert.Equal(t, &proto.AudioToggled{ParticipantID: bID, Enabled: false}, b.recv())
	assert.Equal(t, &proto.AudioToggled{ParticipantID: bID, Enabled: false}, a.recv())

	a.send(&proto.ListServerUsers{})
	users := expect[*proto.ServerUserList](t, a)
	assert.Len(t, users.Users, 2)

	require.NoError(t, b.conn.Close())
	left := expect[*proto.ParticipantLeft](t, a)
	assert.Equal(t, bID, left.ParticipantID)

	a.send(&proto.LeaveRoom{})
	assert.True(t, expect[*proto.RoomLeft](t, a).Success)
}

func TestFailedJoinDropsToLobby(t *testing.T) {
	ctl := newTestController(t, nil)
	a := dial(t, ctl)
	b := dial(t, ctl)

	a.login("alice")
	one := uint32(1)
	a.send(&proto.CreateRoom{Name: "Home"})
	home := *expect[*proto.RoomCreated](t, a).RoomID
	a.send(&proto.CreateRoom{Name: "Small", MaxParticipants: &one})
	small := *expect[*proto.RoomCreated](t, a).RoomID

	a.send(&proto.JoinRoom{RoomID: home, Username: "alice"})
	require.True(t, expect[*proto.RoomJoined](t, a).Success)

	b.login("bob")
	b.send(&proto.JoinRoom{RoomID: small, Username: "bob"})
	require.True(t, expect[*proto.RoomJoined](t, b).Success)

	a.send(&proto.JoinRoom{RoomID: small, Username: "alice"})
	failed := expect[*proto.RoomJoined](t, a)
	assert.False(t, failed.Success)
	require.NotNil(t, failed.Error)
	assert.Equal(t, core.ErrRoomFull.Error(), *failed.Error)

	a.send(&proto.SendMessage{Content: "still here?"})
	assert.Equal(t, msgNotInRoom, expect[*proto.Error](t, a).Message)

	a.send(&proto.ListRooms{})
	for _, r := range expect[*proto.RoomList](t, a).Rooms {
		if r.ID == home {
			assert.Zero(t, r.Participants)
		}
	}
}

func TestIdleTimeout(t *testing.T) {
	ctl := newTestController(t, func(o *Options) { o.ReadTimeout = 50 * time.Millisecond })
	c := dial(t, ctl)
	c.expectClosed()
}

func TestContextCancelEndsConnection(t *testing.T) {
	ctl := newTestController(t, nil)
	server, client := net.Pipe()
	defer client.Close()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctl.ServeStream(ctx, server)
	}()

	require.Eventually(t, func() bool { return ctl.Orch.Registry.Len() == 1 }, ioTimeout, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(ioTimeout):
		t.Fatal("ServeStream did not return")
	}
	assert.Equal(t, 0, ctl.Orch.Registry.Len())
}
