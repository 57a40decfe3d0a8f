package orch

import (
	"sync"
	"testing"
	"time"

	"github.com/dkeye/pqvoice/internal/app"
	"github.com/dkeye/pqvoice/internal/core"
	"github.com/dkeye/pqvoice/internal/domain"
	"github.com/dkeye/pqvoice/internal/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	msgs   []proto.Message
	full   bool
	kicked bool
}

func (s *recordingSink) Enqueue(m proto.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full {
		return core.ErrBackpressure
	}
	s.msgs = append(s.msgs, m)
	return nil
}

func (s *recordingSink) Kick() {
	s.mu.Lock()
	s.kicked = true
	s.mu.Unlock()
}

func (s *recordingSink) take() []proto.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.msgs
	s.msgs = nil
	return out
}

type forgetter struct{ forgotten []domain.ParticipantID }

func (f *forgetter) Forget(pid domain.ParticipantID) { f.forgotten = append(f.forgotten, pid) }

func newTestOrch() (*Orchestrator, *forgetter) {
	f := &forgetter{}
	return &Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    core.NewRoomManager(),
		Policy:   app.KickPolicy{},
		Relays:   f,
		Now:      func() time.Time { return time.Unix(1700000000, 0) },
	}, f
}

func connect(t *testing.T, o *Orchestrator, id, name string) *recordingSink {
	t.Helper()
	s := &recordingSink{}
	pid := domain.ParticipantID(id)
	o.Connect(pid, s)
	require.NoError(t, o.Login(pid, name))
	return s
}

func TestChatReachesWholeRoomOnly(t *testing.T) {
	o, _ := newTestOrch()
	a := connect(t, o, "A", "alice")
	b := connect(t, o, "B", "bob")
	c := connect(t, o, "C", "carol")

	room, err := o.CreateRoom("R", nil)
	require.NoError(t, err)
	_, err = o.Join("A", room.ID(), "alice")
	require.NoError(t, err)
	_, err = o.Join("B", room.ID(), "bob")
	require.NoError(t, err)
	a.take()
	b.take()

	require.NoError(t, o.SendChat("A", "hi"))

	want := &proto.MessageReceived{SenderID: "A", SenderUsername: "alice", Content: "hi", Timestamp: 1700000000}
	assert.Equal(t, []proto.Message{want}, a.take())
	assert.Equal(t, []proto.Message{want}, b.take())
	assert.Empty(t, c.take())
}

func TestAudioExcludesSender(t *testing.T) {
	o, _ := newTestOrch()
	a := connect(t, o, "A", "alice")
	b := connect(t, o, "B", "bob")

	room, err := o.CreateRoom("R", nil)
	require.NoError(t, err)
	_, err = o.Join("A", room.ID(), "alice")
	require.NoError(t, err)
	_, err = o.Join("B", room.ID(), "bob")
	require.NoError(t, err)
	a.take()
	b.take()

	require.NoError(t, o.RelayAudio("A", []byte{1, 2, 3}))

	assert.Empty(t, a.take())
	assert.Equal(t, []proto.Message{&proto.AudioDataReceived{SenderID: "A", Data: proto.Bytes{1, 2, 3}}}, b.take())
}

func TestNotInRoom(t *testing.T) {
	o, _ := newTestOrch()
	connect(t, o, "A", "alice")

	assert.ErrorIs(t, o.SendChat("A", "hi"), ErrNotInRoom)
	assert.ErrorIs(t, o.RelayAudio("A", []byte{1}), ErrNotInRoom)
	assert.False(t, o.ToggleAudio("A", false))
	assert.False(t, o.AudioEnabled("A"))
	_, ok := o.RoomMates("A")
	assert.False(t, ok)
}

func TestJoinNotifiesBothRooms(t *testing.T) {
	o, _ := newTestOrch()
	a := connect(t, o, "A", "alice")
	b := connect(t, o, "B", "bob")
	c := connect(t, o, "C", "carol")

	r1, _ := o.CreateRoom("one", nil)
	r2, _ := o.CreateRoom("two", nil)
	_, err := o.Join("A", r1.ID(), "alice")
	require.NoError(t, err)
	_, err = o.Join("B", r1.ID(), "bob")
	require.NoError(t, err)
	_, err = o.Join("C", r2.ID(), "carol")
	require.NoError(t, err)

	assert.Equal(t, []proto.Message{&proto.ParticipantJoined{ParticipantID: "B", Username: "bob"}}, a.take())
	b.take()
	c.take()

	_, err = o.Join("A", r2.ID(), "alice")
	require.NoError(t, err)

	assert.Equal(t, []proto.Message{&proto.ParticipantLeft{ParticipantID: "A"}}, b.take())
	assert.Equal(t, []proto.Message{&proto.ParticipantJoined{ParticipantID: "A", Username: "alice"}}, c.take())
	assert.Empty(t, a.take())
}

func TestFailedJoinStillLeavesPreviousRoom(t *testing.T) {
	o, _ := newTestOrch()
	a := connect(t, o, "A", "alice")
	b := connect(t, o, "B", "bob")
	c := connect(t, o, "C", "carol")

	one := uint32(1)
	r1, _ := o.CreateRoom("one", nil)
	r2, _ := o.CreateRoom("two", &one)
	_, err := o.Join("A", r1.ID(), "alice")
	require.NoError(t, err)
	_, err = o.Join("B", r1.ID(), "bob")
	require.NoError(t, err)
	_, err = o.Join("C", r2.ID(), "carol")
	require.NoError(t, err)
	a.take()
	b.take()
	c.take()

	res, err := o.Join("A", r2.ID(), "alice")
	assert.ErrorIs(t, err, core.ErrRoomFull)
	assert.Same(t, r1, res.Previous)

	assert.Equal(t, []proto.Message{&proto.ParticipantLeft{ParticipantID: "A"}}, b.take())
	assert.Empty(t, c.take())
	assert.Empty(t, a.take())
	_, ok := o.RoomMates("A")
	assert.False(t, ok)
}

func TestToggleBroadcastsToOthers(t *testing.T) {
	o, _ := newTestOrch()
	a := connect(t, o, "A", "alice")
	b := connect(t, o, "B", "bob")
	room, _ := o.CreateRoom("R", nil)
	_, _ = o.Join("A", room.ID(), "alice")
	_, _ = o.Join("B", room.ID(), "bob")
	a.take()
	b.take()

	assert.True(t, o.ToggleAudio("A", false))
	assert.True(t, o.ToggleVideo("A", false))
	assert.False(t, o.AudioEnabled("A"))
	assert.True(t, o.AudioEnabled("B"))

	assert.Empty(t, a.take())
	assert.Equal(t, []proto.Message{
		&proto.AudioToggled{ParticipantID: "A", Enabled: false},
		&proto.VideoToggled{ParticipantID: "A", Enabled: false},
	}, b.take())
}

func TestDisconnectNotifiesRoomMates(t *testing.T) {
	o, f := newTestOrch()
	connect(t, o, "A", "alice")
	b := connect(t, o, "B", "bob")
	room, _ := o.CreateRoom("R", nil)
	_, _ = o.Join("A", room.ID(), "alice")
	_, _ = o.Join("B", room.ID(), "bob")
	b.take()

	o.Disconnect("A")

	assert.Equal(t, []proto.Message{&proto.ParticipantLeft{ParticipantID: "A"}}, b.take())
	assert.Equal(t, []domain.ParticipantID{"A"}, f.forgotten)
	assert.Equal(t, 1, room.Count())
	_, ok := o.Registry.Sink("A")
	assert.False(t, ok)

	mates, ok := o.RoomMates("B")
	require.True(t, ok)
	assert.Empty(t, mates)
}

func TestBackpressureKicks(t *testing.T) {
	o, _ := newTestOrch()
	a := connect(t, o, "A", "alice")
	b := connect(t, o, "B", "bob")
	room, _ := o.CreateRoom("R", nil)
	_, _ = o.Join("A", room.ID(), "alice")
	_, _ = o.Join("B", room.ID(), "bob")

	b.full = true
	require.NoError(t, o.SendChat("A", "hi"))
	assert.True(t, b.kicked)
	assert.False(t, a.kicked)

	o.Policy = app.DropPolicy{}
	b.kicked = false
	require.NoError(t, o.SendChat("A", "again"))
	assert.False(t, b.kicked)
}

func TestCreateRoomDefaults(t *testing.T) {
	o, _ := newTestOrch()
	room, err := o.CreateRoom("R", nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(fallbackMaxParticipants), room.MaxParticipants())

	o.DefaultMaxParticipants = 4
	limit := uint32(2)
	room, err = o.CreateRoom("R", &limit)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), room.MaxParticipants())

	_, err = o.CreateRoom("", nil)
	assert.ErrorIs(t, err, domain.ErrRoomNameEmpty)
}

func TestListUsers(t *testing.T) {
	o, _ := newTestOrch()
	connect(t, o, "A", "alice")
	o.Connect("anon", &recordingSink{})
	room, _ := o.CreateRoom("Lobby", nil)
	_, _ = o.Join("A", room.ID(), "alice")
	o.ToggleVideo("A", false)

	users := o.ListUsers()
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)
	require.NotNil(t, users[0].CurrentRoom)
	assert.Equal(t, "Lobby", *users[0].CurrentRoom)
	assert.True(t, users[0].AudioEnabled)
	assert.False(t, users[0].VideoEnabled)
	assert.Equal(t, uint64(1700000000), users[0].ConnectedAt)

	rooms := o.ListRooms()
	require.Len(t, rooms, 1)
	assert.Equal(t, uint32(1), rooms[0].Participants)
}

func TestDeleteRoomEvicts(t *testing.T) {
	o, _ := newTestOrch()
	a := connect(t, o, "A", "alice")
	room, _ := o.CreateRoom("R", nil)
	_, _ = o.Join("A", room.ID(), "alice")

	assert.True(t, o.DeleteRoom(room.ID()))
	assert.Equal(t, []proto.Message{&proto.RoomLeft{Success: true}}, a.take())
	assert.False(t, o.DeleteRoom(room.ID()))
	assert.ErrorIs(t, o.SendChat("A", "x"), ErrNotInRoom)
}
