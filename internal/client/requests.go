package client

import (
	"context"
	"fmt"

	"github.com/dkeye/pqvoice/internal/pqc"
	"github.com/dkeye/pqvoice/internal/proto"
)

// Handshake runs the key exchange with a fresh keypair.
func (c *Client) Handshake(ctx context.Context) error {
	kp, err := c.scheme.GenerateKeyPair()
	if err != nil {
		return err
	}
	r, err := c.request(ctx, &proto.KeyExchangeInit{PublicKey: kp.PublicKeyBytes()}, is[*proto.KeyExchangeResponse])
	if err != nil {
		return fmt.Errorf("key exchange: %w", err)
	}
	secret, err := kp.Decapsulate(r.(*proto.KeyExchangeResponse).Ciphertext)
	if err != nil {
		return fmt.Errorf("key exchange: %w", err)
	}
	sess := pqc.NewSession(secret)
	clear(secret)

	c.smu.Lock()
	if c.session != nil {
		c.session.Wipe()
	}
	c.session = sess
	c.smu.Unlock()
	c.logger.Info().Str("scheme", c.scheme.Name()).Int("secret_len", sess.SecretLen()).Msg("key exchange complete")
	return nil
}

func (c *Client) Login(ctx context.Context, username string) (string, error) {
	r, err := c.request(ctx, &proto.Login{Username: username}, is[*proto.LoginResponse])
	if err != nil {
		return "", err
	}
	resp := r.(*proto.LoginResponse)
	if !resp.Success || resp.ParticipantID == nil {
		return "", serverError(resp.Error)
	}
	c.smu.Lock()
	c.pid = *resp.ParticipantID
	c.smu.Unlock()
	return *resp.ParticipantID, nil
}

func (c *Client) ListRooms(ctx context.Context) ([]proto.RoomInfo, error) {
	r, err := c.request(ctx, &proto.ListRooms{}, is[*proto.RoomList])
	if err != nil {
		return nil, err
	}
	return r.(*proto.RoomList).Rooms, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]proto.ServerUserInfo, error) {
	r, err := c.request(ctx, &proto.ListServerUsers{}, is[*proto.ServerUserList])
	if err != nil {
		return nil, err
	}
	return r.(*proto.ServerUserList).Users, nil
}

// CreateRoom returns the new room id. A nil maxParticipants takes the
// server default.
func (c *Client) CreateRoom(ctx context.Context, name string, maxParticipants *uint32) (string, error) {
	r, err := c.request(ctx, &proto.CreateRoom{Name: name, MaxParticipants: maxParticipants}, is[*proto.RoomCreated])
	if err != nil {
		return "", err
	}
	resp := r.(*proto.RoomCreated)
	if !resp.Success || resp.RoomID == nil {
		return "", serverError(resp.Error)
	}
	return *resp.RoomID, nil
}

func (c *Client) JoinRoom(ctx context.Context, roomID, username string) (*proto.RoomJoined, error) {
	r, err := c.request(ctx, &proto.JoinRoom{RoomID: roomID, Username: username}, is[*proto.RoomJoined])
	if err != nil {
		return nil, err
	}
	resp := r.(*proto.RoomJoined)
	if !resp.Success {
		return nil, serverError(resp.Error)
	}
	return resp, nil
}

func (c *Client) LeaveRoom(ctx context.Context) error {
	r, err := c.request(ctx, &proto.LeaveRoom{}, is[*proto.RoomLeft])
	if err != nil {
		return err
	}
	if resp := r.(*proto.RoomLeft); !resp.Success {
		return serverError(resp.Error)
	}
	return nil
}

func (c *Client) ToggleAudio(ctx context.Context, enabled bool) error {
	self := c.ParticipantID()
	_, err := c.request(ctx, &proto.ToggleAudio{Enabled: enabled}, func(m proto.Message) bool {
		t, ok := m.(*proto.AudioToggled)
		return ok && t.ParticipantID == self
	})
	return err
}

func (c *Client) ToggleVideo(ctx context.Context, enabled bool) error {
	self := c.ParticipantID()
	_, err := c.request(ctx, &proto.ToggleVideo{Enabled: enabled}, func(m proto.Message) bool {
		t, ok := m.(*proto.VideoToggled)
		return ok && t.ParticipantID == self
	})
	return err
}

// SendMessage has no direct reply; the chat line comes back as an event.
func (c *Client) SendMessage(content string) error {
	return c.send(&proto.SendMessage{Content: content})
}

// SendAudio relays a payload over the signaling connection.
func (c *Client) SendAudio(data []byte) error {
	return c.send(&proto.AudioData{Data: data})
}
