package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dkeye/pqvoice/internal/audio"
	"github.com/dkeye/pqvoice/internal/client"
	"github.com/dkeye/pqvoice/internal/proto"
	"github.com/dkeye/pqvoice/internal/relay"
)

const chatHelp = `commands:
  /rooms          list rooms
  /users          list users
  /mute, /unmute  toggle your audio
  /tone           send one second of test tone over the relay
  /stats          show playback stats
  /leave          leave the room and quit
  anything else is sent as a chat message`

func newChatCmd() *cobra.Command {
	var (
		roomID    string
		create    string
		relayAddr string
		codec     string
		seal      bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Join a room and chat interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c, err := connect(ctx)
			if err != nil {
				return err
			}
			defer c.Close()
			out := cmd.OutOrStdout()

			if create != "" {
				rctx, cancel := withTimeout(ctx)
				roomID, err = c.CreateRoom(rctx, create, nil)
				cancel()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "created room %s (%s)\n", create, roomID)
			}
			if roomID == "" {
				return errors.New("--room or --create is required")
			}
			rctx, cancel := withTimeout(ctx)
			joined, err := c.JoinRoom(rctx, roomID, flags.username)
			cancel()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "joined %s\n", *joined.RoomName)
			if joined.Participants != nil {
				for _, p := range *joined.Participants {
					fmt.Fprintf(out, "  %s (%s) audio=%t\n", p.Username, p.ID, p.AudioEnabled)
				}
			}

			sess := &chatSession{c: c, out: out}
			if relayAddr != "" {
				if err := sess.openAudio(ctx, relayAddr, codec, seal); err != nil {
					return err
				}
				defer sess.stream.Close()
			}

			go sess.printEvents()
			fmt.Fprintln(out, chatHelp)
			return sess.readInput(ctx, cmd.InOrStdin())
		},
	}
	cmd.Flags().StringVar(&roomID, "room", "", "room id to join")
	cmd.Flags().StringVar(&create, "create", "", "create a room with this name and join it")
	cmd.Flags().StringVar(&relayAddr, "relay", "", "UDP audio relay address")
	cmd.Flags().StringVar(&codec, "codec", "bincode", "relay packet codec (bincode or cbor)")
	cmd.Flags().BoolVar(&seal, "seal", false, "authenticate relay datagrams with the session audio key (needs --key-exchange)")
	return cmd
}

type chatSession struct {
	c      *client.Client
	out    io.Writer
	stream *client.AudioStream
	inbox  *relay.Buffer // audio relayed over signaling
	player *audio.Player
}

func (s *chatSession) openAudio(ctx context.Context, addr, codecName string, seal bool) error {
	codec, err := relay.CodecFor(codecName)
	if err != nil {
		return err
	}
	var opts []client.StreamOption
	if seal {
		key, err := s.c.AudioKey()
		if err != nil {
			return fmt.Errorf("sealing audio: %w", err)
		}
		opts = append(opts, client.WithStreamKey(key))
	}
	s.stream, err = client.OpenAudioStream(addr, s.c.ParticipantID(), codec, nil, opts...)
	if err != nil {
		return err
	}
	s.player = audio.NewPlayer()
	s.inbox = relay.NewBuffer()
	go func() { _ = s.stream.Run(ctx) }()

	// stands in for the device callback: drain the jitter buffer into the
	// player and render one capture chunk per tick
	go func() {
		frame := make([]float32, audio.FrameSamples)
		tick := time.NewTicker(5 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
			}
			for _, next := range []func() ([]byte, bool){s.stream.Next, s.inbox.Pop} {
				for payload, ok := next(); ok; payload, ok = next() {
					_, _ = s.player.Push(payload)
				}
			}
			s.player.Render(frame)
		}
	}()
	return nil
}

func (s *chatSession) sendTone() error {
	if s.stream == nil {
		return errors.New("no relay configured")
	}
	const freq = 440.0
	frame := make([]float32, audio.FrameSamples)
	for chunk := 0; chunk < audio.SampleRate/audio.FrameSamples; chunk++ {
		for i := range frame {
			n := float64(chunk*audio.FrameSamples + i)
			frame[i] = float32(0.2 * math.Sin(2*math.Pi*freq*n/audio.SampleRate))
		}
		if err := s.stream.Send(audio.EncodeSamples(frame)); err != nil {
			return err
		}
		time.Sleep(5 * time.Millisecond)
	}
	return nil
}

func (s *chatSession) printEvents() {
	for m := range s.c.Events() {
		switch ev := m.(type) {
		case *proto.MessageReceived:
			ts := time.Unix(int64(ev.Timestamp), 0).Format(time.TimeOnly)
			fmt.Fprintf(s.out, "[%s] %s: %s\n", ts, ev.SenderUsername, ev.Content)
		case *proto.ParticipantJoined:
			fmt.Fprintf(s.out, "+ %s joined (%s)\n", ev.Username, ev.ParticipantID)
		case *proto.ParticipantLeft:
			fmt.Fprintf(s.out, "- %s left\n", ev.ParticipantID)
		case *proto.AudioToggled:
			fmt.Fprintf(s.out, "%s audio %s\n", ev.ParticipantID, onOff(ev.Enabled))
		case *proto.VideoToggled:
			fmt.Fprintf(s.out, "%s video %s\n", ev.ParticipantID, onOff(ev.Enabled))
		case *proto.RoomLeft:
			fmt.Fprintln(s.out, "removed from room")
		case *proto.AudioDataReceived:
			if s.inbox != nil {
				s.inbox.Push(ev.Data)
			}
		case *proto.Error:
			fmt.Fprintf(s.out, "server error: %s\n", ev.Message)
		default:
			fmt.Fprintf(s.out, "event: %s\n", m.Type())
		}
	}
	fmt.Fprintln(s.out, "server connection lost")
}

func (s *chatSession) readInput(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		var line string
		select {
		case <-ctx.Done():
			return nil
		case <-s.c.Done():
			return s.c.Err()
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(l)
		}
		if line == "" {
			continue
		}
		done, err := s.command(ctx, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		if done {
			return nil
		}
	}
}

func (s *chatSession) command(ctx context.Context, line string) (bool, error) {
	rctx, cancel := withTimeout(ctx)
	defer cancel()
	switch line {
	case "/help":
		fmt.Fprintln(s.out, chatHelp)
	case "/rooms":
		rooms, err := s.c.ListRooms(rctx)
		if err != nil {
			return false, err
		}
		for _, r := range rooms {
			fmt.Fprintf(s.out, "%s  %s  %d/%d\n", r.ID, r.Name, r.Participants, r.MaxParticipants)
		}
	case "/users":
		users, err := s.c.ListUsers(rctx)
		if err != nil {
			return false, err
		}
		for _, u := range users {
			fmt.Fprintf(s.out, "%s  %s\n", u.ID, u.Username)
		}
	case "/mute":
		return false, s.c.ToggleAudio(rctx, false)
	case "/unmute":
		return false, s.c.ToggleAudio(rctx, true)
	case "/tone":
		return false, s.sendTone()
	case "/stats":
		if s.player == nil {
			return false, errors.New("no audio")
		}
		st := s.player.Stats()
		fmt.Fprintf(s.out, "received=%d dropped=%d overflow=%d underruns=%d fill=%.0f%%\n",
			st.Received, st.Dropped, st.Overflow, st.Underruns, st.Fill)
	case "/leave", "/quit":
		return true, s.c.LeaveRoom(rctx)
	default:
		return false, s.c.SendMessage(line)
	}
	return false, nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
