package signal

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/dkeye/pqvoice/internal/proto"
	"github.com/rs/zerolog/log"
)

const (
	msgInvalidFormat = "Invalid message format"
	msgTooLarge      = "Message too large"
	msgUnsupported   = "Unsupported message type"
)

func (ctl *Controller) writePump(c *Conn) {
	defer func() {
		_ = c.stream.Close()
	}()
	for {
		select {
		case <-c.done:
			log.Debug().Str("module", "signal").Str("sid", string(c.id)).Msg("writePump kicked")
			return
		case m, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("sid", string(c.id)).Msg("writePump queue closed")
				return
			}
			frame, err := proto.Frame(m)
			if err != nil {
				log.Error().Err(err).Str("module", "signal").Str("sid", string(c.id)).Msg("writePump encode")
				continue
			}
			if c.writeTimeout > 0 {
				if err := c.stream.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
					log.Error().Err(err).Str("module", "signal").Str("sid", string(c.id)).Msg("writePump set deadline")
					c.Kick()
					return
				}
			}
			if _, err := c.stream.Write(frame); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("sid", string(c.id)).Msg("writePump write error")
				c.Kick()
				return
			}
		}
	}
}

// readPump decodes frames until a fatal error. Per-request failures are
// answered inline and never end the loop.
func (ctl *Controller) readPump(c *Conn, sess *session) {
	defer log.Info().Str("module", "signal").Str("sid", string(sess.id)).Str("state", sess.state.String()).Msg("readPump closing")

	for {
		if ctl.Opts.ReadTimeout > 0 {
			if err := c.stream.SetReadDeadline(time.Now().Add(ctl.Opts.ReadTimeout)); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("sid", string(sess.id)).Msg("readPump set deadline")
				return
			}
		}
		payload, err := proto.ReadFrame(c.stream, ctl.Opts.MaxFrameSize)
		if err != nil {
			ctl.onReadError(sess, err)
			return
		}
		msg, err := proto.Decode(payload)
		if err != nil {
			log.Error().Err(err).Str("module", "signal").Str("sid", string(sess.id)).Msg("invalid message")
			ctl.reply(sess, proto.NewError(msgInvalidFormat))
			return
		}
		ctl.handleSignal(sess, msg)
	}
}

func (ctl *Controller) onReadError(sess *session, err error) {
	var netErr net.Error
	switch {
	case errors.Is(err, proto.ErrFrameTooLarge):
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sess.id)).Msg("frame too large")
		ctl.reply(sess, proto.NewError(msgTooLarge))
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		log.Debug().Str("module", "signal").Str("sid", string(sess.id)).Msg("peer closed")
	case errors.As(err, &netErr) && netErr.Timeout():
		log.Info().Str("module", "signal").Str("sid", string(sess.id)).Msg("idle timeout")
	default:
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sess.id)).Msg("readPump read error")
	}
}

func (ctl *Controller) handleSignal(sess *session, msg proto.Message) {
	switch m := msg.(type) {
	case *proto.KeyExchangeInit:
		ctl.handleKeyExchange(sess, m)
	case *proto.Login:
		ctl.handleLogin(sess, m)
	case *proto.ListRooms:
		ctl.handleListRooms(sess)
	case *proto.ListServerUsers:
		ctl.handleListUsers(sess)
	case *proto.CreateRoom:
		ctl.handleCreateRoom(sess, m)
	case *proto.JoinRoom:
		ctl.handleJoin(sess, m)
	case *proto.LeaveRoom:
		ctl.handleLeave(sess)
	case *proto.ToggleAudio:
		ctl.handleToggleAudio(sess, m)
	case *proto.ToggleVideo:
		ctl.handleToggleVideo(sess, m)
	case *proto.SendMessage:
		ctl.handleSendMessage(sess, m)
	case *proto.AudioData:
		ctl.handleAudioData(sess, m)
	default:
		log.Warn().Str("module", "signal").Str("sid", string(sess.id)).Str("type", string(msg.Type())).Msg("unsupported signal")
		ctl.reply(sess, proto.NewError(msgUnsupported))
	}
}

// reply goes through the same queue and backpressure policy as broadcasts.
func (ctl *Controller) reply(sess *session, m proto.Message) {
	ctl.Orch.Send(sess.id, m)
}
