package signal

import (
	"github.com/dkeye/pqvoice/internal/proto"
	"github.com/rs/zerolog/log"
)

const msgKeyExchangeRequired = "Key exchange required"

func (ctl *Controller) handleLogin(sess *session, m *proto.Login) {
	if ctl.Opts.RequireKeyExchange && !sess.keyExchanged() {
		log.Warn().Str("module", "signal").Str("sid", string(sess.id)).Msg("login before key exchange")
		ctl.reply(sess, &proto.LoginResponse{Success: false, Error: proto.Str(msgKeyExchangeRequired)})
		return
	}
	if err := ctl.Orch.Login(sess.id, m.Username); err != nil {
		ctl.reply(sess, &proto.LoginResponse{Success: false, Error: proto.Str(err.Error())})
		return
	}
	sess.login(m.Username)
	log.Info().Str("module", "signal").Str("sid", string(sess.id)).Str("username", m.Username).Msg("logged in")
	ctl.reply(sess, &proto.LoginResponse{Success: true, ParticipantID: proto.Str(string(sess.id))})
}

func (ctl *Controller) handleListUsers(sess *session) {
	ctl.reply(sess, &proto.ServerUserList{Users: ctl.Orch.ListUsers()})
}
