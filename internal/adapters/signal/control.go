package signal

import (
	"github.com/dkeye/pqvoice/internal/pqc"
	"github.com/dkeye/pqvoice/internal/proto"
	"github.com/dkeye/pqvoice/internal/relay"
	"github.com/rs/zerolog/log"
)

func (ctl *Controller) handleKeyExchange(sess *session, m *proto.KeyExchangeInit) {
	ct, secret, err := ctl.Scheme.Encapsulate(m.PublicKey)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sess.id)).Int("pk_len", len(m.PublicKey)).Msg("key exchange failed")
		ctl.reply(sess, proto.NewError("Key exchange failed: "+err.Error()))
		return
	}
	if sess.setSecret(secret) {
		log.Warn().Str("module", "signal").Str("sid", string(sess.id)).Msg("key exchange repeated, secret replaced")
	}
	for i := range secret {
		secret[i] = 0
	}
	if key, err := sess.secret.DeriveKey(pqc.LabelAudio, relay.KeySize); err == nil {
		ctl.Orch.SetAudioKey(sess.id, key)
		for i := range key {
			key[i] = 0
		}
	} else {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sess.id)).Msg("audio key derivation failed")
	}
	log.Info().Str("module", "signal").Str("sid", string(sess.id)).Str("scheme", ctl.Scheme.Name()).Int("secret_len", sess.secret.SecretLen()).Msg("key exchange completed")
	ctl.reply(sess, &proto.KeyExchangeResponse{Ciphertext: ct})
}
