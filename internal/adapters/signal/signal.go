package signal

import (
	"context"
	"time"

	"github.com/dkeye/pqvoice/internal/app"
	"github.com/dkeye/pqvoice/internal/app/orch"
	"github.com/dkeye/pqvoice/internal/domain"
	"github.com/dkeye/pqvoice/internal/pqc"
	"github.com/dkeye/pqvoice/internal/proto"
	"github.com/rs/zerolog/log"
)

type Options struct {
	MaxFrameSize       int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	QueueSize          int
	Overflow           string
	RequireKeyExchange bool
}

func DefaultOptions() Options {
	return Options{
		MaxFrameSize: proto.MaxFrameSize,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Second,
		QueueSize:    256,
		Overflow:     app.OverflowDisconnect,
	}
}

// Controller runs signaling connections against the orchestrator.
type Controller struct {
	Orch    *orch.Orchestrator
	Scheme  *pqc.Scheme
	Limiter *RoomRateLimiter
	Opts    Options
}

func NewController(o *orch.Orchestrator, scheme *pqc.Scheme, limiter *RoomRateLimiter, opts Options) *Controller {
	if opts.MaxFrameSize <= 0 {
		opts.MaxFrameSize = proto.MaxFrameSize
	}
	return &Controller{
		Orch:    o,
		Scheme:  scheme,
		Limiter: limiter,
		Opts:    opts,
	}
}

// ServeStream runs one connection until the peer goes away, a fatal
// protocol error occurs or ctx is cancelled. It blocks.
func (ctl *Controller) ServeStream(ctx context.Context, stream Stream) {
	pid := domain.NewParticipantID()
	logger := log.With().Str("module", "signal").Str("sid", string(pid)).Str("addr", stream.RemoteAddr().String()).Logger()
	logger.Info().Msg("new connection")

	conn := NewConn(pid, stream, ctl.Opts.QueueSize, ctl.Opts.Overflow, ctl.Opts.WriteTimeout)
	ctl.Orch.Connect(pid, conn)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ctl.writePump(conn)
	}()
	go func() {
		select {
		case <-ctx.Done():
			conn.Kick()
		case <-writerDone:
		}
	}()

	sess := newSession(pid)
	ctl.readPump(conn, sess)

	ctl.Orch.Disconnect(pid)
	if ctl.Limiter != nil {
		ctl.Limiter.Forget(pid)
	}
	sess.wipe()
	conn.Shutdown()
	<-writerDone
	logger.Info().Msg("connection closed")
}
