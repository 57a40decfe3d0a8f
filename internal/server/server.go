// Package server assembles the signaling listener, the UDP audio relay and
// the admin HTTP API into one process and runs them until shutdown.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	router "github.com/dkeye/pqvoice/internal/adapters/http"
	"github.com/dkeye/pqvoice/internal/adapters/signal"
	"github.com/dkeye/pqvoice/internal/app"
	"github.com/dkeye/pqvoice/internal/app/orch"
	"github.com/dkeye/pqvoice/internal/config"
	"github.com/dkeye/pqvoice/internal/core"
	"github.com/dkeye/pqvoice/internal/pqc"
	"github.com/dkeye/pqvoice/internal/relay"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

var (
	_ relay.Membership = (*orch.Orchestrator)(nil)
	_ relay.Keys       = (*orch.Orchestrator)(nil)
	_ orch.MediaRelay  = (*relay.Server)(nil)
)

type Server struct {
	Orch   *orch.Orchestrator
	Signal *signal.Controller
	Relay  *relay.Server

	signalLn net.Listener
	httpLn   net.Listener
	httpSrv  *http.Server
}

// New builds every component and binds all sockets. Nothing is served until
// Run. On error every socket bound so far is closed.
func New(ctx context.Context, cfg *config.Config) (_ *Server, err error) {
	scheme, err := pqc.NewScheme(cfg.Security.KEMScheme)
	if err != nil {
		return nil, err
	}

	o := &orch.Orchestrator{
		Registry:               app.NewRegistry(),
		Rooms:                  core.NewRoomManager(core.WithRemoveEmpty(cfg.Rooms.RemoveEmpty)),
		Policy:                 app.PolicyFor(cfg.Outbound.Overflow),
		DefaultMaxParticipants: cfg.Rooms.DefaultMaxParticipants,
	}
	s := &Server{Orch: o}
	defer func() {
		if err != nil {
			s.closeListeners()
		}
	}()

	if cfg.Media.Enabled {
		codec, err := relay.CodecFor(cfg.Media.Codec)
		if err != nil {
			return nil, err
		}
		conn, err := relay.ListenUDP(cfg.Media.Host, cfg.Media.AudioPort)
		if err != nil {
			return nil, err
		}
		opts := []relay.Option{relay.WithEndpointTTL(cfg.Media.EndpointTTL)}
		if cfg.Media.Authenticate {
			opts = append(opts, relay.WithAuth(o))
		}
		s.Relay = relay.NewServer(conn, codec, o, opts...)
		o.Relays = s.Relay
	}

	s.Signal = signal.NewController(
		o,
		scheme,
		signal.NewRoomRateLimiter(cfg.RateLimit.ChatMessages, cfg.RateLimit.ChatInterval),
		signal.Options{
			MaxFrameSize:       cfg.Signaling.MaxFrameSize,
			ReadTimeout:        cfg.Signaling.ReadTimeout,
			WriteTimeout:       cfg.Signaling.WriteTimeout,
			QueueSize:          cfg.Outbound.QueueSize,
			Overflow:           cfg.Outbound.Overflow,
			RequireKeyExchange: cfg.Security.RequireKeyExchange,
		},
	)

	var tlsCfg *tls.Config
	if cfg.TLS.Enabled {
		tlsCfg, err = signal.LoadTLSConfig(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		if err != nil {
			return nil, err
		}
	}
	s.signalLn, err = signal.Listen(cfg.SignalingAddr(), tlsCfg)
	if err != nil {
		return nil, fmt.Errorf("signaling listen: %w", err)
	}

	if cfg.HTTP.Enabled {
		s.httpLn, err = net.Listen("tcp", cfg.HTTPAddr())
		if err != nil {
			return nil, fmt.Errorf("http listen: %w", err)
		}
		s.httpSrv = &http.Server{
			Handler:           router.SetupRouter(ctx, cfg, o, s.Signal),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}
	return s, nil
}

func (s *Server) closeListeners() {
	if s.Relay != nil {
		_ = s.Relay.Close()
	}
	if s.signalLn != nil {
		_ = s.signalLn.Close()
	}
	if s.httpLn != nil {
		_ = s.httpLn.Close()
	}
}

func (s *Server) SignalAddr() net.Addr { return s.signalLn.Addr() }

// HTTPAddr is nil when the admin API is disabled.
func (s *Server) HTTPAddr() net.Addr {
	if s.httpLn == nil {
		return nil
	}
	return s.httpLn.Addr()
}

// MediaAddr is nil when the relay is disabled.
func (s *Server) MediaAddr() net.Addr {
	if s.Relay == nil {
		return nil
	}
	return s.Relay.Addr()
}

// Run serves until ctx is cancelled or a component fails, then shuts the
// rest down.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.Signal.Serve(ctx, s.signalLn)
	})

	if s.Relay != nil {
		g.Go(func() error {
			return s.Relay.Serve(ctx)
		})
	}

	if s.httpSrv != nil {
		g.Go(func() error {
			log.Info().Str("module", "server").Str("addr", s.httpLn.Addr().String()).Msg("http api started")
			if err := s.httpSrv.Serve(s.httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
				log.Error().Str("module", "server").Err(err).Msg("http forced to shutdown")
				return err
			}
			return nil
		})
	}

	log.Info().Str("module", "server").Str("signaling", s.signalLn.Addr().String()).Msg("pqvoice server started")
	err := g.Wait()
	log.Info().Str("module", "server").Msg("server exited")
	return err
}
