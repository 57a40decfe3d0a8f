package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dkeye/pqvoice/internal/client"
	"github.com/dkeye/pqvoice/internal/pqc"
)

type globalFlags struct {
	addr      string
	username  string
	plain     bool
	insecure  bool
	caFile    string
	scheme    string
	handshake bool
	timeout   time.Duration
	verbose   bool
}

var flags globalFlags

func main() {
	rootCmd := &cobra.Command{
		Use:          "pqvoice-client",
		Short:        "Command line client for the pqvoice signaling server",
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
			zerolog.SetGlobalLevel(zerolog.WarnLevel)
			if flags.verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.addr, "server", "s", "127.0.0.1:8443", "signaling server address")
	pf.StringVarP(&flags.username, "username", "u", "pqvoice_user", "username to log in with")
	pf.BoolVar(&flags.plain, "plain", false, "connect without TLS")
	pf.BoolVar(&flags.insecure, "insecure", false, "skip server certificate verification")
	pf.StringVar(&flags.caFile, "ca", "", "PEM file with the server CA")
	pf.StringVar(&flags.scheme, "kem", "Kyber1024", "KEM scheme (Kyber1024 or ML-KEM-1024)")
	pf.BoolVar(&flags.handshake, "key-exchange", true, "run the post-quantum key exchange before login")
	pf.DurationVar(&flags.timeout, "timeout", 10*time.Second, "per-request timeout")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(newProbeCmd(), newRoomsCmd(), newUsersCmd(), newChatCmd())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		os.Exit(1)
	}
}

func tlsConfig() (*tls.Config, error) {
	if flags.plain {
		return nil, nil
	}
	cfg := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: flags.insecure} //nolint:gosec // opt-in for self-signed dev servers
	if flags.caFile != "" {
		pem, err := os.ReadFile(flags.caFile)
		if err != nil {
			return nil, fmt.Errorf("read ca: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("ca: no certificates found")
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}

// connect dials, optionally runs the key exchange and logs in.
func connect(ctx context.Context) (*client.Client, error) {
	tlsCfg, err := tlsConfig()
	if err != nil {
		return nil, err
	}
	scheme, err := pqc.NewScheme(flags.scheme)
	if err != nil {
		return nil, err
	}
	dctx, cancel := context.WithTimeout(ctx, flags.timeout)
	defer cancel()
	c, err := client.Dial(dctx, flags.addr, tlsCfg, client.WithScheme(scheme))
	if err != nil {
		return nil, err
	}
	if flags.handshake {
		if err := c.Handshake(dctx); err != nil {
			_ = c.Close()
			return nil, err
		}
	}
	if _, err := c.Login(dctx, flags.username); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, flags.timeout)
}
