package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dkeye/pqvoice/internal/config"
	"github.com/dkeye/pqvoice/internal/server"
)

func main() {
	var configPath, logLevel string

	rootCmd := &cobra.Command{
		Use:          "pqvoice-server",
		Short:        "Post-quantum signaling server and audio relay",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath, logLevel)
		},
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "config file (default: config.<CONFIG_ENV>.yaml in ., ./config or the XDG config dir)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "override log_level from the config")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, logLevel string) error {
	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := setupLogging(cfg.Mode, cfg.LogLevel); err != nil {
		return err
	}

	srv, err := server.New(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("failed to start server")
		return err
	}
	if err := srv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("server error")
		return err
	}
	log.Info().Msg("Server exited gracefully")
	return nil
}

// setupLogging keeps the console writer for debug and switches to JSON
// otherwise.
func setupLogging(mode, level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	if mode != "debug" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return nil
}
