package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dkeye/pqvoice/internal/client"
	"github.com/dkeye/pqvoice/internal/pqc"
)

type probeMetrics struct {
	Attempt     int    `json:"attempt_number"`
	Timestamp   string `json:"timestamp"`
	ConnectMs   int64  `json:"connect_duration_ms"`
	KeyExchange int64  `json:"key_exchange_duration_ms"`
	LoginMs     int64  `json:"login_duration_ms"`
	TotalMs     int64  `json:"total_duration_ms"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
}

type probeSummary struct {
	Server      string         `json:"server"`
	Scheme      string         `json:"scheme"`
	Attempts    int            `json:"total_attempts"`
	Successful  int            `json:"successful_attempts"`
	SuccessRate float64        `json:"success_rate"`
	AvgKeyExMs  float64        `json:"avg_key_exchange_ms"`
	Metrics     []probeMetrics `json:"metrics"`
}

func newProbeCmd() *cobra.Command {
	var (
		attempts int
		delay    time.Duration
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Measure connect, key exchange and login timings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sum := probeSummary{Server: flags.addr, Scheme: flags.scheme, Attempts: attempts}
			var keyEx int64
			for i := 1; i <= attempts; i++ {
				m := probeOnce(cmd.Context(), i)
				sum.Metrics = append(sum.Metrics, m)
				if m.Success {
					sum.Successful++
					keyEx += m.KeyExchange
				}
				if !asJSON {
					printProbe(cmd, m)
				}
				if i < attempts {
					select {
					case <-cmd.Context().Done():
						return cmd.Context().Err()
					case <-time.After(delay):
					}
				}
			}
			if attempts > 0 {
				sum.SuccessRate = float64(sum.Successful) / float64(attempts) * 100
			}
			if sum.Successful > 0 {
				sum.AvgKeyExMs = float64(keyEx) / float64(sum.Successful)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(sum)
			}
			fmt.Fprintf(out, "%d/%d succeeded (%.1f%%), avg key exchange %.1f ms\n",
				sum.Successful, attempts, sum.SuccessRate, sum.AvgKeyExMs)
			return nil
		},
	}
	cmd.Flags().IntVarP(&attempts, "attempts", "n", 1, "number of connection attempts")
	cmd.Flags().DurationVar(&delay, "delay", time.Second, "delay between attempts")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func probeOnce(ctx context.Context, attempt int) probeMetrics {
	m := probeMetrics{Attempt: attempt, Timestamp: time.Now().UTC().Format(time.RFC3339)}
	fail := func(err error) probeMetrics {
		m.Error = err.Error()
		return m
	}

	tlsCfg, err := tlsConfig()
	if err != nil {
		return fail(err)
	}
	scheme, err := pqc.NewScheme(flags.scheme)
	if err != nil {
		return fail(err)
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	start := time.Now()
	c, err := client.Dial(ctx, flags.addr, tlsCfg, client.WithScheme(scheme))
	if err != nil {
		return fail(err)
	}
	defer c.Close()
	m.ConnectMs = time.Since(start).Milliseconds()

	t := time.Now()
	if err := c.Handshake(ctx); err != nil {
		return fail(err)
	}
	m.KeyExchange = time.Since(t).Milliseconds()

	t = time.Now()
	if _, err := c.Login(ctx, fmt.Sprintf("%s_%d", flags.username, attempt)); err != nil {
		return fail(err)
	}
	m.LoginMs = time.Since(t).Milliseconds()
	m.TotalMs = time.Since(start).Milliseconds()
	m.Success = true
	return m
}

func printProbe(cmd *cobra.Command, m probeMetrics) {
	out := cmd.OutOrStdout()
	if !m.Success {
		fmt.Fprintf(out, "attempt %d failed: %s\n", m.Attempt, m.Error)
		return
	}
	fmt.Fprintf(out, "attempt %d: connect %d ms, key exchange %d ms, login %d ms, total %d ms\n",
		m.Attempt, m.ConnectMs, m.KeyExchange, m.LoginMs, m.TotalMs)
}
