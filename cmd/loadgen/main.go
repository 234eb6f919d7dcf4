package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/elove/internal/loadgen"
)

// Default configuration constants.
const (
	defaultRunTimeout = 10 * time.Minute
)

func main() {
	def := loadgen.DefaultConfig()
	var (
		baseURL      = flag.String("url", def.BaseURL, "Base URL of the service")
		participants = flag.Int("participants", def.Participants, "Number of participants to create")
		ratings      = flag.Int("ratings", def.Ratings, "Number of ratings to submit")
		reciprocal   = flag.Float64("reciprocal", def.ReciprocalRate, "Share of likes answered with a like")
		replay       = flag.Float64("replay", def.ReplayRate, "Share of ratings replayed with the same idempotency key")
		workers      = flag.Int("workers", def.Workers, "Number of concurrent workers")
		timeout      = flag.Duration("timeout", def.Timeout, "HTTP request timeout")
		top          = flag.Int("top", def.TopN, "Leaderboard entries to verify")
		seed         = flag.Uint64("seed", def.Seed, "Seed for the rating plan")
		logFile      = flag.String("log", "", "Also write logs to this file")
		verbose      = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	closer, err := loadgen.SetupLogging(*logFile, *verbose)
	if err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)

	cfg := loadgen.Config{
		BaseURL:        *baseURL,
		Participants:   *participants,
		Ratings:        *ratings,
		ReciprocalRate: *reciprocal,
		ReplayRate:     *replay,
		Workers:        *workers,
		Timeout:        *timeout,
		TopN:           *top,
		Seed:           *seed,
		LogFile:        *logFile,
		Verbose:        *verbose,
	}

	_, err = loadgen.Run(ctx, cfg)
	cancel()
	stop()
	_ = closer.Close()
	if err != nil {
		_, _ = os.Stderr.WriteString("Load run failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
