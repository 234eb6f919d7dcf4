package loadgen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/elove/internal/adapters/mq/queue"
	"github.com/okian/elove/internal/adapters/mq/worker"
	"github.com/okian/elove/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging initialises the process logger on stdout and, when logFile is
// set, on that file too. The returned closer releases the file.
func SetupLogging(logFile string, verbose bool) (io.Closer, error) {
	var (
		w      io.Writer = os.Stdout
		closer io.Closer = io.NopCloser(nil)
	)
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, file)
		closer = file
	}
	if err := logger.InitWith(w, logger.FormatText); err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return closer, nil
}

// edgeSet records accepted positive ratings by direction.
type edgeSet struct {
	mu    sync.Mutex
	edges map[[2]string]struct{}
}

func (e *edgeSet) add(from, to string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.edges == nil {
		e.edges = make(map[[2]string]struct{})
	}
	e.edges[[2]string{from, to}] = struct{}{}
}

// mutualPairs returns canonical pairs with a positive rating in both directions.
func (e *edgeSet) mutualPairs() map[[2]string]struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[[2]string]struct{})
	for k := range e.edges {
		if _, ok := e.edges[[2]string{k[1], k[0]}]; ok && k[0] < k[1] {
			out[k] = struct{}{}
		}
	}
	return out
}

// Run executes a complete load run and verifies the resulting state.
func Run(ctx context.Context, cfg Config) (*Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.Get().Named("loadgen")
	stats := &Stats{StartTime: time.Now()}
	client := NewClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "starting load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("participants", cfg.Participants),
		logger.Int("ratings", cfg.Ratings),
		logger.Int("workers", cfg.Workers),
	)

	if err := client.Health(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	ids, err := createParticipants(ctx, cfg, client)
	if err != nil {
		return nil, fmt.Errorf("participant creation failed: %w", err)
	}
	stats.ParticipantsCreated = len(ids)
	log.Info(ctx, "participants created", logger.Int("count", len(ids)))

	jobs := Plan(cfg, ids)
	edges := &edgeSet{}
	submitRatings(ctx, cfg, client, jobs, edges, stats)
	log.Info(ctx, "ratings submitted",
		logger.Int("submitted", int(stats.RatingsSubmitted)),
		logger.Int("accepted", int(stats.RatingsAccepted)),
		logger.Int("failed", int(stats.RatingsFailed)),
		logger.Int("replaysRejected", int(stats.ReplaysRejected)),
	)

	verr := verify(ctx, cfg, client, ids, edges.mutualPairs(), stats)
	stats.Duration = time.Since(stats.StartTime)

	log.Info(ctx, "final statistics",
		logger.Int("matchesExpected", stats.MatchesExpected),
		logger.Int("matchesFound", stats.MatchesFound),
		logger.Duration("duration", stats.Duration),
	)
	if verr != nil {
		return stats, fmt.Errorf("verification failed: %w", verr)
	}
	return stats, nil
}

// createParticipants registers cfg.Participants participants through the pool.
func createParticipants(ctx context.Context, cfg Config, client *Client) ([]string, error) {
	ids := make([]string, cfg.Participants)
	var (
		mu   sync.Mutex
		errs []error
	)

	q := queue.NewInMemoryQueue[int](queue.WithCapacity(cfg.Participants))
	pool := worker.NewPool[int](cfg.Workers, q, func(ctx context.Context, i int) error {
		p, err := client.CreateParticipant(ctx, participantName(i), participantAge(i))
		if err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("participant %d: %w", i, err))
			mu.Unlock()
			return err
		}
		ids[i] = p.ID
		return nil
	})
	pool.Start(ctx)
	for i := 0; i < cfg.Participants; i++ {
		if err := q.EnqueueWait(ctx, i); err != nil {
			_ = pool.Shutdown(ctx)
			return nil, err
		}
	}
	_ = q.Close()
	pool.Wait()

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return ids, nil
}

// submitRatings sends jobs through the pool and tallies outcomes.
func submitRatings(ctx context.Context, cfg Config, client *Client, jobs []Job, edges *edgeSet, stats *Stats) {
	var submitted, accepted, failed, replayRejected, replayAccepted atomic.Int64

	q := queue.NewInMemoryQueue[Job](queue.WithCapacity(cfg.Workers * 2))
	pool := worker.NewPool[Job](cfg.Workers, q, func(ctx context.Context, j Job) error {
		submitted.Add(1)
		if _, err := client.Rate(ctx, j); err != nil {
			failed.Add(1)
			return err
		}
		accepted.Add(1)
		if j.Positive {
			edges.add(j.FromID, j.ToID)
		}
		if !j.Replay {
			return nil
		}

		_, err := client.Rate(ctx, j)
		var se *StatusError
		if errors.As(err, &se) && se.Status == http.StatusConflict && se.Code == "duplicate" {
			replayRejected.Add(1)
			return nil
		}
		if err == nil {
			replayAccepted.Add(1)
			return fmt.Errorf("replay of %s was accepted", j.Key)
		}
		return err
	})
	pool.Start(ctx)
	for _, j := range jobs {
		if err := q.EnqueueWait(ctx, j); err != nil {
			break
		}
	}
	_ = q.Close()
	pool.Wait()

	stats.RatingsSubmitted = submitted.Load()
	stats.RatingsAccepted = accepted.Load()
	stats.RatingsFailed = failed.Load()
	stats.ReplaysRejected = replayRejected.Load()
	stats.ReplaysAccepted = replayAccepted.Load()
}
