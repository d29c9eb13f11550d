package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// StaleRunStore marks interrupted pipeline runs as failed.
type StaleRunStore interface {
	FailStaleProcessing(ctx context.Context, threshold time.Duration, message string) (int64, error)
}

// Scheduler runs periodic maintenance. Its one job today is the stale
// run reaper: a crash mid-pipeline leaves a post in processing forever,
// and the reaper converts those into an honest failed state.
type Scheduler struct {
	cron      *cron.Cron
	posts     StaleRunStore
	threshold time.Duration
	log       zerolog.Logger
}

const interruptedMessage = "processing interrupted: the run did not reach a terminal state"

func NewScheduler(posts StaleRunStore, threshold time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		posts:     posts,
		threshold: threshold,
		log:       log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("*/10 * * * *", s.reapStaleRuns); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) reapStaleRuns() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := s.posts.FailStaleProcessing(ctx, s.threshold, interruptedMessage)
	if err != nil {
		s.log.Error().Err(err).Msg("reap stale runs failed")
		return
	}
	if count > 0 {
		s.log.Warn().Int64("count", count).Msg("marked stale processing posts as failed")
	}
}
