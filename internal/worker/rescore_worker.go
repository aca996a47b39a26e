package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sentra-edu/proctor-backend/internal/config"
	"github.com/sentra-edu/proctor-backend/internal/service"
)

// RescoreWorker re-runs the exam-wide plagiarism pass whenever a new
// submission lands. Consecutive submissions for the same exam coalesce
// into one pass.
type RescoreWorker struct {
	submissions *service.SubmissionService
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewRescoreWorker creates a new RescoreWorker.
func NewRescoreWorker(submissions *service.SubmissionService, rdb *redis.Client, log zerolog.Logger) *RescoreWorker {
	return &RescoreWorker{
		submissions: submissions,
		rdb:         rdb,
		log:         log.With().Str("component", "rescore_worker").Logger(),
	}
}

// Start runs the rescore loop until ctx is canceled.
func (w *RescoreWorker) Start(ctx context.Context) {
	w.log.Info().Msg("rescore worker started")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.RescoreQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}
		if len(result) < 2 {
			continue
		}

		for _, examID := range w.coalesce(ctx, result[1]) {
			w.rescore(ctx, examID)
		}
	}
}

// coalesce drains everything already queued and dedupes, so a burst of
// submissions triggers one pass per exam instead of one per submission.
func (w *RescoreWorker) coalesce(ctx context.Context, first string) []string {
	ids := []string{first}
	seen := map[string]struct{}{first: {}}

	for {
		next, err := w.rdb.LPop(ctx, config.WorkerKey.RescoreQueue).Result()
		if err != nil {
			break
		}
		if _, dup := seen[next]; dup {
			continue
		}
		seen[next] = struct{}{}
		ids = append(ids, next)
	}
	return ids
}

func (w *RescoreWorker) rescore(ctx context.Context, raw string) {
	examID, err := uuid.Parse(raw)
	if err != nil {
		w.log.Error().Str("exam_id", raw).Msg("dropping rescore request with invalid UUID")
		return
	}

	start := time.Now()
	if err := w.submissions.RescoreExam(ctx, examID); err != nil {
		w.log.Error().Err(err).Str("exam_id", raw).Msg("rescore failed, requeueing")
		if rerr := w.rdb.RPush(ctx, config.WorkerKey.RescoreQueue, raw).Err(); rerr != nil {
			w.log.Error().Err(rerr).Str("exam_id", raw).Msg("CRITICAL: failed to requeue rescore")
		}
		time.Sleep(2 * time.Second)
		return
	}

	w.log.Info().
		Str("exam_id", raw).
		Dur("elapsed", time.Since(start)).
		Msg("exam rescored")
}
