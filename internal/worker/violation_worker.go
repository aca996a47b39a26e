package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sentra-edu/proctor-backend/internal/config"
	"github.com/sentra-edu/proctor-backend/internal/model"
	"github.com/sentra-edu/proctor-backend/internal/repository"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// ViolationWorker drains the violation queue into Postgres in batches.
// Ingestion never blocks on the database; a detector storm queues up in
// Redis and lands in chronological batches here.
type ViolationWorker struct {
	violations *repository.ViolationRepository
	rdb        *redis.Client
	log        zerolog.Logger
}

// NewViolationWorker creates a new ViolationWorker.
func NewViolationWorker(violations *repository.ViolationRepository, rdb *redis.Client, log zerolog.Logger) *ViolationWorker {
	return &ViolationWorker{
		violations: violations,
		rdb:        rdb,
		log:        log.With().Str("component", "violation_worker").Logger(),
	}
}

// Start runs the drain loop until ctx is canceled. Flushes on batch size
// or age, whichever hits first.
func (w *ViolationWorker) Start(ctx context.Context) {
	w.log.Info().Msg("violation worker started")

	buffer := make([]model.Violation, 0, BatchSize)
	lastFlush := time.Now()

	for {
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlush) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0]
				lastFlush = time.Now()
			}
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistViolationsQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				w.shutdown(buffer)
				return
			}
			w.log.Error().Err(err).Msg("redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		if len(result) < 2 {
			continue
		}

		var v model.Violation
		if err := json.Unmarshal([]byte(result[1]), &v); err != nil {
			// Malformed JSON cannot be retried. Log and discard.
			w.log.Error().Err(err).Str("data", result[1]).Msg("discarding malformed violation")
			continue
		}
		buffer = append(buffer, v)
	}
}

// flushSafe attempts bulk insert, then row-by-row recovery, then requeue.
func (w *ViolationWorker) flushSafe(ctx context.Context, batch []model.Violation) {
	if _, err := w.violations.BulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
		return
	}
	w.log.Debug().Int("count", len(batch)).Msg("flushed violation batch")
}

func (w *ViolationWorker) fallbackInsert(ctx context.Context, batch []model.Violation) {
	var requeueList []model.Violation

	for i := range batch {
		v := batch[i]
		if err := w.violations.Create(ctx, &v); err != nil {
			w.log.Error().Err(err).
				Int("student_id", v.StudentID).
				Str("type", string(v.Type)).
				Msg("insert failed, requeueing")
			requeueList = append(requeueList, v)
		}
	}

	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *ViolationWorker) requeue(ctx context.Context, items []model.Violation) {
	pipe := w.rdb.Pipeline()
	for i := range items {
		data, _ := json.Marshal(items[i])
		pipe.RPush(ctx, config.WorkerKey.PersistViolationsQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: failed to requeue violations, data loss occurred")
		return
	}
	w.log.Info().Int("count", len(items)).Msg("requeued failed violations")
	// Avoid thrashing while the database is down.
	time.Sleep(2 * time.Second)
}

func (w *ViolationWorker) shutdown(buffer []model.Violation) {
	w.log.Info().Msg("violation worker stopping, flushing remaining buffer")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}
