package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"leihlokal/internal/domain"
	"leihlokal/internal/metrics"
	"leihlokal/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const monthLayout = "2006-01"

// MonthRenderer produces the spreadsheet content of a month.
type MonthRenderer func(ctx context.Context, month time.Time) (header []string, rows [][]string, err error)

var ErrQueueFull = errors.New("sync queue is full")

// SheetsWorker pushes month grids to a spreadsheet. Jobs go through Redis when
// available, otherwise through an in-memory queue. Duplicate pending months are
// collapsed.
type SheetsWorker struct {
	writer        domain.ScheduleWriter
	render        MonthRenderer
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan string
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	logger        *zerolog.Logger
	sleep         func(context.Context, time.Duration) error

	mu      sync.Mutex
	pending map[string]bool
}

var _ domain.SyncWorker = (*SheetsWorker)(nil)

// NewSheetsWorker builds a worker with sane defaults. redisClient may be nil.
func NewSheetsWorker(writer domain.ScheduleWriter, render MonthRenderer, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *SheetsWorker {
	def := DefaultRetryPolicy()
	if retry.MaxRetries == 0 {
		retry.MaxRetries = def.MaxRetries
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = def.InitialDelay
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = def.MaxDelay
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = def.BackoffFactor
	}

	return &SheetsWorker{
		writer:        writer,
		render:        render,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan string, models.WorkerQueueSize),
		redisQueueKey: "leih:sheets:queue",
		deadLetterKey: "leih:sheets:deadletter",
		pollInterval:  2 * time.Second,
		logger:        logger,
		sleep:         sleepContext,
		pending:       make(map[string]bool),
	}
}

// EnqueueMonth schedules a sync of month.
func (w *SheetsWorker) EnqueueMonth(ctx context.Context, month time.Time) error {
	key := month.Format(monthLayout)

	w.mu.Lock()
	if w.pending[key] {
		w.mu.Unlock()
		return nil
	}
	w.pending[key] = true
	w.mu.Unlock()

	if w.redis != nil {
		err := w.redis.LPush(ctx, w.redisQueueKey, key).Err()
		if err == nil {
			return nil
		}
		w.logger.Warn().Err(err).Msg("Redis push failed, using memory queue")
	}

	select {
	case w.queue <- key:
		return nil
	default:
		w.done(key)
		return ErrQueueFull
	}
}

func (w *SheetsWorker) done(key string) {
	w.mu.Lock()
	delete(w.pending, key)
	w.mu.Unlock()
}

// Start launches main loop; stops when ctx is done.
func (w *SheetsWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("Sheets worker started")
	defer w.logger.Info().Msg("Sheets worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case key := <-w.queue:
			w.process(ctx, key)
			continue
		default:
		}

		if key, ok := w.tryRedis(ctx); ok {
			w.process(ctx, key)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case key := <-w.queue:
			w.process(ctx, key)
		case <-time.After(w.pollInterval):
		}
	}
}

func (w *SheetsWorker) tryRedis(ctx context.Context) (string, bool) {
	if w.redis == nil {
		return "", false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			w.logger.Error().Err(err).Msg("Redis BRPOP failed")
		}
		return "", false
	}
	if len(res) != 2 {
		return "", false
	}
	return res[1], true
}

// process syncs one month, retrying with backoff. Exhausted jobs go to the dead letter list.
func (w *SheetsWorker) process(ctx context.Context, key string) {
	// новые изменения этого месяца снова попадут в очередь
	w.done(key)

	month, err := time.Parse(monthLayout, key)
	if err != nil {
		w.logger.Error().Err(err).Str("month", key).Msg("Invalid month in sync queue")
		metrics.IncSync("failed")
		return
	}

	err = w.retryPolicy.Do(ctx, w.sleep, func(attempt int) error {
		err := w.syncMonth(ctx, month)
		if err != nil {
			w.logger.Warn().Err(err).Str("month", key).Int("attempt", attempt).Msg("Sheets sync attempt failed")
		}
		return err
	})
	if err != nil {
		metrics.IncSync("failed")
		w.logger.Error().Err(err).Str("month", key).Msg("Sheets sync failed")
		w.pushDeadLetter(ctx, key)
		return
	}
	metrics.IncSync("ok")
	w.logger.Debug().Str("month", key).Msg("Sheets sync completed")
}

func (w *SheetsWorker) syncMonth(ctx context.Context, month time.Time) error {
	header, rows, err := w.render(ctx, month)
	if err != nil {
		return fmt.Errorf("render month: %w", err)
	}
	return w.writer.WriteMonth(ctx, month, header, rows)
}

func (w *SheetsWorker) pushDeadLetter(ctx context.Context, key string) {
	if w.redis == nil {
		return
	}
	if err := w.redis.LPush(context.WithoutCancel(ctx), w.deadLetterKey, key).Err(); err != nil {
		w.logger.Error().Err(err).Str("month", key).Msg("Dead letter push failed")
	}
}
