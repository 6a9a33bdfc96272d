package repository

import (
	"context"
	"sync"
	"time"

	"leihlokal/internal/domain"
	"leihlokal/internal/models"

	"github.com/rs/zerolog"
)

// recoveryInterval is how long the failover waits before retrying the primary.
const recoveryInterval = time.Minute

type FailoverStateRepository struct {
	primary  domain.StateRepository
	fallback domain.StateRepository
	logger   *zerolog.Logger

	mu        sync.Mutex
	isDown    bool
	lastCheck time.Time
	now       func() time.Time
}

var _ domain.StateRepository = (*FailoverStateRepository)(nil)

func NewFailoverStateRepository(primary, fallback domain.StateRepository, logger *zerolog.Logger) *FailoverStateRepository {
	return &FailoverStateRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

// usePrimary reports whether the primary should be tried for this call.
func (r *FailoverStateRepository) usePrimary() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.isDown {
		return true
	}
	// пробуем восстановиться раз в минуту
	if r.now().Sub(r.lastCheck) > recoveryInterval {
		r.lastCheck = r.now()
		return true
	}
	return false
}

func (r *FailoverStateRepository) report(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		if r.isDown {
			r.logger.Info().Msg("Primary state repository recovered")
		}
		r.isDown = false
		return
	}
	if !r.isDown {
		r.logger.Error().Err(err).Msg("Primary state repository failed, falling back to memory")
	}
	r.isDown = true
	r.lastCheck = r.now()
}

func (r *FailoverStateRepository) Degraded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isDown
}

func (r *FailoverStateRepository) GetDragState(ctx context.Context, sessionID string) (*models.DragState, error) {
	if r.usePrimary() {
		state, err := r.primary.GetDragState(ctx, sessionID)
		r.report(err)
		if err == nil {
			return state, nil
		}
	}
	return r.fallback.GetDragState(ctx, sessionID)
}

func (r *FailoverStateRepository) SetDragState(ctx context.Context, state *models.DragState) error {
	if r.usePrimary() {
		err := r.primary.SetDragState(ctx, state)
		r.report(err)
		if err == nil {
			return nil
		}
	}
	return r.fallback.SetDragState(ctx, state)
}

func (r *FailoverStateRepository) ClearDragState(ctx context.Context, sessionID string) error {
	if r.usePrimary() {
		err := r.primary.ClearDragState(ctx, sessionID)
		r.report(err)
		if err == nil {
			return nil
		}
	}
	return r.fallback.ClearDragState(ctx, sessionID)
}

func (r *FailoverStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		r.report(err)
		if err == nil {
			return allowed, nil
		}
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
