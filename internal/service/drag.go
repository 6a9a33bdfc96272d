package service

import (
	"context"
	"errors"
	"time"

	"leihlokal/internal/domain"
	"leihlokal/internal/metrics"
	"leihlokal/internal/models"
	"leihlokal/internal/schedule"

	"github.com/rs/zerolog"
)

// dragStartsPerMinute bounds pointer-down events per session.
const dragStartsPerMinute = 120

var ErrRateLimited = errors.New("too many requests")

// DragService drives drag-to-create sessions. Each call restores the session
// state, applies one pointer event and persists the result.
type DragService struct {
	store  domain.RecordStore
	states domain.StateRepository
	logger *zerolog.Logger
}

func NewDragService(store domain.RecordStore, states domain.StateRepository, logger *zerolog.Logger) *DragService {
	return &DragService{store: store, states: states, logger: logger}
}

func (s *DragService) machine(ctx context.Context, month time.Time, mode schedule.DragMode) (*schedule.DragMachine, error) {
	items, err := s.store.ListItems(ctx, domain.Filter{ProtectedOnly: true})
	if err != nil {
		return nil, err
	}
	return schedule.NewDragMachine(schedule.Columns(items), schedule.MonthWindow(month), mode), nil
}

func (s *DragService) restore(ctx context.Context, sessionID string) (*schedule.DragMachine, error) {
	st, err := s.states.GetDragState(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if st == nil || !st.Dragging {
		return nil, nil
	}
	mode := schedule.DragSingle
	if st.Multi {
		mode = schedule.DragMulti
	}
	m, err := s.machine(ctx, st.Month, mode)
	if err != nil {
		return nil, err
	}
	if !m.Restore(*st) {
		// столбец исчез или сменил товар после pointer-down
		s.logger.Info().Str("session", sessionID).Str("item_id", st.ItemID).Msg("Drag origin no longer in grid, discarding")
		metrics.IncDrag("discarded")
		return nil, s.states.ClearDragState(ctx, sessionID)
	}
	return m, nil
}

func (s *DragService) save(ctx context.Context, m *schedule.DragMachine) (models.DragState, error) {
	st := m.State()
	if !st.Dragging {
		return st, s.states.ClearDragState(ctx, st.SessionID)
	}
	st.UpdatedAt = time.Now()
	return st, s.states.SetDragState(ctx, &st)
}

// PointerDown starts a drag in month. A down on a booking cell leaves the session idle.
func (s *DragService) PointerDown(ctx context.Context, sessionID string, month time.Time, mode schedule.DragMode, cell schedule.Cell) (models.DragState, error) {
	ok, err := s.states.CheckRateLimit(ctx, "drag:"+sessionID, dragStartsPerMinute, time.Minute)
	if err != nil {
		s.logger.Warn().Err(err).Str("session", sessionID).Msg("Rate limit check failed")
	} else if !ok {
		return models.DragState{}, ErrRateLimited
	}

	m, err := s.machine(ctx, month, mode)
	if err != nil {
		return models.DragState{}, err
	}
	st := m.State()
	st.SessionID = sessionID
	st.Month = month
	m.Restore(st)

	m.PointerDown(cell)
	return s.save(ctx, m)
}

// PointerMove extends a running drag. For an idle or unknown session it is a
// no-op and returns an idle state.
func (s *DragService) PointerMove(ctx context.Context, sessionID string, cell schedule.Cell) (models.DragState, error) {
	m, err := s.restore(ctx, sessionID)
	if err != nil || m == nil {
		return models.DragState{SessionID: sessionID}, err
	}
	m.PointerMove(cell)
	return s.save(ctx, m)
}

// PointerUp finishes the drag. The request is nil when the drag was discarded.
func (s *DragService) PointerUp(ctx context.Context, sessionID string, pos schedule.Point) (*schedule.CreateRequest, error) {
	m, err := s.restore(ctx, sessionID)
	if err != nil || m == nil {
		return nil, err
	}
	req, ok := m.PointerUp(pos)
	if _, err := s.save(ctx, m); err != nil {
		return nil, err
	}
	if !ok {
		metrics.IncDrag("discarded")
		return nil, nil
	}
	metrics.IncDrag("created")
	return req, nil
}

func (s *DragService) PointerLeave(ctx context.Context, sessionID string) error {
	return s.states.ClearDragState(ctx, sessionID)
}
