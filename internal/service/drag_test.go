package service

import (
	"context"
	"testing"
	"time"

	"leihlokal/internal/models"
	"leihlokal/internal/repository"
	"leihlokal/internal/schedule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newDragService(t *testing.T) (*DragService, *repository.MemoryStateRepository) {
	t.Helper()
	st := new(mockStore)
	st.On("ListItems", mock.Anything, mock.Anything).Return([]models.Item{
		{ID: "drill", Name: "Bohrmaschine", Copies: 2, Protected: true},
		{ID: "saw", Name: "Stichsäge", Copies: 1, Protected: true},
	}, nil)
	states := repository.NewMemoryStateRepository(time.Minute)
	return NewDragService(st, states, testLogger()), states
}

func TestDragService_CreatesRequest(t *testing.T) {
	s, states := newDragService(t)
	ctx := context.Background()

	st, err := s.PointerDown(ctx, "sess", day(3, 1), schedule.DragMulti, schedule.Cell{Col: 0, Row: 2})
	require.NoError(t, err)
	assert.True(t, st.Dragging)
	assert.Equal(t, "drill", st.ItemID)

	// saw:0 is another item, the column stays on drill
	st, err = s.PointerMove(ctx, "sess", schedule.Cell{Col: 3, Row: 4})
	require.NoError(t, err)
	assert.Equal(t, 0, st.CurCol)

	_, err = s.PointerMove(ctx, "sess", schedule.Cell{Col: 1, Row: 4})
	require.NoError(t, err)

	req, err := s.PointerUp(ctx, "sess", schedule.Point{X: 10, Y: 20})
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, []string{"drill:0", "drill:1"}, req.ColumnKeys)
	assert.Equal(t, day(3, 3), req.From)
	assert.Equal(t, day(3, 5), req.To)
	assert.Equal(t, 3, req.Days)

	saved, err := states.GetDragState(ctx, "sess")
	require.NoError(t, err)
	assert.Nil(t, saved)
}

func TestDragService_SingleDayDiscarded(t *testing.T) {
	s, _ := newDragService(t)
	ctx := context.Background()

	_, err := s.PointerDown(ctx, "sess", day(3, 1), schedule.DragSingle, schedule.Cell{Col: 3, Row: 5})
	require.NoError(t, err)
	req, err := s.PointerUp(ctx, "sess", schedule.Point{})
	require.NoError(t, err)
	assert.Nil(t, req)
}

func TestDragService_DownOnBookingStaysIdle(t *testing.T) {
	s, states := newDragService(t)
	ctx := context.Background()

	st, err := s.PointerDown(ctx, "sess", day(3, 1), schedule.DragSingle, schedule.Cell{Col: 0, Row: 1, OnBooking: true})
	require.NoError(t, err)
	assert.False(t, st.Dragging)

	saved, _ := states.GetDragState(ctx, "sess")
	assert.Nil(t, saved)

	req, err := s.PointerUp(ctx, "sess", schedule.Point{})
	require.NoError(t, err)
	assert.Nil(t, req)
}

func TestDragService_LeaveCancels(t *testing.T) {
	s, _ := newDragService(t)
	ctx := context.Background()

	_, err := s.PointerDown(ctx, "sess", day(3, 1), schedule.DragSingle, schedule.Cell{Col: 0, Row: 1})
	require.NoError(t, err)
	_, err = s.PointerMove(ctx, "sess", schedule.Cell{Col: 0, Row: 6})
	require.NoError(t, err)
	require.NoError(t, s.PointerLeave(ctx, "sess"))

	req, err := s.PointerUp(ctx, "sess", schedule.Point{})
	require.NoError(t, err)
	assert.Nil(t, req)
}

func TestDragService_RateLimited(t *testing.T) {
	s, _ := newDragService(t)
	ctx := context.Background()

	for i := 0; i < dragStartsPerMinute; i++ {
		_, err := s.PointerDown(ctx, "busy", day(3, 1), schedule.DragSingle, schedule.Cell{Col: 0, Row: 1})
		require.NoError(t, err)
	}
	_, err := s.PointerDown(ctx, "busy", day(3, 1), schedule.DragSingle, schedule.Cell{Col: 0, Row: 1})
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestDragService_OriginColumnRemovedBeforeUp(t *testing.T) {
	st := new(mockStore)
	st.On("ListItems", mock.Anything, mock.Anything).Return([]models.Item{
		{ID: "drill", Name: "Bohrmaschine", Copies: 3, Protected: true},
	}, nil).Once()
	// zwei Exemplare ausgemustert
	st.On("ListItems", mock.Anything, mock.Anything).Return([]models.Item{
		{ID: "drill", Name: "Bohrmaschine", Copies: 1, Protected: true},
	}, nil)
	states := repository.NewMemoryStateRepository(time.Minute)
	s := NewDragService(st, states, testLogger())
	ctx := context.Background()

	down, err := s.PointerDown(ctx, "sess", day(3, 1), schedule.DragMulti, schedule.Cell{Col: 2, Row: 1})
	require.NoError(t, err)
	require.True(t, down.Dragging)
	assert.Equal(t, "drill:2", down.StartKey)

	var req *schedule.CreateRequest
	require.NotPanics(t, func() {
		req, err = s.PointerUp(ctx, "sess", schedule.Point{})
	})
	require.NoError(t, err)
	assert.Nil(t, req)

	saved, err := states.GetDragState(ctx, "sess")
	require.NoError(t, err)
	assert.Nil(t, saved)
}

func TestDragService_UnknownSessionIsNoop(t *testing.T) {
	s, _ := newDragService(t)
	ctx := context.Background()

	st, err := s.PointerMove(ctx, "ghost", schedule.Cell{Col: 0, Row: 2})
	require.NoError(t, err)
	assert.False(t, st.Dragging)
	assert.Equal(t, "ghost", st.SessionID)

	req, err := s.PointerUp(ctx, "ghost", schedule.Point{})
	require.NoError(t, err)
	assert.Nil(t, req)
}
