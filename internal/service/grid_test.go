package service

import (
	"context"
	"strings"
	"testing"

	"leihlokal/internal/domain"
	"leihlokal/internal/models"
	"leihlokal/internal/schedule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func gridOptions() schedule.Options {
	return schedule.Options{Policy: schedule.OverlapClosed, Closed: schedule.DefaultClosedDays()}
}

func TestGridService_Month(t *testing.T) {
	st := new(mockStore)
	items := []models.Item{
		{ID: "drill", Name: "Bohrmaschine", Copies: 2, Protected: true},
		{ID: "saw", Name: "Stichsäge", Copies: 1, Protected: true},
	}
	bookings := []*models.Booking{
		{ID: "a", ItemID: "drill", CustomerName: "Anna", StartDate: day(3, 1), EndDate: day(3, 3)},
		{ID: "b", ItemID: "drill", CustomerName: "Ben", StartDate: day(3, 2), EndDate: day(3, 5)},
		{ID: "c", ItemID: "drill", CustomerName: "Cem", StartDate: day(3, 4), EndDate: day(3, 6)},
	}
	st.On("ListItems", mock.Anything, mock.Anything).Return(items, nil)
	st.On("ListBookings", mock.Anything, mock.Anything).Return(bookings, nil)

	svc := NewGridService(st, NewMonthLoader(st, testLogger()), gridOptions(), nil, testLogger())
	grid := svc.Month(context.Background(), day(3, 10))

	assert.Empty(t, grid.Error)
	assert.False(t, grid.Unsupported)
	require.Len(t, grid.Layout.Rows, 31)
	// drill:0, drill:1, drill:new, saw:0
	require.Len(t, grid.Layout.Columns, 4)
	assert.True(t, grid.Layout.Columns[2].Synthetic)
	assert.Len(t, grid.Layout.Spans, 3)
	assert.Empty(t, grid.Layout.Overflow)
}

func TestGridService_UnsupportedHasNoLayout(t *testing.T) {
	st := new(mockStore)
	st.On("ListItems", mock.Anything, mock.Anything).Return(testItems, nil)
	st.On("ListBookings", mock.Anything, mock.Anything).Return(nil, domain.ErrCollectionNotFound)

	svc := NewGridService(st, NewMonthLoader(st, testLogger()), gridOptions(), nil, testLogger())
	grid := svc.Month(context.Background(), day(3, 1))

	assert.True(t, grid.Unsupported)
	assert.False(t, grid.Loading)
	assert.Empty(t, grid.Layout.Spans)
}

func TestGridService_OverflowAlertSentOnce(t *testing.T) {
	st := new(mockStore)
	items := []models.Item{{ID: "saw", Name: "Stichsäge", Copies: 1, Protected: true}}
	bookings := []*models.Booking{
		{ID: "a", ItemID: "saw", CustomerName: "Anna", StartDate: day(3, 3), EndDate: day(3, 5)},
		{ID: "b", ItemID: "saw", CustomerName: "Ben", StartDate: day(3, 4), EndDate: day(3, 6)},
	}
	st.On("ListItems", mock.Anything, mock.Anything).Return(items, nil)
	st.On("ListBookings", mock.Anything, mock.Anything).Return(bookings, nil)

	n := new(mockNotifier)
	n.On("Notify", mock.Anything, mock.MatchedBy(func(text string) bool {
		return strings.Contains(text, "Stichsäge: 1")
	})).Return(nil).Once()

	svc := NewGridService(st, NewMonthLoader(st, testLogger()), gridOptions(), n, testLogger())
	grid := svc.Month(context.Background(), day(3, 1))
	require.Len(t, grid.Layout.Overflow, 1)
	assert.Equal(t, "b", grid.Layout.Overflow[0].ID)

	svc.Month(context.Background(), day(3, 1))
	n.AssertExpectations(t)
}

func TestGridService_Availability(t *testing.T) {
	st := new(mockStore)
	st.On("GetItem", mock.Anything, "drill").Return(&testItems[0], nil)
	st.On("ListBookings", mock.Anything, domain.Filter{ItemID: "drill", From: day(3, 1), To: day(3, 31)}).
		Return([]*models.Booking{{ID: "a", ItemID: "drill", StartDate: day(3, 2), EndDate: day(3, 3)}}, nil)

	svc := NewGridService(st, NewMonthLoader(st, testLogger()), gridOptions(), nil, testLogger())
	av, err := svc.Availability(context.Background(), "drill", day(3, 1))
	require.NoError(t, err)
	require.Len(t, av, 31)
	assert.Equal(t, 2, av[0].Available)
	assert.Equal(t, 1, av[1].Booked)
	assert.Equal(t, 1, av[1].Available)
}
