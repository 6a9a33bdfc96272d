package schedule

import (
	"testing"
	"time"

	"leihlokal/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumns(t *testing.T) {
	items := []models.Item{
		{ID: "y", Name: "Saw", SortKey: 2, Copies: 1},
		{ID: "x", Name: "Drill", SortKey: 1, Copies: 2},
		{ID: "z", Name: "Gone", SortKey: 0, Copies: 1, Deleted: true},
	}

	cols := Columns(items)

	keys := make([]string, 0, len(cols))
	for _, c := range cols {
		keys = append(keys, c.Key)
	}
	assert.Equal(t, []string{"x:0", "x:1", "x:new", "y:0"}, keys)
	assert.True(t, cols[2].Synthetic)
	assert.Equal(t, NewBookingLane, cols[2].Lane)
}

func TestColumns_SingleCopyWithoutBookings(t *testing.T) {
	cols := Columns([]models.Item{{ID: "y", Name: "Saw", Copies: 1}})
	require.Len(t, cols, 1)
	assert.Equal(t, "y:0", cols[0].Key)
	assert.False(t, cols[0].Synthetic)
}

func TestProject_ClipsToWindow(t *testing.T) {
	window := MonthWindow(d(1))
	items := []models.Item{{ID: "x", Copies: 1}}
	bookings := []*models.Booking{
		{ID: "early", ItemID: "x", CustomerName: "A", StartDate: time.Date(2025, 2, 25, 0, 0, 0, 0, time.UTC), EndDate: d(2)},
		{ID: "late", ItemID: "x", CustomerName: "B", StartDate: d(30), EndDate: time.Date(2025, 4, 3, 0, 0, 0, 0, time.UTC)},
		{ID: "outside", ItemID: "x", CustomerName: "C", StartDate: time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2025, 4, 12, 0, 0, 0, 0, time.UTC)},
	}

	layout := Build(window, items, bookings, Options{Closed: DefaultClosedDays()})

	require.Len(t, layout.Spans, 2)
	early := layout.Spans[0]
	assert.Equal(t, []string{"early"}, early.BookingIDs)
	assert.Equal(t, 0, early.RowStart)
	assert.Equal(t, 2, early.RowEnd)
	assert.True(t, early.ClippedStart)

	late := layout.Spans[1]
	assert.Equal(t, 29, late.RowStart)
	assert.Equal(t, 31, late.RowEnd)
	assert.True(t, late.ClippedEnd)
}

func TestProject_MergedSpan(t *testing.T) {
	window := MonthWindow(d(1))
	items := []models.Item{{ID: "x", Name: "Bench", Copies: 3}}
	var bookings []*models.Booking
	for _, id := range []string{"m1", "m2", "m3"} {
		bookings = append(bookings, booking(id, "x", "Verein", 5, 7))
	}

	layout := Build(window, items, bookings, Options{})

	require.Len(t, layout.Spans, 1)
	span := layout.Spans[0]
	assert.Equal(t, 3, span.CopyCount)
	assert.Equal(t, 0, span.ColStart)
	assert.Equal(t, 3, span.ColEnd)
	assert.Equal(t, 4, span.RowStart)
	assert.Equal(t, 7, span.RowEnd)
	assert.ElementsMatch(t, []string{"m1", "m2", "m3"}, span.BookingIDs)
}

func TestBuild_ReportsOverflow(t *testing.T) {
	window := MonthWindow(d(1))
	items := []models.Item{{ID: "x", Copies: 1}}
	bookings := []*models.Booking{booking("a", "x", "A", 1, 3), booking("b", "x", "B", 2, 3)}

	layout := Build(window, items, bookings, Options{})
	assert.Len(t, layout.Spans, 1)
	require.Len(t, layout.Overflow, 1)
	assert.Equal(t, "b", layout.Overflow[0].ID)
}

func TestRows(t *testing.T) {
	window := MonthWindow(d(1))
	rows := Rows(window, DefaultClosedDays())
	require.Len(t, rows, 31)

	// 2025-03-01 is a Saturday, 2025-03-02 a Sunday
	assert.Equal(t, "Sa 01.03.", rows[0].Label)
	assert.False(t, rows[0].Closed)
	assert.Equal(t, "So 02.03.", rows[1].Label)
	assert.True(t, rows[1].Closed)
	assert.Equal(t, "Mo 03.03.", rows[2].Label)
	assert.False(t, rows[2].Closed)
}
