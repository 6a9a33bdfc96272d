package schedule

import (
	"testing"

	"leihlokal/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestAvailabilityFor(t *testing.T) {
	item := models.Item{ID: "x", Copies: 2}
	bookings := []*models.Booking{
		booking("a", "x", "A", 1, 2),
		booking("b", "x", "B", 2, 3),
		booking("c", "y", "C", 1, 3),
	}
	window := MonthWindow(d(1))[:4]

	avail := AvailabilityFor(item, bookings, window)
	assert.Equal(t, 1, avail[0].Booked)
	assert.Equal(t, 2, avail[1].Booked)
	assert.Equal(t, 0, avail[1].Available)
	assert.Equal(t, 2, avail[3].Available)
}

func TestOverbookedDays(t *testing.T) {
	item := models.Item{ID: "x", Copies: 1}
	bookings := []*models.Booking{booking("a", "x", "A", 1, 3), booking("b", "x", "B", 3, 4)}

	days := OverbookedDays(item, bookings, MonthWindow(d(1)))
	if assert.Len(t, days, 1) {
		assert.True(t, d(3).Equal(days[0]))
	}
}
