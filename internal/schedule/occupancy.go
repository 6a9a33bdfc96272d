package schedule

import (
	"time"

	"leihlokal/internal/models"
)

// Occupancy counts bookings of item covering day.
func Occupancy(itemID string, bookings []*models.Booking, day time.Time) int {
	day = Day(day)
	n := 0
	for _, b := range bookings {
		if b == nil || b.ItemID != itemID {
			continue
		}
		if !Day(b.StartDate).After(day) && !Day(b.EndDate).Before(day) {
			n++
		}
	}
	return n
}

// AvailabilityFor reports booked and free copies of item for every day of window.
func AvailabilityFor(item models.Item, bookings []*models.Booking, window []time.Time) []models.Availability {
	out := make([]models.Availability, 0, len(window))
	for _, d := range window {
		booked := Occupancy(item.ID, bookings, d)
		free := item.CopyCount() - booked
		if free < 0 {
			free = 0
		}
		out = append(out, models.Availability{Date: d, ItemID: item.ID, Booked: booked, Available: free})
	}
	return out
}

// OverbookedDays returns the days of window where item has more bookings than copies.
func OverbookedDays(item models.Item, bookings []*models.Booking, window []time.Time) []time.Time {
	var days []time.Time
	for _, d := range window {
		if Occupancy(item.ID, bookings, d) > item.CopyCount() {
			days = append(days, d)
		}
	}
	return days
}
