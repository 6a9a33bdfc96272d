package table

import (
	"strconv"
	"time"

	"leihlokal/internal/models"
	"leihlokal/internal/schedule"
)

var statusLabels = map[string]string{
	models.StatusReserved: "Reserviert",
	models.StatusActive:   "Ausgeliehen",
	models.StatusReturned: "Zurück",
	models.StatusOverdue:  "Überfällig",
}

func StatusLabel(status string) string {
	if l, ok := statusLabels[status]; ok {
		return l
	}
	return status
}

func isoDate(d time.Time) string {
	return d.Format("2006-01-02")
}

// Bookings is the booking list layout. itemNames resolves item ids for display.
func Bookings(itemNames map[string]string) Table[*models.Booking] {
	return New(
		Column[*models.Booking]{
			ID: "item", Header: "Gegenstand",
			Cell: func(b *models.Booking) string {
				if n, ok := itemNames[b.ItemID]; ok {
					return n
				}
				return b.ItemID
			},
		},
		Column[*models.Booking]{
			ID: "customer", Header: "Kunde",
			Cell: func(b *models.Booking) string { return b.CustomerName },
		},
		Column[*models.Booking]{
			ID: "start", Header: "Von",
			Cell:    func(b *models.Booking) string { return schedule.RowLabel(b.StartDate) },
			SortKey: func(b *models.Booking) string { return isoDate(b.StartDate) },
		},
		Column[*models.Booking]{
			ID: "end", Header: "Bis",
			Cell:    func(b *models.Booking) string { return schedule.RowLabel(b.EndDate) },
			SortKey: func(b *models.Booking) string { return isoDate(b.EndDate) },
		},
		Column[*models.Booking]{
			ID: "days", Header: "Tage",
			Cell: func(b *models.Booking) string {
				return strconv.Itoa(schedule.DaysBetween(b.StartDate, b.EndDate) + 1)
			},
			SortKey: func(b *models.Booking) string {
				return strconv.FormatInt(int64(schedule.DaysBetween(b.StartDate, b.EndDate)+1)+1e6, 10)
			},
		},
		Column[*models.Booking]{
			ID: "status", Header: "Status",
			Cell: func(b *models.Booking) string { return StatusLabel(b.Status) },
		},
	)
}

// Availability is the per-day availability layout used by exports.
func Availability() Table[models.Availability] {
	return New(
		Column[models.Availability]{
			ID: "date", Header: "Datum",
			Cell:    func(a models.Availability) string { return schedule.RowLabel(a.Date) },
			SortKey: func(a models.Availability) string { return isoDate(a.Date) },
		},
		Column[models.Availability]{
			ID: "item", Header: "Gegenstand",
			Cell: func(a models.Availability) string { return a.ItemID },
		},
		Column[models.Availability]{
			ID: "booked", Header: "Gebucht",
			Cell: func(a models.Availability) string { return strconv.Itoa(a.Booked) },
		},
		Column[models.Availability]{
			ID: "available", Header: "Frei",
			Cell: func(a models.Availability) string { return strconv.Itoa(a.Available) },
		},
	)
}
