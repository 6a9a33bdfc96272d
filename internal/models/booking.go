package models

import (
	"errors"
	"time"
)

var ErrInvalidRange = errors.New("booking start date is after end date")

// Booking reserves one copy of an item for the inclusive range [StartDate, EndDate].
type Booking struct {
	ID           string    `json:"id"`
	ItemID       string    `json:"item_id"`
	CustomerName string    `json:"customer_name"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	Status       string    `json:"status"`
	RentalID     string    `json:"rental_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (b *Booking) Validate() error {
	if b.StartDate.After(b.EndDate) {
		return ErrInvalidRange
	}
	return nil
}

// DeriveStatus computes the display status of a booking on the given day.
func DeriveStatus(b *Booking, rentalReturned bool, today time.Time) string {
	switch {
	case b.RentalID != "" && rentalReturned:
		return StatusReturned
	case b.RentalID != "" && today.After(b.EndDate):
		return StatusOverdue
	case b.RentalID != "":
		return StatusActive
	default:
		return StatusReserved
	}
}
