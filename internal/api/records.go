package api

import (
	"net/http"
	"time"

	"leihlokal/internal/models"
	"leihlokal/internal/schedule"

	"github.com/labstack/echo/v4"
)

// bookingRecord is the collections wire form of a booking: dates are plain ISO dates.
type bookingRecord struct {
	ID           string    `json:"id"`
	ItemID       string    `json:"item_id"`
	CustomerName string    `json:"customer_name"`
	StartDate    string    `json:"start_date"`
	EndDate      string    `json:"end_date"`
	Status       string    `json:"status"`
	RentalID     string    `json:"rental_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toRecord(b *models.Booking) bookingRecord {
	return bookingRecord{
		ID: b.ID, ItemID: b.ItemID, CustomerName: b.CustomerName,
		StartDate: b.StartDate.Format("2006-01-02"), EndDate: b.EndDate.Format("2006-01-02"),
		Status: b.Status, RentalID: b.RentalID,
		CreatedAt: b.CreatedAt, UpdatedAt: b.UpdatedAt,
	}
}

func (r bookingRecord) toModel() (*models.Booking, error) {
	start, err := schedule.ParseDate(r.StartDate)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	end, err := schedule.ParseDate(r.EndDate)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return &models.Booking{
		ID: r.ID, ItemID: r.ItemID, CustomerName: r.CustomerName,
		StartDate: start, EndDate: end, Status: r.Status, RentalID: r.RentalID,
	}, nil
}

func unknownCollection(c echo.Context) error {
	return echo.NewHTTPError(http.StatusNotFound, "collection not found: "+c.Param("collection"))
}

func (s *HTTPServer) listRecords(c echo.Context) error {
	filter, err := filterFromQuery(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	switch c.Param("collection") {
	case models.CollectionItems:
		items, err := s.deps.Store.ListItems(ctx, filter)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, echo.Map{"items": items})
	case models.CollectionBookings:
		bookings, err := s.deps.Store.ListBookings(ctx, filter)
		if err != nil {
			return httpError(err)
		}
		out := make([]bookingRecord, 0, len(bookings))
		for _, b := range bookings {
			out = append(out, toRecord(b))
		}
		return c.JSON(http.StatusOK, echo.Map{"items": out})
	}
	return unknownCollection(c)
}

func (s *HTTPServer) getRecord(c echo.Context) error {
	ctx := c.Request().Context()
	switch c.Param("collection") {
	case models.CollectionItems:
		item, err := s.deps.Store.GetItem(ctx, c.Param("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, item)
	case models.CollectionBookings:
		b, err := s.deps.Store.GetBooking(ctx, c.Param("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, toRecord(b))
	}
	return unknownCollection(c)
}

func (s *HTTPServer) createRecord(c echo.Context) error {
	return s.writeRecord(c, http.StatusCreated)
}

func (s *HTTPServer) updateRecord(c echo.Context) error {
	return s.writeRecord(c, http.StatusOK)
}

// writeRecord creates (201) or replaces (200) a record from the request body.
func (s *HTTPServer) writeRecord(c echo.Context, status int) error {
	ctx := c.Request().Context()
	create := status == http.StatusCreated

	switch c.Param("collection") {
	case models.CollectionItems:
		var item models.Item
		if err := c.Bind(&item); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		var err error
		if create {
			err = s.deps.Store.CreateItem(ctx, &item)
		} else {
			item.ID = c.Param("id")
			err = s.deps.Store.UpdateItem(ctx, &item)
		}
		if err != nil {
			return httpError(err)
		}
		return c.JSON(status, item)

	case models.CollectionBookings:
		var rec bookingRecord
		if err := c.Bind(&rec); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		b, err := rec.toModel()
		if err != nil {
			return err
		}
		if create {
			err = s.deps.Store.CreateBooking(ctx, b)
		} else {
			b.ID = c.Param("id")
			err = s.deps.Store.UpdateBooking(ctx, b)
		}
		if err != nil {
			return httpError(err)
		}
		return c.JSON(status, toRecord(b))
	}
	return unknownCollection(c)
}

func (s *HTTPServer) deleteRecord(c echo.Context) error {
	ctx := c.Request().Context()
	var err error
	switch c.Param("collection") {
	case models.CollectionItems:
		err = s.deps.Store.DeleteItem(ctx, c.Param("id"))
	case models.CollectionBookings:
		err = s.deps.Store.DeleteBooking(ctx, c.Param("id"))
	default:
		return unknownCollection(c)
	}
	if err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
