package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"leihlokal/internal/domain"
	"leihlokal/internal/export"
	"leihlokal/internal/models"
	"leihlokal/internal/schedule"
	"leihlokal/internal/service"
	"leihlokal/internal/table"

	"github.com/labstack/echo/v4"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func monthParam(raw string) (time.Time, error) {
	if raw == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), nil
	}
	m, err := schedule.ParseMonth(raw)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return m, nil
}

func filterFromQuery(c echo.Context) (domain.Filter, error) {
	f := domain.Filter{ItemID: c.QueryParam("item_id")}
	f.ProtectedOnly, _ = strconv.ParseBool(c.QueryParam("protected"))
	f.IncludeDeleted, _ = strconv.ParseBool(c.QueryParam("include_deleted"))

	var err error
	if raw := c.QueryParam("from"); raw != "" {
		if f.From, err = schedule.ParseDate(raw); err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	if raw := c.QueryParam("to"); raw != "" {
		if f.To, err = schedule.ParseDate(raw); err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return f, nil
}

func (s *HTTPServer) getGrid(c echo.Context) error {
	month, err := monthParam(c.QueryParam("month"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.deps.Grid.Month(c.Request().Context(), month))
}

func (s *HTTPServer) exportMonth(c echo.Context) error {
	month, err := monthParam(c.Param("month"))
	if err != nil {
		return err
	}
	grid := s.deps.Grid.Month(c.Request().Context(), month)
	if grid.Error != "" {
		return echo.NewHTTPError(http.StatusBadGateway, grid.Error)
	}

	f, err := export.MonthWorkbook(grid.Month, grid.Layout, s.deps.Items.Names())
	if err != nil {
		return httpError(err)
	}
	defer f.Close()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, xlsxContentType)
	res.Header().Set(echo.HeaderContentDisposition,
		`attachment; filename="belegung_`+grid.Month.Format("2006-01")+`.xlsx"`)
	res.WriteHeader(http.StatusOK)
	return f.Write(res)
}

// Items

func (s *HTTPServer) listItems(c echo.Context) error {
	items, err := s.deps.Items.GetActiveItems(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

func (s *HTTPServer) getItem(c echo.Context) error {
	item, err := s.deps.Items.GetItemByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, item)
}

func (s *HTTPServer) itemAvailability(c echo.Context) error {
	month, err := monthParam(c.QueryParam("month"))
	if err != nil {
		return err
	}
	avail, err := s.deps.Grid.Availability(c.Request().Context(), c.Param("id"), month)
	if err != nil {
		return httpError(err)
	}
	if c.QueryParam("format") == "table" {
		t := table.Availability()
		return c.JSON(http.StatusOK, echo.Map{"headers": t.Headers(), "rows": t.Rows(avail)})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": avail})
}

func (s *HTTPServer) createItem(c echo.Context) error {
	var req service.ItemRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	item, err := s.deps.Items.CreateItem(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, item)
}

func (s *HTTPServer) updateItem(c echo.Context) error {
	var req service.ItemRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	item, err := s.deps.Items.UpdateItem(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, item)
}

func (s *HTTPServer) deleteItem(c echo.Context) error {
	if err := s.deps.Items.DeleteItem(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Bookings

func (s *HTTPServer) listBookings(c echo.Context) error {
	filter, err := filterFromQuery(c)
	if err != nil {
		return err
	}
	bookings, err := s.deps.Bookings.List(c.Request().Context(), filter)
	if err != nil {
		return httpError(err)
	}
	if c.QueryParam("format") != "table" {
		return c.JSON(http.StatusOK, echo.Map{"items": bookings})
	}

	t := table.Bookings(s.deps.Items.Names())
	if raw := c.QueryParam("columns"); raw != "" {
		if t, err = t.Select(strings.Split(raw, ",")...); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	if col := c.QueryParam("sort"); col != "" {
		desc, _ := strconv.ParseBool(c.QueryParam("desc"))
		if err := t.Sort(bookings, col, desc); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"headers": t.Headers(), "rows": t.Rows(bookings)})
}

func (s *HTTPServer) getBooking(c echo.Context) error {
	b, err := s.deps.Bookings.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (s *HTTPServer) createBooking(c echo.Context) error {
	var req service.CreateBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	bookings, err := s.deps.Bookings.Create(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"items": bookings})
}

func (s *HTTPServer) updateBooking(c echo.Context) error {
	var req service.UpdateBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	b, err := s.deps.Bookings.Update(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (s *HTTPServer) deleteBooking(c echo.Context) error {
	if err := s.deps.Bookings.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Drag-to-create

type dragDownRequest struct {
	Month string        `json:"month" validate:"required"`
	Mode  string        `json:"mode" validate:"omitempty,oneof=single multi"`
	Cell  schedule.Cell `json:"cell"`
}

type dragMoveRequest struct {
	Cell schedule.Cell `json:"cell"`
}

type dragUpRequest struct {
	Position schedule.Point `json:"position"`
}

type dragConfirmRequest struct {
	Request      schedule.CreateRequest `json:"request"`
	CustomerName string                 `json:"customer_name" validate:"required,max=200"`
	RentalID     string                 `json:"rental_id" validate:"omitempty,max=64"`
}

func (s *HTTPServer) dragDown(c echo.Context) error {
	var req dragDownRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	month, err := monthParam(req.Month)
	if err != nil {
		return err
	}
	mode := schedule.DragSingle
	if req.Mode == "multi" {
		mode = schedule.DragMulti
	}
	st, err := s.deps.Drag.PointerDown(c.Request().Context(), c.Param("session"), month, mode, req.Cell)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (s *HTTPServer) dragMove(c echo.Context) error {
	var req dragMoveRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	st, err := s.deps.Drag.PointerMove(c.Request().Context(), c.Param("session"), req.Cell)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (s *HTTPServer) dragUp(c echo.Context) error {
	var req dragUpRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	created, err := s.deps.Drag.PointerUp(c.Request().Context(), c.Param("session"), req.Position)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"request": created})
}

func (s *HTTPServer) dragLeave(c echo.Context) error {
	if err := s.deps.Drag.PointerLeave(c.Request().Context(), c.Param("session")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *HTTPServer) dragConfirm(c echo.Context) error {
	var req dragConfirmRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	bookings, err := s.deps.Bookings.CreateFromDrag(c.Request().Context(), req.Request, req.CustomerName, req.RentalID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"items": bookings})
}

// Context

type employeeRequest struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required,max=100"`
}

func (s *HTTPServer) getContext(c echo.Context) error {
	resp := echo.Map{"employee": nil, "settings": nil}
	if emp, ok := s.deps.Context.Employee(); ok {
		resp["employee"] = emp
	}
	if set, ok := s.deps.Context.Settings(); ok {
		resp["settings"] = set
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) putEmployee(c echo.Context) error {
	var req employeeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	emp := &models.Employee{ID: req.ID, Name: strings.TrimSpace(req.Name)}
	s.deps.Context.SetEmployee(emp)
	s.saveContext(c)
	return c.JSON(http.StatusOK, emp)
}

func (s *HTTPServer) putSettings(c echo.Context) error {
	var req models.WhiteLabel
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	s.deps.Context.SetSettings(req)
	s.saveContext(c)
	return c.JSON(http.StatusOK, req)
}

// saveContext persists the context; the in-memory copy stays valid on failure.
func (s *HTTPServer) saveContext(c echo.Context) {
	if err := s.deps.Context.Save(c.Request().Context()); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist app context")
	}
}
