package schedule

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"leihlokal/internal/models"
)

// NewBookingLane marks the synthetic "create new booking" column of a multi-copy item.
const NewBookingLane = -1

// Column is one (item, lane) pair of the grid.
type Column struct {
	Key       string `json:"key"`
	ItemID    string `json:"item_id"`
	ItemName  string `json:"item_name"`
	Lane      int    `json:"lane"`
	Synthetic bool   `json:"synthetic"`
}

func ColumnKey(itemID string, lane int) string {
	if lane == NewBookingLane {
		return itemID + ":new"
	}
	return fmt.Sprintf("%s:%d", itemID, lane)
}

var errBadColumnKey = errors.New("malformed column key")

// ParseColumnKey splits a key built by ColumnKey back into item ID and lane.
func ParseColumnKey(key string) (string, int, error) {
	i := strings.LastIndex(key, ":")
	if i <= 0 || i == len(key)-1 {
		return "", 0, fmt.Errorf("%w: %q", errBadColumnKey, key)
	}
	itemID, lane := key[:i], key[i+1:]
	if lane == "new" {
		return itemID, NewBookingLane, nil
	}
	n, err := strconv.Atoi(lane)
	if err != nil || n < 0 {
		return "", 0, fmt.Errorf("%w: %q", errBadColumnKey, key)
	}
	return itemID, n, nil
}

// SortItems orders items by sort key, then name, then ID.
func SortItems(items []models.Item) []models.Item {
	out := make([]models.Item, 0, len(items))
	for _, it := range items {
		if !it.Deleted {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortKey != out[j].SortKey {
			return out[i].SortKey < out[j].SortKey
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Columns lays out one column per copy of each item. Items with more than one
// copy get a trailing synthetic column for creating new bookings.
func Columns(items []models.Item) []Column {
	var cols []Column
	for _, it := range SortItems(items) {
		n := it.CopyCount()
		for lane := 0; lane < n; lane++ {
			cols = append(cols, Column{
				Key:      ColumnKey(it.ID, lane),
				ItemID:   it.ID,
				ItemName: it.Name,
				Lane:     lane,
			})
		}
		if n > 1 {
			cols = append(cols, Column{
				Key:       ColumnKey(it.ID, NewBookingLane),
				ItemID:    it.ID,
				ItemName:  it.Name,
				Lane:      NewBookingLane,
				Synthetic: true,
			})
		}
	}
	return cols
}

// Row is one date row of the grid.
type Row struct {
	Date   time.Time `json:"date"`
	Label  string    `json:"label"`
	Closed bool      `json:"closed"`
}

func Rows(window []time.Time, closed ClosedDays) []Row {
	rows := make([]Row, len(window))
	for i, d := range window {
		rows[i] = Row{Date: d, Label: RowLabel(d), Closed: closed.IsClosed(d)}
	}
	return rows
}

// Span is the rendering rectangle of a block. Rows and columns are 0-based and
// half-open: the block covers rows [RowStart, RowEnd) and columns [ColStart, ColEnd).
type Span struct {
	BookingIDs   []string  `json:"booking_ids"`
	ItemID       string    `json:"item_id"`
	CustomerName string    `json:"customer_name"`
	Status       string    `json:"status"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	RowStart     int       `json:"row_start"`
	RowEnd       int       `json:"row_end"`
	ColStart     int       `json:"col_start"`
	ColEnd       int       `json:"col_end"`
	CopyCount    int       `json:"copy_count"`
	ClippedStart bool      `json:"clipped_start"`
	ClippedEnd   bool      `json:"clipped_end"`
}

// Project maps blocks onto the grid. Blocks partially outside the window are
// clipped to it; blocks entirely outside are skipped.
func Project(window []time.Time, columns []Column, a Assignment) []Span {
	if len(window) == 0 {
		return nil
	}
	first, last := Day(window[0]), Day(window[len(window)-1])

	colIndex := make(map[string]int, len(columns))
	for i, c := range columns {
		colIndex[c.Key] = i
	}

	spans := make([]Span, 0, len(a.Blocks))
	for _, blk := range a.Blocks {
		if blk.EndDate.Before(first) || blk.StartDate.After(last) {
			continue
		}
		col, ok := colIndex[ColumnKey(blk.ItemID, blk.Lane)]
		if !ok {
			continue
		}

		span := Span{
			ItemID:       blk.ItemID,
			CustomerName: blk.CustomerName,
			StartDate:    blk.StartDate,
			EndDate:      blk.EndDate,
			ColStart:     col,
			ColEnd:       col + blk.CopyCount(),
			CopyCount:    blk.CopyCount(),
		}
		for _, b := range blk.Bookings {
			span.BookingIDs = append(span.BookingIDs, b.ID)
		}
		span.Status = blk.Bookings[0].Status

		start, end := blk.StartDate, blk.EndDate
		if start.Before(first) {
			start = first
			span.ClippedStart = true
		}
		if end.After(last) {
			end = last
			span.ClippedEnd = true
		}
		span.RowStart = DaysBetween(first, start)
		span.RowEnd = DaysBetween(first, end) + 1

		spans = append(spans, span)
	}

	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].ColStart != spans[j].ColStart {
			return spans[i].ColStart < spans[j].ColStart
		}
		return spans[i].RowStart < spans[j].RowStart
	})
	return spans
}

// Options tune a layout pass.
type Options struct {
	Policy OverlapPolicy
	Closed ClosedDays
}

// Layout is a complete rendering model for one visible window.
type Layout struct {
	Rows     []Row             `json:"rows"`
	Columns  []Column          `json:"columns"`
	Spans    []Span            `json:"spans"`
	Overflow []*models.Booking `json:"overflow"`
	Orphans  []*models.Booking `json:"orphans,omitempty"`
}

// Build runs lane assignment and projection for a window.
func Build(window []time.Time, items []models.Item, bookings []*models.Booking, opts Options) Layout {
	active := SortItems(items)
	assignment := AssignLanes(active, bookings, opts.Policy)
	columns := Columns(active)

	return Layout{
		Rows:     Rows(window, opts.Closed),
		Columns:  columns,
		Spans:    Project(window, columns, assignment),
		Overflow: assignment.Overflow,
		Orphans:  assignment.Orphans,
	}
}
