package schedule

import (
	"time"

	"leihlokal/internal/models"
)

type DragMode int

const (
	// DragSingle keeps a drag inside its origin column.
	DragSingle DragMode = iota
	// DragMulti allows a rectangle across columns of the origin item.
	DragMulti
)

// Cell addresses a grid cell under the pointer.
type Cell struct {
	Col       int  `json:"col"`
	Row       int  `json:"row"`
	OnBooking bool `json:"on_booking"`
}

// Point is a screen position, used to anchor the detail popover.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CreateRequest asks the surrounding UI to create bookings for the dragged region.
type CreateRequest struct {
	ItemID     string    `json:"item_id"`
	ColumnKeys []string  `json:"column_keys"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	Days       int       `json:"days"`
	Position   Point     `json:"position"`
}

// DragMachine is the Idle/Dragging state machine behind drag-to-create.
// It is not safe for concurrent use.
type DragMachine struct {
	columns []Column
	window  []time.Time
	state   models.DragState
}

func NewDragMachine(columns []Column, window []time.Time, mode DragMode) *DragMachine {
	return &DragMachine{
		columns: columns,
		window:  window,
		state:   models.DragState{Multi: mode == DragMulti},
	}
}

// Restore loads a previously persisted state and re-resolves column positions
// from the saved keys. When a dragged column is gone or belongs to another item,
// the machine falls back to Idle and Restore reports false.
func (m *DragMachine) Restore(state models.DragState) bool {
	m.state = state
	if !state.Dragging {
		return true
	}

	start, okStart := m.columnIndex(state.StartKey)
	cur, okCur := m.columnIndex(state.CurKey)
	if !okStart || !okCur || m.columns[start].ItemID != state.ItemID || m.columns[cur].ItemID != state.ItemID ||
		!m.rowInWindow(state.StartRow) || !m.rowInWindow(state.CurRow) {
		m.reset()
		return false
	}
	m.state.StartCol, m.state.CurCol = start, cur
	return true
}

func (m *DragMachine) columnIndex(key string) (int, bool) {
	if key == "" {
		return 0, false
	}
	for i, c := range m.columns {
		if c.Key == key {
			return i, true
		}
	}
	return 0, false
}

func (m *DragMachine) rowInWindow(row int) bool {
	return row >= 0 && row < len(m.window)
}

func (m *DragMachine) State() models.DragState {
	return m.state
}

func (m *DragMachine) Dragging() bool {
	return m.state.Dragging
}

func (m *DragMachine) inBounds(c Cell) bool {
	return c.Col >= 0 && c.Col < len(m.columns) && m.rowInWindow(c.Row)
}

// PointerDown starts a drag on an empty cell. It reports whether a drag started.
func (m *DragMachine) PointerDown(c Cell) bool {
	if c.OnBooking || !m.inBounds(c) {
		return false
	}
	m.state.Dragging = true
	m.state.ItemID = m.columns[c.Col].ItemID
	m.state.StartCol, m.state.CurCol = c.Col, c.Col
	m.state.StartKey, m.state.CurKey = m.columns[c.Col].Key, m.columns[c.Col].Key
	m.state.StartRow, m.state.CurRow = c.Row, c.Row
	return true
}

// PointerMove extends the dragged region. In multi mode the columns follow only
// across copy lanes of the origin item; the synthetic new-booking column never
// joins a multi-column range.
func (m *DragMachine) PointerMove(c Cell) {
	if !m.state.Dragging || !m.inBounds(c) {
		return
	}
	m.state.CurRow = c.Row
	if !m.state.Multi || m.columns[m.state.StartCol].Synthetic {
		return
	}
	if col := m.columns[c.Col]; col.ItemID == m.state.ItemID && !col.Synthetic {
		m.state.CurCol = c.Col
		m.state.CurKey = col.Key
	}
}

// PointerLeave cancels the drag without emitting a request.
func (m *DragMachine) PointerLeave() {
	m.reset()
}

// PointerUp ends the drag. A request is emitted only when the region spans at
// least models.MinDragDays distinct days.
func (m *DragMachine) PointerUp(pos Point) (*CreateRequest, bool) {
	if !m.state.Dragging {
		return nil, false
	}
	defer m.reset()

	if !m.inBounds(Cell{Col: m.state.StartCol, Row: m.state.StartRow}) ||
		!m.inBounds(Cell{Col: m.state.CurCol, Row: m.state.CurRow}) {
		return nil, false
	}

	lo, hi := minMax(m.state.StartRow, m.state.CurRow)
	if hi-lo+1 < models.MinDragDays {
		return nil, false
	}

	cLo, cHi := m.state.StartCol, m.state.StartCol
	if m.state.Multi {
		cLo, cHi = minMax(m.state.StartCol, m.state.CurCol)
	}
	keys := make([]string, 0, cHi-cLo+1)
	for c := cLo; c <= cHi; c++ {
		keys = append(keys, m.columns[c].Key)
	}

	return &CreateRequest{
		ItemID:     m.state.ItemID,
		ColumnKeys: keys,
		From:       m.window[lo],
		To:         m.window[hi],
		Days:       hi - lo + 1,
		Position:   pos,
	}, true
}

func (m *DragMachine) reset() {
	m.state = models.DragState{Multi: m.state.Multi, SessionID: m.state.SessionID, Month: m.state.Month}
}

func minMax(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}
