package models

import "time"

// DragState is the persisted state of a drag-to-create session.
type DragState struct {
	SessionID string    `json:"session_id"`
	Month     time.Time `json:"month"`
	Dragging  bool      `json:"dragging"`
	Multi     bool      `json:"multi"`
	ItemID    string    `json:"item_id"`
	StartCol  int       `json:"start_col"`
	CurCol    int       `json:"cur_col"`
	StartKey  string    `json:"start_key"`
	CurKey    string    `json:"cur_key"`
	StartRow  int       `json:"start_row"`
	CurRow    int       `json:"cur_row"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Availability describes booked and free copies of an item on a day.
type Availability struct {
	Date      time.Time `json:"date"`
	ItemID    string    `json:"item_id"`
	Booked    int       `json:"booked"`
	Available int       `json:"available"`
}
