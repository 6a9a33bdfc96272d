package models

import "time"

// Item is a rentable good. Protected items are scheduled through the booking grid.
type Item struct {
	ID        string    `yaml:"id" json:"id"`
	Name      string    `yaml:"name" json:"name"`
	SortKey   int64     `yaml:"sort_key" json:"sort_key"`
	Copies    int       `yaml:"copies" json:"copies"`
	Protected bool      `yaml:"protected" json:"protected"`
	Deleted   bool      `yaml:"deleted" json:"deleted"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at" json:"updated_at"`
}

// CopyCount returns the number of copies, never less than one.
func (i Item) CopyCount() int {
	if i.Copies < 1 {
		return 1
	}
	return i.Copies
}
