// Package table describes tabular views declaratively: each column maps an id
// to a header, a cell renderer and an optional sort key.
package table

import (
	"fmt"
	"sort"
)

type Column[T any] struct {
	ID     string
	Header string
	Cell   func(T) string
	// SortKey overrides Cell for ordering, e.g. ISO dates behind a German label.
	SortKey func(T) string
}

func (c Column[T]) key(v T) string {
	if c.SortKey != nil {
		return c.SortKey(v)
	}
	return c.Cell(v)
}

type Table[T any] struct {
	Columns []Column[T]
}

func New[T any](cols ...Column[T]) Table[T] {
	return Table[T]{Columns: cols}
}

func (t Table[T]) Headers() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Header
	}
	return out
}

func (t Table[T]) Row(v T) []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Cell(v)
	}
	return out
}

func (t Table[T]) Rows(vs []T) [][]string {
	out := make([][]string, len(vs))
	for i, v := range vs {
		out[i] = t.Row(v)
	}
	return out
}

func (t Table[T]) column(id string) (Column[T], bool) {
	for _, c := range t.Columns {
		if c.ID == id {
			return c, true
		}
	}
	return Column[T]{}, false
}

// Select returns a table with only the given columns, in the given order.
func (t Table[T]) Select(ids ...string) (Table[T], error) {
	if len(ids) == 0 {
		return t, nil
	}
	cols := make([]Column[T], 0, len(ids))
	for _, id := range ids {
		c, ok := t.column(id)
		if !ok {
			return Table[T]{}, fmt.Errorf("unknown column %q", id)
		}
		cols = append(cols, c)
	}
	return Table[T]{Columns: cols}, nil
}

// Sort orders vs in place by a column.
func (t Table[T]) Sort(vs []T, id string, desc bool) error {
	c, ok := t.column(id)
	if !ok {
		return fmt.Errorf("unknown column %q", id)
	}
	sort.SliceStable(vs, func(i, j int) bool {
		a, b := c.key(vs[i]), c.key(vs[j])
		if desc {
			return a > b
		}
		return a < b
	})
	return nil
}
