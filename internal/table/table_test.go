package table

import (
	"testing"
	"time"

	"leihlokal/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(m time.Month, d int) time.Time {
	return time.Date(2025, m, d, 0, 0, 0, 0, time.UTC)
}

func sample() []*models.Booking {
	return []*models.Booking{
		{ID: "1", ItemID: "drill", CustomerName: "Carla", StartDate: date(3, 10), EndDate: date(3, 11), Status: models.StatusActive},
		{ID: "2", ItemID: "saw", CustomerName: "Anna", StartDate: date(2, 28), EndDate: date(3, 9), Status: models.StatusReserved},
		{ID: "3", ItemID: "ghost", CustomerName: "Ben", StartDate: date(3, 3), EndDate: date(3, 3), Status: "custom"},
	}
}

func TestBookingsTable(t *testing.T) {
	tbl := Bookings(map[string]string{"drill": "Bohrmaschine", "saw": "Säge"})

	assert.Equal(t, []string{"Gegenstand", "Kunde", "Von", "Bis", "Tage", "Status"}, tbl.Headers())

	rows := tbl.Rows(sample())
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Bohrmaschine", "Carla", "Mo 10.03.", "Di 11.03.", "2", "Ausgeliehen"}, rows[0])
	assert.Equal(t, "ghost", rows[2][0])
	assert.Equal(t, "custom", rows[2][5])
}

func TestSortUsesSortKey(t *testing.T) {
	tbl := Bookings(nil)
	bs := sample()

	require.NoError(t, tbl.Sort(bs, "start", false))
	assert.Equal(t, []string{"2", "3", "1"}, ids(bs))

	require.NoError(t, tbl.Sort(bs, "days", true))
	assert.Equal(t, []string{"2", "1", "3"}, ids(bs))

	require.NoError(t, tbl.Sort(bs, "customer", false))
	assert.Equal(t, []string{"2", "3", "1"}, ids(bs))

	assert.Error(t, tbl.Sort(bs, "nope", false))
}

func TestSelect(t *testing.T) {
	tbl, err := Bookings(nil).Select("status", "customer")
	require.NoError(t, err)
	assert.Equal(t, []string{"Status", "Kunde"}, tbl.Headers())

	_, err = Bookings(nil).Select("missing")
	assert.Error(t, err)

	all, err := Bookings(nil).Select()
	require.NoError(t, err)
	assert.Len(t, all.Columns, 6)
}

func ids(bs []*models.Booking) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.ID
	}
	return out
}
