package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2025, time.March, d, 0, 0, 0, 0, time.UTC)
}

func TestBookingValidate(t *testing.T) {
	ok := &Booking{StartDate: day(1), EndDate: day(1)}
	assert.NoError(t, ok.Validate())

	bad := &Booking{StartDate: day(3), EndDate: day(1)}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidRange)
}

func TestDeriveStatus(t *testing.T) {
	b := &Booking{StartDate: day(1), EndDate: day(5)}

	t.Run("Reserved", func(t *testing.T) {
		assert.Equal(t, StatusReserved, DeriveStatus(b, false, day(2)))
	})

	linked := *b
	linked.RentalID = "r1"

	t.Run("Active", func(t *testing.T) {
		assert.Equal(t, StatusActive, DeriveStatus(&linked, false, day(5)))
	})
	t.Run("Overdue", func(t *testing.T) {
		assert.Equal(t, StatusOverdue, DeriveStatus(&linked, false, day(6)))
	})
	t.Run("Returned", func(t *testing.T) {
		assert.Equal(t, StatusReturned, DeriveStatus(&linked, true, day(9)))
	})
}

func TestItemCopyCount(t *testing.T) {
	assert.Equal(t, 1, Item{}.CopyCount())
	assert.Equal(t, 3, Item{Copies: 3}.CopyCount())
}

func TestCacheEntry_IsExpired(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	entry := NewCacheEntry("anna", now.Add(-time.Hour))

	assert.False(t, entry.IsExpired(now, 2*time.Hour))
	assert.True(t, entry.IsExpired(now, time.Hour))
	assert.False(t, entry.IsExpired(now, 0))
	assert.True(t, CacheEntry[string]{}.IsExpired(now, time.Hour))
}

func TestRecordEventDecode(t *testing.T) {
	raw, err := json.Marshal(Item{ID: "i1", Name: "Drill", Copies: 2})
	require.NoError(t, err)

	ev := RecordEvent{Kind: EventCreated, Collection: CollectionItems, RecordID: "i1", Record: raw}
	var item Item
	require.NoError(t, ev.Decode(&item))
	assert.Equal(t, "Drill", item.Name)
	assert.Equal(t, 2, item.Copies)
}
