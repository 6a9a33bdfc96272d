package service

import (
	"context"
	"testing"

	"leihlokal/internal/domain"
	"leihlokal/internal/events"
	"leihlokal/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestItemService_RefreshSorts(t *testing.T) {
	st := new(mockStore)
	st.On("ListItems", mock.Anything, domain.Filter{}).Return([]models.Item{
		{ID: "b", Name: "Zange", SortKey: 2},
		{ID: "a", Name: "Akkuschrauber", SortKey: 2},
		{ID: "c", Name: "Leiter", SortKey: 1},
	}, nil)

	s := NewItemService(st, testLogger())
	require.NoError(t, s.Refresh(context.Background()))

	items, err := s.GetActiveItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{items[0].ID, items[1].ID, items[2].ID})
	assert.Equal(t, "Zange", s.Names()["b"])

	item, err := s.GetItemByID(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "Akkuschrauber", item.Name)
}

func TestItemService_GetFallsBackToStore(t *testing.T) {
	st := new(mockStore)
	st.On("GetItem", mock.Anything, "x").Return(nil, domain.ErrNotFound)

	_, err := NewItemService(st, testLogger()).GetItemByID(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestItemService_Create(t *testing.T) {
	st := new(mockStore)
	st.On("CreateItem", mock.Anything, mock.MatchedBy(func(i *models.Item) bool {
		return i.Name == "Leiter" && i.Copies == 2
	})).Return(nil)
	st.On("ListItems", mock.Anything, mock.Anything).Return([]models.Item{}, nil)

	s := NewItemService(st, testLogger())
	item, err := s.CreateItem(context.Background(), ItemRequest{Name: " Leiter ", Copies: 2})
	require.NoError(t, err)
	assert.Equal(t, "Leiter", item.Name)

	_, err = s.CreateItem(context.Background(), ItemRequest{Name: "  "})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestItemService_UpdateKeepsCopiesWhenUnset(t *testing.T) {
	st := new(mockStore)
	st.On("GetItem", mock.Anything, "a").Return(&models.Item{ID: "a", Name: "Leiter", Copies: 3}, nil)
	st.On("UpdateItem", mock.Anything, mock.Anything).Return(nil)
	st.On("ListItems", mock.Anything, mock.Anything).Return([]models.Item{}, nil)

	item, err := NewItemService(st, testLogger()).UpdateItem(context.Background(), "a", ItemRequest{SortKey: 7, Protected: true})
	require.NoError(t, err)
	assert.Equal(t, 3, item.Copies)
	assert.Equal(t, "Leiter", item.Name)
	assert.Equal(t, int64(7), item.SortKey)
	assert.True(t, item.Protected)
}

func TestItemService_WatchRefreshesOnEvents(t *testing.T) {
	st := new(mockStore)
	st.On("ListItems", mock.Anything, mock.Anything).Return([]models.Item{{ID: "a", Name: "Leiter"}}, nil).Once()

	bus := events.NewBus()
	s := NewItemService(st, testLogger())
	unsubscribe := s.Watch(bus)

	bus.Publish(context.Background(), models.RecordEvent{Kind: models.EventCreated, Collection: models.CollectionItems, RecordID: "a"})
	// события бронирований не трогают кэш
	bus.Publish(context.Background(), models.RecordEvent{Kind: models.EventCreated, Collection: models.CollectionBookings, RecordID: "b"})

	assert.Equal(t, "Leiter", s.Names()["a"])

	unsubscribe()
	bus.Publish(context.Background(), models.RecordEvent{Kind: models.EventDeleted, Collection: models.CollectionItems, RecordID: "a"})
	st.AssertNumberOfCalls(t, "ListItems", 1)
}
