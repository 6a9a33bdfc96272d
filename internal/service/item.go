package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"leihlokal/internal/domain"
	"leihlokal/internal/models"
	"leihlokal/internal/schedule"

	"github.com/rs/zerolog"
)

type ItemRequest struct {
	Name      string `json:"name" validate:"required,max=200"`
	SortKey   int64  `json:"sort_key"`
	Copies    int    `json:"copies" validate:"omitempty,min=1,max=100"`
	Protected bool   `json:"protected"`
}

// ItemService caches the active items in grid order.
type ItemService struct {
	store  domain.RecordStore
	logger *zerolog.Logger

	mu       sync.RWMutex
	items    []models.Item
	itemsMap map[string]models.Item
}

func NewItemService(store domain.RecordStore, logger *zerolog.Logger) *ItemService {
	return &ItemService{
		store:    store,
		logger:   logger,
		itemsMap: make(map[string]models.Item),
	}
}

func (s *ItemService) GetActiveItems(ctx context.Context) ([]models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Item, len(s.items))
	copy(out, s.items)
	return out, nil
}

func (s *ItemService) GetItemByID(ctx context.Context, id string) (*models.Item, error) {
	s.mu.RLock()
	item, ok := s.itemsMap[id]
	s.mu.RUnlock()
	if ok {
		return &item, nil
	}
	return s.store.GetItem(ctx, id)
}

// Names maps item IDs to display names.
func (s *ItemService) Names() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.items))
	for _, it := range s.items {
		out[it.ID] = it.Name
	}
	return out
}

func (s *ItemService) CreateItem(ctx context.Context, req ItemRequest) (*models.Item, error) {
	item := &models.Item{
		Name:      strings.TrimSpace(req.Name),
		SortKey:   req.SortKey,
		Copies:    req.Copies,
		Protected: req.Protected,
	}
	if item.Name == "" {
		return nil, invalid(errors.New("name is required"))
	}
	if err := s.store.CreateItem(ctx, item); err != nil {
		return nil, err
	}
	return item, s.Refresh(ctx)
}

func (s *ItemService) UpdateItem(ctx context.Context, id string, req ItemRequest) (*models.Item, error) {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		item.Name = name
	}
	item.SortKey = req.SortKey
	if req.Copies > 0 {
		item.Copies = req.Copies
	}
	item.Protected = req.Protected

	if err := s.store.UpdateItem(ctx, item); err != nil {
		return nil, err
	}
	return item, s.Refresh(ctx)
}

func (s *ItemService) DeleteItem(ctx context.Context, id string) error {
	if err := s.store.DeleteItem(ctx, id); err != nil {
		return err
	}
	return s.Refresh(ctx)
}

// Refresh reloads active items from the store.
func (s *ItemService) Refresh(ctx context.Context) error {
	items, err := s.store.ListItems(ctx, domain.Filter{})
	if err != nil {
		return err
	}
	items = schedule.SortItems(items)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
	s.itemsMap = make(map[string]models.Item, len(items))
	for _, item := range items {
		s.itemsMap[item.ID] = item
	}
	return nil
}

// Watch refreshes the cache whenever an item changes. It returns the unsubscribe func.
func (s *ItemService) Watch(sub domain.EventSubscriber) func() {
	return sub.Subscribe(models.CollectionItems, func(ctx context.Context, ev models.RecordEvent) {
		if err := s.Refresh(ctx); err != nil {
			s.logger.Error().Err(err).Str("kind", string(ev.Kind)).Msg("Failed to refresh items")
		}
	})
}
