// Package bootstrap wires the record store and its side channels from config.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"leihlokal/internal/config"
	"leihlokal/internal/database"
	"leihlokal/internal/domain"
	"leihlokal/internal/events"
	"leihlokal/internal/models"
	"leihlokal/internal/pgstore"
	"leihlokal/internal/remote"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

type seeder interface {
	SeedItems(ctx context.Context, items []models.Item) (int, error)
}

type publisherSetter interface {
	SetPublisher(p domain.EventPublisher)
}

// LoadItems reads the items seed file. A missing file yields no items.
func LoadItems(path string) ([]models.Item, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read items: %w", err)
	}

	var itemsConfig struct {
		Items []models.Item `yaml:"items"`
	}
	if err := yaml.Unmarshal(data, &itemsConfig); err != nil {
		return nil, fmt.Errorf("parse items: %w", err)
	}
	if err := config.ValidateItems(itemsConfig.Items); err != nil {
		return nil, err
	}
	return itemsConfig.Items, nil
}

// OpenStore opens the configured backend. rdb may be nil; it only backs the
// remote list cache.
func OpenStore(cfg *config.Config, rdb *redis.Client, logger *zerolog.Logger) (domain.RecordStore, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		db, err := database.NewDB(cfg.Store.Path, logger)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "postgres":
		pg, err := pgstore.Open(cfg.Store.Postgres, logger)
		if err != nil {
			return nil, err
		}
		return pg, nil
	case "remote":
		r := cfg.Store.Remote
		client := remote.NewClient(r.BaseURL, r.Token, time.Duration(r.TimeoutSeconds)*time.Second, logger)
		if rdb != nil && r.CacheSeconds > 0 {
			client.UseRedisCache(rdb, time.Duration(r.CacheSeconds)*time.Second)
		}
		return client, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// Seed inserts missing items when the store supports seeding.
func Seed(ctx context.Context, store domain.RecordStore, items []models.Item, logger *zerolog.Logger) error {
	s, ok := store.(seeder)
	if !ok || len(items) == 0 {
		return nil
	}
	n, err := s.SeedItems(ctx, items)
	if err != nil {
		return fmt.Errorf("seed items: %w", err)
	}
	logger.Info().Int("inserted", n).Int("total", len(items)).Msg("Items seeded")
	return nil
}

// AttachBus makes store publish record events on bus. Stores without local
// writes (remote) are left alone.
func AttachBus(store domain.RecordStore, bus *events.Bus) bool {
	p, ok := store.(publisherSetter)
	if ok {
		p.SetPublisher(bus)
	}
	return ok
}

// SyncItems upserts items by ID through the generic store API, so it also
// works against postgres and remote stores.
func SyncItems(ctx context.Context, store domain.RecordStore, items []models.Item) (created, updated int, err error) {
	for i := range items {
		it := items[i]
		if it.ID == "" || it.Name == "" {
			continue
		}
		_, err = store.GetItem(ctx, it.ID)
		if err == nil {
			if err = store.UpdateItem(ctx, &it); err != nil {
				return created, updated, fmt.Errorf("update %s: %w", it.ID, err)
			}
			updated++
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return created, updated, fmt.Errorf("get %s: %w", it.ID, err)
		}
		if err = store.CreateItem(ctx, &it); err != nil {
			return created, updated, fmt.Errorf("create %s: %w", it.ID, err)
		}
		created++
	}
	return created, updated, nil
}
