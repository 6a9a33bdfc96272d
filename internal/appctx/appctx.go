// Package appctx holds the dashboard-wide application context: the employee
// working the counter and the white-label settings. Values are cached with a
// save timestamp and persisted explicitly through Load and Save.
package appctx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"leihlokal/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	employeeKey = "leih:ctx:employee"
	settingsKey = "leih:ctx:settings"
)

type Context struct {
	rdb         *redis.Client
	logger      *zerolog.Logger
	employeeTTL time.Duration
	settingsTTL time.Duration
	now         func() time.Time

	mu       sync.RWMutex
	employee models.CacheEntry[*models.Employee]
	settings models.CacheEntry[models.WhiteLabel]
}

// New creates a context. rdb may be nil, then state lives only in memory.
func New(rdb *redis.Client, employeeTTL, settingsTTL time.Duration, logger *zerolog.Logger) *Context {
	return &Context{
		rdb:         rdb,
		logger:      logger,
		employeeTTL: employeeTTL,
		settingsTTL: settingsTTL,
		now:         time.Now,
	}
}

// Employee returns the current employee unless the entry has expired.
func (c *Context) Employee() (*models.Employee, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.employee.Value == nil || c.employee.IsExpired(c.now(), c.employeeTTL) {
		return nil, false
	}
	e := *c.employee.Value
	return &e, true
}

func (c *Context) SetEmployee(e *models.Employee) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e == nil {
		c.employee = models.CacheEntry[*models.Employee]{}
		return
	}
	cp := *e
	c.employee = models.NewCacheEntry(&cp, c.now())
}

// Settings returns the white-label settings unless the entry has expired.
func (c *Context) Settings() (models.WhiteLabel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.settings.IsExpired(c.now(), c.settingsTTL) {
		return models.WhiteLabel{}, false
	}
	return c.settings.Value, true
}

func (c *Context) SetSettings(w models.WhiteLabel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = models.NewCacheEntry(w, c.now())
}

// Load replaces in-memory state with what is persisted. Expired entries are ignored.
func (c *Context) Load(ctx context.Context) error {
	if c.rdb == nil {
		return nil
	}

	var emp models.CacheEntry[*models.Employee]
	if err := c.read(ctx, employeeKey, &emp); err != nil {
		return err
	}
	var set models.CacheEntry[models.WhiteLabel]
	if err := c.read(ctx, settingsKey, &set); err != nil {
		return err
	}

	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if !emp.IsExpired(now, c.employeeTTL) {
		c.employee = emp
	} else {
		c.employee = models.CacheEntry[*models.Employee]{}
	}
	if !set.IsExpired(now, c.settingsTTL) {
		c.settings = set
	} else {
		c.settings = models.CacheEntry[models.WhiteLabel]{}
	}
	return nil
}

// Save persists the current state. Keys expire together with their entries.
func (c *Context) Save(ctx context.Context) error {
	if c.rdb == nil {
		return nil
	}
	c.mu.RLock()
	emp, set := c.employee, c.settings
	c.mu.RUnlock()

	if emp.Value == nil {
		if err := c.rdb.Del(ctx, employeeKey).Err(); err != nil {
			return fmt.Errorf("clear employee: %w", err)
		}
	} else if err := c.write(ctx, employeeKey, emp, c.employeeTTL); err != nil {
		return err
	}
	if !set.SavedAt.IsZero() {
		if err := c.write(ctx, settingsKey, set, c.settingsTTL); err != nil {
			return err
		}
	}
	return nil
}

func (c *Context) read(ctx context.Context, key string, out any) error {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		// битая запись не должна ломать дашборд
		c.logger.Warn().Err(err).Str("key", key).Msg("discarding corrupt context entry")
		return nil
	}
	return nil
}

func (c *Context) write(ctx context.Context, key string, val any, ttl time.Duration) error {
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
