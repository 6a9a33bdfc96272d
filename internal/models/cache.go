package models

import "time"

// CacheEntry is a value stamped with the time it was saved.
type CacheEntry[T any] struct {
	Value   T         `json:"value"`
	SavedAt time.Time `json:"saved_at"`
}

func NewCacheEntry[T any](value T, now time.Time) CacheEntry[T] {
	return CacheEntry[T]{Value: value, SavedAt: now}
}

// IsExpired reports whether the entry is older than ttl at now.
// A zero SavedAt is always expired; ttl <= 0 never expires.
func (e CacheEntry[T]) IsExpired(now time.Time, ttl time.Duration) bool {
	if e.SavedAt.IsZero() {
		return true
	}
	if ttl <= 0 {
		return false
	}
	return now.Sub(e.SavedAt) >= ttl
}

// Employee is the staff member currently working the counter.
type Employee struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// WhiteLabel holds the per-installation branding settings.
type WhiteLabel struct {
	AppName      string `json:"app_name"`
	LogoURL      string `json:"logo_url"`
	PrimaryColor string `json:"primary_color"`
	LabelFooter  string `json:"label_footer"`
}
