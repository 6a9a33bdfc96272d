// Package remote implements the record store against a remote collections API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"leihlokal/internal/domain"
	"leihlokal/internal/models"
	"leihlokal/internal/schedule"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const cachePrefix = "leih:remote:"

// Client talks to /api/collections/{collection}/records on a remote server.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zerolog.Logger

	redis    *redis.Client
	cacheTTL time.Duration
}

var _ domain.RecordStore = (*Client)(nil)

func NewClient(baseURL, token string, timeout time.Duration, logger *zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// UseRedisCache configures optional Redis caching for list endpoints.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// StatusError is a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}

// wireBooking accepts any ISO-8601 date representation the remote sends.
type wireBooking struct {
	ID           string    `json:"id"`
	ItemID       string    `json:"item_id"`
	CustomerName string    `json:"customer_name"`
	StartDate    string    `json:"start_date"`
	EndDate      string    `json:"end_date"`
	Status       string    `json:"status"`
	RentalID     string    `json:"rental_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (w wireBooking) toModel() (*models.Booking, error) {
	start, err := schedule.ParseDate(w.StartDate)
	if err != nil {
		return nil, fmt.Errorf("booking %s start: %w", w.ID, err)
	}
	end, err := schedule.ParseDate(w.EndDate)
	if err != nil {
		return nil, fmt.Errorf("booking %s end: %w", w.ID, err)
	}
	return &models.Booking{
		ID: w.ID, ItemID: w.ItemID, CustomerName: w.CustomerName,
		StartDate: start, EndDate: end, Status: w.Status, RentalID: w.RentalID,
		CreatedAt: w.CreatedAt, UpdatedAt: w.UpdatedAt,
	}, nil
}

func toWire(b *models.Booking) wireBooking {
	return wireBooking{
		ID: b.ID, ItemID: b.ItemID, CustomerName: b.CustomerName,
		StartDate: b.StartDate.Format("2006-01-02"), EndDate: b.EndDate.Format("2006-01-02"),
		Status: b.Status, RentalID: b.RentalID,
	}
}

func (c *Client) recordsURL(collection string) string {
	return fmt.Sprintf("%s/api/collections/%s/records", c.baseURL, url.PathEscape(collection))
}

func (c *Client) recordURL(collection, id string) string {
	return c.recordsURL(collection) + "/" + url.PathEscape(id)
}

func filterQuery(f domain.Filter) url.Values {
	q := url.Values{}
	if f.ProtectedOnly {
		q.Set("protected", "1")
	}
	if f.IncludeDeleted {
		q.Set("include_deleted", "1")
	}
	if f.ItemID != "" {
		q.Set("item_id", f.ItemID)
	}
	if !f.From.IsZero() {
		q.Set("from", f.From.Format("2006-01-02"))
	}
	if !f.To.IsZero() {
		q.Set("to", f.To.Format("2006-01-02"))
	}
	return q
}

func (c *Client) ListItems(ctx context.Context, filter domain.Filter) ([]models.Item, error) {
	var resp listResponse[models.Item]
	if err := c.list(ctx, models.CollectionItems, filter, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) ListBookings(ctx context.Context, filter domain.Filter) ([]*models.Booking, error) {
	var resp listResponse[wireBooking]
	if err := c.list(ctx, models.CollectionBookings, filter, &resp); err != nil {
		return nil, err
	}
	out := make([]*models.Booking, 0, len(resp.Items))
	for _, w := range resp.Items {
		b, err := w.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (c *Client) list(ctx context.Context, collection string, filter domain.Filter, out any) error {
	endpoint := c.recordsURL(collection)
	if q := filterQuery(filter).Encode(); q != "" {
		endpoint += "?" + q
	}
	cacheKey := cachePrefix + collection + ":" + filterQuery(filter).Encode()

	if c.readCache(ctx, cacheKey, out) {
		return nil
	}

	err := c.doJSON(ctx, http.MethodGet, endpoint, nil, out)
	if se, ok := err.(*StatusError); ok && se.Code == http.StatusNotFound {
		return fmt.Errorf("%s: %w", collection, domain.ErrCollectionNotFound)
	}
	if err != nil {
		return fmt.Errorf("list %s: %w", collection, err)
	}
	c.writeCache(ctx, cacheKey, out)
	return nil
}

func (c *Client) get(ctx context.Context, collection, id string, out any) error {
	err := c.doJSON(ctx, http.MethodGet, c.recordURL(collection, id), nil, out)
	if se, ok := err.(*StatusError); ok && se.Code == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", collection, id, domain.ErrNotFound)
	}
	return err
}

func (c *Client) GetItem(ctx context.Context, id string) (*models.Item, error) {
	var item models.Item
	if err := c.get(ctx, models.CollectionItems, id, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	var w wireBooking
	if err := c.get(ctx, models.CollectionBookings, id, &w); err != nil {
		return nil, err
	}
	return w.toModel()
}

func (c *Client) write(ctx context.Context, method, collection, endpoint string, body, out any) error {
	err := c.doJSON(ctx, method, endpoint, body, out)
	if se, ok := err.(*StatusError); ok {
		switch se.Code {
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w", collection, domain.ErrNotFound)
		case http.StatusConflict:
			return fmt.Errorf("%s: %w", collection, domain.ErrConflict)
		}
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, collection, err)
	}
	c.invalidate(ctx, collection)
	return nil
}

func (c *Client) CreateItem(ctx context.Context, item *models.Item) error {
	return c.write(ctx, http.MethodPost, models.CollectionItems, c.recordsURL(models.CollectionItems), item, item)
}

func (c *Client) UpdateItem(ctx context.Context, item *models.Item) error {
	return c.write(ctx, http.MethodPatch, models.CollectionItems, c.recordURL(models.CollectionItems, item.ID), item, item)
}

func (c *Client) DeleteItem(ctx context.Context, id string) error {
	return c.write(ctx, http.MethodDelete, models.CollectionItems, c.recordURL(models.CollectionItems, id), nil, nil)
}

func (c *Client) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if err := booking.Validate(); err != nil {
		return err
	}
	var w wireBooking
	if err := c.write(ctx, http.MethodPost, models.CollectionBookings, c.recordsURL(models.CollectionBookings), toWire(booking), &w); err != nil {
		return err
	}
	created, err := w.toModel()
	if err != nil {
		return err
	}
	*booking = *created
	return nil
}

func (c *Client) UpdateBooking(ctx context.Context, booking *models.Booking) error {
	if err := booking.Validate(); err != nil {
		return err
	}
	return c.write(ctx, http.MethodPatch, models.CollectionBookings, c.recordURL(models.CollectionBookings, booking.ID), toWire(booking), nil)
}

func (c *Client) DeleteBooking(ctx context.Context, id string) error {
	return c.write(ctx, http.MethodDelete, models.CollectionBookings, c.recordURL(models.CollectionBookings, id), nil, nil)
}

func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(val, out) == nil
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

// invalidate drops cached listings of a collection after a write.
func (c *Client) invalidate(ctx context.Context, collection string) {
	if c.redis == nil {
		return
	}
	iter := c.redis.Scan(ctx, 0, cachePrefix+collection+":*", 100).Iterator()
	for iter.Next(ctx) {
		_ = c.redis.Del(ctx, iter.Val()).Err()
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn().Err(err).Str("collection", collection).Msg("cache invalidation failed")
	}
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
