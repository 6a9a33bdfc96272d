package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"leihlokal/internal/appctx"
	"leihlokal/internal/config"
	"leihlokal/internal/database"
	"leihlokal/internal/domain"
	"leihlokal/internal/models"
	"leihlokal/internal/repository"
	"leihlokal/internal/schedule"
	"leihlokal/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type testEnv struct {
	srv  *HTTPServer
	db   *database.DB
	deps Deps
}

func newTestEnv(t *testing.T, cfg config.APIConfig) *testEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)
	ctx := context.Background()

	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.SeedItems(ctx, []models.Item{
		{ID: "drill", Name: "Bohrmaschine", SortKey: 1, Copies: 2, Protected: true},
		{ID: "saw", Name: "Stichsäge", SortKey: 2, Copies: 1, Protected: true},
	})
	require.NoError(t, err)

	items := service.NewItemService(db, &logger)
	require.NoError(t, items.Refresh(ctx))

	opts := schedule.Options{Closed: schedule.DefaultClosedDays()}
	deps := Deps{
		Store:    db,
		Grid:     service.NewGridService(db, service.NewMonthLoader(db, &logger), opts, nil, &logger),
		Bookings: service.NewBookingService(db, nil, nil, &logger),
		Items:    items,
		Drag:     service.NewDragService(db, repository.NewMemoryStateRepository(time.Minute), &logger),
		Context:  appctx.New(nil, time.Hour, time.Hour, &logger),
	}
	return &testEnv{srv: NewHTTPServer(&cfg, deps, &logger), db: db, deps: deps}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHTTP_Healthz(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})
	rec := env.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestHTTP_Auth(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{Auth: config.APIAuthConfig{
		Enabled: true,
		APIKeys: []config.APIClientKey{{Key: "k1", Name: "kiosk", Permissions: []string{PermReadGrid}}},
	}})

	rec := env.do(t, http.MethodGet, "/api/v1/grid?month=2025-03", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/grid?month=2025-03", nil, map[string]string{"x-api-key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/grid?month=2025-03", nil, map[string]string{"x-api-key": "k1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/grid?month=2025-03", nil, map[string]string{"Authorization": "Bearer k1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/bookings", map[string]any{"item_id": "drill"}, map[string]string{"x-api-key": "k1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHTTP_RateLimit(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{RateLimit: config.APIRateLimitConfig{RPS: 0.01, Burst: 1}})

	rec := env.do(t, http.MethodGet, "/api/v1/items", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/v1/items", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestHTTP_CreateBookingAndGrid(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	rec := env.do(t, http.MethodPost, "/api/v1/bookings", map[string]any{
		"item_id":       "drill",
		"customer_name": "Anna",
		"from":          "2025-03-03",
		"to":            "2025-03-05",
		"copies":        2,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[struct{ Items []models.Booking }](t, rec)
	assert.Len(t, created.Items, 2)

	rec = env.do(t, http.MethodGet, "/api/v1/grid?month=2025-03", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	grid := decode[service.MonthGrid](t, rec)

	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), grid.Month.UTC())
	assert.False(t, grid.Unsupported)
	assert.Len(t, grid.Layout.Rows, 31)
	require.Len(t, grid.Layout.Spans, 1)
	span := grid.Layout.Spans[0]
	assert.Equal(t, 2, span.CopyCount)
	assert.Equal(t, 2, span.RowStart)
	assert.Equal(t, 5, span.RowEnd)
	assert.Empty(t, grid.Layout.Overflow)
}

func TestHTTP_CreateBookingErrors(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	rec := env.do(t, http.MethodPost, "/api/v1/bookings", map[string]any{
		"item_id": "drill", "from": "2025-03-03", "to": "2025-03-05",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/bookings", map[string]any{
		"item_id": "drill", "customer_name": "Anna", "from": "2025-03-05", "to": "2025-03-03",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/bookings", map[string]any{
		"item_id": "ladder", "customer_name": "Anna", "from": "2025-03-03", "to": "2025-03-05",
	}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/grid?month=März", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTP_BookingsTable(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})
	ctx := context.Background()
	require.NoError(t, env.db.CreateBooking(ctx, &models.Booking{
		ItemID: "saw", CustomerName: "Cem",
		StartDate: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, env.db.CreateBooking(ctx, &models.Booking{
		ItemID: "drill", CustomerName: "Anna",
		StartDate: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC),
	}))

	rec := env.do(t, http.MethodGet, "/api/v1/bookings?format=table&columns=item,customer&sort=start", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tbl := decode[struct {
		Headers []string
		Rows    [][]string
	}](t, rec)
	assert.Equal(t, []string{"Gegenstand", "Kunde"}, tbl.Headers)
	assert.Equal(t, [][]string{{"Bohrmaschine", "Anna"}, {"Stichsäge", "Cem"}}, tbl.Rows)

	rec = env.do(t, http.MethodGet, "/api/v1/bookings?format=table&columns=color", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/bookings?item_id=saw", nil, nil)
	list := decode[struct{ Items []models.Booking }](t, rec)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "Cem", list.Items[0].CustomerName)
}

func TestHTTP_DragToCreate(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	rec := env.do(t, http.MethodPost, "/api/v1/drag/s1/down", map[string]any{
		"month": "2025-03", "mode": "multi", "cell": map[string]any{"col": 0, "row": 2},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st := decode[models.DragState](t, rec)
	assert.True(t, st.Dragging)
	assert.Equal(t, "drill", st.ItemID)

	rec = env.do(t, http.MethodPost, "/api/v1/drag/s1/move", map[string]any{
		"cell": map[string]any{"col": 1, "row": 4},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/drag/s1/up", map[string]any{
		"position": map[string]any{"x": 120, "y": 80},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	up := decode[struct {
		Request json.RawMessage `json:"request"`
	}](t, rec)
	var req schedule.CreateRequest
	require.NoError(t, json.Unmarshal(up.Request, &req))
	assert.Equal(t, []string{"drill:0", "drill:1"}, req.ColumnKeys)
	assert.Equal(t, 3, req.Days)

	rec = env.do(t, http.MethodPost, "/api/v1/drag/confirm", map[string]any{
		"request":       up.Request,
		"customer_name": "Berta",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[struct{ Items []models.Booking }](t, rec)
	require.Len(t, created.Items, 2)
	assert.Equal(t, "Berta", created.Items[0].CustomerName)
}

func TestHTTP_DragShortIsDiscarded(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	env.do(t, http.MethodPost, "/api/v1/drag/s2/down", map[string]any{
		"month": "2025-03", "cell": map[string]any{"col": 0, "row": 2},
	}, nil)
	rec := env.do(t, http.MethodPost, "/api/v1/drag/s2/up", map[string]any{}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"request":null}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/v1/drag/s2/leave", nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHTTP_DragUnknownSessionIsNoop(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	rec := env.do(t, http.MethodPost, "/api/v1/drag/nobody/move", map[string]any{
		"cell": map[string]any{"col": 0, "row": 3},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[models.DragState](t, rec).Dragging)

	rec = env.do(t, http.MethodPost, "/api/v1/drag/nobody/up", map[string]any{}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"request":null}`, rec.Body.String())
}

func TestHTTP_DragConfirmRejectsForgedDays(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	rec := env.do(t, http.MethodPost, "/api/v1/drag/confirm", map[string]any{
		"request": map[string]any{
			"item_id":     "drill",
			"column_keys": []string{"drill:0"},
			"from":        "2025-03-05T00:00:00Z",
			"to":          "2025-03-05T00:00:00Z",
			"days":        2,
		},
		"customer_name": "Mallory",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	bookings, err := env.db.ListBookings(context.Background(), domain.Filter{})
	require.NoError(t, err)
	assert.Empty(t, bookings)
}

func TestHTTP_ExportMonth(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})
	require.NoError(t, env.db.CreateBooking(context.Background(), &models.Booking{
		ItemID: "saw", CustomerName: "Cem",
		StartDate: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC),
	}))

	rec := env.do(t, http.MethodGet, "/api/v1/export/2025-03", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "belegung_2025-03.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, f.GetSheetList(), "Belegung")
}

func TestHTTP_Context(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	rec := env.do(t, http.MethodGet, "/api/v1/context", nil, nil)
	assert.JSONEq(t, `{"employee":null,"settings":null}`, rec.Body.String())

	rec = env.do(t, http.MethodPut, "/api/v1/context/employee", map[string]any{"id": "e1", "name": " Jana "}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/v1/context/employee", map[string]any{"id": "e1"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/v1/context/settings", models.WhiteLabel{AppName: "Leihladen"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/context", nil, nil)
	got := decode[struct {
		Employee *models.Employee
		Settings *models.WhiteLabel
	}](t, rec)
	require.NotNil(t, got.Employee)
	assert.Equal(t, "Jana", got.Employee.Name)
	require.NotNil(t, got.Settings)
	assert.Equal(t, "Leihladen", got.Settings.AppName)
}

func TestHTTP_ItemsCRUD(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	rec := env.do(t, http.MethodPost, "/api/v1/items", map[string]any{"name": "Leiter", "sort_key": 3, "copies": 1, "protected": true}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	item := decode[models.Item](t, rec)

	rec = env.do(t, http.MethodPost, "/api/v1/items", map[string]any{"copies": 1}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/items", nil, nil)
	list := decode[struct{ Items []models.Item }](t, rec)
	assert.Len(t, list.Items, 3)

	rec = env.do(t, http.MethodGet, "/api/v1/items/"+item.ID+"/availability?month=2025-02", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	avail := decode[struct{ Items []models.Availability }](t, rec)
	assert.Len(t, avail.Items, 28)

	rec = env.do(t, http.MethodDelete, "/api/v1/items/"+item.ID, nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/items", nil, nil)
	list = decode[struct{ Items []models.Item }](t, rec)
	assert.Len(t, list.Items, 2)
}
