package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"aqi_monitor/internal/feed"
	"aqi_monitor/internal/models"
	"aqi_monitor/internal/storage"
)

// flakyStore falha sob demanda para simular backend fora do ar
type flakyStore struct {
	*storage.MemoryStore
	failing atomic.Bool
}

func (s *flakyStore) Append(ctx context.Context, nr models.NewReading) (models.Reading, error) {
	if s.failing.Load() {
		return models.Reading{}, storage.Unavailable("append", context.DeadlineExceeded)
	}
	return s.MemoryStore.Append(ctx, nr)
}

func (s *flakyStore) List(ctx context.Context, limit int) ([]models.Reading, error) {
	if s.failing.Load() {
		return nil, storage.Unavailable("list", context.DeadlineExceeded)
	}
	return s.MemoryStore.List(ctx, limit)
}

type applyPublisher struct{ s *feed.Selector }

func (p applyPublisher) Publish(ev feed.Event) bool {
	p.s.Apply(ev)
	return true
}

type fixture struct {
	store    *flakyStore
	selector *feed.Selector
	server   *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := &flakyStore{MemoryStore: storage.NewMemoryStore(storage.DefaultRetention)}
	sel := feed.NewSelector(100)
	local := feed.NewLocalSource(store, applyPublisher{sel}, 100)

	router := NewRouter(NewHandler(store, local, sel, 100, time.Second), nil, "/api")
	router.Setup()

	srv := httptest.NewServer(router.Handler())
	t.Cleanup(srv.Close)

	return &fixture{store: store, selector: sel, server: srv}
}

func (f *fixture) post(t *testing.T, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(f.server.URL+"/api/aqi", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *fixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(f.server.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestCreateReading(t *testing.T) {
	f := newFixture(t)

	resp := f.post(t, `{"value": 42, "timestamp": "2024-03-01T10:00:00Z"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	created := decode[models.Reading](t, resp)
	require.Equal(t, int64(1), created.ID)
	require.Equal(t, 42, created.Value)
	require.True(t, created.Timestamp.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))

	// A leitura criada chega ao seletor
	current := f.selector.Current()
	require.NotNil(t, current)
	require.Equal(t, created.ID, current.ID)
}

func TestCreateReadingDefaultsTimestamp(t *testing.T) {
	f := newFixture(t)
	before := time.Now().Add(-time.Second)

	resp := f.post(t, `{"value": 7}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	created := decode[models.Reading](t, resp)
	require.True(t, created.Timestamp.After(before))
	require.Equal(t, time.UTC, created.Timestamp.Location())
}

func TestCreateReadingAcceptsOffsetTimestamp(t *testing.T) {
	f := newFixture(t)

	resp := f.post(t, `{"value": 100, "timestamp": "2024-03-01T12:00:00+02:00"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	created := decode[models.Reading](t, resp)
	require.True(t, created.Timestamp.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))
}

func TestCreateReadingValidation(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		field string
	}{
		{"missing value", `{}`, "value"},
		{"null value", `{"value": null}`, "value"},
		{"fractional value", `{"value": 12.5}`, "value"},
		{"string value", `{"value": "12"}`, "value"},
		{"boolean value", `{"value": true}`, "value"},
		{"below range", `{"value": -1}`, "value"},
		{"above range", `{"value": 501}`, "value"},
		{"bad timestamp", `{"value": 10, "timestamp": "ontem"}`, "timestamp"},
		{"numeric timestamp", `{"value": 10, "timestamp": 1700000000}`, "timestamp"},
		{"object timestamp", `{"value": 10, "timestamp": {}}`, "timestamp"},
		{"malformed body", `{"value": `, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)

			resp := f.post(t, tc.body)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)

			body := decode[errorResponse](t, resp)
			require.NotEmpty(t, body.Message)
			require.Equal(t, tc.field, body.Field)
			require.Equal(t, 0, f.store.Len())
		})
	}
}

func TestCreateReadingBoundaries(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, http.StatusCreated, f.post(t, `{"value": 0}`).StatusCode)
	require.Equal(t, http.StatusCreated, f.post(t, `{"value": 500}`).StatusCode)
	require.Equal(t, http.StatusCreated, f.post(t, `{"value": 30.0}`).StatusCode)
	require.Equal(t, 3, f.store.Len())
}

func TestCreateReadingStorageUnavailable(t *testing.T) {
	f := newFixture(t)
	f.store.failing.Store(true)

	resp := f.post(t, `{"value": 10}`)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	body := decode[errorResponse](t, resp)
	require.NotEmpty(t, body.Message)
	require.Empty(t, body.Field)
}

func TestListReadings(t *testing.T) {
	f := newFixture(t)

	empty := decode[[]models.Reading](t, f.get(t, "/api/aqi"))
	require.NotNil(t, empty)
	require.Empty(t, empty)

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 105; i++ {
		_, err := f.store.Append(context.Background(), models.NewReading{
			Value:     i % 400,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	resp := f.get(t, "/api/aqi")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	readings := decode[[]models.Reading](t, resp)
	require.Len(t, readings, 100)
	require.Equal(t, int64(6), readings[0].ID)
	require.Equal(t, int64(105), readings[99].ID)
	for i := 1; i < len(readings); i++ {
		require.True(t, readings[i].Newer(readings[i-1]))
	}
}

func TestListReadingsServesCacheOnFailure(t *testing.T) {
	f := newFixture(t)

	// Sem janela anterior, a falha vira lista vazia
	f.store.failing.Store(true)
	resp := f.get(t, "/api/aqi")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "true", resp.Header.Get("X-AQI-Stale"))
	require.Empty(t, decode[[]models.Reading](t, resp))

	f.store.failing.Store(false)
	for _, v := range []int{10, 20, 30} {
		require.Equal(t, http.StatusCreated, f.post(t, `{"value": `+strconv.Itoa(v)+`}`).StatusCode)
	}
	fresh := decode[[]models.Reading](t, f.get(t, "/api/aqi"))
	require.Len(t, fresh, 3)

	f.store.failing.Store(true)
	stale := decode[[]models.Reading](t, f.get(t, "/api/aqi"))
	require.Equal(t, fresh, stale)
}

func TestGetCurrent(t *testing.T) {
	f := newFixture(t)

	resp := f.get(t, "/api/aqi/current")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.Equal(t, http.StatusCreated, f.post(t, `{"value": 150}`).StatusCode)

	resp = f.get(t, "/api/aqi/current")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[currentResponse](t, resp)
	require.Equal(t, 150, body.Reading.Value)
	require.Equal(t, feed.StateSimulated, body.State)
	require.NotNil(t, body.Status)
	require.Equal(t, models.BandUnhealthy, body.Status.Band)
}

func TestGetSummary(t *testing.T) {
	f := newFixture(t)

	body := decode[summaryResponse](t, f.get(t, "/api/aqi/summary"))
	require.Equal(t, feed.StateNoFeed, body.State)
	require.Zero(t, body.Summary.Average)
	require.Nil(t, body.Summary.Latest)

	for _, v := range []string{"10", "20", "30"} {
		require.Equal(t, http.StatusCreated, f.post(t, `{"value": `+v+`}`).StatusCode)
	}

	body = decode[summaryResponse](t, f.get(t, "/api/aqi/summary"))
	require.Equal(t, 20, body.Summary.Average)
	require.Equal(t, 30, body.Summary.Peak)
	require.NotNil(t, body.Summary.Latest)
	require.Equal(t, 30, body.Summary.Latest.Value)
	require.Equal(t, feed.OriginLocal, body.HistoryOrigin)
}

func TestRouterMethodNotAllowed(t *testing.T) {
	f := newFixture(t)

	req, err := http.NewRequest(http.MethodDelete, f.server.URL+"/api/aqi", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	require.NotEmpty(t, decode[errorResponse](t, resp).Message)
}

func TestRouterCorsPreflight(t *testing.T) {
	f := newFixture(t)

	req, err := http.NewRequest(http.MethodOptions, f.server.URL+"/api/aqi", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://dashboard.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(mark("a"), mark("b"))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, []string{"a", "b", "handler"}, order)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
