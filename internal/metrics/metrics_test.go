package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"aqi_monitor/internal/feed"
	"aqi_monitor/internal/models"
	"aqi_monitor/internal/storage"
)

func TestWrapHandlerCountsRequests(t *testing.T) {
	m := NewMetrics()
	h := m.WrapHandler("/api/aqi", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/aqi", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/aqi", nil))

	require.Equal(t, 2.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/api/aqi", "201")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.StorageOp("append", time.Millisecond, nil)
	m.ObserveSnapshot(nil, feed.Snapshot{})
	m.RegisterClientGauge(func() int { return 0 })

	rec := httptest.NewRecorder()
	m.WrapHandler("/x", http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestObserveSnapshot(t *testing.T) {
	m := NewMetrics()
	r1 := &models.Reading{ID: 1, Value: 42, Timestamp: time.Now()}
	s1 := feed.Snapshot{State: feed.StateSimulated, Current: r1}

	m.ObserveSnapshot(nil, s1)
	require.Equal(t, 42.0, testutil.ToFloat64(m.currentValue))
	require.Equal(t, 1.0, testutil.ToFloat64(m.feedState.WithLabelValues("simulated")))
	require.Equal(t, 0.0, testutil.ToFloat64(m.feedState.WithLabelValues("no_feed")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.readingsTotal.WithLabelValues("simulated")))

	// Mesmo current, apenas conexão externa mudou
	s2 := s1
	s2.ExternalConnected = true
	m.ObserveSnapshot(&s1, s2)
	require.Equal(t, 1.0, testutil.ToFloat64(m.readingsTotal.WithLabelValues("simulated")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.externalConnected))
}

func TestInstrumentStore(t *testing.T) {
	m := NewMetrics()
	store := InstrumentStore(storage.NewMemoryStore(10), m)
	ctx := context.Background()

	_, err := store.Append(ctx, models.NewReading{Value: 10})
	require.NoError(t, err)
	_, err = store.Append(ctx, models.NewReading{Value: 999})
	require.Error(t, err)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = store.List(canceled, 10)
	require.Error(t, err)

	require.Equal(t, 0.0, testutil.ToFloat64(m.storageErrors.WithLabelValues("append")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.storageErrors.WithLabelValues("list")))
	require.NoError(t, store.Close())
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := NewMetrics()
	m.RegisterClientGauge(func() int { return 3 })

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	require.Contains(t, string(body), "aqi_websocket_clients 3")
	require.Contains(t, string(body), `aqi_feed_state{state="no_feed"} 1`)
}
