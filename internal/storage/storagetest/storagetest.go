// Package storagetest reúne os testes de conformidade comuns a todas as
// implementações de storage.Store.
package storagetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"aqi_monitor/internal/models"
	"aqi_monitor/internal/storage"
)

// Factory cria um store vazio com o limite de retenção informado
type Factory func(t *testing.T, retention int) storage.Store

// Run executa a bateria de conformidade contra a implementação criada por newStore
func Run(t *testing.T, newStore Factory) {
	t.Run("RoundTrip", func(t *testing.T) { testRoundTrip(t, newStore) })
	t.Run("Retention", func(t *testing.T) { testRetention(t, newStore) })
	t.Run("OrderByTimestamp", func(t *testing.T) { testOrder(t, newStore) })
	t.Run("Validation", func(t *testing.T) { testValidation(t, newStore) })
	t.Run("ConcurrentAppend", func(t *testing.T) { testConcurrent(t, newStore) })
	t.Run("EmptyList", func(t *testing.T) { testEmpty(t, newStore) })
}

func testRoundTrip(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, 100)

	ts := time.Date(2024, 3, 10, 12, 30, 15, 123456000, time.UTC)
	stored, err := s.Append(ctx, models.NewReading{Value: 77, Timestamp: ts})
	require.NoError(t, err)
	require.NotZero(t, stored.ID)
	require.Equal(t, 77, stored.Value)
	require.True(t, ts.Equal(stored.Timestamp))

	list, err := s.List(ctx, 100)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, stored.ID, list[0].ID)
	require.Equal(t, stored.Value, list[0].Value)
	require.True(t, stored.Timestamp.Equal(list[0].Timestamp))
}

func testRetention(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, 100)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []int64
	for i := 0; i < 105; i++ {
		r, err := s.Append(ctx, models.NewReading{Value: i % 500, Timestamp: base.Add(time.Duration(i) * time.Second)})
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}

	list, err := s.List(ctx, 100)
	require.NoError(t, err)
	require.Len(t, list, 100)
	for i, r := range list {
		require.Equal(t, ids[i+5], r.ID)
		require.Equal(t, (i+5)%500, r.Value)
	}

	last, err := s.List(ctx, 3)
	require.NoError(t, err)
	require.Len(t, last, 3)
	require.Equal(t, ids[104], last[2].ID)
	require.Equal(t, ids[102], last[0].ID)
}

func testOrder(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, 100)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := s.Append(ctx, models.NewReading{Value: 3, Timestamp: base.Add(3 * time.Minute)})
	require.NoError(t, err)
	_, err = s.Append(ctx, models.NewReading{Value: 1, Timestamp: base.Add(1 * time.Minute)})
	require.NoError(t, err)
	a, err := s.Append(ctx, models.NewReading{Value: 2, Timestamp: base.Add(2 * time.Minute)})
	require.NoError(t, err)
	b, err := s.Append(ctx, models.NewReading{Value: 4, Timestamp: base.Add(2 * time.Minute)})
	require.NoError(t, err)

	list, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 4)
	require.Equal(t, []int{1, 2, 4, 3}, values(list))
	require.Equal(t, a.ID, list[1].ID)
	require.Equal(t, b.ID, list[2].ID)
}

func testValidation(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, 100)

	for _, v := range []int{-1, 501} {
		_, err := s.Append(ctx, models.NewReading{Value: v})
		ve, ok := storage.AsValidation(err)
		require.True(t, ok, "valor %d deveria ser rejeitado", v)
		require.Equal(t, "value", ve.Field)
	}

	r, err := s.Append(ctx, models.NewReading{Value: 500})
	require.NoError(t, err)
	require.False(t, r.Timestamp.IsZero())

	list, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func testConcurrent(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, 0)

	const workers, perWorker = 8, 25
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]bool)
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				r, err := s.Append(ctx, models.NewReading{Value: w*10 + i%10})
				if !assertNoError(t, err) {
					return
				}
				mu.Lock()
				seen[r.ID] = true
				mu.Unlock()
				_, _ = s.List(ctx, 20)
			}
		}(w)
	}
	wg.Wait()

	require.Len(t, seen, workers*perWorker)
	list, err := s.List(ctx, workers*perWorker)
	require.NoError(t, err)
	require.Len(t, list, workers*perWorker)
}

func testEmpty(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, 100)

	list, err := s.List(ctx, 100)
	require.NoError(t, err)
	require.Empty(t, list)

	latest, err := storage.Latest(ctx, s)
	require.NoError(t, err)
	require.Nil(t, latest)
}

func assertNoError(t *testing.T, err error) bool {
	if err != nil {
		t.Errorf("append concorrente falhou: %v", err)
		return false
	}
	return true
}

func values(list []models.Reading) []int {
	out := make([]int, len(list))
	for i, r := range list {
		out[i] = r.Value
	}
	return out
}
