package simulator

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"aqi_monitor/internal/models"
	"aqi_monitor/internal/storage"
)

// fakeSink grava no MemoryStore e registra os anúncios
type fakeSink struct {
	store *storage.MemoryStore
	fail  bool

	mu        sync.Mutex
	recorded  []models.Reading
	announced []models.Reading
}

func (f *fakeSink) Record(ctx context.Context, nr models.NewReading) (models.Reading, error) {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return models.Reading{}, storage.Unavailable("append", errors.New("offline"))
	}

	r, err := f.store.Append(ctx, nr)
	if err == nil {
		f.mu.Lock()
		f.recorded = append(f.recorded, r)
		f.mu.Unlock()
	}
	return r, err
}

func (f *fakeSink) Announce(r models.Reading) {
	f.mu.Lock()
	f.announced = append(f.announced, r)
	f.mu.Unlock()
}

func (f *fakeSink) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.recorded), len(f.announced)
}

func TestServiceRecordsOnInterval(t *testing.T) {
	sink := &fakeSink{store: storage.NewMemoryStore(100)}
	g := NewGenerator(DefaultGeneratorConfig(), WithRand(rand.New(rand.NewSource(5))))
	svc := NewService(g, sink, 5*time.Millisecond, time.Second)

	svc.Start()
	svc.Start()
	require.True(t, svc.IsRunning())

	require.Eventually(t, func() bool {
		n, _ := sink.counts()
		return n >= 3
	}, 2*time.Second, 5*time.Millisecond)

	svc.Stop()
	svc.Stop()
	require.False(t, svc.IsRunning())

	n, _ := sink.counts()
	time.Sleep(30 * time.Millisecond)
	after, _ := sink.counts()
	require.Equal(t, n, after, "nenhuma gravação após Stop")

	list, err := sink.store.List(context.Background(), 100)
	require.NoError(t, err)
	require.Equal(t, 45, list[0].Value)
	for i := 1; i < len(list); i++ {
		require.True(t, list[i].Newer(list[i-1]))
	}

	last := svc.Last()
	require.NotNil(t, last)
	require.Equal(t, list[len(list)-1].ID, last.ID)
	require.Equal(t, int64(len(list)), svc.GetStats().Ticks)
}

func TestServiceResumesWalk(t *testing.T) {
	sink := &fakeSink{store: storage.NewMemoryStore(100)}
	cfg := DefaultGeneratorConfig()
	cfg.JumpProbability = 0
	svc := NewService(NewGenerator(cfg), sink, time.Millisecond, time.Second)

	svc.Resume(&models.Reading{ID: 10, Value: 300, Timestamp: time.Now()})
	svc.tick(context.Background())

	r := svc.Last()
	require.NotNil(t, r)
	require.InDelta(t, 300, r.Value, 5)
}

func TestServiceAnnouncesOnStorageFailure(t *testing.T) {
	sink := &fakeSink{store: storage.NewMemoryStore(100), fail: true}
	svc := NewService(NewGenerator(DefaultGeneratorConfig()), sink, time.Millisecond, time.Second)

	svc.tick(context.Background())
	svc.tick(context.Background())

	recorded, announced := sink.counts()
	require.Equal(t, 0, recorded)
	require.Equal(t, 2, announced)
	require.Equal(t, int64(2), svc.GetStats().Failures)
	require.NotNil(t, svc.Last())
}

func TestSeedEmptyStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store := storage.NewMemoryStore(100)
	g := NewGenerator(DefaultGeneratorConfig(), WithRand(rand.New(rand.NewSource(9))), WithClock(fixedClock(now)))

	n, err := Seed(ctx, store, g, 20, 15*time.Minute)
	require.NoError(t, err)
	require.Equal(t, 20, n)

	list, err := store.List(ctx, 100)
	require.NoError(t, err)
	require.Len(t, list, 20)
	require.True(t, list[19].Timestamp.Equal(now))
	require.True(t, list[0].Timestamp.Equal(now.Add(-19*15*time.Minute)))
	for _, r := range list {
		require.GreaterOrEqual(t, r.Value, 20)
		require.Less(t, r.Value, 170)
	}

	n, err = Seed(ctx, store, g, 20, 15*time.Minute)
	require.NoError(t, err)
	require.Equal(t, 0, n, "store não vazio não é semeado")
	require.Equal(t, 20, store.Len())
}
