package simulator

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"aqi_monitor/internal/config"
	"aqi_monitor/internal/models"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNextSeed(t *testing.T) {
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	g := NewGenerator(DefaultGeneratorConfig(), WithClock(fixedClock(now)))

	r := g.Next(nil)
	require.Equal(t, 45, r.Value)
	require.Equal(t, now, r.Timestamp)
}

func TestNextStepBounded(t *testing.T) {
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	cfg := DefaultGeneratorConfig()
	cfg.JumpProbability = 0
	g := NewGenerator(cfg, WithRand(rand.New(rand.NewSource(1))), WithClock(fixedClock(now)))

	prev := models.Reading{ID: 7, Value: 100}
	for i := 0; i < 1000; i++ {
		next := g.Next(&prev)
		delta := next.Value - prev.Value
		require.LessOrEqual(t, delta, 5)
		require.GreaterOrEqual(t, delta, -5)
		require.Equal(t, prev.ID+1, next.ID)
		require.Equal(t, now, next.Timestamp)
		prev = next
	}
}

func TestNextAlwaysInRange(t *testing.T) {
	cfg := DefaultGeneratorConfig()
	cfg.JumpProbability = 0.3
	g := NewGenerator(cfg, WithRand(rand.New(rand.NewSource(42))))

	jumps := 0
	prev := models.Reading{Value: 0}
	for i := 0; i < 5000; i++ {
		next, jumped := g.Step(&prev)
		if jumped {
			jumps++
			require.Less(t, next.Value, 300)
		}
		require.GreaterOrEqual(t, next.Value, models.MinAQI)
		require.LessOrEqual(t, next.Value, models.MaxAQI)
		prev = next
	}
	require.Greater(t, jumps, 0)
}

func TestNextClampsAtEdges(t *testing.T) {
	cfg := DefaultGeneratorConfig()
	cfg.JumpProbability = 0
	cfg.MaxStep = 50
	g := NewGenerator(cfg, WithRand(rand.New(rand.NewSource(3))))

	for i := 0; i < 200; i++ {
		low := g.Next(&models.Reading{Value: 0})
		require.GreaterOrEqual(t, low.Value, 0)
		high := g.Next(&models.Reading{Value: 500})
		require.LessOrEqual(t, high.Value, 500)
	}
}

func TestNextWithoutStep(t *testing.T) {
	cfg := DefaultGeneratorConfig()
	cfg.MaxStep = 0
	cfg.JumpProbability = 0
	g := NewGenerator(cfg)

	require.Equal(t, 80, g.Next(&models.Reading{Value: 80}).Value)
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default().Simulator
	require.Equal(t, DefaultGeneratorConfig(), FromConfig(cfg))
}
