package redis

import (
	"context"
	"fmt"
	"net"
	"os"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"aqi_monitor/internal/config"
	"aqi_monitor/internal/models"
	"aqi_monitor/internal/storage"
	"aqi_monitor/internal/storage/storagetest"
)

// newTestClient conecta ao Redis de AQI_TEST_REDIS_ADDR com um prefixo exclusivo
func newTestClient(t *testing.T) *Client {
	addr := os.Getenv("AQI_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("AQI_TEST_REDIS_ADDR não definido")
	}

	cfg := config.Default().Redis
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	cfg.Host, cfg.Port = host, port
	cfg.Prefix = fmt.Sprintf("aqi_test_%d", time.Now().UnixNano())

	c := NewClient(cfg)
	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := c.GetClient().Keys(ctx, cfg.Prefix+":*").Result()
		if len(keys) > 0 {
			c.GetClient().Del(ctx, keys...)
		}
		_ = c.Close()
	})
	return c
}

func TestStoreConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T, retention int) storage.Store {
		return NewStore(newTestClient(t), retention)
	})
}

func TestStoreAppendKeys(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	s := NewStore(c, 10)

	_, err := s.Append(ctx, models.NewReading{Value: 123})
	require.NoError(t, err)

	// A leitura atual vem da timeline; não há chave separada para ela
	keys, err := c.GetClient().Keys(ctx, c.FormatKey("*")).Result()
	require.NoError(t, err)
	sort.Strings(keys)
	require.Equal(t, []string{
		c.FormatKey(keyReadings),
		c.FormatKey(keySequence),
		c.FormatKey(keyTimeline),
	}, keys)
}

func TestMemberOrdering(t *testing.T) {
	members := []string{member(10), member(9), member(100), member(1)}
	sort.Strings(members)
	require.Equal(t, []string{member(1), member(9), member(10), member(100)}, members)
}

func TestScoreMicrosecondPrecision(t *testing.T) {
	a := time.Date(2024, 1, 1, 0, 0, 0, 1000, time.UTC)
	b := a.Add(time.Microsecond)
	require.Less(t, score(a), score(b))
}
