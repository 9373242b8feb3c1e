package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"aqi_monitor/internal/models"
	"aqi_monitor/internal/storage"
	"aqi_monitor/pkg/logger"
)

// Chaves usadas pelo store, relativas ao prefixo
const (
	keySequence = "readings:seq"      // Contador de IDs (INCR)
	keyReadings = "readings"          // Hash id -> JSON da leitura
	keyTimeline = "readings:timeline" // Conjunto ordenado por timestamp
)

// Store guarda as leituras em um hash e as ordena em um sorted set.
// O score é o timestamp em microssegundos; o membro é o ID com zeros à
// esquerda, de modo que empates de timestamp são ordenados pelo ID.
type Store struct {
	client    *Client
	retention int
	writeMu   sync.Mutex
	now       func() time.Time
}

// NewStore cria o store sobre um cliente já conectado
func NewStore(client *Client, retention int) *Store {
	return &Store{
		client:    client,
		retention: retention,
		now:       time.Now,
	}
}

// Append grava a leitura e aplica a retenção em uma pipeline
func (s *Store) Append(ctx context.Context, nr models.NewReading) (models.Reading, error) {
	nr, err := storage.Validate(nr, s.now())
	if err != nil {
		return models.Reading{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	rdb := s.client.GetClient()

	id, err := rdb.Incr(ctx, s.client.FormatKey(keySequence)).Result()
	if err != nil {
		return models.Reading{}, s.unavailable("gerar ID", err)
	}

	r := models.Reading{ID: id, Value: nr.Value, Timestamp: nr.Timestamp}
	data, err := json.Marshal(r)
	if err != nil {
		return models.Reading{}, fmt.Errorf("erro ao serializar leitura: %w", err)
	}

	pipe := rdb.TxPipeline()
	pipe.HSet(ctx, s.client.FormatKey(keyReadings), member(id), data)
	pipe.ZAdd(ctx, s.client.FormatKey(keyTimeline), &redis.Z{
		Score:  score(r.Timestamp),
		Member: member(id),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return models.Reading{}, s.unavailable("gravar leitura", err)
	}
	s.client.setConnected(true)

	if s.retention > 0 {
		if err := s.trim(ctx); err != nil {
			logger.Warnf("Falha ao aplicar retenção no Redis: %v", err)
		}
	}

	return r, nil
}

// trim remove as leituras mais antigas além da retenção
func (s *Store) trim(ctx context.Context) error {
	rdb := s.client.GetClient()
	timeline := s.client.FormatKey(keyTimeline)
	stop := int64(-(s.retention + 1))

	victims, err := rdb.ZRange(ctx, timeline, 0, stop).Result()
	if err != nil || len(victims) == 0 {
		return err
	}

	pipe := rdb.TxPipeline()
	pipe.ZRemRangeByRank(ctx, timeline, 0, stop)
	pipe.HDel(ctx, s.client.FormatKey(keyReadings), victims...)
	_, err = pipe.Exec(ctx)
	return err
}

// List retorna as leituras mais recentes, da mais antiga para a mais nova
func (s *Store) List(ctx context.Context, limit int) ([]models.Reading, error) {
	if limit <= 0 {
		return []models.Reading{}, nil
	}

	rdb := s.client.GetClient()

	ids, err := rdb.ZRevRange(ctx, s.client.FormatKey(keyTimeline), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, s.unavailable("listar leituras", err)
	}
	if len(ids) == 0 {
		return []models.Reading{}, nil
	}

	raw, err := rdb.HMGet(ctx, s.client.FormatKey(keyReadings), ids...).Result()
	if err != nil {
		return nil, s.unavailable("ler leituras", err)
	}

	readings := make([]models.Reading, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		str, ok := raw[i].(string)
		if !ok {
			// Removida por um trim concorrente entre ZREVRANGE e HMGET
			continue
		}
		var r models.Reading
		if err := json.Unmarshal([]byte(str), &r); err != nil {
			logger.Warnf("Leitura %s corrompida no Redis: %v", ids[i], err)
			continue
		}
		r.Timestamp = r.Timestamp.UTC()
		readings = append(readings, r)
	}
	return readings, nil
}

// Close fecha o cliente
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) unavailable(op string, err error) error {
	s.client.setConnected(false)
	return storage.Unavailable(op, err)
}

func member(id int64) string {
	return fmt.Sprintf("%019d", id)
}

func score(t time.Time) float64 {
	return float64(t.UnixMicro())
}

