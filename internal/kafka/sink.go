package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"aqi_monitor/internal/config"
	"aqi_monitor/internal/feed"
	"aqi_monitor/internal/models"
	"aqi_monitor/pkg/logger"
)

// writeTimeout limita cada escrita no broker
const writeTimeout = 5 * time.Second

// ReadingEvent é o payload publicado a cada nova leitura atual
type ReadingEvent struct {
	EventID     string    `json:"eventId"`
	State       string    `json:"state"`
	ReadingID   int64     `json:"readingId"`
	Value       int       `json:"value"`
	Band        string    `json:"band"`
	Timestamp   time.Time `json:"timestamp"`
	PublishedAt time.Time `json:"publishedAt"`
}

// messageWriter é o subconjunto de *kafka.Writer usado pelo sink
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Stats resume a atividade do sink
type Stats struct {
	Published int64 `json:"published"`
	Failures  int64 `json:"failures"`
}

// Sink publica a leitura atual do seletor em um tópico Kafka
type Sink struct {
	writer messageWriter
	topic  string
	now    func() time.Time

	last      *models.Reading
	published atomic.Int64
	failures  atomic.Int64
	wg        sync.WaitGroup
}

// NewSink cria o sink com um writer síncrono particionado pela chave
func NewSink(cfg config.KafkaConfig) *Sink {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Async:        false,
	}
	return newSink(w, cfg.Topic)
}

func newSink(w messageWriter, topic string) *Sink {
	return &Sink{writer: w, topic: topic, now: time.Now}
}

// Follow publica cada mudança de leitura atual até o canal ser fechado
func (s *Sink) Follow(snapshots <-chan feed.Snapshot) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for snap := range snapshots {
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			if err := s.Handle(ctx, snap); err != nil {
				logger.Warnf("Falha ao publicar leitura no Kafka (%s): %v", s.topic, err)
			}
			cancel()
		}
	}()
}

// Handle publica o snapshot se a leitura atual mudou desde a última publicação
func (s *Sink) Handle(ctx context.Context, snap feed.Snapshot) error {
	if snap.Current == nil || sameReading(s.last, snap.Current) {
		return nil
	}

	msg, err := encode(snap, s.now())
	if err != nil {
		return err
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		s.failures.Add(1)
		return err
	}

	current := *snap.Current
	s.last = &current
	s.published.Add(1)
	return nil
}

// GetStats retorna os contadores do sink
func (s *Sink) GetStats() Stats {
	return Stats{Published: s.published.Load(), Failures: s.failures.Load()}
}

// Close espera o fim do consumo e fecha o writer
func (s *Sink) Close() error {
	s.wg.Wait()
	return s.writer.Close()
}

// encode monta a mensagem; a chave é o estado da fonte para manter a
// ordem das leituras de uma mesma origem na mesma partição
func encode(snap feed.Snapshot, now time.Time) (kafka.Message, error) {
	ev := ReadingEvent{
		EventID:     uuid.NewString(),
		State:       string(snap.State),
		ReadingID:   snap.Current.ID,
		Value:       snap.Current.Value,
		Timestamp:   snap.Current.Timestamp.UTC(),
		PublishedAt: now.UTC(),
	}
	if snap.Status != nil {
		ev.Band = snap.Status.Band.String()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, err
	}

	return kafka.Message{
		Key:   []byte(ev.State),
		Value: payload,
		Time:  now,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "event-id", Value: []byte(ev.EventID)},
		},
	}, nil
}

func sameReading(a, b *models.Reading) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID && a.Value == b.Value && a.Timestamp.Equal(b.Timestamp)
}
