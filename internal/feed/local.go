package feed

import (
	"context"

	"aqi_monitor/internal/models"
	"aqi_monitor/internal/storage"
	"aqi_monitor/pkg/logger"
)

// Publisher recebe eventos de uma fonte
type Publisher interface {
	Publish(ev Event) bool
}

// LocalSource grava leituras no store e anuncia o resultado ao seletor
type LocalSource struct {
	store       storage.Store
	publisher   Publisher
	historySize int
}

// NewLocalSource cria a fonte local
func NewLocalSource(store storage.Store, publisher Publisher, historySize int) *LocalSource {
	return &LocalSource{
		store:       store,
		publisher:   publisher,
		historySize: historySize,
	}
}

// Record persiste a leitura e publica a leitura armazenada junto com o
// histórico relido do store
func (l *LocalSource) Record(ctx context.Context, nr models.NewReading) (models.Reading, error) {
	r, err := l.store.Append(ctx, nr)
	if err != nil {
		return models.Reading{}, err
	}

	history, err := l.store.List(ctx, l.historySize)
	if err != nil {
		logger.Warnf("Falha ao reler histórico após gravação: %v", err)
		history = nil
	}

	l.publisher.Publish(Event{
		Origin:  OriginLocal,
		Kind:    EventReading,
		Reading: &r,
		History: history,
	})
	return r, nil
}

// Announce publica uma leitura que não foi persistida
func (l *LocalSource) Announce(r models.Reading) {
	l.publisher.Publish(Event{Origin: OriginLocal, Kind: EventReading, Reading: &r})
}

// Load publica o histórico armazenado e retorna a leitura mais recente
func (l *LocalSource) Load(ctx context.Context) (*models.Reading, error) {
	history, err := l.store.List(ctx, l.historySize)
	if err != nil {
		return nil, err
	}

	l.publisher.Publish(Event{Origin: OriginLocal, Kind: EventHistory, History: history})

	if len(history) == 0 {
		return nil, nil
	}
	last := history[len(history)-1]
	return &last, nil
}
