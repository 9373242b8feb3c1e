package simulator

import (
	"context"
	"fmt"
	"time"

	"aqi_monitor/internal/models"
	"aqi_monitor/internal/storage"
	"aqi_monitor/pkg/logger"
)

const (
	seedMinValue = 20
	seedSpan     = 150 // Valores semeados ficam em [20, 170)
)

// Seed preenche um store vazio com count leituras espaçadas de spacing,
// terminando em now. Retorna quantas leituras foram gravadas.
func Seed(ctx context.Context, store storage.Store, g *Generator, count int, spacing time.Duration) (int, error) {
	if count <= 0 {
		return 0, nil
	}

	existing, err := store.List(ctx, 1)
	if err != nil {
		return 0, fmt.Errorf("erro ao verificar store antes de semear: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	now := g.clock()
	for i := count - 1; i >= 0; i-- {
		nr := models.NewReading{
			Value:     g.intn(seedSpan) + seedMinValue,
			Timestamp: now.Add(-time.Duration(i) * spacing),
		}
		if _, err := store.Append(ctx, nr); err != nil {
			return count - 1 - i, fmt.Errorf("erro ao semear leitura: %w", err)
		}
	}

	logger.Infof("Store vazio semeado com %d leituras", count)
	return count, nil
}
