// Package simulator produz leituras de AQI por passeio aleatório limitado.
package simulator

import (
	"math/rand"
	"sync"
	"time"

	"aqi_monitor/internal/config"
	"aqi_monitor/internal/models"
)

// GeneratorConfig contém os parâmetros do passeio aleatório
type GeneratorConfig struct {
	InitialValue    int     // Valor da primeira leitura
	MaxStep         int     // Variação máxima por passo, em módulo
	JumpProbability float64 // Chance de um salto por passo
	JumpCeiling     int     // Saltos sorteiam em [0, JumpCeiling)
}

// DefaultGeneratorConfig retorna os parâmetros padrão
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		InitialValue:    45,
		MaxStep:         5,
		JumpProbability: 0.02,
		JumpCeiling:     300,
	}
}

// FromConfig extrai os parâmetros do gerador da configuração do simulador
func FromConfig(cfg config.SimulatorConfig) GeneratorConfig {
	return GeneratorConfig{
		InitialValue:    cfg.InitialValue,
		MaxStep:         cfg.MaxStep,
		JumpProbability: cfg.JumpProbability,
		JumpCeiling:     cfg.JumpCeiling,
	}
}

// Generator calcula a próxima leitura a partir da anterior.
// Fora a fonte aleatória, não guarda estado.
type Generator struct {
	cfg   GeneratorConfig
	mu    sync.Mutex // Protege rng, que não é seguro para uso concorrente
	rng   *rand.Rand
	clock func() time.Time
}

// Option configura um Generator
type Option func(*Generator)

// WithRand injeta a fonte aleatória
func WithRand(rng *rand.Rand) Option {
	return func(g *Generator) { g.rng = rng }
}

// WithClock injeta o relógio usado nos timestamps
func WithClock(clock func() time.Time) Option {
	return func(g *Generator) { g.clock = clock }
}

// NewGenerator cria um gerador com os parâmetros informados
func NewGenerator(cfg GeneratorConfig, opts ...Option) *Generator {
	g := &Generator{
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Next retorna a próxima leitura. prev nil produz a leitura inicial.
func (g *Generator) Next(prev *models.Reading) models.Reading {
	r, _ := g.Step(prev)
	return r
}

// Step é como Next, mas também informa se houve salto
func (g *Generator) Step(prev *models.Reading) (models.Reading, bool) {
	now := g.clock()

	if prev == nil {
		return models.Reading{ID: 1, Value: clamp(g.cfg.InitialValue), Timestamp: now}, false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	value := prev.Value
	if g.cfg.MaxStep > 0 {
		value += g.rng.Intn(2*g.cfg.MaxStep+1) - g.cfg.MaxStep
	}
	value = clamp(value)

	jumped := false
	if g.cfg.JumpProbability > 0 && g.cfg.JumpCeiling > 0 && g.rng.Float64() < g.cfg.JumpProbability {
		value = clamp(g.rng.Intn(g.cfg.JumpCeiling))
		jumped = true
	}

	return models.Reading{ID: prev.ID + 1, Value: value, Timestamp: now}, jumped
}

// intn sorteia em [0, n) sob o mesmo lock do passo
func (g *Generator) intn(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Intn(n)
}

func clamp(v int) int {
	if v < models.MinAQI {
		return models.MinAQI
	}
	if v > models.MaxAQI {
		return models.MaxAQI
	}
	return v
}
