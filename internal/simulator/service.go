package simulator

import (
	"context"
	"sync"
	"time"

	"aqi_monitor/internal/models"
	"aqi_monitor/pkg/logger"
)

// Sink recebe as leituras geradas pelo serviço
type Sink interface {
	// Record persiste a leitura e a publica, retornando a cópia armazenada
	Record(ctx context.Context, r models.NewReading) (models.Reading, error)
	// Announce publica uma leitura sem persisti-la
	Announce(r models.Reading)
}

// Service executa o gerador em intervalo fixo
type Service struct {
	generator *Generator
	sink      Sink
	interval  time.Duration
	timeout   time.Duration

	mutex   sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	last    *models.Reading

	stats struct {
		ticks    int64
		jumps    int64
		failures int64
	}
}

// Stats resume a atividade do serviço
type Stats struct {
	Ticks    int64 `json:"ticks"`
	Jumps    int64 `json:"jumps"`
	Failures int64 `json:"failures"`
}

// NewService cria o serviço. timeout limita cada gravação no store.
func NewService(g *Generator, sink Sink, interval, timeout time.Duration) *Service {
	return &Service{
		generator: g,
		sink:      sink,
		interval:  interval,
		timeout:   timeout,
	}
}

// Resume faz o passeio continuar a partir de uma leitura existente
func (s *Service) Resume(last *models.Reading) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if last == nil {
		s.last = nil
		return
	}
	r := *last
	s.last = &r
}

// Start inicia o loop do simulador. Chamadas repetidas não têm efeito.
func (s *Service) Start() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go s.run(ctx)

	logger.Infof("Simulador iniciado (intervalo %s)", s.interval)
}

// Stop para o loop e espera o ciclo em andamento terminar
func (s *Service) Stop() {
	s.mutex.Lock()
	if !s.running {
		s.mutex.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mutex.Unlock()

	s.wg.Wait()
	logger.Info("Simulador parado")
}

// IsRunning verifica se o serviço está em execução
func (s *Service) IsRunning() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.running
}

// Last retorna a última leitura gerada
func (s *Service) Last() *models.Reading {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.last == nil {
		return nil
	}
	r := *s.last
	return &r
}

// GetStats retorna os contadores do serviço
func (s *Service) GetStats() Stats {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return Stats{
		Ticks:    s.stats.ticks,
		Jumps:    s.stats.jumps,
		Failures: s.stats.failures,
	}
}

// run é o loop principal. O ticker descarta disparos enquanto um ciclo
// ainda está em andamento, então os ciclos nunca se sobrepõem.
func (s *Service) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick gera, grava e publica uma leitura
func (s *Service) tick(ctx context.Context) {
	prev := s.Last()
	next, jumped := s.generator.Step(prev)

	if jumped {
		logger.Debugf("Salto no simulador: %d", next.Value)
	}

	writeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	stored, err := s.sink.Record(writeCtx, models.NewReading{Value: next.Value, Timestamp: next.Timestamp})
	cancel()

	s.mutex.Lock()
	s.stats.ticks++
	if jumped {
		s.stats.jumps++
	}
	if err != nil {
		s.stats.failures++
	}
	s.mutex.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		// O painel continua recebendo a leitura mesmo sem armazenamento
		logger.Warnf("Falha ao gravar leitura simulada: %v", err)
		s.sink.Announce(next)
		stored = next
	}

	s.mutex.Lock()
	s.last = &stored
	s.mutex.Unlock()
}
