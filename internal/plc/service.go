package plc

import (
	"context"
	"sync"
	"time"

	"aqi_monitor/internal/config"
	"aqi_monitor/internal/feed"
	"aqi_monitor/pkg/logger"
	"aqi_monitor/pkg/utils"
)

// Layout do bloco escrito no DB configurado
const (
	offsetValue     = 0  // INT  valor do AQI
	offsetBand      = 2  // INT  faixa (0 Good .. 3 Hazardous, -1 sem leitura)
	offsetState     = 4  // INT  estado da fonte (0 sem dados, 1 simulado, 2 externo)
	offsetConnected = 6  // BOOL bit 0: fonte externa conectada
	offsetReadingID = 8  // DINT ID da leitura
	offsetTimestamp = 12 // DINT timestamp unix em segundos
	blockSize       = 16
)

// blockWriter é o subconjunto do cliente S7 usado pelo serviço
type blockWriter interface {
	WriteDataBlock(dbNumber int, startOffset int, data []byte) error
	Disconnect()
}

// PLCService espelha o estado atual do AQI em um DB do PLC
type PLCService struct {
	client          blockWriter
	config          config.PLCConfig
	cancel          context.CancelFunc
	updateFrequency time.Duration
	lastSnapshot    *feed.Snapshot
	dirty           bool
	mutex           sync.RWMutex
	running         bool
	wg              sync.WaitGroup
}

// NewPLCService cria um novo serviço de PLC
func NewPLCService(cfg config.PLCConfig) *PLCService {
	return newPLCService(NewS7Client(cfg), cfg)
}

func newPLCService(client blockWriter, cfg config.PLCConfig) *PLCService {
	rate := cfg.UpdateRate
	if rate <= 0 {
		rate = time.Second
	}

	return &PLCService{
		client:          client,
		config:          cfg,
		updateFrequency: rate,
	}
}

// Start inicia o loop de escrita no PLC.
// A conexão é feita sob demanda, então um PLC fora do ar não impede o início.
func (s *PLCService) Start() error {
	if !s.config.Enabled {
		logger.Info("Serviço PLC desabilitado por configuração")
		return nil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.running {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.runUpdateLoop(ctx)

	s.running = true
	logger.Infof("Serviço PLC iniciado (DB%d, a cada %v)", s.config.DBNumber, s.updateFrequency)
	return nil
}

// Stop para o serviço de comunicação com o PLC
func (s *PLCService) Stop() {
	s.mutex.Lock()
	if !s.running {
		s.mutex.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mutex.Unlock()

	cancel()
	s.wg.Wait()
	s.client.Disconnect()
	logger.Info("Serviço PLC parado")
}

// IsRunning verifica se o serviço está em execução
func (s *PLCService) IsRunning() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.running
}

// UpdateSnapshot guarda o estado mais recente para o próximo ciclo de escrita
func (s *PLCService) UpdateSnapshot(snap feed.Snapshot) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.lastSnapshot = &snap
	s.dirty = true
}

// Follow acompanha os snapshots do seletor até o canal ser fechado
func (s *PLCService) Follow(snapshots <-chan feed.Snapshot) {
	go func() {
		for snap := range snapshots {
			s.UpdateSnapshot(snap)
		}
	}()
}

// runUpdateLoop executa o loop de atualização contínua para o PLC
func (s *PLCService) runUpdateLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.updateFrequency)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			s.flush()
		}
	}
}

// flush escreve o último snapshot se houve mudança desde a última escrita
func (s *PLCService) flush() {
	s.mutex.Lock()
	if !s.dirty || s.lastSnapshot == nil {
		s.mutex.Unlock()
		return
	}
	snap := *s.lastSnapshot
	s.mutex.Unlock()

	if err := s.client.WriteDataBlock(s.config.DBNumber, 0, encodeBlock(snap)); err != nil {
		logger.Warnf("Falha ao escrever estado do AQI no PLC: %v", err)
		return
	}

	s.mutex.Lock()
	// Só limpa se nenhum snapshot novo chegou durante a escrita
	if s.lastSnapshot != nil && s.lastSnapshot.UpdatedAt.Equal(snap.UpdatedAt) {
		s.dirty = false
	}
	s.mutex.Unlock()
	logger.Debugf("Estado do AQI enviado ao PLC (DB%d)", s.config.DBNumber)
}

// encodeBlock converte o snapshot no layout big-endian do DB
func encodeBlock(snap feed.Snapshot) []byte {
	block := make([]byte, blockSize)

	band := int16(-1)
	if snap.Status != nil {
		band = int16(snap.Status.Band)
	}
	copy(block[offsetBand:], utils.Int16ToBytes(band))
	copy(block[offsetState:], utils.Int16ToBytes(stateCode(snap.State)))

	if snap.ExternalConnected {
		block[offsetConnected] |= 1
	}

	if r := snap.Current; r != nil {
		copy(block[offsetValue:], utils.Int16ToBytes(int16(r.Value)))
		copy(block[offsetReadingID:], utils.IntToBytes(int(r.ID)))
		copy(block[offsetTimestamp:], utils.IntToBytes(int(r.Timestamp.Unix())))
	}

	return block
}

func stateCode(state feed.State) int16 {
	switch state {
	case feed.StateSimulated:
		return 1
	case feed.StateExternal:
		return 2
	}
	return 0
}
