package plc

import (
	"fmt"
	"sync"
	"time"

	"aqi_monitor/internal/config"
	"aqi_monitor/pkg/logger"

	"github.com/robinson/gos7"
)

// S7Client encapsula a comunicação com o PLC S7-1500
type S7Client struct {
	client       gos7.Client
	handler      *gos7.TCPClientHandler
	config       config.PLCConfig
	connected    bool
	lastError    error
	connectMutex sync.Mutex
}

// NewS7Client cria um novo cliente para PLC S7
func NewS7Client(cfg config.PLCConfig) *S7Client {
	return &S7Client{
		config:    cfg,
		connected: false,
	}
}

// Connect estabelece conexão com o PLC
func (c *S7Client) Connect() error {
	c.connectMutex.Lock()
	defer c.connectMutex.Unlock()
	return c.connectLocked()
}

func (c *S7Client) connectLocked() error {
	if c.connected {
		return nil
	}

	// Desconectar se já houver conexão anterior
	if c.handler != nil {
		c.handler.Close()
	}

	handler := gos7.NewTCPClientHandler(c.config.Host, c.config.Rack, c.config.Slot)
	handler.Timeout = max(c.config.ReadTimeout, c.config.WriteTimeout)
	handler.IdleTimeout = 70 * time.Second

	if err := handler.Connect(); err != nil {
		c.lastError = fmt.Errorf("erro ao conectar ao PLC: %w", err)
		logger.Error("Falha ao conectar ao PLC", err)
		return c.lastError
	}

	c.handler = handler
	c.client = gos7.NewClient(handler)
	c.connected = true
	logger.Infof("Conectado ao PLC em %s (Rack: %d, Slot: %d)",
		c.config.Host, c.config.Rack, c.config.Slot)

	return nil
}

// Disconnect fecha a conexão com o PLC
func (c *S7Client) Disconnect() {
	c.connectMutex.Lock()
	defer c.connectMutex.Unlock()

	if c.handler != nil {
		c.handler.Close()
		c.handler = nil
		c.client = nil
		c.connected = false
		logger.Info("Desconectado do PLC")
	}
}

// IsConnected verifica se o cliente está conectado
func (c *S7Client) IsConnected() bool {
	c.connectMutex.Lock()
	defer c.connectMutex.Unlock()
	return c.connected
}

// WriteDataBlock escreve em um bloco de dados do PLC, reconectando se preciso
func (c *S7Client) WriteDataBlock(dbNumber int, startOffset int, data []byte) error {
	c.connectMutex.Lock()
	defer c.connectMutex.Unlock()

	if err := c.connectLocked(); err != nil {
		return err
	}

	if err := c.client.AGWriteDB(dbNumber, startOffset, len(data), data); err != nil {
		c.connected = false
		c.lastError = fmt.Errorf("erro ao escrever DB%d: %w", dbNumber, err)
		return c.lastError
	}

	return nil
}

// GetLastError retorna o último erro ocorrido
func (c *S7Client) GetLastError() error {
	c.connectMutex.Lock()
	defer c.connectMutex.Unlock()
	return c.lastError
}
