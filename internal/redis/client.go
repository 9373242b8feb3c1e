package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"aqi_monitor/internal/config"
	"aqi_monitor/pkg/logger"
)

// Client encapsula a conexão com o Redis e o prefixo de chaves
type Client struct {
	client    *redis.Client
	prefix    string
	config    config.RedisConfig
	connected bool
	mutex     sync.RWMutex
}

// NewClient cria um novo cliente Redis sem conectar
func NewClient(cfg config.RedisConfig) *Client {
	return &Client{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr(),
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		prefix: cfg.Prefix,
		config: cfg,
	}
}

// Connect testa a conexão com ping
func (c *Client) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := c.client.Ping(ctx).Result(); err != nil {
		c.setConnected(false)
		return fmt.Errorf("erro ao conectar ao Redis: %w", err)
	}

	c.setConnected(true)
	logger.Infof("Conexão estabelecida com Redis em %s", c.config.Addr())
	return nil
}

// IsConnected informa o resultado da última operação
func (c *Client) IsConnected() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.connected
}

func (c *Client) setConnected(v bool) {
	c.mutex.Lock()
	c.connected = v
	c.mutex.Unlock()
}

// Close fecha a conexão com o Redis
func (c *Client) Close() error {
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("erro ao fechar conexão Redis: %w", err)
	}
	c.setConnected(false)
	logger.Info("Conexão com Redis fechada")
	return nil
}

// FormatKey formata uma chave com o prefixo configurado
func (c *Client) FormatKey(key string) string {
	return fmt.Sprintf("%s:%s", c.prefix, key)
}

// GetClient retorna o cliente Redis subjacente
func (c *Client) GetClient() *redis.Client {
	return c.client
}
