package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config representa a configuração completa da aplicação
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
	Feed      FeedConfig      `mapstructure:"feed"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	PLC       PLCConfig       `mapstructure:"plc"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig contém configurações do servidor HTTP/WebSocket
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	ListLimit       int           `mapstructure:"list_limit"`
}

// StorageConfig seleciona e limita o armazenamento de leituras
type StorageConfig struct {
	Backend   string        `mapstructure:"backend"`   // memory, postgres ou redis
	Retention int           `mapstructure:"retention"` // 0 = sem limite
	Timeout   time.Duration `mapstructure:"timeout"`
}

// PostgresConfig contém configurações do PostgreSQL
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// RedisConfig contém configurações do Redis
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// SimulatorConfig contém os parâmetros do passeio aleatório
type SimulatorConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Interval        time.Duration `mapstructure:"interval"`
	InitialValue    int           `mapstructure:"initial_value"`
	MaxStep         int           `mapstructure:"max_step"`
	JumpProbability float64       `mapstructure:"jump_probability"`
	JumpCeiling     int           `mapstructure:"jump_ceiling"`
	SeedOnEmpty     bool          `mapstructure:"seed_on_empty"`
	SeedCount       int           `mapstructure:"seed_count"`
	SeedSpacing     time.Duration `mapstructure:"seed_spacing"`
}

// FeedConfig contém os tamanhos de janela do seletor de fonte
type FeedConfig struct {
	HistorySize   int `mapstructure:"history_size"`
	DisplayWindow int `mapstructure:"display_window"`
}

// MQTTConfig contém configurações da fonte externa via MQTT
type MQTTConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Broker         string        `mapstructure:"broker"`
	Port           int           `mapstructure:"port"`
	ClientID       string        `mapstructure:"client_id"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	TopicPrefix    string        `mapstructure:"topic_prefix"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// KafkaConfig contém configurações do fluxo de eventos de leitura
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// PLCConfig contém configurações para comunicação com o PLC S7-1500
type PLCConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Rack         int           `mapstructure:"rack"`
	Slot         int           `mapstructure:"slot"`
	DBNumber     int           `mapstructure:"db_number"`
	UpdateRate   time.Duration `mapstructure:"update_rate"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DiscoveryConfig controla o anúncio mDNS na rede local
type DiscoveryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LogConfig contém configurações de log
type LogConfig struct {
	Level string `mapstructure:"level"`
	Dir   string `mapstructure:"dir"` // Vazio desabilita log em arquivo
}

// Load carrega a configuração: padrões, depois config.yaml em path (opcional),
// depois variáveis de ambiente com prefixo AQI_ (ex.: AQI_STORAGE_BACKEND)
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.AddConfigPath(path)
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("AQI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("erro ao ler arquivo de configuração: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("erro ao decodificar configuração: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejeita valores impossíveis
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port inválida: %d", c.Server.Port))
	}
	if c.Server.ListLimit <= 0 {
		errs = append(errs, fmt.Errorf("server.list_limit deve ser positivo"))
	}

	switch c.Storage.Backend {
	case BackendMemory, BackendPostgres, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("storage.backend desconhecido: %q", c.Storage.Backend))
	}
	if c.Storage.Retention < 0 {
		errs = append(errs, fmt.Errorf("storage.retention não pode ser negativa"))
	}
	if c.Storage.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("storage.timeout deve ser positivo"))
	}

	if c.Simulator.Interval <= 0 {
		errs = append(errs, fmt.Errorf("simulator.interval deve ser positivo"))
	}
	if c.Simulator.InitialValue < 0 || c.Simulator.InitialValue > 500 {
		errs = append(errs, fmt.Errorf("simulator.initial_value fora de [0, 500]"))
	}
	if c.Simulator.MaxStep < 0 {
		errs = append(errs, fmt.Errorf("simulator.max_step não pode ser negativo"))
	}
	if c.Simulator.JumpProbability < 0 || c.Simulator.JumpProbability > 1 {
		errs = append(errs, fmt.Errorf("simulator.jump_probability fora de [0, 1]"))
	}
	if c.Simulator.JumpCeiling <= 0 {
		errs = append(errs, fmt.Errorf("simulator.jump_ceiling deve ser positivo"))
	}

	if c.Feed.HistorySize <= 0 || c.Feed.DisplayWindow <= 0 {
		errs = append(errs, fmt.Errorf("feed.history_size e feed.display_window devem ser positivos"))
	}

	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		errs = append(errs, fmt.Errorf("mqtt.broker obrigatório quando mqtt.enabled"))
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		errs = append(errs, fmt.Errorf("kafka.brokers e kafka.topic obrigatórios quando kafka.enabled"))
	}

	return errors.Join(errs...)
}

// ConnString retorna a string de conexão do PostgreSQL
func (c PostgresConfig) ConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// Addr retorna o endereço host:porta do Redis
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BrokerURL retorna a URL do broker MQTT, adicionando esquema e porta se faltarem
func (c MQTTConfig) BrokerURL() string {
	broker := c.Broker

	for _, scheme := range []string{"tcp://", "ssl://", "ws://", "wss://"} {
		if strings.HasPrefix(broker, scheme) {
			if !strings.Contains(broker[len(scheme):], ":") {
				broker = fmt.Sprintf("%s:%d", broker, c.Port)
			}
			return broker
		}
	}

	// http(s) é convertido para o esquema MQTT equivalente
	if host, ok := strings.CutPrefix(broker, "http://"); ok {
		return "tcp://" + withPort(host, c.Port)
	}
	if host, ok := strings.CutPrefix(broker, "https://"); ok {
		return "ssl://" + withPort(host, c.Port)
	}

	return "tcp://" + withPort(broker, c.Port)
}

func withPort(host string, port int) string {
	if strings.Contains(host, ":") {
		return host
	}
	return fmt.Sprintf("%s:%d", host, port)
}
