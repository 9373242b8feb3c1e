package config

import (
	"time"

	"github.com/spf13/viper"
)

// Backends de armazenamento suportados
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Default retorna a configuração padrão
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			ListLimit:       100,
		},
		Storage: StorageConfig{
			Backend:   BackendMemory,
			Retention: 100,
			Timeout:   5 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Password: "postgres",
			DBName:   "aqi",
			SSLMode:  "disable",
			Table:    "aqi_readings",
			MaxConns: 4,
		},
		Redis: RedisConfig{
			Host:   "localhost",
			Port:   6379,
			DB:     0,
			Prefix: "aqi",
		},
		Simulator: SimulatorConfig{
			Enabled:         true,
			Interval:        3 * time.Second,
			InitialValue:    45,
			MaxStep:         5,
			JumpProbability: 0.02,
			JumpCeiling:     300,
			SeedOnEmpty:     true,
			SeedCount:       20,
			SeedSpacing:     15 * time.Minute,
		},
		Feed: FeedConfig{
			HistorySize:   100,
			DisplayWindow: 20,
		},
		MQTT: MQTTConfig{
			Enabled:        false,
			Broker:         "tcp://localhost",
			Port:           1883,
			ClientID:       "aqi-monitor",
			TopicPrefix:    "aqi",
			ConnectTimeout: 10 * time.Second,
		},
		Kafka: KafkaConfig{
			Enabled: false,
			Brokers: []string{"localhost:9092"},
			Topic:   "aqi.readings",
		},
		PLC: PLCConfig{
			Enabled:      false,
			Host:         "192.168.1.100",
			Rack:         0,
			Slot:         1,
			DBNumber:     20,
			UpdateRate:   time.Second,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
		Discovery: DiscoveryConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// setDefaults registra os padrões no viper. Registrar cada chave também
// permite que AutomaticEnv encontre a variável correspondente no Unmarshal.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.list_limit", d.Server.ListLimit)

	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.retention", d.Storage.Retention)
	v.SetDefault("storage.timeout", d.Storage.Timeout)

	v.SetDefault("postgres.host", d.Postgres.Host)
	v.SetDefault("postgres.port", d.Postgres.Port)
	v.SetDefault("postgres.user", d.Postgres.User)
	v.SetDefault("postgres.password", d.Postgres.Password)
	v.SetDefault("postgres.dbname", d.Postgres.DBName)
	v.SetDefault("postgres.sslmode", d.Postgres.SSLMode)
	v.SetDefault("postgres.table", d.Postgres.Table)
	v.SetDefault("postgres.max_conns", d.Postgres.MaxConns)

	v.SetDefault("redis.host", d.Redis.Host)
	v.SetDefault("redis.port", d.Redis.Port)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.prefix", d.Redis.Prefix)

	v.SetDefault("simulator.enabled", d.Simulator.Enabled)
	v.SetDefault("simulator.interval", d.Simulator.Interval)
	v.SetDefault("simulator.initial_value", d.Simulator.InitialValue)
	v.SetDefault("simulator.max_step", d.Simulator.MaxStep)
	v.SetDefault("simulator.jump_probability", d.Simulator.JumpProbability)
	v.SetDefault("simulator.jump_ceiling", d.Simulator.JumpCeiling)
	v.SetDefault("simulator.seed_on_empty", d.Simulator.SeedOnEmpty)
	v.SetDefault("simulator.seed_count", d.Simulator.SeedCount)
	v.SetDefault("simulator.seed_spacing", d.Simulator.SeedSpacing)

	v.SetDefault("feed.history_size", d.Feed.HistorySize)
	v.SetDefault("feed.display_window", d.Feed.DisplayWindow)

	v.SetDefault("mqtt.enabled", d.MQTT.Enabled)
	v.SetDefault("mqtt.broker", d.MQTT.Broker)
	v.SetDefault("mqtt.port", d.MQTT.Port)
	v.SetDefault("mqtt.client_id", d.MQTT.ClientID)
	v.SetDefault("mqtt.username", d.MQTT.Username)
	v.SetDefault("mqtt.password", d.MQTT.Password)
	v.SetDefault("mqtt.topic_prefix", d.MQTT.TopicPrefix)
	v.SetDefault("mqtt.connect_timeout", d.MQTT.ConnectTimeout)

	v.SetDefault("kafka.enabled", d.Kafka.Enabled)
	v.SetDefault("kafka.brokers", d.Kafka.Brokers)
	v.SetDefault("kafka.topic", d.Kafka.Topic)

	v.SetDefault("plc.enabled", d.PLC.Enabled)
	v.SetDefault("plc.host", d.PLC.Host)
	v.SetDefault("plc.rack", d.PLC.Rack)
	v.SetDefault("plc.slot", d.PLC.Slot)
	v.SetDefault("plc.db_number", d.PLC.DBNumber)
	v.SetDefault("plc.update_rate", d.PLC.UpdateRate)
	v.SetDefault("plc.read_timeout", d.PLC.ReadTimeout)
	v.SetDefault("plc.write_timeout", d.PLC.WriteTimeout)

	v.SetDefault("discovery.enabled", d.Discovery.Enabled)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.dir", d.Log.Dir)
}
