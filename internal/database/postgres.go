package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"aqi_monitor/internal/config"
	"aqi_monitor/internal/models"
	"aqi_monitor/internal/storage"
	"aqi_monitor/pkg/logger"
)

// PostgresStore persiste as leituras na tabela aqi_readings
type PostgresStore struct {
	pool      *pgxpool.Pool
	table     string // Nome já escapado
	retention int
	writeMu   sync.Mutex
	now       func() time.Time
}

// NewPostgresStore conecta ao PostgreSQL usando a string de conexão informada
func NewPostgresStore(ctx context.Context, connString string, cfg config.PostgresConfig, retention int) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("configuração do PostgreSQL inválida: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, storage.Unavailable("conectar ao PostgreSQL", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, storage.Unavailable("conectar ao PostgreSQL", err)
	}

	table := cfg.Table
	if table == "" {
		table = "aqi_readings"
	}

	s := &PostgresStore{
		pool:      pool,
		table:     pgx.Identifier{table}.Sanitize(),
		retention: retention,
		now:       time.Now,
	}

	if err := s.InitializeTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Infof("Conectado ao PostgreSQL (tabela %s, retenção %d)", table, retention)
	return s, nil
}

// InitializeTable cria a tabela e o índice se ainda não existirem
func (s *PostgresStore) InitializeTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			value INTEGER NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`, s.table))
	if err != nil {
		return fmt.Errorf("erro ao criar tabela %s: %w", s.table, err)
	}

	_, err = s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s ON %s (timestamp DESC, id DESC)
	`, pgx.Identifier{indexName(s.table)}.Sanitize(), s.table))
	if err != nil {
		return fmt.Errorf("erro ao criar índice em %s: %w", s.table, err)
	}
	return nil
}

// Append insere a leitura e remove as excedentes à retenção
func (s *PostgresStore) Append(ctx context.Context, nr models.NewReading) (models.Reading, error) {
	nr, err := storage.Validate(nr, s.now())
	if err != nil {
		return models.Reading{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var r models.Reading
	err = s.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO %s (value, timestamp) VALUES ($1, $2)
		RETURNING id, value, timestamp
	`, s.table), nr.Value, nr.Timestamp).Scan(&r.ID, &r.Value, &r.Timestamp)
	if err != nil {
		return models.Reading{}, storage.Unavailable("inserir leitura", err)
	}
	r.Timestamp = r.Timestamp.UTC()

	if s.retention > 0 {
		if err := s.purge(ctx); err != nil {
			// A leitura já foi gravada; a limpeza é refeita na próxima escrita
			logger.Warnf("Falha ao aplicar retenção em %s: %v", s.table, err)
		}
	}

	return r, nil
}

// purge remove tudo além das `retention` leituras mais recentes
func (s *PostgresStore) purge(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		DELETE FROM %[1]s WHERE id IN (
			SELECT id FROM %[1]s ORDER BY timestamp DESC, id DESC OFFSET $1
		)
	`, s.table), s.retention)
	return err
}

// List retorna as leituras mais recentes, da mais antiga para a mais nova
func (s *PostgresStore) List(ctx context.Context, limit int) ([]models.Reading, error) {
	if limit <= 0 {
		return []models.Reading{}, nil
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, value, timestamp FROM %s
		ORDER BY timestamp DESC, id DESC
		LIMIT $1
	`, s.table), limit)
	if err != nil {
		return nil, storage.Unavailable("listar leituras", err)
	}
	defer rows.Close()

	readings := make([]models.Reading, 0, limit)
	for rows.Next() {
		var r models.Reading
		if err := rows.Scan(&r.ID, &r.Value, &r.Timestamp); err != nil {
			return nil, storage.Unavailable("ler leitura", err)
		}
		r.Timestamp = r.Timestamp.UTC()
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable("listar leituras", err)
	}

	// A consulta vem da mais nova para a mais antiga
	for i, j := 0, len(readings)-1; i < j; i, j = i+1, j-1 {
		readings[i], readings[j] = readings[j], readings[i]
	}
	return readings, nil
}

// Close fecha o pool de conexões
func (s *PostgresStore) Close() error {
	s.pool.Close()
	logger.Info("Conexão com PostgreSQL fechada")
	return nil
}

// indexName deriva o nome do índice a partir do nome escapado da tabela
func indexName(sanitized string) string {
	name := sanitized
	if len(name) >= 2 && name[0] == '"' && name[len(name)-1] == '"' {
		name = name[1 : len(name)-1]
	}
	return name + "_timestamp_idx"
}
