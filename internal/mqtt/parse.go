package mqtt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"aqi_monitor/internal/models"
	"aqi_monitor/pkg/utils"
)

// errEmptyPayload indica uma mensagem retida apagada
var errEmptyPayload = errors.New("payload vazio")

// currentPayload é o formato publicado em <prefixo>/current
type currentPayload struct {
	Value     *float64 `json:"value"`
	Timestamp *int64   `json:"timestamp"` // Milissegundos Unix
}

// parseCurrent decodifica a leitura atual. Valores são arredondados e
// limitados a [0, 500]; sem timestamp, vale now.
func parseCurrent(payload []byte, now time.Time) (models.Reading, error) {
	if len(bytes.TrimSpace(payload)) == 0 || bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
		return models.Reading{}, errEmptyPayload
	}

	var p currentPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return models.Reading{}, fmt.Errorf("leitura atual inválida: %w", err)
	}
	if p.Value == nil {
		return models.Reading{}, fmt.Errorf("leitura atual sem campo value")
	}

	ts := now
	if p.Timestamp != nil {
		ts = utils.FromUnixMillis(*p.Timestamp)
	}

	return models.Reading{
		Value:     toAQI(*p.Value),
		Timestamp: utils.NormalizeTimestamp(ts),
	}, nil
}

// parseHistory decodifica o mapa {"<ms>": valor}. Chaves que não são
// inteiros e valores que não são números são ignorados.
func parseHistory(payload []byte) ([]models.Reading, error) {
	if len(bytes.TrimSpace(payload)) == 0 || bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
		return nil, errEmptyPayload
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("histórico inválido: %w", err)
	}

	history := make([]models.Reading, 0, len(raw))
	for key, rawValue := range raw {
		ms, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		var value float64
		if err := json.Unmarshal(rawValue, &value); err != nil {
			continue
		}
		history = append(history, models.Reading{
			Value:     toAQI(value),
			Timestamp: utils.FromUnixMillis(ms),
		})
	}

	sort.Slice(history, func(i, j int) bool {
		return history[i].Timestamp.Before(history[j].Timestamp)
	})
	return history, nil
}

func toAQI(v float64) int {
	if math.IsNaN(v) {
		return models.MinAQI
	}
	r := math.Round(v)
	if r < models.MinAQI {
		return models.MinAQI
	}
	if r > models.MaxAQI {
		return models.MaxAQI
	}
	return int(r)
}
