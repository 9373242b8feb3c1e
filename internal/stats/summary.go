package stats

import (
	"math"

	"aqi_monitor/internal/models"
)

// Summarize calcula média, pico e última leitura de uma janela ordenada
// cronologicamente. Uma janela vazia resulta em {0, 0, nil}.
func Summarize(readings []models.Reading) models.Summary {
	if len(readings) == 0 {
		return models.Summary{}
	}

	sum := 0
	peak := readings[0].Value
	for _, r := range readings {
		sum += r.Value
		if r.Value > peak {
			peak = r.Value
		}
	}

	latest := readings[len(readings)-1]
	return models.Summary{
		Average: int(math.Round(float64(sum) / float64(len(readings)))),
		Peak:    peak,
		Latest:  &latest,
		Count:   len(readings),
	}
}

// Window retorna as últimas n leituras (janela de exibição) sem copiar
// além do necessário. n <= 0 retorna a janela inteira.
func Window(readings []models.Reading, n int) []models.Reading {
	if n <= 0 || len(readings) <= n {
		return readings
	}
	return readings[len(readings)-n:]
}
