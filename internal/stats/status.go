package stats

import "aqi_monitor/internal/models"

// band define os limites e atributos de apresentação de uma faixa
type band struct {
	upper  int // Limite superior inclusivo; -1 para a faixa sem limite
	status models.Status
}

// bands é a tabela de classificação em ordem crescente de gravidade.
// Os limites pertencem à faixa inferior: 50 é Good, 100 é Moderate, 200 é Unhealthy.
var bands = []band{
	{upper: 50, status: models.Status{
		Band:            models.BandGood,
		Label:           "Good",
		Color:           "text-green-600",
		Background:      "bg-green-500",
		Border:          "border-green-200",
		LightBackground: "bg-green-50",
		Recommendation:  "Air quality is great! Perfect time for outdoor activities.",
	}},
	{upper: 100, status: models.Status{
		Band:            models.BandModerate,
		Label:           "Moderate",
		Color:           "text-yellow-600",
		Background:      "bg-yellow-500",
		Border:          "border-yellow-200",
		LightBackground: "bg-yellow-50",
		Recommendation:  "Air quality is acceptable. Sensitive individuals should limit prolonged outdoor exertion.",
	}},
	{upper: 200, status: models.Status{
		Band:            models.BandUnhealthy,
		Label:           "Unhealthy",
		Color:           "text-orange-600",
		Background:      "bg-orange-500",
		Border:          "border-orange-200",
		LightBackground: "bg-orange-50",
		Recommendation:  "Everyone may begin to experience health effects. Limit outdoor time.",
	}},
	{upper: -1, status: models.Status{
		Band:            models.BandHazardous,
		Label:           "Hazardous",
		Color:           "text-red-600",
		Background:      "bg-red-500",
		Border:          "border-red-200",
		LightBackground: "bg-red-50",
		Recommendation:  "Emergency conditions. Avoid all outdoor physical activity.",
	}},
}

// Classify retorna a faixa de status de um valor de AQI
func Classify(value int) models.Status {
	for _, b := range bands {
		if b.upper < 0 || value <= b.upper {
			return b.status
		}
	}
	return bands[len(bands)-1].status
}

// ClassifyReading é um atalho para classificar uma leitura opcional
func ClassifyReading(r *models.Reading) *models.Status {
	if r == nil {
		return nil
	}
	status := Classify(r.Value)
	return &status
}
