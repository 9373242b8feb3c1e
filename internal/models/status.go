package models

// Band representa uma faixa de classificação do AQI, em ordem de gravidade
type Band int

const (
	BandGood Band = iota
	BandModerate
	BandUnhealthy
	BandHazardous
)

// Status é a classificação derivada de um valor de AQI
type Status struct {
	Band            Band   `json:"band"`
	Label           string `json:"label"`
	Color           string `json:"color"`
	Background      string `json:"bg"`
	Border          string `json:"border"`
	LightBackground string `json:"lightBg"`
	Recommendation  string `json:"recommendation"`
}

// String retorna o rótulo da faixa
func (b Band) String() string {
	switch b {
	case BandGood:
		return "Good"
	case BandModerate:
		return "Moderate"
	case BandUnhealthy:
		return "Unhealthy"
	case BandHazardous:
		return "Hazardous"
	}
	return "Unknown"
}
