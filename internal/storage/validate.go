package storage

import (
	"fmt"
	"time"

	"aqi_monitor/internal/models"
	"aqi_monitor/pkg/utils"
)

// Validate verifica o intervalo do valor e normaliza o timestamp.
// Um timestamp zero é substituído por now.
func Validate(r models.NewReading, now time.Time) (models.NewReading, error) {
	if r.Value < models.MinAQI || r.Value > models.MaxAQI {
		return r, &ValidationError{
			Field:   "value",
			Message: fmt.Sprintf("valor deve estar entre %d e %d", models.MinAQI, models.MaxAQI),
		}
	}

	if r.Timestamp.IsZero() {
		r.Timestamp = now
	}
	r.Timestamp = utils.NormalizeTimestamp(r.Timestamp)
	return r, nil
}
