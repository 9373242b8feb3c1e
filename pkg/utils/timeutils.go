package utils

import (
	"fmt"
	"time"
)

// FormatDuration formata uma duração para exibição amigável
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)

	h := d / time.Hour
	d -= h * time.Hour

	m := d / time.Minute
	d -= m * time.Minute

	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	} else if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// UnixMillis converte um time.Time para milissegundos Unix
func UnixMillis(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}

// FromUnixMillis converte milissegundos Unix para time.Time em UTC
func FromUnixMillis(ms int64) time.Time {
	return time.Unix(0, ms*int64(time.Millisecond)).UTC()
}

// NormalizeTimestamp leva o timestamp para UTC com precisão de microssegundos,
// a mesma precisão de um TIMESTAMPTZ do Postgres
func NormalizeTimestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// FormatDateTime formata um time.Time para exibição
func FormatDateTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
