package mqtt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseCurrent(t *testing.T) {
	now := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)

	r, err := parseCurrent([]byte(`{"value": 87, "timestamp": 1717236000000}`), now)
	require.NoError(t, err)
	require.Equal(t, 87, r.Value)
	require.Equal(t, time.UnixMilli(1717236000000).UTC(), r.Timestamp)

	r, err = parseCurrent([]byte(`{"value": 42.6}`), now)
	require.NoError(t, err)
	require.Equal(t, 43, r.Value)
	require.Equal(t, now, r.Timestamp)

	r, err = parseCurrent([]byte(`{"value": 900}`), now)
	require.NoError(t, err)
	require.Equal(t, 500, r.Value)

	r, err = parseCurrent([]byte(`{"value": -3}`), now)
	require.NoError(t, err)
	require.Equal(t, 0, r.Value)
}

func TestParseCurrentInvalid(t *testing.T) {
	now := time.Now()

	_, err := parseCurrent([]byte(`{"timestamp": 1}`), now)
	require.Error(t, err)

	_, err = parseCurrent([]byte(`{"value": "alto"}`), now)
	require.Error(t, err)

	_, err = parseCurrent(nil, now)
	require.ErrorIs(t, err, errEmptyPayload)

	_, err = parseCurrent([]byte("null"), now)
	require.ErrorIs(t, err, errEmptyPayload)
}

func TestParseHistory(t *testing.T) {
	history, err := parseHistory([]byte(`{
		"1717236120000": 60,
		"1717236000000": 50,
		"abc": 10,
		"1717236060000": "x",
		"1717236180000": 70.4
	}`))
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.Equal(t, 50, history[0].Value)
	require.Equal(t, 60, history[1].Value)
	require.Equal(t, 70, history[2].Value)
	require.True(t, history[0].Timestamp.Before(history[1].Timestamp))
}

func TestParseHistoryInvalid(t *testing.T) {
	_, err := parseHistory([]byte(`[1, 2]`))
	require.Error(t, err)

	_, err = parseHistory([]byte(" "))
	require.ErrorIs(t, err, errEmptyPayload)
}
