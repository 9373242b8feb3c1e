package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormatDuration(t *testing.T) {
	require.Equal(t, "45s", FormatDuration(45*time.Second))
	require.Equal(t, "2m 5s", FormatDuration(125*time.Second))
	require.Equal(t, "1h 0m 1s", FormatDuration(time.Hour+time.Second))
}

func TestUnixMillisRoundTrip(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 30, 0, 123000000, time.UTC)
	require.True(t, ts.Equal(FromUnixMillis(UnixMillis(ts))))
}

func TestNormalizeTimestamp(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	ts := time.Date(2024, 5, 1, 9, 0, 0, 123456789, loc)
	n := NormalizeTimestamp(ts)
	require.Equal(t, time.UTC, n.Location())
	require.Equal(t, 123456000, n.Nanosecond())
	require.True(t, n.Equal(ts.Truncate(time.Microsecond)))
}

func TestIntConversions(t *testing.T) {
	require.Equal(t, int16(-42), BytesToInt16(Int16ToBytes(-42)))
	require.Equal(t, 1700000000, BytesToInt(IntToBytes(1700000000)))
	require.Equal(t, []byte{0x00, 0x2d}, Int16ToBytes(45))
}
