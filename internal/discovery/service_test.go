package discovery

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTxtRecords(t *testing.T) {
	txt := txtRecords("192.168.0.10", Info{
		Version:      "1.0.0",
		WebSocketURL: "ws://192.168.0.10:8080/ws",
		APIURL:       "http://192.168.0.10:8080/api",
	})

	require.Equal(t, []string{
		"name=AQI Monitor",
		"ip=192.168.0.10",
		"version=1.0.0",
		"ws=ws://192.168.0.10:8080/ws",
		"api=http://192.168.0.10:8080/api",
	}, txt)

	require.Equal(t, []string{"name=AQI Monitor", "ip=10.0.0.1"}, txtRecords("10.0.0.1", Info{}))
}

func TestNewDiscoveryService(t *testing.T) {
	s := NewDiscoveryService(8080, Info{Version: "1.0.0"})

	require.False(t, s.IsRunning())
	require.Contains(t, s.GetInstanceName(), "-aqi")
	require.Equal(t, "estacao-aqi", instanceName("estacao"))

	// Parar sem ter iniciado não faz nada
	s.Stop()
	require.False(t, s.IsRunning())
}
