package server

import (
	"encoding/json"
	"net/http"
	"time"

	"aqi_monitor/internal/api"
	"aqi_monitor/internal/websocket"
	"aqi_monitor/pkg/logger"
)

// setupRoutes configura todas as rotas do servidor
func (s *Server) setupRoutes() {
	wsHandler := websocket.NewHandler(s.wsHub)

	apiHandler := api.NewHandler(s.store, s.local, s.selector, s.config.Server.ListLimit, s.config.Storage.Timeout)
	apiRouter := api.NewRouter(apiHandler, s.metrics, "/api")
	apiRouter.Setup()

	// Rotas auxiliares recebem log e CORS como a API
	wrap := func(route string, fn http.HandlerFunc) http.Handler {
		return api.Chain(api.LoggingMiddleware, api.CorsMiddleware)(s.metrics.WrapHandler(route, fn))
	}

	s.router.Handle("/health", wrap("/health", s.healthHandler)).Methods(http.MethodGet, http.MethodOptions)
	s.router.Handle("/info", wrap("/info", s.infoHandler)).Methods(http.MethodGet, http.MethodOptions)
	s.router.Handle("/api/discover", wrap("/api/discover", s.discoverHandler)).Methods(http.MethodGet, http.MethodOptions)
	s.router.Handle("/metrics", s.metrics.Handler())

	// WebSocket: sem wrappers, o upgrade precisa do http.Hijacker original
	s.router.Handle("/ws", wsHandler)
	s.router.HandleFunc("/ws/health", wsHandler.GetHealthHandler())

	// API REST
	s.router.PathPrefix(apiRouter.BasePath() + "/aqi").Handler(apiRouter.Handler())

	// Static assets (opcional)
	s.router.PathPrefix("/").Handler(http.FileServer(http.Dir("./static")))
}

// healthHandler responde com o status de saúde do servidor
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	simulatorStatus := "disabled"
	if s.config.Simulator.Enabled {
		simulatorStatus = statusOf(s.simulator.IsRunning())
	}

	storageStatus := "ok"
	if s.redisClient != nil && !s.redisClient.IsConnected() {
		storageStatus = "offline"
	}

	mqttStatus := "disabled"
	if s.mqttFeed != nil {
		mqttStatus = statusOf(s.mqttFeed.IsConnected())
	}

	plcStatus := "disabled"
	if s.plcService != nil {
		plcStatus = statusOf(s.plcService.IsRunning())
	}

	kafkaStatus := "disabled"
	if s.kafkaSink != nil {
		kafkaStatus = "ok"
		if st := s.kafkaSink.GetStats(); st.Failures > 0 && st.Published == 0 {
			kafkaStatus = "offline"
		}
	}

	discoveryStatus := "disabled"
	if s.discoveryService != nil {
		discoveryStatus = statusOf(s.discoveryService.IsRunning())
	}

	snap := s.selector.Snapshot()

	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now(),
		"feed": map[string]interface{}{
			"state":             snap.State,
			"historyOrigin":     snap.HistoryOrigin,
			"externalConnected": snap.ExternalConnected,
		},
		"services": map[string]string{
			"simulator": simulatorStatus,
			"storage":   storageStatus,
			"mqtt":      mqttStatus,
			"plc":       plcStatus,
			"kafka":     kafkaStatus,
			"websocket": "ok",
			"discovery": discoveryStatus,
		},
	}

	// Armazenamento ou simulador fora do ar degradam o estado geral
	if storageStatus == "offline" || simulatorStatus == "offline" {
		response["status"] = "degraded"
	}

	writeJSON(w, response)
}

// infoHandler retorna informações básicas sobre o servidor
func (s *Server) infoHandler(w http.ResponseWriter, r *http.Request) {
	info := s.GetServerInfo()
	uptime := time.Since(info.StartTime).Round(time.Second)

	response := map[string]interface{}{
		"name":        "AQI Monitor",
		"version":     info.Version,
		"ip":          info.IP,
		"port":        info.Port,
		"websocket":   info.WebSocketURL,
		"api":         info.APIURL,
		"startTime":   info.StartTime,
		"uptime":      uptime.String(),
		"connections": info.Connections,
		"storage": map[string]interface{}{
			"backend":   s.backendName(),
			"retention": s.config.Storage.Retention,
		},
		"simulator": map[string]interface{}{
			"enabled":  s.config.Simulator.Enabled,
			"running":  s.simulator.IsRunning(),
			"interval": s.config.Simulator.Interval.String(),
			"stats":    s.simulator.GetStats(),
		},
		"mqtt": map[string]interface{}{
			"enabled":   s.config.MQTT.Enabled,
			"connected": s.mqttFeed != nil && s.mqttFeed.IsConnected(),
			"broker":    s.config.MQTT.BrokerURL(),
		},
		"websocketStats": s.wsHub.GetStats(),
	}

	if s.kafkaSink != nil {
		response["kafka"] = map[string]interface{}{
			"topic": s.config.Kafka.Topic,
			"stats": s.kafkaSink.GetStats(),
		}
	}

	writeJSON(w, response)
}

// discoverHandler fornece informações para descoberta manual
func (s *Server) discoverHandler(w http.ResponseWriter, r *http.Request) {
	info := s.GetServerInfo()

	response := map[string]interface{}{
		"name":        "AQI Monitor",
		"ip":          info.IP,
		"port":        info.Port,
		"wsUrl":       info.WebSocketURL,
		"apiUrl":      info.APIURL,
		"version":     info.Version,
		"wsEndpoint":  "/ws",
		"apiEndpoint": "/api/aqi",
	}

	writeJSON(w, response)
}

func statusOf(ok bool) string {
	if ok {
		return "ok"
	}
	return "offline"
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Errorf("Erro ao codificar resposta JSON: %v", err)
	}
}
