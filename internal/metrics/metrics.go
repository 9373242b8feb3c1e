// Package metrics expõe contadores Prometheus do serviço em /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aqi_monitor/internal/feed"
)

var feedStates = []feed.State{feed.StateNoFeed, feed.StateSimulated, feed.StateExternal}

// Metrics agrupa os coletores do serviço em um registro próprio
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	storageDuration   *prometheus.HistogramVec
	storageErrors     *prometheus.CounterVec
	readingsTotal     *prometheus.CounterVec
	currentValue      prometheus.Gauge
	feedState         *prometheus.GaugeVec
	externalConnected prometheus.Gauge
}

// NewMetrics cria e registra os coletores
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total de requisições HTTP por rota e status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duração das requisições HTTP por rota.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		storageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aqi_storage_duration_seconds",
			Help:    "Duração das operações de armazenamento.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		storageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aqi_storage_errors_total",
			Help: "Falhas de armazenamento por operação.",
		}, []string{"op"}),
		readingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aqi_readings_total",
			Help: "Leituras atuais publicadas, por estado da fonte.",
		}, []string{"state"}),
		currentValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aqi_current_value",
			Help: "Valor de AQI atual.",
		}),
		feedState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aqi_feed_state",
			Help: "Estado do seletor de fonte (1 para o estado ativo).",
		}, []string{"state"}),
		externalConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aqi_external_connected",
			Help: "1 quando a fonte externa está conectada.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpDuration,
		m.storageDuration,
		m.storageErrors,
		m.readingsTotal,
		m.currentValue,
		m.feedState,
		m.externalConnected,
	)

	m.setFeedState(feed.StateNoFeed)
	return m
}

// RegisterClientGauge expõe o número de clientes WebSocket lido de count
func (m *Metrics) RegisterClientGauge(count func() int) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "aqi_websocket_clients",
		Help: "Clientes WebSocket conectados.",
	}, func() float64 { return float64(count()) }))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler mede a rota route
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		duration := time.Since(start).Seconds()
		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(duration)
		}
	})
}

// Handler retorna o handler HTTP do registro
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StorageOp registra a duração e o resultado de uma operação de armazenamento
func (m *Metrics) StorageOp(op string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.storageDuration.WithLabelValues(op).Observe(duration.Seconds())
	if err != nil {
		m.storageErrors.WithLabelValues(op).Inc()
	}
}

// ObserveSnapshot atualiza os medidores a partir de um snapshot do seletor.
// prev é o snapshot anterior, usado para contar leituras novas.
func (m *Metrics) ObserveSnapshot(prev *feed.Snapshot, snap feed.Snapshot) {
	if m == nil {
		return
	}

	m.setFeedState(snap.State)
	if snap.ExternalConnected {
		m.externalConnected.Set(1)
	} else {
		m.externalConnected.Set(0)
	}

	if snap.Current == nil {
		return
	}
	m.currentValue.Set(float64(snap.Current.Value))

	if prev == nil || prev.Current == nil ||
		prev.Current.ID != snap.Current.ID || !prev.Current.Timestamp.Equal(snap.Current.Timestamp) {
		m.readingsTotal.WithLabelValues(string(snap.State)).Inc()
	}
}

// Follow consome snapshots até o canal ser fechado
func (m *Metrics) Follow(snapshots <-chan feed.Snapshot) {
	go func() {
		var prev *feed.Snapshot
		for snap := range snapshots {
			m.ObserveSnapshot(prev, snap)
			s := snap
			prev = &s
		}
	}()
}

func (m *Metrics) setFeedState(state feed.State) {
	for _, s := range feedStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.feedState.WithLabelValues(string(s)).Set(v)
	}
}
