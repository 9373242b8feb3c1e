package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/relvacode/iso8601"

	"aqi_monitor/internal/feed"
	"aqi_monitor/internal/models"
	"aqi_monitor/internal/storage"
	"aqi_monitor/pkg/logger"
)

// maxBodyBytes limita o corpo aceito no POST
const maxBodyBytes = 64 << 10

// Recorder grava uma leitura nova e a anuncia ao seletor
type Recorder interface {
	Record(ctx context.Context, nr models.NewReading) (models.Reading, error)
}

// SnapshotSource fornece o estado consolidado do seletor de fonte
type SnapshotSource interface {
	Snapshot() feed.Snapshot
}

// Handler contém os handlers HTTP para a API
type Handler struct {
	store     storage.Store
	recorder  Recorder
	source    SnapshotSource
	listLimit int
	timeout   time.Duration

	// Última janela lida com sucesso, servida quando o store falha
	mu       sync.RWMutex
	lastGood []models.Reading
}

// NewHandler cria um novo handler de API
func NewHandler(store storage.Store, recorder Recorder, source SnapshotSource, listLimit int, timeout time.Duration) *Handler {
	if listLimit <= 0 {
		listLimit = storage.DefaultListLimit
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Handler{
		store:     store,
		recorder:  recorder,
		source:    source,
		listLimit: listLimit,
		timeout:   timeout,
	}
}

// errorResponse é o corpo de todas as respostas de erro
type errorResponse struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// createRequest é o corpo do POST /api/aqi
type createRequest struct {
	Value     json.RawMessage `json:"value"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// currentResponse é a resposta de GET /api/aqi/current
type currentResponse struct {
	Reading models.Reading `json:"reading"`
	Status  *models.Status `json:"status"`
	State   feed.State     `json:"state"`
}

// summaryResponse é a resposta de GET /api/aqi/summary
type summaryResponse struct {
	Summary       models.Summary `json:"summary"`
	Status        *models.Status `json:"status,omitempty"`
	State         feed.State     `json:"state"`
	HistoryOrigin feed.Origin    `json:"historyOrigin"`
}

// ListReadings retorna as leituras armazenadas, da mais antiga para a mais recente
func (h *Handler) ListReadings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	readings, err := h.store.List(ctx, h.listLimit)
	if err != nil {
		logger.Warnf("Falha ao listar leituras, servindo janela em cache: %v", err)
		w.Header().Set("X-AQI-Stale", "true")
		h.respondWithJSON(w, http.StatusOK, h.cachedWindow())
		return
	}
	if readings == nil {
		readings = []models.Reading{}
	}

	h.remember(readings)
	h.respondWithJSON(w, http.StatusOK, readings)
}

// CreateReading valida e grava uma nova leitura
func (h *Handler) CreateReading(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "corpo da requisição não é um JSON válido", "")
		return
	}

	nr, verr := parseCreateRequest(req)
	if verr != nil {
		h.respondWithError(w, http.StatusBadRequest, verr.Message, verr.Field)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	reading, err := h.recorder.Record(ctx, nr)
	if err != nil {
		if ve, ok := storage.AsValidation(err); ok {
			h.respondWithError(w, http.StatusBadRequest, ve.Message, ve.Field)
			return
		}
		if storage.IsUnavailable(err) || errors.Is(err, context.DeadlineExceeded) {
			logger.Error("Falha ao gravar leitura", err)
			h.respondWithError(w, http.StatusServiceUnavailable, "armazenamento indisponível", "")
			return
		}
		logger.Error("Erro inesperado ao gravar leitura", err)
		h.respondWithError(w, http.StatusInternalServerError, "erro interno", "")
		return
	}

	logger.Debugf("Leitura %d criada via API (valor %d)", reading.ID, reading.Value)
	h.respondWithJSON(w, http.StatusCreated, reading)
}

// GetCurrent retorna a leitura atual escolhida pelo seletor
func (h *Handler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	snap := h.source.Snapshot()
	if snap.Current == nil {
		h.respondWithError(w, http.StatusNotFound, "nenhuma leitura disponível", "")
		return
	}

	h.respondWithJSON(w, http.StatusOK, currentResponse{
		Reading: *snap.Current,
		Status:  snap.Status,
		State:   snap.State,
	})
}

// GetSummary retorna média, pico e última leitura do histórico em exibição
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	snap := h.source.Snapshot()
	h.respondWithJSON(w, http.StatusOK, summaryResponse{
		Summary:       snap.Summary,
		Status:        snap.Status,
		State:         snap.State,
		HistoryOrigin: snap.HistoryOrigin,
	})
}

// parseCreateRequest converte o corpo do POST em uma NewReading.
// O intervalo do valor é verificado de novo pelo store.
func parseCreateRequest(req createRequest) (models.NewReading, *storage.ValidationError) {
	var nr models.NewReading

	value, verr := parseValue(req.Value)
	if verr != nil {
		return nr, verr
	}
	nr.Value = value

	ts, verr := parseTimestamp(req.Timestamp)
	if verr != nil {
		return nr, verr
	}
	nr.Timestamp = ts
	return nr, nil
}

// parseTimestamp aceita ausente, null ou "" como sem timestamp
func parseTimestamp(raw json.RawMessage) (time.Time, *storage.ValidationError) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, nil
	}

	invalid := &storage.ValidationError{
		Field:   "timestamp",
		Message: "timestamp deve estar no formato ISO-8601",
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return time.Time{}, invalid
	}
	if text == "" {
		return time.Time{}, nil
	}

	ts, err := iso8601.ParseString(text)
	if err != nil {
		return time.Time{}, invalid
	}
	return ts, nil
}

func parseValue(raw json.RawMessage) (int, *storage.ValidationError) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, &storage.ValidationError{Field: "value", Message: "value é obrigatório"}
	}

	notInteger := &storage.ValidationError{Field: "value", Message: "value deve ser um número inteiro"}
	if raw[0] == '"' {
		return 0, notInteger
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, notInteger
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) {
		return 0, notInteger
	}
	if f < models.MinAQI || f > models.MaxAQI {
		return 0, &storage.ValidationError{
			Field:   "value",
			Message: fmt.Sprintf("valor deve estar entre %d e %d", models.MinAQI, models.MaxAQI),
		}
	}
	return int(f), nil
}

// remember guarda a última janela lida com sucesso
func (h *Handler) remember(readings []models.Reading) {
	h.mu.Lock()
	h.lastGood = append(h.lastGood[:0], readings...)
	h.mu.Unlock()
}

// cachedWindow retorna cópia da última janela boa, ou lista vazia
func (h *Handler) cachedWindow() []models.Reading {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]models.Reading{}, h.lastGood...)
}

// respondWithError responde com uma mensagem de erro
func (h *Handler) respondWithError(w http.ResponseWriter, code int, message, field string) {
	h.respondWithJSON(w, code, errorResponse{Message: message, Field: field})
}

// respondWithJSON responde com JSON
func (h *Handler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Errorf("Erro ao codificar resposta JSON: %v", err)
	}
}
