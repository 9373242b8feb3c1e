package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"aqi_monitor/internal/metrics"
	"aqi_monitor/pkg/logger"
)

// Router gerencia as rotas da API
type Router struct {
	handler     *Handler
	mux         *mux.Router
	metrics     *metrics.Metrics
	basePath    string
	middlewares []Middleware
}

// NewRouter cria um novo router para a API. m pode ser nil.
func NewRouter(handler *Handler, m *metrics.Metrics, basePath string) *Router {
	// Normalizar base path
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	basePath = strings.TrimSuffix(basePath, "/")

	// Configurar middlewares padrão
	middlewares := []Middleware{
		LoggingMiddleware,
		RecoveryMiddleware,
		CorsMiddleware,
	}

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		handler.respondWithError(w, http.StatusNotFound, "rota não encontrada", "")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		handler.respondWithError(w, http.StatusMethodNotAllowed, "método não permitido", "")
	})

	return &Router{
		handler:     handler,
		mux:         router,
		metrics:     m,
		basePath:    basePath,
		middlewares: middlewares,
	}
}

// Setup configura todas as rotas
func (r *Router) Setup() {
	r.route("/aqi", r.handler.ListReadings, http.MethodGet)
	r.route("/aqi", r.handler.CreateReading, http.MethodPost)
	r.route("/aqi/current", r.handler.GetCurrent, http.MethodGet)
	r.route("/aqi/summary", r.handler.GetSummary, http.MethodGet)

	logger.Infof("API configurada com base path: %s", r.basePath)
}

// route registra uma rota medida pelas métricas HTTP
func (r *Router) route(route string, fn http.HandlerFunc, method string) {
	path := r.path(route)
	r.mux.Handle(path, r.metrics.WrapHandler(path, fn)).Methods(method)
}

// Handler retorna o handler HTTP final com todos os middlewares aplicados
func (r *Router) Handler() http.Handler {
	return r.applyMiddleware(r.mux)
}

// BasePath retorna o prefixo das rotas da API
func (r *Router) BasePath() string {
	return r.basePath
}

// path retorna o caminho completo para uma rota
func (r *Router) path(route string) string {
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	return r.basePath + route
}

// applyMiddleware aplica todos os middlewares ao handler
func (r *Router) applyMiddleware(handler http.Handler) http.Handler {
	if len(r.middlewares) == 0 {
		return handler
	}

	return Chain(r.middlewares...)(handler)
}

// ServeHTTP implementa a interface http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.Handler().ServeHTTP(w, req)
}
