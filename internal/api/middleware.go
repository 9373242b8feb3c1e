package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"

	"aqi_monitor/pkg/logger"
)

// Middleware representa uma função de middleware HTTP
type Middleware func(http.Handler) http.Handler

// Chain combina múltiplos middlewares em uma única função
func Chain(middlewares ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// LoggingMiddleware registra informações sobre requisições HTTP
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Criar um wrapper para o ResponseWriter para capturar o status code
		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		logger.Infof("%d %s %s %s (%.3fs)", rw.statusCode, r.Method, r.URL.Path, r.RemoteAddr, duration.Seconds())
	})
}

// RecoveryMiddleware recupera de panics na aplicação
func RecoveryMiddleware(next http.Handler) http.Handler {
	return handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{}))(next)
}

// CorsMiddleware adiciona cabeçalhos CORS e responde aos preflights
func CorsMiddleware(next http.Handler) http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)(next)
}

// recoveryLogger envia os panics capturados para o logger do projeto
type recoveryLogger struct{}

func (recoveryLogger) Println(v ...interface{}) {
	logger.Errorf("Panic capturado: %s", fmt.Sprint(v...))
}

// responseWriter é um wrapper para http.ResponseWriter que captura o status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// newResponseWriter cria um novo responseWriter
func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{w, http.StatusOK}
}

// WriteHeader implementa a interface http.ResponseWriter
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
