package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

// Level representa o nível de log
type Level int

const (
	// DEBUG nível para mensagens detalhadas de depuração
	DEBUG Level = iota
	// INFO nível para informações gerais
	INFO
	// WARN nível para avisos
	WARN
	// ERROR nível para erros
	ERROR
	// FATAL nível para erros fatais (encerra o programa)
	FATAL
)

var (
	// Nível mínimo de log
	logLevel = INFO

	// Saídas de log
	logOutput     io.Writer = os.Stdout
	errorOutput   io.Writer = os.Stderr
	fileOutput    io.WriteCloser
	fileOutputErr io.WriteCloser

	// Formato de timestamp
	timeFormat = "2006-01-02 15:04:05.000"

	// Handlers slog: terminal colorido (tint) e arquivo em texto puro
	stdLogger     *slog.Logger
	errLogger     *slog.Logger
	fileLogger    *slog.Logger
	fileErrLogger *slog.Logger

	// Flag para incluir o nome do arquivo nos logs
	includeFile = true

	// Mutex para operações de configuração
	mu sync.Mutex

	// Inicialização já realizada
	initialized = false
)

// Init inicializa o logger
func Init() {
	mu.Lock()
	defer mu.Unlock()

	if initialized {
		return
	}

	stdLogger = newConsoleLogger(logOutput)
	errLogger = newConsoleLogger(errorOutput)

	initialized = true
}

// newConsoleLogger cria um logger slog com saída colorida via tint
func newConsoleLogger(w io.Writer) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: timeFormat,
	}))
}

// newFileLogger cria um logger slog em texto puro para arquivos
func newFileLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// SetLevel define o nível mínimo de log
func SetLevel(level Level) {
	mu.Lock()
	defer mu.Unlock()
	logLevel = level
}

// GetLevel retorna o nível atual de log
func GetLevel() Level {
	mu.Lock()
	defer mu.Unlock()
	return logLevel
}

// ParseLevel converte um nome ("debug", "info", ...) em Level
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return DEBUG, nil
	case "info", "":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	case "fatal":
		return FATAL, nil
	}
	return INFO, fmt.Errorf("nível de log desconhecido: %q", name)
}

// IsDebugEnabled verifica se o nível de debug está habilitado
func IsDebugEnabled() bool {
	return GetLevel() <= DEBUG
}

// SetOutput define a saída para todos os logs
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	logOutput = w
	errorOutput = w

	stdLogger = newConsoleLogger(w)
	errLogger = newConsoleLogger(w)
	initialized = true
}

// EnableFileLogging habilita o log para arquivo
func EnableFileLogging(logDir, prefix string) error {
	mu.Lock()

	// Criar diretório, se não existir
	if err := os.MkdirAll(logDir, 0755); err != nil {
		mu.Unlock()
		return fmt.Errorf("erro ao criar diretório de log: %w", err)
	}

	// Obter data/hora atual para nome do arquivo
	timestamp := time.Now().Format("20060102_150405")
	if prefix != "" {
		prefix = prefix + "_"
	}

	// Criar arquivo de log normal
	logFilePath := filepath.Join(logDir, fmt.Sprintf("%s%s.log", prefix, timestamp))
	logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		mu.Unlock()
		return fmt.Errorf("erro ao criar arquivo de log: %w", err)
	}

	// Criar arquivo de log de erro
	errFilePath := filepath.Join(logDir, fmt.Sprintf("%s%s_error.log", prefix, timestamp))
	errFile, err := os.OpenFile(errFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logFile.Close()
		mu.Unlock()
		return fmt.Errorf("erro ao criar arquivo de log de erro: %w", err)
	}

	// Fechar arquivos anteriores, se existirem
	if fileOutput != nil {
		fileOutput.Close()
	}
	if fileOutputErr != nil {
		fileOutputErr.Close()
	}

	fileOutput = logFile
	fileOutputErr = errFile
	fileLogger = newFileLogger(logFile)
	fileErrLogger = newFileLogger(errFile)
	mu.Unlock()

	// Registrar início do log
	Info("Logging iniciado")
	return nil
}

// Sync persiste os logs em disco e fecha os arquivos
func Sync() {
	mu.Lock()
	defer mu.Unlock()

	if fileOutput != nil {
		fileOutput.Close()
		fileOutput = nil
	}
	if fileOutputErr != nil {
		fileOutputErr.Close()
		fileOutputErr = nil
	}
	fileLogger = nil
	fileErrLogger = nil
}

// GetLogger retorna o logger slog de console para outros pacotes
func GetLogger() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if stdLogger == nil {
		return slog.Default()
	}
	return stdLogger
}

// slogLevel converte o nível interno para o nível slog
func slogLevel(level Level) slog.Level {
	switch level {
	case DEBUG:
		return slog.LevelDebug
	case WARN:
		return slog.LevelWarn
	case ERROR, FATAL:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// logMessage escreve uma mensagem de log com o nível especificado
func logMessage(level Level, format string, args ...interface{}) {
	mu.Lock()
	minLevel := logLevel
	console, file := stdLogger, fileLogger
	if level >= ERROR {
		console, file = errLogger, fileErrLogger
	}
	mu.Unlock()

	if level < minLevel {
		return
	}

	// Formatar mensagem
	var msg string
	if len(args) == 0 {
		msg = format
	} else {
		msg = fmt.Sprintf(format, args...)
	}

	attrs := make([]slog.Attr, 0, 2)

	// Fonte do log (arquivo e linha)
	if includeFile {
		_, src, line, ok := runtime.Caller(2)
		if ok {
			attrs = append(attrs, slog.String("src", fmt.Sprintf("%s:%d", filepath.Base(src), line)))
		}
	}
	if level == FATAL {
		attrs = append(attrs, slog.Bool("fatal", true))
	}

	if console == nil {
		// Fallback para stderr
		fmt.Fprintf(os.Stderr, "[%s] %s: %s\n", time.Now().Format(timeFormat), slogLevel(level), msg)
	} else {
		console.LogAttrs(context.Background(), slogLevel(level), msg, attrs...)
	}
	if file != nil {
		file.LogAttrs(context.Background(), slogLevel(level), msg, attrs...)
	}

	// Se for FATAL, finalizar o programa
	if level == FATAL {
		panic(msg)
	}
}

// Debug escreve mensagem de log com nível DEBUG
func Debug(msg string) {
	logMessage(DEBUG, "%s", msg)
}

// Debugf escreve mensagem de log formatada com nível DEBUG
func Debugf(format string, args ...interface{}) {
	logMessage(DEBUG, format, args...)
}

// Info escreve mensagem de log com nível INFO
func Info(msg string) {
	logMessage(INFO, "%s", msg)
}

// Infof escreve mensagem de log formatada com nível INFO
func Infof(format string, args ...interface{}) {
	logMessage(INFO, format, args...)
}

// Warn escreve mensagem de log com nível WARN
func Warn(msg string) {
	logMessage(WARN, "%s", msg)
}

// Warnf escreve mensagem de log formatada com nível WARN
func Warnf(format string, args ...interface{}) {
	logMessage(WARN, format, args...)
}

// Error escreve mensagem de log com nível ERROR
func Error(msg string, err error) {
	if err != nil {
		logMessage(ERROR, "%s: %v", msg, err)
	} else {
		logMessage(ERROR, "%s", msg)
	}
}

// Errorf escreve mensagem de log formatada com nível ERROR
func Errorf(format string, args ...interface{}) {
	logMessage(ERROR, format, args...)
}

// Fatal escreve mensagem de log com nível FATAL e encerra o programa
func Fatal(msg string, err error) {
	if err != nil {
		logMessage(FATAL, "%s: %v", msg, err)
	} else {
		logMessage(FATAL, "%s", msg)
	}
}

// Fatalf escreve mensagem de log formatada com nível FATAL e encerra o programa
func Fatalf(format string, args ...interface{}) {
	logMessage(FATAL, format, args...)
}
