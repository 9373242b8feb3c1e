package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aqi_monitor/internal/config"
	"aqi_monitor/internal/server"
	"aqi_monitor/pkg/logger"
)

func main() {
	configPath := flag.String("config", ".", "diretório onde procurar config.yaml")
	flag.Parse()

	// Inicializar logger
	logger.Init()
	defer logger.Sync()

	displayBanner()

	// Carregar configurações
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Erro ao carregar configurações", err)
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warnf("%v, usando info", err)
	}
	logger.SetLevel(level)

	if cfg.Log.Dir != "" {
		if err := logger.EnableFileLogging(cfg.Log.Dir, "aqi"); err != nil {
			logger.Error("Erro ao habilitar log em arquivo", err)
		}
	}

	logger.Info("Iniciando AQI Monitor")
	logger.Infof("Armazenamento: %s, simulador: %v (intervalo %v), MQTT: %v",
		cfg.Storage.Backend, cfg.Simulator.Enabled, cfg.Simulator.Interval, cfg.MQTT.Enabled)

	// Criar e iniciar o servidor
	srv, err := server.NewServer(cfg)
	if err != nil {
		logger.Fatal("Erro ao criar servidor", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Configurar captura de sinais para shutdown gracioso
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			logger.Error("Erro no servidor HTTP", err)
		}
	}

	logger.Info("Desligando servidor...")

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Erro durante o shutdown do servidor", err)
	}

	logger.Info("Servidor encerrado com sucesso")
}

// displayBanner exibe um banner de inicialização
func displayBanner() {
	banner := `
  ___   ___  ___   __  __             _ _
 / _ \ / _ \|_ _| |  \/  | ___  _ __ (_) |_ ___  _ __
| |_| | | | || |  | |\/| |/ _ \| '_ \| | __/ _ \| '__|
|  _  | |_| || |  | |  | | (_) | | | | | || (_) | |
|_| |_|\__\_\___| |_|  |_|\___/|_| |_|_|\__\___/|_|   v1.0
`
	fmt.Println(banner)
	fmt.Printf("Iniciando em %s\n\n", time.Now().Format("2006-01-02 15:04:05"))
}
