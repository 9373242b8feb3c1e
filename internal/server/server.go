package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"aqi_monitor/internal/config"
	"aqi_monitor/internal/database"
	"aqi_monitor/internal/discovery"
	"aqi_monitor/internal/feed"
	"aqi_monitor/internal/kafka"
	"aqi_monitor/internal/metrics"
	"aqi_monitor/internal/mqtt"
	"aqi_monitor/internal/plc"
	"aqi_monitor/internal/redis"
	"aqi_monitor/internal/simulator"
	"aqi_monitor/internal/storage"
	"aqi_monitor/internal/websocket"
	"aqi_monitor/pkg/logger"
)

// subscriberBuffer é o buffer de cada assinante do seletor
const subscriberBuffer = 16

// Server encapsula o servidor HTTP com todos os componentes
type Server struct {
	config     *config.Config
	httpServer *http.Server
	router     *mux.Router

	store       storage.Store
	redisClient *redis.Client
	metrics     *metrics.Metrics
	selector    *feed.Selector
	local       *feed.LocalSource
	generator   *simulator.Generator
	simulator   *simulator.Service
	mqttFeed    *mqtt.Feed
	plcService  *plc.PLCService
	kafkaSink   *kafka.Sink
	wsHub       *websocket.Hub

	discoveryService *discovery.DiscoveryService
	serverInfo       ServerInfo

	selectorCancel context.CancelFunc
	selectorDone   chan struct{}
	startOnce      sync.Once
	startErr       error
}

// ServerInfo contém informações sobre o servidor
type ServerInfo struct {
	IP           string
	Port         int
	StartTime    time.Time
	Connections  int
	Version      string
	WebSocketURL string
	APIURL       string
}

// NewServer cria uma nova instância do servidor
func NewServer(cfg *config.Config) (*Server, error) {
	server := &Server{
		config: cfg,
		router: mux.NewRouter(),
		serverInfo: ServerInfo{
			StartTime: time.Now(),
			Version:   "1.0.0",
			Port:      cfg.Server.Port,
		},
	}

	// Determinar IP do servidor
	ip, err := discovery.LocalIP()
	if err != nil {
		logger.Warnf("Não foi possível determinar o IP local, usando localhost: %v", err)
		ip = "localhost"
	}
	server.serverInfo.IP = ip
	server.serverInfo.WebSocketURL = fmt.Sprintf("ws://%s:%d/ws", ip, cfg.Server.Port)
	server.serverInfo.APIURL = fmt.Sprintf("http://%s:%d/api", ip, cfg.Server.Port)

	if err := server.initComponents(); err != nil {
		return nil, err
	}

	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	return server, nil
}

// initComponents inicializa todos os componentes do servidor
func (s *Server) initComponents() error {
	s.metrics = metrics.NewMetrics()

	store, err := s.openStore()
	if err != nil {
		return err
	}
	s.store = metrics.InstrumentStore(store, s.metrics)

	// Seletor de fonte e fonte local
	s.selector = feed.NewSelector(s.config.Feed.HistorySize)
	s.local = feed.NewLocalSource(s.store, s.selector, s.config.Feed.HistorySize)

	// Hub WebSocket
	s.wsHub = websocket.NewHub(s.selector, s.config.Feed.DisplayWindow)
	s.metrics.RegisterClientGauge(s.wsHub.ClientCount)

	// Simulador
	s.generator = simulator.NewGenerator(simulator.FromConfig(s.config.Simulator))
	s.simulator = simulator.NewService(s.generator, s.local, s.config.Simulator.Interval, s.config.Storage.Timeout)

	// Fonte externa (opcional)
	if s.config.MQTT.Enabled {
		s.mqttFeed = mqtt.NewFeed(s.config.MQTT, s.selector)
	}

	// Saídas (opcionais)
	if s.config.PLC.Enabled {
		s.plcService = plc.NewPLCService(s.config.PLC)
	}
	if s.config.Kafka.Enabled {
		s.kafkaSink = kafka.NewSink(s.config.Kafka)
	}

	if s.config.Discovery.Enabled {
		s.discoveryService = discovery.NewDiscoveryService(s.config.Server.Port, discovery.Info{
			Version:      s.serverInfo.Version,
			WebSocketURL: s.serverInfo.WebSocketURL,
			APIURL:       s.serverInfo.APIURL,
		})
	}

	return nil
}

// openStore abre o backend de armazenamento configurado
func (s *Server) openStore() (storage.Store, error) {
	cfg := s.config
	ctx, cancel := context.WithTimeout(context.Background(), storageTimeout(cfg))
	defer cancel()

	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		store, err := database.NewPostgresStore(ctx, cfg.Postgres.ConnString(), cfg.Postgres, cfg.Storage.Retention)
		if err != nil {
			return nil, fmt.Errorf("erro ao inicializar PostgreSQL: %w", err)
		}
		return store, nil

	case config.BackendRedis:
		client := redis.NewClient(cfg.Redis)
		if err := client.Connect(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("erro ao inicializar Redis: %w", err)
		}
		s.redisClient = client
		return redis.NewStore(client, cfg.Storage.Retention), nil

	case config.BackendMemory, "":
		logger.Infof("Usando armazenamento em memória (retenção %d)", cfg.Storage.Retention)
		return storage.NewMemoryStore(cfg.Storage.Retention), nil
	}

	return nil, fmt.Errorf("backend de armazenamento desconhecido: %q", cfg.Storage.Backend)
}

func storageTimeout(cfg *config.Config) time.Duration {
	if cfg.Storage.Timeout > 0 {
		return cfg.Storage.Timeout
	}
	return 5 * time.Second
}

// startServices inicia o seletor, carrega o histórico e liga as fontes e saídas
func (s *Server) startServices() error {
	s.startOnce.Do(func() {
		s.startErr = s.doStartServices()
	})
	return s.startErr
}

func (s *Server) doStartServices() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.selectorCancel = cancel
	s.selectorDone = make(chan struct{})
	go func() {
		defer close(s.selectorDone)
		s.selector.Run(ctx)
	}()

	go s.wsHub.Run()

	// Assinantes do seletor; os canais fecham quando o seletor para
	s.follow(s.wsHub.Follow)
	s.follow(s.metrics.Follow)
	if s.plcService != nil {
		s.follow(s.plcService.Follow)
	}
	if s.kafkaSink != nil {
		s.follow(s.kafkaSink.Follow)
	}

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), storageTimeout(s.config))
	defer cancelLoad()

	if s.config.Simulator.Enabled && s.config.Simulator.SeedOnEmpty {
		n, err := simulator.Seed(loadCtx, s.store, s.generator, s.config.Simulator.SeedCount, s.config.Simulator.SeedSpacing)
		if err != nil {
			logger.Warnf("Falha ao popular histórico inicial: %v", err)
		} else if n > 0 {
			logger.Infof("Histórico inicial populado com %d leituras", n)
		}
	}

	last, err := s.local.Load(loadCtx)
	if err != nil {
		logger.Warnf("Falha ao carregar histórico armazenado: %v", err)
	}
	s.simulator.Resume(last)

	if s.config.Simulator.Enabled {
		s.simulator.Start()
	} else {
		logger.Info("Simulador desabilitado por configuração")
	}

	if s.mqttFeed != nil {
		// A reconexão automática continua tentando em segundo plano
		if err := s.mqttFeed.Start(); err != nil {
			logger.Warnf("Fonte MQTT indisponível no início: %v", err)
		}
	}

	if s.plcService != nil {
		if err := s.plcService.Start(); err != nil {
			logger.Errorf("Erro ao iniciar serviço PLC: %v", err)
		}
	}

	if s.discoveryService != nil {
		if err := s.discoveryService.Start(); err != nil {
			logger.Warnf("Erro ao iniciar serviço de descoberta: %v", err)
		}
	}

	return nil
}

func (s *Server) follow(fn func(<-chan feed.Snapshot)) {
	ch, _ := s.selector.Subscribe(subscriberBuffer)
	fn(ch)
}

// Start inicia os serviços e bloqueia servindo HTTP
func (s *Server) Start() error {
	if err := s.startServices(); err != nil {
		return err
	}

	s.logServerInfo()

	logger.Infof("Iniciando servidor HTTP na porta %d", s.config.Server.Port)
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("erro ao iniciar servidor HTTP: %w", err)
	}

	return nil
}

// Shutdown encerra o servidor e os serviços na ordem inversa da inicialização
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Iniciando shutdown do servidor")

	var errs []error

	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("servidor HTTP: %w", err))
	}

	if s.discoveryService != nil {
		s.discoveryService.Stop()
	}

	// Fontes primeiro, para nenhum evento novo chegar ao seletor
	s.simulator.Stop()
	if s.mqttFeed != nil {
		s.mqttFeed.Stop()
	}

	// Parar o seletor fecha os canais de todos os assinantes
	if s.selectorCancel != nil {
		s.selectorCancel()
		select {
		case <-s.selectorDone:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("seletor: %w", ctx.Err()))
		}
		s.wsHub.Shutdown()
	}

	if s.plcService != nil {
		s.plcService.Stop()
	}
	if s.kafkaSink != nil {
		if err := s.kafkaSink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka: %w", err))
		}
	}

	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("armazenamento: %w", err))
	}

	logger.Info("Shutdown completo")
	return errors.Join(errs...)
}

// Handler retorna o roteador HTTP completo
func (s *Server) Handler() http.Handler {
	return s.router
}

// GetServerInfo retorna informações sobre o servidor
func (s *Server) GetServerInfo() ServerInfo {
	info := s.serverInfo
	info.Connections = s.wsHub.ClientCount()
	return info
}

// logServerInfo exibe informações do servidor no log
func (s *Server) logServerInfo() {
	logger.Info("===============================================")
	logger.Info("              AQI Monitor Server               ")
	logger.Info("===============================================")
	logger.Infof("Versão: %s", s.serverInfo.Version)
	logger.Infof("Endereço IP: %s", s.serverInfo.IP)
	logger.Infof("Porta HTTP: %d", s.serverInfo.Port)
	logger.Infof("Armazenamento: %s (retenção %d)", s.backendName(), s.config.Storage.Retention)
	logger.Infof("WebSocket URL: %s", s.serverInfo.WebSocketURL)
	logger.Infof("API URL: %s", s.serverInfo.APIURL)
	if s.discoveryService != nil {
		logger.Infof("mDNS: %s.%s.%s",
			s.discoveryService.GetInstanceName(),
			discovery.ServiceType,
			discovery.ServiceDomain)
	}
	logger.Info("===============================================")
	logger.Info("Servidor pronto para conexões!")
}

func (s *Server) backendName() string {
	if s.config.Storage.Backend == "" {
		return config.BackendMemory
	}
	return s.config.Storage.Backend
}
