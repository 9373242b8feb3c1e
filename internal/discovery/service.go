package discovery

import (
	"fmt"
	"net"
	"os"
	"sync"

	"aqi_monitor/pkg/logger"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceName é o nome exibido para descoberta na rede
	ServiceName = "AQI Monitor"

	// ServiceDomain é o domínio para descoberta na rede
	ServiceDomain = "local."

	// ServiceType define o tipo de serviço anunciado via mDNS
	ServiceType = "_aqimonitor._tcp"
)

// Info descreve o que é anunciado nos registros TXT
type Info struct {
	Version      string
	WebSocketURL string
	APIURL       string
}

// DiscoveryService anuncia o monitor na rede local via mDNS
type DiscoveryService struct {
	server       *zeroconf.Server
	mutex        sync.Mutex
	instanceName string
	port         int
	info         Info
	running      bool
	serverIP     string
}

// NewDiscoveryService cria um novo serviço de descoberta
func NewDiscoveryService(port int, info Info) *DiscoveryService {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "aqi"
	}

	return &DiscoveryService{
		port:         port,
		info:         info,
		instanceName: instanceName(hostname),
	}
}

func instanceName(hostname string) string {
	return fmt.Sprintf("%s-aqi", hostname)
}

// Start registra o serviço no mDNS
func (s *DiscoveryService) Start() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.running {
		return nil
	}

	ip, err := LocalIP()
	if err != nil {
		return fmt.Errorf("erro ao obter IP local: %w", err)
	}
	s.serverIP = ip

	server, err := zeroconf.Register(
		s.instanceName,
		ServiceType,
		ServiceDomain,
		s.port,
		txtRecords(ip, s.info),
		nil, // Todas as interfaces
	)
	if err != nil {
		return fmt.Errorf("erro ao registrar serviço de descoberta: %w", err)
	}

	s.server = server
	s.running = true

	logger.Infof("Serviço de descoberta iniciado em %s:%d (mDNS: %s.%s)",
		ip, s.port, s.instanceName, ServiceType)

	return nil
}

// Stop remove o registro mDNS
func (s *DiscoveryService) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.running {
		return
	}

	if s.server != nil {
		s.server.Shutdown()
		s.server = nil
	}
	s.running = false

	logger.Info("Serviço de descoberta parado")
}

// GetServerIP retorna o IP anunciado
func (s *DiscoveryService) GetServerIP() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.serverIP
}

// GetInstanceName retorna o nome da instância do serviço
func (s *DiscoveryService) GetInstanceName() string {
	return s.instanceName
}

// IsRunning verifica se o serviço está em execução
func (s *DiscoveryService) IsRunning() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.running
}

func txtRecords(ip string, info Info) []string {
	txt := []string{
		"name=" + ServiceName,
		"ip=" + ip,
	}
	if info.Version != "" {
		txt = append(txt, "version="+info.Version)
	}
	if info.WebSocketURL != "" {
		txt = append(txt, "ws="+info.WebSocketURL)
	}
	if info.APIURL != "" {
		txt = append(txt, "api="+info.APIURL)
	}
	return txt
}

// LocalIP retorna o primeiro IPv4 que não é de loopback
func LocalIP() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}

	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				return ipnet.IP.String(), nil
			}
		}
	}

	return "", fmt.Errorf("não foi possível determinar o endereço IP local")
}
