// Package mqtt assina a fonte externa de leituras em um broker MQTT.
package mqtt

import (
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"aqi_monitor/internal/config"
	"aqi_monitor/internal/feed"
	"aqi_monitor/pkg/logger"
)

const subscribeQoS = 1

// Feed publica no seletor as leituras recebidas de <prefixo>/current e
// <prefixo>/history
type Feed struct {
	client       paho.Client
	config       config.MQTTConfig
	publisher    feed.Publisher
	topicCurrent string
	topicHistory string
	now          func() time.Time

	mutex   sync.Mutex
	running bool
}

// NewFeed cria a fonte externa sem conectar
func NewFeed(cfg config.MQTTConfig, publisher feed.Publisher) *Feed {
	prefix := strings.TrimSuffix(cfg.TopicPrefix, "/")
	f := &Feed{
		config:       cfg,
		publisher:    publisher,
		topicCurrent: prefix + "/current",
		topicHistory: prefix + "/history",
		now:          time.Now,
	}

	brokerURL := cfg.BrokerURL()
	opts := paho.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)

	if strings.HasPrefix(brokerURL, "ssl://") || strings.HasPrefix(brokerURL, "wss://") {
		logger.Infof("Configurando TLS para %s", brokerURL)
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetOnConnectHandler(f.onConnect)
	opts.SetConnectionLostHandler(f.onConnectionLost)
	opts.SetReconnectingHandler(func(paho.Client, *paho.ClientOptions) {
		logger.Debug("Tentando reconectar ao broker MQTT...")
	})

	f.client = paho.NewClient(opts)
	return f
}

// Start conecta ao broker. Se a conexão não sair em ConnectTimeout, o
// cliente continua tentando em segundo plano e Start retorna sem erro.
func (f *Feed) Start() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.running {
		return nil
	}

	token := f.client.Connect()
	if token.WaitTimeout(f.config.ConnectTimeout) {
		if err := token.Error(); err != nil {
			return fmt.Errorf("erro ao conectar ao broker MQTT: %w", err)
		}
	} else {
		logger.Warnf("Broker MQTT %s ainda indisponível; tentando em segundo plano", f.config.BrokerURL())
	}

	f.running = true
	return nil
}

// Stop cancela as assinaturas, desconecta e marca a fonte como desconectada
func (f *Feed) Stop() {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if !f.running {
		return
	}

	if f.client.IsConnectionOpen() {
		token := f.client.Unsubscribe(f.topicCurrent, f.topicHistory)
		if !token.WaitTimeout(2 * time.Second) {
			logger.Warn("Tempo esgotado ao cancelar assinaturas MQTT")
		} else if err := token.Error(); err != nil {
			logger.Error("Erro ao cancelar assinaturas MQTT", err)
		}
	}
	f.client.Disconnect(250)
	f.running = false

	f.publisher.Publish(feed.Event{Origin: feed.OriginExternal, Kind: feed.EventDisconnected})
	logger.Info("Desconectado do broker MQTT")
}

// IsConnected informa se a conexão com o broker está ativa
func (f *Feed) IsConnected() bool {
	return f.client.IsConnectionOpen()
}

func (f *Feed) onConnect(c paho.Client) {
	logger.Infof("Conectado ao broker MQTT %s", f.config.BrokerURL())

	token := c.SubscribeMultiple(map[string]byte{
		f.topicCurrent: subscribeQoS,
		f.topicHistory: subscribeQoS,
	}, f.handleMessage)
	if token.Wait() && token.Error() != nil {
		logger.Error("Erro ao assinar tópicos MQTT", token.Error())
		return
	}

	logger.Infof("Assinados os tópicos %s e %s", f.topicCurrent, f.topicHistory)
	f.publisher.Publish(feed.Event{Origin: feed.OriginExternal, Kind: feed.EventConnected})
}

func (f *Feed) onConnectionLost(_ paho.Client, err error) {
	logger.Warnf("Conexão MQTT perdida: %v", err)
	f.publisher.Publish(feed.Event{Origin: feed.OriginExternal, Kind: feed.EventDisconnected})
}

func (f *Feed) handleMessage(_ paho.Client, msg paho.Message) {
	switch msg.Topic() {
	case f.topicCurrent:
		r, err := parseCurrent(msg.Payload(), f.now())
		if err != nil {
			if !errors.Is(err, errEmptyPayload) {
				logger.Warnf("Mensagem descartada em %s: %v", msg.Topic(), err)
			}
			return
		}
		f.publisher.Publish(feed.Event{Origin: feed.OriginExternal, Kind: feed.EventReading, Reading: &r})

	case f.topicHistory:
		history, err := parseHistory(msg.Payload())
		if err != nil {
			if !errors.Is(err, errEmptyPayload) {
				logger.Warnf("Mensagem descartada em %s: %v", msg.Topic(), err)
			}
			return
		}
		f.publisher.Publish(feed.Event{Origin: feed.OriginExternal, Kind: feed.EventHistory, History: history})
	}
}
