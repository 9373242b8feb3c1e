package mqtt

import (
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/stretchr/testify/require"

	"aqi_monitor/internal/config"
	"aqi_monitor/internal/feed"
)

// recorder guarda os eventos publicados pela fonte
type recorder struct {
	mu     sync.Mutex
	events []feed.Event
}

func (r *recorder) Publish(ev feed.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return true
}

func (r *recorder) find(kind feed.EventKind) (feed.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.Kind == kind {
			return ev, true
		}
	}
	return feed.Event{}, false
}

func (r *recorder) last() feed.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func freePort(t *testing.T) int {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// startBroker sobe um broker MQTT em processo
func startBroker(t *testing.T) (*mochi.Server, int) {
	port := freePort(t)

	broker := mochi.New(&mochi.Options{InlineClient: true})
	require.NoError(t, broker.AddHook(new(auth.AllowHook), nil))
	require.NoError(t, broker.AddListener(listeners.NewTCP(listeners.Config{
		Type:    "tcp",
		ID:      "aqi-test",
		Address: fmt.Sprintf("127.0.0.1:%d", port),
	})))
	require.NoError(t, broker.Serve())
	t.Cleanup(func() { _ = broker.Close() })

	return broker, port
}

func testConfig(port int) config.MQTTConfig {
	cfg := config.Default().MQTT
	cfg.Enabled = true
	cfg.Broker = "tcp://127.0.0.1"
	cfg.Port = port
	cfg.ClientID = fmt.Sprintf("aqi-test-%d", time.Now().UnixNano())
	cfg.ConnectTimeout = 5 * time.Second
	return cfg
}

func TestFeedReceivesRetainedAndLiveMessages(t *testing.T) {
	broker, port := startBroker(t)

	// Mensagens retidas antes da conexão
	require.NoError(t, broker.Publish("aqi/current", []byte(`{"value": 132, "timestamp": 1717236000000}`), true, 1))
	require.NoError(t, broker.Publish("aqi/history", []byte(`{"1717235940000": 120, "1717236000000": 132}`), true, 1))

	rec := &recorder{}
	f := NewFeed(testConfig(port), rec)
	require.NoError(t, f.Start())
	t.Cleanup(f.Stop)

	require.Eventually(t, func() bool {
		_, okConn := rec.find(feed.EventConnected)
		_, okCur := rec.find(feed.EventReading)
		_, okHist := rec.find(feed.EventHistory)
		return okConn && okCur && okHist
	}, 5*time.Second, 20*time.Millisecond)
	require.True(t, f.IsConnected())

	ev, _ := rec.find(feed.EventReading)
	require.Equal(t, feed.OriginExternal, ev.Origin)
	require.Equal(t, 132, ev.Reading.Value)

	hist, _ := rec.find(feed.EventHistory)
	require.Len(t, hist.History, 2)
	require.Equal(t, 120, hist.History[0].Value)

	require.NoError(t, broker.Publish("aqi/current", []byte(`{"value": 18}`), false, 0))
	require.Eventually(t, func() bool {
		last := rec.last()
		return last.Kind == feed.EventReading && last.Reading.Value == 18
	}, 5*time.Second, 20*time.Millisecond)
}

func TestFeedStopPublishesDisconnected(t *testing.T) {
	_, port := startBroker(t)

	rec := &recorder{}
	f := NewFeed(testConfig(port), rec)
	require.NoError(t, f.Start())

	require.Eventually(t, func() bool {
		_, ok := rec.find(feed.EventConnected)
		return ok
	}, 5*time.Second, 20*time.Millisecond)

	f.Stop()
	f.Stop()
	require.Equal(t, feed.EventDisconnected, rec.last().Kind)
	require.False(t, f.IsConnected())
}

func TestFeedDrivesSelector(t *testing.T) {
	broker, port := startBroker(t)
	sel := feed.NewSelector(100)

	f := NewFeed(testConfig(port), publisherFunc(func(ev feed.Event) bool {
		sel.Apply(ev)
		return true
	}))
	require.NoError(t, f.Start())
	t.Cleanup(f.Stop)

	require.Eventually(t, func() bool {
		return sel.Snapshot().ExternalConnected
	}, 5*time.Second, 20*time.Millisecond)
	require.Equal(t, feed.StateNoFeed, sel.Snapshot().State, "conectado sem dados")

	require.NoError(t, broker.Publish("aqi/current", []byte(`{"value": 240}`), false, 1))
	require.Eventually(t, func() bool {
		return sel.Snapshot().State == feed.StateExternal
	}, 5*time.Second, 20*time.Millisecond)
	require.Equal(t, "Hazardous", sel.Snapshot().Status.Label)
}

type publisherFunc func(ev feed.Event) bool

func (p publisherFunc) Publish(ev feed.Event) bool { return p(ev) }
