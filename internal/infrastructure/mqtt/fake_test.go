package mqtt

import (
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-tracker/internal/infrastructure/config"
)

// fakeToken is a completed paho token.
type fakeToken struct {
	err     error
	timeout bool
}

func (t *fakeToken) Wait() bool                     { return !t.timeout }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  string
}

// fakePaho implements pahomqtt.Client in memory. Publishing to a topic with
// an exact-match subscription delivers the message synchronously.
type fakePaho struct {
	mu           sync.Mutex
	connected    bool
	connectErr   error
	publishErr   error
	subscribeErr error
	timeout      bool
	published    []published
	handlers     map[string]pahomqtt.MessageHandler
	disconnects  int
}

func newFakePaho() *fakePaho {
	return &fakePaho{handlers: make(map[string]pahomqtt.MessageHandler)}
}

func (f *fakePaho) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakePaho) IsConnectionOpen() bool { return f.IsConnected() }

func (f *fakePaho) Connect() pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr == nil && !f.timeout {
		f.connected = true
	}
	return &fakeToken{err: f.connectErr, timeout: f.timeout}
}

func (f *fakePaho) Disconnect(uint) {
	f.mu.Lock()
	f.connected = false
	f.disconnects++
	f.mu.Unlock()
}

func (f *fakePaho) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	var body string
	switch p := payload.(type) {
	case string:
		body = p
	case []byte:
		body = string(p)
	}

	f.mu.Lock()
	if f.publishErr != nil || f.timeout {
		defer f.mu.Unlock()
		return &fakeToken{err: f.publishErr, timeout: f.timeout}
	}
	f.published = append(f.published, published{topic: topic, qos: qos, retained: retained, payload: body})
	handler := f.handlers[topic]
	f.mu.Unlock()

	if handler != nil {
		handler(f, &fakeMessage{topic: topic, payload: []byte(body)})
	}
	return &fakeToken{}
}

func (f *fakePaho) Subscribe(topic string, _ byte, callback pahomqtt.MessageHandler) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return &fakeToken{err: f.subscribeErr}
	}
	f.handlers[topic] = callback
	return &fakeToken{}
}

func (f *fakePaho) SubscribeMultiple(filters map[string]byte, callback pahomqtt.MessageHandler) pahomqtt.Token {
	for topic, qos := range filters {
		f.Subscribe(topic, qos, callback)
	}
	return &fakeToken{}
}

func (f *fakePaho) Unsubscribe(topics ...string) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, topic := range topics {
		delete(f.handlers, topic)
	}
	return &fakeToken{}
}

func (f *fakePaho) AddRoute(topic string, callback pahomqtt.MessageHandler) {
	f.mu.Lock()
	f.handlers[topic] = callback
	f.mu.Unlock()
}

func (f *fakePaho) OptionsReader() pahomqtt.ClientOptionsReader {
	return pahomqtt.ClientOptionsReader{}
}

func (f *fakePaho) Published() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]published, len(f.published))
	copy(out, f.published)
	return out
}

// deliver simulates a broker message on topic.
func (f *fakePaho) deliver(topic string, payload []byte) bool {
	f.mu.Lock()
	handler := f.handlers[topic]
	f.mu.Unlock()
	if handler == nil {
		return false
	}
	handler(f, &fakeMessage{topic: topic, payload: payload})
	return true
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "graytracker-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// connectFake returns a Client connected through a fakePaho.
func connectFake(t interface{ Fatalf(string, ...any) }) (*Client, *fakePaho) {
	fake := newFakePaho()
	c := newClient(testConfig())
	c.client = fake
	if err := c.connect(); err != nil {
		t.Fatalf("connect() error = %v", err)
	}
	return c, fake
}

type mockLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func (l *mockLogger) counts() (errs, warns int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors), len(l.warns)
}
