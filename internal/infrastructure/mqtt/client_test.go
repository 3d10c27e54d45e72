package mqtt

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestConnect_MarksConnected(t *testing.T) {
	client, _ := connectFake(t)

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestConnect_Failures(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(f *fakePaho)
	}{
		{name: "refused", prepare: func(f *fakePaho) { f.connectErr = errors.New("connection refused") }},
		{name: "timeout", prepare: func(f *fakePaho) { f.timeout = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakePaho()
			tt.prepare(fake)
			c := newClient(testConfig())
			c.client = fake

			if err := c.connect(); !errors.Is(err, ErrConnectionFailed) {
				t.Errorf("connect() error = %v, want ErrConnectionFailed", err)
			}
			if c.IsConnected() {
				t.Error("IsConnected() = true after failed connect")
			}
		})
	}
}

func TestConnect_BrokerRefused(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 1 // nothing listens here

	if _, err := Connect(cfg); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestClose_PublishesOffline(t *testing.T) {
	client, fake := connectFake(t)

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}

	msgs := fake.Published()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}
	if m := msgs[0]; m.topic != "graytracker/status" || m.payload != PayloadOffline || !m.retained {
		t.Errorf("close message = %+v, want retained offline on graytracker/status", m)
	}
	if fake.disconnects != 1 {
		t.Errorf("disconnects = %d, want 1", fake.disconnects)
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	client, fake := connectFake(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) error = %v, want context.Canceled", err)
	}

	fake.Disconnect(0)
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() after disconnect error = %v, want ErrNotConnected", err)
	}
}

func TestHandleConnect_RestoresAndAnnounces(t *testing.T) {
	client, fake := connectFake(t)

	if err := client.Subscribe("graytracker/+/+/internet_access/set", 1, func(string, []byte) error { return nil }); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	connects := 0
	client.SetOnConnect(func() { connects++ })

	// Simulate a reconnect after the broker dropped our subscriptions.
	fake.Unsubscribe("graytracker/+/+/internet_access/set")
	client.handleConnect()

	if connects != 1 {
		t.Errorf("onConnect called %d times, want 1", connects)
	}
	if !fake.deliver("graytracker/+/+/internet_access/set", nil) {
		t.Error("subscription not restored on reconnect")
	}
	msgs := fake.Published()
	if len(msgs) == 0 || msgs[len(msgs)-1].payload != PayloadOnline {
		t.Errorf("published = %+v, want online status", msgs)
	}
}

func TestHandleDisconnect(t *testing.T) {
	client, _ := connectFake(t)
	logger := &mockLogger{}
	client.SetLogger(logger)

	var got error
	client.SetOnDisconnect(func(err error) { got = err })

	lost := errors.New("EOF")
	client.handleDisconnect(lost)

	if client.IsConnected() {
		t.Error("IsConnected() = true after connection lost")
	}
	if !errors.Is(got, lost) {
		t.Errorf("onDisconnect error = %v, want %v", got, lost)
	}
	if _, warns := logger.counts(); warns != 1 {
		t.Errorf("warnings logged = %d, want 1", warns)
	}
}

func TestPublish(t *testing.T) {
	client, fake := connectFake(t)

	if err := client.Publish("graytracker/fritz/aabbccddeeff/state", []byte("home"), 1, true); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := client.PublishRetained("graytracker/fritz/availability", []byte(PayloadOnline)); err != nil {
		t.Fatalf("PublishRetained() error = %v", err)
	}
	if err := client.PublishJSON("graytracker/fritz/aabbccddeeff/attributes", map[string]string{"ip": "192.168.178.20"}, true); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}

	msgs := fake.Published()
	if len(msgs) != 3 {
		t.Fatalf("published %d messages, want 3", len(msgs))
	}
	if msgs[1].qos != 1 || !msgs[1].retained {
		t.Errorf("PublishRetained message = %+v, want qos 1 retained", msgs[1])
	}
	if msgs[2].payload != `{"ip":"192.168.178.20"}` {
		t.Errorf("PublishJSON payload = %q", msgs[2].payload)
	}
}

func TestPublish_Errors(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		prepare func(f *fakePaho)
		want    error
	}{
		{name: "empty topic", topic: "", qos: 1, want: ErrInvalidTopic},
		{name: "invalid qos", topic: "t", qos: 3, want: ErrInvalidQoS},
		{name: "too large", topic: "t", qos: 1, payload: make([]byte, maxPayloadSize+1), want: ErrPublishFailed},
		{name: "disconnected", topic: "t", qos: 1, prepare: func(f *fakePaho) { f.Disconnect(0) }, want: ErrNotConnected},
		{name: "broker error", topic: "t", qos: 1, prepare: func(f *fakePaho) { f.publishErr = errors.New("not authorised") }, want: ErrPublishFailed},
		{name: "timeout", topic: "t", qos: 1, prepare: func(f *fakePaho) { f.timeout = true }, want: ErrPublishFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, fake := connectFake(t)
			if tt.prepare != nil {
				tt.prepare(fake)
			}
			if err := client.Publish(tt.topic, tt.payload, tt.qos, false); !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPublishJSON_Unencodable(t *testing.T) {
	client, _ := connectFake(t)
	if err := client.PublishJSON("t", make(chan int), false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("PublishJSON(chan) error = %v, want ErrPublishFailed", err)
	}
}

func TestSubscribe_PublishRoundtrip(t *testing.T) {
	client, _ := connectFake(t)
	topic := client.Topics().HAStatus()

	var received []string
	err := client.Subscribe(topic, 1, func(gotTopic string, payload []byte) error {
		received = append(received, gotTopic+"="+string(payload))
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !client.HasSubscription(topic) || client.SubscriptionCount() != 1 {
		t.Error("subscription not tracked")
	}

	if err := client.Publish(topic, []byte(PayloadOnline), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(received) != 1 || received[0] != "homeassistant/status=online" {
		t.Errorf("received = %v", received)
	}
}

func TestSubscribe_Errors(t *testing.T) {
	noop := func(string, []byte) error { return nil }
	tests := []struct {
		name    string
		topic   string
		qos     byte
		handler MessageHandler
		prepare func(f *fakePaho)
		want    error
	}{
		{name: "empty topic", qos: 1, handler: noop, want: ErrInvalidTopic},
		{name: "invalid qos", topic: "t", qos: 3, handler: noop, want: ErrInvalidQoS},
		{name: "nil handler", topic: "t", qos: 1, want: ErrSubscribeFailed},
		{name: "disconnected", topic: "t", qos: 1, handler: noop, prepare: func(f *fakePaho) { f.Disconnect(0) }, want: ErrNotConnected},
		{name: "broker error", topic: "t", qos: 1, handler: noop, prepare: func(f *fakePaho) { f.subscribeErr = errors.New("denied") }, want: ErrSubscribeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, fake := connectFake(t)
			if tt.prepare != nil {
				tt.prepare(fake)
			}
			if err := client.Subscribe(tt.topic, tt.qos, tt.handler); !errors.Is(err, tt.want) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.want)
			}
			if client.SubscriptionCount() != 0 {
				t.Error("failed subscription still tracked")
			}
		})
	}
}

func TestUnsubscribe(t *testing.T) {
	client, fake := connectFake(t)
	topic := "graytracker/+/+/internet_access/set"

	if err := client.Subscribe(topic, 1, func(string, []byte) error { return nil }); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if err := client.Unsubscribe(topic); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if client.HasSubscription(topic) {
		t.Error("subscription still tracked")
	}
	if fake.deliver(topic, nil) {
		t.Error("handler still registered with broker")
	}

	if err := client.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(\"\") error = %v, want ErrInvalidTopic", err)
	}
	fake.Disconnect(0)
	if err := client.Unsubscribe(topic); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() disconnected error = %v, want ErrNotConnected", err)
	}
}

func TestHandler_ErrorAndPanicLogged(t *testing.T) {
	client, fake := connectFake(t)
	logger := &mockLogger{}
	client.SetLogger(logger)

	if err := client.Subscribe("err", 1, func(string, []byte) error { return errors.New("bad payload") }); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if err := client.Subscribe("panic", 1, func(string, []byte) error { panic("boom") }); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	fake.deliver("err", []byte("x"))
	fake.deliver("panic", []byte("x"))

	errs, warns := logger.counts()
	if warns != 1 {
		t.Errorf("warnings = %d, want 1 (handler error)", warns)
	}
	if errs != 1 {
		t.Errorf("errors = %d, want 1 (recovered panic)", errs)
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Auth.Username = "tracker"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || !strings.HasPrefix(opts.Servers[0].String(), "ssl://127.0.0.1:1883") {
		t.Errorf("Servers = %v, want ssl://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "graytracker-test" || opts.Username != "tracker" || opts.Password != "secret" {
		t.Errorf("identity = %q/%q/%q", opts.ClientID, opts.Username, opts.Password)
	}
	if !opts.AutoReconnect || !opts.CleanSession {
		t.Error("auto-reconnect and clean session must be enabled")
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS not configured")
	}
}
