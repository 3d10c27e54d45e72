package tracker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-tracker/internal/entity"
	"github.com/nerrad567/gray-logic-tracker/internal/infrastructure/mqtt"
)

// Home Assistant discovery constants.
const (
	componentDeviceTracker = "device_tracker"
	componentSwitch        = "switch"

	payloadOn  = "ON"
	payloadOff = "OFF"

	// identifierPrefix namespaces device identifiers in discovery payloads.
	identifierPrefix = "graytracker_"

	// commandTimeout bounds an internet access change received over MQTT.
	commandTimeout = 10 * time.Second
)

// MQTTPublisher is the subset of *mqtt.Client the sink uses.
type MQTTPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	PublishJSON(topic string, v any, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Topics() mqtt.Topics
	QoS() byte
}

// InternetAccessHandler applies an internet access command.
// (*Integration).SetInternetAccess satisfies this signature.
type InternetAccessHandler func(ctx context.Context, routerID, mac string, allow bool) error

type haAvailability struct {
	Topic string `json:"topic"`
}

type haDevice struct {
	Connections  [][2]string `json:"connections"`
	Identifiers  []string    `json:"identifiers"`
	Name         string      `json:"name,omitempty"`
	Manufacturer string      `json:"manufacturer,omitempty"`
	Model        string      `json:"model,omitempty"`
	ViaDevice    string      `json:"via_device,omitempty"`
}

// deviceTrackerConfig is the discovery payload of an MQTT device_tracker.
type deviceTrackerConfig struct {
	Name                string           `json:"name"`
	UniqueID            string           `json:"unique_id"`
	ObjectID            string           `json:"object_id"`
	StateTopic          string           `json:"state_topic"`
	JSONAttributesTopic string           `json:"json_attributes_topic"`
	PayloadHome         string           `json:"payload_home"`
	PayloadNotHome      string           `json:"payload_not_home"`
	SourceType          string           `json:"source_type"`
	Availability        []haAvailability `json:"availability"`
	AvailabilityMode    string           `json:"availability_mode"`
	Device              haDevice         `json:"device"`
	QoS                 int              `json:"qos"`
}

// switchConfig is the discovery payload of an MQTT switch.
type switchConfig struct {
	Name             string           `json:"name"`
	UniqueID         string           `json:"unique_id"`
	ObjectID         string           `json:"object_id"`
	StateTopic       string           `json:"state_topic"`
	CommandTopic     string           `json:"command_topic"`
	PayloadOn        string           `json:"payload_on"`
	PayloadOff       string           `json:"payload_off"`
	Icon             string           `json:"icon"`
	Availability     []haAvailability `json:"availability"`
	AvailabilityMode string           `json:"availability_mode"`
	Device           haDevice         `json:"device"`
	QoS              int              `json:"qos"`
}

// trackerAttributes is published on the json_attributes topic.
type trackerAttributes struct {
	MAC          string     `json:"mac"`
	IPAddress    string     `json:"ip"`
	Hostname     string     `json:"hostname"`
	WANAccess    bool       `json:"wan_access"`
	LastActivity *time.Time `json:"last_time_reachable,omitempty"`
}

type trackerKey struct {
	router string
	mac    string
}

// MQTTSink publishes trackers as Home Assistant MQTT entities.
//
// Discovery, state and availability messages are retained. Discovery is
// re-announced whenever Home Assistant publishes "online" on its status topic.
//
// Thread Safety: all methods are safe for concurrent use.
type MQTTSink struct {
	client   MQTTPublisher
	topics   mqtt.Topics
	onAccess InternetAccessHandler

	mu       sync.Mutex
	trackers map[trackerKey]TrackerState
	routers  map[string]RouterState

	logger   Logger
	loggerMu sync.RWMutex
}

// NewMQTTSink creates a sink publishing through client. onAccess may be nil,
// in which case internet access commands are ignored.
func NewMQTTSink(client MQTTPublisher, onAccess InternetAccessHandler) *MQTTSink {
	return &MQTTSink{
		client:   client,
		topics:   client.Topics(),
		onAccess: onAccess,
		trackers: make(map[trackerKey]TrackerState),
		routers:  make(map[string]RouterState),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the sink.
func (s *MQTTSink) SetLogger(logger Logger) {
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

func (s *MQTTSink) log() Logger {
	s.loggerMu.RLock()
	defer s.loggerMu.RUnlock()
	return s.logger
}

// Start subscribes to Home Assistant's status topic and, when a handler is
// set, to the internet access command topics.
func (s *MQTTSink) Start() error {
	if err := s.client.Subscribe(s.topics.HAStatus(), s.client.QoS(), s.handleHAStatus); err != nil {
		return fmt.Errorf("subscribing to %s: %w", s.topics.HAStatus(), err)
	}
	if s.onAccess != nil {
		topic := s.topics.AllInternetAccessCommands()
		if err := s.client.Subscribe(topic, s.client.QoS(), s.handleCommand); err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
	}
	return nil
}

// TrackerAdded implements Sink.
func (s *MQTTSink) TrackerAdded(t TrackerState) {
	s.mu.Lock()
	s.trackers[trackerKey{t.RouterID, t.MAC}] = t
	via := s.routers[t.RouterID].UniqueID
	s.mu.Unlock()

	s.announce(t, via)
	s.publishState(t)
}

// TrackerChanged implements Sink.
func (s *MQTTSink) TrackerChanged(t TrackerState) {
	s.mu.Lock()
	s.trackers[trackerKey{t.RouterID, t.MAC}] = t
	s.mu.Unlock()

	s.publishState(t)
}

// TrackerRemoved implements Sink. Retained discovery and state messages are
// cleared so Home Assistant drops the entities.
func (s *MQTTSink) TrackerRemoved(t TrackerState) {
	s.mu.Lock()
	delete(s.trackers, trackerKey{t.RouterID, t.MAC})
	s.mu.Unlock()

	node := mqtt.NodeID(t.MAC)
	for _, topic := range []string{
		s.topics.DiscoveryConfig(componentDeviceTracker, t.RouterID, node),
		s.topics.DiscoveryConfig(componentSwitch, t.RouterID, node+entity.InternetAccessSuffix),
		s.topics.TrackerState(t.RouterID, t.MAC),
		s.topics.TrackerAttributes(t.RouterID, t.MAC),
		s.topics.InternetAccessState(t.RouterID, t.MAC),
	} {
		s.publish(topic, nil)
	}
}

// RouterChanged implements Sink.
func (s *MQTTSink) RouterChanged(r RouterState) {
	s.mu.Lock()
	s.routers[r.ID] = r
	s.mu.Unlock()

	payload := mqtt.PayloadOffline
	if r.Available {
		payload = mqtt.PayloadOnline
	}
	s.publish(s.topics.RouterAvailability(r.ID), []byte(payload))
}

// Reannounce republishes discovery, availability and state of every tracker.
func (s *MQTTSink) Reannounce() {
	s.mu.Lock()
	trackers := make([]TrackerState, 0, len(s.trackers))
	for _, t := range s.trackers {
		trackers = append(trackers, t)
	}
	routers := make([]RouterState, 0, len(s.routers))
	for _, r := range s.routers {
		routers = append(routers, r)
	}
	s.mu.Unlock()

	via := make(map[string]string, len(routers))
	for _, r := range routers {
		via[r.ID] = r.UniqueID
		s.RouterChanged(r)
	}
	for _, t := range trackers {
		s.announce(t, via[t.RouterID])
		s.publishState(t)
	}

	s.log().Info("re-announced trackers", "trackers", len(trackers), "routers", len(routers))
}

func (s *MQTTSink) announce(t TrackerState, via string) {
	node := mqtt.NodeID(t.MAC)
	qos := int(s.client.QoS())
	availability := []haAvailability{
		{Topic: s.topics.Status()},
		{Topic: s.topics.RouterAvailability(t.RouterID)},
	}
	dev := haDevice{
		Connections:  [][2]string{{"mac", strings.ToLower(t.MAC)}},
		Identifiers:  []string{identifierPrefix + node},
		Name:         t.Name,
		Manufacturer: Manufacturer,
		Model:        Model,
	}
	if via != "" {
		dev.ViaDevice = identifierPrefix + via
	}

	s.publishJSON(s.topics.DiscoveryConfig(componentDeviceTracker, t.RouterID, node), deviceTrackerConfig{
		Name:                t.Name,
		UniqueID:            t.MAC,
		ObjectID:            node,
		StateTopic:          s.topics.TrackerState(t.RouterID, t.MAC),
		JSONAttributesTopic: s.topics.TrackerAttributes(t.RouterID, t.MAC),
		PayloadHome:         StateHome,
		PayloadNotHome:      StateNotHome,
		SourceType:          "router",
		Availability:        availability,
		AvailabilityMode:    "all",
		Device:              dev,
		QoS:                 qos,
	})

	s.publishJSON(s.topics.DiscoveryConfig(componentSwitch, t.RouterID, node+entity.InternetAccessSuffix), switchConfig{
		Name:             t.Name + " Internet Access",
		UniqueID:         t.MAC + entity.InternetAccessSuffix,
		ObjectID:         node + entity.InternetAccessSuffix,
		StateTopic:       s.topics.InternetAccessState(t.RouterID, t.MAC),
		CommandTopic:     s.topics.InternetAccessCommand(t.RouterID, t.MAC),
		PayloadOn:        payloadOn,
		PayloadOff:       payloadOff,
		Icon:             "mdi:web",
		Availability:     availability,
		AvailabilityMode: "all",
		Device:           dev,
		QoS:              qos,
	})
}

func (s *MQTTSink) publishState(t TrackerState) {
	s.publish(s.topics.TrackerState(t.RouterID, t.MAC), []byte(t.State()))
	s.publishJSON(s.topics.TrackerAttributes(t.RouterID, t.MAC), trackerAttributes{
		MAC:          t.MAC,
		IPAddress:    t.IPAddress,
		Hostname:     t.Hostname,
		WANAccess:    t.WANAccess,
		LastActivity: t.LastActivity,
	})

	access := payloadOff
	if t.WANAccess {
		access = payloadOn
	}
	s.publish(s.topics.InternetAccessState(t.RouterID, t.MAC), []byte(access))
}

func (s *MQTTSink) publish(topic string, payload []byte) {
	if err := s.client.Publish(topic, payload, s.client.QoS(), true); err != nil {
		s.log().Warn("mqtt publish failed", "topic", topic, "error", err)
	}
}

func (s *MQTTSink) publishJSON(topic string, v any) {
	if err := s.client.PublishJSON(topic, v, true); err != nil {
		s.log().Warn("mqtt publish failed", "topic", topic, "error", err)
	}
}

func (s *MQTTSink) handleHAStatus(_ string, payload []byte) error {
	if strings.TrimSpace(string(payload)) == mqtt.PayloadOnline {
		s.Reannounce()
	}
	return nil
}

func (s *MQTTSink) handleCommand(topic string, payload []byte) error {
	routerSeg, node, ok := s.topics.ParseInternetAccessCommand(topic)
	if !ok {
		return fmt.Errorf("unexpected command topic %q", topic)
	}

	var allow bool
	switch strings.ToUpper(strings.TrimSpace(string(payload))) {
	case payloadOn:
		allow = true
	case payloadOff:
		allow = false
	default:
		return fmt.Errorf("unexpected internet access payload %q", payload)
	}

	t, found := s.lookupNode(routerSeg, node)
	if !found {
		return fmt.Errorf("%w: %s/%s", ErrDeviceNotFound, routerSeg, node)
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return s.onAccess(ctx, t.RouterID, t.MAC, allow)
}

func (s *MQTTSink) lookupNode(routerSeg, node string) (TrackerState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, t := range s.trackers {
		if mqtt.Segment(k.router) == routerSeg && mqtt.NodeID(k.mac) == node {
			return t, true
		}
	}
	return TrackerState{}, false
}
