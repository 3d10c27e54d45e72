package mqtt

import (
	"fmt"
	"strings"
)

// Default topic roots.
const (
	// DefaultTopicPrefix is the root of the tracker's own topics.
	DefaultTopicPrefix = "graytracker"

	// DefaultDiscoveryPrefix is Home Assistant's discovery prefix.
	DefaultDiscoveryPrefix = "homeassistant"
)

// Availability payloads, as Home Assistant expects them by default.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// Topics builds the tracker's MQTT topics.
//
// Layout:
//
//	graytracker/status                                    service availability (LWT)
//	graytracker/{router}/availability                     router availability
//	graytracker/{router}/{node}/state                     home / not_home
//	graytracker/{router}/{node}/attributes                ip, hostname, last_activity
//	graytracker/{router}/{node}/internet_access/state     ON / OFF
//	graytracker/{router}/{node}/internet_access/set       command
//	homeassistant/{component}/{router}/{object}/config    discovery
//	homeassistant/status                                  HA birth/will
//
// {node} is the host MAC in lowercase hex without separators.
type Topics struct {
	Prefix    string
	Discovery string
}

// NewTopics returns Topics with empty roots replaced by the defaults.
func NewTopics(prefix, discovery string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	if discovery == "" {
		discovery = DefaultDiscoveryPrefix
	}
	return Topics{Prefix: strings.TrimSuffix(prefix, "/"), Discovery: strings.TrimSuffix(discovery, "/")}
}

// Status returns the service availability topic.
//
// Example: graytracker/status
func (t Topics) Status() string {
	return t.Prefix + "/status"
}

// RouterAvailability returns the availability topic of one router.
//
// Example: graytracker/fritz/availability
func (t Topics) RouterAvailability(routerID string) string {
	return fmt.Sprintf("%s/%s/availability", t.Prefix, Segment(routerID))
}

// TrackerState returns the home/not_home topic of a host.
//
// Example: graytracker/fritz/aabbccddeeff/state
func (t Topics) TrackerState(routerID, mac string) string {
	return fmt.Sprintf("%s/%s/%s/state", t.Prefix, Segment(routerID), NodeID(mac))
}

// TrackerAttributes returns the JSON attributes topic of a host.
//
// Example: graytracker/fritz/aabbccddeeff/attributes
func (t Topics) TrackerAttributes(routerID, mac string) string {
	return fmt.Sprintf("%s/%s/%s/attributes", t.Prefix, Segment(routerID), NodeID(mac))
}

// InternetAccessState returns the ON/OFF topic of a host's internet access switch.
//
// Example: graytracker/fritz/aabbccddeeff/internet_access/state
func (t Topics) InternetAccessState(routerID, mac string) string {
	return fmt.Sprintf("%s/%s/%s/internet_access/state", t.Prefix, Segment(routerID), NodeID(mac))
}

// InternetAccessCommand returns the command topic of a host's internet access switch.
//
// Example: graytracker/fritz/aabbccddeeff/internet_access/set
func (t Topics) InternetAccessCommand(routerID, mac string) string {
	return fmt.Sprintf("%s/%s/%s/internet_access/set", t.Prefix, Segment(routerID), NodeID(mac))
}

// AllInternetAccessCommands matches every internet access command topic.
//
// Example: graytracker/+/+/internet_access/set
func (t Topics) AllInternetAccessCommands() string {
	return t.Prefix + "/+/+/internet_access/set"
}

// ParseInternetAccessCommand extracts router and node from a command topic.
func (t Topics) ParseInternetAccessCommand(topic string) (routerID, node string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.Prefix+"/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 4 || parts[2] != "internet_access" || parts[3] != "set" || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// DiscoveryConfig returns a Home Assistant discovery topic.
//
// Example: homeassistant/device_tracker/fritz/aabbccddeeff/config
func (t Topics) DiscoveryConfig(component, routerID, objectID string) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", t.Discovery, component, Segment(routerID), objectID)
}

// HAStatus returns Home Assistant's birth/will topic. An "online" message
// there means discovery must be re-announced.
//
// Example: homeassistant/status
func (t Topics) HAStatus() string {
	return t.Discovery + "/status"
}

// NodeID converts a MAC address into a topic segment: lowercase hex with
// separators removed. AA:BB:CC:DD:EE:FF becomes aabbccddeeff.
func NodeID(mac string) string {
	var b strings.Builder
	b.Grow(len(mac))
	for _, r := range strings.ToLower(mac) {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Segment makes s safe as a single topic level: MQTT wildcards and level
// separators become underscores.
func Segment(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '+', '#', ' ':
			return '_'
		}
		return r
	}, s)
}
