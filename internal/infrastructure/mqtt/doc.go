// Package mqtt provides MQTT client connectivity for Gray Logic Tracker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS guarantees
//   - Subscriptions, restored after a reconnect
//   - A retained Last Will marking the service offline
//   - The tracker topic layout and Home Assistant discovery topics (Topics)
//
// # Architecture
//
// Presence changes are published as Home Assistant MQTT device_tracker and
// switch entities, so any MQTT consumer (Home Assistant, Node-RED) can follow
// the tracked hosts without talking to the router.
//
//	FRITZ!Box ← tracker → MQTT Broker → Home Assistant / other consumers
//
// # Security Considerations
//
//   - Use TLS (cfg.Broker.TLS=true) when the broker is not on localhost
//   - Set the broker password via GRAYTRACKER_MQTT_PASSWORD
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	t := client.Topics()
//	err = client.PublishRetained(t.TrackerState("fritz", "AA:BB:CC:DD:EE:FF"), []byte("home"))
package mqtt
