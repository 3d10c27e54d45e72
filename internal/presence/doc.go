// Package presence holds the per-device presence model for router trackers.
//
// A Record caches what the router last reported about one network client
// (name, address, outbound access) together with the "consider home"
// connectivity decision. A Registry maps stable device keys (MAC addresses)
// to Records and merges each poll's scan results into them.
//
// # Consider-home window
//
// A device observed active in a poll is connected and its LastActivity is
// stamped with the poll time. A device not active in a later poll stays
// connected while now - LastActivity < considerHome; once the window has
// elapsed it is reported disconnected. Absence from a scan never removes a
// record and never flips connectivity on its own.
//
// # Usage
//
//	reg := presence.NewRegistry()
//	isNew := reg.ApplyScan(time.Now(), 180*time.Second, []presence.ScanEntry{
//	    {Key: "AA:BB:CC:DD:EE:FF", Observation: presence.Observation{Name: "phone", IPAddress: "192.168.178.20", WANAccess: true}, Active: true},
//	})
//	rec, ok := reg.Get("AA:BB:CC:DD:EE:FF")
//
// # Thread Safety
//
// Registry is safe for concurrent readers. Only the owning coordinator calls
// ApplyScan; readers receive value copies and cannot mutate cached records.
package presence
