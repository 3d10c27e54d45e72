package fritz

import (
	"context"
	"testing"
)

func TestDeviceInfo(t *testing.T) {
	r := newFakeRouter(t)
	r.respond(ServiceDeviceInfo, "GetInfo", map[string]string{
		"NewModelName":       "FRITZ!Box 7590",
		"NewSerialNumber":    "1C:ED:6F:00:00:01",
		"NewSoftwareVersion": "154.07.57",
	})
	c := r.connect(t, "admin", "secret")

	info, err := c.DeviceInfo(context.Background())
	if err != nil {
		t.Fatalf("DeviceInfo() error = %v", err)
	}
	want := DeviceInfo{Model: "FRITZ!Box 7590", Serial: "1C:ED:6F:00:00:01", SoftwareVersion: "154.07.57"}
	if info != want {
		t.Errorf("DeviceInfo() = %+v, want %+v", info, want)
	}
}

func TestFirmwareInfo(t *testing.T) {
	tests := []struct {
		name string
		out  map[string]string
		want FirmwareInfo
	}{
		{
			name: "update offered",
			out:  map[string]string{"NewX_AVM-DE_Version": "154.07.58", "NewUpgradeAvailable": "1"},
			want: FirmwareInfo{LatestVersion: "154.07.58", UpdateAvailable: true},
		},
		{
			name: "up to date",
			out:  map[string]string{"NewX_AVM-DE_Version": "", "NewUpgradeAvailable": "0"},
			want: FirmwareInfo{},
		},
		{
			name: "version only",
			out:  map[string]string{"NewX_AVM-DE_Version": "154.07.58"},
			want: FirmwareInfo{LatestVersion: "154.07.58", UpdateAvailable: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newFakeRouter(t)
			r.respond(ServiceUserInterface, "GetInfo", tt.out)
			c := r.connect(t, "admin", "secret")

			got, err := c.FirmwareInfo(context.Background())
			if err != nil {
				t.Fatalf("FirmwareInfo() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("FirmwareInfo() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRouterActions(t *testing.T) {
	r := newFakeRouter(t)
	r.respond(ServiceDeviceConfig, "Reboot", map[string]string{})
	r.respond(ServiceWANIPConnection, "ForceTermination", map[string]string{})
	r.respond(ServiceUserInterface, "X_AVM-DE_DoUpdate", map[string]string{"NewX_AVM-DE_UpdateState": "Started"})
	c := r.connect(t, "admin", "secret")
	ctx := context.Background()

	if err := c.Reboot(ctx); err != nil {
		t.Errorf("Reboot() error = %v", err)
	}
	if err := c.Reconnect(ctx); err != nil {
		t.Errorf("Reconnect() error = %v", err)
	}
	state, err := c.FirmwareUpdate(ctx)
	if err != nil || state != "Started" {
		t.Errorf("FirmwareUpdate() = %q, %v; want Started", state, err)
	}

	var actions []string
	for _, call := range r.Calls() {
		actions = append(actions, call.Action)
	}
	want := []string{"Reboot", "ForceTermination", "X_AVM-DE_DoUpdate"}
	if len(actions) != len(want) {
		t.Fatalf("actions = %v, want %v", actions, want)
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Errorf("actions[%d] = %q, want %q", i, actions[i], want[i])
		}
	}
}
