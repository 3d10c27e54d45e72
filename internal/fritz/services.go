package fritz

import "context"

// DeviceInfo is the router identity reported by DeviceInfo:1.
type DeviceInfo struct {
	Model           string
	Serial          string
	SoftwareVersion string
}

// FirmwareInfo is the update state reported by UserInterface:1.
type FirmwareInfo struct {
	// LatestVersion is the offered firmware version; empty when the
	// router is up to date.
	LatestVersion   string
	UpdateAvailable bool
}

// DeviceInfo reads model, serial number and installed firmware.
func (c *Client) DeviceInfo(ctx context.Context) (DeviceInfo, error) {
	res, err := c.CallAction(ctx, ServiceDeviceInfo, "GetInfo", nil)
	if err != nil {
		return DeviceInfo{}, err
	}
	return DeviceInfo{
		Model:           res["NewModelName"],
		Serial:          res["NewSerialNumber"],
		SoftwareVersion: res["NewSoftwareVersion"],
	}, nil
}

// FirmwareInfo reads the firmware update state.
func (c *Client) FirmwareInfo(ctx context.Context) (FirmwareInfo, error) {
	res, err := c.CallAction(ctx, ServiceUserInterface, "GetInfo", nil)
	if err != nil {
		return FirmwareInfo{}, err
	}

	version := res["NewX_AVM-DE_Version"]
	available := version != ""
	if flag, ok := res["NewUpgradeAvailable"]; ok {
		available = parseBool(flag)
	}
	return FirmwareInfo{LatestVersion: version, UpdateAvailable: available}, nil
}

// Reboot restarts the router.
func (c *Client) Reboot(ctx context.Context) error {
	_, err := c.CallAction(ctx, ServiceDeviceConfig, "Reboot", nil)
	return err
}

// Reconnect drops and re-establishes the WAN connection.
func (c *Client) Reconnect(ctx context.Context) error {
	_, err := c.CallAction(ctx, ServiceWANIPConnection, "ForceTermination", nil)
	return err
}

// FirmwareUpdate starts a firmware update and returns the reported
// update state (e.g. "Started").
func (c *Client) FirmwareUpdate(ctx context.Context) (string, error) {
	res, err := c.CallAction(ctx, ServiceUserInterface, "X_AVM-DE_DoUpdate", nil)
	if err != nil {
		return "", err
	}
	return res["NewX_AVM-DE_UpdateState"], nil
}
