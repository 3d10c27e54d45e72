package tracker

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-tracker/internal/coordinator"
	"github.com/nerrad567/gray-logic-tracker/internal/fritz"
	"github.com/nerrad567/gray-logic-tracker/internal/infrastructure/config"
)

// RouterClient is the subset of *fritz.Client the integration uses.
// This allows mocking in tests.
type RouterClient interface {
	HostList(ctx context.Context) ([]fritz.Host, error)
	WANAccessDisallowed(ctx context.Context, ip string) (bool, error)
	SetWANAccess(ctx context.Context, ip string, allow bool) error
	DeviceInfo(ctx context.Context) (fritz.DeviceInfo, error)
	FirmwareInfo(ctx context.Context) (fritz.FirmwareInfo, error)
	Reboot(ctx context.Context) error
	Reconnect(ctx context.Context) error
	FirmwareUpdate(ctx context.Context) (string, error)
}

// DialFunc opens a client for one configured router.
type DialFunc func(ctx context.Context, cfg config.RouterConfig) (RouterClient, error)

// DialFritz connects to a FRITZ!Box over TR-064.
func DialFritz(logger fritz.Logger) DialFunc {
	return func(ctx context.Context, cfg config.RouterConfig) (RouterClient, error) {
		c, err := fritz.Connect(ctx, fritz.Config{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
			Timeout:  cfg.TimeoutDuration(),
		})
		if err != nil {
			return nil, err
		}
		if logger != nil {
			c.SetLogger(logger)
		}
		return c, nil
	}
}

// NewClassifier returns the failure table for FRITZ!Box errors.
//
// Every error the TR-064 client raises is transient: unreachable router,
// refused request, unknown service, SOAP fault or unparseable response.
// The next cycle retries and the last good data stays. Only rejected
// credentials need reconfiguration. Errors from outside the client are
// fatal.
func NewClassifier() coordinator.ClassifierTable {
	return coordinator.ClassifierTable{
		Transient: []error{
			fritz.ErrConnection,
			fritz.ErrSecurity,
			fritz.ErrService,
			fritz.ErrAction,
			fritz.ErrArgument,
			fritz.ErrActionFailed,
			fritz.ErrArrayIndex,
			fritz.ErrInternal,
			fritz.ErrProtocol,
			context.DeadlineExceeded,
		},
		Auth: []error{fritz.ErrAuthFailed},
	}
}

// routerAdapter exposes a RouterClient through the coordinator's fetcher
// interfaces.
type routerAdapter struct {
	client RouterClient
}

// HostList implements coordinator.HostFetcher.
func (a routerAdapter) HostList(ctx context.Context) ([]coordinator.HostInfo, error) {
	hosts, err := a.client.HostList(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]coordinator.HostInfo, 0, len(hosts))
	for _, h := range hosts {
		out = append(out, coordinator.HostInfo{
			MAC:    h.MAC,
			Name:   h.Name,
			IP:     h.IP,
			Active: h.Active,
		})
	}
	return out, nil
}

// WANAccess implements coordinator.WANAccessFetcher.
func (a routerAdapter) WANAccess(ctx context.Context, ip string) (bool, error) {
	return a.client.WANAccessDisallowed(ctx, ip)
}

// DeviceMetadata implements coordinator.MetadataFetcher.
func (a routerAdapter) DeviceMetadata(ctx context.Context) (coordinator.Metadata, error) {
	info, err := a.client.DeviceInfo(ctx)
	if err != nil {
		return coordinator.Metadata{}, fmt.Errorf("reading device info: %w", err)
	}
	fw, err := a.client.FirmwareInfo(ctx)
	if err != nil {
		return coordinator.Metadata{}, fmt.Errorf("reading firmware info: %w", err)
	}

	return coordinator.Metadata{
		Model:           info.Model,
		Serial:          info.Serial,
		FirmwareVersion: info.SoftwareVersion,
		LatestFirmware:  fw.LatestVersion,
		UpdateAvailable: fw.UpdateAvailable,
	}, nil
}
