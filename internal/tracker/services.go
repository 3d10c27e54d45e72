package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-tracker/internal/coordinator"
	"github.com/nerrad567/gray-logic-tracker/internal/entity"
)

// Reboot restarts the router.
func (i *Integration) Reboot(ctx context.Context, routerID string) error {
	e, err := i.Router(routerID)
	if err != nil {
		return err
	}
	i.log().Info("rebooting router", "router", routerID)
	if err := e.client.Reboot(ctx); err != nil {
		return fmt.Errorf("%w: reboot: %w", ErrServiceFailed, err)
	}
	return nil
}

// Reconnect drops and re-establishes the router's WAN connection.
func (i *Integration) Reconnect(ctx context.Context, routerID string) error {
	e, err := i.Router(routerID)
	if err != nil {
		return err
	}
	i.log().Info("reconnecting router", "router", routerID)
	if err := e.client.Reconnect(ctx); err != nil {
		return fmt.Errorf("%w: reconnect: %w", ErrServiceFailed, err)
	}
	return nil
}

// FirmwareUpdate starts a firmware update.
//
// Returns:
//   - string: The update state reported by the router
//   - error: If the router is unknown or rejected the call
func (i *Integration) FirmwareUpdate(ctx context.Context, routerID string) (string, error) {
	e, err := i.Router(routerID)
	if err != nil {
		return "", err
	}
	i.log().Info("starting firmware update", "router", routerID)
	state, err := e.client.FirmwareUpdate(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: firmware update: %w", ErrServiceFailed, err)
	}
	return state, nil
}

// Refresh runs a refresh cycle now.
//
// Returns:
//   - error: coordinator.ErrCycleInProgress if a cycle is already running,
//     the cycle error for transient, auth or abandoned cycles, otherwise
//     ErrServiceFailed wrapping the fatal cycle error
func (i *Integration) Refresh(ctx context.Context, routerID string) error {
	e, err := i.Router(routerID)
	if err != nil {
		return err
	}

	err = e.coord.Refresh(ctx)
	switch {
	case err == nil,
		errors.Is(err, coordinator.ErrCycleInProgress),
		errors.Is(err, coordinator.ErrUpdateFailed),
		errors.Is(err, coordinator.ErrAuthRequired),
		ctx.Err() != nil:
		return err
	}
	return fmt.Errorf("%w: refresh: %w", ErrServiceFailed, err)
}

// Cleanup removes tracker entities whose MAC the router no longer lists,
// then removes devices of the router that have no entities left.
//
// Returns:
//   - int: Number of entities removed
//   - error: If the host list could not be read or a removal failed
func (i *Integration) Cleanup(ctx context.Context, routerID string) (int, error) {
	e, err := i.Router(routerID)
	if err != nil {
		return 0, err
	}

	hosts, err := e.client.HostList(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: reading hosts: %w", ErrServiceFailed, err)
	}
	known := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		known[h.MAC] = true
	}

	reg := i.opts.Entities
	removed := 0
	for _, ent := range reg.EntitiesForConfigEntry(routerID) {
		if !ent.IsTrackerEntity() || known[ent.MAC()] {
			continue
		}
		i.log().Info("removing entity", "router", routerID, "entity", ent.Name, "unique_id", ent.UniqueID)
		if err := reg.RemoveEntity(ctx, ent.ID); err != nil && !entity.IsNotFound(err) {
			return removed, fmt.Errorf("removing entity %s: %w", ent.ID, err)
		}
		e.platform.untrack(ent.MAC())
		removed++
	}

	if removed == 0 {
		return 0, nil
	}

	for _, dev := range reg.DevicesForConfigEntry(routerID) {
		if len(reg.EntitiesForDevice(dev.ID)) > 0 {
			continue
		}
		i.log().Info("removing device", "router", routerID, "device", dev.Name)
		if err := reg.RemoveDevice(ctx, dev.ID); err != nil && !entity.IsNotFound(err) {
			return removed, fmt.Errorf("removing device %s: %w", dev.ID, err)
		}
	}

	return removed, nil
}

// SetInternetAccess allows or blocks outbound access for a tracked device
// and refreshes the router so the switch reflects the new state.
func (i *Integration) SetInternetAccess(ctx context.Context, routerID, mac string, allow bool) error {
	e, err := i.Router(routerID)
	if err != nil {
		return err
	}

	mac = strings.ToUpper(mac)
	rec, ok := e.coord.Registry().Get(mac)
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, mac)
	}
	if rec.IPAddress == "" {
		return fmt.Errorf("%w: %s", ErrNoIPAddress, mac)
	}

	i.log().Info("setting internet access",
		"router", routerID,
		"mac", mac,
		"allow", allow,
	)
	if err := e.client.SetWANAccess(ctx, rec.IPAddress, allow); err != nil {
		return fmt.Errorf("%w: set internet access: %w", ErrServiceFailed, err)
	}

	if err := e.coord.Refresh(ctx); err != nil && !errors.Is(err, coordinator.ErrCycleInProgress) {
		i.log().Warn("refresh after internet access change failed", "router", routerID, "error", err)
	}
	return nil
}
