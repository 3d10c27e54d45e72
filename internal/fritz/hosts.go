package fritz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/huin/goupnp/soap"
)

// Host is one entry of the router's host table.
type Host struct {
	MAC           string
	IP            string
	Name          string
	Active        bool
	InterfaceType string
	AddressSource string
}

// HostList returns every entry of the Hosts:1 table.
//
// The table is read entry by entry. If it shrinks while being read the
// entries collected so far are returned.
func (c *Client) HostList(ctx context.Context) ([]Host, error) {
	res, err := c.CallAction(ctx, ServiceHosts, "GetHostNumberOfEntries", nil)
	if err != nil {
		return nil, err
	}

	count, err := soap.UnmarshalUi2(res["NewHostNumberOfEntries"])
	if err != nil {
		return nil, fmt.Errorf("%w: host count %q: %w", ErrProtocol, res["NewHostNumberOfEntries"], err)
	}
	n := int(count)

	hosts := make([]Host, 0, n)
	for i := 0; i < n; i++ {
		index, _ := soap.MarshalUi2(uint16(i)) // #nosec G115 -- i < count, a ui2; never errors
		entry, err := c.CallAction(ctx, ServiceHosts, "GetGenericHostEntry", map[string]string{
			"NewIndex": index,
		})
		if errors.Is(err, ErrArrayIndex) {
			c.logger.Debug("host table shrank while reading", "index", i, "expected", n)
			break
		}
		if err != nil {
			return nil, err
		}

		hosts = append(hosts, Host{
			MAC:           strings.ToUpper(entry["NewMACAddress"]),
			IP:            entry["NewIPAddress"],
			Name:          entry["NewHostName"],
			Active:        parseBool(entry["NewActive"]),
			InterfaceType: entry["NewInterfaceType"],
			AddressSource: entry["NewAddressSource"],
		})
	}

	return hosts, nil
}

// WANAccessDisallowed reports whether outbound access is blocked for ip.
func (c *Client) WANAccessDisallowed(ctx context.Context, ip string) (bool, error) {
	res, err := c.CallAction(ctx, ServiceHostFilter, "GetWANAccessByIP", map[string]string{
		"NewIPv4Address": ip,
	})
	if err != nil {
		return false, err
	}
	return parseBool(res["NewDisallow"]), nil
}

// SetWANAccess allows or blocks outbound access for ip.
func (c *Client) SetWANAccess(ctx context.Context, ip string, allow bool) error {
	disallow, _ := soap.MarshalBoolean(!allow) // never errors
	_, err := c.CallAction(ctx, ServiceHostFilter, "DisallowWANAccessByIP", map[string]string{
		"NewIPv4Address": ip,
		"NewDisallow":    disallow,
	})
	return err
}

// parseBool decodes a UPnP boolean. Malformed values read as false.
func parseBool(s string) bool {
	v, err := soap.UnmarshalBoolean(strings.ToLower(strings.TrimSpace(s)))
	return err == nil && v
}
