package fritz

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Service short names used by this package.
const (
	ServiceHosts           = "Hosts:1"
	ServiceHostFilter      = "X_AVM-DE_HostFilter:1"
	ServiceDeviceInfo      = "DeviceInfo:1"
	ServiceDeviceConfig    = "DeviceConfig:1"
	ServiceUserInterface   = "UserInterface:1"
	ServiceWANIPConnection = "WANIPConnection:1"
)

// descriptionPath is where the router publishes its service list.
const descriptionPath = "/tr64desc.xml"

// service is one entry of the router's service list.
type service struct {
	Type       string
	ControlURL string
}

type descRoot struct {
	XMLName xml.Name   `xml:"root"`
	Device  descDevice `xml:"device"`
}

type descDevice struct {
	ModelName string        `xml:"modelName"`
	Services  []descService `xml:"serviceList>service"`
	Devices   []descDevice  `xml:"deviceList>device"`
}

type descService struct {
	ServiceType string `xml:"serviceType"`
	ControlURL  string `xml:"controlURL"`
}

// parseDescription reads tr64desc.xml and returns services keyed by short
// name, plus the model name of the root device.
func parseDescription(r io.Reader) (map[string]service, string, error) {
	var root descRoot
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return nil, "", fmt.Errorf("%w: parsing description: %w", ErrProtocol, err)
	}

	services := make(map[string]service)
	collectServices(root.Device, services)
	if len(services) == 0 {
		return nil, "", fmt.Errorf("%w: description lists no services", ErrProtocol)
	}
	return services, root.Device.ModelName, nil
}

func collectServices(d descDevice, into map[string]service) {
	for _, s := range d.Services {
		name := shortServiceName(s.ServiceType)
		if name == "" || s.ControlURL == "" {
			continue
		}
		if _, dup := into[name]; dup {
			continue
		}
		into[name] = service{Type: s.ServiceType, ControlURL: s.ControlURL}
	}
	for _, child := range d.Devices {
		collectServices(child, into)
	}
}

// shortServiceName returns the part after "service:".
//
// Example: "urn:dslforum-org:service:Hosts:1" -> "Hosts:1"
func shortServiceName(serviceType string) string {
	const marker = ":service:"
	i := strings.Index(serviceType, marker)
	if i < 0 {
		return ""
	}
	return serviceType[i+len(marker):]
}
