package fritz

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/icholy/digest"
)

// Defaults for a FRITZ!Box on the local network.
const (
	DefaultHost    = "192.168.178.1"
	DefaultPort    = 49000
	DefaultTimeout = 60 * time.Second

	// maxResponseSize caps SOAP response bodies.
	maxResponseSize = 1 << 20
)

// Logger defines the logging interface used by the client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config holds connection settings for one router.
type Config struct {
	// Host is the router address. Default: 192.168.178.1.
	Host string

	// Port is the TR-064 port. Default: 49000.
	Port int

	Username string
	Password string

	// Timeout bounds each HTTP request. Default: 60s.
	Timeout time.Duration

	// BaseURL overrides Host and Port (used by tests).
	BaseURL string

	// HTTPClient overrides the HTTP client. Timeout is ignored when set.
	// Its transport is wrapped for digest authentication.
	HTTPClient *http.Client
}

// Client calls TR-064 actions on a FRITZ!Box.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	model   string

	services map[string]service

	logger Logger
}

// Connect creates a client and loads the router's service description.
//
// Returns:
//   - *Client: Client ready for action calls
//   - error: ErrConnection if the router is unreachable, ErrProtocol if the
//     description cannot be parsed
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	c := newClient(cfg)
	if err := c.loadDescription(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func newClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		host := cfg.Host
		if host == "" {
			host = DefaultHost
		}
		port := cfg.Port
		if port == 0 {
			port = DefaultPort
		}
		base = "http://" + net.JoinHostPort(host, strconv.Itoa(port))
	}

	var hc http.Client
	if cfg.HTTPClient != nil {
		hc = *cfg.HTTPClient
	} else {
		hc.Timeout = cfg.Timeout
		if hc.Timeout <= 0 {
			hc.Timeout = DefaultTimeout
		}
	}
	// The transport answers digest challenges and reuses the cached nonce,
	// renewing it when the router rotates it.
	hc.Transport = &digest.Transport{
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: hc.Transport,
	}

	return &Client{
		baseURL:  base,
		http:     &hc,
		services: make(map[string]service),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// ModelName returns the model reported in the service description.
func (c *Client) ModelName() string {
	return c.model
}

// HasService reports whether the router offers the named service.
func (c *Client) HasService(name string) bool {
	_, ok := c.services[name]
	return ok
}

func (c *Client) loadDescription(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+descriptionPath, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: fetching description: %w", ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: description returned HTTP %d", ErrProtocol, resp.StatusCode)
	}

	services, model, err := parseDescription(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return err
	}
	c.services = services
	c.model = model

	c.logger.Debug("loaded TR-064 description",
		"url", c.baseURL,
		"model", model,
		"services", len(services),
	)
	return nil
}

// CallAction invokes action on service and returns the response arguments.
//
// Parameters:
//   - service: Short service name (e.g. "Hosts:1")
//   - action: Action name (e.g. "GetGenericHostEntry")
//   - args: Input arguments; may be nil
//
// Returns:
//   - map[string]string: Output arguments keyed by name
//   - error: Sentinel-wrapped failure or *FaultError
func (c *Client) CallAction(ctx context.Context, serviceName, action string, args map[string]string) (map[string]string, error) {
	svc, ok := c.services[serviceName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrService, serviceName)
	}

	body := buildEnvelope(svc.Type, action, args)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+svc.ControlURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("SOAPAction", svc.Type+"#"+action)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s#%s: %w", ErrConnection, serviceName, action, err)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrConnection, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return parseResponse(data, serviceName, action)

	case http.StatusUnauthorized:
		// The transport already answered a fresh challenge.
		return nil, fmt.Errorf("%w: %s#%s", ErrAuthFailed, serviceName, action)

	case http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s#%s: forbidden", ErrSecurity, serviceName, action)

	case http.StatusInternalServerError:
		if _, err := parseResponse(data, serviceName, action); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s#%s: HTTP 500", ErrProtocol, serviceName, action)

	default:
		return nil, fmt.Errorf("%w: %s#%s: HTTP %d", ErrProtocol, serviceName, action, resp.StatusCode)
	}
}

// buildEnvelope renders a SOAP request body. Arguments are emitted in
// name order.
func buildEnvelope(serviceType, action string, args map[string]string) []byte {
	names := make([]string, 0, len(args))
	for k := range args {
		names = append(names, k)
	}
	sort.Strings(names)

	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>`)
	b.WriteString(`<s:Envelope s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/" xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">`)
	b.WriteString(`<s:Body><u:`)
	b.WriteString(action)
	b.WriteString(` xmlns:u="`)
	_ = xml.EscapeText(&b, []byte(serviceType))
	b.WriteString(`">`)
	for _, name := range names {
		b.WriteString("<" + name + ">")
		_ = xml.EscapeText(&b, []byte(args[name]))
		b.WriteString("</" + name + ">")
	}
	b.WriteString(`</u:`)
	b.WriteString(action)
	b.WriteString(`></s:Body></s:Envelope>`)
	return b.Bytes()
}

type soapEnvelope struct {
	Body struct {
		Inner []byte `xml:",innerxml"`
	} `xml:"Body"`
}

type soapFault struct {
	FaultString string `xml:"faultstring"`
	Code        int    `xml:"detail>UPnPError>errorCode"`
	Description string `xml:"detail>UPnPError>errorDescription"`
}

type soapArgs struct {
	Fields []struct {
		XMLName xml.Name
		Value   string `xml:",chardata"`
	} `xml:",any"`
}

// parseResponse decodes a SOAP response or fault.
func parseResponse(data []byte, serviceName, action string) (map[string]string, error) {
	var env soapEnvelope
	if err := xml.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %s#%s: %w", ErrProtocol, serviceName, action, err)
	}

	dec := xml.NewDecoder(bytes.NewReader(env.Body.Inner))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s#%s: empty body", ErrProtocol, serviceName, action)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s#%s: %w", ErrProtocol, serviceName, action, err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		if start.Name.Local == "Fault" {
			var f soapFault
			if err := dec.DecodeElement(&f, &start); err != nil {
				return nil, fmt.Errorf("%w: %s#%s: decoding fault: %w", ErrProtocol, serviceName, action, err)
			}
			desc := f.Description
			if desc == "" {
				desc = f.FaultString
			}
			return nil, &FaultError{Service: serviceName, Action: action, Code: f.Code, Description: desc}
		}

		var a soapArgs
		if err := dec.DecodeElement(&a, &start); err != nil {
			return nil, fmt.Errorf("%w: %s#%s: %w", ErrProtocol, serviceName, action, err)
		}
		out := make(map[string]string, len(a.Fields))
		for _, f := range a.Fields {
			out[f.XMLName.Local] = f.Value
		}
		return out, nil
	}
}
