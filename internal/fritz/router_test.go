package fritz

import (
	"context"
	"crypto/md5" //nolint:gosec // TR-064 digest uses MD5
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
)

const testDescription = `<?xml version="1.0"?>
<root xmlns="urn:dslforum-org:device-1-0">
  <device>
    <deviceType>urn:dslforum-org:device:InternetGatewayDevice:1</deviceType>
    <modelName>FRITZ!Box 7590</modelName>
    <serviceList>
      <service>
        <serviceType>urn:dslforum-org:service:DeviceInfo:1</serviceType>
        <controlURL>/upnp/control/deviceinfo</controlURL>
      </service>
      <service>
        <serviceType>urn:dslforum-org:service:DeviceConfig:1</serviceType>
        <controlURL>/upnp/control/deviceconfig</controlURL>
      </service>
      <service>
        <serviceType>urn:dslforum-org:service:Hosts:1</serviceType>
        <controlURL>/upnp/control/hosts</controlURL>
      </service>
      <service>
        <serviceType>urn:dslforum-org:service:X_AVM-DE_HostFilter:1</serviceType>
        <controlURL>/upnp/control/x_hostfilter</controlURL>
      </service>
      <service>
        <serviceType>urn:dslforum-org:service:UserInterface:1</serviceType>
        <controlURL>/upnp/control/userif</controlURL>
      </service>
    </serviceList>
    <deviceList>
      <device>
        <deviceType>urn:dslforum-org:device:WANDevice:1</deviceType>
        <deviceList>
          <device>
            <serviceList>
              <service>
                <serviceType>urn:dslforum-org:service:WANIPConnection:1</serviceType>
                <controlURL>/upnp/control/wanipconnection1</controlURL>
              </service>
            </serviceList>
          </device>
        </deviceList>
      </device>
    </deviceList>
  </device>
</root>`

// actionFunc answers one action call. A non-zero fault code renders a
// SOAP fault instead of the response arguments.
type actionFunc func(args map[string]string) (out map[string]string, fault int)

// recordedCall is one authenticated action call.
type recordedCall struct {
	Action string
	Args   map[string]string
}

// fakeRouter is a TR-064 endpoint with digest authentication.
type fakeRouter struct {
	mu         sync.Mutex
	username   string
	password   string
	nonceSeq   int
	nonce      string
	actions    map[string]actionFunc
	calls      []recordedCall
	status     int
	challenges int

	srv *httptest.Server
}

func newFakeRouter(t *testing.T) *fakeRouter {
	t.Helper()

	r := &fakeRouter{
		username: "admin",
		password: "secret",
		actions:  make(map[string]actionFunc),
	}
	r.srv = httptest.NewServer(http.HandlerFunc(r.serveHTTP))
	t.Cleanup(r.srv.Close)
	return r
}

func (r *fakeRouter) handle(service, action string, fn actionFunc) {
	r.mu.Lock()
	r.actions["urn:dslforum-org:service:"+service+"#"+action] = fn
	r.mu.Unlock()
}

// respond registers a fixed response.
func (r *fakeRouter) respond(service, action string, out map[string]string) {
	r.handle(service, action, func(map[string]string) (map[string]string, int) { return out, 0 })
}

func (r *fakeRouter) Calls() []recordedCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedCall(nil), r.calls...)
}

func (r *fakeRouter) connect(t *testing.T, username, password string) *Client {
	t.Helper()
	c, err := Connect(context.Background(), Config{
		BaseURL:  r.srv.URL,
		Username: username,
		Password: password,
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	return c
}

func (r *fakeRouter) serveHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method == http.MethodGet && req.URL.Path == descriptionPath {
		w.Header().Set("Content-Type", "text/xml")
		_, _ = io.WriteString(w, testDescription)
		return
	}

	r.mu.Lock()
	status := r.status
	r.mu.Unlock()
	if status != 0 {
		w.WriteHeader(status)
		return
	}

	if !r.authorized(req) {
		r.challenge(w)
		return
	}

	body, _ := io.ReadAll(req.Body)
	soapAction := req.Header.Get("SOAPAction")
	i := strings.LastIndexByte(soapAction, '#')
	if i < 0 {
		http.Error(w, "missing SOAPAction", http.StatusBadRequest)
		return
	}
	serviceType, action := soapAction[:i], soapAction[i+1:]

	args, err := parseResponse(body, serviceType, action)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	r.mu.Lock()
	fn := r.actions[soapAction]
	r.calls = append(r.calls, recordedCall{Action: action, Args: args})
	r.mu.Unlock()

	if fn == nil {
		writeFault(w, 401, "Invalid Action")
		return
	}
	out, fault := fn(args)
	if fault != 0 {
		writeFault(w, fault, "UPnPError")
		return
	}
	writeResult(w, serviceType, action, out)
}

func (r *fakeRouter) authorized(req *http.Request) bool {
	header := req.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Digest ") {
		return false
	}
	p := authParams(strings.TrimPrefix(header, "Digest "))

	r.mu.Lock()
	nonce := r.nonce
	r.mu.Unlock()

	if p["nonce"] != nonce || p["username"] != r.username {
		return false
	}
	ha1 := md5hex(r.username + ":" + p["realm"] + ":" + r.password)
	ha2 := md5hex(req.Method + ":" + p["uri"])
	want := md5hex(ha1 + ":" + nonce + ":" + p["nc"] + ":" + p["cnonce"] + ":" + p["qop"] + ":" + ha2)
	return p["response"] == want && p["uri"] == req.URL.RequestURI()
}

func (r *fakeRouter) challenge(w http.ResponseWriter) {
	r.mu.Lock()
	r.nonceSeq++
	r.challenges++
	r.nonce = fmt.Sprintf("nonce%04d", r.nonceSeq)
	nonce := r.nonce
	r.mu.Unlock()

	w.Header().Set("WWW-Authenticate", `Digest realm="HTTPS Access", nonce="`+nonce+`", algorithm=MD5, qop="auth"`)
	w.WriteHeader(http.StatusUnauthorized)
}

func writeResult(w http.ResponseWriter, serviceType, action string, out map[string]string) {
	names := make([]string, 0, len(out))
	for k := range out {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>`)
	fmt.Fprintf(&b, `<u:%sResponse xmlns:u="%s">`, action, serviceType)
	for _, n := range names {
		fmt.Fprintf(&b, "<%s>%s</%s>", n, out[n], n)
	}
	fmt.Fprintf(&b, `</u:%sResponse></s:Body></s:Envelope>`, action)

	w.Header().Set("Content-Type", `text/xml; charset="utf-8"`)
	_, _ = io.WriteString(w, b.String())
}

func writeFault(w http.ResponseWriter, code int, desc string) {
	w.Header().Set("Content-Type", `text/xml; charset="utf-8"`)
	w.WriteHeader(http.StatusInternalServerError)
	fmt.Fprintf(w, `<?xml version="1.0"?><s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body><s:Fault>`+
		`<faultcode>s:Client</faultcode><faultstring>UPnPError</faultstring><detail>`+
		`<UPnPError xmlns="urn:dslforum-org:control-1-0"><errorCode>%d</errorCode><errorDescription>%s</errorDescription></UPnPError>`+
		`</detail></s:Fault></s:Body></s:Envelope>`, code, desc)
}

// authParams splits the key=value pairs of an Authorization header.
func authParams(s string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		out[strings.ToLower(k)] = strings.Trim(v, `"`)
	}
	return out
}

func md5hex(s string) string {
	sum := md5.Sum([]byte(s)) //nolint:gosec // see import
	return hex.EncodeToString(sum[:])
}
