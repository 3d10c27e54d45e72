// Package fritz is a small TR-064 client for AVM FRITZ!Box routers.
//
// TR-064 is SOAP over HTTP. The router publishes its services in
// /tr64desc.xml; every service has a type (e.g. "urn:dslforum-org:service:Hosts:1")
// and a control URL that accepts action calls. Calls are authenticated with
// HTTP digest authentication by github.com/icholy/digest; UPnP argument
// values are encoded with github.com/huin/goupnp/soap.
//
// The client resolves services by their short name, the part of the
// service type after "service:" ("Hosts:1", "X_AVM-DE_HostFilter:1").
//
// Example:
//
//	c, err := fritz.Connect(ctx, fritz.Config{
//	    Host:     "192.168.178.1",
//	    Username: "admin",
//	    Password: secret,
//	})
//	if err != nil {
//	    return err
//	}
//	hosts, err := c.HostList(ctx)
//
// # Errors
//
// Network failures map to ErrConnection, a refused request (403) to
// ErrSecurity, wrong credentials to ErrAuthFailed. SOAP faults
// are returned as *FaultError, which unwraps to a sentinel describing the
// UPnP error code.
package fritz
