package transport

import (
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/fentonlabs/daxc/wire/common"
)

// Default ports for the two endpoint schemes.
const (
	defaultPort    = 8111
	defaultTLSPort = 9111
)

// Endpoint is one resolved cluster address.
type Endpoint struct {
	Host string
	Port int
	TLS  bool
}

// Addr returns the host:port dial target.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// String returns the endpoint in URL form.
func (e Endpoint) String() string {
	scheme := "dax"
	if e.TLS {
		scheme = "daxs"
	}
	return scheme + "://" + e.Addr()
}

// ParseEndpoint parses a dax:// or daxs:// URL, applying the scheme's
// default port when none is given. Any other scheme is rejected.
func ParseEndpoint(raw string) (Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: endpoint %q: %v", common.ErrInvalidConfig, raw, err)
	}

	var ep Endpoint
	switch u.Scheme {
	case "dax":
		ep.Port = defaultPort
	case "daxs":
		ep.Port = defaultTLSPort
		ep.TLS = true
	default:
		return Endpoint{}, fmt.Errorf("%w: unsupported scheme %q in endpoint %q", common.ErrInvalidConfig, u.Scheme, raw)
	}

	ep.Host = u.Hostname()
	if ep.Host == "" {
		return Endpoint{}, fmt.Errorf("%w: endpoint %q has no host", common.ErrInvalidConfig, raw)
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return Endpoint{}, fmt.Errorf("%w: endpoint %q has invalid port", common.ErrInvalidConfig, raw)
		}
		ep.Port = port
	}
	return ep, nil
}

// ParseEndpoints parses a list of endpoint URLs.
func ParseEndpoints(raw []string) ([]Endpoint, error) {
	eps := make([]Endpoint, 0, len(raw))
	for _, r := range raw {
		ep, err := ParseEndpoint(r)
		if err != nil {
			return nil, err
		}
		eps = append(eps, ep)
	}
	return eps, nil
}
