package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds all configuration parameters for the accelerator
// client. Zero values are replaced with the documented defaults by
// ApplyDefaults.
type ClientConfig struct {
	// Cluster endpoints, dax:// (plaintext) or daxs:// (TLS) URLs. Exactly
	// one of EndpointURL and Endpoints must be set.
	EndpointURL string
	Endpoints   []string

	// Region used by the signer.
	Region string

	// Timeouts
	ConnectTimeout time.Duration // socket open, default 1s
	RequestTimeout time.Duration // per read after a request, default 60s
	IdleTimeout    time.Duration // connection idle threshold, default 30s

	// Pool limits
	MaxPendingConnectionsPerHost       int // default 10
	MaxConcurrentRequestsPerConnection int // accepted upper bound, default 1000

	// TLS
	SkipHostnameVerification bool

	// Metadata caches
	KeyCacheSize  int           // default 1000
	KeyCacheTTL   time.Duration // default 60s
	AttrCacheSize int           // default 1000

	// Logging
	DebugLogging bool
}

// ApplyDefaults fills unset fields with their default values.
func (c *ClientConfig) ApplyDefaults() {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 60 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 30 * time.Second
	}
	if c.MaxPendingConnectionsPerHost <= 0 {
		c.MaxPendingConnectionsPerHost = 10
	}
	if c.MaxConcurrentRequestsPerConnection <= 0 {
		c.MaxConcurrentRequestsPerConnection = 1000
	}
	if c.KeyCacheSize <= 0 {
		c.KeyCacheSize = 1000
	}
	if c.KeyCacheTTL <= 0 {
		c.KeyCacheTTL = 60 * time.Second
	}
	if c.AttrCacheSize <= 0 {
		c.AttrCacheSize = 1000
	}
}

// Validate checks the endpoint configuration. Exactly one of EndpointURL
// and Endpoints must be present.
func (c *ClientConfig) Validate() error {
	if c.EndpointURL == "" && len(c.Endpoints) == 0 {
		return fmt.Errorf("%w: no endpoint configured", ErrInvalidConfig)
	}
	if c.EndpointURL != "" && len(c.Endpoints) > 0 {
		return fmt.Errorf("%w: endpoint_url and endpoints are mutually exclusive", ErrInvalidConfig)
	}
	return nil
}

// EndpointURLs returns the configured endpoints as a single list.
func (c *ClientConfig) EndpointURLs() []string {
	if c.EndpointURL != "" {
		return []string{c.EndpointURL}
	}
	return c.Endpoints
}

// String returns a formatted string representation of the configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-26s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Region", c.Region)
	addField("Connect Timeout", c.ConnectTimeout.String())
	addField("Request Timeout", c.RequestTimeout.String())
	addField("Idle Timeout", c.IdleTimeout.String())
	addField("Skip Hostname Verification", strconv.FormatBool(c.SkipHostnameVerification))
	addField("Debug Logging", strconv.FormatBool(c.DebugLogging))

	addSection("Pool")
	addField("Max Pending Conns Per Host", strconv.Itoa(c.MaxPendingConnectionsPerHost))
	addField("Max Requests Per Conn", strconv.Itoa(c.MaxConcurrentRequestsPerConnection))

	addSection("Caches")
	addField("Key Schema Cache Size", strconv.Itoa(c.KeyCacheSize))
	addField("Key Schema Cache TTL", c.KeyCacheTTL.String())
	addField("Attribute List Cache Size", strconv.Itoa(c.AttrCacheSize))

	addSection("Endpoints")
	for i, endpoint := range c.EndpointURLs() {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
