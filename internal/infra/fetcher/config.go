package fetcher

import (
	"fmt"
	"time"
)

// ClientConfig holds the settings shared by every outbound HTTP client.
type ClientConfig struct {
	// Timeout is the overall limit for one request including the body read.
	// Default: 30s
	Timeout time.Duration

	// MaxBodySize caps response bodies in bytes.
	// Default: 10485760 (10MB)
	MaxBodySize int64

	// MaxRedirects is the maximum number of redirects to follow.
	// Default: 5
	MaxRedirects int

	// InsecureSkipVerify disables TLS certificate verification. It exists for
	// networks with intercepting proxies and is logged loudly when enabled.
	// Default: false
	InsecureSkipVerify bool

	// DenyPrivateIPs rejects URLs and redirects that resolve to private,
	// loopback or link-local addresses.
	// Default: true
	DenyPrivateIPs bool
}

// DefaultClientConfig returns the production defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:            30 * time.Second,
		MaxBodySize:        10 * 1024 * 1024,
		MaxRedirects:       5,
		InsecureSkipVerify: false,
		DenyPrivateIPs:     true,
	}
}

// Validate checks the configuration.
func (c ClientConfig) Validate() error {
	if c.Timeout < time.Second || c.Timeout > 5*time.Minute {
		return fmt.Errorf("timeout must be between 1s and 5m, got %v", c.Timeout)
	}
	if c.MaxBodySize < 1024 {
		return fmt.Errorf("max body size must be at least 1024 bytes, got %d", c.MaxBodySize)
	}
	if c.MaxRedirects < 0 || c.MaxRedirects > 20 {
		return fmt.Errorf("max redirects must be between 0 and 20, got %d", c.MaxRedirects)
	}
	return nil
}
