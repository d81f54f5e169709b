// Package fetcher builds the HTTP clients used for every outbound call and
// the URL checks applied to links taken from scraped pages.
package fetcher

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"natrail-bot/internal/observability/tracing"
)

// Errors returned by the helpers in this package.
var (
	ErrInvalidURL       = errors.New("invalid URL")
	ErrPrivateIP        = errors.New("URL resolves to a private address")
	ErrBodyTooLarge     = errors.New("response body too large")
	ErrTooManyRedirects = errors.New("too many redirects")
)

// NewHTTPClient returns a client with the configured timeout, TLS settings,
// redirect checks and tracing.
func NewHTTPClient(cfg ClientConfig, logger *slog.Logger) *http.Client {
	if cfg.InsecureSkipVerify {
		logger.Warn("TLS certificate verification is disabled for outbound requests",
			slog.String("setting", "INSECURE_SKIP_VERIFY"))
	}

	base := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: cfg.InsecureSkipVerify, // #nosec G402 -- opt-in, logged above
		},
	}

	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: tracing.NewTransport(base),
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return fmt.Errorf("%w: %d redirects", ErrTooManyRedirects, len(via))
			}
			if err := ValidateURL(req.URL.String(), cfg.DenyPrivateIPs); err != nil {
				return fmt.Errorf("redirect target validation failed: %w", err)
			}
			return nil
		},
	}
}

// ReadBody reads at most limit bytes from resp and fails if there is more.
func ReadBody(resp *http.Response, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrBodyTooLarge, limit)
	}
	return data, nil
}

// Snippet shortens a response body for logs and error messages.
func Snippet(body []byte) string {
	const max = 200
	if len(body) <= max {
		return string(body)
	}
	return string(body[:max]) + "..."
}
