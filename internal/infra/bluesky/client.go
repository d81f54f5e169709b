// Package bluesky is a small XRPC client for the AT Protocol endpoints used
// to publish disruption posts: session creation, blob upload and record
// creation.
package bluesky

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"natrail-bot/internal/domain/entity"
	"natrail-bot/internal/infra/fetcher"
)

// DefaultPDS is the default personal data server.
const DefaultPDS = "https://bsky.social"

const (
	maxResponseSize = 1 << 20
	// sessionSkew renews the session this long before the access token expires.
	sessionSkew = time.Minute
	// defaultRetryAfter applies when a 429 carries no reset hint.
	defaultRetryAfter = 120 * time.Second
)

// Session is an authenticated session.
type Session struct {
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
	Handle     string `json:"handle"`
	DID        string `json:"did"`

	expiresAt time.Time
}

// XRPCError is a non-success response that is not an auth or rate limit failure.
type XRPCError struct {
	StatusCode int
	Name       string
	Message    string
}

func (e *XRPCError) Error() string {
	return fmt.Sprintf("xrpc HTTP %d %s: %s", e.StatusCode, e.Name, e.Message)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// authErrorNames are XRPC error names that mean the credentials or token
// were rejected.
var authErrorNames = map[string]bool{
	"AuthenticationRequired":  true,
	"AuthFactorTokenRequired": true,
	"AccountTakedown":         true,
	"InvalidToken":            true,
	"ExpiredToken":            true,
}

// Client talks to one PDS with one account.
type Client struct {
	baseURL    string
	handle     string
	password   string
	httpClient *http.Client
	now        func() time.Time
	logger     *slog.Logger

	mu      sync.Mutex
	session *Session
}

// NewClient creates a Client. An empty baseURL selects DefaultPDS.
func NewClient(baseURL, handle, password string, httpClient *http.Client, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultPDS
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		handle:     handle,
		password:   password,
		httpClient: httpClient,
		now:        time.Now,
		logger:     logger,
	}
}

// CreateSession logs in with the handle and app password.
func (c *Client) CreateSession(ctx context.Context) (*Session, error) {
	if c.handle == "" || c.password == "" {
		return nil, &entity.AuthError{Message: "handle and password are required"}
	}

	var s Session
	err := c.call(ctx, "com.atproto.server.createSession", "", "application/json",
		map[string]string{"identifier": c.handle, "password": c.password}, &s)
	if err != nil {
		var xe *XRPCError
		if errors.As(err, &xe) && (xe.StatusCode == http.StatusUnauthorized || xe.StatusCode == http.StatusBadRequest) {
			return nil, &entity.AuthError{StatusCode: xe.StatusCode, Message: xe.Message}
		}
		return nil, err
	}
	if s.AccessJwt == "" || s.DID == "" {
		return nil, &entity.MalformedResponseError{Missing: missing(map[string]string{"accessJwt": s.AccessJwt, "did": s.DID}), Snippet: "createSession"}
	}
	s.expiresAt = tokenExpiry(s.AccessJwt)

	c.mu.Lock()
	c.session = &s
	c.mu.Unlock()

	c.logger.Info("logged in to Bluesky", slog.String("handle", s.Handle), slog.String("did", s.DID))
	return &s, nil
}

// EnsureSession returns the current session while its access token is valid
// and logs in again otherwise.
func (c *Client) EnsureSession(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()

	if s != nil && !s.expiresAt.IsZero() && c.now().Add(sessionSkew).Before(s.expiresAt) {
		return s, nil
	}
	return c.CreateSession(ctx)
}

// Invalidate drops the cached session.
func (c *Client) Invalidate() {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
}

// UploadBlob stores data and returns the blob to reference from a record.
func (c *Client) UploadBlob(ctx context.Context, data []byte, mimeType string) (*Blob, error) {
	s, err := c.EnsureSession(ctx)
	if err != nil {
		return nil, err
	}

	var out struct {
		Blob *Blob `json:"blob"`
	}
	if err := c.call(ctx, "com.atproto.repo.uploadBlob", s.AccessJwt, mimeType, data, &out); err != nil {
		return nil, err
	}
	if out.Blob == nil || out.Blob.Ref.Link == "" {
		return nil, &entity.MalformedResponseError{Missing: []string{"blob"}, Snippet: "uploadBlob"}
	}
	return out.Blob, nil
}

// CreatePost creates post in the session's repository. The response must
// carry both uri and cid.
func (c *Client) CreatePost(ctx context.Context, post *Post) (entity.PostRef, error) {
	s, err := c.EnsureSession(ctx)
	if err != nil {
		return entity.PostRef{}, err
	}

	req := map[string]any{
		"repo":       s.DID,
		"collection": TypePost,
		"record":     post,
	}
	var out struct {
		URI string `json:"uri"`
		CID string `json:"cid"`
	}
	if err := c.call(ctx, "com.atproto.repo.createRecord", s.AccessJwt, "application/json", req, &out); err != nil {
		return entity.PostRef{}, err
	}

	if m := missing(map[string]string{"uri": out.URI, "cid": out.CID}); len(m) > 0 {
		raw, _ := json.Marshal(out)
		return entity.PostRef{}, &entity.MalformedResponseError{Missing: m, Snippet: string(raw)}
	}
	return entity.PostRef{URI: out.URI, CID: out.CID}, nil
}

// call POSTs to an XRPC procedure. body is JSON-encoded unless it is []byte.
func (c *Client) call(ctx context.Context, nsid, token, contentType string, body any, out any) error {
	var payload []byte
	switch b := body.(type) {
	case []byte:
		payload = b
	default:
		var err error
		if payload, err = json.Marshal(b); err != nil {
			return fmt.Errorf("marshal %s request: %w", nsid, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/xrpc/"+nsid, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create %s request: %w", nsid, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", nsid, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := fetcher.ReadBody(resp, maxResponseSize)
	if err != nil {
		return fmt.Errorf("%s: %w", nsid, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.Unmarshal(data, out); err != nil {
			return &entity.MalformedResponseError{Missing: []string{"valid JSON"}, Snippet: fetcher.Snippet(data)}
		}
		return nil
	}
	return c.statusError(resp, data)
}

func (c *Client) statusError(resp *http.Response, data []byte) error {
	var eb errorBody
	_ = json.Unmarshal(data, &eb)
	if eb.Message == "" {
		eb.Message = fetcher.Snippet(data)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &entity.RateLimitError{
			RetryAfter: retryAfter(resp.Header, c.now()),
			Message:    "Bluesky rate limit exceeded: " + eb.Message,
		}
	case resp.StatusCode == http.StatusUnauthorized || authErrorNames[eb.Error]:
		if eb.Error == "ExpiredToken" || eb.Error == "InvalidToken" {
			c.Invalidate()
		}
		return &entity.AuthError{StatusCode: resp.StatusCode, Message: eb.Message}
	default:
		return &XRPCError{StatusCode: resp.StatusCode, Name: eb.Error, Message: eb.Message}
	}
}

// retryAfter reads the ratelimit-reset (unix seconds) or Retry-After header.
func retryAfter(h http.Header, now time.Time) time.Duration {
	if v := h.Get("Ratelimit-Reset"); v != "" {
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			if d := time.Unix(ts, 0).Sub(now); d > 0 {
				return d
			}
		}
	}
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultRetryAfter
}

// tokenExpiry reads the exp claim without verifying the signature; the PDS
// verifies the token, this only decides when to log in again.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

func missing(fields map[string]string) []string {
	var out []string
	for _, name := range []string{"accessJwt", "did", "uri", "cid"} {
		if v, ok := fields[name]; ok && v == "" {
			out = append(out, name)
		}
	}
	return out
}
