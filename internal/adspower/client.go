package adspower

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// The vendor's local API wraps every response in {code, msg, data}; code 0
// means success. Rate-limited responses carry a non-zero code with a
// "Too many request" message and must be retried with backoff.

// Client talks to the AdsPower-compatible local API that provisions remote
// browser profiles and exposes their CDP endpoints.
type Client struct {
	baseURL    string
	vendorHost string
	httpClient *http.Client

	mu          sync.Mutex
	resolvedIPs map[string]string // hostname -> IP, resolved once
}

// StartResult carries the CDP endpoints returned by a profile start.
type StartResult struct {
	WebSocketURL string // puppeteer/CDP ws endpoint, normalized to a reachable host
	DebugPort    string
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// NewClient creates a vendor client. vendorHost is the hostname that
// loopback addresses in returned ws URLs are rewritten to.
func NewClient(baseURL, vendorHost string, timeout time.Duration) *Client {
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		vendorHost:  vendorHost,
		httpClient:  &http.Client{Timeout: timeout},
		resolvedIPs: make(map[string]string),
	}
}

// startVariants are the launch-argument combinations tried in order when
// starting a profile. Some vendor versions reject newer parameters.
var startVariants = []url.Values{
	{"open_tabs": {"1"}, "ip_tab": {"0"}},
	{"open_tabs": {"1"}},
	{},
}

// StartProfile starts the remote browser profile and returns its CDP
// endpoint. Tries a small set of startup parameter variants and backs off on
// vendor rate limiting.
func (c *Client) StartProfile(ctx context.Context, profileID string) (*StartResult, error) {
	var lastErr error
	for _, variant := range startVariants {
		params := url.Values{}
		for k, v := range variant {
			params[k] = v
		}
		params.Set("user_id", profileID)

		data, err := c.getWithBackoff(ctx, "/api/v1/browser/start", params)
		if err != nil {
			lastErr = err
			logrus.Warnf("Profile %s start variant %v failed: %v", profileID, variant, err)
			continue
		}

		var payload struct {
			WS struct {
				Puppeteer string `json:"puppeteer"`
				Selenium  string `json:"selenium"`
			} `json:"ws"`
			DebugPort string `json:"debug_port"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			lastErr = fmt.Errorf("failed to parse start response: %w", err)
			continue
		}
		if payload.WS.Puppeteer == "" {
			lastErr = fmt.Errorf("start response carried no ws endpoint")
			continue
		}

		wsURL, err := c.NormalizeEndpoint(payload.WS.Puppeteer)
		if err != nil {
			return nil, err
		}
		return &StartResult{WebSocketURL: wsURL, DebugPort: payload.DebugPort}, nil
	}
	return nil, fmt.Errorf("failed to start profile %s: %w", profileID, lastErr)
}

// StopProfile stops the remote browser profile.
func (c *Client) StopProfile(ctx context.Context, profileID string) error {
	params := url.Values{"user_id": {profileID}}
	_, err := c.getWithBackoff(ctx, "/api/v1/browser/stop", params)
	if err != nil {
		return fmt.Errorf("failed to stop profile %s: %w", profileID, err)
	}
	return nil
}

// IsActive reports whether the vendor considers the profile's browser open.
func (c *Client) IsActive(ctx context.Context, profileID string) (bool, error) {
	params := url.Values{"user_id": {profileID}}
	data, err := c.getWithBackoff(ctx, "/api/v1/browser/active", params)
	if err != nil {
		return false, fmt.Errorf("failed to query profile %s: %w", profileID, err)
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return false, fmt.Errorf("failed to parse active response: %w", err)
	}
	return payload.Status == "Active", nil
}

// CreateProfileRequest is the subset of vendor profile settings we set.
type CreateProfileRequest struct {
	Name     string `json:"name"`
	GroupID  string `json:"group_id"`
	Platform string `json:"domain_name,omitempty"`
}

// CreateProfile creates a vendor browser profile and returns its id.
func (c *Client) CreateProfile(ctx context.Context, req *CreateProfileRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal create request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/user/create", strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to call vendor API: %w", err)
	}
	defer resp.Body.Close()

	data, err := decodeEnvelope(resp)
	if err != nil {
		return "", err
	}

	var payload struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("failed to parse create response: %w", err)
	}
	return payload.ID, nil
}

// getWithBackoff performs a GET and retries on vendor rate limiting.
func (c *Client) getWithBackoff(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	backoff := time.Second
	var lastErr error

	for attempt := 0; attempt < 4; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		data, err := c.get(ctx, path, params)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !isRateLimited(err) {
			return nil, err
		}
		logrus.Warnf("Vendor API rate limited on %s, backing off %s", path, backoff)
	}
	return nil, lastErr
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call vendor API: %w", err)
	}
	defer resp.Body.Close()

	return decodeEnvelope(resp)
}

func decodeEnvelope(resp *http.Response) (json.RawMessage, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("vendor API returned status %d: %s", resp.StatusCode, string(body))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode vendor response: %w", err)
	}
	if env.Code != 0 {
		return nil, fmt.Errorf("vendor API error (code %d): %s", env.Code, env.Msg)
	}
	return env.Data, nil
}

func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "too many request") || strings.Contains(msg, "rate limit")
}

// NormalizeEndpoint rewrites loopback or vendor-local hosts in a ws URL to a
// reachable address. The configured vendor hostname is resolved to an IP
// once and cached.
func (c *Client) NormalizeEndpoint(wsURL string) (string, error) {
	// Vendors sometimes return bare host:port/path, which url.Parse either
	// rejects (colon in the first path segment) or misreads as scheme-less.
	u, err := url.Parse(wsURL)
	if err != nil || u.Scheme == "" {
		u, err = url.Parse("ws://" + wsURL)
		if err != nil {
			return "", fmt.Errorf("failed to parse ws endpoint %q: %w", wsURL, err)
		}
	}

	host := u.Hostname()
	port := u.Port()
	if host == "127.0.0.1" || host == "localhost" || host == c.vendorHost {
		ip, err := c.resolveHost(c.vendorHost)
		if err != nil {
			// Keep the original host; the caller may still be co-located.
			logrus.Warnf("Failed to resolve vendor host %s: %v", c.vendorHost, err)
		} else {
			host = ip
		}
	}

	if port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else {
		u.Host = host
	}
	return u.String(), nil
}

func (c *Client) resolveHost(hostname string) (string, error) {
	if ip := net.ParseIP(hostname); ip != nil {
		return hostname, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if ip, ok := c.resolvedIPs[hostname]; ok {
		return ip, nil
	}

	addrs, err := net.LookupHost(hostname)
	if err != nil {
		return "", err
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("no addresses for %s", hostname)
	}
	c.resolvedIPs[hostname] = addrs[0]
	return addrs[0], nil
}
