package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"drafter/internal/config"
	"drafter/internal/logging"
	"drafter/internal/services"
)

const userAgent = "drafter/0.1.0"

// Client talks to the remote conversion service.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	logger       *slog.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient constructs a provider client from application config.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	timeout := time.Duration(cfg.Provider.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.Provider.BaseURL, "/"),
		clientID:     cfg.Provider.ClientID,
		clientSecret: cfg.Provider.ClientSecret,
		httpClient:   &http.Client{Timeout: timeout},
		logger:       logging.NewComponentLogger(logger, "provider"),
	}
}

// Submit sends a translation request and returns the provider job handle.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	var resp SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/designdata/job", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchStatus retrieves the current translation status for a urn.
func (c *Client) FetchStatus(ctx context.Context, urn string) (*StatusReport, error) {
	var report StatusReport
	path := "/designdata/" + url.PathEscape(urn) + "/status"
	if err := c.do(ctx, http.MethodGet, path, nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// FetchManifest retrieves the manifest for a finished translation.
func (c *Client) FetchManifest(ctx context.Context, urn string) (*Manifest, error) {
	var manifest Manifest
	path := "/designdata/" + url.PathEscape(urn) + "/manifest"
	if err := c.do(ctx, http.MethodGet, path, nil, &manifest); err != nil {
		return nil, err
	}
	return &manifest, nil
}

// FetchHierarchy retrieves the object tree for a finished translation.
func (c *Client) FetchHierarchy(ctx context.Context, urn string) (*Hierarchy, error) {
	var hierarchy Hierarchy
	path := "/designdata/" + url.PathEscape(urn) + "/metadata"
	if err := c.do(ctx, http.MethodGet, path, nil, &hierarchy); err != nil {
		return nil, err
	}
	return &hierarchy, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "provider", method+" "+path, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return c.classify(resp, method, path)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return services.Wrap(services.ErrTransient, "provider", method+" "+path, "decode response", err)
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return nil
}

// classify maps HTTP failures onto the engine error taxonomy. 4xx responses
// are permanent; 408, 429, and 5xx count as transient.
func (c *Client) classify(resp *http.Response, method, path string) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	detail := fmt.Sprintf("provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	op := method + " " + path

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.invalidateToken()
		return services.Wrap(services.ErrUnauthorized, "provider", op, detail, nil)
	case resp.StatusCode == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, "provider", op, detail, nil)
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return services.Wrap(services.ErrTransient, "provider", op, detail, nil)
	case resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusBadRequest:
		return services.Wrap(services.ErrRejected, "provider", op, detail, nil)
	default:
		return services.Wrap(services.ErrRejected, "provider", op, detail, nil)
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// ensureToken returns a cached two-legged token, refreshing when within a
// minute of expiry.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Until(c.tokenExpiry) > time.Minute {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/authentication/token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "provider", "token", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if resp.StatusCode >= 500 {
			return "", services.Wrap(services.ErrTransient, "provider", "token",
				fmt.Sprintf("provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))), nil)
		}
		return "", services.Wrap(services.ErrUnauthorized, "provider", "token",
			fmt.Sprintf("provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))), nil)
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", services.Wrap(services.ErrTransient, "provider", "token", "decode response", err)
	}
	if token.AccessToken == "" {
		return "", services.Wrap(services.ErrUnauthorized, "provider", "token", "empty access token", nil)
	}

	c.token = token.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	c.logger.Debug("provider token refreshed",
		logging.Duration(logging.FieldDuration, time.Until(c.tokenExpiry)))
	return c.token, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.tokenExpiry = time.Time{}
	c.mu.Unlock()
}
