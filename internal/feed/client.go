package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/liamashdown/launchwatch/internal/config"
	"github.com/liamashdown/launchwatch/internal/metrics"
	"github.com/liamashdown/launchwatch/internal/ratelimit"
	"github.com/liamashdown/launchwatch/internal/token"
)

// ErrNotFound is returned when the enrichment API has no data for a token
var ErrNotFound = errors.New("token not found")

// Client handles communication with the launch discovery and token
// metrics APIs
type Client struct {
	feedURL       string
	enrichURL     string
	httpClient    *http.Client
	authMode      config.AuthMode
	bearerToken   string
	apiKey        string
	extraHeaders  map[string]string
	batchLimit    int
	feedLimiter   *ratelimit.Limiter
	enrichLimiter *ratelimit.Limiter
}

// NewClient creates a new feed client
func NewClient(cfg *config.Config) *Client {
	return &Client{
		feedURL:       strings.TrimRight(cfg.FeedBaseURL, "/"),
		enrichURL:     strings.TrimRight(cfg.EnrichBaseURL, "/"),
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		authMode:      cfg.FeedAuthMode,
		bearerToken:   cfg.FeedBearerToken,
		apiKey:        cfg.FeedAPIKey,
		extraHeaders:  cfg.FeedExtraHeaders,
		batchLimit:    cfg.FeedBatchLimit,
		feedLimiter:   ratelimit.New(cfg.FeedRPS),
		enrichLimiter: ratelimit.New(cfg.EnrichRPS),
	}
}

// Discover fetches launches on chain created after since, oldest first
func (c *Client) Discover(ctx context.Context, chain token.Chain, since time.Time) ([]token.DiscoveryEvent, error) {
	if err := c.feedLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u, err := url.Parse(c.feedURL + "/launches")
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}

	q := u.Query()
	q.Set("chain", string(chain))
	if !since.IsZero() {
		q.Set("since", strconv.FormatInt(since.Unix(), 10))
	}
	if c.batchLimit > 0 {
		q.Set("limit", strconv.Itoa(c.batchLimit))
	}
	u.RawQuery = q.Encode()

	start := time.Now()
	body, err := c.get(ctx, u.String())
	metrics.RecordAPIRequest("feed", "/launches", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	launches, err := decodeLaunches(body)
	if err != nil {
		return nil, err
	}

	events := make([]token.DiscoveryEvent, 0, len(launches))
	for _, l := range launches {
		ev, ok := l.event(chain)
		if !ok {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// Enrich fetches the metrics document of one token. Missing fields are
// left nil so the documented defaults apply.
func (c *Client) Enrich(ctx context.Context, ev token.DiscoveryEvent) (token.Partial, error) {
	if c.enrichURL == "" {
		return token.Partial{}, ErrNotFound
	}
	if err := c.enrichLimiter.Wait(ctx); err != nil {
		return token.Partial{}, fmt.Errorf("rate limit wait: %w", err)
	}

	u := c.enrichURL + "/tokens/" + url.PathEscape(string(ev.Chain)) + "/" + url.PathEscape(ev.Address)

	start := time.Now()
	body, err := c.get(ctx, u)
	metrics.RecordAPIRequest("enrich", "/tokens", time.Since(start), err)
	if err != nil {
		return token.Partial{}, err
	}

	var p token.Partial
	if err := json.Unmarshal(body, &p); err != nil {
		return token.Partial{}, fmt.Errorf("decode response: %w", err)
	}
	return p, nil
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	c.setAuthHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("401 Unauthorized (auth_mode=%s) - check credentials", c.authMode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func (c *Client) setAuthHeaders(req *http.Request) {
	switch c.authMode {
	case config.AuthModeBearer:
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	case config.AuthModeAPIKey:
		req.Header.Set("X-API-KEY", c.apiKey)
	case config.AuthModeNone:
		// No auth headers
	}

	for k, v := range c.extraHeaders {
		req.Header.Set(k, v)
	}
}
