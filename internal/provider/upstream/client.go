// Package upstream implements provider.Client by forwarding every capability
// to a Meting-compatible JSON API.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/JakeFAU/meting-gateway/internal/meting"
	"github.com/JakeFAU/meting-gateway/internal/provider"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "meting-gateway/1.0"
	// maxBodyBytes caps how much of an upstream response is read.
	maxBodyBytes = 8 << 20
)

// Waiter paces outbound calls. *ratelimit.Limiter satisfies it.
type Waiter interface {
	Wait(ctx context.Context, key string) error
}

// Config controls the upstream gateway connection.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Upstream holds the shared HTTP client used by every request-scoped Client.
type Upstream struct {
	cfg        Config
	base       *url.URL
	httpClient *http.Client
	limiter    Waiter
	logger     *zap.Logger
}

// New validates cfg and builds an Upstream. limiter may be nil.
func New(cfg Config, limiter Waiter, logger *zap.Logger) (*Upstream, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("upstream base url required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("upstream base url must be http or https, got %q", base.Scheme)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Upstream{
		cfg:  cfg,
		base: base,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(newHTTPTransport()),
		},
		limiter: limiter,
		logger:  logger,
	}, nil
}

// Factory returns a provider.Factory bound to this upstream.
func (u *Upstream) Factory() provider.Factory {
	return func(server string) (provider.Client, error) {
		return &Client{upstream: u, server: server}, nil
	}
}

// Client speaks for one server through the upstream gateway.
type Client struct {
	upstream  *Upstream
	server    string
	formatted bool
}

var _ provider.Client = (*Client)(nil)

// Format implements provider.Client.
func (c *Client) Format(formatted bool) { c.formatted = formatted }

// Search implements provider.Client.
func (c *Client) Search(ctx context.Context, keyword string, opts provider.SearchOptions) (meting.Payload, error) {
	q := url.Values{"keyword": {keyword}}
	setPositive(q, "category", opts.Category)
	setPositive(q, "page", opts.Page)
	setPositive(q, "limit", opts.Limit)
	return c.call(ctx, provider.CapabilitySearch, q)
}

// Song implements provider.Client.
func (c *Client) Song(ctx context.Context, id string) (meting.Payload, error) {
	return c.call(ctx, provider.CapabilitySong, url.Values{"id": {id}})
}

// Album implements provider.Client.
func (c *Client) Album(ctx context.Context, id string) (meting.Payload, error) {
	return c.call(ctx, provider.CapabilityAlbum, url.Values{"id": {id}})
}

// Artist implements provider.Client.
func (c *Client) Artist(ctx context.Context, id string, limit int) (meting.Payload, error) {
	q := url.Values{"id": {id}}
	setPositive(q, "limit", limit)
	return c.call(ctx, provider.CapabilityArtist, q)
}

// Playlist implements provider.Client.
func (c *Client) Playlist(ctx context.Context, id string) (meting.Payload, error) {
	return c.call(ctx, provider.CapabilityPlaylist, url.Values{"id": {id}})
}

// URL implements provider.Client.
func (c *Client) URL(ctx context.Context, id string, bitrate int) (meting.Payload, error) {
	q := url.Values{"id": {id}}
	setPositive(q, "br", bitrate)
	return c.call(ctx, provider.CapabilityURL, q)
}

// Picture implements provider.Client.
func (c *Client) Picture(ctx context.Context, id string, size int) (meting.Payload, error) {
	q := url.Values{"id": {id}}
	setPositive(q, "size", size)
	return c.call(ctx, provider.CapabilityPicture, q)
}

// Lyric implements provider.Client.
func (c *Client) Lyric(ctx context.Context, id string) (meting.Payload, error) {
	return c.call(ctx, provider.CapabilityLyric, url.Values{"id": {id}})
}

func (c *Client) call(ctx context.Context, capability string, q url.Values) (meting.Payload, error) {
	u := c.upstream
	if u.limiter != nil {
		if err := u.limiter.Wait(ctx, c.server); err != nil {
			return meting.Payload{}, err
		}
	}

	q.Set("server", c.server)
	q.Set("type", capability)
	q.Set("format", strconv.FormatBool(c.formatted))
	target := *u.base
	target.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), http.NoBody)
	if err != nil {
		return meting.Payload{}, fmt.Errorf("build %s request: %w", capability, err)
	}
	req.Header.Set("User-Agent", u.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := u.httpClient.Do(req)
	if err != nil {
		return meting.Payload{}, fmt.Errorf("upstream %s: %w", capability, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return meting.Payload{}, fmt.Errorf("read upstream %s body: %w", capability, err)
	}
	u.logger.Debug("upstream call",
		zap.String("server", c.server),
		zap.String("type", capability),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return meting.Payload{}, fmt.Errorf("upstream %s returned status %d", capability, resp.StatusCode)
	}
	return meting.TextPayload(string(body)), nil
}

func setPositive(q url.Values, key string, v int) {
	if v > 0 {
		q.Set(key, strconv.Itoa(v))
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
