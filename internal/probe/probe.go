// Package probe verifies that a media link is reachable and reports where it
// finally lands.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/JakeFAU/meting-gateway/internal/meting"
	"github.com/JakeFAU/meting-gateway/internal/metrics"
	"github.com/JakeFAU/meting-gateway/internal/telemetry"
)

const (
	// ViaHead tags results obtained with a HEAD request.
	ViaHead = "HEAD"
	// ViaRangeGet tags results obtained with the single-byte GET fallback.
	ViaRangeGet = "GET-range"

	defaultTimeout   = 15 * time.Second
	defaultMaxHops   = 5
	defaultUserAgent = "Meting-Media-Check/1.0"
	maxDrainBytes    = 64 << 10
)

// Config tunes the probe engine. Zero values fall back to defaults.
type Config struct {
	// Timeout bounds each individual request.
	Timeout time.Duration
	// MaxHops bounds the number of HEAD requests per probe.
	MaxHops   int
	UserAgent string
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Result is the outcome of a probe.
type Result struct {
	FinalURL   string      `json:"finalUrl"`
	StatusCode int         `json:"status"`
	Header     http.Header `json:"headers"`
	Via        string      `json:"via"`
}

// Engine issues probes. It is safe for concurrent use.
type Engine struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New constructs an Engine.
func New(cfg Config, logger *zap.Logger) *Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxHops <= 0 {
		cfg.MaxHops = defaultMaxHops
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Engine{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}
}

// Probe resolves target to its final reachable form. Redirects are chased
// with HEAD up to the hop bound; a server rejecting HEAD with 400 or 405 gets
// one GET for the first byte of the same URL instead.
func (e *Engine) Probe(ctx context.Context, target string) (res Result, err error) {
	ctx, span := telemetry.StartSpan(ctx, "probe.Probe", attribute.String("url", target))
	defer func() {
		span.SetAttributes(attribute.String("via", res.Via), attribute.Int("status", res.StatusCode))
		telemetry.EndSpan(span, err)
	}()

	current, err := url.Parse(target)
	if err != nil {
		return Result{}, fmt.Errorf("parse probe url: %w", err)
	}

	for hop := 0; hop < e.cfg.MaxHops; hop++ {
		resp, err := e.do(ctx, http.MethodHead, current, false)
		if err != nil {
			return Result{}, err
		}

		if isRedirect(resp.StatusCode) {
			if loc := resp.Header.Get("Location"); loc != "" {
				next, err := current.Parse(loc)
				if err != nil {
					return Result{}, fmt.Errorf("parse redirect location %q: %w", loc, err)
				}
				e.logger.Debug("following redirect",
					zap.String("from", current.String()),
					zap.String("to", next.String()),
					zap.Int("status", resp.StatusCode),
				)
				current = next
				continue
			}
		}

		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusMethodNotAllowed {
			resp, err = e.do(ctx, http.MethodGet, current, true)
			if err != nil {
				return Result{}, err
			}
			return e.result(current, resp, ViaRangeGet), nil
		}
		return e.result(current, resp, ViaHead), nil
	}
	return Result{}, fmt.Errorf("%w: %s after %d requests", meting.ErrTooManyRedirects, target, e.cfg.MaxHops)
}

// do issues one request under its own timeout. The body is drained and
// closed before returning; only status and headers survive.
func (e *Engine) do(ctx context.Context, method string, target *url.URL, firstByte bool) (*http.Response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("User-Agent", e.cfg.UserAgent)
	if firstByte {
		req.Header.Set("Range", "bytes=0-0")
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %s %s after %s", meting.ErrProbeTimeout, method, target, e.cfg.Timeout)
		}
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	_, _ = io.CopyN(io.Discard, resp.Body, maxDrainBytes)
	_ = resp.Body.Close()
	return resp, nil
}

func (e *Engine) result(target *url.URL, resp *http.Response, via string) Result {
	metrics.ObserveProbe(via, resp.StatusCode)
	e.logger.Debug("probe resolved",
		zap.String("url", target.String()),
		zap.Int("status", resp.StatusCode),
		zap.String("via", via),
	)
	return Result{
		FinalURL:   target.String(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Via:        via,
	}
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}
