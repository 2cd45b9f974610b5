// Package client provides the outbound HTTP client used to fetch target URLs.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/proxy"

	"fetch-proxy-go/internal/config"
	"fetch-proxy-go/internal/metrics"
	"fetch-proxy-go/internal/model"
)

// ErrBodyTooLarge is returned when the upstream body exceeds upstream.max_body_bytes.
var ErrBodyTooLarge = errors.New("upstream response body exceeds size limit")

// TargetClient fetches arbitrary target URLs and buffers their responses.
type TargetClient struct {
	httpClient   *http.Client
	maxBodyBytes int64
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// NewTargetClient creates a TargetClient with connection pooling, optional
// HTTP/2 and an optional egress proxy.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewTargetClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*TargetClient, error) {
	transport, err := newTransport(&cfg.Upstream)
	if err != nil {
		return nil, err
	}

	maxRedirects := cfg.Upstream.MaxRedirects
	return &TargetClient{
		httpClient: &http.Client{
			Transport: transport,
			// No client-wide timeout: each attempt carries its own deadline.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				// net/http sets Referer to the previous hop; only the
				// caller's own Referer, if any, may reach later hops.
				req.Header.Del("Referer")
				if ref := via[0].Header.Get("Referer"); ref != "" {
					req.Header.Set("Referer", ref)
				}
				return nil
			},
		},
		maxBodyBytes: cfg.Upstream.MaxBodyBytes,
		logger:       logger.With("component", "target_client"),
		metrics:      m,
	}, nil
}

func newTransport(cfg *config.UpstreamConfig) (*http.Transport, error) {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		MaxIdleConns:          cfg.IdleConnections,
		MaxIdleConnsPerHost:   cfg.IdleConnections,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
		DialContext:           dialer.DialContext,
	}

	if cfg.EgressProxy != "" {
		u, err := url.Parse(cfg.EgressProxy)
		if err != nil {
			return nil, fmt.Errorf("parse egress proxy: %w", err)
		}
		switch u.Scheme {
		case "http", "https":
			transport.Proxy = http.ProxyURL(u)
		default:
			d, err := proxy.FromURL(u, dialer)
			if err != nil {
				return nil, fmt.Errorf("egress proxy dialer: %w", err)
			}
			cd, ok := d.(proxy.ContextDialer)
			if !ok {
				return nil, fmt.Errorf("egress proxy %q does not support context dialing", u.Scheme)
			}
			transport.DialContext = cd.DialContext
		}
	}

	if !cfg.DisableHTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			return nil, fmt.Errorf("configure http2 transport: %w", err)
		}
	}

	return transport, nil
}

// Fetch issues a GET to target with the given headers, follows redirects, and
// returns the fully read and decoded response. The context bounds the whole
// exchange including the body read.
func (c *TargetClient) Fetch(ctx context.Context, target string, header http.Header) (*model.FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header = header.Clone()

	c.logger.Debug("upstream request",
		"host", req.URL.Host,
		"path", req.URL.Path,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(req.URL.Scheme, 0, start)
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := c.readBody(resp.Body)
	c.observe(req.URL.Scheme, resp.StatusCode, start)
	if err != nil {
		return nil, err
	}

	body, err = decodeBody(resp.Header, body, c.maxBodyBytes)
	if err != nil {
		return nil, err
	}

	return &model.FetchResult{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func (c *TargetClient) readBody(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, c.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}
	if int64(len(body)) > c.maxBodyBytes {
		return nil, ErrBodyTooLarge
	}
	return body, nil
}

func (c *TargetClient) observe(scheme string, status int, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.UpstreamDuration.WithLabelValues(scheme).Observe(time.Since(start).Seconds())
	if status != 0 {
		c.metrics.UpstreamResponses.WithLabelValues(metrics.StatusClass(status)).Inc()
	}
}
