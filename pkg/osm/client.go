// Package osm provides utilities for working with OpenStreetMap data.
package osm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/osmnode/pkg/tracing"
)

const (
	// DefaultUserAgent is the default User-Agent string
	DefaultUserAgent = "OSMNode/0.1.0"

	// DefaultConnectTimeout bounds dialing and the TLS handshake
	DefaultConnectTimeout = 5 * time.Second

	// DefaultReadTimeout bounds waiting for headers and, separately, reading the body
	DefaultReadTimeout = 5 * time.Second
)

var (
	userAgent     string
	userAgentLock sync.RWMutex
)

func init() {
	SetUserAgent(DefaultUserAgent)
}

// SetUserAgent sets the User-Agent string
func SetUserAgent(ua string) {
	userAgentLock.Lock()
	defer userAgentLock.Unlock()
	userAgent = ua
}

// GetUserAgent returns the current User-Agent string
func GetUserAgent() string {
	userAgentLock.RLock()
	defer userAgentLock.RUnlock()
	return userAgent
}

// NewRequestWithUserAgent creates a new HTTP request with proper User-Agent header
func NewRequestWithUserAgent(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", GetUserAgent())
	return req, nil
}

// ClientOptions configures an APIClient
type ClientOptions struct {
	// BaseURL of the OSM API host, without the /api/0.6 suffix
	BaseURL string

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	// RequestsPerSecond <= 0 disables throttling. When enabled, a request
	// waits at most ReadTimeout for its turn.
	RequestsPerSecond float64
	Burst             int
}

// DefaultClientOptions returns the settings used against the public OSM API
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		BaseURL:           DefaultBaseURL,
		ConnectTimeout:    DefaultConnectTimeout,
		ReadTimeout:       DefaultReadTimeout,
		RequestsPerSecond: 0,
		Burst:             1,
	}
}

// APIClient fetches node documents from the OSM API 0.6. It implements Fetcher.
type APIClient struct {
	baseURL     string
	apiHost     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	readTimeout time.Duration
	logger      *slog.Logger
}

// NewAPIClient creates a client with independent connect and read timeouts
func NewAPIClient(opts ClientOptions) *APIClient {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	base := normalizeBaseURL(opts.BaseURL)

	dialer := &net.Dialer{Timeout: opts.ConnectTimeout}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   opts.ConnectTimeout,
		ResponseHeaderTimeout: opts.ReadTimeout,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
	}

	return &APIClient{
		baseURL:     base,
		apiHost:     hostFromURL(base),
		httpClient:  &http.Client{Transport: transport},
		limiter:     newLimiter(opts.RequestsPerSecond, opts.Burst),
		readTimeout: opts.ReadTimeout,
		logger:      slog.Default(),
	}
}

func newLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// SetLogger sets the logger for the client
func (c *APIClient) SetLogger(logger *slog.Logger) {
	c.logger = logger
}

// UpdateRateLimits changes the throttle in place; safe for concurrent use
func (c *APIClient) UpdateRateLimits(rps float64, burst int) {
	if rps <= 0 {
		c.limiter.SetLimit(rate.Inf)
		return
	}
	if burst < 1 {
		burst = 1
	}
	c.limiter.SetLimit(rate.Limit(rps))
	c.limiter.SetBurst(burst)
}

// BaseURL returns the normalized API host URL
func (c *APIClient) BaseURL() string {
	return c.baseURL
}

// NodeURL returns the canonical resource URL of a node
func (c *APIClient) NodeURL(nodeID int64) string {
	return c.baseURL + NodePath(nodeID)
}

// waitForRateLimit blocks until the limiter admits the request, for no
// longer than the read timeout
func (c *APIClient) waitForRateLimit(ctx context.Context, service string) error {
	if c.limiter.Allow() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.readTimeout)
	defer cancel()

	startWait := time.Now()
	tracing.AddEvent(ctx, "rate_limit_wait",
		trace.WithAttributes(attribute.String(tracing.AttrRateLimitService, service)),
	)

	err := c.limiter.Wait(ctx)

	waitDuration := time.Since(startWait)
	tracing.SetAttributes(ctx,
		attribute.String(tracing.AttrRateLimitService, service),
		attribute.Int64(tracing.AttrRateLimitWaitMs, waitDuration.Milliseconds()),
	)
	notifyRateLimit(service, waitDuration)

	return err
}

// do performs a throttled, monitored request
func (c *APIClient) do(ctx context.Context, req *http.Request, operation string) (*http.Response, error) {
	service := getServiceFromRequest(req, c.apiHost)
	notifyRequest(service, operation)

	if err := c.waitForRateLimit(ctx, service); err != nil {
		notifyError(service, "rate_limit_wait_error")
		return nil, fmt.Errorf("waiting for rate limit: %w", err)
	}

	return c.send(req, service, operation)
}

// send performs a monitored request without consulting the limiter
func (c *APIClient) send(req *http.Request, service, operation string) (*http.Response, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	success := err == nil && resp.StatusCode == http.StatusOK
	notifyResponse(service, operation, duration, success)
	if err != nil {
		notifyError(service, "request_error")
	}

	return resp, err
}

// FetchNodeXML downloads the XML document of a single node. Any status other
// than 200 is reported as *StatusError.
func (c *APIClient) FetchNodeXML(ctx context.Context, nodeID int64) (body string, err error) {
	url := c.NodeURL(nodeID)

	ctx, span := tracing.StartSpan(ctx, "http.request GET "+c.apiHost,
		trace.WithAttributes(tracing.ServiceAttributes(tracing.ServiceOSMAPI, "fetch_node", url, 0)...),
		trace.WithAttributes(attribute.String(tracing.AttrHTTPMethod, http.MethodGet)),
	)
	defer func() { tracing.EndSpan(span, err) }()

	// cancelling this context aborts a body read that exceeds the read timeout
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := NewRequestWithUserAgent(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request for node %d: %w", nodeID, err)
	}
	req.Header.Set("Accept", "application/xml, text/xml")

	logger := c.logger.With("node_id", nodeID, "url", url)
	logger.Debug("requesting osm node")

	resp, err := c.do(ctx, req, "fetch_node")
	if err != nil {
		return "", fmt.Errorf("requesting node %d: %w", nodeID, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Warn("failed to close response body", "error", cerr)
		}
	}()

	span.SetAttributes(attribute.Int(tracing.AttrHTTPStatusCode, resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	timer := time.AfterFunc(c.readTimeout, cancel)
	defer timer.Stop()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		notifyError(tracing.ServiceOSMAPI, "read_error")
		return "", fmt.Errorf("reading node %d response: %w", nodeID, err)
	}

	logger.Debug("received osm node", "bytes", len(data))
	return strings.ToValidUTF8(string(data), "\uFFFD"), nil
}

// CheckHealth probes the capabilities endpoint of the configured API host
func (c *APIClient) CheckHealth(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.readTimeout*2)
	defer cancel()

	req, err := NewRequestWithUserAgent(ctx, http.MethodGet, c.baseURL+"/api/capabilities", nil)
	if err != nil {
		return fmt.Errorf("failed to create osm api health check request: %w", err)
	}

	// health probes take no limiter tokens
	service := getServiceFromRequest(req, c.apiHost)
	notifyRequest(service, "capabilities")
	resp, err := c.send(req, service, "capabilities")
	if err != nil {
		return fmt.Errorf("osm api health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("osm api health check returned status %d", resp.StatusCode)
	}
	return nil
}
