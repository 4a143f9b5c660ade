// Package registration announces a running osmnode instance to a service
// registry. Registration is best effort: an unreachable registry is logged
// and retried on the next heartbeat, never surfaced as a failure.
package registration

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

	"github.com/jonboulle/clockwork"
)

const (
	// DefaultHeartbeatInterval is the default interval between heartbeats
	DefaultHeartbeatInterval = 30 * time.Second

	// DefaultTimeout bounds each registry request
	DefaultTimeout = 5 * time.Second
)

// Config holds the configuration for service registration.
type Config struct {
	// RegistryURL is the base URL of the registry, e.g. "http://registry:7083"
	RegistryURL string

	ServiceName string
	ServiceType string

	// ServiceURL is where clients reach this instance; HealthURL defaults to ServiceURL + "/health"
	ServiceURL string
	HealthURL  string

	Version      string
	Capabilities []string
	Tools        []string
	Metadata     map[string]interface{}

	HeartbeatInterval time.Duration
	Timeout           time.Duration
}

// Request is the payload posted to {RegistryURL}/api/register
type Request struct {
	Name         string                 `json:"name"`
	Type         string                 `json:"type"`
	URL          string                 `json:"url"`
	HealthURL    string                 `json:"health_url"`
	Version      string                 `json:"version"`
	Capabilities []string               `json:"capabilities,omitempty"`
	Tools        []string               `json:"tools,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// Response is the registry's answer to a registration
type Response struct {
	Status     string `json:"status"`
	Name       string `json:"name"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// Client keeps a registration alive with periodic heartbeats.
type Client struct {
	cfg        Config
	logger     *slog.Logger
	httpClient *http.Client
	clock      clockwork.Clock

	mu         sync.RWMutex
	registered bool
}

// NewClient creates a registration client with defaults applied
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ServiceType == "" {
		cfg.ServiceType = "mcp"
	}
	if cfg.HealthURL == "" && cfg.ServiceURL != "" {
		cfg.HealthURL = strings.TrimRight(cfg.ServiceURL, "/") + "/health"
	}
	cfg.RegistryURL = strings.TrimRight(cfg.RegistryURL, "/")
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		cfg:        cfg,
		logger:     logger,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		clock:      clockwork.NewRealClock(),
	}
}

// SetClock replaces the clock driving heartbeats
func (c *Client) SetClock(clock clockwork.Clock) {
	c.clock = clock
}

// Run registers immediately, heartbeats every interval and deregisters
// once ctx is done. It only returns an error for an unusable configuration.
func (c *Client) Run(ctx context.Context) error {
	if c.cfg.RegistryURL == "" {
		return fmt.Errorf("registration: registry URL is required")
	}
	if c.cfg.ServiceName == "" {
		return fmt.Errorf("registration: service name is required")
	}

	c.register(ctx)

	ticker := c.clock.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			c.register(ctx)
		case <-ctx.Done():
			c.deregister()
			return nil
		}
	}
}

// IsRegistered returns whether the last heartbeat was accepted
func (c *Client) IsRegistered() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registered
}

func (c *Client) setRegistered(registered bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registered = registered
}

func (c *Client) register(ctx context.Context) {
	body, err := json.Marshal(Request{
		Name:         c.cfg.ServiceName,
		Type:         c.cfg.ServiceType,
		URL:          c.cfg.ServiceURL,
		HealthURL:    c.cfg.HealthURL,
		Version:      c.cfg.Version,
		Capabilities: c.cfg.Capabilities,
		Tools:        c.cfg.Tools,
		Metadata:     c.cfg.Metadata,
	})
	if err != nil {
		c.logger.Error("failed to marshal registration request", "error", err)
		c.setRegistered(false)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RegistryURL+"/api/register", bytes.NewReader(body))
	if err != nil {
		c.logger.Error("failed to create registration request", "error", err)
		c.setRegistered(false)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("registration failed, registry may be unavailable", "error", err)
		c.setRegistered(false)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("registration rejected", "status", resp.StatusCode, "body", string(snippet))
		c.setRegistered(false)
		return
	}

	var regResp Response
	if err := json.NewDecoder(resp.Body).Decode(&regResp); err != nil {
		c.logger.Warn("failed to decode registration response", "error", err)
		c.setRegistered(false)
		return
	}

	if !c.IsRegistered() {
		c.logger.Info("registered with service registry",
			"name", c.cfg.ServiceName,
			"ttl_seconds", regResp.TTLSeconds)
	}
	c.setRegistered(true)
}

// deregister runs after ctx is cancelled, so it uses its own deadline
func (c *Client) deregister() {
	if !c.IsRegistered() {
		return
	}
	defer c.setRegistered(false)

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()

	endpoint := c.cfg.RegistryURL + "/api/register/" + url.PathEscape(c.cfg.ServiceName)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		c.logger.Debug("failed to create deregistration request", "error", err)
		return
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("deregistration failed", "error", err)
		return
	}
	resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		c.logger.Info("deregistered from service registry", "name", c.cfg.ServiceName)
	}
}
