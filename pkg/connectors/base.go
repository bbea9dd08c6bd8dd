// Package connectors provides artifact sources backed by external code
// hosting systems, plus a base connector with rate limiting and
// authentication shared by all of them.
package connectors

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vulnflow/vulnflow/pkg/errors"
	"github.com/vulnflow/vulnflow/pkg/model"
)

// ArtifactSource resolves the artifact a pipeline run will scan.
type ArtifactSource interface {
	// Name returns the source name, e.g. "github".
	Name() string

	// Resolve returns the artifact with provider metadata filled in.
	Resolve(ctx context.Context) (model.Artifact, error)
}

// ConnectorConfig holds the shared connector settings.
type ConnectorConfig struct {
	// Token is a bearer token for the provider API.
	Token string

	// Timeout bounds each HTTP request. Default 30s.
	Timeout time.Duration

	// RateLimit is the allowed requests per hour (0 = unlimited).
	RateLimit int

	// BurstLimit is the burst size for the rate limiter. Default 10.
	BurstLimit int
}

// BaseConnector provides rate limiting, authentication, and HTTP client
// management shared by the provider connectors.
type BaseConnector struct {
	name       string
	baseURL    string
	httpClient *http.Client
	config     *ConnectorConfig

	// Rate limiting
	rateLimiter *rate.Limiter

	// State
	connected bool
	mu        sync.RWMutex
}

// NewBaseConnector creates a new BaseConnector with the given configuration.
func NewBaseConnector(name, baseURL string, config *ConnectorConfig) *BaseConnector {
	if config == nil {
		config = &ConnectorConfig{}
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	bc := &BaseConnector{
		name:    name,
		baseURL: baseURL,
		config:  config,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}

	if config.RateLimit > 0 {
		// Convert requests per hour to rate per second
		rps := float64(config.RateLimit) / 3600.0
		burst := config.BurstLimit
		if burst <= 0 {
			burst = 10
		}
		bc.rateLimiter = rate.NewLimiter(rate.Limit(rps), burst)
	}

	return bc
}

// Name returns the connector name.
func (c *BaseConnector) Name() string {
	return c.name
}

// BaseURL returns the base URL.
func (c *BaseConnector) BaseURL() string {
	return c.baseURL
}

// Connect marks the connector as connected. Providers with real session
// state override this.
func (c *BaseConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
	return nil
}

// Close closes the connection.
func (c *BaseConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return nil
}

// IsConnected returns true if connected.
func (c *BaseConnector) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// HTTPClient returns the configured HTTP client.
func (c *BaseConnector) HTTPClient() *http.Client {
	return c.httpClient
}

// Config returns the connector configuration.
func (c *BaseConnector) Config() *ConnectorConfig {
	return c.config
}

// RateLimited returns true if rate limiting is enabled.
func (c *BaseConnector) RateLimited() bool {
	return c.rateLimiter != nil
}

// WaitForRateLimit blocks until the rate limit allows the next request.
func (c *BaseConnector) WaitForRateLimit(ctx context.Context) error {
	if c.rateLimiter == nil {
		return nil
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return errors.E(errors.KindNetwork, c.name, "rate limit wait", err)
	}
	return nil
}

// Do executes an HTTP request with rate limiting and auth headers applied.
func (c *BaseConnector) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.WaitForRateLimit(ctx); err != nil {
		return nil, err
	}
	if c.config.Token != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}
	return c.httpClient.Do(req)
}
