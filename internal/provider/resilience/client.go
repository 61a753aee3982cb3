package resilience

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

var (
	// ErrCircuitOpen is returned when the provider's circuit breaker refuses
	// the call.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// ClientConfig holds configuration for a resilient provider HTTP client.
type ClientConfig struct {
	// Name identifies the provider for circuit breaking and health tracking.
	Name string

	// Timeout applies to each individual HTTP attempt (default: 10s).
	Timeout time.Duration

	// MaxRetries caps retry attempts after the first try (default: 3).
	MaxRetries uint64

	// InitialInterval is the first backoff delay (default: 100ms).
	InitialInterval time.Duration

	// MaxInterval caps the backoff delay (default: 5s).
	MaxInterval time.Duration

	// CircuitBreaker overrides the breaker settings. Nil uses defaults.
	CircuitBreaker *CircuitBreakerConfig

	// Registry, when set, receives success/failure outcomes for this
	// provider and exposes them through health reporting. The client
	// registers itself under Name.
	Registry *Registry
}

// Client is an HTTP client that retries transient failures with exponential
// backoff and short-circuits through a per-provider circuit breaker.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	registry   *Registry
	config     ClientConfig
}

// NewClient creates a resilient HTTP client. If a registry is configured the
// client registers itself so the provider shows up in health reports.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 5 * time.Second
	}

	breakerCfg := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.CircuitBreaker != nil {
		breakerCfg = *cfg.CircuitBreaker
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    NewCircuitBreaker[*http.Response](breakerCfg), //nolint:bodyclose // type param, not a response
		registry:   cfg.Registry,
		config:     cfg,
	}

	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, c)
	}

	return c
}

// Do executes the request with retries and circuit breaking. Transient
// failures (network errors, 5xx) are retried; an open breaker fails fast
// with ErrCircuitOpen. A 5xx response that survives all retries is returned
// to the caller rather than swallowed.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

// DoWithContext executes the request under the given context.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0 // retries bounded by count, not elapsed time

	schedule := backoff.WithContext(backoff.WithMaxRetries(bo, c.config.MaxRetries), ctx)

	var lastResp *http.Response

	attempt := func() error {
		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller closes
			r, err := c.httpClient.Do(req.Clone(ctx))
			if err != nil {
				return nil, err
			}
			// 5xx counts as a failure so the breaker sees provider outages.
			if r.StatusCode >= 500 {
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			if resp != nil {
				lastResp = resp
			}
			return err
		}

		lastResp = resp
		return nil
	}

	err := backoff.Retry(attempt, schedule)
	if err != nil {
		c.recordOutcome(err)
		if lastResp != nil {
			// Exhausted retries on a 5xx: hand the final response back.
			return lastResp, nil
		}
		return nil, err
	}

	c.recordOutcome(nil)
	return lastResp, nil
}

func (c *Client) recordOutcome(err error) {
	if c.registry == nil {
		return
	}
	if err != nil {
		c.registry.RecordFailure(c.config.Name, err)
		return
	}
	c.registry.RecordSuccess(c.config.Name)
}

// ServerError represents an HTTP 5xx response from a provider.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// CircuitBreakerState returns the breaker's current state.
func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.breaker.State()
}

// CircuitBreakerCounts returns the breaker's current counters.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	return c.breaker.Counts()
}
