package resilience

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

var (
	// ErrCircuitOpen is returned without contacting the upstream while the
	// breaker is open or half-open and saturated.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrRateLimited is returned when the outbound rate limiter cannot admit a
	// request before the context ends.
	ErrRateLimited = errors.New("outbound rate limit wait aborted")
)

const tracerName = "github.com/weatherboard/weatherboard/internal/provider/resilience"

// DefaultUserAgent is sent when a request carries no User-Agent.
const DefaultUserAgent = "weatherboard/1.0 (+https://weatherboard.dev)"

// ClientConfig holds configuration for the resilient HTTP client.
type ClientConfig struct {
	// Name identifies this client for circuit breaker naming and health reporting.
	Name string

	// Timeout is the request timeout for individual HTTP calls.
	// Default: 10 seconds
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts.
	// Default: 3
	MaxRetries uint64

	// DisableRetries sends each request exactly once.
	DisableRetries bool

	// InitialInterval is the initial retry backoff interval.
	// Default: 100ms
	InitialInterval time.Duration

	// MaxInterval is the maximum retry backoff interval.
	// Default: 5 seconds
	MaxInterval time.Duration

	// RequestsPerSecond caps outbound calls, including retries.
	// Zero disables the limiter.
	RequestsPerSecond float64

	// Burst is the limiter bucket size. Default: 1 when a rate is set.
	Burst int

	// CircuitBreaker is the circuit breaker configuration.
	// If nil, uses DefaultCircuitBreakerConfig.
	CircuitBreaker *CircuitBreakerConfig

	// Registry, when set, receives the client and its success/failure outcomes.
	Registry *Registry

	// UserAgent overrides DefaultUserAgent.
	UserAgent string
}

// DefaultClientConfig returns sensible defaults for the resilient client.
func DefaultClientConfig(name string) ClientConfig {
	cbConfig := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		CircuitBreaker:  &cbConfig,
	}
}

// Client calls one upstream provider through an outbound rate limiter, a
// circuit breaker and retries.
type Client struct {
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker[*http.Response]
	limiter        *rate.Limiter
	registry       *Registry
	tracer         trace.Tracer
	config         ClientConfig
}

// NewClient creates a new resilient HTTP client.
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
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	cbConfig := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.CircuitBreaker != nil {
		cbConfig = *cfg.CircuitBreaker
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		circuitBreaker: NewCircuitBreaker[*http.Response](cbConfig), //nolint:bodyclose // type param, not response
		limiter:        limiter,
		registry:       cfg.Registry,
		tracer:         otel.Tracer(tracerName),
		config:         cfg,
	}

	if c.registry != nil {
		c.registry.Register(cfg.Name, c)
	}

	return c
}

// Name returns the client name.
func (c *Client) Name() string {
	return c.config.Name
}

// Do sends req under the request's context. Transient failures (network
// errors and 5xx) are retried with exponential backoff; a 5xx that outlives
// its retries is returned as the response so the caller can classify it.
// ErrCircuitOpen and ErrRateLimited are returned without retrying.
//
// Each call is traced as one client span covering every attempt. Only the
// URL path is recorded; query strings carry provider API keys.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx, span := c.tracer.Start(req.Context(), "provider "+c.config.Name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("provider.name", c.config.Name),
			attribute.String("http.request.method", req.Method),
			attribute.String("server.address", req.URL.Host),
			attribute.String("url.path", req.URL.Path),
		),
	)
	defer span.End()

	var policy backoff.BackOff = &backoff.StopBackOff{}
	if !c.config.DisableRetries {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = c.config.InitialInterval
		bo.MaxInterval = c.config.MaxInterval
		bo.MaxElapsedTime = 0 // bounded by WithMaxRetries
		policy = backoff.WithMaxRetries(bo, c.config.MaxRetries)
	}

	var (
		lastResp *http.Response
		attempts int
	)
	keep := func(resp *http.Response) {
		if lastResp != nil {
			lastResp.Body.Close()
		}
		lastResp = resp
	}

	operation := func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(fmt.Errorf("%w: %w", ErrRateLimited, err))
			}
		}
		attempts++

		attempt := req.Clone(ctx)
		if attempt.Header.Get("User-Agent") == "" {
			attempt.Header.Set("User-Agent", c.config.UserAgent)
		}

		// 5xx responses are returned as errors so they count against the breaker.
		resp, err := c.circuitBreaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // closed by keep or the caller
			r, err := c.httpClient.Do(attempt)
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= 500 {
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(ErrCircuitOpen)
		}
		if resp != nil {
			keep(resp)
		}
		return err
	}

	err := backoff.Retry(operation, backoff.WithContext(policy, ctx))
	span.SetAttributes(attribute.Int("provider.attempts", attempts))
	if lastResp != nil {
		span.SetAttributes(attribute.Int("http.response.status_code", lastResp.StatusCode))
	}

	if err != nil {
		c.recordFailure(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if lastResp != nil {
			return lastResp, nil
		}
		return nil, err
	}

	c.recordSuccess()
	return lastResp, nil
}

func (c *Client) recordSuccess() {
	if c.registry != nil {
		c.registry.RecordSuccess(c.config.Name)
	}
}

func (c *Client) recordFailure(err error) {
	if c.registry != nil {
		c.registry.RecordFailure(c.config.Name, err)
	}
}

// ServerError represents an HTTP 5xx server error.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// CircuitBreakerState returns the current state of the circuit breaker.
func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.circuitBreaker.State()
}

// CircuitBreakerCounts returns the current counts of the circuit breaker.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	return c.circuitBreaker.Counts()
}
