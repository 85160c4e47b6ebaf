package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/weatherboard/weatherboard/internal/api/models"
)

// RateLimitConfig is a fixed-window request budget.
type RateLimitConfig struct {
	RequestLimit int
	WindowLength time.Duration
}

var (
	// AuthRateLimit guards signup and login against credential stuffing.
	AuthRateLimit = RateLimitConfig{RequestLimit: 10, WindowLength: time.Minute}

	// ExpensiveRateLimit guards endpoints that reach the weather provider on
	// a cache miss, such as the dashboard.
	ExpensiveRateLimit = RateLimitConfig{RequestLimit: 30, WindowLength: time.Minute}

	// StandardRateLimit applies to everything else.
	StandardRateLimit = RateLimitConfig{RequestLimit: 100, WindowLength: time.Minute}
)

// RateLimitByIP limits requests per client address. RealIP must run first
// so proxied clients are told apart.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(limitExceeded(cfg)),
	)
}

// RateLimitByUser limits requests per signed-in user, falling back to the
// client address for anonymous requests. It must run after Auth.
func RateLimitByUser(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(keyByUserOrIP),
		httprate.WithLimitHandler(limitExceeded(cfg)),
	)
}

func keyByUserOrIP(r *http.Request) (string, error) {
	if name := GetUsername(r.Context()); name != "" {
		return "user:" + name, nil
	}
	return httprate.KeyByRealIP(r)
}

// limitExceeded writes a 429 problem. Retry-After counts down to the window
// reset httprate reports, or the full window when it reports none.
func limitExceeded(cfg RateLimitConfig) http.HandlerFunc {
	window := int(cfg.WindowLength.Round(time.Second) / time.Second)
	if window < 1 {
		window = 1
	}
	return func(w http.ResponseWriter, r *http.Request) {
		retryAfter := window
		if reset, err := strconv.ParseInt(w.Header().Get("X-RateLimit-Reset"), 10, 64); err == nil {
			if secs := int(reset - time.Now().Unix()); secs > 0 && secs <= window {
				retryAfter = secs
			}
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

		models.NewTooManyRequests(GetRequestID(r.Context()), "Rate limit exceeded. Please try again later.").
			WithInstance(r.URL.Path).
			Write(w)
	}
}
