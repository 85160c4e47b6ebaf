package geolocation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/weatherboard/weatherboard/internal/provider/resilience"
)

const (
	// IPAPIProviderName identifies the ip-api.com provider.
	IPAPIProviderName = "ip-api"

	// DefaultIPAPIURL is the ip-api.com JSON endpoint.
	DefaultIPAPIURL = "http://ip-api.com/json"
)

// IPAPIConfig holds configuration for the ip-api.com client.
type IPAPIConfig struct {
	// BaseURL defaults to DefaultIPAPIURL.
	BaseURL string

	// HTTPClient is optional; a resilient client with defaults is used if nil.
	HTTPClient *resilience.Client

	Logger zerolog.Logger
}

// IPAPIClient looks up IP addresses with ip-api.com.
type IPAPIClient struct {
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewIPAPIClient creates a new ip-api.com client.
func NewIPAPIClient(cfg IPAPIConfig) *IPAPIClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultIPAPIURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(IPAPIProviderName))
	}

	return &IPAPIClient{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Locate resolves ip. Private, loopback or empty addresses resolve the
// caller's own public address instead.
func (c *IPAPIClient) Locate(ctx context.Context, ip string) (Location, error) {
	reqURL := c.baseURL
	if isPublic(ip) {
		reqURL += "/" + url.PathEscape(ip)
	}
	reqURL += "?fields=status,message,lat,lon,city"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return Location{}, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("%w: executing request: %w", ErrLookupFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("%w: unexpected status code: %d", ErrLookupFailed, resp.StatusCode)
	}

	var body ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Location{}, fmt.Errorf("%w: decoding response: %w", ErrLookupFailed, err)
	}

	if body.Status != "success" {
		return Location{}, fmt.Errorf("%w: %s", ErrLookupFailed, body.Message)
	}

	c.logger.Debug().
		Str("city", body.City).
		Float64("lat", body.Lat).
		Float64("lon", body.Lon).
		Msg("resolved ip location")

	return Location{Lat: body.Lat, Lon: body.Lon, City: body.City}, nil
}

type ipAPIResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	City    string  `json:"city"`
}
