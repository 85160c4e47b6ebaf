// Package openweathermap implements weather.Provider against the
// OpenWeatherMap 2.5 current-weather and 5-day forecast endpoints.
package openweathermap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/weatherboard/weatherboard/internal/config"
	"github.com/weatherboard/weatherboard/internal/forecast"
	"github.com/weatherboard/weatherboard/internal/provider/resilience"
	"github.com/weatherboard/weatherboard/internal/weather"
)

const (
	// ProviderName identifies this weather provider.
	ProviderName = "openweathermap"

	// DefaultBaseURL is the OpenWeatherMap API base URL.
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"

	// DefaultLang is the language for condition descriptions.
	DefaultLang = "kr"

	// DefaultUnits requests Celsius and m/s.
	DefaultUnits = "metric"

	// maxBodyBytes bounds how much of a response body is read.
	maxBodyBytes = 4 << 20
)

// cityNames maps Korean city names to the English names the API resolves.
var cityNames = map[string]string{
	"서울": "Seoul",
	"부산": "Busan",
	"대구": "Daegu",
	"인천": "Incheon",
	"광주": "Gwangju",
	"대전": "Daejeon",
	"울산": "Ulsan",
}

// KnownCities returns the Korean names that are translated before querying.
func KnownCities() []string {
	return []string{"서울", "부산", "대구", "인천", "광주", "대전", "울산"}
}

// ResolveCityName translates a known Korean city name to English.
// Other names are returned trimmed but otherwise unchanged.
func ResolveCityName(name string) string {
	name = strings.TrimSpace(name)
	if en, ok := cityNames[name]; ok {
		return en
	}
	return name
}

// ClientConfig holds configuration for the OpenWeatherMap client.
type ClientConfig struct {
	// APIKey is the OpenWeatherMap API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to OpenWeatherMap API).
	BaseURL string

	// Lang is the description language (default: kr).
	Lang string

	// Units is the unit system (default: metric).
	Units string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OpenWeatherMap API client.
type Client struct {
	apiKey     string
	baseURL    string
	lang       string
	units      string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new OpenWeatherMap client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	lang := cfg.Lang
	if lang == "" {
		lang = DefaultLang
	}

	units := cfg.Units
	if units == "" {
		units = DefaultUnits
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		lang:       lang,
		units:      units,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// GetCurrentWeather fetches current weather for a location.
func (c *Client) GetCurrentWeather(ctx context.Context, lat, lon float64) (*weather.Observation, error) {
	return c.current(ctx, coordParams(lat, lon))
}

// GetCurrentWeatherByCity fetches current weather for a named city.
func (c *Client) GetCurrentWeatherByCity(ctx context.Context, city string) (*weather.Observation, error) {
	return c.current(ctx, cityParams(city))
}

// GetForecast fetches the 5-day / 3-hour forecast for a location.
func (c *Client) GetForecast(ctx context.Context, lat, lon float64) (*weather.Forecast, error) {
	return c.forecast(ctx, coordParams(lat, lon))
}

// GetForecastByCity fetches the 5-day / 3-hour forecast for a named city.
func (c *Client) GetForecastByCity(ctx context.Context, city string) (*weather.Forecast, error) {
	return c.forecast(ctx, cityParams(city))
}

func (c *Client) current(ctx context.Context, params url.Values) (*weather.Observation, error) {
	body, err := c.get(ctx, "/weather", params)
	if err != nil {
		return nil, err
	}

	var owmResp currentWeatherResponse
	if err := json.Unmarshal(body, &owmResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return toObservation(&owmResp), nil
}

func (c *Client) forecast(ctx context.Context, params url.Values) (*weather.Forecast, error) {
	body, err := c.get(ctx, "/forecast", params)
	if err != nil {
		return nil, err
	}

	payload, err := forecast.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("decoding forecast: %w", err)
	}

	return &weather.Forecast{
		City:           payload.City.Name,
		Country:        payload.City.Country,
		Lat:            payload.City.Lat,
		Lon:            payload.City.Lon,
		TimezoneOffset: payload.City.Timezone,
		Samples:        payload.Samples,
		FetchedAt:      time.Now(),
	}, nil
}

// get performs the request and maps non-200 statuses to weather errors.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	params.Set("appid", c.apiKey)
	params.Set("units", c.units)
	params.Set("lang", c.lang)

	reqURL := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", weather.ErrLocationNotFound, errorMessage(body))
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: %s", weather.ErrUnauthorized, errorMessage(body))
	default:
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("path", path).
			Msg("unexpected openweathermap response")
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
}

func coordParams(lat, lon float64) url.Values {
	v := url.Values{}
	v.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	v.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	return v
}

func cityParams(city string) url.Values {
	v := url.Values{}
	v.Set("q", ResolveCityName(city))
	return v
}

// errorMessage extracts the "message" field of an error body.
func errorMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err != nil || e.Message == "" {
		return "no message"
	}
	return e.Message
}

// toObservation converts OpenWeatherMap response to domain model.
func toObservation(resp *currentWeatherResponse) *weather.Observation {
	obs := &weather.Observation{
		Lat:           resp.Coord.Lat,
		Lon:           resp.Coord.Lon,
		City:          resp.Name,
		Country:       resp.Sys.Country,
		Temperature:   resp.Main.Temp,
		FeelsLike:     resp.Main.FeelsLike,
		TempMin:       resp.Main.TempMin,
		TempMax:       resp.Main.TempMax,
		Humidity:      forecast.RoundHumidity(resp.Main.Humidity),
		WindSpeed:     resp.Wind.Speed,
		WindDirection: resp.Wind.Deg,
		WindGust:      resp.Wind.Gust,
		Pressure:      resp.Main.Pressure,
		CloudCover:    resp.Clouds.All,
		Visibility:    float64(resp.Visibility),
		ObservedAt:    time.Unix(resp.Dt, 0).UTC(),
		FetchedAt:     time.Now(),
	}

	if resp.Rain != nil && resp.Rain.OneHour != nil {
		obs.Rain1h, obs.HasRain1h = *resp.Rain.OneHour, true
	}
	if resp.Snow != nil && resp.Snow.OneHour != nil {
		obs.Snow1h, obs.HasSnow1h = *resp.Snow.OneHour, true
	}

	if len(resp.Weather) > 0 {
		obs.Condition = mapCondition(resp.Weather[0].Main)
		obs.Description = resp.Weather[0].Description
		obs.Icon = resp.Weather[0].Icon
	} else {
		obs.Condition = weather.ConditionUnknown
	}

	return obs
}

// mapCondition maps OpenWeatherMap condition to domain condition.
func mapCondition(owmCondition string) weather.Condition {
	switch owmCondition {
	case "Clear":
		return weather.ConditionClear
	case "Clouds":
		return weather.ConditionClouds
	case "Rain":
		return weather.ConditionRain
	case "Drizzle":
		return weather.ConditionDrizzle
	case "Thunderstorm":
		return weather.ConditionThunderstorm
	case "Snow":
		return weather.ConditionSnow
	case "Mist":
		return weather.ConditionMist
	case "Fog":
		return weather.ConditionFog
	case "Haze", "Dust", "Sand", "Ash", "Squall", "Tornado", "Smoke":
		return weather.ConditionHaze
	default:
		return weather.ConditionUnknown
	}
}

type precipitation struct {
	OneHour *float64 `json:"1h"`
}

type currentWeatherResponse struct {
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Weather []struct {
		ID          int    `json:"id"`
		Main        string `json:"main"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		TempMin   float64 `json:"temp_min"`
		TempMax   float64 `json:"temp_max"`
		Pressure  float64 `json:"pressure"`
		Humidity  float64 `json:"humidity"`
	} `json:"main"`
	Visibility int `json:"visibility"`
	Wind       struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
		Gust  float64 `json:"gust"`
	} `json:"wind"`
	Clouds struct {
		All float64 `json:"all"`
	} `json:"clouds"`
	Rain *precipitation `json:"rain"`
	Snow *precipitation `json:"snow"`
	Sys  struct {
		Country string `json:"country"`
	} `json:"sys"`
	Dt   int64  `json:"dt"`
	Name string `json:"name"`
}

// NewClientFromConfig builds a client whose HTTP calls go through a resilient
// client registered in registry under ProviderName. registry may be nil.
func NewClientFromConfig(cfg config.OpenWeatherConfig, registry *resilience.Registry, logger zerolog.Logger) *Client {
	rc := resilience.DefaultClientConfig(ProviderName)
	rc.CircuitBreaker.OnStateChange = resilience.LogStateChanges(logger)
	rc.RequestsPerSecond = cfg.RequestsPerSecond
	rc.Burst = cfg.Burst
	rc.Registry = registry

	return NewClient(ClientConfig{
		APIKey:     cfg.APIKey,
		Lang:       cfg.Lang,
		Units:      cfg.Units,
		HTTPClient: resilience.NewClient(rc),
		Logger:     logger,
	})
}
