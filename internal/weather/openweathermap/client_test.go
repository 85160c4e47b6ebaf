package openweathermap_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weatherboard/weatherboard/internal/config"
	"github.com/weatherboard/weatherboard/internal/forecast"
	"github.com/weatherboard/weatherboard/internal/provider/resilience"
	"github.com/weatherboard/weatherboard/internal/weather"
	"github.com/weatherboard/weatherboard/internal/weather/openweathermap"
)

func newTestClient(baseURL string) *openweathermap.Client {
	cfg := resilience.DefaultClientConfig("test")
	cfg.DisableRetries = true
	return openweathermap.NewClient(openweathermap.ClientConfig{
		APIKey:     "test-key",
		BaseURL:    baseURL,
		HTTPClient: resilience.NewClient(cfg),
	})
}

func currentWeatherBody() map[string]interface{} {
	return map[string]interface{}{
		"coord": map[string]float64{"lat": 37.5683, "lon": 126.9778},
		"weather": []map[string]interface{}{
			{"id": 500, "main": "Rain", "description": "실 비", "icon": "10d"},
		},
		"main": map[string]float64{
			"temp":       18.5,
			"feels_like": 17.8,
			"temp_min":   17.0,
			"temp_max":   20.0,
			"pressure":   1015.0,
			"humidity":   72.0,
		},
		"visibility": 10000,
		"wind":       map[string]float64{"speed": 4.5, "deg": 220.0, "gust": 7.2},
		"clouds":     map[string]float64{"all": 75.0},
		"rain":       map[string]float64{"1h": 0.8},
		"sys":        map[string]string{"country": "KR"},
		"dt":         time.Date(2025, 10, 26, 3, 0, 0, 0, time.UTC).Unix(),
		"name":       "Seoul",
		"cod":        200,
	}
}

func TestClient_GetCurrentWeather(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/weather", r.URL.Path)
		assert.Equal(t, "37.566500", r.URL.Query().Get("lat"))
		assert.Equal(t, "126.978000", r.URL.Query().Get("lon"))
		assert.Equal(t, "test-key", r.URL.Query().Get("appid"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		assert.Equal(t, "kr", r.URL.Query().Get("lang"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(currentWeatherBody())
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	obs, err := client.GetCurrentWeather(context.Background(), 37.5665, 126.9780)
	require.NoError(t, err)
	require.NotNil(t, obs)

	assert.Equal(t, "Seoul", obs.City)
	assert.Equal(t, "KR", obs.Country)
	assert.Equal(t, 37.5683, obs.Lat)
	assert.Equal(t, 18.5, obs.Temperature)
	assert.Equal(t, 17.8, obs.FeelsLike)
	assert.Equal(t, 72, obs.Humidity)
	assert.Equal(t, 4.5, obs.WindSpeed)
	assert.Equal(t, 220.0, obs.WindDirection)
	assert.Equal(t, 7.2, obs.WindGust)
	assert.Equal(t, 1015.0, obs.Pressure)
	assert.Equal(t, 75.0, obs.CloudCover)
	assert.Equal(t, 10000.0, obs.Visibility)
	assert.Equal(t, weather.ConditionRain, obs.Condition)
	assert.Equal(t, "실 비", obs.Description)
	assert.Equal(t, "10d", obs.Icon)
	assert.True(t, obs.HasRain1h)
	assert.Equal(t, 0.8, obs.Rain1h)
	assert.False(t, obs.HasSnow1h)
	assert.Zero(t, obs.Snow1h)
	assert.Equal(t, time.Date(2025, 10, 26, 3, 0, 0, 0, time.UTC), obs.ObservedAt)
}

func TestClient_GetCurrentWeather_RoundsHumidity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := currentWeatherBody()
		body["main"].(map[string]float64)["humidity"] = 71.6
		_ = json.NewEncoder(w).Encode(body)
	}))
	defer server.Close()

	obs, err := newTestClient(server.URL).GetCurrentWeather(context.Background(), 37.5665, 126.9780)
	require.NoError(t, err)
	assert.Equal(t, 72, obs.Humidity)
}

func TestClient_GetCurrentWeatherByCity_TranslatesKoreanNames(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"서울", "Seoul"},
		{"부산", "Busan"},
		{" 대구 ", "Daegu"},
		{"인천", "Incheon"},
		{"광주", "Gwangju"},
		{"대전", "Daejeon"},
		{"울산", "Ulsan"},
		{"Jeju", "Jeju"},
		{"수원", "수원"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.want, r.URL.Query().Get("q"))
				assert.Empty(t, r.URL.Query().Get("lat"))
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(currentWeatherBody())
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).GetCurrentWeatherByCity(context.Background(), tt.input)
			require.NoError(t, err)
		})
	}
}

func TestClient_GetCurrentWeather_AllConditions(t *testing.T) {
	conditions := []struct {
		owmMain  string
		expected weather.Condition
	}{
		{"Clear", weather.ConditionClear},
		{"Clouds", weather.ConditionClouds},
		{"Rain", weather.ConditionRain},
		{"Drizzle", weather.ConditionDrizzle},
		{"Thunderstorm", weather.ConditionThunderstorm},
		{"Snow", weather.ConditionSnow},
		{"Mist", weather.ConditionMist},
		{"Fog", weather.ConditionFog},
		{"Haze", weather.ConditionHaze},
		{"Dust", weather.ConditionHaze},
		{"Unknown", weather.ConditionUnknown},
	}

	for _, tc := range conditions {
		t.Run(tc.owmMain, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				body := currentWeatherBody()
				body["weather"] = []map[string]interface{}{{"main": tc.owmMain, "description": "test"}}
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(body)
			}))
			defer server.Close()

			obs, err := newTestClient(server.URL).GetCurrentWeather(context.Background(), 37.5, 127.0)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, obs.Condition)
		})
	}
}

func TestClient_GetCurrentWeather_NoWeatherEntries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		body := currentWeatherBody()
		delete(body, "weather")
		delete(body, "rain")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	defer server.Close()

	obs, err := newTestClient(server.URL).GetCurrentWeather(context.Background(), 37.5, 127.0)
	require.NoError(t, err)
	assert.Equal(t, weather.ConditionUnknown, obs.Condition)
	assert.False(t, obs.HasRain1h)
}

func TestClient_GetForecastByCity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forecast", r.URL.Path)
		assert.Equal(t, "Busan", r.URL.Query().Get("q"))
		assert.Equal(t, "kr", r.URL.Query().Get("lang"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"cod": "200", "message": 0, "cnt": 2,
			"list": [
				{"dt_txt": "2025-10-26 00:00:00", "main": {"temp": 17.2, "humidity": 66}, "wind": {"speed": 3.1}, "rain": {"3h": 0.5}},
				{"dt_txt": "2025-10-26 03:00:00", "main": {"temp": 19.0, "humidity": 60}, "wind": {"speed": 4.0}}
			],
			"city": {"name": "Busan", "country": "KR", "coord": {"lat": 35.1028, "lon": 129.0403}, "timezone": 32400}
		}`))
	}))
	defer server.Close()

	fc, err := newTestClient(server.URL).GetForecastByCity(context.Background(), "부산")
	require.NoError(t, err)

	assert.Equal(t, "Busan", fc.City)
	assert.Equal(t, "KR", fc.Country)
	assert.Equal(t, 35.1028, fc.Lat)
	assert.Equal(t, 32400, fc.TimezoneOffset)
	require.Len(t, fc.Samples, 2)
	assert.Equal(t, 0.5, fc.Samples[0].Rain3h)
	assert.Zero(t, fc.Samples[1].Rain3h)
	assert.False(t, fc.FetchedAt.IsZero())
}

func TestClient_GetForecast_MalformedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"cod": "200", "list": [{"dt_txt": "2025-10-26 00:00:00", "main": {"humidity": 60}, "wind": {"speed": 1}}]}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetForecast(context.Background(), 37.5, 127.0)
	require.Error(t, err)
	assert.ErrorIs(t, err, forecast.ErrMalformedSample)
	assert.ErrorIs(t, err, forecast.ErrInvalidInput)
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		wantMsg string
	}{
		{
			name:    "city not found",
			status:  http.StatusNotFound,
			body:    `{"cod": "404", "message": "city not found"}`,
			wantErr: weather.ErrLocationNotFound,
			wantMsg: "city not found",
		},
		{
			name:    "bad api key",
			status:  http.StatusUnauthorized,
			body:    `{"cod": 401, "message": "Invalid API key"}`,
			wantErr: weather.ErrUnauthorized,
			wantMsg: "Invalid API key",
		},
		{
			name:    "rate limited",
			status:  http.StatusTooManyRequests,
			body:    `{"cod": 429}`,
			wantMsg: "unexpected status code: 429",
		},
		{
			name:    "server error",
			status:  http.StatusBadGateway,
			body:    `bad gateway`,
			wantMsg: "unexpected status code: 502",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).GetForecastByCity(context.Background(), "Nowhere")
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestClient_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("invalid json"))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetCurrentWeather(context.Background(), 37.5, 127.0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding response")
}

func TestClient_Name(t *testing.T) {
	client := openweathermap.NewClient(openweathermap.ClientConfig{APIKey: "test"})
	assert.Equal(t, openweathermap.ProviderName, client.Name())
}

func TestResolveCityName(t *testing.T) {
	for _, name := range openweathermap.KnownCities() {
		assert.NotEqual(t, name, openweathermap.ResolveCityName(name))
	}
	assert.Equal(t, "Tokyo", openweathermap.ResolveCityName("Tokyo"))
}

func TestNewClientFromConfig_RegistersProvider(t *testing.T) {
	registry := resilience.NewRegistry()

	c := openweathermap.NewClientFromConfig(config.OpenWeatherConfig{
		APIKey:            "k",
		RequestsPerSecond: 2,
		Burst:             3,
	}, registry, zerolog.Nop())

	assert.Equal(t, openweathermap.ProviderName, c.Name())
	assert.Equal(t, []string{openweathermap.ProviderName}, registry.GetProviderNames())
}
